package auth

import (
	"context"
	"time"
)

// TokenBlacklist 定义已吊销 Token (按 JTI) 的存储接口。
// 登出时将 JTI 加入黑名单，有效期到 Token 原本的过期时间为止。
type TokenBlacklist interface {
	Add(ctx context.Context, jti string, originalTokenExpTime time.Time) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}
