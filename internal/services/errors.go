package services

import (
	"errors"
	"fmt"
)

// 服务层的哨兵错误，handler 用 errors.Is 映射为 HTTP 状态码。
var (
	ErrUserNotFound       = errors.New("用户不存在")
	ErrUserAlreadyExists  = errors.New("该邮箱已被注册")
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrSwipeSelf          = errors.New("不能对自己滑动")
	ErrMatchNotFound      = errors.New("配对不存在")
	ErrNotParticipant     = errors.New("用户不是该配对的参与者")
	ErrNotMatched         = errors.New("双方尚未配对成功")
)

// ProfileIncompleteError 表示用户资料尚未完善到可以进入发现流程。
// Step 指出下一个待完成的步骤，方便客户端直接跳转。
type ProfileIncompleteError struct {
	Step int
}

func (e *ProfileIncompleteError) Error() string {
	return fmt.Sprintf("资料未完善，请先完成第 %d 步", e.Step)
}

// IsProfileIncomplete reports whether err is a ProfileIncompleteError and
// returns the pending step if so.
func IsProfileIncomplete(err error) (*ProfileIncompleteError, bool) {
	var pie *ProfileIncompleteError
	if errors.As(err, &pie) {
		return pie, true
	}
	return nil, false
}
