// Package realtime defines the event envelope and dispatch interface
// used to push match and message events to connected clients,
// independent of the request/response cycle.
package realtime

import (
	"context"
	"encoding/json"
)

// 服务端推送给客户端的事件名。
const (
	EventNewMatch        = "newMatch"        // 配对成功，推送到双方的用户通道
	EventNewMessage      = "newMessage"      // 新消息，推送到接收方的用户通道
	EventMessageReceived = "messageReceived" // 房间内消息回显，推送到配对房间
	EventUserTyping      = "userTyping"      // 输入中指示，推送到配对房间
)

// Envelope 的投递范围。
const (
	ScopeUser  = "user"  // 按用户ID投递（该用户的所有在线连接）
	ScopeMatch = "match" // 按配对ID投递（加入了该房间的连接）
)

// Envelope 是一条待投递的实时事件：投递范围 + 目标ID + 事件体。
type Envelope struct {
	Scope    string          `json:"scope"`
	TargetID uint            `json:"targetId"`
	Event    string          `json:"event"`
	Payload  json.RawMessage `json:"payload"`
}

// NewMatchPayload 是 newMatch 事件的负载。
type NewMatchPayload struct {
	MatchID uint `json:"matchId"`
	UserID  uint `json:"userId"` // 配对的另一方
}

// TypingPayload 是 userTyping 事件的负载。
type TypingPayload struct {
	MatchID  uint `json:"matchId"`
	UserID   uint `json:"userId"`
	IsTyping bool `json:"isTyping"`
}

// Dispatcher 是显式注入的实时事件分发接口。
// 投递是尽力而为的：目标不在线时事件直接丢弃（状态已持久化，
// 客户端下次拉取即可恢复）；投递失败绝不使发起写入的操作失败。
type Dispatcher interface {
	// NotifyUser 向某个用户的所有在线连接投递事件。
	NotifyUser(ctx context.Context, userID uint, event string, payload interface{}) error
	// NotifyMatch 向加入了某配对房间的所有连接投递事件。
	NotifyMatch(ctx context.Context, matchID uint, event string, payload interface{}) error
}

// NewEnvelope marshals the payload and wraps it for delivery.
func NewEnvelope(scope string, targetID uint, event string, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Scope:    scope,
		TargetID: targetID,
		Event:    event,
		Payload:  data,
	}, nil
}
