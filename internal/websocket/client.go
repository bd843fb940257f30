package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"spark-go/internal/config"
	"spark-go/internal/models"
	"spark-go/internal/realtime"

	"github.com/gorilla/websocket"
)

// 客户端发来的事件名。
const (
	clientEventJoinUser    = "joinUser"
	clientEventJoinMatch   = "joinMatch"
	clientEventLeaveMatch  = "leaveMatch"
	clientEventSendMessage = "sendMessage"
	clientEventTyping      = "typing"
)

// ClientEvent 是客户端发来的 JSON 信封。
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ServerEvent 是服务端推送给客户端的 JSON 信封。
type ServerEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinMatchData struct {
	MatchID uint `json:"matchId"`
}

type sendMessageData struct {
	MatchID uint   `json:"matchId"`
	Message string `json:"message"`
}

type typingData struct {
	MatchID  uint `json:"matchId"`
	IsTyping bool `json:"isTyping"`
}

// Callbacks 是 Client 处理入站事件所需的业务回调。
// 回调由 chatserver 注入，避免 websocket 包依赖具体服务实现。
type Callbacks struct {
	// AuthorizeMatch 校验用户是否是该配对的参与者（加入房间前调用）。
	AuthorizeMatch func(ctx context.Context, userID, matchID uint) error
	// SendMessage 持久化消息并触发分发，与 REST 路径共用同一逻辑。
	SendMessage func(ctx context.Context, userID, matchID uint, body string) (*models.Message, error)
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte

	// Authenticated User ID for this client.
	UserID uint

	callbacks Callbacks

	// 以下字段只在 Hub goroutine 中读写。
	joinedUser bool
	roomIDs    map[uint]struct{}
	closed     bool
}

// readPump pumps events from the websocket connection into the hub and
// the business callbacks.
func (c *Client) readPump(wsCfg config.WebSocketConfig) {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(int64(wsCfg.MaxMessageSizeBytes))
	c.conn.SetReadDeadline(time.Now().Add(time.Duration(wsCfg.PongWaitSeconds) * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(time.Duration(wsCfg.PongWaitSeconds) * time.Second))
		return nil
	})

	for {
		messageType, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket 错误 (客户端: %d): %v", c.UserID, err)
			}
			break
		}

		if messageType != websocket.TextMessage {
			log.Printf("警告: 客户端 %d 发送了非文本消息类型: %d", c.UserID, messageType)
			continue
		}

		var event ClientEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			log.Printf("错误: 无法反序列化来自客户端 %d 的事件: %v, 原始消息: %s", c.UserID, err, string(raw))
			continue
		}

		c.handleEvent(event)
	}
}

// handleEvent 分派一条客户端事件。订阅是显式的：连接建立本身
// 不加入任何通道，客户端必须逐个发送 join 事件。
func (c *Client) handleEvent(event ClientEvent) {
	ctx := context.Background()

	switch event.Event {
	case clientEventJoinUser:
		// 使用认证得到的 UserID，忽略客户端自报的ID
		c.hub.joinUser <- c

	case clientEventJoinMatch:
		var data joinMatchData
		if err := json.Unmarshal(event.Data, &data); err != nil || data.MatchID == 0 {
			log.Printf("错误: 客户端 %d 的 joinMatch 数据无效", c.UserID)
			return
		}
		if c.callbacks.AuthorizeMatch != nil {
			if err := c.callbacks.AuthorizeMatch(ctx, c.UserID, data.MatchID); err != nil {
				log.Printf("拒绝客户端 %d 加入配对房间 %d: %v", c.UserID, data.MatchID, err)
				return
			}
		}
		c.hub.joinRoom <- roomRequest{client: c, matchID: data.MatchID}

	case clientEventLeaveMatch:
		var data joinMatchData
		if err := json.Unmarshal(event.Data, &data); err != nil || data.MatchID == 0 {
			return
		}
		c.hub.leaveRoom <- roomRequest{client: c, matchID: data.MatchID}

	case clientEventSendMessage:
		var data sendMessageData
		if err := json.Unmarshal(event.Data, &data); err != nil || data.MatchID == 0 || data.Message == "" {
			log.Printf("错误: 客户端 %d 的 sendMessage 数据无效", c.UserID)
			return
		}
		if c.callbacks.SendMessage == nil {
			log.Printf("警告: Client %d 的 SendMessage 回调未初始化，消息未处理。", c.UserID)
			return
		}
		if _, err := c.callbacks.SendMessage(ctx, c.UserID, data.MatchID, data.Message); err != nil {
			log.Printf("错误: 客户端 %d 通过 WebSocket 发送消息失败: %v", c.UserID, err)
		}

	case clientEventTyping:
		var data typingData
		if err := json.Unmarshal(event.Data, &data); err != nil || data.MatchID == 0 {
			return
		}
		// typing 指示不持久化，直接在本 Hub 的房间内转发（不回显给自己）
		env, err := realtime.NewEnvelope(realtime.ScopeMatch, data.MatchID, realtime.EventUserTyping,
			realtime.TypingPayload{MatchID: data.MatchID, UserID: c.UserID, IsTyping: data.IsTyping})
		if err != nil {
			return
		}
		c.hub.deliverWith(env, c)

	default:
		log.Printf("收到未知类型的客户端事件: %s", event.Event)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump(wsCfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(wsCfg.PingPeriodSeconds) * time.Second)
	newlineBytes := []byte("\n")
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(time.Duration(wsCfg.WriteWaitSeconds) * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// 尝试聚合发送队列中的其他消息
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write(newlineBytes)
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(time.Duration(wsCfg.WriteWaitSeconds) * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWsPerConnection 处理来自对等方的 websocket 请求。
func ServeWsPerConnection(hub *Hub, callbacks Callbacks, userID uint, w http.ResponseWriter, r *http.Request, wsCfg config.WebSocketConfig) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("ServeWsPerConnection - Upgrade失败:", err)
		return
	}
	client := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, 256),
		UserID:    userID,
		callbacks: callbacks,
		roomIDs:   make(map[uint]struct{}),
	}

	go client.writePump(wsCfg)
	go client.readPump(wsCfg)

	log.Printf("客户端已连接: UserID %d", userID)
}
