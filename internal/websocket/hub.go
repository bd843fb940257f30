package websocket

import (
	"encoding/json"
	"log"

	"spark-go/internal/realtime"
)

// roomRequest 表示客户端加入/离开某个配对房间的请求。
type roomRequest struct {
	client  *Client
	matchID uint
}

// deliverRequest 表示一次投递：信封 + 可选的排除连接（如 typing 不回显给自己）。
type deliverRequest struct {
	envelope *realtime.Envelope
	exclude  *Client
}

// Hub maintains the set of active clients and routes realtime envelopes
// to them. 一个用户可以有多个同时在线的连接；用户通道和配对房间
// 都是显式加入的，连接建立本身不订阅任何东西。
type Hub struct {
	// 用户通道订阅：UserID -> 该用户的所有连接
	clients map[uint]map[*Client]struct{}

	// 配对房间订阅：MatchID -> 加入了该房间的连接
	rooms map[uint]map[*Client]struct{}

	joinUser  chan *Client
	joinRoom  chan roomRequest
	leaveRoom chan roomRequest

	// Unregister requests from clients.
	unregister chan *Client

	deliver chan deliverRequest
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uint]map[*Client]struct{}),
		rooms:      make(map[uint]map[*Client]struct{}),
		joinUser:   make(chan *Client),
		joinRoom:   make(chan roomRequest),
		leaveRoom:  make(chan roomRequest),
		unregister: make(chan *Client),
		deliver:    make(chan deliverRequest, 256),
	}
}

// Deliver hands an envelope to the hub for best-effort delivery.
// 非阻塞：通道满时丢弃事件（状态已持久化，客户端下次拉取可恢复）。
func (h *Hub) Deliver(env *realtime.Envelope) {
	h.deliverWith(env, nil)
}

func (h *Hub) deliverWith(env *realtime.Envelope, exclude *Client) {
	select {
	case h.deliver <- deliverRequest{envelope: env, exclude: exclude}:
	default:
		log.Printf("警告: Hub deliver 通道已满，丢弃事件 %s (scope=%s, target=%d)", env.Event, env.Scope, env.TargetID)
	}
}

// Run starts the hub and listens for messages on its channels.
func (h *Hub) Run() {
	log.Println("WebSocket Hub Run loop started.")
	for {
		select {
		case client := <-h.joinUser:
			if h.clients[client.UserID] == nil {
				h.clients[client.UserID] = make(map[*Client]struct{})
			}
			h.clients[client.UserID][client] = struct{}{}
			client.joinedUser = true
			log.Printf("客户端已加入用户通道: UserID %d (当前连接数 %d)", client.UserID, len(h.clients[client.UserID]))

		case req := <-h.joinRoom:
			if h.rooms[req.matchID] == nil {
				h.rooms[req.matchID] = make(map[*Client]struct{})
			}
			h.rooms[req.matchID][req.client] = struct{}{}
			req.client.roomIDs[req.matchID] = struct{}{}
			log.Printf("客户端已加入配对房间: UserID %d, MatchID %d", req.client.UserID, req.matchID)

		case req := <-h.leaveRoom:
			h.removeFromRoom(req.client, req.matchID)

		case client := <-h.unregister:
			h.removeClient(client)

		case req := <-h.deliver:
			h.route(req)
		}
	}
}

// removeClient 注销一个连接：退出用户通道和它加入的所有房间。
func (h *Hub) removeClient(client *Client) {
	if conns, ok := h.clients[client.UserID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.clients, client.UserID)
		}
	}
	for matchID := range client.roomIDs {
		h.removeFromRoom(client, matchID)
	}
	// closed 只在 Hub goroutine 中读写，保证发送通道只关闭一次
	if !client.closed {
		client.closed = true
		close(client.send)
		log.Printf("客户端已注销: UserID %d", client.UserID)
	}
}

func (h *Hub) removeFromRoom(client *Client, matchID uint) {
	if room, ok := h.rooms[matchID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, matchID)
		}
	}
	delete(client.roomIDs, matchID)
}

// route 按信封的范围把事件发给目标连接。
func (h *Hub) route(req deliverRequest) {
	env := req.envelope

	frame, err := json.Marshal(ServerEvent{Event: env.Event, Data: env.Payload})
	if err != nil {
		log.Printf("错误: 无法序列化服务端事件 %s: %v", env.Event, err)
		return
	}

	var targets map[*Client]struct{}
	switch env.Scope {
	case realtime.ScopeUser:
		targets = h.clients[env.TargetID]
	case realtime.ScopeMatch:
		targets = h.rooms[env.TargetID]
	default:
		log.Printf("错误: 未知的投递范围: %s", env.Scope)
		return
	}

	// 目标不在线：直接丢弃（尽力而为投递）
	for client := range targets {
		if client == req.exclude {
			continue
		}
		select {
		case client.send <- frame:
		default:
			// 发送缓冲已满，认为客户端过慢或已断开，移除该连接
			log.Printf("警告: UserID %d 的发送通道已满，移除客户端。", client.UserID)
			h.removeClient(client)
		}
	}
}
