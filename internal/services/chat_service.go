package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"spark-go/internal/models"
	"spark-go/internal/realtime"
	"spark-go/internal/storage"
	"spark-go/internal/validate"
)

// ChatService 定义了配对内聊天相关的操作。
type ChatService interface {
	// SendMessage 向配对追加一条消息并推送实时事件。
	// 只有配对成功（isMatch=true）的双方才能互发消息。
	SendMessage(ctx context.Context, senderID, matchID uint, body string) (*models.Message, error)
	// ListMessages 返回配对的全部消息（按发送时间升序），并把发给
	// 调用者的未读消息标记为已读。
	ListMessages(ctx context.Context, userID, matchID uint) ([]*models.Message, error)
	// ListConversations 返回调用者的会话列表：有消息的会话按最新消息
	// 时间倒序排在前面，还没有消息的配对按记录创建时间倒序排在后面。
	ListConversations(ctx context.Context, userID uint) ([]*models.ConversationSummary, error)
}

type chatService struct {
	userRepo    storage.UserRepository
	matchRepo   storage.MatchRepository
	messageRepo storage.MessageRepository
	dispatcher  realtime.Dispatcher
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(userRepo storage.UserRepository, matchRepo storage.MatchRepository, messageRepo storage.MessageRepository, dispatcher realtime.Dispatcher) ChatService {
	return &chatService{
		userRepo:    userRepo,
		matchRepo:   matchRepo,
		messageRepo: messageRepo,
		dispatcher:  dispatcher,
	}
}

// requireMatchedParticipant 校验用户是该配对的参与者且双方已配对成功。
func (s *chatService) requireMatchedParticipant(ctx context.Context, matchID, userID uint) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return nil, ErrMatchNotFound
	}
	if !match.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	if !match.IsMatch {
		return nil, ErrNotMatched
	}
	return match, nil
}

// SendMessage 持久化消息后推送两个事件：发给接收方用户通道的
// newMessage，和发给配对房间的 messageReceived（房间内回显）。
func (s *chatService) SendMessage(ctx context.Context, senderID, matchID uint, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, validate.NewError("message", "消息内容不能为空")
	}

	match, err := s.requireMatchedParticipant(ctx, matchID, senderID)
	if err != nil {
		return nil, err
	}
	receiverID := match.OtherParticipant(senderID)

	message := &models.Message{
		MatchID:    matchID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Type:       models.TextMessageType,
		Body:       body,
		SentAt:     time.Now(),
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("保存消息失败: %w", err)
	}

	// 重新读取以带上发送者资料，事件负载与 REST 返回保持同一形状
	saved, err := s.messageRepo.GetByID(ctx, message.ID)
	if err != nil {
		log.Printf("警告: 重新读取消息 %d 失败: %v", message.ID, err)
		saved = message
	}

	s.notifyNewMessage(ctx, saved)
	return saved, nil
}

// notifyNewMessage 推送消息事件。投递失败只记录日志，消息已持久化。
func (s *chatService) notifyNewMessage(ctx context.Context, message *models.Message) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.NotifyUser(ctx, message.ReceiverID, realtime.EventNewMessage, message); err != nil {
		log.Printf("警告: 向用户 %d 推送新消息事件失败: %v", message.ReceiverID, err)
	}
	if err := s.dispatcher.NotifyMatch(ctx, message.MatchID, realtime.EventMessageReceived, message); err != nil {
		log.Printf("警告: 向配对房间 %d 推送消息回显事件失败: %v", message.MatchID, err)
	}
}

// ListMessages 先标记已读再取列表，返回的消息反映最新的已读状态。
func (s *chatService) ListMessages(ctx context.Context, userID, matchID uint) ([]*models.Message, error) {
	if _, err := s.requireMatchedParticipant(ctx, matchID, userID); err != nil {
		return nil, err
	}

	if err := s.messageRepo.MarkReadForReceiver(ctx, matchID, userID); err != nil {
		return nil, fmt.Errorf("标记消息已读失败: %w", err)
	}

	messages, err := s.messageRepo.ListByMatchID(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("查询消息列表失败: %w", err)
	}
	return messages, nil
}

// ListConversations 组装会话列表。
func (s *chatService) ListConversations(ctx context.Context, userID uint) ([]*models.ConversationSummary, error) {
	matches, err := s.matchRepo.ListMatchedByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询配对列表失败: %w", err)
	}

	otherIDs := make([]uint, 0, len(matches))
	for _, m := range matches {
		otherIDs = append(otherIDs, m.OtherParticipant(userID))
	}
	infos, err := s.userRepo.GetMultiplePublicInfoByIDs(ctx, otherIDs)
	if err != nil {
		return nil, fmt.Errorf("查询对方资料失败: %w", err)
	}
	infoByID := make(map[uint]*models.UserPublicInfo, len(infos))
	for _, info := range infos {
		infoByID[info.ID] = info
	}

	summaries := make([]*models.ConversationSummary, 0, len(matches))
	createdAtByID := make(map[uint]time.Time, len(matches))
	for _, m := range matches {
		info, ok := infoByID[m.OtherParticipant(userID)]
		if !ok {
			continue
		}

		latest, err := s.messageRepo.LatestByMatchID(ctx, m.ID)
		if err != nil {
			return nil, fmt.Errorf("查询最新消息失败: %w", err)
		}
		unread, err := s.messageRepo.CountUnread(ctx, m.ID, userID)
		if err != nil {
			return nil, fmt.Errorf("统计未读消息失败: %w", err)
		}

		matchedAt := m.CreatedAt
		if m.MatchedAt != nil {
			matchedAt = *m.MatchedAt
		}
		createdAtByID[m.ID] = m.CreatedAt
		summaries = append(summaries, &models.ConversationSummary{
			MatchID:       m.ID,
			User:          info,
			LatestMessage: latest,
			UnreadCount:   unread,
			MatchedAt:     matchedAt,
		})
	}

	// 有消息的会话按最新消息时间倒序在前；没有消息的排在后面，
	// 按配对记录的创建时间倒序（不是双方互相喜欢的时间）
	sort.SliceStable(summaries, func(i, j int) bool {
		li, lj := summaries[i].LatestMessage, summaries[j].LatestMessage
		switch {
		case li != nil && lj != nil:
			return li.SentAt.After(lj.SentAt)
		case li != nil:
			return true
		case lj != nil:
			return false
		default:
			return createdAtByID[summaries[i].MatchID].After(createdAtByID[summaries[j].MatchID])
		}
	})
	return summaries, nil
}
