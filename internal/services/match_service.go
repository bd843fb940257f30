package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"gorm.io/gorm"

	"spark-go/internal/config"
	"spark-go/internal/geo"
	"spark-go/internal/models"
	"spark-go/internal/realtime"
	"spark-go/internal/storage"
)

// CandidateCard 是发现流程返回的候选人卡片。
type CandidateCard struct {
	*models.UserPublicInfo
	// DistanceKm 是与当前用户的距离（整公里）；双方任一方未设置
	// 位置时为 -1。
	DistanceKm float64 `json:"distanceKm"`
}

// DiscoverResult 是一页发现结果。
type DiscoverResult struct {
	Matches []*CandidateCard `json:"matches"`
	HasMore bool             `json:"hasMore"`
}

// SwipeResult 是一次滑动的结果。
type SwipeResult struct {
	MatchID uint `json:"matchId"`
	// IsMatch 仅在这次滑动使双方配对成功时为 true。
	IsMatch bool `json:"isMatch"`
}

// MatchService 定义了发现与配对相关的操作。
type MatchService interface {
	// Discover 返回一页候选人。资料未完善时返回 *ProfileIncompleteError。
	Discover(ctx context.Context, userID uint) (*DiscoverResult, error)
	// Swipe 记录一次喜欢/跳过。只有当这次滑动使双方从"未配对"变为
	// "配对成功"时 IsMatch 才为 true，重复滑动不会再次触发。
	Swipe(ctx context.Context, userID, targetID uint, liked bool) (*SwipeResult, error)
	// ListMatches 返回用户所有成功配对及对方的公开资料，按配对时间倒序。
	ListMatches(ctx context.Context, userID uint) ([]*models.MatchWithUser, error)
	// AuthorizeParticipant 校验用户是该配对的参与者，返回配对记录。
	AuthorizeParticipant(ctx context.Context, matchID, userID uint) (*models.Match, error)
}

type matchService struct {
	userRepo   storage.UserRepository
	matchRepo  storage.MatchRepository
	dispatcher realtime.Dispatcher
	discovery  config.DiscoveryConfig
}

// NewMatchService 创建一个新的 MatchService 实例。
func NewMatchService(userRepo storage.UserRepository, matchRepo storage.MatchRepository, dispatcher realtime.Dispatcher, discovery config.DiscoveryConfig) MatchService {
	return &matchService{
		userRepo:   userRepo,
		matchRepo:  matchRepo,
		dispatcher: dispatcher,
		discovery:  discovery,
	}
}

// Discover 组装一页候选人：SQL 预过滤 + 服务层地理排序。
func (s *matchService) Discover(ctx context.Context, userID uint) (*DiscoverResult, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	if !user.ProfileCompleted {
		return nil, &ProfileIncompleteError{Step: user.ProfileStep + 1}
	}

	// 排除集：自己 + 所有已评估过的用户（无论滑动结果如何）
	counterparts, err := s.matchRepo.CounterpartIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询排除集失败: %w", err)
	}
	excluded := append(counterparts, userID)

	candidates, err := s.userRepo.FindCandidates(ctx, user, excluded, s.discovery.CandidateBatch)
	if err != nil {
		return nil, fmt.Errorf("查询候选人失败: %w", err)
	}

	cards := s.rankByDistance(user, candidates)

	// 满页即报告 hasMore：调用方滑完这一页后重新请求，排除集
	// 已经更新，空页自然终止。距离过滤把一批候选人削减到不足一页
	// 时也同样依赖下一次请求兜底。
	pageSize := s.discovery.PageSize
	hasMore := len(cards) >= pageSize
	if len(cards) > pageSize {
		cards = cards[:pageSize]
	}
	return &DiscoverResult{Matches: cards, HasMore: hasMore}, nil
}

// rankByDistance 过滤超出最大距离的候选人并按距离升序排列。
// 未设置位置的候选人不参与距离过滤，排在有位置的候选人之后。
func (s *matchService) rankByDistance(user *models.User, candidates []models.User) []*CandidateCard {
	maxDistance := float64(user.Preferences.MaxDistanceKm)

	cards := make([]*CandidateCard, 0, len(candidates))
	for i := range candidates {
		cand := &candidates[i]
		distance := -1.0
		if user.HasLocation() && cand.HasLocation() {
			distance = math.Trunc(geo.DistanceKm(user.Latitude, user.Longitude, cand.Latitude, cand.Longitude))
			if distance > maxDistance {
				continue
			}
		}
		cards = append(cards, &CandidateCard{
			UserPublicInfo: cand.PublicInfo(),
			DistanceKm:     distance,
		})
	}

	sort.SliceStable(cards, func(i, j int) bool {
		di, dj := cards[i].DistanceKm, cards[j].DistanceKm
		if di < 0 {
			return false
		}
		if dj < 0 {
			return true
		}
		return di < dj
	})
	return cards
}

// Swipe 在一个事务中定位或创建配对记录并写入自己一侧的喜欢标志。
func (s *matchService) Swipe(ctx context.Context, userID, targetID uint, liked bool) (*SwipeResult, error) {
	if userID == targetID {
		return nil, ErrSwipeSelf
	}
	if _, err := s.userRepo.GetByID(ctx, targetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("查询目标用户失败: %w", err)
	}

	var (
		matchID     uint
		becameMatch bool
	)
	err := s.matchRepo.Transaction(ctx, func(tx *gorm.DB) error {
		match, err := s.matchRepo.FindOrCreatePairWithTx(ctx, tx, userID, targetID)
		if err != nil {
			return err
		}

		becameMatch = applySwipe(match, userID, liked)

		if err := s.matchRepo.SaveWithTx(ctx, tx, match); err != nil {
			return fmt.Errorf("保存配对记录失败: %w", err)
		}
		matchID = match.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	if becameMatch {
		s.notifyNewMatch(ctx, matchID, userID, targetID)
	}

	return &SwipeResult{MatchID: matchID, IsMatch: becameMatch}, nil
}

// applySwipe 把一次滑动写入配对记录自己的一侧。返回值仅在这次滑动
// 使记录从"未配对"变为"配对成功"时为 true：IsMatch 是单向的，之后的
// 重复滑动（包括取消喜欢）不会回退，也不会再次触发配对事件。
func applySwipe(match *models.Match, userID uint, liked bool) bool {
	match.SetLiked(userID, liked)

	if !match.IsMatch && match.User1Liked && match.User2Liked {
		now := time.Now()
		match.IsMatch = true
		match.MatchedAt = &now
		return true
	}
	return false
}

// notifyNewMatch 向双方的用户通道推送配对成功事件。
// 投递是尽力而为的：失败只记录日志，绝不影响滑动结果。
func (s *matchService) notifyNewMatch(ctx context.Context, matchID, userID, targetID uint) {
	if s.dispatcher == nil {
		return
	}
	pairs := []struct{ to, other uint }{
		{to: userID, other: targetID},
		{to: targetID, other: userID},
	}
	for _, p := range pairs {
		payload := realtime.NewMatchPayload{MatchID: matchID, UserID: p.other}
		if err := s.dispatcher.NotifyUser(ctx, p.to, realtime.EventNewMatch, payload); err != nil {
			log.Printf("警告: 向用户 %d 推送配对成功事件失败: %v", p.to, err)
		}
	}
}

// ListMatches 返回配对列表，附带对方的公开资料。
func (s *matchService) ListMatches(ctx context.Context, userID uint) ([]*models.MatchWithUser, error) {
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

	result := make([]*models.MatchWithUser, 0, len(matches))
	for _, m := range matches {
		otherID := m.OtherParticipant(userID)
		info, ok := infoByID[otherID]
		if !ok {
			// 对方账号已被删除，跳过该配对
			continue
		}
		matchedAt := m.CreatedAt
		if m.MatchedAt != nil {
			matchedAt = *m.MatchedAt
		}
		result = append(result, &models.MatchWithUser{
			MatchID:   m.ID,
			User:      info,
			MatchedAt: matchedAt,
		})
	}
	return result, nil
}

// AuthorizeParticipant 是聊天与 WebSocket 路径共用的访问控制检查。
func (s *matchService) AuthorizeParticipant(ctx context.Context, matchID, userID uint) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("查询配对记录失败: %w", err)
	}
	if !match.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return match, nil
}
