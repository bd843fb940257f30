package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spark-go/internal/config"
	"spark-go/internal/models"
	"spark-go/internal/realtime"
)

func discoveryConfig() config.DiscoveryConfig {
	return config.DiscoveryConfig{PageSize: 10, CandidateBatch: 200, MinAge: 18, MaxAge: 100}
}

var emailSeq atomic.Uint64

func completedUser(id uint, gender, lookingFor models.Gender, age int, lon, lat float64) *models.User {
	return &models.User{
		BaseModel:  models.BaseModel{ID: id},
		Email:      fmt.Sprintf("user%d@example.com", emailSeq.Add(1)),
		Name:       "用户",
		Age:        age,
		Gender:     gender,
		LookingFor: lookingFor,
		Bio:        "你好",
		Interests:  models.StringList{"climbing"},
		Longitude:  lon,
		Latitude:   lat,
		Preferences: models.Preferences{
			MinAge:        18,
			MaxAge:        50,
			MaxDistanceKm: 100,
		},
		ProfileStep:      4,
		ProfileCompleted: true,
	}
}

func TestDiscoverRequiresCompletedProfile(t *testing.T) {
	userRepo := newFakeUserRepo()
	matchRepo := newFakeMatchRepo()
	svc := NewMatchService(userRepo, matchRepo, &fakeDispatcher{}, discoveryConfig())

	incomplete := completedUser(0, models.GenderMale, models.GenderFemale, 30, 0, 0)
	incomplete.ProfileStep = 2
	incomplete.ProfileCompleted = false
	require.NoError(t, userRepo.Create(context.Background(), incomplete))

	_, err := svc.Discover(context.Background(), incomplete.ID)
	pie, ok := IsProfileIncomplete(err)
	require.True(t, ok, "expected ProfileIncompleteError, got %v", err)
	assert.Equal(t, 3, pie.Step)
}

func TestDiscoverExcludesSelfAndEvaluatedUsers(t *testing.T) {
	userRepo := newFakeUserRepo()
	matchRepo := newFakeMatchRepo()
	svc := NewMatchService(userRepo, matchRepo, &fakeDispatcher{}, discoveryConfig())

	me := completedUser(0, models.GenderMale, models.GenderFemale, 30, 0, 0)
	seen := completedUser(0, models.GenderFemale, models.GenderMale, 28, 0, 0)
	fresh := completedUser(0, models.GenderFemale, models.GenderMale, 26, 0, 0)
	for _, u := range []*models.User{me, seen, fresh} {
		require.NoError(t, userRepo.Create(context.Background(), u))
	}

	// 已经和 seen 有过一条配对记录（无论滑动结果），不应再出现
	matchRepo.put(&models.Match{UserID1: me.ID, UserID2: seen.ID, User1Liked: true})

	result, err := svc.Discover(context.Background(), me.ID)
	require.NoError(t, err)

	require.Len(t, result.Matches, 1)
	assert.Equal(t, fresh.ID, result.Matches[0].ID)
	assert.False(t, result.HasMore)
}

func TestDiscoverOrdersByDistanceAndFiltersByMaxDistance(t *testing.T) {
	userRepo := newFakeUserRepo()
	matchRepo := newFakeMatchRepo()
	svc := NewMatchService(userRepo, matchRepo, &fakeDispatcher{}, discoveryConfig())

	// 北京市中心附近
	me := completedUser(0, models.GenderMale, models.GenderFemale, 30, 116.40, 39.90)
	near := completedUser(0, models.GenderFemale, models.GenderMale, 28, 116.45, 39.92)   // 几公里
	far := completedUser(0, models.GenderFemale, models.GenderMale, 27, 116.90, 40.20)    // 几十公里
	remote := completedUser(0, models.GenderFemale, models.GenderMale, 26, 121.47, 31.23) // 上海，超出 100km
	for _, u := range []*models.User{me, near, far, remote} {
		require.NoError(t, userRepo.Create(context.Background(), u))
	}

	result, err := svc.Discover(context.Background(), me.ID)
	require.NoError(t, err)

	require.Len(t, result.Matches, 2)
	assert.Equal(t, near.ID, result.Matches[0].ID)
	assert.Equal(t, far.ID, result.Matches[1].ID)
	assert.LessOrEqual(t, result.Matches[0].DistanceKm, result.Matches[1].DistanceKm)
}

func TestDiscoverPaginatesAndReportsHasMore(t *testing.T) {
	userRepo := newFakeUserRepo()
	matchRepo := newFakeMatchRepo()
	cfg := discoveryConfig()
	cfg.PageSize = 3
	svc := NewMatchService(userRepo, matchRepo, &fakeDispatcher{}, cfg)

	me := completedUser(0, models.GenderMale, models.GenderFemale, 30, 0, 0)
	require.NoError(t, userRepo.Create(context.Background(), me))
	for i := 0; i < 5; i++ {
		cand := completedUser(0, models.GenderFemale, models.GenderMale, 25+i, 0, 0)
		require.NoError(t, userRepo.Create(context.Background(), cand))
	}

	result, err := svc.Discover(context.Background(), me.ID)
	require.NoError(t, err)
	assert.Len(t, result.Matches, 3)
	assert.True(t, result.HasMore)
}

func TestDiscoverReportsHasMoreOnExactlyFullPage(t *testing.T) {
	userRepo := newFakeUserRepo()
	matchRepo := newFakeMatchRepo()
	cfg := discoveryConfig()
	cfg.PageSize = 3
	svc := NewMatchService(userRepo, matchRepo, &fakeDispatcher{}, cfg)

	me := completedUser(0, models.GenderMale, models.GenderFemale, 30, 0, 0)
	require.NoError(t, userRepo.Create(context.Background(), me))
	for i := 0; i < 3; i++ {
		cand := completedUser(0, models.GenderFemale, models.GenderMale, 25+i, 0, 0)
		require.NoError(t, userRepo.Create(context.Background(), cand))
	}

	// 刚好满一页也要报告 hasMore，让客户端再请求一次确认没有更多
	result, err := svc.Discover(context.Background(), me.ID)
	require.NoError(t, err)
	assert.Len(t, result.Matches, 3)
	assert.True(t, result.HasMore)
}

func TestDiscoverReportsNoMoreOnPartialPage(t *testing.T) {
	userRepo := newFakeUserRepo()
	matchRepo := newFakeMatchRepo()
	cfg := discoveryConfig()
	cfg.PageSize = 3
	svc := NewMatchService(userRepo, matchRepo, &fakeDispatcher{}, cfg)

	me := completedUser(0, models.GenderMale, models.GenderFemale, 30, 0, 0)
	cand := completedUser(0, models.GenderFemale, models.GenderMale, 25, 0, 0)
	require.NoError(t, userRepo.Create(context.Background(), me))
	require.NoError(t, userRepo.Create(context.Background(), cand))

	result, err := svc.Discover(context.Background(), me.ID)
	require.NoError(t, err)
	assert.Len(t, result.Matches, 1)
	assert.False(t, result.HasMore)
}

func TestSwipeMutualLikeCreatesSingleMatch(t *testing.T) {
	userRepo := newFakeUserRepo()
	matchRepo := newFakeMatchRepo()
	dispatcher := &fakeDispatcher{}
	svc := NewMatchService(userRepo, matchRepo, dispatcher, discoveryConfig())

	alice := completedUser(0, models.GenderFemale, models.GenderMale, 28, 0, 0)
	bob := completedUser(0, models.GenderMale, models.GenderFemale, 30, 0, 0)
	require.NoError(t, userRepo.Create(context.Background(), alice))
	require.NoError(t, userRepo.Create(context.Background(), bob))

	first, err := svc.Swipe(context.Background(), alice.ID, bob.ID, true)
	require.NoError(t, err)
	assert.False(t, first.IsMatch)
	assert.Empty(t, dispatcher.eventsNamed(realtime.EventNewMatch))

	second, err := svc.Swipe(context.Background(), bob.ID, alice.ID, true)
	require.NoError(t, err)
	assert.True(t, second.IsMatch)
	assert.Equal(t, first.MatchID, second.MatchID)
	require.Len(t, matchRepo.matches, 1)

	// 配对成功事件只在发生转变的那次滑动推送，双方各一条
	assert.Len(t, dispatcher.eventsNamed(realtime.EventNewMatch), 2)

	// 之后的重复滑动既不再报告配对，也不再推送事件
	again, err := svc.Swipe(context.Background(), alice.ID, bob.ID, true)
	require.NoError(t, err)
	assert.False(t, again.IsMatch)
	assert.Len(t, dispatcher.eventsNamed(realtime.EventNewMatch), 2)
}

func TestSwipePassRecordsWithoutMatching(t *testing.T) {
	userRepo := newFakeUserRepo()
	matchRepo := newFakeMatchRepo()
	dispatcher := &fakeDispatcher{}
	svc := NewMatchService(userRepo, matchRepo, dispatcher, discoveryConfig())

	alice := completedUser(0, models.GenderFemale, models.GenderMale, 28, 0, 0)
	bob := completedUser(0, models.GenderMale, models.GenderFemale, 30, 0, 0)
	require.NoError(t, userRepo.Create(context.Background(), alice))
	require.NoError(t, userRepo.Create(context.Background(), bob))

	_, err := svc.Swipe(context.Background(), alice.ID, bob.ID, false)
	require.NoError(t, err)
	result, err := svc.Swipe(context.Background(), bob.ID, alice.ID, true)
	require.NoError(t, err)

	assert.False(t, result.IsMatch)
	assert.Empty(t, dispatcher.eventsNamed(realtime.EventNewMatch))

	// 评估过的对方进入排除集，双方的发现结果都不再包含彼此
	ids, err := matchRepo.CounterpartIDs(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{bob.ID}, ids)
}

func TestSwipeRejectsSelfAndUnknownTarget(t *testing.T) {
	userRepo := newFakeUserRepo()
	matchRepo := newFakeMatchRepo()
	svc := NewMatchService(userRepo, matchRepo, &fakeDispatcher{}, discoveryConfig())

	me := completedUser(0, models.GenderMale, models.GenderFemale, 30, 0, 0)
	require.NoError(t, userRepo.Create(context.Background(), me))

	_, err := svc.Swipe(context.Background(), me.ID, me.ID, true)
	assert.ErrorIs(t, err, ErrSwipeSelf)

	_, err = svc.Swipe(context.Background(), me.ID, 999, true)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Empty(t, matchRepo.matches)
}

func TestApplySwipeMatchesOnlyOnMutualLike(t *testing.T) {
	match := &models.Match{UserID1: 1, UserID2: 2}

	assert.False(t, applySwipe(match, 1, true))
	assert.True(t, match.User1Liked)
	assert.False(t, match.IsMatch)
	assert.Nil(t, match.MatchedAt)

	assert.True(t, applySwipe(match, 2, true))
	assert.True(t, match.IsMatch)
	require.NotNil(t, match.MatchedAt)

	// 重复滑动不再触发配对事件，IsMatch 不回退
	assert.False(t, applySwipe(match, 1, true))
	assert.False(t, applySwipe(match, 2, false))
	assert.True(t, match.IsMatch)
}

func TestApplySwipeRejectionNeverMatches(t *testing.T) {
	match := &models.Match{UserID1: 1, UserID2: 2}

	assert.False(t, applySwipe(match, 1, false))
	assert.False(t, applySwipe(match, 2, true))
	assert.False(t, match.IsMatch)
	assert.Nil(t, match.MatchedAt)
}

func TestNotifyNewMatchReachesBothUsers(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	svc := &matchService{dispatcher: dispatcher}

	svc.notifyNewMatch(context.Background(), 7, 1, 2)

	events := dispatcher.eventsNamed(realtime.EventNewMatch)
	require.Len(t, events, 2)
	targets := []uint{events[0].TargetID, events[1].TargetID}
	assert.ElementsMatch(t, []uint{1, 2}, targets)
	for _, e := range events {
		assert.Equal(t, realtime.ScopeUser, e.Scope)
	}
}

func TestListMatchesReturnsCounterpartProfiles(t *testing.T) {
	userRepo := newFakeUserRepo()
	matchRepo := newFakeMatchRepo()
	svc := NewMatchService(userRepo, matchRepo, &fakeDispatcher{}, discoveryConfig())

	me := completedUser(0, models.GenderMale, models.GenderFemale, 30, 0, 0)
	other := completedUser(0, models.GenderFemale, models.GenderMale, 28, 0, 0)
	pending := completedUser(0, models.GenderFemale, models.GenderMale, 27, 0, 0)
	for _, u := range []*models.User{me, other, pending} {
		require.NoError(t, userRepo.Create(context.Background(), u))
	}

	matched := matchRepo.put(&models.Match{UserID1: me.ID, UserID2: other.ID, User1Liked: true, User2Liked: true, IsMatch: true})
	// 单方喜欢的记录不应出现在配对列表中
	matchRepo.put(&models.Match{UserID1: me.ID, UserID2: pending.ID, User1Liked: true})

	matches, err := svc.ListMatches(context.Background(), me.ID)
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, matched.ID, matches[0].MatchID)
	assert.Equal(t, other.ID, matches[0].User.ID)
}

func TestAuthorizeParticipant(t *testing.T) {
	userRepo := newFakeUserRepo()
	matchRepo := newFakeMatchRepo()
	svc := NewMatchService(userRepo, matchRepo, &fakeDispatcher{}, discoveryConfig())

	match := matchRepo.put(&models.Match{UserID1: 1, UserID2: 2, IsMatch: true})

	got, err := svc.AuthorizeParticipant(context.Background(), match.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, match.ID, got.ID)

	_, err = svc.AuthorizeParticipant(context.Background(), match.ID, 99)
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = svc.AuthorizeParticipant(context.Background(), 12345, 1)
	assert.ErrorIs(t, err, ErrMatchNotFound)
}
