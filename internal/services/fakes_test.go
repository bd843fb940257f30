package services

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"gorm.io/gorm"

	"spark-go/internal/models"
	"spark-go/internal/realtime"
)

// 测试用的内存版仓库实现。只覆盖服务层实际调用的路径，
// 不触发事务的方法可以直接使用。

type fakeUserRepo struct {
	users  map[uint]*models.User
	nextID uint
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uint]*models.User), nextID: 1}
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	for _, u := range r.users {
		if u.Email == user.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	user.ID = r.nextID
	user.CreatedAt = time.Now()
	r.nextID++
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uint) (*models.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) Update(_ context.Context, user *models.User) error {
	if _, ok := r.users[user.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) FindCandidates(_ context.Context, user *models.User, excludedIDs []uint, limit int) ([]models.User, error) {
	excluded := make(map[uint]struct{}, len(excludedIDs))
	for _, id := range excludedIDs {
		excluded[id] = struct{}{}
	}

	prefs := user.Preferences
	var out []models.User
	for _, cand := range r.users {
		if _, skip := excluded[cand.ID]; skip {
			continue
		}
		if !cand.ProfileCompleted {
			continue
		}
		if cand.Age < prefs.MinAge || cand.Age > prefs.MaxAge {
			continue
		}
		if cand.Gender != user.LookingFor || cand.LookingFor != user.Gender {
			continue
		}
		if prefs.NoSmoking && cand.Smoking {
			continue
		}
		if prefs.NoDrugs && cand.Drugs {
			continue
		}
		if prefs.WantsChildren && !cand.WantsKids {
			continue
		}
		if prefs.ReligionMatters && user.Religion != "" && cand.Religion != user.Religion {
			continue
		}
		out = append(out, *cand)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeUserRepo) GetPublicInfoByID(ctx context.Context, id uint) (*models.UserPublicInfo, error) {
	user, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.PublicInfo(), nil
}

func (r *fakeUserRepo) GetMultiplePublicInfoByIDs(_ context.Context, userIDs []uint) ([]*models.UserPublicInfo, error) {
	var infos []*models.UserPublicInfo
	for _, id := range userIDs {
		if user, ok := r.users[id]; ok {
			infos = append(infos, user.PublicInfo())
		}
	}
	return infos, nil
}

func (r *fakeUserRepo) GetDB() *gorm.DB { return nil }

type fakeMatchRepo struct {
	matches map[uint]*models.Match
	nextID  uint
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{matches: make(map[uint]*models.Match), nextID: 1}
}

func (r *fakeMatchRepo) put(match *models.Match) *models.Match {
	match.EnsureCanonicalOrder()
	if match.ID == 0 {
		match.ID = r.nextID
		r.nextID++
	}
	if match.CreatedAt.IsZero() {
		match.CreatedAt = time.Now()
	}
	copied := *match
	r.matches[match.ID] = &copied
	return match
}

func (r *fakeMatchRepo) GetByID(_ context.Context, id uint) (*models.Match, error) {
	match, ok := r.matches[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *match
	return &copied, nil
}

func (r *fakeMatchRepo) FindOrCreatePairWithTx(_ context.Context, _ *gorm.DB, userIDA, userIDB uint) (*models.Match, error) {
	id1, id2 := userIDA, userIDB
	if id1 > id2 {
		id1, id2 = id2, id1
	}
	for _, m := range r.matches {
		if m.UserID1 == id1 && m.UserID2 == id2 {
			copied := *m
			return &copied, nil
		}
	}
	return r.put(&models.Match{UserID1: id1, UserID2: id2}), nil
}

func (r *fakeMatchRepo) SaveWithTx(_ context.Context, _ *gorm.DB, match *models.Match) error {
	r.put(match)
	return nil
}

func (r *fakeMatchRepo) CounterpartIDs(_ context.Context, userID uint) ([]uint, error) {
	var ids []uint
	for _, m := range r.matches {
		if m.HasParticipant(userID) {
			ids = append(ids, m.OtherParticipant(userID))
		}
	}
	return ids, nil
}

func (r *fakeMatchRepo) ListMatchedByUser(_ context.Context, userID uint) ([]*models.Match, error) {
	var out []*models.Match
	for _, m := range r.matches {
		if m.IsMatch && m.HasParticipant(userID) {
			copied := *m
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Transaction 直接执行 fn：内存实现没有真正的事务，fn 里的仓库
// 方法会忽略传入的 nil 事务句柄。
func (r *fakeMatchRepo) Transaction(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeMessageRepo struct {
	messages map[uint]*models.Message
	nextID   uint
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[uint]*models.Message), nextID: 1}
}

func (r *fakeMessageRepo) Create(_ context.Context, message *models.Message) error {
	message.ID = r.nextID
	message.CreatedAt = time.Now()
	r.nextID++
	copied := *message
	r.messages[message.ID] = &copied
	return nil
}

func (r *fakeMessageRepo) GetByID(_ context.Context, id uint) (*models.Message, error) {
	message, ok := r.messages[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *message
	return &copied, nil
}

func (r *fakeMessageRepo) ListByMatchID(_ context.Context, matchID uint) ([]*models.Message, error) {
	var out []*models.Message
	for _, m := range r.messages {
		if m.MatchID == matchID {
			copied := *m
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SentAt.Equal(out[j].SentAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SentAt.Before(out[j].SentAt)
	})
	return out, nil
}

func (r *fakeMessageRepo) MarkReadForReceiver(_ context.Context, matchID uint, receiverID uint) error {
	for _, m := range r.messages {
		if m.MatchID == matchID && m.ReceiverID == receiverID && !m.IsRead {
			m.IsRead = true
		}
	}
	return nil
}

func (r *fakeMessageRepo) LatestByMatchID(_ context.Context, matchID uint) (*models.Message, error) {
	var latest *models.Message
	for _, m := range r.messages {
		if m.MatchID != matchID {
			continue
		}
		if latest == nil || m.SentAt.After(latest.SentAt) {
			latest = m
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (r *fakeMessageRepo) CountUnread(_ context.Context, matchID uint, receiverID uint) (int64, error) {
	var count int64
	for _, m := range r.messages {
		if m.MatchID == matchID && m.ReceiverID == receiverID && !m.IsRead {
			count++
		}
	}
	return count, nil
}

// recordedEvent 记录一次分发调用，供断言使用。
type recordedEvent struct {
	Scope    string
	TargetID uint
	Event    string
	Payload  json.RawMessage
}

type fakeDispatcher struct {
	events []recordedEvent
}

func (d *fakeDispatcher) NotifyUser(_ context.Context, userID uint, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	d.events = append(d.events, recordedEvent{Scope: realtime.ScopeUser, TargetID: userID, Event: event, Payload: data})
	return nil
}

func (d *fakeDispatcher) NotifyMatch(_ context.Context, matchID uint, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	d.events = append(d.events, recordedEvent{Scope: realtime.ScopeMatch, TargetID: matchID, Event: event, Payload: data})
	return nil
}

func (d *fakeDispatcher) eventsNamed(name string) []recordedEvent {
	var out []recordedEvent
	for _, e := range d.events {
		if e.Event == name {
			out = append(out, e)
		}
	}
	return out
}

type fakeBlacklist struct {
	revoked map[string]time.Time
}

func newFakeBlacklist() *fakeBlacklist {
	return &fakeBlacklist{revoked: make(map[string]time.Time)}
}

func (b *fakeBlacklist) Add(_ context.Context, jti string, exp time.Time) error {
	b.revoked[jti] = exp
	return nil
}

func (b *fakeBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	_, ok := b.revoked[jti]
	return ok, nil
}
