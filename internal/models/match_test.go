package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureCanonicalOrderSwapsIDsAndFlags(t *testing.T) {
	m := &Match{UserID1: 9, UserID2: 3, User1Liked: true, User2Liked: false}
	m.EnsureCanonicalOrder()

	assert.Equal(t, uint(3), m.UserID1)
	assert.Equal(t, uint(9), m.UserID2)
	// 喜欢标志必须跟着用户一起交换
	assert.False(t, m.User1Liked)
	assert.True(t, m.User2Liked)
}

func TestEnsureCanonicalOrderNoopWhenOrdered(t *testing.T) {
	m := &Match{UserID1: 3, UserID2: 9, User1Liked: true}
	m.EnsureCanonicalOrder()

	assert.Equal(t, uint(3), m.UserID1)
	assert.Equal(t, uint(9), m.UserID2)
	assert.True(t, m.User1Liked)
}

func TestMatchParticipants(t *testing.T) {
	m := &Match{UserID1: 3, UserID2: 9}

	assert.True(t, m.HasParticipant(3))
	assert.True(t, m.HasParticipant(9))
	assert.False(t, m.HasParticipant(4))

	assert.Equal(t, uint(9), m.OtherParticipant(3))
	assert.Equal(t, uint(3), m.OtherParticipant(9))
}

func TestSetLikedOnlyTouchesOwnSide(t *testing.T) {
	m := &Match{UserID1: 3, UserID2: 9}

	m.SetLiked(3, true)
	assert.True(t, m.User1Liked)
	assert.False(t, m.User2Liked)

	m.SetLiked(9, true)
	assert.True(t, m.User2Liked)

	// 非参与者不会影响任何一侧
	m.SetLiked(4, false)
	assert.True(t, m.User1Liked)
	assert.True(t, m.User2Liked)
}

func TestUserHasLocation(t *testing.T) {
	u := &User{}
	assert.False(t, u.HasLocation())

	u.Longitude = 116.4
	u.Latitude = 39.9
	assert.True(t, u.HasLocation())

	// (0,0) 是未设置位置的哨兵值
	u.Longitude, u.Latitude = 0, 0
	assert.False(t, u.HasLocation())
}
