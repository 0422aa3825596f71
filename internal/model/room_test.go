package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	cases := []struct {
		name string
		room Room
		want bool
	}{
		{"permanent ignores expiry", Room{IsPermanent: true, ExpiresAt: &past}, false},
		{"no expiry set", Room{}, false},
		{"future expiry", Room{ExpiresAt: &future}, false},
		{"past expiry", Room{ExpiresAt: &past}, true},
		{"expiry is inclusive", Room{ExpiresAt: &now}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.room.IsExpired(now))
		})
	}
}

func TestNormalizeRoomCode(t *testing.T) {
	assert.Equal(t, "abc123", NormalizeRoomCode("  ABC123 "))
	assert.Equal(t, "abc123", NormalizeRoomCode("abc123"))
	assert.Equal(t, "", NormalizeRoomCode("   "))
}

func TestValidPolicy(t *testing.T) {
	assert.True(t, ValidPolicy(PolicyOpen))
	assert.True(t, ValidPolicy(PolicyApproval))
	assert.True(t, ValidPolicy(PolicyPassword))
	assert.False(t, ValidPolicy("open"))
	assert.False(t, ValidPolicy("VIP"))
	assert.False(t, ValidPolicy(""))
}

func TestHasHost(t *testing.T) {
	hash := "$2a$10$fake"
	empty := ""
	assert.True(t, (&Room{HostPassphraseHash: &hash}).HasHost())
	assert.False(t, (&Room{HostPassphraseHash: &empty}).HasHost())
	assert.False(t, (&Room{}).HasHost())
}
