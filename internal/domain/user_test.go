package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseUserStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want UserStatus
		ok   bool
	}{
		{"ONLINE", UserStatusOnline, true},
		{" offline ", UserStatusOffline, true},
		{"away", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseUserStatus(tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
		if tt.ok {
			assert.Equal(t, tt.want, got)
		}
	}
}

func TestSameDate(t *testing.T) {
	morning := time.Date(1990, 7, 14, 8, 0, 0, 0, time.UTC)
	evening := time.Date(1990, 7, 14, 22, 0, 0, 0, time.UTC)
	next := time.Date(1990, 7, 15, 0, 0, 0, 0, time.UTC)

	assert.True(t, SameDate(nil, nil))
	assert.True(t, SameDate(&morning, &evening))
	assert.False(t, SameDate(&morning, &next))
	assert.False(t, SameDate(&morning, nil))
	assert.False(t, SameDate(nil, &next))
}
