package domain

import (
	"strings"
	"time"
)

type UserStatus string

const (
	UserStatusOnline  UserStatus = "ONLINE"
	UserStatusOffline UserStatus = "OFFLINE"
)

// Valid reports whether s is one of the known presence states.
func (s UserStatus) Valid() bool {
	return s == UserStatusOnline || s == UserStatusOffline
}

// ParseUserStatus parses a client supplied status in any letter case.
func ParseUserStatus(raw string) (UserStatus, bool) {
	s := UserStatus(strings.ToUpper(strings.TrimSpace(raw)))
	return s, s.Valid()
}

// DateLayout is the calendar-date format used for storage and transport.
const DateLayout = "2006-01-02"

// User represents a registered account.
//
// INSECURE: Password is stored and compared in plain text. Existing clients
// depend on this; do not treat it as a credential store.
type User struct {
	ID           int64
	Username     string
	Password     string
	Token        string
	Status       UserStatus
	CreationDate time.Time
	Birthday     *time.Time
}

// Registration carries the caller supplied fields of a new account.
type Registration struct {
	Username string
	Password string
	Birthday *time.Time
}

// ProfileUpdate is a partial update of a user's mutable fields.
// Nil pointers mean the field was absent from the request.
type ProfileUpdate struct {
	Token    string
	ID       int64
	Password *string
	Username *string
	Status   *UserStatus
	Birthday *time.Time
}

// Date truncates t to a calendar date in UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDate compares two optional calendar dates.
func SameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return Date(*a).Equal(Date(*b))
}
