package domain

import (
	"encoding/json"
	"time"
)

// DefaultDisplayName is used whenever a profile has no usable name.
const DefaultDisplayName = "Player"

// User is an account. At least one of PasswordHash, ExternalID or IsGuest is set.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	ExternalID   string
	Name         string
	RegisteredAt time.Time
	IsGuest      bool
}

// Profile holds the per-user gamification state.
type Profile struct {
	UserID   int64
	Name     string
	ImageURL string
	Stars    int64
	Streak   int
	// LastQuizDate is a calendar day (midnight UTC) or zero when no quiz was completed yet.
	LastQuizDate time.Time
	// Version is bumped on every write; stores use it for compare-and-swap updates.
	Version int64
}

// Purpose tags a one-time code with the flow it authorizes.
type Purpose string

const (
	PurposeVerifyEmail   Purpose = "verifyEmail"
	PurposeResetPassword Purpose = "resetPassword"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposeVerifyEmail || p == PurposeResetPassword
}

// OneTimeCode is an emailed numeric code bound to an (email, purpose) pair.
type OneTimeCode struct {
	Email     string
	Code      string
	ExpiresAt time.Time
	Purpose   Purpose
}

// ExternalIdentity is the identity asserted by an OAuth provider.
type ExternalIdentity struct {
	ID    string
	Email string
	Name  string
}

// Session is what a signed token carries.
type Session struct {
	UserID  int64  `json:"userId"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	IsGuest bool   `json:"isGuest"`
}

// LeaderboardEntry is one ranked profile as shown to clients.
type LeaderboardEntry struct {
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
	Stars    int64  `json:"stars"`
	Streak   int    `json:"quizStreak"`
}

// Question is an opaque quiz item from the content provider, passed through unchanged.
type Question json.RawMessage

func (q Question) MarshalJSON() ([]byte, error) {
	if len(q) == 0 {
		return []byte("null"), nil
	}
	return q, nil
}

func (q *Question) UnmarshalJSON(data []byte) error {
	*q = append((*q)[:0], data...)
	return nil
}
