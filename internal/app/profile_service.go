package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"quizzy-service/internal/domain"
)

// ProfileUpdate carries the optional fields of a profile edit. Nil means "leave as is".
type ProfileUpdate struct {
	Name     *string
	ImageURL *string
}

// CompletionResult is the profile state after a quiz completion.
type CompletionResult struct {
	Profile domain.Profile
	// First is true when this was the user's first recorded completion.
	First bool
}

// ProfileService owns profiles, the streak rule and the leaderboard.
type ProfileService struct {
	profiles ProfileRepository
	hub      *LeaderboardHub
	images   ImageStore
	baseURL  string
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

// ProfileOption customizes a ProfileService.
type ProfileOption func(*ProfileService)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) ProfileOption {
	return func(s *ProfileService) { s.now = now }
}

// WithLocation sets the zone in which calendar days are counted. Defaults to UTC.
func WithLocation(loc *time.Location) ProfileOption {
	return func(s *ProfileService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithHub publishes the leaderboard to live subscribers after each completion.
func WithHub(hub *LeaderboardHub) ProfileOption {
	return func(s *ProfileService) { s.hub = hub }
}

// WithImageStore enables avatar uploads.
func WithImageStore(images ImageStore) ProfileOption {
	return func(s *ProfileService) { s.images = images }
}

// NewProfileService builds the service. baseURL turns relative image paths into absolute URLs.
func NewProfileService(profiles ProfileRepository, baseURL string, logger *zap.Logger, opts ...ProfileOption) *ProfileService {
	s := &ProfileService{
		profiles: profiles,
		baseURL:  strings.TrimRight(baseURL, "/"),
		loc:      time.UTC,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetProfile returns the user's profile, creating the default one on first read.
func (s *ProfileService) GetProfile(ctx context.Context, userID int64) (domain.Profile, error) {
	if userID <= 0 {
		return domain.Profile{}, domain.ErrInvalidUserID
	}
	profile, err := s.profiles.GetOrCreate(ctx, userID)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return profile, nil
}

// UpdateProfile merges the provided fields. A blank name falls back to the default.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID int64, update ProfileUpdate) (domain.Profile, error) {
	if userID <= 0 {
		return domain.Profile{}, domain.ErrInvalidUserID
	}
	profile, err := s.profiles.Update(ctx, userID, func(p *domain.Profile) error {
		if update.Name != nil {
			p.Name = displayName(*update.Name)
		}
		if update.ImageURL != nil {
			p.ImageURL = *update.ImageURL
		}
		return nil
	})
	if err != nil {
		return domain.Profile{}, fmt.Errorf("update profile: %w", err)
	}
	return profile, nil
}

// RecordQuizCompletion adds stars and advances the daily streak.
func (s *ProfileService) RecordQuizCompletion(ctx context.Context, userID, starsEarned int64) (CompletionResult, error) {
	if userID <= 0 {
		return CompletionResult{}, domain.ErrInvalidUserID
	}
	if starsEarned <= 0 {
		return CompletionResult{}, domain.ErrInvalidStars
	}

	today := CalendarDay(s.now(), s.loc)
	var first, backdated bool
	profile, err := s.profiles.Update(ctx, userID, func(p *domain.Profile) error {
		first = p.LastQuizDate.IsZero()
		backdated = ApplyCompletion(p, starsEarned, today)
		return nil
	})
	if err != nil {
		return CompletionResult{}, fmt.Errorf("record completion: %w", err)
	}
	if backdated {
		s.logger.Warn("last quiz day is after today, streak kept",
			zap.Int64("user_id", userID),
			zap.Time("today", today),
		)
	}

	s.publishLeaderboard(ctx)
	return CompletionResult{Profile: profile, First: first}, nil
}

// Leaderboard ranks every profile by stars, highest first. Ties keep store order.
func (s *ProfileService) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	profiles, err := s.profiles.ListByStars(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	sort.SliceStable(profiles, func(i, j int) bool {
		return profiles[i].Stars > profiles[j].Stars
	})

	entries := make([]domain.LeaderboardEntry, 0, len(profiles))
	for _, p := range profiles {
		entries = append(entries, domain.LeaderboardEntry{
			Name:     displayName(p.Name),
			ImageURL: s.AbsoluteImageURL(p.ImageURL),
			Stars:    p.Stars,
			Streak:   p.Streak,
		})
	}
	return entries, nil
}

// AbsoluteImageURL prefixes a relative storage path with the public base URL.
func (s *ProfileService) AbsoluteImageURL(ref string) string {
	switch {
	case ref == "":
		return ""
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return ref
	default:
		return s.baseURL + "/" + strings.TrimLeft(ref, "/")
	}
}

func (s *ProfileService) publishLeaderboard(ctx context.Context) {
	if s.hub == nil || !s.hub.HasSubscribers() {
		return
	}
	entries, err := s.Leaderboard(ctx)
	if err != nil {
		s.logger.Warn("leaderboard publish skipped", zap.Error(err))
		return
	}
	s.hub.Publish(entries)
}

func displayName(name string) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	return domain.DefaultDisplayName
}
