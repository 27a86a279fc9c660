package memory

import (
	"context"
	"sort"
	"sync"

	"quizzy-service/internal/app"
	"quizzy-service/internal/domain"
)

// ProfileRepository is an in-memory implementation of app.ProfileRepository.
// A single mutex serializes every update, which is enough for one process.
type ProfileRepository struct {
	mu       sync.Mutex
	profiles map[int64]domain.Profile
}

func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{profiles: make(map[int64]domain.Profile)}
}

func (r *ProfileRepository) GetOrCreate(_ context.Context, userID int64) (domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getOrCreateLocked(userID), nil
}

func (r *ProfileRepository) Update(_ context.Context, userID int64, mutate func(*domain.Profile) error) (domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	profile := r.getOrCreateLocked(userID)
	if err := mutate(&profile); err != nil {
		return domain.Profile{}, err
	}
	profile.UserID = userID
	profile.Version++
	r.profiles[userID] = profile
	return profile, nil
}

func (r *ProfileRepository) ListByStars(_ context.Context) ([]domain.Profile, error) {
	r.mu.Lock()
	profiles := make([]domain.Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		profiles = append(profiles, p)
	}
	r.mu.Unlock()

	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].Stars != profiles[j].Stars {
			return profiles[i].Stars > profiles[j].Stars
		}
		return profiles[i].UserID < profiles[j].UserID
	})
	return profiles, nil
}

func (r *ProfileRepository) getOrCreateLocked(userID int64) domain.Profile {
	if profile, ok := r.profiles[userID]; ok {
		return profile
	}
	profile := app.NewDefaultProfile(userID)
	r.profiles[userID] = profile
	return profile
}
