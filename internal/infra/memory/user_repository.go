package memory

import (
	"context"
	"sync"

	"quizzy-service/internal/domain"
)

// UserRepository is an in-memory implementation of app.UserRepository.
type UserRepository struct {
	mu    sync.RWMutex
	users map[int64]domain.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[int64]domain.User)}
}

func (r *UserRepository) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; ok {
		return domain.ErrDuplicate
	}
	for _, existing := range r.users {
		if user.Email != "" && existing.Email == user.Email {
			return domain.ErrDuplicate
		}
		if user.ExternalID != "" && existing.ExternalID == user.ExternalID {
			return domain.ErrDuplicate
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *UserRepository) ByID(_ context.Context, id int64) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if user, ok := r.users[id]; ok {
		return user, nil
	}
	return domain.User{}, domain.ErrRecordNotFound
}

func (r *UserRepository) ByEmail(_ context.Context, email string) (domain.User, error) {
	return r.find(func(u domain.User) bool { return email != "" && u.Email == email })
}

func (r *UserRepository) ByExternalID(_ context.Context, externalID string) (domain.User, error) {
	return r.find(func(u domain.User) bool { return externalID != "" && u.ExternalID == externalID })
}

func (r *UserRepository) IDExists(_ context.Context, id int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[id]
	return ok, nil
}

func (r *UserRepository) LinkExternalID(_ context.Context, id int64, externalID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return domain.ErrRecordNotFound
	}
	user.ExternalID = externalID
	if user.Name == "" {
		user.Name = name
	}
	r.users[id] = user
	return nil
}

func (r *UserRepository) SetPasswordHash(_ context.Context, email, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, user := range r.users {
		if user.Email == email {
			user.PasswordHash = hash
			r.users[id] = user
			return nil
		}
	}
	return domain.ErrRecordNotFound
}

func (r *UserRepository) find(match func(domain.User) bool) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if match(user) {
			return user, nil
		}
	}
	return domain.User{}, domain.ErrRecordNotFound
}
