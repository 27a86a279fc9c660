package memory

import (
	"context"
	"sync"

	"quizzy-service/internal/domain"
)

type codeKey struct {
	email   string
	purpose domain.Purpose
}

// CodeRepository is an in-memory implementation of app.CodeRepository.
type CodeRepository struct {
	mu    sync.RWMutex
	codes map[codeKey]domain.OneTimeCode
}

func NewCodeRepository() *CodeRepository {
	return &CodeRepository{codes: make(map[codeKey]domain.OneTimeCode)}
}

func (r *CodeRepository) Replace(_ context.Context, code domain.OneTimeCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[codeKey{code.Email, code.Purpose}] = code
	return nil
}

func (r *CodeRepository) Find(_ context.Context, email string, purpose domain.Purpose) (domain.OneTimeCode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if code, ok := r.codes[codeKey{email, purpose}]; ok {
		return code, nil
	}
	return domain.OneTimeCode{}, domain.ErrRecordNotFound
}

func (r *CodeRepository) Consume(_ context.Context, email string, purpose domain.Purpose, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := codeKey{email, purpose}
	stored, ok := r.codes[key]
	if !ok || stored.Code != code {
		return false, nil
	}
	delete(r.codes, key)
	return true, nil
}

func (r *CodeRepository) DeleteByEmail(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.codes {
		if key.email == email {
			delete(r.codes, key)
		}
	}
	return nil
}

// Len is the number of stored codes.
func (r *CodeRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.codes)
}
