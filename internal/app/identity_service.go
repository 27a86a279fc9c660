package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"quizzy-service/internal/auth"
	"quizzy-service/internal/domain"
)

// IdentityService covers registration, password and OAuth login, and guest sessions.
type IdentityService struct {
	users  UserRepository
	ids    *IDAllocator
	hasher *auth.Hasher
	tokens *auth.Tokens
	now    func() time.Time
	logger *zap.Logger
}

func NewIdentityService(users UserRepository, hasher *auth.Hasher, tokens *auth.Tokens, logger *zap.Logger) *IdentityService {
	return &IdentityService{
		users:  users,
		ids:    NewIDAllocator(users),
		hasher: hasher,
		tokens: tokens,
		now:    time.Now,
		logger: logger,
	}
}

// LoginResult is returned by every successful login flavour.
type LoginResult struct {
	Token string
	User  domain.User
}

// Register creates a password account. No token is issued.
func (s *IdentityService) Register(ctx context.Context, email, password string) (domain.User, error) {
	email = auth.NormalizeEmail(email)
	if email == "" || password == "" {
		return domain.User{}, domain.ErrEmailRequired
	}
	if err := auth.ValidateEmail(email); err != nil {
		return domain.User{}, err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, err
	}

	if _, err := s.users.ByEmail(ctx, email); err == nil {
		return domain.User{}, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrRecordNotFound) {
		return domain.User{}, fmt.Errorf("lookup email: %w", err)
	}

	id, err := s.ids.Allocate(ctx)
	if err != nil {
		return domain.User{}, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return domain.User{}, err
	}

	user := domain.User{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		RegisteredAt: s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			// Lost a race with a concurrent registration of the same address.
			return domain.User{}, domain.ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user registered", zap.Int64("user_id", id))
	return user, nil
}

// Login checks a password and issues a session token. Unknown email and wrong
// password fail with the same error after the same amount of hashing work.
func (s *IdentityService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = auth.NormalizeEmail(email)
	if email == "" || password == "" {
		return LoginResult{}, domain.ErrEmailRequired
	}

	user, err := s.users.ByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
		return LoginResult{}, fmt.Errorf("lookup email: %w", err)
	}
	if !s.hasher.Compare(user.PasswordHash, password) {
		return LoginResult{}, domain.ErrInvalidCredentials
	}
	return s.issue(user)
}

// LoginWithExternalIdentity resolves an OAuth identity to a local account: by
// external id first, then by email (linking the identity), else a new user.
func (s *IdentityService) LoginWithExternalIdentity(ctx context.Context, identity domain.ExternalIdentity) (LoginResult, error) {
	if identity.ID == "" {
		return LoginResult{}, domain.NewError(domain.ErrValidation, "external identity id missing")
	}
	identity.Email = auth.NormalizeEmail(identity.Email)
	identity.Name = strings.TrimSpace(identity.Name)

	user, err := s.users.ByExternalID(ctx, identity.ID)
	if err == nil {
		return s.issue(user)
	}
	if !errors.Is(err, domain.ErrRecordNotFound) {
		return LoginResult{}, fmt.Errorf("lookup external id: %w", err)
	}

	if identity.Email != "" {
		user, err = s.users.ByEmail(ctx, identity.Email)
		switch {
		case err == nil:
			if err := s.users.LinkExternalID(ctx, user.ID, identity.ID, identity.Name); err != nil {
				return LoginResult{}, fmt.Errorf("link external id: %w", err)
			}
			user.ExternalID = identity.ID
			if user.Name == "" {
				user.Name = identity.Name
			}
			s.logger.Info("external identity linked", zap.Int64("user_id", user.ID))
			return s.issue(user)
		case !errors.Is(err, domain.ErrRecordNotFound):
			return LoginResult{}, fmt.Errorf("lookup email: %w", err)
		}
	}

	id, err := s.ids.Allocate(ctx)
	if err != nil {
		return LoginResult{}, err
	}
	user = domain.User{
		ID:           id,
		Email:        identity.Email,
		ExternalID:   identity.ID,
		Name:         identity.Name,
		RegisteredAt: s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			// A concurrent first login for the same identity created the account.
			if existing, lookupErr := s.users.ByExternalID(ctx, identity.ID); lookupErr == nil {
				return s.issue(existing)
			}
		}
		return LoginResult{}, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user created from external identity", zap.Int64("user_id", id))
	return s.issue(user)
}

// GuestLogin creates a credential-less account and a guest token for it.
func (s *IdentityService) GuestLogin(ctx context.Context) (LoginResult, error) {
	id, err := s.ids.Allocate(ctx)
	if err != nil {
		return LoginResult{}, err
	}
	user := domain.User{
		ID:           id,
		IsGuest:      true,
		RegisteredAt: s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return LoginResult{}, fmt.Errorf("create guest: %w", err)
	}
	return s.issue(user)
}

// Authenticate verifies a raw session token.
func (s *IdentityService) Authenticate(token string) (domain.Session, error) {
	return s.tokens.Verify(token)
}

func (s *IdentityService) issue(user domain.User) (LoginResult, error) {
	token, err := s.tokens.Issue(domain.Session{
		UserID:  user.ID,
		Email:   user.Email,
		Name:    user.Name,
		IsGuest: user.IsGuest,
	})
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, User: user}, nil
}
