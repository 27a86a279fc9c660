package app_test

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"quizzy-service/internal/app"
	"quizzy-service/internal/auth"
	"quizzy-service/internal/domain"
	"quizzy-service/internal/infra/memory"
)

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

type captureMailer struct {
	mu   sync.Mutex
	sent []app.Email
	err  error
}

func (m *captureMailer) Send(_ context.Context, msg app.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *captureMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatalf("no email sent")
	}
	code := codePattern.FindString(m.sent[len(m.sent)-1].Text)
	if code == "" {
		t.Fatalf("no code in email: %q", m.sent[len(m.sent)-1].Text)
	}
	return code
}

func newIdentity(t *testing.T) (*app.IdentityService, *memory.UserRepository) {
	t.Helper()
	tokens, err := auth.NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	users := memory.NewUserRepository()
	return app.NewIdentityService(users, auth.NewHasher(4), tokens, zap.NewNop()), users
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newIdentity(t)

	user, err := svc.Register(ctx, "  Ada@Example.com ", "secret1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "ada@example.com" || user.ID < 100000 || user.ID > 999999 {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.PasswordHash == "" || user.PasswordHash == "secret1" {
		t.Fatalf("password not hashed")
	}

	if _, err := svc.Register(ctx, "ADA@example.com", "secret1"); !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected email taken, got %v", err)
	}

	res, err := svc.Login(ctx, "ada@example.com", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	session, err := svc.Authenticate(res.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if session.UserID != user.ID || session.Email != "ada@example.com" || session.IsGuest {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestLoginFailuresLookAlike(t *testing.T) {
	ctx := context.Background()
	svc, _ := newIdentity(t)
	if _, err := svc.Register(ctx, "ada@example.com", "secret1"); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, wrongPassword := svc.Login(ctx, "ada@example.com", "secret2")
	_, unknownEmail := svc.Login(ctx, "bob@example.com", "secret1")
	if wrongPassword != domain.ErrInvalidCredentials || unknownEmail != domain.ErrInvalidCredentials {
		t.Fatalf("expected identical errors, got %v / %v", wrongPassword, unknownEmail)
	}
	if _, err := svc.Login(ctx, "", "x"); err != domain.ErrEmailRequired {
		t.Fatalf("expected required error, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newIdentity(t)
	cases := []struct {
		email, password string
		want            error
	}{
		{"", "secret1", domain.ErrEmailRequired},
		{"ada@example.com", "", domain.ErrEmailRequired},
		{"not-an-email", "secret1", domain.ErrInvalidEmail},
		{"ada@example.com", "abc12", domain.ErrWeakPassword},
		{"ada@example.com", "abcdefg", domain.ErrWeakPassword},
		{"ada@example.com", "1234567", domain.ErrWeakPassword},
		{"ada@example.com", "abc 123", domain.ErrWeakPassword},
	}
	for _, tc := range cases {
		if _, err := svc.Register(context.Background(), tc.email, tc.password); err != tc.want {
			t.Fatalf("%q/%q: expected %v, got %v", tc.email, tc.password, tc.want, err)
		}
	}
}

func TestExternalIdentityResolution(t *testing.T) {
	ctx := context.Background()
	svc, users := newIdentity(t)

	registered, err := svc.Register(ctx, "ada@example.com", "secret1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	// Matching email links the identity to the existing account.
	res, err := svc.LoginWithExternalIdentity(ctx, domain.ExternalIdentity{ID: "g-1", Email: "Ada@Example.com", Name: "Ada"})
	if err != nil {
		t.Fatalf("link login: %v", err)
	}
	if res.User.ID != registered.ID {
		t.Fatalf("expected linked account %d, got %d", registered.ID, res.User.ID)
	}
	stored, _ := users.ByID(ctx, registered.ID)
	if stored.ExternalID != "g-1" || stored.Name != "Ada" {
		t.Fatalf("identity not linked: %+v", stored)
	}

	// Second login resolves by external id, even with a different email.
	again, err := svc.LoginWithExternalIdentity(ctx, domain.ExternalIdentity{ID: "g-1", Email: "other@example.com"})
	if err != nil || again.User.ID != registered.ID {
		t.Fatalf("external id lookup: %+v %v", again.User, err)
	}

	// Unknown identity creates a new account.
	fresh, err := svc.LoginWithExternalIdentity(ctx, domain.ExternalIdentity{ID: "g-2", Email: "bob@example.com", Name: "Bob"})
	if err != nil {
		t.Fatalf("new external user: %v", err)
	}
	if fresh.User.ID == registered.ID || fresh.User.PasswordHash != "" || fresh.User.ExternalID != "g-2" {
		t.Fatalf("unexpected new user: %+v", fresh.User)
	}

	if _, err := svc.LoginWithExternalIdentity(ctx, domain.ExternalIdentity{Email: "x@example.com"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for missing id, got %v", err)
	}
}

// racedUsers stores winner just before the first Create, as a concurrent first login
// for the same identity would.
type racedUsers struct {
	*memory.UserRepository
	winner domain.User
	once   sync.Once
}

func (r *racedUsers) Create(ctx context.Context, user domain.User) error {
	r.once.Do(func() { _ = r.UserRepository.Create(ctx, r.winner) })
	return r.UserRepository.Create(ctx, user)
}

func TestExternalIdentityLosingCreateReusesAccount(t *testing.T) {
	ctx := context.Background()
	tokens, err := auth.NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	users := &racedUsers{
		UserRepository: memory.NewUserRepository(),
		winner:         domain.User{ID: 424242, Email: "gina@example.com", ExternalID: "g-7", Name: "Gina"},
	}
	svc := app.NewIdentityService(users, auth.NewHasher(4), tokens, zap.NewNop())

	res, err := svc.LoginWithExternalIdentity(ctx, domain.ExternalIdentity{ID: "g-7", Email: "gina@example.com", Name: "Gina"})
	if err != nil {
		t.Fatalf("login after losing the insert: %v", err)
	}
	if res.User.ID != 424242 || res.Token == "" {
		t.Fatalf("expected the concurrently created account, got %+v", res.User)
	}
}

func TestExternalIdentityConcurrentFirstLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newIdentity(t)

	var wg sync.WaitGroup
	ids := make([]int64, 16)
	errs := make([]error, 16)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.LoginWithExternalIdentity(ctx, domain.ExternalIdentity{ID: "g-9", Email: "hal@example.com"})
			ids[i], errs[i] = res.User.ID, err
		}(i)
	}
	wg.Wait()
	for i := range ids {
		if errs[i] != nil {
			t.Fatalf("login %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("login %d resolved to %d, want %d", i, ids[i], ids[0])
		}
	}
}

func TestGuestLoginCreatesDistinctAccounts(t *testing.T) {
	ctx := context.Background()
	svc, users := newIdentity(t)

	seen := map[int64]bool{}
	for i := 0; i < 20; i++ {
		res, err := svc.GuestLogin(ctx)
		if err != nil {
			t.Fatalf("guest login: %v", err)
		}
		if seen[res.User.ID] {
			t.Fatalf("guest id reused: %d", res.User.ID)
		}
		seen[res.User.ID] = true

		session, err := svc.Authenticate(res.Token)
		if err != nil || !session.IsGuest || session.UserID != res.User.ID {
			t.Fatalf("guest session: %+v %v", session, err)
		}
		if ok, _ := users.IDExists(ctx, res.User.ID); !ok {
			t.Fatalf("guest not stored")
		}
	}
}
