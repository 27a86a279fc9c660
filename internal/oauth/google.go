package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"quizzy-service/internal/domain"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	defaultStateTTL   = 10 * time.Minute
)

var (
	// ErrInvalidState means the callback state was never issued, already used, or expired.
	ErrInvalidState = errors.New("oauth: invalid or expired state")
	// ErrExchange means the provider rejected the authorization code.
	ErrExchange = errors.New("oauth: code exchange failed")
)

// StateStore keeps issued CSRF states until the callback consumes them.
type StateStore interface {
	Save(ctx context.Context, state string, ttl time.Duration) error
	// Consume deletes the state and returns ErrInvalidState if it was unknown or expired.
	Consume(ctx context.Context, state string) error
}

// GoogleConfig holds the registered OAuth client.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	StateTTL     time.Duration
}

// Google runs the authorization-code flow against Google and returns the asserted identity.
type Google struct {
	config      *oauth2.Config
	states      StateStore
	stateTTL    time.Duration
	userInfoURL string
	client      *http.Client
}

func NewGoogle(cfg GoogleConfig, states StateStore) *Google {
	ttl := cfg.StateTTL
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &Google{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       []string{"profile", "email"},
			Endpoint:     google.Endpoint,
		},
		states:      states,
		stateTTL:    ttl,
		userInfoURL: googleUserInfoURL,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

// WithEndpoints points the flow at another authorization server. Used by tests.
func (g *Google) WithEndpoints(endpoint oauth2.Endpoint, userInfoURL string) *Google {
	g.config.Endpoint = endpoint
	g.userInfoURL = userInfoURL
	return g
}

// AuthURL issues a state and returns the consent page URL.
func (g *Google) AuthURL(ctx context.Context) (string, error) {
	state := uuid.NewString()
	if err := g.states.Save(ctx, state, g.stateTTL); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}
	return g.config.AuthCodeURL(state), nil
}

// Identity consumes state, exchanges code and fetches the user's Google profile.
func (g *Google) Identity(ctx context.Context, state, code string) (domain.ExternalIdentity, error) {
	if state == "" {
		return domain.ExternalIdentity{}, ErrInvalidState
	}
	if err := g.states.Consume(ctx, state); err != nil {
		return domain.ExternalIdentity{}, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.client)
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return domain.ExternalIdentity{}, errors.Join(ErrExchange, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return domain.ExternalIdentity{}, err
	}
	resp, err := g.config.Client(ctx, token).Do(req)
	if err != nil {
		return domain.ExternalIdentity{}, fmt.Errorf("fetch google user: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.ExternalIdentity{}, fmt.Errorf("fetch google user: status %d", resp.StatusCode)
	}

	var info struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return domain.ExternalIdentity{}, fmt.Errorf("decode google user: %w", err)
	}
	if info.ID == "" {
		return domain.ExternalIdentity{}, errors.New("google user has no id")
	}
	return domain.ExternalIdentity{ID: info.ID, Email: info.Email, Name: info.Name}, nil
}
