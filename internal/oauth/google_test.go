package oauth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"golang.org/x/oauth2"

	"quizzy-service/internal/infra/memory"
	"quizzy-service/internal/oauth"
)

func fakeGoogle(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"g-42","email":"ada@example.com","name":"Ada"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newGoogle(t *testing.T) *oauth.Google {
	srv := fakeGoogle(t)
	g := oauth.NewGoogle(oauth.GoogleConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		CallbackURL:  "http://localhost:5000/auth/google/callback",
	}, memory.NewStateStore())
	return g.WithEndpoints(oauth2.Endpoint{
		AuthURL:   srv.URL + "/auth",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}, srv.URL+"/userinfo")
}

func stateOf(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	state := u.Query().Get("state")
	if state == "" {
		t.Fatalf("no state in %s", authURL)
	}
	return state
}

func TestGoogleFlow(t *testing.T) {
	ctx := context.Background()
	g := newGoogle(t)

	authURL, err := g.AuthURL(ctx)
	if err != nil {
		t.Fatalf("auth url: %v", err)
	}
	u, _ := url.Parse(authURL)
	if u.Query().Get("scope") != "profile email" || u.Query().Get("client_id") != "client" {
		t.Fatalf("unexpected consent url %s", authURL)
	}
	state := stateOf(t, authURL)

	identity, err := g.Identity(ctx, state, "good-code")
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	if identity.ID != "g-42" || identity.Email != "ada@example.com" || identity.Name != "Ada" {
		t.Fatalf("unexpected identity: %+v", identity)
	}

	if _, err := g.Identity(ctx, state, "good-code"); !errors.Is(err, oauth.ErrInvalidState) {
		t.Fatalf("state reuse should fail, got %v", err)
	}
}

func TestGoogleRejectsBadCallbacks(t *testing.T) {
	ctx := context.Background()
	g := newGoogle(t)

	if _, err := g.Identity(ctx, "", "good-code"); !errors.Is(err, oauth.ErrInvalidState) {
		t.Fatalf("empty state: %v", err)
	}
	if _, err := g.Identity(ctx, "never-issued", "good-code"); !errors.Is(err, oauth.ErrInvalidState) {
		t.Fatalf("unknown state: %v", err)
	}

	authURL, _ := g.AuthURL(ctx)
	if _, err := g.Identity(ctx, stateOf(t, authURL), "bad-code"); !errors.Is(err, oauth.ErrExchange) {
		t.Fatalf("expected exchange failure, got %v", err)
	}
}
