package http

import (
	"context"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterConfig collects everything the HTTP surface is built from.
type RouterConfig struct {
	Auth        *AuthHandler
	OTP         *OTPHandler
	Profile     *ProfileHandler
	Leaderboard *LeaderboardWSHandler
	Authn       Authenticator
	Metrics     *Metrics
	// OTPLimiter is optional; without it the OTP endpoints are not rate limited.
	OTPLimiter     Limiter
	AllowedOrigins []string
	// TrustedProxies are the peers allowed to set X-Forwarded-For and X-Real-IP.
	TrustedProxies []netip.Prefix
	// UploadDir is served under /uploads/ when set.
	UploadDir string
	// Health reports backing store reachability for /healthz.
	Health func(ctx context.Context) error
	Logger *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(TrustedRealIP(cfg.TrustedProxies))
	r.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(Instrument(cfg.Metrics))
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if cfg.Health != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := cfg.Health(ctx); err != nil {
				cfg.Logger.Warn("health check failed", zap.Error(err))
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.Write([]byte("ok"))
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}
	if cfg.UploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", cfg.Auth.Register)
		r.Post("/login", cfg.Auth.Login)
		r.Post("/guest", cfg.Auth.Guest)
		r.Get("/google", cfg.Auth.GoogleStart)
		r.Get("/google/callback", cfg.Auth.GoogleCallback)

		r.Group(func(r chi.Router) {
			if cfg.OTPLimiter != nil {
				r.Use(RateLimit(cfg.OTPLimiter, cfg.Logger))
			}
			r.Post("/send-otp", cfg.OTP.SendCode)
			r.Post("/verify-otp", cfg.OTP.VerifyCode)
		})
		r.Post("/reset-password", cfg.OTP.ResetPassword)
	})

	r.Get("/leaderboard/ws", cfg.Leaderboard.ServeWS)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(cfg.Authn))
		r.Get("/profile/{userId}", cfg.Profile.GetProfile)
		r.Put("/profile", cfg.Profile.UpdateProfile)
		r.Post("/uploadImage", cfg.Profile.UploadImage)
		r.Get("/leaderboard", cfg.Profile.Leaderboard)
		r.Post("/quiz/completed", cfg.Profile.CompleteQuiz)
		r.Get("/quiz/question", cfg.Profile.RandomQuestion)
	})

	return r
}
