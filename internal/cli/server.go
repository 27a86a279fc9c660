package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"quizzy-service/internal/app"
	"quizzy-service/internal/auth"
	"quizzy-service/internal/config"
	"quizzy-service/internal/infra/mail"
	"quizzy-service/internal/infra/memory"
	infmongo "quizzy-service/internal/infra/mongo"
	"quizzy-service/internal/infra/postgres"
	"quizzy-service/internal/infra/provider"
	infraredis "quizzy-service/internal/infra/redis"
	"quizzy-service/internal/infra/storage"
	"quizzy-service/internal/oauth"
	transport "quizzy-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// stores is the persistence backend chosen by storage.driver.
type stores struct {
	users    app.UserRepository
	profiles app.ProfileRepository
	codes    app.CodeRepository
	health   func(context.Context) error
	closers  []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log.Development)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "5000"
	}

	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret (JWT_SECRET) is required")
	}
	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, config.TTLDuration(cfg.Auth.TokenTTL, auth.DefaultTokenTTL))
	if err != nil {
		return err
	}
	hasher := auth.NewHasher(cfg.Auth.BcryptCost)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" && (cfg.Storage.Driver == "postgres" || cfg.Quiz.Source == "postgres") {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	st, err := openStores(ctx, cfg, pool, logger)
	if err != nil {
		return err
	}
	defer st.close()

	mailer, err := newMailer(cfg, logger)
	if err != nil {
		return err
	}

	loc, err := time.LoadLocation(cfg.Quiz.Timezone)
	if err != nil {
		return fmt.Errorf("quiz.timezone: %w", err)
	}

	uploadRoot := cfg.Server.UploadDir
	images, err := newImageStore(ctx, cfg, uploadRoot)
	if err != nil {
		return err
	}

	hub := app.NewLeaderboardHub()
	identity := app.NewIdentityService(st.users, hasher, tokens, logger)
	otp := app.NewOTPService(st.users, st.codes, mailer, hasher, config.TTLDuration(cfg.OTP.TTL, app.DefaultCodeTTL), logger)
	profiles := app.NewProfileService(st.profiles, cfg.Server.BaseURL, logger,
		app.WithLocation(loc),
		app.WithHub(hub),
		app.WithImageStore(images),
	)

	source, err := newQuestionSource(cfg, pool, redisClient)
	if err != nil {
		return err
	}
	bank := app.NewQuestionBank(source, logger)
	if err := bank.Refresh(ctx); err != nil {
		logger.Warn("initial question load failed, serving without questions", zap.Error(err))
	}

	var stateStore oauth.StateStore = memory.NewStateStore()
	if redisClient != nil {
		stateStore = infraredis.NewStateStore(redisClient)
	}
	var google transport.OAuthProvider
	if cfg.Google.ClientID != "" {
		google = oauth.NewGoogle(oauth.GoogleConfig{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			CallbackURL:  cfg.Google.CallbackURL,
			StateTTL:     config.TTLDuration(cfg.Google.StateTTL, 10*time.Minute),
		}, stateStore)
	}

	var limiter transport.Limiter
	if redisClient != nil && cfg.OTP.RateLimit > 0 {
		window := config.TTLDuration(cfg.OTP.RateWindow, 15*time.Minute)
		limiter = infraredis.NewRateLimiter(redisClient, cfg.OTP.RateLimit, window, window, "ratelimit:otp")
	}

	trusted, err := transport.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("server.trusted_proxies: %w", err)
	}

	metrics := transport.NewMetrics()
	maxUpload := cfg.Server.MaxUploadMB << 20
	router := transport.NewRouter(transport.RouterConfig{
		Auth:           transport.NewAuthHandler(identity, google, cfg.Server.FrontendURL, logger),
		OTP:            transport.NewOTPHandler(otp, metrics, logger),
		Profile:        transport.NewProfileHandler(profiles, bank, metrics, maxUpload, logger),
		Leaderboard:    transport.NewLeaderboardWSHandler(identity, profiles, hub, originChecker(cfg.Server.AllowedOrigins), logger),
		Authn:          identity,
		Metrics:        metrics,
		OTPLimiter:     limiter,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		TrustedProxies: trusted,
		UploadDir:      uploadRoot,
		Health:         st.health,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting quizzy", zap.String("addr", server.Addr), zap.String("storage", cfg.Storage.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		bank.RunRefresher(gctx, config.TTLDuration(cfg.Quiz.RefreshInterval, 0))
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStores(ctx context.Context, cfg config.Config, pool *pgxpool.Pool, logger *zap.Logger) (*stores, error) {
	switch cfg.Storage.Driver {
	case "mongo":
		client, err := infmongo.Connect(ctx, infmongo.Config{
			URI:            cfg.Mongo.URI,
			Database:       cfg.Mongo.Database,
			ConnectTimeout: config.TTLDuration(cfg.Mongo.ConnectTimeout, 10*time.Second),
			RetryAttempts:  3,
			RetryInterval:  2 * time.Second,
		})
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.Mongo.Database)
		if err := infmongo.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return &stores{
			users:    infmongo.NewUserRepository(db),
			profiles: infmongo.NewProfileRepository(db),
			codes:    infmongo.NewCodeRepository(db),
			health:   infmongo.Healthcheck(client),
			closers:  []func(){func() { _ = client.Disconnect(context.Background()) }},
		}, nil
	case "postgres":
		if pool == nil {
			return nil, errors.New("storage.driver=postgres needs postgres.url")
		}
		return &stores{
			users:    postgres.NewUserRepository(pool),
			profiles: postgres.NewProfileRepository(pool),
			codes:    postgres.NewCodeRepository(pool),
			health:   pool.Ping,
		}, nil
	case "memory":
		logger.Warn("using in-memory storage, data is lost on restart")
		return &stores{
			users:    memory.NewUserRepository(),
			profiles: memory.NewProfileRepository(),
			codes:    memory.NewCodeRepository(),
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage.driver %q", cfg.Storage.Driver)
	}
}

func newMailer(cfg config.Config, logger *zap.Logger) (app.Mailer, error) {
	switch cfg.Mail.Driver {
	case "smtp":
		return mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.Mail.SMTP.Host,
			Port:     cfg.Mail.SMTP.Port,
			Username: cfg.Mail.SMTP.Username,
			Password: cfg.Mail.SMTP.Password,
			From:     cfg.Mail.From,
			FromName: cfg.Mail.FromName,
		}), nil
	case "postmark":
		return mail.NewPostmarkSender(mail.PostmarkConfig{
			ServerToken:  cfg.Mail.Postmark.ServerToken,
			AccountToken: cfg.Mail.Postmark.AccountToken,
			From:         cfg.Mail.From,
			Tag:          "otp",
		})
	case "log":
		return mail.NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown mail.driver %q", cfg.Mail.Driver)
	}
}

func newImageStore(ctx context.Context, cfg config.Config, uploadRoot string) (app.ImageStore, error) {
	switch cfg.Avatar.Driver {
	case "local":
		return storage.NewLocalStore(filepath.Join(uploadRoot, "profile-images"), "/uploads/profile-images")
	case "s3":
		s3cfg := cfg.Avatar.S3
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:         s3cfg.Bucket,
			Region:         s3cfg.Region,
			AccessKeyID:    s3cfg.AccessKeyID,
			SecretKey:      s3cfg.SecretKey,
			Endpoint:       s3cfg.Endpoint,
			BaseURL:        s3cfg.BaseURL,
			Prefix:         "profile-images",
			ForcePathStyle: s3cfg.ForcePathStyle,
		}, nil)
	default:
		return nil, fmt.Errorf("unknown avatar.driver %q", cfg.Avatar.Driver)
	}
}

func newQuestionSource(cfg config.Config, pool *pgxpool.Pool, redisClient *redis.Client) (app.QuestionSource, error) {
	var source app.QuestionSource
	switch cfg.Quiz.Source {
	case "provider":
		source = provider.NewQuestionClient(providerConfig(cfg), nil)
	case "postgres":
		if pool == nil {
			return nil, errors.New("quiz.source=postgres needs postgres.url")
		}
		source = postgres.NewQuestionStore(pool)
	default:
		return nil, fmt.Errorf("unknown quiz.source %q", cfg.Quiz.Source)
	}
	if redisClient != nil {
		source = infraredis.NewQuestionCache(redisClient, source, config.TTLDuration(cfg.Quiz.CacheTTL, 6*time.Hour))
	}
	return source, nil
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}
