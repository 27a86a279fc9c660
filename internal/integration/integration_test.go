package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"

	"quizzy-service/internal/app"
	"quizzy-service/internal/domain"
	"quizzy-service/internal/infra/memory"
	infmongo "quizzy-service/internal/infra/mongo"
	"quizzy-service/internal/infra/postgres"
	pgmigrations "quizzy-service/internal/infra/postgres/migrations"
	infraredis "quizzy-service/internal/infra/redis"
)

func TestPostgresRepositories(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, cleanup := startPostgres(t, ctx)
	defer cleanup()
	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	exerciseRepositories(t, ctx,
		postgres.NewUserRepository(pool),
		postgres.NewProfileRepository(pool),
		postgres.NewCodeRepository(pool),
	)

	store := postgres.NewQuestionStore(pool)
	if err := store.ReplaceAll(ctx, []domain.Question{domain.Question(`{"q":"a"}`), domain.Question(`{"q":"b"}`)}); err != nil {
		t.Fatalf("replace questions: %v", err)
	}
	questions, err := store.FetchQuestions(ctx)
	if err != nil || len(questions) != 2 {
		t.Fatalf("fetch questions: %d %v", len(questions), err)
	}
}

func TestMongoRepositories(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	uri, cleanup := startMongo(t, ctx)
	defer cleanup()

	client, err := infmongo.Connect(ctx, infmongo.Config{URI: uri, Database: "quizzy_test", RetryAttempts: 5, RetryInterval: time.Second})
	if err != nil {
		t.Fatalf("connect mongo: %v", err)
	}
	defer client.Disconnect(ctx)
	db := client.Database("quizzy_test")
	if err := infmongo.EnsureIndexes(ctx, db); err != nil {
		t.Fatalf("indexes: %v", err)
	}

	exerciseRepositories(t, ctx,
		infmongo.NewUserRepository(db),
		infmongo.NewProfileRepository(db),
		infmongo.NewCodeRepository(db),
	)
}

func TestQuestionCacheAgainstRedis(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	redisURL, cleanup := startRedis(t, ctx)
	defer cleanup()
	client, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	source := memory.NewStaticQuestionSource([]domain.Question{domain.Question(`{"q":"2+2?"}`)})
	cache := infraredis.NewQuestionCache(client, source, time.Minute)
	bank := app.NewQuestionBank(cache, zap.NewNop())
	if err := bank.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	q, err := bank.Random()
	if err != nil || string(q) != `{"q":"2+2?"}` {
		t.Fatalf("random: %s %v", q, err)
	}
	if n, _ := client.Exists(ctx, "quiz:questions").Result(); n != 1 {
		t.Fatalf("question set not cached in redis")
	}
}

// exerciseRepositories checks the behaviour every storage backend must share.
func exerciseRepositories(t *testing.T, ctx context.Context, users app.UserRepository, profiles app.ProfileRepository, codes app.CodeRepository) {
	t.Helper()

	user := domain.User{ID: 123456, Email: "ada@example.com", PasswordHash: "hash", RegisteredAt: time.Now().UTC()}
	if err := users.Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := users.Create(ctx, domain.User{ID: 654321, Email: "ada@example.com", RegisteredAt: time.Now()}); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected duplicate email error, got %v", err)
	}
	for _, id := range []int64{200001, 200002} {
		if err := users.Create(ctx, domain.User{ID: id, IsGuest: true, RegisteredAt: time.Now()}); err != nil {
			t.Fatalf("guests without email must not collide: %v", err)
		}
	}
	if exists, err := users.IDExists(ctx, 123456); err != nil || !exists {
		t.Fatalf("id exists: %v %v", exists, err)
	}
	if err := users.LinkExternalID(ctx, 123456, "g-1", "Ada"); err != nil {
		t.Fatalf("link: %v", err)
	}
	linked, err := users.ByExternalID(ctx, "g-1")
	if err != nil || linked.ID != 123456 || linked.Name != "Ada" {
		t.Fatalf("by external id: %+v %v", linked, err)
	}
	if _, err := users.ByEmail(ctx, "nobody@example.com"); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	p, err := profiles.GetOrCreate(ctx, 123456)
	if err != nil || p.Name != domain.DefaultDisplayName || p.Stars != 0 {
		t.Fatalf("default profile: %+v %v", p, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := profiles.Update(ctx, 123456, func(p *domain.Profile) error {
				p.Stars++
				return nil
			})
			if err != nil {
				t.Errorf("concurrent update: %v", err)
			}
		}()
	}
	wg.Wait()
	p, _ = profiles.GetOrCreate(ctx, 123456)
	if p.Stars != 10 {
		t.Fatalf("lost updates: expected 10 stars, got %d", p.Stars)
	}

	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if _, err := profiles.Update(ctx, 200001, func(p *domain.Profile) error {
		p.Stars = 50
		p.LastQuizDate = day
		return nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	ranked, err := profiles.ListByStars(ctx)
	if err != nil || len(ranked) != 2 || ranked[0].UserID != 200001 {
		t.Fatalf("ranking: %+v %v", ranked, err)
	}
	if !ranked[0].LastQuizDate.Equal(day) {
		t.Fatalf("last quiz date round trip: %v", ranked[0].LastQuizDate)
	}

	code := domain.OneTimeCode{Email: "ada@example.com", Code: "111111", ExpiresAt: time.Now().Add(time.Minute), Purpose: domain.PurposeResetPassword}
	if err := codes.Replace(ctx, code); err != nil {
		t.Fatalf("replace code: %v", err)
	}
	code.Code = "222222"
	if err := codes.Replace(ctx, code); err != nil {
		t.Fatalf("replace code again: %v", err)
	}
	found, err := codes.Find(ctx, "ada@example.com", domain.PurposeResetPassword)
	if err != nil || found.Code != "222222" {
		t.Fatalf("find code: %+v %v", found, err)
	}
	if ok, err := codes.Consume(ctx, "ada@example.com", domain.PurposeResetPassword, "111111"); err != nil || ok {
		t.Fatalf("stale code value consumed: %v %v", ok, err)
	}

	verify := domain.OneTimeCode{Email: "ada@example.com", Code: "333333", ExpiresAt: time.Now().Add(time.Minute), Purpose: domain.PurposeVerifyEmail}
	if err := codes.Replace(ctx, verify); err != nil {
		t.Fatalf("replace verify code: %v", err)
	}
	var (
		wg       sync.WaitGroup
		redeemed atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := codes.Consume(ctx, verify.Email, verify.Purpose, verify.Code)
			if err != nil {
				t.Errorf("consume: %v", err)
				return
			}
			if ok {
				redeemed.Add(1)
			}
		}()
	}
	wg.Wait()
	if redeemed.Load() != 1 {
		t.Fatalf("expected exactly one redemption, got %d", redeemed.Load())
	}

	if err := codes.DeleteByEmail(ctx, "ada@example.com"); err != nil {
		t.Fatalf("delete codes: %v", err)
	}
	if _, err := codes.Find(ctx, "ada@example.com", domain.PurposeResetPassword); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected code gone, got %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	host, port, cleanup := startContainer(t, ctx, req, "5432/tcp")
	return fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port), cleanup
}

func startMongo(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(60 * time.Second),
	}
	host, port, cleanup := startContainer(t, ctx, req, "27017/tcp")
	return fmt.Sprintf("mongodb://%s:%s", host, port), cleanup
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	host, port, cleanup := startContainer(t, ctx, req, "6379/tcp")
	return fmt.Sprintf("redis://%s:%s", host, port), cleanup
}

func startContainer(t *testing.T, ctx context.Context, req tc.ContainerRequest, exposed string) (string, string, func()) {
	t.Helper()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start %s: %v", req.Image, err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, tc.Port(exposed))
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	return host, port.Port(), func() {
		_ = container.Terminate(ctx)
	}
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
