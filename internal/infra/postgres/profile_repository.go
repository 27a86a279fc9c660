package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizzy-service/internal/domain"
)

const profileColumns = `user_id, name, image_url, stars, quiz_streak, last_quiz_date, version`

// ProfileRepository stores profiles in user_profiles. Update locks the row for the
// duration of the read-modify-write.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (domain.Profile, error) {
	var (
		p    domain.Profile
		last *time.Time
	)
	if err := row.Scan(&p.UserID, &p.Name, &p.ImageURL, &p.Stars, &p.Streak, &last, &p.Version); err != nil {
		return domain.Profile{}, err
	}
	if last != nil {
		y, m, d := last.Date()
		p.LastQuizDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return p, nil
}

func insertDefault(ctx context.Context, q execer, userID int64) error {
	_, err := q.Exec(ctx, `INSERT INTO user_profiles (user_id, name) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING`,
		userID, domain.DefaultDisplayName)
	return err
}

func (r *ProfileRepository) GetOrCreate(ctx context.Context, userID int64) (domain.Profile, error) {
	if err := insertDefault(ctx, r.pool, userID); err != nil {
		return domain.Profile{}, fmt.Errorf("insert profile: %w", err)
	}
	p, err := scanProfile(r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE user_id = $1`, userID))
	if err != nil {
		return domain.Profile{}, fmt.Errorf("select profile: %w", err)
	}
	return p, nil
}

func (r *ProfileRepository) Update(ctx context.Context, userID int64, mutate func(*domain.Profile) error) (domain.Profile, error) {
	var updated domain.Profile
	err := r.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if err := insertDefault(ctx, tx, userID); err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}
		current, err := scanProfile(tx.QueryRow(ctx,
			`SELECT `+profileColumns+` FROM user_profiles WHERE user_id = $1 FOR UPDATE`, userID))
		if err != nil {
			return fmt.Errorf("lock profile: %w", err)
		}

		next := current
		if err := mutate(&next); err != nil {
			return err
		}
		next.UserID = userID
		next.Version = current.Version + 1

		var last *time.Time
		if !next.LastQuizDate.IsZero() {
			day := next.LastQuizDate
			last = &day
		}
		_, err = tx.Exec(ctx, `
			UPDATE user_profiles
			SET name = $2, image_url = $3, stars = $4, quiz_streak = $5, last_quiz_date = $6, version = $7
			WHERE user_id = $1`,
			userID, next.Name, next.ImageURL, next.Stars, next.Streak, last, next.Version,
		)
		if err != nil {
			return fmt.Errorf("write profile: %w", err)
		}
		updated = next
		return nil
	})
	if err != nil {
		return domain.Profile{}, err
	}
	return updated, nil
}

func (r *ProfileRepository) ListByStars(ctx context.Context) ([]domain.Profile, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+profileColumns+` FROM user_profiles ORDER BY stars DESC, user_id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}
