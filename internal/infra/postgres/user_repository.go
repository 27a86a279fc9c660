package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quizzy-service/internal/domain"
)

const userColumns = `id, COALESCE(email, ''), COALESCE(password_hash, ''), COALESCE(google_id, ''), name, date_registered, is_guest`

// UserRepository stores accounts in the users table. Empty optional columns are stored as NULL
// so the unique constraints only apply to real values.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, google_id, name, date_registered, is_guest)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7)`,
		user.ID, user.Email, user.PasswordHash, user.ExternalID, user.Name, user.RegisteredAt, user.IsGuest,
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) ByID(ctx context.Context, id int64) (domain.User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) ByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UserRepository) ByExternalID(ctx context.Context, externalID string) (domain.User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE google_id = $1`, externalID)
}

func (r *UserRepository) IDExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user id: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) LinkExternalID(ctx context.Context, id int64, externalID, name string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET google_id = $2,
		    name = CASE WHEN name = '' THEN $3 ELSE name END
		WHERE id = $1`,
		id, externalID, name,
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("link external id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

func (r *UserRepository) SetPasswordHash(ctx context.Context, email, hash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE email = $1`, email, hash)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

func (r *UserRepository) one(ctx context.Context, query string, arg interface{}) (domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.ExternalID, &u.Name, &u.RegisteredAt, &u.IsGuest,
	)
	if isNoRows(err) {
		return domain.User{}, domain.ErrRecordNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("select user: %w", err)
	}
	u.RegisteredAt = u.RegisteredAt.UTC()
	return u, nil
}
