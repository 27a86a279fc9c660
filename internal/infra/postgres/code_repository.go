package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quizzy-service/internal/domain"
)

// CodeRepository stores one-time codes in otps, keyed by (email, purpose).
type CodeRepository struct {
	pool *pgxpool.Pool
}

func NewCodeRepository(pool *pgxpool.Pool) *CodeRepository {
	return &CodeRepository{pool: pool}
}

func (r *CodeRepository) Replace(ctx context.Context, code domain.OneTimeCode) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO otps (email, purpose, code, expires_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (email, purpose) DO UPDATE SET code = EXCLUDED.code, expires_at = EXCLUDED.expires_at`,
		code.Email, string(code.Purpose), code.Code, code.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("replace code: %w", err)
	}
	return nil
}

func (r *CodeRepository) Find(ctx context.Context, email string, purpose domain.Purpose) (domain.OneTimeCode, error) {
	code := domain.OneTimeCode{Email: email, Purpose: purpose}
	err := r.pool.QueryRow(ctx, `SELECT code, expires_at FROM otps WHERE email = $1 AND purpose = $2`,
		email, string(purpose)).Scan(&code.Code, &code.ExpiresAt)
	if isNoRows(err) {
		return domain.OneTimeCode{}, domain.ErrRecordNotFound
	}
	if err != nil {
		return domain.OneTimeCode{}, fmt.Errorf("find code: %w", err)
	}
	return code, nil
}

func (r *CodeRepository) Consume(ctx context.Context, email string, purpose domain.Purpose, code string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM otps WHERE email = $1 AND purpose = $2 AND code = $3`,
		email, string(purpose), code)
	if err != nil {
		return false, fmt.Errorf("consume code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *CodeRepository) DeleteByEmail(ctx context.Context, email string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM otps WHERE email = $1`, email); err != nil {
		return fmt.Errorf("delete codes: %w", err)
	}
	return nil
}
