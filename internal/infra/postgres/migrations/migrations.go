package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed 0001_create_identity.sql
var createIdentitySQL string

//go:embed 0002_create_questions.sql
var createQuestionsSQL string

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.Add(migrate.Migration{
		Name: "20240101000001",
		Up: func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createIdentitySQL)
			return err
		},
		Down: func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS otps, user_profiles, users`)
			return err
		},
	})
	Migrations.Add(migrate.Migration{
		Name: "20240101000002",
		Up: func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createQuestionsSQL)
			return err
		},
		Down: func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS questions`)
			return err
		},
	})
}
