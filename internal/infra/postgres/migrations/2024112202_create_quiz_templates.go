package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed 2024112202_create_quiz_templates.sql
var createQuizTemplatesSQL string

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return execScript(ctx, db, createQuizTemplatesSQL)
		},
		dropTable("quiz_templates"),
	)
}
