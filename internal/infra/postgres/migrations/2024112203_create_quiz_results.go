package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed 2024112203_create_quiz_results.sql
var createQuizResultsSQL string

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return execScript(ctx, db, createQuizResultsSQL)
		},
		dropTable("quiz_results"),
	)
}
