package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed 2024112204_create_active_sessions.sql
var createActiveSessionsSQL string

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return execScript(ctx, db, createActiveSessionsSQL)
		},
		dropTable("active_sessions"),
	)
}
