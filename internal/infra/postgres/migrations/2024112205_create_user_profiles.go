package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed 2024112205_create_user_profiles.sql
var createUserProfilesSQL string

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return execScript(ctx, db, createUserProfilesSQL)
		},
		dropTable("user_profiles"),
	)
}
