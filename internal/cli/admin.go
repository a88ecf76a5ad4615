package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"agribank-quiz/internal/app"
	"agribank-quiz/internal/bank"
	"agribank-quiz/internal/config"
	"agribank-quiz/internal/domain"
)

// openDurable opens the configured backends for the offline admin commands,
// which only make sense against Postgres.
func openDurable(ctx context.Context, configPath string) (*backends, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Postgres.URL == "" {
		return nil, errors.New("postgres url not configured")
	}
	return openBackends(ctx, cfg)
}

// NewImportCmd loads a question file into the bank.
func NewImportCmd(configPath *string) *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import questions from a CSV, XLSX or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := bank.FormatOf(args[0])
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			b, err := openDurable(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer b.Close()

			report, err := app.NewBankService(b.bank, b.caches...).Import(cmd.Context(), f, format, replace)
			for _, skipped := range report.Skipped {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped %v\n", skipped)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d questions\n", report.Imported)
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "clear the bank before importing")
	return cmd
}

// NewExportCmd writes the bank to a file, or to stdout when FILE is omitted.
func NewExportCmd(configPath *string) *cobra.Command {
	var formatName string
	cmd := &cobra.Command{
		Use:   "export [FILE]",
		Short: "Export the question bank",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				out  io.Writer = cmd.OutOrStdout()
				name           = "questions." + formatName
			)
			if len(args) == 1 {
				name = args[0]
			}
			format, err := bank.FormatOf(name)
			if err != nil {
				return err
			}

			b, err := openDurable(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer b.Close()

			if len(args) == 1 {
				f, err := os.Create(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			n, err := app.NewBankService(b.bank).Export(cmd.Context(), out, format)
			if err != nil {
				return err
			}
			log.Printf("exported %d questions", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&formatName, "format", string(bank.FormatCSV), "format when writing to stdout (csv, xlsx, json)")
	return cmd
}

// NewUserAddCmd creates an active account, typically the first administrator.
func NewUserAddCmd(configPath *string) *cobra.Command {
	var (
		email, password, name string
		admin                 bool
	)
	cmd := &cobra.Command{
		Use:   "useradd",
		Short: "Create an active portal account",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openDurable(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer b.Close()

			role := domain.RoleUser
			if admin {
				role = domain.RoleAdmin
			}
			users := app.NewUserService(b.users, nil)
			u, err := users.CreateUser(cmd.Context(), email, password, name, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) with id %s\n", u.Email, u.Role, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant the admin role")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
