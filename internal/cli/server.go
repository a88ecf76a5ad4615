package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"agribank-quiz/internal/app"
	"agribank-quiz/internal/auth"
	"agribank-quiz/internal/bank"
	"agribank-quiz/internal/config"
	"agribank-quiz/internal/quiz"
	transport "agribank-quiz/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret not configured")
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	bankService := app.NewBankService(b.bank, b.caches...)
	if err := seedBank(ctx, bankService, cfg.Quiz.SeedFile); err != nil {
		return err
	}

	seed := cfg.Quiz.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	service := app.NewQuizService(b.questions, b.templates, b.results, b.sessions, quiz.NewSelector(rand.NewSource(seed)))
	users := app.NewUserService(b.users, auth.NewTokenService(cfg.Auth.JWTSecret, config.TTLDuration(cfg.Auth.TokenTTL, 8*time.Hour)))
	presence := app.NewPresence(b.presence, config.TTLDuration(cfg.Presence.Interval, 30*time.Second))

	api := transport.NewAPIHandler(service, bankService, app.NewTemplateService(b.templates, b.questions), users, presence)
	ws := transport.NewWSHandler(service, users, presence)
	logger := log.New(os.Stderr, "http: ", log.LstdFlags)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.NewRouter(api, ws, logger),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: it would cut long-lived websocket connections.
	}

	go func() {
		log.Printf("starting quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	service.Wait()
	return err
}

// seedBank imports path into the bank when the bank is empty.
func seedBank(ctx context.Context, svc *app.BankService, path string) error {
	if path == "" {
		return nil
	}
	existing, err := svc.Questions(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	format, err := bank.FormatOf(path)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	report, err := svc.Import(ctx, f, format, false)
	if err != nil {
		return fmt.Errorf("seed question bank from %s: %w", path, err)
	}
	log.Printf("seeded question bank with %d questions from %s", report.Imported, path)
	return nil
}
