// cmd/backup/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/semmidev/stashd/internal/app"
	"github.com/semmidev/stashd/internal/config"
	"github.com/semmidev/stashd/internal/infrastructure/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (defaults and STASHD_* env when empty)")
	credentials := flag.String("credentials", os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"), "Google service account key file")
	sourceDir := flag.String("source", "", "override backup.source_dir")
	once := flag.Bool("once", false, "run a single backup and exit with its outcome")
	authServer := flag.String("auth-server", "", "serve the Google OAuth consent flow on this address and save the token")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *credentials != "" {
		cfg.Remote.CredentialsFile = *credentials
	}
	if *sourceDir != "" {
		cfg.Backup.SourceDir = *sourceDir
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *authServer != "" {
		return serveOAuth(ctx, cfg, *authServer)
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer application.Shutdown()

	if *once {
		return application.RunOnce(ctx)
	}
	return application.Run(ctx)
}

func serveOAuth(ctx context.Context, cfg *config.Config, addr string) error {
	oauthLog, err := logger.New(logger.Options{Level: cfg.App.LogLevel, File: cfg.App.LogFile})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer oauthLog.Close()

	oauth, err := app.NewGoogleOAuthService(oauthLog, cfg.Remote.ClientSecretFile, cfg.Remote.TokenFile)
	if err != nil {
		return err
	}
	if err := oauth.StartAuthServer(ctx, addr); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-oauth.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return oauth.Shutdown(shutdownCtx)
}
