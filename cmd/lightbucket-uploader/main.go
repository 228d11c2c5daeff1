// lightbucket-uploader listens for finished Ekos exposures and reports each
// light frame to Lightbucket.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/ekoslightbucket/lightbucket-uploader/internal/config"
	"github.com/ekoslightbucket/lightbucket-uploader/internal/ekos"
	"github.com/ekoslightbucket/lightbucket-uploader/pkg/runner"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		useDBus         bool
		shutdownTimeout time.Duration
		saveCredentials bool
		user            string
		apiKey          string
	)

	flagSet := pflag.NewFlagSet("lightbucket-uploader", pflag.ContinueOnError)
	flagSet.BoolVar(&useDBus, "dbus", true, "listen for KStars Ekos captureComplete signals on the session bus")
	flagSet.DurationVar(&shutdownTimeout, "shutdown-timeout", 2*time.Minute, "how long to wait for queued uploads on exit")
	flagSet.BoolVar(&saveCredentials, "save-credentials", false, "write --user and --key to the credentials file and exit")
	flagSet.StringVar(&user, "user", "", "Lightbucket user name (with --save-credentials)")
	flagSet.StringVar(&apiKey, "key", "", "Lightbucket API key (with --save-credentials)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if saveCredentials {
		return writeCredentials(cfg, user, apiKey)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w (run with --save-credentials --user NAME --key KEY)", err)
	}

	if !useDBus && cfg.HTTPAddr == "" {
		return errors.New("nothing to listen on: enable --dbus or set UPLOADER_HTTP_ADDR")
	}

	log.Printf("Lightbucket uploader")
	log.Printf("  Server: %s", cfg.BaseURL)
	log.Printf("  User: %s", cfg.User)
	log.Printf("  Thumbnail: %dpx wide, quality %d", cfg.ThumbnailWidth, cfg.ThumbnailQuality)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline, err := runner.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	// In-flight uploads keep their context after a signal
	pipeline.Start(context.WithoutCancel(ctx))
	log.Printf("✓ Upload worker started")

	g, gctx := errgroup.WithContext(ctx)

	if useDBus {
		conn, err := ekos.ConnectSessionBus()
		if err != nil {
			return err
		}
		defer conn.Close()

		source := ekos.NewSource(conn, pipeline.Bus())
		g.Go(func() error {
			return source.Run(gctx)
		})
	}

	if cfg.HTTPAddr != "" {
		server := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: pipeline.Handler(),
		}
		g.Go(func() error {
			log.Printf("HTTP server starting on %s", cfg.HTTPAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	groupErr := g.Wait()

	stats := pipeline.Stats()
	log.Printf("Shutting down: %d queued, %d uploaded, %d skipped, %d failed",
		stats.QueueLength, stats.Uploaded, stats.Skipped, stats.Failed)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := pipeline.Shutdown(shutdownCtx); err != nil {
		log.Printf("Upload queue not drained: %v", err)
	} else {
		log.Println("Uploader stopped")
	}

	return groupErr
}

func writeCredentials(cfg *config.Config, user, apiKey string) error {
	if user == "" || apiKey == "" {
		return errors.New("--save-credentials needs both --user and --key")
	}
	if cfg.CredentialsFile == "" {
		return errors.New("no credentials file location (set LIGHTBUCKET_CREDENTIALS_FILE)")
	}

	creds := config.Credentials{User: user, APIKey: apiKey}
	if cfg.BaseURL != "" && cfg.BaseURL != config.Default().BaseURL {
		creds.BaseURL = cfg.BaseURL
	}
	if err := config.SaveCredentials(cfg.CredentialsFile, creds); err != nil {
		return err
	}

	log.Printf("✓ Credentials saved to %s", cfg.CredentialsFile)
	return nil
}
