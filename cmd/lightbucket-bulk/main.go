// lightbucket-bulk uploads FITS files captured earlier, one after another.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/ekoslightbucket/lightbucket-uploader/internal/config"
	"github.com/ekoslightbucket/lightbucket-uploader/internal/executors"
	"github.com/ekoslightbucket/lightbucket-uploader/pkg/runner"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var pattern string

	flagSet := pflag.NewFlagSet("lightbucket-bulk", pflag.ContinueOnError)
	flagSet.StringVar(&pattern, "glob", "", "upload every file matching this pattern, in addition to the arguments")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: lightbucket-bulk [--glob PATTERN] [FILE.fits ...]\n")
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	files := flagSet.Args()
	if pattern != "" {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("invalid --glob: %w", err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		flagSet.Usage()
		return errors.New("no files given")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline, err := runner.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	log.Printf("Uploading %d file(s) to %s", len(files), cfg.BaseURL)

	report, err := pipeline.Bulk(ctx, files, func(done, total int, r executors.FileResult) {
		if r.Err != nil {
			log.Printf("[%d/%d] %s: %v", done, total, r.Filename, r.Err)
			return
		}
		log.Printf("[%d/%d] %s: %s", done, total, r.Filename, r.Outcome)
	})

	log.Printf("Done: %d uploaded, %d skipped, %d failed, %d not attempted",
		report.Uploaded, report.Skipped, report.Failed, report.Remaining())

	if err != nil {
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d file(s) failed", report.Failed)
	}
	return nil
}
