// Package runner assembles the complete upload pipeline from a configuration,
// for the commands and for programs embedding the uploader.
package runner

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/simple-content/pkg/simplecontent/presets"

	"github.com/ekoslightbucket/lightbucket-uploader/internal/config"
	"github.com/ekoslightbucket/lightbucket-uploader/internal/events"
	"github.com/ekoslightbucket/lightbucket-uploader/internal/executors"
	"github.com/ekoslightbucket/lightbucket-uploader/internal/fits"
	"github.com/ekoslightbucket/lightbucket-uploader/internal/handlers"
	"github.com/ekoslightbucket/lightbucket-uploader/internal/ledger"
	"github.com/ekoslightbucket/lightbucket-uploader/internal/metrics"
	"github.com/ekoslightbucket/lightbucket-uploader/internal/preview"
	"github.com/ekoslightbucket/lightbucket-uploader/internal/storage"
	"github.com/ekoslightbucket/lightbucket-uploader/internal/uploader"
	"github.com/ekoslightbucket/lightbucket-uploader/internal/workflows"
	"github.com/ekoslightbucket/lightbucket-uploader/pkg/capture"
	"github.com/ekoslightbucket/lightbucket-uploader/pkg/lightbucket"
)

// Report is the per-capture outcome passed to a report hook
type Report = uploader.Report

// Option configures a Runner
type Option func(*options)

type options struct {
	onReport   func(Report)
	httpClient *http.Client
}

// WithReportHook calls fn after each queued capture has been processed
func WithReportHook(fn func(Report)) Option {
	return func(o *options) { o.onReport = fn }
}

// WithHTTPClient overrides the HTTP client used for uploads
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// Runner provides a high-level API over the upload pipeline
type Runner struct {
	uploader *uploader.Uploader
	workflow *workflows.CaptureWorkflow
	bus      *events.Bus
	registry *prometheus.Registry
	archive  *storage.PreviewArchive
	handler  func(capture.Event)
	cleanup  []func()
}

// New creates and wires a pipeline. cfg must already be validated.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Runner, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Runner{
		bus:      events.New(),
		registry: prometheus.NewRegistry(),
	}

	// Capture files: absolute paths from Ekos, relative ones from the working directory
	files, err := storage.NewFilesystemStorage(".")
	if err != nil {
		return nil, err
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.UploadTimeout}
	}
	client := lightbucket.NewWithHTTPClient(cfg.BaseURL, cfg.User, cfg.APIKey, httpClient)

	renderer := preview.NewRenderer(preview.Options{
		Width:   cfg.ThumbnailWidth,
		Quality: cfg.ThumbnailQuality,
	})

	var wfOpts []workflows.Option
	if cfg.PreviewArchiveDir != "" {
		svc, cleanup, err := presets.NewDevelopment(presets.WithDevStorage(cfg.PreviewArchiveDir))
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("failed to initialize preview archive: %w", err)
		}
		r.cleanup = append(r.cleanup, cleanup)
		r.archive = storage.NewPreviewArchive(svc)
		wfOpts = append(wfOpts, workflows.WithArchive(r.archive))
		log.Printf("✓ Preview archive at %s", cfg.PreviewArchiveDir)
	}
	if cfg.LedgerDatabaseURL != "" {
		l, err := ledger.Open(ctx, cfg.LedgerDatabaseURL, files)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.cleanup = append(r.cleanup, func() { _ = l.Close() })
		wfOpts = append(wfOpts, workflows.WithLedger(l))
		log.Printf("✓ Upload ledger enabled")
	}

	r.workflow = workflows.NewCaptureWorkflow(fits.NewFileDecoder(files), renderer, client, wfOpts...)

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	upOpts := []uploader.Option{uploader.WithObserver(metrics.New(r.registry))}
	if o.onReport != nil {
		upOpts = append(upOpts, uploader.WithReportHook(o.onReport))
	}
	r.uploader = uploader.New(r.workflow, upOpts...)

	r.handler = r.onCapture
	if err := r.bus.OnCapture(r.handler); err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to subscribe to capture events: %w", err)
	}

	return r, nil
}

func (r *Runner) onCapture(ev capture.Event) {
	r.uploader.HandleCapture(ev)
}

// Start launches the upload worker
func (r *Runner) Start(ctx context.Context) {
	r.uploader.Start(ctx)
}

// Bus is where capture sources publish events
func (r *Runner) Bus() *events.Bus {
	return r.bus
}

// HandleCapture filters and queues one capture without blocking
func (r *Runner) HandleCapture(ev capture.Event) uploader.Decision {
	return r.uploader.HandleCapture(ev)
}

// Stats returns the queue and upload counters
func (r *Runner) Stats() uploader.Stats {
	return r.uploader.Stats()
}

// Handler returns the HTTP webhook, status and metrics endpoints
func (r *Runner) Handler() http.Handler {
	var previews handlers.PreviewSource
	if r.archive != nil {
		previews = r.archive
	}

	mux := http.NewServeMux()
	handlers.NewCaptureHandler(r.uploader, previews).Register(mux)
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	return mux
}

// Bulk uploads files synchronously, bypassing the queue
func (r *Runner) Bulk(ctx context.Context, files []string, progress executors.ProgressFunc) (*executors.BulkReport, error) {
	return executors.NewBulkExecutor(r.workflow).Execute(ctx, files, progress)
}

// Shutdown stops accepting captures, waits for the queue to drain (bounded
// by ctx) and releases resources
func (r *Runner) Shutdown(ctx context.Context) error {
	_ = r.bus.OffCapture(r.handler)
	err := r.uploader.Shutdown(ctx)
	r.Close()
	return err
}

// Close releases the archive and ledger without waiting for the queue
func (r *Runner) Close() {
	for i := len(r.cleanup) - 1; i >= 0; i-- {
		r.cleanup[i]()
	}
	r.cleanup = nil
}
