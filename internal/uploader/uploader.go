// Package uploader connects capture events to the upload workflow through an
// unbounded queue drained by a single worker.
package uploader

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ekoslightbucket/lightbucket-uploader/internal/queue"
	"github.com/ekoslightbucket/lightbucket-uploader/internal/workflows"
	"github.com/ekoslightbucket/lightbucket-uploader/pkg/capture"
)

// OutcomeFailed is the report outcome of an item that returned an error
const OutcomeFailed = "failed"

// Observer receives filter decisions and worker results (see internal/metrics)
type Observer interface {
	ObserveDecision(decision string)
	ObserveResult(outcome string, elapsed time.Duration)
	SetQueueDepth(n int)
	SetProcessing(busy bool)
}

// Report describes how one queued capture was handled
type Report struct {
	RunID   string
	Event   capture.Event
	Outcome string
	Err     error
	Elapsed time.Duration
}

// Stats is a snapshot of the uploader counters
type Stats struct {
	QueueLength int    `json:"queue_length"`
	Processing  bool   `json:"processing"`
	Uploaded    uint64 `json:"uploaded"`
	Skipped     uint64 `json:"skipped"`
	Failed      uint64 `json:"failed"`
	Dropped     uint64 `json:"dropped"`
}

// Option configures an Uploader
type Option func(*Uploader)

// WithObserver reports decisions and results to o
func WithObserver(o Observer) Option {
	return func(u *Uploader) { u.observer = o }
}

// WithReportHook calls fn on the worker goroutine after every item
func WithReportHook(fn func(Report)) Option {
	return func(u *Uploader) { u.onReport = fn }
}

// Uploader owns the work queue and its worker
type Uploader struct {
	workflow workflows.Workflow
	queue    *queue.Queue[capture.Event]
	observer Observer
	onReport func(Report)

	startOnce  sync.Once
	done       chan struct{}
	processing atomic.Bool
	uploaded   atomic.Uint64
	skipped    atomic.Uint64
	failed     atomic.Uint64
	dropped    atomic.Uint64
}

// New creates an uploader running wf for every admitted capture
func New(wf workflows.Workflow, opts ...Option) *Uploader {
	u := &Uploader{
		workflow: wf,
		queue:    queue.New[capture.Event](),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// HandleCapture filters ev and queues it when admitted. It never blocks on
// processing and is safe to call from any goroutine.
func (u *Uploader) HandleCapture(ev capture.Event) Decision {
	decision := Classify(ev)
	if decision == Admitted && !u.queue.Push(ev) {
		decision = DroppedClosed
	}
	if decision != Admitted {
		u.dropped.Add(1)
	}
	if u.observer != nil {
		u.observer.ObserveDecision(decision.String())
		u.observer.SetQueueDepth(u.queue.Len())
	}
	return decision
}

// Start launches the worker. ctx is handed to every workflow run; cancelling
// it does not stop the worker, Shutdown does.
func (u *Uploader) Start(ctx context.Context) {
	u.startOnce.Do(func() {
		go u.run(ctx)
	})
}

// Shutdown stops accepting captures and waits until everything already queued
// has been processed or ctx expires.
func (u *Uploader) Shutdown(ctx context.Context) error {
	u.queue.Close()
	u.Start(context.Background())

	select {
	case <-u.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown with %d capture(s) still queued: %w", u.queue.Len(), ctx.Err())
	}
}

// Stats returns the current counters
func (u *Uploader) Stats() Stats {
	return Stats{
		QueueLength: u.queue.Len(),
		Processing:  u.processing.Load(),
		Uploaded:    u.uploaded.Load(),
		Skipped:     u.skipped.Load(),
		Failed:      u.failed.Load(),
		Dropped:     u.dropped.Load(),
	}
}

func (u *Uploader) run(ctx context.Context) {
	defer close(u.done)
	for {
		ev, ok := u.queue.Pop()
		if !ok {
			return
		}
		u.process(ctx, ev)
	}
}

func (u *Uploader) process(ctx context.Context, ev capture.Event) {
	u.setProcessing(true)
	defer u.setProcessing(false)

	report := Report{RunID: uuid.New().String(), Event: ev}
	start := time.Now()
	result, err := u.execute(ctx, report.RunID, ev)
	report.Elapsed = time.Since(start)

	switch {
	case err != nil:
		report.Outcome = OutcomeFailed
		report.Err = err
		u.failed.Add(1)
		log.Printf("[%s] Failed to upload %s: %v", report.RunID, ev.Filename, err)
	case result != nil && result.Outcome.Skipped():
		report.Outcome = result.Outcome.String()
		u.skipped.Add(1)
	default:
		report.Outcome = workflows.OutcomeUploaded.String()
		u.uploaded.Add(1)
	}

	if u.observer != nil {
		u.observer.ObserveResult(report.Outcome, report.Elapsed)
	}
	if u.onReport != nil {
		u.onReport(report)
	}
}

// execute runs the workflow, turning a panic into an error for this item
func (u *Uploader) execute(ctx context.Context, runID string, ev capture.Event) (*workflows.WorkflowResult, error) {
	return workflows.Run(u.workflow, &workflows.WorkflowContext{
		Ctx:   ctx,
		Event: ev,
		RunID: runID,
	})
}

func (u *Uploader) setProcessing(busy bool) {
	u.processing.Store(busy)
	if u.observer != nil {
		u.observer.SetProcessing(busy)
		u.observer.SetQueueDepth(u.queue.Len())
	}
}
