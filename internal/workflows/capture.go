package workflows

import (
	"fmt"
	"log"
	"time"

	"github.com/ekoslightbucket/lightbucket-uploader/internal/metadata"
	"github.com/ekoslightbucket/lightbucket-uploader/internal/payload"
	"github.com/ekoslightbucket/lightbucket-uploader/internal/preview"
)

var _ Workflow = (*CaptureWorkflow)(nil)

// outcomeFailed is the ledger outcome of a run that returned an error
const outcomeFailed = "failed"

// CaptureWorkflow decodes a capture, builds its upload document and sends it
type CaptureWorkflow struct {
	decoder  ImageDecoder
	renderer *preview.Renderer
	uploader DocumentUploader
	archive  PreviewArchiver
	ledger   Ledger
	now      func() time.Time
}

// Option configures a CaptureWorkflow
type Option func(*CaptureWorkflow)

// WithArchive stores every rendered preview in a
func WithArchive(a PreviewArchiver) Option {
	return func(w *CaptureWorkflow) { w.archive = a }
}

// WithLedger skips files l has already seen uploaded and records outcomes
func WithLedger(l Ledger) Option {
	return func(w *CaptureWorkflow) { w.ledger = l }
}

// WithClock overrides the time used for captured_at when DATE-OBS is missing
func WithClock(now func() time.Time) Option {
	return func(w *CaptureWorkflow) { w.now = now }
}

// NewCaptureWorkflow creates a new capture upload workflow
func NewCaptureWorkflow(decoder ImageDecoder, renderer *preview.Renderer, uploader DocumentUploader, opts ...Option) *CaptureWorkflow {
	w := &CaptureWorkflow{
		decoder:  decoder,
		renderer: renderer,
		uploader: uploader,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name returns the workflow name
func (w *CaptureWorkflow) Name() string {
	return "CaptureWorkflow"
}

// Execute runs the upload workflow for one capture event
func (w *CaptureWorkflow) Execute(wctx *WorkflowContext) (*WorkflowResult, error) {
	filename := wctx.Event.Filename
	log.Printf("[%s] Starting capture workflow for %s", wctx.RunID, filename)

	if filename == "" {
		return failed(ErrInvalidRequest)
	}

	// Step 1: Ledger check (skip files already uploaded)
	var ledgerKey string
	if w.ledger != nil {
		key, uploaded, err := w.ledger.Lookup(wctx.Ctx, filename)
		if err != nil {
			log.Printf("[%s] Ledger lookup failed: %v", wctx.RunID, err)
			// Continue anyway - the ledger is advisory
		} else if uploaded {
			log.Printf("[%s] %s already uploaded - skipping", wctx.RunID, filename)
			return skipped(OutcomeSkippedDuplicate), nil
		}
		ledgerKey = key
	}

	// Every failure past this point leaves a ledger row
	fail := func(err error) (*WorkflowResult, error) {
		w.record(wctx, ledgerKey, filename, outcomeFailed)
		return failed(err)
	}

	// Step 2: Decode capture file
	img, err := w.decoder.Decode(wctx.Ctx, filename)
	if err != nil {
		log.Printf("[%s] Failed to decode capture: %v", wctx.RunID, err)
		return fail(fmt.Errorf("%w: %w", ErrDecodeFailed, err))
	}
	log.Printf("[%s] Decoded %dx%d image, %d channel(s)", wctx.RunID, img.Width, img.Height, img.Channels)

	// Step 3: Extract target, equipment and statistics (before any transform)
	extracted, err := metadata.Extract(img, wctx.Event)
	if err != nil {
		log.Printf("[%s] Metadata extraction failed: %v", wctx.RunID, err)
		return fail(fmt.Errorf("%w: metadata: %w", ErrStepFailed, err))
	}
	if extracted.Outcome == metadata.SkipNoTarget {
		log.Printf("[%s] No RA/DEC in header - skipping", wctx.RunID)
		w.record(wctx, ledgerKey, filename, OutcomeSkippedNoTarget.String())
		return skipped(OutcomeSkippedNoTarget), nil
	}

	// Step 4: Render preview
	thumb, err := w.renderer.Render(img)
	if err != nil {
		log.Printf("[%s] Preview render failed: %v", wctx.RunID, err)
		return fail(fmt.Errorf("%w: preview: %w", ErrStepFailed, err))
	}
	log.Printf("[%s] Preview rendered: %dx%d, %d bytes", wctx.RunID, thumb.Width, thumb.Height, len(thumb.JPEG))

	// Step 5: Build and encode upload document
	doc, err := payload.Build(payload.Parts{
		Target:     extracted.Target,
		Equipment:  extracted.Equipment,
		Statistics: extracted.Statistics,
		Thumbnail:  thumb.Base64(),
	}, img.Header, w.now())
	if err != nil {
		log.Printf("[%s] Payload build failed: %v", wctx.RunID, err)
		return fail(fmt.Errorf("%w: payload: %w", ErrStepFailed, err))
	}
	body, err := payload.Encode(doc)
	if err != nil {
		log.Printf("[%s] Payload encode failed: %v", wctx.RunID, err)
		return fail(err)
	}

	// Step 6: Upload
	if err := w.uploader.Upload(wctx.Ctx, body); err != nil {
		log.Printf("[%s] Upload failed: %v", wctx.RunID, err)
		return fail(err)
	}
	log.Printf("[%s] Upload accepted for %s", wctx.RunID, filename)

	outputs := map[string]interface{}{
		"filename":       filename,
		"preview_width":  thumb.Width,
		"preview_height": thumb.Height,
	}

	// Step 7: Archive preview (failure does not fail the upload)
	if w.archive != nil {
		archiveID, err := w.archive.Archive(wctx.Ctx, filename, thumb)
		if err != nil {
			log.Printf("[%s] Failed to archive preview: %v", wctx.RunID, err)
		} else {
			outputs["archive_id"] = archiveID
		}
	}

	w.record(wctx, ledgerKey, filename, OutcomeUploaded.String())
	log.Printf("[%s] Capture workflow completed successfully", wctx.RunID)

	return &WorkflowResult{
		Success: true,
		Outcome: OutcomeUploaded,
		Outputs: outputs,
	}, nil
}

func (w *CaptureWorkflow) record(wctx *WorkflowContext, key, filename, outcome string) {
	if w.ledger == nil || key == "" {
		return
	}
	seen, err := w.ledger.Record(wctx.Ctx, key, filename, outcome)
	if err != nil {
		log.Printf("[%s] Failed to record ledger entry: %v", wctx.RunID, err)
		return
	}
	log.Printf("[%s] Ledger: %s recorded as %s (seen %d time(s))", wctx.RunID, filename, outcome, seen)
}

func failed(err error) (*WorkflowResult, error) {
	return &WorkflowResult{Success: false, Error: err}, err
}

func skipped(outcome Outcome) *WorkflowResult {
	return &WorkflowResult{Success: true, Outcome: outcome}
}
