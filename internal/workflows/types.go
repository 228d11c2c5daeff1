package workflows

import (
	"context"

	"github.com/ekoslightbucket/lightbucket-uploader/internal/fits"
	"github.com/ekoslightbucket/lightbucket-uploader/internal/preview"
	"github.com/ekoslightbucket/lightbucket-uploader/pkg/capture"
)

// WorkflowContext contains context for workflow execution
type WorkflowContext struct {
	Ctx   context.Context
	Event capture.Event
	RunID string
}

// Outcome is how a successful run ended
type Outcome int

const (
	// OutcomeUploaded means the document was accepted by the server
	OutcomeUploaded Outcome = iota
	// OutcomeSkippedNoTarget means the header had no RA/DEC
	OutcomeSkippedNoTarget
	// OutcomeSkippedDuplicate means the ledger already holds an upload of the file
	OutcomeSkippedDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUploaded:
		return "uploaded"
	case OutcomeSkippedNoTarget:
		return "skipped_no_target"
	case OutcomeSkippedDuplicate:
		return "skipped_duplicate"
	default:
		return "unknown"
	}
}

// Skipped reports whether the run ended without an upload
func (o Outcome) Skipped() bool {
	return o != OutcomeUploaded
}

// WorkflowResult contains the result of workflow execution
type WorkflowResult struct {
	Success bool
	Outcome Outcome
	Error   error
	Outputs map[string]interface{}
}

// Workflow defines the interface for processing one capture
type Workflow interface {
	// Execute runs the workflow
	Execute(wctx *WorkflowContext) (*WorkflowResult, error)

	// Name returns the workflow name
	Name() string
}

// ImageDecoder turns a capture file into header and pixels
type ImageDecoder interface {
	Decode(ctx context.Context, filename string) (*fits.Image, error)
}

// DocumentUploader sends an encoded upload document
type DocumentUploader interface {
	Upload(ctx context.Context, body []byte) error
}

// PreviewArchiver keeps a copy of every generated preview
type PreviewArchiver interface {
	Archive(ctx context.Context, filename string, thumb *preview.Thumbnail) (string, error)
}

// Ledger remembers which capture files were already uploaded
type Ledger interface {
	// Lookup returns the ledger key for filename and whether it was uploaded
	Lookup(ctx context.Context, filename string) (key string, uploaded bool, err error)

	// Record stores the outcome for key and returns how often key was seen
	Record(ctx context.Context, key, filename, outcome string) (int, error)
}
