// Package executors runs the capture workflow outside the live queue.
package executors

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/ekoslightbucket/lightbucket-uploader/internal/workflows"
	"github.com/ekoslightbucket/lightbucket-uploader/pkg/capture"
)

// FileResult is the outcome for one file of a bulk run
type FileResult struct {
	Filename string
	RunID    string
	Outcome  string
	Err      error
}

// BulkReport summarises a bulk run
type BulkReport struct {
	Total    int
	Uploaded int
	Skipped  int
	Failed   int
	Results  []FileResult
}

// Remaining returns how many files were not attempted
func (r *BulkReport) Remaining() int {
	return r.Total - len(r.Results)
}

// ProgressFunc is called after each file with the number done so far
type ProgressFunc func(done, total int, result FileResult)

// BulkExecutor uploads previously captured files one after another
type BulkExecutor struct {
	workflow workflows.Workflow
}

// NewBulkExecutor creates a new bulk executor
func NewBulkExecutor(workflow workflows.Workflow) *BulkExecutor {
	return &BulkExecutor{
		workflow: workflow,
	}
}

// BulkEvent is the capture event used for a file picked from disk: there is
// no focus measurement, so HFR and median are unknown and no stars counted.
func BulkEvent(filename string) capture.Event {
	return capture.Event{
		Filename:  filename,
		Type:      capture.FrameLight,
		HFR:       capture.UnknownHFR,
		StarCount: 0,
		Median:    -1,
	}
}

// Execute uploads files in order. A failing file does not stop the run;
// cancelling ctx stops it before the next file and returns ctx.Err() along
// with the partial report.
func (e *BulkExecutor) Execute(ctx context.Context, files []string, progress ProgressFunc) (*BulkReport, error) {
	report := &BulkReport{Total: len(files)}

	for _, filename := range files {
		if err := ctx.Err(); err != nil {
			log.Printf("Bulk upload cancelled with %d file(s) remaining", report.Remaining())
			return report, err
		}

		result := e.executeOne(ctx, filename)
		report.Results = append(report.Results, result)
		switch {
		case result.Err != nil:
			report.Failed++
		case result.Outcome == workflows.OutcomeUploaded.String():
			report.Uploaded++
		default:
			report.Skipped++
		}

		if progress != nil {
			progress(len(report.Results), report.Total, result)
		}
	}

	return report, nil
}

func (e *BulkExecutor) executeOne(ctx context.Context, filename string) FileResult {
	runID := uuid.New().String()
	log.Printf("[%s] Executing bulk upload for %s", runID, filename)

	result := FileResult{Filename: filename, RunID: runID}
	wres, err := workflows.Run(e.workflow, &workflows.WorkflowContext{
		Ctx:   ctx,
		Event: BulkEvent(filename),
		RunID: runID,
	})
	if err != nil {
		result.Outcome = "failed"
		result.Err = err
		log.Printf("[%s] Bulk upload failed for %s: %v", runID, filename, err)
		return result
	}

	result.Outcome = wres.Outcome.String()
	return result
}
