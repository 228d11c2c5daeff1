package uploader

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekoslightbucket/lightbucket-uploader/internal/fits"
	"github.com/ekoslightbucket/lightbucket-uploader/internal/preview"
	"github.com/ekoslightbucket/lightbucket-uploader/internal/workflows"
	"github.com/ekoslightbucket/lightbucket-uploader/pkg/capture"
	"github.com/ekoslightbucket/lightbucket-uploader/pkg/lightbucket"
)

// scriptedWorkflow records the order it sees files in and fails or panics on
// request
type scriptedWorkflow struct {
	mu      sync.Mutex
	seen    []string
	fail    map[string]error
	panics  map[string]bool
	skip    map[string]bool
	release chan struct{}
}

func (w *scriptedWorkflow) Name() string { return "scripted" }

func (w *scriptedWorkflow) Execute(wctx *workflows.WorkflowContext) (*workflows.WorkflowResult, error) {
	if w.release != nil {
		<-w.release
	}
	name := wctx.Event.Filename
	w.mu.Lock()
	w.seen = append(w.seen, name)
	w.mu.Unlock()

	if w.panics[name] {
		panic("corrupt frame")
	}
	if err := w.fail[name]; err != nil {
		return &workflows.WorkflowResult{Error: err}, err
	}
	if w.skip[name] {
		return &workflows.WorkflowResult{Success: true, Outcome: workflows.OutcomeSkippedNoTarget}, nil
	}
	return &workflows.WorkflowResult{Success: true, Outcome: workflows.OutcomeUploaded}, nil
}

func (w *scriptedWorkflow) order() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.seen...)
}

func light(name string) capture.Event {
	return capture.Event{Filename: name, Type: capture.FrameLight, HFR: capture.UnknownHFR}
}

func shutdown(t *testing.T, u *Uploader) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, u.Shutdown(ctx))
}

func TestUploader_PreservesOrder(t *testing.T) {
	wf := &scriptedWorkflow{}
	u := New(wf)
	u.Start(context.Background())

	var want []string
	for _, name := range []string{"a.fits", "b.fits", "c.fits", "d.fits", "e.fits"} {
		assert.Equal(t, Admitted, u.HandleCapture(light(name)))
		want = append(want, name)
	}
	shutdown(t, u)

	assert.Equal(t, want, wf.order())
	assert.Equal(t, uint64(5), u.Stats().Uploaded)
}

func TestUploader_DropsFilteredEvents(t *testing.T) {
	wf := &scriptedWorkflow{}
	u := New(wf)
	u.Start(context.Background())

	assert.Equal(t, DroppedPreview, u.HandleCapture(light(capture.PreviewFilename)))
	assert.Equal(t, DroppedFrameType, u.HandleCapture(capture.Event{Filename: "dark.fits", Type: capture.FrameDark}))
	shutdown(t, u)

	assert.Empty(t, wf.order())
	assert.Equal(t, uint64(2), u.Stats().Dropped)
}

func TestUploader_HandleCaptureDoesNotBlock(t *testing.T) {
	wf := &scriptedWorkflow{release: make(chan struct{})}
	u := New(wf)
	u.Start(context.Background())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			u.HandleCapture(light("frame.fits"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("HandleCapture blocked while the worker was busy")
	}

	close(wf.release)
	shutdown(t, u)
	assert.Equal(t, uint64(100), u.Stats().Uploaded)
}

func TestUploader_IsolatesFailures(t *testing.T) {
	wf := &scriptedWorkflow{
		fail:   map[string]error{"bad.fits": errors.New("decode failed")},
		panics: map[string]bool{"panic.fits": true},
		skip:   map[string]bool{"nodec.fits": true},
	}
	var reports []Report
	u := New(wf, WithReportHook(func(r Report) { reports = append(reports, r) }))
	u.Start(context.Background())

	for _, name := range []string{"bad.fits", "panic.fits", "nodec.fits", "good.fits"} {
		u.HandleCapture(light(name))
	}
	shutdown(t, u)

	assert.Equal(t, []string{"bad.fits", "panic.fits", "nodec.fits", "good.fits"}, wf.order())
	require.Len(t, reports, 4)
	assert.Equal(t, OutcomeFailed, reports[0].Outcome)
	assert.ErrorIs(t, reports[1].Err, workflows.ErrPanic)
	assert.Equal(t, "skipped_no_target", reports[2].Outcome)
	assert.Equal(t, "uploaded", reports[3].Outcome)
	assert.NotEmpty(t, reports[3].RunID)

	stats := u.Stats()
	assert.Equal(t, uint64(1), stats.Uploaded)
	assert.Equal(t, uint64(1), stats.Skipped)
	assert.Equal(t, uint64(2), stats.Failed)
	assert.False(t, stats.Processing)
}

func TestUploader_RejectsAfterShutdown(t *testing.T) {
	u := New(&scriptedWorkflow{})
	u.Start(context.Background())
	shutdown(t, u)

	assert.Equal(t, DroppedClosed, u.HandleCapture(light("late.fits")))
}

func TestUploader_ShutdownDeadline(t *testing.T) {
	wf := &scriptedWorkflow{release: make(chan struct{})}
	u := New(wf)
	u.Start(context.Background())
	u.HandleCapture(light("a.fits"))
	u.HandleCapture(light("b.fits"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := u.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(wf.release)
	shutdown(t, u)
}

type recordingObserver struct {
	decisions atomic.Int64
	results   atomic.Int64
}

func (o *recordingObserver) ObserveDecision(string) { o.decisions.Add(1) }
func (o *recordingObserver) ObserveResult(string, time.Duration) { o.results.Add(1) }
func (o *recordingObserver) SetQueueDepth(int) {}
func (o *recordingObserver) SetProcessing(bool) {}

func TestUploader_Observer(t *testing.T) {
	obs := &recordingObserver{}
	u := New(&scriptedWorkflow{}, WithObserver(obs))
	u.Start(context.Background())
	u.HandleCapture(light("a.fits"))
	u.HandleCapture(light(capture.PreviewFilename))
	shutdown(t, u)

	assert.Equal(t, int64(2), obs.decisions.Load())
	assert.Equal(t, int64(1), obs.results.Load())
}

// The remaining tests run the real workflow against an httptest server.

type memDecoder map[string]*fits.Image

func (d memDecoder) Decode(ctx context.Context, filename string) (*fits.Image, error) {
	img, ok := d[filename]
	if !ok {
		return nil, errors.New("file not found")
	}
	return img, nil
}

func frame(extra fits.Header) *fits.Image {
	hdr := fits.Header{
		"RA":       10.68,
		"DEC":      41.27,
		"EXPTIME":  60.0,
		"XBINNING": 1,
		"YBINNING": 1,
	}
	for k, v := range extra {
		hdr[k] = v
	}
	const w, h = 16, 12
	pixels := make([]float64, w*h)
	for i := range pixels {
		pixels[i] = float64(500 + i)
	}
	return &fits.Image{Header: hdr, Width: w, Height: h, Channels: 1, Pixels: pixels}
}

func TestUploader_EndToEnd(t *testing.T) {
	var posts atomic.Int64
	var status atomic.Int64
	status.Store(http.StatusOK)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.ReadAll(r.Body)
		posts.Add(1)
		code := int(status.Load())
		w.WriteHeader(code)
		if code != http.StatusOK {
			_, _ = w.Write([]byte("server error"))
		}
	}))
	defer server.Close()

	noDec := frame(nil)
	delete(noDec.Header, "DEC")
	decoder := memDecoder{
		"a.fits":     frame(fits.Header{"BAYERPAT": "XYZW"}),
		"b.fits":     frame(fits.Header{"BAYERPAT": "RGGB"}),
		"nodec.fits": noDec,
	}
	wf := workflows.NewCaptureWorkflow(decoder, preview.NewRenderer(preview.DefaultOptions()),
		lightbucket.New(server.URL, "user", "key"))

	t.Run("unsupported pattern does not stop the next item", func(t *testing.T) {
		var reports []Report
		u := New(wf, WithReportHook(func(r Report) { reports = append(reports, r) }))
		u.Start(context.Background())
		u.HandleCapture(light("a.fits"))
		u.HandleCapture(light("b.fits"))
		shutdown(t, u)

		require.Len(t, reports, 2)
		assert.ErrorIs(t, reports[0].Err, preview.ErrUnsupportedPattern)
		assert.Equal(t, "uploaded", reports[1].Outcome)
		assert.Equal(t, int64(1), posts.Load())
	})

	t.Run("missing DEC uploads nothing", func(t *testing.T) {
		before := posts.Load()
		u := New(wf)
		u.Start(context.Background())
		u.HandleCapture(light("nodec.fits"))
		shutdown(t, u)

		assert.Equal(t, before, posts.Load())
		assert.Equal(t, uint64(1), u.Stats().Skipped)
	})

	t.Run("server error is reported and the loop survives", func(t *testing.T) {
		status.Store(http.StatusInternalServerError)
		var reports []Report
		u := New(wf, WithReportHook(func(r Report) { reports = append(reports, r) }))
		u.Start(context.Background())
		u.HandleCapture(light("b.fits"))
		u.HandleCapture(light("b.fits"))
		shutdown(t, u)

		require.Len(t, reports, 2)
		for _, r := range reports {
			require.Error(t, r.Err)
			assert.ErrorIs(t, r.Err, lightbucket.ErrUploadRejected)
			assert.Contains(t, r.Err.Error(), "500")
			assert.Contains(t, r.Err.Error(), "server error")
		}
		assert.Equal(t, uint64(2), u.Stats().Failed)
	})
}
