package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekoslightbucket/lightbucket-uploader/internal/fits"
)

type panickingWorkflow struct{}

func (panickingWorkflow) Name() string { return "panicking" }

func (panickingWorkflow) Execute(wctx *WorkflowContext) (*WorkflowResult, error) {
	panic("truncated data unit in " + wctx.Event.Filename)
}

func TestRun_RecoversPanic(t *testing.T) {
	result, err := Run(panickingWorkflow{}, wctx("a.fits"))
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrPanic)
	assert.ErrorContains(t, err, "truncated data unit in a.fits")
}

func TestRun_PassesResultThrough(t *testing.T) {
	dec := &fakeDecoder{images: map[string]*fits.Image{"a.fits": testImage(fullHeader())}}

	result, err := Run(newWorkflow(dec, &fakeUploader{}), wctx("a.fits"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUploaded, result.Outcome)
}
