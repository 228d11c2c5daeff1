package workflows

import "fmt"

// Run executes wf for one capture. A panic inside the workflow is returned
// as an error wrapping ErrPanic so the caller can move on to the next item.
func Run(wf Workflow, wctx *WorkflowContext) (result *WorkflowResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return wf.Execute(wctx)
}
