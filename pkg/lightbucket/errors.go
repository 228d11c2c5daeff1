package lightbucket

import (
	"errors"
	"fmt"
)

// ErrUploadRejected is matched by every non-200 answer from the ingestion API
var ErrUploadRejected = errors.New("upload rejected")

// UploadRejectedError carries the status and body of a rejected upload
type UploadRejectedError struct {
	StatusCode int
	Body       string
}

func (e *UploadRejectedError) Error() string {
	return fmt.Sprintf("upload rejected: got code %d instead of 200: %s", e.StatusCode, e.Body)
}

// Is makes errors.Is(err, ErrUploadRejected) true for any rejection
func (e *UploadRejectedError) Is(target error) bool {
	return target == ErrUploadRejected
}
