package conflicts

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"bookingcrm/backend/internal/domain"
)

// ErrFetchFailed marks a check that could not read the existing schedule.
// Callers must not treat it as "no conflicts".
var ErrFetchFailed = errors.New("conflict check unavailable")

type FetchError struct {
	Kind       domain.ResourceKind
	ResourceID uuid.UUID
	Err        error

	timeout bool
}

func (e *FetchError) Error() string {
	reason := "failed"
	if e.timeout {
		reason = "timed out"
	}
	return fmt.Sprintf("fetch candidates for %s %s %s: %v", e.Kind, e.ResourceID, reason, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}

func (e *FetchError) Timeout() bool {
	return e.timeout
}

// IsTimeout reports whether err is a FetchError caused by a deadline.
func IsTimeout(err error) bool {
	var fErr *FetchError
	return errors.As(err, &fErr) && fErr.Timeout()
}
