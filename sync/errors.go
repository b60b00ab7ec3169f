// ABOUTME: Error types raised by sync runs and the run queue
// ABOUTME: RunTimeoutError marks a run cut short by its deadline
package sync

import (
	"errors"
	"fmt"

	"github.com/harperreed/crmbridge/models"
)

// ErrQueueClosed resolves every handle submitted after the queue was closed.
var ErrQueueClosed = errors.New("sync queue closed")

// RunTimeoutError records that the run deadline expired before a collection finished.
// Writes already applied are kept.
type RunTimeoutError struct {
	Entity  models.EntityType
	Skipped int
	Err     error
}

func (e *RunTimeoutError) Error() string {
	return fmt.Sprintf("run deadline exceeded during %s: %d rows not started: %v", e.Entity, e.Skipped, e.Err)
}

func (e *RunTimeoutError) Unwrap() error {
	return e.Err
}
