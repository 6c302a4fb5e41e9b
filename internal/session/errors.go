package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

var (
	// ErrNotFound means the referenced test/session/question no longer
	// exists or was deleted. Surfaced to the user, never retried.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized means the session does not belong to the caller.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrEmptySubmission rejects a manual submit with nothing answered,
	// before any network call is made.
	ErrEmptySubmission = errors.New("no answers present, answer at least one question")

	// ErrSaveInFlight is returned when a save is requested while another is
	// still running. The request is dropped, not queued.
	ErrSaveInFlight = errors.New("a save is already in flight")

	// ErrSessionClosed rejects mutations after the session reached its
	// terminal state.
	ErrSessionClosed = errors.New("session already submitted")
)

// MediaSkipWarning records one audio item that failed to upload during
// submission. The item is skipped, the rest of the submission proceeds.
type MediaSkipWarning struct {
	Key AnswerKey
	Err error
}

func (w MediaSkipWarning) String() string {
	return fmt.Sprintf("recording for question %d (sub %d) could not be uploaded and was skipped: %v", w.Key.QuestionID, w.Key.SubIndex, w.Err)
}

// IsConnectivity classifies a save/submit/upload failure as network-layer.
// Connectivity failures are recovered by the offline layer, not surfaced as
// terminal errors.
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	var connErr *ConnectivityError
	return errors.As(err, &connErr)
}

// ConnectivityError wraps a failure that the transport layer already knows
// to be network-related.
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string { return "connectivity: " + e.Err.Error() }
func (e *ConnectivityError) Unwrap() error { return e.Err }
