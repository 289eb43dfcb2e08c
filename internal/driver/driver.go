// Package driver performs physical delivery: injecting an envelope's text
// into a recipient's input coordinate via simulated mouse and keyboard.
//
// Delivery is best-effort RPC against an external UI the process cannot
// observe. A nil return means the input injection commands ran, not that the
// recipient actually received the text; the router records success as
// advisory and keeps the full attempt history in the ledger.
package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/zulandar/switchboard/internal/registry"
)

// FailureReason classifies why a delivery attempt failed.
type FailureReason string

const (
	// ReasonCoordinateInvalid means the target window moved or closed.
	ReasonCoordinateInvalid FailureReason = "coordinate_invalid"
	// ReasonInputBlocked means another process owned focus or the input.
	ReasonInputBlocked FailureReason = "input_blocked"
	// ReasonTimeout means the injection did not complete in time.
	ReasonTimeout FailureReason = "timeout"
)

// DeliveryError reports a failed delivery attempt with a reason the router
// uses for retry classification.
type DeliveryError struct {
	Reason FailureReason
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("driver: delivery failed (%s): %v", e.Reason, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Reason extracts the failure reason from err, or empty if err is not a
// DeliveryError.
func Reason(err error) FailureReason {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Reason
	}
	return ""
}

// Driver delivers text to a screen coordinate. Deliver blocks for real
// wall-clock time (simulated UI interaction is slow); callers must not hold
// shared locks across it.
type Driver interface {
	Deliver(ctx context.Context, coords registry.Coordinates, text string) error
}
