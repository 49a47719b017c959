package payments

import (
	"errors"
	"fmt"
)

var (
	// ErrPaymentNotFound means the provider order id has no local ledger
	// record — it cannot belong to this system.
	ErrPaymentNotFound = errors.New("payment record not found")

	// ErrOrderMismatch means the provider reported a different order id than
	// the one the client claims to have paid.
	ErrOrderMismatch = errors.New("payment order id mismatch")

	// ErrPaymentNotCompleted means the authoritative provider status is not a
	// success state.
	ErrPaymentNotCompleted = errors.New("payment not completed")
)

// AllProvidersFailedError is returned when every active provider was tried
// and none could create a checkout intent.
type AllProvidersFailedError struct {
	LastErr error
}

func (e *AllProvidersFailedError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("all payment providers failed: %v", e.LastErr)
	}
	return "all payment providers failed"
}

func (e *AllProvidersFailedError) Unwrap() error {
	return e.LastErr
}
