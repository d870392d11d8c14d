package checkout

import (
	"errors"
	"fmt"
)

var (
	// ErrPaymentTimeout ends a poll session that never saw a terminal status
	// within the payment window. It is not the backend's EXPIRED.
	ErrPaymentTimeout = errors.New("payment timed out")

	// ErrStillPending ends an attempt-capped session whose order is still
	// PENDING.
	ErrStillPending = errors.New("payment still pending, please check the orders page later")

	ErrOrderCreation = errors.New("order creation failed")
	ErrEmptyCart     = errors.New("cart is empty")
	ErrUnknownMethod = errors.New("unknown payment method")
)

// ValidationError is a bad address field. The form is shown again with
// Message; nothing was sent to the backend.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// TerminalPaymentError is a backend-reported FAILED, CANCELLED or EXPIRED.
type TerminalPaymentError struct {
	OrderID string
	Status  Status
}

func (e *TerminalPaymentError) Error() string {
	switch e.Status {
	case StatusFailed:
		return "Payment failed. Please try again or contact support."
	case StatusCancelled:
		return "Payment was cancelled. Please choose a payment method again."
	case StatusExpired:
		return "Payment session expired. Please start the payment again."
	default:
		return fmt.Sprintf("payment ended with status %s", e.Status)
	}
}

// ErrStatusUndetermined is a payment-return check that saw neither PAID,
// FAILED nor PENDING. Nothing is polled; the user re-checks by hand.
var ErrStatusUndetermined = errors.New("Unable to determine payment status yet. Please re-check.")
