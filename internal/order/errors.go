package order

import (
	"errors"
	"net/http"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrTicketTypeInvalid = errors.New("invalid ticket type")
	ErrQuantityExceeded  = errors.New("quantity exceeds maximum allowed")
	ErrOrderingDisabled  = errors.New("ticket ordering is currently disabled")
	ErrAlreadyPaid       = errors.New("order is already paid")
	ErrInvalidStatus     = errors.New("invalid status value")
	ErrAmountMismatch    = errors.New("reported amount does not match expected amount")
	ErrAmountRequired    = errors.New("reported amount is required")
	ErrInvalidAmount     = errors.New("reported amount is not a number")
	ErrProviderNotReady  = errors.New("payment provider is not configured")
	ErrNothingToAllocate = errors.New("order is not awaiting ticket codes")
)

const (
	CategoryResolution = "resolution"
	CategoryValidation = "validation"
	CategoryProcessing = "processing"
)

// Reasons are stable, machine-readable codes passed to the error page.
const (
	ReasonAmountMismatch = "amount_mismatch"
	ReasonAmountRequired = "amount_required"
	ReasonInvalidAmount  = "invalid_amount"
	ReasonProcessing     = "processing_error"
	ReasonNotPending     = "order_not_pending"
)

// PaymentError represents a failure while handling a completion signal.
type PaymentError struct {
	Category      string // "resolution", "validation", "processing"
	StatusCode    int    // HTTP status code
	Reason        string // error page reason code
	PublicError   string // Safe to expose to clients
	InternalError string // Detailed error for logs only
	OriginalErr   error  // Underlying error
}

func (e *PaymentError) Error() string {
	return e.InternalError
}

func (e *PaymentError) Unwrap() error {
	return e.OriginalErr
}

func validationError(reason string, err error, detail string) *PaymentError {
	return &PaymentError{
		Category:      CategoryValidation,
		StatusCode:    http.StatusBadRequest,
		Reason:        reason,
		PublicError:   err.Error(),
		InternalError: detail,
		OriginalErr:   err,
	}
}

func processingError(detail string, err error) *PaymentError {
	return &PaymentError{
		Category:      CategoryProcessing,
		StatusCode:    http.StatusInternalServerError,
		Reason:        ReasonProcessing,
		PublicError:   "Payment processing error",
		InternalError: detail,
		OriginalErr:   err,
	}
}
