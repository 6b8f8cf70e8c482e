package analytics

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrSourceUnavailable means a balance, holdings or history query failed.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrInvalidWallet means the wallet identifier was rejected.
	ErrInvalidWallet = errors.New("invalid wallet")

	// ErrPriceUnavailable means no usable fiat rate could be obtained.
	ErrPriceUnavailable = errors.New("price unavailable")

	// ErrComputationDegenerate marks a division by zero or empty input.
	// It is resolved to zero-valued defaults inside the package and never returned by Analyze.
	ErrComputationDegenerate = errors.New("computation degenerate")
)

// Category groups errors by the collaborator that produced them.
type Category string

const (
	CategorySource   Category = "source"
	CategoryWallet   Category = "wallet"
	CategoryPrice    Category = "price"
	CategoryInternal Category = "internal"
)

// Error is a categorized pipeline error. It unwraps to both the sentinel
// for its category and the underlying cause.
type Error struct {
	Category   Category
	Code       string
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the category sentinel and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	errs := []error{sentinelFor(e.Category)}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func sentinelFor(c Category) error {
	switch c {
	case CategorySource:
		return ErrSourceUnavailable
	case CategoryWallet:
		return ErrInvalidWallet
	case CategoryPrice:
		return ErrPriceUnavailable
	default:
		return ErrComputationDegenerate
	}
}

// SourceError wraps a failed balance, holdings or history query.
func SourceError(op string, cause error) *Error {
	return &Error{
		Category:   CategorySource,
		Code:       "SOURCE_UNAVAILABLE",
		Message:    op + " failed",
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

// WalletError wraps a rejected wallet identifier.
func WalletError(wallet string, cause error) *Error {
	return &Error{
		Category:   CategoryWallet,
		Code:       "INVALID_WALLET",
		Message:    fmt.Sprintf("invalid wallet %q", wallet),
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

// PriceError wraps a failed or unusable price lookup.
func PriceError(symbol string, cause error) *Error {
	return &Error{
		Category:   CategoryPrice,
		Code:       "PRICE_UNAVAILABLE",
		Message:    fmt.Sprintf("no price for %s", symbol),
		StatusCode: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

// StatusCode returns the HTTP status for err, defaulting to 500.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) && e.StatusCode != 0 {
		return e.StatusCode
	}
	switch {
	case errors.Is(err, ErrInvalidWallet):
		return http.StatusBadRequest
	case errors.Is(err, ErrSourceUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, ErrPriceUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// ErrorCode returns the machine-readable code for err.
func ErrorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	switch {
	case errors.Is(err, ErrInvalidWallet):
		return "INVALID_WALLET"
	case errors.Is(err, ErrSourceUnavailable):
		return "SOURCE_UNAVAILABLE"
	case errors.Is(err, ErrPriceUnavailable):
		return "PRICE_UNAVAILABLE"
	}
	return "INTERNAL"
}
