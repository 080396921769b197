// ABOUTME: TransferError taxonomy for every gateway backend
// ABOUTME: Network, status, decode, rejection and size failures share one error type

package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies a transfer failure.
type Kind string

const (
	KindNetwork  Kind = "network"   // transport failure, timeout, cancellation
	KindStatus   Kind = "status"    // non-success HTTP status
	KindDecode   Kind = "decode"    // malformed response body
	KindRejected Kind = "rejected"  // service answered but refused the request
	KindTooLarge Kind = "too_large" // response or payload exceeds the size cap
)

// TransferError is returned by gateways for any failed request/response cycle.
type TransferError struct {
	Op     string // "fetch_page", "upload", ...
	Kind   Kind
	Status int // HTTP status when Kind == KindStatus
	Err    error
}

func (e *TransferError) Error() string {
	switch {
	case e.Kind == KindStatus:
		return fmt.Sprintf("%s: unexpected status code: %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func newTransferError(op string, kind Kind, err error) *TransferError {
	return &TransferError{Op: op, Kind: kind, Err: err}
}

// IsTransferError reports whether err (or anything it wraps) is a TransferError,
// and returns it.
func IsTransferError(err error) (*TransferError, bool) {
	var te *TransferError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
