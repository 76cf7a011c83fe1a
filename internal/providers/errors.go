package providers

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the id is unknown to the provider upstream
	ErrNotFound = errors.New("part not found")

	// ErrInvalidArgument means the id or keyword is structurally invalid
	// for this provider
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAuthentication means no valid credential/token is available and
	// none can be obtained. Distinct from transport failure so callers can
	// direct the user to connect rather than retry.
	ErrAuthentication = errors.New("authentication unavailable")
)

// TransportError wraps a network or HTTP failure contacting a provider
type TransportError struct {
	Provider string
	Op       string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func transportErr(provider, op string, err error) error {
	return &TransportError{Provider: provider, Op: op, Err: err}
}

func statusErr(provider, op string, status int) error {
	return &TransportError{Provider: provider, Op: op, Err: fmt.Errorf("unexpected status %d", status)}
}
