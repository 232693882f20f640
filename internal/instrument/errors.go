package instrument

import (
	"errors"
	"fmt"
	"time"
)

var errUnknownResource = errors.New("resource name is not configured")

// ResourceNotFoundError reports that a logical resource name could not be bound
// to a transport. Nothing has been commanded when this is returned.
type ResourceNotFoundError struct {
	Name    string
	Address string
	Err     error
}

func (e *ResourceNotFoundError) Error() string {
	if e.Address != "" {
		return fmt.Sprintf("instrument %q (%s) not found: %v", e.Name, e.Address, e.Err)
	}
	return fmt.Sprintf("instrument %q not found: %v", e.Name, e.Err)
}

func (e *ResourceNotFoundError) Unwrap() error { return e.Err }

// TransportError is an I/O failure while talking to an open instrument.
type TransportError struct {
	Resource string
	Command  string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %q failed: %v", e.Resource, e.Command, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError is returned when a numeric query gets a reply that is not a
// single finite number.
type ParseError struct {
	Resource string
	Command  string
	Reply    string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %q returned non-numeric reply %q: %v", e.Resource, e.Command, e.Reply, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// TimeoutError is returned when an exchange did not complete within the
// session's per-command timeout.
type TimeoutError struct {
	Resource string
	Command  string
	After    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: %q timed out after %v", e.Resource, e.Command, e.After)
}
