package finsync

import (
	"fmt"

	"github.com/unkn0wn-root/finsync/transport"
)

// ErrNotFound is returned by lookups when the backend has no such resource.
var ErrNotFound = transport.ErrNotFound

// HTTPError is the error for a non-2xx response.
type HTTPError = transport.StatusError

// ProtocolError reports a response the backend should never have sent, such
// as a create answered without an id.
type ProtocolError = transport.ProtocolError

// PublishError reports a failed write of a mutation result to the shared tier.
// The session cache is already up to date when it is returned.
type PublishError struct {
	Key     string
	BumpErr error
	SetErr  error
}

func (e *PublishError) Error() string {
	switch {
	case e.BumpErr != nil && e.SetErr != nil:
		return fmt.Sprintf("publish %q failed: gen bump and write failed: bump=%v; write=%v",
			e.Key, e.BumpErr, e.SetErr)
	case e.BumpErr != nil:
		return fmt.Sprintf("publish %q: gen bump failed: %v", e.Key, e.BumpErr)
	case e.SetErr != nil:
		return fmt.Sprintf("publish %q: write failed: %v", e.Key, e.SetErr)
	default:
		return fmt.Sprintf("publish %q: unknown error", e.Key)
	}
}

func (e *PublishError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.BumpErr != nil {
		errs = append(errs, e.BumpErr)
	}
	if e.SetErr != nil {
		errs = append(errs, e.SetErr)
	}
	return errs
}

func notFound(class, id string) error {
	return fmt.Errorf("%s %q: %w", class, id, ErrNotFound)
}
