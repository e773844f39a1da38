package transport

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the backend has no such resource,
// either as a 404 or as a `"data": null` document.
var ErrNotFound = errors.New("finsync: resource not found")

// StatusError is a completed round trip with a non-2xx status.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   string // truncated
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("finsync: %s %s: status %d", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("finsync: %s %s: status %d: %s", e.Method, e.URL, e.Status, e.Body)
}

// NetworkError is a request that could not be completed at all.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("finsync: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError is a 2xx response whose body is not a usable document.
type ProtocolError struct {
	Method string
	URL    string
	Err    error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("finsync: %s %s: bad document: %v", e.Method, e.URL, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
