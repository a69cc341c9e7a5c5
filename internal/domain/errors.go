package domain

import "fmt"

// Typed errors shared by the services, adapters and the HTTP layer, which
// maps them to status codes. Match them with errors.As.

// ErrNotFound is returned when a customer, session or pending action does
// not exist.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// ErrExternalService wraps a failed call to an inference backend, the
// account store or the ticket broker.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen means calls to Service are being rejected until its
// breaker half-opens.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("%s circuit open", e.Service)
}

// ErrValidation rejects caller input: an unknown add-on or setting, a bad
// value, an empty message.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ErrParse indicates model output that is not the expected JSON shape.
type ErrParse struct {
	What string
	Err  error
}

func (e *ErrParse) Error() string {
	return fmt.Sprintf("parse %s: %v", e.What, e.Err)
}

func (e *ErrParse) Unwrap() error {
	return e.Err
}
