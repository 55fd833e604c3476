package form

import "errors"

var (
	// ErrUnknownField is returned when a key is not part of the entity schema.
	ErrUnknownField = errors.New("form: unknown field")
	// ErrFieldKind is returned when an operation or value does not match the
	// field kind.
	ErrFieldKind = errors.New("form: value does not match field kind")
	// ErrSubmitting is returned by mutations while a submission holds the
	// state.
	ErrSubmitting = errors.New("form: submission in flight")
	// ErrClosed is returned by mutations after Close.
	ErrClosed = errors.New("form: state closed")
)

// ErrUnknownSubrecord is returned when a sub-record id is not in the list.
var ErrUnknownSubrecord = errors.New("form: unknown sub-record")
