package packet

import "errors"

var (
	// ErrInvalidArgument is returned when a packet or option fails validation.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInterrupted is returned when the caller's context ends while it is
	// blocked on a queue.
	ErrInterrupted = errors.New("interrupted")

	ErrResolve = errors.New("unable to resolve host")
	ErrBind    = errors.New("unable to bind local port")

	// ErrStarted is returned by Start on a loop or transport that already ran.
	ErrStarted = errors.New("already started")
)
