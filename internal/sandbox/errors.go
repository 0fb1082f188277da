package sandbox

import (
	"errors"
	"fmt"
)

// Kind classifies runtime failures.
type Kind int

const (
	KindBoot Kind = iota + 1
	KindMount
	KindSpawn
	KindWrite
	KindRead
)

func (k Kind) String() string {
	switch k {
	case KindBoot:
		return "boot"
	case KindMount:
		return "mount"
	case KindSpawn:
		return "spawn"
	case KindWrite:
		return "write"
	case KindRead:
		return "read"
	default:
		return "unknown"
	}
}

var (
	ErrBoot  = errors.New("sandbox boot failed")
	ErrMount = errors.New("sandbox mount failed")
	ErrSpawn = errors.New("sandbox spawn failed")
	ErrWrite = errors.New("sandbox write failed")
	ErrRead  = errors.New("sandbox read failed")

	ErrNotBooted      = errors.New("sandbox not booted")
	ErrClosed         = errors.New("sandbox closed")
	ErrNotInteractive = errors.New("process has no terminal")
	ErrOutsideRoot    = errors.New("path escapes the workspace")
)

// Error is a classified runtime failure.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String() + " " + e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinel, so errors.Is(err, ErrSpawn) works.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrBoot:
		return e.Kind == KindBoot
	case ErrMount:
		return e.Kind == KindMount
	case ErrSpawn:
		return e.Kind == KindSpawn
	case ErrWrite:
		return e.Kind == KindWrite
	case ErrRead:
		return e.Kind == KindRead
	}
	return false
}

func newError(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// KindOf returns the Kind of a runtime error, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func errorf(kind Kind, op, path, format string, args ...interface{}) *Error {
	return newError(kind, op, path, fmt.Errorf(format, args...))
}
