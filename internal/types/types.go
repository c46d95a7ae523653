package wstypes

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure by how the caller is expected to react.
type ErrorKind int

const (
	// KindUnknown is reported for errors that did not come from this module.
	KindUnknown ErrorKind = iota
	// KindIO is a missing file, truncated read or failed write.
	// Always fatal to the current operation, never retried.
	KindIO
	// KindStructural means the bytes were read but do not form the
	// expected structure. Archive opens report "not a valid archive".
	KindStructural
	// KindPolicy is a rule violation in the input set (conflicting files,
	// oversized assets). The item is skipped and the operation continues.
	KindPolicy
)

func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "IO"
	case KindStructural:
		return "Structural"
	case KindPolicy:
		return "Policy"
	default:
		return "Unknown"
	}
}

// Error is an error tagged with its ErrorKind and the operation that failed.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IOError wraps err as a KindIO failure of op.
func IOError(op string, err error) error {
	return &Error{Kind: KindIO, Op: op, Err: err}
}

// StructuralError wraps err as a KindStructural failure of op.
func StructuralError(op string, err error) error {
	return &Error{Kind: KindStructural, Op: op, Err: err}
}

// PolicyError wraps err as a KindPolicy failure of op.
func PolicyError(op string, err error) error {
	return &Error{Kind: KindPolicy, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
