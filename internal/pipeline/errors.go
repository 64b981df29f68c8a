package pipeline

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies why a task failed.
type Kind int

const (
	KindUnknown Kind = iota
	KindFeed
	KindDownload
	KindSplit
	KindBackend
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindFeed:
		return "feed"
	case KindDownload:
		return "download"
	case KindSplit:
		return "split"
	case KindBackend:
		return "backend"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Error is a failed pipeline step.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Cause lets errors.Cause reach the underlying error.
func (e *Error) Cause() error { return e.Err }

// KindOf returns the kind of the first pipeline Error in err's chain.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

func newError(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: errors.WithStack(err)}
}
