package cache

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidArgument marks errors caused by a bad argument from the caller.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidState marks errors caused by a cache that cannot serve the call.
	ErrInvalidState = errors.New("invalid state")
	// ErrClosed is returned by operations on a closed cache.
	ErrClosed = errors.Mark(errors.New("cache: closed"), ErrInvalidState)
)

func invalidArgument(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidArgument)
}

func invalidState(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidState)
}
