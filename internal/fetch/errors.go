package fetch

import (
	"errors"
	"fmt"

	"slippymap/internal/projection"
	"slippymap/internal/source"
)

// DecodeError reports tile bytes that fetched fine but could not be decoded
// into an image. It is terminal: corrupt tiles are not refetched within the
// same task.
type DecodeError struct {
	Addr projection.TileAddress
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode tile %s: %v", e.Addr, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// retryable reports whether a fetch attempt is worth repeating. Only
// transient source failures qualify; not-found and decode failures are
// terminal, as is anything unknown.
func retryable(err error) bool {
	var fe *source.FetchError
	return errors.As(err, &fe)
}
