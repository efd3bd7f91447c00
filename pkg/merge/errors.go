package merge

import (
	"errors"
	"fmt"
)

// ErrInvalidRange is matched by every error the engine returns for malformed input.
var ErrInvalidRange = errors.New("invalid range")

// RangeError describes the offending placeholder range.
type RangeError struct {
	Placeholder string
	Key         int
	Range       Range
	Reason      string
}

func (e *RangeError) Error() string {
	if e.Placeholder != "" {
		return fmt.Sprintf("invalid range %s for placeholder %q: %s", e.Range, e.Placeholder, e.Reason)
	}
	return fmt.Sprintf("invalid range %s: %s", e.Range, e.Reason)
}

func (e *RangeError) Unwrap() error {
	return ErrInvalidRange
}
