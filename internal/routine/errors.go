package routine

import (
	"errors"
	"fmt"
)

// ErrPanicRecovered is returned when a panic is recovered
var ErrPanicRecovered = errors.New("routine: panic recovered")

// ErrPanic returns an error wrapping the recovered panic value
func ErrPanic(recovered any) error {
	return fmt.Errorf("%w: %v", ErrPanicRecovered, recovered)
}
