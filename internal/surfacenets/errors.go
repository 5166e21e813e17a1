package surfacenets

import "fmt"

// UnsupportedSizeError is returned when the mesher is asked for a chunk
// size it has no implementation for.
type UnsupportedSizeError struct {
	Size int
}

func (e *UnsupportedSizeError) Error() string {
	return fmt.Sprintf("surfacenets: unsupported chunk size %d (supported: %v)", e.Size, SupportedSizes)
}
