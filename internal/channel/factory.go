//go:build !debug

package channel

// New creates the inbox channel of an event loop. Sizes below one get a
// single slot so TrySend can succeed while the loop is busy.
func New[T any](size int) Channel[T] {
	if size < 1 {
		size = 1
	}
	return NewBuffered[T](size)
}
