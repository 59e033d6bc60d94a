//go:build debug

package channel

// New ignores size in debug builds and returns a single-slot channel, which
// surfaces senders that rely on a deep inbox.
func New[T any](size int) Channel[T] {
	return NewBuffered[T](1)
}
