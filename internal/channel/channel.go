// Package channel provides generic channel interfaces for decoupled communication.
package channel

import "context"

// Receiver provides read access to a channel.
type Receiver[T any] interface {
	Receive() <-chan T
	Len() int
}

// Sender provides write access to a channel.
type Sender[T any] interface {
	Send(T)
	// TrySend delivers v only if that would not block.
	TrySend(T) bool
	// SendContext blocks until v is delivered or ctx is done.
	SendContext(context.Context, T) bool
}

// Channel combines read and write access.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Close()
}
