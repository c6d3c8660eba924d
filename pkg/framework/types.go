// Package framework provides the runner and error helpers shared by the
// host tools.
package framework

import "context"

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// Message defines the abstract message published by a simulated board.
type Message interface {
	// NewMessage creates an empty message.
	NewMessage() Message
}
