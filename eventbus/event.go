// Package eventbus provides a thread-safe publish/subscribe registry keyed by
// event type. It is the side channel through which notifications raised
// outside the control goroutine reach the rest of the system.
package eventbus

// An Event is an immutable notification delivered through the Bus. Events are
// passed by value; handlers cannot affect each other through them.
type Event struct {
	Type    string
	Payload string
}

// A Handler receives events delivered through a Bus.
type Handler interface {
	Handle(e Event)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(e Event)

// Handle calls f(e).
func (f HandlerFunc) Handle(e Event) {
	f(e)
}
