package eventbus

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/embedlab/tact/hooking"
)

// HookPosBeforeDelivery triggers before an emitted event is delivered to its
// handlers. HookCtx.Detail holds the number of handlers that will run.
var HookPosBeforeDelivery = &hooking.HookPos{Name: "BeforeDelivery"}

// HookPosAfterDelivery triggers after an emitted event was delivered to every
// handler.
var HookPosAfterDelivery = &hooking.HookPos{Name: "AfterDelivery"}

// HookPosDeliveryError triggers when a handler panicked during delivery. The
// recovered value is in HookCtx.Detail.
var HookPosDeliveryError = &hooking.HookPos{Name: "DeliveryError"}

// A Bus maps an event type to an ordered sequence of handlers and delivers
// emitted events to them.
//
// Register and Emit are safe to call from any goroutine. Emit snapshots the
// handler sequence under the lock and invokes the handlers outside of it, so
// a handler may call Register; the in-flight delivery still uses the
// pre-registration snapshot.
type Bus struct {
	*hooking.HookableBase

	mu       sync.RWMutex
	handlers map[string][]Handler

	logger zerolog.Logger
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{
		HookableBase: hooking.NewHookableBase(),
		handlers:     make(map[string][]Handler),
		logger:       zerolog.Nop(),
	}
}

// WithLogger returns the bus configured to report delivery failures through
// the given logger.
func (b *Bus) WithLogger(logger zerolog.Logger) *Bus {
	b.logger = logger
	return b
}

// Register appends the handler to the sequence for the given event type,
// creating the sequence when absent. Registration order defines delivery
// order. There is no limit on the number of handlers per type.
func (b *Bus) Register(eventType string, handler Handler) {
	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.mu.Unlock()
}

// Emit delivers the event to every handler registered for its type, in
// registration order, synchronously on the calling goroutine. Emitting an
// event of a type with no registered handlers is a no-op. A panicking handler
// is recovered and reported; the remaining handlers still run.
func (b *Bus) Emit(e Event) {
	b.mu.RLock()
	registered := b.handlers[e.Type]
	snapshot := make([]Handler, len(registered))
	copy(snapshot, registered)
	b.mu.RUnlock()

	if len(snapshot) == 0 {
		return
	}

	b.InvokeHook(hooking.HookCtx{
		Domain: b,
		Pos:    HookPosBeforeDelivery,
		Item:   e,
		Detail: len(snapshot),
	})

	for i, handler := range snapshot {
		b.deliver(e, i, handler)
	}

	b.InvokeHook(hooking.HookCtx{
		Domain: b,
		Pos:    HookPosAfterDelivery,
		Item:   e,
	})
}

func (b *Bus) deliver(e Event, index int, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("event_type", e.Type).
				Int("handler_index", index).
				Any("panic", r).
				Msg("event handler panicked")

			b.InvokeHook(hooking.HookCtx{
				Domain: b,
				Pos:    HookPosDeliveryError,
				Item:   e,
				Detail: r,
			})
		}
	}()

	handler.Handle(e)
}

// NumHandlers returns the number of handlers registered for the given event
// type.
func (b *Bus) NumHandlers(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.handlers[eventType])
}
