// mailbox.go
package bus

// Mailbox is a bounded multi-producer/single-consumer FIFO queue.
//
// TrySend never blocks: a full mailbox fails the send and leaves the queued
// entries untouched. Callers must treat a failed send as a recoverable drop,
// not a fatal error.
type Mailbox[T any] struct {
	ch chan T
}

// NewMailbox creates a mailbox with the given capacity.
func NewMailbox[T any](capacity int) *Mailbox[T] {
	if capacity <= 0 {
		capacity = 8 // safe default
	}
	return &Mailbox[T]{ch: make(chan T, capacity)}
}

// TrySend enqueues v, or reports false if the mailbox is full.
func (m *Mailbox[T]) TrySend(v T) bool {
	select {
	case m.ch <- v:
		return true
	default:
		return false
	}
}

// C is the single consumer's receive channel. Entries arrive in FIFO order.
func (m *Mailbox[T]) C() <-chan T { return m.ch }

// Len reports the number of queued entries.
func (m *Mailbox[T]) Len() int { return len(m.ch) }

// Cap reports the mailbox capacity.
func (m *Mailbox[T]) Cap() int { return cap(m.ch) }
