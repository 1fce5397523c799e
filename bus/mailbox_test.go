// bus/mailbox_test.go
package bus

import "testing"

func TestMailboxFIFO(t *testing.T) {
	m := NewMailbox[int](4)
	for i := 0; i < 4; i++ {
		if !m.TrySend(i) {
			t.Fatalf("send %d failed below capacity", i)
		}
	}
	for i := 0; i < 4; i++ {
		if got := <-m.C(); got != i {
			t.Fatalf("expected %d, got %d", i, got)
		}
	}
}

func TestMailboxFullFailsWithoutBlocking(t *testing.T) {
	m := NewMailbox[string](2)
	if !m.TrySend("a") || !m.TrySend("b") {
		t.Fatal("sends below capacity must succeed")
	}
	if m.TrySend("c") {
		t.Fatal("send beyond capacity must fail")
	}
	// Previously queued entries survive in order.
	if got := <-m.C(); got != "a" {
		t.Fatalf("expected 'a', got %q", got)
	}
	if got := <-m.C(); got != "b" {
		t.Fatalf("expected 'b', got %q", got)
	}
	if m.Len() != 0 {
		t.Fatalf("mailbox should be empty, len=%d", m.Len())
	}
}

func TestMailboxDefaultCapacity(t *testing.T) {
	m := NewMailbox[int](0)
	if m.Cap() != 8 {
		t.Fatalf("expected default capacity 8, got %d", m.Cap())
	}
}
