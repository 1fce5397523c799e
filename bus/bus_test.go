// bus/bus_test.go
package bus

import (
	"testing"
	"time"
)

func TestBasicPubSub(t *testing.T) {
	b := NewBus(4)
	conn := b.NewConnection("test")

	sub := conn.Subscribe(T("wifi", "status"))

	conn.Publish(conn.NewMessage(T("wifi", "status"), "hello", false))

	select {
	case got := <-sub.Channel():
		if got.Payload.(string) != "hello" {
			t.Errorf("expected payload 'hello', got %v", got.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
}

func TestRetainedMessage(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")

	conn.Publish(conn.NewMessage(T("sensor", "reading"), "persist", true))

	sub := conn.Subscribe(T("sensor", "reading"))

	select {
	case got := <-sub.Channel():
		if got.Payload.(string) != "persist" {
			t.Errorf("expected retained payload 'persist', got %v", got.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for retained message")
	}

	if _, ok := b.Retained(T("sensor", "reading")); !ok {
		t.Fatal("Retained() should report the stored message")
	}
	if _, ok := b.Retained(T("sensor", "other")); ok {
		t.Fatal("Retained() reported a message for an empty topic")
	}
}

func TestRetainedClear(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")

	conn.Publish(conn.NewMessage(T("ota", "status"), "pending", true))
	conn.Publish(conn.NewMessage(T("ota", "status"), nil, true))

	if _, ok := b.Retained(T("ota", "status")); ok {
		t.Fatal("nil retained payload should clear the slot")
	}
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")
	sub := conn.Subscribe(T("x"))

	for i := 0; i < 5; i++ {
		conn.Publish(conn.NewMessage(T("x"), i, false))
	}

	// Queue length 2: the two newest survive.
	got := []int{
		(<-sub.Channel()).Payload.(int),
		(<-sub.Channel()).Payload.(int),
	}
	if got[0] != 3 || got[1] != 4 {
		t.Fatalf("expected [3 4] after drop-oldest, got %v", got)
	}
}

func TestUnsubscribePrunes(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")
	sub := conn.Subscribe(T("a", "b", "c"))
	sub.Unsubscribe()

	// Publishing into the pruned subtree must not panic or deliver.
	conn.Publish(conn.NewMessage(T("a", "b", "c"), "gone", false))

	select {
	case _, open := <-sub.Channel():
		if open {
			t.Fatal("message delivered after unsubscribe")
		}
	default:
	}
}

func TestDisconnectClosesAll(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")
	s1 := conn.Subscribe(T("a"))
	s2 := conn.Subscribe(T("b"))
	conn.Disconnect()

	for _, s := range []*Subscription{s1, s2} {
		if _, open := <-s.Channel(); open {
			t.Fatal("channel should be closed after Disconnect")
		}
	}
}
