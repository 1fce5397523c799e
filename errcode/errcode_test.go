// errcode_test.go
package errcode

import (
	"errors"
	"testing"
)

func TestOf(t *testing.T) {
	if got := Of(nil); got != OK {
		t.Fatalf("Of(nil) = %q, want %q", got, OK)
	}
	if got := Of(Busy); got != Busy {
		t.Fatalf("Of(Code) = %q, want %q", got, Busy)
	}
	wrapped := &E{C: Timeout, Op: "bus", Msg: "no ack"}
	if got := Of(wrapped); got != Timeout {
		t.Fatalf("Of(*E) = %q, want %q", got, Timeout)
	}
	if got := Of(errors.New("plain")); got != Error {
		t.Fatalf("Of(plain) = %q, want %q", got, Error)
	}
}

func TestEError(t *testing.T) {
	e := &E{C: ChecksumMismatch, Msg: "frame"}
	if got := e.Error(); got != "checksum_mismatch: frame" {
		t.Fatalf("Error() = %q", got)
	}
	bare := &E{C: QueueFull}
	if got := bare.Error(); got != "queue_full" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("io failure")
	e := &E{C: StorageFull, Err: cause}
	if !errors.Is(e, cause) {
		t.Fatal("wrapped cause not reachable via errors.Is")
	}
}
