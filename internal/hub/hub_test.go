package hub

import (
	"testing"
	"time"

	"github.com/igbemx/dev-softimax-lauda-t2200/internal/attr"
)

func TestHub_Broadcast_DropDoesNotBlock(t *testing.T) {
	h := New()
	cl := &Client{Out: make(chan attr.Update, 4), Closed: make(chan struct{})}
	h.Add(cl)
	defer h.Remove(cl)

	// Don't read from cl.Out to simulate a slow subscriber.
	start := time.Now()
	for i := 0; i < 1000; i++ {
		h.Broadcast(attr.Update{Name: "bath_temp", Value: attr.Float(23.5)})
	}
	elapsed := time.Since(start)
	if elapsed > time.Second {
		t.Fatalf("Broadcast took too long: %s", elapsed)
	}
	if len(cl.Out) != cap(cl.Out) {
		t.Fatalf("expected subscriber buffer to be full, got len=%d cap=%d", len(cl.Out), cap(cl.Out))
	}
}

func TestHub_Broadcast_DropKeepsOthersFlowing(t *testing.T) {
	h := New()
	slow := &Client{Out: make(chan attr.Update, 1), Closed: make(chan struct{})}
	fast := &Client{Out: make(chan attr.Update, 16), Closed: make(chan struct{})}
	h.Add(slow)
	h.Add(fast)
	defer h.Remove(slow)
	defer h.Remove(fast)

	// Fill the slow buffer.
	h.Broadcast(attr.Update{Name: "pressure", Value: attr.Float(1.0)})

	for i := 0; i < 10; i++ {
		h.Broadcast(attr.Update{Name: "pressure", Value: attr.Float(1.1)})
	}

	got := 0
	timeout := time.After(200 * time.Millisecond)
loop:
	for {
		select {
		case <-fast.Out:
			got++
			if got >= 5 { // at least some got through
				break loop
			}
		case <-timeout:
			break loop
		}
	}
	if got == 0 {
		t.Fatalf("fast subscriber did not receive any updates while slow was backpressured")
	}
}

func TestHub_KickClosesSlowClient(t *testing.T) {
	h := New()
	h.Policy = PolicyKick
	cl := &Client{Out: make(chan attr.Update, 1), Closed: make(chan struct{})}
	h.Add(cl)
	defer h.Remove(cl)

	h.Broadcast(attr.Update{Name: "is_on", Value: attr.Bool(true)})
	h.Broadcast(attr.Update{Name: "is_on", Value: attr.Bool(true)}) // overflows

	select {
	case <-cl.Closed:
	case <-time.After(time.Second):
		t.Fatalf("expected kicked client to be closed")
	}
}

func TestHub_RemoveIdempotent(t *testing.T) {
	h := New()
	cl := &Client{Out: make(chan attr.Update, 1), Closed: make(chan struct{})}
	h.Add(cl)
	h.Remove(cl)
	h.Remove(cl)
	if h.Count() != 0 {
		t.Fatalf("Count = %d, want 0", h.Count())
	}
}
