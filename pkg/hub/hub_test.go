package hub

import (
	"testing"
	"time"
)

func TestBroadcastWithoutClients(t *testing.T) {
	h := New("test")
	go h.Run()
	defer h.Stop()

	// No clients connected: broadcasts must not block or panic.
	for i := 0; i < 300; i++ {
		h.Broadcast([]byte("ping"))
	}
	if err := h.BroadcastJSON(map[string]int{"n": 1}); err != nil {
		t.Fatalf("BroadcastJSON failed: %v", err)
	}
	if h.ClientCount() != 0 {
		t.Errorf("Expected 0 clients, got %d", h.ClientCount())
	}
}

func TestBroadcastJSONRejectsUnencodable(t *testing.T) {
	h := New("test")
	if err := h.BroadcastJSON(make(chan int)); err == nil {
		t.Error("Expected marshal error for unencodable value")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	h := New("test")
	done := make(chan struct{})
	go func() {
		h.Run()
		close(done)
	}()

	h.Stop()
	h.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
