package dedupe

import (
	"fmt"
	"sync"
	"testing"
)

func TestShouldProcessOncePerID(t *testing.T) {
	g := NewGate(500)

	if !g.ShouldProcess("msg_1") {
		t.Fatalf("first sighting should process")
	}
	if g.ShouldProcess("msg_1") {
		t.Fatalf("duplicate sighting should be suppressed")
	}
}

func TestEvictionKeepsCapacityAndDropsOldest(t *testing.T) {
	g := NewGate(500)

	for i := 0; i < 501; i++ {
		if !g.ShouldProcess(fmt.Sprintf("msg_%d", i)) {
			t.Fatalf("id %d unexpectedly suppressed", i)
		}
	}

	if g.Len() != 500 {
		t.Fatalf("Len() = %d, want 500", g.Len())
	}
	// The earliest-inserted id was evicted, so it processes again.
	if !g.ShouldProcess("msg_0") {
		t.Fatalf("evicted id should process again")
	}
	// A recent id is still tracked.
	if g.ShouldProcess("msg_500") {
		t.Fatalf("recent id should still be suppressed")
	}
}

func TestShouldProcessIsSafeUnderConcurrency(t *testing.T) {
	g := NewGate(100)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				g.ShouldProcess(fmt.Sprintf("w%d_%d", w, i))
			}
		}(w)
	}
	wg.Wait()

	if g.Len() != 100 {
		t.Fatalf("Len() = %d, want capacity 100", g.Len())
	}
}

func TestMessageKeyPrefersPlatformID(t *testing.T) {
	if got := MessageKey("abc", "content", "u1", "g1", 42); got != "msg_abc" {
		t.Fatalf("MessageKey() = %q, want msg_abc", got)
	}
}

func TestMessageKeyFallbackIsStable(t *testing.T) {
	a := MessageKey("", "hello", "u1", "g1", 42)
	b := MessageKey("", "hello", "u1", "g1", 42)
	c := MessageKey("", "hello", "u2", "g1", 42)

	if a != b {
		t.Fatalf("fallback key not stable: %q vs %q", a, b)
	}
	if a == c {
		t.Fatalf("fallback key ignores sender: %q", a)
	}
}
