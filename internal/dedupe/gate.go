// Package dedupe suppresses reprocessing of redelivered platform events.
//
// The gate is a volatile, bounded set: it is an approximation of true
// deduplication, acceptable because the platform redelivers duplicates
// only within a short window. It gives no guarantee across restarts.
package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"
)

// Gate is a process-wide seen-id filter with insertion-order eviction.
type Gate struct {
	mu       sync.Mutex
	capacity int
	seen     map[string]struct{}
	order    []string
}

func NewGate(capacity int) *Gate {
	if capacity <= 0 {
		capacity = 500
	}
	return &Gate{
		capacity: capacity,
		seen:     make(map[string]struct{}, capacity),
	}
}

// ShouldProcess reports whether id has not been seen before, marking it as
// seen when it returns true. Once the set exceeds capacity the single
// oldest-inserted id is evicted.
func (g *Gate) ShouldProcess(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.seen[id]; ok {
		return false
	}

	g.seen[id] = struct{}{}
	g.order = append(g.order, id)
	if len(g.order) > g.capacity {
		oldest := g.order[0]
		g.order = g.order[1:]
		delete(g.seen, oldest)
	}
	return true
}

// Len returns the current number of tracked ids.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}

// MessageKey derives a dedupe identifier for an event. A platform-provided
// message id is preferred; otherwise a content fingerprint is used. The
// fallback is probabilistic, not exact: a hash collision drops a message.
func MessageKey(messageID, content, senderID, conversationID string, timestamp int64) string {
	if messageID != "" {
		return "msg_" + messageID
	}

	h := sha256.New()
	h.Write([]byte(content))
	h.Write([]byte{0})
	h.Write([]byte(senderID))
	h.Write([]byte{0})
	h.Write([]byte(conversationID))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(timestamp, 10)))
	return fmt.Sprintf("fp_%s", hex.EncodeToString(h.Sum(nil)[:16]))
}
