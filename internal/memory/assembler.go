package memory

import (
	"context"
	"log"
	"strings"
	"unicode/utf8"
)

const (
	historyHeader = "=== Conversation History ==="
	historyFooter = "=== End of History ==="
)

// Assembler builds the size-capped prompt prefix from recent history.
// It is a pure read + transform: it never writes and never fails a turn.
type Assembler struct {
	store         Store
	recordLimit   int
	entryMaxChars int
	maxChars      int
}

func NewAssembler(store Store, recordLimit, entryMaxChars, maxChars int) *Assembler {
	if recordLimit <= 0 {
		recordLimit = 6
	}
	if entryMaxChars <= 0 {
		entryMaxChars = 100
	}
	if maxChars <= 0 {
		maxChars = 10000
	}
	return &Assembler{
		store:         store,
		recordLimit:   recordLimit,
		entryMaxChars: entryMaxChars,
		maxChars:      maxChars,
	}
}

// Build prepends the rendered history window to message. The second return
// reports whether history was used. When the store is unavailable, history
// is empty, or the combined length would exceed the hard ceiling, the
// original message is returned unaugmented.
func (a *Assembler) Build(ctx context.Context, id Identity, message string) (string, bool) {
	records, err := a.store.Recent(ctx, id, a.recordLimit)
	if err != nil {
		log.Printf("memory: recent history unavailable for %s: %v", id.Key(), err)
		return message, false
	}
	if len(records) == 0 {
		return message, false
	}

	rendered := FormatHistory(records, a.entryMaxChars)
	if utf8.RuneCountInString(rendered)+utf8.RuneCountInString(message) > a.maxChars {
		log.Printf("memory: history window over %d chars for %s, dropping context", a.maxChars, id.Key())
		return message, false
	}

	return rendered + "\n\n當前問題: " + message, true
}

// FormatHistory renders records chronologically as
// "<RoleLabel> (<timestamp>): <content>" lines wrapped in header/footer
// delimiters, truncating each content field to entryMaxChars runes.
func FormatHistory(records []Record, entryMaxChars int) string {
	if len(records) == 0 {
		return ""
	}

	lines := make([]string, 0, len(records)+2)
	lines = append(lines, historyHeader)
	for _, r := range records {
		label := "User"
		if r.Role == RoleAssistant {
			label = "Assistant"
		}
		ts := r.Timestamp.Format("2006-01-02 15:04")
		lines = append(lines, label+" ("+ts+"): "+truncateRunes(r.Content, entryMaxChars))
	}
	lines = append(lines, historyFooter)
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
