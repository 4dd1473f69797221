package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestBuildWithoutHistoryReturnsOriginal(t *testing.T) {
	a := NewAssembler(NewInMemoryStore(), 6, 100, 10000)

	out, used := a.Build(context.Background(), Identity{UserID: "u1"}, "你好")
	if used {
		t.Fatalf("Build() used history with empty store")
	}
	if out != "你好" {
		t.Fatalf("Build() = %q, want original message", out)
	}
}

func TestBuildPrependsRenderedHistory(t *testing.T) {
	store := NewInMemoryStore()
	id := Identity{UserID: "u1"}
	if err := store.Append(context.Background(), id, "昨天吃了拉麵", "聽起來很棒"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	a := NewAssembler(store, 6, 100, 10000)
	out, used := a.Build(context.Background(), id, "今天吃什麼")
	if !used {
		t.Fatalf("Build() did not use available history")
	}
	if !strings.HasPrefix(out, historyHeader) {
		t.Fatalf("Build() output missing header: %q", out)
	}
	if !strings.Contains(out, "User (") || !strings.Contains(out, "Assistant (") {
		t.Fatalf("Build() output missing role labels: %q", out)
	}
	if !strings.HasSuffix(out, "當前問題: 今天吃什麼") {
		t.Fatalf("Build() output missing current question: %q", out)
	}
}

func TestBuildDropsOversizedHistoryEntirely(t *testing.T) {
	store := NewInMemoryStore()
	id := Identity{UserID: "u1"}
	long := strings.Repeat("很長的內容", 10)
	for i := 0; i < 6; i++ {
		if err := store.Append(context.Background(), id, long, long); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	a := NewAssembler(store, 6, 100, 120)
	msg := "這是目前的問題"
	out, used := a.Build(context.Background(), id, msg)
	if used {
		t.Fatalf("Build() kept history beyond the hard ceiling")
	}
	if out != msg {
		t.Fatalf("Build() = %q, want unaugmented message", out)
	}
}

func TestBuildSurvivesStoreFailure(t *testing.T) {
	a := NewAssembler(failingStore{}, 6, 100, 10000)

	out, used := a.Build(context.Background(), Identity{UserID: "u1"}, "hello")
	if used || out != "hello" {
		t.Fatalf("Build() = (%q, %v), want unaugmented fallback", out, used)
	}
}

func TestFormatHistoryTruncatesEntries(t *testing.T) {
	records := []Record{
		{Role: RoleUser, Content: strings.Repeat("字", 150), Timestamp: time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)},
	}

	out := FormatHistory(records, 100)
	line := strings.Split(out, "\n")[1]
	if !strings.HasSuffix(line, "...") {
		t.Fatalf("long entry not truncated: %q", line)
	}
	if strings.Count(line, "字") != 100 {
		t.Fatalf("truncated entry has %d runes of content, want 100", strings.Count(line, "字"))
	}
}

type failingStore struct{}

func (failingStore) Append(context.Context, Identity, string, string) error {
	return errors.New("store down")
}

func (failingStore) Recent(context.Context, Identity, int) ([]Record, error) {
	return nil, errors.New("store down")
}

func (failingStore) Close() error { return nil }
