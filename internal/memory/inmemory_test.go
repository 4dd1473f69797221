package memory

import (
	"context"
	"fmt"
	"testing"
)

func TestAppendAndRecentRoundTrip(t *testing.T) {
	s := NewInMemoryStore()
	id := Identity{UserID: "u1"}

	if err := s.Append(context.Background(), id, "hello", "hi there"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	records, err := s.Recent(context.Background(), id, 6)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Recent() returned %d records, want 2", len(records))
	}
	if records[0].Role != RoleUser || records[0].Content != "hello" {
		t.Fatalf("first record = %+v, want user hello", records[0])
	}
	if records[1].Role != RoleAssistant || records[1].Content != "hi there" {
		t.Fatalf("second record = %+v, want assistant reply", records[1])
	}
}

func TestAppendFailureLeavesNothingVisible(t *testing.T) {
	s := NewInMemoryStore()
	id := Identity{}

	if err := s.Append(context.Background(), id, "half", "written"); err == nil {
		t.Fatalf("Append() should fail without user id")
	}

	records, err := s.Recent(context.Background(), Identity{UserID: ""}, 6)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("failed append left %d records visible, want 0", len(records))
	}
}

func TestRecentBalancesRoles(t *testing.T) {
	s := NewInMemoryStore()
	id := Identity{UserID: "u1"}

	for i := 0; i < 10; i++ {
		if err := s.Append(context.Background(), id, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i)); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	records, err := s.Recent(context.Background(), id, 3)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}

	var users, assistants int
	for _, r := range records {
		switch r.Role {
		case RoleUser:
			users++
		case RoleAssistant:
			assistants++
		}
	}
	if users > 3 || assistants > 3 {
		t.Fatalf("got %d user and %d assistant records, want at most 3 each", users, assistants)
	}

	for i := 1; i < len(records); i++ {
		if records[i].Timestamp.Before(records[i-1].Timestamp) {
			t.Fatalf("records not in ascending timestamp order at %d", i)
		}
	}
}

func TestIdentityScopesAreDistinct(t *testing.T) {
	s := NewInMemoryStore()
	direct := Identity{UserID: "u1"}
	grouped := Identity{UserID: "u1", GroupID: "g1"}

	if err := s.Append(context.Background(), direct, "direct q", "direct a"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	records, err := s.Recent(context.Background(), grouped, 6)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("group identity sees %d direct records, want 0", len(records))
	}
}
