package convo

import (
	"fmt"
	"testing"

	"cyanbot/internal/domain"
)

func TestStore_AppendAndSnapshotOrder(t *testing.T) {
	s := NewStore(10)
	s.Append("c1", domain.Turn{Role: domain.RoleUser, Content: "one"})
	s.Append("c1", domain.Turn{Role: domain.RoleAssistant, Content: "two"})

	got := s.Snapshot("c1")
	if len(got) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(got))
	}
	if got[0].Content != "one" || got[1].Content != "two" {
		t.Fatalf("turns out of append order: %v", got)
	}
}

func TestStore_FIFOEviction(t *testing.T) {
	// 12 appends into an empty history with the default cap of 10 must keep
	// exactly turns 3..12 in order.
	s := NewStore(10)
	for i := 1; i <= 12; i++ {
		s.Append("c1", domain.Turn{Role: domain.RoleUser, Content: fmt.Sprintf("t%d", i)})
	}

	got := s.Snapshot("c1")
	if len(got) != 10 {
		t.Fatalf("expected 10 turns after eviction, got %d", len(got))
	}
	for i, turn := range got {
		want := fmt.Sprintf("t%d", i+3)
		if turn.Content != want {
			t.Fatalf("turn %d: expected %q, got %q", i, want, turn.Content)
		}
	}
}

func TestStore_SnapshotIdempotent(t *testing.T) {
	s := NewStore(10)
	s.Append("c1", domain.Turn{Role: domain.RoleUser, Content: "hello"})

	a := s.Snapshot("c1")
	b := s.Snapshot("c1")
	if len(a) != len(b) {
		t.Fatalf("snapshots differ in length: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("snapshots differ at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := NewStore(10)
	s.Append("c1", domain.Turn{Role: domain.RoleUser, Content: "hello"})

	snap := s.Snapshot("c1")
	snap[0].Content = "mutated"

	if s.Snapshot("c1")[0].Content != "hello" {
		t.Fatal("mutating a snapshot must not affect the store")
	}
}

func TestStore_ChannelsAreIndependent(t *testing.T) {
	s := NewStore(10)
	s.Append("c1", domain.Turn{Role: domain.RoleUser, Content: "for c1"})

	if len(s.Snapshot("c2")) != 0 {
		t.Fatal("c2 should have no history")
	}
	if s.Len("c1") != 1 {
		t.Fatalf("c1 should have 1 turn, got %d", s.Len("c1"))
	}
}

func TestStore_DefaultCap(t *testing.T) {
	s := NewStore(0)
	for i := 0; i < DefaultMaxHistory+5; i++ {
		s.Append("c1", domain.Turn{Role: domain.RoleUser, Content: "x"})
	}
	if s.Len("c1") != DefaultMaxHistory {
		t.Fatalf("expected default cap %d, got %d", DefaultMaxHistory, s.Len("c1"))
	}
}
