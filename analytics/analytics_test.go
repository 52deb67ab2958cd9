package analytics

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/hazyhaar/swatchsync/engine"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)

	s.RecordSwatchChange(engine.ChangeEvent{
		BlockID: "block-a", ProductID: "p-101",
		ColorName: "Sand", ColorValue: "#d8c6a0",
	})
	s.RecordSwatchChange(engine.ChangeEvent{
		BlockID: "block-b", ColorName: "Forest",
	})

	events, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events: got %d, want 2", len(events))
	}

	byBlock := make(map[string]Event, len(events))
	for _, ev := range events {
		if !strings.HasPrefix(ev.EventID, "evt_") {
			t.Errorf("event id %q missing evt_ prefix", ev.EventID)
		}
		if ev.CreatedAt == 0 {
			t.Errorf("event %s has zero timestamp", ev.EventID)
		}
		byBlock[ev.BlockID] = ev
	}

	a := byBlock["block-a"]
	if a.ColorName != "Sand" || a.ColorValue != "#d8c6a0" || a.ProductID != "p-101" {
		t.Errorf("block-a event: got %+v", a)
	}
	b := byBlock["block-b"]
	if b.ColorName != "Forest" || b.ProductID != "" || b.ColorValue != "" {
		t.Errorf("block-b event: got %+v", b)
	}
}

func TestRecent_Limit(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 5; i++ {
		s.RecordSwatchChange(engine.ChangeEvent{BlockID: "block-a", ColorName: "Sand"})
	}

	events, err := s.Recent(context.Background(), 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("events: got %d, want 3", len(events))
	}
}

func TestRecent_Empty(t *testing.T) {
	s := openTestStore(t)

	events, err := s.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("events: got %d, want 0", len(events))
	}
}

func TestRecordFailureDoesNotPanic(t *testing.T) {
	s := openTestStore(t)
	s.Close()

	// A closed store logs and carries on.
	s.RecordSwatchChange(engine.ChangeEvent{BlockID: "block-a", ColorName: "Sand"})
}
