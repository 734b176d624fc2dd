package audit

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/vhq-lag/vhq/internal/store"
)

func newTestWriter(t *testing.T) *PDRWriter {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewPDRWriter(st)
}

func TestHashInputs_Stable(t *testing.T) {
	a := HashInputs(map[string]string{"agentName": "vitra_lag"})
	b := HashInputs(map[string]string{"agentName": "vitra_lag"})
	c := HashInputs(map[string]string{"agentName": "ghost_lag"})

	if a != b {
		t.Errorf("Expected equal hashes, got %s and %s", a, b)
	}
	if a == c {
		t.Error("Expected different inputs to hash differently")
	}
	if len(a) != 64 {
		t.Errorf("Expected 64 hex chars, got %d", len(a))
	}
	if got := HashInputs(make(chan int)); got != "hash_error" {
		t.Errorf("Expected hash_error for unencodable input, got %s", got)
	}
}

func TestRecordAndRecent(t *testing.T) {
	w := newTestWriter(t)

	if e := w.Record("agent.start", map[string]string{"agentName": "ghost_lag"}, OutcomeSuccess, "", ""); e == nil {
		t.Fatal("Expected entry to be written")
	}
	e := w.RecordResult("task.cancel", map[string]string{"taskId": "t1"}, "t1", errors.New("task not found"))
	if e == nil || e.Outcome != OutcomeFailure || e.Details != "task not found" {
		t.Fatalf("Unexpected failure entry: %+v", e)
	}

	entries, err := w.Recent(0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	seen := map[string]bool{}
	for _, e := range entries {
		seen[e.Action] = true
	}
	if !seen["agent.start"] || !seen["task.cancel"] {
		t.Errorf("Missing actions in %+v", entries)
	}
}

func TestRecord_StoreClosed(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	w := NewPDRWriter(st)
	st.Close()

	if e := w.Record("agent.stop", nil, OutcomeSuccess, "", ""); e != nil {
		t.Error("Expected nil entry when the store is closed")
	}
}
