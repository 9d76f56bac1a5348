package observability

import "testing"

func TestTurnStageWindowSnapshot(t *testing.T) {
	w := newTurnStageWindow(8)
	w.Observe("generation", 500)
	w.Observe("generation", 700)
	w.Observe("generation", 900)
	w.ObserveIndicator("classifier_unavailable")
	w.ObserveIndicator("classifier_unavailable")

	snap := w.Snapshot()
	if snap.WindowSize != 8 {
		t.Fatalf("WindowSize = %d, want 8", snap.WindowSize)
	}
	if len(snap.Stages) != 1 {
		t.Fatalf("len(Stages) = %d, want 1", len(snap.Stages))
	}
	s := snap.Stages[0]
	if s.Stage != "generation" {
		t.Fatalf("Stage = %q, want %q", s.Stage, "generation")
	}
	if s.Samples != 3 {
		t.Fatalf("Samples = %d, want 3", s.Samples)
	}
	if s.LastMS != 900 {
		t.Fatalf("LastMS = %.2f, want 900", s.LastMS)
	}
	if s.P50MS != 700 {
		t.Fatalf("P50MS = %.2f, want 700", s.P50MS)
	}
	if s.P95MS <= 700 || s.P95MS > 900 {
		t.Fatalf("P95MS = %.2f, want (700,900]", s.P95MS)
	}
	if s.TargetP95MS != 1800 {
		t.Fatalf("TargetP95MS = %.2f, want 1800", s.TargetP95MS)
	}
	if len(snap.Indicators) != 1 {
		t.Fatalf("len(Indicators) = %d, want 1", len(snap.Indicators))
	}
	if snap.Indicators[0].Name != "classifier_unavailable" {
		t.Fatalf("Indicators[0].Name = %q, want %q", snap.Indicators[0].Name, "classifier_unavailable")
	}
	if snap.Indicators[0].Count != 2 {
		t.Fatalf("Indicators[0].Count = %d, want %d", snap.Indicators[0].Count, 2)
	}
}

func TestTurnStageWindowWrapsOldSamples(t *testing.T) {
	w := newTurnStageWindow(2)
	w.Observe("retrieval", 100)
	w.Observe("retrieval", 200)
	w.Observe("retrieval", 300)

	snap := w.Snapshot()
	if len(snap.Stages) != 1 {
		t.Fatalf("len(Stages) = %d, want 1", len(snap.Stages))
	}
	s := snap.Stages[0]
	if s.Samples != 2 {
		t.Fatalf("Samples = %d, want 2", s.Samples)
	}
	if s.LastMS != 300 {
		t.Fatalf("LastMS = %.2f, want 300", s.LastMS)
	}
}
