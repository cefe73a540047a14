package session

import (
	"testing"
	"time"
)

func turn(id, text string, status ExecutionStatus) Turn {
	return Turn{ID: id, Timestamp: time.Now().UTC(), UserText: text, Status: status}
}

func TestRecent_BoundAndOrder(t *testing.T) {
	m := NewMemory(NewSession(time.Now()), 10, nil)
	for _, id := range []string{"a", "b", "c", "d"} {
		m.Append(turn(id, "q "+id, StatusSuccess))
	}

	got := m.Recent(2)
	if len(got) != 2 {
		t.Fatalf("Recent(2) returned %d turns", len(got))
	}
	if got[0].ID != "c" || got[1].ID != "d" {
		t.Errorf("insertion order not preserved: %s, %s", got[0].ID, got[1].ID)
	}

	if got := m.Recent(100); len(got) != 4 {
		t.Errorf("Recent(100) = %d turns, want 4", len(got))
	}
	if got := m.Recent(0); got != nil {
		t.Errorf("Recent(0) = %v, want nil", got)
	}
}

func TestContextSnapshot_Window(t *testing.T) {
	m := NewMemory(NewSession(time.Now()), 2, nil)
	for _, id := range []string{"a", "b", "c"} {
		m.Append(turn(id, id, StatusSuccess))
	}
	m.UpsertArtifact(Artifact{Name: "sales", Kind: KindDataset, CreatedByTurnID: "a"})

	snap := m.ContextSnapshot()
	if len(snap.Turns) != 2 {
		t.Fatalf("snapshot window = %d, want 2", len(snap.Turns))
	}
	if snap.Turns[0].ID != "b" {
		t.Errorf("window dropped wrong turn: %s", snap.Turns[0].ID)
	}
	if _, ok := snap.Artifacts["sales"]; !ok {
		t.Error("artifact map missing from snapshot")
	}

	// Eviction from the window never shrinks the log itself.
	if got := m.Recent(10); len(got) != 3 {
		t.Errorf("full log = %d turns, want 3", len(got))
	}
}

func TestUpsertArtifact_LastWriteWins(t *testing.T) {
	m := NewMemory(NewSession(time.Now()), 5, nil)
	m.Append(turn("t1", "analyze", StatusSuccess))
	m.UpsertArtifact(Artifact{Name: "sales", Kind: KindDataset, CreatedByTurnID: "t1"})

	m.Append(turn("t2", "reload", StatusSuccess))
	m.UpsertArtifact(Artifact{Name: "sales", Kind: KindDataset, CreatedByTurnID: "t2", ValueRef: "sales_v2.csv"})

	a, ok := m.Artifact("sales")
	if !ok {
		t.Fatal("artifact missing after upsert")
	}
	if a.CreatedByTurnID != "t2" || a.ValueRef != "sales_v2.csv" {
		t.Errorf("upsert did not replace: %+v", a)
	}

	// History referencing the old artifact is untouched.
	turns := m.Recent(10)
	if turns[0].ID != "t1" || turns[0].Status != StatusSuccess {
		t.Errorf("earlier turn mutated: %+v", turns[0])
	}
}

func TestAmendStatus(t *testing.T) {
	m := NewMemory(NewSession(time.Now()), 5, nil)
	m.Append(turn("t1", "forecast", StatusFailed))

	if !m.AmendStatus("t1", StatusFixed) {
		t.Fatal("AmendStatus reported missing turn")
	}
	if got := m.Recent(1)[0].Status; got != StatusFixed {
		t.Errorf("status = %s, want fixed", got)
	}
	if m.AmendStatus("nope", StatusFixed) {
		t.Error("AmendStatus on unknown turn should report false")
	}
}

func TestHasArtifactKind(t *testing.T) {
	m := NewMemory(NewSession(time.Now()), 5, nil)
	if m.HasArtifactKind(KindDataset) {
		t.Error("empty session should have no dataset")
	}
	m.UpsertArtifact(Artifact{Name: "f", Kind: KindForecast})
	if m.HasArtifactKind(KindDataset) {
		t.Error("forecast artifact should not count as dataset")
	}
	m.UpsertArtifact(Artifact{Name: "d", Kind: KindDataset})
	if !m.HasArtifactKind(KindDataset) {
		t.Error("dataset artifact not found")
	}
}
