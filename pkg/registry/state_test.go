package registry

import (
	"strings"
	"testing"
	"time"
)

func TestSnapshotField(t *testing.T) {
	s := NewSnapshot("thread-1", "model", map[string]interface{}{
		"messages": []interface{}{"hello"},
		"user": map[string]interface{}{
			"name": "alice",
			"prefs": map[string]interface{}{
				"lang": "en",
			},
		},
	})

	if s.SizeBytes == 0 {
		t.Error("Expected non-zero serialized size")
	}

	v, ok := s.Field("user.name")
	if !ok || v != "alice" {
		t.Errorf("Expected 'alice', got %v (ok=%v)", v, ok)
	}

	v, ok = s.Field("user.prefs.lang")
	if !ok || v != "en" {
		t.Errorf("Expected 'en', got %v (ok=%v)", v, ok)
	}

	if _, ok := s.Field("user.missing"); ok {
		t.Error("Expected missing field to report not found")
	}
	if _, ok := s.Field("messages.0"); ok {
		t.Error("Dot paths should not descend into arrays")
	}
}

func TestDiffStatesAddedRemovedChanged(t *testing.T) {
	before := map[string]interface{}{
		"count":  1,
		"stale":  true,
		"nested": map[string]interface{}{"keep": "x", "drop": "y"},
	}
	after := map[string]interface{}{
		"count":  2,
		"fresh":  true,
		"nested": map[string]interface{}{"keep": "x", "new": "z"},
	}

	diff := DiffStates(before, after)
	if !diff.HasChanges() {
		t.Fatal("Expected changes")
	}

	wantAdded := []string{"fresh", "nested.new"}
	if len(diff.Added) != len(wantAdded) {
		t.Fatalf("Expected added %v, got %v", wantAdded, diff.Added)
	}
	for i, p := range wantAdded {
		if diff.Added[i] != p {
			t.Errorf("Expected added[%d]=%q, got %q", i, p, diff.Added[i])
		}
	}

	wantRemoved := []string{"nested.drop", "stale"}
	if len(diff.Removed) != len(wantRemoved) {
		t.Fatalf("Expected removed %v, got %v", wantRemoved, diff.Removed)
	}
	for i, p := range wantRemoved {
		if diff.Removed[i] != p {
			t.Errorf("Expected removed[%d]=%q, got %q", i, p, diff.Removed[i])
		}
	}

	if len(diff.Changed) != 1 || diff.Changed[0].Path != "count" {
		t.Fatalf("Expected one changed field 'count', got %v", diff.Changed)
	}
}

func TestDiffStatesArrays(t *testing.T) {
	before := map[string]interface{}{
		"items": []interface{}{"a", "b"},
	}
	after := map[string]interface{}{
		"items": []interface{}{"a", "c", "d"},
	}

	diff := DiffStates(before, after)
	if len(diff.Changed) != 1 || diff.Changed[0].Path != "items[1]" {
		t.Errorf("Expected change at items[1], got %v", diff.Changed)
	}
	if len(diff.Added) != 1 || diff.Added[0] != "items[2]" {
		t.Errorf("Expected items[2] added, got %v", diff.Added)
	}
}

func TestDiffStatesNoChanges(t *testing.T) {
	state := map[string]interface{}{"a": 1, "b": map[string]interface{}{"c": 2}}
	diff := DiffStates(state, state)
	if diff.HasChanges() {
		t.Errorf("Expected no changes, got %s", diff.Summary())
	}
	if diff.Summary() != "no changes" {
		t.Errorf("Unexpected summary: %s", diff.Summary())
	}
}

func TestStateRegistryRecordAndLatest(t *testing.T) {
	reg := NewStateRegistry(10)
	reg.Record(NewSnapshot("t1", "input", map[string]interface{}{"step": 1}))
	reg.Record(NewSnapshot("t1", "model", map[string]interface{}{"step": 2}))

	latest, ok := reg.Latest("t1")
	if !ok {
		t.Fatal("Expected latest snapshot")
	}
	if latest.Node != "model" {
		t.Errorf("Expected latest from 'model', got %q", latest.Node)
	}
	if reg.SnapshotCount("t1") != 2 {
		t.Errorf("Expected 2 snapshots, got %d", reg.SnapshotCount("t1"))
	}

	if _, ok := reg.Latest("missing"); ok {
		t.Error("Expected no snapshot for unknown thread")
	}
}

func TestStateRegistryEvictsOldest(t *testing.T) {
	reg := NewStateRegistry(2)
	for i := 1; i <= 3; i++ {
		reg.Record(NewSnapshot("t1", "n", map[string]interface{}{"step": i}))
	}

	history := reg.History("t1")
	if len(history) != 2 {
		t.Fatalf("Expected capped history of 2, got %d", len(history))
	}
	if v, _ := history[0].Field("step"); v != 2 {
		t.Errorf("Expected oldest surviving snapshot step=2, got %v", v)
	}
}

func TestStateRegistryAtTime(t *testing.T) {
	reg := NewStateRegistry(10)

	early := NewSnapshot("t1", "a", map[string]interface{}{"step": 1})
	early.CapturedAt = time.Now().Add(-time.Hour)
	late := NewSnapshot("t1", "b", map[string]interface{}{"step": 2})
	reg.Record(early)
	reg.Record(late)

	got, ok := reg.AtTime("t1", time.Now().Add(-50*time.Minute))
	if !ok {
		t.Fatal("Expected snapshot")
	}
	if got.Node != "a" {
		t.Errorf("Expected earlier snapshot, got node %q", got.Node)
	}

	got, _ = reg.AtTime("t1", time.Now())
	if got.Node != "b" {
		t.Errorf("Expected later snapshot, got node %q", got.Node)
	}
}

func TestSnapshotDescriptionAndMetadata(t *testing.T) {
	snap := NewSnapshot("t1", "model", map[string]interface{}{"step": 1})
	snap.Description = "before escalation"
	snap.Metadata = map[string]interface{}{"attempt": 2}

	out, err := snap.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() failed: %v", err)
	}
	if !strings.Contains(out, `"description": "before escalation"`) {
		t.Errorf("Expected description in JSON:\n%s", out)
	}
	if !strings.Contains(out, `"metadata"`) || !strings.Contains(out, `"attempt": 2`) {
		t.Errorf("Expected metadata in JSON:\n%s", out)
	}

	// Both fields are optional and omitted when unset.
	bareSnap := NewSnapshot("t1", "model", nil)
	bare, err := bareSnap.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() failed: %v", err)
	}
	if strings.Contains(bare, "description") || strings.Contains(bare, "metadata") {
		t.Errorf("Expected optional fields omitted:\n%s", bare)
	}
}

func TestStateRegistryAtCheckpoint(t *testing.T) {
	reg := NewStateRegistry(10)
	snap := NewSnapshot("t1", "model", map[string]interface{}{"step": 1})
	snap.CheckpointID = "cp-1"
	reg.Record(snap)
	reg.Record(NewSnapshot("t1", "reply", map[string]interface{}{"step": 2}))

	got, ok := reg.AtCheckpoint("t1", "cp-1")
	if !ok {
		t.Fatal("Expected snapshot at checkpoint cp-1")
	}
	if got.Node != "model" {
		t.Errorf("Expected snapshot from 'model', got %q", got.Node)
	}

	if _, ok := reg.AtCheckpoint("t1", "cp-missing"); ok {
		t.Error("Expected no snapshot for unknown checkpoint")
	}
}

func TestStateRegistryByNode(t *testing.T) {
	reg := NewStateRegistry(10)
	reg.Record(NewSnapshot("t1", "work", map[string]interface{}{"step": 1}))
	reg.Record(NewSnapshot("t1", "check", map[string]interface{}{"step": 2}))
	reg.Record(NewSnapshot("t1", "work", map[string]interface{}{"step": 3}))

	matched := reg.ByNode("t1", "work")
	if len(matched) != 2 {
		t.Fatalf("Expected 2 snapshots from 'work', got %d", len(matched))
	}
	if v, _ := matched[0].Field("step"); v != 1 {
		t.Errorf("Expected oldest first, got step=%v", v)
	}

	if got := reg.ByNode("t1", "missing"); len(got) != 0 {
		t.Errorf("Expected no snapshots for unknown node, got %d", len(got))
	}
}

func TestStateRegistryRecent(t *testing.T) {
	reg := NewStateRegistry(10)

	old := NewSnapshot("t1", "a", map[string]interface{}{"step": 1})
	old.CapturedAt = time.Now().Add(-time.Hour)
	reg.Record(old)
	mid := NewSnapshot("t2", "b", map[string]interface{}{"step": 2})
	mid.CapturedAt = time.Now().Add(-time.Minute)
	reg.Record(mid)
	reg.Record(NewSnapshot("t1", "c", map[string]interface{}{"step": 3}))

	recent := reg.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("Expected 2 recent snapshots, got %d", len(recent))
	}
	if recent[0].Node != "c" || recent[1].Node != "b" {
		t.Errorf("Expected newest first [c b], got [%s %s]", recent[0].Node, recent[1].Node)
	}
}

func TestStateRegistryDiffs(t *testing.T) {
	reg := NewStateRegistry(10)
	reg.Record(NewSnapshot("t1", "input", map[string]interface{}{"count": 1}))
	reg.Record(NewSnapshot("t1", "model", map[string]interface{}{"count": 2, "answer": "hi"}))
	reg.Record(NewSnapshot("t1", "output", map[string]interface{}{"count": 2, "answer": "hi"}))

	diffs := reg.Diffs("t1")
	if len(diffs) != 2 {
		t.Fatalf("Expected 2 diffs, got %d", len(diffs))
	}
	if !diffs[0].HasChanges() {
		t.Error("First transition should have changes")
	}
	if diffs[0].FromNode != "input" || diffs[0].ToNode != "model" {
		t.Errorf("Unexpected diff endpoints: %q -> %q", diffs[0].FromNode, diffs[0].ToNode)
	}
	if diffs[1].HasChanges() {
		t.Error("Second transition should be unchanged")
	}
}

func TestStateRegistryThreadManagement(t *testing.T) {
	reg := NewStateRegistry(10)
	reg.Record(NewSnapshot("b", "", map[string]interface{}{}))
	reg.Record(NewSnapshot("a", "", map[string]interface{}{}))

	ids := reg.ThreadIDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("Expected sorted thread ids, got %v", ids)
	}

	reg.ClearThread("a")
	if reg.SnapshotCount("a") != 0 {
		t.Error("Expected thread 'a' cleared")
	}

	reg.Clear()
	if len(reg.ThreadIDs()) != 0 {
		t.Error("Expected empty registry after clear")
	}
}
