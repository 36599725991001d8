package processor

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/taskrelay/relay/internal/events"
	"github.com/taskrelay/relay/internal/fsio"
	"github.com/taskrelay/relay/internal/logging"
	"github.com/taskrelay/relay/internal/model"
	"github.com/taskrelay/relay/internal/state"
	"github.com/taskrelay/relay/internal/validate"
)

func setupRelayDir(t *testing.T) (model.Paths, *state.Store) {
	t.Helper()
	cfg := model.DefaultConfig()
	paths := cfg.Paths(t.TempDir())

	for _, d := range []string{paths.Pending, paths.Processing, paths.Output, paths.Archive, paths.Logs} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}

	store := state.NewStore(paths.Index)
	if err := store.Save(state.NewQueueState()); err != nil {
		t.Fatal(err)
	}
	return paths, store
}

func newTestProcessor(t *testing.T, paths model.Paths, store *state.Store) *Processor {
	t.Helper()
	ev, err := events.NewLogger(paths.EventLog, 0)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ev.Close() })

	lg := logging.New(&bytes.Buffer{}, logging.LevelDebug, "test")
	return New(paths, store, ev, fsio.DefaultRetryPolicy, lg)
}

func taskText(id string, priority model.Priority) string {
	return fmt.Sprintf(`# TASK_ID: %s
# MODE: BALANCED
# TASK_TYPE: ANALYSIS
# PRIORITY: %s
# OUTPUT_FORMAT: MARKDOWN
# CREATED_AT: 2026-08-30T09:00:00Z

## CONTEXT

ctx

## CONSTRAINTS

cons

## DELIVERABLE

deliv

## SUCCESS CRITERIA

done
`, id, priority)
}

func enqueue(t *testing.T, p *Processor, id string, priority model.Priority) {
	t.Helper()
	if _, err := p.Enqueue(taskText(id, priority)); err != nil {
		t.Fatalf("Enqueue(%s): %v", id, err)
	}
}

func TestEnqueue_WritesFileAndState(t *testing.T) {
	paths, store := setupRelayDir(t)
	p := newTestProcessor(t, paths, store)

	enqueue(t, p, "2026-08-30-001", model.PriorityMedium)

	if _, err := os.Stat(filepath.Join(paths.Pending, "2026-08-30-001.md")); err != nil {
		t.Errorf("backing file missing: %v", err)
	}
	s, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Pending) != 1 || s.Pending[0] != "2026-08-30-001" {
		t.Errorf("pending: %v", s.Pending)
	}
}

func TestEnqueue_DuplicateRejected(t *testing.T) {
	paths, store := setupRelayDir(t)
	p := newTestProcessor(t, paths, store)

	enqueue(t, p, "2026-08-30-001", model.PriorityMedium)

	_, err := p.Enqueue(taskText("2026-08-30-001", model.PriorityMedium))
	var dup *state.DuplicateIDError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateIDError, got %v", err)
	}
}

func TestEnqueue_LinksParent(t *testing.T) {
	paths, store := setupRelayDir(t)
	p := newTestProcessor(t, paths, store)

	enqueue(t, p, "2026-08-30-001", model.PriorityMedium)
	text := taskText("2026-08-30-002", model.PriorityLow) + "# PARENT_TASK: 2026-08-30-001\n"
	if _, err := p.Enqueue(text); err != nil {
		t.Fatal(err)
	}

	s, _ := store.Load()
	if s.Parents["2026-08-30-002"] != "2026-08-30-001" {
		t.Errorf("parents: %v", s.Parents)
	}
}

func TestPickNextTask_PriorityWithArrivalTieBreak(t *testing.T) {
	paths, store := setupRelayDir(t)
	p := newTestProcessor(t, paths, store)

	// Creation order LOW, HIGH, MEDIUM: HIGH must win
	enqueue(t, p, "2026-08-30-001", model.PriorityLow)
	enqueue(t, p, "2026-08-30-002", model.PriorityHigh)
	enqueue(t, p, "2026-08-30-003", model.PriorityMedium)

	task, err := p.PickNextTask()
	if err != nil {
		t.Fatalf("PickNextTask failed: %v", err)
	}
	if task == nil || task.TaskID != "2026-08-30-002" {
		t.Fatalf("picked %+v, want 2026-08-30-002", task)
	}

	// Equal priority: earliest arrival wins
	enqueue(t, p, "2026-08-30-004", model.PriorityHigh)
	task, err = p.PickNextTask()
	if err != nil {
		t.Fatal(err)
	}
	if task.TaskID != "2026-08-30-002" {
		t.Errorf("tie-break picked %s, want 2026-08-30-002", task.TaskID)
	}
}

func TestPickNextTask_SkipsUnparseable(t *testing.T) {
	paths, store := setupRelayDir(t)
	p := newTestProcessor(t, paths, store)

	// Corrupt backing file for a high-priority task, added directly
	s, _ := store.Load()
	s.AddPending("2026-08-30-001")
	store.Save(s)
	os.WriteFile(filepath.Join(paths.Pending, "2026-08-30-001.md"), []byte("# TASK_ID: 2026-08-30-001\n"), 0644)

	enqueue(t, p, "2026-08-30-002", model.PriorityLow)

	task, err := p.PickNextTask()
	if err != nil {
		t.Fatal(err)
	}
	if task == nil || task.TaskID != "2026-08-30-002" {
		t.Fatalf("picked %+v, want the parseable task", task)
	}
}

func TestPickNextTask_EmptyQueue(t *testing.T) {
	paths, store := setupRelayDir(t)
	p := newTestProcessor(t, paths, store)

	task, err := p.PickNextTask()
	if err != nil {
		t.Fatal(err)
	}
	if task != nil {
		t.Errorf("picked %+v from empty queue", task)
	}
}

func TestStartProcessing_MovesFileAndState(t *testing.T) {
	paths, store := setupRelayDir(t)
	p := newTestProcessor(t, paths, store)

	enqueue(t, p, "2026-08-30-001", model.PriorityHigh)
	if err := p.StartProcessing("2026-08-30-001"); err != nil {
		t.Fatalf("StartProcessing failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(paths.Pending, "2026-08-30-001.md")); !os.IsNotExist(err) {
		t.Error("file still in pending area")
	}
	if _, err := os.Stat(filepath.Join(paths.Processing, "2026-08-30-001.md")); err != nil {
		t.Errorf("file not in processing area: %v", err)
	}

	s, _ := store.Load()
	if len(s.Processing) != 1 || s.Processing[0] != "2026-08-30-001" {
		t.Errorf("processing: %v", s.Processing)
	}
}

func TestStartProcessing_NotPending(t *testing.T) {
	paths, store := setupRelayDir(t)
	p := newTestProcessor(t, paths, store)

	if err := p.StartProcessing("2026-08-30-009"); err == nil {
		t.Fatal("expected error for unknown task")
	}
}

func TestComplete_WritesValidArtifactAndArchives(t *testing.T) {
	paths, store := setupRelayDir(t)
	p := newTestProcessor(t, paths, store)

	enqueue(t, p, "2026-08-30-001", model.PriorityHigh)
	if err := p.StartProcessing("2026-08-30-001"); err != nil {
		t.Fatal(err)
	}

	err := p.Complete("2026-08-30-001", "analysis report", model.QualityHigh, model.ResultMeta{Risks: "minor"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	artifact, err := os.ReadFile(filepath.Join(paths.Output, "2026-08-30-001.md"))
	if err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	if findings := validate.ValidateResult(string(artifact)); len(findings) != 0 {
		t.Errorf("artifact has findings: %v", findings)
	}

	if _, err := os.Stat(filepath.Join(paths.Archive, "2026-08-30-001.md")); err != nil {
		t.Errorf("backing file not archived: %v", err)
	}

	s, _ := store.Load()
	if len(s.Completed) != 1 || s.Completed[0] != "2026-08-30-001" {
		t.Errorf("completed: %v", s.Completed)
	}
	if len(s.Processing) != 0 {
		t.Errorf("processing not emptied: %v", s.Processing)
	}
}

func TestFail_WritesFailedArtifact(t *testing.T) {
	paths, store := setupRelayDir(t)
	p := newTestProcessor(t, paths, store)

	enqueue(t, p, "2026-08-30-001", model.PriorityHigh)
	if err := p.StartProcessing("2026-08-30-001"); err != nil {
		t.Fatal(err)
	}
	if err := p.Fail("2026-08-30-001", "consumer gave up", model.ResultMeta{}); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}

	artifact, err := os.ReadFile(filepath.Join(paths.Output, "2026-08-30-001.md"))
	if err != nil {
		t.Fatal(err)
	}
	if findings := validate.ValidateResult(string(artifact)); len(findings) != 0 {
		t.Errorf("artifact has findings: %v", findings)
	}

	s, _ := store.Load()
	if len(s.Failed) != 1 || s.Failed[0] != "2026-08-30-001" {
		t.Errorf("failed: %v", s.Failed)
	}
}

func TestComplete_MissingProcessingFileIsNoOp(t *testing.T) {
	paths, store := setupRelayDir(t)
	p := newTestProcessor(t, paths, store)

	enqueue(t, p, "2026-08-30-001", model.PriorityHigh)
	if err := p.StartProcessing("2026-08-30-001"); err != nil {
		t.Fatal(err)
	}
	// Someone already relocated the file
	os.Remove(filepath.Join(paths.Processing, "2026-08-30-001.md"))

	if err := p.Complete("2026-08-30-001", "out", model.QualityMedium, model.ResultMeta{}); err != nil {
		t.Fatalf("Complete with absent file failed: %v", err)
	}

	s, _ := store.Load()
	if len(s.Completed) != 1 {
		t.Errorf("completed: %v", s.Completed)
	}
}

func TestComplete_EmitsLifecycleEvents(t *testing.T) {
	paths, store := setupRelayDir(t)
	p := newTestProcessor(t, paths, store)

	enqueue(t, p, "2026-08-30-001", model.PriorityHigh)
	p.StartProcessing("2026-08-30-001")
	p.Complete("2026-08-30-001", "out", model.QualityMedium, model.ResultMeta{})

	entries, err := events.ReadAll(paths.EventLog)
	if err != nil {
		t.Fatal(err)
	}

	var actions []events.Action
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	want := []events.Action{
		events.ActionTaskCreated,
		events.ActionTaskProcessing,
		events.ActionTaskArchived,
		events.ActionTaskCompleted,
	}
	if len(actions) != len(want) {
		t.Fatalf("actions: %v, want %v", actions, want)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Errorf("action[%d]: got %s, want %s", i, actions[i], want[i])
		}
	}
}
