package reconcile

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/taskrelay/relay/internal/logging"
	"github.com/taskrelay/relay/internal/model"
	"github.com/taskrelay/relay/internal/state"
)

func setupReconciler(t *testing.T) (*Reconciler, model.Paths, *state.Store) {
	t.Helper()
	cfg := model.DefaultConfig()
	paths := cfg.Paths(t.TempDir())

	for _, d := range []string{paths.Pending, paths.Processing, paths.Output, paths.Archive, paths.Logs} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}

	store := state.NewStore(paths.Index)
	lg := logging.New(&bytes.Buffer{}, logging.LevelDebug, "test")
	return New(paths, store, lg), paths, store
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func resultText(id, status string) string {
	return "# RESULT_FOR: " + id + "\n# STATUS: " + status + "\n"
}

func TestRebuild_FromDirectoryTruth(t *testing.T) {
	r, paths, _ := setupReconciler(t)

	writeFile(t, paths.Pending, "2026-08-30-001.md", "# TASK_ID: 2026-08-30-001\n")
	writeFile(t, paths.Processing, "2026-08-30-002.md", "# TASK_ID: 2026-08-30-002\n")
	writeFile(t, paths.Archive, "2026-08-30-003.md", "# TASK_ID: 2026-08-30-003\n")
	writeFile(t, paths.Output, "2026-08-30-003.md", resultText("2026-08-30-003", "COMPLETE"))
	writeFile(t, paths.Archive, "2026-08-30-004.md", "# TASK_ID: 2026-08-30-004\n")
	writeFile(t, paths.Output, "2026-08-30-004.md", resultText("2026-08-30-004", "FAILED"))

	s := r.Rebuild()

	if !reflect.DeepEqual(s.Pending, []string{"2026-08-30-001"}) {
		t.Errorf("pending: %v", s.Pending)
	}
	if !reflect.DeepEqual(s.Processing, []string{"2026-08-30-002"}) {
		t.Errorf("processing: %v", s.Processing)
	}
	if !reflect.DeepEqual(s.Completed, []string{"2026-08-30-003"}) {
		t.Errorf("completed: %v", s.Completed)
	}
	if !reflect.DeepEqual(s.Failed, []string{"2026-08-30-004"}) {
		t.Errorf("failed: %v", s.Failed)
	}
}

func TestRebuild_PersistsResult(t *testing.T) {
	r, paths, store := setupReconciler(t)
	writeFile(t, paths.Pending, "2026-08-30-001.md", "# TASK_ID: 2026-08-30-001\n")

	r.Rebuild()

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("rebuilt index not persisted: %v", err)
	}
	if !reflect.DeepEqual(loaded.Pending, []string{"2026-08-30-001"}) {
		t.Errorf("persisted pending: %v", loaded.Pending)
	}
}

func TestRebuild_DiscardsExistingIndex(t *testing.T) {
	r, paths, store := setupReconciler(t)

	// The persisted state names a task no directory contains.
	stale := state.NewQueueState()
	stale.AddPending("2026-01-01-001")
	if err := store.Save(stale); err != nil {
		t.Fatal(err)
	}
	writeFile(t, paths.Pending, "2026-08-30-001.md", "# TASK_ID: 2026-08-30-001\n")

	s := r.Rebuild()

	if _, ok := s.Lookup("2026-01-01-001"); ok {
		t.Error("stale entry survived the rebuild")
	}
	if !reflect.DeepEqual(s.Pending, []string{"2026-08-30-001"}) {
		t.Errorf("pending: %v", s.Pending)
	}
}

func TestRebuild_ResultBeatsProcessingFile(t *testing.T) {
	r, paths, _ := setupReconciler(t)

	// The result landed while the backing file is still in processing:
	// the task must not be in two places.
	writeFile(t, paths.Processing, "2026-08-30-001.md", "# TASK_ID: 2026-08-30-001\n")
	writeFile(t, paths.Output, "2026-08-30-001.md", resultText("2026-08-30-001", "COMPLETE"))

	s := r.Rebuild()

	if len(s.Processing) != 0 {
		t.Errorf("processing: %v", s.Processing)
	}
	if !reflect.DeepEqual(s.Completed, []string{"2026-08-30-001"}) {
		t.Errorf("completed: %v", s.Completed)
	}
}

func TestRebuild_StatuslessArtifactClassifiesFailed(t *testing.T) {
	r, paths, _ := setupReconciler(t)

	writeFile(t, paths.Output, "2026-08-30-001.md", "no headers at all\n")

	s := r.Rebuild()

	if !reflect.DeepEqual(s.Failed, []string{"2026-08-30-001"}) {
		t.Errorf("failed: %v", s.Failed)
	}
}

func TestRebuild_ArchivedWithoutArtifactDefaultsCompleted(t *testing.T) {
	r, paths, _ := setupReconciler(t)

	writeFile(t, paths.Archive, "2026-08-30-001.md", "# TASK_ID: 2026-08-30-001\n")

	s := r.Rebuild()

	if !reflect.DeepEqual(s.Completed, []string{"2026-08-30-001"}) {
		t.Errorf("completed: %v", s.Completed)
	}
}

func TestRebuild_OrphanArtifactIncluded(t *testing.T) {
	r, paths, _ := setupReconciler(t)

	// Artifact with no backing file anywhere still classifies its task.
	writeFile(t, paths.Output, "2026-08-30-001.md", resultText("2026-08-30-001", "COMPLETE"))

	s := r.Rebuild()

	if !reflect.DeepEqual(s.Completed, []string{"2026-08-30-001"}) {
		t.Errorf("completed: %v", s.Completed)
	}
}

func TestRebuild_RestoresParentLinks(t *testing.T) {
	r, paths, _ := setupReconciler(t)

	writeFile(t, paths.Pending, "2026-08-30-002.md",
		"# TASK_ID: 2026-08-30-002\n# PARENT_TASK: 2026-08-30-001\n")

	s := r.Rebuild()

	if s.Parents["2026-08-30-002"] != "2026-08-30-001" {
		t.Errorf("parents: %v", s.Parents)
	}
}

func TestRebuild_IgnoresNonRecordFiles(t *testing.T) {
	r, paths, _ := setupReconciler(t)

	writeFile(t, paths.Pending, "notes.txt", "not a task\n")
	writeFile(t, paths.Pending, ".hidden.md.swp", "editor droppings\n")
	writeFile(t, paths.Pending, "2026-08-30-001.md", "# TASK_ID: 2026-08-30-001\n")

	s := r.Rebuild()

	if !reflect.DeepEqual(s.Pending, []string{"2026-08-30-001"}) {
		t.Errorf("pending: %v", s.Pending)
	}
}
