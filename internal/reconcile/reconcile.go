// Package reconcile rebuilds the queue index from directory contents
// alone. It is the recovery path for a lost or corrupt index: whatever
// the persisted file says is discarded in favor of filesystem truth.
package reconcile

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/taskrelay/relay/internal/logging"
	"github.com/taskrelay/relay/internal/model"
	"github.com/taskrelay/relay/internal/record"
	"github.com/taskrelay/relay/internal/state"
)

type Reconciler struct {
	paths model.Paths
	store *state.Store
	log   *logging.Logger
}

func New(paths model.Paths, store *state.Store, lg *logging.Logger) *Reconciler {
	return &Reconciler{
		paths: paths,
		store: store,
		log:   lg.WithTag("reconciler"),
	}
}

// Rebuild derives a fresh state purely from the directory tree and
// persists it before returning. It is total: unreadable or ambiguous
// inputs resolve to a conservative default (failed) rather than an
// error, and a failed write-back is logged, never raised.
//
// Rules:
//   - every backing file in the pending area becomes a pending entry;
//   - every backing file in the processing area becomes a processing
//     entry, unless a result artifact already classifies the task as
//     resolved (result arrived before the file was relocated);
//   - result artifacts classify their task by declared STATUS, with an
//     unreadable artifact classified failed;
//   - archived backing files take their artifact's classification,
//     defaulting to completed when no artifact matches;
//   - artifact-classified tasks with no archived backing file are still
//     listed as completed/failed.
func (r *Reconciler) Rebuild() *state.QueueState {
	s := state.NewQueueState()

	// Provisional completed/failed classification from result artifacts.
	provisional := map[string]string{}
	var provisionalOrder []string
	for _, name := range listRecords(r.paths.Output) {
		id, outcome := r.classifyArtifact(name)
		if _, seen := provisional[id]; !seen {
			provisionalOrder = append(provisionalOrder, id)
		}
		provisional[id] = outcome
	}

	for _, name := range listRecords(r.paths.Pending) {
		id := strings.TrimSuffix(name, ".md")
		s.Pending = append(s.Pending, id)
		r.linkParentFrom(s, filepath.Join(r.paths.Pending, name))
	}

	for _, name := range listRecords(r.paths.Processing) {
		id := strings.TrimSuffix(name, ".md")
		r.linkParentFrom(s, filepath.Join(r.paths.Processing, name))
		if _, resolved := provisional[id]; resolved {
			// Result already landed; the stale processing file does not
			// put the task back in flight.
			continue
		}
		s.Processing = append(s.Processing, id)
	}

	archived := map[string]bool{}
	for _, name := range listRecords(r.paths.Archive) {
		id := strings.TrimSuffix(name, ".md")
		archived[id] = true
		r.linkParentFrom(s, filepath.Join(r.paths.Archive, name))

		if provisional[id] == state.ListFailed {
			s.Failed = append(s.Failed, id)
		} else {
			s.Completed = append(s.Completed, id)
		}
	}

	for _, id := range provisionalOrder {
		if archived[id] {
			continue
		}
		if provisional[id] == state.ListFailed {
			s.Failed = append(s.Failed, id)
		} else {
			s.Completed = append(s.Completed, id)
		}
	}

	if err := r.store.Save(s); err != nil {
		r.log.Errorf("persist rebuilt index: %v", err)
	}

	counts := s.Counts()
	r.log.Infof("rebuilt index pending=%d processing=%d completed=%d failed=%d",
		counts[state.ListPending], counts[state.ListProcessing],
		counts[state.ListCompleted], counts[state.ListFailed])
	return s
}

// classifyArtifact returns the task ID a result artifact speaks for and
// its provisional outcome. Unreadable or statusless artifacts classify
// as failed.
func (r *Reconciler) classifyArtifact(name string) (string, string) {
	stem := strings.TrimSuffix(name, ".md")

	text, err := os.ReadFile(filepath.Join(r.paths.Output, name))
	if err != nil {
		r.log.Warnf("unreadable artifact=%s, classifying failed", name)
		return stem, state.ListFailed
	}

	doc := record.Parse(string(text))
	id := stem
	if declared, ok := doc.Header("RESULT_FOR"); ok && declared != "" {
		id = declared
	}

	status, ok := doc.Header("STATUS")
	if !ok {
		r.log.Warnf("artifact=%s has no STATUS, classifying failed", name)
		return id, state.ListFailed
	}
	if model.ResultStatus(status) == model.ResultStatusComplete {
		return id, state.ListCompleted
	}
	return id, state.ListFailed
}

// linkParentFrom restores lineage metadata from a backing file's
// PARENT_TASK header, when present and readable.
func (r *Reconciler) linkParentFrom(s *state.QueueState, path string) {
	text, err := os.ReadFile(path)
	if err != nil {
		return
	}
	doc := record.Parse(string(text))
	if parent, ok := doc.Header("PARENT_TASK"); ok && parent != "" {
		id := strings.TrimSuffix(filepath.Base(path), ".md")
		s.LinkParent(id, parent)
	}
}

// listRecords returns the .md entries of dir in lexical order. A missing
// directory lists as empty.
func listRecords(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		names = append(names, e.Name())
	}
	return names
}
