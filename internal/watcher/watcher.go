// Package watcher resolves processing tasks by polling the output area
// for result artifacts and validating them.
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/taskrelay/relay/internal/events"
	"github.com/taskrelay/relay/internal/fsio"
	"github.com/taskrelay/relay/internal/logging"
	"github.com/taskrelay/relay/internal/model"
	"github.com/taskrelay/relay/internal/record"
	"github.com/taskrelay/relay/internal/state"
	"github.com/taskrelay/relay/internal/validate"
)

// Resolution records one task resolved during a poll cycle.
type Resolution struct {
	TaskID   string
	Outcome  string // "completed" or "failed"
	Findings []validate.Finding
}

type Watcher struct {
	paths  model.Paths
	store  *state.Store
	events events.Emitter
	retry  fsio.RetryPolicy
	log    *logging.Logger
}

func New(paths model.Paths, store *state.Store, em events.Emitter, retry fsio.RetryPolicy, lg *logging.Logger) *Watcher {
	return &Watcher{
		paths:  paths,
		store:  store,
		events: em,
		retry:  retry,
		log:    lg.WithTag("watcher"),
	}
}

// PollOnce scans the output area once and resolves every artifact whose
// task is currently in processing. The queue outcome is driven by the
// validation result, not the artifact's self-declared STATUS header: a
// malformed COMPLETE artifact still lands in failed. Artifacts for tasks
// the queue is not tracking in processing are skipped entirely, which
// makes repeated polling safe. The index is saved once per cycle.
func (w *Watcher) PollOnce() ([]Resolution, error) {
	s, err := w.store.Load()
	if err != nil {
		return nil, fmt.Errorf("poll: %w", err)
	}

	entries, err := os.ReadDir(w.paths.Output)
	if err != nil {
		return nil, fmt.Errorf("poll: list output area: %w", err)
	}

	resolved := []Resolution{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".md") {
			continue
		}

		stem := strings.TrimSuffix(name, ".md")
		text, readErr := os.ReadFile(filepath.Join(w.paths.Output, name))

		// The artifact names its task via RESULT_FOR; fall back to the
		// filename stem when the file or header is unreadable.
		id := stem
		if readErr == nil {
			if declared, ok := record.Parse(string(text)).Header("RESULT_FOR"); ok && declared != "" {
				id = declared
			}
		}

		if s.IsResolved(id) {
			continue
		}
		if list, ok := s.Lookup(id); !ok || list != state.ListProcessing {
			w.log.Debugf("skip artifact=%s: task %s not in processing", name, id)
			continue
		}

		findings := validate.ValidateResult(string(text))
		if len(findings) == 0 {
			if err := s.MoveToCompleted(id); err != nil {
				return resolved, fmt.Errorf("poll: %w", err)
			}
			w.emit(events.ActionValidationPassed, id, "", nil)
			w.emit(events.ActionTaskCompleted, id, state.ListCompleted, nil)
			resolved = append(resolved, Resolution{TaskID: id, Outcome: state.ListCompleted})
		} else {
			if err := s.MoveToFailed(id); err != nil {
				return resolved, fmt.Errorf("poll: %w", err)
			}
			w.emit(events.ActionValidationFailed, id, "", findingDetails(findings))
			w.emit(events.ActionTaskFailed, id, state.ListFailed, nil)
			resolved = append(resolved, Resolution{TaskID: id, Outcome: state.ListFailed, Findings: findings})
		}

		w.archiveTaskFile(id)
	}

	if len(resolved) > 0 {
		if err := w.store.Save(s); err != nil {
			return resolved, fmt.Errorf("poll: %w", err)
		}
	}

	w.emit(events.ActionWatcherPoll, "", "", map[string]any{"processed": len(resolved)})
	w.log.Infof("poll completed processed=%d", len(resolved))
	return resolved, nil
}

// PollLoop repeats PollOnce on a fixed delay. maxCycles 0 runs
// indefinitely; cancellation is external.
func (w *Watcher) PollLoop(interval time.Duration, maxCycles int) error {
	for cycle := 1; ; cycle++ {
		if _, err := w.PollOnce(); err != nil {
			return fmt.Errorf("poll cycle %d: %w", cycle, err)
		}
		if maxCycles > 0 && cycle >= maxCycles {
			return nil
		}
		time.Sleep(interval)
	}
}

// archiveTaskFile relocates the processing-stage backing file to the
// archive. Absence is a no-op: the result may have arrived before the
// producer relocated the file.
func (w *Watcher) archiveTaskFile(id string) {
	src := filepath.Join(w.paths.Processing, id+".md")
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return
	}
	dst := filepath.Join(w.paths.Archive, id+".md")
	if err := fsio.SafeRelocate(src, dst, w.retry); err != nil {
		w.log.Errorf("archive task=%s: %v", id, err)
		return
	}
	w.emit(events.ActionTaskArchived, id, "", nil)
}

func findingDetails(findings []validate.Finding) map[string]any {
	fields := make([]string, 0, len(findings))
	for _, f := range findings {
		fields = append(fields, f.Field)
	}
	return map[string]any{"finding_count": len(findings), "fields": fields}
}

func (w *Watcher) emit(action events.Action, taskID, status string, details map[string]any) {
	if w.events == nil {
		return
	}
	if err := w.events.Emit(action, taskID, status, details); err != nil {
		w.log.Warnf("emit %s task=%s: %v", action, taskID, err)
	}
}
