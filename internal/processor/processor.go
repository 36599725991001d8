// Package processor drives the task lifecycle: enqueueing new tasks,
// priority-based selection, and the pending→processing→{completed,failed}
// transitions with their backing-file relocations.
package processor

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/taskrelay/relay/internal/events"
	"github.com/taskrelay/relay/internal/fsio"
	"github.com/taskrelay/relay/internal/logging"
	"github.com/taskrelay/relay/internal/model"
	"github.com/taskrelay/relay/internal/record"
	"github.com/taskrelay/relay/internal/state"
)

type Processor struct {
	paths  model.Paths
	store  *state.Store
	events events.Emitter
	retry  fsio.RetryPolicy
	log    *logging.Logger
}

func New(paths model.Paths, store *state.Store, em events.Emitter, retry fsio.RetryPolicy, lg *logging.Logger) *Processor {
	return &Processor{
		paths:  paths,
		store:  store,
		events: em,
		retry:  retry,
		log:    lg.WithTag("processor"),
	}
}

func taskFile(dir, id string) string {
	return filepath.Join(dir, id+".md")
}

// Enqueue writes a task's backing file into the pending area and adds its
// ID to the pending list. The text must decode as a complete task record;
// a task whose ID is already tracked anywhere is rejected.
func (p *Processor) Enqueue(text string) (string, error) {
	task, err := record.DecodeTask(text)
	if err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}

	s, err := p.store.Load()
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", task.TaskID, err)
	}
	if err := s.AddPending(task.TaskID); err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}
	if task.ParentTask != "" {
		s.LinkParent(task.TaskID, task.ParentTask)
	}

	path := taskFile(p.paths.Pending, task.TaskID)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("enqueue %s: backing file already exists", task.TaskID)
	}
	if err := fsio.AtomicWrite(path, []byte(text)); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", task.TaskID, err)
	}

	if err := p.store.Save(s); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", task.TaskID, err)
	}

	p.emit(events.ActionTaskCreated, task.TaskID, state.ListPending, map[string]any{
		"priority":  string(task.Priority),
		"task_type": string(task.TaskType),
	})
	p.log.Infof("enqueued task=%s priority=%s", task.TaskID, task.Priority)
	return task.TaskID, nil
}

// PickNextTask scans the pending list in insertion order, parses each
// backing file, and returns the highest-priority parseable task. Ties
// keep the earliest arrival. Unparseable pending tasks are skipped with
// a warning; they are never selected until fixed. Returns nil when no
// candidate exists.
func (p *Processor) PickNextTask() (*model.TaskRecord, error) {
	s, err := p.store.Load()
	if err != nil {
		return nil, fmt.Errorf("pick next task: %w", err)
	}

	var best *model.TaskRecord
	bestRank := 0

	for _, id := range s.Pending {
		text, err := os.ReadFile(taskFile(p.paths.Pending, id))
		if err != nil {
			p.log.Warnf("skip pending task=%s: read: %v", id, err)
			continue
		}
		task, err := record.DecodeTask(string(text))
		if err != nil {
			p.log.Warnf("skip pending task=%s: %v", id, err)
			continue
		}

		rank := task.Priority.Rank()
		if best == nil || rank < bestRank {
			best = task
			bestRank = rank
		}
	}

	return best, nil
}

// StartProcessing relocates the backing file from pending to processing,
// then records the transition. The relocation and the index update are
// two separate steps: a crash between them leaves an inconsistency only
// the reconciler repairs.
func (p *Processor) StartProcessing(id string) error {
	src := taskFile(p.paths.Pending, id)
	dst := taskFile(p.paths.Processing, id)
	if err := fsio.SafeRelocate(src, dst, p.retry); err != nil {
		return fmt.Errorf("start processing %s: %w", id, err)
	}

	s, err := p.store.Load()
	if err != nil {
		return fmt.Errorf("start processing %s: %w", id, err)
	}
	if err := s.MoveToProcessing(id); err != nil {
		return fmt.Errorf("start processing: %w", err)
	}
	if err := p.store.Save(s); err != nil {
		return fmt.Errorf("start processing %s: %w", id, err)
	}

	p.emit(events.ActionTaskProcessing, id, state.ListProcessing, nil)
	p.log.Infof("started task=%s", id)
	return nil
}

// Complete writes a COMPLETE result artifact, archives the backing file,
// and moves the task to completed. Terminal: once called, the task's
// processing file and queue membership are both retired.
func (p *Processor) Complete(id, output string, quality model.QualityLevel, meta model.ResultMeta) error {
	result := model.ResultRecord{
		ResultFor:    id,
		Status:       model.ResultStatusComplete,
		QualityLevel: quality,
		CompletedAt:  time.Now().UTC().Format(time.RFC3339),
		Output:       output,
		Meta:         meta,
	}
	return p.finish(id, result, events.ActionTaskCompleted, state.ListCompleted)
}

// Fail writes a FAILED result artifact, archives the backing file, and
// moves the task to failed.
func (p *Processor) Fail(id, reason string, meta model.ResultMeta) error {
	result := model.ResultRecord{
		ResultFor:    id,
		Status:       model.ResultStatusFailed,
		QualityLevel: model.QualityLow,
		CompletedAt:  time.Now().UTC().Format(time.RFC3339),
		Error:        reason,
		Meta:         meta,
	}
	return p.finish(id, result, events.ActionTaskFailed, state.ListFailed)
}

func (p *Processor) finish(id string, result model.ResultRecord, action events.Action, list string) error {
	artifactPath := taskFile(p.paths.Output, id)
	if err := fsio.AtomicWrite(artifactPath, record.WriteResult(result)); err != nil {
		return fmt.Errorf("write result for %s: %w", id, err)
	}

	if err := p.archiveTaskFile(id); err != nil {
		return err
	}

	s, err := p.store.Load()
	if err != nil {
		return fmt.Errorf("finish %s: %w", id, err)
	}
	switch list {
	case state.ListCompleted:
		err = s.MoveToCompleted(id)
	case state.ListFailed:
		err = s.MoveToFailed(id)
	}
	if err != nil {
		return fmt.Errorf("finish: %w", err)
	}
	if err := p.store.Save(s); err != nil {
		return fmt.Errorf("finish %s: %w", id, err)
	}

	p.emit(action, id, list, map[string]any{"quality_level": string(result.QualityLevel)})
	p.log.Infof("finished task=%s outcome=%s", id, list)
	return nil
}

// archiveTaskFile relocates the processing-stage file to the archive.
// An already-absent file is a no-op, not an error.
func (p *Processor) archiveTaskFile(id string) error {
	src := taskFile(p.paths.Processing, id)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	if err := fsio.SafeRelocate(src, taskFile(p.paths.Archive, id), p.retry); err != nil {
		return fmt.Errorf("archive %s: %w", id, err)
	}
	p.emit(events.ActionTaskArchived, id, "", nil)
	return nil
}

func (p *Processor) emit(action events.Action, taskID, status string, details map[string]any) {
	if p.events == nil {
		return
	}
	if err := p.events.Emit(action, taskID, status, details); err != nil {
		p.log.Warnf("emit %s task=%s: %v", action, taskID, err)
	}
}
