// Package state holds the queue index: four ordered lifecycle lists plus
// the child-to-parent lineage map, persisted as a single JSON file.
package state

import "fmt"

// List names a lifecycle stage in error messages and lookups.
const (
	ListPending    = "pending"
	ListProcessing = "processing"
	ListCompleted  = "completed"
	ListFailed     = "failed"
)

// QueueState maps task IDs into exactly one of four ordered lists.
// Insertion order is arrival order and serves as the selection tie-break.
// The parents map is lineage metadata only; entries are never removed
// when a task completes.
type QueueState struct {
	Pending    []string          `json:"pending"`
	Processing []string          `json:"processing"`
	Completed  []string          `json:"completed"`
	Failed     []string          `json:"failed"`
	Parents    map[string]string `json:"parents"`
}

func NewQueueState() *QueueState {
	return &QueueState{
		Pending:    []string{},
		Processing: []string{},
		Completed:  []string{},
		Failed:     []string{},
		Parents:    map[string]string{},
	}
}

// DuplicateIDError reports an AddPending for an ID already tracked in
// any lifecycle list.
type DuplicateIDError struct {
	ID   string
	List string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate task ID %s: already in %s", e.ID, e.List)
}

// NotFoundError reports a transition whose ID is absent from the
// required source list.
type NotFoundError struct {
	ID   string
	List string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task ID %s not found in %s", e.ID, e.List)
}

// Lookup returns the list currently holding id, if any.
func (s *QueueState) Lookup(id string) (string, bool) {
	for list, ids := range map[string][]string{
		ListPending:    s.Pending,
		ListProcessing: s.Processing,
		ListCompleted:  s.Completed,
		ListFailed:     s.Failed,
	} {
		for _, v := range ids {
			if v == id {
				return list, true
			}
		}
	}
	return "", false
}

// IsResolved reports whether id already landed in completed or failed.
func (s *QueueState) IsResolved(id string) bool {
	list, ok := s.Lookup(id)
	return ok && (list == ListCompleted || list == ListFailed)
}

// AddPending appends id to pending. An ID already present in any of the
// four lists fails with DuplicateIDError.
func (s *QueueState) AddPending(id string) error {
	if list, ok := s.Lookup(id); ok {
		return &DuplicateIDError{ID: id, List: list}
	}
	s.Pending = append(s.Pending, id)
	return nil
}

// MoveToProcessing removes id from pending and appends it to processing.
func (s *QueueState) MoveToProcessing(id string) error {
	return s.move(id, &s.Pending, ListPending, &s.Processing)
}

// MoveToCompleted removes id from processing and appends it to completed.
func (s *QueueState) MoveToCompleted(id string) error {
	return s.move(id, &s.Processing, ListProcessing, &s.Completed)
}

// MoveToFailed removes id from processing and appends it to failed.
func (s *QueueState) MoveToFailed(id string) error {
	return s.move(id, &s.Processing, ListProcessing, &s.Failed)
}

func (s *QueueState) move(id string, src *[]string, srcName string, dst *[]string) error {
	idx := -1
	for i, v := range *src {
		if v == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &NotFoundError{ID: id, List: srcName}
	}
	*src = append((*src)[:idx], (*src)[idx+1:]...)
	*dst = append(*dst, id)
	return nil
}

// LinkParent records child's parent. Unconditional upsert: no cycle or
// existence check on parent.
func (s *QueueState) LinkParent(child, parent string) {
	if s.Parents == nil {
		s.Parents = map[string]string{}
	}
	s.Parents[child] = parent
}

// Counts returns the length of each lifecycle list.
func (s *QueueState) Counts() map[string]int {
	return map[string]int{
		ListPending:    len(s.Pending),
		ListProcessing: len(s.Processing),
		ListCompleted:  len(s.Completed),
		ListFailed:     len(s.Failed),
	}
}
