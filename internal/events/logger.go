// Package events provides relay's append-only lifecycle event log:
// one JSON object per line, rotated into an archive directory when the
// file exceeds its size bound.
package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultMaxLogSize bounds the event log before rotation (50MB).
	DefaultMaxLogSize = 50 * 1024 * 1024
	logFileExtension  = ".jsonl"
	archiveDirName    = "archive"
)

// Action is the fixed vocabulary of lifecycle events.
type Action string

const (
	ActionTaskCreated      Action = "task_created"
	ActionTaskProcessing   Action = "task_processing"
	ActionTaskCompleted    Action = "task_completed"
	ActionTaskFailed       Action = "task_failed"
	ActionTaskArchived     Action = "task_archived"
	ActionValidationPassed Action = "validation_passed"
	ActionValidationFailed Action = "validation_failed"
	ActionWatcherPoll      Action = "watcher_poll"
)

// Entry is a single event log line.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	TaskID    string         `json:"task_id,omitempty"`
	Action    Action         `json:"action"`
	Status    string         `json:"status,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	EventID   string         `json:"event_id,omitempty"`
}

// Emitter is the narrow interface the core components depend on.
type Emitter interface {
	Emit(action Action, taskID, status string, details map[string]any) error
}

// Logger is an append-only JSONL event sink with size-based rotation.
type Logger struct {
	mu          sync.Mutex
	file        *os.File
	currentSize int64
	maxSize     int64
	logPath     string
}

// NewLogger opens (or creates) the event log at logPath.
func NewLogger(logPath string, maxSize int64) (*Logger, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxLogSize
	}

	l := &Logger{
		logPath: logPath,
		maxSize: maxSize,
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if err := l.openLogFile(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Logger) openLogFile() error {
	file, err := os.OpenFile(l.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat event log: %w", err)
	}

	l.file = file
	l.currentSize = stat.Size()
	return nil
}

// Emit appends one event line and syncs it to disk.
func (l *Logger) Emit(action Action, taskID, status string, details map[string]any) error {
	entry := Entry{
		Timestamp: time.Now().UTC(),
		TaskID:    taskID,
		Action:    action,
		Status:    status,
		Details:   details,
		EventID:   uuid.NewString(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	data = append(data, '\n')

	if l.currentSize+int64(len(data)) > l.maxSize {
		if err := l.rotate(); err != nil {
			return fmt.Errorf("rotate event log: %w", err)
		}
	}

	n, err := l.file.Write(data)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync event log: %w", err)
	}

	l.currentSize += int64(n)
	return nil
}

func (l *Logger) rotate() error {
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close current log: %w", err)
	}

	archiveDir := filepath.Join(filepath.Dir(l.logPath), archiveDirName)
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	baseName := strings.TrimSuffix(filepath.Base(l.logPath), logFileExtension)
	archivePath := filepath.Join(archiveDir, fmt.Sprintf("%s.%s%s", baseName, timestamp, logFileExtension))

	if err := os.Rename(l.logPath, archivePath); err != nil {
		return fmt.Errorf("archive log file: %w", err)
	}

	return l.openLogFile()
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		return err
	}
	return l.file.Close()
}

// ReadAll reads every entry from an event log file, skipping malformed
// lines. Intended for status reporting and tests.
func ReadAll(logPath string) ([]Entry, error) {
	f, err := os.Open(logPath)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	dec := json.NewDecoder(f)
	for dec.More() {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			break
		}
		entries = append(entries, e)
	}
	return entries, nil
}
