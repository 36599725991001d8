package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestValidTaskID(t *testing.T) {
	valid := []string{"2026-08-30-001", "1999-01-01-999"}
	for _, id := range valid {
		if !ValidTaskID(id) {
			t.Errorf("ValidTaskID(%q) = false, want true", id)
		}
	}

	invalid := []string{"", "2026-08-30", "2026-08-30-1", "2026-08-30-0001", "task_0000000001_abcd1234", "2026-8-30-001"}
	for _, id := range invalid {
		if ValidTaskID(id) {
			t.Errorf("ValidTaskID(%q) = true, want false", id)
		}
	}
}

func TestTaskIDDate(t *testing.T) {
	d, err := TaskIDDate("2026-08-30-007")
	if err != nil {
		t.Fatalf("TaskIDDate failed: %v", err)
	}
	if d.Year() != 2026 || d.Month() != 8 || d.Day() != 30 {
		t.Errorf("got %v", d)
	}

	if _, err := TaskIDDate("nope"); err == nil {
		t.Error("expected error for invalid ID")
	}
}

func TestNextTaskID_EmptyDirs(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	id, err := NextTaskID(now, t.TempDir(), filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("NextTaskID failed: %v", err)
	}
	if id != "2026-08-30-001" {
		t.Errorf("got %q, want 2026-08-30-001", id)
	}
}

func TestNextTaskID_ScansExisting(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	for _, name := range []string{"2026-08-30-001.md", "2026-08-30-004.md", "2026-08-29-009.md"} {
		if err := os.WriteFile(filepath.Join(dir1, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir2, "2026-08-30-002.md"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	id, err := NextTaskID(now, dir1, dir2)
	if err != nil {
		t.Fatalf("NextTaskID failed: %v", err)
	}
	if id != "2026-08-30-005" {
		t.Errorf("got %q, want 2026-08-30-005", id)
	}
}
