package model

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var taskIDRegex = regexp.MustCompile(`^([0-9]{4}-[0-9]{2}-[0-9]{2})-([0-9]{3})$`)

// ValidTaskID reports whether id matches the YYYY-MM-DD-NNN format.
func ValidTaskID(id string) bool {
	return taskIDRegex.MatchString(id)
}

// TaskIDDate extracts the date portion of a task ID.
func TaskIDDate(id string) (time.Time, error) {
	m := taskIDRegex.FindStringSubmatch(id)
	if m == nil {
		return time.Time{}, fmt.Errorf("invalid task ID format: %s", id)
	}
	t, err := time.Parse("2006-01-02", m[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date from task ID %s: %w", id, err)
	}
	return t, nil
}

// NextTaskID returns the next unused sequence number for now's date,
// scanning the given directories for files named after existing IDs.
// Directories that do not exist are skipped.
func NextTaskID(now time.Time, dirs ...string) (string, error) {
	prefix := now.Format("2006-01-02")
	maxSeq := 0

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", fmt.Errorf("scan %s: %w", dir, err)
		}
		for _, entry := range entries {
			stem := strings.TrimSuffix(entry.Name(), ".md")
			m := taskIDRegex.FindStringSubmatch(stem)
			if m == nil || m[1] != prefix {
				continue
			}
			seq, err := strconv.Atoi(m[2])
			if err != nil {
				continue
			}
			if seq > maxSeq {
				maxSeq = seq
			}
		}
	}

	if maxSeq >= 999 {
		return "", fmt.Errorf("task ID sequence exhausted for %s", prefix)
	}
	return fmt.Sprintf("%s-%03d", prefix, maxSeq+1), nil
}
