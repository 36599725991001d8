// Package validate performs structural checks on task and result records.
//
// Validation never fails early: every check runs independently and all
// violations come back together as findings. An empty finding list means
// the record is structurally valid.
package validate

import (
	"fmt"
	"strings"
	"time"

	"github.com/taskrelay/relay/internal/model"
	"github.com/taskrelay/relay/internal/record"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is a single structural validation problem.
type Finding struct {
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func errorf(field, format string, args ...any) Finding {
	return Finding{Field: field, Message: fmt.Sprintf(format, args...), Severity: SeverityError}
}

func warningf(field, format string, args ...any) Finding {
	return Finding{Field: field, Message: fmt.Sprintf(format, args...), Severity: SeverityWarning}
}

// iso8601Layouts are the accepted timestamp forms, tried in order.
var iso8601Layouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func validTimestamp(value string) bool {
	for _, layout := range iso8601Layouts {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

func enumMessage(allowed []string) string {
	return "must be one of: " + strings.Join(allowed, ", ")
}

// ValidateTask checks a task record's text against the task schema.
// storageKey is the record's storage identity (the filename stem); pass
// an empty string to skip the consistency check.
func ValidateTask(text, storageKey string) []Finding {
	doc := record.Parse(text)
	findings := []Finding{}

	for _, h := range record.TaskHeaders {
		if _, ok := doc.Header(h); !ok {
			findings = append(findings, errorf(h, "required header missing"))
		}
	}

	if taskID, ok := doc.Header("TASK_ID"); ok {
		if !model.ValidTaskID(taskID) {
			findings = append(findings, errorf("TASK_ID", "must match YYYY-MM-DD-NNN, got %q", taskID))
		}
		if storageKey != "" && taskID != storageKey {
			findings = append(findings, errorf("TASK_ID", "declared ID %q does not match storage key %q", taskID, storageKey))
		}
	}

	if v, ok := doc.Header("MODE"); ok && !model.Mode(v).Valid() {
		findings = append(findings, errorf("MODE", "%s", enumMessage(model.ModeValues)))
	}
	if v, ok := doc.Header("TASK_TYPE"); ok && !model.TaskType(v).Valid() {
		findings = append(findings, errorf("TASK_TYPE", "%s", enumMessage(model.TaskTypeValues)))
	}
	if v, ok := doc.Header("PRIORITY"); ok && !model.Priority(v).Valid() {
		findings = append(findings, errorf("PRIORITY", "%s", enumMessage(model.PriorityValues)))
	}
	if v, ok := doc.Header("OUTPUT_FORMAT"); ok && !model.OutputFormat(v).Valid() {
		findings = append(findings, errorf("OUTPUT_FORMAT", "%s", enumMessage(model.OutputFormatValues)))
	}

	if v, ok := doc.Header("CREATED_AT"); ok && !validTimestamp(v) {
		findings = append(findings, errorf("CREATED_AT", "not a valid ISO-8601 timestamp: %q", v))
	}

	if v, ok := doc.Header("PARENT_TASK"); ok && v != "" && !model.ValidTaskID(v) {
		findings = append(findings, warningf("PARENT_TASK", "does not look like a task ID: %q", v))
	}

	for _, s := range record.TaskSections {
		if _, ok := doc.Section(s); !ok {
			findings = append(findings, errorf(s, "required section missing"))
		}
	}

	return findings
}

// ValidateResult checks a result artifact's text against the result schema.
func ValidateResult(text string) []Finding {
	doc := record.Parse(text)
	findings := []Finding{}

	for _, h := range record.ResultHeaders {
		if _, ok := doc.Header(h); !ok {
			findings = append(findings, errorf(h, "required header missing"))
		}
	}

	status, hasStatus := doc.Header("STATUS")
	if hasStatus && !model.ResultStatus(status).Valid() {
		findings = append(findings, errorf("STATUS", "%s", enumMessage(model.ResultStatusValues)))
	}
	if v, ok := doc.Header("QUALITY_LEVEL"); ok && !model.QualityLevel(v).Valid() {
		findings = append(findings, errorf("QUALITY_LEVEL", "%s", enumMessage(model.QualityLevelValues)))
	}
	if v, ok := doc.Header("COMPLETED_AT"); ok && !validTimestamp(v) {
		findings = append(findings, errorf("COMPLETED_AT", "not a valid ISO-8601 timestamp: %q", v))
	}

	if hasStatus && model.ResultStatus(status) == model.ResultStatusComplete {
		body, ok := doc.Section("OUTPUT")
		if !ok {
			findings = append(findings, errorf("OUTPUT", "required section missing for COMPLETE results"))
		} else if strings.TrimSpace(body) == "" {
			findings = append(findings, errorf("OUTPUT", "must be non-empty for COMPLETE results"))
		}
	}
	if hasStatus && model.ResultStatus(status) == model.ResultStatusFailed {
		if _, ok := doc.Section("ERROR"); !ok {
			findings = append(findings, errorf("ERROR", "required section missing for FAILED results"))
		}
	}

	metaBody, hasMeta := doc.Section("META")
	if !hasMeta {
		findings = append(findings, errorf("META", "required section missing"))
	} else {
		subs := record.Subsections(metaBody)
		for _, name := range []string{"ASSUMPTIONS", "RISKS", "SUGGESTED_FOLLOWUPS"} {
			if _, ok := subs[name]; !ok {
				findings = append(findings, errorf("META", "missing subsection %s", name))
			}
		}
	}

	return findings
}
