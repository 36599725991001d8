package record

import (
	"fmt"
	"strings"

	"github.com/taskrelay/relay/internal/model"
)

// WriteResult serializes a ResultRecord into the header/section format.
// The META block is always emitted with all three subsections, each
// defaulting to the fixed placeholder. OUTPUT is emitted only for
// COMPLETE results, ERROR only for FAILED results with an error string.
//
// Any record with valid enum values and a non-empty output (COMPLETE) or
// error (FAILED) must validate with zero findings after serialization.
func WriteResult(r model.ResultRecord) []byte {
	meta := r.Meta.WithDefaults()

	var b strings.Builder
	fmt.Fprintf(&b, "# RESULT_FOR: %s\n", r.ResultFor)
	fmt.Fprintf(&b, "# STATUS: %s\n", r.Status)
	fmt.Fprintf(&b, "# QUALITY_LEVEL: %s\n", r.QualityLevel)
	fmt.Fprintf(&b, "# COMPLETED_AT: %s\n", r.CompletedAt)

	if r.Status == model.ResultStatusComplete {
		fmt.Fprintf(&b, "\n## OUTPUT\n\n%s\n", strings.TrimSpace(r.Output))
	}
	if r.Status == model.ResultStatusFailed && r.Error != "" {
		fmt.Fprintf(&b, "\n## ERROR\n\n%s\n", strings.TrimSpace(r.Error))
	}

	b.WriteString("\n## META\n")
	fmt.Fprintf(&b, "\n### Assumptions\n\n%s\n", meta.Assumptions)
	fmt.Fprintf(&b, "\n### Risks\n\n%s\n", meta.Risks)
	fmt.Fprintf(&b, "\n### Suggested_Followups\n\n%s\n", meta.SuggestedFollowups)

	return []byte(b.String())
}

// WriteTask serializes a TaskRecord into the header/section format.
// Used by enqueue to write backing files that parse back losslessly.
func WriteTask(t model.TaskRecord) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# TASK_ID: %s\n", t.TaskID)
	fmt.Fprintf(&b, "# MODE: %s\n", t.Mode)
	fmt.Fprintf(&b, "# TASK_TYPE: %s\n", t.TaskType)
	fmt.Fprintf(&b, "# PRIORITY: %s\n", t.Priority)
	fmt.Fprintf(&b, "# OUTPUT_FORMAT: %s\n", t.OutputFormat)
	fmt.Fprintf(&b, "# CREATED_AT: %s\n", t.CreatedAt)
	if t.ParentTask != "" {
		fmt.Fprintf(&b, "# PARENT_TASK: %s\n", t.ParentTask)
	}

	fmt.Fprintf(&b, "\n## CONTEXT\n\n%s\n", strings.TrimSpace(t.Context))
	fmt.Fprintf(&b, "\n## CONSTRAINTS\n\n%s\n", strings.TrimSpace(t.Constraints))
	fmt.Fprintf(&b, "\n## DELIVERABLE\n\n%s\n", strings.TrimSpace(t.Deliverable))
	fmt.Fprintf(&b, "\n## SUCCESS CRITERIA\n\n%s\n", strings.TrimSpace(t.SuccessCriteria))

	return []byte(b.String())
}
