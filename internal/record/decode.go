package record

import (
	"fmt"
	"strings"

	"github.com/taskrelay/relay/internal/model"
)

// Required headers and sections per record kind, in reporting order.
var (
	TaskHeaders = []string{
		"TASK_ID", "MODE", "TASK_TYPE", "PRIORITY", "OUTPUT_FORMAT", "CREATED_AT",
	}
	TaskSections = []string{
		"CONTEXT", "CONSTRAINTS", "DELIVERABLE", "SUCCESS_CRITERIA",
	}
	ResultHeaders = []string{
		"RESULT_FOR", "STATUS", "QUALITY_LEVEL", "COMPLETED_AT",
	}
)

// MissingFieldsError reports every required header or section absent from
// a record, in a deterministic order.
type MissingFieldsError struct {
	Kind   string
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("%s record missing required fields: %s", e.Kind, strings.Join(e.Fields, ", "))
}

// DecodeTask parses text into a TaskRecord. Values are taken verbatim;
// enum and timestamp checking belongs to the validate package. Any missing
// required header or section fails with a MissingFieldsError.
func DecodeTask(text string) (*model.TaskRecord, error) {
	doc := Parse(text)

	var missing []string
	for _, h := range TaskHeaders {
		if _, ok := doc.Header(h); !ok {
			missing = append(missing, h)
		}
	}
	for _, s := range TaskSections {
		if _, ok := doc.Section(s); !ok {
			missing = append(missing, s)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingFieldsError{Kind: "task", Fields: missing}
	}

	taskID, _ := doc.Header("TASK_ID")
	mode, _ := doc.Header("MODE")
	taskType, _ := doc.Header("TASK_TYPE")
	priority, _ := doc.Header("PRIORITY")
	outputFormat, _ := doc.Header("OUTPUT_FORMAT")
	createdAt, _ := doc.Header("CREATED_AT")
	parentTask, _ := doc.Header("PARENT_TASK")

	context, _ := doc.Section("CONTEXT")
	constraints, _ := doc.Section("CONSTRAINTS")
	deliverable, _ := doc.Section("DELIVERABLE")
	successCriteria, _ := doc.Section("SUCCESS_CRITERIA")

	return &model.TaskRecord{
		TaskID:          taskID,
		Mode:            model.Mode(mode),
		TaskType:        model.TaskType(taskType),
		Priority:        model.Priority(priority),
		OutputFormat:    model.OutputFormat(outputFormat),
		CreatedAt:       createdAt,
		ParentTask:      parentTask,
		Context:         context,
		Constraints:     constraints,
		Deliverable:     deliverable,
		SuccessCriteria: successCriteria,
	}, nil
}

// DecodeResult parses text into a ResultRecord. Missing meta subsections
// decode as empty strings; the validator reports them, the decoder does
// not invent placeholders.
func DecodeResult(text string) (*model.ResultRecord, error) {
	doc := Parse(text)

	var missing []string
	for _, h := range ResultHeaders {
		if _, ok := doc.Header(h); !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingFieldsError{Kind: "result", Fields: missing}
	}

	resultFor, _ := doc.Header("RESULT_FOR")
	status, _ := doc.Header("STATUS")
	qualityLevel, _ := doc.Header("QUALITY_LEVEL")
	completedAt, _ := doc.Header("COMPLETED_AT")

	output, _ := doc.Section("OUTPUT")
	errBody, _ := doc.Section("ERROR")

	var meta model.ResultMeta
	if metaBody, ok := doc.Section("META"); ok {
		subs := Subsections(metaBody)
		meta.Assumptions = subs["ASSUMPTIONS"]
		meta.Risks = subs["RISKS"]
		meta.SuggestedFollowups = subs["SUGGESTED_FOLLOWUPS"]
	}

	return &model.ResultRecord{
		ResultFor:    resultFor,
		Status:       model.ResultStatus(status),
		QualityLevel: model.QualityLevel(qualityLevel),
		CompletedAt:  completedAt,
		Output:       output,
		Error:        errBody,
		Meta:         meta,
	}, nil
}
