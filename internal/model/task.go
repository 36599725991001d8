package model

type Mode string

const (
	ModeFast     Mode = "FAST"
	ModeBalanced Mode = "BALANCED"
	ModePremium  Mode = "PREMIUM"
)

type TaskType string

const (
	TaskTypeArchitecture TaskType = "ARCHITECTURE"
	TaskTypeRefactor     TaskType = "REFACTOR"
	TaskTypeAnalysis     TaskType = "ANALYSIS"
	TaskTypeDesign       TaskType = "DESIGN"
	TaskTypeReview       TaskType = "REVIEW"
)

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

type OutputFormat string

const (
	OutputFormatMarkdown OutputFormat = "MARKDOWN"
	OutputFormatJSON     OutputFormat = "JSON"
	OutputFormatText     OutputFormat = "TEXT"
)

var ModeValues = []string{string(ModeFast), string(ModeBalanced), string(ModePremium)}

var TaskTypeValues = []string{
	string(TaskTypeArchitecture),
	string(TaskTypeRefactor),
	string(TaskTypeAnalysis),
	string(TaskTypeDesign),
	string(TaskTypeReview),
}

var PriorityValues = []string{string(PriorityLow), string(PriorityMedium), string(PriorityHigh)}

var OutputFormatValues = []string{
	string(OutputFormatMarkdown),
	string(OutputFormatJSON),
	string(OutputFormatText),
}

var validModes = map[Mode]bool{
	ModeFast:     true,
	ModeBalanced: true,
	ModePremium:  true,
}

var validTaskTypes = map[TaskType]bool{
	TaskTypeArchitecture: true,
	TaskTypeRefactor:     true,
	TaskTypeAnalysis:     true,
	TaskTypeDesign:       true,
	TaskTypeReview:       true,
}

var validPriorities = map[Priority]bool{
	PriorityLow:    true,
	PriorityMedium: true,
	PriorityHigh:   true,
}

var validOutputFormats = map[OutputFormat]bool{
	OutputFormatMarkdown: true,
	OutputFormatJSON:     true,
	OutputFormatText:     true,
}

func (m Mode) Valid() bool         { return validModes[m] }
func (t TaskType) Valid() bool     { return validTaskTypes[t] }
func (p Priority) Valid() bool     { return validPriorities[p] }
func (f OutputFormat) Valid() bool { return validOutputFormats[f] }

// Rank orders priorities for selection. Lower wins; unknown values sort last
// so a task with a garbled priority is never picked ahead of a recognized one.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 99
	}
}

// TaskRecord is a single work item as declared by its backing file.
// Header values are stored verbatim; structural validity is the
// validate package's concern, not the record's.
type TaskRecord struct {
	TaskID       string
	Mode         Mode
	TaskType     TaskType
	Priority     Priority
	OutputFormat OutputFormat
	CreatedAt    string
	ParentTask   string

	Context         string
	Constraints     string
	Deliverable     string
	SuccessCriteria string
}
