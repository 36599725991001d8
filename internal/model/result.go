package model

type ResultStatus string

const (
	ResultStatusComplete ResultStatus = "COMPLETE"
	ResultStatusFailed   ResultStatus = "FAILED"
)

type QualityLevel string

const (
	QualityLow    QualityLevel = "LOW"
	QualityMedium QualityLevel = "MEDIUM"
	QualityHigh   QualityLevel = "HIGH"
)

var ResultStatusValues = []string{string(ResultStatusComplete), string(ResultStatusFailed)}

var QualityLevelValues = []string{string(QualityLow), string(QualityMedium), string(QualityHigh)}

var validResultStatuses = map[ResultStatus]bool{
	ResultStatusComplete: true,
	ResultStatusFailed:   true,
}

var validQualityLevels = map[QualityLevel]bool{
	QualityLow:    true,
	QualityMedium: true,
	QualityHigh:   true,
}

func (s ResultStatus) Valid() bool { return validResultStatuses[s] }
func (q QualityLevel) Valid() bool { return validQualityLevels[q] }

// MetaPlaceholder fills any meta subsection the caller did not supply.
const MetaPlaceholder = "None specified."

// ResultMeta carries the three always-present meta subsections of a result.
type ResultMeta struct {
	Assumptions        string
	Risks              string
	SuggestedFollowups string
}

// WithDefaults returns a copy with every empty field replaced by the
// fixed placeholder.
func (m ResultMeta) WithDefaults() ResultMeta {
	if m.Assumptions == "" {
		m.Assumptions = MetaPlaceholder
	}
	if m.Risks == "" {
		m.Risks = MetaPlaceholder
	}
	if m.SuggestedFollowups == "" {
		m.SuggestedFollowups = MetaPlaceholder
	}
	return m
}

// ResultRecord is the write-once response document for a task.
type ResultRecord struct {
	ResultFor    string
	Status       ResultStatus
	QualityLevel QualityLevel
	CompletedAt  string
	Output       string
	Error        string
	Meta         ResultMeta
}
