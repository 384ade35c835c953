package models

import "time"

// TaskStatus is the lifecycle state of a research task. Transitions are
// monotonic forward: PENDING -> IN_PROGRESS -> {COMPLETED | FAILED}.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusFailed     TaskStatus = "FAILED"
)

// Terminal reports whether the status is a final state.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// ResearchMode controls planning depth and the reasoning budget forwarded to
// the content service.
type ResearchMode string

const (
	ModeFast     ResearchMode = "fast"
	ModeStandard ResearchMode = "standard"
	ModeDeep     ResearchMode = "deep"
)

// ThinkingBudget returns the opaque reasoning-budget hint for the mode.
// The orchestrator does not interpret this value; the content service does.
func (m ResearchMode) ThinkingBudget() int {
	switch m {
	case ModeFast:
		return 0
	case ModeDeep:
		return 4096
	default:
		return 1024
	}
}

// Source is a grounding citation. Identity is the URL.
type Source struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// QualityMetrics is the outcome of quality scoring for one task.
type QualityMetrics struct {
	Score      int      `json:"score"` // 0-100
	Issues     []string `json:"issues,omitempty"`
	Acceptable bool     `json:"acceptable"`
}

// VerificationResult is the outcome of fact verification for one task.
type VerificationResult struct {
	IsAccurate bool   `json:"is_accurate"`
	Confidence int    `json:"confidence"` // 0-100
	Correction string `json:"correction,omitempty"`
}

// ResearchTask is one unit of research work within a session.
type ResearchTask struct {
	ID           string              `json:"id"`
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	Query        string              `json:"query"`
	Status       TaskStatus          `json:"status"`
	Findings     string              `json:"findings,omitempty"`
	Sources      []Source            `json:"sources,omitempty"`
	Quality      *QualityMetrics     `json:"quality,omitempty"`
	Verification *VerificationResult `json:"verification,omitempty"`
}

// TaskPatch is a partial update applied to a stored task. Nil fields are
// left untouched.
type TaskPatch struct {
	Status       *TaskStatus         `json:"status,omitempty"`
	Findings     *string             `json:"findings,omitempty"`
	Sources      []Source            `json:"sources,omitempty"`
	Quality      *QualityMetrics     `json:"quality,omitempty"`
	Verification *VerificationResult `json:"verification,omitempty"`
}

// MessageRole identifies the author of a session message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Message is one entry in a session's conversation log.
type Message struct {
	ID          string      `json:"id"`
	Role        MessageRole `json:"role"`
	Content     string      `json:"content"`
	Timestamp   time.Time   `json:"timestamp"`
	Suggestions []string    `json:"suggestions,omitempty"`
}

// ReportTemplate selects the structural rubric for the final report.
type ReportTemplate string

const (
	TemplateAcademic  ReportTemplate = "academic"
	TemplateBusiness  ReportTemplate = "business"
	TemplateSimple    ReportTemplate = "simple"
	TemplateTechnical ReportTemplate = "technical"
)

// CitationStyle selects the bibliography format.
type CitationStyle string

const (
	StyleAPA     CitationStyle = "APA"
	StyleMLA     CitationStyle = "MLA"
	StyleChicago CitationStyle = "CHICAGO"
)

// ReportConfig carries per-session report rendering preferences.
type ReportConfig struct {
	Template       ReportTemplate `json:"template"`
	CitationStyle  CitationStyle  `json:"citation_style"`
	IncludeSources bool           `json:"include_sources"`
	IncludeCharts  bool           `json:"include_charts"`
}

// UserProfile carries personalization applied to planning and synthesis.
type UserProfile struct {
	ExpertiseLevel string `json:"expertise_level"` // "beginner" or "expert"
	Language       string `json:"language"`        // BCP 47-ish tag, "en" default
}

// ResearchSession is the persisted record of a research conversation.
// The orchestration engine reads the task list once at the start of a run
// and issues point mutations through the session store.
type ResearchSession struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Messages  []Message      `json:"messages"`
	Tasks     []ResearchTask `json:"tasks"`
	Synthesis string         `json:"synthesis,omitempty"`
	Archived  bool           `json:"archived"`
	Report    ReportConfig   `json:"report_config"`
	Profile   UserProfile    `json:"profile"`
}

// PlannedTask is the planner's template for a ResearchTask. It is never
// persisted directly; task records are minted from it with generated IDs and
// PENDING status.
type PlannedTask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Query       string `json:"query"`
}

// PlanResult is the transient output of the planner.
type PlanResult struct {
	Tasks []PlannedTask `json:"tasks"`
}
