package activities

import (
	"time"

	"github.com/horizon-research/horizon/internal/models"
)

// PlanInput asks the planner to break a goal into research tasks.
type PlanInput struct {
	Goal         string              `json:"goal"`
	Context      string              `json:"context"` // recent conversation, pre-rendered
	PriorQueries []string            `json:"prior_queries"`
	Profile      models.UserProfile  `json:"profile"`
	Mode         models.ResearchMode `json:"mode"`
}

// SearchInput executes one task's query against the content service.
type SearchInput struct {
	TaskID string `json:"task_id"`
	Query  string `json:"query"`
}

// SearchOutput carries findings plus grounding sources (unique by URL).
type SearchOutput struct {
	Findings string          `json:"findings"`
	Sources  []models.Source `json:"sources"`
}

// EvaluateInput scores the quality of one task's findings.
type EvaluateInput struct {
	Findings    string `json:"findings"`
	SourceCount int    `json:"source_count"`
}

// VerifyInput cross-checks findings against the task and its sources.
type VerifyInput struct {
	TaskTitle   string `json:"task_title"`
	Findings    string `json:"findings"`
	SourceCount int    `json:"source_count"`
}

// TrendsInput detects cross-task trends and contradictions.
type TrendsInput struct {
	Findings []string `json:"findings"`
}

// SynthesisInput produces the structured report.
type SynthesisInput struct {
	Goal     string              `json:"goal"`
	Findings []TaskFinding       `json:"findings"`
	Trends   string              `json:"trends"`
	Profile  models.UserProfile  `json:"profile"`
	Mode     models.ResearchMode `json:"mode"`
}

// TaskFinding pairs a task with its findings for synthesis.
type TaskFinding struct {
	Title    string `json:"title"`
	Findings string `json:"findings"`
}

// FormatInput reshapes a synthesis into a document template.
type FormatInput struct {
	Synthesis string                `json:"synthesis"`
	Template  models.ReportTemplate `json:"template"`
}

// TranslateInput translates a report into the target language.
type TranslateInput struct {
	Content  string `json:"content"`
	Language string `json:"language"`
}

// SuggestInput generates follow-up suggestions from report context.
type SuggestInput struct {
	Context string `json:"context"`
}

// ExtractChartInput is the fire-and-forget numeric extraction side channel.
type ExtractChartInput struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

// ChartData is extracted statistical data suitable for rendering.
type ChartData struct {
	Title    string        `json:"title"`
	Type     string        `json:"type"` // bar, pie, line
	Labels   []string      `json:"labels"`
	Datasets []ChartSeries `json:"datasets"`
}

// ChartSeries is one series in a chart.
type ChartSeries struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

// UpdateTaskInput patches one task in the session store.
type UpdateTaskInput struct {
	SessionID string           `json:"session_id"`
	TaskID    string           `json:"task_id"`
	Patch     models.TaskPatch `json:"patch"`
}

// PutTasksInput replaces the session's task list.
type PutTasksInput struct {
	SessionID string                `json:"session_id"`
	Tasks     []models.ResearchTask `json:"tasks"`
}

// AppendMessageInput appends a message to the session log.
type AppendMessageInput struct {
	SessionID   string             `json:"session_id"`
	Role        models.MessageRole `json:"role"`
	Content     string             `json:"content"`
	Suggestions []string           `json:"suggestions,omitempty"`
}

// SetReportInput stores the final report on the session.
type SetReportInput struct {
	SessionID string `json:"session_id"`
	Report    string `json:"report"`
}

// ProgressInput publishes an advisory phase-boundary event.
type ProgressInput struct {
	SessionID string `json:"session_id"`
	Phase     string `json:"phase"`
	Message   string `json:"message,omitempty"`
}

// RunMetricsInput folds run-level counters and archives the run record at
// run start and end.
type RunMetricsInput struct {
	SessionID string              `json:"session_id"`
	Goal      string              `json:"goal,omitempty"`
	Mode      models.ResearchMode `json:"mode"`
	Status    string              `json:"status"` // started, completed, failed
	StartedAt time.Time           `json:"started_at"`
	Duration  time.Duration       `json:"duration,omitempty"`
	Report    string              `json:"report,omitempty"`
}

// SessionSnapshot is what the workflow reads once at run start.
type SessionSnapshot struct {
	Title        string                `json:"title"`
	Profile      models.UserProfile    `json:"profile"`
	Report       models.ReportConfig   `json:"report_config"`
	Context      string                `json:"context"`
	PriorQueries []string              `json:"prior_queries"`
	Tasks        []models.ResearchTask `json:"tasks"`
}
