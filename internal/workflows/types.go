package workflows

import "github.com/horizon-research/horizon/internal/models"

// Activity names as registered on the worker. Activities are methods on
// activities.Activities, so the registered name is the method name.
const (
	GetSessionSnapshotActivity  = "GetSessionSnapshot"
	PlanResearchActivity        = "PlanResearch"
	ExecuteSearchActivity       = "ExecuteSearch"
	EvaluateQualityActivity     = "EvaluateQuality"
	VerifyFindingsActivity      = "VerifyFindings"
	DetectTrendsActivity        = "DetectTrends"
	SynthesizeReportActivity    = "SynthesizeReport"
	FormatReportActivity        = "FormatReport"
	TranslateReportActivity     = "TranslateReport"
	GenerateSuggestionsActivity = "GenerateSuggestions"
	ExtractChartDataActivity    = "ExtractChartData"
	PutTasksActivity            = "PutTasks"
	UpdateTaskActivity          = "UpdateTask"
	AppendMessageActivity       = "AppendMessage"
	SetFinalReportActivity      = "SetFinalReport"
	EmitProgressActivity        = "EmitProgress"
	RecordRunMetricsActivity    = "RecordRunMetrics"
)

// ResearchInput starts one research run against an existing session.
type ResearchInput struct {
	SessionID string              `json:"session_id"`
	Goal      string              `json:"goal"`
	Mode      models.ResearchMode `json:"mode"`
}

// ResearchResult summarizes a completed run. The full report and task records
// live in the session store; this is what the starter gets back.
type ResearchResult struct {
	SessionID      string   `json:"session_id"`
	Report         string   `json:"report"`
	Suggestions    []string `json:"suggestions,omitempty"`
	TasksPlanned   int      `json:"tasks_planned"`
	TasksCompleted int      `json:"tasks_completed"`
	TasksFailed    int      `json:"tasks_failed"`
}
