// Package workflows contains the durable orchestration of a research run:
// plan, batched search, quality gates, synthesis, enhancement, writeback.
// Content-service retries happen inside the activities, so activity options
// here disable Temporal's own retries for content-calling activities and keep
// them only for idempotent store operations.
package workflows

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/horizon-research/horizon/internal/activities"
	"github.com/horizon-research/horizon/internal/citations"
	"github.com/horizon-research/horizon/internal/formatting"
	"github.com/horizon-research/horizon/internal/models"
)

// batchSize is how many tasks run concurrently per wave. Waves are strictly
// sequential; a wave starts only after the previous one fully settled.
const batchSize = 3

// ResearchWorkflow runs one research goal end to end against a session.
// Guarantee on exit, success or failure: no task is left PENDING or
// IN_PROGRESS in the session store.
func ResearchWorkflow(ctx workflow.Context, input ResearchInput) (ResearchResult, error) {
	logger := workflow.GetLogger(ctx)

	if input.SessionID == "" {
		return ResearchResult{}, errors.New("session_id is required")
	}
	if strings.TrimSpace(input.Goal) == "" {
		return ResearchResult{}, errors.New("goal is required")
	}
	if input.Mode == "" {
		input.Mode = models.ModeStandard
	}

	logger.Info("Starting research run",
		"session_id", input.SessionID,
		"goal", input.Goal,
		"mode", input.Mode,
	)
	startedAt := workflow.Now(ctx)

	// Content-calling activities own their retry loop; a Temporal retry on
	// top would multiply the backoff schedule.
	contentOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	}
	contentCtx := workflow.WithActivityOptions(ctx, contentOpts)
	// Store operations are cheap and idempotent.
	storeOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
	}
	storeCtx := workflow.WithActivityOptions(ctx, storeOpts)

	recordRunMetrics(ctx, activities.RunMetricsInput{
		SessionID: input.SessionID,
		Goal:      input.Goal,
		Mode:      input.Mode,
		Status:    "started",
		StartedAt: startedAt,
	})

	var snap activities.SessionSnapshot
	if err := workflow.ExecuteActivity(storeCtx, GetSessionSnapshotActivity, input.SessionID).Get(ctx, &snap); err != nil {
		return ResearchResult{}, fmt.Errorf("load session: %w", err)
	}

	appendMessage(storeCtx, logger, activities.AppendMessageInput{
		SessionID: input.SessionID,
		Role:      models.RoleSystem,
		Content:   fmt.Sprintf("Starting %s research: %s", input.Mode, input.Goal),
	})
	emitProgress(storeCtx, input.SessionID, "planning", "Breaking the goal into research tasks")

	// Planning failure is never fatal: the run proceeds with a single
	// default task whose query is the goal verbatim.
	var plan models.PlanResult
	err := workflow.ExecuteActivity(contentCtx, PlanResearchActivity, activities.PlanInput{
		Goal:         input.Goal,
		Context:      snap.Context,
		PriorQueries: snap.PriorQueries,
		Profile:      snap.Profile,
		Mode:         input.Mode,
	}).Get(ctx, &plan)
	if err != nil {
		logger.Warn("Planning failed, falling back to single-task plan", "error", err)
		plan = activities.FallbackPlan(input.Goal)
	}
	if input.Mode == models.ModeFast && len(plan.Tasks) > 1 {
		plan.Tasks = plan.Tasks[:1]
	}

	tasks := make([]models.ResearchTask, len(plan.Tasks))
	for i, pt := range plan.Tasks {
		tasks[i] = models.ResearchTask{
			ID:          fmt.Sprintf("task-%d", i+1),
			Title:       pt.Title,
			Description: pt.Description,
			Query:       pt.Query,
			Status:      models.TaskStatusPending,
		}
	}
	if err := workflow.ExecuteActivity(storeCtx, PutTasksActivity, activities.PutTasksInput{
		SessionID: input.SessionID,
		Tasks:     tasks,
	}).Get(ctx, nil); err != nil {
		return failRun(ctx, input, nil, startedAt, fmt.Errorf("store task list: %w", err))
	}

	emitProgress(storeCtx, input.SessionID, "searching", fmt.Sprintf("Executing %d research tasks", len(tasks)))

	outcomes := make([]taskOutcome, len(tasks))
	for start := 0; start < len(tasks); start += batchSize {
		end := start + batchSize
		if end > len(tasks) {
			end = len(tasks)
		}
		wg := workflow.NewWaitGroup(ctx)
		for i := start; i < end; i++ {
			i := i
			wg.Add(1)
			workflow.Go(ctx, func(gctx workflow.Context) {
				defer wg.Done()
				// Blocking calls must use contexts bound to this
				// coroutine, not the root one.
				outcomes[i] = executeTask(
					workflow.WithActivityOptions(gctx, contentOpts),
					workflow.WithActivityOptions(gctx, storeOpts),
					input.SessionID, &tasks[i])
			})
		}
		wg.Wait(ctx)
	}

	var (
		findings  []activities.TaskFinding
		groups    [][]models.Source
		completed int
	)
	for i, o := range outcomes {
		if !o.completed {
			continue
		}
		completed++
		findings = append(findings, activities.TaskFinding{Title: tasks[i].Title, Findings: o.findings})
		groups = append(groups, o.sources)
	}
	if completed == 0 {
		return failRun(ctx, input, tasks, startedAt, errors.New("all research tasks failed"))
	}
	allSources := citations.DedupeSources(groups...)

	emitProgress(storeCtx, input.SessionID, "analyzing", "Analyzing findings across tasks")

	var combined strings.Builder
	for _, f := range findings {
		combined.WriteString(f.Findings)
		combined.WriteString("\n")
	}

	// Chart extraction is a side channel: scheduled, never awaited, its
	// result lands in the archive for the task board.
	if snap.Report.IncludeCharts {
		dctx, _ := workflow.NewDisconnectedContext(ctx)
		dctx = workflow.WithActivityOptions(dctx, workflow.ActivityOptions{
			StartToCloseTimeout: 2 * time.Minute,
			RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
		})
		workflow.ExecuteActivity(dctx, ExtractChartDataActivity, activities.ExtractChartInput{
			SessionID: input.SessionID,
			Content:   combined.String(),
		})
	}

	var trends string
	if err := workflow.ExecuteActivity(contentCtx, DetectTrendsActivity, activities.TrendsInput{
		Findings: findingTexts(findings),
	}).Get(ctx, &trends); err != nil {
		logger.Warn("Trend detection unavailable", "error", err)
		trends = ""
	}

	emitProgress(storeCtx, input.SessionID, "synthesizing", "Writing the research report")

	var report string
	if err := workflow.ExecuteActivity(contentCtx, SynthesizeReportActivity, activities.SynthesisInput{
		Goal:     input.Goal,
		Findings: findings,
		Trends:   trends,
		Profile:  snap.Profile,
		Mode:     input.Mode,
	}).Get(ctx, &report); err != nil {
		return failRun(ctx, input, tasks, startedAt, fmt.Errorf("synthesize report: %w", err))
	}

	emitProgress(storeCtx, input.SessionID, "enhancing", "Formatting and finalizing the report")

	var formatted string
	if err := workflow.ExecuteActivity(contentCtx, FormatReportActivity, activities.FormatInput{
		Synthesis: report,
		Template:  snap.Report.Template,
	}).Get(ctx, &formatted); err != nil {
		logger.Warn("Formatting unavailable, keeping synthesis", "error", err)
	} else {
		report = formatted
	}

	var translated string
	if err := workflow.ExecuteActivity(contentCtx, TranslateReportActivity, activities.TranslateInput{
		Content:  report,
		Language: snap.Profile.Language,
	}).Get(ctx, &translated); err != nil {
		logger.Warn("Translation unavailable, keeping original language", "error", err)
	} else {
		report = translated
	}

	if snap.Report.IncludeSources && len(allSources) > 0 {
		style := snap.Report.CitationStyle
		if style == "" {
			style = models.StyleAPA
		}
		report = formatting.StripReferences(report) + "\n\n" +
			citations.FormatBibliography(allSources, style, workflow.Now(ctx))
	}

	if err := workflow.ExecuteActivity(storeCtx, SetFinalReportActivity, activities.SetReportInput{
		SessionID: input.SessionID,
		Report:    report,
	}).Get(ctx, nil); err != nil {
		return failRun(ctx, input, tasks, startedAt, fmt.Errorf("store final report: %w", err))
	}

	var suggestions []string
	if err := workflow.ExecuteActivity(contentCtx, GenerateSuggestionsActivity, activities.SuggestInput{
		Context: report,
	}).Get(ctx, &suggestions); err != nil {
		logger.Warn("Suggestion generation unavailable", "error", err)
		suggestions = nil
	}

	appendMessage(storeCtx, logger, activities.AppendMessageInput{
		SessionID:   input.SessionID,
		Role:        models.RoleAssistant,
		Content:     report,
		Suggestions: suggestions,
	})
	emitProgress(storeCtx, input.SessionID, "completed", "Research completed")
	recordRunMetrics(ctx, activities.RunMetricsInput{
		SessionID: input.SessionID,
		Goal:      input.Goal,
		Mode:      input.Mode,
		Status:    "completed",
		StartedAt: startedAt,
		Duration:  workflow.Now(ctx).Sub(startedAt),
		Report:    report,
	})

	logger.Info("Research run completed",
		"session_id", input.SessionID,
		"tasks", len(tasks),
		"completed", completed,
		"report_len", len(report),
	)
	return ResearchResult{
		SessionID:      input.SessionID,
		Report:         report,
		Suggestions:    suggestions,
		TasksPlanned:   len(tasks),
		TasksCompleted: completed,
		TasksFailed:    len(tasks) - completed,
	}, nil
}

// taskOutcome is the workflow-local record of one task's execution.
type taskOutcome struct {
	findings  string
	sources   []models.Source
	completed bool
}

// executeTask runs one task through search, quality scoring, and
// verification, and writes its terminal state. A task failure never
// propagates; siblings and the run continue.
func executeTask(contentCtx, storeCtx workflow.Context, sessionID string, task *models.ResearchTask) taskOutcome {
	logger := workflow.GetLogger(contentCtx)

	task.Status = models.TaskStatusInProgress
	if err := updateTask(storeCtx, sessionID, task.ID, models.TaskPatch{Status: statusPtr(models.TaskStatusInProgress)}); err != nil {
		logger.Warn("Failed to mark task in progress", "task_id", task.ID, "error", err)
	}

	var out activities.SearchOutput
	if err := workflow.ExecuteActivity(contentCtx, ExecuteSearchActivity, activities.SearchInput{
		TaskID: task.ID,
		Query:  task.Query,
	}).Get(contentCtx, &out); err != nil {
		logger.Warn("Task failed", "task_id", task.ID, "error", err)
		task.Status = models.TaskStatusFailed
		msg := err.Error()
		if werr := updateTask(storeCtx, sessionID, task.ID, models.TaskPatch{
			Status:   statusPtr(models.TaskStatusFailed),
			Findings: &msg,
		}); werr != nil {
			logger.Error("Failed to record task failure", "task_id", task.ID, "error", werr)
		}
		return taskOutcome{}
	}

	// Scoring and verification are advisory: their activities degrade
	// internally, and even an infrastructure failure here leaves the task
	// completed with unscored findings.
	var quality *models.QualityMetrics
	var q models.QualityMetrics
	if err := workflow.ExecuteActivity(contentCtx, EvaluateQualityActivity, activities.EvaluateInput{
		Findings:    out.Findings,
		SourceCount: len(out.Sources),
	}).Get(contentCtx, &q); err != nil {
		logger.Warn("Quality evaluation unavailable", "task_id", task.ID, "error", err)
	} else {
		quality = &q
	}

	var verification *models.VerificationResult
	var v models.VerificationResult
	if err := workflow.ExecuteActivity(contentCtx, VerifyFindingsActivity, activities.VerifyInput{
		TaskTitle:   task.Title,
		Findings:    out.Findings,
		SourceCount: len(out.Sources),
	}).Get(contentCtx, &v); err != nil {
		logger.Warn("Verification unavailable", "task_id", task.ID, "error", err)
	} else {
		verification = &v
	}

	task.Status = models.TaskStatusCompleted
	if err := updateTask(storeCtx, sessionID, task.ID, models.TaskPatch{
		Status:       statusPtr(models.TaskStatusCompleted),
		Findings:     &out.Findings,
		Sources:      out.Sources,
		Quality:      quality,
		Verification: verification,
	}); err != nil {
		logger.Error("Failed to record task completion", "task_id", task.ID, "error", err)
		task.Status = models.TaskStatusFailed
		_ = updateTask(storeCtx, sessionID, task.ID, models.TaskPatch{Status: statusPtr(models.TaskStatusFailed)})
		return taskOutcome{}
	}

	return taskOutcome{findings: out.Findings, sources: out.Sources, completed: true}
}

// failRun is the single failure exit after tasks exist: it sweeps any task
// that is not yet terminal to FAILED, tells the user via a system message,
// and returns the original error. The sweep runs on a disconnected context
// so it proceeds even when the workflow context is cancelled.
func failRun(ctx workflow.Context, input ResearchInput, tasks []models.ResearchTask, startedAt time.Time, cause error) (ResearchResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Error("Research run failed", "session_id", input.SessionID, "error", cause)

	dctx, _ := workflow.NewDisconnectedContext(ctx)
	dctx = workflow.WithActivityOptions(dctx, workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
	})
	for i := range tasks {
		if tasks[i].Status.Terminal() {
			continue
		}
		if err := updateTask(dctx, input.SessionID, tasks[i].ID, models.TaskPatch{
			Status: statusPtr(models.TaskStatusFailed),
		}); err != nil {
			logger.Error("Sweep failed for task", "task_id", tasks[i].ID, "error", err)
		}
	}

	appendMessage(dctx, logger, activities.AppendMessageInput{
		SessionID: input.SessionID,
		Role:      models.RoleSystem,
		Content:   "Research failed: " + cause.Error(),
	})
	emitProgress(dctx, input.SessionID, "failed", cause.Error())
	recordRunMetrics(dctx, activities.RunMetricsInput{
		SessionID: input.SessionID,
		Goal:      input.Goal,
		Mode:      input.Mode,
		Status:    "failed",
		StartedAt: startedAt,
		Duration:  workflow.Now(ctx).Sub(startedAt),
	})
	return ResearchResult{SessionID: input.SessionID, TasksPlanned: len(tasks)}, cause
}

func updateTask(ctx workflow.Context, sessionID, taskID string, patch models.TaskPatch) error {
	return workflow.ExecuteActivity(ctx, UpdateTaskActivity, activities.UpdateTaskInput{
		SessionID: sessionID,
		TaskID:    taskID,
		Patch:     patch,
	}).Get(ctx, nil)
}

func appendMessage(ctx workflow.Context, logger log.Logger, in activities.AppendMessageInput) {
	if err := workflow.ExecuteActivity(ctx, AppendMessageActivity, in).Get(ctx, nil); err != nil {
		logger.Warn("Failed to append session message", "session_id", in.SessionID, "error", err)
	}
}

// emitProgress publishes an advisory phase event; failures are ignored.
func emitProgress(ctx workflow.Context, sessionID, phase, message string) {
	_ = workflow.ExecuteActivity(ctx, EmitProgressActivity, activities.ProgressInput{
		SessionID: sessionID,
		Phase:     phase,
		Message:   message,
	}).Get(ctx, nil)
}

// recordRunMetrics folds run-level counters on the worker; fire-and-forget.
func recordRunMetrics(ctx workflow.Context, in activities.RunMetricsInput) {
	dctx, _ := workflow.NewDisconnectedContext(ctx)
	dctx = workflow.WithActivityOptions(dctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	workflow.ExecuteActivity(dctx, RecordRunMetricsActivity, in)
}

func statusPtr(s models.TaskStatus) *models.TaskStatus {
	return &s
}

func findingTexts(findings []activities.TaskFinding) []string {
	var out []string
	for _, f := range findings {
		out = append(out, f.Findings)
	}
	return out
}
