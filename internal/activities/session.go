package activities

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/horizon-research/horizon/internal/db"
	"github.com/horizon-research/horizon/internal/metrics"
	"github.com/horizon-research/horizon/internal/models"
	"github.com/horizon-research/horizon/internal/streaming"
)

const (
	historyWindow     = 10
	historySnippetLen = 300
)

// GetSessionSnapshot reads the session once at run start: profile, report
// config, recent conversation context, and the queries of prior task lists
// for deduplication.
func (a *Activities) GetSessionSnapshot(ctx context.Context, sessionID string) (SessionSnapshot, error) {
	sess, err := a.store.GetSession(ctx, sessionID)
	if err != nil {
		return SessionSnapshot{}, err
	}

	var prior []string
	for _, t := range sess.Tasks {
		prior = append(prior, t.Query)
	}

	return SessionSnapshot{
		Title:        sess.Title,
		Profile:      sess.Profile,
		Report:       sess.Report,
		Context:      renderRecentHistory(sess.Messages),
		PriorQueries: prior,
		Tasks:        sess.Tasks,
	}, nil
}

// renderRecentHistory flattens the last few non-system turns for prompt
// context.
func renderRecentHistory(messages []models.Message) string {
	var recent []models.Message
	for _, m := range messages {
		if m.Role == models.RoleSystem {
			continue
		}
		recent = append(recent, m)
	}
	if len(recent) > historyWindow {
		recent = recent[len(recent)-historyWindow:]
	}

	var b strings.Builder
	for _, m := range recent {
		content := m.Content
		if len(content) > historySnippetLen {
			content = content[:historySnippetLen] + "..."
		}
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(string(m.Role)), content)
	}
	return strings.TrimSpace(b.String())
}

// PutTasks replaces the session task list wholesale (planning time).
func (a *Activities) PutTasks(ctx context.Context, in PutTasksInput) error {
	return a.store.PutTasks(ctx, in.SessionID, in.Tasks)
}

// UpdateTask applies a point mutation to one task. Terminal states are also
// mirrored to the archive.
func (a *Activities) UpdateTask(ctx context.Context, in UpdateTaskInput) error {
	if err := a.store.UpdateTask(ctx, in.SessionID, in.TaskID, in.Patch); err != nil {
		return err
	}

	if in.Patch.Status != nil && in.Patch.Status.Terminal() {
		metrics.TasksExecuted.WithLabelValues(string(*in.Patch.Status)).Inc()
		if a.archive != nil {
			sess, err := a.store.GetSession(ctx, in.SessionID)
			if err == nil {
				for _, t := range sess.Tasks {
					if t.ID == in.TaskID {
						a.archive.SaveTask(db.TaskFromModel(in.SessionID, t))
						break
					}
				}
			}
		}
	}
	return nil
}

// AppendMessage appends to the session conversation log.
func (a *Activities) AppendMessage(ctx context.Context, in AppendMessageInput) error {
	return a.store.AppendMessage(ctx, in.SessionID, in.Role, in.Content, in.Suggestions)
}

// SetFinalReport stores the terminal report on the session.
func (a *Activities) SetFinalReport(ctx context.Context, in SetReportInput) error {
	return a.store.SetFinalReport(ctx, in.SessionID, in.Report)
}

// RecordRunMetrics increments run-level counters and mirrors the run record
// to the archive. Workflow code cannot touch Prometheus directly (replay
// would double count), so the workflow schedules this fire-and-forget.
func (a *Activities) RecordRunMetrics(ctx context.Context, in RunMetricsInput) error {
	switch in.Status {
	case "started":
		metrics.RunsStarted.WithLabelValues(string(in.Mode)).Inc()
	default:
		metrics.RunsCompleted.WithLabelValues(string(in.Mode), in.Status).Inc()
		metrics.RunDuration.WithLabelValues(string(in.Mode)).Observe(in.Duration.Seconds())
	}

	if a.archive != nil {
		var completed *time.Time
		if in.Status != "started" {
			t := in.StartedAt.Add(in.Duration)
			completed = &t
		}
		a.archive.SaveRun(db.RunRecord{
			// Stable per (session, start) so start and finish upsert one row.
			ID:          uuid.NewSHA1(uuid.NameSpaceOID, []byte(in.SessionID+in.StartedAt.UTC().Format(time.RFC3339Nano))),
			SessionID:   in.SessionID,
			Goal:        in.Goal,
			Mode:        string(in.Mode),
			Status:      in.Status,
			Report:      in.Report,
			StartedAt:   in.StartedAt,
			CompletedAt: completed,
		})
	}
	return nil
}

// EmitProgress publishes an advisory phase event. Never fails.
func (a *Activities) EmitProgress(ctx context.Context, in ProgressInput) error {
	a.hub.Publish(streaming.Event{
		SessionID: in.SessionID,
		Phase:     in.Phase,
		Message:   in.Message,
	})
	a.logger.Debug("Progress",
		zap.String("session_id", in.SessionID),
		zap.String("phase", in.Phase),
		zap.String("message", in.Message),
	)
	return nil
}
