// Package session persists research sessions. The store is the system of
// record for a run: every mutation is durable before the method returns.
package session

import (
	"context"
	"errors"

	"github.com/horizon-research/horizon/internal/models"
)

var (
	// ErrSessionNotFound is returned when a session doesn't exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTaskNotFound is returned when a task patch targets an unknown task.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidTransition is returned for a backwards task status change.
	ErrInvalidTransition = errors.New("invalid task status transition")
)

// Store is the narrow mutation surface the orchestration engine uses. All
// methods are durable-on-return. Concurrent runs against the same session ID
// are not supported; the caller serializes them.
type Store interface {
	CreateSession(ctx context.Context, id, title string, profile models.UserProfile, report models.ReportConfig) (*models.ResearchSession, error)
	GetSession(ctx context.Context, id string) (*models.ResearchSession, error)
	PutTasks(ctx context.Context, id string, tasks []models.ResearchTask) error
	UpdateTask(ctx context.Context, id, taskID string, patch models.TaskPatch) error
	SetFinalReport(ctx context.Context, id, report string) error
	AppendMessage(ctx context.Context, id string, role models.MessageRole, content string, suggestions []string) error
}

// applyPatch mutates task in place, enforcing monotonic forward status
// transitions: no task returns to PENDING once started, and terminal states
// are final.
func applyPatch(task *models.ResearchTask, patch models.TaskPatch) error {
	if patch.Status != nil {
		next := *patch.Status
		switch {
		case next == models.TaskStatusPending && task.Status != models.TaskStatusPending:
			return ErrInvalidTransition
		case task.Status.Terminal() && next != task.Status:
			return ErrInvalidTransition
		}
		task.Status = next
	}
	if patch.Findings != nil {
		task.Findings = *patch.Findings
	}
	if patch.Sources != nil {
		task.Sources = patch.Sources
	}
	if patch.Quality != nil {
		task.Quality = patch.Quality
	}
	if patch.Verification != nil {
		task.Verification = patch.Verification
	}
	return nil
}
