// Package db archives run and task records to Postgres. Writes are
// asynchronous and best-effort: the live run never blocks on, or fails
// because of, the archive. Redis (internal/session) remains the system of
// record for an active session.
package db

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/horizon-research/horizon/internal/metrics"
	"github.com/horizon-research/horizon/internal/models"
)

// RunRecord is one archived research run.
type RunRecord struct {
	ID          uuid.UUID  `db:"id"`
	SessionID   string     `db:"session_id"`
	Goal        string     `db:"goal"`
	Mode        string     `db:"mode"`
	Status      string     `db:"status"`
	Report      string     `db:"report"`
	StartedAt   time.Time  `db:"started_at"`
	CompletedAt *time.Time `db:"completed_at"`
}

// TaskRecord is one archived task execution.
type TaskRecord struct {
	ID           uuid.UUID `db:"id"`
	SessionID    string    `db:"session_id"`
	TaskID       string    `db:"task_id"`
	Title        string    `db:"title"`
	Query        string    `db:"query"`
	Status       string    `db:"status"`
	Findings     string    `db:"findings"`
	SourceCount  int       `db:"source_count"`
	QualityScore int       `db:"quality_score"`
	CreatedAt    time.Time `db:"created_at"`
}

// ChartRecord archives the chart-extraction side channel output.
type ChartRecord struct {
	ID        uuid.UUID `db:"id"`
	SessionID string    `db:"session_id"`
	Payload   []byte    `db:"payload"`
	CreatedAt time.Time `db:"created_at"`
}

type writeRequest struct {
	insert func(ctx context.Context, db *sqlx.DB) error
}

// Archive owns the write-behind queue.
type Archive struct {
	db     *sqlx.DB
	logger *zap.Logger

	queue  chan writeRequest
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewArchive connects to Postgres and starts the writer goroutine.
func NewArchive(dsn string, logger *zap.Logger) (*Archive, error) {
	conn, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	conn.SetMaxOpenConns(8)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(30 * time.Minute)

	a := &Archive{
		db:     conn,
		logger: logger,
		queue:  make(chan writeRequest, 256),
		stopCh: make(chan struct{}),
	}
	a.wg.Add(1)
	go a.writer()
	return a, nil
}

// Ping reports Postgres reachability for readiness checks.
func (a *Archive) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// newArchiveWithDB is used by tests to inject a mock connection.
func newArchiveWithDB(conn *sqlx.DB, logger *zap.Logger) *Archive {
	a := &Archive{
		db:     conn,
		logger: logger,
		queue:  make(chan writeRequest, 256),
		stopCh: make(chan struct{}),
	}
	a.wg.Add(1)
	go a.writer()
	return a
}

func (a *Archive) writer() {
	defer a.wg.Done()
	for {
		select {
		case req := <-a.queue:
			metrics.ArchiveQueueDepth.Set(float64(len(a.queue)))
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := req.insert(ctx, a.db); err != nil {
				metrics.ArchiveWriteErrors.Inc()
				a.logger.Warn("Archive write failed", zap.Error(err))
			}
			cancel()
		case <-a.stopCh:
			// Drain what is already queued, then exit.
			for {
				select {
				case req := <-a.queue:
					ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					if err := req.insert(ctx, a.db); err != nil {
						metrics.ArchiveWriteErrors.Inc()
						a.logger.Warn("Archive write failed during drain", zap.Error(err))
					}
					cancel()
				default:
					return
				}
			}
		}
	}
}

// enqueue drops the write when the queue is full rather than blocking a run.
func (a *Archive) enqueue(req writeRequest) {
	select {
	case a.queue <- req:
		metrics.ArchiveQueueDepth.Set(float64(len(a.queue)))
	default:
		metrics.ArchiveWriteErrors.Inc()
		a.logger.Warn("Archive queue full, dropping write")
	}
}

// SaveRun archives a run record, idempotent by (session_id, started_at).
func (a *Archive) SaveRun(rec RunRecord) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	a.enqueue(writeRequest{insert: func(ctx context.Context, db *sqlx.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO research_runs (id, session_id, goal, mode, status, report, started_at, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				status = EXCLUDED.status,
				report = EXCLUDED.report,
				completed_at = EXCLUDED.completed_at`,
			rec.ID, rec.SessionID, rec.Goal, rec.Mode, rec.Status, rec.Report, rec.StartedAt, rec.CompletedAt)
		return err
	}})
}

// SaveTask archives one task execution.
func (a *Archive) SaveTask(rec TaskRecord) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	a.enqueue(writeRequest{insert: func(ctx context.Context, db *sqlx.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO research_tasks (id, session_id, task_id, title, query, status, findings, source_count, quality_score, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			rec.ID, rec.SessionID, rec.TaskID, rec.Title, rec.Query, rec.Status, rec.Findings, rec.SourceCount, rec.QualityScore, rec.CreatedAt)
		return err
	}})
}

// SaveChart archives extracted chart data from the side channel.
func (a *Archive) SaveChart(sessionID string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		a.logger.Warn("Chart payload not serializable", zap.Error(err))
		return
	}
	rec := ChartRecord{ID: uuid.New(), SessionID: sessionID, Payload: data, CreatedAt: time.Now().UTC()}
	a.enqueue(writeRequest{insert: func(ctx context.Context, db *sqlx.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO research_charts (id, session_id, payload, created_at)
			VALUES ($1, $2, $3, $4)`,
			rec.ID, rec.SessionID, rec.Payload, rec.CreatedAt)
		return err
	}})
}

// TaskFromModel builds a TaskRecord from a terminal task state.
func TaskFromModel(sessionID string, t models.ResearchTask) TaskRecord {
	score := 0
	if t.Quality != nil {
		score = t.Quality.Score
	}
	return TaskRecord{
		SessionID:    sessionID,
		TaskID:       t.ID,
		Title:        t.Title,
		Query:        t.Query,
		Status:       string(t.Status),
		Findings:     t.Findings,
		SourceCount:  len(t.Sources),
		QualityScore: score,
	}
}

// Close stops the writer after draining queued writes.
func (a *Archive) Close() error {
	close(a.stopCh)
	a.wg.Wait()
	return a.db.Close()
}
