// Package activities implements the side-effecting stages of a research run
// as Temporal activities. Retries against the content service happen inside
// each activity (internal/retry); Temporal-level activity retries stay
// disabled for those so the backoff discipline lives in one place.
package activities

import (
	"go.uber.org/zap"

	"github.com/horizon-research/horizon/internal/config"
	"github.com/horizon-research/horizon/internal/contentsvc"
	"github.com/horizon-research/horizon/internal/db"
	"github.com/horizon-research/horizon/internal/dedup"
	"github.com/horizon-research/horizon/internal/retry"
	"github.com/horizon-research/horizon/internal/session"
	"github.com/horizon-research/horizon/internal/streaming"
)

// Activities holds shared dependencies. The content client is stateless and
// safely shared; the archive may be nil (archiving disabled).
type Activities struct {
	content contentsvc.Client
	store   session.Store
	hub     *streaming.Hub
	archive *db.Archive
	dedup   *dedup.Deduplicator
	cfg     config.ResearchConfig
	logger  *zap.Logger
}

// NewActivities wires the activity set.
func NewActivities(content contentsvc.Client, store session.Store, hub *streaming.Hub, archive *db.Archive, cfg config.ResearchConfig, logger *zap.Logger) *Activities {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 3
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = retry.DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = retry.DefaultBaseDelay
	}
	if cfg.MinContentLength <= 0 {
		cfg.MinContentLength = 50
	}
	if cfg.QualityLengthDiv <= 0 {
		cfg.QualityLengthDiv = 50
	}
	if cfg.QualityPerSource <= 0 {
		cfg.QualityPerSource = 10
	}
	if cfg.QualityComponentCap <= 0 {
		cfg.QualityComponentCap = 50
	}
	if cfg.QualityAcceptMin <= 0 {
		cfg.QualityAcceptMin = 40
	}
	return &Activities{
		content: content,
		store:   store,
		hub:     hub,
		archive: archive,
		dedup:   dedup.New(cfg.SimilarityThreshold),
		cfg:     cfg,
		logger:  logger,
	}
}

func (a *Activities) retryOpts() retry.Options {
	return retry.Options{MaxAttempts: a.cfg.MaxAttempts, BaseDelay: a.cfg.BaseDelay}
}
