package activities

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/horizon-research/horizon/internal/contentsvc"
	"github.com/horizon-research/horizon/internal/metrics"
	"github.com/horizon-research/horizon/internal/models"
)

// EvaluateQuality scores one task's findings 0-100. Findings below the
// minimum length score zero without a service call. A failed evaluation
// falls back to the deterministic heuristic rather than erroring; this
// activity never fails a task.
func (a *Activities) EvaluateQuality(ctx context.Context, in EvaluateInput) (models.QualityMetrics, error) {
	if len(in.Findings) < a.cfg.MinContentLength {
		return models.QualityMetrics{
			Score:      0,
			Issues:     []string{"content too short"},
			Acceptable: false,
		}, nil
	}

	preview := in.Findings
	if len(preview) > 500 {
		preview = preview[:500]
	}
	prompt := fmt.Sprintf(
		"Analyze the quality of this research snippet.\nSource count: %d\nContent length: %d\nContent preview: %q\n\nRate on a 0-100 scale for factual density, relevance, and source support.\nRespond with JSON: {\"score\": number, \"issues\": [string], \"acceptable\": boolean}",
		in.SourceCount, len(in.Findings), preview,
	)

	gen, err := a.generate(ctx, contentsvc.PromptSpec{
		Operation:    "evaluate",
		Prompt:       prompt,
		JSONResponse: true,
	})
	if err == nil {
		var q models.QualityMetrics
		if jerr := json.Unmarshal([]byte(extractJSON(gen.Text)), &q); jerr == nil {
			q.Score = clampScore(q.Score)
			return q, nil
		}
	}

	metrics.QualityHeuristicFallbacks.Inc()
	a.logger.Warn("Quality evaluation degraded to heuristic", zap.Error(err))
	return a.HeuristicQuality(len(in.Findings), in.SourceCount), nil
}

// HeuristicQuality is the deterministic fallback score:
// min(length/divisor, cap) + min(perSource*sources, cap), acceptable at or
// above the minimum. With default coefficients that is
// min(len/50, 50) + min(10*sources, 50) >= 40.
func (a *Activities) HeuristicQuality(contentLen, sourceCount int) models.QualityMetrics {
	lengthScore := contentLen / a.cfg.QualityLengthDiv
	if lengthScore > a.cfg.QualityComponentCap {
		lengthScore = a.cfg.QualityComponentCap
	}
	sourceScore := a.cfg.QualityPerSource * sourceCount
	if sourceScore > a.cfg.QualityComponentCap {
		sourceScore = a.cfg.QualityComponentCap
	}
	score := lengthScore + sourceScore
	return models.QualityMetrics{
		Score:      score,
		Issues:     []string{"automated evaluation unavailable, heuristic score"},
		Acceptable: score >= a.cfg.QualityAcceptMin,
	}
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
