package activities

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/horizon-research/horizon/internal/contentsvc"
	"github.com/horizon-research/horizon/internal/metrics"
	"github.com/horizon-research/horizon/internal/models"
)

const plannerSystem = "You are an expert research planner. You break research goals into distinct, execution-ready research tasks, each with a search query optimized for a search engine."

// PlanResearch turns a goal into an ordered task list. The call is retried
// internally; an exhausted failure propagates so the workflow can substitute
// the single-task fallback plan.
func (a *Activities) PlanResearch(ctx context.Context, in PlanInput) (models.PlanResult, error) {
	var b strings.Builder
	b.WriteString(personaPreamble(in.Profile.ExpertiseLevel, in.Profile.Language))
	fmt.Fprintf(&b, "\nUser Goal: %q\n", in.Goal)
	if in.Context != "" {
		b.WriteString("\nRECENT CONVERSATION HISTORY:\n" + in.Context + "\n")
	}
	if in.Mode == models.ModeFast {
		b.WriteString("\nProduce exactly ONE broad research task covering the goal.\n")
	} else {
		b.WriteString("\nBreak this goal into 3-6 distinct research tasks, ordered to build up knowledge.\n")
	}
	b.WriteString(`Respond with JSON: {"tasks":[{"title":"...","description":"...","query":"..."}]}`)

	gen, err := a.generate(ctx, contentsvc.PromptSpec{
		Operation:      "plan",
		System:         plannerSystem,
		Prompt:         b.String(),
		JSONResponse:   true,
		ThinkingBudget: in.Mode.ThinkingBudget(),
	})
	if err != nil {
		metrics.PlanFallbacks.Inc()
		return models.PlanResult{}, err
	}

	var plan models.PlanResult
	if err := json.Unmarshal([]byte(extractJSON(gen.Text)), &plan); err != nil {
		metrics.PlanFallbacks.Inc()
		return models.PlanResult{}, fmt.Errorf("parse plan response: %w", err)
	}
	if len(plan.Tasks) == 0 {
		metrics.PlanFallbacks.Inc()
		return models.PlanResult{}, fmt.Errorf("planner returned no tasks")
	}

	// Guard against the planner re-issuing earlier searches across turns.
	prior := append([]string(nil), in.PriorQueries...)
	for i := range plan.Tasks {
		rewritten := a.dedup.Rewrite(plan.Tasks[i].Query, prior)
		if rewritten != plan.Tasks[i].Query {
			a.logger.Debug("Rewrote duplicate query",
				zap.String("original", plan.Tasks[i].Query),
				zap.String("rewritten", rewritten),
			)
			plan.Tasks[i].Query = rewritten
		}
		prior = append(prior, plan.Tasks[i].Query)
	}

	a.logger.Info("Planned research tasks",
		zap.String("mode", string(in.Mode)),
		zap.Int("task_count", len(plan.Tasks)),
	)
	return plan, nil
}

// FallbackPlan is the degraded single-task plan used when planning fails
// after retries: one task whose query is the goal verbatim.
func FallbackPlan(goal string) models.PlanResult {
	return models.PlanResult{Tasks: []models.PlannedTask{{
		Title:       "General Research",
		Description: "Direct investigation of the research goal",
		Query:       goal,
	}}}
}
