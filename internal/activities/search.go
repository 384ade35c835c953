package activities

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/horizon-research/horizon/internal/contentsvc"
	"github.com/horizon-research/horizon/internal/models"
)

// ExecuteSearch investigates one task's query with search grounding. Retried
// internally; an exhausted failure fails the task (not the run).
func (a *Activities) ExecuteSearch(ctx context.Context, in SearchInput) (SearchOutput, error) {
	prompt := fmt.Sprintf(
		"Investigate detailed, factual information for: %s\nRank findings by relevance and synthesize the top results into a cohesive answer. Cite facts.",
		in.Query,
	)

	gen, err := a.generate(ctx, contentsvc.PromptSpec{
		Operation: "search",
		Prompt:    prompt,
		UseSearch: true,
	})
	if err != nil {
		a.logger.Warn("Search failed after retries",
			zap.String("task_id", in.TaskID),
			zap.Error(err),
		)
		return SearchOutput{}, err
	}

	out := SearchOutput{
		Findings: gen.Text,
		Sources:  uniqueByURL(gen.Citations),
	}
	a.logger.Info("Search completed",
		zap.String("task_id", in.TaskID),
		zap.Int("findings_len", len(out.Findings)),
		zap.Int("sources", len(out.Sources)),
	)
	return out, nil
}

func uniqueByURL(sources []models.Source) []models.Source {
	seen := make(map[string]struct{}, len(sources))
	var out []models.Source
	for _, s := range sources {
		if s.URL == "" {
			continue
		}
		if _, ok := seen[s.URL]; ok {
			continue
		}
		seen[s.URL] = struct{}{}
		out = append(out, s)
	}
	return out
}
