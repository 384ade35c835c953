package activities

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/horizon-research/horizon/internal/contentsvc"
)

// DetectTrends identifies cross-task trends and contradictions. Trend
// detection is meaningless on a single finding, so fewer than two findings
// short-circuit to empty. Failure degrades to empty, never raises.
func (a *Activities) DetectTrends(ctx context.Context, in TrendsInput) (string, error) {
	if len(in.Findings) < 2 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("Analyze these research findings. Identify 2-3 emerging trends, recurring patterns, or contradictions across the sources. Return a brief bulleted list.\n\n")
	for i, f := range in.Findings {
		if len(f) > 300 {
			f = f[:300]
		}
		fmt.Fprintf(&b, "Finding %d: %s\n", i+1, f)
	}

	gen, err := a.generate(ctx, contentsvc.PromptSpec{
		Operation: "trends",
		Prompt:    b.String(),
	})
	if err != nil {
		a.logger.Warn("Trend detection degraded to empty", zap.Error(err))
		return "", nil
	}
	return gen.Text, nil
}

// SynthesizeReport produces the structured synthesis from goal, findings,
// and detected trends. The mode's reasoning budget is forwarded opaquely.
// This is the one enhancement-adjacent stage that propagates failure: with
// no synthesis there is nothing to degrade to.
func (a *Activities) SynthesizeReport(ctx context.Context, in SynthesisInput) (string, error) {
	var b strings.Builder
	b.WriteString(personaPreamble(in.Profile.ExpertiseLevel, in.Profile.Language))
	b.WriteString("\nYou are a senior research analyst.\n")
	fmt.Fprintf(&b, "Original goal: %q\n\n", in.Goal)
	b.WriteString("Generate a comprehensive synthesis in markdown with this structure:\n")
	b.WriteString("1. Executive Summary\n2. Key Findings\n3. Detailed Analysis\n4. Contradictions or Gaps\n5. Conclusion & Recommendations\n\n")
	if in.Trends != "" {
		b.WriteString("Cross-task trends detected:\n" + in.Trends + "\n\n")
	}
	b.WriteString("Research data:\n")
	for _, f := range in.Findings {
		fmt.Fprintf(&b, "### Task: %s\nFindings: %s\n\n", f.Title, f.Findings)
	}

	gen, err := a.generate(ctx, contentsvc.PromptSpec{
		Operation:      "synthesize",
		Prompt:         b.String(),
		ThinkingBudget: in.Mode.ThinkingBudget(),
	})
	if err != nil {
		return "", fmt.Errorf("synthesize report: %w", err)
	}

	a.logger.Info("Synthesis completed",
		zap.Int("findings", len(in.Findings)),
		zap.Int("report_len", len(gen.Text)),
	)
	return gen.Text, nil
}
