package activities

import (
	"context"
	"errors"
	"strings"

	"github.com/horizon-research/horizon/internal/contentsvc"
	"github.com/horizon-research/horizon/internal/retry"
)

// generate wraps one content-service call in the retry policy, classifying
// credential failures as permanent so they are attempted exactly once.
func (a *Activities) generate(ctx context.Context, spec contentsvc.PromptSpec) (*contentsvc.Generation, error) {
	return retry.Do(ctx, func(ctx context.Context) (*contentsvc.Generation, error) {
		out, err := a.content.Generate(ctx, spec)
		if err != nil && errors.Is(err, contentsvc.ErrInvalidCredential) {
			return nil, retry.Permanent(err)
		}
		return out, err
	}, a.retryOpts())
}

// extractJSON strips markdown code fences the model sometimes wraps around
// structured responses.
func extractJSON(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

// personaPreamble renders audience and language instructions from the
// profile, mirrored across planning and synthesis prompts.
func personaPreamble(expertise, language string) string {
	var b strings.Builder
	if expertise == "expert" {
		b.WriteString("AUDIENCE: Expert/Technical. Use precise terminology and avoid simplification.\n")
	} else {
		b.WriteString("AUDIENCE: Beginner. Explain complex concepts simply and focus on clarity.\n")
	}
	if language != "" && language != "en" {
		b.WriteString("OUTPUT LANGUAGE: " + language + ".\n")
	}
	return b.String()
}
