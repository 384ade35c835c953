package activities

import (
	"context"
	"encoding/json"
	"regexp"

	"go.uber.org/zap"

	"github.com/horizon-research/horizon/internal/contentsvc"
	"github.com/horizon-research/horizon/internal/formatting"
)

// Enhancement stages degrade independently: a failing formatter, translator,
// or suggester returns its input unchanged (or empty) rather than aborting
// the pipeline. Only the terminal report reaches the user.

// FormatReport rewrites the synthesis into the requested document template.
func (a *Activities) FormatReport(ctx context.Context, in FormatInput) (string, error) {
	rubric, err := formatting.GetRubric(in.Template)
	if err != nil {
		a.logger.Warn("Template catalog unavailable, keeping synthesis", zap.Error(err))
		return in.Synthesis, nil
	}

	gen, err := a.generate(ctx, contentsvc.PromptSpec{
		Operation: "format",
		Prompt:    formatting.ReformatInstruction(rubric, in.Synthesis),
	})
	if err != nil || gen.Text == "" {
		a.logger.Warn("Formatting degraded to identity",
			zap.String("template", string(in.Template)),
			zap.Error(err),
		)
		return in.Synthesis, nil
	}
	return gen.Text, nil
}

// TranslateReport translates the report into the target language; identity
// for the default language and on failure.
func (a *Activities) TranslateReport(ctx context.Context, in TranslateInput) (string, error) {
	if in.Language == "" || in.Language == "en" {
		return in.Content, nil
	}

	gen, err := a.generate(ctx, contentsvc.PromptSpec{
		Operation: "translate",
		Prompt:    "Translate the following text to " + in.Language + ". Maintain markdown formatting.\n\n" + in.Content,
	})
	if err != nil || gen.Text == "" {
		a.logger.Warn("Translation degraded to identity", zap.String("language", in.Language), zap.Error(err))
		return in.Content, nil
	}
	return gen.Text, nil
}

// GenerateSuggestions proposes up to three follow-up questions; empty on
// failure.
func (a *Activities) GenerateSuggestions(ctx context.Context, in SuggestInput) ([]string, error) {
	snippet := in.Context
	if len(snippet) > 500 {
		snippet = snippet[:500]
	}

	gen, err := a.generate(ctx, contentsvc.PromptSpec{
		Operation:    "suggest",
		Prompt:       "Based on this research context, suggest 3 short, relevant follow-up questions or actions for the user.\nContext: " + snippet + "\nRespond with JSON: {\"suggestions\":[string]}",
		JSONResponse: true,
	})
	if err != nil {
		a.logger.Warn("Suggestion generation degraded to empty", zap.Error(err))
		return nil, nil
	}

	var out struct {
		Suggestions []string `json:"suggestions"`
	}
	if jerr := json.Unmarshal([]byte(extractJSON(gen.Text)), &out); jerr != nil {
		return nil, nil
	}
	if len(out.Suggestions) > 3 {
		out.Suggestions = out.Suggestions[:3]
	}
	return out.Suggestions, nil
}

var digitPattern = regexp.MustCompile(`\d`)

// ExtractChartData pulls statistical data suitable for a chart from the
// aggregate findings. It is a side channel: the result is logged and
// archived for the task board, never awaited by synthesis. Texts without
// digits are skipped outright.
func (a *Activities) ExtractChartData(ctx context.Context, in ExtractChartInput) (*ChartData, error) {
	if !digitPattern.MatchString(in.Content) {
		return nil, nil
	}

	content := in.Content
	if len(content) > 2000 {
		content = content[:2000]
	}
	gen, err := a.generate(ctx, contentsvc.PromptSpec{
		Operation:    "extract_chart",
		Prompt:       "Analyze the following research text. If it contains statistical data suitable for a bar, pie, or line chart, extract it.\nRespond with JSON: {\"title\": string, \"type\": \"bar\"|\"pie\"|\"line\", \"labels\": [string], \"datasets\": [{\"label\": string, \"data\": [number]}]}\nIf no suitable data exists, respond with null.\n\nText: " + content,
		JSONResponse: true,
	})
	if err != nil {
		a.logger.Debug("Chart extraction failed", zap.Error(err))
		return nil, nil
	}

	text := extractJSON(gen.Text)
	if text == "" || text == "null" {
		return nil, nil
	}
	var chart ChartData
	if jerr := json.Unmarshal([]byte(text), &chart); jerr != nil {
		return nil, nil
	}

	if a.archive != nil {
		a.archive.SaveChart(in.SessionID, chart)
	}
	a.logger.Info("Extracted chart data",
		zap.String("session_id", in.SessionID),
		zap.String("chart_type", chart.Type),
		zap.Int("labels", len(chart.Labels)),
	)
	return &chart, nil
}
