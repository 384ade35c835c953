// Package citations aggregates grounding sources across tasks and formats
// them into a bibliography.
package citations

import (
	"fmt"
	"strings"
	"time"

	"github.com/horizon-research/horizon/internal/models"
)

// DedupeSources merges sources by URL, preserving first-seen order. When the
// same URL recurs with a different title, the last write wins.
func DedupeSources(groups ...[]models.Source) []models.Source {
	index := make(map[string]int)
	var out []models.Source
	for _, group := range groups {
		for _, s := range group {
			if s.URL == "" {
				continue
			}
			if i, ok := index[s.URL]; ok {
				out[i] = s
				continue
			}
			index[s.URL] = len(out)
			out = append(out, s)
		}
	}
	return out
}

// FormatCitation renders one source in the given style. The access date is
// the formatting time; the content service does not report publication dates.
func FormatCitation(s models.Source, style models.CitationStyle, now time.Time) string {
	title := s.Title
	if title == "" {
		title = "No Title"
	}
	year := now.Year()
	month := now.Month().String()
	day := now.Day()

	switch style {
	case models.StyleMLA:
		return fmt.Sprintf("%q Web. %d %s %d. <%s>.", title, day, month, year, s.URL)
	case models.StyleChicago:
		return fmt.Sprintf("%q Accessed %s %d, %d. %s.", title, month, day, year, s.URL)
	default: // APA
		return fmt.Sprintf("(%d, %s %d). %s. Retrieved from %s", year, month, day, title, s.URL)
	}
}

// FormatBibliography renders the deduplicated source set as a markdown
// references section. Returns "" for an empty source set.
func FormatBibliography(sources []models.Source, style models.CitationStyle, now time.Time) string {
	if len(sources) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## References\n\n")
	for i, s := range sources {
		fmt.Fprintf(&b, "%d. %s\n", i+1, FormatCitation(s, style, now))
	}
	return b.String()
}
