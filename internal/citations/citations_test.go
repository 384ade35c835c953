package citations

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/horizon-research/horizon/internal/models"
)

func TestDedupeSourcesLastWriteWins(t *testing.T) {
	got := DedupeSources([]models.Source{
		{URL: "https://a.com", Title: "A"},
		{URL: "https://b.com", Title: "B"},
		{URL: "https://a.com", Title: "A2"},
	})

	require.Len(t, got, 2)
	assert.Equal(t, "https://a.com", got[0].URL)
	assert.Equal(t, "A2", got[0].Title)
	assert.Equal(t, "https://b.com", got[1].URL)
}

func TestDedupeSourcesAcrossGroups(t *testing.T) {
	got := DedupeSources(
		[]models.Source{{URL: "https://a.com", Title: "A"}},
		[]models.Source{{URL: "https://c.com", Title: "C"}, {URL: "https://a.com", Title: "A-later"}},
	)

	require.Len(t, got, 2)
	assert.Equal(t, "A-later", got[0].Title)
	assert.Equal(t, "https://c.com", got[1].URL)
}

func TestDedupeSourcesSkipsEmptyURLs(t *testing.T) {
	got := DedupeSources([]models.Source{{URL: "", Title: "orphan"}})
	assert.Empty(t, got)
}

func TestFormatBibliography(t *testing.T) {
	now := time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)
	sources := []models.Source{
		{URL: "https://a.com", Title: "Alpha"},
		{URL: "https://b.com"},
	}

	apa := FormatBibliography(sources, models.StyleAPA, now)
	assert.Contains(t, apa, "## References")
	assert.Contains(t, apa, "1. (2025, March 5). Alpha. Retrieved from https://a.com")
	assert.Contains(t, apa, "No Title")

	mla := FormatBibliography(sources, models.StyleMLA, now)
	assert.Contains(t, mla, `"Alpha" Web. 5 March 2025. <https://a.com>.`)

	chicago := FormatBibliography(sources, models.StyleChicago, now)
	assert.Contains(t, chicago, `"Alpha" Accessed March 5, 2025. https://a.com.`)

	assert.Equal(t, 2, strings.Count(apa, "\n")-2) // header + blank + 2 entries
}

func TestFormatBibliographyEmpty(t *testing.T) {
	assert.Equal(t, "", FormatBibliography(nil, models.StyleAPA, time.Now()))
}
