// Package formatting holds the document template rubrics the report
// formatter enforces, and helpers for reshaping synthesized reports.
package formatting

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/horizon-research/horizon/internal/models"
)

//go:embed templates.yaml
var templatesYAML []byte

// Rubric is the fixed structural contract for one document template.
type Rubric struct {
	Name     string   `yaml:"name"`
	Tone     string   `yaml:"tone"`
	Sections []string `yaml:"sections"`
}

type catalog struct {
	Templates []Rubric `yaml:"templates"`
}

var (
	loadOnce sync.Once
	rubrics  map[models.ReportTemplate]Rubric
	loadErr  error
)

func load() {
	var c catalog
	if err := yaml.Unmarshal(templatesYAML, &c); err != nil {
		loadErr = fmt.Errorf("parse template catalog: %w", err)
		return
	}
	rubrics = make(map[models.ReportTemplate]Rubric, len(c.Templates))
	for _, r := range c.Templates {
		rubrics[models.ReportTemplate(r.Name)] = r
	}
}

// GetRubric returns the rubric for tmpl, falling back to the simple template
// for unknown names.
func GetRubric(tmpl models.ReportTemplate) (Rubric, error) {
	loadOnce.Do(load)
	if loadErr != nil {
		return Rubric{}, loadErr
	}
	if r, ok := rubrics[tmpl]; ok {
		return r, nil
	}
	return rubrics[models.TemplateSimple], nil
}

// ReformatInstruction builds the content-service instruction that rewrites a
// synthesis into the rubric's structure.
func ReformatInstruction(r Rubric, synthesis string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rewrite the following research synthesis as a %s report.\n", r.Name)
	b.WriteString("TONE: " + r.Tone + "\n")
	b.WriteString("Use exactly these markdown sections, in order:\n")
	for _, s := range r.Sections {
		b.WriteString("## " + s + "\n")
	}
	b.WriteString("\nDo not invent facts that are not in the synthesis.\n")
	b.WriteString("\nSynthesis:\n" + synthesis)
	return b.String()
}

// StripReferences removes a trailing "## References" or "## Sources" section
// so a rebuilt bibliography can be appended without duplication. The last
// occurrence is used to avoid cutting body text that merely mentions the
// heading.
func StripReferences(report string) string {
	lower := strings.ToLower(report)
	cut := len(report)
	for _, needle := range []string{"## references", "## sources"} {
		if idx := strings.LastIndex(lower, needle); idx != -1 && idx < cut {
			cut = idx
		}
	}
	return strings.TrimSpace(report[:cut])
}
