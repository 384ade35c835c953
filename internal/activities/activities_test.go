package activities

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/horizon-research/horizon/internal/config"
	"github.com/horizon-research/horizon/internal/contentsvc"
	"github.com/horizon-research/horizon/internal/models"
	"github.com/horizon-research/horizon/internal/session"
	"github.com/horizon-research/horizon/internal/streaming"
)

// stubContent scripts content-service responses per operation.
type stubContent struct {
	responses map[string]*contentsvc.Generation
	errs      map[string]error
	calls     map[string]int
}

func newStubContent() *stubContent {
	return &stubContent{
		responses: map[string]*contentsvc.Generation{},
		errs:      map[string]error{},
		calls:     map[string]int{},
	}
}

func (s *stubContent) Generate(ctx context.Context, spec contentsvc.PromptSpec) (*contentsvc.Generation, error) {
	s.calls[spec.Operation]++
	if err, ok := s.errs[spec.Operation]; ok {
		return nil, err
	}
	if gen, ok := s.responses[spec.Operation]; ok {
		return gen, nil
	}
	return &contentsvc.Generation{Text: "ok"}, nil
}

// memStore is an in-memory session.Store for activity tests.
type memStore struct {
	sessions map[string]*models.ResearchSession
}

func newMemStore() *memStore {
	return &memStore{sessions: map[string]*models.ResearchSession{}}
}

func (m *memStore) CreateSession(ctx context.Context, id, title string, profile models.UserProfile, report models.ReportConfig) (*models.ResearchSession, error) {
	sess := &models.ResearchSession{ID: id, Title: title, Profile: profile, Report: report}
	m.sessions[id] = sess
	return sess, nil
}

func (m *memStore) GetSession(ctx context.Context, id string) (*models.ResearchSession, error) {
	sess, ok := m.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return sess, nil
}

func (m *memStore) PutTasks(ctx context.Context, id string, tasks []models.ResearchTask) error {
	sess, ok := m.sessions[id]
	if !ok {
		return session.ErrSessionNotFound
	}
	sess.Tasks = tasks
	return nil
}

func (m *memStore) UpdateTask(ctx context.Context, id, taskID string, patch models.TaskPatch) error {
	sess, ok := m.sessions[id]
	if !ok {
		return session.ErrSessionNotFound
	}
	for i := range sess.Tasks {
		if sess.Tasks[i].ID == taskID {
			if patch.Status != nil {
				sess.Tasks[i].Status = *patch.Status
			}
			if patch.Findings != nil {
				sess.Tasks[i].Findings = *patch.Findings
			}
			if patch.Sources != nil {
				sess.Tasks[i].Sources = patch.Sources
			}
			if patch.Quality != nil {
				sess.Tasks[i].Quality = patch.Quality
			}
			if patch.Verification != nil {
				sess.Tasks[i].Verification = patch.Verification
			}
			return nil
		}
	}
	return session.ErrTaskNotFound
}

func (m *memStore) SetFinalReport(ctx context.Context, id, report string) error {
	sess, ok := m.sessions[id]
	if !ok {
		return session.ErrSessionNotFound
	}
	sess.Synthesis = report
	return nil
}

func (m *memStore) AppendMessage(ctx context.Context, id string, role models.MessageRole, content string, suggestions []string) error {
	sess, ok := m.sessions[id]
	if !ok {
		return session.ErrSessionNotFound
	}
	sess.Messages = append(sess.Messages, models.Message{Role: role, Content: content, Suggestions: suggestions})
	return nil
}

func testActivities(t *testing.T, content contentsvc.Client, store session.Store) *Activities {
	t.Helper()
	cfg := config.ResearchConfig{
		BatchSize:           3,
		MaxAttempts:         2,
		BaseDelay:           time.Millisecond,
		SimilarityThreshold: 0.8,
		MinContentLength:    50,
		QualityLengthDiv:    50,
		QualityPerSource:    10,
		QualityComponentCap: 50,
		QualityAcceptMin:    40,
	}
	return NewActivities(content, store, streaming.NewHub(), nil, cfg, zaptest.NewLogger(t))
}

func TestPlanResearchParsesTasks(t *testing.T) {
	content := newStubContent()
	content.responses["plan"] = &contentsvc.Generation{
		Text: "```json\n{\"tasks\":[{\"title\":\"A\",\"description\":\"d\",\"query\":\"impact of x overview\"},{\"title\":\"B\",\"description\":\"d\",\"query\":\"impact of x statistics\"}]}\n```",
	}
	a := testActivities(t, content, newMemStore())

	plan, err := a.PlanResearch(context.Background(), PlanInput{
		Goal: "Impact of X",
		Mode: models.ModeDeep,
	})
	require.NoError(t, err)
	require.Len(t, plan.Tasks, 2)
	assert.Equal(t, "impact of x overview", plan.Tasks[0].Query)
}

func TestPlanResearchDeduplicatesQueries(t *testing.T) {
	content := newStubContent()
	content.responses["plan"] = &contentsvc.Generation{
		Text: `{"tasks":[{"title":"A","query":"solar power"},{"title":"B","query":"solar power"}]}`,
	}
	a := testActivities(t, content, newMemStore())

	plan, err := a.PlanResearch(context.Background(), PlanInput{Goal: "g", Mode: models.ModeDeep})
	require.NoError(t, err)
	assert.Equal(t, "solar power", plan.Tasks[0].Query)
	assert.Equal(t, "solar power (in-depth analysis)", plan.Tasks[1].Query)
}

func TestPlanResearchDeduplicatesAgainstPriorRuns(t *testing.T) {
	content := newStubContent()
	content.responses["plan"] = &contentsvc.Generation{
		Text: `{"tasks":[{"title":"A","query":"machine learning"}]}`,
	}
	a := testActivities(t, content, newMemStore())

	plan, err := a.PlanResearch(context.Background(), PlanInput{
		Goal:         "g",
		Mode:         models.ModeStandard,
		PriorQueries: []string{"machine learning"},
	})
	require.NoError(t, err)
	assert.Equal(t, "machine learning (in-depth analysis)", plan.Tasks[0].Query)
}

func TestPlanResearchPropagatesExhaustedFailure(t *testing.T) {
	content := newStubContent()
	content.errs["plan"] = errors.New("service down")
	a := testActivities(t, content, newMemStore())

	_, err := a.PlanResearch(context.Background(), PlanInput{Goal: "g", Mode: models.ModeFast})
	require.Error(t, err)
	assert.Equal(t, 2, content.calls["plan"]) // retried to the attempt ceiling
}

func TestPlanResearchCredentialErrorNotRetried(t *testing.T) {
	content := newStubContent()
	content.errs["plan"] = contentsvc.ErrInvalidCredential
	a := testActivities(t, content, newMemStore())

	_, err := a.PlanResearch(context.Background(), PlanInput{Goal: "g", Mode: models.ModeFast})
	require.Error(t, err)
	assert.ErrorIs(t, err, contentsvc.ErrInvalidCredential)
	assert.Equal(t, 1, content.calls["plan"])
}

func TestFallbackPlanUsesGoalVerbatim(t *testing.T) {
	plan := FallbackPlan("Impact of X")
	require.Len(t, plan.Tasks, 1)
	assert.Equal(t, "Impact of X", plan.Tasks[0].Query)
}

func TestExecuteSearchDeduplicatesSources(t *testing.T) {
	content := newStubContent()
	content.responses["search"] = &contentsvc.Generation{
		Text: "findings",
		Citations: []models.Source{
			{URL: "https://a.com", Title: "A"},
			{URL: "https://a.com", Title: "A dup"},
			{URL: "https://b.com", Title: "B"},
			{URL: "", Title: "no url"},
		},
	}
	a := testActivities(t, content, newMemStore())

	out, err := a.ExecuteSearch(context.Background(), SearchInput{TaskID: "task-1", Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, "findings", out.Findings)
	require.Len(t, out.Sources, 2)
	assert.Equal(t, "A", out.Sources[0].Title)
}

func TestEvaluateQualityShortContentSkipsService(t *testing.T) {
	content := newStubContent()
	a := testActivities(t, content, newMemStore())

	q, err := a.EvaluateQuality(context.Background(), EvaluateInput{Findings: "too short", SourceCount: 5})
	require.NoError(t, err)
	assert.Equal(t, 0, q.Score)
	assert.False(t, q.Acceptable)
	assert.Zero(t, content.calls["evaluate"])
}

func TestEvaluateQualityHeuristicFallback(t *testing.T) {
	content := newStubContent()
	content.errs["evaluate"] = errors.New("down")
	a := testActivities(t, content, newMemStore())

	findings := make([]byte, 1000)
	for i := range findings {
		findings[i] = 'x'
	}
	q, err := a.EvaluateQuality(context.Background(), EvaluateInput{Findings: string(findings), SourceCount: 2})
	require.NoError(t, err)
	assert.Equal(t, 40, q.Score) // min(1000/50,50)=20 + min(10*2,50)=20
	assert.True(t, q.Acceptable)
}

func TestHeuristicQualityBounds(t *testing.T) {
	a := testActivities(t, newStubContent(), newMemStore())

	q := a.HeuristicQuality(40, 0)
	assert.Equal(t, 0, q.Score)
	assert.False(t, q.Acceptable)

	q = a.HeuristicQuality(100000, 20)
	assert.Equal(t, 100, q.Score) // both components capped at 50
	assert.True(t, q.Acceptable)
}

func TestVerifyFindingsNoSourcesNeutral(t *testing.T) {
	content := newStubContent()
	a := testActivities(t, content, newMemStore())

	v, err := a.VerifyFindings(context.Background(), VerifyInput{TaskTitle: "t", Findings: "f", SourceCount: 0})
	require.NoError(t, err)
	assert.True(t, v.IsAccurate)
	assert.Equal(t, 50, v.Confidence)
	assert.Equal(t, "no sources to verify against", v.Correction)
	assert.Zero(t, content.calls["verify"])
}

func TestVerifyFindingsFailsOpen(t *testing.T) {
	content := newStubContent()
	content.errs["verify"] = errors.New("down")
	a := testActivities(t, content, newMemStore())

	v, err := a.VerifyFindings(context.Background(), VerifyInput{TaskTitle: "t", Findings: "f", SourceCount: 3})
	require.NoError(t, err)
	assert.True(t, v.IsAccurate)
	assert.Equal(t, 0, v.Confidence)
}

func TestDetectTrendsSingleFindingSkipped(t *testing.T) {
	content := newStubContent()
	a := testActivities(t, content, newMemStore())

	trends, err := a.DetectTrends(context.Background(), TrendsInput{Findings: []string{"only one"}})
	require.NoError(t, err)
	assert.Empty(t, trends)
	assert.Zero(t, content.calls["trends"])
}

func TestDetectTrendsDegradesToEmpty(t *testing.T) {
	content := newStubContent()
	content.errs["trends"] = errors.New("down")
	a := testActivities(t, content, newMemStore())

	trends, err := a.DetectTrends(context.Background(), TrendsInput{Findings: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Empty(t, trends)
}

func TestFormatReportIdentityFallback(t *testing.T) {
	content := newStubContent()
	content.errs["format"] = errors.New("down")
	a := testActivities(t, content, newMemStore())

	out, err := a.FormatReport(context.Background(), FormatInput{Synthesis: "original", Template: models.TemplateAcademic})
	require.NoError(t, err)
	assert.Equal(t, "original", out)
}

func TestTranslateReportDefaultLanguageIdentity(t *testing.T) {
	content := newStubContent()
	a := testActivities(t, content, newMemStore())

	out, err := a.TranslateReport(context.Background(), TranslateInput{Content: "text", Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, "text", out)
	assert.Zero(t, content.calls["translate"])
}

func TestGenerateSuggestionsParsesAndCaps(t *testing.T) {
	content := newStubContent()
	content.responses["suggest"] = &contentsvc.Generation{
		Text: `{"suggestions":["a","b","c","d"]}`,
	}
	a := testActivities(t, content, newMemStore())

	got, err := a.GenerateSuggestions(context.Background(), SuggestInput{Context: "ctx"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestExtractChartDataSkipsTextWithoutDigits(t *testing.T) {
	content := newStubContent()
	a := testActivities(t, content, newMemStore())

	chart, err := a.ExtractChartData(context.Background(), ExtractChartInput{SessionID: "s1", Content: "no numbers here"})
	require.NoError(t, err)
	assert.Nil(t, chart)
	assert.Zero(t, content.calls["extract_chart"])
}

func TestExtractChartDataParses(t *testing.T) {
	content := newStubContent()
	content.responses["extract_chart"] = &contentsvc.Generation{
		Text: `{"title":"T","type":"bar","labels":["a"],"datasets":[{"label":"s","data":[1.5]}]}`,
	}
	a := testActivities(t, content, newMemStore())

	chart, err := a.ExtractChartData(context.Background(), ExtractChartInput{SessionID: "s1", Content: "grew by 40%"})
	require.NoError(t, err)
	require.NotNil(t, chart)
	assert.Equal(t, "bar", chart.Type)
}

func TestGetSessionSnapshot(t *testing.T) {
	store := newMemStore()
	_, _ = store.CreateSession(context.Background(), "s1", "Title", models.UserProfile{Language: "de"}, models.ReportConfig{})
	_ = store.AppendMessage(context.Background(), "s1", models.RoleSystem, "noise", nil)
	_ = store.AppendMessage(context.Background(), "s1", models.RoleUser, "hello", nil)
	_ = store.PutTasks(context.Background(), "s1", []models.ResearchTask{{ID: "t1", Query: "old query"}})
	a := testActivities(t, newStubContent(), store)

	snap, err := a.GetSessionSnapshot(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "de", snap.Profile.Language)
	assert.Equal(t, []string{"old query"}, snap.PriorQueries)
	assert.Contains(t, snap.Context, "USER: hello")
	assert.NotContains(t, snap.Context, "noise")
}
