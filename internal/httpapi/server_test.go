package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap/zaptest"

	"github.com/horizon-research/horizon/internal/models"
	"github.com/horizon-research/horizon/internal/session"
	"github.com/horizon-research/horizon/internal/streaming"
	"github.com/horizon-research/horizon/internal/workflows"
)

type fakeRun struct {
	id    string
	runID string
}

func (f fakeRun) GetID() string    { return f.id }
func (f fakeRun) GetRunID() string { return f.runID }
func (f fakeRun) Get(ctx context.Context, valuePtr interface{}) error {
	return nil
}
func (f fakeRun) GetWithOptions(ctx context.Context, valuePtr interface{}, options client.WorkflowRunGetOptions) error {
	return nil
}

type fakeStarter struct {
	lastOptions client.StartWorkflowOptions
	lastInput   workflows.ResearchInput
	err         error
}

func (f *fakeStarter) ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error) {
	f.lastOptions = options
	if len(args) == 1 {
		if in, ok := args[0].(workflows.ResearchInput); ok {
			f.lastInput = in
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return fakeRun{id: options.ID, runID: "run-1"}, nil
}

func newTestServer(t *testing.T, starter WorkflowStarter, auth *Authenticator) (*Server, session.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := session.NewRedisStore(mr.Addr(), "", 0, time.Hour, zaptest.NewLogger(t))
	require.NoError(t, err)
	return NewServer(starter, store, streaming.NewHub(), nil, "horizon-research", auth, zaptest.NewLogger(t)), store
}

func postJSON(t *testing.T, handler http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndGetSession(t *testing.T) {
	srv, _ := newTestServer(t, &fakeStarter{}, nil)
	handler := srv.Routes()

	rec := postJSON(t, handler, "/api/v1/sessions", createSessionRequest{
		Title:   "Quantum",
		Profile: models.UserProfile{ExpertiseLevel: "expert", Language: "en"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.ResearchSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Quantum", created.Title)
	assert.Equal(t, models.TemplateSimple, created.Report.Template)
	assert.Equal(t, models.StyleAPA, created.Report.CitationStyle)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+created.ID, nil)
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req)
	require.Equal(t, http.StatusOK, rec2.Code)

	var fetched models.ResearchSession
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &fetched))
	assert.Equal(t, created.ID, fetched.ID)
}

func TestGetSessionNotFound(t *testing.T) {
	srv, _ := newTestServer(t, &fakeStarter{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/nope", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAppendMessage(t *testing.T) {
	srv, store := newTestServer(t, &fakeStarter{}, nil)
	sess, err := store.CreateSession(context.Background(), "s1", "t", models.UserProfile{}, models.ReportConfig{})
	require.NoError(t, err)

	rec := postJSON(t, srv.Routes(), "/api/v1/sessions/"+sess.ID+"/messages", appendMessageRequest{Content: "hello"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	got, err := store.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, models.RoleUser, got.Messages[0].Role)
	assert.Equal(t, "hello", got.Messages[0].Content)
}

func TestStartResearch(t *testing.T) {
	starter := &fakeStarter{}
	srv, store := newTestServer(t, starter, nil)
	_, err := store.CreateSession(context.Background(), "s1", "t", models.UserProfile{}, models.ReportConfig{})
	require.NoError(t, err)

	rec := postJSON(t, srv.Routes(), "/api/v1/research", startResearchRequest{
		SessionID: "s1",
		Goal:      "Impact of X",
		Mode:      models.ModeDeep,
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp startResearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "research-s1", resp.WorkflowID)

	assert.Equal(t, "research-s1", starter.lastOptions.ID)
	assert.Equal(t, "horizon-research", starter.lastOptions.TaskQueue)
	assert.Equal(t, models.ModeDeep, starter.lastInput.Mode)
	assert.Equal(t, "Impact of X", starter.lastInput.Goal)
}

func TestStartResearchValidation(t *testing.T) {
	srv, _ := newTestServer(t, &fakeStarter{}, nil)
	rec := postJSON(t, srv.Routes(), "/api/v1/research", startResearchRequest{Goal: "no session"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartResearchUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t, &fakeStarter{}, nil)
	rec := postJSON(t, srv.Routes(), "/api/v1/research", startResearchRequest{SessionID: "ghost", Goal: "g"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartResearchDuplicateRejected(t *testing.T) {
	starter := &fakeStarter{err: serviceerror.NewWorkflowExecutionAlreadyStarted("already running", "", "")}
	srv, store := newTestServer(t, starter, nil)
	_, err := store.CreateSession(context.Background(), "s1", "t", models.UserProfile{}, models.ReportConfig{})
	require.NoError(t, err)

	rec := postJSON(t, srv.Routes(), "/api/v1/research", startResearchRequest{SessionID: "s1", Goal: "g"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	auth := NewAuthenticator("test-secret")
	srv, _ := newTestServer(t, &fakeStarter{}, auth)
	handler := srv.Routes()

	// Health stays open.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// No token.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/s1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong key.
	bad, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u1"}).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/s1", nil)
	req.Header.Set("Authorization", "Bearer "+bad)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid token reaches the handler (404 since the session doesn't exist).
	good, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/sessions/s1", nil)
	req.Header.Set("Authorization", "Bearer "+good)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProgressWebSocket(t *testing.T) {
	starter := &fakeStarter{}
	srv, _ := newTestServer(t, starter, nil)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream/ws?session_id=s1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the handler time to subscribe before publishing.
	require.Eventually(t, func() bool {
		srv.hub.Publish(streaming.Event{SessionID: "s1", Phase: "planning"})
		_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		var ev streaming.Event
		return conn.ReadJSON(&ev) == nil && ev.Phase == "planning"
	}, 2*time.Second, 50*time.Millisecond)
}
