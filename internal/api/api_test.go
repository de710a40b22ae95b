package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"deepsite_server/internal/ai"
	"deepsite_server/internal/deploy"
	"deepsite_server/internal/logger"
	"deepsite_server/internal/project"
	"deepsite_server/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	html      string
	fragments []string
	failMsg   string
	pingErr   error
}

func (g *stubGenerator) GenerateHTML(_ context.Context, _, _ string, report ai.Reporter) (string, bool) {
	if g.failMsg != "" {
		report.ReportError(g.failMsg)
		return "", false
	}
	return g.html, true
}

func (g *stubGenerator) StreamHTML(_ context.Context, _, _ string, report ai.Reporter) iter.Seq[string] {
	return func(yield func(string) bool) {
		if g.failMsg != "" {
			report.ReportError(g.failMsg)
			return
		}
		for _, f := range g.fragments {
			if !yield(f) {
				return
			}
		}
	}
}

func (g *stubGenerator) Ping(_ context.Context, apiKey string) (int, error) {
	if apiKey == "" {
		return 0, ai.ErrMissingAPIKey
	}
	return 3, g.pingErr
}

type testEnv struct {
	router *gin.Engine
	store  *project.Store
	gen    *stubGenerator
	broker *Broker
	export string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := project.NewStore(filepath.Join(t.TempDir(), "projects"), logger.Discard())
	gen := &stubGenerator{html: "<p>generated</p>", fragments: []string{"<h1>", "Hi", "</h1>"}}
	export := t.TempDir()
	broker := NewBroker()
	t.Cleanup(broker.Close)

	h := NewAPIHandler(Deps{
		Generator:     gen,
		Store:         store,
		Sessions:      session.NewManager(session.Defaults{APIKey: "sk-test"}),
		Deployers:     deploy.NewRegistry(deploy.NewLocal(export, logger.Discard()), deploy.NewNetlify("", logger.Discard())),
		Broker:        broker,
		DefaultAPIKey: "sk-test",
		Logger:        logger.Discard(),
	})
	router := gin.New()
	RegisterRoutes(router, h)
	return &testEnv{router: router, store: store, gen: gen, broker: broker, export: export}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func (e *testEnv) newSession(t *testing.T) session.State {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	return decode[session.State](t, rr)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, rr)["status"])

	rr = env.do(t, http.MethodGet, "/health/upstream", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 3, decode[map[string]any](t, rr)["models"])

	env.gen.pingErr = errors.New("API error: 401 - bad key")
	rr = env.do(t, http.MethodGet, "/health/upstream", nil)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	st := env.newSession(t)

	assert.True(t, st.HasAPIKey)
	assert.Equal(t, session.WelcomeHTML, st.HTML)
	assert.NotContains(t, env.do(t, http.MethodGet, "/sessions/"+st.ID, nil).Body.String(), "sk-test")

	rr := env.do(t, http.MethodPut, "/sessions/"+st.ID+"/settings", map[string]any{"theme": "light", "fontSize": 16})
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[session.State](t, rr)
	assert.Equal(t, "light", got.Theme)
	assert.Equal(t, 16, got.FontSize)

	rr = env.do(t, http.MethodPut, "/sessions/"+st.ID+"/settings", map[string]any{"fontSize": 99})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPut, "/sessions/"+st.ID+"/markup", map[string]any{"html": "<p>manual</p>"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodGet, "/sessions/"+st.ID+"/preview", nil)
	assert.Equal(t, "<p>manual</p>", rr.Body.String())
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/sessions/"+st.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/sessions/"+st.ID, nil).Code)
}

func TestGenerate(t *testing.T) {
	env := newTestEnv(t)
	st := env.newSession(t)

	rr := env.do(t, http.MethodPost, "/sessions/"+st.ID+"/generate", map[string]any{"prompt": "a page"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "<p>generated</p>", decode[GenerateResponse](t, rr).HTML)

	got := decode[session.State](t, env.do(t, http.MethodGet, "/sessions/"+st.ID, nil))
	assert.Equal(t, []string{"a page"}, got.PromptHistory)

	rr = env.do(t, http.MethodPost, "/sessions/"+st.ID+"/generate", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPost, "/sessions/unknown/generate", map[string]any{"prompt": "x"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGenerateFailure(t *testing.T) {
	env := newTestEnv(t)
	env.gen.failMsg = "API error: 401 - No auth credentials found"
	st := env.newSession(t)

	rr := env.do(t, http.MethodPost, "/sessions/"+st.ID+"/generate", map[string]any{"prompt": "a page"})
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, "API error: 401 - No auth credentials found", decode[map[string]string](t, rr)["error"])
}

func TestGenerateWithoutKey(t *testing.T) {
	env := newTestEnv(t)
	st := env.newSession(t)
	rr := env.do(t, http.MethodPut, "/sessions/"+st.ID+"/settings", map[string]any{"apiKey": ""})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodPost, "/sessions/"+st.ID+"/generate", map[string]any{"prompt": "a page"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), ai.MsgMissingAPIKey)
}

type sseEvent struct {
	name string
	data string
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	var cur sseEvent
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			cur.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			cur.data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "" && cur.name != "":
			events = append(events, cur)
			cur = sseEvent{}
		}
	}
	return events
}

func TestGenerateStream(t *testing.T) {
	env := newTestEnv(t)
	st := env.newSession(t)

	rr := env.do(t, http.MethodPost, "/sessions/"+st.ID+"/generate/stream", map[string]any{"prompt": "hello"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/event-stream")

	events := parseSSE(t, rr.Body.String())
	require.Len(t, events, 4)
	for i, want := range []string{"<h1>", "Hi", "</h1>"} {
		assert.Equal(t, "chunk", events[i].name)
		var payload map[string]string
		require.NoError(t, json.Unmarshal([]byte(events[i].data), &payload))
		assert.Equal(t, want, payload["content"])
	}
	assert.Equal(t, "done", events[3].name)

	got := decode[session.State](t, env.do(t, http.MethodGet, "/sessions/"+st.ID, nil))
	assert.Equal(t, "<h1>Hi</h1>", got.HTML)
}

func TestGenerateStreamFailure(t *testing.T) {
	env := newTestEnv(t)
	env.gen.failMsg = "API error: 402 - insufficient credits"
	st := env.newSession(t)

	rr := env.do(t, http.MethodPost, "/sessions/"+st.ID+"/generate/stream", map[string]any{"prompt": "hello"})
	events := parseSSE(t, rr.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].name)
	assert.Contains(t, events[0].data, "insufficient credits")
}

func TestSessionSaveAndLoad(t *testing.T) {
	env := newTestEnv(t)
	st := env.newSession(t)
	env.do(t, http.MethodPut, "/sessions/"+st.ID+"/markup", map[string]any{"html": "<p>v1</p>"})

	rr := env.do(t, http.MethodPost, "/sessions/"+st.ID+"/save", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rr.Code, "no current project yet")

	rr = env.do(t, http.MethodPost, "/sessions/"+st.ID+"/save", map[string]any{"name": "Demo"})
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[SaveResponse](t, rr).ProjectID

	env.do(t, http.MethodPut, "/sessions/"+st.ID+"/markup", map[string]any{"html": "<p>v2</p>"})
	rr = env.do(t, http.MethodPost, "/sessions/"+st.ID+"/save", map[string]any{})
	require.Equal(t, http.StatusOK, rr.Code)

	other := env.newSession(t)
	rr = env.do(t, http.MethodPost, "/sessions/"+other.ID+"/load", map[string]any{"projectId": id})
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[session.State](t, rr)
	assert.Equal(t, "<p>v2</p>", got.HTML)
	assert.Equal(t, id, got.CurrentProject)

	rr = env.do(t, http.MethodPost, "/sessions/"+other.ID+"/load", map[string]any{"projectId": "nope"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeploy(t *testing.T) {
	env := newTestEnv(t)
	st := env.newSession(t)

	rr := env.do(t, http.MethodPost, "/sessions/"+st.ID+"/deploy", map[string]any{"target": "netlify", "projectName": "Launch"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	dep := decode[session.Deployment](t, rr)
	assert.True(t, dep.Simulated)
	assert.NotEmpty(t, dep.ProjectID)

	list, err := env.store.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Launch", list[0].Name)

	rr = env.do(t, http.MethodPost, "/sessions/"+st.ID+"/deploy", map[string]any{"target": "ftp", "projectName": "Launch"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPost, "/sessions/"+st.ID+"/deploy", map[string]any{"target": "local", "projectName": "Launch"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.FileExists(t, filepath.Join(env.export, "Launch", "index.html"))
}

func TestProjectsCRUD(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/projects", map[string]any{"name": "A", "html": "<p>a</p>", "promptHistory": []string{"first"}})
	require.Equal(t, http.StatusCreated, rr.Code)
	rec := decode[project.Record](t, rr)
	assert.Equal(t, "A", rec.Name)

	rr = env.do(t, http.MethodGet, "/projects/"+rec.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"html_content"`)
	assert.Equal(t, "<p>a</p>", decode[project.Record](t, rr).HTMLContent)

	rr = env.do(t, http.MethodPatch, "/projects/"+rec.ID, map[string]any{"html": "<p>b</p>"})
	require.Equal(t, http.StatusOK, rr.Code)
	updated := decode[project.Record](t, rr)
	assert.Equal(t, "<p>b</p>", updated.HTMLContent)
	assert.Equal(t, []string{"first"}, updated.PromptHistory)

	rr = env.do(t, http.MethodGet, "/projects", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]project.Record](t, rr), 1)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/projects/"+rec.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/projects/"+rec.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/projects/"+rec.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPatch, "/projects/"+rec.ID, map[string]any{"html": "x"}).Code)
}

func TestProjectEvents(t *testing.T) {
	env := newTestEnv(t)
	server := httptest.NewServer(env.router)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/projects/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return env.broker.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	env.broker.PublishProjectChange(project.ChangeCreated, "abc")

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: project.created\n", line)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "data: {\"id\":\"abc\"}\n", line)
}

func TestNewRouterMiddleware(t *testing.T) {
	env := newTestEnv(t)
	h := NewAPIHandler(Deps{
		Generator: env.gen,
		Store:     env.store,
		Sessions:  session.NewManager(session.Defaults{}),
		Deployers: deploy.NewRegistry(),
		Broker:    env.broker,
		Logger:    logger.Discard(),
	})
	router := NewRouter(h, []string{"http://localhost:3000"})

	req := httptest.NewRequest(http.MethodOptions, "/projects", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "deepsite_http_requests_total")
}
