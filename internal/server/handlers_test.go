package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apollo-chat/apollo/internal/agent"
	"github.com/apollo-chat/apollo/internal/auth"
	"github.com/apollo-chat/apollo/internal/event"
	"github.com/apollo-chat/apollo/internal/mcp"
	"github.com/apollo-chat/apollo/internal/provider"
	"github.com/apollo-chat/apollo/internal/session"
	"github.com/apollo-chat/apollo/internal/toolcache"
	"github.com/apollo-chat/apollo/pkg/types"
)

type scriptedProvider struct {
	mu    sync.Mutex
	steps []func() (*provider.CompletionStream, error)
}

func (p *scriptedProvider) ID() string   { return "scripted" }
func (p *scriptedProvider) Name() string { return "Scripted" }

func (p *scriptedProvider) CreateCompletion(_ context.Context, _ *provider.CompletionRequest) (*provider.CompletionStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.steps) == 0 {
		return nil, fmt.Errorf("provider unavailable: %w", auth.ErrAuthUnavailable)
	}
	step := p.steps[0]
	p.steps = p.steps[1:]
	return step()
}

func textStep(text string) func() (*provider.CompletionStream, error) {
	return func() (*provider.CompletionStream, error) {
		sr, sw := schema.Pipe[*schema.Message](2)
		sw.Send(&schema.Message{Role: schema.Assistant, Content: text}, nil)
		sw.Close()
		return provider.NewCompletionStream(sr), nil
	}
}

type testEnv struct {
	server *Server
	cache  *toolcache.Cache
	bus    *event.Bus
}

func newTestEnv(t *testing.T, steps ...func() (*provider.CompletionStream, error)) *testEnv {
	t.Helper()

	cache := toolcache.New()
	bus := event.NewBus()
	t.Cleanup(func() { bus.Close() })

	manager := mcp.NewManager("apollo", "test", cache, bus)
	t.Cleanup(manager.Close)

	runner := agent.NewRunner(&scriptedProvider{steps: steps}, manager, agent.Options{})
	sessions := session.NewService(runner, cache, bus, "You are a helpful assistant.")

	return &testEnv{
		server: New(DefaultConfig(), sessions, manager, cache, bus),
		cache:  cache,
		bus:    bus,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreateAndGetSession(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/session", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeJSON[SessionInfo](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 1, created.MessageCount)

	rec = env.do(t, http.MethodGet, "/session/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeJSON[SessionInfo](t, rec)
	assert.Equal(t, created.ID, got.ID)

	rec = env.do(t, http.MethodGet, "/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeJSON[[]SessionInfo](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
}

func TestGetSession_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/session/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeJSON[ErrorResponse](t, rec)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestGetHistory(t *testing.T) {
	env := newTestEnv(t)

	created := decodeJSON[SessionInfo](t, env.do(t, http.MethodPost, "/session", nil))

	rec := env.do(t, http.MethodGet, "/session/"+created.ID+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeJSON[[]types.Message](t, rec)
	require.Len(t, history, 1)
	assert.Equal(t, types.RoleSystem, history[0].Role)
}

func TestSendMessage(t *testing.T) {
	env := newTestEnv(t, textStep("Hello, world"))

	created := decodeJSON[SessionInfo](t, env.do(t, http.MethodPost, "/session", nil))

	rec := env.do(t, http.MethodPost, "/session/"+created.ID+"/message", sendMessageRequest{Content: "hi"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON[turnResponse](t, rec)
	assert.Equal(t, "Hello, world", resp.Content)

	history := decodeJSON[[]types.Message](t, env.do(t, http.MethodGet, "/session/"+created.ID+"/history", nil))
	require.Len(t, history, 3)
	assert.Equal(t, types.RoleAssistant, history[2].Role)
	assert.Equal(t, "Hello, world", history[2].Content)
}

func TestSendMessage_Validation(t *testing.T) {
	env := newTestEnv(t)
	created := decodeJSON[SessionInfo](t, env.do(t, http.MethodPost, "/session", nil))

	rec := env.do(t, http.MethodPost, "/session/"+created.ID+"/message", sendMessageRequest{Content: ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/session/"+created.ID+"/message", bytes.NewBufferString("{not json"))
	rec = httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/session/missing/message", sendMessageRequest{Content: "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendMessage_ProviderFailure(t *testing.T) {
	// No scripted steps: the provider fails with a permanent auth error.
	env := newTestEnv(t)
	created := decodeJSON[SessionInfo](t, env.do(t, http.MethodPost, "/session", nil))

	rec := env.do(t, http.MethodPost, "/session/"+created.ID+"/message", sendMessageRequest{Content: "hi"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decodeJSON[ErrorResponse](t, rec)
	assert.Equal(t, ErrCodeProviderError, resp.Error.Code)
}

func TestEndSession(t *testing.T) {
	env := newTestEnv(t)
	created := decodeJSON[SessionInfo](t, env.do(t, http.MethodPost, "/session", nil))

	rec := env.do(t, http.MethodDelete, "/session/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/session/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/session/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTools(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/tools", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	empty := decodeJSON[map[string][]toolcache.ToolDescriptor](t, rec)
	assert.Empty(t, empty)

	env.cache.Put("files", []toolcache.ToolDescriptor{{Name: "read_file", Description: "Read a file"}})

	rec = env.do(t, http.MethodGet, "/tools", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snapshot := decodeJSON[map[string][]toolcache.ToolDescriptor](t, rec)
	require.Contains(t, snapshot, "files")
	assert.Equal(t, "read_file", snapshot["files"][0].Name)
}

func TestMCPStatus_Empty(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/mcp", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeJSON[[]mcp.ConnectionStatus](t, rec)
	assert.Empty(t, status)
}

func TestDisconnectMCP_UnknownIsNoop(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodDelete, "/mcp/unknown", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestConnectMCP_InvalidBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/mcp/files", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
