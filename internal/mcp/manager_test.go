package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apollo-chat/apollo/internal/event"
	"github.com/apollo-chat/apollo/internal/toolcache"
)

type fakeSession struct {
	mu       sync.Mutex
	tools    []toolcache.ToolDescriptor
	listErr  error
	callResp string
	callErr  error
	calls    []string
	closed   bool
}

func (f *fakeSession) ListTools(ctx context.Context) ([]toolcache.ToolDescriptor, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.tools, nil
}

func (f *fakeSession) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
	return f.callResp, f.callErr
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func newTestManager(dial dialFunc) (*Manager, *toolcache.Cache, *event.Bus) {
	cache := toolcache.New()
	bus := event.NewBus()
	m := NewManager("apollo", "test", cache, bus)
	m.dial = dial
	return m, cache, bus
}

func dialTo(sess session, err error) dialFunc {
	return func(context.Context, Config) (session, error) { return sess, err }
}

func tools(names ...string) []toolcache.ToolDescriptor {
	out := make([]toolcache.ToolDescriptor, len(names))
	for i, n := range names {
		out[i] = toolcache.ToolDescriptor{Name: n, InputSchema: json.RawMessage(`{}`)}
	}
	return out
}

func TestManager_ConnectPopulatesCache(t *testing.T) {
	sess := &fakeSession{tools: tools("search", "fetch")}
	m, cache, bus := newTestManager(dialTo(sess, nil))
	defer bus.Close()

	notified := make(chan event.Event, 1)
	bus.Subscribe(event.MCPConnected, func(e event.Event) { notified <- e })

	require.NoError(t, m.Connect(context.Background(), "web", Config{Type: TransportRemote, URL: "https://x"}))

	snap := cache.Snapshot()
	require.Contains(t, snap, "web")
	assert.Len(t, snap["web"], 2)

	statuses := m.Status()
	require.Len(t, statuses, 1)
	assert.Equal(t, StatusConnected, statuses[0].Status)
	assert.Equal(t, 2, statuses[0].ToolCount)

	select {
	case e := <-notified:
		data := e.Data.(event.MCPConnectedData)
		assert.Equal(t, "web", data.Name)
		assert.Equal(t, 2, data.ToolCount)
	case <-time.After(time.Second):
		t.Fatal("no connected notification")
	}
}

func TestManager_ConnectFailureLeavesCacheUntouched(t *testing.T) {
	m, cache, bus := newTestManager(dialTo(nil, errors.New("unreachable")))
	defer bus.Close()

	notified := make(chan event.Event, 1)
	bus.Subscribe(event.MCPConnectError, func(e event.Event) { notified <- e })

	err := m.Connect(context.Background(), "web", Config{Type: TransportRemote, URL: "https://x"})
	require.Error(t, err)

	var connectErr *ProviderConnectError
	require.ErrorAs(t, err, &connectErr)
	assert.Equal(t, "web", connectErr.Name)

	assert.Empty(t, cache.Snapshot())

	statuses := m.Status()
	require.Len(t, statuses, 1)
	assert.Equal(t, StatusFailed, statuses[0].Status)
	assert.Contains(t, statuses[0].Error, "unreachable")

	select {
	case e := <-notified:
		assert.Contains(t, e.Data.(event.MCPConnectErrorData).Error, "unreachable")
	case <-time.After(time.Second):
		t.Fatal("no error notification")
	}
}

func TestManager_ListToolsFailureClosesSession(t *testing.T) {
	sess := &fakeSession{listErr: errors.New("malformed tool list")}
	m, cache, bus := newTestManager(dialTo(sess, nil))
	defer bus.Close()

	err := m.Connect(context.Background(), "web", Config{})
	require.Error(t, err)
	assert.True(t, sess.closed)
	assert.Empty(t, cache.Snapshot())
}

func TestManager_FailedConnectAllowsRetry(t *testing.T) {
	attempts := 0
	good := &fakeSession{tools: tools("a")}
	m, cache, bus := newTestManager(func(context.Context, Config) (session, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("unreachable")
		}
		return good, nil
	})
	defer bus.Close()

	require.Error(t, m.Connect(context.Background(), "web", Config{}))
	require.NoError(t, m.Connect(context.Background(), "web", Config{}))

	snap := cache.Snapshot()
	require.Contains(t, snap, "web")
	assert.Equal(t, "a", snap["web"][0].Name)
}

func TestManager_ReconnectOverwrites(t *testing.T) {
	first := &fakeSession{tools: tools("old")}
	second := &fakeSession{tools: tools("new1", "new2")}
	sessions := []session{first, second}
	i := 0
	m, cache, bus := newTestManager(func(context.Context, Config) (session, error) {
		s := sessions[i]
		i++
		return s, nil
	})
	defer bus.Close()

	require.NoError(t, m.Connect(context.Background(), "web", Config{}))
	require.NoError(t, m.Connect(context.Background(), "web", Config{}))

	snap := cache.Snapshot()
	require.Len(t, snap, 1)
	assert.Len(t, snap["web"], 2)
	assert.True(t, first.closed)
	assert.Len(t, m.Status(), 1)
}

func TestManager_DisconnectEvictsCache(t *testing.T) {
	sess := &fakeSession{tools: tools("a")}
	m, cache, bus := newTestManager(dialTo(sess, nil))
	defer bus.Close()

	notified := make(chan event.Event, 1)
	bus.Subscribe(event.MCPDisconnected, func(e event.Event) { notified <- e })

	require.NoError(t, m.Connect(context.Background(), "web", Config{}))
	m.Disconnect("web")

	assert.Empty(t, cache.Snapshot())
	assert.True(t, sess.closed)
	assert.Empty(t, m.Status())

	select {
	case e := <-notified:
		assert.Equal(t, "web", e.Data.(event.MCPDisconnectedData).Name)
	case <-time.After(time.Second):
		t.Fatal("no disconnected notification")
	}
}

func TestManager_DisconnectNeverConnectedIsSilent(t *testing.T) {
	m, cache, bus := newTestManager(dialTo(nil, errors.New("unreachable")))
	defer bus.Close()

	notified := make(chan event.Event, 1)
	bus.Subscribe(event.MCPDisconnected, func(e event.Event) { notified <- e })

	require.Error(t, m.Connect(context.Background(), "web", Config{}))
	m.Disconnect("web")

	assert.Empty(t, m.Status())
	assert.Empty(t, cache.Snapshot())

	select {
	case <-notified:
		t.Fatal("unexpected disconnected notification for a failed connection")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestManager_DisconnectUnknownIsNoop(t *testing.T) {
	m, cache, bus := newTestManager(dialTo(nil, errors.New("never dialed")))
	defer bus.Close()

	m.Disconnect("ghost")
	assert.Empty(t, cache.Snapshot())
	assert.Empty(t, m.Status())
}

func TestManager_FailureIsolatedPerConnection(t *testing.T) {
	m, cache, bus := newTestManager(func(_ context.Context, cfg Config) (session, error) {
		if cfg.URL == "https://bad" {
			return nil, errors.New("unreachable")
		}
		return &fakeSession{tools: tools("ok")}, nil
	})
	defer bus.Close()

	require.NoError(t, m.Connect(context.Background(), "good", Config{Type: TransportRemote, URL: "https://good"}))
	require.Error(t, m.Connect(context.Background(), "bad", Config{Type: TransportRemote, URL: "https://bad"}))

	snap := cache.Snapshot()
	assert.Contains(t, snap, "good")
	assert.NotContains(t, snap, "bad")
}

func TestManager_Execute(t *testing.T) {
	sess := &fakeSession{tools: tools("do-thing"), callResp: "done"}
	m, _, bus := newTestManager(dialTo(sess, nil))
	defer bus.Close()

	require.NoError(t, m.Connect(context.Background(), "my server", Config{}))

	// Provider and tool names are sanitized into the prefixed identifier.
	out, err := m.Execute(context.Background(), "my_server_do_thing", json.RawMessage(`{"x":1}`))
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	// The original (unsanitized) tool name reaches the provider.
	assert.Equal(t, []string{"do-thing"}, sess.calls)

	_, err = m.Execute(context.Background(), "unknown_tool", nil)
	assert.Error(t, err)
}

func TestManager_ConcurrentConnectDisconnect(t *testing.T) {
	m, cache, bus := newTestManager(func(_ context.Context, cfg Config) (session, error) {
		return &fakeSession{tools: tools("t")}, nil
	})
	defer bus.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("p%d", i)
			for j := 0; j < 20; j++ {
				_ = m.Connect(context.Background(), name, Config{})
				m.Disconnect(name)
			}
		}(i)
	}
	wg.Wait()

	assert.Empty(t, cache.Snapshot())
	assert.Empty(t, m.Status())
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "my_server", SanitizeName("my server"))
	assert.Equal(t, "a_b_c", SanitizeName("a-b.c"))
	assert.Equal(t, "plain123", SanitizeName("plain123"))
}
