package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/apollo-chat/apollo/internal/event"
	"github.com/apollo-chat/apollo/internal/logging"
	"github.com/apollo-chat/apollo/internal/toolcache"
)

// ProviderConnectError reports a failed connect or list_tools attempt for a
// single named connection. It is recoverable and isolated: other connections
// and the session are unaffected.
type ProviderConnectError struct {
	Name string
	Err  error
}

func (e *ProviderConnectError) Error() string {
	return fmt.Sprintf("mcp %s: %v", e.Name, e.Err)
}

func (e *ProviderConnectError) Unwrap() error { return e.Err }

// connection is the manager's record of one named provider.
type connection struct {
	name    string
	cfg     Config
	sess    session
	status  Status
	lastErr string
	tools   int
}

// Manager owns the set of attached tool-provider connections. It populates
// and evicts the shared tool capability cache and publishes human-readable
// status notifications on the bus. Safe for concurrent use from multiple
// sessions.
type Manager struct {
	mu    sync.Mutex
	conns map[string]*connection

	cache *toolcache.Cache
	bus   *event.Bus
	dial  dialFunc
}

// NewManager creates a connection manager that maintains cache and publishes
// notifications on bus.
func NewManager(agentName, version string, cache *toolcache.Cache, bus *event.Bus) *Manager {
	return &Manager{
		conns: make(map[string]*connection),
		cache: cache,
		bus:   bus,
		dial:  newSDKDialer(agentName, version).dial,
	}
}

// Connect dials the named provider and lists its tools. On success the tool
// list is cached and a "connected" notification is published. On failure the
// cache is left untouched for that name, an error notification is published
// and the error is returned; the failure never affects other connections.
// Connecting a name that is already connected replaces the old session.
func (m *Manager) Connect(ctx context.Context, name string, cfg Config) error {
	m.mu.Lock()
	var replaced session
	if existing, ok := m.conns[name]; ok {
		if existing.status == StatusConnecting {
			m.mu.Unlock()
			return &ProviderConnectError{Name: name, Err: fmt.Errorf("connect already in progress")}
		}
		// Repeated connect overwrites: retire the old session and its
		// cache entry before dialing anew.
		replaced = existing.sess
		m.cache.Remove(name)
	}
	m.conns[name] = &connection{name: name, cfg: cfg, status: StatusConnecting}
	m.mu.Unlock()

	if replaced != nil {
		replaced.Close()
	}

	// Dial outside the lock so a hanging provider never blocks the manager.
	sess, err := m.dial(ctx, cfg)
	if err != nil {
		m.recordFailure(name, err)
		return &ProviderConnectError{Name: name, Err: err}
	}

	tools, err := sess.ListTools(ctx)
	if err != nil {
		sess.Close()
		m.recordFailure(name, err)
		return &ProviderConnectError{Name: name, Err: fmt.Errorf("list tools: %w", err)}
	}

	m.mu.Lock()
	conn, ok := m.conns[name]
	if !ok || conn.status != StatusConnecting {
		// Disconnected (or replaced) while we were dialing.
		m.mu.Unlock()
		sess.Close()
		return nil
	}
	conn.sess = sess
	conn.status = StatusConnected
	conn.lastErr = ""
	conn.tools = len(tools)
	m.cache.Put(name, tools)
	m.mu.Unlock()

	logging.Info().Str("name", name).Int("tools", len(tools)).Msg("mcp server connected")
	m.bus.Publish(event.Event{
		Type: event.MCPConnected,
		Data: event.MCPConnectedData{Name: name, ToolCount: len(tools)},
	})
	return nil
}

// ConnectAsync runs Connect on its own goroutine so a slow dial never blocks
// message turns. Failures surface through notifications and Status.
func (m *Manager) ConnectAsync(ctx context.Context, name string, cfg Config) {
	go func() {
		_ = m.Connect(ctx, name, cfg)
	}()
}

func (m *Manager) recordFailure(name string, err error) {
	m.mu.Lock()
	if conn, ok := m.conns[name]; ok && conn.status == StatusConnecting {
		conn.status = StatusFailed
		conn.lastErr = err.Error()
	}
	m.mu.Unlock()

	logging.Warn().Str("name", name).Err(err).Msg("mcp server connect failed")
	m.bus.Publish(event.Event{
		Type: event.MCPConnectError,
		Data: event.MCPConnectErrorData{Name: name, Error: err.Error()},
	})
}

// Disconnect removes the named connection, evicts its cache entry and
// publishes a "disconnected" notification. Disconnecting a name that never
// reached Connected is a silent no-op: the record is dropped but no
// notification fires.
func (m *Manager) Disconnect(name string) {
	m.mu.Lock()
	conn, ok := m.conns[name]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.conns, name)
	m.cache.Remove(name)
	m.mu.Unlock()

	if conn.sess != nil {
		if err := conn.sess.Close(); err != nil {
			logging.Debug().Str("name", name).Err(err).Msg("mcp session close")
		}
	}

	if conn.status != StatusConnected {
		return
	}

	logging.Info().Str("name", name).Msg("mcp server disconnected")
	m.bus.Publish(event.Event{
		Type: event.MCPDisconnected,
		Data: event.MCPDisconnectedData{Name: name},
	})
}

// Execute invokes a prefixed tool ("<provider>_<tool>") on the owning
// connection and returns the textual result.
func (m *Manager) Execute(ctx context.Context, toolName string, args json.RawMessage) (string, error) {
	m.mu.Lock()
	var target session
	var original string
	for name, conn := range m.conns {
		if conn.status != StatusConnected {
			continue
		}
		prefix := SanitizeName(name) + "_"
		if strings.HasPrefix(toolName, prefix) {
			target = conn.sess
			original = unprefix(toolName, prefix, m.cache, name)
			break
		}
	}
	m.mu.Unlock()

	if target == nil {
		return "", fmt.Errorf("no provider found for tool: %s", toolName)
	}

	var argsMap map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &argsMap); err != nil {
			return "", fmt.Errorf("parse arguments: %w", err)
		}
	}

	return target.CallTool(ctx, original, argsMap)
}

// unprefix maps the sanitized prefixed name back to the provider's original
// tool name via the cached descriptors.
func unprefix(toolName, prefix string, cache *toolcache.Cache, provider string) string {
	stripped := strings.TrimPrefix(toolName, prefix)
	if tools, ok := cache.Get(provider); ok {
		for _, t := range tools {
			if SanitizeName(t.Name) == stripped {
				return t.Name
			}
		}
	}
	return stripped
}

// Status returns a point-in-time view of every known connection, sorted by
// name.
func (m *Manager) Status() []ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	statuses := make([]ConnectionStatus, 0, len(m.conns))
	for _, conn := range m.conns {
		statuses = append(statuses, ConnectionStatus{
			Name:      conn.name,
			Status:    conn.status,
			ToolCount: conn.tools,
			Error:     conn.lastErr,
		})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

// Close disconnects every connection.
func (m *Manager) Close() {
	m.mu.Lock()
	names := make([]string, 0, len(m.conns))
	for name := range m.conns {
		names = append(names, name)
	}
	m.mu.Unlock()

	for _, name := range names {
		m.Disconnect(name)
	}
}

// SanitizeName replaces non-alphanumeric characters with underscores so
// provider and tool names compose into valid model tool identifiers.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
