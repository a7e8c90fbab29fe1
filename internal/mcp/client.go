package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/apollo-chat/apollo/internal/toolcache"
)

const defaultDialTimeout = 5 * time.Second

// session is the slice of an MCP client session the manager needs. The
// production implementation wraps the official SDK; tests substitute fakes.
type session interface {
	ListTools(ctx context.Context) ([]toolcache.ToolDescriptor, error)
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
	Close() error
}

// dialFunc establishes an MCP session for the given config.
type dialFunc func(ctx context.Context, cfg Config) (session, error)

// sdkDialer dials MCP servers with the official SDK client.
type sdkDialer struct {
	client *sdkmcp.Client
}

func newSDKDialer(agentName, version string) *sdkDialer {
	return &sdkDialer{
		client: sdkmcp.NewClient(&sdkmcp.Implementation{Name: agentName, Version: version}, nil),
	}
}

func (d *sdkDialer) dial(ctx context.Context, cfg Config) (session, error) {
	timeout := defaultDialTimeout
	if cfg.TimeoutMS > 0 {
		timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}

	switch cfg.Type {
	case TransportRemote:
		if cfg.URL == "" {
			return nil, fmt.Errorf("remote transport requires a URL")
		}
		httpClient := httpClientWithHeaders(cfg.Headers)

		// Streamable HTTP first, SSE as fallback, matching server-side
		// protocol evolution.
		transports := []sdkmcp.Transport{
			&sdkmcp.StreamableClientTransport{Endpoint: cfg.URL, HTTPClient: httpClient},
			&sdkmcp.SSEClientTransport{Endpoint: cfg.URL, HTTPClient: httpClient},
		}

		var lastErr error
		for _, transport := range transports {
			sess, err := d.connect(ctx, transport, timeout)
			if err != nil {
				lastErr = err
				continue
			}
			return sess, nil
		}
		return nil, lastErr

	case TransportStdio:
		if len(cfg.Command) == 0 {
			return nil, fmt.Errorf("stdio transport requires a command")
		}
		cmd := exec.Command(cfg.Command[0], cfg.Command[1:]...)
		cmd.Env = os.Environ()
		for k, v := range cfg.Environment {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		return d.connect(ctx, &sdkmcp.CommandTransport{Command: cmd}, timeout)

	default:
		return nil, fmt.Errorf("unknown transport type: %q", cfg.Type)
	}
}

func (d *sdkDialer) connect(ctx context.Context, transport sdkmcp.Transport, timeout time.Duration) (session, error) {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cs, err := d.client.Connect(dialCtx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return &sdkSession{cs: cs}, nil
}

// sdkSession adapts the SDK client session to the manager's session interface.
type sdkSession struct {
	cs *sdkmcp.ClientSession
}

func (s *sdkSession) ListTools(ctx context.Context) ([]toolcache.ToolDescriptor, error) {
	result, err := s.cs.ListTools(ctx, nil)
	if err != nil {
		return nil, err
	}

	tools := make([]toolcache.ToolDescriptor, 0, len(result.Tools))
	for _, t := range result.Tools {
		var schemaJSON []byte
		if t.InputSchema != nil {
			schemaJSON, err = json.Marshal(t.InputSchema)
			if err != nil {
				return nil, fmt.Errorf("tool %s: malformed input schema: %w", t.Name, err)
			}
		}
		tools = append(tools, toolcache.ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schemaJSON,
		})
	}
	return tools, nil
}

func (s *sdkSession) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	result, err := s.cs.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", err
	}

	text := flattenContent(result.Content)
	if result.IsError {
		return "", fmt.Errorf("tool error: %s", text)
	}
	return text, nil
}

func (s *sdkSession) Close() error {
	return s.cs.Close()
}

func flattenContent(content []sdkmcp.Content) string {
	var out string
	for _, c := range content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			out += tc.Text
		}
	}
	return out
}

func httpClientWithHeaders(headers map[string]string) *http.Client {
	client := &http.Client{}
	if len(headers) == 0 {
		return client
	}
	client.Transport = &headerRoundTripper{headers: headers, next: http.DefaultTransport}
	return client
}

type headerRoundTripper struct {
	headers map[string]string
	next    http.RoundTripper
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	for k, v := range h.headers {
		cloned.Header.Set(k, v)
	}
	return h.next.RoundTrip(cloned)
}
