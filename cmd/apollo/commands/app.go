package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/apollo-chat/apollo/internal/agent"
	"github.com/apollo-chat/apollo/internal/config"
	"github.com/apollo-chat/apollo/internal/event"
	"github.com/apollo-chat/apollo/internal/logging"
	"github.com/apollo-chat/apollo/internal/mcp"
	"github.com/apollo-chat/apollo/internal/provider"
	"github.com/apollo-chat/apollo/internal/session"
	"github.com/apollo-chat/apollo/internal/toolcache"
)

// app wires the collaborators a command needs: configuration, notification
// bus, tool cache, connection manager and session service.
type app struct {
	cfg      *config.Config
	bus      *event.Bus
	cache    *toolcache.Cache
	manager  *mcp.Manager
	registry *provider.Registry
	sessions *session.Service
}

// newApp loads configuration and builds the full collaborator graph. model
// overrides the configured model identity when non-empty.
func newApp(ctx context.Context, model string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if model != "" {
		cfg.Model = model
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	logging.Init(logging.Config{
		Level:  logging.ParseLevel(level),
		Output: os.Stderr,
		Pretty: prettyLogs || cfg.Pretty,
	})

	bus := event.NewBus()
	cache := toolcache.New()
	manager := mcp.NewManager(config.DefaultAgentName, Version, cache, bus)

	registry, err := provider.Initialize(ctx, cfg)
	if err != nil {
		bus.Close()
		return nil, err
	}

	providerID, modelID := cfg.SplitModel()
	p, err := registry.Get(providerID)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("no usable provider %q; configure provider.%s or set APOLLO_MODEL", providerID, providerID)
	}

	runner := agent.NewRunner(p, manager, agent.Options{Model: modelID})

	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = config.DefaultSystemPrompt
	}

	return &app{
		cfg:      cfg,
		bus:      bus,
		cache:    cache,
		manager:  manager,
		registry: registry,
		sessions: session.NewService(runner, cache, bus, prompt),
	}, nil
}

// connectProviders dials every enabled tool provider from configuration
// without blocking startup. Failures surface as bus notifications.
func (a *app) connectProviders(ctx context.Context) {
	for name, mc := range a.cfg.MCP {
		if !mc.IsEnabled() {
			continue
		}
		a.manager.ConnectAsync(ctx, name, mcp.Config{
			Type:        mcp.TransportType(mc.Type),
			URL:         mc.URL,
			Headers:     mc.Headers,
			Command:     mc.Command,
			Environment: mc.Environment,
			TimeoutMS:   mc.TimeoutMS,
		})
	}
}

func (a *app) close() {
	a.manager.Close()
	a.bus.Close()
}
