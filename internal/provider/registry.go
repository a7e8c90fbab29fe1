package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/apollo-chat/apollo/internal/auth"
	"github.com/apollo-chat/apollo/internal/config"
)

// Registry holds the configured providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
}

// Get retrieves a provider by ID.
func (r *Registry) Get(id string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", id)
	}
	return p, nil
}

// List returns all providers sorted by ID.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Initialize builds a registry from configuration. Providers that are not
// configured are skipped; configuring none is an error only at invocation
// time, not here.
func Initialize(ctx context.Context, cfg *config.Config) (*Registry, error) {
	registry := NewRegistry()

	if azure, ok := cfg.Provider["azure"]; ok && (azure.Endpoint != "" || azure.Model != "") {
		azureCfg := &AzureConfig{
			Endpoint:   azure.Endpoint,
			Deployment: azure.Model,
			APIVersion: azure.APIVersion,
			APIKey:     azure.APIKey,
			MaxTokens:  azure.MaxTokens,
		}
		if azureCfg.APIKey == "" {
			tokens, err := auth.NewClientCredentials(ctx, auth.ClientCredentialsConfig{
				TokenURL:     cfg.Credential.ResolveTokenURL(),
				ClientID:     cfg.Credential.ClientID,
				ClientSecret: cfg.Credential.ClientSecret,
				Scopes:       cfg.Credential.ResolveScopes(),
			})
			if err != nil {
				return nil, fmt.Errorf("azure credentials: %w", err)
			}
			azureCfg.Tokens = tokens
		}

		p, err := NewAzureProvider(ctx, azureCfg)
		if err != nil {
			return nil, err
		}
		registry.Register(p)
	}

	if anthropic, ok := cfg.Provider["anthropic"]; ok && anthropic.APIKey != "" {
		p, err := NewAnthropicProvider(ctx, &AnthropicConfig{
			APIKey:    anthropic.APIKey,
			BaseURL:   anthropic.Endpoint,
			Model:     anthropic.Model,
			MaxTokens: anthropic.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		registry.Register(p)
	}

	return registry, nil
}
