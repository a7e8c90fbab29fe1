// Package config loads process configuration from .env files, JSONC config
// files and environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
)

// DefaultSystemPrompt seeds every new session's history.
const DefaultSystemPrompt = "You are a helpful assistant."

// DefaultAgentName is the identity the agent announces to tool providers.
const DefaultAgentName = "apollo"

// Config is the process configuration. It is loaded once at start and
// treated as read-only afterwards.
type Config struct {
	// Model is the model identity as "provider/model", e.g.
	// "azure/gpt-4o". A bare model name defaults to the azure provider.
	Model string `json:"model,omitempty"`

	// SystemPrompt overrides the default session seed instruction.
	SystemPrompt string `json:"systemPrompt,omitempty"`

	Provider   map[string]ProviderConfig `json:"provider,omitempty"`
	Credential CredentialConfig          `json:"credential,omitempty"`
	MCP        map[string]MCPConfig      `json:"mcp,omitempty"`

	LogLevel string `json:"logLevel,omitempty"`
	Pretty   bool   `json:"pretty,omitempty"`

	// Listen is the serve-mode bind address.
	Listen string `json:"listen,omitempty"`
}

// ProviderConfig configures one model provider.
type ProviderConfig struct {
	APIKey     string `json:"apiKey,omitempty"`
	Endpoint   string `json:"endpoint,omitempty"`
	APIVersion string `json:"apiVersion,omitempty"`
	Model      string `json:"model,omitempty"`
	MaxTokens  int    `json:"maxTokens,omitempty"`
}

// CredentialConfig configures the bearer-token source used when a provider
// has no API key. TenantID expands to the Azure AD v2 token endpoint when
// TokenURL is not set explicitly.
type CredentialConfig struct {
	TokenURL     string   `json:"tokenURL,omitempty"`
	TenantID     string   `json:"tenantID,omitempty"`
	ClientID     string   `json:"clientID,omitempty"`
	ClientSecret string   `json:"clientSecret,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
}

// MCPConfig configures one tool-provider connection.
type MCPConfig struct {
	Enabled     *bool             `json:"enabled,omitempty"`
	Type        string            `json:"type,omitempty"` // "remote" or "stdio"
	URL         string            `json:"url,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Command     []string          `json:"command,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	TimeoutMS   int               `json:"timeout,omitempty"`
}

// IsEnabled reports whether the connection should be dialed at startup.
// Connections are enabled unless explicitly disabled.
func (m MCPConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// Load reads configuration. Sources, lowest priority first: defaults, the
// JSONC config file (path or ./apollo.jsonc / ~/.config/apollo/apollo.jsonc),
// then environment variables. A .env file in the working directory is loaded
// into the environment first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Provider:     make(map[string]ProviderConfig),
		MCP:          make(map[string]MCPConfig),
		SystemPrompt: DefaultSystemPrompt,
		LogLevel:     "INFO",
		Listen:       "127.0.0.1:7433",
	}

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	} else {
		for _, candidate := range defaultPaths() {
			if err := loadFile(candidate, cfg); err == nil {
				break
			}
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func defaultPaths() []string {
	paths := []string{"apollo.jsonc", "apollo.json"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "apollo", "apollo.jsonc"),
			filepath.Join(home, ".config", "apollo", "apollo.json"),
		)
	}
	return paths
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	data = jsonc.ToJSON(data)
	data = interpolate(data)

	var fileCfg Config
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return err
	}

	merge(cfg, &fileCfg)
	return nil
}

var envPattern = regexp.MustCompile(`\{env:([^}]+)\}`)

// interpolate expands {env:VAR} placeholders inside the raw config. Values
// are JSON-escaped so quotes and backslashes in them survive substitution
// into the surrounding string literal.
func interpolate(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envPattern.FindSubmatch(match)[1]
		escaped, _ := json.Marshal(os.Getenv(string(name)))
		return escaped[1 : len(escaped)-1]
	})
}

func merge(target, source *Config) {
	if source.Model != "" {
		target.Model = source.Model
	}
	if source.SystemPrompt != "" {
		target.SystemPrompt = source.SystemPrompt
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
	}
	if source.Pretty {
		target.Pretty = true
	}
	if source.Listen != "" {
		target.Listen = source.Listen
	}
	if source.Credential.TokenURL != "" || source.Credential.TenantID != "" ||
		source.Credential.ClientID != "" || source.Credential.ClientSecret != "" ||
		len(source.Credential.Scopes) > 0 {
		target.Credential = source.Credential
	}
	for name, p := range source.Provider {
		target.Provider[name] = p
	}
	for name, m := range source.MCP {
		target.MCP[name] = m
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("APOLLO_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("APOLLO_SYSTEM_PROMPT"); v != "" {
		cfg.SystemPrompt = v
	}
	if v := os.Getenv("APOLLO_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("APOLLO_LISTEN"); v != "" {
		cfg.Listen = v
	}

	azure := cfg.Provider["azure"]
	if v := os.Getenv("AZURE_OPENAI_ENDPOINT"); v != "" {
		azure.Endpoint = v
	}
	if v := os.Getenv("AZURE_OPENAI_DEPLOYMENT"); v != "" {
		azure.Model = v
	}
	if v := os.Getenv("AZURE_OPENAI_API_VERSION"); v != "" {
		azure.APIVersion = v
	}
	if v := os.Getenv("AZURE_OPENAI_API_KEY"); v != "" && azure.APIKey == "" {
		azure.APIKey = v
	}
	if azure != (ProviderConfig{}) {
		cfg.Provider["azure"] = azure
	}

	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		anthropic := cfg.Provider["anthropic"]
		if anthropic.APIKey == "" {
			anthropic.APIKey = v
		}
		cfg.Provider["anthropic"] = anthropic
	}

	// Azure AD service-principal credentials, as set for EnvironmentCredential.
	if v := os.Getenv("AZURE_TENANT_ID"); v != "" && cfg.Credential.TenantID == "" {
		cfg.Credential.TenantID = v
	}
	if v := os.Getenv("AZURE_CLIENT_ID"); v != "" && cfg.Credential.ClientID == "" {
		cfg.Credential.ClientID = v
	}
	if v := os.Getenv("AZURE_CLIENT_SECRET"); v != "" && cfg.Credential.ClientSecret == "" {
		cfg.Credential.ClientSecret = v
	}
}

// SplitModel splits the configured model identity into provider ID and model
// ID. A bare model name belongs to the azure provider.
func (c *Config) SplitModel() (providerID, modelID string) {
	if c.Model == "" {
		return "azure", ""
	}
	if i := strings.IndexByte(c.Model, '/'); i >= 0 {
		return c.Model[:i], c.Model[i+1:]
	}
	return "azure", c.Model
}

// ResolveTokenURL returns the credential token endpoint, expanding TenantID
// into the Azure AD v2 endpoint when no explicit URL is set.
func (c CredentialConfig) ResolveTokenURL() string {
	if c.TokenURL != "" {
		return c.TokenURL
	}
	if c.TenantID != "" {
		return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", c.TenantID)
	}
	return ""
}

// ResolveScopes returns the credential scopes, defaulting to the Cognitive
// Services resource scope.
func (c CredentialConfig) ResolveScopes() []string {
	if len(c.Scopes) > 0 {
		return c.Scopes
	}
	return []string{"https://cognitiveservices.azure.com/.default"}
}
