package provider

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/apollo-chat/apollo/internal/auth"
)

const defaultAzureAPIVersion = "2025-03-01-preview"

// AzureConfig configures the Azure OpenAI provider.
type AzureConfig struct {
	// Endpoint is the Azure OpenAI resource endpoint.
	Endpoint string
	// Deployment is the model deployment identity.
	Deployment string
	// APIVersion defaults to defaultAzureAPIVersion.
	APIVersion string
	// APIKey authenticates with the api-key scheme. When empty, Tokens
	// must be set and requests carry an AAD bearer credential instead.
	APIKey    string
	Tokens    auth.TokenProvider
	MaxTokens int
}

// AzureProvider serves completions from an Azure OpenAI deployment.
type AzureProvider struct {
	chatModel model.ToolCallingChatModel
	cfg       *AzureConfig
}

// NewAzureProvider creates the Azure OpenAI provider. Bearer credentials are
// injected per request through the token provider's transport, so refresh is
// transparent to this layer.
func NewAzureProvider(ctx context.Context, cfg *AzureConfig) (*AzureProvider, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("azure endpoint not configured")
	}
	if cfg.Deployment == "" {
		return nil, fmt.Errorf("azure deployment not configured")
	}

	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = defaultAzureAPIVersion
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	modelCfg := &openai.ChatModelConfig{
		ByAzure:             true,
		BaseURL:             cfg.Endpoint,
		APIVersion:          apiVersion,
		Model:               cfg.Deployment,
		MaxCompletionTokens: &maxTokens,
	}

	switch {
	case cfg.APIKey != "":
		modelCfg.APIKey = cfg.APIKey
	case cfg.Tokens != nil:
		// A placeholder key keeps the client constructor satisfied; the
		// transport overwrites the Authorization header on every request.
		modelCfg.APIKey = "aad"
		modelCfg.HTTPClient = &http.Client{Transport: auth.Transport(cfg.Tokens, nil)}
	default:
		return nil, fmt.Errorf("azure provider requires an API key or token provider")
	}

	chatModel, err := openai.NewChatModel(ctx, modelCfg)
	if err != nil {
		return nil, fmt.Errorf("create azure chat model: %w", err)
	}

	return &AzureProvider{chatModel: chatModel, cfg: cfg}, nil
}

func (p *AzureProvider) ID() string { return "azure" }

func (p *AzureProvider) Name() string { return "Azure OpenAI" }

// CreateCompletion starts a streaming completion against the deployment.
func (p *AzureProvider) CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error) {
	chatModel := p.chatModel
	if len(req.Tools) > 0 {
		var err error
		chatModel, err = chatModel.WithTools(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("bind tools: %w", err)
		}
	}

	var opts []model.Option
	if req.MaxTokens > 0 {
		opts = append(opts, openai.WithMaxCompletionTokens(req.MaxTokens))
	}
	if req.Temperature > 0 {
		opts = append(opts, model.WithTemperature(float32(req.Temperature)))
	}

	stream, err := chatModel.Stream(ctx, req.Messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}

	return NewCompletionStream(stream), nil
}
