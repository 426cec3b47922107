package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

// LangchainClient implements Client using langchain abstractions.
type LangchainClient struct {
	llm         llms.Model
	modelName   string
	maxTokens   int
	temperature float64
}

// LangchainConfig configures the langchain-backed client.
type LangchainConfig struct {
	APIKey      string  `json:"api_key"`
	ModelName   string  `json:"model_name"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// NewLangchainClient creates a new langchain-based LLM client.
func NewLangchainClient(ctx context.Context, config LangchainConfig) (*LangchainClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192 // Default max output tokens for Gemini
	}

	modelName := config.ModelName
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	opts := []googleai.Option{
		googleai.WithAPIKey(config.APIKey),
		googleai.WithDefaultModel(modelName),
		googleai.WithDefaultMaxTokens(maxTokens),
	}

	// Google AI (Gemini) via langchain; other backends can be added
	// behind the same Client interface.
	llm, err := googleai.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &LangchainClient{
		llm:         llm,
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: config.Temperature,
	}, nil
}

// Generate sends the role-tagged request and returns the model text.
func (c *LangchainClient) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]llms.MessageContent, 0, 2)
	if req.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))

	resp, err := c.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(c.temperature),
		llms.WithMaxTokens(c.maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("LLM call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}

	return resp.Choices[0].Content, nil
}
