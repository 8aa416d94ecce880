package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/kvant/advisor/internal/models"
)

// CompleterConfig represents the configuration for the completion model.
type CompleterConfig struct {
	Provider    string // "ollama" or "openai"
	BaseURL     string
	APIToken    string
	Model       string
	MaxTokens   int
	Temperature float64
}

// ModelCompleter performs a single completion call against the configured
// model. Retry policy lives in the generation client, not here.
type ModelCompleter struct {
	config CompleterConfig
	llm    llms.Model
}

func NewCompleter(config CompleterConfig) (*ModelCompleter, error) {
	if config.Model == "" {
		config.Model = "mistral"
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 800
	}

	var model llms.Model
	var err error

	switch config.Provider {
	case "openai":
		opts := []openai.Option{
			openai.WithModel(config.Model),
			openai.WithToken(config.APIToken),
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		model, err = openai.New(opts...)
	default:
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		model, err = ollama.New(
			ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &ModelCompleter{
		config: config,
		llm:    model,
	}, nil
}

// Complete sends the prompt and returns the completion text. An empty
// completion is an error; a truncated answer is never passed off as
// complete.
func (c *ModelCompleter) Complete(ctx context.Context, prompt models.Prompt) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, prompt.System),
		llms.TextParts(llms.ChatMessageTypeHuman, RenderUser(prompt)),
	}

	response, err := c.llm.GenerateContent(ctx, content,
		llms.WithMaxTokens(c.config.MaxTokens),
		llms.WithTemperature(c.config.Temperature))
	if err != nil {
		return "", fmt.Errorf("completion error: %w", err)
	}

	if response == nil || len(response.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	answer := strings.TrimSpace(response.Choices[0].Content)
	if answer == "" {
		return "", fmt.Errorf("empty completion text")
	}
	return answer, nil
}

// Model returns the configured model name.
func (c *ModelCompleter) Model() string {
	return c.config.Model
}
