package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/taskbuddy/backend/internal/config"
	"github.com/taskbuddy/backend/internal/metrics"
)

const defaultTimeout = 30 * time.Second

// OpenRouterProvider talks to OpenRouter's OpenAI-compatible chat API.
type OpenRouterProvider struct {
	cfg     *config.Manager
	client  *openai.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewOpenRouter builds a provider from the current agent config. Model and
// generation settings are re-read from the config manager on every call so
// hot reloads take effect without reconnecting.
func NewOpenRouter(cfg *config.Manager, logger *zap.Logger) *OpenRouterProvider {
	agent := cfg.Agent()

	clientConfig := openai.DefaultConfig(agent.APIKey)
	if agent.BaseURL != "" {
		clientConfig.BaseURL = agent.BaseURL
	}

	rpm := agent.RequestsPerMin
	if rpm <= 0 {
		rpm = 60
	}

	return &OpenRouterProvider{
		cfg:     cfg,
		client:  openai.NewClientWithConfig(clientConfig),
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm),
		logger:  logger,
	}
}

// Complete implements Provider.
func (p *OpenRouterProvider) Complete(ctx context.Context, systemPrompt string, history []Turn, userMessage string) (string, error) {
	agent := p.cfg.Agent()
	if agent.APIKey == "" {
		return "", ErrNotConfigured
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, turn := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userMessage,
	})

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       agent.Model,
		Messages:    msgs,
		Temperature: agent.Temperature,
		MaxTokens:   agent.MaxTokens,
	})
	metrics.ProviderCallDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ProviderCalls.WithLabelValues("error").Inc()
		p.logger.Warn("Completion call failed",
			zap.String("model", agent.Model),
			zap.Error(err))
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		metrics.ProviderCalls.WithLabelValues("empty").Inc()
		return "", fmt.Errorf("chat completion: no choices returned")
	}

	metrics.ProviderCalls.WithLabelValues("ok").Inc()
	return resp.Choices[0].Message.Content, nil
}
