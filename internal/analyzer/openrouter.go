package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Capeo/SupplAI/internal/utils"
)

const (
	DefaultOpenRouterURL   = "https://openrouter.ai/api/v1"
	DefaultOpenRouterModel = "openai/gpt-4o-mini"
)

type openRouterRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature"`
}

type openRouterResponse struct {
	Choices []openRouterChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

type openRouterChoice struct {
	Message Message `json:"message"`
}

// OpenRouterGenerator talks to an OpenAI-compatible chat completions API.
type OpenRouterGenerator struct {
	apiKey  string
	model   string
	baseURL string
	logger  *utils.Logger
	client  *http.Client
}

func NewOpenRouterGenerator(apiKey, model, baseURL string, timeout time.Duration, logger *utils.Logger) *OpenRouterGenerator {
	if model = strings.TrimSpace(model); model == "" {
		model = DefaultOpenRouterModel
	}
	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL == "" {
		baseURL = DefaultOpenRouterURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &OpenRouterGenerator{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		logger:  logger,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (g *OpenRouterGenerator) Model() string {
	return g.model
}

func (g *OpenRouterGenerator) Generate(ctx context.Context, messages []Message, opts Options) (string, error) {
	reqBody := openRouterRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: opts.Temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Title", "SupplAI")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		g.logger.Error("OpenRouter API error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", utils.TruncateForLog(string(body), defaultMaxLogLength)),
		)
		return "", fmt.Errorf("OpenRouter API returned status %d", resp.StatusCode)
	}

	var openRouterResp openRouterResponse
	if err := json.Unmarshal(body, &openRouterResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if openRouterResp.Error != nil {
		return "", fmt.Errorf("OpenRouter API error: %s", openRouterResp.Error.Message)
	}

	if len(openRouterResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	// An empty completion is a valid answer; the stages decide what it means.
	return strings.TrimSpace(openRouterResp.Choices[0].Message.Content), nil
}
