package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wuwenbin0122/docchat/internal/models"
)

const (
	defaultBaseURL           = "https://openai.qiniu.com/v1"
	defaultModel             = "doubao-1.5-vision-pro"
	defaultSummaryThreshold  = 8
	defaultRecentMessageKeep = 4
	maxSummaryRuneLength     = 120

	defaultSystemPrompt = "You are a helpful assistant answering questions about the documents ingested for this chat. " +
		"Answer concisely, use short paragraphs or bullet points, and say so when you are unsure."
)

// ErrEmptyReply is returned when the endpoint answers without any choice.
var ErrEmptyReply = errors.New("assistant: completion contained no choices")

// CompletionConfig configures a CompletionReplier. Zero values pick defaults;
// a zero RequestsPerSec disables throttling.
type CompletionConfig struct {
	BaseURL          string
	APIKey           string
	Model            string
	SystemPrompt     string
	RequestsPerSec   float64
	Burst            int
	Timeout          time.Duration
	SummaryThreshold int
	RecentKeep       int
}

// CompletionReplier asks an OpenAI-compatible chat completions endpoint.
type CompletionReplier struct {
	baseURL      string
	apiKey       string
	model        string
	systemPrompt string
	threshold    int
	recentKeep   int
	limiter      *rate.Limiter
	client       httpDoer
	logger       *zap.SugaredLogger
}

var _ Replier = (*CompletionReplier)(nil)

func NewCompletionReplier(cfg CompletionConfig, logger *zap.SugaredLogger) *CompletionReplier {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	prompt := strings.TrimSpace(cfg.SystemPrompt)
	if prompt == "" {
		prompt = defaultSystemPrompt
	}

	threshold := cfg.SummaryThreshold
	if threshold <= 0 {
		threshold = defaultSummaryThreshold
	}
	keep := cfg.RecentKeep
	if keep <= 0 {
		keep = defaultRecentMessageKeep
	}
	if keep > threshold {
		keep = threshold
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), burst)
	}

	return &CompletionReplier{
		baseURL:      base,
		apiKey:       strings.TrimSpace(cfg.APIKey),
		model:        model,
		systemPrompt: prompt,
		threshold:    threshold,
		recentKeep:   keep,
		limiter:      limiter,
		client:       newHTTPClient(cfg.Timeout),
		logger:       logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type completionChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type completionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type completionResponse struct {
	ID      string             `json:"id"`
	Choices []completionChoice `json:"choices"`
	Usage   *completionUsage   `json:"usage"`
	Error   *upstreamError     `json:"error,omitempty"`
}

func (c *CompletionReplier) Reply(ctx context.Context, req Request) (string, error) {
	userInput := strings.TrimSpace(req.Message)
	if userInput == "" {
		return "", fmt.Errorf("assistant: user message cannot be empty")
	}
	if c.apiKey == "" {
		return "", fmt.Errorf("assistant: api key is required")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("assistant: rate limit wait: %w", err)
		}
	}

	body, err := json.Marshal(completionRequest{
		Model:    c.model,
		Messages: c.buildPrompt(req.History, userInput),
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call completion api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", buildAPIError(resp.StatusCode, respBody)
	}

	var parsed completionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", &APIError{StatusCode: resp.StatusCode, Code: parsed.Error.Code, Message: parsed.Error.Message}
	}
	if len(parsed.Choices) == 0 {
		return "", ErrEmptyReply
	}

	if parsed.Usage != nil {
		c.logger.Debugw("completion finished",
			"chat_id", req.ChatID,
			"prompt_tokens", parsed.Usage.PromptTokens,
			"completion_tokens", parsed.Usage.CompletionTokens,
		)
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// buildPrompt lays out the system prompt, a summary of older turns, the
// recent turns verbatim and finally the new user turn.
func (c *CompletionReplier) buildPrompt(history []models.Message, userInput string) []chatMessage {
	summary, recent := splitHistory(history, c.threshold, c.recentKeep)

	out := make([]chatMessage, 0, len(recent)+3)
	out = append(out, chatMessage{Role: "system", Content: c.systemPrompt})
	if summary != "" {
		out = append(out, chatMessage{Role: "system", Content: "Conversation summary:\n" + summary})
	}
	out = append(out, recent...)
	out = append(out, chatMessage{Role: string(models.RoleUser), Content: userInput})
	return out
}

func splitHistory(history []models.Message, threshold, recentKeep int) (string, []chatMessage) {
	cleaned := make([]chatMessage, 0, len(history))
	for _, msg := range history {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		role := string(msg.Role)
		if !msg.Role.Valid() {
			role = string(models.RoleUser)
		}
		cleaned = append(cleaned, chatMessage{Role: role, Content: content})
	}

	if threshold <= 0 || len(cleaned) <= threshold {
		return "", cleaned
	}
	if recentKeep > len(cleaned) {
		recentKeep = len(cleaned)
	}

	cutoff := len(cleaned) - recentKeep
	return summarise(cleaned[:cutoff]), append([]chatMessage(nil), cleaned[cutoff:]...)
}

func summarise(messages []chatMessage) string {
	var builder strings.Builder
	for i, msg := range messages {
		label := "User"
		if msg.Role == string(models.RoleAssistant) {
			label = "Assistant"
		}
		fmt.Fprintf(&builder, "%d. %s: %s\n", i+1, label, truncateRunes(msg.Content, maxSummaryRuneLength))
	}
	return strings.TrimSpace(builder.String())
}

func truncateRunes(input string, max int) string {
	if max <= 0 || utf8.RuneCountInString(input) <= max {
		return input
	}

	var builder strings.Builder
	count := 0
	for _, r := range input {
		if count >= max {
			builder.WriteRune('…')
			break
		}
		builder.WriteRune(r)
		count++
	}
	return builder.String()
}
