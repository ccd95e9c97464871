package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Config describes the chat-completions endpoint used for generation.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	Client      *http.Client
	Logger      *slog.Logger
}

// Client talks to an OpenAI-style chat-completions API and returns documents
// validated against the caller's output schema.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
	logger      *slog.Logger
	schemas     *schemaCache
}

var _ Generator = (*Client)(nil)

// Generated documents are a few KB; anything past this is cut off.
const maxResponseBytes = 1 << 20

// NewClient builds a generation client. BaseURL and Model are required; an
// empty APIKey skips the Authorization header for keyless local endpoints.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("generation base URL is required")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("generation model is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:     baseURL,
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       model,
		temperature: cfg.Temperature,
		client:      hc,
		logger:      logger.With("component", "generate"),
		schemas:     newSchemaCache(),
	}, nil
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string          `json:"type"`
	JSONSchema *jsonSchemaSpec `json:"json_schema,omitempty"`
}

type jsonSchemaSpec struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

type chatResponse struct {
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Error   *apiError    `json:"error"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Generate performs one chat-completions call. The endpoint is asked for
// schema-constrained JSON, and the reply is validated locally against
// req.OutputSchema whether or not the endpoint honored the constraint.
func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.UserContext) == "" {
		return nil, errors.New("user context is required")
	}
	if len(req.OutputSchema) == 0 {
		return nil, errors.New("output schema is required")
	}

	body, err := json.Marshal(c.buildChatRequest(req))
	if err != nil {
		return nil, fmt.Errorf("encode generation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create generation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &RemoteError{Msg: "generation request failed", Cause: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("close generation response body", "error", closeErr)
		}
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &RemoteError{Msg: "read generation response", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{Status: resp.StatusCode, Msg: errorSnippet(respBody)}
	}

	return c.decodeResult(respBody, req.OutputSchema)
}

func (c *Client) buildChatRequest(req Request) chatRequest {
	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(req.SystemInstructions) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemInstructions})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.UserContext})

	return chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		ResponseFormat: responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchemaSpec{
				Name:   "artifact",
				Strict: true,
				Schema: req.OutputSchema,
			},
		},
	}
}

func (c *Client) decodeResult(body []byte, schema json.RawMessage) (*Result, error) {
	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &MalformedOutputError{Reason: "undecodable response body", Cause: err}
	}

	if parsed.Error != nil {
		msg := parsed.Error.Message
		if parsed.Error.Type != "" {
			msg = parsed.Error.Type + ": " + msg
		}
		return nil, &RemoteError{Msg: "generation API error: " + msg}
	}

	if len(parsed.Choices) == 0 {
		return nil, &MalformedOutputError{Reason: "empty choices"}
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return nil, &MalformedOutputError{Reason: "empty content"}
	}

	if err := c.schemas.validateDocument([]byte(content), schema); err != nil {
		return nil, err
	}

	model := parsed.Model
	if model == "" {
		model = c.model
	}

	return &Result{Document: json.RawMessage(content), Model: model}, nil
}

func errorSnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	const maxLen = 300
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	if s == "" {
		return "empty error body"
	}
	return s
}
