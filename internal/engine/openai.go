package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultBaseURL is the public OpenAI API endpoint.
const DefaultBaseURL = "https://api.openai.com/v1"

// maxErrorBody caps how much of an error response is kept in APIError.
const maxErrorBody = 2048

// OpenAIConfig configures the Responses API client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string        // default https://api.openai.com/v1
	Timeout time.Duration // per-request I/O timeout, not a job deadline
}

// OpenAIClient implements Engine on the OpenAI Responses API in background mode.
// It holds no per-job state and is safe for concurrent use.
type OpenAIClient struct {
	cfg    OpenAIConfig
	http   *http.Client
	logger *slog.Logger
}

// Compile-time check that OpenAIClient implements Engine.
var _ Engine = (*OpenAIClient)(nil)

// NewOpenAIClient creates a client. A missing API key is logged, not fatal:
// the server still starts and each call reports ErrMissingAPIKey.
func NewOpenAIClient(cfg OpenAIConfig, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 600 * time.Second
	}
	if cfg.APIKey == "" {
		logger.Warn("OPENAI_API_KEY not set; research calls will fail until it is configured")
	}
	return &OpenAIClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type inputContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type inputMessage struct {
	Role    string         `json:"role"`
	Content []inputContent `json:"content"`
}

type toolSpec struct {
	Type      string         `json:"type"`
	Container map[string]any `json:"container,omitempty"`
}

type createRequest struct {
	Model      string            `json:"model"`
	Input      []inputMessage    `json:"input"`
	Tools      []toolSpec        `json:"tools"`
	Reasoning  map[string]string `json:"reasoning,omitempty"`
	Background bool              `json:"background"`
}

// Start implements Engine.
func (c *OpenAIClient) Start(ctx context.Context, req StartRequest) (*Operation, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	rid := uuid.New().String()
	start := time.Now()

	body := createRequest{
		Model:      req.Model,
		Input:      make([]inputMessage, 0, len(req.Messages)),
		Tools:      make([]toolSpec, 0, len(req.Tools)),
		Background: true,
	}
	for _, m := range req.Messages {
		body.Input = append(body.Input, inputMessage{
			Role:    m.Role,
			Content: []inputContent{{Type: "input_text", Text: m.Text}},
		})
	}
	for _, t := range req.Tools {
		spec := toolSpec{Type: t}
		if t == ToolCodeInterpreter {
			spec.Container = map[string]any{"type": "auto"}
		}
		body.Tools = append(body.Tools, spec)
	}
	if req.ReasoningSummary != "" {
		body.Reasoning = map[string]string{"summary": req.ReasoningSummary}
	}

	c.logger.Info("engine.start",
		"req_id", rid,
		"model", req.Model,
		"messages", len(body.Input),
		"tools", req.Tools,
	)

	op, err := c.do(ctx, http.MethodPost, c.cfg.BaseURL+"/responses", body)
	if err != nil {
		c.logger.Error("engine.start.error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}
	if op.ID == "" {
		return nil, fmt.Errorf("engine response has no operation id")
	}

	c.logger.Info("engine.start.ok",
		"req_id", rid,
		"operation", op.ID,
		"engine_status", op.Status,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return op, nil
}

// Retrieve implements Engine.
func (c *OpenAIClient) Retrieve(ctx context.Context, ref string) (*Operation, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	start := time.Now()
	op, err := c.do(ctx, http.MethodGet, c.cfg.BaseURL+"/responses/"+url.PathEscape(ref), nil)
	if err != nil {
		c.logger.Warn("engine.retrieve.error",
			"operation", ref, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}
	c.logger.Debug("engine.retrieve.ok",
		"operation", ref,
		"engine_status", op.Status,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return op, nil
}

func (c *OpenAIClient) do(ctx context.Context, method, endpoint string, body any) (*Operation, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("engine http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn("engine response body close error", "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read engine response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(raw)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: msg}
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode engine response: %w", err)
	}

	op := &Operation{Document: doc}
	op.ID, _ = doc["id"].(string)
	op.Status, _ = doc["status"].(string)
	return op, nil
}
