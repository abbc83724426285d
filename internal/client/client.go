// Package client provides HTTP clients for the analytics middleware and the recycle feed.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/raphaelgruber/datachat/internal/metrics"
)

const chatProcessPath = "/chat-process"

// Config configures a middleware client.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	SystemMessage string
	Logger        *slog.Logger
	Metrics       *metrics.Collector
}

// Client sends prompts to the analytics middleware.
// It is safe for concurrent use.
type Client struct {
	http          *resty.Client
	systemMessage string
	logger        *slog.Logger
	metrics       *metrics.Collector
}

// ChatOptions carries per-request options understood by the middleware.
type ChatOptions struct {
	ConversationID string `json:"conversationId"`
}

// ChatRequest is the chat-process request body.
type ChatRequest struct {
	Prompt        string      `json:"prompt"`
	Options       ChatOptions `json:"options"`
	SystemMessage string      `json:"systemMessage,omitempty"`
}

// ChatResponse is the chat-process response body.
// Text already contains the explanation and any result tables as Markdown.
type ChatResponse struct {
	ID             string          `json:"id"`
	Text           string          `json:"text"`
	ChartData      json.RawMessage `json:"chartData,omitempty"`
	SQL            string          `json:"sql"`
	ConversationID string          `json:"conversationId"`
	Done           bool            `json:"done"`
	Error          bool            `json:"error,omitempty"`
}

// New creates a middleware client.
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetLogger(restyLogger{logger: logger})

	return &Client{
		http:          httpClient,
		systemMessage: cfg.SystemMessage,
		logger:        logger,
		metrics:       cfg.Metrics,
	}
}

// SendPrompt issues exactly one chat-process request for the conversation.
// Transport failures are reported as ErrNetwork or ErrTimeout; there is no retry.
func (c *Client) SendPrompt(ctx context.Context, prompt, conversationID string) (*ChatResponse, error) {
	start := time.Now()
	resp, err := c.sendPrompt(ctx, prompt, conversationID)
	duration := time.Since(start)

	if c.metrics != nil {
		c.metrics.RecordCall(metrics.OpChatProcess, duration, err)
	}
	c.logger.Debug("chat-process call finished",
		"conversation_id", conversationID,
		"duration_ms", duration.Milliseconds(),
		"ok", err == nil,
	)
	return resp, err
}

func (c *Client) sendPrompt(ctx context.Context, prompt, conversationID string) (*ChatResponse, error) {
	body := ChatRequest{
		Prompt:        prompt,
		Options:       ChatOptions{ConversationID: conversationID},
		SystemMessage: c.systemMessage,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(chatProcessPath)
	if err != nil {
		return nil, classify(err)
	}

	if resp.IsError() {
		return nil, &StatusError{Code: resp.StatusCode(), Body: truncate(resp.String(), maxErrorBodyLen)}
	}

	var out ChatResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if bytes.Equal(out.ChartData, []byte("null")) {
		out.ChartData = nil
	}
	return &out, nil
}

// restyLogger routes resty's internal logging to slog.
type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...), "component", "resty")
}

func (l restyLogger) Warnf(format string, v ...any) {
	l.logger.Warn(fmt.Sprintf(format, v...), "component", "resty")
}

func (l restyLogger) Debugf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...), "component", "resty")
}
