package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/raphaelgruber/datachat/internal/metrics"
)

const recycleExecutePath = "/app/execute"

// RecycleConfig configures the recycle feed client.
type RecycleConfig struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
	Metrics *metrics.Collector
}

// RecycleClient fetches recycling traceability data from the mock feed.
// The payload shape is owned by the feed and passed through untouched.
type RecycleClient struct {
	http    *resty.Client
	metrics *metrics.Collector
}

// NewRecycle creates a recycle feed client.
func NewRecycle(cfg RecycleConfig) *RecycleClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RecycleClient{
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(cfg.Timeout).
			SetHeader("Content-Type", "application/json;charset=utf-8").
			SetLogger(restyLogger{logger: logger}),
		metrics: cfg.Metrics,
	}
}

// Execute posts params (an empty object when nil) and returns the raw JSON payload.
func (c *RecycleClient) Execute(ctx context.Context, params map[string]any) (json.RawMessage, error) {
	start := time.Now()
	payload, err := c.execute(ctx, params)
	if c.metrics != nil {
		c.metrics.RecordCall(metrics.OpRecycle, time.Since(start), err)
	}
	return payload, err
}

func (c *RecycleClient) execute(ctx context.Context, params map[string]any) (json.RawMessage, error) {
	if params == nil {
		params = map[string]any{}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(params).
		Post(recycleExecutePath)
	if err != nil {
		return nil, classify(err)
	}
	if resp.IsError() {
		return nil, &StatusError{Code: resp.StatusCode(), Body: truncate(resp.String(), maxErrorBodyLen)}
	}

	body := resp.Body()
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: recycle feed returned non-JSON body", ErrDecode)
	}
	return json.RawMessage(body), nil
}
