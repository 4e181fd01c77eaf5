package modelapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clipflow/internal/engine"

	"github.com/rs/zerolog"
)

const DefaultBaseURL = "https://api.replicate.com/v1"

// Prediction is the provider's representation of one model run.
type Prediction struct {
	ID     string `json:"id"`
	Model  string `json:"model"`
	Status string `json:"status"`
	Output any    `json:"output"`
	Error  any    `json:"error"`
	Logs   string `json:"logs"`
}

func (p Prediction) ErrorMessage() string {
	switch e := p.Error.(type) {
	case nil:
		return ""
	case string:
		return e
	default:
		b, _ := json.Marshal(e)
		return string(b)
	}
}

func (p Prediction) Terminal() bool {
	return p.Status == "succeeded" || p.Status == "failed" || p.Status == "canceled"
}

// Client talks to a Replicate compatible prediction API.
type Client struct {
	baseURL      string
	token        string
	http         *http.Client
	logger       zerolog.Logger
	pollInterval time.Duration
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithPollInterval sets how often Run re-reads a prediction that outlived the synchronous wait.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

func NewClient(baseURL, token string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		token:        token,
		http:         &http.Client{},
		logger:       zerolog.Nop(),
		pollInterval: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run creates a prediction, asks the provider to hold the response until it completes and
// returns its raw output. accepted is called as soon as the create request succeeds. A failed
// prediction or a non-2xx answer is an ExternalCallFailed node error carrying the upstream status
// and message.
func (slf *Client) Run(ctx context.Context, model string, input map[string]any, accepted func()) (any, error) {
	pred, err := slf.create(ctx, model, input, true)
	if err != nil {
		return nil, err
	}
	if accepted != nil {
		accepted()
	}
	for !pred.Terminal() {
		select {
		case <-ctx.Done():
			slf.cancelQuietly(pred.ID)
			return nil, engine.AsNodeError(ctx.Err())
		case <-time.After(slf.pollInterval):
		}
		if pred, err = slf.GetPrediction(ctx, pred.ID); err != nil {
			return nil, err
		}
	}
	if pred.Status != "succeeded" {
		msg := pred.ErrorMessage()
		if msg == "" {
			msg = "prediction " + pred.Status
		}
		return nil, engine.NewNodeError(engine.CodeExternalCallFailed, "%s", msg)
	}
	return pred.Output, nil
}

// CreatePrediction starts a prediction without waiting for it.
func (slf *Client) CreatePrediction(ctx context.Context, model string, input map[string]any) (Prediction, error) {
	return slf.create(ctx, model, input, false)
}

func (slf *Client) GetPrediction(ctx context.Context, id string) (Prediction, error) {
	var pred Prediction
	err := slf.do(ctx, http.MethodGet, "/predictions/"+id, nil, nil, &pred)
	return pred, err
}

func (slf *Client) CancelPrediction(ctx context.Context, id string) error {
	return slf.do(ctx, http.MethodPost, "/predictions/"+id+"/cancel", nil, nil, nil)
}

// create posts to the model endpoint, or to the version endpoint when the id pins a version
// ("owner/name:version").
func (slf *Client) create(ctx context.Context, model string, input map[string]any, wait bool) (Prediction, error) {
	path := "/models/" + model + "/predictions"
	body := map[string]any{"input": input}
	if i := strings.IndexByte(model, ':'); i >= 0 {
		path = "/predictions"
		body["version"] = model[i+1:]
	}
	headers := map[string]string{}
	if wait {
		headers["Prefer"] = "wait"
	}

	var pred Prediction
	if err := slf.do(ctx, http.MethodPost, path, body, headers, &pred); err != nil {
		return pred, err
	}
	slf.logger.Debug().Str("model", model).Str("predictionId", pred.ID).Str("status", pred.Status).Msg("Prediction created")
	return pred, nil
}

func (slf *Client) cancelQuietly(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := slf.CancelPrediction(ctx, id); err != nil {
		slf.logger.Warn().Err(err).Str("predictionId", id).Msg("Failed to cancel prediction")
	}
}

func (slf *Client) do(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, slf.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if slf.token != "" {
		req.Header.Set("Authorization", "Bearer "+slf.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := slf.http.Do(req)
	if err != nil {
		return engine.AsNodeError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return engine.AsNodeError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &engine.NodeError{
			Code:       engine.CodeExternalCallFailed,
			StatusCode: resp.StatusCode,
			Message:    errorDetail(data, resp.Status),
		}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return engine.NewNodeError(engine.CodeExternalCallFailed, "decode response: %v", err)
	}
	return nil
}

// errorDetail extracts the provider's message from an error body.
func errorDetail(body []byte, status string) string {
	var problem struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(body, &problem) == nil {
		switch {
		case problem.Detail != "":
			return problem.Detail
		case problem.Error != "":
			return problem.Error
		case problem.Title != "":
			return problem.Title
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		if len(s) > 512 {
			s = s[:512]
		}
		return s
	}
	return status
}
