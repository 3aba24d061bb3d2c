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
	"strconv"
	"time"

	"github.com/mediaflux/mediaflux/pkg/graph"
)

const requestTimeoutSeconds = 30

// HTTPEngine talks to the durable-execution engine over its REST surface.
type HTTPEngine struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewHTTPEngine(baseURL string, logger *slog.Logger) *HTTPEngine {
	return &HTTPEngine{
		baseURL: baseURL,
		client:  &http.Client{Timeout: requestTimeoutSeconds * time.Second},
		logger:  logger.With("module", "engine_client"),
	}
}

func (e *HTTPEngine) CompileAndRegister(ctx context.Context, name string, sm *graph.StateMachine) (string, error) {
	body := map[string]any{"name": name, "definition": sm}

	var out struct {
		Handle string `json:"handle"`
	}

	if err := e.do(ctx, http.MethodPost, "/executables", body, &out); err != nil {
		return "", err
	}

	return out.Handle, nil
}

func (e *HTTPEngine) StartInstance(ctx context.Context, handle, runID string, input map[string]any) (string, error) {
	body := map[string]any{"run_id": runID, "input": input}

	var out struct {
		ExecutionRef string `json:"execution_ref"`
	}

	path := "/executables/" + url.PathEscape(handle) + "/executions"
	if err := e.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return "", err
	}

	return out.ExecutionRef, nil
}

func (e *HTTPEngine) UpdateDefinition(ctx context.Context, handle string, sm *graph.StateMachine) error {
	body := map[string]any{"definition": sm}

	return e.do(ctx, http.MethodPut, "/executables/"+url.PathEscape(handle), body, nil)
}

func (e *HTTPEngine) DeleteInstance(ctx context.Context, handle string) error {
	return e.do(ctx, http.MethodDelete, "/executables/"+url.PathEscape(handle), nil, nil)
}

func (e *HTTPEngine) GetHistory(ctx context.Context, executionRef string, pageSize int, reverse bool) ([]HistoryEvent, error) {
	path := fmt.Sprintf("/executions/%s/history?page_size=%d&reverse=%s",
		url.PathEscape(executionRef), pageSize, strconv.FormatBool(reverse))

	var out struct {
		Events []HistoryEvent `json:"events"`
	}

	if err := e.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}

	return out.Events, nil
}

func (e *HTTPEngine) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}

		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, reader)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("engine request failed: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			e.logger.Error("Failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return fmt.Errorf("engine returned %d for %s %s: %s", resp.StatusCode, method, path, payload)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
