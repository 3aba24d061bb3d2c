// Package dataplane holds the clients for the external metadata store plus
// the asset checkout primitives and the pagination cursor shared with it.
package dataplane

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/mediaflux/mediaflux/pkg/models"
)

const defaultTimeoutSeconds = 30

// StoreResult reports a metadata write.
type StoreResult struct {
	Status string `json:"status"`
}

// RetrieveResult is one page of metadata. Cursor is present while more
// pages remain.
type RetrieveResult struct {
	Results map[string]any `json:"results"`
	Cursor  string         `json:"cursor,omitempty"`
}

// Client is the metadata-store contract.
type Client interface {
	// StoreMetadata writes an operator's result object for an asset. When
	// paginate is set, large fields are chunked into page lists on the far
	// side; reads are unaffected either way.
	StoreMetadata(ctx context.Context, assetID, operatorName, workflowID string, result map[string]any, paginate bool) (*StoreResult, error)

	// RetrieveMetadata reads an operator's stored result. An empty cursor
	// starts from the beginning.
	RetrieveMetadata(ctx context.Context, assetID, operatorName, cursor string) (*RetrieveResult, error)

	// GenerateStoragePath allocates the bucket/key a derived media object
	// should be written under.
	GenerateStoragePath(ctx context.Context, assetID, workflowID string) (models.MediaPointer, error)
}

// HTTPClient talks to the metadata store over its REST surface.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewHTTPClient(baseURL string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeoutSeconds * time.Second},
		logger:  logger.With("module", "dataplane_client"),
	}
}

func (c *HTTPClient) StoreMetadata(ctx context.Context, assetID, operatorName, workflowID string, result map[string]any, paginate bool) (*StoreResult, error) {
	body := map[string]any{
		"asset_id":    assetID,
		"operator":    operatorName,
		"workflow_id": workflowID,
		"result":      result,
		"paginate":    paginate,
	}

	var stored StoreResult
	if err := c.do(ctx, http.MethodPost, "/metadata", body, &stored); err != nil {
		return nil, err
	}

	return &stored, nil
}

func (c *HTTPClient) RetrieveMetadata(ctx context.Context, assetID, operatorName, cursor string) (*RetrieveResult, error) {
	path := fmt.Sprintf("/metadata/%s/%s", url.PathEscape(assetID), url.PathEscape(operatorName))
	if cursor != "" {
		path += "?cursor=" + url.QueryEscape(cursor)
	}

	var result RetrieveResult
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *HTTPClient) GenerateStoragePath(ctx context.Context, assetID, workflowID string) (models.MediaPointer, error) {
	body := map[string]any{
		"asset_id":    assetID,
		"workflow_id": workflowID,
	}

	var pointer models.MediaPointer
	if err := c.do(ctx, http.MethodPost, "/storage-path", body, &pointer); err != nil {
		return models.MediaPointer{}, err
	}

	return pointer, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}

		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("dataplane request failed: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("Failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return fmt.Errorf("dataplane returned %d for %s %s: %s", resp.StatusCode, method, path, payload)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
