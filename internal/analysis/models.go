package analysis

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// ModelInfo describes one model available to the configured API key.
type ModelInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	CreatedAt   string `json:"created_at"`
}

// ListModels fetches the models available to the configured API key,
// newest first as the service returns them. Discovery is best effort:
// transport, status, and decode failures log a warning and yield an
// empty list.
func (c *Client) ListModels(ctx context.Context) []ModelInfo {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+modelsPath, nil)
	if err != nil {
		c.logger.Warn("model listing skipped", "error", err)
		return nil
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("model listing request failed", "error", err)
		return nil
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn("failed to read model listing", "error", err)
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			c.logger.Warn("model listing rejected",
				"status", resp.StatusCode,
				"type", apiErr.Error.Type,
				"message", apiErr.Error.Message,
			)
		} else {
			c.logger.Warn("model listing rejected", "status", resp.StatusCode)
		}
		return nil
	}

	var listing struct {
		Data []ModelInfo `json:"data"`
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		c.logger.Warn("failed to parse model listing", "error", err)
		return nil
	}
	return listing.Data
}
