package orclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/beymax11/chatstudio/src/models"
)

// UpstreamModel is one entry of the upstream /models listing.
type UpstreamModel struct {
	ID            string `json:"id"`
	OwnedBy       string `json:"owned_by,omitempty"`
	Active        *bool  `json:"active,omitempty"`
	ContextWindow int    `json:"context_window,omitempty"`
}

// ModelsResponse represents the response from the models API
type ModelsResponse struct {
	Data []UpstreamModel `json:"data"`
}

// Availability pairs a registry model with its upstream status.
type Availability struct {
	Model     models.Model
	Available bool
}

// ListModels returns all upstream models (with caching)
func (c *Client) ListModels(ctx context.Context) ([]UpstreamModel, error) {
	return c.modelCache.GetModelList(ctx)
}

// listModelsUncached returns all upstream models without caching
func (c *Client) listModelsUncached(ctx context.Context) ([]UpstreamModel, error) {
	if c.config.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleError(resp)
	}

	var modelsResp ModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&modelsResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return modelsResp.Data, nil
}

// CheckRegistry reports which registry models the upstream currently serves.
func (c *Client) CheckRegistry(ctx context.Context) ([]Availability, error) {
	upstream, err := c.ListModels(ctx)
	if err != nil {
		return nil, err
	}

	served := make(map[string]bool, len(upstream))
	for _, m := range upstream {
		served[m.ID] = m.Active == nil || *m.Active
	}

	registry := models.All()
	out := make([]Availability, 0, len(registry))
	for _, m := range registry {
		out = append(out, Availability{Model: m, Available: served[m.Upstream]})
	}
	return out, nil
}
