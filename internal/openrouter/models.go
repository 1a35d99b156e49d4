package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Model is one catalog entry with per-1M-token pricing in USD.
type Model struct {
	ID              string
	Name            string
	PromptPrice     float64
	CompletionPrice float64
}

// TotalCostPer1M is the combined prompt + completion price.
func (m Model) TotalCostPer1M() float64 {
	return m.PromptPrice + m.CompletionPrice
}

// Catalog resolves model ids to pricing for cost accounting.
type Catalog struct {
	models map[string]Model
	order  []string
}

// NewCatalog builds a catalog from a model list, preserving order.
func NewCatalog(models []Model) *Catalog {
	c := &Catalog{models: make(map[string]Model, len(models))}
	for _, m := range models {
		if _, ok := c.models[m.ID]; ok {
			continue
		}
		c.models[m.ID] = m
		c.order = append(c.order, m.ID)
	}
	return c
}

// Models returns all entries in catalog order.
func (c *Catalog) Models() []Model {
	out := make([]Model, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.models[id])
	}
	return out
}

// Lookup finds a model by id. The online suffix is stripped first since
// pricing is keyed on the base model.
func (c *Catalog) Lookup(modelID string) (Model, bool) {
	m, ok := c.models[strings.TrimSuffix(modelID, OnlineSuffix)]
	return m, ok
}

// Cost computes the USD cost of one call from its token usage. Missing
// usage or an unknown model contributes zero.
func (c *Catalog) Cost(modelID string, usage *Usage) float64 {
	if c == nil || usage == nil {
		return 0
	}
	m, ok := c.Lookup(modelID)
	if !ok {
		return 0
	}
	prompt := float64(usage.PromptTokens) / 1e6 * m.PromptPrice
	completion := float64(usage.CompletionTokens) / 1e6 * m.CompletionPrice
	return prompt + completion
}

// FetchModels retrieves the model catalog from the API. The API reports
// pricing per token; entries are converted to per-1M-token prices.
func (c *Client) FetchModels(ctx context.Context) (*Catalog, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("models endpoint returned %d: %s", resp.StatusCode, preview(string(body)))
	}

	var result struct {
		Data []struct {
			ID      string `json:"id"`
			Name    string `json:"name"`
			Pricing struct {
				Prompt     string `json:"prompt"`
				Completion string `json:"completion"`
			} `json:"pricing"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding models: %w", err)
	}

	var models []Model
	for _, d := range result.Data {
		if d.ID == "" {
			continue
		}
		models = append(models, Model{
			ID:              d.ID,
			Name:            d.Name,
			PromptPrice:     perMillion(d.Pricing.Prompt),
			CompletionPrice: perMillion(d.Pricing.Completion),
		})
	}
	return NewCatalog(models), nil
}

func perMillion(perToken string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(perToken), 64)
	if err != nil {
		return 0
	}
	return v * 1e6
}
