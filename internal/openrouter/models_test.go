package openrouter

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCatalogCost(t *testing.T) {
	catalog := NewCatalog([]Model{
		{ID: "perplexity/sonar", PromptPrice: 1, CompletionPrice: 1},
		{ID: "cheap/model", PromptPrice: 0.1, CompletionPrice: 0.2},
	})

	usage := &Usage{PromptTokens: 500_000, CompletionTokens: 250_000}
	if got := catalog.Cost("perplexity/sonar", usage); got != 0.75 {
		t.Errorf("cost = %v, want 0.75", got)
	}

	// The online variant shares the base model's pricing.
	if got := catalog.Cost("perplexity/sonar:online", usage); got != 0.75 {
		t.Errorf("online cost = %v, want 0.75", got)
	}

	if got := catalog.Cost("unknown/model", usage); got != 0 {
		t.Errorf("unknown model cost = %v, want 0", got)
	}
	if got := catalog.Cost("perplexity/sonar", nil); got != 0 {
		t.Errorf("nil usage cost = %v, want 0", got)
	}
}

func TestCatalogOrderAndLookup(t *testing.T) {
	catalog := NewCatalog([]Model{
		{ID: "b/model"},
		{ID: "a/model"},
		{ID: "b/model"}, // duplicate ignored
	})

	models := catalog.Models()
	if len(models) != 2 || models[0].ID != "b/model" || models[1].ID != "a/model" {
		t.Errorf("expected insertion order preserved, got %v", models)
	}

	if _, ok := catalog.Lookup("a/model:online"); !ok {
		t.Error("lookup should strip the online suffix")
	}
	if _, ok := catalog.Lookup("missing"); ok {
		t.Error("expected miss for unknown id")
	}
}

func TestFetchModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[
			{"id":"perplexity/sonar","name":"Sonar","pricing":{"prompt":"0.000001","completion":"0.000001"}},
			{"id":"","name":"bogus","pricing":{"prompt":"0","completion":"0"}},
			{"id":"free/model","name":"Free","pricing":{"prompt":"bad","completion":""}}
		]}`))
	}))
	defer srv.Close()

	c := NewClient("k")
	c.BaseURL = srv.URL

	catalog, err := c.FetchModels(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	models := catalog.Models()
	if len(models) != 2 {
		t.Fatalf("expected 2 models (empty id skipped), got %d", len(models))
	}
	if math.Abs(models[0].PromptPrice-1.0) > 1e-9 {
		t.Errorf("expected per-token price scaled to per-1M, got %v", models[0].PromptPrice)
	}
	if models[1].PromptPrice != 0 || models[1].CompletionPrice != 0 {
		t.Errorf("unparseable prices should be zero, got %+v", models[1])
	}
}

func TestFetchModelsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("k")
	c.BaseURL = srv.URL

	if _, err := c.FetchModels(context.Background()); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
