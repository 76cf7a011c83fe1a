package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/partscout/partscout/internal/ratelimit"
)

func newTestMouser(t *testing.T, handler http.Handler) *Mouser {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	m := NewMouser(MouserConfig{APIKey: "test-key", SearchLimit: 10}, ratelimit.New(0))
	m.baseURL = srv.URL
	return m
}

func TestMouser_ActiveRequiresKey(t *testing.T) {
	limiter := ratelimit.New(0)
	if NewMouser(MouserConfig{}, limiter).Active() {
		t.Error("provider without an api key must be inactive")
	}
	if !NewMouser(MouserConfig{APIKey: "k"}, limiter).Active() {
		t.Error("provider with an api key must be active")
	}
}

func TestMouser_SearchByKeyword(t *testing.T) {
	m := newTestMouser(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/keyword" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if key := r.URL.Query().Get("apiKey"); key != "test-key" {
			t.Errorf("expected api key in query, got %q", key)
		}
		var body struct {
			Req struct {
				Keyword string `json:"keyword"`
				Records int    `json:"records"`
			} `json:"SearchByKeywordRequest"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Req.Keyword != "LM358" || body.Req.Records != 10 {
			t.Errorf("unexpected request body: %+v", body.Req)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"SearchResults": map[string]interface{}{
				"NumberOfResult": 1,
				"Parts": []map[string]interface{}{
					{
						"MouserPartNumber":       "595-LM358DR",
						"ManufacturerPartNumber": "LM358DR",
						"Manufacturer":           "Texas Instruments",
						"Description":            "Op amp",
						"LifecycleStatus":        "Active",
					},
				},
			},
		})
	}))

	results, err := m.SearchByKeyword(context.Background(), "LM358")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	got := results[0]
	if got.ProviderID != "595-LM358DR" || got.MPN != "LM358DR" {
		t.Errorf("unexpected result: %+v", got)
	}
	if got.ManufacturingStatus != "active" {
		t.Errorf("expected active status, got %s", got.ManufacturingStatus)
	}
}

func TestMouser_SearchAPIError(t *testing.T) {
	m := newTestMouser(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"Errors": []map[string]interface{}{{"Message": "Invalid api key"}},
		})
	}))

	_, err := m.SearchByKeyword(context.Background(), "LM358")
	if err == nil {
		t.Fatal("expected an error")
	}
	var te *TransportError
	if !errors.As(err, &te) {
		t.Errorf("expected TransportError, got %T", err)
	}
}

func TestMouser_DetailsPicksExactMatch(t *testing.T) {
	m := newTestMouser(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/partnumber" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		// Part-number search returns the target plus a related part
		json.NewEncoder(w).Encode(map[string]interface{}{
			"SearchResults": map[string]interface{}{
				"Parts": []map[string]interface{}{
					{
						"MouserPartNumber":       "595-LM358ADR",
						"ManufacturerPartNumber": "LM358ADR",
					},
					{
						"MouserPartNumber":       "595-LM358DR",
						"ManufacturerPartNumber": "LM358DR",
						"Category":               "Op Amps",
						"PriceBreaks": []map[string]interface{}{
							{"Quantity": 1, "Price": "$0.45", "Currency": "USD"},
							{"Quantity": 100, "Price": "0,31 €", "Currency": "EUR"},
						},
					},
				},
			},
		})
	}))

	detail, err := m.Details(context.Background(), "595-LM358DR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail.ProviderID != "595-LM358DR" {
		t.Errorf("picked the wrong part: %s", detail.ProviderID)
	}
	if detail.Category != "Op Amps" {
		t.Errorf("expected category, got %q", detail.Category)
	}
	if len(detail.VendorInfos) != 1 {
		t.Fatalf("expected one vendor info, got %d", len(detail.VendorInfos))
	}
	prices := detail.VendorInfos[0].Prices
	if len(prices) != 2 {
		t.Fatalf("expected 2 price breaks, got %d", len(prices))
	}
	if prices[0].Price != "0.45" {
		t.Errorf("expected cleaned dollar price 0.45, got %q", prices[0].Price)
	}
	if prices[1].Price != "0.31" {
		t.Errorf("expected cleaned euro price 0.31, got %q", prices[1].Price)
	}
}

func TestMouser_DetailsNoExactMatch(t *testing.T) {
	m := newTestMouser(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"SearchResults": map[string]interface{}{
				"Parts": []map[string]interface{}{
					{"MouserPartNumber": "595-OTHER"},
				},
			},
		})
	}))

	if _, err := m.Details(context.Background(), "595-LM358DR"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCleanMouserPrice(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"$1.23", "1.23"},
		{"0,45 €", "0.45"},
		{"1.234,56", "1.234.56"},
		{"  12.00  ", "12.00"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := cleanMouserPrice(tt.in); got != tt.want {
			t.Errorf("cleanMouserPrice(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
