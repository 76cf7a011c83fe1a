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

func newTestElement14(t *testing.T, handler http.Handler) *Element14 {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	e := NewElement14(Element14Config{APIKey: "test-key", SearchLimit: 5}, ratelimit.New(0))
	e.baseURL = srv.URL
	return e
}

func TestElement14_ActiveRequiresKey(t *testing.T) {
	limiter := ratelimit.New(0)
	if NewElement14(Element14Config{}, limiter).Active() {
		t.Error("provider without an api key must be inactive")
	}
	if !NewElement14(Element14Config{APIKey: "k"}, limiter).Active() {
		t.Error("provider with an api key must be active")
	}
}

func TestElement14_SearchByKeyword(t *testing.T) {
	e := newTestElement14(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("term") != "any:NE555" {
			t.Errorf("unexpected term %q", q.Get("term"))
		}
		if q.Get("callInfo.apiKey") != "test-key" {
			t.Errorf("expected api key in query, got %q", q.Get("callInfo.apiKey"))
		}
		if q.Get("storeInfo.id") != "uk.farnell.com" {
			t.Errorf("unexpected store %q", q.Get("storeInfo.id"))
		}
		if q.Get("resultsSettings.numberOfResults") != "5" {
			t.Errorf("unexpected limit %q", q.Get("resultsSettings.numberOfResults"))
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"keywordSearchReturn": map[string]interface{}{
				"numberOfResults": 1,
				"products": []map[string]interface{}{
					{
						"sku":                              "1467742",
						"displayName":                      "Timer IC, 555 type",
						"brandName":                        "TEXAS INSTRUMENTS",
						"translatedManufacturerPartNumber": "NE555P",
						"productStatus":                    "ACTIVE",
						"image":                            map[string]interface{}{"baseName": "/ne555p.jpg"},
					},
				},
			},
		})
	}))

	results, err := e.SearchByKeyword(context.Background(), "NE555")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	got := results[0]
	if got.ProviderID != "1467742" || got.MPN != "NE555P" {
		t.Errorf("unexpected result: %+v", got)
	}
	if got.ManufacturingStatus != "active" {
		t.Errorf("expected active status, got %s", got.ManufacturingStatus)
	}
	if got.PreviewImageURL != "https://uk.farnell.com/productimages/standard/ne555p.jpg" {
		t.Errorf("unexpected image url %q", got.PreviewImageURL)
	}
}

func TestElement14_SearchEmptyKeyword(t *testing.T) {
	e := newTestElement14(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("empty keyword must not reach the API")
	}))

	results, err := e.SearchByKeyword(context.Background(), "   ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestElement14_Details(t *testing.T) {
	e := newTestElement14(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if term := r.URL.Query().Get("term"); term != "id:1467742" {
			t.Errorf("unexpected term %q", term)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"premierFarnellPartNumberReturn": map[string]interface{}{
				"numberOfResults": 1,
				"products": []map[string]interface{}{
					{
						"sku":                              "1467742",
						"displayName":                      "Timer IC, 555 type",
						"brandName":                        "TEXAS INSTRUMENTS",
						"translatedManufacturerPartNumber": "NE555P",
						"datasheets": []map[string]interface{}{
							{"url": "https://example.com/ne555.pdf", "description": "NE555 datasheet"},
						},
						"prices": []map[string]interface{}{
							{"from": 1, "cost": 0.45},
							{"from": 100, "cost": 0.31},
						},
						"attributes": []map[string]interface{}{
							{"attributeLabel": "Supply Voltage Max", "attributeValue": "16", "attributeUnit": "V"},
						},
					},
				},
			},
		})
	}))

	detail, err := e.Details(context.Background(), "1467742")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail.ProviderID != "1467742" || detail.MPN != "NE555P" {
		t.Errorf("unexpected detail: %+v", detail.SearchResult)
	}
	if len(detail.Datasheets) != 1 || detail.Datasheets[0].Name != "NE555 datasheet" {
		t.Errorf("unexpected datasheets: %+v", detail.Datasheets)
	}
	if len(detail.VendorInfos) != 1 {
		t.Fatalf("expected one vendor info, got %d", len(detail.VendorInfos))
	}
	prices := detail.VendorInfos[0].Prices
	if len(prices) != 2 || prices[0].Price != "0.45" || prices[0].CurrencyISOCode != "GBP" {
		t.Errorf("unexpected prices: %+v", prices)
	}
	if len(detail.Parameters) != 1 || detail.Parameters[0].Name != "Supply Voltage Max" {
		t.Errorf("unexpected parameters: %+v", detail.Parameters)
	}
}

func TestElement14_DetailsNotFound(t *testing.T) {
	e := newTestElement14(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"premierFarnellPartNumberReturn": map[string]interface{}{
				"numberOfResults": 0,
				"products":        []map[string]interface{}{},
			},
		})
	}))

	if _, err := e.Details(context.Background(), "9999999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := e.Details(context.Background(), "  "); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestElement14_RejectedKey(t *testing.T) {
	e := newTestElement14(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	if _, err := e.SearchByKeyword(context.Background(), "NE555"); !errors.Is(err, ErrAuthentication) {
		t.Errorf("expected ErrAuthentication, got %v", err)
	}
}

func TestElement14_Currency(t *testing.T) {
	tests := []struct {
		domain string
		want   string
	}{
		{"uk.farnell.com", "GBP"},
		{"www.newark.com", "USD"},
		{"cpc.co.uk", "GBP"},
		{"sg.element14.com", "SGD"},
		{"de.farnell.com", "EUR"},
	}
	for _, tt := range tests {
		e := NewElement14(Element14Config{APIKey: "k", StoreDomain: tt.domain}, ratelimit.New(0))
		if got := e.currency(); got != tt.want {
			t.Errorf("currency(%s) = %s, want %s", tt.domain, got, tt.want)
		}
	}
}
