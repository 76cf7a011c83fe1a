package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/partscout/partscout/internal/ratelimit"
)

func newTestGenericWeb(t *testing.T, handler http.Handler) (*GenericWeb, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g := NewGenericWeb(GenericWebConfig{Enabled: true}, ratelimit.New(0))
	return g, srv.URL
}

func TestGenericWeb_SearchAlwaysEmpty(t *testing.T) {
	g := NewGenericWeb(GenericWebConfig{Enabled: true}, ratelimit.New(0))
	results, err := g.SearchByKeyword(context.Background(), "anything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", results)
	}
}

func TestGenericWeb_DetailsInvalidID(t *testing.T) {
	g := NewGenericWeb(GenericWebConfig{Enabled: true}, ratelimit.New(0))
	for _, id := range []string{"", "not-a-url", "ftp://example.com/x", "/relative/path"} {
		if _, err := g.Details(context.Background(), id); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("id %q: expected ErrInvalidArgument, got %v", id, err)
		}
	}
}

func TestGenericWeb_DetailsFromJSONLD(t *testing.T) {
	page := `<!DOCTYPE html>
<html><head>
<title>Shop page</title>
<script type="application/ld+json">
{
  "@context": "https://schema.org",
  "@type": "Product",
  "name": "NE555 Timer IC",
  "description": "Classic 555 timer",
  "sku": "SHOP-555",
  "mpn": "NE555P",
  "brand": {"@type": "Brand", "name": "Texas Instruments"},
  "image": ["/img/ne555-front.jpg", "/img/ne555-back.jpg"],
  "offers": {"@type": "Offer", "price": 0.49, "priceCurrency": "EUR"}
}
</script>
</head><body></body></html>`

	g, base := newTestGenericWeb(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))

	detail, err := g.Details(context.Background(), base+"/product/ne555")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail.Name != "NE555 Timer IC" {
		t.Errorf("unexpected name %q", detail.Name)
	}
	if detail.Manufacturer != "Texas Instruments" {
		t.Errorf("unexpected manufacturer %q", detail.Manufacturer)
	}
	if detail.MPN != "NE555P" {
		t.Errorf("unexpected mpn %q", detail.MPN)
	}
	if len(detail.Images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(detail.Images))
	}
	if detail.Images[0].URL != base+"/img/ne555-front.jpg" {
		t.Errorf("relative image not resolved: %s", detail.Images[0].URL)
	}
	if len(detail.VendorInfos) != 1 {
		t.Fatalf("expected one vendor info, got %d", len(detail.VendorInfos))
	}
	info := detail.VendorInfos[0]
	if info.OrderNumber != "SHOP-555" {
		t.Errorf("unexpected order number %q", info.OrderNumber)
	}
	if info.Prices[0].Price != "0.49" || info.Prices[0].CurrencyISOCode != "EUR" {
		t.Errorf("unexpected price: %+v", info.Prices[0])
	}
}

func TestGenericWeb_DetailsFromGraph(t *testing.T) {
	page := `<html><head>
<script type="application/ld+json">
{
  "@context": "https://schema.org",
  "@graph": [
    {"@type": "WebSite", "name": "Some shop"},
    {"@type": "Product", "name": "LM358 Op Amp", "brand": "ST"}
  ]
}
</script>
</head><body></body></html>`

	g, base := newTestGenericWeb(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))

	detail, err := g.Details(context.Background(), base+"/p/lm358")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail.Name != "LM358 Op Amp" || detail.Manufacturer != "ST" {
		t.Errorf("unexpected detail: %+v", detail.SearchResult)
	}
}

func TestGenericWeb_OpenGraphFallback(t *testing.T) {
	page := `<html><head>
<meta property="og:title" content="BC547 Transistor">
<meta property="og:image" content="https://cdn.example.com/bc547.jpg">
<script type="application/ld+json">{"@type": "Product"}</script>
</head><body></body></html>`

	g, base := newTestGenericWeb(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))

	detail, err := g.Details(context.Background(), base+"/p/bc547")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail.Name != "BC547 Transistor" {
		t.Errorf("expected og:title fallback, got %q", detail.Name)
	}
	if detail.PreviewImageURL != "https://cdn.example.com/bc547.jpg" {
		t.Errorf("expected og:image fallback, got %q", detail.PreviewImageURL)
	}
}

func TestGenericWeb_NoProductData(t *testing.T) {
	g, base := newTestGenericWeb(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Just a blog</title></head><body></body></html>`)
	}))

	if _, err := g.Details(context.Background(), base+"/blog/post"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for a page without product data, got %v", err)
	}
}
