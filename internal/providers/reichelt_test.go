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

const reicheltSearchPage = `<html><body>
<div class="al_gallery_article">
  <meta itemprop="name" content="NE 555 DIP :: Timer IC">
  <a class="al_artinfo_link" href="/de/en/shop/product/ne_555_dip_timer-p13866"></a>
  <div class="al_artinfo_text">Timer IC, DIP-8</div>
  <img class="al_artlogo" src="//cdn.reichelt.com/bilder/web/ne555.jpg">
</div>
<div class="al_gallery_article">
  <a class="al_artinfo_link" href="/de/en/shop/product/lm_358_dip-p10228">LM 358 DIP</a>
  <div class="al_artinfo_text">Op amp, DIP-8</div>
</div>
</body></html>`

const reicheltDetailPage = `<html><body>
<h2 itemprop="name">NE 555 DIP :: Timer IC</h2>
<p itemprop="description">Classic timer IC in DIP-8</p>
<span itemprop="brand"><span>Texas Instruments</span></span>
<span itemprop="mpn">NE555P</span>
<meta itemprop="price" content="0,39">
<meta itemprop="priceCurrency" content="EUR">
<div id="av_bildbox">
  <img src="/bilder/web/artikel/ne555_1.jpg" data-large="/bilder/web/artikel/ne555_1_xl.jpg">
</div>
<div id="av_datasheets">
  <a href="/documents/ne555.pdf">Datasheet NE555</a>
</div>
<ul class="av_propview">
  <li><span class="av_propname">Supply voltage:</span><span class="av_propvalue">4.5 ... 16 V</span></li>
  <li><span class="av_propname">Package:</span><span class="av_propvalue">DIP-8</span></li>
</ul>
</body></html>`

func newTestReichelt(t *testing.T, handler http.Handler) *Reichelt {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	r := NewReichelt(ReicheltConfig{Enabled: true}, ratelimit.New(0))
	r.baseURL = srv.URL
	return r
}

func TestReichelt_SearchByKeyword(t *testing.T) {
	r := newTestReichelt(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("q") != "NE555" {
			t.Errorf("unexpected query %q", req.URL.Query().Get("q"))
		}
		fmt.Fprint(w, reicheltSearchPage)
	}))

	results, err := r.SearchByKeyword(context.Background(), "NE555")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	first := results[0]
	if first.ProviderID != "ne_555_dip_timer-p13866" {
		t.Errorf("unexpected id %q", first.ProviderID)
	}
	if first.Name != "NE 555 DIP :: Timer IC" {
		t.Errorf("unexpected name %q", first.Name)
	}
	if first.PreviewImageURL != "https://cdn.reichelt.com/bilder/web/ne555.jpg" {
		t.Errorf("protocol-relative image not resolved: %q", first.PreviewImageURL)
	}

	// Second article has no meta name, link text is the fallback
	if results[1].Name != "LM 358 DIP" {
		t.Errorf("unexpected fallback name %q", results[1].Name)
	}
}

func TestReichelt_SearchNoResults(t *testing.T) {
	r := newTestReichelt(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, `<html><body><div class="no_results">Nothing found</div></body></html>`)
	}))

	results, err := r.SearchByKeyword(context.Background(), "zzzzz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", results)
	}
}

func TestReichelt_Details(t *testing.T) {
	r := newTestReichelt(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, reicheltDetailPage)
	}))

	detail, err := r.Details(context.Background(), "ne_555_dip_timer-p13866")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail.Name != "NE 555 DIP :: Timer IC" {
		t.Errorf("unexpected name %q", detail.Name)
	}
	if detail.Manufacturer != "Texas Instruments" {
		t.Errorf("unexpected manufacturer %q", detail.Manufacturer)
	}
	if detail.MPN != "NE555P" {
		t.Errorf("unexpected mpn %q", detail.MPN)
	}
	if len(detail.Images) != 1 || detail.Images[0].URL != r.baseURL+"/bilder/web/artikel/ne555_1_xl.jpg" {
		t.Errorf("expected the data-large image, got %+v", detail.Images)
	}
	if len(detail.Datasheets) != 1 || detail.Datasheets[0].Name != "Datasheet NE555" {
		t.Errorf("unexpected datasheets: %+v", detail.Datasheets)
	}
	if len(detail.Parameters) != 2 {
		t.Fatalf("expected 2 parameters, got %d", len(detail.Parameters))
	}
	if detail.Parameters[0].Name != "Supply voltage" {
		t.Errorf("expected trailing colon stripped, got %q", detail.Parameters[0].Name)
	}
	if len(detail.VendorInfos) != 1 {
		t.Fatalf("expected one vendor info, got %d", len(detail.VendorInfos))
	}
	price := detail.VendorInfos[0].Prices[0]
	if price.Price != "0.39" || price.CurrencyISOCode != "EUR" {
		t.Errorf("unexpected price: %+v", price)
	}
}

func TestReichelt_DetailsInvalidID(t *testing.T) {
	r := newTestReichelt(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		t.Error("no request expected for an invalid id")
	}))

	for _, id := range []string{"", "foo/bar", "a?b", "x#y"} {
		if _, err := r.Details(context.Background(), id); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("id %q: expected ErrInvalidArgument, got %v", id, err)
		}
	}
}

func TestReichelt_DetailsNotFound(t *testing.T) {
	r := newTestReichelt(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	if _, err := r.Details(context.Background(), "gone-p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReicheltArticleID(t *testing.T) {
	tests := []struct {
		href string
		want string
	}{
		{"/de/en/shop/product/ne_555_dip_timer-p13866", "ne_555_dip_timer-p13866"},
		{"https://www.reichelt.com/de/en/shop/product/lm_358-p10228", "lm_358-p10228"},
		{"/de/en/ne_555_dip_timer-p13866.html", "ne_555_dip_timer-p13866.html"},
		{"/de/en/category/", ""},
	}
	for _, tt := range tests {
		if got := reicheltArticleID(tt.href); got != tt.want {
			t.Errorf("reicheltArticleID(%q) = %q, want %q", tt.href, got, tt.want)
		}
	}
}
