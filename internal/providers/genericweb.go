package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/partscout/partscout/internal/models"
	"github.com/partscout/partscout/internal/ratelimit"
)

// GenericWeb extracts part data from arbitrary shop pages via their embedded
// schema.org Product JSON-LD. It cannot search; the id is the page URL
// itself, so only Details is useful and keyword search always comes back
// empty. Open Graph tags fill gaps the JSON-LD leaves.
type GenericWeb struct {
	enabled bool
	limiter *ratelimit.Limiter
	client  *http.Client
}

// GenericWebConfig holds generic web provider settings
type GenericWebConfig struct {
	Enabled bool
	Timeout time.Duration
}

// NewGenericWeb creates a new generic web provider
func NewGenericWeb(cfg GenericWebConfig, limiter *ratelimit.Limiter) *GenericWeb {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GenericWeb{
		enabled: cfg.Enabled,
		limiter: limiter,
		client:  &http.Client{Timeout: timeout},
	}
}

func (g *GenericWeb) Key() string { return "genericweb" }

func (g *GenericWeb) Info() models.ProviderInfo {
	return models.ProviderInfo{
		Name:         "Generic web page",
		Description:  "Extracts product data from any page with schema.org JSON-LD",
		URL:          "",
		DisabledHelp: "Enable the generic web provider in the configuration.",
	}
}

func (g *GenericWeb) Active() bool { return g.enabled }

func (g *GenericWeb) Capabilities() []models.Capability {
	return []models.Capability{
		models.CapabilityBasic,
		models.CapabilityPicture,
		models.CapabilityPrice,
	}
}

// SearchByKeyword always returns no results; a keyword cannot be resolved to
// an arbitrary URL
func (g *GenericWeb) SearchByKeyword(ctx context.Context, keyword string) ([]models.SearchResult, error) {
	return []models.SearchResult{}, nil
}

func (g *GenericWeb) Details(ctx context.Context, id string) (*models.PartDetail, error) {
	pageURL, err := url.Parse(strings.TrimSpace(id))
	if err != nil || (pageURL.Scheme != "http" && pageURL.Scheme != "https") || pageURL.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute http(s) URL", ErrInvalidArgument, id)
	}

	g.limiter.Wait(pageURL.Host)

	doc, status, err := fetchDocument(ctx, g.client, pageURL.String())
	if err != nil {
		return nil, transportErr(g.Key(), "details", err)
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if status != http.StatusOK {
		return nil, statusErr(g.Key(), "details", status)
	}

	product, ok := findJSONLDProduct(doc)
	if !ok {
		return nil, fmt.Errorf("%w: no product data on %s", ErrNotFound, pageURL.Host)
	}

	detail := &models.PartDetail{
		SearchResult: models.SearchResult{
			ProviderKey:  g.Key(),
			ProviderID:   pageURL.String(),
			Name:         product.Name,
			Description:  product.Description,
			Manufacturer: product.brandName(),
			MPN:          product.MPN,
			ProviderURL:  pageURL.String(),
		},
	}

	for i, img := range product.images() {
		detail.Images = append(detail.Images, models.File{
			URL:  resolveAgainst(pageURL, img),
			Name: fmt.Sprintf("product-%d", i+1),
		})
	}

	// Open Graph fallbacks for pages with sparse JSON-LD
	if detail.Name == "" {
		detail.Name = doc.Find(`meta[property="og:title"]`).AttrOr("content", "")
	}
	if detail.Description == "" {
		detail.Description = doc.Find(`meta[property="og:description"]`).AttrOr("content", "")
	}
	if len(detail.Images) == 0 {
		if img := doc.Find(`meta[property="og:image"]`).AttrOr("content", ""); img != "" {
			detail.Images = append(detail.Images, models.File{URL: resolveAgainst(pageURL, img), Name: "product-1"})
		}
	}
	if len(detail.Images) > 0 {
		detail.PreviewImageURL = detail.Images[0].URL
	}
	if detail.Name == "" {
		detail.Name = strings.TrimSpace(doc.Find("title").First().Text())
	}

	for _, offer := range product.offers() {
		if offer.Price == "" {
			continue
		}
		detail.VendorInfos = append(detail.VendorInfos, models.PurchaseInfo{
			DistributorName: pageURL.Host,
			OrderNumber:     firstNonEmpty(product.SKU, product.MPN, pageURL.String()),
			ProductURL:      pageURL.String(),
			Prices: []models.Price{{
				MinimumDiscountAmount: 1,
				Price:                 offer.Price,
				CurrencyISOCode:       offer.PriceCurrency,
			}},
		})
	}

	return detail, nil
}

// jsonLDProduct is the subset of schema.org Product this provider reads.
// Fields that shops serve inconsistently (string vs object vs array) decode
// into json.RawMessage and get normalized by the accessors below.
type jsonLDProduct struct {
	Type        jsonLDTypes     `json:"@type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	SKU         string          `json:"sku"`
	MPN         string          `json:"mpn"`
	Brand       json.RawMessage `json:"brand"`
	Image       json.RawMessage `json:"image"`
	Offers      json.RawMessage `json:"offers"`
}

type jsonLDOffer struct {
	Price         string `json:"price"`
	PriceCurrency string `json:"priceCurrency"`
}

// jsonLDTypes accepts "@type" as a string or an array of strings
type jsonLDTypes []string

func (t *jsonLDTypes) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*t = jsonLDTypes{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*t = jsonLDTypes(many)
	return nil
}

func (t jsonLDTypes) isProduct() bool {
	for _, v := range t {
		if strings.EqualFold(v, "Product") {
			return true
		}
	}
	return false
}

func (p jsonLDProduct) brandName() string {
	if len(p.Brand) == 0 {
		return ""
	}
	var name string
	if err := json.Unmarshal(p.Brand, &name); err == nil {
		return name
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(p.Brand, &obj); err == nil {
		return obj.Name
	}
	return ""
}

func (p jsonLDProduct) images() []string {
	if len(p.Image) == 0 {
		return nil
	}
	var single string
	if err := json.Unmarshal(p.Image, &single); err == nil {
		return []string{single}
	}
	var many []string
	if err := json.Unmarshal(p.Image, &many); err == nil {
		return many
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(p.Image, &obj); err == nil && obj.URL != "" {
		return []string{obj.URL}
	}
	return nil
}

func (p jsonLDProduct) offers() []jsonLDOffer {
	if len(p.Offers) == 0 {
		return nil
	}
	var single rawOffer
	if err := json.Unmarshal(p.Offers, &single); err == nil {
		return []jsonLDOffer{single.normalize()}
	}
	var many []rawOffer
	if err := json.Unmarshal(p.Offers, &many); err == nil {
		out := make([]jsonLDOffer, 0, len(many))
		for _, o := range many {
			out = append(out, o.normalize())
		}
		return out
	}
	return nil
}

// rawOffer tolerates numeric prices
type rawOffer struct {
	Price         json.RawMessage `json:"price"`
	PriceCurrency string          `json:"priceCurrency"`
}

func (o rawOffer) normalize() jsonLDOffer {
	out := jsonLDOffer{PriceCurrency: o.PriceCurrency}
	if len(o.Price) == 0 {
		return out
	}
	var s string
	if err := json.Unmarshal(o.Price, &s); err == nil {
		out.Price = s
		return out
	}
	var f float64
	if err := json.Unmarshal(o.Price, &f); err == nil {
		out.Price = strconv.FormatFloat(f, 'f', -1, 64)
	}
	return out
}

// findJSONLDProduct scans every ld+json script block for a Product node,
// including ones nested in a @graph array
func findJSONLDProduct(doc *goquery.Document) (jsonLDProduct, bool) {
	var found jsonLDProduct
	ok := false

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		raw := sel.Text()

		var product jsonLDProduct
		if err := json.Unmarshal([]byte(raw), &product); err == nil && product.Type.isProduct() {
			found, ok = product, true
			return false
		}

		var graph struct {
			Graph []json.RawMessage `json:"@graph"`
		}
		if err := json.Unmarshal([]byte(raw), &graph); err == nil {
			for _, node := range graph.Graph {
				var p jsonLDProduct
				if err := json.Unmarshal(node, &p); err == nil && p.Type.isProduct() {
					found, ok = p, true
					return false
				}
			}
		}

		var list []jsonLDProduct
		if err := json.Unmarshal([]byte(raw), &list); err == nil {
			for _, p := range list {
				if p.Type.isProduct() {
					found, ok = p, true
					return false
				}
			}
		}
		return true
	})

	return found, ok
}

func resolveAgainst(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ Provider = (*GenericWeb)(nil)
