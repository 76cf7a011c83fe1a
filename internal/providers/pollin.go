package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/partscout/partscout/internal/models"
	"github.com/partscout/partscout/internal/parsing"
	"github.com/partscout/partscout/internal/ratelimit"
)

// Pollin scrapes the pollin.de storefront. Ids are the numeric article
// number printed on the product page.
type Pollin struct {
	enabled bool
	baseURL string
	limiter *ratelimit.Limiter
	client  *http.Client
}

// PollinConfig holds Pollin provider settings
type PollinConfig struct {
	Enabled bool
	Timeout time.Duration
}

// NewPollin creates a new Pollin provider
func NewPollin(cfg PollinConfig, limiter *ratelimit.Limiter) *Pollin {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Pollin{
		enabled: cfg.Enabled,
		baseURL: "https://www.pollin.de",
		limiter: limiter,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *Pollin) Key() string { return "pollin" }

func (p *Pollin) Info() models.ProviderInfo {
	return models.ProviderInfo{
		Name:         "Pollin",
		Description:  "Pollin Electronic storefront scraper",
		URL:          "https://www.pollin.de",
		DisabledHelp: "Enable the Pollin provider in the configuration.",
	}
}

func (p *Pollin) Active() bool { return p.enabled }

func (p *Pollin) Capabilities() []models.Capability {
	return []models.Capability{
		models.CapabilityBasic,
		models.CapabilityPicture,
		models.CapabilityDatasheet,
		models.CapabilityPrice,
	}
}

func (p *Pollin) SearchByKeyword(ctx context.Context, keyword string) ([]models.SearchResult, error) {
	if strings.TrimSpace(keyword) == "" {
		return []models.SearchResult{}, nil
	}

	p.limiter.Wait("pollin.de")

	searchURL := fmt.Sprintf("%s/search?query=%s", p.baseURL, url.QueryEscape(keyword))

	doc, status, err := fetchDocument(ctx, p.client, searchURL)
	if err != nil {
		return nil, transportErr(p.Key(), "search", err)
	}
	if status != http.StatusOK {
		return nil, statusErr(p.Key(), "search", status)
	}

	var results []models.SearchResult
	doc.Find("div.product-box").Each(func(_ int, sel *goquery.Selection) {
		id := strings.TrimSpace(sel.AttrOr("data-product-ordernumber", ""))
		if id == "" {
			return
		}
		link := sel.Find("a.product-name").First()

		result := models.SearchResult{
			ProviderKey: p.Key(),
			ProviderID:  id,
			Name:        strings.TrimSpace(link.Text()),
			Description: strings.TrimSpace(sel.Find("div.product-description").Text()),
			ProviderURL: p.absoluteURL(link.AttrOr("href", "")),
		}
		if img, ok := sel.Find("img.product-image").Attr("src"); ok {
			result.PreviewImageURL = p.absoluteURL(img)
		}
		results = append(results, result)
	})

	if results == nil {
		results = []models.SearchResult{}
	}
	return results, nil
}

func (p *Pollin) Details(ctx context.Context, id string) (*models.PartDetail, error) {
	id = strings.TrimSpace(id)
	if !isPollinArticleNumber(id) {
		return nil, fmt.Errorf("%w: %q is not a Pollin article number", ErrInvalidArgument, id)
	}

	p.limiter.Wait("pollin.de")

	// The storefront redirects an article number search to the product page
	detailURL := fmt.Sprintf("%s/search?query=%s", p.baseURL, url.QueryEscape(id))

	doc, status, err := fetchDocument(ctx, p.client, detailURL)
	if err != nil {
		return nil, transportErr(p.Key(), "details", err)
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if status != http.StatusOK {
		return nil, statusErr(p.Key(), "details", status)
	}

	name := strings.TrimSpace(doc.Find("h1.product-detail-name").First().Text())
	if name == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	detail := &models.PartDetail{
		SearchResult: models.SearchResult{
			ProviderKey:  p.Key(),
			ProviderID:   id,
			Name:         name,
			Description:  strings.TrimSpace(doc.Find("div.product-detail-description-text").First().Text()),
			Manufacturer: strings.TrimSpace(doc.Find("span.product-detail-manufacturer").First().Text()),
			ProviderURL:  p.canonicalURL(doc, detailURL),
		},
	}

	doc.Find("div.gallery-slider-item img").Each(func(i int, sel *goquery.Selection) {
		src := sel.AttrOr("data-src", sel.AttrOr("src", ""))
		if src == "" {
			return
		}
		detail.Images = append(detail.Images, models.File{
			URL:  p.absoluteURL(src),
			Name: fmt.Sprintf("%s-%d", id, i+1),
		})
	})
	if len(detail.Images) > 0 {
		detail.PreviewImageURL = detail.Images[0].URL
	}

	doc.Find("a.product-detail-download-link").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || !strings.HasSuffix(strings.ToLower(href), ".pdf") {
			return
		}
		name := strings.TrimSpace(sel.Text())
		if name == "" {
			name = detail.Name
		}
		detail.Datasheets = append(detail.Datasheets, models.File{URL: p.absoluteURL(href), Name: name})
	})

	doc.Find("table.product-detail-properties-table tr").Each(func(_ int, sel *goquery.Selection) {
		label := strings.TrimSpace(sel.Find("th, td.properties-label").First().Text())
		value := strings.TrimSpace(sel.Find("td.properties-value, td:last-child").First().Text())
		if label == "" || value == "" {
			return
		}
		detail.Parameters = append(detail.Parameters, parsing.Parameter(strings.TrimSuffix(label, ":"), value))
	})

	if price := doc.Find("meta[itemprop=price]").AttrOr("content", ""); price != "" {
		detail.VendorInfos = append(detail.VendorInfos, models.PurchaseInfo{
			DistributorName: "Pollin",
			OrderNumber:     id,
			ProductURL:      detail.ProviderURL,
			Prices: []models.Price{{
				MinimumDiscountAmount: 1,
				Price:                 strings.ReplaceAll(price, ",", "."),
				CurrencyISOCode:       doc.Find("meta[itemprop=priceCurrency]").AttrOr("content", "EUR"),
			}},
		})
	}

	return detail, nil
}

func (p *Pollin) canonicalURL(doc *goquery.Document, fallback string) string {
	if href, ok := doc.Find("link[rel=canonical]").Attr("href"); ok && href != "" {
		return p.absoluteURL(href)
	}
	return fallback
}

func (p *Pollin) absoluteURL(u string) string {
	switch {
	case u == "" || strings.HasPrefix(u, "http"):
		return u
	case strings.HasPrefix(u, "//"):
		return "https:" + u
	case strings.HasPrefix(u, "/"):
		return p.baseURL + u
	default:
		return p.baseURL + "/" + u
	}
}

func isPollinArticleNumber(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var _ Provider = (*Pollin)(nil)
