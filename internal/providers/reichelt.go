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

// Reichelt scrapes the reichelt.de storefront. There is no public API, so
// search and detail pages are parsed with goquery. Ids are the article path
// segment of the product page URL.
type Reichelt struct {
	enabled  bool
	country  string
	language string
	currency string
	baseURL  string
	limiter  *ratelimit.Limiter
	client   *http.Client
}

// ReicheltConfig holds Reichelt provider settings
type ReicheltConfig struct {
	Enabled  bool
	Country  string
	Language string
	Currency string
	Timeout  time.Duration
}

// NewReichelt creates a new Reichelt provider
func NewReichelt(cfg ReicheltConfig, limiter *ratelimit.Limiter) *Reichelt {
	country := cfg.Country
	if country == "" {
		country = "DE"
	}
	language := cfg.Language
	if language == "" {
		language = "en"
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "EUR"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Reichelt{
		enabled:  cfg.Enabled,
		country:  country,
		language: language,
		currency: currency,
		baseURL:  "https://www.reichelt.com",
		limiter:  limiter,
		client:   &http.Client{Timeout: timeout},
	}
}

func (r *Reichelt) Key() string { return "reichelt" }

func (r *Reichelt) Info() models.ProviderInfo {
	return models.ProviderInfo{
		Name:         "Reichelt",
		Description:  "Reichelt Elektronik storefront scraper",
		URL:          "https://www.reichelt.com",
		DisabledHelp: "Enable the Reichelt provider in the configuration.",
	}
}

func (r *Reichelt) Active() bool { return r.enabled }

func (r *Reichelt) Capabilities() []models.Capability {
	return []models.Capability{
		models.CapabilityBasic,
		models.CapabilityPicture,
		models.CapabilityDatasheet,
		models.CapabilityPrice,
	}
}

func (r *Reichelt) SearchByKeyword(ctx context.Context, keyword string) ([]models.SearchResult, error) {
	if strings.TrimSpace(keyword) == "" {
		return []models.SearchResult{}, nil
	}

	r.limiter.Wait("reichelt.com")

	searchURL := fmt.Sprintf("%s/%s/%s/shop/search?ACTION=446&q=%s",
		r.baseURL, strings.ToLower(r.country), r.language, url.QueryEscape(keyword))

	doc, status, err := fetchDocument(ctx, r.client, searchURL)
	if err != nil {
		return nil, transportErr(r.Key(), "search", err)
	}
	if status != http.StatusOK {
		return nil, statusErr(r.Key(), "search", status)
	}

	var results []models.SearchResult
	doc.Find("div.al_gallery_article").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("a.al_artinfo_link").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		id := reicheltArticleID(href)
		if id == "" {
			return
		}

		result := models.SearchResult{
			ProviderKey: r.Key(),
			ProviderID:  id,
			Name:        strings.TrimSpace(sel.Find("meta[itemprop=name]").AttrOr("content", "")),
			Description: strings.TrimSpace(sel.Find("div.al_artinfo_text").Text()),
			ProviderURL: r.absoluteURL(href),
		}
		if result.Name == "" {
			result.Name = strings.TrimSpace(link.Text())
		}
		if img, ok := sel.Find("img.al_artlogo").Attr("src"); ok {
			result.PreviewImageURL = r.absoluteURL(img)
		}
		results = append(results, result)
	})

	if results == nil {
		results = []models.SearchResult{}
	}
	return results, nil
}

func (r *Reichelt) Details(ctx context.Context, id string) (*models.PartDetail, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, "/?&#") {
		return nil, fmt.Errorf("%w: %q is not a Reichelt article id", ErrInvalidArgument, id)
	}

	r.limiter.Wait("reichelt.com")

	detailURL := fmt.Sprintf("%s/%s/%s/shop/product/%s",
		r.baseURL, strings.ToLower(r.country), r.language, url.PathEscape(id))

	doc, status, err := fetchDocument(ctx, r.client, detailURL)
	if err != nil {
		return nil, transportErr(r.Key(), "details", err)
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if status != http.StatusOK {
		return nil, statusErr(r.Key(), "details", status)
	}

	name := strings.TrimSpace(doc.Find("h2[itemprop=name]").First().Text())
	if name == "" {
		name = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if name == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	detail := &models.PartDetail{
		SearchResult: models.SearchResult{
			ProviderKey:  r.Key(),
			ProviderID:   id,
			Name:         name,
			Description:  strings.TrimSpace(doc.Find("p[itemprop=description]").First().Text()),
			Manufacturer: strings.TrimSpace(doc.Find("a[itemprop=brand] span, span[itemprop=brand]").First().Text()),
			MPN:          strings.TrimSpace(doc.Find("span[itemprop=mpn]").First().Text()),
			ProviderURL:  detailURL,
		},
	}

	doc.Find("div#av_bildbox img, img[itemprop=image]").Each(func(i int, sel *goquery.Selection) {
		src, ok := sel.Attr("data-large")
		if !ok {
			src, ok = sel.Attr("src")
		}
		if !ok || src == "" {
			return
		}
		detail.Images = append(detail.Images, models.File{
			URL:  r.absoluteURL(src),
			Name: fmt.Sprintf("%s-%d", id, i+1),
		})
	})
	if len(detail.Images) > 0 {
		detail.PreviewImageURL = detail.Images[0].URL
	}

	doc.Find("div#av_datasheets a, a.av_datasheet_link").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		name := strings.TrimSpace(sel.Text())
		if name == "" {
			name = detail.Name
		}
		detail.Datasheets = append(detail.Datasheets, models.File{URL: r.absoluteURL(href), Name: name})
	})

	doc.Find("ul.av_propview li, table.av_propview tr").Each(func(_ int, sel *goquery.Selection) {
		label := strings.TrimSpace(sel.Find(".av_propname, td:first-child").First().Text())
		value := strings.TrimSpace(sel.Find(".av_propvalue, td:last-child").First().Text())
		if label == "" || value == "" {
			return
		}
		detail.Parameters = append(detail.Parameters, parsing.Parameter(strings.TrimSuffix(label, ":"), value))
	})

	if price := parseReicheltPrice(doc.Find("meta[itemprop=price]").AttrOr("content", "")); price != "" {
		detail.VendorInfos = append(detail.VendorInfos, models.PurchaseInfo{
			DistributorName: "Reichelt",
			OrderNumber:     id,
			ProductURL:      detailURL,
			Prices: []models.Price{{
				MinimumDiscountAmount: 1,
				Price:                 price,
				CurrencyISOCode:       doc.Find("meta[itemprop=priceCurrency]").AttrOr("content", r.currency),
			}},
		})
	}

	return detail, nil
}

// reicheltArticleID extracts the article segment from a product URL like
// /de/en/shop/product/ne555_dip8-12345 or a full https link
func reicheltArticleID(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, p := range parts {
		if p == "product" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	// Legacy URLs put the article last with an embedded -p<number> suffix
	if len(parts) > 0 && strings.Contains(parts[len(parts)-1], "-p") {
		return parts[len(parts)-1]
	}
	return ""
}

func (r *Reichelt) absoluteURL(u string) string {
	switch {
	case u == "" || strings.HasPrefix(u, "http"):
		return u
	case strings.HasPrefix(u, "//"):
		return "https:" + u
	case strings.HasPrefix(u, "/"):
		return r.baseURL + u
	default:
		return r.baseURL + "/" + u
	}
}

func parseReicheltPrice(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return ""
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return ""
		}
	}
	return s
}

var _ Provider = (*Reichelt)(nil)
