package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/partscout/partscout/internal/models"
	"github.com/partscout/partscout/internal/parsing"
	"github.com/partscout/partscout/internal/ratelimit"
)

// Element14 queries the element14 Product Search API, which fronts the
// Farnell, Newark and CPC storefronts. One API key works across all of them;
// the storefront domain picks the catalog and currency.
type Element14 struct {
	apiKey      string
	storeDomain string
	searchLimit int
	baseURL     string
	limiter     *ratelimit.Limiter
	client      *http.Client
}

// Element14Config holds element14 provider settings
type Element14Config struct {
	APIKey      string
	StoreDomain string
	SearchLimit int
	Timeout     time.Duration
}

// NewElement14 creates a new element14 provider
func NewElement14(cfg Element14Config, limiter *ratelimit.Limiter) *Element14 {
	domain := cfg.StoreDomain
	if domain == "" {
		domain = "uk.farnell.com"
	}
	limit := cfg.SearchLimit
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Element14{
		apiKey:      cfg.APIKey,
		storeDomain: domain,
		searchLimit: limit,
		baseURL:     "https://api.element14.com/catalog/products",
		limiter:     limiter,
		client:      &http.Client{Timeout: timeout},
	}
}

func (e *Element14) Key() string { return "element14" }

func (e *Element14) Info() models.ProviderInfo {
	return models.ProviderInfo{
		Name:         "element14",
		Description:  "Farnell / Newark / CPC product search API",
		URL:          "https://" + e.storeDomain,
		DisabledHelp: "Set the element14 API key to enable this provider.",
	}
}

func (e *Element14) Active() bool { return e.apiKey != "" }

func (e *Element14) Capabilities() []models.Capability {
	return []models.Capability{
		models.CapabilityBasic,
		models.CapabilityPicture,
		models.CapabilityDatasheet,
		models.CapabilityPrice,
	}
}

type element14Product struct {
	SKU                   string `json:"sku"`
	DisplayName           string `json:"displayName"`
	BrandName             string `json:"brandName"`
	TranslatedMPN         string `json:"translatedManufacturerPartNumber"`
	ProductStatus         string `json:"productStatus"`
	ReleaseStatusCode     int    `json:"releaseStatusCode"`
	Image                 *struct {
		BaseName string `json:"baseName"`
	} `json:"image"`
	Datasheets []struct {
		URL         string `json:"url"`
		Description string `json:"description"`
	} `json:"datasheets"`
	Prices []struct {
		From int     `json:"from"`
		Cost float64 `json:"cost"`
	} `json:"prices"`
	Attributes []struct {
		AttributeLabel string `json:"attributeLabel"`
		AttributeValue string `json:"attributeValue"`
		AttributeUnit  string `json:"attributeUnit"`
	} `json:"attributes"`
}

type element14Response struct {
	KeywordSearchReturn *struct {
		NumberOfResults int                `json:"numberOfResults"`
		Products        []element14Product `json:"products"`
	} `json:"keywordSearchReturn"`
	PremierFarnellPartNumberReturn *struct {
		NumberOfResults int                `json:"numberOfResults"`
		Products        []element14Product `json:"products"`
	} `json:"premierFarnellPartNumberReturn"`
}

func (e *Element14) SearchByKeyword(ctx context.Context, keyword string) ([]models.SearchResult, error) {
	if strings.TrimSpace(keyword) == "" {
		return []models.SearchResult{}, nil
	}

	e.limiter.Wait("element14.com")

	decoded, err := e.query(ctx, "any:"+keyword, "search")
	if err != nil {
		return nil, err
	}

	var products []element14Product
	if decoded.KeywordSearchReturn != nil {
		products = decoded.KeywordSearchReturn.Products
	}

	results := make([]models.SearchResult, 0, len(products))
	for _, p := range products {
		results = append(results, e.toSearchResult(p))
	}
	return results, nil
}

func (e *Element14) Details(ctx context.Context, id string) (*models.PartDetail, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: empty element14 SKU", ErrInvalidArgument)
	}

	e.limiter.Wait("element14.com")

	decoded, err := e.query(ctx, "id:"+id, "details")
	if err != nil {
		return nil, err
	}

	var products []element14Product
	if decoded.PremierFarnellPartNumberReturn != nil {
		products = decoded.PremierFarnellPartNumberReturn.Products
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	p := products[0]
	detail := &models.PartDetail{
		SearchResult: e.toSearchResult(p),
	}

	if img := e.imageURL(p); img != "" {
		detail.Images = append(detail.Images, models.File{URL: img, Name: p.SKU})
	}
	for _, ds := range p.Datasheets {
		name := ds.Description
		if name == "" {
			name = p.TranslatedMPN
		}
		detail.Datasheets = append(detail.Datasheets, models.File{URL: ds.URL, Name: name})
	}

	for _, attr := range p.Attributes {
		raw := attr.AttributeValue
		if attr.AttributeUnit != "" {
			raw += attr.AttributeUnit
		}
		detail.Parameters = append(detail.Parameters, parsing.Parameter(attr.AttributeLabel, raw))
	}

	if len(p.Prices) > 0 {
		info := models.PurchaseInfo{
			DistributorName: "element14",
			OrderNumber:     p.SKU,
			ProductURL:      detail.ProviderURL,
		}
		for _, tier := range p.Prices {
			info.Prices = append(info.Prices, models.Price{
				MinimumDiscountAmount: float64(tier.From),
				Price:                 strconv.FormatFloat(tier.Cost, 'f', -1, 64),
				CurrencyISOCode:       e.currency(),
			})
		}
		detail.VendorInfos = append(detail.VendorInfos, info)
	}

	return detail, nil
}

func (e *Element14) query(ctx context.Context, term, op string) (*element14Response, error) {
	params := url.Values{}
	params.Set("callInfo.responseDataFormat", "JSON")
	params.Set("term", term)
	params.Set("storeInfo.id", e.storeDomain)
	params.Set("callInfo.apiKey", e.apiKey)
	params.Set("resultsSettings.numberOfResults", strconv.Itoa(e.searchLimit))
	params.Set("resultsSettings.responseGroup", "large")

	var decoded element14Response
	status, err := getJSON(ctx, e.client, e.baseURL+"?"+params.Encode(), nil, &decoded)
	if err != nil {
		return nil, transportErr(e.Key(), op, err)
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, fmt.Errorf("%w: element14 rejected the api key", ErrAuthentication)
	}
	if status != http.StatusOK {
		return nil, statusErr(e.Key(), op, status)
	}
	return &decoded, nil
}

func (e *Element14) toSearchResult(p element14Product) models.SearchResult {
	status := models.StatusNotSet
	switch strings.ToUpper(p.ProductStatus) {
	case "ACTIVE":
		status = models.StatusActive
	case "NO_LONGER_MANUFACTURED":
		status = models.StatusDiscontinued
	case "NOT_RECOMMENDED_FOR_NEW_DESIGN":
		status = models.StatusNRFND
	case "LAST_TIME_BUY":
		status = models.StatusEOL
	}

	return models.SearchResult{
		ProviderKey:         e.Key(),
		ProviderID:          p.SKU,
		Name:                p.TranslatedMPN,
		Description:         p.DisplayName,
		Manufacturer:        p.BrandName,
		MPN:                 p.TranslatedMPN,
		PreviewImageURL:     e.imageURL(p),
		ManufacturingStatus: status,
		ProviderURL:         fmt.Sprintf("https://%s/%s", e.storeDomain, url.PathEscape(p.SKU)),
	}
}

func (e *Element14) imageURL(p element14Product) string {
	if p.Image == nil || p.Image.BaseName == "" {
		return ""
	}
	return fmt.Sprintf("https://%s/productimages/standard%s", e.storeDomain, p.Image.BaseName)
}

// currency derives the billing currency from the storefront domain
func (e *Element14) currency() string {
	switch {
	case strings.Contains(e.storeDomain, "newark.com"):
		return "USD"
	case strings.Contains(e.storeDomain, "cpc.co.uk"), strings.Contains(e.storeDomain, "uk.farnell.com"), strings.Contains(e.storeDomain, "export.farnell.com"):
		return "GBP"
	case strings.Contains(e.storeDomain, "element14.com"):
		return "SGD"
	default:
		return "EUR"
	}
}

var _ Provider = (*Element14)(nil)
