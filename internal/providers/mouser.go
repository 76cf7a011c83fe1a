package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/partscout/partscout/internal/models"
	"github.com/partscout/partscout/internal/parsing"
	"github.com/partscout/partscout/internal/ratelimit"
)

// Mouser queries the Mouser Search API (REST JSON, API key in query string)
type Mouser struct {
	apiKey      string
	searchLimit int
	baseURL     string
	limiter     *ratelimit.Limiter
	client      *http.Client
}

// MouserConfig holds Mouser provider settings
type MouserConfig struct {
	APIKey      string
	SearchLimit int
	Timeout     time.Duration
}

// NewMouser creates a new Mouser provider
func NewMouser(cfg MouserConfig, limiter *ratelimit.Limiter) *Mouser {
	limit := cfg.SearchLimit
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Mouser{
		apiKey:      cfg.APIKey,
		searchLimit: limit,
		baseURL:     "https://api.mouser.com/api/v1",
		limiter:     limiter,
		client:      &http.Client{Timeout: timeout},
	}
}

func (m *Mouser) Key() string { return "mouser" }

func (m *Mouser) Info() models.ProviderInfo {
	return models.ProviderInfo{
		Name:         "Mouser",
		Description:  "Mouser Electronics search API",
		URL:          "https://www.mouser.com",
		DisabledHelp: "Set the Mouser API key to enable this provider.",
	}
}

func (m *Mouser) Active() bool { return m.apiKey != "" }

func (m *Mouser) Capabilities() []models.Capability {
	return []models.Capability{
		models.CapabilityBasic,
		models.CapabilityPicture,
		models.CapabilityDatasheet,
		models.CapabilityPrice,
	}
}

// mouserStatusMap maps Mouser lifecycle vocabulary to the shared enum
var mouserStatusMap = map[string]models.ManufacturingStatus{
	"new product":                     models.StatusAnnounced,
	"new at mouser":                   models.StatusActive,
	"active":                          models.StatusActive,
	"not recommended for new designs": models.StatusNRFND,
	"end of life":                     models.StatusEOL,
	"obsolete":                        models.StatusDiscontinued,
	"discontinued at mouser":          models.StatusDiscontinued,
}

type mouserPart struct {
	MouserPartNumber       string `json:"MouserPartNumber"`
	ManufacturerPartNumber string `json:"ManufacturerPartNumber"`
	Manufacturer           string `json:"Manufacturer"`
	Description            string `json:"Description"`
	ImagePath              string `json:"ImagePath"`
	Category               string `json:"Category"`
	DataSheetURL           string `json:"DataSheetUrl"`
	ProductDetailURL       string `json:"ProductDetailUrl"`
	LifecycleStatus        string `json:"LifecycleStatus"`
	PriceBreaks            []struct {
		Quantity int    `json:"Quantity"`
		Price    string `json:"Price"`
		Currency string `json:"Currency"`
	} `json:"PriceBreaks"`
	ProductAttributes []struct {
		AttributeName  string `json:"AttributeName"`
		AttributeValue string `json:"AttributeValue"`
	} `json:"ProductAttributes"`
}

type mouserSearchResponse struct {
	Errors []struct {
		Message string `json:"Message"`
	} `json:"Errors"`
	SearchResults struct {
		NumberOfResult int          `json:"NumberOfResult"`
		Parts          []mouserPart `json:"Parts"`
	} `json:"SearchResults"`
}

func (m *Mouser) SearchByKeyword(ctx context.Context, keyword string) ([]models.SearchResult, error) {
	if strings.TrimSpace(keyword) == "" {
		return []models.SearchResult{}, nil
	}

	m.limiter.Wait("mouser.com")

	body := map[string]interface{}{
		"SearchByKeywordRequest": map[string]interface{}{
			"keyword":        keyword,
			"records":        m.searchLimit,
			"startingRecord": 0,
			"searchOptions":  "",
		},
	}

	var decoded mouserSearchResponse
	status, err := postJSON(ctx, m.client, m.searchURL("/search/keyword"), nil, body, &decoded)
	if err != nil {
		return nil, transportErr(m.Key(), "search", err)
	}
	if status != http.StatusOK {
		return nil, statusErr(m.Key(), "search", status)
	}
	if len(decoded.Errors) > 0 {
		return nil, transportErr(m.Key(), "search", fmt.Errorf("api error: %s", decoded.Errors[0].Message))
	}

	results := make([]models.SearchResult, 0, len(decoded.SearchResults.Parts))
	for _, p := range decoded.SearchResults.Parts {
		results = append(results, m.toSearchResult(p))
	}
	return results, nil
}

func (m *Mouser) Details(ctx context.Context, id string) (*models.PartDetail, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: empty Mouser part number", ErrInvalidArgument)
	}

	m.limiter.Wait("mouser.com")

	body := map[string]interface{}{
		"SearchByPartRequest": map[string]interface{}{
			"mouserPartNumber": id,
		},
	}

	var decoded mouserSearchResponse
	status, err := postJSON(ctx, m.client, m.searchURL("/search/partnumber"), nil, body, &decoded)
	if err != nil {
		return nil, transportErr(m.Key(), "details", err)
	}
	if status != http.StatusOK {
		return nil, statusErr(m.Key(), "details", status)
	}
	if len(decoded.Errors) > 0 {
		return nil, transportErr(m.Key(), "details", fmt.Errorf("api error: %s", decoded.Errors[0].Message))
	}

	// Part-number search can return related parts; pick the exact match
	var part *mouserPart
	for i := range decoded.SearchResults.Parts {
		if decoded.SearchResults.Parts[i].MouserPartNumber == id {
			part = &decoded.SearchResults.Parts[i]
			break
		}
	}
	if part == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	detail := &models.PartDetail{
		SearchResult: m.toSearchResult(*part),
		Category:     part.Category,
	}

	if part.ImagePath != "" {
		detail.Images = append(detail.Images, models.File{URL: part.ImagePath, Name: part.MouserPartNumber})
	}
	if part.DataSheetURL != "" {
		detail.Datasheets = append(detail.Datasheets, models.File{URL: part.DataSheetURL, Name: part.ManufacturerPartNumber})
	}

	for _, attr := range part.ProductAttributes {
		detail.Parameters = append(detail.Parameters, parsing.Parameter(attr.AttributeName, attr.AttributeValue))
	}

	if len(part.PriceBreaks) > 0 {
		info := models.PurchaseInfo{
			DistributorName: "Mouser",
			OrderNumber:     part.MouserPartNumber,
			ProductURL:      part.ProductDetailURL,
		}
		for _, pb := range part.PriceBreaks {
			info.Prices = append(info.Prices, models.Price{
				MinimumDiscountAmount: float64(pb.Quantity),
				Price:                 cleanMouserPrice(pb.Price),
				CurrencyISOCode:       pb.Currency,
			})
		}
		detail.VendorInfos = append(detail.VendorInfos, info)
	}

	return detail, nil
}

func (m *Mouser) toSearchResult(p mouserPart) models.SearchResult {
	status, ok := mouserStatusMap[strings.ToLower(p.LifecycleStatus)]
	if !ok {
		status = models.StatusNotSet
	}

	return models.SearchResult{
		ProviderKey:         m.Key(),
		ProviderID:          p.MouserPartNumber,
		Name:                p.ManufacturerPartNumber,
		Description:         p.Description,
		Manufacturer:        p.Manufacturer,
		MPN:                 p.ManufacturerPartNumber,
		PreviewImageURL:     p.ImagePath,
		ManufacturingStatus: status,
		ProviderURL:         p.ProductDetailURL,
	}
}

func (m *Mouser) searchURL(path string) string {
	return m.baseURL + path + "?apiKey=" + url.QueryEscape(m.apiKey)
}

// cleanMouserPrice strips currency symbols from price strings like "$1.23"
// or "1,23 €" and normalizes the decimal separator
func cleanMouserPrice(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.':
			b.WriteRune(r)
		case r == ',':
			b.WriteRune('.')
		}
	}
	return b.String()
}

var _ Provider = (*Mouser)(nil)
