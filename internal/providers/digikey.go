package providers

import (
	"context"
	"errors"
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

// OAuthAppDigiKey is the token manager app name for DigiKey
const OAuthAppDigiKey = "digikey"

// DigiKey queries the DigiKey Product Information API v4. Authentication is
// OAuth2 client credentials handled by the shared token manager.
type DigiKey struct {
	clientID    string
	currency    string
	siteLocale  string
	searchLimit int
	baseURL     string
	tokens      TokenSource
	limiter     *ratelimit.Limiter
	client      *http.Client
}

// DigiKeyConfig holds DigiKey provider settings
type DigiKeyConfig struct {
	ClientID    string
	Currency    string
	SiteLocale  string
	SearchLimit int
	Timeout     time.Duration
}

// NewDigiKey creates a new DigiKey provider
func NewDigiKey(cfg DigiKeyConfig, tokens TokenSource, limiter *ratelimit.Limiter) *DigiKey {
	currency := cfg.Currency
	if currency == "" {
		currency = "USD"
	}
	locale := cfg.SiteLocale
	if locale == "" {
		locale = "US"
	}
	limit := cfg.SearchLimit
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &DigiKey{
		clientID:    cfg.ClientID,
		currency:    currency,
		siteLocale:  locale,
		searchLimit: limit,
		baseURL:     "https://api.digikey.com",
		tokens:      tokens,
		limiter:     limiter,
		client:      &http.Client{Timeout: timeout},
	}
}

func (d *DigiKey) Key() string { return "digikey" }

func (d *DigiKey) Info() models.ProviderInfo {
	return models.ProviderInfo{
		Name:         "DigiKey",
		Description:  "DigiKey Product Information API",
		URL:          "https://www.digikey.com",
		DisabledHelp: "Configure the DigiKey OAuth client id and secret and connect the app.",
		OAuthAppName: OAuthAppDigiKey,
	}
}

// Active requires configured credentials and an obtainable token. The token
// existence check is local only; no network call happens here.
func (d *DigiKey) Active() bool {
	return d.clientID != "" && d.tokens != nil && d.tokens.HasToken(OAuthAppDigiKey)
}

func (d *DigiKey) Capabilities() []models.Capability {
	return []models.Capability{
		models.CapabilityBasic,
		models.CapabilityPicture,
		models.CapabilityDatasheet,
		models.CapabilityPrice,
		models.CapabilityFootprint,
	}
}

// digikeyStatusMap maps DigiKey product status vocabulary to the shared enum
var digikeyStatusMap = map[string]models.ManufacturingStatus{
	"active":                   models.StatusActive,
	"preliminary":              models.StatusAnnounced,
	"not for new designs":      models.StatusNRFND,
	"last time buy":            models.StatusEOL,
	"obsolete":                 models.StatusDiscontinued,
	"discontinued at digi-key": models.StatusDiscontinued,
}

type digikeyProduct struct {
	ProductNumber string `json:"ProductNumber"`
	Manufacturer  struct {
		Name string `json:"Name"`
	} `json:"Manufacturer"`
	ManufacturerProductNumber string `json:"ManufacturerProductNumber"`
	Description               struct {
		ProductDescription  string `json:"ProductDescription"`
		DetailedDescription string `json:"DetailedDescription"`
	} `json:"Description"`
	ProductStatus struct {
		Status string `json:"Status"`
	} `json:"ProductStatus"`
	PhotoURL     string `json:"PhotoUrl"`
	DatasheetURL string `json:"DatasheetUrl"`
	ProductURL   string `json:"ProductUrl"`
	Category     struct {
		Name string `json:"Name"`
	} `json:"Category"`
	Parameters []struct {
		ParameterText string `json:"ParameterText"`
		ValueText     string `json:"ValueText"`
	} `json:"Parameters"`
	ProductVariations []struct {
		DigiKeyProductNumber string `json:"DigiKeyProductNumber"`
		StandardPricing      []struct {
			BreakQuantity int     `json:"BreakQuantity"`
			UnitPrice     float64 `json:"UnitPrice"`
		} `json:"StandardPricing"`
	} `json:"ProductVariations"`
}

func (d *DigiKey) SearchByKeyword(ctx context.Context, keyword string) ([]models.SearchResult, error) {
	if strings.TrimSpace(keyword) == "" {
		return []models.SearchResult{}, nil
	}

	headers, err := d.authHeaders(ctx)
	if err != nil {
		return nil, err
	}

	d.limiter.Wait("digikey.com")

	body := map[string]interface{}{
		"Keywords": keyword,
		"Limit":    d.searchLimit,
		"Offset":   0,
	}

	var decoded struct {
		Products []digikeyProduct `json:"Products"`
	}
	status, err := postJSON(ctx, d.client, d.baseURL+"/products/v4/search/keyword", headers, body, &decoded)
	if err != nil {
		return nil, transportErr(d.Key(), "search", err)
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, fmt.Errorf("%w: digikey rejected the token", ErrAuthentication)
	}
	if status != http.StatusOK {
		return nil, statusErr(d.Key(), "search", status)
	}

	results := make([]models.SearchResult, 0, len(decoded.Products))
	for _, p := range decoded.Products {
		results = append(results, d.toSearchResult(p))
	}
	return results, nil
}

func (d *DigiKey) Details(ctx context.Context, id string) (*models.PartDetail, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: empty DigiKey product number", ErrInvalidArgument)
	}

	headers, err := d.authHeaders(ctx)
	if err != nil {
		return nil, err
	}

	d.limiter.Wait("digikey.com")

	detailURL := fmt.Sprintf("%s/products/v4/search/%s/productdetails", d.baseURL, url.PathEscape(id))

	var decoded struct {
		Product *digikeyProduct `json:"Product"`
	}
	status, err := getJSON(ctx, d.client, detailURL, headers, &decoded)
	if err != nil {
		return nil, transportErr(d.Key(), "details", err)
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, fmt.Errorf("%w: digikey rejected the token", ErrAuthentication)
	}
	if status != http.StatusOK {
		return nil, statusErr(d.Key(), "details", status)
	}
	if decoded.Product == nil || decoded.Product.ProductNumber == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	p := *decoded.Product
	detail := &models.PartDetail{
		SearchResult: d.toSearchResult(p),
		Category:     p.Category.Name,
		Notes:        p.Description.DetailedDescription,
	}

	if p.PhotoURL != "" {
		detail.Images = append(detail.Images, models.File{URL: p.PhotoURL, Name: p.ProductNumber})
	}
	if p.DatasheetURL != "" {
		detail.Datasheets = append(detail.Datasheets, models.File{URL: p.DatasheetURL, Name: p.ManufacturerProductNumber})
	}

	for _, param := range p.Parameters {
		dto := parsing.Parameter(param.ParameterText, param.ValueText)
		detail.Parameters = append(detail.Parameters, dto)
	}

	for _, variation := range p.ProductVariations {
		if len(variation.StandardPricing) == 0 {
			continue
		}
		info := models.PurchaseInfo{
			DistributorName: "DigiKey",
			OrderNumber:     variation.DigiKeyProductNumber,
			ProductURL:      p.ProductURL,
		}
		for _, tier := range variation.StandardPricing {
			info.Prices = append(info.Prices, models.Price{
				MinimumDiscountAmount: float64(tier.BreakQuantity),
				Price:                 strconv.FormatFloat(tier.UnitPrice, 'f', -1, 64),
				CurrencyISOCode:       d.currency,
			})
		}
		detail.VendorInfos = append(detail.VendorInfos, info)
	}

	return detail, nil
}

func (d *DigiKey) authHeaders(ctx context.Context) (map[string]string, error) {
	if d.tokens == nil {
		return nil, fmt.Errorf("%w: no token source configured", ErrAuthentication)
	}
	token, err := d.tokens.TokenString(ctx, OAuthAppDigiKey)
	if err != nil {
		if errors.Is(err, ErrAuthentication) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return map[string]string{
		"Authorization":             "Bearer " + token,
		"X-DIGIKEY-Client-Id":       d.clientID,
		"X-DIGIKEY-Locale-Site":     d.siteLocale,
		"X-DIGIKEY-Locale-Currency": d.currency,
	}, nil
}

func (d *DigiKey) toSearchResult(p digikeyProduct) models.SearchResult {
	status, ok := digikeyStatusMap[strings.ToLower(p.ProductStatus.Status)]
	if !ok {
		status = models.StatusNotSet
	}

	return models.SearchResult{
		ProviderKey:         d.Key(),
		ProviderID:          p.ProductNumber,
		Name:                p.ManufacturerProductNumber,
		Description:         p.Description.ProductDescription,
		Manufacturer:        p.Manufacturer.Name,
		MPN:                 p.ManufacturerProductNumber,
		PreviewImageURL:     p.PhotoURL,
		ManufacturingStatus: status,
		ProviderURL:         p.ProductURL,
	}
}

var _ Provider = (*DigiKey)(nil)
