package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/partscout/partscout/internal/models"
	"github.com/partscout/partscout/internal/parsing"
	"github.com/partscout/partscout/internal/ratelimit"
)

// TME queries the TME Developer API. Every request carries an HMAC-SHA1
// signature over the sorted form parameters, as required by the API.
type TME struct {
	token    string
	secret   string
	country  string
	language string
	currency string
	baseURL  string
	limiter  *ratelimit.Limiter
	client   *http.Client
}

// TMEConfig holds TME provider settings
type TMEConfig struct {
	Token    string
	Secret   string
	Country  string
	Language string
	Currency string
	Timeout  time.Duration
}

// NewTME creates a new TME provider
func NewTME(cfg TMEConfig, limiter *ratelimit.Limiter) *TME {
	country := cfg.Country
	if country == "" {
		country = "US"
	}
	language := cfg.Language
	if language == "" {
		language = "EN"
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "USD"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &TME{
		token:    cfg.Token,
		secret:   cfg.Secret,
		country:  country,
		language: language,
		currency: currency,
		baseURL:  "https://api.tme.eu",
		limiter:  limiter,
		client:   &http.Client{Timeout: timeout},
	}
}

func (t *TME) Key() string { return "tme" }

func (t *TME) Info() models.ProviderInfo {
	return models.ProviderInfo{
		Name:         "TME",
		Description:  "Transfer Multisort Elektronik developer API",
		URL:          "https://www.tme.eu",
		DisabledHelp: "Set the TME API token and secret to enable this provider.",
	}
}

func (t *TME) Active() bool { return t.token != "" && t.secret != "" }

func (t *TME) Capabilities() []models.Capability {
	return []models.Capability{
		models.CapabilityBasic,
		models.CapabilityPicture,
		models.CapabilityDatasheet,
		models.CapabilityPrice,
	}
}

type tmeProduct struct {
	Symbol            string   `json:"Symbol"`
	OriginalSymbol    string   `json:"OriginalSymbol"`
	Producer          string   `json:"Producer"`
	Description       string   `json:"Description"`
	Photo             string   `json:"Photo"`
	ProductStatusList []string `json:"ProductStatusList"`
	Category          string   `json:"Category"`
}

func (t *TME) SearchByKeyword(ctx context.Context, keyword string) ([]models.SearchResult, error) {
	if strings.TrimSpace(keyword) == "" {
		return []models.SearchResult{}, nil
	}

	t.limiter.Wait("tme.eu")

	params := url.Values{}
	params.Set("SearchPlain", keyword)
	params.Set("SearchOrder", "ACCURACY")

	var decoded struct {
		Data struct {
			ProductList []tmeProduct `json:"ProductList"`
		} `json:"Data"`
	}
	if err := t.call(ctx, "/Products/Search.json", params, &decoded); err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(decoded.Data.ProductList))
	for _, p := range decoded.Data.ProductList {
		results = append(results, t.toSearchResult(p))
	}
	return results, nil
}

func (t *TME) Details(ctx context.Context, id string) (*models.PartDetail, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: empty TME symbol", ErrInvalidArgument)
	}

	t.limiter.Wait("tme.eu")

	params := url.Values{}
	params.Set("SymbolList[0]", id)

	var decoded struct {
		Data struct {
			ProductList []tmeProduct `json:"ProductList"`
		} `json:"Data"`
	}
	if err := t.call(ctx, "/Products/GetProducts.json", params, &decoded); err != nil {
		return nil, err
	}
	if len(decoded.Data.ProductList) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	p := decoded.Data.ProductList[0]
	detail := &models.PartDetail{
		SearchResult: t.toSearchResult(p),
		Category:     p.Category,
	}

	if p.Photo != "" {
		detail.Images = append(detail.Images, models.File{URL: absoluteTMEURL(p.Photo), Name: p.Symbol})
	}

	// Parameters, files and prices come from dedicated endpoints
	t.attachParameters(ctx, id, detail)
	t.attachFiles(ctx, id, detail)
	t.attachPrices(ctx, id, detail)

	return detail, nil
}

func (t *TME) attachParameters(ctx context.Context, id string, detail *models.PartDetail) {
	params := url.Values{}
	params.Set("SymbolList[0]", id)

	var decoded struct {
		Data struct {
			ProductList []struct {
				ParameterList []struct {
					ParameterName  string `json:"ParameterName"`
					ParameterValue string `json:"ParameterValue"`
				} `json:"ParameterList"`
			} `json:"ProductList"`
		} `json:"Data"`
	}
	if err := t.call(ctx, "/Products/GetParameters.json", params, &decoded); err != nil {
		return
	}
	if len(decoded.Data.ProductList) == 0 {
		return
	}
	for _, param := range decoded.Data.ProductList[0].ParameterList {
		detail.Parameters = append(detail.Parameters, parsing.Parameter(param.ParameterName, param.ParameterValue))
	}
}

func (t *TME) attachFiles(ctx context.Context, id string, detail *models.PartDetail) {
	params := url.Values{}
	params.Set("SymbolList[0]", id)

	var decoded struct {
		Data struct {
			ProductList []struct {
				Files struct {
					DocumentList []struct {
						DocumentURL  string `json:"DocumentUrl"`
						DocumentType string `json:"DocumentType"`
					} `json:"DocumentList"`
				} `json:"Files"`
			} `json:"ProductList"`
		} `json:"Data"`
	}
	if err := t.call(ctx, "/Products/GetProductsFiles.json", params, &decoded); err != nil {
		return
	}
	if len(decoded.Data.ProductList) == 0 {
		return
	}
	for _, doc := range decoded.Data.ProductList[0].Files.DocumentList {
		if strings.EqualFold(doc.DocumentType, "DTE") || strings.EqualFold(doc.DocumentType, "INS") {
			detail.Datasheets = append(detail.Datasheets, models.File{
				URL:  absoluteTMEURL(doc.DocumentURL),
				Name: detail.Name,
			})
		}
	}
}

func (t *TME) attachPrices(ctx context.Context, id string, detail *models.PartDetail) {
	params := url.Values{}
	params.Set("SymbolList[0]", id)
	params.Set("Currency", t.currency)
	params.Set("GrossPrices", "false")

	var decoded struct {
		Data struct {
			ProductList []struct {
				PriceList []struct {
					Amount     int     `json:"Amount"`
					PriceValue float64 `json:"PriceValue"`
				} `json:"PriceList"`
			} `json:"ProductList"`
		} `json:"Data"`
	}
	if err := t.call(ctx, "/Products/GetPrices.json", params, &decoded); err != nil {
		return
	}
	if len(decoded.Data.ProductList) == 0 || len(decoded.Data.ProductList[0].PriceList) == 0 {
		return
	}

	info := models.PurchaseInfo{
		DistributorName: "TME",
		OrderNumber:     id,
		ProductURL:      detail.ProviderURL,
	}
	for _, tier := range decoded.Data.ProductList[0].PriceList {
		info.Prices = append(info.Prices, models.Price{
			MinimumDiscountAmount: float64(tier.Amount),
			Price:                 strconv.FormatFloat(tier.PriceValue, 'f', -1, 64),
			CurrencyISOCode:       t.currency,
		})
	}
	detail.VendorInfos = append(detail.VendorInfos, info)
}

// call signs and performs one TME API request. The signature base is the
// uppercase method, the encoded URL and the sorted form parameters, HMAC-SHA1
// signed with the app secret and base64 encoded.
func (t *TME) call(ctx context.Context, path string, params url.Values, out interface{}) error {
	endpoint := t.baseURL + path

	params.Set("Token", t.token)
	params.Set("Country", t.country)
	params.Set("Language", t.language)
	params.Set("Signature", t.sign(http.MethodPost, endpoint, params))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return transportErr(t.Key(), path, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return transportErr(t.Key(), path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: tme rejected the signature", ErrAuthentication)
	}
	if resp.StatusCode != http.StatusOK {
		return statusErr(t.Key(), path, resp.StatusCode)
	}

	if err := decodeJSONBody(resp, out); err != nil {
		return transportErr(t.Key(), path, err)
	}
	return nil
}

func (t *TME) sign(method, endpoint string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "Signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var pairs []string
	for _, k := range keys {
		pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(params.Get(k)))
	}

	base := strings.ToUpper(method) + "&" + url.QueryEscape(endpoint) + "&" + url.QueryEscape(strings.Join(pairs, "&"))

	mac := hmac.New(sha1.New, []byte(t.secret))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (t *TME) toSearchResult(p tmeProduct) models.SearchResult {
	status := models.StatusActive
	for _, s := range p.ProductStatusList {
		switch strings.ToLower(s) {
		case "cannot_be_ordered", "not_in_offer":
			status = models.StatusDiscontinued
		case "phased_out", "no_longer_manufactured":
			status = models.StatusEOL
		}
	}

	name := p.OriginalSymbol
	if name == "" {
		name = p.Symbol
	}

	return models.SearchResult{
		ProviderKey:         t.Key(),
		ProviderID:          p.Symbol,
		Name:                name,
		Description:         p.Description,
		Manufacturer:        p.Producer,
		MPN:                 p.OriginalSymbol,
		PreviewImageURL:     absoluteTMEURL(p.Photo),
		ManufacturingStatus: status,
		ProviderURL:         "https://www.tme.eu/en/details/" + url.PathEscape(p.Symbol) + "/",
	}
}

func absoluteTMEURL(u string) string {
	if u == "" || strings.HasPrefix(u, "http") {
		return u
	}
	return "https:" + u
}

var _ Provider = (*TME)(nil)
