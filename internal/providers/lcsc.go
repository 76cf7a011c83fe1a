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

// LCSC queries the LCSC product search API. The API is keyless but gated by
// an enable flag; ids are LCSC product codes ("C" followed by digits).
type LCSC struct {
	enabled  bool
	currency string
	baseURL  string
	limiter  *ratelimit.Limiter
	client   *http.Client
}

// LCSCConfig holds LCSC provider settings
type LCSCConfig struct {
	Enabled  bool
	Currency string
	Timeout  time.Duration
}

// NewLCSC creates a new LCSC provider
func NewLCSC(cfg LCSCConfig, limiter *ratelimit.Limiter) *LCSC {
	currency := cfg.Currency
	if currency == "" {
		currency = "USD"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &LCSC{
		enabled:  cfg.Enabled,
		currency: currency,
		baseURL:  "https://wmsc.lcsc.com/wmsc",
		limiter:  limiter,
		client:   &http.Client{Timeout: timeout},
	}
}

func (l *LCSC) Key() string { return "lcsc" }

func (l *LCSC) Info() models.ProviderInfo {
	return models.ProviderInfo{
		Name:         "LCSC",
		Description:  "LCSC Electronics distributor API",
		URL:          "https://www.lcsc.com",
		DisabledHelp: "Enable the LCSC provider in the configuration.",
	}
}

func (l *LCSC) Active() bool { return l.enabled }

func (l *LCSC) Capabilities() []models.Capability {
	return []models.Capability{
		models.CapabilityBasic,
		models.CapabilityPicture,
		models.CapabilityDatasheet,
		models.CapabilityPrice,
		models.CapabilityFootprint,
	}
}

// lcscStatusMap maps LCSC product status vocabulary to the shared enum
var lcscStatusMap = map[string]models.ManufacturingStatus{
	"normal":         models.StatusActive,
	"under_ordering": models.StatusActive,
	"shortage":       models.StatusActive,
	"discontinued":   models.StatusDiscontinued,
	"stop":           models.StatusEOL,
}

type lcscProduct struct {
	ProductCode      string   `json:"productCode"`
	ProductModel     string   `json:"productModel"`
	BrandName        string   `json:"brandNameEn"`
	CatalogName      string   `json:"catalogName"`
	Description      string   `json:"productIntroEn"`
	ProductStatus    string   `json:"productStatus"`
	EncapStandard    string   `json:"encapStandard"`
	ProductImages    []string `json:"productImages"`
	PdfURL           string   `json:"pdfUrl"`
	ProductWeight    *float64 `json:"weight"`
	ProductPriceList []struct {
		Ladder        int     `json:"ladder"`
		UsdPrice      float64 `json:"usdPrice"`
		CurrencyPrice float64 `json:"currencyPrice"`
	} `json:"productPriceList"`
	ParamVOList []struct {
		ParamNameEn  string `json:"paramNameEn"`
		ParamValueEn string `json:"paramValueEn"`
	} `json:"paramVOList"`
}

type lcscSearchResponse struct {
	Result struct {
		ProductSearchResultVO struct {
			ProductList []lcscProduct `json:"productList"`
		} `json:"productSearchResultVO"`
		TipProductDetailUrlVO *lcscProduct `json:"tipProductDetailUrlVO"`
	} `json:"result"`
}

func (l *LCSC) SearchByKeyword(ctx context.Context, keyword string) ([]models.SearchResult, error) {
	if strings.TrimSpace(keyword) == "" {
		return []models.SearchResult{}, nil
	}

	l.limiter.Wait("lcsc.com")

	searchURL := fmt.Sprintf("%s/search/global?keyword=%s", l.baseURL, url.QueryEscape(keyword))

	var decoded lcscSearchResponse
	status, err := getJSON(ctx, l.client, searchURL, nil, &decoded)
	if err != nil {
		return nil, transportErr(l.Key(), "search", err)
	}
	if status != http.StatusOK {
		return nil, statusErr(l.Key(), "search", status)
	}

	products := decoded.Result.ProductSearchResultVO.ProductList
	if decoded.Result.TipProductDetailUrlVO != nil {
		products = append(products, *decoded.Result.TipProductDetailUrlVO)
	}

	results := make([]models.SearchResult, 0, len(products))
	for _, p := range products {
		results = append(results, l.toSearchResult(p))
	}
	return results, nil
}

// SearchByKeywordsBatch searches several keywords in one request. Every
// requested keyword appears as a key in the result, empty when nothing
// matched. On batch transport failure it falls back to individual searches.
func (l *LCSC) SearchByKeywordsBatch(ctx context.Context, keywords []string) (map[string][]models.SearchResult, error) {
	out := make(map[string][]models.SearchResult, len(keywords))
	if len(keywords) == 0 {
		return out, nil
	}

	l.limiter.Wait("lcsc.com")

	body := map[string]interface{}{"keywords": keywords}

	var decoded struct {
		Result map[string][]lcscProduct `json:"result"`
	}
	status, err := postJSON(ctx, l.client, l.baseURL+"/search/batch", nil, body, &decoded)
	if err != nil || status != http.StatusOK {
		return l.batchFallback(ctx, keywords)
	}

	for _, kw := range keywords {
		results := make([]models.SearchResult, 0, len(decoded.Result[kw]))
		for _, p := range decoded.Result[kw] {
			results = append(results, l.toSearchResult(p))
		}
		out[kw] = results
	}
	return out, nil
}

func (l *LCSC) batchFallback(ctx context.Context, keywords []string) (map[string][]models.SearchResult, error) {
	out := make(map[string][]models.SearchResult, len(keywords))
	for _, kw := range keywords {
		results, err := l.SearchByKeyword(ctx, kw)
		if err != nil {
			return nil, err
		}
		out[kw] = results
	}
	return out, nil
}

func (l *LCSC) Details(ctx context.Context, id string) (*models.PartDetail, error) {
	id = strings.TrimSpace(id)
	if !isLCSCProductCode(id) {
		return nil, fmt.Errorf("%w: %q is not an LCSC product code", ErrInvalidArgument, id)
	}

	l.limiter.Wait("lcsc.com")

	detailURL := fmt.Sprintf("%s/product/detail?productCode=%s", l.baseURL, url.QueryEscape(id))

	var decoded struct {
		Result *lcscProduct `json:"result"`
	}
	status, err := getJSON(ctx, l.client, detailURL, nil, &decoded)
	if err != nil {
		return nil, transportErr(l.Key(), "details", err)
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if status != http.StatusOK {
		return nil, statusErr(l.Key(), "details", status)
	}
	if decoded.Result == nil || decoded.Result.ProductCode == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	p := *decoded.Result
	detail := &models.PartDetail{
		SearchResult: l.toSearchResult(p),
		Category:     p.CatalogName,
		Footprint:    p.EncapStandard,
		MassGrams:    p.ProductWeight,
	}

	for i, img := range p.ProductImages {
		detail.Images = append(detail.Images, models.File{
			URL:  img,
			Name: fmt.Sprintf("%s-%d", p.ProductCode, i+1),
		})
	}
	if p.PdfURL != "" {
		detail.Datasheets = append(detail.Datasheets, models.File{URL: p.PdfURL, Name: p.ProductModel})
	}

	for _, param := range p.ParamVOList {
		detail.Parameters = append(detail.Parameters, parsing.Parameter(param.ParamNameEn, param.ParamValueEn))
	}

	if len(p.ProductPriceList) > 0 {
		info := models.PurchaseInfo{
			DistributorName: "LCSC",
			OrderNumber:     p.ProductCode,
			ProductURL:      l.productURL(p.ProductCode),
		}
		for _, tier := range p.ProductPriceList {
			price := tier.CurrencyPrice
			if price == 0 {
				price = tier.UsdPrice
			}
			info.Prices = append(info.Prices, models.Price{
				MinimumDiscountAmount: float64(tier.Ladder),
				Price:                 strconv.FormatFloat(price, 'f', -1, 64),
				CurrencyISOCode:       l.currency,
			})
		}
		detail.VendorInfos = append(detail.VendorInfos, info)
	}

	return detail, nil
}

func (l *LCSC) toSearchResult(p lcscProduct) models.SearchResult {
	var preview string
	if len(p.ProductImages) > 0 {
		preview = p.ProductImages[0]
	}

	status, ok := lcscStatusMap[strings.ToLower(p.ProductStatus)]
	if !ok {
		status = models.StatusNotSet
	}

	return models.SearchResult{
		ProviderKey:         l.Key(),
		ProviderID:          p.ProductCode,
		Name:                p.ProductModel,
		Description:         p.Description,
		Manufacturer:        p.BrandName,
		MPN:                 p.ProductModel,
		PreviewImageURL:     preview,
		ManufacturingStatus: status,
		ProviderURL:         l.productURL(p.ProductCode),
	}
}

func (l *LCSC) productURL(code string) string {
	return "https://www.lcsc.com/product-detail/" + url.PathEscape(code) + ".html"
}

func isLCSCProductCode(id string) bool {
	if len(id) < 2 || (id[0] != 'C' && id[0] != 'c') {
		return false
	}
	for _, r := range id[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var (
	_ Provider      = (*LCSC)(nil)
	_ BatchSearcher = (*LCSC)(nil)
)
