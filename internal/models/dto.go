package models

// ManufacturingStatus is the normalized lifecycle state of a component
type ManufacturingStatus string

const (
	StatusNotSet       ManufacturingStatus = ""
	StatusActive       ManufacturingStatus = "active"
	StatusAnnounced    ManufacturingStatus = "announced"
	StatusNRFND        ManufacturingStatus = "nrfnd"
	StatusEOL          ManufacturingStatus = "eol"
	StatusDiscontinued ManufacturingStatus = "discontinued"
)

// Capability is a category of data a provider can supply
type Capability string

const (
	CapabilityBasic     Capability = "basic"
	CapabilityPicture   Capability = "picture"
	CapabilityDatasheet Capability = "datasheet"
	CapabilityPrice     Capability = "price"
	CapabilityFootprint Capability = "footprint"
)

// SearchResult is the lightweight record returned from a keyword search.
// (ProviderKey, ProviderID) is the dedup key used everywhere downstream;
// ProviderID is only unique within one provider.
type SearchResult struct {
	ProviderKey         string              `json:"provider_key"`
	ProviderID          string              `json:"provider_id"`
	Name                string              `json:"name"`
	Description         string              `json:"description,omitempty"`
	Manufacturer        string              `json:"manufacturer,omitempty"`
	MPN                 string              `json:"mpn,omitempty"`
	PreviewImageURL     string              `json:"preview_image_url,omitempty"`
	ManufacturingStatus ManufacturingStatus `json:"manufacturing_status,omitempty"`
	ProviderURL         string              `json:"provider_url,omitempty"`
}

// DedupKey identifies a result across providers
func (r SearchResult) DedupKey() string {
	return r.ProviderKey + "|" + r.ProviderID
}

// PartDetail is the full record returned from a detail fetch
type PartDetail struct {
	SearchResult

	Category               string         `json:"category,omitempty"`
	Footprint              string         `json:"footprint,omitempty"`
	Notes                  string         `json:"notes,omitempty"`
	Datasheets             []File         `json:"datasheets,omitempty"`
	Images                 []File         `json:"images,omitempty"`
	Parameters             []Parameter    `json:"parameters,omitempty"`
	VendorInfos            []PurchaseInfo `json:"vendor_infos,omitempty"`
	MassGrams              *float64       `json:"mass,omitempty"`
	ManufacturerProductURL string         `json:"manufacturer_product_url,omitempty"`
}

// File is a named URL, used for both datasheets and images
type File struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// Parameter is a named technical attribute: either free text, or a
// typical/min/max numeric triple with a unit
type Parameter struct {
	Name      string   `json:"name"`
	ValueText string   `json:"value_text,omitempty"`
	ValueTyp  *float64 `json:"value_typ,omitempty"`
	ValueMin  *float64 `json:"value_min,omitempty"`
	ValueMax  *float64 `json:"value_max,omitempty"`
	Unit      string   `json:"unit,omitempty"`
	Symbol    string   `json:"symbol,omitempty"`
	Group     string   `json:"group,omitempty"`
}

// Price is one quantity price break. Price is a decimal string to avoid
// float rounding on money values.
type Price struct {
	MinimumDiscountAmount float64 `json:"minimum_discount_amount"`
	Price                 string  `json:"price"`
	CurrencyISOCode       string  `json:"currency_iso_code"`
	IncludesTax           bool    `json:"includes_tax"`
	PriceRelatedQuantity  float64 `json:"price_related_quantity,omitempty"`
}

// PurchaseInfo is one distributor's purchasing info for a part. Prices are
// ordered ascending by quantity break.
type PurchaseInfo struct {
	DistributorName string  `json:"distributor_name"`
	OrderNumber     string  `json:"order_number"`
	Prices          []Price `json:"prices"`
	ProductURL      string  `json:"product_url,omitempty"`
}

// ProviderInfo is static metadata describing a provider
type ProviderInfo struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	LogoURL      string `json:"logo_url,omitempty"`
	URL          string `json:"url,omitempty"`
	DisabledHelp string `json:"disabled_help,omitempty"`
	OAuthAppName string `json:"oauth_app_name,omitempty"`
}
