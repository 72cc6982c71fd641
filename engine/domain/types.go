// Package domain defines the core listing and document types shared by the
// engine pipeline. It acts as the validation gate at pipeline entry points.
package domain

// Listing is one canonical real-estate listing record.
type Listing struct {
	Title          string  `json:"title"`
	DatePosted     string  `json:"date_posted"` // ISO 8601, YYYY-MM-DD
	PriceVND       float64 `json:"price_vnd"`
	AreaM2         float64 `json:"area"`
	PricePerArea   float64 `json:"price_per_area"`
	Bedrooms       int     `json:"bedrooms"`
	Toilets        int     `json:"toilets"`
	Direction      string  `json:"direction"`
	DistrictCounty string  `json:"district_county"`
	ProvinceCity   string  `json:"province_city"`
	URL            string  `json:"url"`
	Body           string  `json:"-"` // searchable description, stored as document content
}

// Document is the indexable unit: listing body plus flattened metadata and
// a freshly assigned identifier. The ID is random, never content-derived.
type Document struct {
	ID       string
	Content  string
	Metadata Metadata
}

// Metadata is the payload stored next to each document vector. It carries
// every Listing field except the body, plus the source document name.
type Metadata struct {
	Title          string  `json:"title"`
	DatePosted     string  `json:"date_posted"`
	PriceVND       float64 `json:"price_vnd"`
	AreaM2         float64 `json:"area"`
	PricePerArea   float64 `json:"price_per_area"`
	Bedrooms       int     `json:"bedrooms"`
	Toilets        int     `json:"toilets"`
	Direction      string  `json:"direction"`
	DistrictCounty string  `json:"district_county"`
	ProvinceCity   string  `json:"province_city"`
	URL            string  `json:"url"`
	DocName        string  `json:"doc_name"`
}

// Message is one turn of conversation history passed to the answering
// service. History is always an explicit value, never ambient state.
type Message struct {
	Role    string `json:"role"` // "human" or "assistant"
	Content string `json:"content"`
}
