package normalize

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/HomeGenieAI/homegenie-engine/engine/domain"
)

// Record is the persisted normalized form: the contract between the
// normalizer's output and the indexing pipeline's input.
type Record struct {
	PageContent string     `json:"page_content"`
	Metadata    RecordMeta `json:"metadata"`
}

// RecordMeta holds the canonical metadata keys of a normalized record.
type RecordMeta struct {
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
}

// RecordFromListing converts a canonical listing to its persisted form.
func RecordFromListing(l domain.Listing) Record {
	return Record{
		PageContent: l.Body,
		Metadata: RecordMeta{
			Title:          l.Title,
			DatePosted:     l.DatePosted,
			PriceVND:       l.PriceVND,
			AreaM2:         l.AreaM2,
			PricePerArea:   l.PricePerArea,
			Bedrooms:       l.Bedrooms,
			Toilets:        l.Toilets,
			Direction:      l.Direction,
			DistrictCounty: l.DistrictCounty,
			ProvinceCity:   l.ProvinceCity,
			URL:            l.URL,
		},
	}
}

// Listing converts a persisted record back to the canonical shape.
func (r Record) Listing() domain.Listing {
	m := r.Metadata
	return domain.Listing{
		Title:          m.Title,
		DatePosted:     m.DatePosted,
		PriceVND:       m.PriceVND,
		AreaM2:         m.AreaM2,
		PricePerArea:   m.PricePerArea,
		Bedrooms:       m.Bedrooms,
		Toilets:        m.Toilets,
		Direction:      m.Direction,
		DistrictCounty: m.DistrictCounty,
		ProvinceCity:   m.ProvinceCity,
		URL:            m.URL,
		Body:           r.PageContent,
	}
}

// ReadRecords decodes a normalized JSON array.
func ReadRecords(r io.Reader) ([]Record, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("normalize: decode records: %w", err)
	}
	return records, nil
}

// WriteRecords encodes records as an indented JSON array. Persistence is a
// caller concern; the normalizer itself never writes files.
func WriteRecords(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("normalize: encode records: %w", err)
	}
	return nil
}
