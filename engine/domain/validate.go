package domain

import "errors"

// Validation sentinels.
var (
	ErrEmptyBody     = errors.New("body is empty")
	ErrNegativePrice = errors.New("price is negative")
	ErrBadArea       = errors.New("area must be positive")
	ErrNegativeCount = errors.New("count is negative")
	ErrBadDate       = errors.New("date is not ISO 8601")
)

// ValidateListing checks a Listing before indexing. A listing with an
// empty body is not indexable; numeric fields must hold their declared
// shape. Row context is attached by the caller, which knows the row index.
func ValidateListing(l Listing) error {
	if l.Body == "" {
		return ErrEmptyBody
	}
	if l.PriceVND < 0 {
		return ErrNegativePrice
	}
	if l.AreaM2 <= 0 {
		return ErrBadArea
	}
	if l.Bedrooms < 0 || l.Toilets < 0 {
		return ErrNegativeCount
	}
	return nil
}

// MetadataFrom copies listing fields into document metadata. Missing
// optional strings stay empty and numerics stay zero; by this point the
// record has already passed normalization, so defaulting beats rejection.
func MetadataFrom(l Listing, docName string) Metadata {
	return Metadata{
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
		DocName:        docName,
	}
}
