package semantic

import (
	pb "github.com/qdrant/go-client/qdrant"

	"github.com/HomeGenieAI/homegenie-engine/engine/domain"
)

// Payload keys. The canonical key for listing area is "area".
const (
	keyContent        = "content"
	keyTitle          = "title"
	keyDatePosted     = "date_posted"
	keyPriceVND       = "price_vnd"
	keyArea           = "area"
	keyPricePerArea   = "price_per_area"
	keyBedrooms       = "bedrooms"
	keyToilets        = "toilets"
	keyDirection      = "direction"
	keyDistrictCounty = "district_county"
	keyProvinceCity   = "province_city"
	keyURL            = "url"
	keyDocName        = "doc_name"
)

func strVal(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func intVal(n int) *pb.Value {
	return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(n)}}
}

func dblVal(f float64) *pb.Value {
	return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: f}}
}

// payloadFrom flattens content and listing metadata into a typed Qdrant
// payload.
func payloadFrom(content string, m domain.Metadata) map[string]*pb.Value {
	return map[string]*pb.Value{
		keyContent:        strVal(content),
		keyTitle:          strVal(m.Title),
		keyDatePosted:     strVal(m.DatePosted),
		keyPriceVND:       dblVal(m.PriceVND),
		keyArea:           dblVal(m.AreaM2),
		keyPricePerArea:   dblVal(m.PricePerArea),
		keyBedrooms:       intVal(m.Bedrooms),
		keyToilets:        intVal(m.Toilets),
		keyDirection:      strVal(m.Direction),
		keyDistrictCounty: strVal(m.DistrictCounty),
		keyProvinceCity:   strVal(m.ProvinceCity),
		keyURL:            strVal(m.URL),
		keyDocName:        strVal(m.DocName),
	}
}

func contentFrom(p map[string]*pb.Value) string {
	return p[keyContent].GetStringValue()
}

// metaFrom rebuilds listing metadata from a point payload.
func metaFrom(p map[string]*pb.Value) domain.Metadata {
	return domain.Metadata{
		Title:          p[keyTitle].GetStringValue(),
		DatePosted:     p[keyDatePosted].GetStringValue(),
		PriceVND:       p[keyPriceVND].GetDoubleValue(),
		AreaM2:         p[keyArea].GetDoubleValue(),
		PricePerArea:   p[keyPricePerArea].GetDoubleValue(),
		Bedrooms:       int(p[keyBedrooms].GetIntegerValue()),
		Toilets:        int(p[keyToilets].GetIntegerValue()),
		Direction:      p[keyDirection].GetStringValue(),
		DistrictCounty: p[keyDistrictCounty].GetStringValue(),
		ProvinceCity:   p[keyProvinceCity].GetStringValue(),
		URL:            p[keyURL].GetStringValue(),
		DocName:        p[keyDocName].GetStringValue(),
	}
}
