package catalog

import (
	"github.com/FixwellAI/fixwell-mvp/engine/domain"
	"github.com/FixwellAI/fixwell-mvp/pkg/repo"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// newPartReader wires the typed node reader for Part nodes.
func newPartReader(driver neo4j.DriverWithContext) *repo.Neo[domain.Part] {
	return repo.NewNeo[domain.Part](
		driver,
		"Part",
		partFromRecord,
		repo.WithIDKey[domain.Part]("part_id"),
	)
}

func partToMap(p domain.Part) map[string]any {
	return map[string]any{
		"part_id":                  p.PartID,
		"name":                     p.Name,
		"manufacturer_number":      p.ManufacturerNumber,
		"partselect_number":        p.PartselectNumber,
		"price":                    p.Price,
		"currency":                 p.Currency,
		"image_url":                p.ImageURL,
		"description":              p.Description,
		"detail_url":               p.DetailURL,
		"stock_status":             string(p.StockStatus),
		"appliance_type":           p.ApplianceType,
		"brand":                    p.Brand,
		"compatible_model_numbers": p.CompatibleModels,
		"rating":                   p.Rating,
		"review_count":             p.ReviewCount,
	}
}

func partFromRecord(rec *neo4j.Record) (domain.Part, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return domain.Part{}, err
	}
	return partFromProps(node.Props), nil
}

func partFromProps(props map[string]any) domain.Part {
	return domain.Part{
		PartID:             strProp(props, "part_id"),
		Name:               strProp(props, "name"),
		ManufacturerNumber: strProp(props, "manufacturer_number"),
		PartselectNumber:   strProp(props, "partselect_number"),
		Price:              floatProp(props, "price"),
		Currency:           strProp(props, "currency"),
		ImageURL:           strProp(props, "image_url"),
		Description:        strProp(props, "description"),
		DetailURL:          strProp(props, "detail_url"),
		StockStatus:        domain.StockStatus(strProp(props, "stock_status")),
		ApplianceType:      strProp(props, "appliance_type"),
		Brand:              strProp(props, "brand"),
		CompatibleModels:   strSliceProp(props, "compatible_model_numbers"),
		Rating:             strProp(props, "rating"),
		ReviewCount:        intProp(props, "review_count"),
	}
}

func videoFromProps(props map[string]any) domain.InstallationVideo {
	return domain.InstallationVideo{
		VideoID:  strProp(props, "video_id"),
		PartID:   strProp(props, "part_id"),
		VideoURL: strProp(props, "video_url"),
		Title:    strProp(props, "title"),
	}
}

func strProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// floatProp handles both float and integer storage; the driver returns
// int64 for whole numbers written as ints.
func floatProp(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

func intProp(props map[string]any, key string) int {
	switch v := props[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func strSliceProp(props map[string]any, key string) []string {
	raw, ok := props[key]
	if !ok {
		return nil
	}
	switch vs := raw.(type) {
	case []string:
		return vs
	case []any:
		out := make([]string, 0, len(vs))
		for _, v := range vs {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
