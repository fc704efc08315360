package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/FixwellAI/fixwell-mvp/engine/domain"
	"github.com/FixwellAI/fixwell-mvp/pkg/fn"
	"github.com/google/uuid"
)

// parsePrice splits a vendor price string like "$34.95" into a numeric
// amount and a currency prefix. Unparseable prices come back as 0.
func parsePrice(s string) (float64, string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, "$"
	}

	currency := "$"
	i := 0
	for i < len(s) && (s[i] < '0' || s[i] > '9') {
		i++
	}
	if i == len(s) {
		// No digits at all ("Call for price").
		return 0, currency
	}
	if i > 0 {
		currency = strings.TrimSpace(s[:i])
		if currency == "" {
			currency = "$"
		}
	}

	num := strings.ReplaceAll(s[i:], ",", "")
	amount, err := strconv.ParseFloat(num, 64)
	if err != nil || amount < 0 {
		return 0, currency
	}
	return amount, currency
}

// stockStatusOf maps vendor stock text to the stock enum.
func stockStatusOf(s string) domain.StockStatus {
	t := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.Contains(t, "in stock"):
		return domain.StockInStock
	case strings.Contains(t, "out of stock"),
		strings.Contains(t, "unavailable"),
		strings.Contains(t, "no longer available"),
		strings.Contains(t, "discontinued"):
		return domain.StockOutOfStock
	default:
		return domain.StockUnknown
	}
}

// deriveKey computes the stable part_id for a listing: manufacturer
// number, else partselect number, else a UUIDv5 of (name, appliance type).
// Reruns of the same source item always derive the same key.
func deriveKey(l RawListing) (string, error) {
	if n := strings.ToUpper(strings.TrimSpace(l.ManufacturerNumber)); n != "" {
		return n, nil
	}
	if n := strings.ToUpper(strings.TrimSpace(l.PartselectNumber)); n != "" {
		return n, nil
	}
	name := strings.TrimSpace(l.Name)
	if name == "" {
		return "", fmt.Errorf("listing %q: %w", l.URL, domain.ErrMissingIdentity)
	}
	seed := "part:" + strings.ToLower(name) + "|" + strings.ToLower(strings.TrimSpace(l.ApplianceType))
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed)).String(), nil
}

// videoID derives a deterministic video identity from its owner and URL.
func videoID(partID, url string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("video:"+partID+"|"+url)).String()
}

// parseRelation maps vendor relation text to the relation enum.
func parseRelation(s string) (domain.Relation, bool) {
	rel := domain.Relation(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_"))
	if domain.ValidRelations[rel] {
		return rel, true
	}
	return "", false
}

// Normalize converts a raw listing into a validated part with its videos
// and edges. Invalid videos and cross references are dropped rather than
// failing the listing; an invalid part fails the whole listing.
func Normalize(l RawListing) (NormalizedListing, error) {
	partID, err := deriveKey(l)
	if err != nil {
		return NormalizedListing{}, err
	}

	price, currency := parsePrice(l.Price)
	appliance, _ := domain.CanonicalApplianceType(l.ApplianceType)

	models := fn.Map(l.CompatibleModels, func(m string) string {
		return strings.ToUpper(strings.TrimSpace(m))
	})
	models = fn.Unique(fn.Filter(models, func(m string) bool { return m != "" }))

	part := domain.Part{
		PartID:             partID,
		Name:               strings.TrimSpace(l.Name),
		ManufacturerNumber: strings.ToUpper(strings.TrimSpace(l.ManufacturerNumber)),
		PartselectNumber:   strings.ToUpper(strings.TrimSpace(l.PartselectNumber)),
		Price:              price,
		Currency:           currency,
		ImageURL:           strings.TrimSpace(l.ImageURL),
		Description:        strings.TrimSpace(l.Description),
		DetailURL:          strings.TrimSpace(l.URL),
		StockStatus:        stockStatusOf(l.StockStatus),
		ApplianceType:      appliance,
		Brand:              strings.TrimSpace(l.Brand),
		CompatibleModels:   models,
		Rating:             strings.TrimSpace(l.Rating),
		ReviewCount:        l.ReviewsCount,
	}
	if err := domain.ValidatePart(part); err != nil {
		return NormalizedListing{}, err
	}

	var videos []domain.InstallationVideo
	for _, ref := range l.Videos {
		v := domain.InstallationVideo{
			VideoID:  videoID(partID, ref.URL),
			PartID:   partID,
			VideoURL: strings.TrimSpace(ref.URL),
			Title:    strings.TrimSpace(ref.Title),
		}
		if domain.ValidateVideo(v) == nil {
			videos = append(videos, v)
		}
	}

	var edges []domain.CompatibilityEdge
	for _, cr := range l.CrossReferences {
		rel, ok := parseRelation(cr.Relation)
		if !ok {
			continue
		}
		e := domain.CompatibilityEdge{
			FromPartID: partID,
			ToPartID:   strings.ToUpper(strings.TrimSpace(cr.PartNumber)),
			Relation:   rel,
		}
		if domain.ValidateEdge(e) == nil {
			edges = append(edges, e)
		}
	}

	return NormalizedListing{Part: part, Videos: videos, Edges: edges}, nil
}
