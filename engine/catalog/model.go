// Package catalog provides Neo4j-backed storage for the appliance parts catalog.
package catalog

import "github.com/FixwellAI/fixwell-mvp/engine/domain"

// Filter is a conjunction of exact-match predicates for FindParts. Zero
// fields are skipped; NameTokens are matched as case-insensitive
// substrings of the part name or description.
type Filter struct {
	ApplianceType string
	Brand         string
	StockStatus   domain.StockStatus
	ModelNumber   string
	NameTokens    []string
	Limit         int
}

// MaxResults bounds every FindParts query.
const MaxResults = 10

// BrandStats holds the part count for one brand.
type BrandStats struct {
	Brand string `json:"brand"`
	Parts int64  `json:"parts"`
}
