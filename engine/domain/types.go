// Package domain defines core domain types, constants, and validation for the
// Fixwell engine pipeline. It acts as the validation gate at pipeline entry points.
package domain

import "time"

// StockStatus describes a part's availability at the last ingestion run.
type StockStatus string

const (
	StockInStock    StockStatus = "in_stock"
	StockOutOfStock StockStatus = "out_of_stock"
	StockUnknown    StockStatus = "unknown"
)

// ValidStockStatuses is the set of recognised stock statuses.
var ValidStockStatuses = map[StockStatus]bool{
	StockInStock: true, StockOutOfStock: true, StockUnknown: true,
}

// StockRank orders statuses for result sorting: in stock first, unknown
// next, out of stock last.
func StockRank(s StockStatus) int {
	switch s {
	case StockInStock:
		return 2
	case StockUnknown:
		return 1
	default:
		return 0
	}
}

// Part is one catalog record. PartID is immutable identity; every other
// field is replaced on re-ingestion of the same source item.
type Part struct {
	PartID             string      `json:"part_id"`
	Name               string      `json:"name"`
	ManufacturerNumber string      `json:"manufacturer_number,omitempty"`
	PartselectNumber   string      `json:"partselect_number,omitempty"`
	Price              float64     `json:"price"`
	Currency           string      `json:"currency,omitempty"` // display prefix, "$" when empty
	ImageURL           string      `json:"image_url,omitempty"`
	Description        string      `json:"description,omitempty"`
	DetailURL          string      `json:"detail_url,omitempty"`
	StockStatus        StockStatus `json:"stock_status"`
	ApplianceType      string      `json:"appliance_type,omitempty"`
	Brand              string      `json:"brand,omitempty"`
	CompatibleModels   []string    `json:"compatible_model_numbers,omitempty"`
	Rating             string      `json:"rating,omitempty"` // e.g. "4.5/5"
	ReviewCount        int         `json:"review_count,omitempty"`
}

// InstallationVideo documents how to install a part. Owned by its Part:
// removed when the owning Part is removed.
type InstallationVideo struct {
	VideoID  string `json:"video_id"`
	PartID   string `json:"part_id"`
	VideoURL string `json:"video_url"`
	Title    string `json:"title,omitempty"`
}

// Relation classifies a compatibility edge between two parts.
type Relation string

const (
	RelationReplaces       Relation = "replaces"
	RelationCompatibleWith Relation = "compatible_with"
	RelationRequires       Relation = "requires"
)

// ValidRelations is the set of recognised edge relations.
var ValidRelations = map[Relation]bool{
	RelationReplaces: true, RelationCompatibleWith: true, RelationRequires: true,
}

// CompatibilityEdge is a directed relation between two parts. A replaces
// edge from A to B says nothing about B replacing A; the reverse is a
// distinct edge.
type CompatibilityEdge struct {
	FromPartID string   `json:"from_part_id"`
	ToPartID   string   `json:"to_part_id"`
	Relation   Relation `json:"relation"`
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one turn of client-supplied history. Turns are
// immutable once received; the engine appends, never rewrites.
type ConversationTurn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}
