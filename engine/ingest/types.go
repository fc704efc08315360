package ingest

import "github.com/FixwellAI/fixwell-mvp/engine/domain"

const (
	// IngestSubject is the NATS subject for incoming raw listings.
	IngestSubject = "catalog.ingest"
	// DLQSubject is the dead letter queue subject for failed messages.
	DLQSubject = "catalog.ingest.dlq"
	// MaxRetries before sending to DLQ.
	MaxRetries = 3
)

// RawListing is one scraped vendor record, one part per listing. Field
// shapes follow the vendor feed: currency-prefixed price string, free-text
// stock status, relation names as lowercase words.
type RawListing struct {
	Name               string           `json:"name"`
	URL                string           `json:"url"`
	ImageURL           string           `json:"image_url"`
	PartselectNumber   string           `json:"partselect_number"`
	ManufacturerNumber string           `json:"manufacturer_number"`
	Price              string           `json:"price"`
	StockStatus        string           `json:"stock_status"`
	Rating             string           `json:"rating"`
	ReviewsCount       int              `json:"reviews_count"`
	Description        string           `json:"description"`
	ApplianceType      string           `json:"appliance_type"`
	Brand              string           `json:"brand"`
	CompatibleModels   []string         `json:"compatible_models"`
	Videos             []VideoRef       `json:"videos"`
	CrossReferences    []CrossReference `json:"cross_references"`
}

// VideoRef is an installation video reference on a listing.
type VideoRef struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// CrossReference links a listing to another part by number.
type CrossReference struct {
	Relation   string `json:"relation"`
	PartNumber string `json:"part_number"`
}

// NormalizedListing is a raw listing after normalization: a validated Part
// plus its owned videos and outgoing compatibility edges.
type NormalizedListing struct {
	Part   domain.Part
	Videos []domain.InstallationVideo
	Edges  []domain.CompatibilityEdge
}
