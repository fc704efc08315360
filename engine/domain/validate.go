package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Injection patterns that should never appear in user input or scraped
// listing text.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(DROP|DELETE|INSERT|UPDATE|ALTER|EXEC|UNION)\b.*\b(TABLE|FROM|INTO|SELECT|SET)\b`),
	regexp.MustCompile(`(?i)(--|;)\s*(DROP|DELETE|SELECT|MATCH|MERGE)`),
	regexp.MustCompile(`(?i)\$\{.*\}`),
	regexp.MustCompile(`(?i)<\s*script`),
	regexp.MustCompile(`(?i)javascript\s*:`),
}

const minUtteranceLength = 2

// ContainsInjection reports whether text matches any injection pattern.
// Ingestion uses it to screen raw listings before normalization.
func ContainsInjection(text string) bool {
	for _, pat := range injectionPatterns {
		if pat.MatchString(text) {
			return true
		}
	}
	return false
}

// ValidateUtterance checks an inbound chat query before classification.
func ValidateUtterance(text string) error {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < minUtteranceLength {
		return NewValidationError("query", trimmed, ErrQueryTooShort)
	}
	if ContainsInjection(trimmed) {
		return NewValidationError("query", trimmed, ErrQueryInjection)
	}
	return nil
}

// ValidateTurns checks client-supplied history: roles must be known and
// content non-empty. Order is taken as given; the client owns ordering.
func ValidateTurns(turns []ConversationTurn) error {
	for _, t := range turns {
		if t.Role != RoleUser && t.Role != RoleAssistant {
			return NewValidationError("role", string(t.Role), ErrInvalidRole)
		}
		if strings.TrimSpace(t.Content) == "" {
			return NewValidationError("content", "", ErrQueryTooShort)
		}
	}
	return nil
}

// ValidatePart checks a normalized Part before it is written to the store.
func ValidatePart(p Part) error {
	if p.PartID == "" {
		return NewValidationError("part_id", "", ErrInvalidPart)
	}
	if strings.TrimSpace(p.Name) == "" {
		return NewValidationError("name", p.Name, ErrInvalidPart)
	}
	if !ValidStockStatuses[p.StockStatus] {
		return NewValidationError("stock_status", string(p.StockStatus), ErrInvalidStockStatus)
	}
	if p.Price < 0 {
		return NewValidationError("price", "", ErrInvalidPart)
	}
	if p.ApplianceType != "" && !ApplianceTypes[p.ApplianceType] {
		return NewValidationError("appliance_type", p.ApplianceType, ErrUnknownApplianceType)
	}
	if ContainsInjection(p.Name) || ContainsInjection(p.Description) {
		return NewValidationError("description", p.PartID, ErrSuspiciousContent)
	}
	return nil
}

// ValidateVideo checks an InstallationVideo before it is written.
func ValidateVideo(v InstallationVideo) error {
	if v.VideoID == "" {
		return NewValidationError("video_id", "", ErrInvalidVideo)
	}
	if v.PartID == "" {
		return NewValidationError("part_id", "", ErrInvalidVideo)
	}
	if !strings.HasPrefix(v.VideoURL, "http://") && !strings.HasPrefix(v.VideoURL, "https://") {
		return NewValidationError("video_url", v.VideoURL, ErrInvalidVideo)
	}
	return nil
}

// ValidateEdge checks a CompatibilityEdge shape. Endpoint existence is
// enforced by the store at write time, not here.
func ValidateEdge(e CompatibilityEdge) error {
	if e.FromPartID == "" || e.ToPartID == "" {
		return NewValidationError("part_id", e.FromPartID+"->"+e.ToPartID, ErrInvalidEdge)
	}
	if e.FromPartID == e.ToPartID {
		return NewValidationError("to_part_id", e.ToPartID, ErrInvalidEdge)
	}
	if !ValidRelations[e.Relation] {
		return NewValidationError("relation", string(e.Relation), ErrInvalidRelation)
	}
	return nil
}
