// Package compose turns catalog query results into the chat response body:
// explanatory prose interleaved with fenced JSON fragments the client
// renders as part cards. Formatting is deterministic; no model call sits in
// the serving path for catalog results.
package compose

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/FixwellAI/fixwell-mvp/engine/domain"
	"github.com/FixwellAI/fixwell-mvp/pkg/fn"
)

// Fence tags recognised by the chat client renderer.
const (
	TagJSON = "json-to-render"            // single object
	TagList = "dictionary-list-to-render" // array of objects
)

// maxListParts bounds one list fragment. Mirrors the catalog query limit.
const maxListParts = 10

// PartPayload is the wire schema of one rendered part card. Price is a
// display string ("$34.95"), not a number.
type PartPayload struct {
	PartName           string `json:"part_name"`
	Price              string `json:"price,omitempty"`
	ImageURL           string `json:"image_url,omitempty"`
	ManufacturerNumber string `json:"manufacturer_number,omitempty"`
	PartselectNumber   string `json:"partselect_number,omitempty"`
	Description        string `json:"description,omitempty"`
	URL                string `json:"url,omitempty"`
}

func payloadOf(p domain.Part) PartPayload {
	return PartPayload{
		PartName:           p.Name,
		Price:              displayPrice(p),
		ImageURL:           p.ImageURL,
		ManufacturerNumber: p.ManufacturerNumber,
		PartselectNumber:   p.PartselectNumber,
		Description:        p.Description,
		URL:                p.DetailURL,
	}
}

// videoPayloadOf renders a video reference in the part card schema with the
// URL pointing at the video itself.
func videoPayloadOf(p domain.Part, v domain.InstallationVideo) PartPayload {
	name := v.Title
	if name == "" {
		name = p.Name + " installation video"
	}
	return PartPayload{
		PartName:           name,
		ImageURL:           p.ImageURL,
		ManufacturerNumber: p.ManufacturerNumber,
		PartselectNumber:   p.PartselectNumber,
		URL:                v.VideoURL,
	}
}

// displayPrice formats a part's price for the wire: "$36.08", "CAD 22.50".
// Unknown prices (zero) render as the empty string and are omitted.
func displayPrice(p domain.Part) string {
	if p.Price <= 0 {
		return ""
	}
	cur := p.Currency
	if cur == "" {
		cur = "$"
	}
	sep := ""
	if r := []rune(cur)[len([]rune(cur))-1]; unicode.IsLetter(r) {
		sep = " "
	}
	return fmt.Sprintf("%s%s%.2f", cur, sep, p.Price)
}

// priceRe accepts an optional currency prefix followed by a decimal amount.
var priceRe = regexp.MustCompile(`^[^0-9]*[0-9]+(\.[0-9]{2})?$`)

// validatePayload is the pre-emission gate: a payload that fails it is
// never sent, because the client renderer has no validation of its own.
func validatePayload(pl PartPayload) error {
	if strings.TrimSpace(pl.PartName) == "" {
		return domain.NewValidationError("part_name", pl.PartName, domain.ErrMalformedFragment)
	}
	if pl.ManufacturerNumber == "" && pl.PartselectNumber == "" {
		return domain.NewValidationError("part_number", pl.PartName, domain.ErrMalformedFragment)
	}
	if pl.Price != "" && !priceRe.MatchString(pl.Price) {
		return domain.NewValidationError("price", pl.Price, domain.ErrMalformedFragment)
	}
	return nil
}

// PartFragment renders one part as a json-to-render block.
func PartFragment(p domain.Part) (string, error) {
	return payloadFragment(payloadOf(p))
}

// VideoFragment renders one installation video as a json-to-render block.
func VideoFragment(p domain.Part, v domain.InstallationVideo) (string, error) {
	pl := videoPayloadOf(p, v)
	if v.VideoURL == "" {
		return "", domain.NewValidationError("url", pl.PartName, domain.ErrMalformedFragment)
	}
	return payloadFragment(pl)
}

func payloadFragment(pl PartPayload) (string, error) {
	if err := validatePayload(pl); err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(pl, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal fragment: %w", err)
	}
	return fenced(TagJSON, string(b)), nil
}

// PartListFragment renders parts as one dictionary-list-to-render block.
// Any invalid payload fails the whole fragment so the caller can fall back
// to a plain-text summary of the same results.
func PartListFragment(parts []domain.Part) (string, error) {
	if len(parts) > maxListParts {
		parts = parts[:maxListParts]
	}
	payloads := make([]PartPayload, 0, len(parts))
	for _, p := range parts {
		pl := payloadOf(p)
		if err := validatePayload(pl); err != nil {
			return "", err
		}
		payloads = append(payloads, pl)
	}
	if len(payloads) == 0 {
		return "", domain.NewValidationError("parts", "", domain.ErrMalformedFragment)
	}
	b, err := json.MarshalIndent(payloads, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal fragment: %w", err)
	}
	return fenced(TagList, string(b)), nil
}

func fenced(tag, body string) string {
	return "```" + tag + "\n" + body + "\n```"
}

// Fragment is one fenced block parsed out of a response body.
type Fragment struct {
	Tag  string
	Body string
}

// ParseFragments extracts the fenced render blocks from a response string.
// Unterminated fences are ignored, matching the client's literal-text
// recovery.
func ParseFragments(s string) []Fragment {
	var frags []Fragment
	lines := strings.Split(s, "\n")
	for i := 0; i < len(lines); i++ {
		tag := strings.TrimPrefix(lines[i], "```")
		if tag == lines[i] || (tag != TagJSON && tag != TagList) {
			continue
		}
		var body []string
		closed := false
		for j := i + 1; j < len(lines); j++ {
			if lines[j] == "```" {
				frags = append(frags, Fragment{Tag: tag, Body: strings.Join(body, "\n")})
				i = j
				closed = true
				break
			}
			body = append(body, lines[j])
		}
		if !closed {
			break
		}
	}
	return frags
}

// Parts decodes the fragment body into part payloads. A json-to-render
// fragment yields exactly one.
func (f Fragment) Parts() ([]PartPayload, error) {
	switch f.Tag {
	case TagJSON:
		var pl PartPayload
		if err := json.Unmarshal([]byte(f.Body), &pl); err != nil {
			return nil, fmt.Errorf("parse fragment: %w", err)
		}
		return []PartPayload{pl}, nil
	case TagList:
		var pls []PartPayload
		if err := json.Unmarshal([]byte(f.Body), &pls); err != nil {
			return nil, fmt.Errorf("parse fragment: %w", err)
		}
		return pls, nil
	default:
		return nil, fmt.Errorf("parse fragment: unknown tag %q", f.Tag)
	}
}

// uniqueParts deduplicates by part identity, preserving order.
func uniqueParts(parts []domain.Part) []domain.Part {
	return fn.UniqueBy(parts, func(p domain.Part) string { return p.PartID })
}
