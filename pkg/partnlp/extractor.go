// Package partnlp extracts appliance part numbers, model numbers, appliance
// types, and brands from unstructured text using regex patterns and a small
// lexicon. No external dependencies.
package partnlp

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Match is one extracted entity mention.
type Match struct {
	Value      string  // canonical value, identifiers uppercased
	Confidence float64 // 0.0-1.0
	Span       string  // the matched text fragment
}

// Extraction groups every entity found in one utterance.
type Extraction struct {
	PartselectNumbers   []Match
	ManufacturerNumbers []Match
	ModelNumbers        []Match
	ApplianceTypes      []Match
	Brands              []Match
}

// Empty reports whether nothing was extracted.
func (e Extraction) Empty() bool {
	return len(e.PartselectNumbers) == 0 && len(e.ManufacturerNumbers) == 0 &&
		len(e.ModelNumbers) == 0 && len(e.ApplianceTypes) == 0 && len(e.Brands) == 0
}

// psRe matches PartSelect inventory numbers: PS followed by digits.
var psRe = regexp.MustCompile(`(?i)\bPS\d{5,10}\b`)

// Manufacturer number shapes seen across the Whirlpool/GE/Samsung/LG/
// Frigidaire feeds. Ordered by decreasing specificity.
var mfrPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bWP?[A-Z]?\d{8}\b`),                // W10195416, WP22003950
	regexp.MustCompile(`(?i)\b[A-Z]{2}\d{2}X\d{4,6}\b`),         // WR23X37285, WD21X24900
	regexp.MustCompile(`(?i)\b[A-Z]{2,3}\d{2}-\d{4,6}[A-Z]?\b`), // DA97-07365G, DD62-00064A
	regexp.MustCompile(`(?i)\b[A-Z]{3}\d{8,9}\b`),               // EBX61315801, MJX41178908
}

// plainNumberRe matches bare numeric manufacturer numbers (7-10 digits),
// e.g. 8544771 or 5304506533. Weaker signal than the lettered shapes.
var plainNumberRe = regexp.MustCompile(`\b\d{7,10}\b`)

// Appliance model number shapes, e.g. WDT780SAEM1, GSS25GSHSS,
// LFSS2612TF0, plus the Kenmore prefix form 106.51133210.
var modelPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{3}\.\d{8}\b`),
	regexp.MustCompile(`(?i)\b[A-Z]{2,5}\d{2,4}[A-Z][A-Z0-9]{1,7}\b`),
}

// modelKeywordRe marks explicit model references ("model", "model number",
// "model #") which boost confidence of the identifier that follows.
var modelKeywordRe = regexp.MustCompile(`(?i)\bmodel(?:\s+(?:number|no\.?|#))?\s*[:#]?\s*$`)

// applianceAliases maps colloquial appliance names to canonical types.
var applianceAliases = map[string]string{
	"refrigerator":  "refrigerator",
	"refridgerator": "refrigerator",
	"fridge":        "refrigerator",
	"freezer":       "refrigerator",
	"icebox":        "refrigerator",
	"ice maker":     "refrigerator",
	"icemaker":      "refrigerator",
	"dishwasher":    "dishwasher",
	"dish washer":   "dishwasher",
	"dish-washer":   "dishwasher",
}

// knownBrands are matched as whole words. Brands two letters or shorter
// are matched case-sensitively to avoid false positives inside words.
var knownBrands = []string{
	"Admiral", "Amana", "Bosch", "Dacor", "Electrolux", "Frigidaire",
	"GE", "Gibson", "Haier", "Hotpoint", "Jenn-Air", "Kelvinator",
	"Kenmore", "KitchenAid", "LG", "Magic Chef", "Maytag", "Samsung",
	"Sharp", "Smeg", "Thermador", "Whirlpool",
}

var applianceRe *regexp.Regexp

func init() {
	aliases := make([]string, 0, len(applianceAliases))
	for a := range applianceAliases {
		aliases = append(aliases, regexp.QuoteMeta(a))
	}
	// Longest first so "dish washer" wins over bare "dish" style prefixes.
	sort.Slice(aliases, func(i, j int) bool { return len(aliases[i]) > len(aliases[j]) })
	applianceRe = regexp.MustCompile(`(?i)\b(` + strings.Join(aliases, "|") + `)s?\b`)
}

// interval is a claimed [start,end) byte range of the input text. Later
// passes skip anything overlapping an earlier claim, so the digit tail of
// 106.51133210 is not re-read as a bare manufacturer number.
type interval struct{ start, end int }

func overlapsAny(claimed []interval, start, end int) bool {
	for _, iv := range claimed {
		if start < iv.end && end > iv.start {
			return true
		}
	}
	return false
}

// Extract finds all part/model/appliance/brand mentions in text. Matches in
// each group are sorted by confidence descending and deduplicated by value.
func Extract(text string) Extraction {
	var ex Extraction
	if text == "" {
		return ex
	}

	var claimed []interval
	seenVal := make(map[string]bool)

	claim := func(start, end int, val string) bool {
		if seenVal[val] || overlapsAny(claimed, start, end) {
			return false
		}
		claimed = append(claimed, interval{start, end})
		seenVal[val] = true
		return true
	}

	// PartSelect numbers first: the PS prefix is unambiguous.
	for _, loc := range psRe.FindAllStringIndex(text, -1) {
		span := text[loc[0]:loc[1]]
		val := strings.ToUpper(span)
		if claim(loc[0], loc[1], val) {
			ex.PartselectNumbers = append(ex.PartselectNumbers, Match{Value: val, Confidence: 0.95, Span: span})
		}
	}

	// Lettered manufacturer shapes take precedence over model shapes:
	// WD21X24900 fits both, and the feeds list it as a manufacturer number.
	for _, re := range mfrPatterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			span := text[loc[0]:loc[1]]
			val := strings.ToUpper(span)
			if claim(loc[0], loc[1], val) {
				ex.ManufacturerNumbers = append(ex.ManufacturerNumbers, Match{Value: val, Confidence: 0.85, Span: span})
			}
		}
	}

	// Model numbers; an explicit "model" reference just before the token
	// lifts confidence.
	for _, re := range modelPatterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			span := text[loc[0]:loc[1]]
			val := strings.ToUpper(span)
			if !claim(loc[0], loc[1], val) {
				continue
			}
			conf := 0.70
			if hasModelKeywordBefore(text, loc[0]) {
				conf = 0.95
			}
			ex.ModelNumbers = append(ex.ModelNumbers, Match{Value: val, Confidence: conf, Span: span})
		}
	}

	// Bare digit runs last: manufacturer number unless introduced as a model.
	for _, loc := range plainNumberRe.FindAllStringIndex(text, -1) {
		span := text[loc[0]:loc[1]]
		if !claim(loc[0], loc[1], span) {
			continue
		}
		if hasModelKeywordBefore(text, loc[0]) {
			ex.ModelNumbers = append(ex.ModelNumbers, Match{Value: span, Confidence: 0.80, Span: span})
			continue
		}
		ex.ManufacturerNumbers = append(ex.ManufacturerNumbers, Match{Value: span, Confidence: 0.60, Span: span})
	}

	// Appliance types.
	seenType := make(map[string]bool)
	for _, loc := range applianceRe.FindAllStringSubmatchIndex(text, -1) {
		span := text[loc[2]:loc[3]]
		canonical := applianceAliases[strings.ToLower(span)]
		if canonical == "" || seenType[canonical] {
			continue
		}
		seenType[canonical] = true
		ex.ApplianceTypes = append(ex.ApplianceTypes, Match{Value: canonical, Confidence: 0.90, Span: span})
	}

	ex.Brands = findBrands(text)

	for _, group := range []*[]Match{
		&ex.PartselectNumbers, &ex.ManufacturerNumbers, &ex.ModelNumbers,
		&ex.ApplianceTypes, &ex.Brands,
	} {
		g := *group
		sort.SliceStable(g, func(i, j int) bool { return g[i].Confidence > g[j].Confidence })
	}
	return ex
}

// BestPartNumber returns the highest-confidence part identifier mention
// (partselect over manufacturer), or nil when none was found.
func BestPartNumber(text string) *Match {
	ex := Extract(text)
	if len(ex.PartselectNumbers) > 0 {
		return &ex.PartselectNumbers[0]
	}
	if len(ex.ManufacturerNumbers) > 0 {
		return &ex.ManufacturerNumbers[0]
	}
	return nil
}

// IsPartselectNumber reports whether tok is a PartSelect inventory number.
func IsPartselectNumber(tok string) bool {
	return psRe.FindString(tok) == tok && tok != ""
}

// IsManufacturerNumber reports whether tok matches a lettered manufacturer
// number shape or a 7-10 digit run.
func IsManufacturerNumber(tok string) bool {
	if tok == "" {
		return false
	}
	if isLetteredManufacturerNumber(tok) {
		return true
	}
	return plainNumberRe.FindString(tok) == tok
}

// IsModelNumber reports whether tok matches an appliance model shape and is
// not already a manufacturer or PartSelect number.
func IsModelNumber(tok string) bool {
	if tok == "" || IsPartselectNumber(tok) || isLetteredManufacturerNumber(tok) {
		return false
	}
	for _, re := range modelPatterns {
		if re.FindString(tok) == tok {
			return true
		}
	}
	return false
}

// NormalizeNumber canonicalizes an identifier: trimmed and uppercased.
func NormalizeNumber(tok string) string {
	return strings.ToUpper(strings.TrimSpace(tok))
}

func isLetteredManufacturerNumber(tok string) bool {
	for _, re := range mfrPatterns {
		if re.FindString(tok) == tok {
			return true
		}
	}
	return false
}

func hasModelKeywordBefore(text string, idx int) bool {
	start := idx - 18
	if start < 0 {
		start = 0
	}
	return modelKeywordRe.MatchString(text[start:idx])
}

func findBrands(text string) []Match {
	var matches []Match
	lower := strings.ToLower(text)
	for _, brand := range knownBrands {
		haystack, needle := lower, strings.ToLower(brand)
		if len(brand) <= 2 {
			haystack, needle = text, brand // case-sensitive for GE, LG
		}
		for from := 0; from < len(haystack); {
			i := strings.Index(haystack[from:], needle)
			if i < 0 {
				break
			}
			idx := from + i
			from = idx + len(needle)
			if !wordBoundary(text, idx, idx+len(brand)) {
				continue
			}
			matches = append(matches, Match{Value: brand, Confidence: 0.80, Span: text[idx : idx+len(brand)]})
			break
		}
	}
	return matches
}

func wordBoundary(text string, start, end int) bool {
	if start > 0 {
		prev := rune(text[start-1])
		if unicode.IsLetter(prev) || unicode.IsDigit(prev) {
			return false
		}
	}
	if end < len(text) {
		next := rune(text[end])
		if unicode.IsLetter(next) || unicode.IsDigit(next) {
			return false
		}
	}
	return true
}
