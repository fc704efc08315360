package intent

import (
	"regexp"
	"sort"
	"strings"

	"github.com/FixwellAI/fixwell-mvp/pkg/partnlp"
)

// Keyword groups for the deterministic intent kind. Scanned in declaration
// order; matched kinds are emitted in order of first occurrence in the
// utterance, so "is it in stock and is there an install video" yields
// FIND_PART before INSTALL_VIDEO.
var kindKeywords = []struct {
	kind Kind
	re   *regexp.Regexp
}{
	{KindInstallVideo, regexp.MustCompile(`(?i)\b(install(?:ation|ing|ed)?|video|tutorial|guide|instructions|how (?:do i|to))\b`)},
	{KindCrossReference, regexp.MustCompile(`(?i)\b(replace[sd]?|replacement|compatib(?:le|ility)|substitute|interchangeable|cross[- ]?reference|works with|fits?)\b`)},
	{KindPurchase, regexp.MustCompile(`(?i)\b(buy|order|purchase|price|cost|cart|checkout|how much)\b`)},
	{KindFindPart, regexp.MustCompile(`(?i)\b(in stock|stock|availab(?:le|ility)|do you (?:have|carry|sell)|find|looking for)\b`)},
}

// fallback classifies with regex and keyword rules alone. It returns raw
// intents without the clarification policy applied; Classify applies that
// once for both paths. An empty slice means nothing recognisable was found.
func fallback(utterance string) []Intent {
	entities := extractEntities(utterance)

	type kindMatch struct {
		kind Kind
		idx  int
	}
	var found []kindMatch
	seen := make(map[Kind]bool)
	for _, kw := range kindKeywords {
		loc := kw.re.FindStringIndex(utterance)
		if loc == nil || seen[kw.kind] {
			continue
		}
		seen[kw.kind] = true
		found = append(found, kindMatch{kw.kind, loc[0]})
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].idx < found[j].idx })

	if len(found) == 0 {
		if entities.Empty() {
			return nil
		}
		// Any recognised entity defaults to a part search.
		return []Intent{{Kind: KindFindPart, Entities: entities}}
	}

	intents := make([]Intent, 0, len(found))
	for _, m := range found {
		intents = append(intents, Intent{Kind: m.kind, Entities: entities})
	}
	return intents
}

// extractEntities builds the entity bag for an utterance from deterministic
// pattern extraction. Each group's best match wins.
func extractEntities(utterance string) Entities {
	ex := partnlp.Extract(utterance)
	e := Entities{
		PartselectNumber:   bestField(ex.PartselectNumbers),
		ManufacturerNumber: bestField(ex.ManufacturerNumbers),
		ModelNumber:        bestField(ex.ModelNumbers),
		ApplianceType:      bestField(ex.ApplianceTypes),
		Brand:              bestField(ex.Brands),
	}
	if desc := describeRemainder(utterance, ex); desc != "" {
		e.Description = Field{Value: desc, Confidence: 0.5}
	}
	return e
}

func bestField(ms []partnlp.Match) Field {
	if len(ms) == 0 {
		return Field{}
	}
	return Field{Value: ms[0].Value, Confidence: ms[0].Confidence}
}

// describeRemainder derives descriptive free text from what is left of the
// utterance after entity spans, stop words, and intent keywords are removed.
// "my ice maker is leaking water" becomes "leaking water".
func describeRemainder(utterance string, ex partnlp.Extraction) string {
	text := utterance
	for _, group := range [][]partnlp.Match{
		ex.PartselectNumbers, ex.ManufacturerNumbers, ex.ModelNumbers,
		ex.ApplianceTypes, ex.Brands,
	} {
		for _, m := range group {
			text = strings.ReplaceAll(text, m.Span, " ")
		}
	}
	for _, kw := range kindKeywords {
		text = kw.re.ReplaceAllString(text, " ")
	}

	var words []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, "?.,!;:'\"()")
		if len(w) <= 2 || fillerWords[w] {
			continue
		}
		words = append(words, w)
	}
	return strings.Join(words, " ")
}

// fillerWords are dropped when deriving descriptive text: stop words plus
// generic parts-counter vocabulary that narrows nothing.
var fillerWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"this": true, "that": true, "these": true, "those": true, "there": true,
	"what": true, "which": true, "where": true, "when": true, "how": true,
	"who": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "can": true, "are": true, "was": true,
	"were": true, "been": true, "being": true, "have": true, "has": true,
	"had": true, "not": true, "you": true, "your": true, "yours": true,
	"our": true, "ours": true, "they": true, "them": true, "their": true,
	"its": true, "into": true, "onto": true, "about": true, "still": true,
	"part": true, "parts": true, "number": true, "need": true, "needs": true,
	"want": true, "wants": true, "looking": true, "get": true, "got": true,
	"new": true, "one": true, "some": true, "any": true, "please": true,
	"thanks": true, "thank": true, "hello": true, "help": true, "know": true,
	"tell": true, "show": true, "give": true, "just": true, "also": true,
	"model": true, "appliance": true, "unit": true, "machine": true,
}
