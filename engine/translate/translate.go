// Package translate maps classified intents onto bounded catalog query
// plans. Every plan is a conjunction of exact-match or substring predicates
// with a hard result limit; free text never becomes an open-ended query.
package translate

import (
	"strings"

	"github.com/FixwellAI/fixwell-mvp/engine/catalog"
	"github.com/FixwellAI/fixwell-mvp/engine/intent"
	"github.com/FixwellAI/fixwell-mvp/pkg/fn"
)

// Plan is one catalog query derived from one intent. The set of plans is
// closed; the orchestrator switches over it exhaustively.
type Plan interface {
	isPlan()
}

// PartLookup resolves a single part by its PartSelect or manufacturer
// number.
type PartLookup struct {
	Number string
}

// PartSearch lists parts matching a filter conjunction.
type PartSearch struct {
	Filter catalog.Filter
}

// VideoLookup resolves a part by number and then its installation videos.
type VideoLookup struct {
	Number string
}

// EdgeLookup resolves an anchor part by number and then its compatibility
// edges in both directions.
type EdgeLookup struct {
	Number string
}

// NoQuery answers without touching the catalog.
type NoQuery struct{}

func (PartLookup) isPlan()  {}
func (PartSearch) isPlan()  {}
func (VideoLookup) isPlan() {}
func (EdgeLookup) isPlan()  {}
func (NoQuery) isPlan()     {}

// maxSearchTokens bounds the free-text predicates in one search.
const maxSearchTokens = 4

// Translate maps an intent to its query plan. It is total: intents whose
// entities cannot support their kind translate to NoQuery rather than an
// unbounded scan.
func Translate(in intent.Intent) Plan {
	e := in.Entities
	switch in.Kind {
	case intent.KindFindPart, intent.KindPurchase:
		if num, ok := e.PartNumber(); ok {
			return PartLookup{Number: num}
		}
		return searchPlan(e)
	case intent.KindInstallVideo:
		if num, ok := e.PartNumber(); ok {
			return VideoLookup{Number: num}
		}
	case intent.KindCrossReference:
		if num, ok := e.PartNumber(); ok {
			return EdgeLookup{Number: num}
		}
	}
	return NoQuery{}
}

// searchPlan builds the filter conjunction for a part search. An entity bag
// with nothing to filter on yields NoQuery.
func searchPlan(e intent.Entities) Plan {
	f := catalog.Filter{
		ApplianceType: e.ApplianceType.Value,
		Brand:         e.Brand.Value,
		ModelNumber:   e.ModelNumber.Value,
		NameTokens:    SearchTokens(e.Description.Value),
		Limit:         catalog.MaxResults,
	}
	if f.ApplianceType == "" && f.Brand == "" && f.ModelNumber == "" && len(f.NameTokens) == 0 {
		return NoQuery{}
	}
	return PartSearch{Filter: f}
}

// SearchTokens reduces free text to at most maxSearchTokens lowercase
// substring predicates: short and stop words dropped, duplicates removed.
func SearchTokens(text string) []string {
	if text == "" {
		return nil
	}
	var toks []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, "?.,!;:'\"()")
		if len(w) < 3 || searchStopWords[w] {
			continue
		}
		toks = append(toks, w)
	}
	toks = fn.Unique(toks)
	if len(toks) > maxSearchTokens {
		toks = toks[:maxSearchTokens]
	}
	return toks
}

var searchStopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"that": true, "this": true, "have": true, "has": true, "was": true,
	"are": true, "can": true, "will": true, "its": true, "all": true,
	"any": true, "not": true, "but": true, "out": true, "part": true,
	"parts": true, "need": true, "new": true, "one": true, "some": true,
	"broken": true, "broke": true, "old": true, "unit": true, "appliance": true,
}
