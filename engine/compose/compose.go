package compose

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/FixwellAI/fixwell-mvp/engine/domain"
	"github.com/FixwellAI/fixwell-mvp/engine/intent"
)

// apologyText is the fixed response for a failed request. No internal
// error detail ever reaches the client.
const apologyText = "I'm sorry, something went wrong on my end while looking that up. Please try again in a moment."

// generalText answers utterances with no catalog question in them.
const generalText = "I can help with refrigerator and dishwasher parts. " +
	"Give me a part number or your appliance's model number and I can check stock and pricing, " +
	"find installation videos, and look up compatible replacements."

// RelatedPart is one compatibility edge resolved to its counterpart part.
// Outbound reports the direction: true when the anchor is the edge source.
type RelatedPart struct {
	Part     domain.Part
	Relation domain.Relation
	Outbound bool
}

// Composer renders query results into response text. Fragment validation
// failures downgrade to plain text and are logged, never surfaced.
type Composer struct {
	log *slog.Logger
}

// New creates a Composer.
func New(log *slog.Logger) *Composer {
	if log == nil {
		log = slog.Default()
	}
	return &Composer{log: log.With("component", "compose")}
}

// SinglePart renders an exact lookup hit: stock and price in the lead
// sentence, then one part card.
func (c *Composer) SinglePart(p domain.Part) string {
	lead := fmt.Sprintf("The %s %s.", displayName(p), stockPhrase(p))
	frag, err := PartFragment(p)
	if err != nil {
		c.log.Warn("fragment rejected, substituting plain text", "part_id", p.PartID, "error", err)
		return lead + "\n\n" + plainSummary(p)
	}
	return lead + "\n\n" + frag
}

// PartList renders a search result. Zero parts is a plain not-found
// sentence, one part renders as an exact hit, more become a list card.
func (c *Composer) PartList(parts []domain.Part) string {
	parts = uniqueParts(parts)
	switch len(parts) {
	case 0:
		return "I could not find any matching parts in the catalog. Could you double-check the model or part number?"
	case 1:
		return c.SinglePart(parts[0])
	}
	if len(parts) > maxListParts {
		parts = parts[:maxListParts]
	}
	lead := fmt.Sprintf("I found %d parts that match:", len(parts))
	frag, err := PartListFragment(parts)
	if err != nil {
		c.log.Warn("list fragment rejected, substituting plain text", "parts", len(parts), "error", err)
		return lead + "\n\n" + plainList(parts)
	}
	return lead + "\n\n" + frag
}

// Videos renders a part's installation videos. No videos is a valid empty
// result, answered in prose.
func (c *Composer) Videos(p domain.Part, videos []domain.InstallationVideo) string {
	if len(videos) == 0 {
		return fmt.Sprintf("There are no installation videos available for the %s right now.", displayName(p))
	}

	var b strings.Builder
	if len(videos) == 1 {
		fmt.Fprintf(&b, "Here is an installation video for the %s:", displayName(p))
	} else {
		fmt.Fprintf(&b, "Here are %d installation videos for the %s:", len(videos), displayName(p))
	}
	for _, v := range videos {
		frag, err := VideoFragment(p, v)
		if err != nil {
			c.log.Warn("video fragment rejected", "video_id", v.VideoID, "error", err)
			fmt.Fprintf(&b, "\n\n%s: %s", videoTitle(p, v), v.VideoURL)
			continue
		}
		b.WriteString("\n\n")
		b.WriteString(frag)
	}
	return b.String()
}

// Edges renders cross-reference results. Each edge keeps its direction in
// prose: "A replaces B" is never collapsed into "B replaces A".
func (c *Composer) Edges(anchor domain.Part, related []RelatedPart) string {
	if len(related) == 0 {
		return fmt.Sprintf("No replacement parts found for the %s.", displayName(anchor))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here is what I found for the %s:\n", displayName(anchor))
	counterparts := make([]domain.Part, 0, len(related))
	for _, r := range related {
		fmt.Fprintf(&b, "\n- %s", edgeSentence(anchor, r))
		counterparts = append(counterparts, r.Part)
	}

	counterparts = uniqueParts(counterparts)
	var frag string
	var err error
	if len(counterparts) == 1 {
		frag, err = PartFragment(counterparts[0])
	} else {
		frag, err = PartListFragment(counterparts)
	}
	if err != nil {
		c.log.Warn("edge fragment rejected, substituting plain text", "anchor", anchor.PartID, "error", err)
		frag = plainList(counterparts)
	}
	b.WriteString("\n\n")
	b.WriteString(frag)
	return b.String()
}

// PartNotFound answers an exact number lookup that matched nothing.
func (c *Composer) PartNotFound(number string) string {
	return fmt.Sprintf("I could not find a part numbered %s in the catalog. Could you double-check the number?", number)
}

// Clarification asks for the missing entity fields. When the appliance
// type is already known the prompt links the matching model-number help
// page.
func (c *Composer) Clarification(in intent.Intent) string {
	missing := make(map[string]bool, len(in.Missing))
	for _, f := range in.Missing {
		missing[f] = true
	}
	appliance := in.Entities.ApplianceType.Value

	switch {
	case missing[intent.FieldModelNumber] && missing[intent.FieldApplianceType]:
		return "Happy to help. Which appliance is this for, a refrigerator or a dishwasher? " +
			"The model number from its label would let me find exact matches."
	case missing[intent.FieldModelNumber] && appliance != "":
		return fmt.Sprintf("Could you share your %s's model number? You can find it here: %s",
			appliance, domain.ModelNumberHelpURL(appliance))
	case missing[intent.FieldPartNumber]:
		return "Could you share the part number? A PartSelect number looks like PS11752778, " +
			"and the manufacturer number is printed on the part itself."
	default:
		return "Could you tell me a bit more about the part you need, such as the part number " +
			"or your appliance's model number?"
	}
}

// Apology is the fixed FAILED-state response.
func (c *Composer) Apology() string { return apologyText }

// General answers a general question without a store lookup.
func (c *Composer) General() string { return generalText }

// displayName is the part name with its best identifier: "Door Shelf Bin
// (PS11752778)".
func displayName(p domain.Part) string {
	num := p.PartselectNumber
	if num == "" {
		num = p.ManufacturerNumber
	}
	if num == "" {
		return p.Name
	}
	return fmt.Sprintf("%s (%s)", p.Name, num)
}

// stockPhrase reflects stock and price in one verb phrase.
func stockPhrase(p domain.Part) string {
	var s string
	switch p.StockStatus {
	case domain.StockInStock:
		s = "is in stock"
	case domain.StockOutOfStock:
		s = "is currently out of stock"
	default:
		s = "shows no stock information"
	}
	if price := displayPrice(p); price != "" {
		s += " at " + price
	}
	return s
}

// edgeSentence states one edge with its direction preserved.
func edgeSentence(anchor domain.Part, r RelatedPart) string {
	from, to := displayName(anchor), displayName(r.Part)
	if !r.Outbound {
		from, to = to, from
	}
	switch r.Relation {
	case domain.RelationReplaces:
		return fmt.Sprintf("The %s replaces the %s.", from, to)
	case domain.RelationRequires:
		return fmt.Sprintf("The %s requires the %s.", from, to)
	default:
		return fmt.Sprintf("The %s is compatible with the %s.", from, to)
	}
}

// plainSummary is the text substitute for a rejected part fragment.
func plainSummary(p domain.Part) string {
	var fields []string
	if p.PartselectNumber != "" {
		fields = append(fields, "PartSelect "+p.PartselectNumber)
	}
	if p.ManufacturerNumber != "" {
		fields = append(fields, "manufacturer "+p.ManufacturerNumber)
	}
	if price := displayPrice(p); price != "" {
		fields = append(fields, price)
	}
	if p.DetailURL != "" {
		fields = append(fields, p.DetailURL)
	}
	if len(fields) == 0 {
		return p.Name
	}
	return fmt.Sprintf("%s: %s", p.Name, strings.Join(fields, ", "))
}

func plainList(parts []domain.Part) string {
	lines := make([]string, 0, len(parts))
	for _, p := range parts {
		lines = append(lines, "- "+plainSummary(p))
	}
	return strings.Join(lines, "\n")
}

func videoTitle(p domain.Part, v domain.InstallationVideo) string {
	if v.Title != "" {
		return v.Title
	}
	return p.Name + " installation video"
}
