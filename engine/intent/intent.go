// Package intent classifies user utterances into typed intents with
// extracted entities. Classification combines a language-model structured
// extraction call with deterministic pattern fallbacks so that exact part
// identifiers are never lost to model output.
package intent

// Kind is what the user wants from one utterance.
type Kind string

const (
	KindFindPart            Kind = "FIND_PART"
	KindPurchase            Kind = "PURCHASE"
	KindInstallVideo        Kind = "INSTALL_VIDEO"
	KindCrossReference      Kind = "CROSS_REFERENCE"
	KindGeneralQuestion     Kind = "GENERAL_QUESTION"
	KindClarificationNeeded Kind = "CLARIFICATION_NEEDED"
)

// ValidKinds is the closed set of intent kinds.
var ValidKinds = map[Kind]bool{
	KindFindPart: true, KindPurchase: true, KindInstallVideo: true,
	KindCrossReference: true, KindGeneralQuestion: true, KindClarificationNeeded: true,
}

// Field is one extracted entity value with the confidence of its source:
// regex tier for deterministic matches, classifier confidence for model
// extractions.
type Field struct {
	Value      string
	Confidence float64
}

// Entities is the extracted entity bag for one intent.
type Entities struct {
	PartselectNumber   Field
	ManufacturerNumber Field
	ModelNumber        Field
	ApplianceType      Field
	Brand              Field
	Description        Field
}

// PartNumber returns the best part identifier, PartSelect number first.
func (e Entities) PartNumber() (string, bool) {
	if e.PartselectNumber.Value != "" {
		return e.PartselectNumber.Value, true
	}
	if e.ManufacturerNumber.Value != "" {
		return e.ManufacturerNumber.Value, true
	}
	return "", false
}

// HasPartNumber reports whether any part identifier was extracted.
func (e Entities) HasPartNumber() bool {
	_, ok := e.PartNumber()
	return ok
}

// Empty reports whether no entity was extracted.
func (e Entities) Empty() bool {
	return e.PartselectNumber.Value == "" && e.ManufacturerNumber.Value == "" &&
		e.ModelNumber.Value == "" && e.ApplianceType.Value == "" &&
		e.Brand.Value == "" && e.Description.Value == ""
}

// Intent is one classified user goal. Missing is populated only for
// CLARIFICATION_NEEDED and names the entity fields required to proceed.
// Intents are per-request values, discarded after the response is composed.
type Intent struct {
	Kind     Kind
	Entities Entities
	Missing  []string
}

// Entity field names used in clarification missing-field lists.
const (
	FieldPartNumber    = "part_number"
	FieldModelNumber   = "model_number"
	FieldApplianceType = "appliance_type"
)

// missingFields returns the entity fields an intent still needs, or nil
// when the intent is actionable as-is.
func missingFields(in Intent) []string {
	e := in.Entities
	switch in.Kind {
	case KindFindPart:
		if e.HasPartNumber() || e.ModelNumber.Value != "" {
			return nil
		}
		if e.ApplianceType.Value != "" && e.Description.Value != "" {
			return nil
		}
		if e.ApplianceType.Value != "" {
			return []string{FieldModelNumber}
		}
		return []string{FieldApplianceType, FieldModelNumber}
	case KindPurchase:
		if e.HasPartNumber() || e.ModelNumber.Value != "" {
			return nil
		}
		return []string{FieldPartNumber}
	case KindInstallVideo, KindCrossReference:
		if e.HasPartNumber() {
			return nil
		}
		return []string{FieldPartNumber}
	}
	return nil
}

// applyClarificationPolicy downgrades intents with unmet entity
// requirements to CLARIFICATION_NEEDED carrying the missing-field list.
// Asking is cheaper than guessing at the wrong part.
func applyClarificationPolicy(intents []Intent) []Intent {
	for i := range intents {
		if missing := missingFields(intents[i]); len(missing) > 0 {
			intents[i].Kind = KindClarificationNeeded
			intents[i].Missing = missing
		}
	}
	return intents
}
