package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/FixwellAI/fixwell-mvp/engine/domain"
	"github.com/FixwellAI/fixwell-mvp/pkg/llm"
	"github.com/FixwellAI/fixwell-mvp/pkg/partnlp"
	"github.com/FixwellAI/fixwell-mvp/pkg/resilience"
)

const (
	// toolName is the single function tool the model is forced to call.
	toolName = "classify_intents"

	// maxIntents bounds how many intents one utterance can fan out to.
	maxIntents = 4

	// maxHistoryTurns bounds how much prior conversation is replayed to
	// the model.
	maxHistoryTurns = 12

	// defaultFieldConfidence is assigned to model-extracted fields when
	// the tool output omits a usable confidence.
	defaultFieldConfidence = 0.8
)

const systemPrompt = `You are Fixwell, a parts assistant for refrigerators and dishwashers.
Classify the user's latest message into one or more intents and extract any
part numbers, model numbers, appliance types, and brands EXACTLY as written.
Split multi-part requests into separate intents in the order asked. Always
call the classify_intents tool.`

// toolSchema is the JSON schema of the classify_intents function tool. The
// kind enum is the closed Intent set; everything else is optional.
const toolSchema = `{
  "type": "object",
  "properties": {
    "intents": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "kind": {
            "type": "string",
            "enum": ["FIND_PART", "PURCHASE", "INSTALL_VIDEO", "CROSS_REFERENCE", "GENERAL_QUESTION", "CLARIFICATION_NEEDED"]
          },
          "partselect_number": {"type": "string", "description": "PartSelect inventory number, e.g. PS11752778"},
          "manufacturer_number": {"type": "string", "description": "manufacturer part number, e.g. W10195416"},
          "model_number": {"type": "string", "description": "appliance model number, e.g. WDT780SAEM1"},
          "appliance_type": {"type": "string", "enum": ["refrigerator", "dishwasher"]},
          "brand": {"type": "string"},
          "description": {"type": "string", "description": "free-text description of the part or symptom"},
          "confidence": {"type": "number", "description": "extraction confidence 0..1"}
        },
        "required": ["kind"]
      }
    }
  },
  "required": ["intents"]
}`

// toolArgs mirrors the classify_intents argument object.
type toolArgs struct {
	Intents []toolIntent `json:"intents"`
}

type toolIntent struct {
	Kind               string  `json:"kind"`
	PartselectNumber   string  `json:"partselect_number"`
	ManufacturerNumber string  `json:"manufacturer_number"`
	ModelNumber        string  `json:"model_number"`
	ApplianceType      string  `json:"appliance_type"`
	Brand              string  `json:"brand"`
	Description        string  `json:"description"`
	Confidence         float64 `json:"confidence"`
}

// Options configures the classifier.
type Options struct {
	// Timeout bounds each model call. Default 10s.
	Timeout time.Duration
	// Breaker configures the circuit breaker around the model call.
	Breaker resilience.BreakerOpts
}

// Classifier turns an utterance plus prior turns into an ordered intent
// list. A nil chat client degrades to the deterministic path only.
type Classifier struct {
	chat    llm.ChatClient
	breaker *resilience.Breaker
	timeout time.Duration
	log     *slog.Logger
}

// New creates a Classifier.
func New(chat llm.ChatClient, opts Options, log *slog.Logger) *Classifier {
	if log == nil {
		log = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Classifier{
		chat:    chat,
		breaker: resilience.NewBreaker(opts.Breaker),
		timeout: timeout,
		log:     log.With("component", "intent"),
	}
}

// Classify returns the ordered intents for an utterance. It never fails:
// model errors downgrade to deterministic extraction, and when that also
// finds nothing the result is a single GENERAL_QUESTION.
func (c *Classifier) Classify(ctx context.Context, utterance string, history []domain.ConversationTurn) []Intent {
	deterministic := fallback(utterance)

	intents, err := c.classifyWithModel(ctx, utterance, history)
	if err != nil {
		if c.chat != nil {
			c.log.Warn("classifier degraded to deterministic extraction", "error", err)
		}
		intents = deterministic
	} else {
		intents = mergeDeterministic(intents, deterministic)
	}

	intents = applyClarificationPolicy(intents)
	if len(intents) == 0 {
		intents = []Intent{{Kind: KindGeneralQuestion}}
	}
	if len(intents) > maxIntents {
		intents = intents[:maxIntents]
	}
	return intents
}

// classifyWithModel runs the single forced-tool completion behind the
// circuit breaker and validates its output. Any malformed output is an
// error; untyped model data never flows downstream.
func (c *Classifier) classifyWithModel(ctx context.Context, utterance string, history []domain.ConversationTurn) ([]Intent, error) {
	if c.chat == nil {
		return nil, domain.ErrClassifierUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := llm.Request{
		Messages:  buildMessages(utterance, history),
		Tools:     []llm.Tool{{Name: toolName, Description: "Classify the user's request and extract part entities.", Parameters: json.RawMessage(toolSchema)}},
		ForceTool: toolName,
	}

	var resp *llm.Response
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.chat.Complete(ctx, req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrClassifierUnavailable, err)
	}

	return parseToolResponse(resp)
}

func buildMessages(utterance string, history []domain.ConversationTurn) []llm.Message {
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	for _, t := range history {
		msgs = append(msgs, llm.Message{Role: string(t.Role), Content: t.Content})
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: utterance})
}

// parseToolResponse validates the model's tool call into typed intents.
func parseToolResponse(resp *llm.Response) ([]Intent, error) {
	var call *llm.ToolCall
	for i := range resp.ToolCalls {
		if resp.ToolCalls[i].Name == toolName {
			call = &resp.ToolCalls[i]
			break
		}
	}
	if call == nil {
		return nil, errors.New("intent: model returned no tool call")
	}

	var args toolArgs
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return nil, fmt.Errorf("intent: malformed tool arguments: %w", err)
	}
	if len(args.Intents) == 0 {
		return nil, errors.New("intent: empty classification")
	}

	intents := make([]Intent, 0, len(args.Intents))
	for _, ti := range args.Intents {
		kind := Kind(strings.ToUpper(strings.TrimSpace(ti.Kind)))
		if !ValidKinds[kind] {
			return nil, fmt.Errorf("intent: unknown intent kind %q", ti.Kind)
		}
		intents = append(intents, Intent{Kind: kind, Entities: entitiesFromTool(ti)})
	}
	return intents, nil
}

// entitiesFromTool normalises one tool intent's extractions. Identifiers
// are routed by shape regardless of which slot the model put them in, and
// values that fit no known shape are dropped.
func entitiesFromTool(ti toolIntent) Entities {
	conf := ti.Confidence
	if conf <= 0 || conf > 1 {
		conf = defaultFieldConfidence
	}

	var e Entities
	route := func(raw string) {
		tok := partnlp.NormalizeNumber(raw)
		switch {
		case tok == "":
		case partnlp.IsPartselectNumber(tok):
			if e.PartselectNumber.Value == "" {
				e.PartselectNumber = Field{Value: tok, Confidence: conf}
			}
		case partnlp.IsManufacturerNumber(tok):
			if e.ManufacturerNumber.Value == "" {
				e.ManufacturerNumber = Field{Value: tok, Confidence: conf}
			}
		case partnlp.IsModelNumber(tok):
			if e.ModelNumber.Value == "" {
				e.ModelNumber = Field{Value: tok, Confidence: conf}
			}
		}
	}
	route(ti.PartselectNumber)
	route(ti.ManufacturerNumber)

	// Model designations vary too much for a closed shape check (Kenmore
	// alone uses 11-digit runs), so the model slot keeps any value that is
	// not really a part number in disguise.
	if tok := partnlp.NormalizeNumber(ti.ModelNumber); tok != "" {
		switch {
		case partnlp.IsPartselectNumber(tok) || partnlp.IsManufacturerNumber(tok):
			route(tok)
		case e.ModelNumber.Value == "":
			e.ModelNumber = Field{Value: tok, Confidence: conf}
		}
	}

	if t, ok := domain.CanonicalApplianceType(ti.ApplianceType); ok {
		e.ApplianceType = Field{Value: t, Confidence: conf}
	}
	if b := canonicalBrand(ti.Brand); b != "" {
		e.Brand = Field{Value: b, Confidence: conf}
	}
	if d := strings.TrimSpace(ti.Description); d != "" {
		e.Description = Field{Value: d, Confidence: conf}
	}
	return e
}

// canonicalBrand maps a brand mention onto the catalog's brand list,
// normalising case. Unknown brands are dropped.
func canonicalBrand(s string) string {
	s = strings.TrimSpace(s)
	for _, b := range domain.KnownBrands {
		if strings.EqualFold(s, b) {
			return b
		}
	}
	return ""
}

// mergeDeterministic folds deterministic extractions into every model
// intent. Identifiers matched against the literal utterance replace model
// values, so an exact number is never lost to model rewriting; softer
// fields are only filled where the model left gaps.
func mergeDeterministic(intents []Intent, deterministic []Intent) []Intent {
	if len(deterministic) == 0 {
		return intents
	}
	det := deterministic[0].Entities
	for i := range intents {
		e := &intents[i].Entities
		if det.PartselectNumber.Value != "" {
			e.PartselectNumber = det.PartselectNumber
		}
		if det.ManufacturerNumber.Value != "" {
			e.ManufacturerNumber = det.ManufacturerNumber
		}
		if det.ModelNumber.Value != "" {
			e.ModelNumber = det.ModelNumber
		}
		if e.ApplianceType.Value == "" {
			e.ApplianceType = det.ApplianceType
		}
		if e.Brand.Value == "" {
			e.Brand = det.Brand
		}
		if e.Description.Value == "" {
			e.Description = det.Description
		}
	}
	return intents
}
