package intent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/FixwellAI/fixwell-mvp/engine/domain"
	"github.com/FixwellAI/fixwell-mvp/pkg/llm"
	"github.com/FixwellAI/fixwell-mvp/pkg/resilience"
)

// fakeChat returns a scripted response for every completion call.
type fakeChat struct {
	resp  *llm.Response
	err   error
	calls int
	last  llm.Request
}

func (f *fakeChat) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func toolResponse(args string) *llm.Response {
	return &llm.Response{ToolCalls: []llm.ToolCall{{Name: toolName, Arguments: args}}}
}

func TestClassify_ToolCall(t *testing.T) {
	chat := &fakeChat{resp: toolResponse(`{"intents":[{"kind":"FIND_PART","partselect_number":"PS11752778","confidence":0.92}]}`)}
	c := New(chat, Options{}, nil)

	intents := c.Classify(context.Background(), "Do you have part PS11752778 in stock?", nil)

	if len(intents) != 1 {
		t.Fatalf("got %d intents, want 1: %+v", len(intents), intents)
	}
	if intents[0].Kind != KindFindPart {
		t.Errorf("kind = %s, want FIND_PART", intents[0].Kind)
	}
	if got := intents[0].Entities.PartselectNumber.Value; got != "PS11752778" {
		t.Errorf("partselect = %q, want PS11752778", got)
	}
	// The literal-text match outranks the model extraction.
	if got := intents[0].Entities.PartselectNumber.Confidence; got != 0.95 {
		t.Errorf("confidence = %v, want 0.95", got)
	}
	if intents[0].Missing != nil {
		t.Errorf("unexpected missing fields: %v", intents[0].Missing)
	}

	if chat.last.ForceTool != toolName {
		t.Errorf("forced tool = %q, want %q", chat.last.ForceTool, toolName)
	}
	if len(chat.last.Tools) != 1 || chat.last.Tools[0].Name != toolName {
		t.Errorf("tools = %+v, want single %s", chat.last.Tools, toolName)
	}
	msgs := chat.last.Messages
	if len(msgs) != 2 || msgs[0].Role != llm.RoleSystem || msgs[1].Role != llm.RoleUser {
		t.Errorf("unexpected message layout: %+v", msgs)
	}
}

func TestClassify_ReplaysHistory(t *testing.T) {
	chat := &fakeChat{resp: toolResponse(`{"intents":[{"kind":"GENERAL_QUESTION"}]}`)}
	c := New(chat, Options{}, nil)

	history := []domain.ConversationTurn{
		{Role: domain.RoleUser, Content: "I have a Whirlpool fridge"},
		{Role: domain.RoleAssistant, Content: "How can I help with it?"},
	}
	c.Classify(context.Background(), "is the door bin in stock?", history)

	msgs := chat.last.Messages
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4", len(msgs))
	}
	if msgs[1].Role != llm.RoleUser || msgs[1].Content != "I have a Whirlpool fridge" {
		t.Errorf("history turn not replayed: %+v", msgs[1])
	}
	if msgs[2].Role != llm.RoleAssistant {
		t.Errorf("assistant turn role = %q", msgs[2].Role)
	}
	if msgs[3].Content != "is the door bin in stock?" {
		t.Errorf("utterance not last: %+v", msgs[3])
	}
}

func TestClassify_TruncatesLongHistory(t *testing.T) {
	chat := &fakeChat{resp: toolResponse(`{"intents":[{"kind":"GENERAL_QUESTION"}]}`)}
	c := New(chat, Options{}, nil)

	var history []domain.ConversationTurn
	for i := 0; i < 30; i++ {
		history = append(history, domain.ConversationTurn{Role: domain.RoleUser, Content: fmt.Sprintf("turn %d", i)})
	}
	c.Classify(context.Background(), "hi", history)

	if got := len(chat.last.Messages); got != maxHistoryTurns+2 {
		t.Errorf("got %d messages, want %d", got, maxHistoryTurns+2)
	}
	if chat.last.Messages[1].Content != "turn 18" {
		t.Errorf("oldest replayed turn = %q, want turn 18", chat.last.Messages[1].Content)
	}
}

func TestClassify_SplitsMultiIntent(t *testing.T) {
	chat := &fakeChat{resp: toolResponse(`{"intents":[
		{"kind":"FIND_PART","partselect_number":"PS11752778","confidence":0.9},
		{"kind":"INSTALL_VIDEO","partselect_number":"PS11752778","confidence":0.9}
	]}`)}
	c := New(chat, Options{}, nil)

	intents := c.Classify(context.Background(), "is PS11752778 in stock and is there an install video?", nil)

	want := []Kind{KindFindPart, KindInstallVideo}
	for i, k := range want {
		if intents[i].Kind != k {
			t.Fatalf("intents = %+v, want kinds %v", intents, want)
		}
		if !intents[i].Entities.HasPartNumber() {
			t.Errorf("intent %d lost its part number", i)
		}
	}
}

func TestClassify_HallucinatedNumberOverwritten(t *testing.T) {
	chat := &fakeChat{resp: toolResponse(`{"intents":[{"kind":"CROSS_REFERENCE","manufacturer_number":"W10999999","confidence":0.9}]}`)}
	c := New(chat, Options{}, nil)

	intents := c.Classify(context.Background(), "what can replace part W10195416?", nil)

	if got := intents[0].Entities.ManufacturerNumber.Value; got != "W10195416" {
		t.Errorf("manufacturer = %q, want the literal W10195416", got)
	}
}

func TestClassify_RoutesMisfiledIdentifiers(t *testing.T) {
	// PartSelect number filed under manufacturer, manufacturer under model.
	chat := &fakeChat{resp: toolResponse(`{"intents":[{"kind":"FIND_PART","manufacturer_number":"PS11752778","model_number":"W10195416"}]}`)}
	c := New(chat, Options{}, nil)

	intents := c.Classify(context.Background(), "do you carry this one?", nil)

	e := intents[0].Entities
	if e.PartselectNumber.Value != "PS11752778" {
		t.Errorf("partselect = %q, want PS11752778", e.PartselectNumber.Value)
	}
	if e.ManufacturerNumber.Value != "W10195416" {
		t.Errorf("manufacturer = %q, want W10195416", e.ManufacturerNumber.Value)
	}
	if e.ModelNumber.Value != "" {
		t.Errorf("model = %q, want empty", e.ModelNumber.Value)
	}
}

func TestClassify_KeepsOpenWorldModelNumbers(t *testing.T) {
	// 11-digit Kenmore designations fit no regex shape but must survive.
	chat := &fakeChat{resp: toolResponse(`{"intents":[{"kind":"FIND_PART","model_number":"10651133210","appliance_type":"refrigerator","description":"ice maker"}]}`)}
	c := New(chat, Options{}, nil)

	intents := c.Classify(context.Background(), "need an ice maker part for my kenmore", nil)

	if got := intents[0].Entities.ModelNumber.Value; got != "10651133210" {
		t.Errorf("model = %q, want 10651133210", got)
	}
	if intents[0].Kind != KindFindPart {
		t.Errorf("kind = %s, want FIND_PART", intents[0].Kind)
	}
}

func TestClassify_ServiceErrorFallsBack(t *testing.T) {
	chat := &fakeChat{err: errors.New("upstream 500")}
	c := New(chat, Options{}, nil)

	intents := c.Classify(context.Background(), "how do I install PS11752778?", nil)

	if len(intents) != 1 || intents[0].Kind != KindInstallVideo {
		t.Fatalf("intents = %+v, want single INSTALL_VIDEO", intents)
	}
	if got := intents[0].Entities.PartselectNumber.Value; got != "PS11752778" {
		t.Errorf("partselect = %q, want PS11752778", got)
	}
}

func TestClassify_RejectsBadToolOutput(t *testing.T) {
	tests := []struct {
		name string
		resp *llm.Response
	}{
		{"malformed arguments", toolResponse(`{"intents":[{`)},
		{"unknown kind", toolResponse(`{"intents":[{"kind":"ORDER_PIZZA"}]}`)},
		{"empty classification", toolResponse(`{"intents":[]}`)},
		{"no tool call", &llm.Response{Content: "sure, happy to help"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(&fakeChat{resp: tt.resp}, Options{}, nil)

			intents := c.Classify(context.Background(), "do you have PS11752778 in stock?", nil)

			// Deterministic extraction takes over wholesale.
			if len(intents) != 1 || intents[0].Kind != KindFindPart {
				t.Fatalf("intents = %+v, want single FIND_PART", intents)
			}
			if got := intents[0].Entities.PartselectNumber.Value; got != "PS11752778" {
				t.Errorf("partselect = %q, want PS11752778", got)
			}
		})
	}
}

func TestClassify_NothingFoundIsGeneralQuestion(t *testing.T) {
	chat := &fakeChat{err: errors.New("down")}
	c := New(chat, Options{}, nil)

	intents := c.Classify(context.Background(), "hello there", nil)

	if len(intents) != 1 || intents[0].Kind != KindGeneralQuestion {
		t.Errorf("intents = %+v, want single GENERAL_QUESTION", intents)
	}
}

func TestClassify_NilClient(t *testing.T) {
	c := New(nil, Options{}, nil)

	intents := c.Classify(context.Background(), "what replaces W10195416?", nil)

	if len(intents) != 1 || intents[0].Kind != KindCrossReference {
		t.Fatalf("intents = %+v, want single CROSS_REFERENCE", intents)
	}
	if got := intents[0].Entities.ManufacturerNumber.Value; got != "W10195416" {
		t.Errorf("manufacturer = %q, want W10195416", got)
	}
}

func TestClassify_BreakerOpens(t *testing.T) {
	chat := &fakeChat{err: errors.New("timeout")}
	c := New(chat, Options{
		Breaker: resilience.BreakerOpts{FailThreshold: 2, Timeout: time.Minute},
	}, nil)

	for i := 0; i < 2; i++ {
		c.Classify(context.Background(), "is PS11752778 in stock?", nil)
	}
	if chat.calls != 2 {
		t.Fatalf("calls = %d, want 2", chat.calls)
	}

	// Breaker is open now; the model is not called but classification
	// still answers deterministically.
	intents := c.Classify(context.Background(), "is PS11752778 in stock?", nil)
	if chat.calls != 2 {
		t.Errorf("calls = %d after breaker opened, want 2", chat.calls)
	}
	if len(intents) != 1 || intents[0].Kind != KindFindPart {
		t.Errorf("intents = %+v, want single FIND_PART", intents)
	}
}

func TestClassify_ClarificationMissingModel(t *testing.T) {
	c := New(nil, Options{}, nil)

	intents := c.Classify(context.Background(), "I need a part for my fridge", nil)

	if len(intents) != 1 || intents[0].Kind != KindClarificationNeeded {
		t.Fatalf("intents = %+v, want single CLARIFICATION_NEEDED", intents)
	}
	if len(intents[0].Missing) != 1 || intents[0].Missing[0] != FieldModelNumber {
		t.Errorf("missing = %v, want [model_number]", intents[0].Missing)
	}
	if got := intents[0].Entities.ApplianceType.Value; got != "refrigerator" {
		t.Errorf("appliance = %q, want refrigerator", got)
	}
}

func TestClassify_ClarifiesModelOutputToo(t *testing.T) {
	chat := &fakeChat{resp: toolResponse(`{"intents":[{"kind":"INSTALL_VIDEO","appliance_type":"dishwasher"}]}`)}
	c := New(chat, Options{}, nil)

	intents := c.Classify(context.Background(), "show me an installation video for my dishwasher", nil)

	if intents[0].Kind != KindClarificationNeeded {
		t.Fatalf("kind = %s, want CLARIFICATION_NEEDED", intents[0].Kind)
	}
	if len(intents[0].Missing) != 1 || intents[0].Missing[0] != FieldPartNumber {
		t.Errorf("missing = %v, want [part_number]", intents[0].Missing)
	}
}

func TestClassify_DropsUnknownApplianceType(t *testing.T) {
	chat := &fakeChat{resp: toolResponse(`{"intents":[{"kind":"FIND_PART","appliance_type":"microwave","description":"door latch"}]}`)}
	c := New(chat, Options{}, nil)

	intents := c.Classify(context.Background(), "my microwave door latch broke", nil)

	e := intents[0].Entities
	if e.ApplianceType.Value != "" {
		t.Errorf("appliance = %q, want empty for an unserved type", e.ApplianceType.Value)
	}
	if intents[0].Kind != KindClarificationNeeded {
		t.Errorf("kind = %s, want CLARIFICATION_NEEDED", intents[0].Kind)
	}
}

func TestClassify_CapsIntentCount(t *testing.T) {
	chat := &fakeChat{resp: toolResponse(`{"intents":[
		{"kind":"GENERAL_QUESTION"},{"kind":"GENERAL_QUESTION"},{"kind":"GENERAL_QUESTION"},
		{"kind":"GENERAL_QUESTION"},{"kind":"GENERAL_QUESTION"},{"kind":"GENERAL_QUESTION"}
	]}`)}
	c := New(chat, Options{}, nil)

	intents := c.Classify(context.Background(), "hi", nil)

	if len(intents) != maxIntents {
		t.Errorf("got %d intents, want %d", len(intents), maxIntents)
	}
}
