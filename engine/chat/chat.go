// Package chat runs one conversation turn end to end. It classifies the
// utterance, translates each intent into a catalog query plan, executes
// the plans against the store, and composes the reply. A turn is a small
// state machine; every turn ends in RESPONDED or FAILED, and a FAILED
// turn yields a fixed apology rather than an error.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FixwellAI/fixwell-mvp/engine/catalog"
	"github.com/FixwellAI/fixwell-mvp/engine/compose"
	"github.com/FixwellAI/fixwell-mvp/engine/domain"
	"github.com/FixwellAI/fixwell-mvp/engine/intent"
	"github.com/FixwellAI/fixwell-mvp/engine/translate"
	"github.com/FixwellAI/fixwell-mvp/pkg/fn"
	"github.com/FixwellAI/fixwell-mvp/pkg/llm"
	"github.com/FixwellAI/fixwell-mvp/pkg/metrics"
)

// State names a step of the per-turn machine. States only move forward;
// CLARIFYING and FAILED are the two early exits.
type State string

const (
	StateReceived   State = "RECEIVED"
	StateClassified State = "CLASSIFIED"
	StateClarifying State = "CLARIFYING"
	StateTranslated State = "TRANSLATED"
	StateQueried    State = "QUERIED"
	StateComposed   State = "COMPOSED"
	StateResponded  State = "RESPONDED"
	StateFailed     State = "FAILED"
)

// maxClarifyAsks bounds how often the assistant re-asks for the same
// missing field before answering with whatever partial matches exist.
const maxClarifyAsks = 2

// historyLimit caps the turns replayed into the general-question prompt.
const historyLimit = 12

const generalPrompt = `You are Fixwell, a friendly assistant for refrigerator and dishwasher parts.
Answer briefly and helpfully. If the question is not about appliances or
their parts, politely steer the conversation back to how you can help.
Never invent part numbers, prices, or stock information.`

// PartStore is the slice of the catalog store a turn queries.
// *catalog.Store satisfies it.
type PartStore interface {
	GetPart(ctx context.Context, partID string) (domain.Part, error)
	GetPartByNumber(ctx context.Context, number string) (domain.Part, error)
	FindParts(ctx context.Context, f catalog.Filter) ([]domain.Part, error)
	FindEdges(ctx context.Context, partID string, relation domain.Relation) ([]domain.CompatibilityEdge, error)
	VideosForPart(ctx context.Context, partID string) ([]domain.InstallationVideo, error)
}

// Classifier turns an utterance into intents. *intent.Classifier
// satisfies it.
type Classifier interface {
	Classify(ctx context.Context, utterance string, history []domain.ConversationTurn) []intent.Intent
}

// Options configures turn handling.
type Options struct {
	// StoreRetry bounds retries of store calls that fail with
	// ErrStoreUnavailable. Other errors are never retried.
	StoreRetry fn.RetryOpts
	// ChatTimeout bounds the model call answering general questions.
	ChatTimeout time.Duration
	// Metrics receives the turn counters; nil means a private registry.
	Metrics *metrics.Registry
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		StoreRetry: fn.RetryOpts{
			MaxAttempts: 3,
			InitialWait: 100 * time.Millisecond,
			MaxWait:     time.Second,
			Jitter:      true,
		},
		ChatTimeout: 15 * time.Second,
	}
}

// Service orchestrates conversation turns.
type Service struct {
	store    PartStore
	classify Classifier
	chat     llm.ChatClient
	compose  *compose.Composer
	opts     Options
	log      *slog.Logger
	met      serviceMetrics
}

// New creates a Service. chat may be nil; general questions then get a
// canned answer and classification runs deterministically.
func New(store PartStore, classifier Classifier, chat llm.ChatClient, opts Options, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	def := DefaultOptions()
	if opts.StoreRetry.MaxAttempts == 0 {
		opts.StoreRetry = def.StoreRetry
	}
	if opts.ChatTimeout == 0 {
		opts.ChatTimeout = def.ChatTimeout
	}
	log = log.With("component", "chat")
	return &Service{
		store:    store,
		classify: classifier,
		chat:     chat,
		compose:  compose.New(log),
		opts:     opts,
		log:      log,
		met:      newServiceMetrics(opts.Metrics),
	}
}

// Respond answers one user turn. It never returns an error: any component
// failure the retries cannot absorb collapses to the apology text, and the
// cause is logged with the request id.
func (s *Service) Respond(ctx context.Context, query string, history []domain.ConversationTurn) string {
	start := time.Now()
	log := s.log.With("request_id", uuid.NewString())
	s.met.requests.Inc()
	defer s.met.latency.Since(start)

	state := StateReceived
	log.Info("turn received", "state", state, "query_len", len(query), "history_turns", len(history))

	intents := s.classify.Classify(ctx, query, history)
	if len(intents) == 0 {
		return s.compose.General()
	}
	state = StateClassified
	for _, in := range intents {
		s.met.intents(in.Kind).Inc()
	}
	log.Info("utterance classified", "state", state, "intents", kindList(intents))

	fns := make([]func() fn.Result[string], len(intents))
	for i, in := range intents {
		in := in
		fns[i] = func() fn.Result[string] {
			return s.resolve(ctx, log, query, in, history)
		}
	}
	sections, err := fn.FanOutResult(fns...).Unwrap()
	if err != nil {
		state = StateFailed
		s.met.failures.Inc()
		log.Error("turn failed", "state", state, "error", err)
		return s.compose.Apology()
	}

	reply := strings.Join(sections, "\n\n")
	state = StateComposed
	log.Debug("sections composed", "state", state, "sections", len(sections))
	state = StateResponded
	log.Info("turn answered", "state", state, "reply_len", len(reply))
	return reply
}

// resolve answers a single intent.
func (s *Service) resolve(ctx context.Context, log *slog.Logger, query string, in intent.Intent, history []domain.ConversationTurn) fn.Result[string] {
	switch in.Kind {
	case intent.KindClarificationNeeded:
		return s.clarify(ctx, log, in, history)
	case intent.KindGeneralQuestion:
		return fn.Ok(s.generalAnswer(ctx, query, history))
	}
	plan := translate.Translate(in)
	log.Debug("intent translated", "state", StateTranslated, "kind", in.Kind)
	return s.execute(ctx, log, plan)
}

// clarify asks for the first missing field, unless the last asks for that
// same field went unanswered; then it stops repeating itself and answers
// with whatever the known entities can match.
func (s *Service) clarify(ctx context.Context, log *slog.Logger, in intent.Intent, history []domain.ConversationTurn) fn.Result[string] {
	var field string
	if len(in.Missing) > 0 {
		field = in.Missing[0]
	}
	if field == "" || clarificationStreak(history, field) < maxClarifyAsks {
		log.Debug("asking for missing fields", "state", StateClarifying, "missing", in.Missing)
		return fn.Ok(s.compose.Clarification(in))
	}

	log.Info("clarification limit reached, answering with partial matches", "field", field)
	relaxed := in
	relaxed.Kind = intent.KindFindPart
	relaxed.Missing = nil
	return s.execute(ctx, log, translate.Translate(relaxed))
}

// execute runs one query plan against the store and composes its section.
func (s *Service) execute(ctx context.Context, log *slog.Logger, plan translate.Plan) fn.Result[string] {
	switch p := plan.(type) {
	case translate.PartLookup:
		part, err := s.lookupNumber(ctx, p.Number)
		if errors.Is(err, domain.ErrPartNotFound) {
			return fn.Ok(s.compose.PartNotFound(p.Number))
		}
		if err != nil {
			return fn.Err[string](err)
		}
		log.Debug("plan executed", "state", StateQueried, "plan", "part_lookup", "part_id", part.PartID)
		return fn.Ok(s.compose.SinglePart(part))

	case translate.PartSearch:
		parts, err := storeCall(ctx, s, func(ctx context.Context) ([]domain.Part, error) {
			return s.store.FindParts(ctx, p.Filter)
		})
		if err != nil {
			return fn.Err[string](err)
		}
		log.Debug("plan executed", "state", StateQueried, "plan", "part_search", "hits", len(parts))
		return fn.Ok(s.compose.PartList(parts))

	case translate.VideoLookup:
		part, err := s.lookupNumber(ctx, p.Number)
		if errors.Is(err, domain.ErrPartNotFound) {
			return fn.Ok(s.compose.PartNotFound(p.Number))
		}
		if err != nil {
			return fn.Err[string](err)
		}
		videos, err := storeCall(ctx, s, func(ctx context.Context) ([]domain.InstallationVideo, error) {
			return s.store.VideosForPart(ctx, part.PartID)
		})
		if err != nil {
			return fn.Err[string](err)
		}
		log.Debug("plan executed", "state", StateQueried, "plan", "video_lookup", "videos", len(videos))
		return fn.Ok(s.compose.Videos(part, videos))

	case translate.EdgeLookup:
		part, err := s.lookupNumber(ctx, p.Number)
		if errors.Is(err, domain.ErrPartNotFound) {
			return fn.Ok(s.compose.PartNotFound(p.Number))
		}
		if err != nil {
			return fn.Err[string](err)
		}
		edges, err := storeCall(ctx, s, func(ctx context.Context) ([]domain.CompatibilityEdge, error) {
			return s.store.FindEdges(ctx, part.PartID, "")
		})
		if err != nil {
			return fn.Err[string](err)
		}
		related, err := s.resolveCounterparts(ctx, log, part, edges)
		if err != nil {
			return fn.Err[string](err)
		}
		log.Debug("plan executed", "state", StateQueried, "plan", "edge_lookup", "edges", len(related))
		return fn.Ok(s.compose.Edges(part, related))
	}

	// NoQuery: nothing the entities can support, so ask rather than guess.
	return fn.Ok(s.compose.Clarification(intent.Intent{Kind: intent.KindClarificationNeeded}))
}

func (s *Service) lookupNumber(ctx context.Context, number string) (domain.Part, error) {
	return storeCall(ctx, s, func(ctx context.Context) (domain.Part, error) {
		return s.store.GetPartByNumber(ctx, number)
	})
}

// resolveCounterparts loads the far end of each edge. A missing
// counterpart is skipped; the edge may point at a part that was never
// ingested.
func (s *Service) resolveCounterparts(ctx context.Context, log *slog.Logger, anchor domain.Part, edges []domain.CompatibilityEdge) ([]compose.RelatedPart, error) {
	related := make([]compose.RelatedPart, 0, len(edges))
	for _, e := range edges {
		outbound := e.FromPartID == anchor.PartID
		otherID := e.ToPartID
		if !outbound {
			otherID = e.FromPartID
		}
		other, err := storeCall(ctx, s, func(ctx context.Context) (domain.Part, error) {
			return s.store.GetPart(ctx, otherID)
		})
		if errors.Is(err, domain.ErrPartNotFound) {
			log.Warn("edge counterpart missing, skipping", "part_id", otherID)
			continue
		}
		if err != nil {
			return nil, err
		}
		related = append(related, compose.RelatedPart{Part: other, Relation: e.Relation, Outbound: outbound})
	}
	return related, nil
}

// generalAnswer handles small talk and off-catalog questions through the
// chat model when one is configured, with a canned fallback.
func (s *Service) generalAnswer(ctx context.Context, query string, history []domain.ConversationTurn) string {
	if s.chat == nil {
		return s.compose.General()
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.ChatTimeout)
	defer cancel()

	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: generalPrompt})
	for _, t := range history {
		msgs = append(msgs, llm.Message{Role: string(t.Role), Content: t.Content})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: query})

	resp, err := s.chat.Complete(ctx, llm.Request{Messages: msgs, Temperature: 0.4, MaxTokens: 400})
	if err != nil || resp == nil || strings.TrimSpace(resp.Content) == "" {
		if err != nil {
			s.log.Warn("general answer fell back to canned text", "error", err)
		}
		return s.compose.General()
	}
	return resp.Content
}

// storeCall runs op, retrying only while the store itself is unavailable.
// Not-found and validation errors pass straight through.
func storeCall[T any](ctx context.Context, s *Service, op func(context.Context) (T, error)) (T, error) {
	type outcome struct {
		val T
		err error
	}
	attempt := 0
	res := fn.Retry(ctx, s.opts.StoreRetry, func(ctx context.Context) fn.Result[outcome] {
		attempt++
		if attempt > 1 {
			s.met.storeRetries.Inc()
		}
		v, err := op(ctx)
		if err != nil && errors.Is(err, domain.ErrStoreUnavailable) {
			return fn.Err[outcome](err)
		}
		return fn.Ok(outcome{val: v, err: err})
	})
	o, err := res.Unwrap()
	if err != nil {
		var zero T
		return zero, err
	}
	return o.val, o.err
}

// clarificationStreak counts how many assistant turns in a row, walking
// back from the end of the history, asked for the given field. User turns
// in between do not break the streak.
func clarificationStreak(history []domain.ConversationTurn, field string) int {
	streak := 0
	for i := len(history) - 1; i >= 0; i-- {
		t := history[i]
		if t.Role != domain.RoleAssistant {
			continue
		}
		f, ok := clarifiedField(t.Content)
		if !ok || f != field {
			break
		}
		streak++
	}
	return streak
}

// clarifiedField recognizes which field an earlier assistant turn asked
// for. The anchors match the composer's clarification prompts and nothing
// else it emits.
func clarifiedField(content string) (string, bool) {
	switch {
	case strings.Contains(content, "Which appliance is this for"):
		return intent.FieldApplianceType, true
	case strings.Contains(content, "model number? You can find it here"):
		return intent.FieldModelNumber, true
	case strings.Contains(content, "Could you share the part number?"):
		return intent.FieldPartNumber, true
	}
	return "", false
}

func kindList(intents []intent.Intent) []string {
	kinds := make([]string, len(intents))
	for i, in := range intents {
		kinds[i] = string(in.Kind)
	}
	return kinds
}
