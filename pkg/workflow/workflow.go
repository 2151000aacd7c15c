// Package workflow implements the classify -> dispatch -> finalize
// state machine that drives one request (spec.md §4.6), translating
// backend adapter output into the closed events.Event protocol. The
// node-by-node state tracking mirrors the teacher's IterationState
// pattern (pkg/agent/iteration.go): a small mutable struct threaded
// through a sequence of explicit steps rather than a generic FSM
// library.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codeready-toolchain/qa-router/pkg/backend"
	"github.com/codeready-toolchain/qa-router/pkg/classifier"
	"github.com/codeready-toolchain/qa-router/pkg/config"
	"github.com/codeready-toolchain/qa-router/pkg/conversation"
	"github.com/codeready-toolchain/qa-router/pkg/events"
	"github.com/codeready-toolchain/qa-router/pkg/llmclient"
	"github.com/codeready-toolchain/qa-router/pkg/masking"
	"github.com/codeready-toolchain/qa-router/pkg/memory"
	"github.com/codeready-toolchain/qa-router/pkg/store"

	"github.com/google/uuid"
)

// disabledBackendMessageFmt formats the canned reply an executor node returns
// when its backend is turned off by configuration (spec.md §4.6 "the
// executor short-circuits with a canned informative message").
const disabledBackendMessageFmt = "🔧 %s Agent is not enabled"

// backendCallTimeout bounds a single adapter.Answer call (spec.md §5
// "Timeouts... configurable"). The environment/config knob list in
// spec.md §6 is closed and does not name one, so this is a fixed
// per-process constant rather than a new config field; see DESIGN.md.
const backendCallTimeout = 45 * time.Second

// Request is one incoming question for a thread.
type Request struct {
	ThreadID  string
	UserID    string
	CompanyID string
	Message   string
}

// Engine runs the classify/dispatch/finalize state machine for each
// request, persisting checkpoints through store.Client and emitting
// the events.Event protocol to the caller-provided sink.
type Engine struct {
	store      *store.Client
	classifier *classifier.Classifier
	finalizer  backend.LLMGenerator
	masker     *masking.Service

	sqlAdapterFactory     func() backend.Adapter
	ragAdapterFactory     func() backend.Adapter
	generalAdapterFactory func() backend.Adapter

	enableSQL bool
	enableRAG bool

	maxConversationMessages  int
	followupMaxContextTokens int
	queryResultMemorySize    int
	followupDetectionEnabled bool
}

// AdapterFactories groups the per-request adapter constructors. A
// fresh adapter is built for every execute node invocation, matching
// the teacher's "agents are created per-execution, not shared" rule.
type AdapterFactories struct {
	SQL     func() backend.Adapter
	RAG     func() backend.Adapter
	General func() backend.Adapter
}

// New creates an Engine.
func New(storeClient *store.Client, clf *classifier.Classifier, finalizer backend.LLMGenerator, adapters AdapterFactories, cfg *config.Config) *Engine {
	return &Engine{
		store:                    storeClient,
		classifier:               clf,
		finalizer:                finalizer,
		masker:                   masking.NewService(),
		sqlAdapterFactory:        adapters.SQL,
		ragAdapterFactory:        adapters.RAG,
		generalAdapterFactory:    adapters.General,
		enableSQL:                cfg.EnableSQLAgent,
		enableRAG:                cfg.EnableRAGAgent,
		maxConversationMessages:  cfg.MaxConversationMessages,
		followupMaxContextTokens: cfg.FollowupMaxContextTokens,
		queryResultMemorySize:    cfg.QueryResultMemorySize,
		followupDetectionEnabled: cfg.FollowupDetectionEnabled,
	}
}

// Run executes one request to completion, emitting events to sink. It
// acquires the per-thread lock for the duration of the request
// (spec.md §5 "Per-thread serialization") and releases it on both
// normal completion and error.
func (e *Engine) Run(ctx context.Context, req Request, sink events.Sink) error {
	release := e.store.Lock(req.ThreadID)
	defer release()

	state, found, err := e.store.GetCheckpoint(ctx, req.ThreadID)
	if err != nil {
		// A caller that is already gone gets the cancellation path below,
		// not an error event.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return e.fatal(ctx, sink, fmt.Errorf("load checkpoint: %w", err))
	}
	if !found {
		state = &conversation.WorkflowState{QueryResultMemory: memory.New(e.queryResultMemorySize)}
	}
	if state.QueryResultMemory == nil {
		state.QueryResultMemory = memory.New(e.queryResultMemorySize)
	}

	now := time.Now
	state.Question = req.Message

	conv := &conversation.Conversation{ThreadID: req.ThreadID, Messages: state.Messages, State: state}
	conv.AppendUserMessage(req.Message, now())
	conv.Messages = conversation.TruncateMessages(conv.Messages, e.maxConversationMessages)
	state.Messages = conv.Messages

	// followup_detection_enabled gates both this context block and rule
	// 3 inside the classifier (spec.md §6); when disabled the classifier
	// sees no prior-result summary to reason a follow-up from.
	var memoryContext string
	if e.followupDetectionEnabled {
		memoryContext = state.QueryResultMemory.FormatContext(state.QueryResultMemory.Len(), e.followupMaxContextTokens, true)
	}

	route, err := e.classifier.Classify(ctx, req.Message, historyWithoutCurrent(conv.Messages), memoryContext)
	if err != nil {
		return e.fatal(ctx, sink, fmt.Errorf("classify: %w", err))
	}

	evtRoute := events.Route(route)
	if err := sink.Emit(ctx, events.NewRouteDecisionEvent(evtRoute)); err != nil {
		return e.fatal(ctx, sink, err)
	}
	if err := sink.Emit(ctx, events.NewToolStartEvent(events.RouteToTool(evtRoute))); err != nil {
		return e.fatal(ctx, sink, err)
	}

	var reasoningTokens, finalTokens int
	var finalEmitted bool
	answerText, structured, routeErr := e.execute(ctx, route, conv, state, sink, &reasoningTokens, &finalTokens, &finalEmitted)

	// Caller disconnect discards whatever partial state execute produced
	// instead of routing it through the errors-as-data path: no
	// checkpoint write, no complete event, so a half-formed assistant
	// turn is never recorded (spec.md §5 "Cancellation"). A per-backend
	// deadline alone does not land here; see backendCallTimeout above.
	if ctx.Err() != nil {
		return ctx.Err()
	}

	slot := answerText
	if routeErr != nil {
		// Errors-as-data: the failed backend's slot holds a human-readable
		// message and the workflow still proceeds to finalize (spec.md
		// §4.6; the error event is reserved for fatal infrastructure
		// failures, handled by e.fatal above).
		slot = fmt.Sprintf("I couldn't complete that request: %v", e.masker.Mask(routeErr.Error()))
	}
	assignResultSlot(state, route, slot)
	if route == classifier.RouteSQL && structured != nil {
		state.SQLStructuredResult = structured
	}

	final := selectFinalResult(state)
	state.FinalAnswer = final
	state.FinalStructuredData = state.SQLStructuredResult

	// finalize: the selected slot is passed through the LLM with an
	// identity prompt so finalization is uniformly streamable (spec.md
	// §4.6), but only when the chosen route's own execution didn't
	// already stream a final-channel chunk for it (the normal adapter
	// success path streams incrementally as it goes; this path covers
	// adapter failure and the no-result fallback). Tracked separately
	// from finalTokens: a genuinely empty final answer still counts as
	// "already streamed" and must not be finalized a second time.
	if !finalEmitted {
		if err := e.emitIdentityFinalization(ctx, final, sink, &finalTokens); err != nil {
			return e.fatal(ctx, sink, fmt.Errorf("finalize: %w", err))
		}
	}

	conv.AppendAssistantMessage(final, string(route), now())
	state.Messages = conv.Messages

	if err := e.store.AppendMessages(ctx, req.ThreadID, newMessagesSince(conv.Messages, found)); err != nil {
		return e.fatal(ctx, sink, fmt.Errorf("append messages: %w", err))
	}
	if err := e.store.PutCheckpoint(ctx, req.ThreadID, newCheckpointID(), state); err != nil {
		return e.fatal(ctx, sink, fmt.Errorf("persist checkpoint: %w", err))
	}

	return sink.Emit(ctx, events.NewCompleteEvent(events.CompleteStats{
		Tokens:          reasoningTokens + finalTokens,
		ReasoningTokens: reasoningTokens,
		FinalTokens:     finalTokens,
	}))
}

// execute runs the chosen backend (or its disabled short-circuit),
// forwarding its stream to sink as token events and returning its
// final answer text plus (SQL only) structured rows.
func (e *Engine) execute(ctx context.Context, route classifier.Route, conv *conversation.Conversation, state *conversation.WorkflowState, sink events.Sink, reasoningTokens, finalTokens *int, finalEmitted *bool) (string, []memory.Row, error) {
	switch route {
	case classifier.RouteSQL:
		if !e.enableSQL {
			return e.shortCircuit(ctx, sink, "SQL", finalTokens, finalEmitted), nil, nil
		}
		return e.runAdapter(ctx, e.sqlAdapterFactory(), conv, state, sink, reasoningTokens, finalTokens, finalEmitted)
	case classifier.RouteRAG:
		if !e.enableRAG {
			return e.shortCircuit(ctx, sink, "RAG", finalTokens, finalEmitted), nil, nil
		}
		return e.runAdapter(ctx, e.ragAdapterFactory(), conv, state, sink, reasoningTokens, finalTokens, finalEmitted)
	default:
		return e.runAdapter(ctx, e.generalAdapterFactory(), conv, state, sink, reasoningTokens, finalTokens, finalEmitted)
	}
}

// emitIdentityFinalization passes text through the finalizer LLM with
// an instruction to return it verbatim, then emits the reply as a
// final-channel token event. Using the LLM even for a pass-through
// keeps the finalize node's output path uniform regardless of which
// branch produced the text (spec.md §4.6).
func (e *Engine) emitIdentityFinalization(ctx context.Context, text string, sink events.Sink, finalTokens *int) error {
	reply, err := e.finalizer.Complete(ctx, identityFinalizationPrompt(text), 0, len(text)/2+64)
	if err != nil {
		reply = text
	}
	*finalTokens += estimateTokenCount(reply)
	return sink.Emit(ctx, events.NewTokenEvent(events.ChannelFinal, reply))
}

func (e *Engine) shortCircuit(ctx context.Context, sink events.Sink, backendName string, finalTokens *int, finalEmitted *bool) string {
	message := fmt.Sprintf(disabledBackendMessageFmt, backendName)
	_ = sink.Emit(ctx, events.NewTokenEvent(events.ChannelFinal, message))
	*finalTokens += estimateTokenCount(message)
	*finalEmitted = true
	return message
}

// runAdapter drains the adapter's stream concurrently with Answer,
// since Answer sends on that channel as it goes and blocks once the
// channel's buffer is full and nothing is reading it.
func (e *Engine) runAdapter(ctx context.Context, adapter backend.Adapter, conv *conversation.Conversation, state *conversation.WorkflowState, sink events.Sink, reasoningTokens, finalTokens *int, finalEmitted *bool) (string, []memory.Row, error) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for chunk := range adapter.Stream() {
			channel := events.ChannelFinal
			if chunk.Channel == backend.ChannelReasoning {
				channel = events.ChannelReasoning
				*reasoningTokens += estimateTokenCount(chunk.Content)
			} else {
				*finalTokens += estimateTokenCount(chunk.Content)
				// A chunk's presence on the final channel means this route
				// already finalized, even if its content happens to be
				// empty (estimateTokenCount would otherwise read as "never
				// streamed" and trigger a second, duplicate finalization).
				*finalEmitted = true
			}
			_ = sink.Emit(ctx, events.NewTokenEvent(channel, chunk.Content))
		}
	}()

	backendCtx, cancel := context.WithTimeout(ctx, backendCallTimeout)
	defer cancel()

	result, err := adapter.Answer(backendCtx, conv.State.Question, historyWithoutCurrent(conv.Messages), state.QueryResultMemory)
	<-done
	if err != nil {
		// A deadline that fired without the caller itself cancelling is
		// a recoverable adapter error, not workflow cancellation (spec.md
		// §5 "Timeouts... surfaces a recoverable adapter error").
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return "", nil, fmt.Errorf("timed out querying the backend")
		}
		return "", nil, err
	}
	return result.AnswerText, result.StructuredData, nil
}

// fatal emits a terminal error event for infrastructural failures
// (spec.md §4.6, §7) and returns err so the caller (the HTTP edge) can
// log it.
func (e *Engine) fatal(ctx context.Context, sink events.Sink, err error) error {
	_ = sink.Emit(ctx, events.NewErrorEvent(err.Error()))
	return err
}

func assignResultSlot(state *conversation.WorkflowState, route classifier.Route, text string) {
	switch route {
	case classifier.RouteSQL:
		state.SQLResult = text
	case classifier.RouteRAG:
		state.RAGResult = text
	default:
		state.GeneralResult = text
	}
}

// selectFinalResult applies the finalize node's precedence: SQL > RAG >
// general; if all empty, a default message (spec.md §4.6).
func selectFinalResult(state *conversation.WorkflowState) string {
	switch {
	case state.SQLResult != "":
		return state.SQLResult
	case state.RAGResult != "":
		return state.RAGResult
	case state.GeneralResult != "":
		return state.GeneralResult
	default:
		return "I couldn't find an answer."
	}
}

// historyWithoutCurrent returns every message except the most recently
// appended user message, so adapters and the classifier receive prior
// turns as "history" and the current question separately.
func historyWithoutCurrent(messages []conversation.Message) []conversation.Message {
	if len(messages) == 0 {
		return nil
	}
	return messages[:len(messages)-1]
}

// newMessagesSince returns the messages to append to durable storage
// for this turn: the current user message plus the new assistant
// reply. When the thread had no prior checkpoint, the whole (short)
// history is new.
func newMessagesSince(messages []conversation.Message, hadCheckpoint bool) []conversation.Message {
	if !hadCheckpoint {
		return messages
	}
	if len(messages) < 2 {
		return messages
	}
	return messages[len(messages)-2:]
}

func identityFinalizationPrompt(text string) []llmclient.Message {
	return []llmclient.Message{
		{Role: llmclient.RoleSystem, Content: "Return exactly the following text, with no changes, no quotes, and no additional commentary."},
		{Role: llmclient.RoleUser, Content: text},
	}
}

func newCheckpointID() string {
	return uuid.NewString()
}

func estimateTokenCount(text string) int {
	const charsPerToken = 4
	return (len(text) + charsPerToken - 1) / charsPerToken
}
