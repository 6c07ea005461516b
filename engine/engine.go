package engine

import (
	"context"
	"encoding/json"

	"github.com/jonboulle/clockwork"

	"github.com/msgpilot/msgpilot/internal/metrics"
	"github.com/msgpilot/msgpilot/internal/runtimecfg"
	"github.com/msgpilot/msgpilot/logger"
	"github.com/msgpilot/msgpilot/provider"
	"github.com/msgpilot/msgpilot/tools"
)

// roundLimitMessage is the fixed final text emitted when the tool-round
// budget runs out. Hitting the budget is a defined termination, not an error.
const roundLimitMessage = "I've reached the maximum number of tool calls. Here's what I found so far; please try a more specific question if you need more details."

// Phase is a state of the conversation loop.
type Phase int

const (
	// PhaseAwaitingModel means the next step submits history to the model.
	PhaseAwaitingModel Phase = iota
	// PhaseExecutingTools means the next step runs the pending tool calls.
	PhaseExecutingTools
	// PhaseDone is terminal: the model produced final text or the round
	// budget ran out.
	PhaseDone
	// PhaseError is terminal: the model call failed.
	PhaseError
)

// State is the loop position between steps. Step consumes a State and
// produces the next one along with the events the transition emitted, so a
// single transition can be tested with one stubbed model response.
type State struct {
	Phase   Phase
	History []provider.Message
	Pending []provider.ToolCall
	Round   int
}

// Terminal reports whether the loop has finished.
func (s State) Terminal() bool {
	return s.Phase == PhaseDone || s.Phase == PhaseError
}

// Engine runs the conversation loop against a model provider and a tool
// registry.
type Engine struct {
	provider      provider.Provider
	registry      *tools.Registry
	contextCfg    ContextConfig
	maxRounds     int
	assistantName string
	clock         clockwork.Clock
}

// Option configures an Engine.
type Option func(*Engine)

// WithContextConfig overrides the context windowing parameters.
func WithContextConfig(cfg ContextConfig) Option {
	return func(e *Engine) { e.contextCfg = cfg }
}

// WithMaxRounds overrides the tool-round budget.
func WithMaxRounds(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxRounds = n
		}
	}
}

// WithAssistantName sets the name used in the system prompt.
func WithAssistantName(name string) Option {
	return func(e *Engine) { e.assistantName = name }
}

// WithClock injects the clock used for the system prompt timestamp.
func WithClock(clock clockwork.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// New creates an engine.
func New(p provider.Provider, registry *tools.Registry, opts ...Option) *Engine {
	e := &Engine{
		provider:   p,
		registry:   registry,
		contextCfg: DefaultContextConfig(),
		maxRounds:  runtimecfg.EngineDefaultMaxRounds,
		clock:      clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run drives the loop to a terminal phase, pushing events to sink as they
// occur. The caller must durably store persist events before acting on later
// ones. History must end with a user message.
func (e *Engine) Run(ctx context.Context, history []provider.Message, sink func(Event)) error {
	st := State{Phase: PhaseAwaitingModel, History: history}
	for !st.Terminal() {
		var events []Event
		st, events = e.Step(ctx, st)
		for _, ev := range events {
			sink(ev)
		}
	}
	return nil
}

// Step advances the loop by one transition. It never returns an error; model
// failures surface as an error event and the ERROR phase.
func (e *Engine) Step(ctx context.Context, st State) (State, []Event) {
	switch st.Phase {
	case PhaseAwaitingModel:
		return e.stepAwaitingModel(ctx, st)
	case PhaseExecutingTools:
		return e.stepExecutingTools(ctx, st)
	default:
		return st, nil
	}
}

func (e *Engine) stepAwaitingModel(ctx context.Context, st State) (State, []Event) {
	if st.Round >= e.maxRounds {
		logger.Warn("tool round budget exhausted", "rounds", st.Round)
		st.Phase = PhaseDone
		return st, []Event{messageEvent(roundLimitMessage)}
	}

	prepared, trim := e.contextCfg.Prepare(st.History)
	var events []Event
	if trim != nil {
		logger.Debug("context trimmed",
			"dropped_turns", trim.DroppedTurns,
			"truncated_messages", trim.TruncatedMessages,
			"removed_bytes", trim.RemovedBytes)
		events = append(events, Event{Type: EventContextTrim, Trim: trim})
	}

	req := &provider.Request{
		Messages: append(
			[]provider.Message{provider.SystemMessage(SystemPrompt(e.assistantName, e.clock.Now()))},
			prepared...,
		),
		Tools: e.registry.Defs(),
	}

	resp, err := e.provider.Chat(ctx, req)
	if err != nil {
		metrics.ModelCalls.WithLabelValues("error").Inc()
		logger.Error("model call failed", "error", err)
		st.Phase = PhaseError
		return st, append(events, errorEvent(err))
	}
	metrics.ModelCalls.WithLabelValues("ok").Inc()

	if !resp.HasToolCalls() {
		st.Phase = PhaseDone
		return st, append(events, messageEvent(resp.Content))
	}

	assistant := provider.AssistantMessageWithTools(resp.Content, resp.ToolCalls)
	st.History = append(st.History, assistant)
	st.Pending = resp.ToolCalls
	st.Round++
	st.Phase = PhaseExecutingTools
	return st, append(events, persistEvent(assistant))
}

func (e *Engine) stepExecutingTools(ctx context.Context, st State) (State, []Event) {
	var events []Event
	for _, call := range st.Pending {
		name := call.Function.Name
		args := call.Function.Arguments
		events = append(events, Event{Type: EventToolCall, Tool: name, Args: args})

		result := e.registry.Run(ctx, name, json.RawMessage(args))
		events = append(events, Event{Type: EventToolResult, Tool: name, Content: result})

		toolMsg := provider.ToolResultMessage(call.ID, name, result)
		st.History = append(st.History, toolMsg)
		events = append(events, persistEvent(toolMsg))
	}
	st.Pending = nil
	st.Phase = PhaseAwaitingModel
	return st, events
}
