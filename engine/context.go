package engine

import (
	"github.com/msgpilot/msgpilot/internal/runtimecfg"
	"github.com/msgpilot/msgpilot/provider"
)

// truncationMarker is appended to tool output cut down by Prepare.
const truncationMarker = "... [truncated]"

// ContextConfig controls how much history is sent to the model.
type ContextConfig struct {
	// MaxTurns is the hard cap on turns kept in context. Older turns are
	// dropped entirely.
	MaxTurns int
	// FullFidelityTurns is how many of the most recent turns keep their tool
	// output untouched.
	FullFidelityTurns int
	// ToolResultBudget is the character budget for tool output in older
	// turns.
	ToolResultBudget int
}

// DefaultContextConfig returns the standard windowing parameters.
func DefaultContextConfig() ContextConfig {
	return ContextConfig{
		MaxTurns:          runtimecfg.ContextDefaultMaxTurns,
		FullFidelityTurns: runtimecfg.ContextDefaultFullFidelityTurns,
		ToolResultBudget:  runtimecfg.ContextDefaultToolResultBudget,
	}
}

func (c ContextConfig) withDefaults() ContextConfig {
	d := DefaultContextConfig()
	if c.MaxTurns <= 0 {
		c.MaxTurns = d.MaxTurns
	}
	if c.FullFidelityTurns <= 0 {
		c.FullFidelityTurns = d.FullFidelityTurns
	}
	if c.ToolResultBudget <= 0 {
		c.ToolResultBudget = d.ToolResultBudget
	}
	return c
}

// TrimReport describes what context preparation removed.
type TrimReport struct {
	DroppedTurns      int `json:"dropped_turns"`
	TruncatedMessages int `json:"truncated_messages"`
	RemovedBytes      int `json:"removed_bytes"`
	ApproxTokens      int `json:"approx_tokens"`
}

// Prepare windows and truncates history before it is sent to the model. It is
// pure and deterministic. The second return is nil when nothing was removed.
//
// Turns start at each user message and run until the next one. Turns beyond
// MaxTurns are dropped oldest first. In turns older than FullFidelityTurns
// from the end, tool message content is cut to ToolResultBudget characters
// with a marker appended. Messages in the full-fidelity window pass through
// byte for byte.
func (c ContextConfig) Prepare(history []provider.Message) ([]provider.Message, *TrimReport) {
	c = c.withDefaults()
	turns := partitionTurns(history)

	report := TrimReport{}
	if len(turns) > c.MaxTurns {
		for _, turn := range turns[:len(turns)-c.MaxTurns] {
			report.DroppedTurns++
			for _, msg := range turn {
				report.RemovedBytes += len(msg.Content)
			}
		}
		turns = turns[len(turns)-c.MaxTurns:]
	}

	out := make([]provider.Message, 0, len(history))
	for i, turn := range turns {
		fullFidelity := len(turns)-i <= c.FullFidelityTurns
		for _, msg := range turn {
			if !fullFidelity && msg.Role == "tool" && len(msg.Content) > c.ToolResultBudget {
				report.TruncatedMessages++
				report.RemovedBytes += len(msg.Content) - c.ToolResultBudget
				msg.Content = msg.Content[:c.ToolResultBudget] + truncationMarker
			}
			out = append(out, msg)
		}
	}

	if report.DroppedTurns == 0 && report.TruncatedMessages == 0 {
		return out, nil
	}
	report.ApproxTokens = estimateTokens(out)
	return out, &report
}

// partitionTurns splits history into turns, each starting at a user message.
// Messages before the first user message form a leading turn of their own so
// the partition covers the whole history.
func partitionTurns(history []provider.Message) [][]provider.Message {
	var turns [][]provider.Message
	for _, msg := range history {
		if msg.Role == "user" || len(turns) == 0 {
			turns = append(turns, []provider.Message{msg})
			continue
		}
		turns[len(turns)-1] = append(turns[len(turns)-1], msg)
	}
	return turns
}
