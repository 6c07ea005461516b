package engine

import (
	"fmt"
	"strings"
	"testing"

	"github.com/msgpilot/msgpilot/provider"
)

// buildTurns makes n turns, each a user message followed by an assistant
// reply, with tool output of toolLen bytes in between.
func buildTurns(n, toolLen int) []provider.Message {
	var msgs []provider.Message
	for i := 0; i < n; i++ {
		msgs = append(msgs,
			provider.UserMessage(fmt.Sprintf("question %d", i)),
			provider.ToolResultMessage(fmt.Sprintf("call-%d", i), "lookup", strings.Repeat("x", toolLen)),
			provider.AssistantMessage(fmt.Sprintf("answer %d", i)),
		)
	}
	return msgs
}

func TestPrepareTurnWindow(t *testing.T) {
	cfg := ContextConfig{MaxTurns: 15, FullFidelityTurns: 3, ToolResultBudget: 500}

	tests := []struct {
		name      string
		turns     int
		wantTurns int
		wantDrop  int
	}{
		{name: "under the cap", turns: 5, wantTurns: 5, wantDrop: 0},
		{name: "at the cap", turns: 15, wantTurns: 15, wantDrop: 0},
		{name: "over the cap", turns: 20, wantTurns: 15, wantDrop: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, report := cfg.Prepare(buildTurns(tt.turns, 10))
			got := len(partitionTurns(out))
			if got != tt.wantTurns {
				t.Errorf("prepared turn count = %d, want %d", got, tt.wantTurns)
			}
			if tt.wantDrop == 0 {
				if report != nil && report.DroppedTurns != 0 {
					t.Errorf("unexpected drop report %+v", report)
				}
				return
			}
			if report == nil || report.DroppedTurns != tt.wantDrop {
				t.Errorf("drop report = %+v, want %d dropped turns", report, tt.wantDrop)
			}
			// The newest turns survive.
			last := out[len(out)-1]
			if last.Content != fmt.Sprintf("answer %d", tt.turns-1) {
				t.Errorf("latest turn missing after drop, tail = %q", last.Content)
			}
		})
	}
}

func TestPrepareTruncatesOldToolOutput(t *testing.T) {
	cfg := ContextConfig{MaxTurns: 15, FullFidelityTurns: 3, ToolResultBudget: 500}
	history := buildTurns(6, 2000)

	out, report := cfg.Prepare(history)
	if report == nil {
		t.Fatal("no trim report despite oversized tool output")
	}
	if report.TruncatedMessages != 3 {
		t.Errorf("truncated %d messages, want 3", report.TruncatedMessages)
	}

	turns := partitionTurns(out)
	for i, turn := range turns {
		inWindow := len(turns)-i <= cfg.FullFidelityTurns
		for _, msg := range turn {
			if msg.Role != "tool" {
				continue
			}
			if inWindow {
				if len(msg.Content) != 2000 {
					t.Errorf("turn %d: full-fidelity tool output modified, len = %d", i, len(msg.Content))
				}
				continue
			}
			if len(msg.Content) > cfg.ToolResultBudget+len(truncationMarker) {
				t.Errorf("turn %d: tool output len = %d exceeds budget plus marker", i, len(msg.Content))
			}
			if !strings.HasSuffix(msg.Content, truncationMarker) {
				t.Errorf("turn %d: truncated output missing marker", i)
			}
		}
	}
}

func TestPrepareShortToolOutputUntouched(t *testing.T) {
	cfg := ContextConfig{MaxTurns: 15, FullFidelityTurns: 3, ToolResultBudget: 500}
	history := buildTurns(6, 100)

	out, report := cfg.Prepare(history)
	if report != nil {
		t.Errorf("trim report %+v for history under every limit", report)
	}
	if len(out) != len(history) {
		t.Fatalf("message count changed: %d -> %d", len(history), len(out))
	}
	for i := range history {
		if out[i].Content != history[i].Content {
			t.Errorf("message %d modified", i)
		}
	}
}

func TestPrepareDeterministic(t *testing.T) {
	cfg := ContextConfig{MaxTurns: 4, FullFidelityTurns: 2, ToolResultBudget: 50}
	history := buildTurns(8, 200)

	first, _ := cfg.Prepare(history)
	second, _ := cfg.Prepare(history)
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Content != second[i].Content {
			t.Errorf("message %d differs between runs", i)
		}
	}
}

func TestPartitionTurns(t *testing.T) {
	history := []provider.Message{
		provider.SystemMessage("preamble"),
		provider.UserMessage("one"),
		provider.AssistantMessage("reply one"),
		provider.UserMessage("two"),
		provider.ToolResultMessage("c1", "lookup", "data"),
		provider.AssistantMessage("reply two"),
	}
	turns := partitionTurns(history)
	if len(turns) != 3 {
		t.Fatalf("turn count = %d, want 3", len(turns))
	}
	if len(turns[0]) != 1 || turns[0][0].Role != "system" {
		t.Errorf("leading segment = %+v, want the system preamble alone", turns[0])
	}
	if len(turns[1]) != 2 || len(turns[2]) != 3 {
		t.Errorf("turn sizes = %d, %d; want 2, 3", len(turns[1]), len(turns[2]))
	}

	total := 0
	for _, turn := range turns {
		total += len(turn)
	}
	if total != len(history) {
		t.Errorf("partition covers %d messages, want %d", total, len(history))
	}
}
