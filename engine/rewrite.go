package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/msgpilot/msgpilot/provider"
)

const rewriteSystemPrompt = "You are a message rewriting assistant. Rewrite the user's message according to the instruction. Return ONLY the rewritten message text, with no preamble, explanation, or quotes."

// toneInstructions maps the built-in tones to their rewrite instructions.
var toneInstructions = map[string]string{
	"formal":   "Rewrite in a professional, formal tone. Keep the same meaning.",
	"friendly": "Rewrite in a warm, friendly, casual tone. Keep the same meaning.",
	"shorter":  "Make this much shorter and more concise. Keep the core meaning.",
	"funnier":  "Rewrite to be witty and humorous. Keep the core meaning.",
}

// Rewriter adjusts the tone of a draft message with a single model call,
// without tools.
type Rewriter struct {
	provider provider.Provider
}

// NewRewriter creates a rewriter backed by the given provider.
func NewRewriter(p provider.Provider) *Rewriter {
	return &Rewriter{provider: p}
}

// Rewrite returns the draft rewritten in the requested tone. tone may be one
// of the built-in names, "translate" with a target language, or free text.
func (r *Rewriter) Rewrite(ctx context.Context, text, tone, language string) (string, error) {
	var instruction string
	switch {
	case tone == "translate" && language != "":
		instruction = fmt.Sprintf("Translate this message to %s. Return only the translation.", language)
	case toneInstructions[tone] != "":
		instruction = toneInstructions[tone]
	default:
		instruction = fmt.Sprintf("Rewrite this message to sound more %s.", tone)
	}

	resp, err := r.provider.Chat(ctx, &provider.Request{
		Messages: []provider.Message{
			provider.SystemMessage(rewriteSystemPrompt),
			provider.UserMessage(fmt.Sprintf("%s\n\nMessage: %s", instruction, text)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("rewrite failed: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}
