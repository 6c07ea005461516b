package engine

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/msgpilot/msgpilot/provider"
)

var codecOnce sync.Once
var codec tokenizer.Codec

// estimateTokens approximates the token cost of a message list for trim
// diagnostics. Falls back to a bytes/4 heuristic when the tokenizer is
// unavailable.
func estimateTokens(messages []provider.Message) int {
	codecOnce.Do(func() {
		c, err := tokenizer.Get(tokenizer.O200kBase)
		if err == nil {
			codec = c
		}
	})

	total := 0
	for _, msg := range messages {
		if codec == nil {
			total += len(msg.Content) / 4
			continue
		}
		ids, _, err := codec.Encode(msg.Content)
		if err != nil {
			total += len(msg.Content) / 4
			continue
		}
		total += len(ids)
	}
	return total
}
