package history

import "strings"

var titlePrefixes = []string{"can you ", "could you ", "please ", "hey ", "hi ", "hello "}

// AutoTitle derives a conversation title from the first user message.
func AutoTitle(text string) string {
	text = strings.TrimSpace(text)
	for _, prefix := range titlePrefixes {
		if strings.HasPrefix(strings.ToLower(text), prefix) {
			text = text[len(prefix):]
			break
		}
	}
	if text == "" {
		return "New Chat"
	}
	text = strings.ToUpper(text[:1]) + text[1:]
	if len(text) > 40 {
		cut := text[:40]
		if idx := strings.LastIndex(cut, " "); idx > 20 {
			cut = cut[:idx]
		}
		text = cut + "..."
	}
	return text
}
