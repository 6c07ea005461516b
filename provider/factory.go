package provider

import (
	"fmt"
	"os"
	"strings"
)

// Settings are the resolved provider settings used to build an instance.
type Settings struct {
	Name        string
	APIKey      string
	APIBase     string
	Model       string
	MaxTokens   int
	Temperature float64
}

// envKeys maps provider names to the environment variable consulted when the
// config carries no API key.
var envKeys = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// New builds a provider instance from settings.
func New(s Settings) (Provider, error) {
	name := strings.TrimSpace(strings.ToLower(s.Name))
	apiKey := strings.TrimSpace(s.APIKey)
	if apiKey == "" {
		if env := envKeys[name]; env != "" {
			apiKey = strings.TrimSpace(os.Getenv(env))
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%s API key not configured", name)
	}
	if strings.TrimSpace(s.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}

	switch name {
	case "openai":
		return NewOpenAIProvider(apiKey, s.APIBase, s.Model, s.MaxTokens, s.Temperature), nil
	case "anthropic":
		return NewAnthropicProvider(apiKey, s.APIBase, s.Model, s.MaxTokens, s.Temperature), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, s.Name)
	}
}
