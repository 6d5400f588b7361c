// Package provider defines the closed set of upstream AI providers the
// gateway can hold credentials for.
package provider

import "fmt"

// Provider identifies a supported upstream provider.
type Provider string

const (
	OpenAI    Provider = "openai"
	Anthropic Provider = "anthropic"
	Gemini    Provider = "gemini"
	Mistral   Provider = "mistral"
	Groq      Provider = "groq"
)

// Info carries static per-provider metadata.
type Info struct {
	DisplayName   string
	DefaultModels []string
}

var registry = map[Provider]Info{
	OpenAI:    {DisplayName: "OpenAI", DefaultModels: []string{"gpt-4o", "gpt-4o-mini"}},
	Anthropic: {DisplayName: "Anthropic", DefaultModels: []string{"claude-sonnet-4-20250514"}},
	Gemini:    {DisplayName: "Google Gemini", DefaultModels: []string{"gemini-2.0-flash"}},
	Mistral:   {DisplayName: "Mistral", DefaultModels: []string{"mistral-large-latest"}},
	Groq:      {DisplayName: "Groq", DefaultModels: []string{"llama-3.3-70b-versatile"}},
}

// Parse validates a raw provider name against the supported set.
func Parse(s string) (Provider, error) {
	p := Provider(s)
	if _, ok := registry[p]; !ok {
		return "", fmt.Errorf("unsupported provider: %q", s)
	}
	return p, nil
}

// Lookup returns the metadata for a supported provider.
func Lookup(p Provider) (Info, bool) {
	info, ok := registry[p]
	return info, ok
}

// All returns the supported providers in a stable order.
func All() []Provider {
	return []Provider{OpenAI, Anthropic, Gemini, Mistral, Groq}
}

func (p Provider) String() string { return string(p) }
