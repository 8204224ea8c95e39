package expression

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"
)

// Classifier maps a speaker's latest line to one expression label from a
// closed set, using an LLM backend via github.com/mozilla-ai/any-llm-go.
//
// Classification is advisory: on any failure, and for any answer outside the
// label set, [Classifier.Classify] returns the fallback label alongside the
// error so callers can always render something.
type Classifier struct {
	backend  anyllmlib.Provider
	model    string
	labels   []string
	fallback string
}

// NewClassifier creates a Classifier backed by the given provider name.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama",
// "deepseek", "mistral", "groq", "llamacpp", "llamafile". labels is the
// closed set of expressions the model may answer with; fallback is returned
// whenever no valid label can be obtained.
//
// opts are any-llm-go configuration options (e.g., anyllmlib.WithAPIKey,
// anyllmlib.WithBaseURL). If no API key option is provided, the backend
// falls back to its environment variable (OPENAI_API_KEY etc.).
func NewClassifier(providerName, model string, labels []string, fallback string, opts ...anyllmlib.Option) (*Classifier, error) {
	if providerName == "" {
		return nil, fmt.Errorf("expression: provider name must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("expression: model must not be empty")
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("expression: label set must not be empty")
	}

	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("expression: create %q backend: %w", providerName, err)
	}

	return &Classifier{
		backend:  backend,
		model:    model,
		labels:   labels,
		fallback: fallback,
	}, nil
}

// createBackend creates the underlying any-llm-go provider for the given name.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq, llamacpp, llamafile", providerName)
	}
}

// Classify returns the expression label for speaker's line. The returned
// label is always usable: on error, or when the model answers outside the
// label set, it is the fallback.
func (c *Classifier) Classify(ctx context.Context, speaker, line string) (string, error) {
	params := anyllmlib.CompletionParams{
		Model: c.model,
		Messages: []anyllmlib.Message{
			{
				Role: anyllmlib.RoleSystem,
				Content: fmt.Sprintf(
					"You classify the emotional expression of a chat line. Answer with exactly one word from this list and nothing else: %s.",
					strings.Join(c.labels, ", ")),
			},
			{
				Role:    anyllmlib.RoleUser,
				Content: fmt.Sprintf("%s: %s", speaker, line),
			},
		},
	}

	resp, err := c.backend.Completion(ctx, params)
	if err != nil {
		return c.fallback, fmt.Errorf("expression: classify: %w", err)
	}
	if len(resp.Choices) == 0 {
		return c.fallback, fmt.Errorf("expression: classify: empty choices in response")
	}

	label, ok := matchLabel(resp.Choices[0].Message.ContentString(), c.labels)
	if !ok {
		return c.fallback, fmt.Errorf("expression: classify: answer %q is not a known label", label)
	}
	return label, nil
}

// matchLabel normalises a model answer and matches it against the label set.
// Surrounding whitespace, quotes, and trailing punctuation are tolerated.
func matchLabel(answer string, labels []string) (string, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(answer))
	cleaned = strings.Trim(cleaned, `"'.!`)

	for _, l := range labels {
		if strings.EqualFold(l, cleaned) {
			return l, true
		}
	}
	return cleaned, false
}
