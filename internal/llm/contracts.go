package llm

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// Generator is the generative-text capability: a system instruction plus a
// prompt in, raw model text out. Backends live in the gemini, openai and
// gigachat subpackages.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, system, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, system, prompt string) (string, error) {
	return f(ctx, system, prompt)
}

// Unconfigured stands in for a backend whose credentials are absent. Every
// call fails with common.ErrMissingCredentials.
type Unconfigured struct {
	Provider string
	Reason   string
}

func (u Unconfigured) Generate(context.Context, string, string) (string, error) {
	if u.Reason == "" {
		return "", fmt.Errorf("%s: %w", u.Provider, common.ErrMissingCredentials)
	}
	return "", fmt.Errorf("%s: %s: %w", u.Provider, u.Reason, common.ErrMissingCredentials)
}
