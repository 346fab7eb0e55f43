// Package llm abstracts the language-model providers behind one
// interface so the extraction and chat services can be tested with fakes
// and the deployment can switch providers via settings.
package llm

import "context"

type Request struct {
	System      string
	Prompt      string
	Temperature float32
}

type Provider interface {
	// Generate performs exactly one model round-trip. Implementations
	// bound the call with config.LLMCallTimeout and surface transport,
	// auth and timeout failures as apperr.ModelUnavailable.
	Generate(ctx context.Context, req Request) (string, error)
}
