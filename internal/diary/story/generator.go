// Package story sends a compiled prompt to a generative backend and presents
// the result.
package story

import (
	"context"
	"strings"

	"github.com/blueplan/diary-go/internal/diary/llm"
	"github.com/blueplan/diary-go/internal/diary/types"
)

const (
	MaxOutputTokens = 400
	Temperature     = 0.8
)

// Generator turns a prompt into story text. One call is one attempt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ContextGenerator is implemented by generators that also forward the raw
// context alongside the prompt.
type ContextGenerator interface {
	GenerateContext(ctx context.Context, c types.Context, prompt string) (string, error)
}

// LLMGenerator calls an llm.Client directly.
type LLMGenerator struct {
	Client llm.Client
}

func NewLLMGenerator(c llm.Client) *LLMGenerator {
	return &LLMGenerator{Client: c}
}

func (g *LLMGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	const op = "story.generate"
	resp, err := g.Client.Complete(ctx, llm.Request{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		MaxTokens:   MaxOutputTokens,
		Temperature: Temperature,
	})
	if err != nil {
		return "", types.NewError(types.KindRequestFailed, op, err)
	}
	if resp == nil || len(resp.Candidates) == 0 || strings.TrimSpace(resp.Candidates[0]) == "" {
		return "", types.NewError(types.KindNoCandidate, op, nil)
	}
	return resp.Candidates[0], nil
}
