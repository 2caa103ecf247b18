package ai

import "context"

// GeminiGenerator wraps GeminiClient with a fixed model and temperature
// for text generation.
type GeminiGenerator struct {
	client      *GeminiClient
	model       string
	temperature float64
}

// NewGeminiGenerator builds a Gemini-based TextGenerator.
func NewGeminiGenerator(client *GeminiClient, model string, temperature float64) *GeminiGenerator {
	return &GeminiGenerator{client: client, model: model, temperature: temperature}
}

// GenerateText implements TextGenerator using Gemini.
func (g *GeminiGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return g.client.GenerateText(ctx, g.model, systemPrompt, userPrompt, g.temperature)
}
