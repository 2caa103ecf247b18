package ai

import "context"

// TextGenerator generates text from a system prompt and user prompt.
// All LLM providers (Groq/OpenAI-compatible, Gemini, Ollama) implement
// this interface.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
