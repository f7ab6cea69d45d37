package bench

import (
	"context"
	"errors"
)

// Validation errors for request construction.
var (
	errNoPromptTokens = errors.New("request must have at least one prompt token")
	errNoMaxTokens    = errors.New("request must have a positive generation budget")
)

// TextGenerationRequest is a single prompt to run against the backend.
// It is immutable after construction and may be served to many virtual users.
type TextGenerationRequest struct {
	// Prompt is the calibrated user prompt text.
	Prompt string `json:"prompt"`
	// NumPromptTokens is the token count of Prompt under the benchmark's
	// tokenizer.
	NumPromptTokens int `json:"num_prompt_tokens"`
	// MaxTokens is the generation budget passed to the backend.
	MaxTokens int `json:"max_tokens"`
}

// NewTextGenerationRequest validates and builds a request.
func NewTextGenerationRequest(prompt string, numPromptTokens, maxTokens int) (*TextGenerationRequest, error) {
	if numPromptTokens <= 0 {
		return nil, errNoPromptTokens
	}
	if maxTokens <= 0 {
		return nil, errNoMaxTokens
	}
	return &TextGenerationRequest{Prompt: prompt, NumPromptTokens: numPromptTokens, MaxTokens: maxTokens}, nil
}

// TextGenerationBackend issues one streaming text-generation call.
//
// Generate must send exactly one AggregatedResponse on the sink, on success
// and on failure alike; executors count completions through the sink and the
// results accumulator derives failure rates from it. Implementations must not
// retry.
type TextGenerationBackend interface {
	Generate(ctx context.Context, request *TextGenerationRequest, sink chan<- *AggregatedResponse)
}

// TextRequestGenerator hands out requests to virtual users. Implementations
// must be safe for concurrent callers.
type TextRequestGenerator interface {
	GenerateRequest() *TextGenerationRequest
}
