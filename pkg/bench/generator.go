package bench

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/shivanshkc/inferbench/pkg/tokenizer"
)

// Conversation is one turn of a corpus entry.
type Conversation struct {
	From  string `json:"from"`
	Value string `json:"value"`
}

// ConversationEntry is one record of the ShareGPT-style corpus file.
type ConversationEntry struct {
	ID            string         `json:"id"`
	Conversations []Conversation `json:"conversations"`
}

// ConversationRequestGenerator builds a fixed corpus of length-calibrated
// requests at construction time and serves them round-robin. It is safe for
// concurrent callers; the cursor is a single atomic counter and the request
// slice is immutable after construction.
type ConversationRequestGenerator struct {
	requests []*TextGenerationRequest
	cursor   atomic.Uint64
}

// NewConversationRequestGenerator loads the corpus file, calibrates each
// entry's first conversation turn to a sampled token count, and keeps the
// requests that calibrated successfully.
//
// The per-request prompt length is drawn from N(target, variance²) clamped to
// [min, max] under promptOptions; the per-request generation budget is drawn
// the same way under decodeOptions. Entries whose prompt tokenizes to fewer
// tokens than requested are skipped.
func NewConversationRequestGenerator(
	filepath string, tk tokenizer.Tokenizer, promptOptions, decodeOptions TokenizeOptions,
) (*ConversationRequestGenerator, error) {
	if err := promptOptions.Validate(); err != nil {
		return nil, fmt.Errorf("invalid prompt options: %w", err)
	}
	if err := decodeOptions.Validate(); err != nil {
		return nil, fmt.Errorf("invalid decode options: %w", err)
	}

	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus file: %w", err)
	}

	var entries []ConversationEntry
	if err := json.Unmarshal(content, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse corpus file: %w", err)
	}

	promptSampler := newTokenCountSampler(promptOptions)
	decodeSampler := newTokenCountSampler(decodeOptions)

	requests := make([]*TextGenerationRequest, 0, len(entries))
	for _, entry := range entries {
		if len(entry.Conversations) == 0 {
			continue
		}
		prompt := entry.Conversations[0].Value

		numPromptTokens := promptSampler.sample()
		calibrated, count, err := calibratePrompt(tk, prompt, numPromptTokens)
		if err != nil {
			if !errors.Is(err, errPromptTooShort) {
				logrus.WithError(err).WithField("entry", entry.ID).Debug("Failed to calibrate prompt")
			}
			continue
		}

		request, err := NewTextGenerationRequest(calibrated, count, decodeSampler.sample())
		if err != nil {
			logrus.WithError(err).WithField("entry", entry.ID).Debug("Skipping invalid request")
			continue
		}
		requests = append(requests, request)
	}

	if len(requests) == 0 {
		return nil, errors.New("corpus produced no usable requests")
	}

	logrus.WithField("count", len(requests)).Info("Generated request corpus")
	return &ConversationRequestGenerator{requests: requests}, nil
}

// GenerateRequest returns the next request round-robin, wrapping at the end
// of the corpus.
func (g *ConversationRequestGenerator) GenerateRequest() *TextGenerationRequest {
	idx := g.cursor.Add(1) - 1
	return g.requests[idx%uint64(len(g.requests))]
}

// Size returns the number of calibrated requests in the corpus.
func (g *ConversationRequestGenerator) Size() int {
	return len(g.requests)
}

// tokenCountSampler draws token counts from a clamped Gaussian.
type tokenCountSampler struct {
	normal   distuv.Normal
	min, max int
}

func newTokenCountSampler(options TokenizeOptions) tokenCountSampler {
	return tokenCountSampler{
		normal: distuv.Normal{Mu: float64(options.TargetTokens), Sigma: options.Variance},
		min:    options.MinTokens,
		max:    options.MaxTokens,
	}
}

func (s tokenCountSampler) sample() int {
	n := int(s.normal.Rand())
	if n < s.min {
		n = s.min
	}
	if n > s.max {
		n = s.max
	}
	return n
}
