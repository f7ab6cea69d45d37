// Package tokenizer abstracts the subword tokenizer used to calibrate prompt
// lengths. The benchmark only ever needs one operation from a tokenizer:
// counting the tokens a piece of text encodes to.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer is the minimal contract the benchmark needs from a tokenizer.
type Tokenizer interface {
	// CountTokens returns the number of tokens the given text encodes to.
	CountTokens(text string) (int, error)
}

// Tiktoken is a Tokenizer backed by a BPE encoding from the tiktoken family.
type Tiktoken struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktoken resolves a tokenizer from a model name (e.g. "gpt-4") or, if
// that fails, from an encoding name (e.g. "cl100k_base").
func NewTiktoken(name string) (*Tiktoken, error) {
	if enc, err := tiktoken.EncodingForModel(name); err == nil {
		return &Tiktoken{encoding: enc}, nil
	}

	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown tokenizer %q: %w", name, err)
	}

	return &Tiktoken{encoding: enc}, nil
}

// CountTokens implements the Tokenizer interface.
func (t *Tiktoken) CountTokens(text string) (int, error) {
	return len(t.encoding.Encode(text, nil, nil)), nil
}
