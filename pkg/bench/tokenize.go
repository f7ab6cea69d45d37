package bench

import (
	"errors"
	"fmt"

	"github.com/shivanshkc/inferbench/pkg/tokenizer"
)

// TokenizeOptions controls how many tokens a sampled prompt (or decode
// budget) should carry.
type TokenizeOptions struct {
	// TargetTokens is the mean of the sampled token counts.
	TargetTokens int `json:"target_tokens" yaml:"target_tokens"`
	// MinTokens and MaxTokens clamp every sample.
	MinTokens int `json:"min_tokens" yaml:"min_tokens"`
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`
	// Variance is the standard deviation of the Gaussian the counts are
	// drawn from. Zero makes every sample exactly TargetTokens.
	Variance float64 `json:"variance" yaml:"variance"`
}

// Validate checks the option invariants: min ≤ target ≤ max, variance ≥ 0.
func (o TokenizeOptions) Validate() error {
	if o.MinTokens <= 0 {
		return errors.New("min tokens must be positive")
	}
	if o.TargetTokens < o.MinTokens || o.TargetTokens > o.MaxTokens {
		return fmt.Errorf("target tokens %d outside [%d, %d]", o.TargetTokens, o.MinTokens, o.MaxTokens)
	}
	if o.Variance < 0 {
		return errors.New("variance must not be negative")
	}
	return nil
}

// errPromptTooShort signals that a prompt cannot be calibrated because it
// tokenizes to fewer tokens than requested.
var errPromptTooShort = errors.New("prompt tokenizes to fewer tokens than requested")

// calibratePrompt searches for a character prefix of prompt whose token count
// equals target, using a half-interval search over the prefix rune length.
//
// Exactness is not required: token counts are not monotone in fine detail, so
// when the bounds converge without an exact hit the best candidate seen is
// returned together with its actual token count. What matters for the
// benchmark is a distribution of prompt lengths close to the target.
func calibratePrompt(tk tokenizer.Tokenizer, prompt string, target int) (string, int, error) {
	fullCount, err := tk.CountTokens(prompt)
	if err != nil {
		return "", 0, fmt.Errorf("failed to tokenize prompt: %w", err)
	}
	if fullCount < target {
		return "", 0, errPromptTooShort
	}
	if fullCount == target {
		return prompt, fullCount, nil
	}

	runes := []rune(prompt)
	low, high := 1, len(runes)
	bestPrefix, bestCount := prompt, fullCount

	for low <= high {
		mid := (low + high) / 2
		candidate := string(runes[:mid])

		count, err := tk.CountTokens(candidate)
		if err != nil {
			return "", 0, fmt.Errorf("failed to tokenize prompt prefix: %w", err)
		}

		// Track the closest candidate in case the search never hits target.
		if diff(count, target) < diff(bestCount, target) {
			bestPrefix, bestCount = candidate, count
		}

		switch {
		case count == target:
			return candidate, count, nil
		case count > target:
			high = mid - 1
		default:
			low = mid + 1
		}
	}

	return bestPrefix, bestCount, nil
}

func diff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
