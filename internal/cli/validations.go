package cli

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/shivanshkc/inferbench/pkg/bench"
)

// validateRunConfiguration checks the parts of the configuration the CLI owns
// and normalizes derived values. The benchmark config proper is validated
// again by bench.NewBenchmark before any network I/O.
func validateRunConfiguration(config *RunConfiguration) error {
	if config.URL == "" {
		return errors.New("a server URL is required")
	}
	if _, err := url.Parse(config.URL); err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	if config.TokenizerName == "" {
		return errors.New("a tokenizer name is required")
	}
	// The benchmarked model defaults to the tokenizer's name.
	if config.Model == "" {
		config.Model = config.TokenizerName
	}

	if _, err := bench.ParseBenchmarkKind(config.BenchmarkKind); err != nil {
		return err
	}

	if config.DatasetFile == "" {
		return errors.New("a dataset file is required")
	}

	return config.toBenchmarkConfig().Validate()
}

// toBenchmarkConfig projects the CLI configuration onto the benchmark
// config. Only valid after validateRunConfiguration normalized it.
func (c *RunConfiguration) toBenchmarkConfig() bench.BenchmarkConfig {
	return bench.BenchmarkConfig{
		Kind:           bench.BenchmarkKind(c.BenchmarkKind),
		MaxVUs:         c.MaxVUs,
		Duration:       c.Duration,
		WarmupDuration: c.WarmupDuration,
		Rates:          c.Rates,
		NumRates:       c.NumRates,
		PromptOptions:  c.PromptOptions,
		DecodeOptions:  c.DecodeOptions,
		Tokenizer:      c.TokenizerName,
		ExtraMetadata:  c.ExtraMetadata,
	}
}
