package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shivanshkc/inferbench/pkg/bench"
)

// RunConfiguration is the full, flat configuration of one benchmark run, fed
// by defaults, an optional YAML file, and command-line flags.
type RunConfiguration struct {
	URL           string `yaml:"url"`
	APIKey        string `yaml:"api_key"`
	TokenizerName string `yaml:"tokenizer_name"`
	Model         string `yaml:"model"`

	MaxVUs         int           `yaml:"max_vus"`
	Duration       time.Duration `yaml:"duration"`
	WarmupDuration time.Duration `yaml:"warmup"`
	BenchmarkKind  string        `yaml:"benchmark_kind"`
	Rates          []float64     `yaml:"rates"`
	NumRates       int           `yaml:"num_rates"`

	PromptOptions bench.TokenizeOptions `yaml:"prompt_options"`
	DecodeOptions bench.TokenizeOptions `yaml:"decode_options"`

	Dataset     string `yaml:"dataset"`
	DatasetFile string `yaml:"dataset_file"`
	HFToken     string `yaml:"hf_token"`

	ExtraMetadata map[string]string `yaml:"extra_metadata"`
	Interactive   bool              `yaml:"interactive"`
}

func defaultPromptOptions() bench.TokenizeOptions {
	return bench.TokenizeOptions{TargetTokens: 50, MinTokens: 10, MaxTokens: 200, Variance: 10}
}

func defaultDecodeOptions() bench.TokenizeOptions {
	return bench.TokenizeOptions{TargetTokens: 100, MinTokens: 10, MaxTokens: 400, Variance: 25}
}

// configFileLayout mirrors RunConfiguration for YAML parsing. Pointer fields
// tell absent keys apart from zero values, and durations are read as strings
// ("90s", "2m") and parsed with time.ParseDuration.
type configFileLayout struct {
	URL           *string `yaml:"url"`
	APIKey        *string `yaml:"api_key"`
	TokenizerName *string `yaml:"tokenizer_name"`
	Model         *string `yaml:"model"`

	MaxVUs         *int      `yaml:"max_vus"`
	Duration       *string   `yaml:"duration"`
	WarmupDuration *string   `yaml:"warmup"`
	BenchmarkKind  *string   `yaml:"benchmark_kind"`
	Rates          []float64 `yaml:"rates"`
	NumRates       *int      `yaml:"num_rates"`

	PromptOptions *bench.TokenizeOptions `yaml:"prompt_options"`
	DecodeOptions *bench.TokenizeOptions `yaml:"decode_options"`

	Dataset     *string `yaml:"dataset"`
	DatasetFile *string `yaml:"dataset_file"`
	HFToken     *string `yaml:"hf_token"`

	ExtraMetadata map[string]string `yaml:"extra_metadata"`
	Interactive   *bool             `yaml:"interactive"`
}

// applyConfigFile loads the YAML file into config. Values for flags the user
// set explicitly on the command line are left untouched; the precedence is
// flags over file over defaults.
func applyConfigFile(cmd *cobra.Command, path string, config *RunConfiguration) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var file configFileLayout
	if err := yaml.Unmarshal(content, &file); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	changed := cmd.Flags().Changed

	setString := func(flag string, dst *string, src *string) {
		if src != nil && !changed(flag) {
			*dst = *src
		}
	}
	setInt := func(flag string, dst *int, src *int) {
		if src != nil && !changed(flag) {
			*dst = *src
		}
	}

	setString("url", &config.URL, file.URL)
	setString("api-key", &config.APIKey, file.APIKey)
	setString("tokenizer-name", &config.TokenizerName, file.TokenizerName)
	setString("model", &config.Model, file.Model)
	setString("benchmark-kind", &config.BenchmarkKind, file.BenchmarkKind)
	setString("dataset", &config.Dataset, file.Dataset)
	setString("dataset-file", &config.DatasetFile, file.DatasetFile)
	setString("hf-token", &config.HFToken, file.HFToken)
	setInt("max-vus", &config.MaxVUs, file.MaxVUs)
	setInt("num-rates", &config.NumRates, file.NumRates)

	if file.Duration != nil && !changed("duration") {
		if config.Duration, err = time.ParseDuration(*file.Duration); err != nil {
			return fmt.Errorf("invalid duration in config file: %w", err)
		}
	}
	if file.WarmupDuration != nil && !changed("warmup") {
		if config.WarmupDuration, err = time.ParseDuration(*file.WarmupDuration); err != nil {
			return fmt.Errorf("invalid warmup duration in config file: %w", err)
		}
	}

	if len(file.Rates) > 0 && !changed("rates") {
		config.Rates = file.Rates
	}
	setOptions := func(prefix string, dst, src *bench.TokenizeOptions) {
		if src == nil {
			return
		}
		setInt(prefix+"-tokens", &dst.TargetTokens, &src.TargetTokens)
		setInt(prefix+"-min-tokens", &dst.MinTokens, &src.MinTokens)
		setInt(prefix+"-max-tokens", &dst.MaxTokens, &src.MaxTokens)
		if !changed(prefix + "-variance") {
			dst.Variance = src.Variance
		}
	}
	setOptions("prompt", &config.PromptOptions, file.PromptOptions)
	setOptions("decode", &config.DecodeOptions, file.DecodeOptions)
	if len(file.ExtraMetadata) > 0 && !changed("extra-metadata") {
		config.ExtraMetadata = file.ExtraMetadata
	}
	if file.Interactive != nil && !changed("interactive") {
		config.Interactive = *file.Interactive
	}

	return nil
}
