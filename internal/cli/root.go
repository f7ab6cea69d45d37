// Package cli contains the command-line interface of the benchmark, powered
// by the cobra library. It defines the root command, its flags, their
// validation, and the wiring that turns a parsed configuration into a
// benchmark run.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// runConfig holds the values of all root command flags. Defining it at the
// package level lets the validation and run logic access the parsed
// configuration directly.
var runConfig = defaultRunConfiguration()

// configFile is the optional YAML configuration file path.
var configFile string

// rootCmd is the benchmark command itself; the tool has no subcommands.
var rootCmd = &cobra.Command{
	Use:   "inferbench",
	Short: "Benchmark streaming text-generation inference servers.",
	Long: `Benchmark streaming text-generation inference servers.

inferbench drives concurrent virtual users against an OpenAI-compatible
chat-completion endpoint, consumes the streamed token deltas, and reports
throughput, latency percentiles, time-to-first-token and inter-token latency
per workload scenario.`,
	SilenceUsage: true,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			if err := applyConfigFile(cmd, configFile, &runConfig); err != nil {
				return err
			}
		}
		return validateRunConfiguration(&runConfig)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), &runConfig)
	},
}

// Execute is the entry point called by main. It wires OS interruption
// signals to a cancellable root context, which acts as the broadcast stop
// signal for the whole benchmark: orchestrator, schedulers and executors all
// observe it.
func Execute() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	go func() {
		<-signals
		cancel()
	}()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	flags := rootCmd.Flags()

	flags.StringVarP(&runConfig.URL, "url", "u", runConfig.URL, "Base URL of the inference server.")
	flags.StringVar(&runConfig.APIKey, "api-key", runConfig.APIKey, "API key sent as a bearer credential.")
	flags.StringVarP(&runConfig.TokenizerName, "tokenizer-name", "t", runConfig.TokenizerName,
		"Tokenizer used for prompt length calibration (model or encoding name).")
	flags.StringVarP(&runConfig.Model, "model", "m", runConfig.Model,
		"Model name to benchmark. Defaults to the tokenizer name.")

	flags.IntVar(&runConfig.MaxVUs, "max-vus", runConfig.MaxVUs, "Maximum number of virtual users.")
	flags.DurationVarP(&runConfig.Duration, "duration", "d", runConfig.Duration, "Duration of each sub-benchmark.")
	flags.DurationVar(&runConfig.WarmupDuration, "warmup", runConfig.WarmupDuration, "Duration of the warmup run.")
	flags.StringVarP(&runConfig.BenchmarkKind, "benchmark-kind", "k", runConfig.BenchmarkKind,
		"Benchmark kind: throughput, sweep or rate.")
	flags.Float64SliceVarP(&runConfig.Rates, "rates", "r", runConfig.Rates,
		"Arrival rates (req/s) for the rate benchmark kind. Repeatable.")
	flags.IntVar(&runConfig.NumRates, "num-rates", runConfig.NumRates, "Number of rate points for the sweep kind.")

	flags.IntVar(&runConfig.PromptOptions.TargetTokens, "prompt-tokens", runConfig.PromptOptions.TargetTokens,
		"Target prompt length in tokens.")
	flags.IntVar(&runConfig.PromptOptions.MinTokens, "prompt-min-tokens", runConfig.PromptOptions.MinTokens,
		"Minimum prompt length in tokens.")
	flags.IntVar(&runConfig.PromptOptions.MaxTokens, "prompt-max-tokens", runConfig.PromptOptions.MaxTokens,
		"Maximum prompt length in tokens.")
	flags.Float64Var(&runConfig.PromptOptions.Variance, "prompt-variance", runConfig.PromptOptions.Variance,
		"Standard deviation of the sampled prompt length.")

	flags.IntVar(&runConfig.DecodeOptions.TargetTokens, "decode-tokens", runConfig.DecodeOptions.TargetTokens,
		"Target generation budget in tokens.")
	flags.IntVar(&runConfig.DecodeOptions.MinTokens, "decode-min-tokens", runConfig.DecodeOptions.MinTokens,
		"Minimum generation budget in tokens.")
	flags.IntVar(&runConfig.DecodeOptions.MaxTokens, "decode-max-tokens", runConfig.DecodeOptions.MaxTokens,
		"Maximum generation budget in tokens.")
	flags.Float64Var(&runConfig.DecodeOptions.Variance, "decode-variance", runConfig.DecodeOptions.Variance,
		"Standard deviation of the sampled generation budget.")

	flags.StringVar(&runConfig.Dataset, "dataset", runConfig.Dataset, "Hugging Face dataset repository of the corpus.")
	flags.StringVar(&runConfig.DatasetFile, "dataset-file", runConfig.DatasetFile,
		"Corpus file: a local path, or a file name within --dataset.")
	flags.StringVar(&runConfig.HFToken, "hf-token", runConfig.HFToken, "Hugging Face token for gated datasets.")

	flags.StringToStringVar(&runConfig.ExtraMetadata, "extra-metadata", runConfig.ExtraMetadata,
		"Extra key=value metadata recorded in the report. Repeatable.")
	flags.BoolVarP(&runConfig.Interactive, "interactive", "i", runConfig.Interactive,
		"Interactive mode: logs go to log.txt instead of stderr.")

	flags.StringVarP(&configFile, "config", "c", "", "YAML configuration file. Explicit flags override it.")
}

// defaultRunConfiguration returns the built-in defaults, which the config
// file and explicit flags refine in that order.
func defaultRunConfiguration() RunConfiguration {
	return RunConfiguration{
		URL:            "http://localhost:8000",
		TokenizerName:  "cl100k_base",
		MaxVUs:         128,
		Duration:       120 * time.Second,
		WarmupDuration: 30 * time.Second,
		BenchmarkKind:  "sweep",
		NumRates:       10,
		PromptOptions:  defaultPromptOptions(),
		DecodeOptions:  defaultDecodeOptions(),
		Dataset:        "hlarcher/share_gpt_small",
		DatasetFile:    "share_gpt_turns.json",
	}
}
