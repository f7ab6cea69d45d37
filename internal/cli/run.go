package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/sirupsen/logrus"

	"github.com/shivanshkc/inferbench/pkg/api"
	"github.com/shivanshkc/inferbench/pkg/bench"
	"github.com/shivanshkc/inferbench/pkg/hub"
	"github.com/shivanshkc/inferbench/pkg/report"
	"github.com/shivanshkc/inferbench/pkg/tokenizer"
)

// resultsDir is where JSON reports are written.
const resultsDir = "results"

// datasetCacheDir is where downloaded corpus files are cached.
const datasetCacheDir = ".cache"

// run executes one full benchmark from an already-validated configuration.
func run(ctx context.Context, config *RunConfiguration) error {
	// High VU counts multiplied by high rates can exceed the default
	// open-files cap, so raise the soft limit up front.
	if err := raiseFileLimit(); err != nil {
		logrus.WithError(err).Warn("Failed to raise open-files limit")
	}

	if err := setupLogging(config.Interactive); err != nil {
		return err
	}
	logrus.Info("Starting benchmark")

	tk, err := tokenizer.NewTiktoken(config.TokenizerName)
	if err != nil {
		return fmt.Errorf("failed to load tokenizer: %w", err)
	}

	corpusPath, err := resolveCorpus(config)
	if err != nil {
		return fmt.Errorf("failed to resolve corpus: %w", err)
	}

	generator, err := bench.NewConversationRequestGenerator(
		corpusPath, tk, config.PromptOptions, config.DecodeOptions)
	if err != nil {
		return fmt.Errorf("failed to build request corpus: %w", err)
	}

	backend := api.NewClient(config.URL, config.APIKey, config.Model)

	bus := bench.NewBus()
	consoleDone := startConsoleSubscriber(bus)

	benchmark, err := bench.NewBenchmark(config.toBenchmarkConfig(), backend, generator, bus)
	if err != nil {
		return err
	}

	runErr := benchmark.Run(ctx)
	// Cancellation is not an error: it terminates the run cleanly and the
	// results collected so far become a partial report.
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		bus.Publish(bench.BenchmarkErrorEvent{Error: runErr.Error()})
		bus.Publish(bench.BenchmarkReportEndEvent{})
		<-consoleDone
		return fmt.Errorf("benchmark failed: %w", runErr)
	}

	rep := report.Build(benchmark.Config(), benchmark.Results())
	path, err := rep.WriteJSON(resultsDir)
	if err != nil {
		bus.Publish(bench.BenchmarkErrorEvent{Error: err.Error()})
		bus.Publish(bench.BenchmarkReportEndEvent{})
		<-consoleDone
		return fmt.Errorf("failed to write report: %w", err)
	}
	logrus.WithField("path", path).Info("Report saved")

	bus.Publish(bench.BenchmarkReportEndEvent{})
	<-consoleDone

	rep.RenderTable(os.Stdout)
	logrus.Info("Benchmark finished")
	return nil
}

// resolveCorpus returns the local corpus path, downloading from the hub when
// the configured file does not exist locally.
func resolveCorpus(config *RunConfiguration) (string, error) {
	if _, err := os.Stat(config.DatasetFile); err == nil {
		return config.DatasetFile, nil
	}
	if config.Dataset == "" {
		return "", fmt.Errorf("dataset file %q not found and no dataset repository configured", config.DatasetFile)
	}
	return hub.NewClient(config.HFToken, datasetCacheDir).DownloadDataset(config.Dataset, config.DatasetFile)
}

// setupLogging configures logrus. In interactive mode logs are redirected to
// log.txt in a "[timestamp LEVEL file:line] message" format so they don't
// tear the console output.
func setupLogging(interactive bool) error {
	if !interactive {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return nil
	}

	logFile, err := os.Create("log.txt")
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	logrus.SetOutput(logFile)
	logrus.SetReportCaller(true)
	logrus.SetLevel(logrus.DebugLevel)
	logrus.SetFormatter(&logFileFormatter{})
	return nil
}

// logFileFormatter renders entries as "[timestamp LEVEL file:line] message".
type logFileFormatter struct{}

func (f *logFileFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	file, line := "unknown", 0
	if entry.Caller != nil {
		file, line = filepath.Base(entry.Caller.File), entry.Caller.Line
	}

	message := entry.Message
	for key, value := range entry.Data {
		message += fmt.Sprintf(" %s=%v", key, value)
	}

	return []byte(fmt.Sprintf("[%s %s %s:%d] %s\n",
		entry.Time.Format("2006-01-02 15:04:05.000"),
		entry.Level.String(),
		file, line, message)), nil
}

// startConsoleSubscriber renders bus events to stdout until the report-end
// event arrives, then closes the returned channel.
func startConsoleSubscriber(bus *bench.Bus) <-chan struct{} {
	sub := bus.Subscribe(64)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer sub.Unsubscribe()

		for event := range sub.C {
			switch e := event.(type) {
			case bench.MessageEvent:
				fmt.Println(text.FgBlue.Sprint(e.Message))
			case bench.BenchmarkStartEvent:
				fmt.Println(text.FgGreen.Sprintf("▶ %s", e.ID))
			case bench.BenchmarkProgressEvent:
				fmt.Printf("\r%s %.0f%% | %d requests | %d failed | %.2f req/s",
					e.ID, e.Progress.Progress, e.Progress.TotalRequests,
					e.Progress.FailedRequests, e.Progress.RequestsThroughput)
			case bench.BenchmarkEndEvent:
				fmt.Println()
				fmt.Println(text.FgGreen.Sprintf("✓ %s: %d requests, %d failed",
					e.ID, e.Results.TotalRequests(), e.Results.FailedRequests()))
			case bench.BenchmarkErrorEvent:
				fmt.Println(text.FgRed.Sprintf("✗ %s", e.Error))
			case bench.BenchmarkReportEndEvent:
				return
			}
		}
	}()

	return done
}
