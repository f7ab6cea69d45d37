// Package report turns accumulated benchmark results into a serializable
// report document, writes it to disk as JSON, and renders a summary table.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shivanshkc/inferbench/pkg/bench"
)

// Report is the top-level benchmark report document.
type Report struct {
	// Config is the benchmark-wide configuration, metadata included.
	Config bench.BenchmarkConfig `json:"config"`
	// Timestamp is the report creation time.
	Timestamp time.Time `json:"timestamp"`
	// Results holds one entry per sub-benchmark, in execution order.
	Results []SubBenchmarkReport `json:"results"`
}

// SubBenchmarkReport is the serialized form of one sub-benchmark's results:
// the executor config, the raw response summaries, and the precomputed
// statistics.
type SubBenchmarkReport struct {
	ID             string               `json:"id"`
	ExecutorKind   bench.ExecutorKind   `json:"executor_kind"`
	ExecutorConfig bench.ExecutorConfig `json:"executor_config"`
	Warmup         bool                 `json:"warmup"`

	TotalRequests         int     `json:"total_requests"`
	SuccessfulRequests    int     `json:"successful_requests"`
	FailedRequests        int     `json:"failed_requests"`
	SuccessfulRequestRate float64 `json:"successful_request_rate"`
	TokenThroughput       float64 `json:"token_throughput"`

	TimeToFirstToken  bench.Metrics     `json:"time_to_first_token"`
	InterTokenLatency bench.Metrics     `json:"inter_token_latency"`
	EndToEndLatency   bench.Metrics     `json:"end_to_end_latency"`
	GeneratedTokens   bench.SampleStats `json:"generated_tokens"`

	Responses []*bench.AggregatedResponse `json:"responses"`
}

// Build assembles the report document from the orchestrator's results.
func Build(config bench.BenchmarkConfig, results []*bench.BenchmarkResults) *Report {
	report := &Report{Config: config, Timestamp: time.Now().UTC(), Results: make([]SubBenchmarkReport, 0, len(results))}

	for _, r := range results {
		report.Results = append(report.Results, SubBenchmarkReport{
			ID:                    r.ID(),
			ExecutorKind:          r.ExecutorKind(),
			ExecutorConfig:        r.ExecutorConfig(),
			Warmup:                r.IsWarmup(),
			TotalRequests:         r.TotalRequests(),
			SuccessfulRequests:    r.SuccessfulRequests(),
			FailedRequests:        r.FailedRequests(),
			SuccessfulRequestRate: r.SuccessfulRequestRate(),
			TokenThroughput:       r.TokenThroughput(),
			TimeToFirstToken:      r.TimeToFirstTokenMetrics(),
			InterTokenLatency:     r.InterTokenLatencyMetrics(),
			EndToEndLatency:       r.EndToEndLatencyMetrics(),
			GeneratedTokens:       r.GeneratedTokenStats(),
			Responses:             r.Responses(),
		})
	}

	return report
}

// WriteJSON writes the report under dir as
// {tokenizer_sanitized}_{timestamp}.json and returns the written path. The
// directory is created if needed.
func (r *Report) WriteJSON(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s.json", sanitizeTokenizer(r.Config.Tokenizer), r.Timestamp.Format("2006-01-02-15-04-05"))
	path := filepath.Join(dir, name)

	content, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	return path, nil
}

// sanitizeTokenizer makes a tokenizer id safe for use in a file name.
func sanitizeTokenizer(tokenizer string) string {
	replacer := strings.NewReplacer("/", "_", ".", "_")
	return replacer.Replace(tokenizer)
}
