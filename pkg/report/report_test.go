package report_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivanshkc/inferbench/pkg/bench"
	"github.com/shivanshkc/inferbench/pkg/report"
)

// buildResults produces a results accumulator with a few finished responses.
func buildResults(t *testing.T, id string, warmup bool) *bench.BenchmarkResults {
	t.Helper()

	results := bench.NewBenchmarkResults(id, bench.ExecutorConstantVUs,
		bench.ExecutorConfig{MaxVUs: 2, Duration: time.Second})
	if warmup {
		results.MarkWarmup()
	}

	for i := 0; i < 3; i++ {
		response := bench.NewAggregatedResponse()
		response.Start(10)
		response.AddTokens(1)
		response.AddTokens(1)
		response.Stop()
		results.AddResponse(response)
	}

	failed := bench.NewAggregatedResponse()
	failed.Start(10)
	failed.Fail()
	results.AddResponse(failed)

	return results
}

func testConfig() bench.BenchmarkConfig {
	return bench.BenchmarkConfig{
		Kind:           bench.KindThroughput,
		MaxVUs:         2,
		Duration:       time.Second,
		WarmupDuration: time.Second,
		NumRates:       1,
		PromptOptions:  bench.TokenizeOptions{TargetTokens: 20, MinTokens: 10, MaxTokens: 40, Variance: 2},
		DecodeOptions:  bench.TokenizeOptions{TargetTokens: 64, MinTokens: 32, MaxTokens: 128, Variance: 8},
		Tokenizer:      "meta-llama/Llama-3.1-8B",
		ExtraMetadata:  map[string]string{"gpu": "h100"},
	}
}

func TestBuild(t *testing.T) {
	results := []*bench.BenchmarkResults{
		buildResults(t, "warmup", true),
		buildResults(t, "throughput", false),
	}

	rep := report.Build(testConfig(), results)

	require.Len(t, rep.Results, 2)
	assert.True(t, rep.Results[0].Warmup)
	assert.False(t, rep.Results[1].Warmup)

	sub := rep.Results[1]
	assert.Equal(t, "throughput", sub.ID)
	assert.Equal(t, 4, sub.TotalRequests)
	assert.Equal(t, 3, sub.SuccessfulRequests)
	assert.Equal(t, 1, sub.FailedRequests)
	assert.Len(t, sub.Responses, 4)
	assert.Greater(t, sub.TimeToFirstToken.Avg, time.Duration(0))
	assert.Equal(t, 2.0, sub.GeneratedTokens.Avg)
}

// TestReport_JSONRoundTrip verifies that writing a report and reading it back
// reproduces all numeric fields exactly and preserves response order.
func TestReport_JSONRoundTrip(t *testing.T) {
	rep := report.Build(testConfig(), []*bench.BenchmarkResults{buildResults(t, "throughput", false)})

	dir := t.TempDir()
	path, err := rep.WriteJSON(dir)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "meta-llama_Llama-3_1-8B_"),
		"tokenizer id must be sanitized in the file name")

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded report.Report
	require.NoError(t, json.Unmarshal(content, &decoded))

	// Durations serialize as integer nanoseconds and times as RFC3339Nano,
	// so the whole document must round-trip exactly.
	assert.Equal(t, rep.Config, decoded.Config)
	require.Len(t, decoded.Results, 1)

	original, restored := rep.Results[0], decoded.Results[0]
	assert.Equal(t, original.TimeToFirstToken, restored.TimeToFirstToken)
	assert.Equal(t, original.InterTokenLatency, restored.InterTokenLatency)
	assert.Equal(t, original.EndToEndLatency, restored.EndToEndLatency)
	assert.Equal(t, original.GeneratedTokens, restored.GeneratedTokens)
	assert.Equal(t, original.SuccessfulRequestRate, restored.SuccessfulRequestRate)
	assert.Equal(t, original.TokenThroughput, restored.TokenThroughput)

	require.Len(t, restored.Responses, len(original.Responses))
	for i, response := range original.Responses {
		assert.Equal(t, response.NumGeneratedTokens, restored.Responses[i].NumGeneratedTokens)
		assert.Equal(t, response.Failed, restored.Responses[i].Failed)
		assert.Equal(t, response.TimesBetweenTokens, restored.Responses[i].TimesBetweenTokens)
		assert.True(t, response.StartTime.Equal(restored.Responses[i].StartTime))
		assert.True(t, response.EndTime.Equal(restored.Responses[i].EndTime))
	}
}

func TestReport_WriteJSONCreatesDirectory(t *testing.T) {
	rep := report.Build(testConfig(), nil)

	dir := filepath.Join(t.TempDir(), "results")
	path, err := rep.WriteJSON(dir)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestReport_RenderTable(t *testing.T) {
	rep := report.Build(testConfig(), []*bench.BenchmarkResults{
		buildResults(t, "warmup", true),
		buildResults(t, "throughput", false),
	})

	var out strings.Builder
	rep.RenderTable(&out)

	rendered := out.String()
	assert.Contains(t, rendered, "throughput")
	assert.Contains(t, rendered, "warmup (warmup)")
	assert.Contains(t, rendered, "TTFT")
}
