package report

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// RenderTable writes a human-readable summary of the report to w, one row per
// sub-benchmark.
func (r *Report) RenderTable(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{
		"Benchmark", "Requests", "Failed", "Req/s", "Tokens/s",
		"TTFT avg", "TTFT p90", "ITL avg", "ITL p90", "E2E avg", "E2E p90",
	})

	for _, sub := range r.Results {
		id := sub.ID
		if sub.Warmup {
			id += " (warmup)"
		}
		t.AppendRow(table.Row{
			id,
			sub.TotalRequests,
			sub.FailedRequests,
			fmt.Sprintf("%.2f", sub.SuccessfulRequestRate),
			fmt.Sprintf("%.2f", sub.TokenThroughput),
			formatDuration(sub.TimeToFirstToken.Avg),
			formatDuration(sub.TimeToFirstToken.P90),
			formatDuration(sub.InterTokenLatency.Avg),
			formatDuration(sub.InterTokenLatency.P90),
			formatDuration(sub.EndToEndLatency.Avg),
			formatDuration(sub.EndToEndLatency.P90),
		})
	}

	t.SetStyle(table.StyleLight)
	t.Render()
}

// formatDuration renders a duration rounded to two decimals of its leading
// unit, e.g. "1.25s", "123.46ms", "850ns".
func formatDuration(d time.Duration) string {
	for _, unit := range []time.Duration{time.Second, time.Millisecond, time.Microsecond} {
		if d >= unit {
			return d.Round(unit / 100).String()
		}
	}
	return d.String()
}
