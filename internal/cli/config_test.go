package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCommand builds a throwaway command with the flags the config-file
// precedence logic consults.
func newTestCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test", Run: func(*cobra.Command, []string) {}}
	cmd.Flags().String("url", "", "")
	cmd.Flags().String("api-key", "", "")
	cmd.Flags().String("tokenizer-name", "", "")
	cmd.Flags().String("model", "", "")
	cmd.Flags().String("benchmark-kind", "", "")
	cmd.Flags().String("dataset", "", "")
	cmd.Flags().String("dataset-file", "", "")
	cmd.Flags().String("hf-token", "", "")
	cmd.Flags().Int("max-vus", 0, "")
	cmd.Flags().Int("num-rates", 0, "")
	cmd.Flags().Duration("duration", 0, "")
	cmd.Flags().Duration("warmup", 0, "")
	cmd.Flags().Float64Slice("rates", nil, "")
	cmd.Flags().StringToString("extra-metadata", nil, "")
	cmd.Flags().Bool("interactive", false, "")
	return cmd
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestApplyConfigFile(t *testing.T) {
	t.Run("File Overrides Defaults", func(t *testing.T) {
		path := writeConfigFile(t, `
url: http://10.0.0.5:8000
max_vus: 64
duration: 90s
warmup: 15s
benchmark_kind: rate
rates: [1.5, 3.0]
prompt_options:
  target_tokens: 30
  min_tokens: 10
  max_tokens: 60
  variance: 3
extra_metadata:
  gpu: h100
`)

		cmd := newTestCommand()
		config := defaultRunConfiguration()
		require.NoError(t, applyConfigFile(cmd, path, &config))

		assert.Equal(t, "http://10.0.0.5:8000", config.URL)
		assert.Equal(t, 64, config.MaxVUs)
		assert.Equal(t, 90*time.Second, config.Duration)
		assert.Equal(t, 15*time.Second, config.WarmupDuration)
		assert.Equal(t, "rate", config.BenchmarkKind)
		assert.Equal(t, []float64{1.5, 3.0}, config.Rates)
		assert.Equal(t, 30, config.PromptOptions.TargetTokens)
		assert.Equal(t, map[string]string{"gpu": "h100"}, config.ExtraMetadata)
	})

	t.Run("Explicit Flags Beat The File", func(t *testing.T) {
		path := writeConfigFile(t, "url: http://from-file:8000\nmax_vus: 64\n")

		cmd := newTestCommand()
		require.NoError(t, cmd.Flags().Set("url", "http://from-flag:8000"))

		config := defaultRunConfiguration()
		config.URL = "http://from-flag:8000"
		require.NoError(t, applyConfigFile(cmd, path, &config))

		assert.Equal(t, "http://from-flag:8000", config.URL, "explicit flag must win over the file")
		assert.Equal(t, 64, config.MaxVUs, "file must still fill unset flags")
	})

	t.Run("Absent Keys Keep Defaults", func(t *testing.T) {
		path := writeConfigFile(t, "max_vus: 8\n")

		cmd := newTestCommand()
		config := defaultRunConfiguration()
		require.NoError(t, applyConfigFile(cmd, path, &config))

		assert.Equal(t, 8, config.MaxVUs)
		assert.Equal(t, defaultRunConfiguration().URL, config.URL)
		assert.Equal(t, defaultRunConfiguration().Duration, config.Duration)
	})

	t.Run("Invalid Duration", func(t *testing.T) {
		path := writeConfigFile(t, "duration: soon\n")
		err := applyConfigFile(newTestCommand(), path, &RunConfiguration{})
		assert.Error(t, err)
	})

	t.Run("Missing File", func(t *testing.T) {
		err := applyConfigFile(newTestCommand(), filepath.Join(t.TempDir(), "nope.yaml"), &RunConfiguration{})
		assert.Error(t, err)
	})

	t.Run("Malformed YAML", func(t *testing.T) {
		path := writeConfigFile(t, "url: [unclosed\n")
		err := applyConfigFile(newTestCommand(), path, &RunConfiguration{})
		assert.Error(t, err)
	})
}
