package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/climq/internal/testutil"
)

// fixtureDir writes the fixture databases of the builtin domains and
// turns the gazetteer off for the test.
func fixtureDir(t *testing.T) string {
	t.Helper()
	t.Setenv("CLIMQ_GAZETTEER_ENABLED", "false")
	return testutil.Datasets(t, testutil.Registry(t))
}

// execute runs the root command with args and stdin and returns what it
// wrote to stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRootCommand_Use(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "climq", cmd.Use)
	assert.True(t, cmd.SilenceUsage)
	assert.True(t, cmd.SilenceErrors)
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmd := NewRootCommand()

	want := []string{"ask", "plan", "repl", "serve", "vocab", "check", "load", "test"}
	var have []string
	for _, sub := range cmd.Commands() {
		have = append(have, sub.Name())
	}
	for _, name := range want {
		assert.Contains(t, have, name, "missing subcommand %s", name)
	}
}

func TestRootCommand_GlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	flags := cmd.PersistentFlags()

	for _, name := range []string{"verbose", "format", "config", "data-dir", "vocab", "domain", "metrics-addr"} {
		assert.NotNil(t, flags.Lookup(name), "missing flag --%s", name)
	}
	assert.Equal(t, "v", flags.Lookup("verbose").Shorthand)
	assert.Equal(t, "c", flags.Lookup("config").Shorthand)
	assert.Equal(t, "d", flags.Lookup("domain").Shorthand)
	assert.Equal(t, "text", flags.Lookup("format").DefValue)
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	_, _, err := execute(t, "", "--format", "xml", "vocab")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"loud", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, levelFromString(tt.in))
		})
	}
}

func TestSetup_ConfigFileAndFlagOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "climq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: data
domain: edgar
logging:
  level: warn
`), 0o644))

	opts := &RootOptions{ConfigPath: path, Domain: "fema", MetricsAddr: "127.0.0.1:0", VocabDir: "domains"}
	cmd := &cobra.Command{}
	cmd.SetErr(&bytes.Buffer{})
	require.NoError(t, opts.setup(cmd))

	require.NotNil(t, opts.Config)
	assert.Equal(t, filepath.Join(dir, "data"), opts.Config.DataDir)
	assert.Equal(t, "fema", opts.Config.Domain)
	assert.Equal(t, "127.0.0.1:0", opts.Config.Metrics.Addr)
	assert.Equal(t, "domains", opts.Config.VocabDir)
	assert.Equal(t, "warn", opts.Config.Logging.Level)

	require.NotNil(t, opts.Logger)
	ctx := context.Background()
	assert.False(t, opts.Logger.Enabled(ctx, slog.LevelInfo))
	assert.True(t, opts.Logger.Enabled(ctx, slog.LevelWarn))
}

func TestSetup_VerboseEnablesDebug(t *testing.T) {
	opts := &RootOptions{Verbose: true, DataDir: t.TempDir()}
	cmd := &cobra.Command{}
	cmd.SetErr(&bytes.Buffer{})
	require.NoError(t, opts.setup(cmd))
	assert.True(t, opts.Logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestSetup_MissingConfigFile(t *testing.T) {
	opts := &RootOptions{ConfigPath: filepath.Join(t.TempDir(), "nope.yaml")}
	err := opts.setup(&cobra.Command{})
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}
