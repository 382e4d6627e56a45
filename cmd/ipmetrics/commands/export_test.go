package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type (
	AppConfig = appConfig
)

// Config returns the configuration of the app.
func (a *App) Config() AppConfig {
	return a.config
}

// NewForTests creates a new App instance writing its output to a buffer.
// A configuration file path is always given so that no file of the host is read.
func NewForTests(t *testing.T, args ...string) (*App, *bytes.Buffer) {
	t.Helper()

	a, err := New()
	require.NoError(t, err, "Setup: failed to create app")

	out := &bytes.Buffer{}
	a.cmd.SetOut(out)
	a.cmd.SetErr(&bytes.Buffer{})

	conf := filepath.Join(t.TempDir(), "ipmetrics.yaml")
	require.NoError(t, os.WriteFile(conf, []byte("verbose: 2\n"), 0600), "Setup: failed to write configuration file")
	a.cmd.SetArgs(append(args, "--config", conf))
	return a, out
}

// SetArgs set some arguments on root command for tests.
func (a *App) SetArgs(args ...string) {
	a.cmd.SetArgs(args)
}

// SetSilenceUsage set the SilenceUsage flag on root command for tests.
func (a *App) SetSilenceUsage(silence bool) {
	a.cmd.SilenceUsage = silence
}
