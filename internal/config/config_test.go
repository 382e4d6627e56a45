package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ipsurveil/ipmetrics/internal/config"
	"github.com/ipsurveil/ipmetrics/internal/records"
	"github.com/stretchr/testify/require"
)

func createTempOptionsFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600), "Setup: failed to write options file")
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		content  string
		noFile   bool
		noPath   bool
		override config.File

		wantHours   *float64
		wantAliases records.Aliases
		wantErr     bool
	}{
		"Valid options":              {content: "timeout_hours = 24\n[unit_aliases]\n2W = \"Unit 2\"\n", wantHours: ptr(24.0), wantAliases: records.Aliases{"2W": "Unit 2"}},
		"Override wins":              {content: "timeout_hours = 24\n", override: config.File{TimeoutHours: ptr(12.0)}, wantHours: ptr(12.0)},
		"No path only uses override": {noPath: true, override: config.File{TimeoutHours: ptr(12.0)}, wantHours: ptr(12.0)},
		"No path and no override":    {noPath: true},

		"Error on malformed options": {content: "timeout_hours = ", wantErr: true},
		"Error on missing file":      {noFile: true, wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var path string
			switch {
			case tc.noPath:
			case tc.noFile:
				path = filepath.Join(t.TempDir(), "missing.toml")
			default:
				path = createTempOptionsFile(t, "options.toml", tc.content)
			}

			cm := config.New(path, config.WithOverride(tc.override))
			err := cm.Load()
			if tc.wantErr {
				require.Error(t, err, "Load should return an error")
				return
			}
			require.NoError(t, err, "Load should not return an error")

			opts := cm.Options()
			require.Equal(t, tc.wantHours, opts.TimeoutHours, "unexpected time-out window")
			require.Equal(t, tc.wantAliases, opts.UnitAliases, "unexpected aliases")
		})
	}
}

func TestLoadKeepsPreviousOptionsOnError(t *testing.T) {
	t.Parallel()

	path := createTempOptionsFile(t, "options.json", `{"timeout_hours": 24}`)
	cm := config.New(path)
	require.NoError(t, cm.Load(), "Setup: initial load failed")

	require.NoError(t, os.WriteFile(path, []byte("{"), 0600), "Setup: failed to corrupt options file")
	require.Error(t, cm.Load(), "Load should fail on a malformed file")
	require.Equal(t, ptr(24.0), cm.Options().TimeoutHours, "options should be kept after a failed load")
}

func TestWatch(t *testing.T) {
	t.Parallel()

	path := createTempOptionsFile(t, "options.yaml", "timeout_hours: 24\n")

	cm := config.New(path)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, errs, err := cm.Watch(ctx)
	require.NoError(t, err, "Watch should not return an error")
	require.Equal(t, ptr(24.0), cm.Options().TimeoutHours, "Watch should load the initial options")

	// Unrelated files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.yaml"), []byte("timeout_hours: 1\n"), 0600), "Setup: failed to write unrelated file")

	require.NoError(t, os.WriteFile(path, []byte("timeout_hours: 48\n"), 0600), "Setup: failed to update options file")
	require.Eventually(t, func() bool {
		select {
		case <-changes:
		default:
		}
		h := cm.Options().TimeoutHours
		return h != nil && *h == 48
	}, 5*time.Second, 50*time.Millisecond, "options should be reloaded after a change")

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-errs:
			return !ok
		default:
			return false
		}
	}, 5*time.Second, 50*time.Millisecond, "Watch should stop when the context is canceled")
}

func TestWatchErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		path func(t *testing.T) string
	}{
		"Error without options file": {path: func(*testing.T) string { return "" }},
		"Error on missing directory": {path: func(t *testing.T) string {
			t.Helper()
			return filepath.Join(t.TempDir(), "missing", "options.toml")
		}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, _, err := config.New(tc.path(t)).Watch(t.Context())
			require.Error(t, err, "Watch should return an error")
		})
	}
}
