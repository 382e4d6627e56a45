// Package constants is responsible for defining the constants used in the application.
// It also provides utility functions to get the default configuration and report paths.
package constants

import (
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// CmdName is the name of the command line tool.
	CmdName = "ipmetrics"

	// DefaultAppFolder is the name of the default root folder.
	DefaultAppFolder = "ipmetrics"

	// DefaultLogLevel is the default log level selected without any verbosity flags.
	DefaultLogLevel = slog.LevelWarn

	// ReportExtension is the extension of the snapshot report files.
	ReportExtension = ".json"

	// ReportsFolder is the name of the folder holding snapshot reports in the cache directory.
	ReportsFolder = "reports"

	// DefaultMetricsPort is the default port of the Prometheus metrics endpoint of the watch service.
	DefaultMetricsPort = 9120
)

// Version is the version of the application, set at build time.
var Version = "Dev"

type options struct {
	baseDir func() (string, error)
}

type option func(*options)

// GetDefaultConfigPath is the default path to the configuration directory.
func GetDefaultConfigPath(opts ...option) string {
	o := options{baseDir: os.UserConfigDir}
	for _, opt := range opts {
		opt(&o)
	}

	return filepath.Join(getBaseDir(o.baseDir), DefaultAppFolder)
}

// GetDefaultReportsPath is the default path to the snapshot reports directory.
func GetDefaultReportsPath(opts ...option) string {
	o := options{baseDir: os.UserCacheDir}
	for _, opt := range opts {
		opt(&o)
	}

	return filepath.Join(getBaseDir(o.baseDir), DefaultAppFolder, ReportsFolder)
}

// getBaseDir is a helper function to handle the case where the baseDir function returns an error, and instead return an empty string.
func getBaseDir(baseDirFunc func() (string, error)) string {
	dir, err := baseDirFunc()
	if err != nil {
		return ""
	}
	return dir
}
