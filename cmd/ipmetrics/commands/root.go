// Package commands implements the ipmetrics command line.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/ipsurveil/ipmetrics/internal/cli"
	"github.com/ipsurveil/ipmetrics/internal/config"
	"github.com/ipsurveil/ipmetrics/internal/constants"
	"github.com/ipsurveil/ipmetrics/internal/document"
	"github.com/ipsurveil/ipmetrics/internal/document/database"
	"github.com/ipsurveil/ipmetrics/internal/records"
	"github.com/ipsurveil/ipmetrics/internal/surveillance"
	"github.com/ipsurveil/ipmetrics/internal/watch"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// App represents the application.
type App struct {
	cmd    *cobra.Command
	viper  *viper.Viper
	config appConfig

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	service *watch.Service
	ready   chan struct{}
}

// appConfig holds the configuration shared by every command.
type appConfig struct {
	Verbosity int  `mapstructure:"verbose"`
	JSONLogs  bool `mapstructure:"json-logs"`

	OptionsFile  string            `mapstructure:"options"`
	TimeoutHours float64           `mapstructure:"timeout-hours"`
	MDROKeywords []string          `mapstructure:"mdro-keywords"`
	EBPKeywords  []string          `mapstructure:"ebp-keywords"`
	UnitAliases  map[string]string `mapstructure:"unit-alias"`

	DBConfig   database.Config `mapstructure:",squash"`
	Facility   string          `mapstructure:"facility"`
	DocumentID string          `mapstructure:"document-id"`
}

// New creates a new App instance with default values.
func New() (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	a := App{ctx: ctx, cancel: cancel, ready: make(chan struct{})}

	a.cmd = &cobra.Command{
		Use:           constants.CmdName,
		Short:         "Derive daily infection prevention surveillance metrics",
		Long:          "ipmetrics derives daily infection prevention and antimicrobial stewardship metrics from a surveillance document, per facility or unit.",
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.ValidateRequiredFlags(); err != nil {
				return err
			}
			// Command parsing has been successful. Returns to not print usage anymore.
			a.cmd.SilenceUsage = true
			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs)
			if err := cli.InitViperConfig(constants.CmdName, a.cmd, a.viper); err != nil {
				return err
			}
			if err := cli.Unmarshal(a.viper, &a.config); err != nil {
				return err
			}
			slog.Debug("got app config", "verbosity", a.config.Verbosity, "options", a.config.OptionsFile, "db-host", a.config.DBConfig.Host)

			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs)
			return nil
		},
	}
	a.viper = viper.New()
	a.cmd.CompletionOptions.HiddenDefaultCmd = true

	installRootFlags(&a)
	cli.InstallConfigFlag(a.cmd)
	if err := a.viper.BindPFlags(a.cmd.PersistentFlags()); err != nil {
		return nil, err
	}

	installDailyCmd(&a)
	installRangeCmd(&a)
	installAggregateCmd(&a)
	installWatchCmd(&a)
	installImportCmd(&a)
	installMigrateCmd(&a)
	a.installVersion()

	return &a, nil
}

func installRootFlags(app *App) {
	flags := app.cmd.PersistentFlags()

	flags.CountVarP(&app.config.Verbosity, "verbose", "v", "issue INFO (-v), DEBUG (-vv)")
	flags.BoolVar(&app.config.JSONLogs, "json-logs", false, "enable JSON formatted logs on stderr")

	// Derivation options
	flags.StringVarP(&app.config.OptionsFile, "options", "o", "", "derivation options file (toml, yaml, ini or json)")
	flags.Float64Var(&app.config.TimeoutHours, "timeout-hours", surveillance.DefaultTimeoutHours, "hours after a course start when the antibiotic time-out is due")
	flags.StringSliceVar(&app.config.MDROKeywords, "mdro-keywords", nil, "keywords identifying multidrug-resistant organisms")
	flags.StringSliceVar(&app.config.EBPKeywords, "ebp-keywords", nil, "keywords identifying enhanced barrier precautions")
	flags.StringToStringVar(&app.config.UnitAliases, "unit-alias", nil, "unit label aliases, as label=unit")

	// Database document source
	flags.StringVar(&app.config.DBConfig.Host, "db-host", "", "read documents from the PostgreSQL database at host")
	flags.IntVar(&app.config.DBConfig.Port, "db-port", 5432, "database port")
	flags.StringVar(&app.config.DBConfig.User, "db-user", "", "database user")
	flags.StringVar(&app.config.DBConfig.Password, "db-password", "", "database password")
	flags.StringVar(&app.config.DBConfig.DBName, "db-name", "", "database name")
	flags.StringVar(&app.config.DBConfig.SSLMode, "db-sslmode", "", "database SSL mode")
	flags.StringVar(&app.config.Facility, "facility", "", "facility of the database document")
	flags.StringVar(&app.config.DocumentID, "document-id", "", "id of the database document, instead of the latest one of the facility")

	if err := app.cmd.MarkPersistentFlagFilename("options", "toml", "yaml", "yml", "ini", "json"); err != nil {
		panic(fmt.Sprintf("failed to mark options flag as filename: %v", err))
	}
}

// Run executes the command and associated process, returning an error if any.
func (a *App) Run() error {
	return a.cmd.Execute()
}

// UsageError returns if the error is a command parsing or runtime one.
func (a *App) UsageError() bool {
	return !a.cmd.SilenceUsage
}

// Hup prints all goroutine stack traces and return false to signal you shouldn't quit.
func (a *App) Hup() (shouldQuit bool) {
	buf := make([]byte, 1<<16)
	runtime.Stack(buf, true)
	fmt.Printf("%s", buf)
	return false
}

// Quit gracefully stops the running command.
func (a *App) Quit() {
	a.mu.Lock()
	s := a.service
	a.mu.Unlock()

	if s != nil {
		s.Quit(false)
	}
	a.cancel()
}

// WaitReady waits for the watch service to be ready.
func (a *App) WaitReady() {
	<-a.ready
}

// RootCmd returns the root command.
func (a *App) RootCmd() *cobra.Command {
	return a.cmd
}

func (a *App) out() io.Writer {
	return a.cmd.OutOrStdout()
}

// usageError flags err as a usage error, which prints the command usage.
func (a *App) usageError(err error) error {
	a.cmd.SilenceUsage = false
	return err
}

// optionsManager returns the derivation options in effect: defaults, then the options file, then flags,
// environment and configuration file values.
func (a *App) optionsManager() (*config.Manager, error) {
	var over config.File
	if a.viper.IsSet("timeout-hours") {
		h := a.config.TimeoutHours
		over.TimeoutHours = &h
	}
	if a.viper.IsSet("mdro-keywords") {
		over.MDROKeywords = a.config.MDROKeywords
	}
	if a.viper.IsSet("ebp-keywords") {
		over.EBPKeywords = a.config.EBPKeywords
	}
	if len(a.config.UnitAliases) > 0 {
		over.UnitAliases = a.config.UnitAliases
	}

	cm := config.New(a.config.OptionsFile, config.WithOverride(over))
	if err := cm.Load(); err != nil {
		return nil, err
	}
	return cm, nil
}

// source returns where to read the document from, and a function releasing it.
// The database is used when a database host is configured, otherwise the file given as argument.
func (a *App) source(args []string) (document.Source, func(), error) {
	if a.config.DBConfig.Host == "" {
		if len(args) == 0 {
			return nil, nil, a.usageError(errors.New("a document file is required without a database host"))
		}
		return document.FileSource{Path: args[0]}, func() {}, nil
	}
	if len(args) > 0 {
		return nil, nil, a.usageError(errors.New("a document file can't be used with a database host"))
	}

	var id uuid.UUID
	if a.config.DocumentID != "" {
		var err error
		if id, err = uuid.Parse(a.config.DocumentID); err != nil {
			return nil, nil, a.usageError(fmt.Errorf("invalid document id: %v", err))
		}
	} else if a.config.Facility == "" {
		return nil, nil, a.usageError(errors.New("a facility or a document id is required with a database host"))
	}

	db, err := database.Connect(a.ctx, a.config.DBConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %v", err)
	}
	return db.Source(a.config.Facility, id), func() {
		if err := db.Close(); err != nil {
			slog.Warn("Failed to close database", "err", err)
		}
	}, nil
}

// loadDocument reads the document selected by args.
func (a *App) loadDocument(args []string) (document.Document, error) {
	src, release, err := a.source(args)
	if err != nil {
		return document.Document{}, err
	}
	defer release()

	return src.Document(a.ctx)
}

// isoFlag normalizes the date given to flag, as a usage error when it is not a valid date.
func (a *App) isoFlag(flag, v string) (string, error) {
	d, ok := records.ToISODate(v)
	if !ok {
		return "", a.usageError(fmt.Errorf("invalid --%s date %q", flag, v))
	}
	return d, nil
}
