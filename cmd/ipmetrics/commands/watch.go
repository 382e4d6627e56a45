package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ipsurveil/ipmetrics/internal/constants"
	"github.com/ipsurveil/ipmetrics/internal/metrics"
	"github.com/ipsurveil/ipmetrics/internal/records"
	"github.com/ipsurveil/ipmetrics/internal/watch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

type watchConfig struct {
	watch.Config
	metrics metrics.Config
}

func installWatchCmd(app *App) {
	var c watchConfig

	cmd := &cobra.Command{
		Use:   "watch DOCUMENT",
		Short: "Keep the reports of a document up to date",
		Long: `Derive the daily metrics of the document each time it changes and store them as reports.
The options file is watched too. Activity metrics are served for Prometheus on /metrics.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.config.DBConfig.Host != "" {
				return app.usageError(errors.New("watch only supports document files"))
			}
			if c.Date != "" {
				d, err := app.isoFlag("date", c.Date)
				if err != nil {
					return err
				}
				c.Date = d
			}

			doc, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("failed to get absolute path for document: %v", err)
			}
			c.Document = doc

			return app.runWatch(c)
		},
	}
	cmd.Flags().StringVar(&c.ReportsDir, "reports-dir", constants.GetDefaultReportsPath(), "base directory to store reports in")
	cmd.Flags().StringSliceVarP(&c.Units, "unit", "u", []string{records.FacilityScope}, "units to derive, or facility for the whole facility")
	cmd.Flags().StringVarP(&c.Date, "date", "d", "", "last day to derive (default today)")
	cmd.Flags().IntVar(&c.Days, "days", 1, "number of days to derive up to the last day")

	cmd.Flags().StringVar(&c.metrics.Host, "metrics-host", "", "host for the metrics endpoint")
	cmd.Flags().IntVar(&c.metrics.Port, "metrics-port", constants.DefaultMetricsPort, "port for the metrics endpoint")
	cmd.Flags().DurationVar(&c.metrics.ReadTimeout, "read-timeout", 5*time.Second, "read timeout for the metrics HTTP server")
	cmd.Flags().DurationVar(&c.metrics.WriteTimeout, "write-timeout", 10*time.Second, "write timeout for the metrics HTTP server")

	if err := cmd.MarkFlagDirname("reports-dir"); err != nil {
		panic(fmt.Sprintf("failed to mark reports-dir flag as directory: %v", err))
	}

	app.cmd.AddCommand(cmd)
}

func (a *App) runWatch(c watchConfig) error {
	cm, err := a.optionsManager()
	if err != nil {
		return err
	}

	var args []watch.Option
	if a.config.OptionsFile != "" {
		changes, _, err := cm.Watch(a.ctx)
		if err != nil {
			return fmt.Errorf("failed to watch options file: %v", err)
		}
		args = append(args, watch.WithReload(changes))
	}

	registry := prometheus.NewRegistry()
	deriver, err := watch.NewDeriver(c.Config, cm, registry, args...)
	if err != nil {
		return a.usageError(err)
	}

	a.mu.Lock()
	a.service = watch.NewService(a.ctx, deriver, metrics.New(c.metrics, registry))
	a.mu.Unlock()
	close(a.ready)

	return a.service.Run()
}
