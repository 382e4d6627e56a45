package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ipsurveil/ipmetrics/internal/records"
	"github.com/ipsurveil/ipmetrics/internal/report"
	"github.com/ipsurveil/ipmetrics/internal/surveillance"
	"github.com/spf13/cobra"
)

type deriveConfig struct {
	date       string
	start      string
	end        string
	unit       string
	format     string
	reportsDir string
}

func installDailyCmd(app *App) {
	var c deriveConfig

	cmd := &cobra.Command{
		Use:   "daily [DOCUMENT]",
		Short: "Derive the metrics of one day",
		Long: `Derive the metrics of one day and unit from a surveillance document.
The document is a JSON or YAML file, or the database document selected by --facility or --document-id when
a database host is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.checkFormat(c.format); err != nil {
				return err
			}
			if c.date == "" {
				c.date = time.Now().Format(records.ISOLayout)
			}
			date, err := app.isoFlag("date", c.date)
			if err != nil {
				return err
			}

			cm, err := app.optionsManager()
			if err != nil {
				return err
			}
			doc, err := app.loadDocument(args)
			if err != nil {
				return err
			}

			snap := surveillance.Derive(doc, date, c.unit, cm.Options())
			if err := writeReports(c.reportsDir, snap); err != nil {
				return err
			}
			return write(app.out(), c.format, snap)
		},
	}
	cmd.Flags().StringVarP(&c.date, "date", "d", "", "day to derive (default today)")
	addScopeFlags(cmd, &c)
	cmd.Flags().StringVar(&c.reportsDir, "reports-dir", "", "also store the snapshot as a report under this directory")

	app.cmd.AddCommand(cmd)
}

func installRangeCmd(app *App) {
	var c deriveConfig

	cmd := &cobra.Command{
		Use:   "range [DOCUMENT]",
		Short: "Derive the metrics of every day of a period",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.checkFormat(c.format); err != nil {
				return err
			}
			start, end, err := app.period(c)
			if err != nil {
				return err
			}

			cm, err := app.optionsManager()
			if err != nil {
				return err
			}
			doc, err := app.loadDocument(args)
			if err != nil {
				return err
			}

			snaps := surveillance.DeriveRange(doc, start, end, c.unit, cm.Options())
			if err := writeReports(c.reportsDir, snaps...); err != nil {
				return err
			}
			return write(app.out(), c.format, snaps)
		},
	}
	addPeriodFlags(cmd, &c)
	addScopeFlags(cmd, &c)
	cmd.Flags().StringVar(&c.reportsDir, "reports-dir", "", "also store the snapshots as reports under this directory")

	app.cmd.AddCommand(cmd)
}

func addScopeFlags(cmd *cobra.Command, c *deriveConfig) {
	cmd.Flags().StringVarP(&c.unit, "unit", "u", records.FacilityScope, "unit to derive, or facility for the whole facility")
	cmd.Flags().StringVarP(&c.format, "format", "f", formatJSON, "output format, json or yaml")
}

func addPeriodFlags(cmd *cobra.Command, c *deriveConfig) {
	cmd.Flags().StringVar(&c.start, "start", "", "first day of the period")
	cmd.Flags().StringVar(&c.end, "end", "", "last day of the period")
	for _, name := range []string{"start", "end"} {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(fmt.Sprintf("failed to mark %s flag as required: %v", name, err))
		}
	}
}

// period returns the normalized bounds of the period of c.
func (a *App) period(c deriveConfig) (start, end string, err error) {
	if start, err = a.isoFlag("start", c.start); err != nil {
		return "", "", err
	}
	if end, err = a.isoFlag("end", c.end); err != nil {
		return "", "", err
	}
	if start > end {
		return "", "", a.usageError(fmt.Errorf("--start %s is after --end %s", start, end))
	}
	return start, end, nil
}

// writeReports stores snaps under dir, if set.
func writeReports(dir string, snaps ...surveillance.Snapshot) error {
	if dir == "" {
		return nil
	}
	for _, s := range snaps {
		r, err := report.Write(dir, s)
		if err != nil {
			return err
		}
		slog.Info("Stored report", "path", r.Path)
	}
	return nil
}
