package commands

import (
	"errors"

	"github.com/ipsurveil/ipmetrics/internal/report"
	"github.com/ipsurveil/ipmetrics/internal/surveillance"
	"github.com/spf13/cobra"
)

func installAggregateCmd(app *App) {
	var c deriveConfig

	cmd := &cobra.Command{
		Use:   "aggregate [DOCUMENT]",
		Short: "Summarize the metrics of a period",
		Long: `Summarize the daily metrics of a period into totals and rates per 1000 resident days.
The daily metrics are derived from the document, or read from the reports stored under --from-reports.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.checkFormat(c.format); err != nil {
				return err
			}
			start, end, err := app.period(c)
			if err != nil {
				return err
			}
			if c.reportsDir != "" && (len(args) > 0 || app.config.DBConfig.Host != "") {
				return app.usageError(errors.New("--from-reports can't be used with a document"))
			}

			cm, err := app.optionsManager()
			if err != nil {
				return err
			}
			opts := cm.Options()
			scope := surveillance.ScopeID(c.unit, opts.UnitAliases)

			var snaps []surveillance.Snapshot
			if c.reportsDir != "" {
				reports, err := report.GetInRange(report.UnitDir(c.reportsDir, scope), start, end)
				if err != nil {
					return err
				}
				if snaps, err = report.ReadSnapshots(reports); err != nil {
					return err
				}
			} else {
				doc, err := app.loadDocument(args)
				if err != nil {
					return err
				}
				snaps = surveillance.DeriveRange(doc, start, end, c.unit, opts)
			}

			return write(app.out(), c.format, surveillance.Aggregate(snaps, scope, start, end))
		},
	}
	addPeriodFlags(cmd, &c)
	addScopeFlags(cmd, &c)
	cmd.Flags().StringVar(&c.reportsDir, "from-reports", "", "aggregate the reports stored under this directory instead of a document")

	app.cmd.AddCommand(cmd)
}
