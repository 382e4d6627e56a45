package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ipsurveil/ipmetrics/internal/document"
	"github.com/ipsurveil/ipmetrics/internal/document/database"
	"github.com/spf13/cobra"
)

func installImportCmd(app *App) {
	cmd := &cobra.Command{
		Use:   "import DOCUMENT",
		Short: "Store a document in the database",
		Long:  "Store a surveillance document file in the database as the latest document of --facility.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.config.DBConfig.Host == "" {
				return app.usageError(errors.New("import requires a database host"))
			}
			if app.config.Facility == "" {
				return app.usageError(errors.New("import requires a facility"))
			}

			doc, err := document.Load(args[0])
			if err != nil {
				return err
			}

			db, err := database.Connect(app.ctx, app.config.DBConfig)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %v", err)
			}
			defer func() {
				if err := db.Close(); err != nil {
					slog.Warn("Failed to close database", "err", err)
				}
			}()

			id, err := db.Put(app.ctx, app.config.Facility, doc)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(app.out(), id)
			return err
		},
	}
	app.cmd.AddCommand(cmd)
}
