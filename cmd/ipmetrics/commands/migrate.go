package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx" // PGX driver for golang-migrate
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

func installMigrateCmd(app *App) {
	migrateCmd := &cobra.Command{
		Use:   "migrate [path-to-migration-scripts]",
		Short: "Run migration scripts",
		Long:  "Run the migration scripts of the directory to create or update the document database schema.",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("migrate command accepts exactly one argument")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			fileInfo, err := os.Stat(args[0])
			if err != nil {
				return app.usageError(fmt.Errorf("the provided path to migration scripts is not valid: %v", err))
			}
			if !fileInfo.IsDir() {
				return app.usageError(fmt.Errorf("the provided path to migration scripts should be a directory, not a file"))
			}
			if app.config.DBConfig.Host == "" {
				return app.usageError(errors.New("migrate requires a database host"))
			}

			slog.Info("Running migrate command")
			return app.migrateRun(args[0])
		},
	}
	app.cmd.AddCommand(migrateCmd)
}

func (a *App) migrateRun(dir string) error {
	m, err := migrate.New("file://"+dir, a.config.DBConfig.URI("pgx"))
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %v", err)
	}
	defer func() {
		if sErr, dbErr := m.Close(); sErr != nil || dbErr != nil {
			if sErr != nil {
				slog.Error("failed to close migration instance", "error", sErr)
			}
			if dbErr != nil {
				slog.Error("failed to close database connection", "error", dbErr)
			}
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("No new migrations to apply")
			return nil
		}

		return fmt.Errorf("failed to apply migrations: %v", err)
	}
	slog.Info("Migrations applied successfully")
	return nil
}
