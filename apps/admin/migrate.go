package main

import (
	"github.com/spf13/cobra"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/storage/database"
)

var runMigrationsFunc = database.RunMigrations // mockable

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run database migrations",
		Long: `Run a goose migration command against the configured database.

Commands: up, up-by-one, up-to VERSION, down, down-to VERSION, redo, reset,
status, version, create NAME [go|sql], fix`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrationsFunc(cmd.Context(), cli.db, args[0], args[1:]...)
		},
	}
}
