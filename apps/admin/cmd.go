package main

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/report"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errNoPassword = errors.New("a password is required")
)

type commandLine struct {
	db      *sqlx.DB
	usrRepo user.Repository
	reports report.Service
}

// newRootCmd builds the admin command tree bound to cli.
func newRootCmd(cli *commandLine) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "admin",
		Short: "Citanusa CRM administration",
		Long: `Administration tasks for the Citanusa CRM: database migrations,
user bootstrapping and CSV exports.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		cli.migrateCmd(),
		cli.addUserCmd(),
		cli.resetPasswordCmd(),
		cli.exportCmd(),
	)
	return rootCmd
}

// promptPassword reads a password from the terminal without echoing it.
func promptPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		return "", errNoPassword
	}
	return string(pwd), nil
}
