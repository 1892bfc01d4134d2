package main

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/lead"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/project"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/report"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/user"
)

// systemActor returns an active superadmin, who sees every lead.
func systemActor() user.User {
	usr := user.User{ID: "admin-cli", Name: "admin", Role: user.RoleSuperadmin}
	usr.SetActive(true)
	return usr
}

func (cli *commandLine) exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export leads or units as CSV",
	}
	cmd.PersistentFlags().StringVarP(&out, "out", "o", "", "output file (default stdout)")

	var (
		leadFilter lead.QueryFilter
		as         string
	)
	leadsCmd := &cobra.Command{
		Use:   "leads",
		Short: "Export leads",
		Long:  "Export leads as CSV, oldest first. With --as, only the leads visible to that user are exported.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			actor := systemActor()
			if as != "" {
				usr, err := cli.usrRepo.GetUser(cmd.Context(), user.GetFilter{UsernameOrEmail: []string{core.CleanString(as, true)}})
				if err != nil {
					return errors.Wrapf(err, "finding %q", as)
				}
				actor = usr
			}
			for _, p := range leadFilter.Priorities {
				if !core.StringInSlice(p, lead.AllPriorities) {
					return errors.Errorf("invalid priority %q", p)
				}
			}
			return writeOutput(cmd, out, func(w io.Writer) error {
				return cli.reports.ExportLeads(cmd.Context(), report.ExportFilter{Leads: leadFilter}, actor, w)
			})
		},
	}
	lf := leadsCmd.Flags()
	lf.StringVar(&as, "as", "", "export as this user (username or email)")
	lf.StringSliceVar(&leadFilter.Priorities, "priority", nil, "only these priorities")
	lf.StringVar(&leadFilter.Source, "source", "", "only this source")
	lf.StringVar(&leadFilter.ProjectID, "project", "", "only this project ID")

	var unitFilter project.UnitFilter
	unitsCmd := &cobra.Command{
		Use:   "units",
		Short: "Export project units",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range unitFilter.Statuses {
				if !core.StringInSlice(s, project.UnitStatuses) {
					return errors.Errorf("invalid status %q", s)
				}
			}
			return writeOutput(cmd, out, func(w io.Writer) error {
				return cli.reports.ExportUnits(cmd.Context(), unitFilter, w)
			})
		},
	}
	uf := unitsCmd.Flags()
	uf.StringVar(&unitFilter.ProjectID, "project", "", "only this project ID")
	uf.StringSliceVar(&unitFilter.Statuses, "status", nil, "only these statuses")

	cmd.AddCommand(leadsCmd, unitsCmd)
	return cmd
}

// writeOutput runs write against the file at path, or the command's output when path is empty.
func writeOutput(cmd *cobra.Command, path string, write func(w io.Writer) error) (err error) {
	if path == "" {
		return write(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating output file")
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = errors.Wrap(cerr, "closing output file")
		}
	}()
	return write(f)
}
