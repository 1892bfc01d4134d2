package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/user"
)

type addUserOpts struct {
	name     string
	username string
	email    string
	role     string
	manager  string // username or email
	spv      string // username or email
}

func (cli *commandLine) addUserCmd() *cobra.Command {
	var opts addUserOpts
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create or update a user",
		Long: `Create a user, or update the one with the same username or email.
The user is activated and the password is prompted.

An spv needs --manager. An ha needs --manager or --spv; with --spv its manager is the spv's.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pwd, err := promptPassword(cmd)
			if err != nil {
				return err
			}
			usr, err := cli.addUser(cmd.Context(), opts, pwd)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %s (%s) saved.\n", usr.Username, usr.Role)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.name, "name", "", "full name (defaults to the username)")
	flags.StringVar(&opts.username, "username", "", "username")
	flags.StringVar(&opts.email, "email", "", "email address")
	flags.StringVar(&opts.role, "role", user.RoleSuperadmin, "one of superadmin, manager, spv, ha")
	flags.StringVar(&opts.manager, "manager", "", "the manager's username or email (spv, ha)")
	flags.StringVar(&opts.spv, "spv", "", "the supervisor's username or email (ha)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(ctx context.Context, opts addUserOpts, pwd string) (user.User, error) {
	uname := core.CleanString(opts.username, true /* lower */)
	email := core.CleanString(opts.email, true /* lower */)
	role := core.CleanString(opts.role, true /* lower */)
	if !core.StringInSlice(role, user.AllRoles) {
		return user.User{}, errors.Errorf("invalid role %q", opts.role)
	}

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{uname, email}})
	switch {
	case errors.Cause(err) == user.ErrNotFound:
		now := core.Now()
		usr = user.User{CreatedAt: now}
	case err != nil:
		return user.User{}, err
	}

	usr.Username = uname
	usr.Email = email
	usr.Role = role
	usr.Name = core.CleanString(opts.name)
	if usr.Name == "" {
		usr.Name = uname
	}
	if usr.ManagerID, usr.SpvID, err = cli.resolveHierarchy(ctx, role, opts); err != nil {
		return user.User{}, err
	}
	usr.SetActive(true)
	if err = usr.SetPassword(pwd); err != nil {
		return user.User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = core.Now()
	return cli.usrRepo.UpdateOrCreateUser(ctx, usr)
}

func (cli *commandLine) resolveHierarchy(ctx context.Context, role string, opts addUserOpts) (managerID, spvID string, err error) {
	switch role {
	case user.RoleSpv:
		mgr, err := cli.findUser(ctx, opts.manager, user.RoleManager, "manager")
		if err != nil {
			return "", "", err
		}
		return mgr.ID, "", nil
	case user.RoleHA:
		if opts.spv == "" {
			mgr, err := cli.findUser(ctx, opts.manager, user.RoleManager, "manager")
			if err != nil {
				return "", "", err
			}
			return mgr.ID, "", nil
		}
		spv, err := cli.findUser(ctx, opts.spv, user.RoleSpv, "spv")
		if err != nil {
			return "", "", err
		}
		if opts.manager != "" {
			mgr, err := cli.findUser(ctx, opts.manager, user.RoleManager, "manager")
			if err != nil {
				return "", "", err
			}
			if mgr.ID != spv.ManagerID {
				return "", "", errors.Errorf("%q does not report to %q", opts.spv, opts.manager)
			}
		}
		return spv.ManagerID, spv.ID, nil
	}
	return "", "", nil
}

func (cli *commandLine) findUser(ctx context.Context, key, role, flag string) (user.User, error) {
	key = core.CleanString(key, true /* lower */)
	if key == "" {
		return user.User{}, errors.Errorf("--%s is required for this role", flag)
	}
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{key}})
	if err != nil {
		return user.User{}, errors.Wrapf(err, "finding %s %q", flag, key)
	}
	if usr.Role != role {
		return user.User{}, errors.Errorf("%q is not a %s", key, role)
	}
	return usr, nil
}
