package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/kcci/portal/core"
	"github.com/kcci/portal/core/user"
)

type newUserFlags struct {
	name     string
	username string
	email    string
	admin    bool
}

func (cli *commandLine) addUserCmd() *cobra.Command {
	var flags newUserFlags
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, or update the password of an existing one. The password is prompted next.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.username == "" || flags.email == "" {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := cli.promptPassword(cmd, "Enter password:")
			if err != nil {
				return err
			}
			return cli.addUser(cmd.Context(), flags, pwd)
		},
	}
	cmd.Flags().StringVar(&flags.name, "name", "", "the user's full name")
	cmd.Flags().StringVarP(&flags.username, "username", "u", "", "the user's username")
	cmd.Flags().StringVarP(&flags.email, "email", "e", "", "the user's email")
	cmd.Flags().BoolVar(&flags.admin, "admin", false, "grant the admin role")
	return cmd
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(ctx context.Context, flags newUserFlags, pwd string) error {
	uname := core.CleanString(flags.username, true /* lower */)
	email := core.CleanString(flags.email, true /* lower */)

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: uname})
	if err != nil && errors.Cause(err) != user.ErrNotFound {
		return err
	}
	create := err != nil
	if create {
		now := time.Now().UTC()
		usr = user.User{
			Username:  uname,
			Email:     email,
			Roles:     []string{},
			CreatedAt: now,
		}
	}
	if name := core.CleanString(flags.name); name != "" {
		usr.Name = name
	}
	if flags.admin && !usr.IsAdmin() {
		usr.Roles = append(usr.Roles, user.RoleAdmin)
	}
	usr.SetActive(true)
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()

	if create {
		if err = cli.usrRepo.CheckUsernameUniqueness(ctx, usr.Username, usr.Email); err != nil {
			return err
		}
		usr, err = cli.usrRepo.CreateUser(ctx, usr)
	} else {
		usr, err = cli.usrRepo.UpdateUser(ctx, usr)
	}
	if err != nil {
		return err
	}
	cli.logger.Info("user saved", usr)
	return nil
}
