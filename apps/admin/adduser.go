package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/thesisflow/core"
	"github.com/trezcool/thesisflow/core/user"
)

// getUser looks a user up by username first, then by email.
func (cli *commandLine) getUser(ctx context.Context, uname, email string) (user.User, error) {
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: uname})
	if errors.Cause(err) == user.ErrNotFound {
		usr, err = cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	}
	return usr, err
}

// addUser updates or creates a user.User. Roles are only changed when some are given.
func (cli *commandLine) addUser(name, uname, email, pwd string, roles []string) error {
	ctx := context.Background()
	name = core.CleanString(name)
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	if err := user.ValidatePassword(cli.validate, cli.translator, pwd); err != nil {
		return err
	}

	now := time.Now().UTC()
	usr, err := cli.getUser(ctx, uname, email)
	exists := err == nil
	if !exists {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		usr = user.User{
			Username:  uname,
			Email:     email,
			Roles:     []string{},
			CreatedAt: now,
		}
	}
	if name != "" {
		usr.Name = name
	} else if usr.Name == "" {
		usr.Name = uname
	}
	if roles != nil {
		usr.Roles = roles
	}
	active := true
	usr.IsActive = &active
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if exists {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	}
	return err
}
