package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/thesisflow/core"
	"github.com/trezcool/thesisflow/core/user"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
	if err != nil {
		return errors.Cause(err)
	}
	if err = user.ValidatePassword(cli.validate, cli.translator, pwd); err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	if _, err = cli.usrRepo.UpdateUser(ctx, usr); err != nil {
		return err
	}
	return nil
}
