package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/edugrade/core"
	"github.com/trezcool/edugrade/core/user"
)

// addTeacher updates or creates a teacher account.
func (cli *commandLine) addTeacher(name, email, pwd string) error {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUserByEmail(ctx, email)
	switch errors.Cause(err) {
	case nil:
		usr.Name = name
		usr.UpdatedAt = time.Now().UTC()
		if err = usr.SetPassword(pwd); err != nil {
			return err
		}
		active := true
		_, err = cli.usrRepo.UpdateUser(ctx, usr, &active)
		return err
	case user.ErrNotFound:
		now := time.Now().UTC()
		usr = user.User{
			ID:        uuid.NewString(),
			Name:      name,
			Email:     email,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err = usr.SetPassword(pwd); err != nil {
			return err
		}
		_, err = cli.usrRepo.CreateUser(ctx, usr)
		return err
	default:
		return err
	}
}
