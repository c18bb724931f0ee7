package main

import (
	"context"
	"fmt"

	"github.com/shuleapp/shule/core/user"
)

// addUser creates an active user. The password policy of the API applies.
func (cli *commandLine) addUser(nu user.NewUser) error {
	ctx := context.Background()
	if err := nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
		return cli.validationError(err)
	}
	usr, err := cli.usrSvc.Create(ctx, nu)
	if err != nil {
		return err
	}
	fmt.Printf("user %q created\n", usr.Name)
	return nil
}
