package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuleapp/shule/assets"
	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/user"
	emailsvc "github.com/shuleapp/shule/services/email"
	testutil "github.com/shuleapp/shule/tests"
)

const strongPassword = "Str0ng#Pass9"

func TestMain(m *testing.M) {
	if err := user.LoadCommonPasswords(assets.FS); err != nil {
		fmt.Printf("LoadCommonPasswords(): %v", err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func setup(t *testing.T) (*commandLine, *testutil.Store) {
	store := testutil.NewStore()
	conf := core.NewTestConfig()
	validate, translator := testutil.NewValidatorWithTranslator()
	return &commandLine{
		usrSvc:     user.NewService(store.Users, emailsvc.NewConsoleServiceMock(conf), conf),
		validate:   validate,
		translator: translator,
	}, store
}

// mockPassword makes the password prompt return pwd.
func mockPassword(t *testing.T, pwd string) {
	orig := readPasswordFunc
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
}

func (tt cliTest) check(t *testing.T, cli *commandLine) {
	t.Helper()
	mockPassword(t, tt.pwd)
	err := cli.run(append([]string{"admin"}, tt.args...))
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		require.Error(t, err)
		assert.Equal(t, tt.wantErrStr, err.Error())
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	var gotCommand string
	orig := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = orig })
	gooseRunFunc = func(db *sql.DB, command string, args ...string) error {
		gotCommand = command
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli)
		})
	}
	assert.Equal(t, "version", gotCommand)
}

func Test_commandLine_addUser(t *testing.T) {
	cli, store := setup(t)
	testutil.CreateUser(t, store.Users, "Taken", "taken", "taken@test.ke", strongPassword, nil, true)

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "username or email required", args: []string{"adduser", "-name", "Mwalimu Mkuu"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-name", "Mwalimu Mkuu", "-username", "mkuu"}, wantErr: errHelp},
		{
			name: "weak password", args: []string{"adduser", "-name", "Mwalimu Mkuu", "-username", "mkuu"}, pwd: "short",
			wantErrStr: "password: password must contain at least 8 characters",
		},
		{
			name: "unknown role", args: []string{"adduser", "-name", "Mwalimu Mkuu", "-username", "mkuu", "-roles", "admin:owner,king"}, pwd: strongPassword,
			wantErrStr: "roles: invalid roles",
		},
		{
			name: "taken username", args: []string{"adduser", "-name", "Mwalimu Mkuu", "-username", "Taken"}, pwd: strongPassword,
			wantErrStr: "username: " + user.ErrUsernameExists.Error(),
		},
		{name: "default role", args: []string{"adduser", "-name", "Mwalimu Mkuu", "-username", "mkuu", "-email", "mkuu@test.ke"}, pwd: strongPassword},
		{name: "bursar", args: []string{"adduser", "-name", "Bursar", "-email", "bursar@test.ke", "-roles", "finance:, visitor:"}, pwd: strongPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli)
		})
	}

	ctx := context.Background()
	owner, err := store.Users.GetUser(ctx, user.GetFilter{Username: "mkuu"})
	require.NoError(t, err)
	assert.Equal(t, []string{user.RoleAdminOwner}, owner.Roles)
	assert.True(t, owner.IsActive)
	assert.NoError(t, owner.CheckPassword(strongPassword))

	bursar, err := store.Users.GetUser(ctx, user.GetFilter{Email: "bursar@test.ke"})
	require.NoError(t, err)
	assert.Equal(t, []string{user.RoleFinance, user.RoleVisitor}, bursar.Roles)
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, store := setup(t)
	usr := testutil.CreateUser(t, store.Users, "User", "awe", "awe@test.ke", strongPassword, nil, true)

	tests := []cliTest{
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "awe"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, pwd: "N3w&Better1", wantErr: user.ErrNotFound},
		{name: "all numeric", args: []string{"resetpassword", "-username", "awe"}, pwd: "1234567890", wantErrStr: "password: password cannot be entirely numeric"},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, pwd: "N3w&Better1"},
		{name: "reset with email", args: []string{"resetpassword", "-username", "AWE@test.ke"}, pwd: "An0ther&One"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli)
		})
	}

	refreshed, err := store.Users.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("An0ther&One"))
}
