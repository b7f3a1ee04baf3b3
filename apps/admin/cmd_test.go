package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kcci/portal/core"
	"github.com/kcci/portal/core/company"
	"github.com/kcci/portal/core/finance"
	"github.com/kcci/portal/core/reviewer"
	"github.com/kcci/portal/core/user"
	emailsvc "github.com/kcci/portal/services/email"
	eventsvc "github.com/kcci/portal/services/events"
	inmemdb "github.com/kcci/portal/storage/database/inmem"
	"github.com/kcci/portal/testutil"
)

var (
	usrRepo user.Repository
	revRepo reviewer.Repository
	finRepo finance.Repository
)

func setup(t *testing.T) *commandLine {
	conf := testutil.NewConfig(t)
	logger := testutil.NewLogger(conf)
	require.NoError(t, core.ParseEmailTemplates(conf, logger))

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo = inmemdb.NewUserRepository(db)
	revRepo = inmemdb.NewReviewerRepository(db)
	finRepo = inmemdb.NewFinanceRepository(db)

	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	finSvc := finance.NewService(finance.Deps{
		Repo:      finRepo,
		Reviewers: reviewer.NewService(revRepo, usrSvc, db),
		Companies: company.NewService(inmemdb.NewCompanyRepository(db), usrSvc, db),
		Tx:        db,
		MailSvc:   mailSvc,
		Events:    eventsvc.NewPublisherMock(),
		Logger:    logger,
		Currency:  conf.Finance.Currency,
	})

	// start CLI
	return &commandLine{
		usrRepo: usrRepo,
		finSvc:  finSvc,
		logger:  logger,
		out:     io.Discard,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_run(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErrStr: `unknown command "lol" for "admin"`},
		{name: "help", args: []string{"--help"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "settlement_note", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)
	usr := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.kr", "", nil, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-u", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-u", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "--username", usr.Username}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "--username", usr.Email}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		var pwd string
		if e, ok := tt.extra.(extra); ok {
			pwd = e.pwd
		}
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(append([]string{"admin"}, tt.args...))
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)

			refreshedUsr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
			require.NoError(t, err)
			assert.False(t, bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash), "failed to update new password")
			assert.NoError(t, refreshedUsr.CheckPassword(pwd))
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	existing := testutil.CreateUser(t, usrRepo, "Staff", "staff", "staff@test.kr", "", nil, true)

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "email missing", args: []string{"adduser", "-u", "boss"}, wantErr: errHelp},
		{name: "email taken", args: []string{"adduser", "-u", "boss", "-e", "STAFF@test.kr"}, wantErr: user.ErrEmailExists},
		{name: "create admin", args: []string{"adduser", "-u", "Boss", "-e", "boss@test.kr", "--name", "The Boss", "--admin"}},
		{name: "promote existing", args: []string{"adduser", "-u", "staff", "-e", "staff@test.kr", "--admin"}},
	}
	for _, tt := range tests {
		mockPassword("Adm1n-Secret!")
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	ctx := context.Background()
	boss, err := usrRepo.GetUser(ctx, user.GetFilter{Username: "boss"})
	require.NoError(t, err)
	assert.Equal(t, "The Boss", boss.Name)
	assert.Equal(t, "boss@test.kr", boss.Email)
	assert.True(t, boss.IsAdmin())
	assert.NoError(t, boss.CheckPassword("Adm1n-Secret!"))

	staff, err := usrRepo.GetUser(ctx, user.GetFilter{ID: existing.ID})
	require.NoError(t, err)
	assert.True(t, staff.IsAdmin())
	assert.Equal(t, "Staff", staff.Name)
}

func Test_commandLine_export(t *testing.T) {
	cli := setup(t)
	rev := testutil.CreateReviewer(t, revRepo, "Kim Seo", "seo@test.kr", reviewer.GradeJunior)
	testutil.CreateCost(t, finRepo, rev.ID, finance.CostReviewFee, "150000", testutil.Date(2026, 3, 2))

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.kr", "", []string{user.RoleAdmin}, true)
	stl, err := cli.finSvc.Settle(context.Background(), finance.NewSettlement{
		ReviewerID: rev.ID,
		PeriodFrom: testutil.Date(2026, 3, 1),
		PeriodTo:   testutil.Date(2026, 3, 31),
	}, admin)
	require.NoError(t, err)

	dir := t.TempDir()
	dashPath := filepath.Join(dir, "dashboard.xlsx")
	stlPath := filepath.Join(dir, "settlement.xlsx")
	missingPath := filepath.Join(dir, "missing.xlsx")

	tests := []cliTest{
		{name: "no subcommand", args: []string{"export"}, wantErr: errHelp},
		{name: "no output", args: []string{"export", "dashboard"}, wantErr: errHelp},
		{name: "invalid date", args: []string{"export", "dashboard", "-o", dashPath, "--from", "march"}, wantErrStr: `parsing --from: parsing time "march" as "2006-01-02": cannot parse "march" as "2006"`},
		{name: "dashboard", args: []string{"export", "dashboard", "-o", dashPath, "--from", "2026-01-01", "--to", "2026-12-31"}},
		{name: "settlement: no id", args: []string{"export", "settlement", "-o", stlPath}, wantErr: errHelp},
		{name: "settlement", args: []string{"export", "settlement", stl.ID, "-o", stlPath}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	t.Run("unknown settlement", func(t *testing.T) {
		err := cli.run([]string{"admin", "export", "settlement", "nope", "-o", missingPath})
		assert.True(t, core.IsNotFound(err))
		_, err = os.Stat(missingPath)
		assert.True(t, os.IsNotExist(err))
	})

	dash, err := excelize.OpenFile(dashPath)
	require.NoError(t, err)
	defer func() { _ = dash.Close() }()
	assert.Equal(t, []string{"Summary", "Revenues", "Costs"}, dash.GetSheetList())
	costs, err := dash.GetRows("Costs")
	require.NoError(t, err)
	require.Len(t, costs, 2)
	assert.Equal(t, "Kim Seo", costs[1][2])

	statement, err := excelize.OpenFile(stlPath)
	require.NoError(t, err)
	defer func() { _ = statement.Close() }()
	assert.Contains(t, statement.GetSheetList(), "Statement")
}
