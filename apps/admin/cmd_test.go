package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/lead"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/project"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/report"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/user"
	emailsvc "github.com/AnggaNaa/CRM-Citanusa-sub001/services/email"
	sqlxrepos "github.com/AnggaNaa/CRM-Citanusa-sub001/storage/database/sqlx"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/storage/database/testutil"
)

var (
	usrRepo  user.Repository
	leadRepo lead.Repository
	projRepo project.Repository
)

func setup(t *testing.T) *commandLine {
	conf := core.NewTestConfig()

	// set up DB & repos
	db := testutil.PrepareDB(t)
	usrRepo = sqlxrepos.NewUserRepository(db)
	leadRepo = sqlxrepos.NewLeadRepository(db)
	projRepo = sqlxrepos.NewProjectRepository(db)

	logger := testutil.NewLogger(t)
	t.Cleanup(func() { assert.Empty(t, logger.Problems(), "problems logged") })
	usrSvc := user.NewServiceMock(usrRepo, emailsvc.NewConsoleServiceMock(conf, logger), conf)

	// start CLI
	return &commandLine{
		db:      db,
		usrRepo: usrRepo,
		reports: report.NewService(sqlxrepos.NewReportRepository(db), usrSvc, projRepo),
	}
}

// run executes the admin command line with args, returning its output.
func (cli *commandLine) run(args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCmd(cli)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mockPassword(t *testing.T, pwd string) {
	orig := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) checkErr(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, errors.Cause(err))
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	var gotCommand string
	var gotArgs []string
	orig := runMigrationsFunc
	runMigrationsFunc = func(ctx context.Context, db *sqlx.DB, command string, args ...string) error {
		gotCommand, gotArgs = command, args
		if command == "lol" {
			return errors.Errorf("%q: no such command", command)
		}
		return nil
	}
	t.Cleanup(func() { runMigrationsFunc = orig })

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErrStr: "requires at least 1 arg(s), only received 0"},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up", args: []string{"migrate", "up"}, extra: []string{}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}, extra: []string{"2"}},
		{name: "down", args: []string{"migrate", "down"}, extra: []string{}},
		{name: "status", args: []string{"migrate", "status"}, extra: []string{}},
		{name: "create", args: []string{"migrate", "create", "unit_floor_plan", "sql"}, extra: []string{"unit_floor_plan", "sql"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotCommand, gotArgs = "", nil
			_, err := cli.run(tt.args...)
			tt.checkErr(t, err)
			if want, ok := tt.extra.([]string); ok {
				assert.Equal(t, tt.args[1], gotCommand)
				assert.Equal(t, want, gotArgs)
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	existing := testutil.CreateUser(t, usrRepo, "Old Name", "dewi", "dewi@citanusa.id", user.RoleHA,
		testutil.UserOpts{Password: "old-pass-123", Inactive: true})

	t.Run("no password", func(t *testing.T) {
		mockPassword(t, "")
		_, err := cli.run("adduser", "--username", "root", "--email", "root@citanusa.id")
		assert.Equal(t, errNoPassword, err)
	})

	t.Run("missing flags", func(t *testing.T) {
		mockPassword(t, "S3cure!pass")
		_, err := cli.run("adduser", "--username", "root")
		assert.EqualError(t, err, `required flag(s) "email" not set`)
	})

	mockPassword(t, "S3cure!pass")
	tests := []cliTest{
		{name: "invalid role", args: []string{"--role", "boss"}, wantErrStr: `invalid role "boss"`},
		{name: "spv without manager", args: []string{"--role", "spv"}, wantErrStr: "--manager is required for this role"},
		{name: "unknown manager", args: []string{"--role", "spv", "--manager", "nobody"}, wantErr: user.ErrNotFound},
		{name: "ha under an ha", args: []string{"--role", "ha", "--spv", "dewi"}, wantErrStr: `"dewi" is not a spv`},
		{name: "ha without team", args: []string{"--role", "ha"}, wantErrStr: "--manager is required for this role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"adduser", "--username", "new", "--email", "new@citanusa.id"}, tt.args...)
			_, err := cli.run(args...)
			tt.checkErr(t, err)
		})
	}

	t.Run("superadmin", func(t *testing.T) {
		out, err := cli.run("adduser", "--username", " Root ", "--email", "ROOT@citanusa.id")
		require.NoError(t, err)
		assert.Contains(t, out, "User root (superadmin) saved.")

		usr, err := usrRepo.GetUser(ctx, user.GetFilter{Username: "root"})
		require.NoError(t, err)
		assert.Equal(t, "root", usr.Name)
		assert.Equal(t, "root@citanusa.id", usr.Email)
		assert.Equal(t, user.RoleSuperadmin, usr.Role)
		assert.True(t, usr.Active())
		assert.NoError(t, usr.CheckPassword("S3cure!pass"))
	})

	t.Run("team", func(t *testing.T) {
		_, err := cli.run("adduser", "--username", "siti", "--email", "siti@citanusa.id", "--role", "manager", "--name", "Siti Rahma")
		require.NoError(t, err)
		_, err = cli.run("adduser", "--username", "bayu", "--email", "bayu@citanusa.id", "--role", "spv", "--manager", "siti@citanusa.id")
		require.NoError(t, err)
		_, err = cli.run("adduser", "--username", "rudi", "--email", "rudi@citanusa.id", "--role", "ha", "--spv", "bayu")
		require.NoError(t, err)

		mgr, err := usrRepo.GetUser(ctx, user.GetFilter{Username: "siti"})
		require.NoError(t, err)
		assert.Equal(t, "Siti Rahma", mgr.Name)
		spv, err := usrRepo.GetUser(ctx, user.GetFilter{Username: "bayu"})
		require.NoError(t, err)
		assert.Equal(t, mgr.ID, spv.ManagerID)
		ha, err := usrRepo.GetUser(ctx, user.GetFilter{Username: "rudi"})
		require.NoError(t, err)
		assert.Equal(t, spv.ID, ha.SpvID)
		assert.Equal(t, mgr.ID, ha.ManagerID)

		_, err = cli.run("adduser", "--username", "ani", "--email", "ani@citanusa.id", "--role", "ha", "--manager", "siti")
		require.NoError(t, err)
		solo, err := usrRepo.GetUser(ctx, user.GetFilter{Username: "ani"})
		require.NoError(t, err)
		assert.Equal(t, mgr.ID, solo.ManagerID)
		assert.Empty(t, solo.SpvID)

		_, err = cli.run("adduser", "--username", "dodi", "--email", "dodi@citanusa.id", "--role", "ha", "--spv", "bayu", "--manager", "root")
		assert.EqualError(t, err, `"root" is not a manager`)
	})

	t.Run("update existing", func(t *testing.T) {
		_, err := cli.run("adduser", "--username", "dewi", "--email", "dewi@citanusa.id", "--role", "manager", "--name", "Dewi Lestari")
		require.NoError(t, err)

		usr, err := usrRepo.GetUser(ctx, user.GetFilter{ID: existing.ID})
		require.NoError(t, err)
		assert.Equal(t, "Dewi Lestari", usr.Name)
		assert.Equal(t, user.RoleManager, usr.Role)
		assert.True(t, usr.Active())
		assert.NoError(t, usr.CheckPassword("S3cure!pass"))
		assert.Equal(t, existing.CreatedAt.Unix(), usr.CreatedAt.Unix())
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@citanusa.id", user.RoleHA, testutil.UserOpts{Password: "first-pass"})

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no username", args: []string{"resetpassword"}, extra: extra{pwd: "lol"}, wantErrStr: `required flag(s) "username" not set`},
		{name: "username but no password", args: []string{"resetpassword", "--username", usr.Username}, wantErr: errNoPassword},
		{name: "user not found", args: []string{"resetpassword", "--username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "--username", usr.Username}, extra: extra{pwd: "second-pass"}},
		{name: "reset with email", args: []string{"resetpassword", "--username", "AWE@citanusa.id"}, extra: extra{pwd: "third-pass"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pwd := ""
			if e, ok := tt.extra.(extra); ok {
				pwd = e.pwd
			}
			mockPassword(t, pwd)

			out, err := cli.run(tt.args...)
			tt.checkErr(t, err)
			if err == nil {
				assert.Contains(t, out, "Password updated.")
				refreshed, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
				require.NoError(t, err)
				assert.NoError(t, refreshed.CheckPassword(pwd))
			}
		})
	}
}

func Test_commandLine_export(t *testing.T) {
	cli := setup(t)

	mgr := testutil.CreateUser(t, usrRepo, "Siti", "siti", "siti@citanusa.id", user.RoleManager)
	ha := testutil.CreateUser(t, usrRepo, "Rudi", "rudi", "rudi@citanusa.id", user.RoleHA, testutil.UserOpts{ManagerID: mgr.ID})
	proj := testutil.CreateProject(t, projRepo, "Citanusa Residence")
	testutil.CreateUnit(t, projRepo, proj.ID, "A-01", 450_000_000)
	testutil.CreateUnit(t, projRepo, proj.ID, "A-02", 475_000_000)

	testutil.CreateLead(t, leadRepo, lead.Lead{Name: "Andi", Priority: lead.PriorityHot, AssignedTo: ha.ID, ManagerID: mgr.ID, CreatedBy: ha.ID})
	testutil.CreateLead(t, leadRepo, lead.Lead{Name: "Budi", Source: lead.SourceWebsite, CreatedBy: mgr.ID, ManagerID: mgr.ID})

	readCSV := func(t *testing.T, data []byte) [][]string {
		t.Helper()
		recs, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
		require.NoError(t, err)
		return recs
	}
	names := func(recs [][]string) []string {
		var got []string
		for _, r := range recs[1:] {
			got = append(got, r[1])
		}
		return got
	}

	tests := []cliTest{
		{name: "all leads", args: []string{"export", "leads"}, extra: []string{"Andi", "Budi"}},
		{name: "by priority", args: []string{"export", "leads", "--priority", "hot,warm"}, extra: []string{"Andi"}},
		{name: "by source", args: []string{"export", "leads", "--source", "website"}, extra: []string{"Budi"}},
		{name: "as ha", args: []string{"export", "leads", "--as", "rudi"}, extra: []string{"Andi"}},
		{name: "invalid priority", args: []string{"export", "leads", "--priority", "boiling"}, wantErrStr: `invalid priority "boiling"`},
		{name: "unknown actor", args: []string{"export", "leads", "--as", "nobody"}, wantErr: user.ErrNotFound},
		{name: "invalid status", args: []string{"export", "units", "--status", "gone"}, wantErrStr: `invalid status "gone"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := cli.run(tt.args...)
			tt.checkErr(t, err)
			if want, ok := tt.extra.([]string); ok {
				recs := readCSV(t, []byte(out))
				assert.Equal(t, "id", recs[0][0])
				assert.Equal(t, want, names(recs))
			}
		})
	}

	t.Run("units to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "units.csv")
		out, err := cli.run("export", "units", "--project", proj.ID, "-o", path)
		require.NoError(t, err)
		assert.Empty(t, out)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		recs := readCSV(t, data)
		require.Len(t, recs, 3)
		assert.Equal(t, []string{"Citanusa Residence", "A-01", "450000000", project.UnitAvailable},
			[]string{recs[1][1], recs[1][2], recs[1][6], recs[1][7]})
		assert.Equal(t, "A-02", recs[2][2])
	})

}
