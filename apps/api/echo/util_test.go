package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/lead"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/project"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/report"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/user"
	appfs "github.com/AnggaNaa/CRM-Citanusa-sub001/fs"
	emailsvc "github.com/AnggaNaa/CRM-Citanusa-sub001/services/email"
	metricsvc "github.com/AnggaNaa/CRM-Citanusa-sub001/services/metrics"
	sqlxrepos "github.com/AnggaNaa/CRM-Citanusa-sub001/storage/database/sqlx"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/storage/database/testutil"
)

const testPassword = "Xk9#mPq2vL"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testEnv struct {
	app      *server
	conf     *core.Config
	metrics  *metricsvc.Metrics
	usrRepo  user.Repository
	leadRepo lead.Repository
	projRepo project.Repository
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	conf := core.NewTestConfig()

	// set up DB & repos
	db := testutil.PrepareDB(t)
	usrRepo := sqlxrepos.NewUserRepository(db)
	leadRepo := sqlxrepos.NewLeadRepository(db)
	projRepo := sqlxrepos.NewProjectRepository(db)

	logger := testutil.NewLogger(t)

	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	lead.InitValidators(validate, translator)
	project.InitValidators(validate, translator)
	core.ParseEmailTemplates(appfs.FS, logger, true)
	user.LoadCommonPasswords(appfs.FS, logger)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	metrics := metricsvc.New()
	usrSvc := user.NewServiceMock(usrRepo, mailSvc, conf)
	leadSvc := lead.NewService(lead.ServiceDeps{
		DB:       db,
		Repo:     leadRepo,
		UserSvc:  usrSvc,
		Units:    projRepo,
		MailSvc:  mailSvc,
		Metrics:  metrics,
		Logger:   logger,
		Validate: validate,
	})

	// set up server
	app := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		DisableReqLogs: true,
		UserSvc:        usrSvc,
		LeadSvc:        leadSvc,
		ProjectSvc:     project.NewService(projRepo, validate),
		ReportSvc:      report.NewService(sqlxrepos.NewReportRepository(db), usrSvc, projRepo),
		Validate:       validate,
		Translator:     translator,
		Metrics:        metrics,
	}).(*server)
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })
	t.Cleanup(func() { assert.Empty(t, logger.Problems(), "problems logged") })

	return &testEnv{
		app:      app,
		conf:     conf,
		metrics:  metrics,
		usrRepo:  usrRepo,
		leadRepo: leadRepo,
		projRepo: projRepo,
	}
}

// team is a small sales organisation: a manager with one supervisor & two HAs, and an outsider HA.
type team struct {
	admin, manager, spv, ha1, ha2, otherMgr, otherHA user.User
}

func (env *testEnv) createTeam(t *testing.T) team {
	t.Helper()
	var tm team
	tm.admin = testutil.CreateUser(t, env.usrRepo, "Super Admin", "admin", "admin@citanusa.id", user.RoleSuperadmin,
		testutil.UserOpts{Password: testPassword})
	tm.manager = testutil.CreateUser(t, env.usrRepo, "Budi Manager", "budi", "budi@citanusa.id", user.RoleManager,
		testutil.UserOpts{Password: testPassword})
	tm.spv = testutil.CreateUser(t, env.usrRepo, "Sari Spv", "sari", "sari@citanusa.id", user.RoleSpv,
		testutil.UserOpts{ManagerID: tm.manager.ID})
	tm.ha1 = testutil.CreateUser(t, env.usrRepo, "Andi HA", "andi", "andi@citanusa.id", user.RoleHA,
		testutil.UserOpts{ManagerID: tm.manager.ID, SpvID: tm.spv.ID, Password: testPassword})
	tm.ha2 = testutil.CreateUser(t, env.usrRepo, "Dewi HA", "dewi", "dewi@citanusa.id", user.RoleHA,
		testutil.UserOpts{ManagerID: tm.manager.ID, SpvID: tm.spv.ID})
	tm.otherMgr = testutil.CreateUser(t, env.usrRepo, "Eko Manager", "eko", "eko@citanusa.id", user.RoleManager)
	tm.otherHA = testutil.CreateUser(t, env.usrRepo, "Fajar HA", "fajar", "fajar@citanusa.id", user.RoleHA,
		testutil.UserOpts{ManagerID: tm.otherMgr.ID})
	return tm
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func (env *testEnv) do(tt httpTest) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	env.app.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := env.app.auth.generateToken(env.app.auth.userClaims(usr))
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	t.Helper()
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("json.Unmarshal(%s): %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
