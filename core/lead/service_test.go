package lead_test

import (
	"context"
	"sync"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/lead"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/project"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/user"
	appfs "github.com/AnggaNaa/CRM-Citanusa-sub001/fs"
	emailsvc "github.com/AnggaNaa/CRM-Citanusa-sub001/services/email"
	sqlxrepos "github.com/AnggaNaa/CRM-Citanusa-sub001/storage/database/sqlx"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/storage/database/testutil"
)

type recorder struct {
	mu          sync.Mutex
	events      []lead.Event
	created     []string
	transitions []string
	assigned    int
}

func (r *recorder) Publish(_ context.Context, evt lead.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recorder) LeadCreated(source string)      { r.created = append(r.created, source) }
func (r *recorder) PriorityChanged(from, to string) { r.transitions = append(r.transitions, from+">"+to) }
func (r *recorder) LeadAssigned()                   { r.assigned++ }

func (r *recorder) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, len(r.events))
	for i, evt := range r.events {
		types[i] = evt.Type
	}
	return types
}

type fixture struct {
	svc      lead.Service
	rec      *recorder
	logger   *testutil.Logger
	projRepo project.Repository

	admin, mgr, spv, ha, otherHA user.User
	proj                         project.Project
	unitA, unitB                 project.Unit
}

func setup(t *testing.T) *fixture {
	conf := core.NewTestConfig()
	db := testutil.PrepareDB(t)
	usrRepo := sqlxrepos.NewUserRepository(db)
	projRepo := sqlxrepos.NewProjectRepository(db)
	logger := testutil.NewLogger(t)

	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	lead.InitValidators(validate, translator)
	core.ParseEmailTemplates(appfs.FS, logger, true)

	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	rec := &recorder{}
	f := &fixture{
		rec:      rec,
		logger:   logger,
		projRepo: projRepo,
		svc: lead.NewService(lead.ServiceDeps{
			DB:        db,
			Repo:      sqlxrepos.NewLeadRepository(db),
			UserSvc:   user.NewServiceMock(usrRepo, mailSvc, conf),
			Units:     projRepo,
			MailSvc:   mailSvc,
			Publisher: rec,
			Metrics:   rec,
			Logger:    logger,
			Validate:  validate,
		}),
	}

	f.admin = testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@citanusa.id", user.RoleSuperadmin)
	f.mgr = testutil.CreateUser(t, usrRepo, "Siti", "siti", "siti@citanusa.id", user.RoleManager)
	f.spv = testutil.CreateUser(t, usrRepo, "Bayu", "bayu", "bayu@citanusa.id", user.RoleSpv, testutil.UserOpts{ManagerID: f.mgr.ID})
	f.ha = testutil.CreateUser(t, usrRepo, "Rudi", "rudi", "rudi@citanusa.id", user.RoleHA,
		testutil.UserOpts{ManagerID: f.mgr.ID, SpvID: f.spv.ID})
	otherMgr := testutil.CreateUser(t, usrRepo, "Eko", "eko", "eko@citanusa.id", user.RoleManager)
	f.otherHA = testutil.CreateUser(t, usrRepo, "Lina", "lina", "lina@citanusa.id", user.RoleHA, testutil.UserOpts{ManagerID: otherMgr.ID})

	f.proj = testutil.CreateProject(t, projRepo, "Citanusa Residence")
	f.unitA = testutil.CreateUnit(t, projRepo, f.proj.ID, "A-01", 450_000_000)
	f.unitB = testutil.CreateUnit(t, projRepo, f.proj.ID, "A-02", 475_000_000)

	emailsvc.ResetSentMessages()
	t.Cleanup(func() { assert.Empty(t, logger.Problems(), "problems logged") })
	return f
}

func (f *fixture) unitStatus(t *testing.T, id string) (string, string) {
	t.Helper()
	u, err := f.projRepo.GetUnit(context.Background(), id)
	require.NoError(t, err)
	return u.Status, u.BookedByLeadID
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	verr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok, "want a validation error, got %v", err)
	flds := make(map[string]string, len(verr.Fields))
	for _, f := range verr.Fields {
		flds[f.Field] = f.Error
	}
	return flds
}

func strPtr(s string) *string { return &s }

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t.Run("by ha", func(t *testing.T) {
		l, err := f.svc.Create(ctx, lead.NewLead{Name: " Andi ", Phone: "0812-1111-2222", Source: "Website"}, f.ha)
		require.NoError(t, err)
		assert.Equal(t, "Andi", l.Name)
		assert.Equal(t, lead.SourceWebsite, l.Source)
		assert.Equal(t, lead.PriorityCold, l.Priority)
		assert.Equal(t, f.ha.ID, l.AssignedTo)
		assert.Equal(t, f.spv.ID, l.SpvID)
		assert.Equal(t, f.mgr.ID, l.ManagerID)
		assert.Equal(t, f.ha.Name, l.AssigneeName)

		hist, err := f.svc.History(ctx, l.ID, f.ha)
		require.NoError(t, err)
		require.Len(t, hist, 1)
		assert.Empty(t, hist[0].FromPriority)
		assert.Equal(t, lead.PriorityCold, hist[0].ToPriority)
		assert.Equal(t, f.ha.ID, hist[0].ChangedBy)
		assert.Empty(t, emailsvc.SentMessages(), "self-created leads send no mail")
	})

	t.Run("assigned by spv", func(t *testing.T) {
		emailsvc.ResetSentMessages()
		l, err := f.svc.Create(ctx, lead.NewLead{Name: "Budi", Phone: "+62 813 2222 3333", Source: lead.SourceReferral, AssignedTo: f.ha.ID}, f.spv)
		require.NoError(t, err)
		assert.Equal(t, f.ha.ID, l.AssignedTo)
		assert.Equal(t, f.spv.ID, l.CreatedBy)
		require.Len(t, emailsvc.SentMessages(), 1)
		msg := emailsvc.SentMessages()[0]
		assert.Equal(t, f.ha.Email, msg.To[0].Address)
		assert.Contains(t, msg.TextContent, "Budi")
		assert.Contains(t, msg.HTMLContent, "Budi")
		assert.Empty(t, f.logger.Problems())
	})

	t.Run("booking books the unit", func(t *testing.T) {
		l, err := f.svc.Create(ctx, lead.NewLead{Name: "Citra", Phone: "0812 4444 5555", Source: lead.SourceWalkIn,
			Priority: lead.PriorityBooking, UnitID: f.unitA.ID}, f.mgr)
		require.NoError(t, err)
		assert.Equal(t, f.proj.ID, l.ProjectID, "project filled from the unit")
		status, by := f.unitStatus(t, f.unitA.ID)
		assert.Equal(t, project.UnitBooked, status)
		assert.Equal(t, l.ID, by)

		_, err = f.svc.Create(ctx, lead.NewLead{Name: "Dodi", Phone: "0812 6666 7777", Source: lead.SourceWalkIn,
			Priority: lead.PriorityBooking, UnitID: f.unitA.ID}, f.mgr)
		assert.Equal(t, map[string]string{"unit_id": project.ErrUnitUnavailable.Error()}, fieldErrors(t, err))
	})

	tests := []struct {
		name  string
		nl    lead.NewLead
		actor user.User
		want  map[string]string
	}{
		{name: "booking without unit", actor: f.mgr,
			nl:   lead.NewLead{Name: "X", Phone: "0812 0000 0000", Source: lead.SourceWalkIn, Priority: lead.PriorityBooking},
			want: map[string]string{"unit_id": lead.ErrUnitRequired.Error()}},
		{name: "assign outside team", actor: f.spv,
			nl:   lead.NewLead{Name: "X", Phone: "0812 0000 0000", Source: lead.SourceWalkIn, AssignedTo: f.otherHA.ID},
			want: map[string]string{"assigned_to": "cannot assign leads to this user"}},
		{name: "unknown assignee", actor: f.mgr,
			nl:   lead.NewLead{Name: "X", Phone: "0812 0000 0000", Source: lead.SourceWalkIn, AssignedTo: "8d2f1c3a-9b4e-4f6a-8c7d-1e2f3a4b5c6d"},
			want: map[string]string{"assigned_to": "invalid housing advisor"}},
		{name: "unknown project", actor: f.mgr,
			nl:   lead.NewLead{Name: "X", Phone: "0812 0000 0000", Source: lead.SourceWalkIn, ProjectID: "8d2f1c3a-9b4e-4f6a-8c7d-1e2f3a4b5c6d"},
			want: map[string]string{"project_id": "invalid project"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tt.nl, tt.actor)
			assert.Equal(t, tt.want, fieldErrors(t, err))
		})
	}

	t.Run("inactive actor", func(t *testing.T) {
		inactive := f.ha
		inactive.SetActive(false)
		_, err := f.svc.Create(ctx, lead.NewLead{Name: "X", Phone: "0812 0000 0000", Source: lead.SourceWalkIn}, inactive)
		assert.Equal(t, core.ErrForbidden, err)
	})

	assert.Equal(t, []string{lead.EventCreated, lead.EventCreated, lead.EventCreated}, f.rec.eventTypes())
	assert.Equal(t, []string{lead.SourceWebsite, lead.SourceReferral, lead.SourceWalkIn}, f.rec.created)
	assert.Equal(t, 1, f.rec.assigned)
}

func TestService_pipeline(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	l, err := f.svc.Create(ctx, lead.NewLead{Name: "Andi", Phone: "0812 1111 2222", Source: lead.SourceEvent}, f.ha)
	require.NoError(t, err)

	steps := []struct {
		name       string
		ul         lead.UpdateLead
		wantErr    map[string]string
		wantA      string // status of unit A afterwards
		wantB      string // status of unit B afterwards
		wantPrio   string
	}{
		{name: "booking needs a unit", ul: lead.UpdateLead{Priority: lead.PriorityBooking},
			wantErr: map[string]string{"unit_id": lead.ErrUnitRequired.Error()}, wantA: project.UnitAvailable, wantB: project.UnitAvailable, wantPrio: lead.PriorityCold},
		{name: "book unit A", ul: lead.UpdateLead{Priority: lead.PriorityBooking, UnitID: strPtr(f.unitA.ID), PriorityNote: "paid booking fee"},
			wantA: project.UnitBooked, wantB: project.UnitAvailable, wantPrio: lead.PriorityBooking},
		{name: "swap to unit B", ul: lead.UpdateLead{UnitID: strPtr(f.unitB.ID)},
			wantA: project.UnitAvailable, wantB: project.UnitBooked, wantPrio: lead.PriorityBooking},
		{name: "close", ul: lead.UpdateLead{Priority: lead.PriorityClosing},
			wantA: project.UnitAvailable, wantB: project.UnitSold, wantPrio: lead.PriorityClosing},
		{name: "closed unit is fixed", ul: lead.UpdateLead{UnitID: strPtr(f.unitA.ID)},
			wantErr: map[string]string{"unit_id": "the unit of a closed lead cannot change"}, wantA: project.UnitAvailable, wantB: project.UnitSold, wantPrio: lead.PriorityClosing},
		{name: "closing is terminal", ul: lead.UpdateLead{Priority: lead.PriorityLost},
			wantErr: map[string]string{"priority": "invalid priority change: cannot move from Closing to Lost"}, wantA: project.UnitAvailable, wantB: project.UnitSold, wantPrio: lead.PriorityClosing},
		{name: "notes still editable", ul: lead.UpdateLead{Notes: strPtr("handover in March")},
			wantA: project.UnitAvailable, wantB: project.UnitSold, wantPrio: lead.PriorityClosing},
	}
	for _, st := range steps {
		t.Run(st.name, func(t *testing.T) {
			_, err := f.svc.Update(ctx, l.ID, st.ul, f.ha)
			if st.wantErr != nil {
				assert.Equal(t, st.wantErr, fieldErrors(t, err))
			} else {
				require.NoError(t, err)
			}
			got, err := f.svc.Get(ctx, l.ID, f.ha)
			require.NoError(t, err)
			assert.Equal(t, st.wantPrio, got.Priority)
			statusA, _ := f.unitStatus(t, f.unitA.ID)
			statusB, _ := f.unitStatus(t, f.unitB.ID)
			assert.Equal(t, st.wantA, statusA, "unit A")
			assert.Equal(t, st.wantB, statusB, "unit B")
		})
	}

	hist, err := f.svc.History(ctx, l.ID, f.mgr)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, [2]string{"", lead.PriorityCold}, [2]string{hist[0].FromPriority, hist[0].ToPriority})
	assert.Equal(t, [2]string{lead.PriorityCold, lead.PriorityBooking}, [2]string{hist[1].FromPriority, hist[1].ToPriority})
	assert.Equal(t, "paid booking fee", hist[1].Note)
	assert.Equal(t, [2]string{lead.PriorityBooking, lead.PriorityClosing}, [2]string{hist[2].FromPriority, hist[2].ToPriority})
	assert.Equal(t, []string{"cold>booking", "booking>closing"}, f.rec.transitions)

	t.Run("booking to lost releases the unit", func(t *testing.T) {
		l2, err := f.svc.Create(ctx, lead.NewLead{Name: "Budi", Phone: "0812 3333 4444", Source: lead.SourceEvent,
			Priority: lead.PriorityBooking, UnitID: f.unitA.ID}, f.ha)
		require.NoError(t, err)
		_, err = f.svc.Update(ctx, l2.ID, lead.UpdateLead{Priority: lead.PriorityLost}, f.ha)
		require.NoError(t, err)
		status, by := f.unitStatus(t, f.unitA.ID)
		assert.Equal(t, project.UnitAvailable, status)
		assert.Empty(t, by)

		_, err = f.svc.Update(ctx, l2.ID, lead.UpdateLead{Priority: lead.PriorityBooking}, f.ha)
		assert.Equal(t, map[string]string{"priority": "invalid priority change: cannot move from Lost to Booking"}, fieldErrors(t, err))
		got, err := f.svc.Update(ctx, l2.ID, lead.UpdateLead{Priority: lead.PriorityWarm}, f.ha)
		require.NoError(t, err)
		assert.Equal(t, lead.PriorityWarm, got.Priority)
	})
}

func TestService_visibilityAndAssign(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	l, err := f.svc.Create(ctx, lead.NewLead{Name: "Andi", Phone: "0812 1111 2222", Source: lead.SourceWalkIn}, f.mgr)
	require.NoError(t, err)
	assert.Empty(t, l.AssignedTo)

	t.Run("hidden from advisors", func(t *testing.T) {
		for _, usr := range []user.User{f.ha, f.otherHA} {
			_, err := f.svc.Get(ctx, l.ID, usr)
			assert.Equal(t, lead.ErrNotFound, err)
		}
		_, err := f.svc.Get(ctx, l.ID, f.admin)
		assert.NoError(t, err)
	})

	t.Run("assign", func(t *testing.T) {
		_, err := f.svc.Assign(ctx, l.ID, f.otherHA.ID, f.mgr)
		assert.Equal(t, map[string]string{"assigned_to": "cannot assign leads to this user"}, fieldErrors(t, err))

		got, err := f.svc.Assign(ctx, l.ID, f.ha.ID, f.mgr)
		require.NoError(t, err)
		assert.Equal(t, f.ha.ID, got.AssignedTo)
		assert.Equal(t, f.spv.ID, got.SpvID)
		require.Len(t, emailsvc.SentMessages(), 1)

		// now visible to the advisor, who may not reassign
		_, err = f.svc.Get(ctx, l.ID, f.ha)
		require.NoError(t, err)
		_, err = f.svc.Assign(ctx, l.ID, "", f.ha)
		assert.Equal(t, core.ErrForbidden, err)

		// same advisor: no-op
		_, err = f.svc.Assign(ctx, l.ID, f.ha.ID, f.spv)
		require.NoError(t, err)
		assert.Len(t, emailsvc.SentMessages(), 1)

		got, err = f.svc.Assign(ctx, l.ID, "", f.spv)
		require.NoError(t, err)
		assert.Empty(t, got.AssignedTo)
	})

	t.Run("delete", func(t *testing.T) {
		booked, err := f.svc.Create(ctx, lead.NewLead{Name: "Budi", Phone: "0812 3333 4444", Source: lead.SourceWalkIn,
			Priority: lead.PriorityBooking, UnitID: f.unitA.ID}, f.ha)
		require.NoError(t, err)

		assert.Equal(t, core.ErrForbidden, f.svc.Delete(ctx, booked.ID, f.ha))
		assert.Equal(t, lead.ErrNotFound, f.svc.Delete(ctx, booked.ID, f.otherHA))
		require.NoError(t, f.svc.Delete(ctx, booked.ID, f.mgr))

		_, err = f.svc.Get(ctx, booked.ID, f.admin)
		assert.Equal(t, lead.ErrNotFound, errors.Cause(err))
		status, _ := f.unitStatus(t, f.unitA.ID)
		assert.Equal(t, project.UnitAvailable, status)
	})

	types := f.rec.eventTypes()
	assert.Equal(t, lead.EventDeleted, types[len(types)-1])
}

func TestService_clearFields(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	l, err := f.svc.Create(ctx, lead.NewLead{Name: "Dewi", Phone: "0812 7777 8888", Email: "dewi@mail.id",
		Source: lead.SourceWebsite, Priority: lead.PriorityHot, UnitID: f.unitA.ID}, f.ha)
	require.NoError(t, err)
	require.Equal(t, f.proj.ID, l.ProjectID)

	tests := []struct {
		name    string
		ul      lead.UpdateLead
		wantErr map[string]string
	}{
		{name: "bad email", ul: lead.UpdateLead{Email: strPtr("dewi at mail")},
			wantErr: map[string]string{"email": "email_or_empty"}},
		{name: "bad unit", ul: lead.UpdateLead{UnitID: strPtr("A-01")},
			wantErr: map[string]string{"unit_id": "uuid_or_empty"}},
		{name: "bad project", ul: lead.UpdateLead{ProjectID: strPtr("residence")},
			wantErr: map[string]string{"project_id": "uuid_or_empty"}},
		{name: "clear", ul: lead.UpdateLead{Email: strPtr(""), ProjectID: strPtr(""), UnitID: strPtr("")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Update(ctx, l.ID, tt.ul, f.ha)
			if tt.wantErr != nil {
				verrs, ok := errors.Cause(err).(validator.ValidationErrors)
				require.True(t, ok, "want validation errors, got %v", err)
				got := make(map[string]string, len(verrs))
				for _, fe := range verrs {
					got[fe.Field()] = fe.Tag()
				}
				assert.Equal(t, tt.wantErr, got)
			} else {
				require.NoError(t, err)
			}
		})
	}

	got, err := f.svc.Get(ctx, l.ID, f.ha)
	require.NoError(t, err)
	assert.Empty(t, got.Email)
	assert.Empty(t, got.ProjectID)
	assert.Empty(t, got.UnitID)
	assert.Equal(t, lead.PriorityHot, got.Priority)
}
