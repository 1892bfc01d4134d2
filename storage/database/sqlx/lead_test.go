package sqlxrepos_test

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/lead"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/user"
	sqlxrepos "github.com/AnggaNaa/CRM-Citanusa-sub001/storage/database/sqlx"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/storage/database/testutil"
)

// The query scope of every role must select exactly the leads lead.Visible allows.
func TestLeadRepository_scopeMatchesVisible(t *testing.T) {
	db := testutil.PrepareDB(t)
	usrRepo := sqlxrepos.NewUserRepository(db)
	leadRepo := sqlxrepos.NewLeadRepository(db)
	ctx := context.Background()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@citanusa.id", user.RoleSuperadmin)
	mgr := testutil.CreateUser(t, usrRepo, "Siti", "siti", "siti@citanusa.id", user.RoleManager)
	mgr2 := testutil.CreateUser(t, usrRepo, "Eko", "eko", "eko@citanusa.id", user.RoleManager)
	spv := testutil.CreateUser(t, usrRepo, "Bayu", "bayu", "bayu@citanusa.id", user.RoleSpv, testutil.UserOpts{ManagerID: mgr.ID})
	ha := testutil.CreateUser(t, usrRepo, "Rudi", "rudi", "rudi@citanusa.id", user.RoleHA, testutil.UserOpts{ManagerID: mgr.ID, SpvID: spv.ID})
	haSolo := testutil.CreateUser(t, usrRepo, "Dewi", "dewi", "dewi@citanusa.id", user.RoleHA, testutil.UserOpts{ManagerID: mgr.ID})
	ha2 := testutil.CreateUser(t, usrRepo, "Lina", "lina", "lina@citanusa.id", user.RoleHA, testutil.UserOpts{ManagerID: mgr2.ID})
	inactive := testutil.CreateUser(t, usrRepo, "Old", "old", "old@citanusa.id", user.RoleSuperadmin, testutil.UserOpts{Inactive: true})

	seeds := []lead.Lead{
		{Name: "by ha", AssignedTo: ha.ID, ManagerID: mgr.ID, SpvID: spv.ID, CreatedBy: ha.ID},
		{Name: "by spv, unassigned", SpvID: spv.ID, ManagerID: mgr.ID, CreatedBy: spv.ID},
		{Name: "by manager for solo ha", AssignedTo: haSolo.ID, ManagerID: mgr.ID, CreatedBy: mgr.ID},
		// the assignee moved teams after the lead was stamped
		{Name: "stale stamp", AssignedTo: ha.ID, ManagerID: mgr2.ID, CreatedBy: admin.ID},
		{Name: "other team", AssignedTo: ha2.ID, ManagerID: mgr2.ID, CreatedBy: mgr2.ID},
		{Name: "by admin, unassigned", CreatedBy: admin.ID},
		{Name: "created by ha for other team", AssignedTo: ha2.ID, ManagerID: mgr2.ID, CreatedBy: ha.ID},
	}
	var all []lead.Lead
	for _, l := range seeds {
		all = append(all, testutil.CreateLead(t, leadRepo, l))
	}

	for _, actor := range []user.User{admin, mgr, mgr2, spv, ha, haSolo, ha2, inactive} {
		t.Run(actor.Username, func(t *testing.T) {
			var want []string
			for _, l := range all {
				if lead.Visible(l, actor) {
					want = append(want, l.Name)
				}
			}

			scope := lead.ScopeOf(actor)
			leads, total, err := leadRepo.QueryLeads(ctx, &lead.QueryFilter{}, &scope, nil, core.Page{})
			require.NoError(t, err)
			got := make([]string, 0, len(leads))
			for _, l := range leads {
				got = append(got, l.Name)
			}

			sort.Strings(want)
			sort.Strings(got)
			assert.Equal(t, len(want), total)
			if len(want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestLeadRepository_query(t *testing.T) {
	db := testutil.PrepareDB(t)
	usrRepo := sqlxrepos.NewUserRepository(db)
	leadRepo := sqlxrepos.NewLeadRepository(db)
	ctx := context.Background()

	ha := testutil.CreateUser(t, usrRepo, "Rudi", "rudi", "rudi@citanusa.id", user.RoleHA)
	testutil.CreateLead(t, leadRepo, lead.Lead{Name: "Andi Wijaya", Email: "andi@mail.id", Priority: lead.PriorityHot, AssignedTo: ha.ID})
	testutil.CreateLead(t, leadRepo, lead.Lead{Name: "Budi", Phone: "0813 5555 6666", Source: lead.SourceWebsite})
	testutil.CreateLead(t, leadRepo, lead.Lead{Name: "Cici", Priority: lead.PriorityWarm})

	tests := []struct {
		name   string
		filter lead.QueryFilter
		order  []core.DBOrdering
		page   core.Page
		want   []string
		total  int
	}{
		{name: "newest first", want: []string{"Cici", "Budi", "Andi Wijaya"}, total: 3},
		{name: "ordering", order: []core.DBOrdering{{Field: "name", Ascending: true}}, want: []string{"Andi Wijaya", "Budi", "Cici"}, total: 3},
		{name: "search name", filter: lead.QueryFilter{Search: "WIJAYA"}, want: []string{"Andi Wijaya"}, total: 1},
		{name: "search email", filter: lead.QueryFilter{Search: "andi@"}, want: []string{"Andi Wijaya"}, total: 1},
		{name: "search phone", filter: lead.QueryFilter{Search: "5555"}, want: []string{"Budi"}, total: 1},
		{name: "priorities", filter: lead.QueryFilter{Priorities: []string{lead.PriorityHot, lead.PriorityWarm}}, want: []string{"Cici", "Andi Wijaya"}, total: 2},
		{name: "source", filter: lead.QueryFilter{Source: lead.SourceWebsite}, want: []string{"Budi"}, total: 1},
		{name: "assigned", filter: lead.QueryFilter{AssignedTo: ha.ID}, want: []string{"Andi Wijaya"}, total: 1},
		{name: "unassigned", filter: lead.QueryFilter{Unassigned: true}, want: []string{"Cici", "Budi"}, total: 2},
		{name: "page 2", page: core.Page{Page: 2, PerPage: 2}, want: []string{"Andi Wijaya"}, total: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leads, total, err := leadRepo.QueryLeads(ctx, &tt.filter, nil, tt.order, tt.page)
			require.NoError(t, err)
			got := make([]string, 0, len(leads))
			for _, l := range leads {
				got = append(got, l.Name)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.total, total)
		})
	}
}
