package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func member(id, role, managerID, spvID string) User {
	usr := User{ID: id, Role: role, ManagerID: managerID, SpvID: spvID}
	usr.SetActive(true)
	return usr
}

func TestScopeOf(t *testing.T) {
	usr := member("u1", RoleSpv, "m1", "")
	assert.Equal(t, Scope{Role: RoleSpv, UserID: "u1"}, ScopeOf(usr))

	usr.SetActive(false)
	assert.True(t, ScopeOf(usr).IsZero())
	assert.True(t, ScopeOf(User{Role: RoleHA}).IsZero())
}

func TestHierarchyRules(t *testing.T) {
	admin := member("admin", RoleSuperadmin, "", "")
	mgr := member("mgr", RoleManager, "", "")
	otherMgr := member("mgr2", RoleManager, "", "")
	spv := member("spv", RoleSpv, "mgr", "")
	ha := member("ha", RoleHA, "mgr", "spv")
	haNoSpv := member("ha2", RoleHA, "mgr", "")
	otherHA := member("ha3", RoleHA, "mgr2", "")
	inactiveHA := member("ha4", RoleHA, "mgr", "spv")
	inactiveHA.SetActive(false)

	tests := []struct {
		name                             string
		actor, target                    User
		wantView, wantAdmin, wantAssign bool
	}{
		{"superadmin > ha", admin, ha, true, true, true},
		{"superadmin > manager", admin, mgr, true, true, false},
		{"manager > own spv", mgr, spv, true, true, false},
		{"manager > own ha", mgr, ha, true, true, true},
		{"manager > ha without spv", mgr, haNoSpv, true, true, true},
		{"manager > other team", mgr, otherHA, false, false, false},
		{"manager > other manager", mgr, otherMgr, false, false, false},
		{"manager > self", mgr, mgr, true, false, false},
		{"manager > inactive ha", mgr, inactiveHA, true, true, false},
		{"spv > own ha", spv, ha, true, false, true},
		{"spv > team ha without spv", spv, haNoSpv, false, false, false},
		{"spv > manager", spv, mgr, false, false, false},
		{"spv > self", spv, spv, true, false, false},
		{"ha > self", ha, ha, true, false, false},
		{"ha > spv", ha, spv, false, false, false},
		{"inactive actor", inactiveHA, inactiveHA, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantView, CanView(tt.actor, tt.target), "CanView")
			assert.Equal(t, tt.wantAdmin, CanAdminister(tt.actor, tt.target), "CanAdminister")
			assert.Equal(t, tt.wantAssign, CanAssignTo(tt.actor, tt.target), "CanAssignTo")
		})
	}
}
