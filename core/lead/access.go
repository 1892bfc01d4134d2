package lead

import "github.com/AnggaNaa/CRM-Citanusa-sub001/core/user"

// Visible reports whether usr may see l:
//   - superadmins see every lead
//   - managers see the leads they created, of their team, or assigned to one of their HAs
//   - supervisors likewise, through spv_id
//   - housing advisors see the leads assigned to or created by them
//
// Repositories implement the same rule as a query scope (see Scope); both must agree.
func Visible(l Lead, usr user.User) bool {
	s := user.ScopeOf(usr)
	if s.IsZero() {
		return false
	}
	switch s.Role {
	case user.RoleSuperadmin:
		return true
	case user.RoleManager:
		return l.CreatedBy == s.UserID || l.ManagerID == s.UserID || l.AssigneeManagerID == s.UserID
	case user.RoleSpv:
		return l.CreatedBy == s.UserID || l.SpvID == s.UserID || l.AssigneeSpvID == s.UserID
	case user.RoleHA:
		return l.AssignedTo == s.UserID || l.CreatedBy == s.UserID
	}
	return false
}

// Scope is the query form of Visible; repositories translate it to a WHERE clause.
type Scope = user.Scope

// ScopeOf returns the lead query scope of usr.
func ScopeOf(usr user.User) Scope {
	return user.ScopeOf(usr)
}

// CanDelete reports whether usr may delete visible leads.
func CanDelete(usr user.User) bool {
	return usr.Active() && (usr.IsSuperadmin() || usr.IsManager())
}

// CanAssign reports whether usr may (re)assign visible leads.
func CanAssign(usr user.User) bool {
	return usr.Active() && (usr.IsSuperadmin() || usr.IsManager() || usr.IsSpv())
}
