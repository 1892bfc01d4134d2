package user

// Scope restricts what a user may see. The zero Scope sees nothing.
type Scope struct {
	Role   string
	UserID string
}

// ScopeOf returns the visibility scope of usr. Inactive users get the zero Scope.
func ScopeOf(usr User) Scope {
	if !usr.Active() || usr.ID == "" {
		return Scope{}
	}
	return Scope{Role: usr.Role, UserID: usr.ID}
}

func (s Scope) IsZero() bool { return s.Role == "" || s.UserID == "" }

// CanView reports whether actor may see target:
// superadmins see everyone, managers their team, supervisors their HAs, everyone themselves.
func CanView(actor, target User) bool {
	if !actor.Active() {
		return false
	}
	if actor.ID == target.ID {
		return true
	}
	switch actor.Role {
	case RoleSuperadmin:
		return true
	case RoleManager:
		return target.ManagerID == actor.ID
	case RoleSpv:
		return target.Role == RoleHA && target.SpvID == actor.ID
	}
	return false
}

// CanAdminister reports whether actor may change target's account (role, hierarchy, activation, credentials).
func CanAdminister(actor, target User) bool {
	if !actor.Active() {
		return false
	}
	switch actor.Role {
	case RoleSuperadmin:
		return true
	case RoleManager:
		return target.ID != actor.ID && target.ManagerID == actor.ID
	}
	return false
}

// CanAssignTo reports whether actor may hand leads over to the housing advisor ha.
func CanAssignTo(actor, ha User) bool {
	if !actor.Active() || !ha.Active() || ha.Role != RoleHA {
		return false
	}
	switch actor.Role {
	case RoleSuperadmin:
		return true
	case RoleManager:
		return ha.ManagerID == actor.ID
	case RoleSpv:
		return ha.SpvID == actor.ID
	}
	return false
}
