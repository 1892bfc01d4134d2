package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
)

// Roles
const (
	RoleSuperadmin = "superadmin"
	RoleManager    = "manager"
	RoleSpv        = "spv" // supervisor
	RoleHA         = "ha"  // housing advisor
)

var (
	AllRoles = []string{RoleSuperadmin, RoleManager, RoleSpv, RoleHA}

	rolePriorities = map[string]int{
		RoleSuperadmin: 40,
		RoleManager:    30,
		RoleSpv:        20,
		RoleHA:         10,
	}

	Roles = []Role{
		{Name: "Housing Advisor", Value: RoleHA},
		{Name: "Supervisor", Value: RoleSpv},
		{Name: "Manager", Value: RoleManager},
		{Name: "Super Admin", Value: RoleSuperadmin},
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Role         string    `json:"role"`
	ManagerID    string    `json:"manager_id"`
	SpvID        string    `json:"spv_id"`
	IsActive     *bool     `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) SetActive(active bool) {
	u.IsActive = &active
}

func (u User) Active() bool {
	return u.IsActive != nil && *u.IsActive
}

func (u User) IsSuperadmin() bool { return u.Role == RoleSuperadmin }
func (u User) IsManager() bool    { return u.Role == RoleManager }
func (u User) IsSpv() bool        { return u.Role == RoleSpv }
func (u User) IsHA() bool         { return u.Role == RoleHA }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string `json:"name" validate:"required"`
	Username        string `json:"username" validate:"omitempty,min=4,alphanum_"`
	Email           string `json:"email" validate:"omitempty,email"`
	Phone           string `json:"phone" validate:"omitempty,phone"`
	Role            string `json:"role" validate:"required,role"`
	ManagerID       string `json:"manager_id" validate:"omitempty,uuid"`
	SpvID           string `json:"spv_id" validate:"omitempty,uuid"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Phone = core.CleanString(nu.Phone)
	nu.Role = core.CleanString(nu.Role, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Username, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
// Empty strings and nil pointers leave the matching field untouched.
type UpdateUser struct {
	Name            string  `json:"name"`
	Username        string  `json:"username" validate:"omitempty,min=4,alphanum_"`
	Email           string  `json:"email" validate:"omitempty,email"`
	Phone           string  `json:"phone" validate:"omitempty,phone"`
	Role            string  `json:"role" validate:"omitempty,role"`
	ManagerID       *string `json:"manager_id" validate:"omitempty,uuid_or_empty"`
	SpvID           *string `json:"spv_id" validate:"omitempty,uuid_or_empty"`
	IsActive        *bool   `json:"is_active"`
	Password        string  `json:"password" validate:"omitempty"`
	PasswordConfirm string  `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

// HasPrivilegedFields reports whether uu changes fields only a superior may change.
func (uu UpdateUser) HasPrivilegedFields() bool {
	return uu.Username != "" || uu.Email != "" || uu.Role != "" ||
		uu.ManagerID != nil || uu.SpvID != nil || uu.IsActive != nil
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc Service) error {
	uu.Name = core.CleanString(uu.Name)
	uu.Username = core.CleanString(uu.Username, true /* lower */)
	uu.Email = core.CleanString(uu.Email, true /* lower */)
	uu.Phone = core.CleanString(uu.Phone)
	uu.Role = core.CleanString(uu.Role, true /* lower */)

	if err := validate.Struct(uu); err != nil {
		return err
	}

	uname, email := uu.Username, uu.Email
	if uname == "" {
		uname = origUsr.Username
	}
	if email == "" {
		email = origUsr.Email
	}
	return svc.CheckUniqueness(ctx, uname, email, origUsr)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type QueryFilter struct {
	Search      string
	Roles       []string
	IsActive    *bool
	ManagerID   string
	SpvID       string
	CreatedFrom time.Time
	CreatedTo   time.Time
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.ManagerID = core.CleanString(qf.ManagerID)
	qf.SpvID = core.CleanString(qf.SpvID)
}

type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail []string
}
