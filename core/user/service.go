package user

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/pkg/errors"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrUserExists     = errors.New("a user with this username or email already exists")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")

	errNoPermsToSetRole = "not enough rights to set this role"
	errInvalidManager   = "invalid manager"
	errInvalidSpv       = "invalid supervisor"
	errSpvNotInTeam     = "supervisor does not belong to this manager"
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields, restricted to what scope may see.
		// A nil scope means no restriction.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, scope *Scope, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		UpdateOrCreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error
		Create(ctx context.Context, nu NewUser, actor User) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, actor User) ([]User, error)
		Team(ctx context.Context, actor User) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsername(ctx context.Context, uname string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		Update(ctx context.Context, id string, uu UpdateUser, actor User) (User, error)
		Delete(ctx context.Context, ids []string, actor User) error
		SetLastLogin(ctx context.Context, usr User) (User, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		tokens  tokenGenerator
		conf    *core.Config
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return newService(repo, mailSvc, conf)
}

func newService(repo Repository, mailSvc core.EmailService, conf *core.Config) *service {
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		tokens:  tokenGenerator{secretKey: []byte(conf.SecretKey), timeout: conf.PasswordResetTimeoutDelta},
		conf:    conf,
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, exclUsers)
	if err == nil {
		return nil
	}
	if errors.Cause(err) != ErrUserExists {
		return errors.Wrap(err, "checking uniqueness")
	}

	// find out which field clashes
	var flds []core.FieldError
	if uname != "" {
		if usr, err := svc.repo.GetUser(ctx, GetFilter{Username: uname}); err == nil && !isExcluded(usr, exclUsers) {
			flds = append(flds, core.FieldError{Field: "username", Error: ErrUsernameExists.Error()})
		}
	}
	if email != "" {
		if usr, err := svc.repo.GetUser(ctx, GetFilter{Email: email}); err == nil && !isExcluded(usr, exclUsers) {
			flds = append(flds, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
		}
	}
	return core.NewValidationError(ErrUserExists, flds...)
}

func isExcluded(usr User, excl []User) bool {
	for _, u := range excl {
		if u.ID == usr.ID {
			return true
		}
	}
	return false
}

// resolveHierarchy checks & completes the manager / supervisor of a user with the given role.
func (svc *service) resolveHierarchy(ctx context.Context, role, managerID, spvID string) (string, string, error) {
	switch role {
	case RoleSuperadmin, RoleManager:
		return "", "", nil
	case RoleSpv:
		spvID = ""
	}

	if spvID != "" {
		spv, err := svc.repo.GetUser(ctx, GetFilter{ID: spvID})
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				return "", "", core.NewFieldError("spv_id", errInvalidSpv)
			}
			return "", "", errors.Wrap(err, "finding supervisor")
		}
		if spv.Role != RoleSpv || !spv.Active() {
			return "", "", core.NewFieldError("spv_id", errInvalidSpv)
		}
		if managerID == "" {
			managerID = spv.ManagerID
		} else if managerID != spv.ManagerID {
			return "", "", core.NewFieldError("spv_id", errSpvNotInTeam)
		}
	}

	if managerID == "" {
		return "", "", core.NewValidationError(nil, core.FieldError{Field: "manager_id", Error: "this field is required"})
	}
	mgr, err := svc.repo.GetUser(ctx, GetFilter{ID: managerID})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return "", "", core.NewFieldError("manager_id", errInvalidManager)
		}
		return "", "", errors.Wrap(err, "finding manager")
	}
	if mgr.Role != RoleManager || !mgr.Active() {
		return "", "", core.NewFieldError("manager_id", errInvalidManager)
	}
	return managerID, spvID, nil
}

// checkRoleRights makes sure actor may give role to a user: never above their own,
// and managers only below theirs.
func checkRoleRights(actor User, role string) error {
	max := RolePriority(actor.Role)
	if !actor.IsSuperadmin() {
		max--
	}
	if RolePriority(role) > max {
		return core.NewFieldError("role", errNoPermsToSetRole)
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nu NewUser, actor User) (User, error) {
	switch {
	case !actor.Active():
		return User{}, core.ErrForbidden
	case actor.IsSuperadmin():
	case actor.IsManager():
		nu.ManagerID = actor.ID // managers staff their own team only
	default:
		return User{}, core.ErrForbidden
	}
	if err := checkRoleRights(actor, nu.Role); err != nil {
		return User{}, err
	}

	managerID, spvID, err := svc.resolveHierarchy(ctx, nu.Role, nu.ManagerID, nu.SpvID)
	if err != nil {
		return User{}, err
	}

	now := core.Now()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Phone:     nu.Phone,
		Role:      nu.Role,
		ManagerID: managerID,
		SpvID:     spvID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(true)
	if err = usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr, err = svc.repo.CreateUser(ctx, usr)
	return usr, errors.Wrap(err, "creating user")
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, actor User) ([]User, error) {
	var scope *Scope
	if !actor.IsSuperadmin() || !actor.Active() {
		s := ScopeOf(actor)
		scope = &s
	}
	users, err := svc.repo.QueryUsers(ctx, filter, scope, ordering)
	return users, errors.Wrap(err, "querying users")
}

// Team returns the active housing advisors actor may assign leads to.
func (svc *service) Team(ctx context.Context, actor User) ([]User, error) {
	active := true
	filter := &QueryFilter{Roles: []string{RoleHA}, IsActive: &active}
	switch {
	case !actor.Active():
		return nil, core.ErrForbidden
	case actor.IsSuperadmin():
	case actor.IsManager():
		filter.ManagerID = actor.ID
	case actor.IsSpv():
		filter.SpvID = actor.ID
	default:
		return nil, core.ErrForbidden
	}
	users, err := svc.repo.QueryUsers(ctx, filter, nil, []core.DBOrdering{{Field: "name", Ascending: true}})
	return users, errors.Wrap(err, "querying team")
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Username: core.CleanString(uname, true /* lower */)})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: []string{core.CleanString(uname, true /* lower */)}})
}

func (svc *service) Update(ctx context.Context, id string, uu UpdateUser, actor User) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		return User{}, err
	}
	if !CanView(actor, usr) {
		return User{}, ErrNotFound
	}

	if uu.HasPrivilegedFields() {
		if !CanAdminister(actor, usr) {
			return User{}, core.ErrForbidden
		}
	} else if actor.ID != usr.ID && !CanAdminister(actor, usr) {
		return User{}, core.ErrForbidden
	}

	if uu.Name != "" {
		usr.Name = uu.Name
	}
	if uu.Username != "" {
		usr.Username = uu.Username
	}
	if uu.Email != "" {
		usr.Email = uu.Email
	}
	if uu.Phone != "" {
		usr.Phone = uu.Phone
	}
	if uu.IsActive != nil {
		if usr.ID == actor.ID && !*uu.IsActive {
			return User{}, core.ErrForbidden
		}
		usr.SetActive(*uu.IsActive)
	}

	if uu.Role != "" || uu.ManagerID != nil || uu.SpvID != nil {
		if uu.Role != "" && uu.Role != usr.Role {
			if err = checkRoleRights(actor, uu.Role); err != nil {
				return User{}, err
			}
			usr.Role = uu.Role
		}
		if uu.ManagerID != nil && *uu.ManagerID != usr.ManagerID {
			usr.ManagerID = *uu.ManagerID
			usr.SpvID = "" // the old supervisor belongs to the old manager
		}
		if uu.SpvID != nil {
			usr.SpvID = *uu.SpvID
		}
		if actor.IsManager() {
			usr.ManagerID = actor.ID // managers cannot move people out of their team
		}
		if usr.ManagerID, usr.SpvID, err = svc.resolveHierarchy(ctx, usr.Role, usr.ManagerID, usr.SpvID); err != nil {
			return User{}, err
		}
	}

	if uu.Password != "" {
		if err = usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = core.Now()

	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "updating user")
}

func (svc *service) Delete(ctx context.Context, ids []string, actor User) error {
	if !actor.IsSuperadmin() || !actor.Active() {
		return core.ErrForbidden
	}
	// Say No to Suicide! actor cannot delete themselves
	if core.StringInSlice(actor.ID, ids) {
		return core.ErrForbidden
	}
	_, err := svc.repo.DeleteUsersByID(ctx, ids)
	return errors.Wrap(err, "deleting users")
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = core.Now()
	usr, err := svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "updating user")
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.Active() {
		return ErrNotFound
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) sendPasswordResetMail(usr User) {
	uid := EncodeUID(usr)
	token := svc.tokens.makeToken(usr)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name":     firstName(usr.Name),
			"UID":      uid,
			"Token":    token,
			"ResetURL": fmt.Sprintf("%s/password-reset-confirm?uid=%s&token=%s", svc.conf.FrontendBaseURL, uid, token),
		},
	})
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	id, err := decodeUID(data.UID)
	if err != nil {
		return core.NewFieldError("uid", err.Error())
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewFieldError("uid", errInvalidUID.Error())
		}
		return errors.Wrap(err, "finding user")
	}
	if err = svc.tokens.verifyToken(usr, data.Token); err != nil {
		return core.NewFieldError("token", err.Error())
	}

	if err = usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = core.Now()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}

func firstName(name string) string {
	if parts := strings.Fields(name); len(parts) > 0 {
		return parts[0]
	}
	return name
}
