package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/user"
)

const userColumns = `id, name, username, email, phone, role, manager_id, spv_id, is_active, password_hash,
	created_at, updated_at, last_login`

var userOrderings = map[string]string{
	"name":       "name",
	"username":   "username",
	"email":      "email",
	"role":       "role",
	"is_active":  "is_active",
	"created_at": "created_at",
	"updated_at": "updated_at",
	"last_login": "last_login",
}

type userRow struct {
	ID           string      `db:"id"`
	Name         string      `db:"name"`
	Username     null.String `db:"username"`
	Email        null.String `db:"email"`
	Phone        null.String `db:"phone"`
	Role         string      `db:"role"`
	ManagerID    null.String `db:"manager_id"`
	SpvID        null.String `db:"spv_id"`
	IsActive     bool        `db:"is_active"`
	PasswordHash string      `db:"password_hash"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func (r userRow) toUser() user.User {
	usr := user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username.String,
		Email:        r.Email.String,
		Phone:        r.Phone.String,
		Role:         r.Role,
		ManagerID:    r.ManagerID.String,
		SpvID:        r.SpvID.String,
		PasswordHash: []byte(r.PasswordHash),
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    utc(r.LastLogin),
	}
	usr.SetActive(r.IsActive)
	return usr
}

func userArgs(usr user.User) []interface{} {
	return []interface{}{
		usr.Name,
		nullString(usr.Username),
		nullString(usr.Email),
		nullString(usr.Phone),
		usr.Role,
		nullString(usr.ManagerID),
		nullString(usr.SpvID),
		usr.Active(),
		string(usr.PasswordHash),
		usr.CreatedAt.UTC(),
		usr.UpdatedAt.UTC(),
		nullTime(usr.LastLogin),
	}
}

type userRepository struct {
	baseRepository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DBExecutor) *userRepository {
	return &userRepository{baseRepository{db: db}}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	if username == "" && email == "" {
		return nil
	}
	db := repo.getExec(exec)

	var (
		w      where
		clause []string
		args   []interface{}
	)
	if username != "" {
		clause = append(clause, "username = ?")
		args = append(args, username)
	}
	if email != "" {
		clause = append(clause, "email = ?")
		args = append(args, email)
	}
	if len(clause) == 2 {
		w.add("("+clause[0]+" OR "+clause[1]+")", args...)
	} else {
		w.add(clause[0], args...)
	}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, usr := range excludedUsers {
			ids = append(ids, usr.ID)
		}
		cond, inArgs, err := sqlx.In("id NOT IN (?)", ids)
		if err != nil {
			return errors.Wrap(err, "expanding IN clause")
		}
		w.add(cond, inArgs...)
	}

	var count int
	q := db.Rebind("SELECT COUNT(*) FROM users" + w.String())
	if err := sqlx.GetContext(ctx, db, &count, q, w.args...); err != nil {
		return errors.Wrap(err, "counting users")
	}
	if count > 0 {
		return user.ErrUserExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	db := repo.getExec(exec)
	if usr.ID == "" {
		usr.ID = newID()
	}
	if usr.IsActive == nil {
		usr.SetActive(true)
	}

	q := db.Rebind(`INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	args := append([]interface{}{usr.ID}, userArgs(usr)...)
	if _, err := db.ExecContext(ctx, q, args...); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, scope *user.Scope, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	db := repo.getExec(exec)

	var w where
	if scope != nil {
		cond, args := userScope(*scope)
		w.add(cond, args...)
	}
	if filter != nil {
		filter.Clean()
		if filter.Search != "" {
			p := likePattern(filter.Search)
			w.add("(LOWER(name) LIKE ? OR LOWER(username) LIKE ? OR LOWER(email) LIKE ?)", p, p, p)
		}
		if err := w.in("role", filter.Roles); err != nil {
			return nil, err
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
		if filter.ManagerID != "" {
			w.add("manager_id = ?", filter.ManagerID)
		}
		if filter.SpvID != "" {
			w.add("spv_id = ?", filter.SpvID)
		}
		w.timeRange("created_at", filter.CreatedFrom, filter.CreatedTo)
	}

	q := db.Rebind("SELECT " + userColumns + " FROM users" + w.String() + orderBy(ordering, userOrderings, "name ASC"))
	var rows []userRow
	if err := sqlx.SelectContext(ctx, db, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, nil
}

// userScope: superadmins see all, managers themselves & their team, supervisors themselves & their HAs.
func userScope(scope user.Scope) (string, []interface{}) {
	if scope.IsZero() {
		return "1 = 0", nil
	}
	id := scope.UserID
	switch scope.Role {
	case user.RoleSuperadmin:
		return "", nil
	case user.RoleManager:
		return "(id = ? OR manager_id = ?)", []interface{}{id, id}
	case user.RoleSpv:
		return "(id = ? OR (role = 'ha' AND spv_id = ?))", []interface{}{id, id}
	case user.RoleHA:
		return "id = ?", []interface{}{id}
	}
	return "1 = 0", nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	db := repo.getExec(exec)

	var w where
	switch {
	case filter.ID != "":
		w.add("id = ?", filter.ID)
	case filter.Username != "":
		w.add("username = ?", filter.Username)
	case filter.Email != "":
		w.add("email = ?", filter.Email)
	case len(filter.UsernameOrEmail) > 0:
		cond, args, err := sqlx.In("(username IN (?) OR email IN (?))", filter.UsernameOrEmail, filter.UsernameOrEmail)
		if err != nil {
			return user.User{}, errors.Wrap(err, "expanding IN clause")
		}
		w.add(cond, args...)
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	q := db.Rebind("SELECT " + userColumns + " FROM users" + w.String() + " LIMIT 1")
	if err := sqlx.GetContext(ctx, db, &row, q, w.args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound)
	}
	return row.toUser(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	db := repo.getExec(exec)
	q := db.Rebind(`UPDATE users SET name = ?, username = ?, email = ?, phone = ?, role = ?, manager_id = ?, spv_id = ?,
		is_active = ?, password_hash = ?, created_at = ?, updated_at = ?, last_login = ? WHERE id = ?`)
	args := append(userArgs(usr), usr.ID)
	res, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

// UpdateOrCreateUser updates the user with the same username or email, creating it when there is none.
func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	var keys []string
	for _, k := range []string{usr.Username, usr.Email} {
		if k != "" {
			keys = append(keys, k)
		}
	}
	existing, err := repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: keys}, exec...)
	switch {
	case errors.Cause(err) == user.ErrNotFound:
		return repo.CreateUser(ctx, usr, exec...)
	case err != nil:
		return user.User{}, err
	}

	usr.ID = existing.ID
	usr.CreatedAt = existing.CreatedAt
	usr.LastLogin = existing.LastLogin
	if usr.IsActive == nil {
		usr.IsActive = existing.IsActive
	}
	return repo.UpdateUser(ctx, usr, exec...)
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	db := repo.getExec(exec)
	q, args, err := sqlx.In("DELETE FROM users WHERE id IN (?)", ids)
	if err != nil {
		return 0, errors.Wrap(err, "expanding IN clause")
	}
	res, err := db.ExecContext(ctx, db.Rebind(q), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "counting deleted users")
}
