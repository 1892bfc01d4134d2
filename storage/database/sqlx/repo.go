// Package sqlxrepos implements the core repositories with jmoiron/sqlx.
// Queries are written with `?` placeholders and rebound for the executor's driver.
package sqlxrepos

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/user"
)

type baseRepository struct {
	db core.DBExecutor
}

func (repo baseRepository) getExec(exec []core.DBExecutor) core.DBExecutor {
	if len(exec) > 0 && exec[0] != nil {
		return exec[0]
	}
	return repo.db
}

func trapNoRowsErr(err, notFound error) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return err
}

func newID() string { return uuid.New().String() }

func nullString(s string) null.String { return null.NewString(s, s != "") }

func nullTime(t time.Time) null.Time { return null.NewTime(t, !t.IsZero()) }

func utc(t null.Time) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

func likePattern(s string) string {
	return "%" + strings.ToLower(s) + "%"
}

// where builds a conjunction of conditions along with their args.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	if cond == "" {
		return
	}
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

// in adds a `col IN (?)` condition; does nothing for an empty list.
func (w *where) in(col string, values []string) error {
	if len(values) == 0 {
		return nil
	}
	cond, args, err := sqlx.In(col+" IN (?)", values)
	if err != nil {
		return errors.Wrap(err, "expanding IN clause")
	}
	w.add(cond, args...)
	return nil
}

func (w *where) timeRange(col string, from, to time.Time) {
	if !from.IsZero() {
		w.add(col+" >= ?", from.UTC())
	}
	if !to.IsZero() {
		w.add(col+" <= ?", to.UTC())
	}
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// orderBy translates API orderings to an ORDER BY clause; unknown fields are ignored.
func orderBy(ordering []core.DBOrdering, columns map[string]string, def string) string {
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := columns[ord.Field]
		if !ok {
			continue
		}
		parts = append(parts, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	if len(parts) == 0 {
		return " ORDER BY " + def
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func limitOffset(page core.Page) (string, []interface{}) {
	if page.IsZero() {
		return "", nil
	}
	return " LIMIT ? OFFSET ?", []interface{}{page.PerPage, page.Offset()}
}

// leadScope turns a lead visibility scope into a condition on `l` (leads) joined to `a` (assignees).
// A nil scope restricts nothing; an unknown or zero scope matches no lead.
func leadScope(scope *user.Scope) (string, []interface{}) {
	if scope == nil {
		return "", nil
	}
	if scope.IsZero() {
		return "1 = 0", nil
	}
	id := scope.UserID
	switch scope.Role {
	case user.RoleSuperadmin:
		return "", nil
	case user.RoleManager:
		return "(l.created_by = ? OR l.manager_id = ? OR a.manager_id = ?)", []interface{}{id, id, id}
	case user.RoleSpv:
		return "(l.created_by = ? OR l.spv_id = ? OR a.spv_id = ?)", []interface{}{id, id, id}
	case user.RoleHA:
		return "(l.assigned_to = ? OR l.created_by = ?)", []interface{}{id, id}
	}
	return "1 = 0", nil
}
