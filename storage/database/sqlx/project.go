package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/project"
)

const (
	projectColumns = "id, name, location, description, is_active, created_at, updated_at"
	unitColumns    = "id, project_id, code, unit_type, floor, area, price, status, booked_by_lead_id, created_at, updated_at"
)

var (
	projectOrderings = map[string]string{
		"name":       "name",
		"location":   "location",
		"is_active":  "is_active",
		"created_at": "created_at",
		"updated_at": "updated_at",
	}
	unitOrderings = map[string]string{
		"project_id": "project_id",
		"code":       "code",
		"unit_type":  "unit_type",
		"floor":      "floor",
		"area":       "area",
		"price":      "price",
		"status":     "status",
		"created_at": "created_at",
	}
)

type projectRow struct {
	ID          string      `db:"id"`
	Name        string      `db:"name"`
	Location    null.String `db:"location"`
	Description null.String `db:"description"`
	IsActive    bool        `db:"is_active"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (r projectRow) toProject() project.Project {
	return project.Project{
		ID:          r.ID,
		Name:        r.Name,
		Location:    r.Location.String,
		Description: r.Description.String,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type unitRow struct {
	ID             string      `db:"id"`
	ProjectID      string      `db:"project_id"`
	Code           string      `db:"code"`
	UnitType       null.String `db:"unit_type"`
	Floor          int         `db:"floor"`
	Area           float64     `db:"area"`
	Price          int64       `db:"price"`
	Status         string      `db:"status"`
	BookedByLeadID null.String `db:"booked_by_lead_id"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func (r unitRow) toUnit() project.Unit {
	return project.Unit{
		ID:             r.ID,
		ProjectID:      r.ProjectID,
		Code:           r.Code,
		UnitType:       r.UnitType.String,
		Floor:          r.Floor,
		Area:           r.Area,
		Price:          r.Price,
		Status:         r.Status,
		BookedByLeadID: r.BookedByLeadID.String,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

type projectRepository struct {
	baseRepository
}

var _ project.Repository = (*projectRepository)(nil) // interface compliance check

func NewProjectRepository(db core.DBExecutor) *projectRepository {
	return &projectRepository{baseRepository{db: db}}
}

func (repo *projectRepository) CreateProject(ctx context.Context, p project.Project, exec ...core.DBExecutor) (project.Project, error) {
	db := repo.getExec(exec)
	if p.ID == "" {
		p.ID = newID()
	}
	q := db.Rebind("INSERT INTO projects (" + projectColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?)")
	_, err := db.ExecContext(ctx, q,
		p.ID, p.Name, nullString(p.Location), nullString(p.Description), p.IsActive, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	if err != nil {
		return project.Project{}, errors.Wrap(err, "inserting project")
	}
	return p, nil
}

func (repo *projectRepository) getProject(ctx context.Context, db core.DBExecutor, cond string, arg interface{}) (project.Project, error) {
	var row projectRow
	q := db.Rebind("SELECT " + projectColumns + " FROM projects WHERE " + cond)
	if err := sqlx.GetContext(ctx, db, &row, q, arg); err != nil {
		return project.Project{}, trapNoRowsErr(err, project.ErrNotFound)
	}
	return row.toProject(), nil
}

func (repo *projectRepository) GetProject(ctx context.Context, id string, exec ...core.DBExecutor) (project.Project, error) {
	return repo.getProject(ctx, repo.getExec(exec), "id = ?", id)
}

func (repo *projectRepository) GetProjectByName(ctx context.Context, name string, exec ...core.DBExecutor) (project.Project, error) {
	return repo.getProject(ctx, repo.getExec(exec), "LOWER(name) = ?", core.CleanString(name, true /* lower */))
}

func (repo *projectRepository) QueryProjects(ctx context.Context, filter *project.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]project.Project, error) {
	db := repo.getExec(exec)

	var w where
	if filter != nil {
		if s := core.CleanString(filter.Search); s != "" {
			p := likePattern(s)
			w.add("(LOWER(name) LIKE ? OR LOWER(location) LIKE ?)", p, p)
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
	}

	var rows []projectRow
	q := db.Rebind("SELECT " + projectColumns + " FROM projects" + w.String() + orderBy(ordering, projectOrderings, "name ASC"))
	if err := sqlx.SelectContext(ctx, db, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting projects")
	}
	ps := make([]project.Project, 0, len(rows))
	for _, r := range rows {
		ps = append(ps, r.toProject())
	}
	return ps, nil
}

func (repo *projectRepository) UpdateProject(ctx context.Context, p project.Project, exec ...core.DBExecutor) (project.Project, error) {
	db := repo.getExec(exec)
	q := db.Rebind("UPDATE projects SET name = ?, location = ?, description = ?, is_active = ?, updated_at = ? WHERE id = ?")
	res, err := db.ExecContext(ctx, q, p.Name, nullString(p.Location), nullString(p.Description), p.IsActive, p.UpdatedAt.UTC(), p.ID)
	if err != nil {
		return project.Project{}, errors.Wrap(err, "updating project")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return project.Project{}, project.ErrNotFound
	}
	return p, nil
}

func (repo *projectRepository) DeleteProject(ctx context.Context, id string, exec ...core.DBExecutor) error {
	db := repo.getExec(exec)
	res, err := db.ExecContext(ctx, db.Rebind("DELETE FROM projects WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting project")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return project.ErrNotFound
	}
	return nil
}

func (repo *projectRepository) CreateUnit(ctx context.Context, u project.Unit, exec ...core.DBExecutor) (project.Unit, error) {
	db := repo.getExec(exec)
	if u.ID == "" {
		u.ID = newID()
	}
	if u.Status == "" {
		u.Status = project.UnitAvailable
	}
	q := db.Rebind("INSERT INTO units (" + unitColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	_, err := db.ExecContext(ctx, q,
		u.ID, u.ProjectID, u.Code, nullString(u.UnitType), u.Floor, u.Area, u.Price, u.Status,
		nullString(u.BookedByLeadID), u.CreatedAt.UTC(), u.UpdatedAt.UTC())
	if err != nil {
		return project.Unit{}, errors.Wrap(err, "inserting unit")
	}
	return u, nil
}

func (repo *projectRepository) getUnit(ctx context.Context, db core.DBExecutor, cond string, args ...interface{}) (project.Unit, error) {
	var row unitRow
	q := db.Rebind("SELECT " + unitColumns + " FROM units WHERE " + cond)
	if err := sqlx.GetContext(ctx, db, &row, q, args...); err != nil {
		return project.Unit{}, trapNoRowsErr(err, project.ErrUnitNotFound)
	}
	return row.toUnit(), nil
}

func (repo *projectRepository) GetUnit(ctx context.Context, id string, exec ...core.DBExecutor) (project.Unit, error) {
	return repo.getUnit(ctx, repo.getExec(exec), "id = ?", id)
}

func (repo *projectRepository) GetUnitByCode(ctx context.Context, projectID, code string, exec ...core.DBExecutor) (project.Unit, error) {
	return repo.getUnit(ctx, repo.getExec(exec), "project_id = ? AND LOWER(code) = ?", projectID, core.CleanString(code, true /* lower */))
}

func (repo *projectRepository) QueryUnits(ctx context.Context, filter *project.UnitFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]project.Unit, error) {
	db := repo.getExec(exec)

	var w where
	if filter != nil {
		if filter.ProjectID != "" {
			w.add("project_id = ?", filter.ProjectID)
		}
		if err := w.in("status", filter.Statuses); err != nil {
			return nil, err
		}
		if filter.UnitType != "" {
			w.add("LOWER(unit_type) = ?", core.CleanString(filter.UnitType, true /* lower */))
		}
		if filter.MinPrice > 0 {
			w.add("price >= ?", filter.MinPrice)
		}
		if filter.MaxPrice > 0 {
			w.add("price <= ?", filter.MaxPrice)
		}
		if s := core.CleanString(filter.Search); s != "" {
			w.add("LOWER(code) LIKE ?", likePattern(s))
		}
	}

	var rows []unitRow
	q := db.Rebind("SELECT " + unitColumns + " FROM units" + w.String() + orderBy(ordering, unitOrderings, "code ASC"))
	if err := sqlx.SelectContext(ctx, db, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting units")
	}
	units := make([]project.Unit, 0, len(rows))
	for _, r := range rows {
		units = append(units, r.toUnit())
	}
	return units, nil
}

func (repo *projectRepository) CountUnits(ctx context.Context, projectID string, exec ...core.DBExecutor) (int, error) {
	db := repo.getExec(exec)
	var count int
	err := sqlx.GetContext(ctx, db, &count, db.Rebind("SELECT COUNT(*) FROM units WHERE project_id = ?"), projectID)
	return count, errors.Wrap(err, "counting units")
}

func (repo *projectRepository) UpdateUnit(ctx context.Context, u project.Unit, exec ...core.DBExecutor) (project.Unit, error) {
	db := repo.getExec(exec)
	q := db.Rebind("UPDATE units SET code = ?, unit_type = ?, floor = ?, area = ?, price = ?, updated_at = ? WHERE id = ?")
	res, err := db.ExecContext(ctx, q, u.Code, nullString(u.UnitType), u.Floor, u.Area, u.Price, u.UpdatedAt.UTC(), u.ID)
	if err != nil {
		return project.Unit{}, errors.Wrap(err, "updating unit")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return project.Unit{}, project.ErrUnitNotFound
	}
	return u, nil
}

// HoldUnit sets status & the holding lead in a single conditional UPDATE,
// so two leads can never both claim the same unit.
func (repo *projectRepository) HoldUnit(ctx context.Context, id, status, leadID string, exec ...core.DBExecutor) (bool, error) {
	db := repo.getExec(exec)
	q := db.Rebind(`UPDATE units SET status = ?, booked_by_lead_id = ?, updated_at = ?
		WHERE id = ? AND (status = ? OR (status = ? AND booked_by_lead_id = ?))`)
	res, err := db.ExecContext(ctx, q, status, leadID, core.Now(), id, project.UnitAvailable, project.UnitBooked, leadID)
	if err != nil {
		return false, errors.Wrap(err, "holding unit")
	}
	return affected(res)
}

func (repo *projectRepository) ReleaseUnit(ctx context.Context, id, leadID string, exec ...core.DBExecutor) (bool, error) {
	db := repo.getExec(exec)
	q := db.Rebind(`UPDATE units SET status = ?, booked_by_lead_id = NULL, updated_at = ?
		WHERE id = ? AND status = ? AND booked_by_lead_id = ?`)
	res, err := db.ExecContext(ctx, q, project.UnitAvailable, core.Now(), id, project.UnitBooked, leadID)
	if err != nil {
		return false, errors.Wrap(err, "releasing unit")
	}
	return affected(res)
}

func (repo *projectRepository) SetUnitStatus(ctx context.Context, id, status string, exec ...core.DBExecutor) (bool, error) {
	db := repo.getExec(exec)
	q := db.Rebind("UPDATE units SET status = ?, updated_at = ? WHERE id = ? AND booked_by_lead_id IS NULL")
	res, err := db.ExecContext(ctx, q, status, core.Now(), id)
	if err != nil {
		return false, errors.Wrap(err, "updating unit status")
	}
	return affected(res)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "counting updated rows")
	}
	return n > 0, nil
}

func (repo *projectRepository) DeleteUnit(ctx context.Context, id string, exec ...core.DBExecutor) error {
	db := repo.getExec(exec)
	res, err := db.ExecContext(ctx, db.Rebind("DELETE FROM units WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting unit")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return project.ErrUnitNotFound
	}
	return nil
}
