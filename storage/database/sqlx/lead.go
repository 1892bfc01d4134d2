package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/lead"
)

const (
	leadColumns = `l.id, l.name, l.phone, l.email, l.source, l.priority, l.project_id, l.unit_id, l.notes,
	l.assigned_to, l.manager_id, l.spv_id, l.created_by, l.priority_changed_at, l.created_at, l.updated_at,
	COALESCE(a.name, '') AS assignee_name, a.manager_id AS assignee_manager_id, a.spv_id AS assignee_spv_id`

	leadsFrom = " FROM leads l LEFT JOIN users a ON a.id = l.assigned_to"

	historyColumns = "h.id, h.lead_id, h.from_priority, h.to_priority, h.changed_by, h.note, h.changed_at"
)

var (
	// priorityRank sorts priorities in pipeline order rather than alphabetically
	priorityRank = func() string {
		var sb strings.Builder
		sb.WriteString("CASE l.priority")
		for _, p := range lead.AllPriorities {
			fmt.Fprintf(&sb, " WHEN '%s' THEN %d", p, lead.PriorityRank(p))
		}
		sb.WriteString(" ELSE 0 END")
		return sb.String()
	}()

	leadOrderings = map[string]string{
		"name":                "l.name",
		"priority":            priorityRank,
		"source":              "l.source",
		"assignee_name":       "a.name",
		"created_at":          "l.created_at",
		"updated_at":          "l.updated_at",
		"priority_changed_at": "l.priority_changed_at",
	}
)

type leadRow struct {
	ID                string      `db:"id"`
	Name              string      `db:"name"`
	Phone             string      `db:"phone"`
	Email             null.String `db:"email"`
	Source            string      `db:"source"`
	Priority          string      `db:"priority"`
	ProjectID         null.String `db:"project_id"`
	UnitID            null.String `db:"unit_id"`
	Notes             null.String `db:"notes"`
	AssignedTo        null.String `db:"assigned_to"`
	ManagerID         null.String `db:"manager_id"`
	SpvID             null.String `db:"spv_id"`
	CreatedBy         null.String `db:"created_by"`
	PriorityChangedAt time.Time   `db:"priority_changed_at"`
	CreatedAt         time.Time   `db:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at"`
	AssigneeName      string      `db:"assignee_name"`
	AssigneeManagerID null.String `db:"assignee_manager_id"`
	AssigneeSpvID     null.String `db:"assignee_spv_id"`
}

func (r leadRow) toLead() lead.Lead {
	return lead.Lead{
		ID:                r.ID,
		Name:              r.Name,
		Phone:             r.Phone,
		Email:             r.Email.String,
		Source:            r.Source,
		Priority:          r.Priority,
		ProjectID:         r.ProjectID.String,
		UnitID:            r.UnitID.String,
		Notes:             r.Notes.String,
		AssignedTo:        r.AssignedTo.String,
		AssigneeName:      r.AssigneeName,
		AssigneeManagerID: r.AssigneeManagerID.String,
		AssigneeSpvID:     r.AssigneeSpvID.String,
		ManagerID:         r.ManagerID.String,
		SpvID:             r.SpvID.String,
		CreatedBy:         r.CreatedBy.String,
		PriorityChangedAt: r.PriorityChangedAt.UTC(),
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

type historyRow struct {
	ID           string      `db:"id"`
	LeadID       string      `db:"lead_id"`
	FromPriority null.String `db:"from_priority"`
	ToPriority   string      `db:"to_priority"`
	ChangedBy    null.String `db:"changed_by"`
	Note         null.String `db:"note"`
	ChangedAt    time.Time   `db:"changed_at"`
}

func (r historyRow) toHistory() lead.PriorityHistory {
	return lead.PriorityHistory{
		ID:           r.ID,
		LeadID:       r.LeadID,
		FromPriority: r.FromPriority.String,
		ToPriority:   r.ToPriority,
		ChangedBy:    r.ChangedBy.String,
		Note:         r.Note.String,
		ChangedAt:    r.ChangedAt.UTC(),
	}
}

type leadRepository struct {
	baseRepository
}

var _ lead.Repository = (*leadRepository)(nil) // interface compliance check

func NewLeadRepository(db core.DBExecutor) *leadRepository {
	return &leadRepository{baseRepository{db: db}}
}

func (repo *leadRepository) CreateLead(ctx context.Context, l lead.Lead, exec ...core.DBExecutor) (lead.Lead, error) {
	db := repo.getExec(exec)
	if l.ID == "" {
		l.ID = newID()
	}
	q := db.Rebind(`INSERT INTO leads (id, name, phone, email, source, priority, project_id, unit_id, notes,
		assigned_to, manager_id, spv_id, created_by, priority_changed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := db.ExecContext(ctx, q,
		l.ID, l.Name, l.Phone, nullString(l.Email), l.Source, l.Priority, nullString(l.ProjectID), nullString(l.UnitID),
		nullString(l.Notes), nullString(l.AssignedTo), nullString(l.ManagerID), nullString(l.SpvID), nullString(l.CreatedBy),
		l.PriorityChangedAt.UTC(), l.CreatedAt.UTC(), l.UpdatedAt.UTC())
	if err != nil {
		return lead.Lead{}, errors.Wrap(err, "inserting lead")
	}
	return l, nil
}

func (repo *leadRepository) GetLead(ctx context.Context, id string, exec ...core.DBExecutor) (lead.Lead, error) {
	db := repo.getExec(exec)
	var row leadRow
	q := db.Rebind("SELECT " + leadColumns + leadsFrom + " WHERE l.id = ?")
	if err := sqlx.GetContext(ctx, db, &row, q, id); err != nil {
		return lead.Lead{}, trapNoRowsErr(err, lead.ErrNotFound)
	}
	return row.toLead(), nil
}

// leadWhere builds the conditions of a leads query.
func leadWhere(filter *lead.QueryFilter, scope *lead.Scope) (where, error) {
	var w where
	cond, args := leadScope(scope)
	w.add(cond, args...)
	if filter == nil {
		return w, nil
	}

	filter.Clean()
	if filter.Search != "" {
		p := likePattern(filter.Search)
		w.add("(LOWER(l.name) LIKE ? OR LOWER(l.phone) LIKE ? OR LOWER(l.email) LIKE ?)", p, p, p)
	}
	if err := w.in("l.priority", filter.Priorities); err != nil {
		return w, err
	}
	if filter.Source != "" {
		w.add("l.source = ?", filter.Source)
	}
	if filter.ProjectID != "" {
		w.add("l.project_id = ?", filter.ProjectID)
	}
	switch {
	case filter.Unassigned:
		w.add("l.assigned_to IS NULL")
	case filter.AssignedTo != "":
		w.add("l.assigned_to = ?", filter.AssignedTo)
	}
	w.timeRange("l.created_at", filter.CreatedFrom, filter.CreatedTo)
	return w, nil
}

func (repo *leadRepository) QueryLeads(ctx context.Context, filter *lead.QueryFilter, scope *lead.Scope, ordering []core.DBOrdering, page core.Page, exec ...core.DBExecutor) ([]lead.Lead, int, error) {
	db := repo.getExec(exec)
	w, err := leadWhere(filter, scope)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err = sqlx.GetContext(ctx, db, &total, db.Rebind("SELECT COUNT(*)"+leadsFrom+w.String()), w.args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting leads")
	}

	limit, limitArgs := limitOffset(page)
	q := db.Rebind("SELECT " + leadColumns + leadsFrom + w.String() + orderBy(ordering, leadOrderings, "l.created_at DESC") + limit)
	var rows []leadRow
	if err = sqlx.SelectContext(ctx, db, &rows, q, append(w.args, limitArgs...)...); err != nil {
		return nil, 0, errors.Wrap(err, "selecting leads")
	}
	leads := make([]lead.Lead, 0, len(rows))
	for _, r := range rows {
		leads = append(leads, r.toLead())
	}
	return leads, total, nil
}

func (repo *leadRepository) UpdateLead(ctx context.Context, l lead.Lead, exec ...core.DBExecutor) error {
	db := repo.getExec(exec)
	q := db.Rebind(`UPDATE leads SET name = ?, phone = ?, email = ?, source = ?, priority = ?, project_id = ?, unit_id = ?,
		notes = ?, assigned_to = ?, manager_id = ?, spv_id = ?, priority_changed_at = ?, updated_at = ? WHERE id = ?`)
	res, err := db.ExecContext(ctx, q,
		l.Name, l.Phone, nullString(l.Email), l.Source, l.Priority, nullString(l.ProjectID), nullString(l.UnitID),
		nullString(l.Notes), nullString(l.AssignedTo), nullString(l.ManagerID), nullString(l.SpvID),
		l.PriorityChangedAt.UTC(), l.UpdatedAt.UTC(), l.ID)
	if err != nil {
		return errors.Wrap(err, "updating lead")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return lead.ErrNotFound
	}
	return nil
}

func (repo *leadRepository) DeleteLead(ctx context.Context, id string, exec ...core.DBExecutor) error {
	db := repo.getExec(exec)
	res, err := db.ExecContext(ctx, db.Rebind("DELETE FROM leads WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting lead")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return lead.ErrNotFound
	}
	return nil
}

func (repo *leadRepository) AddHistory(ctx context.Context, h lead.PriorityHistory, exec ...core.DBExecutor) (lead.PriorityHistory, error) {
	db := repo.getExec(exec)
	if h.ID == "" {
		h.ID = newID()
	}
	if h.ChangedAt.IsZero() {
		h.ChangedAt = core.Now()
	}
	q := db.Rebind(`INSERT INTO lead_priority_history (id, lead_id, from_priority, to_priority, changed_by, note, changed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := db.ExecContext(ctx, q,
		h.ID, h.LeadID, nullString(h.FromPriority), h.ToPriority, nullString(h.ChangedBy), nullString(h.Note), h.ChangedAt.UTC())
	if err != nil {
		return lead.PriorityHistory{}, errors.Wrap(err, "inserting priority history")
	}
	return h, nil
}

func (repo *leadRepository) QueryHistory(ctx context.Context, filter lead.HistoryFilter, scope *lead.Scope, exec ...core.DBExecutor) ([]lead.PriorityHistory, error) {
	db := repo.getExec(exec)

	var w where
	cond, args := leadScope(scope)
	w.add(cond, args...)
	if filter.LeadID != "" {
		w.add("h.lead_id = ?", filter.LeadID)
	}
	if filter.ProjectID != "" {
		w.add("l.project_id = ?", filter.ProjectID)
	}
	w.timeRange("h.changed_at", filter.ChangedFrom, filter.ChangedTo)

	q := db.Rebind("SELECT " + historyColumns + " FROM lead_priority_history h" +
		" JOIN leads l ON l.id = h.lead_id LEFT JOIN users a ON a.id = l.assigned_to" +
		w.String() + " ORDER BY h.changed_at ASC, CASE WHEN h.from_priority IS NULL THEN 0 ELSE 1 END ASC")
	var rows []historyRow
	if err := sqlx.SelectContext(ctx, db, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting priority history")
	}
	hist := make([]lead.PriorityHistory, 0, len(rows))
	for _, r := range rows {
		hist = append(hist, r.toHistory())
	}
	return hist, nil
}
