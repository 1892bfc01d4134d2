package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/lead"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/report"
)

type reportRepository struct {
	baseRepository
}

var _ report.Repository = (*reportRepository)(nil) // interface compliance check

func NewReportRepository(db core.DBExecutor) *reportRepository {
	return &reportRepository{baseRepository{db: db}}
}

// reportWhere filters leads `l` on the report filter, created range on dateCol.
func reportWhere(filter *report.Filter, scope *lead.Scope, dateCol string) where {
	var w where
	cond, args := leadScope(scope)
	w.add(cond, args...)
	if filter == nil {
		return w
	}
	if filter.ProjectID != "" {
		w.add("l.project_id = ?", filter.ProjectID)
	}
	if filter.Source != "" {
		w.add("l.source = ?", filter.Source)
	}
	w.timeRange(dateCol, filter.CreatedFrom, filter.CreatedTo)
	return w
}

func (repo *reportRepository) CountByPriority(ctx context.Context, filter *report.Filter, scope *lead.Scope, exec ...core.DBExecutor) (map[string]int, error) {
	db := repo.getExec(exec)
	w := reportWhere(filter, scope, "l.created_at")

	var rows []struct {
		Priority string `db:"priority"`
		Count    int    `db:"cnt"`
	}
	q := db.Rebind("SELECT l.priority AS priority, COUNT(*) AS cnt" + leadsFrom + w.String() + " GROUP BY l.priority")
	if err := sqlx.SelectContext(ctx, db, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "counting leads by priority")
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Priority] = r.Count
	}
	return counts, nil
}

func (repo *reportRepository) CountByAdvisor(ctx context.Context, filter *report.Filter, scope *lead.Scope, exec ...core.DBExecutor) ([]report.AdvisorCount, error) {
	db := repo.getExec(exec)
	w := reportWhere(filter, scope, "l.created_at")
	w.add("l.assigned_to IS NOT NULL")

	var rows []struct {
		UserID   string `db:"user_id"`
		Priority string `db:"priority"`
		Count    int    `db:"cnt"`
	}
	q := db.Rebind("SELECT l.assigned_to AS user_id, l.priority AS priority, COUNT(*) AS cnt" + leadsFrom + w.String() +
		" GROUP BY l.assigned_to, l.priority")
	if err := sqlx.SelectContext(ctx, db, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "counting leads by advisor")
	}
	counts := make([]report.AdvisorCount, 0, len(rows))
	for _, r := range rows {
		counts = append(counts, report.AdvisorCount{UserID: r.UserID, Priority: r.Priority, Count: r.Count})
	}
	return counts, nil
}

func (repo *reportRepository) QueryPriorityChanges(ctx context.Context, filter *report.Filter, scope *lead.Scope, exec ...core.DBExecutor) ([]report.PriorityChange, error) {
	db := repo.getExec(exec)
	w := reportWhere(filter, scope, "h.changed_at")

	var rows []struct {
		historyRow
		LeadName      string `db:"lead_name"`
		ChangedByName string `db:"changed_by_name"`
	}
	q := db.Rebind("SELECT " + historyColumns + ", l.name AS lead_name, COALESCE(c.name, '') AS changed_by_name" +
		" FROM lead_priority_history h JOIN leads l ON l.id = h.lead_id" +
		" LEFT JOIN users a ON a.id = l.assigned_to LEFT JOIN users c ON c.id = h.changed_by" +
		w.String() + " ORDER BY h.changed_at ASC, CASE WHEN h.from_priority IS NULL THEN 0 ELSE 1 END ASC")
	if err := sqlx.SelectContext(ctx, db, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting priority changes")
	}
	changes := make([]report.PriorityChange, 0, len(rows))
	for _, r := range rows {
		changes = append(changes, report.PriorityChange{
			PriorityHistory: r.toHistory(),
			LeadName:        r.LeadName,
			ChangedByName:   r.ChangedByName,
		})
	}
	return changes, nil
}

func (repo *reportRepository) ExportLeads(ctx context.Context, filter *lead.QueryFilter, scope *lead.Scope, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]report.LeadRow, error) {
	db := repo.getExec(exec)
	w, err := leadWhere(filter, scope)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		leadRow
		ProjectName null.String `db:"project_name"`
		UnitCode    null.String `db:"unit_code"`
	}
	q := db.Rebind("SELECT " + leadColumns + ", p.name AS project_name, u.code AS unit_code" + leadsFrom +
		" LEFT JOIN projects p ON p.id = l.project_id LEFT JOIN units u ON u.id = l.unit_id" +
		w.String() + orderBy(ordering, leadOrderings, "l.created_at ASC"))
	if err = sqlx.SelectContext(ctx, db, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting leads")
	}
	out := make([]report.LeadRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, report.LeadRow{Lead: r.toLead(), ProjectName: r.ProjectName.String, UnitCode: r.UnitCode.String})
	}
	return out, nil
}
