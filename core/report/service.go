package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/wcharczuk/go-chart/v2"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/lead"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/project"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/user"
)

type (
	Repository interface {
		// CountByPriority counts the leads matching filter within scope (nil: no restriction), per priority.
		CountByPriority(ctx context.Context, filter *Filter, scope *lead.Scope, exec ...core.DBExecutor) (map[string]int, error)
		// CountByAdvisor counts the assigned leads matching filter within scope, per assignee & priority.
		CountByAdvisor(ctx context.Context, filter *Filter, scope *lead.Scope, exec ...core.DBExecutor) ([]AdvisorCount, error)
		// QueryPriorityChanges returns the history rows changed within the filter's created range, oldest first.
		QueryPriorityChanges(ctx context.Context, filter *Filter, scope *lead.Scope, exec ...core.DBExecutor) ([]PriorityChange, error)
		ExportLeads(ctx context.Context, filter *lead.QueryFilter, scope *lead.Scope, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]LeadRow, error)
	}

	Service interface {
		Pipeline(ctx context.Context, filter Filter, actor user.User) (Pipeline, error)
		PipelineChart(ctx context.Context, filter Filter, actor user.User, w io.Writer) error
		Advisors(ctx context.Context, filter Filter, actor user.User) ([]AdvisorStats, error)
		PriorityChanges(ctx context.Context, filter Filter, actor user.User) ([]PriorityChange, error)
		ExportLeads(ctx context.Context, filter ExportFilter, actor user.User, w io.Writer) error
		ExportUnits(ctx context.Context, filter project.UnitFilter, w io.Writer) error
	}

	service struct {
		repo     Repository
		userSvc  user.Service
		projects project.Repository
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository, userSvc user.Service, projects project.Repository) Service {
	return &service{repo: repo, userSvc: userSvc, projects: projects}
}

func (svc *service) Pipeline(ctx context.Context, filter Filter, actor user.User) (Pipeline, error) {
	filter.Clean()
	scope := lead.ScopeOf(actor)
	counts, err := svc.repo.CountByPriority(ctx, &filter, &scope)
	if err != nil {
		return Pipeline{}, errors.Wrap(err, "counting leads by priority")
	}

	p := Pipeline{Stages: make([]PipelineStage, 0, len(lead.Priorities))}
	for _, prio := range lead.Priorities {
		cnt := counts[prio.Value]
		p.Stages = append(p.Stages, PipelineStage{Priority: prio.Value, Name: prio.Name, Count: cnt})
		p.Total += cnt
	}
	return p, nil
}

func (svc *service) PipelineChart(ctx context.Context, filter Filter, actor user.User, w io.Writer) error {
	p, err := svc.Pipeline(ctx, filter, actor)
	if err != nil {
		return err
	}

	bars := make([]chart.Value, 0, len(p.Stages))
	maxVal := 0
	for _, s := range p.Stages {
		if s.Count > maxVal {
			maxVal = s.Count
		}
		bars = append(bars, chart.Value{Value: float64(s.Count), Label: s.Name})
	}
	// go-chart rejects an empty range
	yMax := float64(maxVal)
	if yMax <= 0 {
		yMax = 1
	}
	graph := chart.BarChart{
		Title:    "Lead pipeline",
		Width:    900,
		Height:   500,
		BarWidth: 80,
		Background: chart.Style{Padding: chart.Box{
			Top:    50,
			Left:   16,
			Right:  16,
			Bottom: 0,
		}},
		YAxis: chart.YAxis{Range: &chart.ContinuousRange{Min: 0, Max: yMax}},
		Bars:  bars,
	}

	buf := bytes.NewBuffer(nil)
	if err = graph.Render(chart.PNG, buf); err != nil {
		return errors.Wrap(err, "rendering pipeline chart")
	}
	_, err = buf.WriteTo(w)
	return errors.Wrap(err, "writing pipeline chart")
}

func (svc *service) Advisors(ctx context.Context, filter Filter, actor user.User) ([]AdvisorStats, error) {
	filter.Clean()
	has, err := svc.userSvc.Query(ctx, &user.QueryFilter{Roles: []string{user.RoleHA}}, []core.DBOrdering{{Field: "name", Ascending: true}}, actor)
	if err != nil {
		return nil, errors.Wrap(err, "querying housing advisors")
	}
	scope := lead.ScopeOf(actor)
	counts, err := svc.repo.CountByAdvisor(ctx, &filter, &scope)
	if err != nil {
		return nil, errors.Wrap(err, "counting leads by advisor")
	}

	stats := make([]AdvisorStats, len(has))
	idx := make(map[string]int, len(has))
	for i, ha := range has {
		stats[i] = AdvisorStats{
			UserID:     ha.ID,
			Name:       ha.Name,
			ManagerID:  ha.ManagerID,
			SpvID:      ha.SpvID,
			ByPriority: make(map[string]int, len(lead.AllPriorities)),
		}
		for _, p := range lead.AllPriorities {
			stats[i].ByPriority[p] = 0
		}
		idx[ha.ID] = i
	}
	for _, c := range counts {
		i, ok := idx[c.UserID]
		if !ok {
			continue // not one of the actor's advisors
		}
		stats[i].ByPriority[c.Priority] += c.Count
		stats[i].Total += c.Count
	}
	for i := range stats {
		if stats[i].Total > 0 {
			stats[i].ClosingRate = float64(stats[i].ByPriority[lead.PriorityClosing]) / float64(stats[i].Total)
		}
	}
	return stats, nil
}

func (svc *service) PriorityChanges(ctx context.Context, filter Filter, actor user.User) ([]PriorityChange, error) {
	filter.Clean()
	scope := lead.ScopeOf(actor)
	changes, err := svc.repo.QueryPriorityChanges(ctx, &filter, &scope)
	return changes, errors.Wrap(err, "querying priority changes")
}

var leadsHeader = []string{
	"id", "name", "phone", "email", "source", "priority", "project", "unit",
	"assigned_to", "assignee", "notes", "priority_changed_at", "created_at", "updated_at",
}

func (svc *service) ExportLeads(ctx context.Context, filter ExportFilter, actor user.User, w io.Writer) error {
	filter.Leads.Clean()
	scope := lead.ScopeOf(actor)
	rows, err := svc.repo.ExportLeads(ctx, &filter.Leads, &scope, filter.Ordering)
	if err != nil {
		return errors.Wrap(err, "querying leads")
	}

	cw := csv.NewWriter(w)
	if err = cw.Write(leadsHeader); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for _, r := range rows {
		rec := []string{
			r.ID, r.Name, r.Phone, r.Email, r.Source, r.Priority, r.ProjectName, r.UnitCode,
			r.AssignedTo, r.AssigneeName, r.Notes,
			formatTime(r.PriorityChangedAt), formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
		}
		if err = cw.Write(rec); err != nil {
			return errors.Wrap(err, "writing lead")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing leads")
}

var unitsHeader = []string{
	"id", "project", "code", "unit_type", "floor", "area", "price", "status", "booked_by_lead_id", "created_at", "updated_at",
}

func (svc *service) ExportUnits(ctx context.Context, filter project.UnitFilter, w io.Writer) error {
	projects, err := svc.projects.QueryProjects(ctx, nil, nil)
	if err != nil {
		return errors.Wrap(err, "querying projects")
	}
	names := make(map[string]string, len(projects))
	for _, p := range projects {
		names[p.ID] = p.Name
	}

	units, err := svc.projects.QueryUnits(ctx, &filter, []core.DBOrdering{{Field: "project_id", Ascending: true}, {Field: "code", Ascending: true}})
	if err != nil {
		return errors.Wrap(err, "querying units")
	}

	cw := csv.NewWriter(w)
	if err = cw.Write(unitsHeader); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for _, u := range units {
		rec := []string{
			u.ID, names[u.ProjectID], u.Code, u.UnitType,
			strconv.Itoa(u.Floor),
			strconv.FormatFloat(u.Area, 'f', -1, 64),
			strconv.FormatInt(u.Price, 10),
			u.Status, u.BookedByLeadID,
			formatTime(u.CreatedAt), formatTime(u.UpdatedAt),
		}
		if err = cw.Write(rec); err != nil {
			return errors.Wrap(err, "writing unit")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing units")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
