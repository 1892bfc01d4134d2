package lead

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/project"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("lead not found")

	errInvalidProject   = "invalid project"
	errInvalidUnit      = "invalid unit"
	errUnitNotInProject = "unit does not belong to this project"
	errClosedUnit       = "the unit of a closed lead cannot change"
	errInvalidAssignee  = "invalid housing advisor"
	errCannotAssignTo   = "cannot assign leads to this user"
)

type (
	Repository interface {
		CreateLead(ctx context.Context, l Lead, exec ...core.DBExecutor) (Lead, error)
		// GetLead returns the lead with its assignee's name & hierarchy.
		GetLead(ctx context.Context, id string, exec ...core.DBExecutor) (Lead, error)
		// QueryLeads returns one page of the leads matching filter within scope (nil: no restriction),
		// along with the total count of matching leads.
		QueryLeads(ctx context.Context, filter *QueryFilter, scope *Scope, ordering []core.DBOrdering, page core.Page, exec ...core.DBExecutor) ([]Lead, int, error)
		UpdateLead(ctx context.Context, l Lead, exec ...core.DBExecutor) error
		DeleteLead(ctx context.Context, id string, exec ...core.DBExecutor) error

		AddHistory(ctx context.Context, h PriorityHistory, exec ...core.DBExecutor) (PriorityHistory, error)
		// QueryHistory returns the priority changes matching filter, oldest first.
		QueryHistory(ctx context.Context, filter HistoryFilter, scope *Scope, exec ...core.DBExecutor) ([]PriorityHistory, error)
	}

	Service interface {
		Create(ctx context.Context, nl NewLead, actor user.User) (Lead, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page, actor user.User) ([]Lead, int, error)
		Get(ctx context.Context, id string, actor user.User) (Lead, error)
		Update(ctx context.Context, id string, ul UpdateLead, actor user.User) (Lead, error)
		Assign(ctx context.Context, id, haID string, actor user.User) (Lead, error)
		Delete(ctx context.Context, id string, actor user.User) error
		History(ctx context.Context, id string, actor user.User) ([]PriorityHistory, error)
	}

	ServiceDeps struct {
		DB        core.DB
		Repo      Repository
		UserSvc   user.Service
		Units     project.Repository
		MailSvc   core.EmailService
		Publisher Publisher // optional
		Metrics   Metrics   // optional
		Logger    core.Logger
		Validate  *validator.Validate
	}

	service struct {
		ServiceDeps
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(deps ServiceDeps) Service {
	if deps.Publisher == nil {
		deps.Publisher = noopPublisher{}
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	return &service{ServiceDeps: deps}
}

func (svc *service) Create(ctx context.Context, nl NewLead, actor user.User) (Lead, error) {
	if !actor.Active() {
		return Lead{}, core.ErrForbidden
	}
	nl.Clean()
	if err := svc.Validate.Struct(nl); err != nil {
		return Lead{}, err
	}

	l := Lead{
		Name:      nl.Name,
		Phone:     nl.Phone,
		Email:     nl.Email,
		Source:    nl.Source,
		Priority:  nl.Priority,
		ProjectID: nl.ProjectID,
		UnitID:    nl.UnitID,
		Notes:     nl.Notes,
		CreatedBy: actor.ID,
	}

	// a new lead joins its creator's branch of the hierarchy
	switch actor.Role {
	case user.RoleManager:
		l.ManagerID = actor.ID
	case user.RoleSpv:
		l.SpvID = actor.ID
		l.ManagerID = actor.ManagerID
	case user.RoleHA:
		l.AssignedTo = actor.ID
		l.SpvID = actor.SpvID
		l.ManagerID = actor.ManagerID
	}

	var assignee user.User
	if nl.AssignedTo != "" && !actor.IsHA() {
		var err error
		if assignee, err = svc.findAssignee(ctx, actor, nl.AssignedTo); err != nil {
			return Lead{}, err
		}
		l.AssignedTo = assignee.ID
		l.SpvID = assignee.SpvID
		l.ManagerID = assignee.ManagerID
	}

	if err := svc.checkInventory(ctx, &l); err != nil {
		return Lead{}, err
	}

	now := core.Now()
	l.CreatedAt = now
	l.UpdatedAt = now
	l.PriorityChangedAt = now

	err := core.RunInTx(ctx, svc.DB, func(tx core.DBExecutor) error {
		var err error
		if l, err = svc.Repo.CreateLead(ctx, l, tx); err != nil {
			return errors.Wrap(err, "creating lead")
		}
		if err = svc.syncUnit(ctx, Lead{}, l, tx); err != nil {
			return err
		}
		_, err = svc.Repo.AddHistory(ctx, PriorityHistory{
			LeadID:     l.ID,
			ToPriority: l.Priority,
			ChangedBy:  actor.ID,
			ChangedAt:  now,
		}, tx)
		return errors.Wrap(err, "adding priority history")
	})
	if err != nil {
		return Lead{}, err
	}

	if l, err = svc.Repo.GetLead(ctx, l.ID); err != nil {
		return Lead{}, errors.Wrap(err, "reloading lead")
	}

	svc.Metrics.LeadCreated(l.Source)
	svc.publish(ctx, Event{Type: EventCreated, LeadID: l.ID, ActorID: actor.ID, ToPriority: l.Priority, AssignedTo: l.AssignedTo, OccurredAt: now})
	if assignee.ID != "" {
		svc.Metrics.LeadAssigned()
		svc.sendAssignmentMail(l, assignee, actor)
	}
	return l, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page, actor user.User) ([]Lead, int, error) {
	scope := ScopeOf(actor)
	leads, total, err := svc.Repo.QueryLeads(ctx, filter, &scope, ordering, page)
	return leads, total, errors.Wrap(err, "querying leads")
}

// Get returns the lead if actor may see it, ErrNotFound otherwise.
func (svc *service) Get(ctx context.Context, id string, actor user.User) (Lead, error) {
	l, err := svc.Repo.GetLead(ctx, id)
	if err != nil {
		return Lead{}, err
	}
	if !Visible(l, actor) {
		return Lead{}, ErrNotFound
	}
	return l, nil
}

func (svc *service) Update(ctx context.Context, id string, ul UpdateLead, actor user.User) (Lead, error) {
	l, err := svc.Get(ctx, id, actor)
	if err != nil {
		return Lead{}, err
	}
	old := l

	ul.Clean()
	if err = svc.Validate.Struct(ul); err != nil {
		return Lead{}, err
	}

	if ul.Name != "" {
		l.Name = ul.Name
	}
	if ul.Phone != "" {
		l.Phone = ul.Phone
	}
	if ul.Email != nil {
		l.Email = *ul.Email
	}
	if ul.Source != "" {
		l.Source = ul.Source
	}
	if ul.Notes != nil {
		l.Notes = *ul.Notes
	}
	if ul.ProjectID != nil {
		l.ProjectID = *ul.ProjectID
	}
	if ul.UnitID != nil {
		l.UnitID = *ul.UnitID
	}

	priorityChanged := ul.Priority != "" && ul.Priority != l.Priority
	if priorityChanged {
		if !CanTransition(l.Priority, ul.Priority) {
			return Lead{}, core.NewFieldError("priority", fmt.Sprintf(
				"%s: cannot move from %s to %s", ErrInvalidTransition, PriorityName(l.Priority), PriorityName(ul.Priority)))
		}
		l.Priority = ul.Priority
	}

	if old.Priority == PriorityClosing && (l.UnitID != old.UnitID || l.ProjectID != old.ProjectID) {
		return Lead{}, core.NewFieldError("unit_id", errClosedUnit)
	}
	if l.UnitID != old.UnitID || l.ProjectID != old.ProjectID || priorityChanged {
		if err = svc.checkInventory(ctx, &l); err != nil {
			return Lead{}, err
		}
	}

	now := core.Now()
	l.UpdatedAt = now
	if priorityChanged {
		l.PriorityChangedAt = now
	}

	err = core.RunInTx(ctx, svc.DB, func(tx core.DBExecutor) error {
		if err := svc.Repo.UpdateLead(ctx, l, tx); err != nil {
			return errors.Wrap(err, "updating lead")
		}
		if err := svc.syncUnit(ctx, old, l, tx); err != nil {
			return err
		}
		if !priorityChanged {
			return nil
		}
		_, err := svc.Repo.AddHistory(ctx, PriorityHistory{
			LeadID:       l.ID,
			FromPriority: old.Priority,
			ToPriority:   l.Priority,
			ChangedBy:    actor.ID,
			Note:         ul.PriorityNote,
			ChangedAt:    now,
		}, tx)
		return errors.Wrap(err, "adding priority history")
	})
	if err != nil {
		return Lead{}, err
	}

	if l, err = svc.Repo.GetLead(ctx, l.ID); err != nil {
		return Lead{}, errors.Wrap(err, "reloading lead")
	}
	if priorityChanged {
		svc.Metrics.PriorityChanged(old.Priority, l.Priority)
		svc.publish(ctx, Event{
			Type: EventPriorityChanged, LeadID: l.ID, ActorID: actor.ID,
			FromPriority: old.Priority, ToPriority: l.Priority, OccurredAt: now,
		})
	}
	return l, nil
}

func (svc *service) Assign(ctx context.Context, id, haID string, actor user.User) (Lead, error) {
	l, err := svc.Get(ctx, id, actor)
	if err != nil {
		return Lead{}, err
	}
	if !CanAssign(actor) {
		return Lead{}, core.ErrForbidden
	}
	if haID == l.AssignedTo {
		return l, nil
	}

	var ha user.User
	if haID == "" {
		l.AssignedTo = ""
	} else {
		if ha, err = svc.findAssignee(ctx, actor, haID); err != nil {
			return Lead{}, err
		}
		l.AssignedTo = ha.ID
		l.SpvID = ha.SpvID
		l.ManagerID = ha.ManagerID
	}
	now := core.Now()
	l.UpdatedAt = now

	if err = svc.Repo.UpdateLead(ctx, l); err != nil {
		return Lead{}, errors.Wrap(err, "updating lead")
	}
	if l, err = svc.Repo.GetLead(ctx, l.ID); err != nil {
		return Lead{}, errors.Wrap(err, "reloading lead")
	}

	svc.publish(ctx, Event{Type: EventAssigned, LeadID: l.ID, ActorID: actor.ID, AssignedTo: l.AssignedTo, OccurredAt: now})
	if ha.ID != "" {
		svc.Metrics.LeadAssigned()
		svc.sendAssignmentMail(l, ha, actor)
	}
	return l, nil
}

func (svc *service) Delete(ctx context.Context, id string, actor user.User) error {
	l, err := svc.Get(ctx, id, actor)
	if err != nil {
		return err
	}
	if !CanDelete(actor) {
		return core.ErrForbidden
	}

	err = core.RunInTx(ctx, svc.DB, func(tx core.DBExecutor) error {
		if l.Priority == PriorityBooking && l.UnitID != "" {
			if err := project.ReleaseUnit(ctx, svc.Units, l.UnitID, l.ID, tx); err != nil {
				return err
			}
		}
		return errors.Wrap(svc.Repo.DeleteLead(ctx, l.ID, tx), "deleting lead")
	})
	if err != nil {
		return err
	}
	svc.publish(ctx, Event{Type: EventDeleted, LeadID: l.ID, ActorID: actor.ID, OccurredAt: core.Now()})
	return nil
}

func (svc *service) History(ctx context.Context, id string, actor user.User) ([]PriorityHistory, error) {
	if _, err := svc.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	hist, err := svc.Repo.QueryHistory(ctx, HistoryFilter{LeadID: id}, nil)
	return hist, errors.Wrap(err, "querying priority history")
}

func (svc *service) findAssignee(ctx context.Context, actor user.User, haID string) (user.User, error) {
	ha, err := svc.UserSvc.GetByID(ctx, haID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, core.NewFieldError("assigned_to", errInvalidAssignee)
		}
		return user.User{}, errors.Wrap(err, "finding housing advisor")
	}
	if !user.CanAssignTo(actor, ha) {
		return user.User{}, core.NewFieldError("assigned_to", errCannotAssignTo)
	}
	return ha, nil
}

// checkInventory checks the project & unit of l, filling the project from the unit when missing.
func (svc *service) checkInventory(ctx context.Context, l *Lead) error {
	if l.ProjectID != "" {
		if _, err := svc.Units.GetProject(ctx, l.ProjectID); err != nil {
			if errors.Cause(err) == project.ErrNotFound {
				return core.NewFieldError("project_id", errInvalidProject)
			}
			return errors.Wrap(err, "finding project")
		}
	}
	if l.UnitID != "" {
		u, err := svc.Units.GetUnit(ctx, l.UnitID)
		if err != nil {
			if errors.Cause(err) == project.ErrUnitNotFound {
				return core.NewFieldError("unit_id", errInvalidUnit)
			}
			return errors.Wrap(err, "finding unit")
		}
		if l.ProjectID == "" {
			l.ProjectID = u.ProjectID
		} else if u.ProjectID != l.ProjectID {
			return core.NewFieldError("unit_id", errUnitNotInProject)
		}
	}
	if HoldsUnit(l.Priority) && l.UnitID == "" {
		return core.NewFieldError("unit_id", ErrUnitRequired.Error())
	}
	return nil
}

// syncUnit keeps the unit stock in line with a lead moving from old to cur:
// booking books the unit, closing sells it, leaving booking releases it.
func (svc *service) syncUnit(ctx context.Context, old, cur Lead, tx core.DBExecutor) error {
	if old.Priority == PriorityBooking && old.UnitID != "" && (!HoldsUnit(cur.Priority) || cur.UnitID != old.UnitID) {
		if err := project.ReleaseUnit(ctx, svc.Units, old.UnitID, cur.ID, tx); err != nil {
			return err
		}
	}

	switch cur.Priority {
	case PriorityBooking:
		if old.Priority != PriorityBooking || old.UnitID != cur.UnitID {
			return project.BookUnit(ctx, svc.Units, cur.UnitID, cur.ID, tx)
		}
	case PriorityClosing:
		if old.Priority != PriorityClosing {
			return project.SellUnit(ctx, svc.Units, cur.UnitID, cur.ID, tx)
		}
	}
	return nil
}

func (svc *service) publish(ctx context.Context, evt Event) {
	if err := svc.Publisher.Publish(ctx, evt); err != nil {
		svc.Logger.Warn(fmt.Sprintf("publishing %s: %v", evt.Type, err), err)
	}
}

func (svc *service) sendAssignmentMail(l Lead, ha, actor user.User) {
	if ha.Email == "" {
		return
	}
	svc.MailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: ha.Name, Address: ha.Email}},
		Subject:      "New lead assigned to you",
		TemplateName: "lead_assigned",
		TemplateData: map[string]interface{}{
			"Name":       ha.Name,
			"LeadID":     l.ID,
			"LeadName":   l.Name,
			"LeadPhone":  l.Phone,
			"Priority":   PriorityName(l.Priority),
			"AssignedBy": actor.Name,
		},
	})
}
