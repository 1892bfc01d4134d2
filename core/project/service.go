package project

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/user"
)

var (
	// errors
	ErrNotFound        = errors.New("project not found")
	ErrNameExists      = errors.New("a project with this name already exists")
	ErrUnitNotFound    = errors.New("unit not found")
	ErrUnitCodeExists  = errors.New("a unit with this code already exists in the project")
	ErrUnitUnavailable = errors.New("unit is not available")

	errProjectHasUnits = "project still has units"
	errUnitHeld        = "unit is held by a lead"
)

type (
	Repository interface {
		CreateProject(ctx context.Context, p Project, exec ...core.DBExecutor) (Project, error)
		GetProject(ctx context.Context, id string, exec ...core.DBExecutor) (Project, error)
		GetProjectByName(ctx context.Context, name string, exec ...core.DBExecutor) (Project, error)
		QueryProjects(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Project, error)
		UpdateProject(ctx context.Context, p Project, exec ...core.DBExecutor) (Project, error)
		DeleteProject(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateUnit(ctx context.Context, u Unit, exec ...core.DBExecutor) (Unit, error)
		GetUnit(ctx context.Context, id string, exec ...core.DBExecutor) (Unit, error)
		GetUnitByCode(ctx context.Context, projectID, code string, exec ...core.DBExecutor) (Unit, error)
		QueryUnits(ctx context.Context, filter *UnitFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Unit, error)
		CountUnits(ctx context.Context, projectID string, exec ...core.DBExecutor) (int, error)
		UpdateUnit(ctx context.Context, u Unit, exec ...core.DBExecutor) (Unit, error)
		// HoldUnit gives the unit status to leadID if it is available or already booked by that lead.
		// It reports false when nothing was updated.
		HoldUnit(ctx context.Context, id, status, leadID string, exec ...core.DBExecutor) (bool, error)
		// ReleaseUnit makes the unit available if it is booked by leadID.
		ReleaseUnit(ctx context.Context, id, leadID string, exec ...core.DBExecutor) (bool, error)
		// SetUnitStatus changes the status of a unit no lead holds.
		SetUnitStatus(ctx context.Context, id, status string, exec ...core.DBExecutor) (bool, error)
		DeleteUnit(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service interface {
		CreateProject(ctx context.Context, np NewProject, actor user.User) (Project, error)
		QueryProjects(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Project, error)
		GetProject(ctx context.Context, id string) (Project, error)
		UpdateProject(ctx context.Context, id string, up UpdateProject, actor user.User) (Project, error)
		DeleteProject(ctx context.Context, id string, actor user.User) error

		CreateUnit(ctx context.Context, projectID string, nu NewUnit, actor user.User) (Unit, error)
		QueryUnits(ctx context.Context, filter *UnitFilter, ordering []core.DBOrdering) ([]Unit, error)
		GetUnit(ctx context.Context, id string) (Unit, error)
		UpdateUnit(ctx context.Context, id string, uu UpdateUnit, actor user.User) (Unit, error)
		DeleteUnit(ctx context.Context, id string, actor user.User) error
	}

	service struct {
		repo     Repository
		validate *validator.Validate
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository, validate *validator.Validate) Service {
	return &service{repo: repo, validate: validate}
}

// inventory is managed by superadmins only
func canManage(actor user.User) bool {
	return actor.IsSuperadmin() && actor.Active()
}

func (svc *service) checkName(ctx context.Context, name, exclID string) error {
	p, err := svc.repo.GetProjectByName(ctx, name)
	switch {
	case errors.Cause(err) == ErrNotFound:
		return nil
	case err != nil:
		return errors.Wrap(err, "finding project by name")
	case p.ID != exclID:
		return core.NewFieldError("name", ErrNameExists.Error())
	}
	return nil
}

func (svc *service) checkUnitCode(ctx context.Context, projectID, code, exclID string) error {
	u, err := svc.repo.GetUnitByCode(ctx, projectID, code)
	switch {
	case errors.Cause(err) == ErrUnitNotFound:
		return nil
	case err != nil:
		return errors.Wrap(err, "finding unit by code")
	case u.ID != exclID:
		return core.NewFieldError("code", ErrUnitCodeExists.Error())
	}
	return nil
}

func (svc *service) CreateProject(ctx context.Context, np NewProject, actor user.User) (Project, error) {
	if !canManage(actor) {
		return Project{}, core.ErrForbidden
	}
	np.Clean()
	if err := svc.validate.Struct(np); err != nil {
		return Project{}, err
	}
	if err := svc.checkName(ctx, np.Name, ""); err != nil {
		return Project{}, err
	}

	now := core.Now()
	p := Project{
		Name:        np.Name,
		Location:    np.Location,
		Description: np.Description,
		IsActive:    np.IsActive == nil || *np.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	p, err := svc.repo.CreateProject(ctx, p)
	return p, errors.Wrap(err, "creating project")
}

func (svc *service) QueryProjects(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Project, error) {
	ps, err := svc.repo.QueryProjects(ctx, filter, ordering)
	return ps, errors.Wrap(err, "querying projects")
}

func (svc *service) GetProject(ctx context.Context, id string) (Project, error) {
	return svc.repo.GetProject(ctx, id)
}

func (svc *service) UpdateProject(ctx context.Context, id string, up UpdateProject, actor user.User) (Project, error) {
	if !canManage(actor) {
		return Project{}, core.ErrForbidden
	}
	p, err := svc.repo.GetProject(ctx, id)
	if err != nil {
		return Project{}, err
	}
	up.Clean()
	if err = svc.validate.Struct(up); err != nil {
		return Project{}, err
	}

	if up.Name != "" && up.Name != p.Name {
		if err = svc.checkName(ctx, up.Name, p.ID); err != nil {
			return Project{}, err
		}
		p.Name = up.Name
	}
	if up.Location != nil {
		p.Location = core.CleanString(*up.Location)
	}
	if up.Description != nil {
		p.Description = core.CleanString(*up.Description)
	}
	if up.IsActive != nil {
		p.IsActive = *up.IsActive
	}
	p.UpdatedAt = core.Now()

	p, err = svc.repo.UpdateProject(ctx, p)
	return p, errors.Wrap(err, "updating project")
}

func (svc *service) DeleteProject(ctx context.Context, id string, actor user.User) error {
	if !canManage(actor) {
		return core.ErrForbidden
	}
	if _, err := svc.repo.GetProject(ctx, id); err != nil {
		return err
	}
	cnt, err := svc.repo.CountUnits(ctx, id)
	if err != nil {
		return errors.Wrap(err, "counting units")
	}
	if cnt > 0 {
		return core.NewValidationError(errors.New(errProjectHasUnits))
	}
	return errors.Wrap(svc.repo.DeleteProject(ctx, id), "deleting project")
}

func (svc *service) CreateUnit(ctx context.Context, projectID string, nu NewUnit, actor user.User) (Unit, error) {
	if !canManage(actor) {
		return Unit{}, core.ErrForbidden
	}
	if _, err := svc.repo.GetProject(ctx, projectID); err != nil {
		return Unit{}, err
	}
	nu.Clean()
	if err := svc.validate.Struct(nu); err != nil {
		return Unit{}, err
	}
	if err := svc.checkUnitCode(ctx, projectID, nu.Code, ""); err != nil {
		return Unit{}, err
	}

	now := core.Now()
	u := Unit{
		ProjectID: projectID,
		Code:      nu.Code,
		UnitType:  nu.UnitType,
		Floor:     nu.Floor,
		Area:      nu.Area,
		Price:     nu.Price,
		Status:    UnitAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}
	u, err := svc.repo.CreateUnit(ctx, u)
	return u, errors.Wrap(err, "creating unit")
}

func (svc *service) QueryUnits(ctx context.Context, filter *UnitFilter, ordering []core.DBOrdering) ([]Unit, error) {
	us, err := svc.repo.QueryUnits(ctx, filter, ordering)
	return us, errors.Wrap(err, "querying units")
}

func (svc *service) GetUnit(ctx context.Context, id string) (Unit, error) {
	return svc.repo.GetUnit(ctx, id)
}

func (svc *service) UpdateUnit(ctx context.Context, id string, uu UpdateUnit, actor user.User) (Unit, error) {
	if !canManage(actor) {
		return Unit{}, core.ErrForbidden
	}
	u, err := svc.repo.GetUnit(ctx, id)
	if err != nil {
		return Unit{}, err
	}
	uu.Clean()
	if err = svc.validate.Struct(uu); err != nil {
		return Unit{}, err
	}

	if uu.Code != "" && uu.Code != u.Code {
		if err = svc.checkUnitCode(ctx, u.ProjectID, uu.Code, u.ID); err != nil {
			return Unit{}, err
		}
		u.Code = uu.Code
	}
	if uu.UnitType != nil {
		u.UnitType = core.CleanString(*uu.UnitType)
	}
	if uu.Floor != nil {
		u.Floor = *uu.Floor
	}
	if uu.Area != nil {
		u.Area = *uu.Area
	}
	if uu.Price != nil {
		u.Price = *uu.Price
	}
	if uu.Status != "" && uu.Status != u.Status {
		// a unit held by a lead follows that lead's pipeline
		ok, err := svc.repo.SetUnitStatus(ctx, u.ID, uu.Status)
		if err != nil {
			return Unit{}, err
		}
		if !ok {
			return Unit{}, core.NewFieldError("status", errUnitHeld)
		}
	}
	u.UpdatedAt = core.Now()

	if _, err = svc.repo.UpdateUnit(ctx, u); err != nil {
		return Unit{}, errors.Wrap(err, "updating unit")
	}
	return svc.repo.GetUnit(ctx, u.ID)
}

func (svc *service) DeleteUnit(ctx context.Context, id string, actor user.User) error {
	if !canManage(actor) {
		return core.ErrForbidden
	}
	u, err := svc.repo.GetUnit(ctx, id)
	if err != nil {
		return err
	}
	if u.Status != UnitAvailable || u.BookedByLeadID != "" {
		return core.NewValidationError(ErrUnitUnavailable)
	}
	return errors.Wrap(svc.repo.DeleteUnit(ctx, id), "deleting unit")
}
