package echoapi

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/project"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/report"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/user"
)

type projectApi struct {
	auth    *authenticator
	svc     project.Service
	reports report.Service
}

func registerProjectAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, svc project.Service, reports report.Service) {
	api := projectApi{
		auth:    auth,
		svc:     svc,
		reports: reports,
	}
	superadmin := roleMiddleware(auth, user.RoleSuperadmin)

	pg := g.Group("/projects", jwt)
	pg.GET("", api.query)
	pg.POST("", api.create, superadmin)
	pg.GET("/:id", api.retrieve)
	pg.PUT("/:id", api.update, superadmin)
	pg.DELETE("/:id", api.destroy, superadmin)
	pg.GET("/:id/units", api.queryProjectUnits)
	pg.POST("/:id/units", api.createUnit, superadmin)

	ug := g.Group("/units", jwt)
	ug.GET("", api.queryUnits)
	ug.GET("/statuses", api.queryUnitStatuses)
	ug.GET("/export", api.exportUnits)
	ug.GET("/:id", api.retrieveUnit)
	ug.PUT("/:id", api.updateUnit, superadmin)
	ug.DELETE("/:id", api.destroyUnit, superadmin)
}

// Projects

func (api *projectApi) query(ctx echo.Context) error {
	var q projectQuery
	if err := bindQuery(ctx, &q); err != nil {
		return err
	}
	filter, err := q.filter()
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	ps, err := api.svc.QueryProjects(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying projects")
	}
	if ps == nil {
		ps = []project.Project{}
	}
	return ctx.JSON(http.StatusOK, ps)
}

func (api *projectApi) create(ctx echo.Context) error {
	actor, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	var data project.NewProject
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProject")
	}
	p, err := api.svc.CreateProject(ctx.Request().Context(), data, actor)
	if err != nil {
		return errors.Wrap(err, "creating project")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *projectApi) retrieve(ctx echo.Context) error {
	p, err := api.svc.GetProject(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding project")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *projectApi) update(ctx echo.Context) error {
	actor, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	var data project.UpdateProject
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProject")
	}
	p, err := api.svc.UpdateProject(ctx.Request().Context(), ctx.Param("id"), data, actor)
	if err != nil {
		return errors.Wrap(err, "updating project")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *projectApi) destroy(ctx echo.Context) error {
	actor, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteProject(ctx.Request().Context(), ctx.Param("id"), actor); err != nil {
		return errors.Wrap(err, "deleting project")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Units

func (api *projectApi) bindUnitFilter(ctx echo.Context) (*project.UnitFilter, error) {
	var q unitQuery
	if err := bindQuery(ctx, &q); err != nil {
		return nil, err
	}
	return q.filter()
}

func (api *projectApi) listUnits(ctx echo.Context, filter *project.UnitFilter) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	us, err := api.svc.QueryUnits(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying units")
	}
	if us == nil {
		us = []project.Unit{}
	}
	return ctx.JSON(http.StatusOK, us)
}

func (api *projectApi) queryUnits(ctx echo.Context) error {
	filter, err := api.bindUnitFilter(ctx)
	if err != nil {
		return err
	}
	return api.listUnits(ctx, filter)
}

func (api *projectApi) queryProjectUnits(ctx echo.Context) error {
	p, err := api.svc.GetProject(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding project")
	}
	filter, err := api.bindUnitFilter(ctx)
	if err != nil {
		return err
	}
	filter.ProjectID = p.ID
	return api.listUnits(ctx, filter)
}

func (api *projectApi) queryUnitStatuses(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, project.UnitStatuses)
}

func (api *projectApi) exportUnits(ctx echo.Context) error {
	filter, err := api.bindUnitFilter(ctx)
	if err != nil {
		return err
	}
	buf := new(bytes.Buffer)
	if err = api.reports.ExportUnits(ctx.Request().Context(), *filter, buf); err != nil {
		return errors.Wrap(err, "exporting units")
	}
	return attachment(ctx, "units.csv", mimeTextCSV, buf)
}

func (api *projectApi) createUnit(ctx echo.Context) error {
	actor, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	var data project.NewUnit
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUnit")
	}
	u, err := api.svc.CreateUnit(ctx.Request().Context(), ctx.Param("id"), data, actor)
	if err != nil {
		return errors.Wrap(err, "creating unit")
	}
	return ctx.JSON(http.StatusCreated, u)
}

func (api *projectApi) retrieveUnit(ctx echo.Context) error {
	u, err := api.svc.GetUnit(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding unit")
	}
	return ctx.JSON(http.StatusOK, u)
}

func (api *projectApi) updateUnit(ctx echo.Context) error {
	actor, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	var data project.UpdateUnit
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUnit")
	}
	u, err := api.svc.UpdateUnit(ctx.Request().Context(), ctx.Param("id"), data, actor)
	if err != nil {
		return errors.Wrap(err, "updating unit")
	}
	return ctx.JSON(http.StatusOK, u)
}

func (api *projectApi) destroyUnit(ctx echo.Context) error {
	actor, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteUnit(ctx.Request().Context(), ctx.Param("id"), actor); err != nil {
		return errors.Wrap(err, "deleting unit")
	}
	return ctx.NoContent(http.StatusNoContent)
}
