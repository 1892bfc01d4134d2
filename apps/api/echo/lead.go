package echoapi

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/lead"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/report"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/user"
)

const mimeTextCSV = "text/csv; charset=utf-8"

type leadApi struct {
	auth       *authenticator
	svc        lead.Service
	reports    report.Service
	pagination core.PaginationConfig
}

func registerLeadAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authenticator,
	svc lead.Service,
	reports report.Service,
	pagination core.PaginationConfig,
) {
	api := leadApi{
		auth:       auth,
		svc:        svc,
		reports:    reports,
		pagination: pagination,
	}

	lg := g.Group("/leads", jwt)
	lg.GET("/priorities", api.queryPriorities)
	lg.GET("/sources", api.querySources)
	lg.GET("/export", api.export)
	lg.GET("", api.query)
	lg.POST("", api.create)

	lg.GET("/:id", api.retrieve)
	lg.PUT("/:id", api.update)
	lg.DELETE("/:id", api.destroy, roleMiddleware(auth, user.RoleSuperadmin, user.RoleManager))
	lg.PUT("/:id/assign", api.assign, roleMiddleware(auth, user.RoleSuperadmin, user.RoleManager, user.RoleSpv))
	lg.GET("/:id/history", api.history)
}

// PriorityChoice is a pipeline stage along with the stages a lead may move to from it.
type PriorityChoice struct {
	lead.Choice
	Next []string `json:"next"`
}

func (api *leadApi) queryPriorities(ctx echo.Context) error {
	choices := make([]PriorityChoice, 0, len(lead.Priorities))
	for _, p := range lead.Priorities {
		choices = append(choices, PriorityChoice{Choice: p, Next: lead.NextPriorities(p.Value)})
	}
	return ctx.JSON(http.StatusOK, choices)
}

func (api *leadApi) querySources(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, lead.Sources)
}

func (api *leadApi) bindFilter(ctx echo.Context) (*lead.QueryFilter, []core.DBOrdering, error) {
	var q leadQuery
	if err := bindQuery(ctx, &q); err != nil {
		return nil, nil, err
	}
	filter, err := q.filter()
	if err != nil {
		return nil, nil, err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	return filter, ordering.Orderings, nil
}

func (api *leadApi) query(ctx echo.Context) error {
	actor, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	filter, ordering, err := api.bindFilter(ctx)
	if err != nil {
		return err
	}
	page := bindPage(ctx, api.pagination)

	leads, total, err := api.svc.Query(ctx.Request().Context(), filter, ordering, page, actor)
	if err != nil {
		return errors.Wrap(err, "querying leads")
	}
	if leads == nil {
		leads = []lead.Lead{}
	}
	ctx.Response().Header().Set(totalCountHdr, strconv.Itoa(total))
	return ctx.JSON(http.StatusOK, leads)
}

func (api *leadApi) export(ctx echo.Context) error {
	actor, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	filter, ordering, err := api.bindFilter(ctx)
	if err != nil {
		return err
	}

	buf := new(bytes.Buffer)
	err = api.reports.ExportLeads(ctx.Request().Context(), report.ExportFilter{Leads: *filter, Ordering: ordering}, actor, buf)
	if err != nil {
		return errors.Wrap(err, "exporting leads")
	}
	return attachment(ctx, "leads.csv", mimeTextCSV, buf)
}

func (api *leadApi) create(ctx echo.Context) error {
	actor, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}

	var data lead.NewLead
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLead")
	}
	l, err := api.svc.Create(ctx.Request().Context(), data, actor)
	if err != nil {
		return errors.Wrap(err, "creating lead")
	}
	return ctx.JSON(http.StatusCreated, l)
}

func (api *leadApi) retrieve(ctx echo.Context) error {
	actor, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	l, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"), actor)
	if err != nil {
		return errors.Wrap(err, "finding lead")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *leadApi) update(ctx echo.Context) error {
	actor, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}

	var data lead.UpdateLead
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLead")
	}
	l, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data, actor)
	if err != nil {
		return errors.Wrap(err, "updating lead")
	}
	return ctx.JSON(http.StatusOK, l)
}

type AssignRequest struct {
	AssignedTo string `json:"assigned_to"` // empty to unassign
}

func (api *leadApi) assign(ctx echo.Context) error {
	actor, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}

	var data AssignRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignRequest")
	}
	l, err := api.svc.Assign(ctx.Request().Context(), ctx.Param("id"), core.CleanString(data.AssignedTo), actor)
	if err != nil {
		return errors.Wrap(err, "assigning lead")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *leadApi) destroy(ctx echo.Context) error {
	actor, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), ctx.Param("id"), actor); err != nil {
		return errors.Wrap(err, "deleting lead")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *leadApi) history(ctx echo.Context) error {
	actor, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	hist, err := api.svc.History(ctx.Request().Context(), ctx.Param("id"), actor)
	if err != nil {
		return errors.Wrap(err, "querying lead history")
	}
	if hist == nil {
		hist = []lead.PriorityHistory{}
	}
	return ctx.JSON(http.StatusOK, hist)
}

// attachment sends buf as a downloadable file.
func attachment(ctx echo.Context, filename, contentType string, buf *bytes.Buffer) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return ctx.Blob(http.StatusOK, contentType, buf.Bytes())
}
