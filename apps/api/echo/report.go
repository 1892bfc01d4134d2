package echoapi

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/report"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/user"
)

type reportApi struct {
	auth *authenticator
	svc  report.Service
}

func registerReportAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, svc report.Service) {
	api := reportApi{auth: auth, svc: svc}

	rg := g.Group("/reports", jwt)
	rg.GET("/pipeline", api.pipeline)
	rg.GET("/pipeline/chart", api.pipelineChart)
	rg.GET("/advisors", api.advisors)
	rg.GET("/priority-changes", api.priorityChanges)
}

func (api *reportApi) bind(ctx echo.Context) (report.Filter, user.User, error) {
	actor, err := api.auth.contextUser(ctx)
	if err != nil {
		return report.Filter{}, user.User{}, err
	}
	var q reportQuery
	if err = bindQuery(ctx, &q); err != nil {
		return report.Filter{}, user.User{}, err
	}
	filter, err := q.filter()
	return filter, actor, err
}

func (api *reportApi) pipeline(ctx echo.Context) error {
	filter, actor, err := api.bind(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.Pipeline(ctx.Request().Context(), filter, actor)
	if err != nil {
		return errors.Wrap(err, "reporting pipeline")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *reportApi) pipelineChart(ctx echo.Context) error {
	filter, actor, err := api.bind(ctx)
	if err != nil {
		return err
	}
	buf := new(bytes.Buffer)
	if err = api.svc.PipelineChart(ctx.Request().Context(), filter, actor, buf); err != nil {
		return errors.Wrap(err, "rendering pipeline chart")
	}
	return ctx.Blob(http.StatusOK, "image/png", buf.Bytes())
}

func (api *reportApi) advisors(ctx echo.Context) error {
	filter, actor, err := api.bind(ctx)
	if err != nil {
		return err
	}
	stats, err := api.svc.Advisors(ctx.Request().Context(), filter, actor)
	if err != nil {
		return errors.Wrap(err, "reporting advisors")
	}
	if stats == nil {
		stats = []report.AdvisorStats{}
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *reportApi) priorityChanges(ctx echo.Context) error {
	filter, actor, err := api.bind(ctx)
	if err != nil {
		return err
	}
	changes, err := api.svc.PriorityChanges(ctx.Request().Context(), filter, actor)
	if err != nil {
		return errors.Wrap(err, "reporting priority changes")
	}
	if changes == nil {
		changes = []report.PriorityChange{}
	}
	return ctx.JSON(http.StatusOK, changes)
}
