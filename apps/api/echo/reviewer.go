package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kcci/portal/core/reviewer"
)

type reviewerApi struct {
	svc      *reviewer.Service
	validate *validator.Validate
}

func registerReviewerAPI(g *echo.Group, svc *reviewer.Service, validate *validator.Validate) {
	api := reviewerApi{svc: svc, validate: validate}

	rg := g.Group("/reviewers")
	rg.GET("", api.query)
	rg.DELETE("", api.destroyMultiple)
	rg.GET("/:id", api.retrieve)
	rg.PUT("/:id", api.update)
	rg.DELETE("/:id", api.destroy)
}

func (api *reviewerApi) query(ctx echo.Context) error {
	filter := &reviewer.QueryFilter{
		Search:   ctx.QueryParam(searchParam),
		IsActive: queryBool(ctx, "is_active"),
	}
	for _, g := range queryList(ctx, "grade") {
		filter.Grades = append(filter.Grades, reviewer.Grade(g))
	}
	filter.Clean()

	revs, err := api.svc.Query(ctx.Request().Context(), filter, bindOrdering(ctx, reviewer.OrderingFields...))
	if err != nil {
		return errors.Wrap(err, "querying reviewers")
	}
	if revs == nil {
		revs = []reviewer.Reviewer{}
	}
	return ctx.JSON(http.StatusOK, revs)
}

func (api *reviewerApi) retrieve(ctx echo.Context) error {
	rev, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting reviewer")
	}
	return ctx.JSON(http.StatusOK, rev)
}

func (api *reviewerApi) update(ctx echo.Context) error {
	rev, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting reviewer")
	}

	var data reviewer.UpdateReviewer
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateReviewer")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	rev, err = api.svc.Update(ctx.Request().Context(), rev, data)
	if err != nil {
		return errors.Wrap(err, "updating reviewer")
	}
	return ctx.JSON(http.StatusOK, rev)
}

func (api *reviewerApi) destroy(ctx echo.Context) error {
	cnt, err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deleting reviewer")
	}
	if cnt == 0 {
		return errHttpNotFound
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *reviewerApi) destroyMultiple(ctx echo.Context) error {
	ids := bindIDs(ctx)
	if len(ids) == 0 {
		return ctx.NoContent(http.StatusNoContent)
	}
	if _, err := api.svc.Delete(ctx.Request().Context(), ids...); err != nil {
		return errors.Wrap(err, "deleting reviewers")
	}
	return ctx.NoContent(http.StatusNoContent)
}
