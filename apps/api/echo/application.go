package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kcci/portal/core/membership"
	"github.com/kcci/portal/core/user"
)

type applicationApi struct {
	users    *user.Service
	svc      *membership.Service
	validate *validator.Validate
}

func registerApplicationAPI(g *echo.Group, users *user.Service, svc *membership.Service, validate *validator.Validate) {
	api := applicationApi{
		users:    users,
		svc:      svc,
		validate: validate,
	}

	ag := g.Group("/applications")
	ag.GET("", api.query)
	ag.DELETE("", api.destroyMultiple)
	ag.GET("/pending-count", api.pendingCount)
	ag.GET("/:id", api.retrieve)
	ag.DELETE("/:id", api.destroy)
	ag.POST("/:id/approve", api.approve)
	ag.POST("/:id/reject", api.reject)
}

func (api *applicationApi) query(ctx echo.Context) error {
	filter := &membership.QueryFilter{Search: ctx.QueryParam(searchParam)}
	for _, k := range queryList(ctx, "kind") {
		filter.Kinds = append(filter.Kinds, membership.Kind(k))
	}
	for _, s := range queryList(ctx, "status") {
		filter.Statuses = append(filter.Statuses, membership.Status(s))
	}
	var err error
	if filter.CreatedFrom, err = queryTime(ctx, "created_from"); err != nil {
		return err
	}
	if filter.CreatedTo, err = queryTime(ctx, "created_to"); err != nil {
		return err
	}
	filter.Clean()

	apps, err := api.svc.Query(ctx.Request().Context(), filter, bindOrdering(ctx, membership.OrderingFields...))
	if err != nil {
		return errors.Wrap(err, "querying applications")
	}
	if apps == nil {
		apps = []membership.Application{}
	}
	return ctx.JSON(http.StatusOK, apps)
}

func (api *applicationApi) pendingCount(ctx echo.Context) error {
	cnt, err := api.svc.PendingCount(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "counting pending applications")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: cnt})
}

func (api *applicationApi) retrieve(ctx echo.Context) error {
	app, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting application")
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *applicationApi) approve(ctx echo.Context) error {
	var data membership.Decision
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Decision")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	admin, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	app, err := api.svc.Approve(ctx.Request().Context(), ctx.Param("id"), data, admin)
	if err != nil {
		return errors.Wrap(err, "approving application")
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *applicationApi) reject(ctx echo.Context) error {
	var data membership.Rejection
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Rejection")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	admin, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	app, err := api.svc.Reject(ctx.Request().Context(), ctx.Param("id"), data, admin)
	if err != nil {
		return errors.Wrap(err, "rejecting application")
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *applicationApi) destroy(ctx echo.Context) error {
	cnt, err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deleting application")
	}
	if cnt == 0 {
		return errHttpNotFound
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *applicationApi) destroyMultiple(ctx echo.Context) error {
	ids := bindIDs(ctx)
	if len(ids) == 0 {
		return ctx.NoContent(http.StatusNoContent)
	}
	if _, err := api.svc.Delete(ctx.Request().Context(), ids...); err != nil {
		return errors.Wrap(err, "deleting applications")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type CountResponse struct {
	Count int `json:"count"`
}
