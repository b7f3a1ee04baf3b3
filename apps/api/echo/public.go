package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kcci/portal/core/company"
	"github.com/kcci/portal/core/membership"
	"github.com/kcci/portal/core/reviewer"
)

type publicApi struct {
	memberships *membership.Service
	reviewers   *reviewer.Service
	companies   *company.Service
	validate    *validator.Validate
}

func registerPublicAPI(
	g *echo.Group,
	memberships *membership.Service,
	reviewers *reviewer.Service,
	companies *company.Service,
	validate *validator.Validate,
) {
	api := publicApi{
		memberships: memberships,
		reviewers:   reviewers,
		companies:   companies,
		validate:    validate,
	}

	g.GET("/companies", api.companyDirectory)
	g.GET("/reviewers", api.reviewerDirectory)
	g.POST("/applications", api.apply)
}

func (api *publicApi) companyDirectory(ctx echo.Context) error {
	entries, err := api.companies.Directory(ctx.Request().Context(), ctx.QueryParam(searchParam))
	if err != nil {
		return errors.Wrap(err, "listing company directory")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *publicApi) reviewerDirectory(ctx echo.Context) error {
	entries, err := api.reviewers.Directory(ctx.Request().Context(), ctx.QueryParam(searchParam))
	if err != nil {
		return errors.Wrap(err, "listing reviewer directory")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *publicApi) apply(ctx echo.Context) error {
	var data membership.NewApplication
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewApplication")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.memberships); err != nil {
		return err
	}

	app, err := api.memberships.Submit(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "submitting application")
	}
	return ctx.JSON(http.StatusCreated, app)
}
