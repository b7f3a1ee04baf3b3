package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kcci/portal/core/company"
)

type companyApi struct {
	svc      *company.Service
	validate *validator.Validate
}

func registerCompanyAPI(g *echo.Group, svc *company.Service, validate *validator.Validate) {
	api := companyApi{svc: svc, validate: validate}

	cg := g.Group("/companies")
	cg.GET("", api.query)
	cg.DELETE("", api.destroyMultiple)
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.update)
	cg.DELETE("/:id", api.destroy)
}

func (api *companyApi) query(ctx echo.Context) error {
	filter := &company.QueryFilter{
		Search:   ctx.QueryParam(searchParam),
		Industry: ctx.QueryParam("industry"),
		IsActive: queryBool(ctx, "is_active"),
	}
	for _, t := range queryList(ctx, "tier") {
		filter.Tiers = append(filter.Tiers, company.Tier(t))
	}
	filter.Clean()

	comps, err := api.svc.Query(ctx.Request().Context(), filter, bindOrdering(ctx, company.OrderingFields...))
	if err != nil {
		return errors.Wrap(err, "querying companies")
	}
	if comps == nil {
		comps = []company.Company{}
	}
	return ctx.JSON(http.StatusOK, comps)
}

func (api *companyApi) retrieve(ctx echo.Context) error {
	comp, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting company")
	}
	return ctx.JSON(http.StatusOK, comp)
}

func (api *companyApi) update(ctx echo.Context) error {
	comp, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting company")
	}

	var data company.UpdateCompany
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCompany")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	comp, err = api.svc.Update(ctx.Request().Context(), comp, data)
	if err != nil {
		return errors.Wrap(err, "updating company")
	}
	return ctx.JSON(http.StatusOK, comp)
}

func (api *companyApi) destroy(ctx echo.Context) error {
	cnt, err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deleting company")
	}
	if cnt == 0 {
		return errHttpNotFound
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *companyApi) destroyMultiple(ctx echo.Context) error {
	ids := bindIDs(ctx)
	if len(ids) == 0 {
		return ctx.NoContent(http.StatusNoContent)
	}
	if _, err := api.svc.Delete(ctx.Request().Context(), ids...); err != nil {
		return errors.Wrap(err, "deleting companies")
	}
	return ctx.NoContent(http.StatusNoContent)
}
