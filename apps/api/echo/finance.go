package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kcci/portal/core/finance"
	"github.com/kcci/portal/core/user"
)

type financeApi struct {
	users    *user.Service
	svc      *finance.Service
	validate *validator.Validate
}

func registerFinanceAPI(g *echo.Group, users *user.Service, svc *finance.Service, validate *validator.Validate) {
	api := financeApi{
		users:    users,
		svc:      svc,
		validate: validate,
	}

	cg := g.Group("/costs")
	cg.GET("", api.queryCosts)
	cg.POST("", api.createCost)
	cg.DELETE("", api.destroyCosts)
	cg.GET("/:id", api.retrieveCost)
	cg.PUT("/:id", api.updateCost)
	cg.DELETE("/:id", api.destroyCost)
	cg.PUT("/:id/status", api.setCostStatus)

	rg := g.Group("/revenues")
	rg.GET("", api.queryRevenues)
	rg.POST("", api.createRevenue)
	rg.DELETE("", api.destroyRevenues)
	rg.GET("/:id", api.retrieveRevenue)
	rg.PUT("/:id", api.updateRevenue)
	rg.DELETE("/:id", api.destroyRevenue)
	rg.PUT("/:id/status", api.setRevenueStatus)

	sg := g.Group("/settlements")
	sg.GET("", api.querySettlements)
	sg.POST("", api.settle)
	sg.GET("/:id", api.retrieveSettlement)
	sg.GET("/:id/export", api.exportSettlement)

	g.GET("/dashboard", api.dashboard)
	g.GET("/dashboard/export", api.exportDashboard)
	g.GET("/obligations", api.obligations)
	g.GET("/obligations/companies/:id", api.companyObligation)
}

// Cost items

func (api *financeApi) queryCosts(ctx echo.Context) error {
	filter := &finance.CostFilter{
		ReviewerIDs:  queryList(ctx, "reviewer_id"),
		Settled:      queryBool(ctx, "settled"),
		SettlementID: ctx.QueryParam("settlement_id"),
	}
	for _, c := range queryList(ctx, "category") {
		filter.Categories = append(filter.Categories, finance.CostCategory(c))
	}
	for _, s := range queryList(ctx, "status") {
		filter.Statuses = append(filter.Statuses, finance.PaymentStatus(s))
	}
	var err error
	if filter.From, filter.To, err = queryPeriod(ctx); err != nil {
		return err
	}

	items, err := api.svc.QueryCosts(ctx.Request().Context(), filter, bindOrdering(ctx, finance.CostOrderingFields...))
	if err != nil {
		return errors.Wrap(err, "querying cost items")
	}
	if items == nil {
		items = []finance.CostItem{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *financeApi) createCost(ctx echo.Context) error {
	var data finance.NewCostItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCostItem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	item, err := api.svc.CreateCost(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating cost item")
	}
	return ctx.JSON(http.StatusCreated, item)
}

func (api *financeApi) retrieveCost(ctx echo.Context) error {
	item, err := api.svc.GetCost(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting cost item")
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api *financeApi) updateCost(ctx echo.Context) error {
	var data finance.UpdateCostItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCostItem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	item, err := api.svc.UpdateCost(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating cost item")
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api *financeApi) setCostStatus(ctx echo.Context) error {
	var data finance.StatusChange
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusChange")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	item, err := api.svc.SetCostStatus(ctx.Request().Context(), ctx.Param("id"), data, actor)
	if err != nil {
		return errors.Wrap(err, "setting cost item status")
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api *financeApi) destroyCost(ctx echo.Context) error {
	cnt, err := api.svc.DeleteCosts(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deleting cost item")
	}
	if cnt == 0 {
		return errHttpNotFound
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *financeApi) destroyCosts(ctx echo.Context) error {
	ids := bindIDs(ctx)
	if len(ids) == 0 {
		return ctx.NoContent(http.StatusNoContent)
	}
	if _, err := api.svc.DeleteCosts(ctx.Request().Context(), ids...); err != nil {
		return errors.Wrap(err, "deleting cost items")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Revenue items

func (api *financeApi) queryRevenues(ctx echo.Context) error {
	filter := &finance.RevenueFilter{CompanyIDs: queryList(ctx, "company_id")}
	for _, c := range queryList(ctx, "category") {
		filter.Categories = append(filter.Categories, finance.RevenueCategory(c))
	}
	for _, s := range queryList(ctx, "status") {
		filter.Statuses = append(filter.Statuses, finance.PaymentStatus(s))
	}
	var err error
	if filter.From, filter.To, err = queryPeriod(ctx); err != nil {
		return err
	}

	items, err := api.svc.QueryRevenues(ctx.Request().Context(), filter, bindOrdering(ctx, finance.RevenueOrderingFields...))
	if err != nil {
		return errors.Wrap(err, "querying revenue items")
	}
	if items == nil {
		items = []finance.RevenueItem{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *financeApi) createRevenue(ctx echo.Context) error {
	var data finance.NewRevenueItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRevenueItem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	item, err := api.svc.CreateRevenue(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating revenue item")
	}
	return ctx.JSON(http.StatusCreated, item)
}

func (api *financeApi) retrieveRevenue(ctx echo.Context) error {
	item, err := api.svc.GetRevenue(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting revenue item")
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api *financeApi) updateRevenue(ctx echo.Context) error {
	var data finance.UpdateRevenueItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRevenueItem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	item, err := api.svc.UpdateRevenue(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating revenue item")
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api *financeApi) setRevenueStatus(ctx echo.Context) error {
	var data finance.StatusChange
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusChange")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	item, err := api.svc.SetRevenueStatus(ctx.Request().Context(), ctx.Param("id"), data, actor)
	if err != nil {
		return errors.Wrap(err, "setting revenue item status")
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api *financeApi) destroyRevenue(ctx echo.Context) error {
	cnt, err := api.svc.DeleteRevenues(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deleting revenue item")
	}
	if cnt == 0 {
		return errHttpNotFound
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *financeApi) destroyRevenues(ctx echo.Context) error {
	ids := bindIDs(ctx)
	if len(ids) == 0 {
		return ctx.NoContent(http.StatusNoContent)
	}
	if _, err := api.svc.DeleteRevenues(ctx.Request().Context(), ids...); err != nil {
		return errors.Wrap(err, "deleting revenue items")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Settlements

func (api *financeApi) querySettlements(ctx echo.Context) error {
	filter := &finance.SettlementFilter{ReviewerIDs: queryList(ctx, "reviewer_id")}
	var err error
	if filter.From, filter.To, err = queryPeriod(ctx); err != nil {
		return err
	}

	stls, err := api.svc.QuerySettlements(ctx.Request().Context(), filter, bindOrdering(ctx, finance.SettlementOrderingFields...))
	if err != nil {
		return errors.Wrap(err, "querying settlements")
	}
	if stls == nil {
		stls = []finance.Settlement{}
	}
	return ctx.JSON(http.StatusOK, stls)
}

func (api *financeApi) settle(ctx echo.Context) error {
	var data finance.NewSettlement
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSettlement")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	admin, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	stl, err := api.svc.Settle(ctx.Request().Context(), data, admin)
	if err != nil {
		return errors.Wrap(err, "settling")
	}
	return ctx.JSON(http.StatusCreated, stl)
}

func (api *financeApi) retrieveSettlement(ctx echo.Context) error {
	stl, err := api.svc.GetSettlement(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting settlement")
	}
	return ctx.JSON(http.StatusOK, stl)
}

func (api *financeApi) exportSettlement(ctx echo.Context) error {
	var buf bytes.Buffer
	if err := api.svc.ExportSettlement(ctx.Request().Context(), ctx.Param("id"), &buf); err != nil {
		return errors.Wrap(err, "exporting settlement")
	}
	return attachment(ctx, "settlement-"+ctx.Param("id")+".xlsx", buf.Bytes())
}

// Dashboard

func (api *financeApi) dashboard(ctx echo.Context) error {
	from, to, err := queryPeriod(ctx)
	if err != nil {
		return err
	}
	dash, err := api.svc.Dashboard(ctx.Request().Context(), from, to)
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *financeApi) exportDashboard(ctx echo.Context) error {
	from, to, err := queryPeriod(ctx)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err = api.svc.ExportDashboard(ctx.Request().Context(), from, to, &buf); err != nil {
		return errors.Wrap(err, "exporting dashboard")
	}
	return attachment(ctx, "dashboard.xlsx", buf.Bytes())
}

func (api *financeApi) obligations(ctx echo.Context) error {
	asOf, err := queryTime(ctx, "as_of")
	if err != nil {
		return err
	}
	obl, err := api.svc.Obligations(ctx.Request().Context(), asOf)
	if err != nil {
		return errors.Wrap(err, "computing obligations")
	}
	return ctx.JSON(http.StatusOK, obl)
}

func (api *financeApi) companyObligation(ctx echo.Context) error {
	asOf, err := queryTime(ctx, "as_of")
	if err != nil {
		return err
	}
	obl, err := api.svc.CompanyObligation(ctx.Request().Context(), ctx.Param("id"), asOf)
	if err != nil {
		return errors.Wrap(err, "computing company obligation")
	}
	return ctx.JSON(http.StatusOK, obl)
}

func attachment(ctx echo.Context, filename string, content []byte) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, finance.XLSXContentType, content)
}
