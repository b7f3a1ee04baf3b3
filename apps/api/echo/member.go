package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kcci/portal/core"
	"github.com/kcci/portal/core/company"
	"github.com/kcci/portal/core/finance"
	"github.com/kcci/portal/core/reviewer"
	"github.com/kcci/portal/core/user"
)

type memberApi struct {
	users     *user.Service
	reviewers *reviewer.Service
	companies *company.Service
	finance   *finance.Service
}

// registerMemberAPI serves the pages of the signed-in reviewers and companies.
func registerMemberAPI(
	g *echo.Group,
	users *user.Service,
	reviewers *reviewer.Service,
	companies *company.Service,
	fin *finance.Service,
) {
	api := memberApi{
		users:     users,
		reviewers: reviewers,
		companies: companies,
		finance:   fin,
	}

	g.GET("/reviewer", api.reviewer, reviewerMiddleware())
	g.GET("/company", api.company, companyMiddleware())
}

type (
	ReviewerProfile struct {
		Reviewer    reviewer.Reviewer    `json:"reviewer"`
		Unpaid      []finance.CostItem   `json:"unpaid"`
		Settlements []finance.Settlement `json:"settlements"`
	}

	CompanyProfile struct {
		Company     company.Company            `json:"company"`
		Obligations finance.CompanyObligation `json:"obligations"`
	}
)

func (api *memberApi) reviewer(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	rev, err := api.reviewers.GetByUserID(reqCtx, usr.ID)
	if err != nil {
		return errors.Wrap(err, "getting reviewer by user ID")
	}

	unpaid, err := api.finance.QueryCosts(reqCtx, &finance.CostFilter{
		ReviewerIDs: []string{rev.ID},
		Statuses:    []finance.PaymentStatus{finance.StatusUnpaid},
	}, []core.DBOrdering{{Field: "incurred_on", Ascending: true}})
	if err != nil {
		return errors.Wrap(err, "querying unpaid cost items")
	}
	stls, err := api.finance.QuerySettlements(reqCtx, &finance.SettlementFilter{ReviewerIDs: []string{rev.ID}}, nil)
	if err != nil {
		return errors.Wrap(err, "querying settlements")
	}

	profile := ReviewerProfile{Reviewer: rev, Unpaid: unpaid, Settlements: stls}
	if profile.Unpaid == nil {
		profile.Unpaid = []finance.CostItem{}
	}
	if profile.Settlements == nil {
		profile.Settlements = []finance.Settlement{}
	}
	return ctx.JSON(http.StatusOK, profile)
}

func (api *memberApi) company(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	comp, err := api.companies.GetByUserID(reqCtx, usr.ID)
	if err != nil {
		return errors.Wrap(err, "getting company by user ID")
	}

	obl, err := api.finance.CompanyObligation(reqCtx, comp.ID, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "computing company obligation")
	}
	obl.CompanyName = comp.Name
	return ctx.JSON(http.StatusOK, CompanyProfile{Company: comp, Obligations: obl})
}
