package tests

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/kcci/portal/apps/api/echo"
	"github.com/kcci/portal/core"
	"github.com/kcci/portal/core/company"
	"github.com/kcci/portal/core/finance"
	"github.com/kcci/portal/core/reviewer"
	"github.com/kcci/portal/core/user"
	"github.com/kcci/portal/testutil"
)

func TestFinanceApi_costs(t *testing.T) {
	resetDB()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.kr", "", []string{user.RoleAdmin}, true)
	rev := testutil.CreateReviewer(t, revRepo, "Kim Seo", "seo@test.kr", reviewer.GradeJunior)
	fee := testutil.CreateCost(t, finRepo, rev.ID, finance.CostReviewFee, "150000", testutil.Date(2026, 3, 2))
	travel := testutil.CreateCost(t, finRepo, rev.ID, finance.CostTravel, "32000", testutil.Date(2026, 3, 9))
	token := getToken(t, admin)

	runHTTPTests(t, []httpTest{
		{name: "auth required", path: "/api/admin/finance/costs", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "list", path: "/api/admin/finance/costs", token: token, wantData: marshalList(t, travel, fee)},
		{name: "filter by category", path: "/api/admin/finance/costs?category=travel", token: token, wantData: marshalList(t, travel)},
		{name: "filter by period", path: "/api/admin/finance/costs?from=2026-03-01&to=2026-03-05", token: token, wantData: marshalList(t, fee)},
		{
			name: "invalid date", path: "/api/admin/finance/costs?from=march", token: token, wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"from": "enter a valid date (YYYY-MM-DD or RFC 3339)"}),
		},
		{name: "unknown", path: "/api/admin/finance/costs/nope", token: token, wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "cost item not found"})},
		{
			name: "unknown reviewer", method: http.MethodPost, path: "/api/admin/finance/costs", token: token,
			body: marshalObj(t, finance.NewCostItem{
				ReviewerID: "nope", Category: finance.CostOther, Amount: decimal.NewFromInt(1000), IncurredOn: testutil.Date(2026, 3, 1),
			}),
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "reviewer not found"}),
		},
		{
			name: "negative amount", method: http.MethodPost, path: "/api/admin/finance/costs", token: token,
			body: marshalObj(t, finance.NewCostItem{
				ReviewerID: rev.ID, Category: finance.CostOther, Amount: decimal.NewFromInt(-5), IncurredOn: testutil.Date(2026, 3, 1),
			}),
			wantCode: http.StatusBadRequest,
		},
	})

	t.Run("create", func(t *testing.T) {
		rec := serve(http.MethodPost, "/api/admin/finance/costs", token, marshalObj(t, finance.NewCostItem{
			ReviewerID:  rev.ID,
			Category:    "Operation",
			Description: " printing ",
			Amount:      decimal.RequireFromString("4500.50"),
			IncurredOn:  testutil.Date(2026, 3, 20),
		}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var item finance.CostItem
		decode(t, rec, &item)
		assert.Equal(t, finance.CostOperation, item.Category)
		assert.Equal(t, "printing", item.Description)
		assert.Equal(t, finance.StatusUnpaid, item.Status)
		assert.Equal(t, 1, item.Version)
		assert.True(t, item.Amount.Equal(decimal.RequireFromString("4500.5")))
	})

	t.Run("toggle status", func(t *testing.T) {
		path := "/api/admin/finance/costs/" + travel.ID + "/status"
		rec := serve(http.MethodPut, path, token, marshalObj(t, finance.StatusChange{Status: finance.StatusPaid, Version: travel.Version}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var item finance.CostItem
		decode(t, rec, &item)
		assert.Equal(t, finance.StatusPaid, item.Status)
		assert.True(t, item.PaidAt.Valid)
		assert.Equal(t, travel.Version+1, item.Version)
		assert.Len(t, events.Events(core.EventPaymentStatusChanged), 1)

		// a client still holding the old version loses
		rec = serve(http.MethodPut, path, token, marshalObj(t, finance.StatusChange{Status: finance.StatusUnpaid, Version: travel.Version}))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.JSONEq(t, fmt.Sprintf(`{"error": %q}`, finance.ErrStaleVersion.Error()), rec.Body.String())

		rec = serve(http.MethodPut, path, token, marshalObj(t, finance.StatusChange{Status: finance.StatusUnpaid, Version: item.Version}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &item)
		assert.Equal(t, finance.StatusUnpaid, item.Status)
		assert.False(t, item.PaidAt.Valid)
	})

	t.Run("update", func(t *testing.T) {
		desc := "March review"
		rec := serve(http.MethodPut, "/api/admin/finance/costs/"+fee.ID, token, marshalObj(t, finance.UpdateCostItem{
			Description: &desc,
			Amount:      decimal.NewNullDecimal(decimal.NewFromInt(160000)),
			Version:     fee.Version,
		}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var item finance.CostItem
		decode(t, rec, &item)
		assert.Equal(t, "March review", item.Description)
		assert.True(t, item.Amount.Equal(decimal.NewFromInt(160000)))
		assert.Equal(t, finance.CostReviewFee, item.Category)
	})

	t.Run("delete", func(t *testing.T) {
		rec := serve(http.MethodDelete, "/api/admin/finance/costs/"+fee.ID, token)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = serve(http.MethodDelete, "/api/admin/finance/costs/"+fee.ID, token)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestFinanceApi_settle(t *testing.T) {
	resetDB()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.kr", "", []string{user.RoleAdmin}, true)
	revUser := testutil.CreateUser(t, usrRepo, "Kim Seo", "kimseo", "seo@test.kr", "", []string{user.RoleReviewer}, true)
	rev := testutil.CreateReviewer(t, revRepo, "Kim Seo", "seo@test.kr", reviewer.GradeJunior, revUser.ID)
	first := testutil.CreateCost(t, finRepo, rev.ID, finance.CostReviewFee, "150000", testutil.Date(2026, 3, 2))
	second := testutil.CreateCost(t, finRepo, rev.ID, finance.CostTravel, "32000", testutil.Date(2026, 3, 9))
	april := testutil.CreateCost(t, finRepo, rev.ID, finance.CostReviewFee, "150000", testutil.Date(2026, 4, 6))
	token := getToken(t, admin)

	march := finance.NewSettlement{
		ReviewerID: rev.ID,
		PeriodFrom: testutil.Date(2026, 3, 1),
		PeriodTo:   testutil.Date(2026, 3, 31),
		Note:       "March fees",
	}

	rec := serve(http.MethodPost, "/api/admin/finance/settlements", token, marshalObj(t, march))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var stl finance.Settlement
	decode(t, rec, &stl)
	assert.Equal(t, 2, stl.ItemCount)
	assert.True(t, stl.Total.Equal(decimal.NewFromInt(182000)))
	assert.Equal(t, admin.ID, stl.SettledBy)
	require.Len(t, stl.Items, 2)
	for _, item := range stl.Items {
		assert.Equal(t, finance.StatusPaid, item.Status)
		assert.Equal(t, stl.ID, item.SettlementID.String)
	}
	assert.Len(t, events.Events(core.EventSettlementCreated), 1)

	t.Run("nothing left to settle", func(t *testing.T) {
		rec := serve(http.MethodPost, "/api/admin/finance/settlements", token, marshalObj(t, march))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("period must be ordered", func(t *testing.T) {
		bad := march
		bad.PeriodFrom, bad.PeriodTo = march.PeriodTo, march.PeriodFrom
		rec := serve(http.MethodPost, "/api/admin/finance/settlements", token, marshalObj(t, bad))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("settled items are frozen", func(t *testing.T) {
		rec := serve(http.MethodGet, "/api/admin/finance/costs/"+first.ID, token)
		var item finance.CostItem
		decode(t, rec, &item)

		rec = serve(http.MethodPut, "/api/admin/finance/costs/"+first.ID+"/status", token,
			marshalObj(t, finance.StatusChange{Status: finance.StatusUnpaid, Version: item.Version}))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.JSONEq(t, fmt.Sprintf(`{"error": %q}`, finance.ErrSettledItem.Error()), rec.Body.String())
	})

	t.Run("retrieve", func(t *testing.T) {
		rec := serve(http.MethodGet, "/api/admin/finance/settlements/"+stl.ID, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got finance.Settlement
		decode(t, rec, &got)
		assert.Equal(t, stl.ID, got.ID)
		require.Len(t, got.Items, 2)
		assert.ElementsMatch(t, []string{first.ID, second.ID}, []string{got.Items[0].ID, got.Items[1].ID})

		rec = serve(http.MethodGet, "/api/admin/finance/costs?settled=false", token)
		assert.JSONEq(t, string(marshalList(t, april)), rec.Body.String())
	})

	t.Run("export", func(t *testing.T) {
		rec := serve(http.MethodGet, "/api/admin/finance/settlements/"+stl.ID+"/export", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, finance.XLSXContentType, rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "settlement-"+stl.ID+".xlsx")
		assert.NotEmpty(t, rec.Body.Bytes())
	})

	t.Run("reviewer profile", func(t *testing.T) {
		rec := serve(http.MethodGet, "/api/me/reviewer", getToken(t, revUser))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var profile echoapi.ReviewerProfile
		decode(t, rec, &profile)
		assert.Equal(t, rev.ID, profile.Reviewer.ID)
		require.Len(t, profile.Unpaid, 1)
		assert.Equal(t, april.ID, profile.Unpaid[0].ID)
		require.Len(t, profile.Settlements, 1)
		assert.Equal(t, stl.ID, profile.Settlements[0].ID)
	})
}

func TestFinanceApi_dashboard(t *testing.T) {
	resetDB()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.kr", "", []string{user.RoleAdmin}, true)
	compUser := testutil.CreateUser(t, usrRepo, "Hanbit", "hanbit", "hanbit@test.kr", "", []string{user.RoleCompany}, true)
	rev := testutil.CreateReviewer(t, revRepo, "Kim Seo", "seo@test.kr", reviewer.GradeJunior)
	comp := testutil.CreateCompany(t, compRepo, "Hanbit Industries", "124-81-00998", company.TierRegular, compUser.ID)
	testutil.CreateCost(t, finRepo, rev.ID, finance.CostReviewFee, "150000", testutil.Date(2026, 3, 2))
	testutil.CreateRevenue(t, finRepo, comp.ID, finance.RevenueMembershipFee, "500000", testutil.Date(2026, 3, 15))
	cert := testutil.CreateRevenue(t, finRepo, comp.ID, finance.RevenueCertificationFee, "300000", testutil.Date(2026, 4, 10))
	token := getToken(t, admin)

	t.Run("dashboard", func(t *testing.T) {
		rec := serve(http.MethodGet, "/api/admin/finance/dashboard?from=2026-03-01&to=2026-04-30", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var dash finance.Dashboard
		decode(t, rec, &dash)
		assert.Equal(t, conf.Finance.Currency, dash.Currency)
		assert.True(t, dash.Totals.Revenue.Total.Equal(decimal.NewFromInt(800000)))
		assert.True(t, dash.Totals.Cost.Total.Equal(decimal.NewFromInt(150000)))
		assert.True(t, dash.Totals.Net.Equal(decimal.NewFromInt(650000)))
		require.Len(t, dash.Years, 1)
		assert.Equal(t, 2026, dash.Years[0].Year)
		require.Len(t, dash.Years[0].Months, 2)
		assert.Equal(t, "2026-03", dash.Years[0].Months[0].Label)
		assert.True(t, dash.Years[0].Months[1].Totals.Net.Equal(decimal.NewFromInt(300000)))
	})

	t.Run("dashboard export", func(t *testing.T) {
		rec := serve(http.MethodGet, "/api/admin/finance/dashboard/export?from=2026-03-01&to=2026-04-30", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, finance.XLSXContentType, rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "dashboard.xlsx")
	})

	t.Run("obligations", func(t *testing.T) {
		rec := serve(http.MethodGet, "/api/admin/finance/obligations?as_of=2026-04-01", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var obl finance.Obligations
		decode(t, rec, &obl)
		require.Len(t, obl.Reviewers, 1)
		assert.Equal(t, "Kim Seo", obl.Reviewers[0].ReviewerName)
		require.Len(t, obl.Companies, 1)
		assert.Equal(t, "Hanbit Industries", obl.Companies[0].CompanyName)
		assert.Equal(t, 2, obl.Companies[0].Count)
		assert.Equal(t, 1, obl.Companies[0].OverdueCount)
		assert.True(t, obl.PayableTotal.Equal(decimal.NewFromInt(150000)))
		assert.True(t, obl.ReceivableTotal.Equal(decimal.NewFromInt(800000)))
		assert.True(t, obl.OverdueTotal.Equal(decimal.NewFromInt(500000)))
	})

	t.Run("paying removes the obligation", func(t *testing.T) {
		rec := serve(http.MethodPut, "/api/admin/finance/revenues/"+cert.ID+"/status", token,
			marshalObj(t, finance.StatusChange{Status: finance.StatusPaid, Version: cert.Version}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = serve(http.MethodGet, "/api/admin/finance/obligations/companies/"+comp.ID, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var co finance.CompanyObligation
		decode(t, rec, &co)
		assert.Equal(t, 1, co.Count)
		assert.True(t, co.Total.Equal(decimal.NewFromInt(500000)))
	})

	t.Run("company profile", func(t *testing.T) {
		rec := serve(http.MethodGet, "/api/me/company", getToken(t, compUser))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var profile echoapi.CompanyProfile
		decode(t, rec, &profile)
		assert.Equal(t, comp.ID, profile.Company.ID)
		assert.Equal(t, "Hanbit Industries", profile.Obligations.CompanyName)
		require.Len(t, profile.Obligations.Items, 1)
		assert.True(t, profile.Obligations.Items[0].DueDate.Before(time.Now()))
	})
}
