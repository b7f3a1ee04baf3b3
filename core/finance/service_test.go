package finance_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"github.com/xuri/excelize/v2"

	"github.com/kcci/portal/core"
	"github.com/kcci/portal/core/company"
	"github.com/kcci/portal/core/finance"
	"github.com/kcci/portal/core/reviewer"
	"github.com/kcci/portal/core/user"
	emailsvc "github.com/kcci/portal/services/email"
	eventsvc "github.com/kcci/portal/services/events"
	inmemdb "github.com/kcci/portal/storage/database/inmem"
	"github.com/kcci/portal/testutil"
)

type fixture struct {
	db       *inmemdb.DB
	repo     finance.Repository
	revRepo  reviewer.Repository
	compRepo company.Repository
	svc      *finance.Service
	events   *eventsvc.PublisherMock
	admin    user.User
}

func setup(t *testing.T) fixture {
	conf := testutil.NewConfig(t)
	logger := testutil.NewLogger(conf)
	require.NoError(t, core.ParseEmailTemplates(conf, logger))
	emailsvc.ClearSentMessages()

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	revRepo := inmemdb.NewReviewerRepository(db)
	compRepo := inmemdb.NewCompanyRepository(db)
	repo := inmemdb.NewFinanceRepository(db)

	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	events := eventsvc.NewPublisherMock()

	return fixture{
		db:       db,
		repo:     repo,
		revRepo:  revRepo,
		compRepo: compRepo,
		events:   events,
		admin:    testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@kcci.kr", "", []string{user.RoleAdmin}, true),
		svc: finance.NewService(finance.Deps{
			Repo:      repo,
			Reviewers: reviewer.NewService(revRepo, usrSvc, db),
			Companies: company.NewService(compRepo, usrSvc, db),
			Tx:        db,
			MailSvc:   mailSvc,
			Events:    events,
			Logger:    logger,
			Currency:  conf.Finance.Currency,
		}),
	}
}

func TestSetCostStatus(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	rev := testutil.CreateReviewer(t, fx.revRepo, "Kim Reviewer", "kim@test.kr", reviewer.GradeSenior)

	unpaid := testutil.CreateCost(t, fx.repo, rev.ID, finance.CostReviewFee, "300000", testutil.Date(2024, 1, 10))
	stale := testutil.CreateCost(t, fx.repo, rev.ID, finance.CostTravel, "45000.25", testutil.Date(2024, 1, 11))
	settled := testutil.CreateCost(t, fx.repo, rev.ID, finance.CostTravel, "10000", testutil.Date(2024, 1, 12))
	settled.Status = finance.StatusPaid
	settled.SettlementID = null.StringFrom("settlement")
	settled, err := fx.repo.UpdateCost(ctx, settled, 1)
	require.NoError(t, err)

	tests := []struct {
		name        string
		id          string
		change      finance.StatusChange
		wantErr     error
		wantStatus  finance.PaymentStatus
		wantVersion int
		wantEvent   bool
	}{
		{
			name:        "pay",
			id:          unpaid.ID,
			change:      finance.StatusChange{Status: finance.StatusPaid, Version: 1},
			wantStatus:  finance.StatusPaid,
			wantVersion: 2,
			wantEvent:   true,
		},
		{
			name:        "revert payment",
			id:          unpaid.ID,
			change:      finance.StatusChange{Status: finance.StatusUnpaid, Version: 2},
			wantStatus:  finance.StatusUnpaid,
			wantVersion: 3,
			wantEvent:   true,
		},
		{
			name:    "stale version",
			id:      stale.ID,
			change:  finance.StatusChange{Status: finance.StatusPaid, Version: 7},
			wantErr: finance.ErrStaleVersion,
		},
		{
			name:        "unchanged status",
			id:          stale.ID,
			change:      finance.StatusChange{Status: finance.StatusUnpaid, Version: 1},
			wantStatus:  finance.StatusUnpaid,
			wantVersion: 1,
		},
		{
			name:    "settled item",
			id:      settled.ID,
			change:  finance.StatusChange{Status: finance.StatusUnpaid, Version: settled.Version},
			wantErr: finance.ErrSettledItem,
		},
		{
			name:    "not found",
			id:      "missing",
			change:  finance.StatusChange{Status: finance.StatusPaid, Version: 1},
			wantErr: finance.ErrCostNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx.events.Reset()
			item, err := fx.svc.SetCostStatus(ctx, tt.id, tt.change, fx.admin)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				assert.Empty(t, fx.events.Events())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, item.Status)
			assert.Equal(t, tt.wantVersion, item.Version)
			assert.Equal(t, tt.wantStatus == finance.StatusPaid, item.PaidAt.Valid)

			evts := fx.events.Events(core.EventPaymentStatusChanged)
			if tt.wantEvent {
				require.Len(t, evts, 1)
				assert.Equal(t, fx.admin.ID, evts[0].ActorID)
			} else {
				assert.Empty(t, evts)
			}
		})
	}
}

func TestSetRevenueStatus(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	comp := testutil.CreateCompany(t, fx.compRepo, "Hanil Steel", "124-81-00998", company.TierRegular)
	item := testutil.CreateRevenue(t, fx.repo, comp.ID, finance.RevenueMembershipFee, "1000000", testutil.Date(2024, 1, 15))

	paid, err := fx.svc.SetRevenueStatus(ctx, item.ID, finance.StatusChange{Status: finance.StatusPaid, Version: 1}, fx.admin)
	require.NoError(t, err)
	assert.Equal(t, finance.StatusPaid, paid.Status)
	assert.Equal(t, 2, paid.Version)

	// a second client still holding version 1
	_, err = fx.svc.SetRevenueStatus(ctx, item.ID, finance.StatusChange{Status: finance.StatusUnpaid, Version: 1}, fx.admin)
	assert.True(t, core.IsConflict(err))

	stored, err := fx.svc.GetRevenue(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.StatusPaid, stored.Status)
}

func TestSettle(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	rev := testutil.CreateReviewer(t, fx.revRepo, "Kim Reviewer", "kim@test.kr", reviewer.GradeSenior)
	other := testutil.CreateReviewer(t, fx.revRepo, "Lee Reviewer", "lee@test.kr", reviewer.GradeJunior)

	fee := testutil.CreateCost(t, fx.repo, rev.ID, finance.CostReviewFee, "300000", testutil.Date(2024, 3, 4))
	travel := testutil.CreateCost(t, fx.repo, rev.ID, finance.CostTravel, "45000.25", testutil.Date(2024, 3, 28))
	april := testutil.CreateCost(t, fx.repo, rev.ID, finance.CostReviewFee, "150000", testutil.Date(2024, 4, 2))
	alreadyPaid := testutil.CreateCost(t, fx.repo, rev.ID, finance.CostOperation, "5000", testutil.Date(2024, 3, 15))
	_, err := fx.svc.SetCostStatus(ctx, alreadyPaid.ID, finance.StatusChange{Status: finance.StatusPaid, Version: 1}, fx.admin)
	require.NoError(t, err)
	testutil.CreateCost(t, fx.repo, other.ID, finance.CostReviewFee, "99000", testutil.Date(2024, 3, 10))

	ns := finance.NewSettlement{
		ReviewerID: rev.ID,
		PeriodFrom: testutil.Date(2024, 3, 1),
		PeriodTo:   testutil.Date(2024, 3, 31),
		Note:       "March review fees",
	}
	stl, err := fx.svc.Settle(ctx, ns, fx.admin)
	require.NoError(t, err)

	assert.NotEmpty(t, stl.ID)
	assert.Equal(t, 2, stl.ItemCount)
	assert.Equal(t, "345000.25", stl.Total.StringFixed(2))
	assert.Equal(t, fx.admin.ID, stl.SettledBy)
	require.Len(t, stl.Items, 2)
	assert.Equal(t, fee.ID, stl.Items[0].ID)
	assert.Equal(t, travel.ID, stl.Items[1].ID)
	for _, item := range stl.Items {
		assert.Equal(t, finance.StatusPaid, item.Status)
		assert.Equal(t, stl.ID, item.SettlementID.String)
		assert.Equal(t, 2, item.Version)
	}

	t.Run("outside period untouched", func(t *testing.T) {
		item, err := fx.svc.GetCost(ctx, april.ID)
		require.NoError(t, err)
		assert.Equal(t, finance.StatusUnpaid, item.Status)
		assert.False(t, item.IsSettled())
	})

	t.Run("statement mailed", func(t *testing.T) {
		msg, ok := emailsvc.LastSentMessage()
		require.True(t, ok)
		assert.Equal(t, "kim@test.kr", msg.To[0].Address)
		assert.Contains(t, msg.TextContent, "345000.25 KRW")
		require.Len(t, msg.Attachments, 1)
		assert.Equal(t, "settlement-2024-03.xlsx", msg.Attachments[0].Filename)
	})

	t.Run("event published", func(t *testing.T) {
		evts := fx.events.Events(core.EventSettlementCreated)
		require.Len(t, evts, 1)
		assert.Equal(t, fx.admin.ID, evts[0].ActorID)
	})

	t.Run("get with items", func(t *testing.T) {
		got, err := fx.svc.GetSettlement(ctx, stl.ID)
		require.NoError(t, err)
		assert.Len(t, got.Items, 2)
	})

	t.Run("nothing left to settle", func(t *testing.T) {
		_, err := fx.svc.Settle(ctx, ns, fx.admin)
		var verr *core.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, finance.ErrNothingToSettle, verr.Err)
	})

	t.Run("settled items frozen", func(t *testing.T) {
		amount := decimal.NewNullDecimal(decimal.RequireFromString("1"))
		_, err := fx.svc.UpdateCost(ctx, fee.ID, finance.UpdateCostItem{Amount: amount, Version: 2})
		assert.Equal(t, finance.ErrSettledItem, errors.Cause(err))

		_, err = fx.svc.DeleteCosts(ctx, april.ID, fee.ID)
		assert.Equal(t, finance.ErrSettledItem, errors.Cause(err))

		// the failed deletion rolled back
		_, err = fx.svc.GetCost(ctx, april.ID)
		assert.NoError(t, err)
	})

	t.Run("unknown reviewer", func(t *testing.T) {
		_, err := fx.svc.Settle(ctx, finance.NewSettlement{ReviewerID: "missing", PeriodFrom: ns.PeriodFrom, PeriodTo: ns.PeriodTo}, fx.admin)
		assert.True(t, core.IsNotFound(err))
	})
}

func TestUpdateCost(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	rev := testutil.CreateReviewer(t, fx.revRepo, "Kim Reviewer", "kim@test.kr", reviewer.GradeSenior)
	item := testutil.CreateCost(t, fx.repo, rev.ID, finance.CostReviewFee, "300000", testutil.Date(2024, 3, 4))

	desc := "on-site audit"
	updated, err := fx.svc.UpdateCost(ctx, item.ID, finance.UpdateCostItem{
		Category:    finance.CostTravel,
		Description: &desc,
		Amount:      decimal.NewNullDecimal(decimal.RequireFromString("320000.50")),
		Version:     1,
	})
	require.NoError(t, err)
	assert.Equal(t, finance.CostTravel, updated.Category)
	assert.Equal(t, desc, updated.Description)
	assert.Equal(t, "320000.50", updated.Amount.StringFixed(2))
	assert.Equal(t, item.IncurredOn, updated.IncurredOn)
	assert.Equal(t, 2, updated.Version)

	_, err = fx.svc.UpdateCost(ctx, item.ID, finance.UpdateCostItem{Description: &desc, Version: 1})
	assert.Equal(t, finance.ErrStaleVersion, errors.Cause(err))
}

// settledMeanwhile settles the cost items right before deleting them.
type settledMeanwhile struct {
	finance.Repository
}

func (repo settledMeanwhile) DeleteCostsByID(ctx context.Context, ids ...string) (int, error) {
	for _, id := range ids {
		item, err := repo.GetCost(ctx, id)
		if err != nil {
			return 0, err
		}
		item.SettlementID = null.StringFrom("stl-1")
		if _, err = repo.UpdateCost(ctx, item, item.Version); err != nil {
			return 0, err
		}
	}
	return repo.Repository.DeleteCostsByID(ctx, ids...)
}

func TestDeleteCosts(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	rev := testutil.CreateReviewer(t, fx.revRepo, "Kim Reviewer", "kim@test.kr", reviewer.GradeSenior)

	t.Run("unsettled", func(t *testing.T) {
		a := testutil.CreateCost(t, fx.repo, rev.ID, finance.CostReviewFee, "300000", testutil.Date(2024, 3, 4))
		b := testutil.CreateCost(t, fx.repo, rev.ID, finance.CostTravel, "42000", testutil.Date(2024, 3, 5))

		cnt, err := fx.svc.DeleteCosts(ctx, a.ID, b.ID, "nope")
		require.NoError(t, err)
		assert.Equal(t, 2, cnt)
	})

	t.Run("settled while deleting", func(t *testing.T) {
		item := testutil.CreateCost(t, fx.repo, rev.ID, finance.CostReviewFee, "300000", testutil.Date(2024, 4, 4))
		svc := finance.NewService(finance.Deps{Repo: settledMeanwhile{fx.repo}, Tx: fx.db})

		cnt, err := svc.DeleteCosts(ctx, item.ID)
		assert.Equal(t, finance.ErrSettledItem, errors.Cause(err))
		assert.Zero(t, cnt)

		got, err := fx.repo.GetCost(ctx, item.ID)
		require.NoError(t, err)
		assert.False(t, got.IsSettled(), "rolled back")
	})
}

// seedLedger creates items spread over 2023-12, 2024-01, 2024-02 and 2025-01.
func seedLedger(t *testing.T, fx fixture) (reviewer.Reviewer, company.Company) {
	rev := testutil.CreateReviewer(t, fx.revRepo, "Kim Reviewer", "kim@test.kr", reviewer.GradeSenior)
	comp := testutil.CreateCompany(t, fx.compRepo, "Hanil Steel", "124-81-00998", company.TierRegular)

	membership := testutil.CreateRevenue(t, fx.repo, comp.ID, finance.RevenueMembershipFee, "1000000", testutil.Date(2024, 1, 15))
	testutil.CreateRevenue(t, fx.repo, comp.ID, finance.RevenueCertificationFee, "500000.50", testutil.Date(2024, 1, 20))
	testutil.CreateRevenue(t, fx.repo, comp.ID, finance.RevenueEducationFee, "200000", testutil.Date(2024, 2, 5))

	testutil.CreateCost(t, fx.repo, rev.ID, finance.CostReviewFee, "300000", testutil.Date(2024, 1, 10))
	testutil.CreateCost(t, fx.repo, rev.ID, finance.CostTravel, "45000.25", testutil.Date(2024, 1, 11))
	testutil.CreateCost(t, fx.repo, rev.ID, finance.CostReviewFee, "150000", testutil.Date(2023, 12, 28))
	testutil.CreateCost(t, fx.repo, rev.ID, finance.CostOperation, "99999.99", testutil.Date(2025, 1, 3))

	_, err := fx.svc.SetRevenueStatus(context.Background(), membership.ID, finance.StatusChange{Status: finance.StatusPaid, Version: 1}, fx.admin)
	require.NoError(t, err)
	return rev, comp
}

func TestDashboard(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	seedLedger(t, fx)

	dash, err := fx.svc.Dashboard(ctx, testutil.Date(2023, 12, 1), testutil.Date(2025, 1, 31))
	require.NoError(t, err)

	assert.Equal(t, "KRW", dash.Currency)
	assert.Equal(t, "1700000.50", dash.Totals.Revenue.Total.StringFixed(2))
	assert.Equal(t, "1000000.00", dash.Totals.Revenue.Paid.StringFixed(2))
	assert.Equal(t, "700000.50", dash.Totals.Revenue.Unpaid.StringFixed(2))
	assert.Equal(t, "595000.24", dash.Totals.Cost.Total.StringFixed(2))
	assert.Equal(t, "1105000.26", dash.Totals.Net.StringFixed(2))

	years := make([]int, 0, len(dash.Years))
	for _, yg := range dash.Years {
		years = append(years, yg.Year)
	}
	require.Equal(t, []int{2023, 2024, 2025}, years)

	y2023 := dash.Years[0]
	require.Len(t, y2023.Months, 1)
	assert.Equal(t, "2023-12", y2023.Months[0].Label)
	assert.Equal(t, "-150000.00", y2023.Totals.Net.StringFixed(2))

	y2024 := dash.Years[1]
	assert.Equal(t, "1355000.25", y2024.Totals.Net.StringFixed(2))
	require.Len(t, y2024.Months, 2)

	jan := y2024.Months[0]
	assert.Equal(t, 1, jan.Month)
	assert.Equal(t, "1500000.50", jan.Totals.Revenue.Total.StringFixed(2))
	assert.Equal(t, "345000.25", jan.Totals.Cost.Total.StringFixed(2))
	assert.Equal(t, "1155000.25", jan.Totals.Net.StringFixed(2))

	type catKey struct{ kind, category string }
	var cats []catKey
	for _, cg := range jan.Categories {
		cats = append(cats, catKey{cg.Kind, cg.Category})
	}
	assert.Equal(t, []catKey{
		{finance.KindRevenue, "membership_fee"},
		{finance.KindRevenue, "certification_fee"},
		{finance.KindCost, "review_fee"},
		{finance.KindCost, "travel"},
	}, cats)

	membership := jan.Categories[0]
	assert.Equal(t, 1, membership.Summary.Count)
	assert.Equal(t, "1000000.00", membership.Summary.Paid.StringFixed(2))
	require.Len(t, membership.Items, 1)
	assert.Equal(t, "Hanil Steel", membership.Items[0].PartyName)
	assert.Equal(t, 2, membership.Items[0].Version)

	travel := jan.Categories[3]
	assert.Equal(t, "-45000.25", travel.Net.StringFixed(2))
	assert.Equal(t, "Kim Reviewer", travel.Items[0].PartyName)

	assert.Equal(t, 2, y2024.Months[1].Month)

	t.Run("invalid range", func(t *testing.T) {
		_, err := fx.svc.Dashboard(ctx, testutil.Date(2024, 2, 1), testutil.Date(2024, 1, 1))
		var verr *core.ValidationError
		assert.True(t, errors.As(err, &verr))
	})

	t.Run("empty period", func(t *testing.T) {
		dash, err := fx.svc.Dashboard(ctx, testutil.Date(2020, 1, 1), testutil.Date(2020, 12, 31))
		require.NoError(t, err)
		assert.Empty(t, dash.Years)
		assert.True(t, dash.Totals.Net.IsZero())
	})
}

func TestObligations(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	rev, comp := seedLedger(t, fx)

	obl, err := fx.svc.Obligations(ctx, testutil.Date(2024, 2, 1))
	require.NoError(t, err)

	require.Len(t, obl.Reviewers, 1)
	ro := obl.Reviewers[0]
	assert.Equal(t, rev.ID, ro.ReviewerID)
	assert.Equal(t, "Kim Reviewer", ro.ReviewerName)
	assert.Equal(t, 3, ro.Count)
	assert.Equal(t, "495000.25", ro.Total.StringFixed(2))
	assert.Equal(t, testutil.Date(2023, 12, 28), ro.OldestIncurredOn)

	require.Len(t, obl.Companies, 1)
	co := obl.Companies[0]
	assert.Equal(t, comp.ID, co.CompanyID)
	assert.Equal(t, 2, co.Count)
	assert.Equal(t, "700000.50", co.Total.StringFixed(2))
	assert.Equal(t, 1, co.OverdueCount)
	assert.Equal(t, "500000.50", co.OverdueTotal.StringFixed(2))

	assert.Equal(t, "495000.25", obl.PayableTotal.StringFixed(2))
	assert.Equal(t, "700000.50", obl.ReceivableTotal.StringFixed(2))
	assert.Equal(t, "500000.50", obl.OverdueTotal.StringFixed(2))

	t.Run("single company", func(t *testing.T) {
		co, err := fx.svc.CompanyObligation(ctx, comp.ID, testutil.Date(2024, 2, 10))
		require.NoError(t, err)
		assert.Equal(t, 2, co.OverdueCount)
		require.Len(t, co.Items, 2)
		assert.Equal(t, finance.RevenueCertificationFee, co.Items[0].Category)
	})
}

func TestExport(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	rev, _ := seedLedger(t, fx)

	t.Run("dashboard", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, fx.svc.ExportDashboard(ctx, testutil.Date(2024, 1, 1), testutil.Date(2024, 12, 31), &buf))

		f, err := excelize.OpenReader(&buf)
		require.NoError(t, err)
		defer f.Close()

		assert.Equal(t, []string{"Summary", "Revenues", "Costs"}, f.GetSheetList())
		month, err := f.GetCellValue("Summary", "A2")
		require.NoError(t, err)
		assert.Equal(t, "2024-01", month)
		category, err := f.GetCellValue("Summary", "C2")
		require.NoError(t, err)
		assert.Equal(t, "membership_fee", category)

		rows, err := f.GetRows("Costs")
		require.NoError(t, err)
		assert.Len(t, rows, 3) // header + 2 items
	})

	t.Run("settlement", func(t *testing.T) {
		stl, err := fx.svc.Settle(ctx, finance.NewSettlement{
			ReviewerID: rev.ID,
			PeriodFrom: testutil.Date(2024, 1, 1),
			PeriodTo:   testutil.Date(2024, 1, 31),
		}, fx.admin)
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, fx.svc.ExportSettlement(ctx, stl.ID, &buf))

		f, err := excelize.OpenReader(&buf)
		require.NoError(t, err)
		defer f.Close()

		assert.Equal(t, []string{"Statement", "Items"}, f.GetSheetList())
		name, err := f.GetCellValue("Statement", "B2")
		require.NoError(t, err)
		assert.Equal(t, "Kim Reviewer", name)
		rows, err := f.GetRows("Items")
		require.NoError(t, err)
		assert.Len(t, rows, 3)
	})

	t.Run("unknown settlement", func(t *testing.T) {
		err := fx.svc.ExportSettlement(ctx, "missing", new(bytes.Buffer))
		assert.Equal(t, finance.ErrSettlementNotFound, errors.Cause(err))
	})
}

func TestValidation(t *testing.T) {
	translator, _ := ut.New(en.New()).GetTranslator("en")
	validate := testutil.NewValidator(translator)

	tests := []struct {
		name   string
		amount string
		valid  bool
	}{
		{name: "integer", amount: "300000", valid: true},
		{name: "two decimals", amount: "45000.25", valid: true},
		{name: "three decimals", amount: "45000.255"},
		{name: "zero", amount: "0"},
		{name: "negative", amount: "-10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nc := finance.NewCostItem{
				ReviewerID: "some-reviewer",
				Category:   " Review_Fee ",
				Amount:     decimal.RequireFromString(tt.amount),
				IncurredOn: time.Now(),
			}
			err := nc.Validate(validate)
			if tt.valid {
				assert.NoError(t, err)
				assert.Equal(t, finance.CostReviewFee, nc.Category)
			} else {
				assert.Error(t, err)
			}
		})
	}

	t.Run("status change", func(t *testing.T) {
		sc := finance.StatusChange{Status: "refunded", Version: 1}
		assert.Error(t, sc.Validate(validate))
		sc = finance.StatusChange{Status: "PAID", Version: 1}
		assert.NoError(t, sc.Validate(validate))
		sc = finance.StatusChange{Status: finance.StatusPaid}
		assert.Error(t, sc.Validate(validate))
	})

	t.Run("settlement period", func(t *testing.T) {
		ns := finance.NewSettlement{ReviewerID: "r", PeriodFrom: testutil.Date(2024, 3, 1), PeriodTo: testutil.Date(2024, 2, 1)}
		assert.Error(t, ns.Validate(validate))
	})
}
