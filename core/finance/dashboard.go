package finance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/kcci/portal/core"
)

// Line item kinds
const (
	KindCost    = "cost"
	KindRevenue = "revenue"
)

type (
	Summary struct {
		Count  int             `json:"count"`
		Total  decimal.Decimal `json:"total"`
		Paid   decimal.Decimal `json:"paid"`
		Unpaid decimal.Decimal `json:"unpaid"`
	}

	Totals struct {
		Revenue Summary         `json:"revenue"`
		Cost    Summary         `json:"cost"`
		Net     decimal.Decimal `json:"net"` // revenue - cost
	}

	// LineItem is a cost or revenue item as shown on the dashboard.
	// Version is carried so that the status can be toggled from the dashboard.
	LineItem struct {
		ID          string          `json:"id"`
		Kind        string          `json:"kind"`
		Category    string          `json:"category"`
		Description string          `json:"description"`
		PartyID     string          `json:"party_id"`
		PartyName   string          `json:"party_name"`
		Amount      decimal.Decimal `json:"amount"`
		Date        time.Time       `json:"date"` // IncurredOn or DueDate
		Status      PaymentStatus   `json:"status"`
		PaidAt      null.Time       `json:"paid_at"`
		Settled     bool            `json:"settled"`
		Version     int             `json:"version"`
	}

	CategoryGroup struct {
		Kind     string          `json:"kind"`
		Category string          `json:"category"`
		Summary  Summary         `json:"summary"`
		Net      decimal.Decimal `json:"net"`
		Items    []LineItem      `json:"items"`
	}

	MonthGroup struct {
		Month      int             `json:"month"`
		Label      string          `json:"label"` // YYYY-MM
		Totals     Totals          `json:"totals"`
		Categories []CategoryGroup `json:"categories"`
	}

	YearGroup struct {
		Year   int          `json:"year"`
		Totals Totals       `json:"totals"`
		Months []MonthGroup `json:"months"`
	}

	Dashboard struct {
		From     time.Time   `json:"from"`
		To       time.Time   `json:"to"`
		Currency string      `json:"currency"`
		Totals   Totals      `json:"totals"`
		Years    []YearGroup `json:"years"`
	}

	ReviewerObligation struct {
		ReviewerID       string          `json:"reviewer_id"`
		ReviewerName     string          `json:"reviewer_name"`
		Count            int             `json:"count"`
		Total            decimal.Decimal `json:"total"`
		OldestIncurredOn time.Time       `json:"oldest_incurred_on"`
	}

	CompanyObligation struct {
		CompanyID    string          `json:"company_id"`
		CompanyName  string          `json:"company_name"`
		Count        int             `json:"count"`
		Total        decimal.Decimal `json:"total"`
		OverdueCount int             `json:"overdue_count"`
		OverdueTotal decimal.Decimal `json:"overdue_total"`
		Items        []RevenueItem   `json:"items,omitempty"`
	}

	// Obligations lists what is still owed: Reviewers are payables, Companies are receivables.
	Obligations struct {
		AsOf            time.Time            `json:"as_of"`
		Currency        string               `json:"currency"`
		Reviewers       []ReviewerObligation `json:"reviewers"`
		Companies       []CompanyObligation  `json:"companies"`
		PayableTotal    decimal.Decimal      `json:"payable_total"`
		ReceivableTotal decimal.Decimal      `json:"receivable_total"`
		OverdueTotal    decimal.Decimal      `json:"overdue_total"`
	}
)

func newSummary() Summary {
	return Summary{Total: decimal.Zero, Paid: decimal.Zero, Unpaid: decimal.Zero}
}

func newTotals() Totals {
	return Totals{Revenue: newSummary(), Cost: newSummary(), Net: decimal.Zero}
}

func (s *Summary) add(amount decimal.Decimal, status PaymentStatus) {
	s.Count++
	s.Total = s.Total.Add(amount)
	if status == StatusPaid {
		s.Paid = s.Paid.Add(amount)
	} else {
		s.Unpaid = s.Unpaid.Add(amount)
	}
}

func (t *Totals) add(li LineItem) {
	if li.Kind == KindRevenue {
		t.Revenue.add(li.Amount, li.Status)
	} else {
		t.Cost.add(li.Amount, li.Status)
	}
	t.Net = t.Revenue.Total.Sub(t.Cost.Total)
}

// dashboardRange defaults to the current year up to today.
func dashboardRange(from, to time.Time) (time.Time, time.Time, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = time.Date(to.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	from, to = core.StartOfDay(from), core.EndOfDay(to)
	if from.After(to) {
		return from, to, core.NewValidationError(errors.New("the start date must not be after the end date"))
	}
	return from, to, nil
}

// Dashboard groups the cost and revenue items of the period by year, month and category.
// Costs are dated by IncurredOn and revenues by DueDate.
func (svc *Service) Dashboard(ctx context.Context, from, to time.Time) (Dashboard, error) {
	from, to, err := dashboardRange(from, to)
	if err != nil {
		return Dashboard{}, err
	}

	items, err := svc.lineItems(ctx, from, to)
	if err != nil {
		return Dashboard{}, err
	}
	return buildDashboard(from, to, svc.Currency, items), nil
}

func (svc *Service) lineItems(ctx context.Context, from, to time.Time) ([]LineItem, error) {
	ordering := []core.DBOrdering{{Field: "amount", Ascending: false}}
	costs, err := svc.Repo.QueryCosts(ctx, &CostFilter{From: from, To: to}, ordering)
	if err != nil {
		return nil, errors.Wrap(err, "querying cost items")
	}
	revenues, err := svc.Repo.QueryRevenues(ctx, &RevenueFilter{From: from, To: to}, ordering)
	if err != nil {
		return nil, errors.Wrap(err, "querying revenue items")
	}

	names := svc.newNameCache()
	items := make([]LineItem, 0, len(costs)+len(revenues))
	for _, rev := range revenues {
		items = append(items, LineItem{
			ID:          rev.ID,
			Kind:        KindRevenue,
			Category:    string(rev.Category),
			Description: rev.Description,
			PartyID:     rev.CompanyID,
			PartyName:   names.company(ctx, rev.CompanyID),
			Amount:      rev.Amount,
			Date:        rev.DueDate,
			Status:      rev.Status,
			PaidAt:      rev.PaidAt,
			Version:     rev.Version,
		})
	}
	for _, cost := range costs {
		items = append(items, LineItem{
			ID:          cost.ID,
			Kind:        KindCost,
			Category:    string(cost.Category),
			Description: cost.Description,
			PartyID:     cost.ReviewerID,
			PartyName:   names.reviewer(ctx, cost.ReviewerID),
			Amount:      cost.Amount,
			Date:        cost.IncurredOn,
			Status:      cost.Status,
			PaidAt:      cost.PaidAt,
			Settled:     cost.IsSettled(),
			Version:     cost.Version,
		})
	}
	return items, nil
}

// buildDashboard nests items as years > months > categories. Every level is sorted chronologically,
// categories list revenues before costs in their declaration order and items keep their input order.
func buildDashboard(from, to time.Time, currency string, items []LineItem) Dashboard {
	dash := Dashboard{From: from, To: to, Currency: currency, Totals: newTotals(), Years: []YearGroup{}}

	yearIdx := make(map[int]int)
	monthIdx := make(map[string]int) // "2006-01"
	catIdx := make(map[string]int)   // "2006-01/kind/category"
	for _, li := range items {
		year, month := li.Date.Year(), int(li.Date.Month())
		label := fmt.Sprintf("%04d-%02d", year, month)

		yi, ok := yearIdx[year]
		if !ok {
			dash.Years = append(dash.Years, YearGroup{Year: year, Totals: newTotals()})
			yi = len(dash.Years) - 1
			yearIdx[year] = yi
		}
		yg := &dash.Years[yi]

		mi, ok := monthIdx[label]
		if !ok {
			yg.Months = append(yg.Months, MonthGroup{Month: month, Label: label, Totals: newTotals()})
			mi = len(yg.Months) - 1
			monthIdx[label] = mi
		}
		mg := &yg.Months[mi]

		catKey := label + "/" + li.Kind + "/" + li.Category
		ci, ok := catIdx[catKey]
		if !ok {
			mg.Categories = append(mg.Categories, CategoryGroup{Kind: li.Kind, Category: li.Category, Summary: newSummary()})
			ci = len(mg.Categories) - 1
			catIdx[catKey] = ci
		}
		cg := &mg.Categories[ci]

		cg.Items = append(cg.Items, li)
		cg.Summary.add(li.Amount, li.Status)
		cg.Net = cg.Summary.Total
		if li.Kind == KindCost {
			cg.Net = cg.Net.Neg()
		}
		mg.Totals.add(li)
		yg.Totals.add(li)
		dash.Totals.add(li)
	}

	// groups were appended in encounter order; sort them once filled
	sort.Slice(dash.Years, func(i, j int) bool { return dash.Years[i].Year < dash.Years[j].Year })
	for y := range dash.Years {
		months := dash.Years[y].Months
		sort.Slice(months, func(i, j int) bool { return months[i].Month < months[j].Month })
		for m := range months {
			cats := months[m].Categories
			sort.SliceStable(cats, func(i, j int) bool { return categoryRank(cats[i]) < categoryRank(cats[j]) })
		}
	}
	return dash
}

func categoryRank(cg CategoryGroup) int {
	if cg.Kind == KindRevenue {
		for i, cat := range RevenueCategories {
			if string(cat) == cg.Category {
				return i
			}
		}
		return len(RevenueCategories)
	}
	for i, cat := range CostCategories {
		if string(cat) == cg.Category {
			return 100 + i
		}
	}
	return 100 + len(CostCategories)
}

// Obligations sums the unpaid items per reviewer and per company. Revenue items due before asOf
// are also counted as overdue. Both lists are sorted by descending total.
func (svc *Service) Obligations(ctx context.Context, asOf time.Time) (Obligations, error) {
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	obl := Obligations{
		AsOf:            core.StartOfDay(asOf),
		Currency:        svc.Currency,
		Reviewers:       []ReviewerObligation{},
		Companies:       []CompanyObligation{},
		PayableTotal:    decimal.Zero,
		ReceivableTotal: decimal.Zero,
		OverdueTotal:    decimal.Zero,
	}
	unpaid := []PaymentStatus{StatusUnpaid}
	ordering := []core.DBOrdering{{Field: "created_at", Ascending: true}}

	costs, err := svc.Repo.QueryCosts(ctx, &CostFilter{Statuses: unpaid, To: core.EndOfDay(asOf)}, ordering)
	if err != nil {
		return obl, errors.Wrap(err, "querying unpaid cost items")
	}
	revenues, err := svc.Repo.QueryRevenues(ctx, &RevenueFilter{Statuses: unpaid}, ordering)
	if err != nil {
		return obl, errors.Wrap(err, "querying unpaid revenue items")
	}

	names := svc.newNameCache()
	revIdx := make(map[string]int)
	for _, cost := range costs {
		i, ok := revIdx[cost.ReviewerID]
		if !ok {
			obl.Reviewers = append(obl.Reviewers, ReviewerObligation{
				ReviewerID:       cost.ReviewerID,
				ReviewerName:     names.reviewer(ctx, cost.ReviewerID),
				Total:            decimal.Zero,
				OldestIncurredOn: cost.IncurredOn,
			})
			i = len(obl.Reviewers) - 1
			revIdx[cost.ReviewerID] = i
		}
		ro := &obl.Reviewers[i]
		ro.Count++
		ro.Total = ro.Total.Add(cost.Amount)
		if cost.IncurredOn.Before(ro.OldestIncurredOn) {
			ro.OldestIncurredOn = cost.IncurredOn
		}
		obl.PayableTotal = obl.PayableTotal.Add(cost.Amount)
	}

	compIdx := make(map[string]int)
	for _, rev := range revenues {
		i, ok := compIdx[rev.CompanyID]
		if !ok {
			obl.Companies = append(obl.Companies, CompanyObligation{
				CompanyID:    rev.CompanyID,
				CompanyName:  names.company(ctx, rev.CompanyID),
				Total:        decimal.Zero,
				OverdueTotal: decimal.Zero,
			})
			i = len(obl.Companies) - 1
			compIdx[rev.CompanyID] = i
		}
		co := &obl.Companies[i]
		co.addRevenue(rev, asOf)
		obl.ReceivableTotal = obl.ReceivableTotal.Add(rev.Amount)
		if rev.IsOverdue(asOf) {
			obl.OverdueTotal = obl.OverdueTotal.Add(rev.Amount)
		}
	}

	sort.SliceStable(obl.Reviewers, func(i, j int) bool {
		return obl.Reviewers[i].Total.GreaterThan(obl.Reviewers[j].Total)
	})
	sort.SliceStable(obl.Companies, func(i, j int) bool {
		return obl.Companies[i].Total.GreaterThan(obl.Companies[j].Total)
	})
	return obl, nil
}

// CompanyObligation returns the unpaid revenue items of a single company, listed by due date.
func (svc *Service) CompanyObligation(ctx context.Context, companyID string, asOf time.Time) (CompanyObligation, error) {
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	co := CompanyObligation{CompanyID: companyID, Total: decimal.Zero, OverdueTotal: decimal.Zero, Items: []RevenueItem{}}
	filter := &RevenueFilter{CompanyIDs: []string{companyID}, Statuses: []PaymentStatus{StatusUnpaid}}
	revenues, err := svc.Repo.QueryRevenues(ctx, filter, []core.DBOrdering{{Field: "due_date", Ascending: true}})
	if err != nil {
		return co, errors.Wrap(err, "querying unpaid revenue items")
	}
	for _, rev := range revenues {
		co.addRevenue(rev, asOf)
		co.Items = append(co.Items, rev)
	}
	return co, nil
}

func (co *CompanyObligation) addRevenue(rev RevenueItem, asOf time.Time) {
	co.Count++
	co.Total = co.Total.Add(rev.Amount)
	if rev.IsOverdue(asOf) {
		co.OverdueCount++
		co.OverdueTotal = co.OverdueTotal.Add(rev.Amount)
	}
}

// nameCache resolves party names once per request. Missing parties resolve to "".
type nameCache struct {
	svc       *Service
	reviewers map[string]string
	companies map[string]string
}

func (svc *Service) newNameCache() *nameCache {
	return &nameCache{svc: svc, reviewers: make(map[string]string), companies: make(map[string]string)}
}

func (nc *nameCache) reviewer(ctx context.Context, id string) string {
	if name, ok := nc.reviewers[id]; ok {
		return name
	}
	rev, err := nc.svc.Reviewers.Get(ctx, id)
	if err != nil && !core.IsNotFound(err) {
		nc.svc.Logger.Warn("resolving reviewer name", errors.Wrap(err, id))
	}
	nc.reviewers[id] = rev.Name
	return rev.Name
}

func (nc *nameCache) company(ctx context.Context, id string) string {
	if name, ok := nc.companies[id]; ok {
		return name
	}
	comp, err := nc.svc.Companies.Get(ctx, id)
	if err != nil && !core.IsNotFound(err) {
		nc.svc.Logger.Warn("resolving company name", errors.Wrap(err, id))
	}
	nc.companies[id] = comp.Name
	return comp.Name
}
