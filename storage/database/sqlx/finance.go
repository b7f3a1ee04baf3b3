package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/kcci/portal/core"
	"github.com/kcci/portal/core/finance"
)

const (
	costTable       = "cost_item"
	revenueTable    = "revenue_item"
	settlementTable = "settlement"
)

var (
	costColumns = []string{
		"id", "reviewer_id", "category", "description", "amount", "incurred_on", "status",
		"paid_at", "settlement_id", "version", "created_at", "updated_at",
	}
	revenueColumns = []string{
		"id", "company_id", "category", "description", "amount", "due_date", "status",
		"paid_at", "version", "created_at", "updated_at",
	}
	settlementColumns = []string{
		"id", "reviewer_id", "period_from", "period_to", "total", "item_count", "note", "settled_by", "settled_at",
	}
)

type costRow struct {
	ID           string          `db:"id"`
	ReviewerID   string          `db:"reviewer_id"`
	Category     string          `db:"category"`
	Description  string          `db:"description"`
	Amount       decimal.Decimal `db:"amount"`
	IncurredOn   time.Time       `db:"incurred_on"`
	Status       string          `db:"status"`
	PaidAt       null.Time       `db:"paid_at"`
	SettlementID null.String     `db:"settlement_id"`
	Version      int             `db:"version"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

func (row costRow) item() finance.CostItem {
	paidAt := row.PaidAt
	if paidAt.Valid {
		paidAt.Time = paidAt.Time.UTC()
	}
	return finance.CostItem{
		ID:           row.ID,
		ReviewerID:   row.ReviewerID,
		Category:     finance.CostCategory(row.Category),
		Description:  row.Description,
		Amount:       row.Amount,
		IncurredOn:   row.IncurredOn.UTC(),
		Status:       finance.PaymentStatus(row.Status),
		PaidAt:       paidAt,
		SettlementID: row.SettlementID,
		Version:      row.Version,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

func costValues(item finance.CostItem) map[string]interface{} {
	return map[string]interface{}{
		"reviewer_id":   item.ReviewerID,
		"category":      string(item.Category),
		"description":   item.Description,
		"amount":        item.Amount,
		"incurred_on":   item.IncurredOn.UTC(),
		"status":        string(item.Status),
		"paid_at":       item.PaidAt,
		"settlement_id": item.SettlementID,
		"created_at":    item.CreatedAt.UTC(),
		"updated_at":    item.UpdatedAt.UTC(),
	}
}

type revenueRow struct {
	ID          string          `db:"id"`
	CompanyID   string          `db:"company_id"`
	Category    string          `db:"category"`
	Description string          `db:"description"`
	Amount      decimal.Decimal `db:"amount"`
	DueDate     time.Time       `db:"due_date"`
	Status      string          `db:"status"`
	PaidAt      null.Time       `db:"paid_at"`
	Version     int             `db:"version"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

func (row revenueRow) item() finance.RevenueItem {
	paidAt := row.PaidAt
	if paidAt.Valid {
		paidAt.Time = paidAt.Time.UTC()
	}
	return finance.RevenueItem{
		ID:          row.ID,
		CompanyID:   row.CompanyID,
		Category:    finance.RevenueCategory(row.Category),
		Description: row.Description,
		Amount:      row.Amount,
		DueDate:     row.DueDate.UTC(),
		Status:      finance.PaymentStatus(row.Status),
		PaidAt:      paidAt,
		Version:     row.Version,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

func revenueValues(item finance.RevenueItem) map[string]interface{} {
	return map[string]interface{}{
		"company_id":  item.CompanyID,
		"category":    string(item.Category),
		"description": item.Description,
		"amount":      item.Amount,
		"due_date":    item.DueDate.UTC(),
		"status":      string(item.Status),
		"paid_at":     item.PaidAt,
		"created_at":  item.CreatedAt.UTC(),
		"updated_at":  item.UpdatedAt.UTC(),
	}
}

type settlementRow struct {
	ID         string          `db:"id"`
	ReviewerID string          `db:"reviewer_id"`
	PeriodFrom time.Time       `db:"period_from"`
	PeriodTo   time.Time       `db:"period_to"`
	Total      decimal.Decimal `db:"total"`
	ItemCount  int             `db:"item_count"`
	Note       string          `db:"note"`
	SettledBy  null.String     `db:"settled_by"`
	SettledAt  time.Time       `db:"settled_at"`
}

func (row settlementRow) settlement() finance.Settlement {
	return finance.Settlement{
		ID:         row.ID,
		ReviewerID: row.ReviewerID,
		PeriodFrom: row.PeriodFrom.UTC(),
		PeriodTo:   row.PeriodTo.UTC(),
		Total:      row.Total,
		ItemCount:  row.ItemCount,
		Note:       row.Note,
		SettledBy:  row.SettledBy.String,
		SettledAt:  row.SettledAt.UTC(),
	}
}

type financeRepository struct {
	repo
}

var _ finance.Repository = (*financeRepository)(nil) // interface compliance check

func NewFinanceRepository(db *sqlx.DB) *financeRepository {
	return &financeRepository{repo{db: db}}
}

// versionedUpdate stores values only if the row is still at `version`.
// It reports whether the row was found at all when nothing was updated.
func (r *financeRepository) versionedUpdate(ctx context.Context, table, id string, version int, values map[string]interface{}) (updated, found bool, err error) {
	values["version"] = version + 1
	q := psql.Update(table).SetMap(values).Where(sq.Eq{"id": id, "version": version})
	n, err := r.run(ctx, q)
	if err != nil || n > 0 {
		return n > 0, n > 0, err
	}

	var exists bool
	err = r.get(ctx, &exists, psql.Select("true").From(table).Where(sq.Eq{"id": id}))
	if errors.Cause(err) == sql.ErrNoRows {
		return false, false, nil
	} else if err != nil {
		return false, false, errors.Wrap(err, "checking "+table)
	}
	return false, exists, nil
}

// Cost items

func (r *financeRepository) CreateCost(ctx context.Context, item finance.CostItem) (finance.CostItem, error) {
	item.ID = uuid.New().String()
	if item.Version == 0 {
		item.Version = 1
	}
	values := costValues(item)
	values["id"] = item.ID
	values["version"] = item.Version
	if _, err := r.run(ctx, psql.Insert(costTable).SetMap(values)); err != nil {
		return finance.CostItem{}, errors.Wrap(err, "inserting cost item")
	}
	return item, nil
}

func (r *financeRepository) QueryCosts(ctx context.Context, filter *finance.CostFilter, ordering []core.DBOrdering) ([]finance.CostItem, error) {
	q := psql.Select(costColumns...).From(costTable)

	if filter != nil {
		if len(filter.ReviewerIDs) > 0 {
			q = q.Where(sq.Eq{"reviewer_id": validUUIDs(filter.ReviewerIDs)})
		}
		if len(filter.Categories) > 0 {
			cats := make([]string, 0, len(filter.Categories))
			for _, c := range filter.Categories {
				cats = append(cats, string(c))
			}
			q = q.Where(sq.Eq{"category": cats})
		}
		if len(filter.Statuses) > 0 {
			q = q.Where(sq.Eq{"status": statusStrings(filter.Statuses)})
		}
		if !filter.From.IsZero() {
			q = q.Where(sq.GtOrEq{"incurred_on": filter.From.UTC()})
		}
		if !filter.To.IsZero() {
			q = q.Where(sq.LtOrEq{"incurred_on": filter.To.UTC()})
		}
		if filter.Settled != nil {
			if *filter.Settled {
				q = q.Where(sq.NotEq{"settlement_id": nil})
			} else {
				q = q.Where(sq.Eq{"settlement_id": nil})
			}
		}
		if filter.SettlementID != "" {
			q = q.Where(sq.Eq{"settlement_id": validUUIDs([]string{filter.SettlementID})})
		}
	}
	q = q.OrderBy(orderBy(ordering, finance.CostOrderingFields, "incurred_on DESC")...)

	var rows []costRow
	if err := r.selectAll(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying cost items")
	}
	items := make([]finance.CostItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.item())
	}
	return items, nil
}

func (r *financeRepository) GetCost(ctx context.Context, id string) (finance.CostItem, error) {
	if !validUUID(id) {
		return finance.CostItem{}, finance.ErrCostNotFound
	}
	var row costRow
	if err := r.get(ctx, &row, psql.Select(costColumns...).From(costTable).Where(sq.Eq{"id": id})); err != nil {
		return finance.CostItem{}, trapNoRowsErr(err, finance.ErrCostNotFound, "finding cost item")
	}
	return row.item(), nil
}

func (r *financeRepository) UpdateCost(ctx context.Context, item finance.CostItem, version int) (finance.CostItem, error) {
	if !validUUID(item.ID) {
		return finance.CostItem{}, finance.ErrCostNotFound
	}
	updated, found, err := r.versionedUpdate(ctx, costTable, item.ID, version, costValues(item))
	switch {
	case err != nil:
		return finance.CostItem{}, errors.Wrap(err, "updating cost item")
	case !found:
		return finance.CostItem{}, finance.ErrCostNotFound
	case !updated:
		return finance.CostItem{}, finance.ErrStaleVersion
	}
	item.Version = version + 1
	return item, nil
}

func (r *financeRepository) DeleteCostsByID(ctx context.Context, ids ...string) (int, error) {
	ids = validUUIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := r.run(ctx, psql.Delete(costTable).Where(sq.Eq{"id": ids, "settlement_id": nil}))
	if err != nil {
		return 0, errors.Wrap(err, "deleting cost items")
	}
	return n, nil
}

// Revenue items

func (r *financeRepository) CreateRevenue(ctx context.Context, item finance.RevenueItem) (finance.RevenueItem, error) {
	item.ID = uuid.New().String()
	if item.Version == 0 {
		item.Version = 1
	}
	values := revenueValues(item)
	values["id"] = item.ID
	values["version"] = item.Version
	if _, err := r.run(ctx, psql.Insert(revenueTable).SetMap(values)); err != nil {
		return finance.RevenueItem{}, errors.Wrap(err, "inserting revenue item")
	}
	return item, nil
}

func (r *financeRepository) QueryRevenues(ctx context.Context, filter *finance.RevenueFilter, ordering []core.DBOrdering) ([]finance.RevenueItem, error) {
	q := psql.Select(revenueColumns...).From(revenueTable)

	if filter != nil {
		if len(filter.CompanyIDs) > 0 {
			q = q.Where(sq.Eq{"company_id": validUUIDs(filter.CompanyIDs)})
		}
		if len(filter.Categories) > 0 {
			cats := make([]string, 0, len(filter.Categories))
			for _, c := range filter.Categories {
				cats = append(cats, string(c))
			}
			q = q.Where(sq.Eq{"category": cats})
		}
		if len(filter.Statuses) > 0 {
			q = q.Where(sq.Eq{"status": statusStrings(filter.Statuses)})
		}
		if !filter.From.IsZero() {
			q = q.Where(sq.GtOrEq{"due_date": filter.From.UTC()})
		}
		if !filter.To.IsZero() {
			q = q.Where(sq.LtOrEq{"due_date": filter.To.UTC()})
		}
	}
	q = q.OrderBy(orderBy(ordering, finance.RevenueOrderingFields, "due_date DESC")...)

	var rows []revenueRow
	if err := r.selectAll(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying revenue items")
	}
	items := make([]finance.RevenueItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.item())
	}
	return items, nil
}

func (r *financeRepository) GetRevenue(ctx context.Context, id string) (finance.RevenueItem, error) {
	if !validUUID(id) {
		return finance.RevenueItem{}, finance.ErrRevenueNotFound
	}
	var row revenueRow
	if err := r.get(ctx, &row, psql.Select(revenueColumns...).From(revenueTable).Where(sq.Eq{"id": id})); err != nil {
		return finance.RevenueItem{}, trapNoRowsErr(err, finance.ErrRevenueNotFound, "finding revenue item")
	}
	return row.item(), nil
}

func (r *financeRepository) UpdateRevenue(ctx context.Context, item finance.RevenueItem, version int) (finance.RevenueItem, error) {
	if !validUUID(item.ID) {
		return finance.RevenueItem{}, finance.ErrRevenueNotFound
	}
	updated, found, err := r.versionedUpdate(ctx, revenueTable, item.ID, version, revenueValues(item))
	switch {
	case err != nil:
		return finance.RevenueItem{}, errors.Wrap(err, "updating revenue item")
	case !found:
		return finance.RevenueItem{}, finance.ErrRevenueNotFound
	case !updated:
		return finance.RevenueItem{}, finance.ErrStaleVersion
	}
	item.Version = version + 1
	return item, nil
}

func (r *financeRepository) DeleteRevenuesByID(ctx context.Context, ids ...string) (int, error) {
	ids = validUUIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := r.run(ctx, psql.Delete(revenueTable).Where(sq.Eq{"id": ids}))
	if err != nil {
		return 0, errors.Wrap(err, "deleting revenue items")
	}
	return n, nil
}

// Settlements

func (r *financeRepository) CreateSettlement(ctx context.Context, stl finance.Settlement) (finance.Settlement, error) {
	stl.ID = uuid.New().String()
	q := psql.Insert(settlementTable).SetMap(map[string]interface{}{
		"id":          stl.ID,
		"reviewer_id": stl.ReviewerID,
		"period_from": stl.PeriodFrom.UTC(),
		"period_to":   stl.PeriodTo.UTC(),
		"total":       stl.Total,
		"item_count":  stl.ItemCount,
		"note":        stl.Note,
		"settled_by":  null.NewString(stl.SettledBy, stl.SettledBy != ""),
		"settled_at":  stl.SettledAt.UTC(),
	})
	if _, err := r.run(ctx, q); err != nil {
		return finance.Settlement{}, errors.Wrap(err, "inserting settlement")
	}
	return stl, nil
}

func (r *financeRepository) QuerySettlements(ctx context.Context, filter *finance.SettlementFilter, ordering []core.DBOrdering) ([]finance.Settlement, error) {
	q := psql.Select(settlementColumns...).From(settlementTable)

	if filter != nil {
		if len(filter.ReviewerIDs) > 0 {
			q = q.Where(sq.Eq{"reviewer_id": validUUIDs(filter.ReviewerIDs)})
		}
		if !filter.From.IsZero() {
			q = q.Where(sq.GtOrEq{"settled_at": filter.From.UTC()})
		}
		if !filter.To.IsZero() {
			q = q.Where(sq.LtOrEq{"settled_at": filter.To.UTC()})
		}
	}
	q = q.OrderBy(orderBy(ordering, finance.SettlementOrderingFields, "settled_at DESC")...)

	var rows []settlementRow
	if err := r.selectAll(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying settlements")
	}
	stls := make([]finance.Settlement, 0, len(rows))
	for _, row := range rows {
		stls = append(stls, row.settlement())
	}
	return stls, nil
}

func (r *financeRepository) GetSettlement(ctx context.Context, id string) (finance.Settlement, error) {
	if !validUUID(id) {
		return finance.Settlement{}, finance.ErrSettlementNotFound
	}
	var row settlementRow
	q := psql.Select(settlementColumns...).From(settlementTable).Where(sq.Eq{"id": id})
	if err := r.get(ctx, &row, q); err != nil {
		return finance.Settlement{}, trapNoRowsErr(err, finance.ErrSettlementNotFound, "finding settlement")
	}
	return row.settlement(), nil
}

func statusStrings(statuses []finance.PaymentStatus) []string {
	list := make([]string, 0, len(statuses))
	for _, s := range statuses {
		list = append(list, string(s))
	}
	return list
}
