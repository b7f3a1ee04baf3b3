package inmemdb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/kcci/portal/core"
	"github.com/kcci/portal/core/finance"
)

var (
	costComparators = comparators[finance.CostItem]{
		"incurred_on": func(a, b finance.CostItem) int { return cmpTime(a.IncurredOn, b.IncurredOn) },
		"amount":      func(a, b finance.CostItem) int { return a.Amount.Cmp(b.Amount) },
		"category":    func(a, b finance.CostItem) int { return strings.Compare(string(a.Category), string(b.Category)) },
		"status":      func(a, b finance.CostItem) int { return strings.Compare(string(a.Status), string(b.Status)) },
		"created_at":  func(a, b finance.CostItem) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
	}
	revenueComparators = comparators[finance.RevenueItem]{
		"due_date":   func(a, b finance.RevenueItem) int { return cmpTime(a.DueDate, b.DueDate) },
		"amount":     func(a, b finance.RevenueItem) int { return a.Amount.Cmp(b.Amount) },
		"category":   func(a, b finance.RevenueItem) int { return strings.Compare(string(a.Category), string(b.Category)) },
		"status":     func(a, b finance.RevenueItem) int { return strings.Compare(string(a.Status), string(b.Status)) },
		"created_at": func(a, b finance.RevenueItem) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
	}
	settlementComparators = comparators[finance.Settlement]{
		"settled_at":  func(a, b finance.Settlement) int { return cmpTime(a.SettledAt, b.SettledAt) },
		"total":       func(a, b finance.Settlement) int { return a.Total.Cmp(b.Total) },
		"period_from": func(a, b finance.Settlement) int { return cmpTime(a.PeriodFrom, b.PeriodFrom) },
		"item_count":  func(a, b finance.Settlement) int { return cmpInt(a.ItemCount, b.ItemCount) },
	}
)

type financeRepository struct {
	db *DB
}

var _ finance.Repository = (*financeRepository)(nil) // interface compliance check

func NewFinanceRepository(db *DB) *financeRepository {
	return &financeRepository{db: db}
}

// Cost items

func (repo *financeRepository) CreateCost(ctx context.Context, item finance.CostItem) (finance.CostItem, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.store.reviewers[item.ReviewerID]; !ok {
		return finance.CostItem{}, errReferenced
	}
	item.ID = uuid.New().String()
	if item.Version == 0 {
		item.Version = 1
	}
	repo.db.store.costs[item.ID] = item
	return item, nil
}

func (repo *financeRepository) QueryCosts(_ context.Context, filter *finance.CostFilter, ordering []core.DBOrdering) ([]finance.CostItem, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	items := make([]finance.CostItem, 0, len(repo.db.store.costs))
	for _, item := range repo.db.store.costs {
		if filter != nil {
			if len(filter.ReviewerIDs) > 0 && !contains(filter.ReviewerIDs, item.ReviewerID) {
				continue
			}
			if len(filter.Categories) > 0 && !contains(filter.Categories, item.Category) {
				continue
			}
			if len(filter.Statuses) > 0 && !contains(filter.Statuses, item.Status) {
				continue
			}
			if !inTimeRange(item.IncurredOn, filter.From, filter.To) {
				continue
			}
			if filter.Settled != nil && item.IsSettled() != *filter.Settled {
				continue
			}
			if filter.SettlementID != "" && item.SettlementID.String != filter.SettlementID {
				continue
			}
		}
		items = append(items, item)
	}
	sortRecords(items, ordering, costComparators, core.DBOrdering{Field: "incurred_on"})
	return items, nil
}

func (repo *financeRepository) GetCost(_ context.Context, id string) (finance.CostItem, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if item, ok := repo.db.store.costs[id]; ok {
		return item, nil
	}
	return finance.CostItem{}, finance.ErrCostNotFound
}

func (repo *financeRepository) UpdateCost(ctx context.Context, item finance.CostItem, version int) (finance.CostItem, error) {
	defer repo.db.lockWrite(ctx)()

	stored, ok := repo.db.store.costs[item.ID]
	if !ok {
		return finance.CostItem{}, finance.ErrCostNotFound
	}
	if stored.Version != version {
		return finance.CostItem{}, finance.ErrStaleVersion
	}
	item.Version = version + 1
	repo.db.store.costs[item.ID] = item
	return item, nil
}

func (repo *financeRepository) DeleteCostsByID(ctx context.Context, ids ...string) (int, error) {
	defer repo.db.lockWrite(ctx)()

	var deleted int
	for _, id := range ids {
		if item, ok := repo.db.store.costs[id]; ok && !item.IsSettled() {
			delete(repo.db.store.costs, id)
			deleted++
		}
	}
	return deleted, nil
}

// Revenue items

func (repo *financeRepository) CreateRevenue(ctx context.Context, item finance.RevenueItem) (finance.RevenueItem, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.store.companies[item.CompanyID]; !ok {
		return finance.RevenueItem{}, errReferenced
	}
	item.ID = uuid.New().String()
	if item.Version == 0 {
		item.Version = 1
	}
	repo.db.store.revenues[item.ID] = item
	return item, nil
}

func (repo *financeRepository) QueryRevenues(_ context.Context, filter *finance.RevenueFilter, ordering []core.DBOrdering) ([]finance.RevenueItem, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	items := make([]finance.RevenueItem, 0, len(repo.db.store.revenues))
	for _, item := range repo.db.store.revenues {
		if filter != nil {
			if len(filter.CompanyIDs) > 0 && !contains(filter.CompanyIDs, item.CompanyID) {
				continue
			}
			if len(filter.Categories) > 0 && !contains(filter.Categories, item.Category) {
				continue
			}
			if len(filter.Statuses) > 0 && !contains(filter.Statuses, item.Status) {
				continue
			}
			if !inTimeRange(item.DueDate, filter.From, filter.To) {
				continue
			}
		}
		items = append(items, item)
	}
	sortRecords(items, ordering, revenueComparators, core.DBOrdering{Field: "due_date"})
	return items, nil
}

func (repo *financeRepository) GetRevenue(_ context.Context, id string) (finance.RevenueItem, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if item, ok := repo.db.store.revenues[id]; ok {
		return item, nil
	}
	return finance.RevenueItem{}, finance.ErrRevenueNotFound
}

func (repo *financeRepository) UpdateRevenue(ctx context.Context, item finance.RevenueItem, version int) (finance.RevenueItem, error) {
	defer repo.db.lockWrite(ctx)()

	stored, ok := repo.db.store.revenues[item.ID]
	if !ok {
		return finance.RevenueItem{}, finance.ErrRevenueNotFound
	}
	if stored.Version != version {
		return finance.RevenueItem{}, finance.ErrStaleVersion
	}
	item.Version = version + 1
	repo.db.store.revenues[item.ID] = item
	return item, nil
}

func (repo *financeRepository) DeleteRevenuesByID(ctx context.Context, ids ...string) (int, error) {
	defer repo.db.lockWrite(ctx)()

	var deleted int
	for _, id := range ids {
		if _, ok := repo.db.store.revenues[id]; ok {
			delete(repo.db.store.revenues, id)
			deleted++
		}
	}
	return deleted, nil
}

// Settlements

func (repo *financeRepository) CreateSettlement(ctx context.Context, stl finance.Settlement) (finance.Settlement, error) {
	defer repo.db.lockWrite(ctx)()

	stl.ID = uuid.New().String()
	stored := stl
	stored.Items = nil
	repo.db.store.settlements[stl.ID] = stored
	return stl, nil
}

func (repo *financeRepository) QuerySettlements(_ context.Context, filter *finance.SettlementFilter, ordering []core.DBOrdering) ([]finance.Settlement, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	stls := make([]finance.Settlement, 0, len(repo.db.store.settlements))
	for _, stl := range repo.db.store.settlements {
		if filter != nil {
			if len(filter.ReviewerIDs) > 0 && !contains(filter.ReviewerIDs, stl.ReviewerID) {
				continue
			}
			if !inTimeRange(stl.SettledAt, filter.From, filter.To) {
				continue
			}
		}
		stls = append(stls, stl)
	}
	sortRecords(stls, ordering, settlementComparators, core.DBOrdering{Field: "settled_at"})
	return stls, nil
}

func (repo *financeRepository) GetSettlement(_ context.Context, id string) (finance.Settlement, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if stl, ok := repo.db.store.settlements[id]; ok {
		return stl, nil
	}
	return finance.Settlement{}, finance.ErrSettlementNotFound
}
