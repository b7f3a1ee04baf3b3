package inmemdb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/kcci/portal/core"
	"github.com/kcci/portal/core/company"
)

var errReferenced = core.NewConflictError("this record is still referenced by other records")

var companyComparators = comparators[company.Company]{
	"name":       func(a, b company.Company) int { return strings.Compare(a.Name, b.Name) },
	"tier":       func(a, b company.Company) int { return strings.Compare(string(a.Tier), string(b.Tier)) },
	"industry":   func(a, b company.Company) int { return strings.Compare(a.Industry, b.Industry) },
	"joined_at":  func(a, b company.Company) int { return cmpTime(a.JoinedAt, b.JoinedAt) },
	"created_at": func(a, b company.Company) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
	"is_active":  func(a, b company.Company) int { return cmpBool(a.Active(), b.Active()) },
}

type companyRepository struct {
	db *DB
}

var _ company.Repository = (*companyRepository)(nil) // interface compliance check

func NewCompanyRepository(db *DB) *companyRepository {
	return &companyRepository{db: db}
}

func (repo *companyRepository) CreateCompany(ctx context.Context, comp company.Company) (company.Company, error) {
	defer repo.db.lockWrite(ctx)()

	for _, c := range repo.db.store.companies {
		if c.BusinessNumber == comp.BusinessNumber || (comp.UserID != "" && c.UserID == comp.UserID) {
			return company.Company{}, core.NewConflictError("this record already exists")
		}
	}
	comp.ID = uuid.New().String()
	repo.db.store.companies[comp.ID] = comp
	return comp, nil
}

func (repo *companyRepository) QueryCompanies(_ context.Context, filter *company.QueryFilter, ordering []core.DBOrdering) ([]company.Company, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	comps := make([]company.Company, 0, len(repo.db.store.companies))
	for _, comp := range repo.db.store.companies {
		if filter != nil {
			if filter.Search != "" && !matches(filter.Search, comp.Name, comp.Representative, comp.Email, comp.BusinessNumber) {
				continue
			}
			if len(filter.Tiers) > 0 && !contains(filter.Tiers, comp.Tier) {
				continue
			}
			if filter.Industry != "" && !strings.EqualFold(filter.Industry, comp.Industry) {
				continue
			}
			if filter.IsActive != nil && comp.Active() != *filter.IsActive {
				continue
			}
		}
		comps = append(comps, comp)
	}
	sortRecords(comps, ordering, companyComparators, core.DBOrdering{Field: "name", Ascending: true})
	return comps, nil
}

func (repo *companyRepository) GetCompany(_ context.Context, filter company.GetFilter) (company.Company, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter.ID != "" {
		if comp, ok := repo.db.store.companies[filter.ID]; ok {
			return comp, nil
		}
		return company.Company{}, company.ErrNotFound
	}
	for _, comp := range repo.db.store.companies {
		switch {
		case filter.UserID != "":
			if comp.UserID == filter.UserID {
				return comp, nil
			}
		case filter.BusinessNumber != "":
			if comp.BusinessNumber == filter.BusinessNumber {
				return comp, nil
			}
		}
	}
	return company.Company{}, company.ErrNotFound
}

func (repo *companyRepository) UpdateCompany(ctx context.Context, comp company.Company) (company.Company, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.store.companies[comp.ID]; !ok {
		return company.Company{}, company.ErrNotFound
	}
	repo.db.store.companies[comp.ID] = comp
	return comp, nil
}

// DeleteCompaniesByID refuses to delete companies that still have revenue items (ON DELETE RESTRICT).
func (repo *companyRepository) DeleteCompaniesByID(ctx context.Context, ids ...string) (int, error) {
	defer repo.db.lockWrite(ctx)()

	for _, id := range ids {
		for _, item := range repo.db.store.revenues {
			if item.CompanyID == id {
				return 0, errReferenced
			}
		}
	}

	var deleted int
	for _, id := range ids {
		if _, ok := repo.db.store.companies[id]; ok {
			delete(repo.db.store.companies, id)
			deleted++
		}
	}
	return deleted, nil
}
