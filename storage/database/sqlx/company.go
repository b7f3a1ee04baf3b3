package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/kcci/portal/core"
	"github.com/kcci/portal/core/company"
)

const companyTable = "company"

var companyColumns = []string{
	"id", "user_id", "name", "business_number", "representative", "email", "phone", "address",
	"industry", "website", "tier", "is_active", "joined_at", "created_at", "updated_at",
}

type companyRow struct {
	ID             string      `db:"id"`
	UserID         null.String `db:"user_id"`
	Name           string      `db:"name"`
	BusinessNumber string      `db:"business_number"`
	Representative string      `db:"representative"`
	Email          string      `db:"email"`
	Phone          string      `db:"phone"`
	Address        string      `db:"address"`
	Industry       string      `db:"industry"`
	Website        string      `db:"website"`
	Tier           string      `db:"tier"`
	IsActive       bool        `db:"is_active"`
	JoinedAt       time.Time   `db:"joined_at"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func (row companyRow) company() company.Company {
	isActive := row.IsActive
	return company.Company{
		ID:             row.ID,
		UserID:         row.UserID.String,
		Name:           row.Name,
		BusinessNumber: row.BusinessNumber,
		Representative: row.Representative,
		Email:          row.Email,
		Phone:          row.Phone,
		Address:        row.Address,
		Industry:       row.Industry,
		Website:        row.Website,
		Tier:           company.Tier(row.Tier),
		IsActive:       &isActive,
		JoinedAt:       row.JoinedAt.UTC(),
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
}

func companyValues(comp company.Company) map[string]interface{} {
	return map[string]interface{}{
		"user_id":         null.NewString(comp.UserID, comp.UserID != ""),
		"name":            comp.Name,
		"business_number": comp.BusinessNumber,
		"representative":  comp.Representative,
		"email":           comp.Email,
		"phone":           comp.Phone,
		"address":         comp.Address,
		"industry":        comp.Industry,
		"website":         comp.Website,
		"tier":            string(comp.Tier),
		"is_active":       comp.Active(),
		"joined_at":       comp.JoinedAt.UTC(),
		"created_at":      comp.CreatedAt.UTC(),
		"updated_at":      comp.UpdatedAt.UTC(),
	}
}

type companyRepository struct {
	repo
}

var _ company.Repository = (*companyRepository)(nil) // interface compliance check

func NewCompanyRepository(db *sqlx.DB) *companyRepository {
	return &companyRepository{repo{db: db}}
}

func (r *companyRepository) CreateCompany(ctx context.Context, comp company.Company) (company.Company, error) {
	comp.ID = uuid.New().String()
	values := companyValues(comp)
	values["id"] = comp.ID
	if _, err := r.run(ctx, psql.Insert(companyTable).SetMap(values)); err != nil {
		return company.Company{}, errors.Wrap(err, "inserting company")
	}
	return comp, nil
}

func (r *companyRepository) QueryCompanies(ctx context.Context, filter *company.QueryFilter, ordering []core.DBOrdering) ([]company.Company, error) {
	q := psql.Select(companyColumns...).From(companyTable)

	if filter != nil {
		if filter.Search != "" {
			q = q.Where(search(filter.Search, "name", "representative", "email", "business_number"))
		}
		if len(filter.Tiers) > 0 {
			tiers := make([]string, 0, len(filter.Tiers))
			for _, t := range filter.Tiers {
				tiers = append(tiers, string(t))
			}
			q = q.Where(sq.Eq{"tier": tiers})
		}
		if filter.Industry != "" {
			q = q.Where(sq.ILike{"industry": filter.Industry})
		}
		if filter.IsActive != nil {
			q = q.Where(sq.Eq{"is_active": *filter.IsActive})
		}
	}
	q = q.OrderBy(orderBy(ordering, company.OrderingFields, "name ASC")...)

	var rows []companyRow
	if err := r.selectAll(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying companies")
	}
	comps := make([]company.Company, 0, len(rows))
	for _, row := range rows {
		comps = append(comps, row.company())
	}
	return comps, nil
}

func (r *companyRepository) GetCompany(ctx context.Context, filter company.GetFilter) (company.Company, error) {
	q := psql.Select(companyColumns...).From(companyTable).Limit(1)
	switch {
	case filter.ID != "":
		if !validUUID(filter.ID) {
			return company.Company{}, company.ErrNotFound
		}
		q = q.Where(sq.Eq{"id": filter.ID})
	case filter.UserID != "":
		if !validUUID(filter.UserID) {
			return company.Company{}, company.ErrNotFound
		}
		q = q.Where(sq.Eq{"user_id": filter.UserID})
	case filter.BusinessNumber != "":
		q = q.Where(sq.Eq{"business_number": filter.BusinessNumber})
	default:
		return company.Company{}, company.ErrNotFound
	}

	var row companyRow
	if err := r.get(ctx, &row, q); err != nil {
		return company.Company{}, trapNoRowsErr(err, company.ErrNotFound, "finding company")
	}
	return row.company(), nil
}

func (r *companyRepository) UpdateCompany(ctx context.Context, comp company.Company) (company.Company, error) {
	if !validUUID(comp.ID) {
		return company.Company{}, company.ErrNotFound
	}
	n, err := r.run(ctx, psql.Update(companyTable).SetMap(companyValues(comp)).Where(sq.Eq{"id": comp.ID}))
	if err != nil {
		return company.Company{}, errors.Wrap(err, "updating company")
	}
	if n == 0 {
		return company.Company{}, company.ErrNotFound
	}
	return comp, nil
}

func (r *companyRepository) DeleteCompaniesByID(ctx context.Context, ids ...string) (int, error) {
	ids = validUUIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := r.run(ctx, psql.Delete(companyTable).Where(sq.Eq{"id": ids}))
	if err != nil {
		return 0, errors.Wrap(err, "deleting companies")
	}
	return n, nil
}
