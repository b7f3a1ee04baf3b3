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
	"github.com/kcci/portal/core/membership"
)

const applicationTable = "application"

var applicationColumns = []string{
	"id", "kind", "status", "name", "username", "email", "phone", "password_hash",
	"affiliation", "specialty", "career_years",
	"company_name", "business_number", "representative", "address", "industry", "website",
	"message", "reject_reason", "reviewed_by", "reviewed_at", "created_at", "updated_at",
}

type applicationRow struct {
	ID             string      `db:"id"`
	Kind           string      `db:"kind"`
	Status         string      `db:"status"`
	Name           string      `db:"name"`
	Username       string      `db:"username"`
	Email          string      `db:"email"`
	Phone          string      `db:"phone"`
	PasswordHash   null.Bytes  `db:"password_hash"`
	Affiliation    string      `db:"affiliation"`
	Specialty      string      `db:"specialty"`
	CareerYears    int         `db:"career_years"`
	CompanyName    string      `db:"company_name"`
	BusinessNumber string      `db:"business_number"`
	Representative string      `db:"representative"`
	Address        string      `db:"address"`
	Industry       string      `db:"industry"`
	Website        string      `db:"website"`
	Message        string      `db:"message"`
	RejectReason   string      `db:"reject_reason"`
	ReviewedBy     null.String `db:"reviewed_by"`
	ReviewedAt     null.Time   `db:"reviewed_at"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func (row applicationRow) application() membership.Application {
	return membership.Application{
		ID:             row.ID,
		Kind:           membership.Kind(row.Kind),
		Status:         membership.Status(row.Status),
		Name:           row.Name,
		Username:       row.Username,
		Email:          row.Email,
		Phone:          row.Phone,
		PasswordHash:   row.PasswordHash.Bytes,
		Message:        row.Message,
		RejectReason:   row.RejectReason,
		ReviewedBy:     row.ReviewedBy.String,
		ReviewedAt:     row.ReviewedAt.Time.UTC(),
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
		Affiliation:    row.Affiliation,
		Specialty:      row.Specialty,
		CareerYears:    row.CareerYears,
		CompanyName:    row.CompanyName,
		BusinessNumber: row.BusinessNumber,
		Representative: row.Representative,
		Address:        row.Address,
		Industry:       row.Industry,
		Website:        row.Website,
	}
}

func applicationValues(app membership.Application) map[string]interface{} {
	return map[string]interface{}{
		"kind":            string(app.Kind),
		"status":          string(app.Status),
		"name":            app.Name,
		"username":        app.Username,
		"email":           app.Email,
		"phone":           app.Phone,
		"password_hash":   null.NewBytes(app.PasswordHash, app.PasswordHash != nil),
		"affiliation":     app.Affiliation,
		"specialty":       app.Specialty,
		"career_years":    app.CareerYears,
		"company_name":    app.CompanyName,
		"business_number": app.BusinessNumber,
		"representative":  app.Representative,
		"address":         app.Address,
		"industry":        app.Industry,
		"website":         app.Website,
		"message":         app.Message,
		"reject_reason":   app.RejectReason,
		"reviewed_by":     null.NewString(app.ReviewedBy, app.ReviewedBy != ""),
		"reviewed_at":     null.NewTime(app.ReviewedAt.UTC(), !app.ReviewedAt.IsZero()),
		"created_at":      app.CreatedAt.UTC(),
		"updated_at":      app.UpdatedAt.UTC(),
	}
}

type applicationRepository struct {
	repo
}

var _ membership.Repository = (*applicationRepository)(nil) // interface compliance check

func NewApplicationRepository(db *sqlx.DB) *applicationRepository {
	return &applicationRepository{repo{db: db}}
}

func (r *applicationRepository) CreateApplication(ctx context.Context, app membership.Application) (membership.Application, error) {
	app.ID = uuid.New().String()
	values := applicationValues(app)
	values["id"] = app.ID
	if _, err := r.run(ctx, psql.Insert(applicationTable).SetMap(values)); err != nil {
		return membership.Application{}, errors.Wrap(err, "inserting application")
	}
	return app, nil
}

func (r *applicationRepository) QueryApplications(ctx context.Context, filter *membership.QueryFilter, ordering []core.DBOrdering) ([]membership.Application, error) {
	q := psql.Select(applicationColumns...).From(applicationTable)

	if filter != nil {
		if filter.Search != "" {
			q = q.Where(search(filter.Search, "name", "username", "email", "company_name"))
		}
		if len(filter.Kinds) > 0 {
			kinds := make([]string, 0, len(filter.Kinds))
			for _, k := range filter.Kinds {
				kinds = append(kinds, string(k))
			}
			q = q.Where(sq.Eq{"kind": kinds})
		}
		if len(filter.Statuses) > 0 {
			statuses := make([]string, 0, len(filter.Statuses))
			for _, s := range filter.Statuses {
				statuses = append(statuses, string(s))
			}
			q = q.Where(sq.Eq{"status": statuses})
		}
		if !filter.CreatedFrom.IsZero() {
			q = q.Where(sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
		}
		if !filter.CreatedTo.IsZero() {
			q = q.Where(sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
		}
	}
	q = q.OrderBy(orderBy(ordering, membership.OrderingFields, "created_at DESC")...)

	var rows []applicationRow
	if err := r.selectAll(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying applications")
	}
	apps := make([]membership.Application, 0, len(rows))
	for _, row := range rows {
		apps = append(apps, row.application())
	}
	return apps, nil
}

func (r *applicationRepository) GetApplication(ctx context.Context, id string) (membership.Application, error) {
	if !validUUID(id) {
		return membership.Application{}, membership.ErrNotFound
	}
	var row applicationRow
	q := psql.Select(applicationColumns...).From(applicationTable).Where(sq.Eq{"id": id})
	if err := r.get(ctx, &row, q); err != nil {
		return membership.Application{}, trapNoRowsErr(err, membership.ErrNotFound, "finding application")
	}
	return row.application(), nil
}

func (r *applicationRepository) UpdateApplication(ctx context.Context, app membership.Application) (membership.Application, error) {
	if !validUUID(app.ID) {
		return membership.Application{}, membership.ErrNotFound
	}
	q := psql.Update(applicationTable).SetMap(applicationValues(app)).Where(sq.Eq{"id": app.ID})
	n, err := r.run(ctx, q)
	if err != nil {
		return membership.Application{}, errors.Wrap(err, "updating application")
	}
	if n == 0 {
		return membership.Application{}, membership.ErrNotFound
	}
	return app, nil
}

func (r *applicationRepository) DeleteApplicationsByID(ctx context.Context, ids ...string) (int, error) {
	ids = validUUIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := r.run(ctx, psql.Delete(applicationTable).Where(sq.Eq{"id": ids}))
	if err != nil {
		return 0, errors.Wrap(err, "deleting applications")
	}
	return n, nil
}

func (r *applicationRepository) CountApplications(ctx context.Context, status membership.Status) (int, error) {
	q := psql.Select("COUNT(*)").From(applicationTable)
	if status != "" {
		q = q.Where(sq.Eq{"status": string(status)})
	}
	var count int
	if err := r.get(ctx, &count, q); err != nil {
		return 0, errors.Wrap(err, "counting applications")
	}
	return count, nil
}
