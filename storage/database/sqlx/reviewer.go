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
	"github.com/kcci/portal/core/reviewer"
)

const reviewerTable = "reviewer"

var reviewerColumns = []string{
	"id", "user_id", "name", "email", "phone", "affiliation", "specialty", "career_years",
	"grade", "is_active", "certified_at", "created_at", "updated_at",
}

type reviewerRow struct {
	ID          string      `db:"id"`
	UserID      null.String `db:"user_id"`
	Name        string      `db:"name"`
	Email       string      `db:"email"`
	Phone       string      `db:"phone"`
	Affiliation string      `db:"affiliation"`
	Specialty   string      `db:"specialty"`
	CareerYears int         `db:"career_years"`
	Grade       string      `db:"grade"`
	IsActive    bool        `db:"is_active"`
	CertifiedAt time.Time   `db:"certified_at"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (row reviewerRow) reviewer() reviewer.Reviewer {
	isActive := row.IsActive
	return reviewer.Reviewer{
		ID:          row.ID,
		UserID:      row.UserID.String,
		Name:        row.Name,
		Email:       row.Email,
		Phone:       row.Phone,
		Affiliation: row.Affiliation,
		Specialty:   row.Specialty,
		CareerYears: row.CareerYears,
		Grade:       reviewer.Grade(row.Grade),
		IsActive:    &isActive,
		CertifiedAt: row.CertifiedAt.UTC(),
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

func reviewerValues(rev reviewer.Reviewer) map[string]interface{} {
	return map[string]interface{}{
		"user_id":      null.NewString(rev.UserID, rev.UserID != ""),
		"name":         rev.Name,
		"email":        rev.Email,
		"phone":        rev.Phone,
		"affiliation":  rev.Affiliation,
		"specialty":    rev.Specialty,
		"career_years": rev.CareerYears,
		"grade":        string(rev.Grade),
		"is_active":    rev.Active(),
		"certified_at": rev.CertifiedAt.UTC(),
		"created_at":   rev.CreatedAt.UTC(),
		"updated_at":   rev.UpdatedAt.UTC(),
	}
}

type reviewerRepository struct {
	repo
}

var _ reviewer.Repository = (*reviewerRepository)(nil) // interface compliance check

func NewReviewerRepository(db *sqlx.DB) *reviewerRepository {
	return &reviewerRepository{repo{db: db}}
}

func (r *reviewerRepository) CreateReviewer(ctx context.Context, rev reviewer.Reviewer) (reviewer.Reviewer, error) {
	rev.ID = uuid.New().String()
	values := reviewerValues(rev)
	values["id"] = rev.ID
	if _, err := r.run(ctx, psql.Insert(reviewerTable).SetMap(values)); err != nil {
		return reviewer.Reviewer{}, errors.Wrap(err, "inserting reviewer")
	}
	return rev, nil
}

func (r *reviewerRepository) QueryReviewers(ctx context.Context, filter *reviewer.QueryFilter, ordering []core.DBOrdering) ([]reviewer.Reviewer, error) {
	q := psql.Select(reviewerColumns...).From(reviewerTable)

	if filter != nil {
		if filter.Search != "" {
			q = q.Where(search(filter.Search, "name", "email", "affiliation", "specialty"))
		}
		if len(filter.Grades) > 0 {
			grades := make([]string, 0, len(filter.Grades))
			for _, g := range filter.Grades {
				grades = append(grades, string(g))
			}
			q = q.Where(sq.Eq{"grade": grades})
		}
		if filter.IsActive != nil {
			q = q.Where(sq.Eq{"is_active": *filter.IsActive})
		}
	}
	q = q.OrderBy(orderBy(ordering, reviewer.OrderingFields, "name ASC")...)

	var rows []reviewerRow
	if err := r.selectAll(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying reviewers")
	}
	revs := make([]reviewer.Reviewer, 0, len(rows))
	for _, row := range rows {
		revs = append(revs, row.reviewer())
	}
	return revs, nil
}

func (r *reviewerRepository) GetReviewer(ctx context.Context, filter reviewer.GetFilter) (reviewer.Reviewer, error) {
	q := psql.Select(reviewerColumns...).From(reviewerTable).Limit(1)
	switch {
	case filter.ID != "":
		if !validUUID(filter.ID) {
			return reviewer.Reviewer{}, reviewer.ErrNotFound
		}
		q = q.Where(sq.Eq{"id": filter.ID})
	case filter.UserID != "":
		if !validUUID(filter.UserID) {
			return reviewer.Reviewer{}, reviewer.ErrNotFound
		}
		q = q.Where(sq.Eq{"user_id": filter.UserID})
	default:
		return reviewer.Reviewer{}, reviewer.ErrNotFound
	}

	var row reviewerRow
	if err := r.get(ctx, &row, q); err != nil {
		return reviewer.Reviewer{}, trapNoRowsErr(err, reviewer.ErrNotFound, "finding reviewer")
	}
	return row.reviewer(), nil
}

func (r *reviewerRepository) UpdateReviewer(ctx context.Context, rev reviewer.Reviewer) (reviewer.Reviewer, error) {
	if !validUUID(rev.ID) {
		return reviewer.Reviewer{}, reviewer.ErrNotFound
	}
	n, err := r.run(ctx, psql.Update(reviewerTable).SetMap(reviewerValues(rev)).Where(sq.Eq{"id": rev.ID}))
	if err != nil {
		return reviewer.Reviewer{}, errors.Wrap(err, "updating reviewer")
	}
	if n == 0 {
		return reviewer.Reviewer{}, reviewer.ErrNotFound
	}
	return rev, nil
}

func (r *reviewerRepository) DeleteReviewersByID(ctx context.Context, ids ...string) (int, error) {
	ids = validUUIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := r.run(ctx, psql.Delete(reviewerTable).Where(sq.Eq{"id": ids}))
	if err != nil {
		return 0, errors.Wrap(err, "deleting reviewers")
	}
	return n, nil
}
