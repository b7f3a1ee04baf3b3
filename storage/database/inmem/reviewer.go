package inmemdb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/kcci/portal/core"
	"github.com/kcci/portal/core/reviewer"
)

var reviewerComparators = comparators[reviewer.Reviewer]{
	"name":         func(a, b reviewer.Reviewer) int { return strings.Compare(a.Name, b.Name) },
	"grade":        func(a, b reviewer.Reviewer) int { return strings.Compare(string(a.Grade), string(b.Grade)) },
	"career_years": func(a, b reviewer.Reviewer) int { return cmpInt(a.CareerYears, b.CareerYears) },
	"certified_at": func(a, b reviewer.Reviewer) int { return cmpTime(a.CertifiedAt, b.CertifiedAt) },
	"created_at":   func(a, b reviewer.Reviewer) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
	"is_active":    func(a, b reviewer.Reviewer) int { return cmpBool(a.Active(), b.Active()) },
}

type reviewerRepository struct {
	db *DB
}

var _ reviewer.Repository = (*reviewerRepository)(nil) // interface compliance check

func NewReviewerRepository(db *DB) *reviewerRepository {
	return &reviewerRepository{db: db}
}

func (repo *reviewerRepository) CreateReviewer(ctx context.Context, rev reviewer.Reviewer) (reviewer.Reviewer, error) {
	defer repo.db.lockWrite(ctx)()

	if rev.UserID != "" {
		for _, r := range repo.db.store.reviewers {
			if r.UserID == rev.UserID {
				return reviewer.Reviewer{}, core.NewConflictError("this record already exists")
			}
		}
	}
	rev.ID = uuid.New().String()
	repo.db.store.reviewers[rev.ID] = rev
	return rev, nil
}

func (repo *reviewerRepository) QueryReviewers(_ context.Context, filter *reviewer.QueryFilter, ordering []core.DBOrdering) ([]reviewer.Reviewer, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	revs := make([]reviewer.Reviewer, 0, len(repo.db.store.reviewers))
	for _, rev := range repo.db.store.reviewers {
		if filter != nil {
			if filter.Search != "" && !matches(filter.Search, rev.Name, rev.Email, rev.Affiliation, rev.Specialty) {
				continue
			}
			if len(filter.Grades) > 0 && !contains(filter.Grades, rev.Grade) {
				continue
			}
			if filter.IsActive != nil && rev.Active() != *filter.IsActive {
				continue
			}
		}
		revs = append(revs, rev)
	}
	sortRecords(revs, ordering, reviewerComparators, core.DBOrdering{Field: "name", Ascending: true})
	return revs, nil
}

func (repo *reviewerRepository) GetReviewer(_ context.Context, filter reviewer.GetFilter) (reviewer.Reviewer, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	switch {
	case filter.ID != "":
		if rev, ok := repo.db.store.reviewers[filter.ID]; ok {
			return rev, nil
		}
	case filter.UserID != "":
		for _, rev := range repo.db.store.reviewers {
			if rev.UserID == filter.UserID {
				return rev, nil
			}
		}
	}
	return reviewer.Reviewer{}, reviewer.ErrNotFound
}

func (repo *reviewerRepository) UpdateReviewer(ctx context.Context, rev reviewer.Reviewer) (reviewer.Reviewer, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.store.reviewers[rev.ID]; !ok {
		return reviewer.Reviewer{}, reviewer.ErrNotFound
	}
	repo.db.store.reviewers[rev.ID] = rev
	return rev, nil
}

// DeleteReviewersByID refuses to delete reviewers that still have cost items or settlements (ON DELETE RESTRICT).
func (repo *reviewerRepository) DeleteReviewersByID(ctx context.Context, ids ...string) (int, error) {
	defer repo.db.lockWrite(ctx)()

	for _, id := range ids {
		for _, item := range repo.db.store.costs {
			if item.ReviewerID == id {
				return 0, errReferenced
			}
		}
		for _, stl := range repo.db.store.settlements {
			if stl.ReviewerID == id {
				return 0, errReferenced
			}
		}
	}

	var deleted int
	for _, id := range ids {
		if _, ok := repo.db.store.reviewers[id]; ok {
			delete(repo.db.store.reviewers, id)
			deleted++
		}
	}
	return deleted, nil
}
