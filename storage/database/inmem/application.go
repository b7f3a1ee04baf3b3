package inmemdb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/kcci/portal/core"
	"github.com/kcci/portal/core/membership"
)

var applicationComparators = comparators[membership.Application]{
	"name":        func(a, b membership.Application) int { return strings.Compare(a.Name, b.Name) },
	"kind":        func(a, b membership.Application) int { return strings.Compare(string(a.Kind), string(b.Kind)) },
	"status":      func(a, b membership.Application) int { return strings.Compare(string(a.Status), string(b.Status)) },
	"created_at":  func(a, b membership.Application) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
	"reviewed_at": func(a, b membership.Application) int { return cmpTime(a.ReviewedAt, b.ReviewedAt) },
}

type applicationRepository struct {
	db *DB
}

var _ membership.Repository = (*applicationRepository)(nil) // interface compliance check

func NewApplicationRepository(db *DB) *applicationRepository {
	return &applicationRepository{db: db}
}

func (repo *applicationRepository) CreateApplication(ctx context.Context, app membership.Application) (membership.Application, error) {
	defer repo.db.lockWrite(ctx)()

	app.ID = uuid.New().String()
	repo.db.store.applications[app.ID] = app
	return app, nil
}

func (repo *applicationRepository) QueryApplications(_ context.Context, filter *membership.QueryFilter, ordering []core.DBOrdering) ([]membership.Application, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	apps := make([]membership.Application, 0, len(repo.db.store.applications))
	for _, app := range repo.db.store.applications {
		if filter != nil {
			if filter.Search != "" && !matches(filter.Search, app.Name, app.Username, app.Email, app.CompanyName) {
				continue
			}
			if len(filter.Kinds) > 0 && !contains(filter.Kinds, app.Kind) {
				continue
			}
			if len(filter.Statuses) > 0 && !contains(filter.Statuses, app.Status) {
				continue
			}
			if !inTimeRange(app.CreatedAt, filter.CreatedFrom, filter.CreatedTo) {
				continue
			}
		}
		apps = append(apps, app)
	}
	sortRecords(apps, ordering, applicationComparators, core.DBOrdering{Field: "created_at"})
	return apps, nil
}

func (repo *applicationRepository) GetApplication(_ context.Context, id string) (membership.Application, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if app, ok := repo.db.store.applications[id]; ok {
		return app, nil
	}
	return membership.Application{}, membership.ErrNotFound
}

func (repo *applicationRepository) UpdateApplication(ctx context.Context, app membership.Application) (membership.Application, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.store.applications[app.ID]; !ok {
		return membership.Application{}, membership.ErrNotFound
	}
	repo.db.store.applications[app.ID] = app
	return app, nil
}

func (repo *applicationRepository) DeleteApplicationsByID(ctx context.Context, ids ...string) (int, error) {
	defer repo.db.lockWrite(ctx)()

	var deleted int
	for _, id := range ids {
		if _, ok := repo.db.store.applications[id]; ok {
			delete(repo.db.store.applications, id)
			deleted++
		}
	}
	return deleted, nil
}

func (repo *applicationRepository) CountApplications(_ context.Context, status membership.Status) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var count int
	for _, app := range repo.db.store.applications {
		if status == "" || app.Status == status {
			count++
		}
	}
	return count, nil
}
