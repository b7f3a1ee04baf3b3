package reviewer

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/kcci/portal/core"
)

var ErrNotFound = core.NewNotFoundError("reviewer")

type (
	Repository interface {
		CreateReviewer(ctx context.Context, rev Reviewer) (Reviewer, error)
		// QueryReviewers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Name, Email, Affiliation or Specialty.
		QueryReviewers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Reviewer, error)
		GetReviewer(ctx context.Context, filter GetFilter) (Reviewer, error)
		UpdateReviewer(ctx context.Context, rev Reviewer) (Reviewer, error)
		DeleteReviewersByID(ctx context.Context, ids ...string) (int, error)
	}

	// UserActivator (de)activates the account linked to a Reviewer.
	UserActivator interface {
		SetActive(ctx context.Context, id string, active bool) error
	}

	Service struct {
		repo  Repository
		users UserActivator
		tx    core.TxManager
	}
)

func NewService(repo Repository, users UserActivator, tx core.TxManager) *Service {
	return &Service{repo: repo, users: users, tx: tx}
}

// Create persists a new Reviewer. New reviewers start as active trainees unless told otherwise.
func (svc *Service) Create(ctx context.Context, rev Reviewer) (Reviewer, error) {
	now := time.Now().UTC()
	if rev.Grade == "" {
		rev.Grade = GradeTrainee
	}
	if rev.IsActive == nil {
		rev.SetActive(true)
	}
	if rev.CertifiedAt.IsZero() {
		rev.CertifiedAt = now
	}
	rev.CreatedAt = now
	rev.UpdatedAt = now
	return svc.repo.CreateReviewer(ctx, rev)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Reviewer, error) {
	return svc.repo.QueryReviewers(ctx, filter, ordering)
}

func (svc *Service) Get(ctx context.Context, id string) (Reviewer, error) {
	return svc.repo.GetReviewer(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByUserID(ctx context.Context, userID string) (Reviewer, error) {
	return svc.repo.GetReviewer(ctx, GetFilter{UserID: userID})
}

// Update applies ur to the Reviewer. A change of activity is mirrored on the linked user account.
func (svc *Service) Update(ctx context.Context, rev Reviewer, ur UpdateReviewer) (Reviewer, error) {
	if ur.Name != "" {
		rev.Name = ur.Name
	}
	if ur.Phone != "" {
		rev.Phone = ur.Phone
	}
	if ur.Affiliation != "" {
		rev.Affiliation = ur.Affiliation
	}
	if ur.Specialty != "" {
		rev.Specialty = ur.Specialty
	}
	if ur.CareerYears != nil {
		rev.CareerYears = *ur.CareerYears
	}
	if ur.Grade != "" {
		rev.Grade = ur.Grade
	}
	activityChanged := ur.IsActive != nil && *ur.IsActive != rev.Active()
	if ur.IsActive != nil {
		rev.SetActive(*ur.IsActive)
	}
	rev.UpdatedAt = time.Now().UTC()

	var updated Reviewer
	err := svc.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if updated, err = svc.repo.UpdateReviewer(ctx, rev); err != nil {
			return errors.Wrap(err, "updating reviewer")
		}
		if activityChanged && rev.UserID != "" {
			if err = svc.users.SetActive(ctx, rev.UserID, rev.Active()); err != nil && !core.IsNotFound(err) {
				return errors.Wrap(err, "setting user activity")
			}
		}
		return nil
	})
	return updated, err
}

func (svc *Service) Delete(ctx context.Context, ids ...string) (int, error) {
	return svc.repo.DeleteReviewersByID(ctx, ids...)
}

// Directory lists the active reviewers matching search, by name.
func (svc *Service) Directory(ctx context.Context, search string) ([]DirectoryEntry, error) {
	filter := &QueryFilter{Search: search, IsActive: core.BoolPtr(true)}
	filter.Clean()
	revs, err := svc.repo.QueryReviewers(ctx, filter, []core.DBOrdering{{Field: "name", Ascending: true}})
	if err != nil {
		return nil, errors.Wrap(err, "querying reviewers")
	}
	entries := make([]DirectoryEntry, 0, len(revs))
	for _, rev := range revs {
		entries = append(entries, DirectoryEntry{
			ID:          rev.ID,
			Name:        rev.Name,
			Affiliation: rev.Affiliation,
			Specialty:   rev.Specialty,
			Grade:       rev.Grade,
		})
	}
	return entries, nil
}
