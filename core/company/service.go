package company

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/kcci/portal/core"
)

var (
	ErrNotFound             = core.NewNotFoundError("company")
	ErrBusinessNumberExists = errors.New("a company with this business registration number already exists")
)

type (
	Repository interface {
		CreateCompany(ctx context.Context, comp Company) (Company, error)
		// QueryCompanies applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Name, Representative, Email or BusinessNumber.
		QueryCompanies(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Company, error)
		GetCompany(ctx context.Context, filter GetFilter) (Company, error)
		UpdateCompany(ctx context.Context, comp Company) (Company, error)
		DeleteCompaniesByID(ctx context.Context, ids ...string) (int, error)
	}

	// UserActivator (de)activates the account linked to a Company.
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

// CheckBusinessNumber returns a core.ValidationError if the business number is taken by another Company.
func (svc *Service) CheckBusinessNumber(ctx context.Context, bizNo string, exclIDs ...string) error {
	comp, err := svc.repo.GetCompany(ctx, GetFilter{BusinessNumber: bizNo})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return nil
		}
		return errors.Wrap(err, "finding company by business number")
	}
	for _, id := range exclIDs {
		if comp.ID == id {
			return nil
		}
	}
	return core.NewValidationError(ErrBusinessNumberExists, core.FieldError{
		Field: "business_number",
		Error: ErrBusinessNumberExists.Error(),
	})
}

// Create persists a new member Company. New companies start as active regular members unless told otherwise.
func (svc *Service) Create(ctx context.Context, comp Company) (Company, error) {
	now := time.Now().UTC()
	if comp.Tier == "" {
		comp.Tier = TierRegular
	}
	if comp.IsActive == nil {
		comp.SetActive(true)
	}
	if comp.JoinedAt.IsZero() {
		comp.JoinedAt = now
	}
	comp.CreatedAt = now
	comp.UpdatedAt = now
	return svc.repo.CreateCompany(ctx, comp)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Company, error) {
	return svc.repo.QueryCompanies(ctx, filter, ordering)
}

func (svc *Service) Get(ctx context.Context, id string) (Company, error) {
	return svc.repo.GetCompany(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByUserID(ctx context.Context, userID string) (Company, error) {
	return svc.repo.GetCompany(ctx, GetFilter{UserID: userID})
}

// Update applies uc to the Company. A change of activity is mirrored on the linked user account.
func (svc *Service) Update(ctx context.Context, comp Company, uc UpdateCompany) (Company, error) {
	if uc.BusinessNumber != "" && uc.BusinessNumber != comp.BusinessNumber {
		if err := svc.CheckBusinessNumber(ctx, uc.BusinessNumber, comp.ID); err != nil {
			return Company{}, err
		}
		comp.BusinessNumber = uc.BusinessNumber
	}
	if uc.Name != "" {
		comp.Name = uc.Name
	}
	if uc.Representative != "" {
		comp.Representative = uc.Representative
	}
	if uc.Email != "" {
		comp.Email = uc.Email
	}
	if uc.Phone != "" {
		comp.Phone = uc.Phone
	}
	if uc.Address != "" {
		comp.Address = uc.Address
	}
	if uc.Industry != "" {
		comp.Industry = uc.Industry
	}
	if uc.Website != "" {
		comp.Website = uc.Website
	}
	if uc.Tier != "" {
		comp.Tier = uc.Tier
	}
	activityChanged := uc.IsActive != nil && *uc.IsActive != comp.Active()
	if uc.IsActive != nil {
		comp.SetActive(*uc.IsActive)
	}
	comp.UpdatedAt = time.Now().UTC()

	var updated Company
	err := svc.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if updated, err = svc.repo.UpdateCompany(ctx, comp); err != nil {
			return errors.Wrap(err, "updating company")
		}
		if activityChanged && comp.UserID != "" {
			if err = svc.users.SetActive(ctx, comp.UserID, comp.Active()); err != nil && !core.IsNotFound(err) {
				return errors.Wrap(err, "setting user activity")
			}
		}
		return nil
	})
	return updated, err
}

func (svc *Service) Delete(ctx context.Context, ids ...string) (int, error) {
	return svc.repo.DeleteCompaniesByID(ctx, ids...)
}

// Directory lists the active member companies matching search, by name.
func (svc *Service) Directory(ctx context.Context, search string) ([]DirectoryEntry, error) {
	filter := &QueryFilter{Search: search, IsActive: core.BoolPtr(true)}
	filter.Clean()
	comps, err := svc.repo.QueryCompanies(ctx, filter, []core.DBOrdering{{Field: "name", Ascending: true}})
	if err != nil {
		return nil, errors.Wrap(err, "querying companies")
	}
	entries := make([]DirectoryEntry, 0, len(comps))
	for _, comp := range comps {
		entries = append(entries, DirectoryEntry{
			ID:             comp.ID,
			Name:           comp.Name,
			Representative: comp.Representative,
			Industry:       comp.Industry,
			Website:        comp.Website,
			Tier:           comp.Tier,
			JoinedAt:       comp.JoinedAt,
		})
	}
	return entries, nil
}
