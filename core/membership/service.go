package membership

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/kcci/portal/core"
	"github.com/kcci/portal/core/company"
	"github.com/kcci/portal/core/reviewer"
	"github.com/kcci/portal/core/user"
)

var (
	ErrNotFound        = core.NewNotFoundError("application")
	ErrAlreadyDecided  = core.NewConflictError("this application has already been decided")
	ErrPendingDeletion = core.NewConflictError("pending applications cannot be deleted")
	ErrPendingExists   = errors.New("an application with this username or email is already pending")
)

type (
	Repository interface {
		CreateApplication(ctx context.Context, app Application) (Application, error)
		// QueryApplications applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Name, Username, Email or CompanyName.
		QueryApplications(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Application, error)
		GetApplication(ctx context.Context, id string) (Application, error)
		UpdateApplication(ctx context.Context, app Application) (Application, error)
		DeleteApplicationsByID(ctx context.Context, ids ...string) (int, error)
		CountApplications(ctx context.Context, status Status) (int, error)
	}

	UserService interface {
		CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...user.User) error
		Add(ctx context.Context, usr user.User) (user.User, error)
	}

	ReviewerService interface {
		Create(ctx context.Context, rev reviewer.Reviewer) (reviewer.Reviewer, error)
	}

	CompanyService interface {
		CheckBusinessNumber(ctx context.Context, bizNo string, exclIDs ...string) error
		Create(ctx context.Context, comp company.Company) (company.Company, error)
	}

	Deps struct {
		Repo      Repository
		Users     UserService
		Reviewers ReviewerService
		Companies CompanyService
		Tx        core.TxManager
		MailSvc   core.EmailService
		Events    core.EventPublisher
		Logger    core.Logger
	}

	Service struct {
		Deps
	}
)

func NewService(deps Deps) *Service {
	return &Service{Deps: deps}
}

// checkUniqueness makes sure that the credentials and the business number are neither used by
// an existing member nor by another pending application.
func (svc *Service) checkUniqueness(ctx context.Context, na NewApplication) error {
	if err := svc.Users.CheckUniqueness(ctx, na.Username, na.Email); err != nil {
		return err
	}

	pending, err := svc.Repo.QueryApplications(ctx, &QueryFilter{Statuses: []Status{StatusPending}}, nil)
	if err != nil {
		return errors.Wrap(err, "querying pending applications")
	}
	for _, app := range pending {
		switch {
		case app.Username == na.Username:
			return core.NewValidationError(ErrPendingExists, core.FieldError{Field: "username", Error: ErrPendingExists.Error()})
		case app.Email == na.Email:
			return core.NewValidationError(ErrPendingExists, core.FieldError{Field: "email", Error: ErrPendingExists.Error()})
		case na.Kind == KindCompany && app.Kind == KindCompany && app.BusinessNumber == na.BusinessNumber:
			return core.NewValidationError(ErrPendingExists, core.FieldError{Field: "business_number", Error: ErrPendingExists.Error()})
		}
	}

	if na.Kind == KindCompany {
		return svc.Companies.CheckBusinessNumber(ctx, na.BusinessNumber)
	}
	return nil
}

// Submit stores a validated registration form as a pending Application.
func (svc *Service) Submit(ctx context.Context, na NewApplication) (Application, error) {
	hash, err := user.HashPassword(na.Password)
	if err != nil {
		return Application{}, errors.Wrap(err, "hashing password")
	}

	now := time.Now().UTC()
	app := Application{
		Kind:         na.Kind,
		Status:       StatusPending,
		Name:         na.Name,
		Username:     na.Username,
		Email:        na.Email,
		Phone:        na.Phone,
		PasswordHash: hash,
		Message:      na.Message,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	switch na.Kind {
	case KindReviewer:
		app.Affiliation = na.Affiliation
		app.Specialty = na.Specialty
		app.CareerYears = na.CareerYears
	case KindCompany:
		app.CompanyName = na.CompanyName
		app.BusinessNumber = na.BusinessNumber
		app.Representative = na.Representative
		app.Address = na.Address
		app.Industry = na.Industry
		app.Website = na.Website
	}

	if app, err = svc.Repo.CreateApplication(ctx, app); err != nil {
		return Application{}, errors.Wrap(err, "creating application")
	}

	svc.notify(app, "Application received", "application_received", nil)
	svc.publish(ctx, core.NewEvent(core.EventApplicationSubmitted, "", eventData(app)))
	return app, nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Application, error) {
	return svc.Repo.QueryApplications(ctx, filter, ordering)
}

func (svc *Service) Get(ctx context.Context, id string) (Application, error) {
	return svc.Repo.GetApplication(ctx, id)
}

func (svc *Service) PendingCount(ctx context.Context) (int, error) {
	return svc.Repo.CountApplications(ctx, StatusPending)
}

// transition moves a pending Application to `next`, within the caller's transaction.
func (svc *Service) transition(ctx context.Context, id string, next Status, admin user.User) (Application, error) {
	app, err := svc.Repo.GetApplication(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if !app.Status.CanTransitionTo(next) {
		return Application{}, ErrAlreadyDecided
	}
	now := time.Now().UTC()
	app.Status = next
	app.ReviewedBy = admin.ID
	app.ReviewedAt = now
	app.UpdatedAt = now
	return app, nil
}

// Approve accepts a pending Application: the member account and the Reviewer or Company record
// are created in the same transaction as the status change.
func (svc *Service) Approve(ctx context.Context, id string, decision Decision, admin user.User) (Application, error) {
	var app Application
	var usr user.User

	err := svc.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if app, err = svc.transition(ctx, id, StatusApproved, admin); err != nil {
			return err
		}

		// the credentials may have been taken since the application was submitted
		if err = svc.Users.CheckUniqueness(ctx, app.Username, app.Email); err != nil {
			return core.NewConflictError(err.Error())
		}

		usr = user.User{
			Name:         app.Name,
			Username:     app.Username,
			Email:        app.Email,
			Phone:        app.Phone,
			PasswordHash: app.PasswordHash,
		}
		usr.SetActive(true)

		switch app.Kind {
		case KindReviewer:
			usr.Roles = []string{user.RoleReviewer}
			if usr, err = svc.Users.Add(ctx, usr); err != nil {
				return errors.Wrap(err, "creating reviewer account")
			}
			_, err = svc.Reviewers.Create(ctx, reviewer.Reviewer{
				UserID:      usr.ID,
				Name:        app.Name,
				Email:       app.Email,
				Phone:       app.Phone,
				Affiliation: app.Affiliation,
				Specialty:   app.Specialty,
				CareerYears: app.CareerYears,
				Grade:       decision.Grade,
			})
			if err != nil {
				return errors.Wrap(err, "creating reviewer")
			}
		case KindCompany:
			if err = svc.Companies.CheckBusinessNumber(ctx, app.BusinessNumber); err != nil {
				return core.NewConflictError(err.Error())
			}
			usr.Roles = []string{user.RoleCompany}
			if usr, err = svc.Users.Add(ctx, usr); err != nil {
				return errors.Wrap(err, "creating company account")
			}
			_, err = svc.Companies.Create(ctx, company.Company{
				UserID:         usr.ID,
				Name:           app.CompanyName,
				BusinessNumber: app.BusinessNumber,
				Representative: app.Representative,
				Email:          app.Email,
				Phone:          app.Phone,
				Address:        app.Address,
				Industry:       app.Industry,
				Website:        app.Website,
				Tier:           decision.Tier,
			})
			if err != nil {
				return errors.Wrap(err, "creating company")
			}
		}

		// the hash now lives on the account
		app.PasswordHash = nil
		if app, err = svc.Repo.UpdateApplication(ctx, app); err != nil {
			return errors.Wrap(err, "updating application")
		}
		return nil
	})
	if err != nil {
		return Application{}, err
	}

	svc.notify(app, "Application approved", "application_approved", nil)
	svc.publish(ctx, core.NewEvent(core.EventApplicationApproved, admin.ID, eventData(app, "user_id", usr.ID)))
	return app, nil
}

// Reject declines a pending Application. The reason is sent to the applicant.
func (svc *Service) Reject(ctx context.Context, id string, rejection Rejection, admin user.User) (Application, error) {
	var app Application

	err := svc.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if app, err = svc.transition(ctx, id, StatusRejected, admin); err != nil {
			return err
		}
		app.RejectReason = rejection.Reason
		app.PasswordHash = nil
		if app, err = svc.Repo.UpdateApplication(ctx, app); err != nil {
			return errors.Wrap(err, "updating application")
		}
		return nil
	})
	if err != nil {
		return Application{}, err
	}

	svc.notify(app, "Application not approved", "application_rejected", map[string]interface{}{"Reason": app.RejectReason})
	svc.publish(ctx, core.NewEvent(core.EventApplicationRejected, admin.ID, eventData(app, "reason", app.RejectReason)))
	return app, nil
}

// Delete removes decided applications. Pending applications must be decided first.
func (svc *Service) Delete(ctx context.Context, ids ...string) (int, error) {
	var cnt int
	err := svc.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		for _, id := range ids {
			app, err := svc.Repo.GetApplication(ctx, id)
			if err != nil {
				if errors.Cause(err) == ErrNotFound {
					continue
				}
				return err
			}
			if app.Status == StatusPending {
				return ErrPendingDeletion
			}
		}
		var err error
		cnt, err = svc.Repo.DeleteApplicationsByID(ctx, ids...)
		return err
	})
	return cnt, err
}

func (svc *Service) notify(app Application, subject, tmpl string, extra map[string]interface{}) {
	data := map[string]interface{}{
		"Name":     app.Name,
		"Username": app.Username,
		"Kind":     string(app.Kind),
	}
	for k, v := range extra {
		data[k] = v
	}
	svc.MailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: app.Name, Address: app.Email}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: data,
	})
}

// publish does not fail the operation: the change is already committed.
func (svc *Service) publish(ctx context.Context, evt core.Event) {
	if err := svc.Events.Publish(ctx, evt); err != nil {
		svc.Logger.Error("publishing "+evt.Type, errors.Wrap(err, "publishing event"))
	}
}

func eventData(app Application, kv ...string) map[string]interface{} {
	data := map[string]interface{}{
		"application_id": app.ID,
		"kind":           app.Kind,
		"status":         app.Status,
		"email":          app.Email,
	}
	for i := 0; i+1 < len(kv); i += 2 {
		data[kv[i]] = kv[i+1]
	}
	return data
}
