package membership

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kcci/portal/core"
	"github.com/kcci/portal/core/company"
	"github.com/kcci/portal/core/reviewer"
)

type Kind string

// Application kinds
const (
	KindReviewer Kind = "reviewer"
	KindCompany  Kind = "company"
)

type Status string

// Application statuses
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

var (
	Kinds    = []Kind{KindReviewer, KindCompany}
	Statuses = []Status{StatusPending, StatusApproved, StatusRejected}

	validTransitions = map[Status][]Status{
		StatusPending: {StatusApproved, StatusRejected},
	}

	OrderingFields = []string{"name", "kind", "status", "created_at", "reviewed_at"}
)

func (k Kind) IsValid() bool {
	return k == KindReviewer || k == KindCompany
}

func (s Status) IsValid() bool {
	for _, status := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a decision has been made.
func (s Status) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, st := range validTransitions[s] {
		if st == next {
			return true
		}
	}
	return false
}

// Application is a request to join the association, as a reviewer or as a member company.
// The applicant chooses their credentials upfront; the account is only created on approval.
type Application struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	Status       Status    `json:"status"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	PasswordHash []byte    `json:"-"`
	Message      string    `json:"message"`
	RejectReason string    `json:"reject_reason"`
	ReviewedBy   string    `json:"reviewed_by"`
	ReviewedAt   time.Time `json:"reviewed_at"` // UTC
	CreatedAt    time.Time `json:"created_at"`  // UTC
	UpdatedAt    time.Time `json:"updated_at"`  // UTC

	// reviewer applications
	Affiliation string `json:"affiliation,omitempty"`
	Specialty   string `json:"specialty,omitempty"`
	CareerYears int    `json:"career_years,omitempty"`

	// company applications
	CompanyName    string `json:"company_name,omitempty"`
	BusinessNumber string `json:"business_number,omitempty"`
	Representative string `json:"representative,omitempty"`
	Address        string `json:"address,omitempty"`
	Industry       string `json:"industry,omitempty"`
	Website        string `json:"website,omitempty"`
}

// NewApplication is the public registration form.
type NewApplication struct {
	Kind            Kind   `json:"kind" validate:"required,appkind"`
	Name            string `json:"name" validate:"required,notblank,max=255"`
	Username        string `json:"username" validate:"required,min=4,max=32,alphanum_"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"required,phone"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Message         string `json:"message" validate:"max=2000"`

	Affiliation string `json:"affiliation" validate:"required_if=Kind reviewer,max=255"`
	Specialty   string `json:"specialty" validate:"max=255"`
	CareerYears int    `json:"career_years" validate:"min=0,max=70"`

	CompanyName    string `json:"company_name" validate:"required_if=Kind company,max=255"`
	BusinessNumber string `json:"business_number" validate:"required_if=Kind company,omitempty,bizregno"`
	Representative string `json:"representative" validate:"required_if=Kind company,max=255"`
	Address        string `json:"address" validate:"max=512"`
	Industry       string `json:"industry" validate:"max=255"`
	Website        string `json:"website" validate:"omitempty,url"`
}

func (na *NewApplication) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	na.Kind = Kind(core.CleanString(string(na.Kind), true /* lower */))
	na.Name = core.CleanString(na.Name)
	na.Username = core.CleanString(na.Username, true /* lower */)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.Phone = core.CleanString(na.Phone)
	na.Message = core.CleanString(na.Message)
	na.Affiliation = core.CleanString(na.Affiliation)
	na.Specialty = core.CleanString(na.Specialty)
	na.CompanyName = core.CleanString(na.CompanyName)
	na.BusinessNumber = core.CleanString(na.BusinessNumber)
	na.Representative = core.CleanString(na.Representative)
	na.Address = core.CleanString(na.Address)
	na.Industry = core.CleanString(na.Industry)
	na.Website = core.CleanString(na.Website)

	if err := validate.Struct(na); err != nil {
		return err
	}
	return svc.checkUniqueness(ctx, *na)
}

// Decision holds the admin's choices when approving an Application.
type Decision struct {
	Grade reviewer.Grade `json:"grade" validate:"omitempty,grade"`
	Tier  company.Tier   `json:"tier" validate:"omitempty,tier"`
}

func (d *Decision) Validate(validate *validator.Validate) error {
	d.Grade = reviewer.Grade(core.CleanString(string(d.Grade), true /* lower */))
	d.Tier = company.Tier(core.CleanString(string(d.Tier), true /* lower */))
	return validate.Struct(d)
}

type Rejection struct {
	Reason string `json:"reason" validate:"required,notblank,max=2000"`
}

func (r *Rejection) Validate(validate *validator.Validate) error {
	r.Reason = core.CleanString(r.Reason)
	return validate.Struct(r)
}

type QueryFilter struct {
	Search      string
	Kinds       []Kind
	Statuses    []Status
	CreatedFrom time.Time
	CreatedTo   time.Time
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
