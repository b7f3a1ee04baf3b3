package finance

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/kcci/portal/core"
)

type PaymentStatus string

// Payment statuses
const (
	StatusUnpaid PaymentStatus = "unpaid"
	StatusPaid   PaymentStatus = "paid"
)

type CostCategory string

// Cost categories: what the association owes its reviewers.
const (
	CostReviewFee CostCategory = "review_fee"
	CostTravel    CostCategory = "travel"
	CostOperation CostCategory = "operation"
	CostOther     CostCategory = "other"
)

type RevenueCategory string

// Revenue categories: what member companies owe the association.
const (
	RevenueMembershipFee    RevenueCategory = "membership_fee"
	RevenueCertificationFee RevenueCategory = "certification_fee"
	RevenueEducationFee     RevenueCategory = "education_fee"
	RevenueOther            RevenueCategory = "other"
)

var (
	CostCategories    = []CostCategory{CostReviewFee, CostTravel, CostOperation, CostOther}
	RevenueCategories = []RevenueCategory{RevenueMembershipFee, RevenueCertificationFee, RevenueEducationFee, RevenueOther}

	CostOrderingFields       = []string{"incurred_on", "amount", "category", "status", "created_at"}
	RevenueOrderingFields    = []string{"due_date", "amount", "category", "status", "created_at"}
	SettlementOrderingFields = []string{"settled_at", "total", "period_from", "item_count"}
)

func (s PaymentStatus) IsValid() bool { return s == StatusUnpaid || s == StatusPaid }

func (c CostCategory) IsValid() bool {
	for _, cat := range CostCategories {
		if c == cat {
			return true
		}
	}
	return false
}

func (c RevenueCategory) IsValid() bool {
	for _, cat := range RevenueCategories {
		if c == cat {
			return true
		}
	}
	return false
}

// CostItem is an amount owed to a reviewer. Once settled it is paid and frozen.
type CostItem struct {
	ID           string          `json:"id"`
	ReviewerID   string          `json:"reviewer_id"`
	Category     CostCategory    `json:"category"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	IncurredOn   time.Time       `json:"incurred_on"` // UTC
	Status       PaymentStatus   `json:"status"`
	PaidAt       null.Time       `json:"paid_at"`
	SettlementID null.String     `json:"settlement_id"`
	Version      int             `json:"version"`
	CreatedAt    time.Time       `json:"created_at"` // UTC
	UpdatedAt    time.Time       `json:"updated_at"` // UTC
}

func (c CostItem) IsSettled() bool { return c.SettlementID.Valid }

// RevenueItem is an amount owed by a member company.
type RevenueItem struct {
	ID          string          `json:"id"`
	CompanyID   string          `json:"company_id"`
	Category    RevenueCategory `json:"category"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     time.Time       `json:"due_date"` // UTC
	Status      PaymentStatus   `json:"status"`
	PaidAt      null.Time       `json:"paid_at"`
	Version     int             `json:"version"`
	CreatedAt   time.Time       `json:"created_at"` // UTC
	UpdatedAt   time.Time       `json:"updated_at"` // UTC
}

// IsOverdue reports whether the item is still unpaid after its due date.
func (r RevenueItem) IsOverdue(asOf time.Time) bool {
	return r.Status == StatusUnpaid && r.DueDate.Before(core.StartOfDay(asOf))
}

// Settlement records the payment of a reviewer's unpaid cost items over a period.
type Settlement struct {
	ID         string          `json:"id"`
	ReviewerID string          `json:"reviewer_id"`
	PeriodFrom time.Time       `json:"period_from"` // UTC
	PeriodTo   time.Time       `json:"period_to"`   // UTC
	Total      decimal.Decimal `json:"total"`
	ItemCount  int             `json:"item_count"`
	Note       string          `json:"note"`
	SettledBy  string          `json:"settled_by"`
	SettledAt  time.Time       `json:"settled_at"` // UTC
	Items      []CostItem      `json:"items,omitempty"`
}

type NewCostItem struct {
	ReviewerID  string          `json:"reviewer_id" validate:"required"`
	Category    CostCategory    `json:"category" validate:"required,costcat"`
	Description string          `json:"description" validate:"max=512"`
	Amount      decimal.Decimal `json:"amount" validate:"money"`
	IncurredOn  time.Time       `json:"incurred_on" validate:"required"`
}

func (nc *NewCostItem) Validate(validate *validator.Validate) error {
	nc.ReviewerID = core.CleanString(nc.ReviewerID)
	nc.Category = CostCategory(core.CleanString(string(nc.Category), true /* lower */))
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

// UpdateCostItem modifies an unsettled CostItem. Version must be the version the client last saw.
type UpdateCostItem struct {
	Category    CostCategory        `json:"category" validate:"omitempty,costcat"`
	Description *string             `json:"description" validate:"omitempty,max=512"`
	Amount      decimal.NullDecimal `json:"amount" validate:"omitempty,money"`
	IncurredOn  time.Time           `json:"incurred_on"`
	Version     int                 `json:"version" validate:"required,min=1"`
}

func (uc *UpdateCostItem) Validate(validate *validator.Validate) error {
	uc.Category = CostCategory(core.CleanString(string(uc.Category), true /* lower */))
	if uc.Description != nil {
		desc := core.CleanString(*uc.Description)
		uc.Description = &desc
	}
	return validate.Struct(uc)
}

type NewRevenueItem struct {
	CompanyID   string          `json:"company_id" validate:"required"`
	Category    RevenueCategory `json:"category" validate:"required,revcat"`
	Description string          `json:"description" validate:"max=512"`
	Amount      decimal.Decimal `json:"amount" validate:"money"`
	DueDate     time.Time       `json:"due_date" validate:"required"`
}

func (nr *NewRevenueItem) Validate(validate *validator.Validate) error {
	nr.CompanyID = core.CleanString(nr.CompanyID)
	nr.Category = RevenueCategory(core.CleanString(string(nr.Category), true /* lower */))
	nr.Description = core.CleanString(nr.Description)
	return validate.Struct(nr)
}

// UpdateRevenueItem modifies a RevenueItem. Version must be the version the client last saw.
type UpdateRevenueItem struct {
	Category    RevenueCategory     `json:"category" validate:"omitempty,revcat"`
	Description *string             `json:"description" validate:"omitempty,max=512"`
	Amount      decimal.NullDecimal `json:"amount" validate:"omitempty,money"`
	DueDate     time.Time           `json:"due_date"`
	Version     int                 `json:"version" validate:"required,min=1"`
}

func (ur *UpdateRevenueItem) Validate(validate *validator.Validate) error {
	ur.Category = RevenueCategory(core.CleanString(string(ur.Category), true /* lower */))
	if ur.Description != nil {
		desc := core.CleanString(*ur.Description)
		ur.Description = &desc
	}
	return validate.Struct(ur)
}

// StatusChange toggles the payment status of an item the client last saw at Version.
type StatusChange struct {
	Status  PaymentStatus `json:"status" validate:"required,paystatus"`
	Version int           `json:"version" validate:"required,min=1"`
}

func (sc *StatusChange) Validate(validate *validator.Validate) error {
	sc.Status = PaymentStatus(core.CleanString(string(sc.Status), true /* lower */))
	return validate.Struct(sc)
}

type NewSettlement struct {
	ReviewerID string    `json:"reviewer_id" validate:"required"`
	PeriodFrom time.Time `json:"period_from" validate:"required"`
	PeriodTo   time.Time `json:"period_to" validate:"required,gtefield=PeriodFrom"`
	Note       string    `json:"note" validate:"max=2000"`
}

func (ns *NewSettlement) Validate(validate *validator.Validate) error {
	ns.ReviewerID = core.CleanString(ns.ReviewerID)
	ns.Note = core.CleanString(ns.Note)
	return validate.Struct(ns)
}

type CostFilter struct {
	ReviewerIDs  []string
	Categories   []CostCategory
	Statuses     []PaymentStatus
	From         time.Time // IncurredOn >= From
	To           time.Time // IncurredOn <= To
	Settled      *bool
	SettlementID string
}

type RevenueFilter struct {
	CompanyIDs []string
	Categories []RevenueCategory
	Statuses   []PaymentStatus
	From       time.Time // DueDate >= From
	To         time.Time // DueDate <= To
}

type SettlementFilter struct {
	ReviewerIDs []string
	From        time.Time // SettledAt >= From
	To          time.Time // SettledAt <= To
}
