package company

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kcci/portal/core"
)

type Tier string

// Membership tiers
const (
	TierRegular   Tier = "regular"
	TierAssociate Tier = "associate"
	TierSpecial   Tier = "special"
)

var (
	Tiers = []Tier{TierRegular, TierAssociate, TierSpecial}

	OrderingFields = []string{"name", "tier", "industry", "joined_at", "created_at", "is_active"}
)

func (t Tier) IsValid() bool {
	for _, tier := range Tiers {
		if t == tier {
			return true
		}
	}
	return false
}

type Company struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Name           string    `json:"name"`
	BusinessNumber string    `json:"business_number"`
	Representative string    `json:"representative"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Address        string    `json:"address"`
	Industry       string    `json:"industry"`
	Website        string    `json:"website"`
	Tier           Tier      `json:"tier"`
	IsActive       *bool     `json:"is_active"`
	JoinedAt       time.Time `json:"joined_at"`  // UTC
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

func (c *Company) SetActive(active bool) {
	c.IsActive = &active
}

func (c Company) Active() bool {
	return c.IsActive == nil || *c.IsActive
}

// DirectoryEntry is the public view of a member Company.
type DirectoryEntry struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Representative string    `json:"representative"`
	Industry       string    `json:"industry"`
	Website        string    `json:"website"`
	Tier           Tier      `json:"tier"`
	JoinedAt       time.Time `json:"joined_at"`
}

// UpdateCompany defines what information may be provided to modify an existing Company.
type UpdateCompany struct {
	Name           string `json:"name"`
	BusinessNumber string `json:"business_number" validate:"omitempty,bizregno"`
	Representative string `json:"representative"`
	Email          string `json:"email" validate:"omitempty,email"`
	Phone          string `json:"phone" validate:"omitempty,phone"`
	Address        string `json:"address"`
	Industry       string `json:"industry"`
	Website        string `json:"website" validate:"omitempty,url"`
	Tier           Tier   `json:"tier" validate:"omitempty,tier"`
	IsActive       *bool  `json:"is_active"`
}

func (uc *UpdateCompany) Validate(validate *validator.Validate) error {
	uc.Name = core.CleanString(uc.Name)
	uc.BusinessNumber = core.CleanString(uc.BusinessNumber)
	uc.Representative = core.CleanString(uc.Representative)
	uc.Email = core.CleanString(uc.Email, true /* lower */)
	uc.Phone = core.CleanString(uc.Phone)
	uc.Address = core.CleanString(uc.Address)
	uc.Industry = core.CleanString(uc.Industry)
	uc.Website = core.CleanString(uc.Website)
	uc.Tier = Tier(core.CleanString(string(uc.Tier), true /* lower */))
	return validate.Struct(uc)
}

type QueryFilter struct {
	Search   string
	Tiers    []Tier
	Industry string
	IsActive *bool
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Industry = core.CleanString(qf.Industry)
}

type GetFilter struct {
	ID             string
	UserID         string
	BusinessNumber string
}
