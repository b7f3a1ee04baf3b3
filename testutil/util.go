package testutil

import (
	"context"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kcci/portal/core"
	"github.com/kcci/portal/core/company"
	"github.com/kcci/portal/core/finance"
	"github.com/kcci/portal/core/membership"
	"github.com/kcci/portal/core/reviewer"
	"github.com/kcci/portal/core/user"
	logsvc "github.com/kcci/portal/services/logger"
)

// NewConfig returns the configuration used by tests.
func NewConfig(t *testing.T) *core.Config {
	t.Setenv("ENV", "TEST")
	conf := core.NewConfig()
	conf.TestMode = true
	conf.Database.InMemory = true
	return conf
}

// NewLogger returns a logger that discards everything.
func NewLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(zap.NewNop(), conf)
	logger.Enable(false)
	return logger
}

// NewValidator registers every domain validator.
func NewValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	reviewer.InitValidators(validate, translator)
	company.InitValidators(validate, translator)
	membership.InitValidators(validate, translator)
	finance.InitValidators(validate, translator)
	return validate
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateReviewer(t *testing.T, repo reviewer.Repository, name, email string, grade reviewer.Grade, userID ...string) reviewer.Reviewer {
	now := time.Now().UTC()
	rev := reviewer.Reviewer{
		Name:        name,
		Email:       email,
		Affiliation: "KCCI",
		Specialty:   "quality management",
		CareerYears: 5,
		Grade:       grade,
		CertifiedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if len(userID) > 0 {
		rev.UserID = userID[0]
	}
	rev.SetActive(true)
	rev, err := repo.CreateReviewer(context.Background(), rev)
	if err != nil {
		t.Fatalf("CreateReviewer() failed: %v", err)
	}
	return rev
}

func CreateCompany(t *testing.T, repo company.Repository, name, bizNo string, tier company.Tier, userID ...string) company.Company {
	now := time.Now().UTC()
	comp := company.Company{
		Name:           name,
		BusinessNumber: bizNo,
		Representative: "Kim Minsu",
		Email:          "contact@" + bizNo + ".example.com",
		Industry:       "manufacturing",
		Tier:           tier,
		JoinedAt:       now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if len(userID) > 0 {
		comp.UserID = userID[0]
	}
	comp.SetActive(true)
	comp, err := repo.CreateCompany(context.Background(), comp)
	if err != nil {
		t.Fatalf("CreateCompany() failed: %v", err)
	}
	return comp
}

// CreateApplication stores a pending application with the password "Gr8-Certif1ed".
func CreateApplication(t *testing.T, repo membership.Repository, kind membership.Kind, name, uname, email string) membership.Application {
	hash, err := user.HashPassword("Gr8-Certif1ed")
	if err != nil {
		t.Fatalf("CreateApplication() failed: %v", err)
	}
	now := time.Now().UTC()
	app := membership.Application{
		Kind:         kind,
		Status:       membership.StatusPending,
		Name:         name,
		Username:     uname,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if kind == membership.KindReviewer {
		app.Affiliation = "KCCI"
		app.Specialty = "quality management"
		app.CareerYears = 3
	} else {
		app.CompanyName = name + " Co."
		app.BusinessNumber = "124-81-00998"
		app.Representative = name
	}
	app, err = repo.CreateApplication(context.Background(), app)
	if err != nil {
		t.Fatalf("CreateApplication() failed: %v", err)
	}
	return app
}

func CreateCost(t *testing.T, repo finance.Repository, reviewerID string, cat finance.CostCategory, amount string, incurredOn time.Time) finance.CostItem {
	now := time.Now().UTC()
	item := finance.CostItem{
		ReviewerID:  reviewerID,
		Category:    cat,
		Description: string(cat),
		Amount:      decimal.RequireFromString(amount),
		IncurredOn:  core.StartOfDay(incurredOn),
		Status:      finance.StatusUnpaid,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	item, err := repo.CreateCost(context.Background(), item)
	if err != nil {
		t.Fatalf("CreateCost() failed: %v", err)
	}
	return item
}

func CreateRevenue(t *testing.T, repo finance.Repository, companyID string, cat finance.RevenueCategory, amount string, dueDate time.Time) finance.RevenueItem {
	now := time.Now().UTC()
	item := finance.RevenueItem{
		CompanyID:   companyID,
		Category:    cat,
		Description: string(cat),
		Amount:      decimal.RequireFromString(amount),
		DueDate:     core.StartOfDay(dueDate),
		Status:      finance.StatusUnpaid,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	item, err := repo.CreateRevenue(context.Background(), item)
	if err != nil {
		t.Fatalf("CreateRevenue() failed: %v", err)
	}
	return item
}

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
