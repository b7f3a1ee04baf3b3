package reviewer

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kcci/portal/core"
)

type Grade string

// Grades, from the least to the most experienced.
const (
	GradeTrainee Grade = "trainee"
	GradeJunior  Grade = "junior"
	GradeSenior  Grade = "senior"
	GradeLead    Grade = "lead"
)

var (
	Grades = []Grade{GradeTrainee, GradeJunior, GradeSenior, GradeLead}

	OrderingFields = []string{"name", "grade", "career_years", "certified_at", "created_at", "is_active"}
)

func (g Grade) IsValid() bool {
	for _, grade := range Grades {
		if g == grade {
			return true
		}
	}
	return false
}

type Reviewer struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Affiliation string    `json:"affiliation"`
	Specialty   string    `json:"specialty"`
	CareerYears int       `json:"career_years"`
	Grade       Grade     `json:"grade"`
	IsActive    *bool     `json:"is_active"`
	CertifiedAt time.Time `json:"certified_at"` // UTC
	CreatedAt   time.Time `json:"created_at"`   // UTC
	UpdatedAt   time.Time `json:"updated_at"`   // UTC
}

func (r *Reviewer) SetActive(active bool) {
	r.IsActive = &active
}

func (r Reviewer) Active() bool {
	return r.IsActive == nil || *r.IsActive
}

// DirectoryEntry is the public view of a Reviewer.
type DirectoryEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Affiliation string `json:"affiliation"`
	Specialty   string `json:"specialty"`
	Grade       Grade  `json:"grade"`
}

// UpdateReviewer defines what information may be provided to modify an existing Reviewer.
type UpdateReviewer struct {
	Name        string `json:"name"`
	Phone       string `json:"phone" validate:"omitempty,phone"`
	Affiliation string `json:"affiliation"`
	Specialty   string `json:"specialty"`
	CareerYears *int   `json:"career_years" validate:"omitempty,min=0,max=70"`
	Grade       Grade  `json:"grade" validate:"omitempty,grade"`
	IsActive    *bool  `json:"is_active"`
}

func (ur *UpdateReviewer) Validate(validate *validator.Validate) error {
	ur.Name = core.CleanString(ur.Name)
	ur.Phone = core.CleanString(ur.Phone)
	ur.Affiliation = core.CleanString(ur.Affiliation)
	ur.Specialty = core.CleanString(ur.Specialty)
	ur.Grade = Grade(core.CleanString(string(ur.Grade), true /* lower */))
	return validate.Struct(ur)
}

type QueryFilter struct {
	Search   string
	Grades   []Grade
	IsActive *bool
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

type GetFilter struct {
	ID     string
	UserID string
}
