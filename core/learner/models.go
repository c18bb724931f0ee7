package learner

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shuleapp/shule/core"
)

// Learner statuses
const (
	StatusActive = "active"
	StatusAlumni = "alumni"
)

// Genders
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

type Learner struct {
	ID              string    `json:"id"`
	AdmissionNumber string    `json:"admission_number"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	Gender          string    `json:"gender"`
	DateOfBirth     core.Date `json:"date_of_birth"`
	GradeID         string    `json:"grade_id"`
	StreamID        *string   `json:"stream_id"`
	ParentID        *string   `json:"parent_id"`
	Status          string    `json:"status"`
	AdmittedAt      core.Date `json:"admitted_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (l Learner) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

func (l Learner) IsActive() bool {
	return l.Status == StatusActive
}

type Parent struct {
	ID           string    `json:"id"`
	UserID       *string   `json:"user_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Relationship string    `json:"relationship"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LearnerInput is used to create and update learners.
// An empty AdmissionNumber is generated on creation.
type LearnerInput struct {
	AdmissionNumber string    `json:"admission_number" validate:"omitempty,max=30"`
	FirstName       string    `json:"first_name" validate:"required,notblank,max=50"`
	LastName        string    `json:"last_name" validate:"required,notblank,max=50"`
	Gender          string    `json:"gender" validate:"required,gender"`
	DateOfBirth     core.Date `json:"date_of_birth"`
	GradeID         string    `json:"grade_id" validate:"required,uuid"`
	StreamID        *string   `json:"stream_id" validate:"omitempty,uuid"`
	ParentID        *string   `json:"parent_id" validate:"omitempty,uuid"`
	Status          string    `json:"status" validate:"omitempty,learnerstatus"`
	AdmittedAt      core.Date `json:"admitted_at"`
}

func (in *LearnerInput) Validate(validate *validator.Validate) error {
	in.AdmissionNumber = strings.ToUpper(core.CleanString(in.AdmissionNumber))
	in.FirstName = core.CleanString(in.FirstName)
	in.LastName = core.CleanString(in.LastName)
	in.Gender = core.CleanString(in.Gender, true /* lower */)
	in.Status = core.CleanString(in.Status, true /* lower */)
	if in.StreamID != nil {
		in.StreamID = core.StringPtr(*in.StreamID)
	}
	if in.ParentID != nil {
		in.ParentID = core.StringPtr(*in.ParentID)
	}
	if err := validate.Struct(in); err != nil {
		return err
	}
	if !in.DateOfBirth.IsZero() && in.DateOfBirth.After(time.Now()) {
		return core.NewFieldError("date_of_birth", "date of birth cannot be in the future")
	}
	return nil
}

type ParentInput struct {
	UserID       *string `json:"user_id" validate:"omitempty,uuid"`
	Name         string  `json:"name" validate:"required,notblank,max=100"`
	Email        string  `json:"email" validate:"omitempty,email"`
	Phone        string  `json:"phone" validate:"required,notblank,max=20"`
	Relationship string  `json:"relationship" validate:"omitempty,max=30"`
}

func (in *ParentInput) Validate(validate *validator.Validate) error {
	in.Name = core.CleanString(in.Name)
	in.Email = core.CleanString(in.Email, true /* lower */)
	in.Phone = core.CleanString(in.Phone)
	in.Relationship = core.CleanString(in.Relationship, true /* lower */)
	if in.UserID != nil {
		in.UserID = core.StringPtr(*in.UserID)
	}
	return validate.Struct(in)
}

type QueryFilter struct {
	Search   string // matches names & admission number
	GradeID  string
	StreamID string
	Status   string
	ParentID string
	IDs      []string
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}

// PromotionResult summarizes a Promote run.
type PromotionResult struct {
	Promoted  int `json:"promoted"`
	Graduated int `json:"graduated"`
}

// Counts of learners per status.
type Counts struct {
	Active int `json:"active"`
	Alumni int `json:"alumni"`
}
