package admission

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shuleapp/shule/core"
)

// Application statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

var Statuses = []string{StatusPending, StatusApproved, StatusRejected}

// Application is an admission request awaiting review.
type Application struct {
	ID             string    `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Gender         string    `json:"gender"`
	DateOfBirth    core.Date `json:"date_of_birth"`
	GradeID        string    `json:"grade_id"`
	PreviousSchool string    `json:"previous_school"`
	ParentName     string    `json:"parent_name"`
	ParentEmail    string    `json:"parent_email"`
	ParentPhone    string    `json:"parent_phone"`
	Status         string    `json:"status"`
	ReviewNotes    string    `json:"review_notes"`
	ReviewedBy     *string   `json:"reviewed_by"`
	ReviewedAt     time.Time `json:"reviewed_at"`
	LearnerID      *string   `json:"learner_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (a Application) IsPending() bool {
	return a.Status == StatusPending
}

type ApplicationInput struct {
	FirstName      string    `json:"first_name" validate:"required,notblank,max=50"`
	LastName       string    `json:"last_name" validate:"required,notblank,max=50"`
	Gender         string    `json:"gender" validate:"required,gender"`
	DateOfBirth    core.Date `json:"date_of_birth"`
	GradeID        string    `json:"grade_id" validate:"required,uuid"`
	PreviousSchool string    `json:"previous_school" validate:"max=100"`
	ParentName     string    `json:"parent_name" validate:"required,notblank,max=100"`
	ParentEmail    string    `json:"parent_email" validate:"omitempty,email"`
	ParentPhone    string    `json:"parent_phone" validate:"required,notblank,max=20"`
}

func (in *ApplicationInput) Validate(validate *validator.Validate) error {
	in.FirstName = core.CleanString(in.FirstName)
	in.LastName = core.CleanString(in.LastName)
	in.Gender = core.CleanString(in.Gender, true /* lower */)
	in.PreviousSchool = core.CleanString(in.PreviousSchool)
	in.ParentName = core.CleanString(in.ParentName)
	in.ParentEmail = core.CleanString(in.ParentEmail, true /* lower */)
	in.ParentPhone = core.CleanString(in.ParentPhone)
	if err := validate.Struct(in); err != nil {
		return err
	}
	if in.DateOfBirth.IsZero() {
		return core.NewFieldError("date_of_birth", "this field is required")
	}
	if in.DateOfBirth.After(time.Now()) {
		return core.NewFieldError("date_of_birth", "date of birth cannot be in the future")
	}
	return nil
}

// Review is the decision taken on a pending application.
// StreamID optionally places the admitted learner in a stream.
type Review struct {
	Notes    string  `json:"notes" validate:"max=500"`
	StreamID *string `json:"stream_id" validate:"omitempty,uuid"`
}

func (r *Review) Validate(validate *validator.Validate, rejecting bool) error {
	r.Notes = core.CleanString(r.Notes)
	if r.StreamID != nil {
		r.StreamID = core.StringPtr(*r.StreamID)
	}
	if err := validate.Struct(r); err != nil {
		return err
	}
	if rejecting && r.Notes == "" {
		return core.NewFieldError("notes", "a reason is required to reject an application")
	}
	return nil
}

type QueryFilter struct {
	Search  string // matches applicant & parent names
	Status  string
	GradeID string
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}

// Counts of applications per status.
type Counts map[string]int
