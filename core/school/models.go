package school

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shuleapp/shule/core"
)

// Grade is a class level, e.g. "Grade 4". Level orders grades for promotion.
type Grade struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Level     int       `json:"level"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stream is a class within a Grade, e.g. "Grade 4 East".
type Stream struct {
	ID             string    `json:"id"`
	GradeID        string    `json:"grade_id"`
	Name           string    `json:"name"`
	ClassTeacherID *string   `json:"class_teacher_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// LearningArea is a subject.
type LearningArea struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Teacher struct {
	ID          string    `json:"id"`
	UserID      *string   `json:"user_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	StaffNumber string    `json:"staff_number"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type GradeInput struct {
	Name  string `json:"name" validate:"required,notblank,max=50"`
	Level *int   `json:"level" validate:"required,min=0,max=20"`
}

func (in *GradeInput) Validate(validate *validator.Validate) error {
	in.Name = core.CleanString(in.Name)
	return validate.Struct(in)
}

type StreamInput struct {
	GradeID        string  `json:"grade_id" validate:"required,uuid"`
	Name           string  `json:"name" validate:"required,notblank,max=50"`
	ClassTeacherID *string `json:"class_teacher_id" validate:"omitempty,uuid"`
}

func (in *StreamInput) Validate(validate *validator.Validate) error {
	in.Name = core.CleanString(in.Name)
	if in.ClassTeacherID != nil {
		in.ClassTeacherID = core.StringPtr(*in.ClassTeacherID)
	}
	return validate.Struct(in)
}

type LearningAreaInput struct {
	Name     string `json:"name" validate:"required,notblank,max=100"`
	Code     string `json:"code" validate:"required,alphanum_,max=20"`
	IsActive *bool  `json:"is_active"`
}

func (in *LearningAreaInput) Validate(validate *validator.Validate) error {
	in.Name = core.CleanString(in.Name)
	in.Code = strings.ToUpper(core.CleanString(in.Code))
	return validate.Struct(in)
}

type TeacherInput struct {
	UserID      *string `json:"user_id" validate:"omitempty,uuid"`
	Name        string  `json:"name" validate:"required,notblank,max=100"`
	Email       string  `json:"email" validate:"omitempty,email"`
	Phone       string  `json:"phone" validate:"omitempty,max=20"`
	StaffNumber string  `json:"staff_number" validate:"required,notblank,max=30"`
}

func (in *TeacherInput) Validate(validate *validator.Validate) error {
	in.Name = core.CleanString(in.Name)
	in.Email = core.CleanString(in.Email, true /* lower */)
	in.Phone = core.CleanString(in.Phone)
	in.StaffNumber = strings.ToUpper(core.CleanString(in.StaffNumber))
	if in.UserID != nil {
		in.UserID = core.StringPtr(*in.UserID)
	}
	return validate.Struct(in)
}

// Stats are the public counters shown on the homepage & dashboard.
type Stats struct {
	Teachers      int `json:"teachers"`
	Grades        int `json:"grades"`
	Streams       int `json:"streams"`
	LearningAreas int `json:"learning_areas"`
}
