package performance

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shuleapp/shule/core"
)

// Exam types
const (
	ExamOpener  = "opener"
	ExamMidTerm = "mid_term"
	ExamEndTerm = "end_term"
)

var ExamTypes = []string{ExamOpener, ExamMidTerm, ExamEndTerm}

// Record is one mark for one learner, learning area, academic period and exam type.
type Record struct {
	ID             string    `json:"id"`
	LearnerID      string    `json:"learner_id"`
	LearningAreaID string    `json:"learning_area_id"`
	GradeID        string    `json:"grade_id"`
	AcademicYear   int       `json:"academic_year"`
	Term           int       `json:"term"`
	ExamType       string    `json:"exam_type"`
	Marks          float64   `json:"marks"`
	Remarks        string    `json:"remarks"`
	RecordedBy     *string   `json:"recorded_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Key identifies a record: there is at most one record per key.
type Key struct {
	LearnerID      string
	LearningAreaID string
	AcademicYear   int
	Term           int
	ExamType       string
	GradeID        string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%d/%d/%s/%s", k.LearnerID, k.LearningAreaID, k.AcademicYear, k.Term, k.ExamType, k.GradeID)
}

func (r Record) Key() Key {
	return Key{
		LearnerID:      r.LearnerID,
		LearningAreaID: r.LearningAreaID,
		AcademicYear:   r.AcademicYear,
		Term:           r.Term,
		ExamType:       r.ExamType,
		GradeID:        r.GradeID,
	}
}

// RecordInput is one entry of a score sheet.
// GradeID defaults to the learner's current grade.
type RecordInput struct {
	LearnerID      string   `json:"learner_id" validate:"required,uuid"`
	LearningAreaID string   `json:"learning_area_id" validate:"required,uuid"`
	GradeID        string   `json:"grade_id" validate:"omitempty,uuid"`
	AcademicYear   int      `json:"academic_year" validate:"required,min=2000,max=2100"`
	Term           int      `json:"term" validate:"required,term"`
	ExamType       string   `json:"exam_type" validate:"required,examtype"`
	Marks          *float64 `json:"marks" validate:"required,min=0,max=100"`
	Remarks        string   `json:"remarks" validate:"max=500"`
}

// UpsertBatch is a score sheet: it is saved completely or not at all.
type UpsertBatch struct {
	Records []RecordInput `json:"records" validate:"required,min=1,max=2000,dive"`
}

func (b *UpsertBatch) Validate(validate *validator.Validate) error {
	for i := range b.Records {
		in := &b.Records[i]
		in.ExamType = core.CleanString(in.ExamType, true /* lower */)
		in.Remarks = core.CleanString(in.Remarks)
	}
	return validate.Struct(b)
}

type QueryFilter struct {
	LearnerID      string
	LearnerIDs     []string
	LearningAreaID string
	GradeID        string
	AcademicYear   int
	Term           int
	ExamType       string
}
