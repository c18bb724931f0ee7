package report

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/learner"
	"github.com/shuleapp/shule/core/school"
)

// ClassReportQuery selects the scores of a class for an academic period.
// An empty ExamType aggregates the term scores of every exam type.
type ClassReportQuery struct {
	GradeID      string `json:"grade_id" validate:"required,uuid"`
	StreamID     string `json:"stream_id,omitempty" validate:"omitempty,uuid"`
	AcademicYear int    `json:"academic_year" validate:"required,min=2000,max=2100"`
	Term         int    `json:"term" validate:"required,term"`
	ExamType     string `json:"exam_type,omitempty" validate:"omitempty,examtype"`
}

func (q *ClassReportQuery) Validate(validate *validator.Validate) error {
	q.ExamType = core.CleanString(q.ExamType, true /* lower */)
	return validate.Struct(q)
}

// LearnerRow is one line of a ClassReport. Position is 0 for learners without marks.
type LearnerRow struct {
	LearnerID       string             `json:"learner_id"`
	AdmissionNumber string             `json:"admission_number"`
	Name            string             `json:"name"`
	Scores          map[string]float64 `json:"scores"` // by learning area ID
	Count           int                `json:"count"`
	Total           float64            `json:"total"`
	Mean            float64            `json:"mean"`
	Level           string             `json:"level"`
	Points          int                `json:"points"`
	Position        int                `json:"position"`
}

type SubjectStats struct {
	LearningAreaID string         `json:"learning_area_id"`
	Code           string         `json:"code"`
	Name           string         `json:"name"`
	Count          int            `json:"count"`
	Mean           float64        `json:"mean"`
	Highest        float64        `json:"highest"`
	Lowest         float64        `json:"lowest"`
	Levels         map[string]int `json:"levels"` // by level code
}

type ClassReport struct {
	Query         ClassReportQuery      `json:"query"`
	Grade         school.Grade          `json:"grade"`
	Stream        *school.Stream        `json:"stream"`
	LearningAreas []school.LearningArea `json:"learning_areas"`
	Learners      []LearnerRow          `json:"learners"`
	Subjects      []SubjectStats        `json:"subjects"`
	ClassMean     float64               `json:"class_mean"`
	GeneratedAt   time.Time             `json:"generated_at"`
}

// ReportCardQuery selects the report card of a learner for an academic period.
type ReportCardQuery struct {
	LearnerID    string `json:"learner_id" validate:"required,uuid"`
	AcademicYear int    `json:"academic_year" validate:"required,min=2000,max=2100"`
	Term         int    `json:"term" validate:"required,term"`
	ExamType     string `json:"exam_type,omitempty" validate:"omitempty,examtype"`
}

func (q *ReportCardQuery) Validate(validate *validator.Validate) error {
	q.ExamType = core.CleanString(q.ExamType, true /* lower */)
	return validate.Struct(q)
}

type SubjectResult struct {
	LearningAreaID   string             `json:"learning_area_id"`
	LearningAreaCode string             `json:"learning_area_code"`
	LearningAreaName string             `json:"learning_area_name"`
	Marks            map[string]float64 `json:"marks"` // by exam type
	Score            float64            `json:"score"`
	Level            string             `json:"level"`
	LevelName        string             `json:"level_name"`
	Points           int                `json:"points"`
	Comment          string             `json:"comment"`
	Position         int                `json:"position"`
	OutOf            int                `json:"out_of"`
}

type ReportCard struct {
	Learner      learner.Learner `json:"learner"`
	Grade        school.Grade    `json:"grade"`
	AcademicYear int             `json:"academic_year"`
	Term         int             `json:"term"`
	ExamType     string          `json:"exam_type"`
	Subjects     []SubjectResult `json:"subjects"`
	Total        float64         `json:"total"`
	Mean         float64         `json:"mean"`
	Level        string          `json:"level"`
	Points       int             `json:"points"`
	Position     int             `json:"position"`
	ClassSize    int             `json:"class_size"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// SendReportCardRequest asks for the report card of a learner to be emailed.
// The recipient defaults to the learner's parent email.
type SendReportCardRequest struct {
	LearnerID      string `json:"learnerId" validate:"required,uuid"`
	AcademicYear   int    `json:"academicYear" validate:"required,min=2000,max=2100"`
	Term           int    `json:"term" validate:"required,term"`
	ExamType       string `json:"examType" validate:"omitempty,examtype"`
	RecipientEmail string `json:"recipientEmail" validate:"omitempty,email"`
}

func (r *SendReportCardRequest) Validate(validate *validator.Validate) error {
	r.ExamType = core.CleanString(r.ExamType, true /* lower */)
	r.RecipientEmail = core.CleanString(r.RecipientEmail, true /* lower */)
	return validate.Struct(r)
}

type SendResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
