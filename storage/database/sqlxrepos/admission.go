package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/admission"
)

const applicationsTable = "applications"

var applicationColumns = []string{
	"id", "first_name", "last_name", "gender", "date_of_birth", "grade_id", "previous_school",
	"parent_name", "parent_email", "parent_phone", "status", "review_notes", "reviewed_by", "reviewed_at",
	"learner_id", "created_at", "updated_at",
}

type applicationRow struct {
	ID             string      `db:"id"`
	FirstName      string      `db:"first_name"`
	LastName       string      `db:"last_name"`
	Gender         string      `db:"gender"`
	DateOfBirth    core.Date   `db:"date_of_birth"`
	GradeID        string      `db:"grade_id"`
	PreviousSchool string      `db:"previous_school"`
	ParentName     string      `db:"parent_name"`
	ParentEmail    string      `db:"parent_email"`
	ParentPhone    string      `db:"parent_phone"`
	Status         string      `db:"status"`
	ReviewNotes    string      `db:"review_notes"`
	ReviewedBy     null.String `db:"reviewed_by"`
	ReviewedAt     null.Time   `db:"reviewed_at"`
	LearnerID      null.String `db:"learner_id"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

type admissionRepository struct {
	repo
}

var _ admission.Repository = (*admissionRepository)(nil)

func NewAdmissionRepository(exec core.DBExecutor) *admissionRepository {
	return &admissionRepository{repo{exec: exec}}
}

func (r admissionRepository) fromRow(row applicationRow) admission.Application {
	app := admission.Application{
		ID:             row.ID,
		FirstName:      row.FirstName,
		LastName:       row.LastName,
		Gender:         row.Gender,
		DateOfBirth:    row.DateOfBirth,
		GradeID:        row.GradeID,
		PreviousSchool: row.PreviousSchool,
		ParentName:     row.ParentName,
		ParentEmail:    row.ParentEmail,
		ParentPhone:    row.ParentPhone,
		Status:         row.Status,
		ReviewNotes:    row.ReviewNotes,
		ReviewedBy:     row.ReviewedBy.Ptr(),
		LearnerID:      row.LearnerID.Ptr(),
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
	if row.ReviewedAt.Valid {
		app.ReviewedAt = row.ReviewedAt.Time.UTC()
	}
	return app
}

func (r admissionRepository) setMap(app admission.Application) map[string]interface{} {
	return map[string]interface{}{
		"first_name":      app.FirstName,
		"last_name":       app.LastName,
		"gender":          app.Gender,
		"date_of_birth":   app.DateOfBirth,
		"grade_id":        app.GradeID,
		"previous_school": app.PreviousSchool,
		"parent_name":     app.ParentName,
		"parent_email":    app.ParentEmail,
		"parent_phone":    app.ParentPhone,
		"status":          app.Status,
		"review_notes":    app.ReviewNotes,
		"reviewed_by":     null.StringFromPtr(app.ReviewedBy),
		"reviewed_at":     null.NewTime(app.ReviewedAt.UTC(), !app.ReviewedAt.IsZero()),
		"learner_id":      null.StringFromPtr(app.LearnerID),
		"updated_at":      app.UpdatedAt.UTC(),
	}
}

func (r admissionRepository) CreateApplication(ctx context.Context, app admission.Application, exec ...core.DBExecutor) (admission.Application, error) {
	app.ID = uuid.New().String()
	vals := r.setMap(app)
	vals["id"] = app.ID
	vals["created_at"] = app.CreatedAt.UTC()
	if _, err := execQuery(ctx, r.getExec(exec), psql.Insert(applicationsTable).SetMap(vals)); err != nil {
		return admission.Application{}, trapErr(err, admission.ErrNotFound, "inserting application")
	}
	return app, nil
}

func (r admissionRepository) GetApplication(ctx context.Context, id string, exec ...core.DBExecutor) (admission.Application, error) {
	if !validID(id) {
		return admission.Application{}, admission.ErrNotFound
	}
	row, err := selectOne[applicationRow](ctx, r.getExec(exec), applicationByID(id))
	if err != nil {
		return admission.Application{}, trapErr(err, admission.ErrNotFound, "finding application")
	}
	return r.fromRow(row), nil
}

func (r admissionRepository) LockApplication(ctx context.Context, id string, exec core.DBExecutor) (admission.Application, error) {
	if !validID(id) {
		return admission.Application{}, admission.ErrNotFound
	}
	row, err := selectOne[applicationRow](ctx, r.getExec([]core.DBExecutor{exec}), forUpdate(applicationByID(id)))
	if err != nil {
		return admission.Application{}, trapErr(err, admission.ErrNotFound, "locking application")
	}
	return r.fromRow(row), nil
}

func applicationByID(id string) sq.SelectBuilder {
	return psql.Select(applicationColumns...).From(applicationsTable).Where(sq.Eq{"id": id})
}

func (r admissionRepository) QueryApplications(ctx context.Context, filter *admission.QueryFilter, exec ...core.DBExecutor) ([]admission.Application, error) {
	q := psql.Select(applicationColumns...).From(applicationsTable).OrderBy("created_at DESC")
	if filter != nil {
		if filter.Search != "" {
			q = q.Where(ilike(filter.Search, "first_name", "last_name", "parent_name", "parent_email"))
		}
		if filter.Status != "" {
			q = q.Where(sq.Eq{"status": filter.Status})
		}
		if filter.GradeID != "" {
			q = q.Where(sq.Eq{"grade_id": filter.GradeID})
		}
	}
	var rows []applicationRow
	if err := selectAll(ctx, r.getExec(exec), q, &rows); err != nil {
		return nil, errors.Wrap(err, "querying applications")
	}
	apps := make([]admission.Application, 0, len(rows))
	for _, row := range rows {
		apps = append(apps, r.fromRow(row))
	}
	return apps, nil
}

func (r admissionRepository) UpdateApplication(ctx context.Context, app admission.Application, exec ...core.DBExecutor) (admission.Application, error) {
	q := psql.Update(applicationsTable).SetMap(r.setMap(app)).Where(sq.Eq{"id": app.ID})
	if err := execAffecting(ctx, r.getExec(exec), q); err != nil {
		return admission.Application{}, trapErr(err, admission.ErrNotFound, "updating application")
	}
	return app, nil
}
