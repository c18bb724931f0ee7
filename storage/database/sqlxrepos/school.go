package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/school"
)

const (
	gradesTable        = "grades"
	streamsTable       = "streams"
	learningAreasTable = "learning_areas"
	teachersTable      = "teachers"
)

var (
	gradeColumns        = []string{"id", "name", "level", "created_at", "updated_at"}
	streamColumns       = []string{"id", "grade_id", "name", "class_teacher_id", "created_at", "updated_at"}
	learningAreaColumns = []string{"id", "name", "code", "is_active", "created_at", "updated_at"}
	teacherColumns      = []string{"id", "user_id", "name", "email", "phone", "staff_number", "created_at", "updated_at"}
)

type gradeRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Level     int       `db:"level"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type streamRow struct {
	ID             string      `db:"id"`
	GradeID        string      `db:"grade_id"`
	Name           string      `db:"name"`
	ClassTeacherID null.String `db:"class_teacher_id"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

type learningAreaRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Code      string    `db:"code"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type teacherRow struct {
	ID          string      `db:"id"`
	UserID      null.String `db:"user_id"`
	Name        string      `db:"name"`
	Email       string      `db:"email"`
	Phone       string      `db:"phone"`
	StaffNumber string      `db:"staff_number"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

type schoolRepository struct {
	repo
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(exec core.DBExecutor) *schoolRepository {
	return &schoolRepository{repo{exec: exec}}
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Grades

func (r schoolRepository) fromGradeRow(row gradeRow) school.Grade {
	return school.Grade{
		ID:        row.ID,
		Name:      row.Name,
		Level:     row.Level,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

func (r schoolRepository) CreateGrade(ctx context.Context, g school.Grade, exec ...core.DBExecutor) (school.Grade, error) {
	g.ID = uuid.New().String()
	q := psql.Insert(gradesTable).Columns(gradeColumns...).
		Values(g.ID, g.Name, g.Level, g.CreatedAt.UTC(), g.UpdatedAt.UTC())
	if _, err := execQuery(ctx, r.getExec(exec), q); err != nil {
		return school.Grade{}, trapErr(err, school.ErrGradeNotFound, "inserting grade")
	}
	return g, nil
}

func (r schoolRepository) GetGrade(ctx context.Context, id string, exec ...core.DBExecutor) (school.Grade, error) {
	if !validID(id) {
		return school.Grade{}, school.ErrGradeNotFound
	}
	row, err := selectOne[gradeRow](ctx, r.getExec(exec), psql.Select(gradeColumns...).From(gradesTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return school.Grade{}, trapErr(err, school.ErrGradeNotFound, "finding grade")
	}
	return r.fromGradeRow(row), nil
}

func (r schoolRepository) QueryGrades(ctx context.Context, exec ...core.DBExecutor) ([]school.Grade, error) {
	var rows []gradeRow
	if err := selectAll(ctx, r.getExec(exec), psql.Select(gradeColumns...).From(gradesTable).OrderBy("level ASC"), &rows); err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	grades := make([]school.Grade, 0, len(rows))
	for _, row := range rows {
		grades = append(grades, r.fromGradeRow(row))
	}
	return grades, nil
}

func (r schoolRepository) UpdateGrade(ctx context.Context, g school.Grade, exec ...core.DBExecutor) (school.Grade, error) {
	q := psql.Update(gradesTable).
		SetMap(map[string]interface{}{"name": g.Name, "level": g.Level, "updated_at": g.UpdatedAt.UTC()}).
		Where(sq.Eq{"id": g.ID})
	if err := execAffecting(ctx, r.getExec(exec), q); err != nil {
		return school.Grade{}, trapErr(err, school.ErrGradeNotFound, "updating grade")
	}
	return g, nil
}

func (r schoolRepository) DeleteGrade(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validID(id) {
		return school.ErrGradeNotFound
	}
	return trapErr(execAffecting(ctx, r.getExec(exec), psql.Delete(gradesTable).Where(sq.Eq{"id": id})),
		school.ErrGradeNotFound, "deleting grade")
}

// Streams

func (r schoolRepository) fromStreamRow(row streamRow) school.Stream {
	return school.Stream{
		ID:             row.ID,
		GradeID:        row.GradeID,
		Name:           row.Name,
		ClassTeacherID: row.ClassTeacherID.Ptr(),
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
}

func (r schoolRepository) CreateStream(ctx context.Context, s school.Stream, exec ...core.DBExecutor) (school.Stream, error) {
	s.ID = uuid.New().String()
	q := psql.Insert(streamsTable).Columns(streamColumns...).
		Values(s.ID, s.GradeID, s.Name, null.StringFromPtr(s.ClassTeacherID), s.CreatedAt.UTC(), s.UpdatedAt.UTC())
	if _, err := execQuery(ctx, r.getExec(exec), q); err != nil {
		return school.Stream{}, trapErr(err, school.ErrStreamNotFound, "inserting stream")
	}
	return s, nil
}

func (r schoolRepository) GetStream(ctx context.Context, id string, exec ...core.DBExecutor) (school.Stream, error) {
	if !validID(id) {
		return school.Stream{}, school.ErrStreamNotFound
	}
	row, err := selectOne[streamRow](ctx, r.getExec(exec), psql.Select(streamColumns...).From(streamsTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return school.Stream{}, trapErr(err, school.ErrStreamNotFound, "finding stream")
	}
	return r.fromStreamRow(row), nil
}

func (r schoolRepository) QueryStreams(ctx context.Context, gradeID string, exec ...core.DBExecutor) ([]school.Stream, error) {
	q := psql.Select(streamColumns...).From(streamsTable).OrderBy("name ASC")
	if gradeID != "" {
		if !validID(gradeID) {
			return []school.Stream{}, nil
		}
		q = q.Where(sq.Eq{"grade_id": gradeID})
	}
	var rows []streamRow
	if err := selectAll(ctx, r.getExec(exec), q, &rows); err != nil {
		return nil, errors.Wrap(err, "querying streams")
	}
	streams := make([]school.Stream, 0, len(rows))
	for _, row := range rows {
		streams = append(streams, r.fromStreamRow(row))
	}
	return streams, nil
}

func (r schoolRepository) UpdateStream(ctx context.Context, s school.Stream, exec ...core.DBExecutor) (school.Stream, error) {
	q := psql.Update(streamsTable).
		SetMap(map[string]interface{}{
			"grade_id":         s.GradeID,
			"name":             s.Name,
			"class_teacher_id": null.StringFromPtr(s.ClassTeacherID),
			"updated_at":       s.UpdatedAt.UTC(),
		}).
		Where(sq.Eq{"id": s.ID})
	if err := execAffecting(ctx, r.getExec(exec), q); err != nil {
		return school.Stream{}, trapErr(err, school.ErrStreamNotFound, "updating stream")
	}
	return s, nil
}

func (r schoolRepository) DeleteStream(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validID(id) {
		return school.ErrStreamNotFound
	}
	return trapErr(execAffecting(ctx, r.getExec(exec), psql.Delete(streamsTable).Where(sq.Eq{"id": id})),
		school.ErrStreamNotFound, "deleting stream")
}

// Learning areas

func (r schoolRepository) fromLearningAreaRow(row learningAreaRow) school.LearningArea {
	return school.LearningArea{
		ID:        row.ID,
		Name:      row.Name,
		Code:      row.Code,
		IsActive:  row.IsActive,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

func (r schoolRepository) CreateLearningArea(ctx context.Context, la school.LearningArea, exec ...core.DBExecutor) (school.LearningArea, error) {
	la.ID = uuid.New().String()
	q := psql.Insert(learningAreasTable).Columns(learningAreaColumns...).
		Values(la.ID, la.Name, la.Code, la.IsActive, la.CreatedAt.UTC(), la.UpdatedAt.UTC())
	if _, err := execQuery(ctx, r.getExec(exec), q); err != nil {
		return school.LearningArea{}, trapErr(err, school.ErrLearningAreaNotFound, "inserting learning area")
	}
	return la, nil
}

func (r schoolRepository) GetLearningArea(ctx context.Context, id string, exec ...core.DBExecutor) (school.LearningArea, error) {
	if !validID(id) {
		return school.LearningArea{}, school.ErrLearningAreaNotFound
	}
	row, err := selectOne[learningAreaRow](ctx, r.getExec(exec),
		psql.Select(learningAreaColumns...).From(learningAreasTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return school.LearningArea{}, trapErr(err, school.ErrLearningAreaNotFound, "finding learning area")
	}
	return r.fromLearningAreaRow(row), nil
}

func (r schoolRepository) QueryLearningAreas(ctx context.Context, isActive *bool, exec ...core.DBExecutor) ([]school.LearningArea, error) {
	q := psql.Select(learningAreaColumns...).From(learningAreasTable).OrderBy("name ASC")
	if isActive != nil {
		q = q.Where(sq.Eq{"is_active": *isActive})
	}
	var rows []learningAreaRow
	if err := selectAll(ctx, r.getExec(exec), q, &rows); err != nil {
		return nil, errors.Wrap(err, "querying learning areas")
	}
	areas := make([]school.LearningArea, 0, len(rows))
	for _, row := range rows {
		areas = append(areas, r.fromLearningAreaRow(row))
	}
	return areas, nil
}

func (r schoolRepository) UpdateLearningArea(ctx context.Context, la school.LearningArea, exec ...core.DBExecutor) (school.LearningArea, error) {
	q := psql.Update(learningAreasTable).
		SetMap(map[string]interface{}{
			"name":       la.Name,
			"code":       la.Code,
			"is_active":  la.IsActive,
			"updated_at": la.UpdatedAt.UTC(),
		}).
		Where(sq.Eq{"id": la.ID})
	if err := execAffecting(ctx, r.getExec(exec), q); err != nil {
		return school.LearningArea{}, trapErr(err, school.ErrLearningAreaNotFound, "updating learning area")
	}
	return la, nil
}

func (r schoolRepository) DeleteLearningArea(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validID(id) {
		return school.ErrLearningAreaNotFound
	}
	return trapErr(execAffecting(ctx, r.getExec(exec), psql.Delete(learningAreasTable).Where(sq.Eq{"id": id})),
		school.ErrLearningAreaNotFound, "deleting learning area")
}

// Teachers

func (r schoolRepository) fromTeacherRow(row teacherRow) school.Teacher {
	return school.Teacher{
		ID:          row.ID,
		UserID:      row.UserID.Ptr(),
		Name:        row.Name,
		Email:       row.Email,
		Phone:       row.Phone,
		StaffNumber: row.StaffNumber,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

func (r schoolRepository) CreateTeacher(ctx context.Context, t school.Teacher, exec ...core.DBExecutor) (school.Teacher, error) {
	t.ID = uuid.New().String()
	q := psql.Insert(teachersTable).Columns(teacherColumns...).
		Values(t.ID, null.StringFromPtr(t.UserID), t.Name, t.Email, t.Phone, t.StaffNumber, t.CreatedAt.UTC(), t.UpdatedAt.UTC())
	if _, err := execQuery(ctx, r.getExec(exec), q); err != nil {
		return school.Teacher{}, trapErr(err, school.ErrTeacherNotFound, "inserting teacher")
	}
	return t, nil
}

func (r schoolRepository) GetTeacher(ctx context.Context, id string, exec ...core.DBExecutor) (school.Teacher, error) {
	if !validID(id) {
		return school.Teacher{}, school.ErrTeacherNotFound
	}
	row, err := selectOne[teacherRow](ctx, r.getExec(exec), psql.Select(teacherColumns...).From(teachersTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return school.Teacher{}, trapErr(err, school.ErrTeacherNotFound, "finding teacher")
	}
	return r.fromTeacherRow(row), nil
}

func (r schoolRepository) QueryTeachers(ctx context.Context, search string, exec ...core.DBExecutor) ([]school.Teacher, error) {
	q := psql.Select(teacherColumns...).From(teachersTable).OrderBy("name ASC")
	if search != "" {
		q = q.Where(ilike(search, "name", "email", "staff_number"))
	}
	var rows []teacherRow
	if err := selectAll(ctx, r.getExec(exec), q, &rows); err != nil {
		return nil, errors.Wrap(err, "querying teachers")
	}
	teachers := make([]school.Teacher, 0, len(rows))
	for _, row := range rows {
		teachers = append(teachers, r.fromTeacherRow(row))
	}
	return teachers, nil
}

func (r schoolRepository) UpdateTeacher(ctx context.Context, t school.Teacher, exec ...core.DBExecutor) (school.Teacher, error) {
	q := psql.Update(teachersTable).
		SetMap(map[string]interface{}{
			"user_id":      null.StringFromPtr(t.UserID),
			"name":         t.Name,
			"email":        t.Email,
			"phone":        t.Phone,
			"staff_number": t.StaffNumber,
			"updated_at":   t.UpdatedAt.UTC(),
		}).
		Where(sq.Eq{"id": t.ID})
	if err := execAffecting(ctx, r.getExec(exec), q); err != nil {
		return school.Teacher{}, trapErr(err, school.ErrTeacherNotFound, "updating teacher")
	}
	return t, nil
}

func (r schoolRepository) DeleteTeacher(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validID(id) {
		return school.ErrTeacherNotFound
	}
	return trapErr(execAffecting(ctx, r.getExec(exec), psql.Delete(teachersTable).Where(sq.Eq{"id": id})),
		school.ErrTeacherNotFound, "deleting teacher")
}
