package sqlxrepos

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/performance"
)

const recordsTable = "performance_records"

var recordColumns = []string{
	"id", "learner_id", "learning_area_id", "grade_id", "academic_year", "term", "exam_type",
	"marks", "remarks", "recorded_by", "created_at", "updated_at",
}

type recordRow struct {
	ID             string      `db:"id"`
	LearnerID      string      `db:"learner_id"`
	LearningAreaID string      `db:"learning_area_id"`
	GradeID        string      `db:"grade_id"`
	AcademicYear   int         `db:"academic_year"`
	Term           int         `db:"term"`
	ExamType       string      `db:"exam_type"`
	Marks          float64     `db:"marks"`
	Remarks        string      `db:"remarks"`
	RecordedBy     null.String `db:"recorded_by"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

type performanceRepository struct {
	repo
}

var _ performance.Repository = (*performanceRepository)(nil)

func NewPerformanceRepository(exec core.DBExecutor) *performanceRepository {
	return &performanceRepository{repo{exec: exec}}
}

func (r performanceRepository) fromRow(row recordRow) performance.Record {
	return performance.Record{
		ID:             row.ID,
		LearnerID:      row.LearnerID,
		LearningAreaID: row.LearningAreaID,
		GradeID:        row.GradeID,
		AcademicYear:   row.AcademicYear,
		Term:           row.Term,
		ExamType:       row.ExamType,
		Marks:          row.Marks,
		Remarks:        row.Remarks,
		RecordedBy:     row.RecordedBy.Ptr(),
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
}

// UpsertRecord relies on the unique key of performance_records: a conflicting insert updates the existing row
// and keeps its ID & creation time.
func (r performanceRepository) UpsertRecord(ctx context.Context, rec performance.Record, exec ...core.DBExecutor) (performance.Record, error) {
	query, args, err := psql.Insert(recordsTable).
		Columns(recordColumns...).
		Values(
			uuid.New().String(), rec.LearnerID, rec.LearningAreaID, rec.GradeID, rec.AcademicYear, rec.Term, rec.ExamType,
			rec.Marks, rec.Remarks, null.StringFromPtr(rec.RecordedBy), rec.CreatedAt.UTC(), rec.UpdatedAt.UTC(),
		).
		Suffix(`ON CONFLICT (learner_id, learning_area_id, academic_year, term, exam_type, grade_id) DO UPDATE
			SET marks = EXCLUDED.marks, remarks = EXCLUDED.remarks, recorded_by = EXCLUDED.recorded_by, updated_at = EXCLUDED.updated_at
			RETURNING ` + strings.Join(recordColumns, ", ")).
		ToSql()
	if err != nil {
		return performance.Record{}, errors.Wrap(err, "building query")
	}

	rows, err := r.getExec(exec).QueryContext(ctx, query, args...)
	if err != nil {
		return performance.Record{}, trapErr(err, performance.ErrNotFound, "upserting record")
	}
	var saved []recordRow
	if err = sqlx.StructScan(rows, &saved); err != nil {
		return performance.Record{}, errors.Wrap(err, "scanning upserted record")
	}
	if len(saved) == 0 {
		return performance.Record{}, errors.New("upserting record: no row returned")
	}
	return r.fromRow(saved[0]), nil
}

func (r performanceRepository) GetRecord(ctx context.Context, id string, exec ...core.DBExecutor) (performance.Record, error) {
	if !validID(id) {
		return performance.Record{}, performance.ErrNotFound
	}
	row, err := selectOne[recordRow](ctx, r.getExec(exec), psql.Select(recordColumns...).From(recordsTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return performance.Record{}, trapErr(err, performance.ErrNotFound, "finding record")
	}
	return r.fromRow(row), nil
}

func (r performanceRepository) QueryRecords(ctx context.Context, filter *performance.QueryFilter, exec ...core.DBExecutor) ([]performance.Record, error) {
	q := psql.Select(recordColumns...).From(recordsTable).
		OrderBy("academic_year ASC", "term ASC", "exam_type ASC", "learner_id ASC", "learning_area_id ASC")
	if filter != nil {
		eq := sq.Eq{}
		if filter.LearnerID != "" {
			eq["learner_id"] = filter.LearnerID
		}
		if filter.LearnerIDs != nil {
			q = q.Where(sq.Eq{"learner_id": filter.LearnerIDs})
		}
		if filter.LearningAreaID != "" {
			eq["learning_area_id"] = filter.LearningAreaID
		}
		if filter.GradeID != "" {
			eq["grade_id"] = filter.GradeID
		}
		if filter.AcademicYear != 0 {
			eq["academic_year"] = filter.AcademicYear
		}
		if filter.Term != 0 {
			eq["term"] = filter.Term
		}
		if filter.ExamType != "" {
			eq["exam_type"] = filter.ExamType
		}
		if len(eq) > 0 {
			q = q.Where(eq)
		}
	}

	var rows []recordRow
	if err := selectAll(ctx, r.getExec(exec), q, &rows); err != nil {
		return nil, errors.Wrap(err, "querying records")
	}
	recs := make([]performance.Record, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, r.fromRow(row))
	}
	return recs, nil
}

func (r performanceRepository) DeleteRecord(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validID(id) {
		return performance.ErrNotFound
	}
	return trapErr(execAffecting(ctx, r.getExec(exec), psql.Delete(recordsTable).Where(sq.Eq{"id": id})),
		performance.ErrNotFound, "deleting record")
}
