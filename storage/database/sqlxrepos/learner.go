package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/learner"
)

const (
	learnersTable = "learners"
	parentsTable  = "parents"
)

var (
	learnerColumns = []string{
		"id", "admission_number", "first_name", "last_name", "gender", "date_of_birth",
		"grade_id", "stream_id", "parent_id", "status", "admitted_at", "created_at", "updated_at",
	}
	parentColumns = []string{"id", "user_id", "name", "email", "phone", "relationship", "created_at", "updated_at"}
)

type learnerRow struct {
	ID              string      `db:"id"`
	AdmissionNumber string      `db:"admission_number"`
	FirstName       string      `db:"first_name"`
	LastName        string      `db:"last_name"`
	Gender          string      `db:"gender"`
	DateOfBirth     core.Date   `db:"date_of_birth"`
	GradeID         string      `db:"grade_id"`
	StreamID        null.String `db:"stream_id"`
	ParentID        null.String `db:"parent_id"`
	Status          string      `db:"status"`
	AdmittedAt      core.Date   `db:"admitted_at"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

type parentRow struct {
	ID           string      `db:"id"`
	UserID       null.String `db:"user_id"`
	Name         string      `db:"name"`
	Email        string      `db:"email"`
	Phone        string      `db:"phone"`
	Relationship string      `db:"relationship"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

type learnerRepository struct {
	repo
}

var _ learner.Repository = (*learnerRepository)(nil)

func NewLearnerRepository(exec core.DBExecutor) *learnerRepository {
	return &learnerRepository{repo{exec: exec}}
}

func (r learnerRepository) fromRow(row learnerRow) learner.Learner {
	return learner.Learner{
		ID:              row.ID,
		AdmissionNumber: row.AdmissionNumber,
		FirstName:       row.FirstName,
		LastName:        row.LastName,
		Gender:          row.Gender,
		DateOfBirth:     row.DateOfBirth,
		GradeID:         row.GradeID,
		StreamID:        row.StreamID.Ptr(),
		ParentID:        row.ParentID.Ptr(),
		Status:          row.Status,
		AdmittedAt:      row.AdmittedAt,
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
}

func (r learnerRepository) setMap(l learner.Learner) map[string]interface{} {
	return map[string]interface{}{
		"admission_number": l.AdmissionNumber,
		"first_name":       l.FirstName,
		"last_name":        l.LastName,
		"gender":           l.Gender,
		"date_of_birth":    l.DateOfBirth,
		"grade_id":         l.GradeID,
		"stream_id":        null.StringFromPtr(l.StreamID),
		"parent_id":        null.StringFromPtr(l.ParentID),
		"status":           l.Status,
		"admitted_at":      l.AdmittedAt,
		"updated_at":       l.UpdatedAt.UTC(),
	}
}

func (r learnerRepository) CreateLearner(ctx context.Context, l learner.Learner, exec ...core.DBExecutor) (learner.Learner, error) {
	l.ID = uuid.New().String()
	vals := r.setMap(l)
	vals["id"] = l.ID
	vals["created_at"] = l.CreatedAt.UTC()
	if _, err := execQuery(ctx, r.getExec(exec), psql.Insert(learnersTable).SetMap(vals)); err != nil {
		return learner.Learner{}, trapErr(err, learner.ErrNotFound, "inserting learner")
	}
	return l, nil
}

func (r learnerRepository) getLearner(ctx context.Context, where sq.Sqlizer, exec []core.DBExecutor) (learner.Learner, error) {
	row, err := selectOne[learnerRow](ctx, r.getExec(exec), psql.Select(learnerColumns...).From(learnersTable).Where(where))
	if err != nil {
		return learner.Learner{}, trapErr(err, learner.ErrNotFound, "finding learner")
	}
	return r.fromRow(row), nil
}

func (r learnerRepository) GetLearner(ctx context.Context, id string, exec ...core.DBExecutor) (learner.Learner, error) {
	if !validID(id) {
		return learner.Learner{}, learner.ErrNotFound
	}
	return r.getLearner(ctx, sq.Eq{"id": id}, exec)
}

func (r learnerRepository) GetLearnerByAdmissionNumber(ctx context.Context, admNo string, exec ...core.DBExecutor) (learner.Learner, error) {
	return r.getLearner(ctx, sq.Eq{"admission_number": admNo}, exec)
}

func (r learnerRepository) QueryLearners(ctx context.Context, filter *learner.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]learner.Learner, error) {
	q := psql.Select(learnerColumns...).From(learnersTable)
	if filter != nil {
		if filter.Search != "" {
			q = q.Where(ilike(filter.Search, "first_name", "last_name", "admission_number", "first_name || ' ' || last_name"))
		}
		if filter.GradeID != "" {
			q = q.Where(sq.Eq{"grade_id": filter.GradeID})
		}
		if filter.StreamID != "" {
			q = q.Where(sq.Eq{"stream_id": filter.StreamID})
		}
		if filter.Status != "" {
			q = q.Where(sq.Eq{"status": filter.Status})
		}
		if filter.ParentID != "" {
			q = q.Where(sq.Eq{"parent_id": filter.ParentID})
		}
		if filter.IDs != nil {
			q = q.Where(sq.Eq{"id": filter.IDs})
		}
	}
	q = orderBy(q, ordering, "first_name ASC", "last_name ASC")

	var rows []learnerRow
	if err := selectAll(ctx, r.getExec(exec), q, &rows); err != nil {
		return nil, errors.Wrap(err, "querying learners")
	}
	learners := make([]learner.Learner, 0, len(rows))
	for _, row := range rows {
		learners = append(learners, r.fromRow(row))
	}
	return learners, nil
}

func (r learnerRepository) UpdateLearner(ctx context.Context, l learner.Learner, exec ...core.DBExecutor) (learner.Learner, error) {
	q := psql.Update(learnersTable).SetMap(r.setMap(l)).Where(sq.Eq{"id": l.ID})
	if err := execAffecting(ctx, r.getExec(exec), q); err != nil {
		return learner.Learner{}, trapErr(err, learner.ErrNotFound, "updating learner")
	}
	return l, nil
}

func (r learnerRepository) DeleteLearner(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validID(id) {
		return learner.ErrNotFound
	}
	return trapErr(execAffecting(ctx, r.getExec(exec), psql.Delete(learnersTable).Where(sq.Eq{"id": id})),
		learner.ErrNotFound, "deleting learner")
}

// Parents

func (r learnerRepository) fromParentRow(row parentRow) learner.Parent {
	return learner.Parent{
		ID:           row.ID,
		UserID:       row.UserID.Ptr(),
		Name:         row.Name,
		Email:        row.Email,
		Phone:        row.Phone,
		Relationship: row.Relationship,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

func (r learnerRepository) CreateParent(ctx context.Context, p learner.Parent, exec ...core.DBExecutor) (learner.Parent, error) {
	p.ID = uuid.New().String()
	q := psql.Insert(parentsTable).Columns(parentColumns...).
		Values(p.ID, null.StringFromPtr(p.UserID), p.Name, p.Email, p.Phone, p.Relationship, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	if _, err := execQuery(ctx, r.getExec(exec), q); err != nil {
		return learner.Parent{}, trapErr(err, learner.ErrParentNotFound, "inserting parent")
	}
	return p, nil
}

func (r learnerRepository) getParent(ctx context.Context, where sq.Sqlizer, exec []core.DBExecutor) (learner.Parent, error) {
	row, err := selectOne[parentRow](ctx, r.getExec(exec), psql.Select(parentColumns...).From(parentsTable).Where(where))
	if err != nil {
		return learner.Parent{}, trapErr(err, learner.ErrParentNotFound, "finding parent")
	}
	return r.fromParentRow(row), nil
}

func (r learnerRepository) GetParent(ctx context.Context, id string, exec ...core.DBExecutor) (learner.Parent, error) {
	if !validID(id) {
		return learner.Parent{}, learner.ErrParentNotFound
	}
	return r.getParent(ctx, sq.Eq{"id": id}, exec)
}

func (r learnerRepository) GetParentByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (learner.Parent, error) {
	if email == "" {
		return learner.Parent{}, learner.ErrParentNotFound
	}
	return r.getParent(ctx, sq.Eq{"email": email}, exec)
}

func (r learnerRepository) GetParentByUserID(ctx context.Context, userID string, exec ...core.DBExecutor) (learner.Parent, error) {
	if !validID(userID) {
		return learner.Parent{}, learner.ErrParentNotFound
	}
	return r.getParent(ctx, sq.Eq{"user_id": userID}, exec)
}

func (r learnerRepository) QueryParents(ctx context.Context, search string, exec ...core.DBExecutor) ([]learner.Parent, error) {
	q := psql.Select(parentColumns...).From(parentsTable).OrderBy("name ASC")
	if search != "" {
		q = q.Where(ilike(search, "name", "email", "phone"))
	}
	var rows []parentRow
	if err := selectAll(ctx, r.getExec(exec), q, &rows); err != nil {
		return nil, errors.Wrap(err, "querying parents")
	}
	parents := make([]learner.Parent, 0, len(rows))
	for _, row := range rows {
		parents = append(parents, r.fromParentRow(row))
	}
	return parents, nil
}

func (r learnerRepository) UpdateParent(ctx context.Context, p learner.Parent, exec ...core.DBExecutor) (learner.Parent, error) {
	q := psql.Update(parentsTable).
		SetMap(map[string]interface{}{
			"user_id":      null.StringFromPtr(p.UserID),
			"name":         p.Name,
			"email":        p.Email,
			"phone":        p.Phone,
			"relationship": p.Relationship,
			"updated_at":   p.UpdatedAt.UTC(),
		}).
		Where(sq.Eq{"id": p.ID})
	if err := execAffecting(ctx, r.getExec(exec), q); err != nil {
		return learner.Parent{}, trapErr(err, learner.ErrParentNotFound, "updating parent")
	}
	return p, nil
}

func (r learnerRepository) DeleteParent(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validID(id) {
		return learner.ErrParentNotFound
	}
	return trapErr(execAffecting(ctx, r.getExec(exec), psql.Delete(parentsTable).Where(sq.Eq{"id": id})),
		learner.ErrParentNotFound, "deleting parent")
}
