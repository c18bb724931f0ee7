package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/school"
)

var errInUse = core.NewConflictError("the record is linked to other records")

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(db *DB) *schoolRepository {
	return &schoolRepository{db: db}
}

// Grades

func (repo *schoolRepository) CreateGrade(_ context.Context, g school.Grade, _ ...core.DBExecutor) (school.Grade, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.t.grades {
		if other.Name == g.Name || other.Level == g.Level {
			return school.Grade{}, errConflict
		}
	}
	g.ID = uuid.New().String()
	repo.db.t.grades[g.ID] = g
	return g, nil
}

func (repo *schoolRepository) GetGrade(_ context.Context, id string, _ ...core.DBExecutor) (school.Grade, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if g, ok := repo.db.t.grades[id]; ok {
		return g, nil
	}
	return school.Grade{}, school.ErrGradeNotFound
}

func (repo *schoolRepository) QueryGrades(_ context.Context, _ ...core.DBExecutor) ([]school.Grade, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	return values(repo.db.t.grades, nil, func(a, b school.Grade) bool { return a.Level < b.Level }), nil
}

func (repo *schoolRepository) UpdateGrade(_ context.Context, g school.Grade, _ ...core.DBExecutor) (school.Grade, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.t.grades[g.ID]; !ok {
		return school.Grade{}, school.ErrGradeNotFound
	}
	repo.db.t.grades[g.ID] = g
	return g, nil
}

func (repo *schoolRepository) DeleteGrade(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.t.grades[id]; !ok {
		return school.ErrGradeNotFound
	}
	for _, l := range repo.db.t.learners {
		if l.GradeID == id {
			return errInUse
		}
	}
	for _, s := range repo.db.t.streams {
		if s.GradeID == id {
			return errInUse
		}
	}
	delete(repo.db.t.grades, id)
	return nil
}

// Streams

func (repo *schoolRepository) CreateStream(_ context.Context, s school.Stream, _ ...core.DBExecutor) (school.Stream, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.t.grades[s.GradeID]; !ok {
		return school.Stream{}, errInUse
	}
	s.ID = uuid.New().String()
	repo.db.t.streams[s.ID] = s
	return s, nil
}

func (repo *schoolRepository) GetStream(_ context.Context, id string, _ ...core.DBExecutor) (school.Stream, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.t.streams[id]; ok {
		return s, nil
	}
	return school.Stream{}, school.ErrStreamNotFound
}

func (repo *schoolRepository) QueryStreams(_ context.Context, gradeID string, _ ...core.DBExecutor) ([]school.Stream, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	keep := func(s school.Stream) bool { return gradeID == "" || s.GradeID == gradeID }
	return values(repo.db.t.streams, keep, func(a, b school.Stream) bool { return a.Name < b.Name }), nil
}

func (repo *schoolRepository) UpdateStream(_ context.Context, s school.Stream, _ ...core.DBExecutor) (school.Stream, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.t.streams[s.ID]; !ok {
		return school.Stream{}, school.ErrStreamNotFound
	}
	repo.db.t.streams[s.ID] = s
	return s, nil
}

func (repo *schoolRepository) DeleteStream(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.t.streams[id]; !ok {
		return school.ErrStreamNotFound
	}
	// learners.stream_id is ON DELETE SET NULL
	for lid, l := range repo.db.t.learners {
		if strPtrEq(l.StreamID, id) {
			l.StreamID = nil
			repo.db.t.learners[lid] = l
		}
	}
	delete(repo.db.t.streams, id)
	return nil
}

// Learning Areas

func (repo *schoolRepository) CreateLearningArea(_ context.Context, la school.LearningArea, _ ...core.DBExecutor) (school.LearningArea, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.t.areas {
		if other.Code == la.Code {
			return school.LearningArea{}, errConflict
		}
	}
	la.ID = uuid.New().String()
	repo.db.t.areas[la.ID] = la
	return la, nil
}

func (repo *schoolRepository) GetLearningArea(_ context.Context, id string, _ ...core.DBExecutor) (school.LearningArea, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if la, ok := repo.db.t.areas[id]; ok {
		return la, nil
	}
	return school.LearningArea{}, school.ErrLearningAreaNotFound
}

func (repo *schoolRepository) QueryLearningAreas(_ context.Context, isActive *bool, _ ...core.DBExecutor) ([]school.LearningArea, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	keep := func(la school.LearningArea) bool { return isActive == nil || la.IsActive == *isActive }
	return values(repo.db.t.areas, keep, func(a, b school.LearningArea) bool { return a.Name < b.Name }), nil
}

func (repo *schoolRepository) UpdateLearningArea(_ context.Context, la school.LearningArea, _ ...core.DBExecutor) (school.LearningArea, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.t.areas[la.ID]; !ok {
		return school.LearningArea{}, school.ErrLearningAreaNotFound
	}
	repo.db.t.areas[la.ID] = la
	return la, nil
}

func (repo *schoolRepository) DeleteLearningArea(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.t.areas[id]; !ok {
		return school.ErrLearningAreaNotFound
	}
	for _, rec := range repo.db.t.records {
		if rec.LearningAreaID == id {
			return errInUse
		}
	}
	delete(repo.db.t.areas, id)
	return nil
}

// Teachers

func (repo *schoolRepository) CreateTeacher(_ context.Context, t school.Teacher, _ ...core.DBExecutor) (school.Teacher, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.t.teachers {
		if other.StaffNumber == t.StaffNumber {
			return school.Teacher{}, errConflict
		}
	}
	t.ID = uuid.New().String()
	repo.db.t.teachers[t.ID] = t
	return t, nil
}

func (repo *schoolRepository) GetTeacher(_ context.Context, id string, _ ...core.DBExecutor) (school.Teacher, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.t.teachers[id]; ok {
		return t, nil
	}
	return school.Teacher{}, school.ErrTeacherNotFound
}

func (repo *schoolRepository) QueryTeachers(_ context.Context, search string, _ ...core.DBExecutor) ([]school.Teacher, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	keep := func(t school.Teacher) bool { return search == "" || containsAny(search, t.Name, t.Email, t.StaffNumber) }
	return values(repo.db.t.teachers, keep, func(a, b school.Teacher) bool { return a.Name < b.Name }), nil
}

func (repo *schoolRepository) UpdateTeacher(_ context.Context, t school.Teacher, _ ...core.DBExecutor) (school.Teacher, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.t.teachers[t.ID]; !ok {
		return school.Teacher{}, school.ErrTeacherNotFound
	}
	repo.db.t.teachers[t.ID] = t
	return t, nil
}

func (repo *schoolRepository) DeleteTeacher(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.t.teachers[id]; !ok {
		return school.ErrTeacherNotFound
	}
	for sid, s := range repo.db.t.streams {
		if strPtrEq(s.ClassTeacherID, id) {
			s.ClassTeacherID = nil
			repo.db.t.streams[sid] = s
		}
	}
	delete(repo.db.t.teachers, id)
	return nil
}
