package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/performance"
)

type performanceRepository struct {
	db *DB
}

var _ performance.Repository = (*performanceRepository)(nil)

func NewPerformanceRepository(db *DB) *performanceRepository {
	return &performanceRepository{db: db}
}

func (repo *performanceRepository) UpsertRecord(_ context.Context, rec performance.Record, _ ...core.DBExecutor) (performance.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := rec.Key()
	for id, existing := range repo.db.t.records {
		if existing.Key() == key {
			existing.Marks = rec.Marks
			existing.Remarks = rec.Remarks
			existing.RecordedBy = rec.RecordedBy
			existing.UpdatedAt = rec.UpdatedAt
			repo.db.t.records[id] = existing
			return existing, nil
		}
	}
	rec.ID = uuid.New().String()
	repo.db.t.records[rec.ID] = rec
	return rec, nil
}

func (repo *performanceRepository) GetRecord(_ context.Context, id string, _ ...core.DBExecutor) (performance.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rec, ok := repo.db.t.records[id]; ok {
		return rec, nil
	}
	return performance.Record{}, performance.ErrNotFound
}

func recordMatches(r performance.Record, filter *performance.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.LearnerID != "" && r.LearnerID != filter.LearnerID {
		return false
	}
	if filter.LearnerIDs != nil {
		found := false
		for _, id := range filter.LearnerIDs {
			if id == r.LearnerID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.LearningAreaID != "" && r.LearningAreaID != filter.LearningAreaID {
		return false
	}
	if filter.GradeID != "" && r.GradeID != filter.GradeID {
		return false
	}
	if filter.AcademicYear != 0 && r.AcademicYear != filter.AcademicYear {
		return false
	}
	if filter.Term != 0 && r.Term != filter.Term {
		return false
	}
	if filter.ExamType != "" && r.ExamType != filter.ExamType {
		return false
	}
	return true
}

func (repo *performanceRepository) QueryRecords(_ context.Context, filter *performance.QueryFilter, _ ...core.DBExecutor) ([]performance.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	keep := func(r performance.Record) bool { return recordMatches(r, filter) }
	less := func(a, b performance.Record) bool {
		if a.AcademicYear != b.AcademicYear {
			return a.AcademicYear < b.AcademicYear
		}
		if a.Term != b.Term {
			return a.Term < b.Term
		}
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return values(repo.db.t.records, keep, less), nil
}

func (repo *performanceRepository) DeleteRecord(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.t.records[id]; !ok {
		return performance.ErrNotFound
	}
	delete(repo.db.t.records, id)
	return nil
}
