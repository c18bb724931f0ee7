package inmemdb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/learner"
)

type learnerRepository struct {
	db *DB
}

var _ learner.Repository = (*learnerRepository)(nil)

func NewLearnerRepository(db *DB) *learnerRepository {
	return &learnerRepository{db: db}
}

func (repo *learnerRepository) CreateLearner(_ context.Context, l learner.Learner, _ ...core.DBExecutor) (learner.Learner, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.t.learners {
		if other.AdmissionNumber == l.AdmissionNumber {
			return learner.Learner{}, errConflict
		}
	}
	l.ID = uuid.New().String()
	repo.db.t.learners[l.ID] = l
	return l, nil
}

func (repo *learnerRepository) GetLearner(_ context.Context, id string, _ ...core.DBExecutor) (learner.Learner, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if l, ok := repo.db.t.learners[id]; ok {
		return l, nil
	}
	return learner.Learner{}, learner.ErrNotFound
}

func (repo *learnerRepository) GetLearnerByAdmissionNumber(_ context.Context, admNo string, _ ...core.DBExecutor) (learner.Learner, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, l := range repo.db.t.learners {
		if l.AdmissionNumber == admNo {
			return l, nil
		}
	}
	return learner.Learner{}, learner.ErrNotFound
}

func learnerMatches(l learner.Learner, filter *learner.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" && !containsAny(filter.Search, l.FirstName, l.LastName, l.AdmissionNumber, l.FullName()) {
		return false
	}
	if filter.GradeID != "" && l.GradeID != filter.GradeID {
		return false
	}
	if filter.StreamID != "" && !strPtrEq(l.StreamID, filter.StreamID) {
		return false
	}
	if filter.Status != "" && l.Status != filter.Status {
		return false
	}
	if filter.ParentID != "" && !strPtrEq(l.ParentID, filter.ParentID) {
		return false
	}
	if filter.IDs != nil {
		found := false
		for _, id := range filter.IDs {
			if id == l.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (repo *learnerRepository) QueryLearners(_ context.Context, filter *learner.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]learner.Learner, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	less := func(a, b learner.Learner) bool {
		for _, ord := range ordering {
			var cmp int
			switch ord.Field {
			case "admission_number":
				cmp = strings.Compare(a.AdmissionNumber, b.AdmissionNumber)
			case "first_name":
				cmp = strings.Compare(a.FirstName, b.FirstName)
			case "last_name":
				cmp = strings.Compare(a.LastName, b.LastName)
			case "admitted_at":
				cmp = compareTime(a.AdmittedAt.Time, b.AdmittedAt.Time)
			case "created_at":
				cmp = compareTime(a.CreatedAt, b.CreatedAt)
			}
			if cmp != 0 {
				return (cmp < 0) == ord.Ascending
			}
		}
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		return a.LastName < b.LastName
	}
	keep := func(l learner.Learner) bool { return learnerMatches(l, filter) }
	return values(repo.db.t.learners, keep, less), nil
}

func (repo *learnerRepository) UpdateLearner(_ context.Context, l learner.Learner, _ ...core.DBExecutor) (learner.Learner, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.t.learners[l.ID]; !ok {
		return learner.Learner{}, learner.ErrNotFound
	}
	for _, other := range repo.db.t.learners {
		if other.ID != l.ID && other.AdmissionNumber == l.AdmissionNumber {
			return learner.Learner{}, errConflict
		}
	}
	repo.db.t.learners[l.ID] = l
	return l, nil
}

func (repo *learnerRepository) DeleteLearner(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.t.learners[id]; !ok {
		return learner.ErrNotFound
	}
	for _, inv := range repo.db.t.invoices {
		if inv.LearnerID == id {
			return errInUse
		}
	}
	for rid, rec := range repo.db.t.records {
		if rec.LearnerID == id {
			delete(repo.db.t.records, rid)
		}
	}
	for aid, app := range repo.db.t.applications {
		if strPtrEq(app.LearnerID, id) {
			app.LearnerID = nil
			repo.db.t.applications[aid] = app
		}
	}
	delete(repo.db.t.learners, id)
	return nil
}

// Parents

func (repo *learnerRepository) CreateParent(_ context.Context, p learner.Parent, _ ...core.DBExecutor) (learner.Parent, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	p.ID = uuid.New().String()
	repo.db.t.parents[p.ID] = p
	return p, nil
}

func (repo *learnerRepository) findParent(match func(learner.Parent) bool) (learner.Parent, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, p := range repo.db.t.parents {
		if match(p) {
			return p, nil
		}
	}
	return learner.Parent{}, learner.ErrParentNotFound
}

func (repo *learnerRepository) GetParent(_ context.Context, id string, _ ...core.DBExecutor) (learner.Parent, error) {
	return repo.findParent(func(p learner.Parent) bool { return p.ID == id })
}

func (repo *learnerRepository) GetParentByEmail(_ context.Context, email string, _ ...core.DBExecutor) (learner.Parent, error) {
	if email == "" {
		return learner.Parent{}, learner.ErrParentNotFound
	}
	return repo.findParent(func(p learner.Parent) bool { return p.Email == email })
}

func (repo *learnerRepository) GetParentByUserID(_ context.Context, userID string, _ ...core.DBExecutor) (learner.Parent, error) {
	return repo.findParent(func(p learner.Parent) bool { return strPtrEq(p.UserID, userID) })
}

func (repo *learnerRepository) QueryParents(_ context.Context, search string, _ ...core.DBExecutor) ([]learner.Parent, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	keep := func(p learner.Parent) bool { return search == "" || containsAny(search, p.Name, p.Email, p.Phone) }
	return values(repo.db.t.parents, keep, func(a, b learner.Parent) bool { return a.Name < b.Name }), nil
}

func (repo *learnerRepository) UpdateParent(_ context.Context, p learner.Parent, _ ...core.DBExecutor) (learner.Parent, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.t.parents[p.ID]; !ok {
		return learner.Parent{}, learner.ErrParentNotFound
	}
	repo.db.t.parents[p.ID] = p
	return p, nil
}

func (repo *learnerRepository) DeleteParent(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.t.parents[id]; !ok {
		return learner.ErrParentNotFound
	}
	for lid, l := range repo.db.t.learners {
		if strPtrEq(l.ParentID, id) {
			l.ParentID = nil
			repo.db.t.learners[lid] = l
		}
	}
	delete(repo.db.t.parents, id)
	return nil
}
