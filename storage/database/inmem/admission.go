package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/admission"
)

type admissionRepository struct {
	db *DB
}

var _ admission.Repository = (*admissionRepository)(nil)

func NewAdmissionRepository(db *DB) *admissionRepository {
	return &admissionRepository{db: db}
}

func (repo *admissionRepository) CreateApplication(_ context.Context, app admission.Application, _ ...core.DBExecutor) (admission.Application, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	app.ID = uuid.New().String()
	repo.db.t.applications[app.ID] = app
	return app, nil
}

func (repo *admissionRepository) GetApplication(_ context.Context, id string, _ ...core.DBExecutor) (admission.Application, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if app, ok := repo.db.t.applications[id]; ok {
		return app, nil
	}
	return admission.Application{}, admission.ErrNotFound
}

// LockApplication needs no row lock, the transactor runs one transaction at a time.
func (repo *admissionRepository) LockApplication(ctx context.Context, id string, _ core.DBExecutor) (admission.Application, error) {
	return repo.GetApplication(ctx, id)
}

func (repo *admissionRepository) QueryApplications(_ context.Context, filter *admission.QueryFilter, _ ...core.DBExecutor) ([]admission.Application, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	keep := func(app admission.Application) bool {
		if filter == nil {
			return true
		}
		return (filter.Search == "" || containsAny(filter.Search, app.FirstName, app.LastName, app.ParentName, app.ParentEmail)) &&
			(filter.Status == "" || app.Status == filter.Status) &&
			(filter.GradeID == "" || app.GradeID == filter.GradeID)
	}
	less := func(a, b admission.Application) bool { return a.CreatedAt.After(b.CreatedAt) }
	return values(repo.db.t.applications, keep, less), nil
}

func (repo *admissionRepository) UpdateApplication(_ context.Context, app admission.Application, _ ...core.DBExecutor) (admission.Application, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.t.applications[app.ID]; !ok {
		return admission.Application{}, admission.ErrNotFound
	}
	repo.db.t.applications[app.ID] = app
	return app, nil
}
