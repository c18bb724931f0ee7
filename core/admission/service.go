package admission

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/learner"
	"github.com/shuleapp/shule/core/school"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("application not found")
	ErrAlreadyReviewed = core.NewConflictError("the application has already been reviewed")
)

type (
	Repository interface {
		CreateApplication(ctx context.Context, app Application, exec ...core.DBExecutor) (Application, error)
		GetApplication(ctx context.Context, id string, exec ...core.DBExecutor) (Application, error)
		// LockApplication reads an application and holds its row until exec's transaction ends.
		LockApplication(ctx context.Context, id string, exec core.DBExecutor) (Application, error)
		// QueryApplications returns the most recent applications first.
		QueryApplications(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Application, error)
		UpdateApplication(ctx context.Context, app Application, exec ...core.DBExecutor) (Application, error)
	}

	Service struct {
		tx         core.Transactor
		repo       Repository
		schoolRepo school.Repository
		learnerSvc *learner.Service
		events     core.EventPublisher
	}
)

func NewService(
	tx core.Transactor,
	repo Repository,
	schoolRepo school.Repository,
	learnerSvc *learner.Service,
	events core.EventPublisher,
) *Service {
	return &Service{tx: tx, repo: repo, schoolRepo: schoolRepo, learnerSvc: learnerSvc, events: events}
}

// Submit records a new application, usually coming from the public homepage.
func (svc *Service) Submit(ctx context.Context, in ApplicationInput) (Application, error) {
	if _, err := svc.schoolRepo.GetGrade(ctx, in.GradeID); err != nil {
		if core.IsNotFound(err) {
			return Application{}, core.NewFieldError("grade_id", school.ErrGradeNotFound.Error())
		}
		return Application{}, errors.Wrap(err, "finding grade")
	}

	now := time.Now().UTC()
	app, err := svc.repo.CreateApplication(ctx, Application{
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Gender:         in.Gender,
		DateOfBirth:    in.DateOfBirth,
		GradeID:        in.GradeID,
		PreviousSchool: in.PreviousSchool,
		ParentName:     in.ParentName,
		ParentEmail:    in.ParentEmail,
		ParentPhone:    in.ParentPhone,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return Application{}, err
	}

	svc.events.Publish(core.NewEvent(core.EventApplicationSubmitted, map[string]interface{}{
		"application_id": app.ID,
		"name":           app.FirstName + " " + app.LastName,
		"grade_id":       app.GradeID,
	}))
	return app, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Application, error) {
	return svc.repo.GetApplication(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Application, error) {
	return svc.repo.QueryApplications(ctx, filter)
}

func (svc *Service) Counts(ctx context.Context) (Counts, error) {
	apps, err := svc.repo.QueryApplications(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying applications")
	}
	counts := make(Counts, len(Statuses))
	for _, s := range Statuses {
		counts[s] = 0
	}
	for _, app := range apps {
		counts[app.Status]++
	}
	return counts, nil
}

// Approve admits the applicant: the parent is found (by email) or created, then the learner is created.
// Nothing is written if any step fails.
func (svc *Service) Approve(ctx context.Context, id, reviewerID string, review Review) (Application, learner.Learner, error) {
	var (
		app Application
		lrn learner.Learner
	)
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if app, err = svc.repo.LockApplication(ctx, id, exec); err != nil {
			return err
		}
		if !app.IsPending() {
			return ErrAlreadyReviewed
		}

		parent, err := svc.learnerSvc.FindOrCreateParent(ctx, learner.ParentInput{
			Name:  app.ParentName,
			Email: app.ParentEmail,
			Phone: app.ParentPhone,
		}, exec)
		if err != nil {
			return errors.Wrap(err, "finding or creating parent")
		}

		if lrn, err = svc.learnerSvc.Create(ctx, learner.LearnerInput{
			FirstName:   app.FirstName,
			LastName:    app.LastName,
			Gender:      app.Gender,
			DateOfBirth: app.DateOfBirth,
			GradeID:     app.GradeID,
			StreamID:    review.StreamID,
			ParentID:    &parent.ID,
			Status:      learner.StatusActive,
		}, exec); err != nil {
			return err
		}

		now := time.Now().UTC()
		app.Status = StatusApproved
		app.ReviewNotes = review.Notes
		app.ReviewedBy = core.StringPtr(reviewerID)
		app.ReviewedAt = now
		app.LearnerID = &lrn.ID
		app.UpdatedAt = now
		app, err = svc.repo.UpdateApplication(ctx, app, exec)
		return err
	})
	if err != nil {
		return Application{}, learner.Learner{}, err
	}
	svc.learnerSvc.Changed(ctx)
	return app, lrn, nil
}

// Reject closes a pending application. review.Notes must explain why.
func (svc *Service) Reject(ctx context.Context, id, reviewerID string, review Review) (Application, error) {
	var app Application
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if app, err = svc.repo.LockApplication(ctx, id, exec); err != nil {
			return err
		}
		if !app.IsPending() {
			return ErrAlreadyReviewed
		}
		now := time.Now().UTC()
		app.Status = StatusRejected
		app.ReviewNotes = review.Notes
		app.ReviewedBy = core.StringPtr(reviewerID)
		app.ReviewedAt = now
		app.UpdatedAt = now
		app, err = svc.repo.UpdateApplication(ctx, app, exec)
		return err
	})
	if err != nil {
		return Application{}, err
	}
	return app, nil
}
