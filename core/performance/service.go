package performance

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/learner"
	"github.com/shuleapp/shule/core/school"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("performance record not found")
)

type (
	Repository interface {
		// UpsertRecord inserts rec, or updates marks, remarks & recorded_by of the record with the same Key.
		UpsertRecord(ctx context.Context, rec Record, exec ...core.DBExecutor) (Record, error)
		GetRecord(ctx context.Context, id string, exec ...core.DBExecutor) (Record, error)
		QueryRecords(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Record, error)
		DeleteRecord(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service struct {
		tx          core.Transactor
		repo        Repository
		learnerRepo learner.Repository
		schoolRepo  school.Repository
		events      core.EventPublisher
		listeners   []core.RecordsListener
	}
)

func NewService(
	tx core.Transactor,
	repo Repository,
	learnerRepo learner.Repository,
	schoolRepo school.Repository,
	events core.EventPublisher,
	listeners ...core.RecordsListener,
) *Service {
	return &Service{
		tx:          tx,
		repo:        repo,
		learnerRepo: learnerRepo,
		schoolRepo:  schoolRepo,
		events:      events,
		listeners:   listeners,
	}
}

func (svc *Service) notify(ctx context.Context, payload interface{}) {
	core.NotifyRecordsChanged(ctx, svc.listeners)
	svc.events.Publish(core.NewEvent(core.EventScoresUpdated, payload))
}

// Upsert saves a validated batch of scores in a single transaction.
// Re-posting an entry with the same Key updates the existing record.
// Either every entry is saved or none is.
func (svc *Service) Upsert(ctx context.Context, recordedBy string, batch UpsertBatch) ([]Record, error) {
	var saved []Record

	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		saved = make([]Record, 0, len(batch.Records))
		learners := make(map[string]learner.Learner)
		areas := make(map[string]bool)
		grades := make(map[string]bool)
		now := time.Now().UTC()

		for i, in := range batch.Records {
			field := func(name string) string { return fmt.Sprintf("records[%d].%s", i, name) }

			l, ok := learners[in.LearnerID]
			if !ok {
				var err error
				if l, err = svc.learnerRepo.GetLearner(ctx, in.LearnerID, exec); err != nil {
					if core.IsNotFound(err) {
						return core.NewFieldError(field("learner_id"), learner.ErrNotFound.Error())
					}
					return errors.Wrap(err, "finding learner")
				}
				learners[in.LearnerID] = l
			}

			if !areas[in.LearningAreaID] {
				if _, err := svc.schoolRepo.GetLearningArea(ctx, in.LearningAreaID, exec); err != nil {
					if core.IsNotFound(err) {
						return core.NewFieldError(field("learning_area_id"), school.ErrLearningAreaNotFound.Error())
					}
					return errors.Wrap(err, "finding learning area")
				}
				areas[in.LearningAreaID] = true
			}

			gradeID := in.GradeID
			if gradeID == "" {
				gradeID = l.GradeID
			}
			if !grades[gradeID] {
				if _, err := svc.schoolRepo.GetGrade(ctx, gradeID, exec); err != nil {
					if core.IsNotFound(err) {
						return core.NewFieldError(field("grade_id"), school.ErrGradeNotFound.Error())
					}
					return errors.Wrap(err, "finding grade")
				}
				grades[gradeID] = true
			}

			rec := Record{
				LearnerID:      in.LearnerID,
				LearningAreaID: in.LearningAreaID,
				GradeID:        gradeID,
				AcademicYear:   in.AcademicYear,
				Term:           in.Term,
				ExamType:       in.ExamType,
				Marks:          core.Round2(*in.Marks),
				Remarks:        in.Remarks,
				RecordedBy:     core.StringPtr(recordedBy),
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			rec, err := svc.repo.UpsertRecord(ctx, rec, exec)
			if err != nil {
				return errors.Wrap(err, "upserting record")
			}
			saved = append(saved, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	svc.notify(ctx, map[string]interface{}{"count": len(saved)})
	return saved, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Record, error) {
	return svc.repo.GetRecord(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Record, error) {
	return svc.repo.QueryRecords(ctx, filter)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if err := svc.repo.DeleteRecord(ctx, id); err != nil {
		return err
	}
	svc.notify(ctx, map[string]interface{}{"deleted": id})
	return nil
}

// Mean returns the arithmetic mean of the marks of recs, or 0 when recs is empty.
func Mean(recs []Record) float64 {
	if len(recs) == 0 {
		return 0
	}
	var sum float64
	for _, r := range recs {
		sum += r.Marks
	}
	return sum / float64(len(recs))
}
