package learner

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/school"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("learner not found")
	ErrParentNotFound = core.NewNotFoundError("parent not found")
)

type (
	Repository interface {
		CreateLearner(ctx context.Context, l Learner, exec ...core.DBExecutor) (Learner, error)
		GetLearner(ctx context.Context, id string, exec ...core.DBExecutor) (Learner, error)
		GetLearnerByAdmissionNumber(ctx context.Context, admNo string, exec ...core.DBExecutor) (Learner, error)
		// QueryLearners applies AND operation on available QueryFilter fields.
		QueryLearners(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Learner, error)
		UpdateLearner(ctx context.Context, l Learner, exec ...core.DBExecutor) (Learner, error)
		DeleteLearner(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateParent(ctx context.Context, p Parent, exec ...core.DBExecutor) (Parent, error)
		GetParent(ctx context.Context, id string, exec ...core.DBExecutor) (Parent, error)
		GetParentByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (Parent, error)
		GetParentByUserID(ctx context.Context, userID string, exec ...core.DBExecutor) (Parent, error)
		// QueryParents does a case-insensitive match of search on name, email or phone.
		QueryParents(ctx context.Context, search string, exec ...core.DBExecutor) ([]Parent, error)
		UpdateParent(ctx context.Context, p Parent, exec ...core.DBExecutor) (Parent, error)
		DeleteParent(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service struct {
		tx         core.Transactor
		repo       Repository
		schoolRepo school.Repository
		seq        core.Sequencer
		listeners  []core.RecordsListener
	}
)

func NewService(
	tx core.Transactor,
	repo Repository,
	schoolRepo school.Repository,
	seq core.Sequencer,
	listeners ...core.RecordsListener,
) *Service {
	return &Service{tx: tx, repo: repo, schoolRepo: schoolRepo, seq: seq, listeners: listeners}
}

// Changed notifies listeners that learners changed. Callers creating learners inside their own
// transaction call it once the transaction is committed.
func (svc *Service) Changed(ctx context.Context) {
	core.NotifyRecordsChanged(ctx, svc.listeners)
}

// NewAdmissionNumber formats the n-th admission of year.
func NewAdmissionNumber(year, n int) string {
	return fmt.Sprintf("ADM/%d/%04d", year, n)
}

func (svc *Service) nextAdmissionNumber(ctx context.Context, year int, exec ...core.DBExecutor) (string, error) {
	for {
		n, err := svc.seq.Next(ctx, fmt.Sprintf("admission:%d", year), exec...)
		if err != nil {
			return "", errors.Wrap(err, "getting next admission sequence")
		}
		admNo := NewAdmissionNumber(year, n)
		// skip numbers already taken by manually entered admission numbers
		if _, err = svc.repo.GetLearnerByAdmissionNumber(ctx, admNo, exec...); core.IsNotFound(err) {
			return admNo, nil
		} else if err != nil {
			return "", errors.Wrap(err, "checking admission number")
		}
	}
}

// checkRefs checks that referenced grade, stream & parent exist and are consistent.
func (svc *Service) checkRefs(ctx context.Context, in LearnerInput, exec ...core.DBExecutor) error {
	if _, err := svc.schoolRepo.GetGrade(ctx, in.GradeID, exec...); err != nil {
		if core.IsNotFound(err) {
			return core.NewFieldError("grade_id", school.ErrGradeNotFound.Error())
		}
		return errors.Wrap(err, "finding grade")
	}
	if in.StreamID != nil {
		stream, err := svc.schoolRepo.GetStream(ctx, *in.StreamID, exec...)
		if err != nil {
			if core.IsNotFound(err) {
				return core.NewFieldError("stream_id", school.ErrStreamNotFound.Error())
			}
			return errors.Wrap(err, "finding stream")
		}
		if stream.GradeID != in.GradeID {
			return core.NewFieldError("stream_id", "stream does not belong to the selected grade")
		}
	}
	if in.ParentID != nil {
		if _, err := svc.repo.GetParent(ctx, *in.ParentID, exec...); err != nil {
			if core.IsNotFound(err) {
				return core.NewFieldError("parent_id", ErrParentNotFound.Error())
			}
			return errors.Wrap(err, "finding parent")
		}
	}
	return nil
}

func (svc *Service) checkAdmissionNumber(ctx context.Context, admNo, excludeID string, exec ...core.DBExecutor) error {
	l, err := svc.repo.GetLearnerByAdmissionNumber(ctx, admNo, exec...)
	if err == nil && l.ID != excludeID {
		return core.NewFieldError("admission_number", "a learner with this admission number already exists")
	}
	if err != nil && !core.IsNotFound(err) {
		return errors.Wrap(err, "checking admission number")
	}
	return nil
}

// Create adds a learner. exec allows callers to run it inside their own transaction.
func (svc *Service) Create(ctx context.Context, in LearnerInput, exec ...core.DBExecutor) (Learner, error) {
	if err := svc.checkRefs(ctx, in, exec...); err != nil {
		return Learner{}, err
	}

	now := time.Now().UTC()
	admittedAt := in.AdmittedAt
	if admittedAt.IsZero() {
		admittedAt = core.NewDate(now.Date())
	}

	admNo := in.AdmissionNumber
	if admNo == "" {
		var err error
		if admNo, err = svc.nextAdmissionNumber(ctx, admittedAt.Year(), exec...); err != nil {
			return Learner{}, err
		}
	} else if err := svc.checkAdmissionNumber(ctx, admNo, "", exec...); err != nil {
		return Learner{}, err
	}

	status := in.Status
	if status == "" {
		status = StatusActive
	}

	l, err := svc.repo.CreateLearner(ctx, Learner{
		AdmissionNumber: admNo,
		FirstName:       in.FirstName,
		LastName:        in.LastName,
		Gender:          in.Gender,
		DateOfBirth:     in.DateOfBirth,
		GradeID:         in.GradeID,
		StreamID:        in.StreamID,
		ParentID:        in.ParentID,
		Status:          status,
		AdmittedAt:      admittedAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, exec...)
	if err == nil && len(exec) == 0 {
		svc.Changed(ctx)
	}
	return l, err
}

func (svc *Service) Get(ctx context.Context, id string) (Learner, error) {
	return svc.repo.GetLearner(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Learner, error) {
	ordering = core.CleanOrderings(ordering, "admission_number", "first_name", "last_name", "admitted_at", "created_at")
	return svc.repo.QueryLearners(ctx, filter, ordering)
}

func (svc *Service) Update(ctx context.Context, l Learner, in LearnerInput) (Learner, error) {
	if err := svc.checkRefs(ctx, in); err != nil {
		return Learner{}, err
	}
	if in.AdmissionNumber != "" && in.AdmissionNumber != l.AdmissionNumber {
		if err := svc.checkAdmissionNumber(ctx, in.AdmissionNumber, l.ID); err != nil {
			return Learner{}, err
		}
		l.AdmissionNumber = in.AdmissionNumber
	}

	l.FirstName = in.FirstName
	l.LastName = in.LastName
	l.Gender = in.Gender
	l.DateOfBirth = in.DateOfBirth
	l.GradeID = in.GradeID
	l.StreamID = in.StreamID
	l.ParentID = in.ParentID
	if in.Status != "" {
		l.Status = in.Status
	}
	if !in.AdmittedAt.IsZero() {
		l.AdmittedAt = in.AdmittedAt
	}
	l.UpdatedAt = time.Now().UTC()
	l, err := svc.repo.UpdateLearner(ctx, l)
	if err == nil {
		svc.Changed(ctx)
	}
	return l, err
}

// Delete removes a learner along with their performance records.
func (svc *Service) Delete(ctx context.Context, id string) error {
	if err := svc.repo.DeleteLearner(ctx, id); err != nil {
		return err
	}
	svc.Changed(ctx)
	return nil
}

// Promote moves every active learner to the grade with the next level and clears their stream.
// Learners in the highest grade become alumni. Runs in a single transaction.
func (svc *Service) Promote(ctx context.Context) (PromotionResult, error) {
	var res PromotionResult

	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		res = PromotionResult{}

		grades, err := svc.schoolRepo.QueryGrades(ctx, exec)
		if err != nil {
			return errors.Wrap(err, "querying grades")
		}
		gradesByID := make(map[string]school.Grade, len(grades))
		for _, g := range grades {
			gradesByID[g.ID] = g
		}

		learners, err := svc.repo.QueryLearners(ctx, &QueryFilter{Status: StatusActive}, nil, exec)
		if err != nil {
			return errors.Wrap(err, "querying active learners")
		}

		now := time.Now().UTC()
		for _, l := range learners {
			curr, ok := gradesByID[l.GradeID]
			if !ok {
				continue
			}
			if next, ok := school.NextGrade(grades, curr); ok {
				l.GradeID = next.ID
				res.Promoted++
			} else {
				l.Status = StatusAlumni
				res.Graduated++
			}
			l.StreamID = nil
			l.UpdatedAt = now
			if _, err = svc.repo.UpdateLearner(ctx, l, exec); err != nil {
				return errors.Wrap(err, "updating learner")
			}
		}
		return nil
	})
	if err == nil {
		svc.Changed(ctx)
	}
	return res, err
}

func (svc *Service) Counts(ctx context.Context) (Counts, error) {
	var counts Counts
	learners, err := svc.repo.QueryLearners(ctx, nil, nil)
	if err != nil {
		return counts, errors.Wrap(err, "querying learners")
	}
	for _, l := range learners {
		switch l.Status {
		case StatusActive:
			counts.Active++
		case StatusAlumni:
			counts.Alumni++
		}
	}
	return counts, nil
}

// ChildrenOfUser returns the learners whose parent record is linked to the given user account.
func (svc *Service) ChildrenOfUser(ctx context.Context, userID string) ([]Learner, error) {
	parent, err := svc.repo.GetParentByUserID(ctx, userID)
	if err != nil {
		if core.IsNotFound(err) {
			return []Learner{}, nil
		}
		return nil, errors.Wrap(err, "finding parent by user ID")
	}
	return svc.repo.QueryLearners(ctx, &QueryFilter{ParentID: parent.ID}, nil)
}

// IsChildOfUser reports whether learnerID is one of the children of the given user account.
func (svc *Service) IsChildOfUser(ctx context.Context, learnerID, userID string) (bool, error) {
	children, err := svc.ChildrenOfUser(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, child := range children {
		if child.ID == learnerID {
			return true, nil
		}
	}
	return false, nil
}

// Parents

func (svc *Service) checkParentUniqueness(ctx context.Context, in ParentInput, excludeID string, exec ...core.DBExecutor) error {
	if in.Email != "" {
		p, err := svc.repo.GetParentByEmail(ctx, in.Email, exec...)
		if err == nil && p.ID != excludeID {
			return core.NewFieldError("email", "a parent with this email already exists")
		}
		if err != nil && !core.IsNotFound(err) {
			return errors.Wrap(err, "checking parent email")
		}
	}
	if in.UserID != nil {
		p, err := svc.repo.GetParentByUserID(ctx, *in.UserID, exec...)
		if err == nil && p.ID != excludeID {
			return core.NewFieldError("user_id", "this user is already linked to another parent")
		}
		if err != nil && !core.IsNotFound(err) {
			return errors.Wrap(err, "checking parent user")
		}
	}
	return nil
}

func (svc *Service) CreateParent(ctx context.Context, in ParentInput, exec ...core.DBExecutor) (Parent, error) {
	if err := svc.checkParentUniqueness(ctx, in, "", exec...); err != nil {
		return Parent{}, err
	}
	now := time.Now().UTC()
	return svc.repo.CreateParent(ctx, Parent{
		UserID:       in.UserID,
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		Relationship: in.Relationship,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, exec...)
}

// FindOrCreateParent returns the parent with in.Email, creating it when there is none.
func (svc *Service) FindOrCreateParent(ctx context.Context, in ParentInput, exec ...core.DBExecutor) (Parent, error) {
	if in.Email != "" {
		p, err := svc.repo.GetParentByEmail(ctx, in.Email, exec...)
		if err == nil {
			return p, nil
		}
		if !core.IsNotFound(err) {
			return Parent{}, errors.Wrap(err, "finding parent by email")
		}
	}
	return svc.CreateParent(ctx, in, exec...)
}

func (svc *Service) GetParent(ctx context.Context, id string) (Parent, error) {
	return svc.repo.GetParent(ctx, id)
}

func (svc *Service) QueryParents(ctx context.Context, search string) ([]Parent, error) {
	return svc.repo.QueryParents(ctx, core.CleanString(search))
}

func (svc *Service) UpdateParent(ctx context.Context, p Parent, in ParentInput) (Parent, error) {
	if err := svc.checkParentUniqueness(ctx, in, p.ID); err != nil {
		return Parent{}, err
	}
	p.UserID = in.UserID
	p.Name = in.Name
	p.Email = in.Email
	p.Phone = in.Phone
	p.Relationship = in.Relationship
	p.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateParent(ctx, p)
}

func (svc *Service) DeleteParent(ctx context.Context, id string) error {
	return svc.repo.DeleteParent(ctx, id)
}
