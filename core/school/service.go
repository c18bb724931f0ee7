package school

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core"
)

var (
	// errors
	ErrGradeNotFound        = core.NewNotFoundError("grade not found")
	ErrStreamNotFound       = core.NewNotFoundError("stream not found")
	ErrLearningAreaNotFound = core.NewNotFoundError("learning area not found")
	ErrTeacherNotFound      = core.NewNotFoundError("teacher not found")
	ErrGradeHasStreams      = core.NewConflictError("grade still has streams")
)

type (
	Repository interface {
		CreateGrade(ctx context.Context, g Grade, exec ...core.DBExecutor) (Grade, error)
		GetGrade(ctx context.Context, id string, exec ...core.DBExecutor) (Grade, error)
		// QueryGrades returns all grades ordered by level.
		QueryGrades(ctx context.Context, exec ...core.DBExecutor) ([]Grade, error)
		UpdateGrade(ctx context.Context, g Grade, exec ...core.DBExecutor) (Grade, error)
		DeleteGrade(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateStream(ctx context.Context, s Stream, exec ...core.DBExecutor) (Stream, error)
		GetStream(ctx context.Context, id string, exec ...core.DBExecutor) (Stream, error)
		// QueryStreams returns the streams of gradeID, or all streams when gradeID is empty, ordered by name.
		QueryStreams(ctx context.Context, gradeID string, exec ...core.DBExecutor) ([]Stream, error)
		UpdateStream(ctx context.Context, s Stream, exec ...core.DBExecutor) (Stream, error)
		DeleteStream(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateLearningArea(ctx context.Context, la LearningArea, exec ...core.DBExecutor) (LearningArea, error)
		GetLearningArea(ctx context.Context, id string, exec ...core.DBExecutor) (LearningArea, error)
		// QueryLearningAreas returns learning areas ordered by name, optionally filtered on IsActive.
		QueryLearningAreas(ctx context.Context, isActive *bool, exec ...core.DBExecutor) ([]LearningArea, error)
		UpdateLearningArea(ctx context.Context, la LearningArea, exec ...core.DBExecutor) (LearningArea, error)
		DeleteLearningArea(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateTeacher(ctx context.Context, t Teacher, exec ...core.DBExecutor) (Teacher, error)
		GetTeacher(ctx context.Context, id string, exec ...core.DBExecutor) (Teacher, error)
		// QueryTeachers does a case-insensitive match of search on name, email or staff number.
		QueryTeachers(ctx context.Context, search string, exec ...core.DBExecutor) ([]Teacher, error)
		UpdateTeacher(ctx context.Context, t Teacher, exec ...core.DBExecutor) (Teacher, error)
		DeleteTeacher(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service struct {
		repo      Repository
		listeners []core.RecordsListener
	}
)

// NewService returns the school service. listeners are notified when grades, streams or learning areas change.
func NewService(repo Repository, listeners ...core.RecordsListener) *Service {
	return &Service{repo: repo, listeners: listeners}
}

func (svc *Service) changed(ctx context.Context, err error) error {
	if err == nil {
		core.NotifyRecordsChanged(ctx, svc.listeners)
	}
	return err
}

// Grades

func (svc *Service) checkGradeUniqueness(ctx context.Context, in GradeInput, excludeID string) error {
	grades, err := svc.repo.QueryGrades(ctx)
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	for _, g := range grades {
		if g.ID == excludeID {
			continue
		}
		if strings.EqualFold(g.Name, in.Name) {
			return core.NewFieldError("name", "a grade with this name already exists")
		}
		if g.Level == *in.Level {
			return core.NewFieldError("level", "a grade with this level already exists")
		}
	}
	return nil
}

func (svc *Service) CreateGrade(ctx context.Context, in GradeInput) (Grade, error) {
	if err := svc.checkGradeUniqueness(ctx, in, ""); err != nil {
		return Grade{}, err
	}
	now := time.Now().UTC()
	return svc.repo.CreateGrade(ctx, Grade{Name: in.Name, Level: *in.Level, CreatedAt: now, UpdatedAt: now})
}

func (svc *Service) GetGrade(ctx context.Context, id string) (Grade, error) {
	return svc.repo.GetGrade(ctx, id)
}

func (svc *Service) QueryGrades(ctx context.Context) ([]Grade, error) {
	return svc.repo.QueryGrades(ctx)
}

func (svc *Service) UpdateGrade(ctx context.Context, g Grade, in GradeInput) (Grade, error) {
	if err := svc.checkGradeUniqueness(ctx, in, g.ID); err != nil {
		return Grade{}, err
	}
	g.Name = in.Name
	g.Level = *in.Level
	g.UpdatedAt = time.Now().UTC()
	g, err := svc.repo.UpdateGrade(ctx, g)
	return g, svc.changed(ctx, err)
}

func (svc *Service) DeleteGrade(ctx context.Context, id string) error {
	streams, err := svc.repo.QueryStreams(ctx, id)
	if err != nil {
		return errors.Wrap(err, "querying streams")
	}
	if len(streams) > 0 {
		return ErrGradeHasStreams
	}
	return svc.changed(ctx, svc.repo.DeleteGrade(ctx, id))
}

// NextGrade returns the grade right above g, or ok=false when g is the highest grade.
func NextGrade(grades []Grade, g Grade) (next Grade, ok bool) {
	for _, cand := range grades {
		if cand.Level > g.Level && (!ok || cand.Level < next.Level) {
			next, ok = cand, true
		}
	}
	return next, ok
}

// Streams

func (svc *Service) checkStream(ctx context.Context, in StreamInput, excludeID string) error {
	if _, err := svc.repo.GetGrade(ctx, in.GradeID); err != nil {
		if core.IsNotFound(err) {
			return core.NewFieldError("grade_id", ErrGradeNotFound.Error())
		}
		return errors.Wrap(err, "finding grade")
	}
	if in.ClassTeacherID != nil {
		if _, err := svc.repo.GetTeacher(ctx, *in.ClassTeacherID); err != nil {
			if core.IsNotFound(err) {
				return core.NewFieldError("class_teacher_id", ErrTeacherNotFound.Error())
			}
			return errors.Wrap(err, "finding teacher")
		}
	}

	streams, err := svc.repo.QueryStreams(ctx, in.GradeID)
	if err != nil {
		return errors.Wrap(err, "querying streams")
	}
	for _, s := range streams {
		if s.ID != excludeID && strings.EqualFold(s.Name, in.Name) {
			return core.NewFieldError("name", "a stream with this name already exists in this grade")
		}
	}
	return nil
}

func (svc *Service) CreateStream(ctx context.Context, in StreamInput) (Stream, error) {
	if err := svc.checkStream(ctx, in, ""); err != nil {
		return Stream{}, err
	}
	now := time.Now().UTC()
	return svc.repo.CreateStream(ctx, Stream{
		GradeID:        in.GradeID,
		Name:           in.Name,
		ClassTeacherID: in.ClassTeacherID,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}

func (svc *Service) GetStream(ctx context.Context, id string) (Stream, error) {
	return svc.repo.GetStream(ctx, id)
}

func (svc *Service) QueryStreams(ctx context.Context, gradeID string) ([]Stream, error) {
	return svc.repo.QueryStreams(ctx, gradeID)
}

func (svc *Service) UpdateStream(ctx context.Context, s Stream, in StreamInput) (Stream, error) {
	if err := svc.checkStream(ctx, in, s.ID); err != nil {
		return Stream{}, err
	}
	s.GradeID = in.GradeID
	s.Name = in.Name
	s.ClassTeacherID = in.ClassTeacherID
	s.UpdatedAt = time.Now().UTC()
	s, err := svc.repo.UpdateStream(ctx, s)
	return s, svc.changed(ctx, err)
}

func (svc *Service) DeleteStream(ctx context.Context, id string) error {
	return svc.changed(ctx, svc.repo.DeleteStream(ctx, id))
}

// Learning Areas

func (svc *Service) checkLearningAreaUniqueness(ctx context.Context, in LearningAreaInput, excludeID string) error {
	areas, err := svc.repo.QueryLearningAreas(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "querying learning areas")
	}
	for _, la := range areas {
		if la.ID != excludeID && la.Code == in.Code {
			return core.NewFieldError("code", "a learning area with this code already exists")
		}
	}
	return nil
}

func (svc *Service) CreateLearningArea(ctx context.Context, in LearningAreaInput) (LearningArea, error) {
	if err := svc.checkLearningAreaUniqueness(ctx, in, ""); err != nil {
		return LearningArea{}, err
	}
	now := time.Now().UTC()
	la, err := svc.repo.CreateLearningArea(ctx, LearningArea{
		Name:      in.Name,
		Code:      in.Code,
		IsActive:  in.IsActive == nil || *in.IsActive,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return la, svc.changed(ctx, err)
}

func (svc *Service) GetLearningArea(ctx context.Context, id string) (LearningArea, error) {
	return svc.repo.GetLearningArea(ctx, id)
}

func (svc *Service) QueryLearningAreas(ctx context.Context, isActive *bool) ([]LearningArea, error) {
	return svc.repo.QueryLearningAreas(ctx, isActive)
}

func (svc *Service) UpdateLearningArea(ctx context.Context, la LearningArea, in LearningAreaInput) (LearningArea, error) {
	if err := svc.checkLearningAreaUniqueness(ctx, in, la.ID); err != nil {
		return LearningArea{}, err
	}
	la.Name = in.Name
	la.Code = in.Code
	if in.IsActive != nil {
		la.IsActive = *in.IsActive
	}
	la.UpdatedAt = time.Now().UTC()
	la, err := svc.repo.UpdateLearningArea(ctx, la)
	return la, svc.changed(ctx, err)
}

func (svc *Service) DeleteLearningArea(ctx context.Context, id string) error {
	return svc.changed(ctx, svc.repo.DeleteLearningArea(ctx, id))
}

// Teachers

func (svc *Service) checkTeacherUniqueness(ctx context.Context, in TeacherInput, excludeID string) error {
	teachers, err := svc.repo.QueryTeachers(ctx, "")
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	for _, t := range teachers {
		if t.ID == excludeID {
			continue
		}
		if t.StaffNumber == in.StaffNumber {
			return core.NewFieldError("staff_number", "a teacher with this staff number already exists")
		}
		if in.UserID != nil && t.UserID != nil && *t.UserID == *in.UserID {
			return core.NewFieldError("user_id", "this user is already linked to another teacher")
		}
	}
	return nil
}

func (svc *Service) CreateTeacher(ctx context.Context, in TeacherInput) (Teacher, error) {
	if err := svc.checkTeacherUniqueness(ctx, in, ""); err != nil {
		return Teacher{}, err
	}
	now := time.Now().UTC()
	return svc.repo.CreateTeacher(ctx, Teacher{
		UserID:      in.UserID,
		Name:        in.Name,
		Email:       in.Email,
		Phone:       in.Phone,
		StaffNumber: in.StaffNumber,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *Service) GetTeacher(ctx context.Context, id string) (Teacher, error) {
	return svc.repo.GetTeacher(ctx, id)
}

func (svc *Service) QueryTeachers(ctx context.Context, search string) ([]Teacher, error) {
	return svc.repo.QueryTeachers(ctx, core.CleanString(search))
}

func (svc *Service) UpdateTeacher(ctx context.Context, t Teacher, in TeacherInput) (Teacher, error) {
	if err := svc.checkTeacherUniqueness(ctx, in, t.ID); err != nil {
		return Teacher{}, err
	}
	t.UserID = in.UserID
	t.Name = in.Name
	t.Email = in.Email
	t.Phone = in.Phone
	t.StaffNumber = in.StaffNumber
	t.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateTeacher(ctx, t)
}

func (svc *Service) DeleteTeacher(ctx context.Context, id string) error {
	return svc.repo.DeleteTeacher(ctx, id)
}

// Stats counts the school's teachers, grades, streams & active learning areas.
func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	teachers, err := svc.repo.QueryTeachers(ctx, "")
	if err != nil {
		return stats, errors.Wrap(err, "querying teachers")
	}
	grades, err := svc.repo.QueryGrades(ctx)
	if err != nil {
		return stats, errors.Wrap(err, "querying grades")
	}
	streams, err := svc.repo.QueryStreams(ctx, "")
	if err != nil {
		return stats, errors.Wrap(err, "querying streams")
	}
	active := true
	areas, err := svc.repo.QueryLearningAreas(ctx, &active)
	if err != nil {
		return stats, errors.Wrap(err, "querying learning areas")
	}

	stats.Teachers = len(teachers)
	stats.Grades = len(grades)
	stats.Streams = len(streams)
	stats.LearningAreas = len(areas)
	return stats, nil
}
