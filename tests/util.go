// Package testutil holds fixtures shared by the tests of every package.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/shuleapp/shule/assets"
	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/admission"
	"github.com/shuleapp/shule/core/finance"
	"github.com/shuleapp/shule/core/learner"
	"github.com/shuleapp/shule/core/performance"
	"github.com/shuleapp/shule/core/school"
	"github.com/shuleapp/shule/core/user"
	"github.com/shuleapp/shule/services/cache"
	"github.com/shuleapp/shule/storage/database/inmem"
)

// Store bundles the in-memory repositories.
type Store struct {
	DB          *inmemdb.DB
	Tx          core.Transactor
	Seq         core.Sequencer
	Users       user.Repository
	School      school.Repository
	Learners    learner.Repository
	Performance performance.Repository
	Finance     finance.Repository
	Admissions  admission.Repository
}

func NewStore() *Store {
	db := inmemdb.NewDB()
	return &Store{
		DB:          db,
		Tx:          inmemdb.NewTransactor(db),
		Seq:         inmemdb.NewSequencer(db),
		Users:       inmemdb.NewUserRepository(db),
		School:      inmemdb.NewSchoolRepository(db),
		Learners:    inmemdb.NewLearnerRepository(db),
		Performance: inmemdb.NewPerformanceRepository(db),
		Finance:     inmemdb.NewFinanceRepository(db),
		Admissions:  inmemdb.NewAdmissionRepository(db),
	}
}

// NewValidator returns a validator with every custom validation registered.
func NewValidator() *validator.Validate {
	validate, _ := NewValidatorWithTranslator()
	return validate
}

// NewValidatorWithTranslator also returns the translator holding the validation messages.
func NewValidatorWithTranslator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	learner.InitValidators(validate, translator)
	performance.InitValidators(validate, translator)
	finance.InitValidators(validate, translator)
	return validate, translator
}

func NewPrinter(t *testing.T, conf *core.Config) *core.Printer {
	p, err := core.NewPrinter(assets.FS, conf)
	if err != nil {
		t.Fatalf("NewPrinter(): %v", err)
	}
	return p
}

// NewRedisCache returns a cache backed by an in-process redis server.
func NewRedisCache(t *testing.T) (*cachesvc.RedisCache, *miniredis.Miniredis) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cachesvc.NewRedisCache(client), srv
}

type NopLogger struct{}

var _ core.Logger = NopLogger{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}

// EventRecorder keeps every published event.
type EventRecorder struct {
	mu     sync.Mutex
	events []core.Event
}

var _ core.EventPublisher = (*EventRecorder)(nil)

func (r *EventRecorder) Publish(evt core.Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

func (r *EventRecorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		names = append(names, evt.Name)
	}
	return names
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if roles == nil {
		roles = []string{}
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser(): %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

func CreateGrade(t *testing.T, repo school.Repository, name string, level int) school.Grade {
	now := time.Now().UTC()
	g, err := repo.CreateGrade(context.Background(), school.Grade{Name: name, Level: level, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("CreateGrade(): %v", err)
	}
	return g
}

func CreateStream(t *testing.T, repo school.Repository, gradeID, name string) school.Stream {
	now := time.Now().UTC()
	s, err := repo.CreateStream(context.Background(), school.Stream{GradeID: gradeID, Name: name, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("CreateStream(): %v", err)
	}
	return s
}

func CreateLearningArea(t *testing.T, repo school.Repository, name, code string, isActive bool) school.LearningArea {
	now := time.Now().UTC()
	la, err := repo.CreateLearningArea(context.Background(), school.LearningArea{
		Name:      name,
		Code:      code,
		IsActive:  isActive,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateLearningArea(): %v", err)
	}
	return la
}

func CreateParent(t *testing.T, repo learner.Repository, name, email string, userID *string) learner.Parent {
	now := time.Now().UTC()
	p, err := repo.CreateParent(context.Background(), learner.Parent{
		UserID:    userID,
		Name:      name,
		Email:     email,
		Phone:     "0700000000",
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateParent(): %v", err)
	}
	return p
}

// CreateLearner adds an active learner. streamID & parentID may be empty.
func CreateLearner(t *testing.T, repo learner.Repository, admNo, first, last, gradeID, streamID, parentID string) learner.Learner {
	now := time.Now().UTC()
	l, err := repo.CreateLearner(context.Background(), learner.Learner{
		AdmissionNumber: admNo,
		FirstName:       first,
		LastName:        last,
		Gender:          learner.GenderFemale,
		GradeID:         gradeID,
		StreamID:        core.StringPtr(streamID),
		ParentID:        core.StringPtr(parentID),
		Status:          learner.StatusActive,
		AdmittedAt:      core.NewDate(now.Date()),
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		t.Fatalf("CreateLearner(): %v", err)
	}
	return l
}

// AddRecord saves a mark without going through the performance service.
func AddRecord(t *testing.T, repo performance.Repository, learnerID, areaID, gradeID string, year, term int, examType string, marks float64) performance.Record {
	now := time.Now().UTC()
	rec, err := repo.UpsertRecord(context.Background(), performance.Record{
		LearnerID:      learnerID,
		LearningAreaID: areaID,
		GradeID:        gradeID,
		AcademicYear:   year,
		Term:           term,
		ExamType:       examType,
		Marks:          marks,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		t.Fatalf("AddRecord(): %v", err)
	}
	return rec
}
