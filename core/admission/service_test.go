package admission_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/admission"
	"github.com/shuleapp/shule/core/learner"
	"github.com/shuleapp/shule/core/school"
	"github.com/shuleapp/shule/tests"
)

type fixture struct {
	store   *testutil.Store
	events  *testutil.EventRecorder
	changes *changeCounter
	svc     *admission.Service
	grade   school.Grade
	stream  school.Stream
}

type changeCounter struct{ n int }

func (c *changeCounter) RecordsChanged(context.Context) { c.n++ }

func newFixture(t *testing.T) *fixture {
	s := testutil.NewStore()
	f := &fixture{store: s, events: &testutil.EventRecorder{}, changes: &changeCounter{}}
	learnerSvc := learner.NewService(s.Tx, s.Learners, s.School, s.Seq, f.changes)
	f.svc = admission.NewService(s.Tx, s.Admissions, s.School, learnerSvc, f.events)
	f.grade = testutil.CreateGrade(t, s.School, "Grade 1", 1)
	f.stream = testutil.CreateStream(t, s.School, f.grade.ID, "Blue")
	return f
}

func (f *fixture) input() admission.ApplicationInput {
	return admission.ApplicationInput{
		FirstName:   "Zawadi",
		LastName:    "Njeri",
		Gender:      learner.GenderFemale,
		DateOfBirth: core.NewDate(2018, time.March, 4),
		GradeID:     f.grade.ID,
		ParentName:  "Grace Njeri",
		ParentEmail: "grace@test.ke",
		ParentPhone: "+254700000001",
	}
}

func (f *fixture) submit(t *testing.T) admission.Application {
	app, err := f.svc.Submit(context.Background(), f.input())
	require.NoError(t, err)
	return app
}

func TestApplicationInput_Validate(t *testing.T) {
	validate := testutil.NewValidator()
	f := newFixture(t)

	in := f.input()
	in.FirstName = "  Zawadi "
	in.ParentEmail = " Grace@Test.KE"
	require.NoError(t, in.Validate(validate))
	assert.Equal(t, "Zawadi", in.FirstName)
	assert.Equal(t, "grace@test.ke", in.ParentEmail)

	in = f.input()
	in.DateOfBirth = core.Date{}
	var verr *core.ValidationError
	require.ErrorAs(t, in.Validate(validate), &verr)
	assert.Equal(t, "date_of_birth", verr.Fields[0].Field)

	in = f.input()
	in.DateOfBirth = core.NewDate(time.Now().AddDate(1, 0, 0).Date())
	require.ErrorAs(t, in.Validate(validate), &verr)
	assert.Equal(t, "date_of_birth", verr.Fields[0].Field)

	in = f.input()
	in.GradeID = ""
	assert.Error(t, in.Validate(validate))
}

func TestReview_Validate(t *testing.T) {
	validate := testutil.NewValidator()

	r := admission.Review{Notes: "  "}
	require.NoError(t, r.Validate(validate, false))

	var verr *core.ValidationError
	require.ErrorAs(t, r.Validate(validate, true), &verr)
	assert.Equal(t, "notes", verr.Fields[0].Field)
}

func TestService_Submit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	app := f.submit(t)
	assert.NotEmpty(t, app.ID)
	assert.Equal(t, admission.StatusPending, app.Status)
	assert.Nil(t, app.LearnerID)
	assert.Equal(t, []string{core.EventApplicationSubmitted}, f.events.Names())

	in := f.input()
	in.GradeID = f.stream.ID
	_, err := f.svc.Submit(ctx, in)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "grade_id", verr.Fields[0].Field)

	counts, err := f.svc.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, admission.Counts{admission.StatusPending: 1, admission.StatusApproved: 0, admission.StatusRejected: 0}, counts)
}

func TestService_Approve(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	app := f.submit(t)

	app, lrn, err := f.svc.Approve(ctx, app.ID, "registrar-id", admission.Review{Notes: "welcome", StreamID: &f.stream.ID})
	require.NoError(t, err)

	assert.Equal(t, admission.StatusApproved, app.Status)
	assert.Equal(t, "welcome", app.ReviewNotes)
	require.NotNil(t, app.ReviewedBy)
	assert.Equal(t, "registrar-id", *app.ReviewedBy)
	assert.False(t, app.ReviewedAt.IsZero())
	require.NotNil(t, app.LearnerID)
	assert.Equal(t, lrn.ID, *app.LearnerID)

	assert.Equal(t, "Zawadi", lrn.FirstName)
	assert.Equal(t, f.grade.ID, lrn.GradeID)
	require.NotNil(t, lrn.StreamID)
	assert.Equal(t, f.stream.ID, *lrn.StreamID)
	assert.Equal(t, learner.StatusActive, lrn.Status)
	assert.Equal(t, learner.NewAdmissionNumber(time.Now().UTC().Year(), 1), lrn.AdmissionNumber)
	// listeners hear about the new learner once, after commit
	assert.Equal(t, 1, f.changes.n)

	require.NotNil(t, lrn.ParentID)
	parent, err := f.store.Learners.GetParent(ctx, *lrn.ParentID)
	require.NoError(t, err)
	assert.Equal(t, "Grace Njeri", parent.Name)
	assert.Equal(t, "grace@test.ke", parent.Email)

	_, _, err = f.svc.Approve(ctx, app.ID, "registrar-id", admission.Review{})
	assert.ErrorIs(t, err, admission.ErrAlreadyReviewed)
	_, err = f.svc.Reject(ctx, app.ID, "registrar-id", admission.Review{Notes: "too late"})
	assert.ErrorIs(t, err, admission.ErrAlreadyReviewed)
	assert.Equal(t, 1, f.changes.n)

	// a sibling is linked to the same parent
	sibling := f.submit(t)
	_, lrn2, err := f.svc.Approve(ctx, sibling.ID, "registrar-id", admission.Review{})
	require.NoError(t, err)
	assert.Equal(t, *lrn.ParentID, *lrn2.ParentID)
	assert.Nil(t, lrn2.StreamID)

	parents, err := f.store.Learners.QueryParents(ctx, "")
	require.NoError(t, err)
	assert.Len(t, parents, 1)
}

func TestService_Approve_isAtomic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	app := f.submit(t)

	// a stream of another grade fails the learner creation after the parent was created
	other := testutil.CreateGrade(t, f.store.School, "Grade 2", 2)
	otherStream := testutil.CreateStream(t, f.store.School, other.ID, "Red")
	_, _, err := f.svc.Approve(ctx, app.ID, "registrar-id", admission.Review{StreamID: &otherStream.ID})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "stream_id", verr.Fields[0].Field)

	app, err = f.svc.Get(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, admission.StatusPending, app.Status)

	parents, err := f.store.Learners.QueryParents(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, parents)
	learners, err := f.store.Learners.QueryLearners(ctx, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, learners)
	assert.Zero(t, f.changes.n)
}

type lockRecorder struct {
	admission.Repository
	mu     sync.Mutex
	locked int
}

func (r *lockRecorder) LockApplication(ctx context.Context, id string, exec core.DBExecutor) (admission.Application, error) {
	r.mu.Lock()
	r.locked++
	r.mu.Unlock()
	return r.Repository.LockApplication(ctx, id, exec)
}

func TestService_Approve_concurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	repo := &lockRecorder{Repository: f.store.Admissions}
	learnerSvc := learner.NewService(f.store.Tx, f.store.Learners, f.store.School, f.store.Seq, f.changes)
	f.svc = admission.NewService(f.store.Tx, repo, f.store.School, learnerSvc, f.events)
	app := f.submit(t)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		approved int
		rejected int
	)
	for i := 0; i < 5; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, _, err := f.svc.Approve(ctx, app.ID, "registrar-id", admission.Review{}); err == nil {
				mu.Lock()
				approved++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, admission.ErrAlreadyReviewed)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := f.svc.Reject(ctx, app.ID, "registrar-id", admission.Review{Notes: "grade is full"}); err == nil {
				mu.Lock()
				rejected++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, admission.ErrAlreadyReviewed)
			}
		}()
	}
	wg.Wait()

	// exactly one review wins
	assert.Equal(t, 1, approved+rejected)
	assert.Equal(t, 10, repo.locked)
	learners, err := f.store.Learners.QueryLearners(ctx, nil, nil)
	require.NoError(t, err)
	assert.Len(t, learners, approved)
}

func TestService_Reject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	app := f.submit(t)

	app, err := f.svc.Reject(ctx, app.ID, "registrar-id", admission.Review{Notes: "grade is full"})
	require.NoError(t, err)
	assert.Equal(t, admission.StatusRejected, app.Status)
	assert.Equal(t, "grade is full", app.ReviewNotes)
	assert.Nil(t, app.LearnerID)

	_, _, err = f.svc.Approve(ctx, app.ID, "registrar-id", admission.Review{})
	assert.ErrorIs(t, err, admission.ErrAlreadyReviewed)

	_, err = f.svc.Reject(ctx, f.grade.ID, "registrar-id", admission.Review{Notes: "x"})
	assert.True(t, core.IsNotFound(err))
}

func TestService_Query(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.submit(t)
	in := f.input()
	in.FirstName = "Baraka"
	in.ParentName = "Peter Ouma"
	in.ParentEmail = ""
	_, err := f.svc.Submit(ctx, in)
	require.NoError(t, err)
	_, err = f.svc.Reject(ctx, first.ID, "registrar-id", admission.Review{Notes: "duplicate"})
	require.NoError(t, err)

	apps, err := f.svc.Query(ctx, &admission.QueryFilter{Search: "ouma"})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "Baraka", apps[0].FirstName)

	apps, err = f.svc.Query(ctx, &admission.QueryFilter{Status: admission.StatusRejected})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, first.ID, apps[0].ID)

	apps, err = f.svc.Query(ctx, &admission.QueryFilter{GradeID: f.grade.ID})
	require.NoError(t, err)
	assert.Len(t, apps, 2)

	counts, err := f.svc.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[admission.StatusPending])
	assert.Equal(t, 1, counts[admission.StatusRejected])
}
