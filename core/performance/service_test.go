package performance_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/performance"
	"github.com/shuleapp/shule/tests"
)

type countingListener struct {
	calls int
}

func (l *countingListener) RecordsChanged(context.Context) { l.calls++ }

func marks(f float64) *float64 { return &f }

func TestService_Upsert(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	events := &testutil.EventRecorder{}
	listener := &countingListener{}
	svc := performance.NewService(store.Tx, store.Performance, store.Learners, store.School, events, listener)

	grade := testutil.CreateGrade(t, store.School, "Grade 4", 4)
	math := testutil.CreateLearningArea(t, store.School, "Mathematics", "MATH", true)
	amina := testutil.CreateLearner(t, store.Learners, "ADM/2024/0001", "Amina", "Otieno", grade.ID, "", "")
	teacher := testutil.CreateUser(t, store.Users, "Teacher", "teacher", "teacher@test.ke", "", nil, true)

	entry := performance.RecordInput{
		LearnerID:      amina.ID,
		LearningAreaID: math.ID,
		AcademicYear:   2024,
		Term:           1,
		ExamType:       performance.ExamEndTerm,
		Marks:          marks(72.456),
		Remarks:        "Good",
	}

	saved, err := svc.Upsert(ctx, teacher.ID, performance.UpsertBatch{Records: []performance.RecordInput{entry}})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, grade.ID, saved[0].GradeID, "grade defaults to the learner's grade")
	assert.Equal(t, 72.46, saved[0].Marks)
	assert.Equal(t, teacher.ID, *saved[0].RecordedBy)

	// posting the same key again updates the record
	entry.Marks = marks(80)
	again, err := svc.Upsert(ctx, teacher.ID, performance.UpsertBatch{Records: []performance.RecordInput{entry}})
	require.NoError(t, err)
	assert.Equal(t, saved[0].ID, again[0].ID)
	assert.Equal(t, 80.0, again[0].Marks)

	recs, err := svc.Query(ctx, &performance.QueryFilter{LearnerID: amina.ID})
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	assert.Equal(t, 2, listener.calls)
	assert.Equal(t, []string{core.EventScoresUpdated, core.EventScoresUpdated}, events.Names())
}

func TestService_Upsert_isAtomic(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	listener := &countingListener{}
	svc := performance.NewService(store.Tx, store.Performance, store.Learners, store.School, core.NopPublisher{}, listener)

	grade := testutil.CreateGrade(t, store.School, "Grade 4", 4)
	math := testutil.CreateLearningArea(t, store.School, "Mathematics", "MATH", true)
	amina := testutil.CreateLearner(t, store.Learners, "ADM/2024/0001", "Amina", "Otieno", grade.ID, "", "")

	batch := performance.UpsertBatch{Records: []performance.RecordInput{
		{LearnerID: amina.ID, LearningAreaID: math.ID, AcademicYear: 2024, Term: 1, ExamType: performance.ExamOpener, Marks: marks(50)},
		{LearnerID: "6c1c1b4e-0b3f-4f57-9d43-000000000000", LearningAreaID: math.ID, AcademicYear: 2024, Term: 1, ExamType: performance.ExamOpener, Marks: marks(60)},
	}}
	_, err := svc.Upsert(ctx, "", batch)
	require.Error(t, err)

	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "records[1].learner_id", verr.Fields[0].Field)

	recs, err := svc.Query(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, recs, "no entry of a failed batch is saved")
	assert.Zero(t, listener.calls)
}

func TestService_Upsert_unknownRefs(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	svc := performance.NewService(store.Tx, store.Performance, store.Learners, store.School, core.NopPublisher{})

	grade := testutil.CreateGrade(t, store.School, "Grade 4", 4)
	math := testutil.CreateLearningArea(t, store.School, "Mathematics", "MATH", true)
	amina := testutil.CreateLearner(t, store.Learners, "ADM/2024/0001", "Amina", "Otieno", grade.ID, "", "")

	tests := []struct {
		name      string
		entry     performance.RecordInput
		wantField string
	}{
		{
			name:      "unknown learning area",
			entry:     performance.RecordInput{LearnerID: amina.ID, LearningAreaID: grade.ID, AcademicYear: 2024, Term: 1, ExamType: performance.ExamOpener, Marks: marks(1)},
			wantField: "records[0].learning_area_id",
		},
		{
			name:      "unknown grade",
			entry:     performance.RecordInput{LearnerID: amina.ID, LearningAreaID: math.ID, GradeID: math.ID, AcademicYear: 2024, Term: 1, ExamType: performance.ExamOpener, Marks: marks(1)},
			wantField: "records[0].grade_id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upsert(ctx, "", performance.UpsertBatch{Records: []performance.RecordInput{tt.entry}})
			var verr *core.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Fields[0].Field)
		})
	}
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	listener := &countingListener{}
	svc := performance.NewService(store.Tx, store.Performance, store.Learners, store.School, core.NopPublisher{}, listener)

	grade := testutil.CreateGrade(t, store.School, "Grade 4", 4)
	math := testutil.CreateLearningArea(t, store.School, "Mathematics", "MATH", true)
	amina := testutil.CreateLearner(t, store.Learners, "ADM/2024/0001", "Amina", "Otieno", grade.ID, "", "")
	rec := testutil.AddRecord(t, store.Performance, amina.ID, math.ID, grade.ID, 2024, 1, performance.ExamOpener, 40)

	require.NoError(t, svc.Delete(ctx, rec.ID))
	assert.Equal(t, 1, listener.calls)

	_, err := svc.Get(ctx, rec.ID)
	assert.True(t, core.IsNotFound(err))
	assert.True(t, core.IsNotFound(svc.Delete(ctx, rec.ID)))
}

func TestGrading_Level(t *testing.T) {
	g := performance.DefaultGrading
	tests := []struct {
		marks float64
		want  string
	}{
		{100, "EE"},
		{80, "EE"},
		{79.99, "ME"},
		{50, "ME"},
		{49.5, "AE"},
		{30, "AE"},
		{29.99, "BE"},
		{0, "BE"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, g.Level(tt.marks).Code, "marks %v", tt.marks)
	}
}

func TestNewGrading_fallsBackOnInvalidThresholds(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Grading.MeetingMin = 90
	assert.Equal(t, performance.DefaultGrading, performance.NewGrading(conf))

	conf = core.NewTestConfig()
	conf.Grading.ExceedingMin = 75
	assert.Equal(t, 75.0, performance.NewGrading(conf).ExceedingMin)
}
