package inmemdb_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/finance"
	"github.com/shuleapp/shule/core/learner"
	"github.com/shuleapp/shule/core/performance"
	"github.com/shuleapp/shule/tests"
)

func TestTransactor_InTx(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	grade := testutil.CreateGrade(t, store.School, "Grade 1", 1)

	errBoom := errors.New("boom")
	err := store.Tx.InTx(ctx, func(exec core.DBExecutor) error {
		testutil.CreateLearner(t, store.Learners, "A1", "Amina", "Otieno", grade.ID, "", "")
		_, err := store.Seq.Next(ctx, "admission:2024", exec)
		require.NoError(t, err)
		return errBoom
	})
	assert.Equal(t, errBoom, err)

	learners, err := store.Learners.QueryLearners(ctx, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, learners)
	n, err := store.Seq.Next(ctx, "admission:2024")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	err = store.Tx.InTx(ctx, func(exec core.DBExecutor) error {
		testutil.CreateLearner(t, store.Learners, "A1", "Amina", "Otieno", grade.ID, "", "")
		return nil
	})
	require.NoError(t, err)
	learners, err = store.Learners.QueryLearners(ctx, nil, nil)
	require.NoError(t, err)
	assert.Len(t, learners, 1)
}

func TestSequencer_Next(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()

	for want := 1; want <= 3; want++ {
		n, err := store.Seq.Next(ctx, "invoice:2024")
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	n, err := store.Seq.Next(ctx, "invoice:2025")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLearnerRepository(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	grade := testutil.CreateGrade(t, store.School, "Grade 1", 1)
	area := testutil.CreateLearningArea(t, store.School, "Mathematics", "MATH", true)
	amina := testutil.CreateLearner(t, store.Learners, "A1", "Amina", "Otieno", grade.ID, "", "")
	brian := testutil.CreateLearner(t, store.Learners, "A2", "Brian", "Kamau", grade.ID, "", "")

	_, err := store.Learners.CreateLearner(ctx, learner.Learner{AdmissionNumber: "A1", GradeID: grade.ID})
	assert.True(t, core.IsConflict(err))

	found, err := store.Learners.QueryLearners(ctx, &learner.QueryFilter{Search: "kam"}, nil)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, brian.ID, found[0].ID)

	found, err = store.Learners.QueryLearners(ctx, nil, []core.DBOrdering{{Field: "admission_number", Ascending: false}})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, brian.ID, found[0].ID)

	// deleting a learner drops their performance records
	testutil.AddRecord(t, store.Performance, amina.ID, area.ID, grade.ID, 2024, 1, performance.ExamEndTerm, 70)
	require.NoError(t, store.Learners.DeleteLearner(ctx, amina.ID))
	recs, err := store.Performance.QueryRecords(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, recs)

	// but not while they have invoices
	_, err = store.Finance.CreateInvoice(ctx, finance.Invoice{InvoiceNumber: "INV-1", LearnerID: brian.ID, GradeID: grade.ID, Amount: 10})
	require.NoError(t, err)
	assert.True(t, core.IsConflict(store.Learners.DeleteLearner(ctx, brian.ID)))

	assert.True(t, core.IsNotFound(store.Learners.DeleteLearner(ctx, amina.ID)))
}

func TestPerformanceRepository_UpsertRecord(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	grade := testutil.CreateGrade(t, store.School, "Grade 1", 1)
	area := testutil.CreateLearningArea(t, store.School, "Mathematics", "MATH", true)
	amina := testutil.CreateLearner(t, store.Learners, "A1", "Amina", "Otieno", grade.ID, "", "")

	first := testutil.AddRecord(t, store.Performance, amina.ID, area.ID, grade.ID, 2024, 1, performance.ExamOpener, 40)
	again := testutil.AddRecord(t, store.Performance, amina.ID, area.ID, grade.ID, 2024, 1, performance.ExamOpener, 45)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 45.0, again.Marks)

	other := testutil.AddRecord(t, store.Performance, amina.ID, area.ID, grade.ID, 2024, 1, performance.ExamEndTerm, 60)
	assert.NotEqual(t, first.ID, other.ID)

	recs, err := store.Performance.QueryRecords(ctx, &performance.QueryFilter{LearnerID: amina.ID, ExamType: performance.ExamOpener})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 45.0, recs[0].Marks)

	assert.True(t, core.IsConflict(store.School.DeleteLearningArea(ctx, area.ID)))
}
