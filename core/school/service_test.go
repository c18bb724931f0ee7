package school_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/school"
	"github.com/shuleapp/shule/tests"
)

func level(n int) *int { return &n }

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	return verr.Fields[0].Field
}

func TestService_Grades(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	svc := school.NewService(store.School)

	g4, err := svc.CreateGrade(ctx, school.GradeInput{Name: "Grade 4", Level: level(4)})
	require.NoError(t, err)
	g5, err := svc.CreateGrade(ctx, school.GradeInput{Name: "Grade 5", Level: level(5)})
	require.NoError(t, err)

	_, err = svc.CreateGrade(ctx, school.GradeInput{Name: "grade 4", Level: level(7)})
	assert.Equal(t, "name", fieldOf(t, err))
	_, err = svc.CreateGrade(ctx, school.GradeInput{Name: "Grade Four", Level: level(4)})
	assert.Equal(t, "level", fieldOf(t, err))

	g4, err = svc.UpdateGrade(ctx, g4, school.GradeInput{Name: "Grade 4", Level: level(3)})
	require.NoError(t, err)
	assert.Equal(t, 3, g4.Level)

	next, ok := school.NextGrade([]school.Grade{g5, g4}, g4)
	assert.True(t, ok)
	assert.Equal(t, g5.ID, next.ID)
	_, ok = school.NextGrade([]school.Grade{g5, g4}, g5)
	assert.False(t, ok)

	_, err = svc.CreateStream(ctx, school.StreamInput{GradeID: g5.ID, Name: "East"})
	require.NoError(t, err)
	assert.ErrorIs(t, svc.DeleteGrade(ctx, g5.ID), school.ErrGradeHasStreams)

	testutil.CreateLearner(t, store.Learners, "A1", "Amina", "Otieno", g4.ID, "", "")
	assert.True(t, core.IsConflict(svc.DeleteGrade(ctx, g4.ID)))
}

func TestService_Streams(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	svc := school.NewService(store.School)
	g4 := testutil.CreateGrade(t, store.School, "Grade 4", 4)
	g5 := testutil.CreateGrade(t, store.School, "Grade 5", 5)

	east, err := svc.CreateStream(ctx, school.StreamInput{GradeID: g4.ID, Name: "East"})
	require.NoError(t, err)
	_, err = svc.CreateStream(ctx, school.StreamInput{GradeID: g5.ID, Name: "East"})
	require.NoError(t, err)

	_, err = svc.CreateStream(ctx, school.StreamInput{GradeID: g4.ID, Name: "EAST"})
	assert.Equal(t, "name", fieldOf(t, err))
	_, err = svc.CreateStream(ctx, school.StreamInput{GradeID: east.ID, Name: "West"})
	assert.Equal(t, "grade_id", fieldOf(t, err))
	_, err = svc.CreateStream(ctx, school.StreamInput{GradeID: g4.ID, Name: "West", ClassTeacherID: &g4.ID})
	assert.Equal(t, "class_teacher_id", fieldOf(t, err))

	teacher, err := svc.CreateTeacher(ctx, school.TeacherInput{Name: "Mr Otieno", StaffNumber: "TSC-001"})
	require.NoError(t, err)
	east, err = svc.UpdateStream(ctx, east, school.StreamInput{GradeID: g4.ID, Name: "East", ClassTeacherID: &teacher.ID})
	require.NoError(t, err)
	require.NotNil(t, east.ClassTeacherID)

	// deleting a teacher unassigns their streams
	require.NoError(t, svc.DeleteTeacher(ctx, teacher.ID))
	east, err = svc.GetStream(ctx, east.ID)
	require.NoError(t, err)
	assert.Nil(t, east.ClassTeacherID)

	streams, err := svc.QueryStreams(ctx, g4.ID)
	require.NoError(t, err)
	assert.Len(t, streams, 1)

	amina := testutil.CreateLearner(t, store.Learners, "A1", "Amina", "Otieno", g4.ID, east.ID, "")
	require.NoError(t, svc.DeleteStream(ctx, east.ID))
	amina, err = store.Learners.GetLearner(ctx, amina.ID)
	require.NoError(t, err)
	assert.Nil(t, amina.StreamID)
}

func TestService_LearningAreasAndTeachers(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	svc := school.NewService(store.School)

	math, err := svc.CreateLearningArea(ctx, school.LearningAreaInput{Name: "Mathematics", Code: "MATH"})
	require.NoError(t, err)
	assert.True(t, math.IsActive)
	_, err = svc.CreateLearningArea(ctx, school.LearningAreaInput{Name: "Maths", Code: "MATH"})
	assert.Equal(t, "code", fieldOf(t, err))

	inactive := false
	_, err = svc.UpdateLearningArea(ctx, math, school.LearningAreaInput{Name: "Mathematics", Code: "MATH", IsActive: &inactive})
	require.NoError(t, err)
	active := true
	areas, err := svc.QueryLearningAreas(ctx, &active)
	require.NoError(t, err)
	assert.Empty(t, areas)

	usr := testutil.CreateUser(t, store.Users, "Mr Otieno", "otieno", "otieno@test.ke", "pwd", nil, true)
	_, err = svc.CreateTeacher(ctx, school.TeacherInput{Name: "Mr Otieno", StaffNumber: "TSC-001", UserID: &usr.ID})
	require.NoError(t, err)
	_, err = svc.CreateTeacher(ctx, school.TeacherInput{Name: "Ms Akinyi", StaffNumber: "TSC-001"})
	assert.Equal(t, "staff_number", fieldOf(t, err))
	_, err = svc.CreateTeacher(ctx, school.TeacherInput{Name: "Ms Akinyi", StaffNumber: "TSC-002", UserID: &usr.ID})
	assert.Equal(t, "user_id", fieldOf(t, err))

	teachers, err := svc.QueryTeachers(ctx, " otieno")
	require.NoError(t, err)
	assert.Len(t, teachers, 1)

	testutil.CreateGrade(t, store.School, "Grade 4", 4)
	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, school.Stats{Teachers: 1, Grades: 1, Streams: 0, LearningAreas: 0}, stats)
}
