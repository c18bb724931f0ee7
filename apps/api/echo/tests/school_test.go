package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuleapp/shule/core/school"
	"github.com/shuleapp/shule/tests"
)

func intPtr(i int) *int { return &i }

func Test_schoolApi_grades(t *testing.T) {
	e := setup(t)
	s := e.createStaff(t)
	adminToken := getToken(t, e.conf, s.admin)
	parentToken := getToken(t, e.conf, s.parent)

	g5 := testutil.CreateGrade(t, e.store.School, "Grade 5", 5)
	g4 := testutil.CreateGrade(t, e.store.School, "Grade 4", 4)
	testutil.CreateStream(t, e.store.School, g4.ID, "East")

	e.run(t, []httpTest{
		{name: "Auth required", method: http.MethodGet, path: "/api/grades", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "by level", method: http.MethodGet, path: "/api/grades", token: parentToken, wantData: marchallList(t, g4, g5)},
		{name: "retrieve", method: http.MethodGet, path: "/api/grades/" + g5.ID, token: parentToken, wantData: marchallObj(t, g5)},
		{
			name: "not found", method: http.MethodGet, path: "/api/grades/lol", token: adminToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "grade not found"}),
		},
		{
			name: "admin required", method: http.MethodPost, path: "/api/grades", token: getToken(t, e.conf, s.teacher),
			body: marchallObj(t, school.GradeInput{Name: "Grade 6", Level: intPtr(6)}), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "required fields", method: http.MethodPost, path: "/api/grades", token: adminToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": "this field is required", "level": "this field is required"}),
		},
		{
			name: "duplicate name", method: http.MethodPost, path: "/api/grades", token: adminToken,
			body: marchallObj(t, school.GradeInput{Name: "grade 4", Level: intPtr(7)}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": "a grade with this name already exists"}),
		},
		{
			name: "duplicate level", method: http.MethodPost, path: "/api/grades", token: adminToken,
			body: marchallObj(t, school.GradeInput{Name: "Form 1", Level: intPtr(5)}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"level": "a grade with this level already exists"}),
		},
		{
			name: "grade with streams", method: http.MethodDelete, path: "/api/grades/" + g4.ID, token: adminToken,
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "grade still has streams"}),
		},
	})

	var created school.Grade
	rec := e.serve(t, http.MethodPost, "/api/grades", adminToken, marchallObj(t, school.GradeInput{Name: "Grade 6", Level: intPtr(6)}), &created)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Grade 6", created.Name)
	assert.Equal(t, 6, created.Level)

	// a grade may keep its own name & level
	var updated school.Grade
	rec = e.serve(t, http.MethodPut, "/api/grades/"+created.ID, adminToken, marchallObj(t, school.GradeInput{Name: "Grade 6", Level: intPtr(6)}), &updated)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, created.ID, updated.ID)

	rec = e.serve(t, http.MethodDelete, "/api/grades/"+g5.ID, adminToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.serve(t, http.MethodGet, "/api/grades/"+g5.ID, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_schoolApi_streams(t *testing.T) {
	e := setup(t)
	s := e.createStaff(t)
	adminToken := getToken(t, e.conf, s.admin)

	g4 := testutil.CreateGrade(t, e.store.School, "Grade 4", 4)
	g5 := testutil.CreateGrade(t, e.store.School, "Grade 5", 5)
	west := testutil.CreateStream(t, e.store.School, g4.ID, "West")
	east := testutil.CreateStream(t, e.store.School, g4.ID, "East")
	north := testutil.CreateStream(t, e.store.School, g5.ID, "North")

	e.run(t, []httpTest{
		{name: "all", method: http.MethodGet, path: "/api/streams", token: adminToken, wantData: marchallList(t, east, north, west)},
		{name: "by grade", method: http.MethodGet, path: "/api/streams?grade_id=" + g4.ID, token: adminToken, wantData: marchallList(t, east, west)},
		{
			name: "unknown grade", method: http.MethodPost, path: "/api/streams", token: adminToken, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, school.StreamInput{GradeID: "2b7ed2a4-1f57-4a0b-9a43-5b2b3c8f0e11", Name: "South"}),
			wantData: marchallObj(t, map[string]string{"grade_id": "grade not found"}),
		},
	})

	var created school.Stream
	rec := e.serve(t, http.MethodPost, "/api/streams", adminToken, marchallObj(t, school.StreamInput{GradeID: g5.ID, Name: "South"}), &created)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, g5.ID, created.GradeID)
	assert.Nil(t, created.ClassTeacherID)
}

func Test_schoolApi_learningAreas(t *testing.T) {
	e := setup(t)
	s := e.createStaff(t)
	token := getToken(t, e.conf, s.teacher)

	math := testutil.CreateLearningArea(t, e.store.School, "Mathematics", "MATH", true)
	art := testutil.CreateLearningArea(t, e.store.School, "Art", "ART", false)
	eng := testutil.CreateLearningArea(t, e.store.School, "English", "ENG", true)

	e.run(t, []httpTest{
		{name: "all", method: http.MethodGet, path: "/api/learning-areas", token: token, wantData: marchallList(t, art, eng, math)},
		{name: "active", method: http.MethodGet, path: "/api/learning-areas?is_active=true", token: token, wantData: marchallList(t, eng, math)},
		{name: "inactive", method: http.MethodGet, path: "/api/learning-areas?is_active=false", token: token, wantData: marchallList(t, art)},
	})
}

func Test_schoolApi_teachers(t *testing.T) {
	e := setup(t)
	s := e.createStaff(t)
	adminToken := getToken(t, e.conf, s.admin)

	e.run(t, []httpTest{
		{
			name: "parents cannot list teachers", method: http.MethodGet, path: "/api/teachers", token: getToken(t, e.conf, s.parent),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "required fields", method: http.MethodPost, path: "/api/teachers", token: adminToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": "this field is required", "staff_number": "this field is required"}),
		},
	})

	var created school.Teacher
	rec := e.serve(t, http.MethodPost, "/api/teachers", adminToken, marchallObj(t, school.TeacherInput{
		UserID:      &s.teacher.ID,
		Name:        "Mwalimu Juma",
		Email:       "juma@test.ke",
		StaffNumber: "TSC/001",
	}), &created)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var teachers []school.Teacher
	rec = e.serve(t, http.MethodGet, "/api/teachers?search=tsc", getToken(t, e.conf, s.visitor), nil, &teachers)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, teachers, 1)
	assert.Equal(t, created.ID, teachers[0].ID)
}
