package tests

import (
	"context"
	"net/http"
	"strings"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuleapp/shule/apps/api/echo"
	"github.com/shuleapp/shule/core/finance"
	"github.com/shuleapp/shule/core/learner"
	"github.com/shuleapp/shule/core/school"
	"github.com/shuleapp/shule/tests"
)

func Test_server_home(t *testing.T) {
	e := setup(t)

	rec := e.serve(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Shule API!", rec.Body.String())

	e.run(t, []httpTest{
		{name: "health", method: http.MethodGet, path: "/api/health", wantData: []byte(`{"status":"ok","build":"test"}`)},
		{name: "trailing slash", method: http.MethodGet, path: "/api/health/", wantData: []byte(`{"status":"ok","build":"test"}`)},
	})
}

func Test_publicApi_school(t *testing.T) {
	e := setup(t)
	f := newLearnerFixture(t, e)
	testutil.CreateLearningArea(t, e.store.School, "Mathematics", "MATH", true)
	testutil.CreateLearningArea(t, e.store.School, "Art", "ART", false)
	rec := e.serve(t, http.MethodPost, "/api/teachers", getToken(t, e.conf, f.s.admin), marchallObj(t, school.TeacherInput{
		Name: "Mwalimu Juma", StaffNumber: "TSC/001",
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var profile echoapi.PublicSchool
	rec = e.serve(t, http.MethodGet, "/api/public/school", "", nil, &profile)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Shule Academy", profile.Name)
	assert.Equal(t, "Knowledge is light", profile.Motto)
	assert.Equal(t, echoapi.PublicStats{ActiveLearners: 3, Teachers: 1, Grades: 2, LearningAreas: 1}, profile.Stats)

	e.run(t, []httpTest{
		{name: "grades", method: http.MethodGet, path: "/api/public/grades", wantData: marchallList(t, f.g4, f.g5)},
	})
}

func Test_dashboardApi(t *testing.T) {
	e := setup(t)
	f := newLearnerFixture(t, e)
	e.submit(t, applicationInput(f.g4.ID, ""))
	e.billLearner(t, getToken(t, e.conf, f.s.bursar), f.amina.ID, 15000)

	// Cate graduates
	cate := f.cate
	cate.Status = learner.StatusAlumni
	_, err := e.store.Learners.UpdateLearner(context.Background(), cate)
	require.NoError(t, err)

	e.run(t, []httpTest{
		{name: "Auth required", method: http.MethodGet, path: "/api/dashboard", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "parents have no dashboard", method: http.MethodGet, path: "/api/dashboard", token: getToken(t, e.conf, f.s.parent),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
	})

	var dash echoapi.Dashboard
	rec := e.serve(t, http.MethodGet, "/api/dashboard", getToken(t, e.conf, f.s.teacher), nil, &dash)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, echoapi.Dashboard{
		ActiveLearners:      2,
		Alumni:              1,
		PendingApplications: 1,
		Grades:              2,
		Streams:             1,
	}, dash)
	assert.NotContains(t, rec.Body.String(), `"fees"`)

	dash = echoapi.Dashboard{}
	rec = e.serve(t, http.MethodGet, "/api/dashboard", getToken(t, e.conf, f.s.bursar), nil, &dash)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, dash.Fees)
	assert.Equal(t, 15000.0, dash.Fees.Outstanding)
	assert.Equal(t, 1, dash.Fees.ByStatus[finance.StatusPending])
	assert.Equal(t, 1, dash.PendingApplications)
}

func Test_server_metrics(t *testing.T) {
	e := setup(t)

	e.serve(t, http.MethodGet, "/api/public/grades", "", nil)
	e.serve(t, http.MethodGet, "/api/public/grades", "", nil)
	e.serve(t, http.MethodGet, "/api/learners/lol", "", nil)

	expected := `
# HELP shule_http_requests_total HTTP requests by method, route & status code.
# TYPE shule_http_requests_total counter
shule_http_requests_total{code="200",method="GET",route="/api/public/grades"} 2
shule_http_requests_total{code="401",method="GET",route="/api/learners/:id"} 1
`
	err := promtest.GatherAndCompare(e.registry, strings.NewReader(expected), "shule_http_requests_total")
	assert.NoError(t, err)
	n, err := promtest.GatherAndCount(e.registry, "shule_http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
