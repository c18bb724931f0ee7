package tests

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/performance"
	"github.com/shuleapp/shule/core/report"
	"github.com/shuleapp/shule/core/school"
	"github.com/shuleapp/shule/services/email"
	"github.com/shuleapp/shule/tests"
)

func floatPtr(f float64) *float64 { return &f }

func Test_performanceApi_scores(t *testing.T) {
	e := setup(t)
	f := newLearnerFixture(t, e)
	math := testutil.CreateLearningArea(t, e.store.School, "Mathematics", "MATH", true)
	teacherToken := getToken(t, e.conf, f.s.teacher)

	entry := func(learnerID string, marks float64) performance.RecordInput {
		return performance.RecordInput{
			LearnerID:      learnerID,
			LearningAreaID: math.ID,
			AcademicYear:   2024,
			Term:           1,
			ExamType:       "END_TERM",
			Marks:          floatPtr(marks),
		}
	}
	batch := func(entries ...performance.RecordInput) []byte {
		return marchallObj(t, performance.UpsertBatch{Records: entries})
	}

	e.run(t, []httpTest{
		{
			name: "visitors cannot record", method: http.MethodPost, path: "/api/scores", token: getToken(t, e.conf, f.s.visitor),
			body: batch(entry(f.amina.ID, 90)), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "marks out of range", method: http.MethodPost, path: "/api/scores", token: teacherToken, body: batch(entry(f.amina.ID, 101)), wantCode: http.StatusBadRequest},
		{
			name: "unknown learner", method: http.MethodPost, path: "/api/scores", token: teacherToken, wantCode: http.StatusBadRequest,
			body:     batch(entry(f.amina.ID, 90), entry("2b7ed2a4-1f57-4a0b-9a43-5b2b3c8f0e11", 50)),
			wantData: marchallObj(t, map[string]string{"records[1].learner_id": "learner not found"}),
		},
		{
			name: "bad term param", method: http.MethodGet, path: "/api/scores?term=lol", token: teacherToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"term": "must be an integer"}),
		},
		{
			name: "parents cannot list scores", method: http.MethodGet, path: "/api/scores", token: getToken(t, e.conf, f.s.parent),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
	})

	// the failed batch saved nothing
	var recs []performance.Record
	rec := e.serve(t, http.MethodGet, "/api/scores", teacherToken, nil, &recs)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, recs)
	assert.Empty(t, e.events.Names())

	rec = e.serve(t, http.MethodPost, "/api/scores", teacherToken, batch(entry(f.amina.ID, 90), entry(f.brian.ID, 40.456)), &recs)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, recs, 2)
	assert.Equal(t, performance.ExamEndTerm, recs[0].ExamType)
	assert.Equal(t, f.g4.ID, recs[0].GradeID)
	require.NotNil(t, recs[0].RecordedBy)
	assert.Equal(t, f.s.teacher.ID, *recs[0].RecordedBy)
	assert.Equal(t, 40.46, recs[1].Marks)
	first := recs[0]

	// re-posting updates
	rec = e.serve(t, http.MethodPost, "/api/scores", teacherToken, batch(entry(f.amina.ID, 85)), &recs)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, recs, 1)
	assert.Equal(t, first.ID, recs[0].ID)
	assert.Equal(t, 85.0, recs[0].Marks)
	assert.Equal(t, []string{core.EventScoresUpdated, core.EventScoresUpdated}, e.events.Names())

	rec = e.serve(t, http.MethodGet, "/api/scores?learner_id="+f.amina.ID+"&exam_type=end_term&term=1", getToken(t, e.conf, f.s.visitor), nil, &recs)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, recs, 1)
	assert.Equal(t, first.ID, recs[0].ID)

	rec = e.serve(t, http.MethodDelete, "/api/scores/"+first.ID, teacherToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.serve(t, http.MethodDelete, "/api/scores/"+first.ID, teacherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type reportFixture struct {
	learnerFixture
	math, eng school.LearningArea
}

// newReportFixture adds end of term 1, 2024 marks: Amina 90 & 70, Brian 60 & 40 and Cate 50 in maths.
func newReportFixture(t *testing.T, e *env) reportFixture {
	f := reportFixture{learnerFixture: newLearnerFixture(t, e)}
	f.math = testutil.CreateLearningArea(t, e.store.School, "Mathematics", "MATH", true)
	f.eng = testutil.CreateLearningArea(t, e.store.School, "English", "ENG", true)

	end := performance.ExamEndTerm
	repo := e.store.Performance
	testutil.AddRecord(t, repo, f.amina.ID, f.math.ID, f.g4.ID, 2024, 1, end, 90)
	testutil.AddRecord(t, repo, f.amina.ID, f.eng.ID, f.g4.ID, 2024, 1, end, 70)
	testutil.AddRecord(t, repo, f.brian.ID, f.math.ID, f.g4.ID, 2024, 1, end, 60)
	testutil.AddRecord(t, repo, f.brian.ID, f.eng.ID, f.g4.ID, 2024, 1, end, 40)
	testutil.AddRecord(t, repo, f.cate.ID, f.math.ID, f.g5.ID, 2024, 1, end, 50)
	return f
}

func Test_reportApi_classReport(t *testing.T) {
	e := setup(t)
	f := newReportFixture(t, e)
	token := getToken(t, e.conf, f.s.teacher)
	path := fmt.Sprintf("/api/reports/class?grade_id=%s&academic_year=2024&term=1", f.g4.ID)

	e.run(t, []httpTest{
		{name: "parents cannot view class reports", method: http.MethodGet, path: path, token: getToken(t, e.conf, f.s.parent), wantCode: http.StatusForbidden},
		{
			name: "required params", method: http.MethodGet, path: "/api/reports/class", token: token, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"grade_id":      "this field is required",
				"academic_year": "this field is required",
				"term":          "this field is required",
			}),
		},
		{name: "unknown grade", method: http.MethodGet, path: "/api/reports/class?grade_id=2b7ed2a4-1f57-4a0b-9a43-5b2b3c8f0e11&academic_year=2024&term=1", token: token, wantCode: http.StatusNotFound},
	})

	var rep report.ClassReport
	rec := e.serve(t, http.MethodGet, path, token, nil, &rep)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, rep.Learners, 2)
	assert.Equal(t, f.amina.ID, rep.Learners[0].LearnerID)
	assert.Equal(t, 1, rep.Learners[0].Position)
	assert.Equal(t, 80.0, rep.Learners[0].Mean)
	assert.Equal(t, "EE", rep.Learners[0].Level)
	assert.Equal(t, f.brian.ID, rep.Learners[1].LearnerID)
	assert.Equal(t, 2, rep.Learners[1].Position)
	assert.Equal(t, 50.0, rep.Learners[1].Mean)
	assert.Equal(t, 65.0, rep.ClassMean)

	rec = e.serve(t, http.MethodGet, strings.Replace(path, "/class?", "/class/export?", 1), token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment; filename="))
	assert.NotZero(t, rec.Body.Len())
}

func Test_reportApi_reportCard(t *testing.T) {
	e := setup(t)
	f := newReportFixture(t, e)
	parentToken := getToken(t, e.conf, f.s.parent)
	path := func(learnerID string, print bool) string {
		p := "/api/reports/learners/" + learnerID
		if print {
			p += "/print"
		}
		return p + "?academic_year=2024&term=1"
	}

	e.run(t, []httpTest{
		{name: "other child", method: http.MethodGet, path: path(f.amina.ID, false), token: parentToken, wantCode: http.StatusForbidden},
		{name: "other child print", method: http.MethodGet, path: path(f.amina.ID, true), token: parentToken, wantCode: http.StatusForbidden},
		{
			name: "term required", method: http.MethodGet, path: "/api/reports/learners/" + f.cate.ID + "?academic_year=2024", token: parentToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"term": "this field is required"}),
		},
	})

	var card report.ReportCard
	rec := e.serve(t, http.MethodGet, path(f.cate.ID, false), parentToken, nil, &card)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, f.cate.ID, card.Learner.ID)
	assert.Equal(t, f.g5.ID, card.Grade.ID)
	require.Len(t, card.Subjects, 1)
	assert.Equal(t, 50.0, card.Mean)
	assert.Equal(t, 1, card.Position)

	rec = e.serve(t, http.MethodGet, path(f.amina.ID, false), getToken(t, e.conf, f.s.teacher), nil, &card)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 160.0, card.Total)
	assert.Equal(t, 2, card.ClassSize)

	rec = e.serve(t, http.MethodGet, path(f.cate.ID, true), parentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, rec.Body.String(), "Cate Wanjiru")
	assert.Contains(t, rec.Body.String(), "ADM/2024/0003")
}

func Test_reportApi_sendReportCardEmail(t *testing.T) {
	e := setup(t)
	f := newReportFixture(t, e)
	path := "/api/reports/send-report-card-email"
	token := getToken(t, e.conf, f.s.teacher)

	e.run(t, []httpTest{
		{
			name: "parents cannot send", method: http.MethodPost, path: path, token: getToken(t, e.conf, f.s.parent),
			body: marchallObj(t, report.SendReportCardRequest{LearnerID: f.cate.ID, AcademicYear: 2024, Term: 1}), wantCode: http.StatusForbidden,
		},
		{
			name: "visitors cannot send", method: http.MethodPost, path: path, token: getToken(t, e.conf, f.s.visitor),
			body:     marchallObj(t, report.SendReportCardRequest{LearnerID: f.cate.ID, AcademicYear: 2024, Term: 1, RecipientEmail: "stranger@test.ke"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "finance cannot send", method: http.MethodPost, path: path, token: getToken(t, e.conf, f.s.bursar),
			body:     marchallObj(t, report.SendReportCardRequest{LearnerID: f.cate.ID, AcademicYear: 2024, Term: 1, RecipientEmail: "stranger@test.ke"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "no marks for the period", method: http.MethodPost, path: path, token: token,
			body:     marchallObj(t, report.SendReportCardRequest{LearnerID: f.cate.ID, AcademicYear: 2029, Term: 3}),
			wantData: marchallObj(t, report.SendResult{Message: "no performance records for this period"}),
		},
		{
			name: "no recipient", method: http.MethodPost, path: path, token: token,
			body:     marchallObj(t, report.SendReportCardRequest{LearnerID: f.brian.ID, AcademicYear: 2024, Term: 1}),
			wantData: marchallObj(t, report.SendResult{Message: "the learner has no parent on record; provide a recipient email"}),
		},
	})
	_, sent := emailsvc.LastSentMessage()
	assert.False(t, sent)

	var res report.SendResult
	rec := e.serve(t, http.MethodPost, path, token, marchallObj(t, report.SendReportCardRequest{LearnerID: f.cate.ID, AcademicYear: 2024, Term: 1}), &res)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, res.Success)

	msg, sent := emailsvc.LastSentMessage()
	require.True(t, sent)
	assert.Equal(t, f.parent.Email, msg.To[0].Address)
	require.Len(t, msg.Attachments, 1)
}
