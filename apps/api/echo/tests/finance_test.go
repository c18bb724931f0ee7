package tests

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuleapp/shule/apps/api/echo"
	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/finance"
)

func Test_financeApi_feeStructures(t *testing.T) {
	e := setup(t)
	f := newLearnerFixture(t, e)
	token := getToken(t, e.conf, f.s.bursar)

	input := finance.FeeStructureInput{
		GradeID:      f.g4.ID,
		AcademicYear: 2025,
		Term:         1,
		Name:         " Term 1 fees ",
		Amount:       floatPtr(15000.499),
		DueDate:      core.NewDate(2025, 1, 31),
	}

	e.run(t, []httpTest{
		{
			name: "teachers cannot view fees", method: http.MethodGet, path: "/api/fee-structures", token: getToken(t, e.conf, f.s.teacher),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "required fields", method: http.MethodPost, path: "/api/fee-structures", token: token, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"grade_id":      "this field is required",
				"academic_year": "this field is required",
				"term":          "this field is required",
				"name":          "this field is required",
				"amount":        "this field is required",
			}),
		},
		{name: "empty", method: http.MethodGet, path: "/api/fee-structures", token: token, wantData: marchallList(t)},
	})

	var fs finance.FeeStructure
	rec := e.serve(t, http.MethodPost, "/api/fee-structures", token, marchallObj(t, input), &fs)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Term 1 fees", fs.Name)
	assert.Equal(t, 15000.5, fs.Amount)

	rec = e.serve(t, http.MethodPost, "/api/fee-structures", token, marchallObj(t, input))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, string(marchallObj(t, httpErr{Error: finance.ErrFeeStructureExists.Error()})), rec.Body.String())

	// the fee structure may keep its own grade & term
	input.Amount = floatPtr(16000)
	var updated finance.FeeStructure
	rec = e.serve(t, http.MethodPut, "/api/fee-structures/"+fs.ID, token, marchallObj(t, input), &updated)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, fs.ID, updated.ID)
	assert.Equal(t, 16000.0, updated.Amount)

	var list []finance.FeeStructure
	rec = e.serve(t, http.MethodGet, "/api/fee-structures?grade_id="+f.g4.ID+"&academic_year=2025", getToken(t, e.conf, f.s.admin), nil, &list)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, list, 1)
	assert.Equal(t, fs.ID, list[0].ID)

	// generated invoices keep the structure from being deleted
	rec = e.serve(t, http.MethodPost, "/api/fee-structures/"+fs.ID+"/invoices", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = e.serve(t, http.MethodDelete, "/api/fee-structures/"+fs.ID, token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	other := input
	other.Term = 2
	rec = e.serve(t, http.MethodPost, "/api/fee-structures", token, marchallObj(t, other), &fs)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = e.serve(t, http.MethodDelete, "/api/fee-structures/"+fs.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.serve(t, http.MethodGet, "/api/fee-structures/"+fs.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_financeApi_invoices(t *testing.T) {
	e := setup(t)
	f := newLearnerFixture(t, e)
	token := getToken(t, e.conf, f.s.bursar)

	var fs finance.FeeStructure
	rec := e.serve(t, http.MethodPost, "/api/fee-structures", token, marchallObj(t, finance.FeeStructureInput{
		GradeID: f.g4.ID, AcademicYear: 2025, Term: 1, Name: "Term 1 fees", Amount: floatPtr(15000),
	}), &fs)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res finance.GenerationResult
	rec = e.serve(t, http.MethodPost, "/api/fee-structures/"+fs.ID+"/invoices", token, nil, &res)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, res.Learners)
	assert.Equal(t, 0, res.Skipped)
	require.Len(t, res.Created, 2)
	assert.Equal(t, f.amina.ID, res.Created[0].LearnerID)
	assert.Equal(t, "INV-2025-00001", res.Created[0].InvoiceNumber)
	assert.Equal(t, "INV-2025-00002", res.Created[1].InvoiceNumber)
	assert.Equal(t, finance.StatusPending, res.Created[0].Status)
	assert.Equal(t, 15000.0, res.Created[0].Balance)

	// running again bills nobody twice
	rec = e.serve(t, http.MethodPost, "/api/fee-structures/"+fs.ID+"/invoices", token, nil, &res)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, res.Created)
	assert.Equal(t, 2, res.Skipped)

	e.run(t, []httpTest{
		{
			name: "teachers cannot bill", method: http.MethodPost, path: "/api/invoices", token: getToken(t, e.conf, f.s.teacher),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "unknown learner", method: http.MethodPost, path: "/api/invoices", token: token, wantCode: http.StatusBadRequest,
			body: marchallObj(t, finance.InvoiceInput{
				LearnerID: "2b7ed2a4-1f57-4a0b-9a43-5b2b3c8f0e11", AcademicYear: 2025, Term: 1, Description: "Trip", Amount: floatPtr(500),
			}),
			wantData: marchallObj(t, map[string]string{"learner_id": "learner not found"}),
		},
		{name: "not found", method: http.MethodGet, path: "/api/invoices/lol", token: token, wantCode: http.StatusNotFound},
	})

	var trip finance.Invoice
	rec = e.serve(t, http.MethodPost, "/api/invoices", token, marchallObj(t, finance.InvoiceInput{
		LearnerID: f.cate.ID, AcademicYear: 2025, Term: 1, Description: "Museum trip", Amount: floatPtr(500),
	}), &trip)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "INV-2025-00003", trip.InvoiceNumber)
	assert.Equal(t, f.g5.ID, trip.GradeID)
	assert.Nil(t, trip.FeeStructureID)

	var invs []finance.Invoice
	rec = e.serve(t, http.MethodGet, "/api/invoices?grade_id="+f.g4.ID, token, nil, &invs)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, invs, 2)
	rec = e.serve(t, http.MethodGet, "/api/invoices?search=00003", token, nil, &invs)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, invs, 1)
	assert.Equal(t, trip.ID, invs[0].ID)

	var cancelled finance.Invoice
	rec = e.serve(t, http.MethodPost, "/api/invoices/"+trip.ID+"/cancel", token, nil, &cancelled)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, finance.StatusCancelled, cancelled.Status)
	assert.Zero(t, cancelled.Balance)
	rec = e.serve(t, http.MethodPost, "/api/invoices/"+trip.ID+"/cancel", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.serve(t, http.MethodGet, "/api/invoices?status=cancelled", token, nil, &invs)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, invs, 1)
	assert.Equal(t, trip.ID, invs[0].ID)

	rec = e.serve(t, http.MethodGet, "/api/invoices/export", getToken(t, e.conf, f.s.admin), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment; filename="))
	assert.NotZero(t, rec.Body.Len())
}

// billLearner creates an invoice of amount for l through the API.
func (e *env) billLearner(t *testing.T, token, learnerID string, amount float64) finance.Invoice {
	var inv finance.Invoice
	rec := e.serve(t, http.MethodPost, "/api/invoices", token, marchallObj(t, finance.InvoiceInput{
		LearnerID: learnerID, AcademicYear: 2025, Term: 1, Description: "Term 1 fees", Amount: floatPtr(amount),
	}), &inv)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return inv
}

func Test_financeApi_payments(t *testing.T) {
	e := setup(t)
	f := newLearnerFixture(t, e)
	token := getToken(t, e.conf, f.s.bursar)
	inv := e.billLearner(t, token, f.amina.ID, 15000)

	payment := func(amount float64) []byte {
		return marchallObj(t, finance.PaymentInput{InvoiceID: inv.ID, Amount: floatPtr(amount), Method: "MPESA", Reference: "QWE123"})
	}

	e.run(t, []httpTest{
		{
			name: "visitors cannot record payments", method: http.MethodPost, path: "/api/payments", token: getToken(t, e.conf, f.s.visitor),
			body: payment(100), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "bad method", method: http.MethodPost, path: "/api/payments", token: token, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, finance.PaymentInput{InvoiceID: inv.ID, Amount: floatPtr(100), Method: "bitcoin"}),
			wantData: marchallObj(t, map[string]string{"method": "method must be one of: cash, mpesa, bank, cheque"}),
		},
		{
			name: "future payment", method: http.MethodPost, path: "/api/payments", token: token, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, finance.PaymentInput{InvoiceID: inv.ID, Amount: floatPtr(100), Method: "cash", PaidAt: time.Now().Add(48 * time.Hour)}),
			wantData: marchallObj(t, map[string]string{"paid_at": "payment date cannot be in the future"}),
		},
		{
			name: "overpayment", method: http.MethodPost, path: "/api/payments", token: token, body: payment(15000.01),
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: finance.ErrOverpayment.Error()}),
		},
	})
	assert.Empty(t, e.events.Names())

	var resp echoapi.PaymentResponse
	rec := e.serve(t, http.MethodPost, "/api/payments", token, payment(5000), &resp)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	year := time.Now().UTC().Year()
	assert.Equal(t, finance.NewReceiptNumber(year, 1), resp.Payment.ReceiptNumber)
	assert.Equal(t, finance.MethodMpesa, resp.Payment.Method)
	require.NotNil(t, resp.Payment.RecordedBy)
	assert.Equal(t, f.s.bursar.ID, *resp.Payment.RecordedBy)
	assert.Equal(t, finance.StatusPartial, resp.Invoice.Status)
	assert.Equal(t, 5000.0, resp.Invoice.AmountPaid)
	assert.Equal(t, 10000.0, resp.Invoice.Balance)
	first := resp.Payment

	rec = e.serve(t, http.MethodPost, "/api/payments", token, payment(10000), &resp)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, finance.NewReceiptNumber(year, 2), resp.Payment.ReceiptNumber)
	assert.Equal(t, finance.StatusPaid, resp.Invoice.Status)
	assert.Zero(t, resp.Invoice.Balance)
	assert.Equal(t, []string{core.EventPaymentRecorded, core.EventPaymentRecorded}, e.events.Names())

	// paid invoices take no more money & cannot be cancelled
	rec = e.serve(t, http.MethodPost, "/api/payments", token, payment(1))
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = e.serve(t, http.MethodPost, "/api/invoices/"+inv.ID+"/cancel", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, string(marchallObj(t, httpErr{Error: finance.ErrInvoiceHasPayments.Error()})), rec.Body.String())

	var payments []finance.Payment
	rec = e.serve(t, http.MethodGet, "/api/payments?invoice_id="+inv.ID, token, nil, &payments)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, payments, 2)

	var rcpt finance.Receipt
	rec = e.serve(t, http.MethodGet, "/api/payments/"+first.ID+"/receipt", token, nil, &rcpt)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, first.ReceiptNumber, rcpt.ReceiptNumber)
	assert.Equal(t, inv.InvoiceNumber, rcpt.InvoiceNumber)
	assert.Equal(t, "Amina Otieno", rcpt.LearnerName)
	assert.Equal(t, f.amina.AdmissionNumber, rcpt.AdmissionNumber)
	assert.Equal(t, "five thousand shillings", rcpt.AmountInWords)

	rec = e.serve(t, http.MethodGet, "/api/payments/"+first.ID+"/receipt?format=html", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, rec.Body.String(), first.ReceiptNumber)
	assert.Contains(t, rec.Body.String(), "Amina Otieno")

	rec = e.serve(t, http.MethodGet, "/api/payments/lol/receipt", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_financeApi_statementAndSummary(t *testing.T) {
	e := setup(t)
	f := newLearnerFixture(t, e)
	token := getToken(t, e.conf, f.s.bursar)

	cateInv := e.billLearner(t, token, f.cate.ID, 12000)
	e.billLearner(t, token, f.amina.ID, 15000)
	trip := e.billLearner(t, token, f.brian.ID, 700)
	rec := e.serve(t, http.MethodPost, "/api/invoices/"+trip.ID+"/cancel", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = e.serve(t, http.MethodPost, "/api/payments", token, marchallObj(t, finance.PaymentInput{
		InvoiceID: cateInv.ID, Amount: floatPtr(2000.25), Method: finance.MethodCash,
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	parentToken := getToken(t, e.conf, f.s.parent)
	e.run(t, []httpTest{
		{name: "other child", method: http.MethodGet, path: "/api/learners/" + f.amina.ID + "/statement", token: parentToken, wantCode: http.StatusForbidden},
		{name: "teachers", method: http.MethodGet, path: "/api/learners/" + f.amina.ID + "/statement", token: getToken(t, e.conf, f.s.teacher), wantCode: http.StatusForbidden},
		{name: "parents cannot view the summary", method: http.MethodGet, path: "/api/finance/summary", token: parentToken, wantCode: http.StatusForbidden},
		{
			name: "bad year", method: http.MethodGet, path: "/api/finance/summary?academic_year=this", token: token, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"academic_year": "must be an integer"}),
		},
	})

	var st finance.Statement
	rec = e.serve(t, http.MethodGet, "/api/learners/"+f.cate.ID+"/statement", parentToken, nil, &st)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, f.cate.ID, st.Learner.ID)
	assert.Len(t, st.Invoices, 1)
	assert.Len(t, st.Payments, 1)
	assert.Equal(t, 12000.0, st.TotalBilled)
	assert.Equal(t, 2000.25, st.TotalPaid)
	assert.Equal(t, 9999.75, st.Balance)

	// cancelled invoices are listed but not billed
	rec = e.serve(t, http.MethodGet, "/api/learners/"+f.brian.ID+"/statement", token, nil, &st)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, st.Invoices, 1)
	assert.Zero(t, st.TotalBilled)
	assert.Zero(t, st.Balance)

	var sum finance.Summary
	rec = e.serve(t, http.MethodGet, "/api/finance/summary", getToken(t, e.conf, f.s.admin), nil, &sum)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, finance.Summary{
		Billed:      27000,
		Collected:   2000.25,
		Outstanding: 24999.75,
		Invoices:    2,
		ByStatus: map[string]int{
			finance.StatusPending:   1,
			finance.StatusPartial:   1,
			finance.StatusPaid:      0,
			finance.StatusCancelled: 1,
		},
	}, sum)

	rec = e.serve(t, http.MethodGet, "/api/finance/summary?grade_id="+f.g5.ID, token, nil, &sum)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 12000.0, sum.Billed)
	assert.Equal(t, 1, sum.Invoices)
}
