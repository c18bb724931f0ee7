package echoapi

import (
	"bytes"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core/finance"
	"github.com/shuleapp/shule/core/user"
)

type financeApi struct {
	svc      *finance.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerFinanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := financeApi{svc: deps.FinanceSvc, usrSvc: deps.UserSvc, validate: deps.Validate}
	view := permMiddleware(deps.UserSvc, user.PermViewFinance)
	edit := permMiddleware(deps.UserSvc, user.PermEditFinance)

	fg := g.Group("/fee-structures", jwt)
	fg.GET("", api.queryFeeStructures, view)
	fg.POST("", api.createFeeStructure, edit)
	fg.GET("/:id", api.retrieveFeeStructure, view)
	fg.PUT("/:id", api.updateFeeStructure, edit)
	fg.DELETE("/:id", api.destroyFeeStructure, edit)
	fg.POST("/:id/invoices", api.generateInvoices, edit)

	ig := g.Group("/invoices", jwt)
	ig.GET("", api.queryInvoices, view)
	ig.POST("", api.createInvoice, edit)
	ig.GET("/export", api.exportInvoices, view)
	ig.GET("/:id", api.retrieveInvoice, view)
	ig.POST("/:id/cancel", api.cancelInvoice, edit)

	pg := g.Group("/payments", jwt)
	pg.GET("", api.queryPayments, view)
	pg.POST("", api.recordPayment, edit)
	pg.GET("/:id/receipt", api.receipt, view)

	g.GET("/learners/:id/statement", api.statement, jwt, learnerAccessMiddleware(deps.UserSvc, deps.LearnerSvc, user.PermViewFinance))
	g.GET("/finance/summary", api.summary, jwt, view)
}

// Fee structures

func (api *financeApi) queryFeeStructures(ctx echo.Context) error {
	qp := newQueryParams(ctx)
	filter := &finance.FeeStructureFilter{
		GradeID:      qp.String("grade_id"),
		AcademicYear: qp.Int("academic_year"),
		Term:         qp.Int("term"),
	}
	if err := qp.Err(); err != nil {
		return err
	}
	structures, err := api.svc.QueryFeeStructures(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying fee structures")
	}
	if structures == nil {
		structures = []finance.FeeStructure{}
	}
	return ctx.JSON(http.StatusOK, structures)
}

func (api *financeApi) createFeeStructure(ctx echo.Context) error {
	var data finance.FeeStructureInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FeeStructureInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	fs, err := api.svc.CreateFeeStructure(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, fs)
}

func (api *financeApi) retrieveFeeStructure(ctx echo.Context) error {
	fs, err := api.svc.GetFeeStructure(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, fs)
}

func (api *financeApi) updateFeeStructure(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	fs, err := api.svc.GetFeeStructure(rctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	var data finance.FeeStructureInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FeeStructureInput")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	if fs, err = api.svc.UpdateFeeStructure(rctx, fs, data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, fs)
}

func (api *financeApi) destroyFeeStructure(ctx echo.Context) error {
	if err := api.svc.DeleteFeeStructure(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// generateInvoices bills every active learner of the fee structure's grade. Learners already billed are skipped.
func (api *financeApi) generateInvoices(ctx echo.Context) error {
	res, err := api.svc.GenerateInvoices(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

// Invoices

func (api *financeApi) bindInvoiceFilter(ctx echo.Context) (*finance.InvoiceFilter, error) {
	qp := newQueryParams(ctx)
	filter := &finance.InvoiceFilter{
		Search:         qp.String("search"),
		LearnerID:      qp.String("learner_id"),
		GradeID:        qp.String("grade_id"),
		FeeStructureID: qp.String("fee_structure_id"),
		AcademicYear:   qp.Int("academic_year"),
		Term:           qp.Int("term"),
		Status:         qp.String("status"),
	}
	if err := qp.Err(); err != nil {
		return nil, err
	}
	filter.Clean()
	return filter, nil
}

func (api *financeApi) queryInvoices(ctx echo.Context) error {
	filter, err := api.bindInvoiceFilter(ctx)
	if err != nil {
		return err
	}
	invs, err := api.svc.QueryInvoices(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying invoices")
	}
	if invs == nil {
		invs = []finance.Invoice{}
	}
	return ctx.JSON(http.StatusOK, invs)
}

func (api *financeApi) exportInvoices(ctx echo.Context) error {
	filter, err := api.bindInvoiceFilter(ctx)
	if err != nil {
		return err
	}
	buf, fname, err := api.svc.ExportInvoices(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "exporting invoices")
	}
	return sendAttachment(ctx, mimeXLSX, fname, buf.Bytes())
}

func (api *financeApi) createInvoice(ctx echo.Context) error {
	var data finance.InvoiceInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to InvoiceInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	inv, err := api.svc.CreateInvoice(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, inv)
}

func (api *financeApi) retrieveInvoice(ctx echo.Context) error {
	inv, err := api.svc.GetInvoice(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, inv)
}

func (api *financeApi) cancelInvoice(ctx echo.Context) error {
	inv, err := api.svc.CancelInvoice(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, inv)
}

// Payments

func (api *financeApi) queryPayments(ctx echo.Context) error {
	qp := newQueryParams(ctx)
	filter := &finance.PaymentFilter{
		InvoiceID: qp.String("invoice_id"),
		LearnerID: qp.String("learner_id"),
	}
	payments, err := api.svc.QueryPayments(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	if payments == nil {
		payments = []finance.Payment{}
	}
	return ctx.JSON(http.StatusOK, payments)
}

func (api *financeApi) recordPayment(ctx echo.Context) error {
	var data finance.PaymentInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PaymentInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	p, inv, err := api.svc.RecordPayment(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, PaymentResponse{Payment: p, Invoice: inv})
}

// receipt returns the receipt of a payment. ?format=html returns the printable version.
func (api *financeApi) receipt(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	if ctx.QueryParam("format") == "html" {
		var buf bytes.Buffer
		if err := api.svc.PrintReceipt(rctx, ctx.Param("id"), &buf); err != nil {
			return err
		}
		return ctx.HTMLBlob(http.StatusOK, buf.Bytes())
	}
	rcpt, err := api.svc.Receipt(rctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rcpt)
}

func (api *financeApi) statement(ctx echo.Context) error {
	st, err := api.svc.LearnerStatement(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *financeApi) summary(ctx echo.Context) error {
	qp := newQueryParams(ctx)
	filter := finance.SummaryFilter{
		AcademicYear: qp.Int("academic_year"),
		Term:         qp.Int("term"),
		GradeID:      qp.String("grade_id"),
	}
	if err := qp.Err(); err != nil {
		return err
	}
	sum, err := api.svc.Summary(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "summarizing fees")
	}
	return ctx.JSON(http.StatusOK, sum)
}

type PaymentResponse struct {
	Payment finance.Payment `json:"payment"`
	Invoice finance.Invoice `json:"invoice"`
}
