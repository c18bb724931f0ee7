package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core/report"
	"github.com/shuleapp/shule/core/user"
)

const mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type reportApi struct {
	svc      *report.Service
	validate *validator.Validate
}

func registerReportAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := reportApi{svc: deps.ReportSvc, validate: deps.Validate}
	viewRecords := permMiddleware(deps.UserSvc, user.PermViewRecords)
	editAcademics := permMiddleware(deps.UserSvc, user.PermEditAcademics)
	learnerAccess := learnerAccessMiddleware(deps.UserSvc, deps.LearnerSvc, user.PermViewRecords)

	rg := g.Group("/reports", jwt)
	rg.GET("/class", api.classReport, viewRecords)
	rg.GET("/class/export", api.exportClassReport, viewRecords)
	rg.GET("/learners/:id", api.reportCard, learnerAccess)
	rg.GET("/learners/:id/print", api.printReportCard, learnerAccess)
	rg.POST("/send-report-card-email", api.sendReportCardEmail, editAcademics)
}

func (api *reportApi) bindClassQuery(ctx echo.Context) (report.ClassReportQuery, error) {
	qp := newQueryParams(ctx)
	q := report.ClassReportQuery{
		GradeID:      qp.String("grade_id"),
		StreamID:     qp.String("stream_id"),
		AcademicYear: qp.Int("academic_year"),
		Term:         qp.Int("term"),
		ExamType:     qp.String("exam_type"),
	}
	if err := qp.Err(); err != nil {
		return q, err
	}
	return q, q.Validate(api.validate)
}

func (api *reportApi) bindCardQuery(ctx echo.Context) (report.ReportCardQuery, error) {
	qp := newQueryParams(ctx)
	q := report.ReportCardQuery{
		LearnerID:    ctx.Param("id"),
		AcademicYear: qp.Int("academic_year"),
		Term:         qp.Int("term"),
		ExamType:     qp.String("exam_type"),
	}
	if err := qp.Err(); err != nil {
		return q, err
	}
	return q, q.Validate(api.validate)
}

func (api *reportApi) classReport(ctx echo.Context) error {
	q, err := api.bindClassQuery(ctx)
	if err != nil {
		return err
	}
	rep, err := api.svc.ClassReport(ctx.Request().Context(), q)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *reportApi) exportClassReport(ctx echo.Context) error {
	q, err := api.bindClassQuery(ctx)
	if err != nil {
		return err
	}
	buf, fname, err := api.svc.ExportClassReport(ctx.Request().Context(), q)
	if err != nil {
		return err
	}
	return sendAttachment(ctx, mimeXLSX, fname, buf.Bytes())
}

func (api *reportApi) reportCard(ctx echo.Context) error {
	q, err := api.bindCardQuery(ctx)
	if err != nil {
		return err
	}
	card, err := api.svc.ReportCard(ctx.Request().Context(), q)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, card)
}

func (api *reportApi) printReportCard(ctx echo.Context) error {
	q, err := api.bindCardQuery(ctx)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err = api.svc.PrintReportCard(ctx.Request().Context(), q, &buf); err != nil {
		return err
	}
	return ctx.HTMLBlob(http.StatusOK, buf.Bytes())
}

func (api *reportApi) sendReportCardEmail(ctx echo.Context) error {
	var data report.SendReportCardRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SendReportCardRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	res, err := api.svc.SendReportCardEmail(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "sending report card")
	}
	return ctx.JSON(http.StatusOK, res)
}

func sendAttachment(ctx echo.Context, contentType, fname string, data []byte) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", fname))
	return ctx.Blob(http.StatusOK, contentType, data)
}
