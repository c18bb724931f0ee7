package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/performance"
	"github.com/shuleapp/shule/core/user"
)

type performanceApi struct {
	svc      *performance.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerPerformanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := performanceApi{svc: deps.PerfSvc, usrSvc: deps.UserSvc, validate: deps.Validate}
	edit := permMiddleware(deps.UserSvc, user.PermEditAcademics)

	sg := g.Group("/scores", jwt)
	sg.GET("", api.query, permMiddleware(deps.UserSvc, user.PermViewRecords))
	sg.POST("", api.upsert, edit)
	sg.DELETE("/:id", api.destroy, edit)
}

func (api *performanceApi) query(ctx echo.Context) error {
	qp := newQueryParams(ctx)
	filter := &performance.QueryFilter{
		LearnerID:      qp.String("learner_id"),
		LearningAreaID: qp.String("learning_area_id"),
		GradeID:        qp.String("grade_id"),
		AcademicYear:   qp.Int("academic_year"),
		Term:           qp.Int("term"),
		ExamType:       core.CleanString(qp.String("exam_type"), true /* lower */),
	}
	if err := qp.Err(); err != nil {
		return err
	}
	recs, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying scores")
	}
	if recs == nil {
		recs = []performance.Record{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

// upsert saves a score sheet. Re-posted entries update the existing scores.
func (api *performanceApi) upsert(ctx echo.Context) error {
	var data performance.UpsertBatch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpsertBatch")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	recs, err := api.svc.Upsert(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *performanceApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
