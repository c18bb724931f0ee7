package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core/admission"
	"github.com/shuleapp/shule/core/learner"
	"github.com/shuleapp/shule/core/user"
)

type admissionApi struct {
	svc      *admission.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerAdmissionAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := admissionApi{svc: deps.AdmissionSvc, usrSvc: deps.UserSvc, validate: deps.Validate}
	review := permMiddleware(deps.UserSvc, user.PermEditAdmissions)

	ag := g.Group("/applications", jwt, permMiddleware(deps.UserSvc, user.PermViewRecords))
	ag.GET("", api.query)
	ag.GET("/:id", api.retrieve)
	ag.POST("/:id/approve", api.approve, review)
	ag.POST("/:id/reject", api.reject, review)
}

func (api *admissionApi) query(ctx echo.Context) error {
	qp := newQueryParams(ctx)
	filter := &admission.QueryFilter{
		Search:  qp.String("search"),
		Status:  qp.String("status"),
		GradeID: qp.String("grade_id"),
	}
	filter.Clean()
	apps, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying applications")
	}
	if apps == nil {
		apps = []admission.Application{}
	}
	return ctx.JSON(http.StatusOK, apps)
}

func (api *admissionApi) retrieve(ctx echo.Context) error {
	app, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *admissionApi) bindReview(ctx echo.Context, rejecting bool) (admission.Review, user.User, error) {
	var data admission.Review
	if err := ctx.Bind(&data); err != nil {
		return data, user.User{}, errors.Wrap(err, "binding to Review")
	}
	if err := data.Validate(api.validate, rejecting); err != nil {
		return data, user.User{}, err
	}
	usr, err := getContextUser(ctx, api.usrSvc)
	return data, usr, err
}

// approve admits the applicant as a learner.
func (api *admissionApi) approve(ctx echo.Context) error {
	data, usr, err := api.bindReview(ctx, false)
	if err != nil {
		return err
	}
	app, lrn, err := api.svc.Approve(ctx.Request().Context(), ctx.Param("id"), usr.ID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ApprovalResponse{Application: app, Learner: lrn})
}

func (api *admissionApi) reject(ctx echo.Context) error {
	data, usr, err := api.bindReview(ctx, true)
	if err != nil {
		return err
	}
	app, err := api.svc.Reject(ctx.Request().Context(), ctx.Param("id"), usr.ID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, app)
}

type ApprovalResponse struct {
	Application admission.Application `json:"application"`
	Learner     learner.Learner       `json:"learner"`
}
