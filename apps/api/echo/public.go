package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/admission"
	"github.com/shuleapp/shule/core/learner"
	"github.com/shuleapp/shule/core/school"
)

// publicApi backs the marketing homepage. None of its endpoints require authentication.
type publicApi struct {
	conf         *core.Config
	schoolSvc    *school.Service
	learnerSvc   *learner.Service
	admissionSvc *admission.Service
	validate     *validator.Validate
}

func registerPublicAPI(g *echo.Group, deps ServerDeps) {
	api := publicApi{
		conf:         deps.Conf,
		schoolSvc:    deps.SchoolSvc,
		learnerSvc:   deps.LearnerSvc,
		admissionSvc: deps.AdmissionSvc,
		validate:     deps.Validate,
	}

	pg := g.Group("/public")
	pg.GET("/school", api.school)
	pg.GET("/grades", api.grades)
	pg.POST("/applications", api.submitApplication)
}

type (
	PublicStats struct {
		ActiveLearners int `json:"active_learners"`
		Teachers       int `json:"teachers"`
		Grades         int `json:"grades"`
		LearningAreas  int `json:"learning_areas"`
	}

	PublicSchool struct {
		core.SchoolProfile
		Stats PublicStats `json:"stats"`
	}
)

func (api *publicApi) school(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	stats, err := api.schoolSvc.Stats(rctx)
	if err != nil {
		return errors.Wrap(err, "getting school stats")
	}
	counts, err := api.learnerSvc.Counts(rctx)
	if err != nil {
		return errors.Wrap(err, "counting learners")
	}
	return ctx.JSON(http.StatusOK, PublicSchool{
		SchoolProfile: api.conf.School,
		Stats: PublicStats{
			ActiveLearners: counts.Active,
			Teachers:       stats.Teachers,
			Grades:         stats.Grades,
			LearningAreas:  stats.LearningAreas,
		},
	})
}

// grades lists the grades an applicant can apply to.
func (api *publicApi) grades(ctx echo.Context) error {
	grades, err := api.schoolSvc.QueryGrades(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	if grades == nil {
		grades = []school.Grade{}
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *publicApi) submitApplication(ctx echo.Context) error {
	var data admission.ApplicationInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ApplicationInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	app, err := api.admissionSvc.Submit(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, app)
}
