package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core/school"
	"github.com/shuleapp/shule/core/user"
)

type schoolApi struct {
	svc      *school.Service
	validate *validator.Validate
}

func registerSchoolAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := schoolApi{svc: deps.SchoolSvc, validate: deps.Validate}
	manage := permMiddleware(deps.UserSvc, user.PermManageSchool)

	gg := g.Group("/grades", jwt)
	gg.GET("", api.queryGrades)
	gg.POST("", api.createGrade, manage)
	gg.GET("/:id", api.retrieveGrade)
	gg.PUT("/:id", api.updateGrade, manage)
	gg.DELETE("/:id", api.destroyGrade, manage)

	sg := g.Group("/streams", jwt)
	sg.GET("", api.queryStreams)
	sg.POST("", api.createStream, manage)
	sg.GET("/:id", api.retrieveStream)
	sg.PUT("/:id", api.updateStream, manage)
	sg.DELETE("/:id", api.destroyStream, manage)

	lg := g.Group("/learning-areas", jwt)
	lg.GET("", api.queryLearningAreas)
	lg.POST("", api.createLearningArea, manage)
	lg.GET("/:id", api.retrieveLearningArea)
	lg.PUT("/:id", api.updateLearningArea, manage)
	lg.DELETE("/:id", api.destroyLearningArea, manage)

	tg := g.Group("/teachers", jwt, permMiddleware(deps.UserSvc, user.PermViewRecords))
	tg.GET("", api.queryTeachers)
	tg.POST("", api.createTeacher, manage)
	tg.GET("/:id", api.retrieveTeacher)
	tg.PUT("/:id", api.updateTeacher, manage)
	tg.DELETE("/:id", api.destroyTeacher, manage)
}

// Grades

func (api *schoolApi) queryGrades(ctx echo.Context) error {
	grades, err := api.svc.QueryGrades(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	if grades == nil {
		grades = []school.Grade{}
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *schoolApi) createGrade(ctx echo.Context) error {
	var data school.GradeInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	g, err := api.svc.CreateGrade(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, g)
}

func (api *schoolApi) retrieveGrade(ctx echo.Context) error {
	g, err := api.svc.GetGrade(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, g)
}

func (api *schoolApi) updateGrade(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	g, err := api.svc.GetGrade(rctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	var data school.GradeInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeInput")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	if g, err = api.svc.UpdateGrade(rctx, g, data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, g)
}

func (api *schoolApi) destroyGrade(ctx echo.Context) error {
	if err := api.svc.DeleteGrade(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Streams

func (api *schoolApi) queryStreams(ctx echo.Context) error {
	streams, err := api.svc.QueryStreams(ctx.Request().Context(), ctx.QueryParam("grade_id"))
	if err != nil {
		return errors.Wrap(err, "querying streams")
	}
	if streams == nil {
		streams = []school.Stream{}
	}
	return ctx.JSON(http.StatusOK, streams)
}

func (api *schoolApi) createStream(ctx echo.Context) error {
	var data school.StreamInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StreamInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	s, err := api.svc.CreateStream(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *schoolApi) retrieveStream(ctx echo.Context) error {
	s, err := api.svc.GetStream(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *schoolApi) updateStream(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	s, err := api.svc.GetStream(rctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	var data school.StreamInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StreamInput")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	if s, err = api.svc.UpdateStream(rctx, s, data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *schoolApi) destroyStream(ctx echo.Context) error {
	if err := api.svc.DeleteStream(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Learning areas

func (api *schoolApi) queryLearningAreas(ctx echo.Context) error {
	qp := newQueryParams(ctx)
	isActive := qp.Bool("is_active")
	if err := qp.Err(); err != nil {
		return err
	}
	areas, err := api.svc.QueryLearningAreas(ctx.Request().Context(), isActive)
	if err != nil {
		return errors.Wrap(err, "querying learning areas")
	}
	if areas == nil {
		areas = []school.LearningArea{}
	}
	return ctx.JSON(http.StatusOK, areas)
}

func (api *schoolApi) createLearningArea(ctx echo.Context) error {
	var data school.LearningAreaInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LearningAreaInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	la, err := api.svc.CreateLearningArea(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, la)
}

func (api *schoolApi) retrieveLearningArea(ctx echo.Context) error {
	la, err := api.svc.GetLearningArea(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, la)
}

func (api *schoolApi) updateLearningArea(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	la, err := api.svc.GetLearningArea(rctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	var data school.LearningAreaInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LearningAreaInput")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	if la, err = api.svc.UpdateLearningArea(rctx, la, data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, la)
}

func (api *schoolApi) destroyLearningArea(ctx echo.Context) error {
	if err := api.svc.DeleteLearningArea(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Teachers

func (api *schoolApi) queryTeachers(ctx echo.Context) error {
	teachers, err := api.svc.QueryTeachers(ctx.Request().Context(), newQueryParams(ctx).String("search"))
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	if teachers == nil {
		teachers = []school.Teacher{}
	}
	return ctx.JSON(http.StatusOK, teachers)
}

func (api *schoolApi) createTeacher(ctx echo.Context) error {
	var data school.TeacherInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TeacherInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	t, err := api.svc.CreateTeacher(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *schoolApi) retrieveTeacher(ctx echo.Context) error {
	t, err := api.svc.GetTeacher(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *schoolApi) updateTeacher(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	t, err := api.svc.GetTeacher(rctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	var data school.TeacherInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TeacherInput")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	if t, err = api.svc.UpdateTeacher(rctx, t, data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *schoolApi) destroyTeacher(ctx echo.Context) error {
	if err := api.svc.DeleteTeacher(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
