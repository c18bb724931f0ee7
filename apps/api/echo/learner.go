package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core/learner"
	"github.com/shuleapp/shule/core/user"
)

type learnerApi struct {
	svc      *learner.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerLearnerAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := learnerApi{svc: deps.LearnerSvc, usrSvc: deps.UserSvc, validate: deps.Validate}
	manage := permMiddleware(deps.UserSvc, user.PermManageSchool)

	lg := g.Group("/learners", jwt)
	lg.GET("", api.query)
	lg.POST("", api.create, manage)
	// end of year: heads of school only
	lg.POST("/promote", api.promote, adminMiddleware(deps.UserSvc, user.RoleAdminOwner, user.RoleAdminPrincipal))
	lg.GET("/:id", api.retrieve, learnerAccessMiddleware(deps.UserSvc, deps.LearnerSvc, user.PermViewRecords))
	lg.PUT("/:id", api.update, manage)
	lg.DELETE("/:id", api.destroy, manage)

	pg := g.Group("/parents", jwt)
	pg.GET("", api.queryParents, permMiddleware(deps.UserSvc, user.PermViewRecords))
	pg.POST("", api.createParent, manage)
	pg.GET("/:id", api.retrieveParent, permMiddleware(deps.UserSvc, user.PermViewRecords))
	pg.PUT("/:id", api.updateParent, manage)
	pg.DELETE("/:id", api.destroyParent, manage)
}

// query lists learners. Parents only ever see their own children.
func (api *learnerApi) query(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var learners []learner.Learner
	switch {
	case user.Can(usr, user.PermViewRecords):
		qp := newQueryParams(ctx)
		filter := &learner.QueryFilter{
			Search:   qp.String("search"),
			GradeID:  qp.String("grade_id"),
			StreamID: qp.String("stream_id"),
			Status:   qp.String("status"),
			ParentID: qp.String("parent_id"),
		}
		filter.Clean()
		ordering := new(Ordering)
		ordering.Bind(ctx)
		if learners, err = api.svc.Query(rctx, filter, ordering.Orderings); err != nil {
			return errors.Wrap(err, "querying learners")
		}
	case usr.IsActive && usr.IsParent():
		if learners, err = api.svc.ChildrenOfUser(rctx, usr.ID); err != nil {
			return errors.Wrap(err, "querying children")
		}
	default:
		return errHttpForbidden
	}

	if learners == nil {
		learners = []learner.Learner{}
	}
	return ctx.JSON(http.StatusOK, learners)
}

func (api *learnerApi) create(ctx echo.Context) error {
	var data learner.LearnerInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LearnerInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	l, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, l)
}

func (api *learnerApi) retrieve(ctx echo.Context) error {
	l, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *learnerApi) update(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	l, err := api.svc.Get(rctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	var data learner.LearnerInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LearnerInput")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	if l, err = api.svc.Update(rctx, l, data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *learnerApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *learnerApi) promote(ctx echo.Context) error {
	res, err := api.svc.Promote(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "promoting learners")
	}
	return ctx.JSON(http.StatusOK, res)
}

// Parents

func (api *learnerApi) queryParents(ctx echo.Context) error {
	parents, err := api.svc.QueryParents(ctx.Request().Context(), newQueryParams(ctx).String("search"))
	if err != nil {
		return errors.Wrap(err, "querying parents")
	}
	if parents == nil {
		parents = []learner.Parent{}
	}
	return ctx.JSON(http.StatusOK, parents)
}

func (api *learnerApi) createParent(ctx echo.Context) error {
	var data learner.ParentInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ParentInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	p, err := api.svc.CreateParent(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *learnerApi) retrieveParent(ctx echo.Context) error {
	p, err := api.svc.GetParent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *learnerApi) updateParent(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	p, err := api.svc.GetParent(rctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	var data learner.ParentInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ParentInput")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	if p, err = api.svc.UpdateParent(rctx, p, data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *learnerApi) destroyParent(ctx echo.Context) error {
	if err := api.svc.DeleteParent(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
