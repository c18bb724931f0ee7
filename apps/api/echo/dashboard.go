package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core/admission"
	"github.com/shuleapp/shule/core/finance"
	"github.com/shuleapp/shule/core/learner"
	"github.com/shuleapp/shule/core/school"
	"github.com/shuleapp/shule/core/user"
	eventsvc "github.com/shuleapp/shule/services/events"
)

type dashboardApi struct {
	usrSvc       user.Service
	schoolSvc    *school.Service
	learnerSvc   *learner.Service
	admissionSvc *admission.Service
	financeSvc   *finance.Service
}

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := dashboardApi{
		usrSvc:       deps.UserSvc,
		schoolSvc:    deps.SchoolSvc,
		learnerSvc:   deps.LearnerSvc,
		admissionSvc: deps.AdmissionSvc,
		financeSvc:   deps.FinanceSvc,
	}
	g.GET("/dashboard", api.dashboard, jwt, permMiddleware(deps.UserSvc, user.PermViewRecords))
}

type Dashboard struct {
	ActiveLearners      int              `json:"active_learners"`
	Alumni              int              `json:"alumni"`
	PendingApplications int              `json:"pending_applications"`
	Teachers            int              `json:"teachers"`
	Grades              int              `json:"grades"`
	Streams             int              `json:"streams"`
	Fees                *finance.Summary `json:"fees,omitempty"` // finance-capable roles only
}

func (api *dashboardApi) dashboard(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	counts, err := api.learnerSvc.Counts(rctx)
	if err != nil {
		return errors.Wrap(err, "counting learners")
	}
	stats, err := api.schoolSvc.Stats(rctx)
	if err != nil {
		return errors.Wrap(err, "getting school stats")
	}
	apps, err := api.admissionSvc.Counts(rctx)
	if err != nil {
		return errors.Wrap(err, "counting applications")
	}

	dash := Dashboard{
		ActiveLearners:      counts.Active,
		Alumni:              counts.Alumni,
		PendingApplications: apps[admission.StatusPending],
		Teachers:            stats.Teachers,
		Grades:              stats.Grades,
		Streams:             stats.Streams,
	}
	if user.Can(usr, user.PermViewFinance) {
		sum, err := api.financeSvc.Summary(rctx, finance.SummaryFilter{})
		if err != nil {
			return errors.Wrap(err, "summarizing fees")
		}
		dash.Fees = &sum
	}
	return ctx.JSON(http.StatusOK, dash)
}

// Live events

func registerEventsAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	hub := deps.EventHub
	if hub == nil {
		return
	}
	g.GET("/events/ws", func(ctx echo.Context) error {
		return serveEvents(ctx, hub)
	}, jwt, permMiddleware(deps.UserSvc, user.PermViewRecords))
}

func serveEvents(ctx echo.Context, hub *eventsvc.Hub) error {
	if err := hub.ServeWS(ctx.Response(), ctx.Request()); err != nil {
		return errors.Wrap(err, "serving events")
	}
	return nil
}
