package tests

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/shuleapp/shule/apps/api/echo"
	"github.com/shuleapp/shule/assets"
	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/admission"
	"github.com/shuleapp/shule/core/finance"
	"github.com/shuleapp/shule/core/learner"
	"github.com/shuleapp/shule/core/performance"
	"github.com/shuleapp/shule/core/report"
	"github.com/shuleapp/shule/core/school"
	"github.com/shuleapp/shule/core/user"
	"github.com/shuleapp/shule/services/email"
	"github.com/shuleapp/shule/services/events"
	"github.com/shuleapp/shule/tests"
)

func TestMain(m *testing.M) {
	if err := core.ParseEmailTemplates(assets.FS, core.NewTestConfig()); err != nil {
		fmt.Printf("ParseEmailTemplates(): %v", err)
		os.Exit(1)
	}
	if err := user.LoadCommonPasswords(assets.FS); err != nil {
		fmt.Printf("LoadCommonPasswords(): %v", err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

// env is a fresh server backed by in-memory repositories.
type env struct {
	conf     *core.Config
	store    *testutil.Store
	events   *testutil.EventRecorder
	registry *prometheus.Registry
	hub      *eventsvc.Hub
	app      *echoapi.Server
}

func setup(t *testing.T) *env {
	conf := core.NewTestConfig()
	store := testutil.NewStore()
	events := new(testutil.EventRecorder)
	registry := prometheus.NewRegistry()
	validate, translator := testutil.NewValidatorWithTranslator()
	printer := testutil.NewPrinter(t, conf)

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewService(store.Users, mailSvc, conf)
	reportSvc, err := report.NewService(
		conf, store.Performance, store.Learners, store.School,
		nil /* cache */, mailSvc, testutil.NopLogger{}, printer,
	)
	require.NoError(t, err)
	schoolSvc := school.NewService(store.School, reportSvc)
	learnerSvc := learner.NewService(store.Tx, store.Learners, store.School, store.Seq, reportSvc)

	hub := eventsvc.NewHub(testutil.NopLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	perfSvc := performance.NewService(store.Tx, store.Performance, store.Learners, store.School, events, reportSvc)
	financeSvc := finance.NewService(store.Tx, store.Finance, store.Learners, store.School, store.Seq, events, printer)
	admissionSvc := admission.NewService(store.Tx, store.Admissions, store.School, learnerSvc, events)

	app := echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         testutil.NopLogger{},
		Validate:       validate,
		Translator:     translator,
		Registerer:     registry,
		DisableReqLogs: true,
		UserSvc:        usrSvc,
		SchoolSvc:      schoolSvc,
		LearnerSvc:     learnerSvc,
		PerfSvc:        perfSvc,
		ReportSvc:      reportSvc,
		FinanceSvc:     financeSvc,
		AdmissionSvc:   admissionSvc,
		EventHub:       hub,
	})
	emailsvc.ResetSentMessages()

	return &env{conf: conf, store: store, events: events, registry: registry, hub: hub, app: app}
}

// staff creates one active user per role, all sharing the same password.
type staff struct {
	owner, admin, teacher, bursar, visitor, parent user.User
}

func (e *env) createStaff(t *testing.T) staff {
	repo := e.store.Users
	return staff{
		owner:   testutil.CreateUser(t, repo, "Owner", "owner", "owner@test.ke", testPassword, []string{user.RoleAdminOwner}, true),
		admin:   testutil.CreateUser(t, repo, "Admin", "admin", "admin@test.ke", testPassword, []string{user.RoleAdmin}, true),
		teacher: testutil.CreateUser(t, repo, "Teacher", "teacher", "teacher@test.ke", testPassword, []string{user.RoleTeacher}, true),
		bursar:  testutil.CreateUser(t, repo, "Bursar", "bursar", "bursar@test.ke", testPassword, []string{user.RoleFinance}, true),
		visitor: testutil.CreateUser(t, repo, "Visitor", "visitor", "visitor@test.ke", testPassword, []string{user.RoleVisitor}, true),
		parent:  testutil.CreateUser(t, repo, "Parent", "parent", "parent@test.ke", testPassword, []string{user.RoleParent}, true),
	}
}
