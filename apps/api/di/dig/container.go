package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/shuleapp/shule/apps/api/echo"
	"github.com/shuleapp/shule/assets"
	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/admission"
	"github.com/shuleapp/shule/core/finance"
	"github.com/shuleapp/shule/core/learner"
	"github.com/shuleapp/shule/core/performance"
	"github.com/shuleapp/shule/core/report"
	"github.com/shuleapp/shule/core/school"
	"github.com/shuleapp/shule/core/user"
	cachesvc "github.com/shuleapp/shule/services/cache"
	emailsvc "github.com/shuleapp/shule/services/email"
	eventsvc "github.com/shuleapp/shule/services/events"
	logsvc "github.com/shuleapp/shule/services/logger"
	"github.com/shuleapp/shule/storage/database"
	"github.com/shuleapp/shule/storage/database/sqlxrepos"
)

const setupTimeout = 30 * time.Second

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

// newDB creates, opens & migrates the app database.
func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
		defer cancel()

		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if err = database.Ping(ctx, db); err != nil {
			return nil, err
		}
		if err = database.Migrate(db.DB); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newDBExecutor(db *sqlx.DB) core.DBExecutor {
	return db
}

// newCache returns a redis cache, or nil when redis is not configured (reports are then computed on every read).
func newCache(conf *core.Config, logger core.Logger) core.Cache {
	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	client, err := cachesvc.NewRedisClient(ctx, conf)
	if err != nil {
		logger.Error(fmt.Sprintf("connecting to redis, caching disabled: %v", err), err)
		return nil
	}
	if client == nil {
		return nil
	}
	return cachesvc.NewRedisCache(client)
}

func newEventPublisher(hub *eventsvc.Hub) core.EventPublisher {
	return hub
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	learner.InitValidators(validate, translator)
	performance.InitValidators(validate, translator)
	finance.InitValidators(validate, translator)
	return validate
}

func newPrinter(conf *core.Config) (*core.Printer, error) {
	return core.NewPrinter(assets.FS, conf)
}

// newSchoolService, newLearnerService & newPerformanceService notify the report service of every change
// reports are computed from, so it can drop stale reports.
func newSchoolService(repo school.Repository, reportSvc *report.Service) *school.Service {
	return school.NewService(repo, reportSvc)
}

func newLearnerService(
	tx core.Transactor,
	repo learner.Repository,
	schoolRepo school.Repository,
	seq core.Sequencer,
	reportSvc *report.Service,
) *learner.Service {
	return learner.NewService(tx, repo, schoolRepo, seq, reportSvc)
}

func newPerformanceService(
	tx core.Transactor,
	repo performance.Repository,
	learnerRepo learner.Repository,
	schoolRepo school.Repository,
	events core.EventPublisher,
	reportSvc *report.Service,
) *performance.Service {
	return performance.NewService(tx, repo, learnerRepo, schoolRepo, events, reportSvc)
}

type ServerParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	DB         *sqlx.DB
	Validate   *validator.Validate
	Translator ut.Translator

	UserSvc      user.Service
	SchoolSvc    *school.Service
	LearnerSvc   *learner.Service
	PerfSvc      *performance.Service
	ReportSvc    *report.Service
	FinanceSvc   *finance.Service
	AdmissionSvc *admission.Service
	EventHub     *eventsvc.Hub
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:         p.Conf,
		Logger:       p.Logger,
		Validate:     p.Validate,
		Translator:   p.Translator,
		UserSvc:      p.UserSvc,
		SchoolSvc:    p.SchoolSvc,
		LearnerSvc:   p.LearnerSvc,
		PerfSvc:      p.PerfSvc,
		ReportSvc:    p.ReportSvc,
		FinanceSvc:   p.FinanceSvc,
		AdmissionSvc: p.AdmissionSvc,
		EventHub:     p.EventHub,
		HealthCheck:  p.DB.PingContext,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newDBExecutor))
	must(c.Provide(newCache))
	must(c.Provide(eventsvc.NewHub))
	must(c.Provide(newEventPublisher))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newPrinter))

	// repositories
	must(c.Provide(sqlxrepos.NewTransactor, dig.As(new(core.Transactor))))
	must(c.Provide(sqlxrepos.NewSequencer, dig.As(new(core.Sequencer))))
	must(c.Provide(sqlxrepos.NewUserRepository, dig.As(new(user.Repository))))
	must(c.Provide(sqlxrepos.NewSchoolRepository, dig.As(new(school.Repository))))
	must(c.Provide(sqlxrepos.NewLearnerRepository, dig.As(new(learner.Repository))))
	must(c.Provide(sqlxrepos.NewPerformanceRepository, dig.As(new(performance.Repository))))
	must(c.Provide(sqlxrepos.NewFinanceRepository, dig.As(new(finance.Repository))))
	must(c.Provide(sqlxrepos.NewAdmissionRepository, dig.As(new(admission.Repository))))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(newSchoolService))
	must(c.Provide(newLearnerService))
	must(c.Provide(report.NewService))
	must(c.Provide(newPerformanceService))
	must(c.Provide(finance.NewService))
	must(c.Provide(admission.NewService))

	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
