package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	echoapi "github.com/kcci/portal/apps/api/echo"
	"github.com/kcci/portal/core"
	"github.com/kcci/portal/core/company"
	"github.com/kcci/portal/core/finance"
	"github.com/kcci/portal/core/membership"
	"github.com/kcci/portal/core/reviewer"
	"github.com/kcci/portal/core/user"
	emailsvc "github.com/kcci/portal/services/email"
	eventsvc "github.com/kcci/portal/services/events"
	logsvc "github.com/kcci/portal/services/logger"
	"github.com/kcci/portal/storage/database"
	inmemdb "github.com/kcci/portal/storage/database/inmem"
	sqlxrepos "github.com/kcci/portal/storage/database/sqlx"
)

type repositories struct {
	tx           core.TxManager
	users        user.Repository
	reviewers    reviewer.Repository
	companies    company.Repository
	applications membership.Repository
	finance      finance.Repository
	close        func() error
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	zl, err := logsvc.NewZapLogger(conf, "api")
	if err != nil {
		log.Fatalf("setting up logger: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl, conf)
	defer logger.Sync()
	dbLogger := logsvc.NewRollbarLogger(zl.Named("db"), conf)

	// set up DB
	repos, err := setUpDB(conf, dbLogger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = repos.close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	var events core.EventPublisher
	if len(conf.Kafka.Brokers) > 0 {
		kp := eventsvc.NewKafkaPublisher(conf)
		defer func() {
			if err = kp.Close(); err != nil {
				logger.Error("closing kafka publisher", err)
			}
		}()
		events = kp
	} else {
		events = eventsvc.NewLogPublisher(logger)
	}

	usrSvc := user.NewService(repos.users, mailSvc, conf)
	revSvc := reviewer.NewService(repos.reviewers, usrSvc, repos.tx)
	compSvc := company.NewService(repos.companies, usrSvc, repos.tx)
	memSvc := membership.NewService(membership.Deps{
		Repo:      repos.applications,
		Users:     usrSvc,
		Reviewers: revSvc,
		Companies: compSvc,
		Tx:        repos.tx,
		MailSvc:   mailSvc,
		Events:    events,
		Logger:    logger,
	})
	finSvc := finance.NewService(finance.Deps{
		Repo:      repos.finance,
		Reviewers: revSvc,
		Companies: compSvc,
		Tx:        repos.tx,
		MailSvc:   mailSvc,
		Events:    events,
		Logger:    logger,
		Currency:  conf.Finance.Currency,
	})

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	reviewer.InitValidators(validate, translator)
	company.InitValidators(validate, translator)
	membership.InitValidators(validate, translator)
	finance.InitValidators(validate, translator)

	if err = core.ParseEmailTemplates(conf, logger); err != nil {
		logger.Fatal(fmt.Sprintf("parsing email templates: %v", err), err)
	}

	user.LoadCommonPasswords(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server, err := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:          conf,
			Logger:        logger,
			Validate:      validate,
			Translator:    translator,
			UserSvc:       usrSvc,
			MembershipSvc: memSvc,
			ReviewerSvc:   revSvc,
			CompanySvc:    compSvc,
			FinanceSvc:    finSvc,
		},
	)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up server: %v", err), err)
	}

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shut down and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// setUpDB opens the configured store. Postgres is created and migrated to the latest version on the way.
func setUpDB(conf *core.Config, logger core.Logger) (repositories, error) {
	if conf.Database.InMemory {
		db := inmemdb.Open()
		return repositories{
			tx:           db,
			users:        inmemdb.NewUserRepository(db),
			reviewers:    inmemdb.NewReviewerRepository(db),
			companies:    inmemdb.NewCompanyRepository(db),
			applications: inmemdb.NewApplicationRepository(db),
			finance:      inmemdb.NewFinanceRepository(db),
			close:        func() error { return nil },
		}, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return repositories{}, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return repositories{}, err
	}
	if err = database.Migrate(db.DB, "up"); err != nil {
		_ = db.Close()
		return repositories{}, errors.Wrap(err, "migrating database")
	}

	return repositories{
		tx:           database.NewDB(db, logger),
		users:        sqlxrepos.NewUserRepository(db),
		reviewers:    sqlxrepos.NewReviewerRepository(db),
		companies:    sqlxrepos.NewCompanyRepository(db),
		applications: sqlxrepos.NewApplicationRepository(db),
		finance:      sqlxrepos.NewFinanceRepository(db),
		close:        db.Close,
	}, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
