package main

import (
	"fmt"
	"log"
	"os"

	"github.com/kcci/portal/core"
	"github.com/kcci/portal/core/company"
	"github.com/kcci/portal/core/finance"
	"github.com/kcci/portal/core/reviewer"
	"github.com/kcci/portal/core/user"
	emailsvc "github.com/kcci/portal/services/email"
	eventsvc "github.com/kcci/portal/services/events"
	logsvc "github.com/kcci/portal/services/logger"
	"github.com/kcci/portal/storage/database"
	sqlxrepos "github.com/kcci/portal/storage/database/sqlx"
)

func main() {
	os.Exit(start())
}

func start() int {
	conf := core.NewConfig()

	zl, err := logsvc.NewZapLogger(conf, "admin")
	if err != nil {
		log.Printf("setting up logger: %v", err)
		return 1
	}
	logger := logsvc.NewRollbarLogger(zl, conf)
	defer logger.Sync()

	if conf.Database.InMemory {
		logger.Error("the admin commands need a database; unset DATABASE_IN_MEMORY")
		return 1
	}

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Error(fmt.Sprintf("opening database: %v", err), err)
		return 1
	}
	defer func() { _ = db.Close() }()
	if err = db.Ping(); err != nil {
		logger.Error(fmt.Sprintf("reaching database: %v", err), err)
		return 1
	}

	usrRepo := sqlxrepos.NewUserRepository(db)
	txm := database.NewDB(db, logger)
	mailSvc := emailsvc.NewConsoleService(conf, logger)
	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	finSvc := finance.NewService(finance.Deps{
		Repo:      sqlxrepos.NewFinanceRepository(db),
		Reviewers: reviewer.NewService(sqlxrepos.NewReviewerRepository(db), usrSvc, txm),
		Companies: company.NewService(sqlxrepos.NewCompanyRepository(db), usrSvc, txm),
		Tx:        txm,
		MailSvc:   mailSvc,
		Events:    eventsvc.NewLogPublisher(logger),
		Logger:    logger,
		Currency:  conf.Finance.Currency,
	})

	// start CLI
	cli := commandLine{
		db:      db.DB,
		usrRepo: usrRepo,
		finSvc:  finSvc,
		logger:  logger,
		out:     os.Stdout,
	}
	if err = cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		return 1
	}
	return 0
}
