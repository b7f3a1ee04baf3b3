package tests

import (
	"log"
	"os"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"go.uber.org/zap"

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
	inmemdb "github.com/kcci/portal/storage/database/inmem"
	"github.com/kcci/portal/testutil"
)

var (
	conf   *core.Config
	db     *inmemdb.DB
	app    *echoapi.Server
	events *eventsvc.PublisherMock

	usrRepo  user.Repository
	revRepo  reviewer.Repository
	compRepo company.Repository
	appRepo  membership.Repository
	finRepo  finance.Repository

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

func TestMain(m *testing.M) {
	_ = os.Setenv("ENV", "TEST")
	conf = core.NewConfig()
	conf.Database.InMemory = true
	logger := logsvc.NewRollbarLogger(zap.NewNop(), conf)

	// set up DB & repos
	db = inmemdb.Open()
	usrRepo = inmemdb.NewUserRepository(db)
	revRepo = inmemdb.NewReviewerRepository(db)
	compRepo = inmemdb.NewCompanyRepository(db)
	appRepo = inmemdb.NewApplicationRepository(db)
	finRepo = inmemdb.NewFinanceRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	events = eventsvc.NewPublisherMock()
	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	revSvc := reviewer.NewService(revRepo, usrSvc, db)
	compSvc := company.NewService(compRepo, usrSvc, db)
	memSvc := membership.NewService(membership.Deps{
		Repo:      appRepo,
		Users:     usrSvc,
		Reviewers: revSvc,
		Companies: compSvc,
		Tx:        db,
		MailSvc:   mailSvc,
		Events:    events,
		Logger:    logger,
	})
	finSvc := finance.NewService(finance.Deps{
		Repo:      finRepo,
		Reviewers: revSvc,
		Companies: compSvc,
		Tx:        db,
		MailSvc:   mailSvc,
		Events:    events,
		Logger:    logger,
		Currency:  conf.Finance.Currency,
	})

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := testutil.NewValidator(translator)
	if err := core.ParseEmailTemplates(conf, logger); err != nil {
		log.Fatalf("parsing email templates: %v", err)
	}
	user.LoadCommonPasswords(logger)

	// set up server
	var err error
	app, err = echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
		UserSvc:        usrSvc,
		MembershipSvc:  memSvc,
		ReviewerSvc:    revSvc,
		CompanySvc:     compSvc,
		FinanceSvc:     finSvc,
	})
	if err != nil {
		log.Fatalf("setting up server: %v", err)
	}

	os.Exit(m.Run())
}

// resetDB empties the store and the recorded side effects.
func resetDB() {
	db.Reset()
	events.Reset()
	emailsvc.ClearSentMessages()
}
