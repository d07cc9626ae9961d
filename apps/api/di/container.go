// Package di builds the dependency graph of the API process.
package di

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/thesisflow/apps/api/echo"
	"github.com/trezcool/thesisflow/core"
	"github.com/trezcool/thesisflow/core/thesis"
	"github.com/trezcool/thesisflow/core/user"
	emailsvc "github.com/trezcool/thesisflow/services/email"
	logsvc "github.com/trezcool/thesisflow/services/logger"
	schedulersvc "github.com/trezcool/thesisflow/services/scheduler"
	"github.com/trezcool/thesisflow/storage/database"
	sqlxrepos "github.com/trezcool/thesisflow/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type serverParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	UserSvc    user.ServiceInterface
	ThesisSvc  thesis.ServiceInterface
	Validate   *validator.Validate
	Translator ut.Translator
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
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

// newDB creates, opens & migrates the database.
func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sql.DB, core.DB) {
	setUp := func() (*sql.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

func newSqlx(db *sql.DB, conf *core.Config) *sqlx.DB {
	return database.NewSqlx(db, conf)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// newValidate returns a validator with all the app validations registered.
func newValidate(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	thesis.InitValidators(validate, translator)
	return validate
}

func newThesisService(
	db core.DB,
	repo thesis.Repository,
	users user.ServiceInterface,
	mailSvc core.EmailService,
	logger core.Logger,
) thesis.ServiceInterface {
	return thesis.NewService(db, repo, users, mailSvc, logger)
}

func newScheduler(conf *core.Config, svc thesis.ServiceInterface, logger core.Logger) *schedulersvc.Scheduler {
	return schedulersvc.NewScheduler(conf, svc, logger)
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		UserSvc:    p.UserSvc,
		ThesisSvc:  p.ThesisSvc,
		Validate:   p.Validate,
		Translator: p.Translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newSqlx))
	must(c.Provide(newEmailService))
	must(c.Provide(sqlxrepos.NewUserRepository, dig.As(new(user.Repository))))
	must(c.Provide(sqlxrepos.NewThesisRepository, dig.As(new(thesis.Repository))))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidate))
	must(c.Provide(user.NewService))
	must(c.Provide(newThesisService))
	must(c.Provide(newScheduler))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
