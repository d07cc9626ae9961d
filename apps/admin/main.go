package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/thesisflow/core"
	"github.com/trezcool/thesisflow/core/thesis"
	"github.com/trezcool/thesisflow/core/user"
	emailsvc "github.com/trezcool/thesisflow/services/email"
	logsvc "github.com/trezcool/thesisflow/services/logger"
	"github.com/trezcool/thesisflow/storage/database"
	sqlxrepos "github.com/trezcool/thesisflow/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	dbx := database.NewSqlx(db, conf)
	usrRepo := sqlxrepos.NewUserRepository(dbx)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	usrSvc := user.NewService(usrRepo)
	thesisSvc := thesis.NewService(db, sqlxrepos.NewThesisRepository(dbx), usrSvc, mailSvc, logger)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	thesis.InitValidators(validate, translator)

	core.ParseEmailTemplates(logger, false)
	user.LoadCommonPasswords(logger)

	// start CLI
	cli := commandLine{
		conf:       conf,
		db:         db,
		usrRepo:    usrRepo,
		thesisSvc:  thesisSvc,
		validate:   validate,
		translator: translator,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("\nerror: %s\n", err))
		}
		os.Exit(1)
	}
}
