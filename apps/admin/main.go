package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shuleapp/shule/assets"
	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/user"
	emailsvc "github.com/shuleapp/shule/services/email"
	logsvc "github.com/shuleapp/shule/services/logger"
	"github.com/shuleapp/shule/storage/database"
	"github.com/shuleapp/shule/storage/database/sqlxrepos"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	rl := logsvc.NewRollbarLogger(stdLogger, conf)
	rl.Enable(!conf.Debug)
	logger = rl

	errAndDie(user.LoadCommonPasswords(assets.FS))

	// set up DB
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	errAndDie(database.CreateIfNotExist(ctx, conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer func() { _ = db.Close() }()
	errAndDie(database.Ping(ctx, db))

	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		db:         db.DB,
		usrSvc:     user.NewService(sqlxrepos.NewUserRepository(db), emailsvc.NewConsoleService(conf), conf),
		validate:   validate,
		translator: translator,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("command failed: "+err.Error(), err)
		}
		_ = db.Close()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
