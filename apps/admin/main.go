package main

import (
	"context"
	"fmt"
	"os"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/report"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/user"
	emailsvc "github.com/AnggaNaa/CRM-Citanusa-sub001/services/email"
	logsvc "github.com/AnggaNaa/CRM-Citanusa-sub001/services/logger"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/storage/database"
	sqlxrepos "github.com/AnggaNaa/CRM-Citanusa-sub001/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZapLogger("ADMIN", conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "building logger: %v\n", err)
		os.Exit(1)
	}
	logger := logsvc.NewRollbarLogger(zl, conf)
	defer logger.Sync()

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	if err = db.Ping(); err != nil {
		logger.Fatal(fmt.Sprintf("pinging database: %v", err), err)
	}

	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, emailsvc.NewConsoleService(conf, logger), conf)

	// start CLI
	cli := &commandLine{
		db:      db,
		usrRepo: usrRepo,
		reports: report.NewService(sqlxrepos.NewReportRepository(db), usrSvc, sqlxrepos.NewProjectRepository(db)),
	}
	err = newRootCmd(cli).ExecuteContext(context.Background())
	_ = db.Close()
	if err != nil {
		logger.Error(fmt.Sprintf("admin: %v", err), err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		logger.Sync()
		os.Exit(1)
	}
}
