package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof" // /debug/pprof on the debug server

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/AnggaNaa/CRM-Citanusa-sub001/apps/api/echo"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/lead"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/project"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/report"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/user"
	appfs "github.com/AnggaNaa/CRM-Citanusa-sub001/fs"
	emailsvc "github.com/AnggaNaa/CRM-Citanusa-sub001/services/email"
	eventsvc "github.com/AnggaNaa/CRM-Citanusa-sub001/services/events"
	logsvc "github.com/AnggaNaa/CRM-Citanusa-sub001/services/logger"
	metricsvc "github.com/AnggaNaa/CRM-Citanusa-sub001/services/metrics"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/storage/database"
	sqlxrepos "github.com/AnggaNaa/CRM-Citanusa-sub001/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := newLogger("API", conf)
	defer logger.Sync()
	dbLogger := newLogger("DB", conf)
	defer dbLogger.Sync()

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	lead.InitValidators(validate, translator)
	project.InitValidators(validate, translator)

	core.ParseEmailTemplates(appfs.FS, logger, false)
	user.LoadCommonPasswords(appfs.FS, logger)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	metrics := metricsvc.New()

	var publisher lead.Publisher
	if conf.NatsURL != "" {
		nats, err := eventsvc.Connect(conf.NatsURL, conf.AppName, logger)
		if err != nil {
			logger.Fatal(fmt.Sprintf("connecting to nats: %v", err), err)
		}
		defer nats.Close()
		publisher = nats
	}

	usrRepo := sqlxrepos.NewUserRepository(db)
	projRepo := sqlxrepos.NewProjectRepository(db)

	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	leadSvc := lead.NewService(lead.ServiceDeps{
		DB:        db,
		Repo:      sqlxrepos.NewLeadRepository(db),
		UserSvc:   usrSvc,
		Units:     projRepo,
		MailSvc:   mailSvc,
		Publisher: publisher,
		Metrics:   metrics,
		Logger:    logger,
		Validate:  validate,
	})
	projSvc := project.NewService(projRepo, validate)
	reportSvc := report.NewService(sqlxrepos.NewReportRepository(db), usrSvc, projRepo)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - Prometheus scrape endpoint.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	http.Handle("/metrics", metrics.Handler())

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			UserSvc:    usrSvc,
			LeadSvc:    leadSvc,
			ProjectSvc: projSvc,
			ReportSvc:  reportSvc,
			Validate:   validate,
			Translator: translator,
			Metrics:    metrics,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func newLogger(name string, conf *core.Config) *logsvc.RollbarLogger {
	zl, err := logsvc.NewZapLogger(name, conf)
	if err != nil {
		panic(fmt.Sprintf("building %s logger: %v", name, err))
	}
	return logsvc.NewRollbarLogger(zl, conf)
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
