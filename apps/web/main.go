package main

import (
	"context"
	_ "expvar" // Register the expvar handlers
	"log"
	"net/http"
	_ "net/http/pprof" // Register the pprof handlers
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/learnlog/apps/web/echo"
	"github.com/trezcool/learnlog/core"
	"github.com/trezcool/learnlog/core/learning"
	"github.com/trezcool/learnlog/core/user"
	"github.com/trezcool/learnlog/services/apiclient"
	"github.com/trezcool/learnlog/services/logger"
	"github.com/trezcool/learnlog/storage/sessionstore"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "dev"

func main() {
	if err := run(); err != nil {
		log.Println("error:", err)
		os.Exit(1)
	}
}

func run() error {
	conf := core.NewConfig()
	if conf.Build == "dev" {
		conf.Build = build
	}

	// set up loggers
	stdLogger := log.New(os.Stdout, "WEB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	appLogger := logsvc.NewRollbarLogger(stdLogger, conf)
	appLogger.Enable(!conf.Debug && conf.RollbarToken != "")

	// set up validation
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	learning.InitValidators(validate, translator)

	// set up session store
	store, closeStore, err := sessionstore.New(conf, appLogger)
	if err != nil {
		return errors.Wrap(err, "setting up session store")
	}
	defer func() {
		if err := closeStore(); err != nil {
			stdLogger.Printf("closing session store: %v", err)
		}
	}()

	app := echoweb.NewServer(echoweb.Deps{
		Conf:       conf,
		Logger:     appLogger,
		Store:      store,
		Backend:    apiclient.New(conf.Backend.BaseURL, conf.Backend.Timeout),
		Validate:   validate,
		Translator: translator,
	})

	// start debug service
	// /debug/pprof - added to the default mux by importing the net/http/pprof package.
	// /debug/vars - added to the default mux by importing the expvar package.
	// /metrics - the web server's prometheus registry.
	http.DefaultServeMux.Handle("/metrics", app.Metrics())
	go func() {
		stdLogger.Printf("main: debug service listening on %s", conf.Server.DebugAddress)
		if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
			stdLogger.Printf("main: debug service closed: %v", err)
		}
	}()

	// start web server
	stdLogger.Printf("main: %s (%s) listening on %s, backend %s", conf.AppName, conf.Build, conf.Server.Address, conf.Backend.BaseURL)
	go app.Start()

	// blocking main and waiting for shutdown.
	select {
	case err := <-app.Errors():
		return errors.Wrap(err, "server error")

	case sig := <-app.ShutdownSignal():
		stdLogger.Printf("main: %v: start shutdown", sig)

		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load.
		if err := app.Shutdown(ctx); err != nil {
			stdLogger.Printf("main: graceful shutdown did not complete in %v: %v", conf.Server.ShutdownTimeout, err)
			if err := app.Close(); err != nil {
				return errors.Wrap(err, "could not stop server gracefully")
			}
		}
		stdLogger.Printf("main: %v: completed shutdown", sig)
	}
	return nil
}
