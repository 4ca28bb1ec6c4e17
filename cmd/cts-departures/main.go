package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	lib "github.com/theoremus-urban-solutions/cts-departures"
	"github.com/theoremus-urban-solutions/cts-departures/config"
	"github.com/theoremus-urban-solutions/cts-departures/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to the daemon configuration (defaults to ./config.yml)")
	entryPath := flag.String("entry", "", "path to the configuration entry file (overrides the configured one)")
	runWizard := flag.Bool("wizard", false, "run the interactive stop-selection wizard and exit")
	flag.Parse()

	// .env is optional; a variable already set in the environment wins
	_ = godotenv.Load()

	cfg, err := config.LoadAppConfig(*configPath)
	if err != nil {
		panic(err)
	}
	logger := logging.Init(cfg.LogLevel)

	path := cfg.Storage.EntryPath
	if *entryPath != "" {
		path = *entryPath
	}
	store := config.NewFileStore(path)

	if *runWizard {
		if err := runWizardSession(cfg, store, logger); err != nil {
			logging.LogError(logger, "wizard session failed", err)
			os.Exit(1)
		}
		return
	}

	entry, err := store.Load()
	if err != nil {
		panic(err)
	}
	if entry == nil {
		fmt.Fprintln(os.Stderr, "no configuration entry found; run with -wizard to create one")
		os.Exit(1)
	}
	if token := os.Getenv("CTS_TOKEN"); token != "" {
		entry.APIToken = token
	}

	app, err := lib.NewApp(cfg, entry, logger)
	if err != nil {
		panic(err)
	}
	app.Monitor.Start()
	app.StartServer()
	app.HandleGracefulShutdown()
}
