package main

import (
	"log"
	"os"

	"github.com/seantiz/docgen/internal/api"
	"github.com/seantiz/docgen/internal/config"
	"github.com/seantiz/docgen/internal/coordinator"
	"github.com/seantiz/docgen/internal/engine"
	"github.com/seantiz/docgen/internal/generator"
	"github.com/seantiz/docgen/internal/model"
	"github.com/seantiz/docgen/internal/pending"
	"github.com/seantiz/docgen/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("docgen: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"service_type", cfg.ServiceType,
		"sync_timeout", cfg.SyncTimeout.String(),
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	gens := generator.NewRegistry()
	gens.Register(model.ServiceLocal, generator.NewTemplateGenerator())
	gens.Register(model.ServiceCloud, generator.NewCallbackGenerator("cloud", logger))
	gens.Register(model.ServicePrivate, generator.NewCallbackGenerator("private", logger))

	waits := pending.NewRegistry()

	eng := engine.NewEngine(db, gens, waits, logger)
	eng.SetTimeout(cfg.GenerationTimeout)

	coord := coordinator.New(db, waits, logger)

	srv := api.NewServer(cfg.ListenAddr, db, gens, eng, coord, logger)
	srv.SetSyncTimeout(cfg.SyncTimeout)
	srv.SetDefaultService(cfg.ServiceType)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
	eng.Wait()
}
