// testserver starts a docgen API server with stub generators for E2E testing.
// Usage: go run ./cmd/testserver
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/seantiz/docgen/internal/api"
	"github.com/seantiz/docgen/internal/config"
	"github.com/seantiz/docgen/internal/coordinator"
	"github.com/seantiz/docgen/internal/engine"
	"github.com/seantiz/docgen/internal/generator"
	"github.com/seantiz/docgen/internal/model"
	"github.com/seantiz/docgen/internal/pending"
	"github.com/seantiz/docgen/internal/store"
)

// stubGenerator is a configurable mock generator for E2E tests.
type stubGenerator struct {
	name    string
	delay   time.Duration
	content []byte
}

func (s *stubGenerator) Generate(ctx context.Context, spec generator.Spec) (generator.Result, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return generator.Result{}, ctx.Err()
	}

	fileName := spec.FileName
	if fileName == "" {
		fileName = spec.Template + ".pdf"
	}
	return generator.Result{
		FileName:    fileName,
		ContentType: "application/pdf",
		Content:     s.content,
	}, nil
}

func (s *stubGenerator) Capabilities() generator.Capabilities {
	return generator.Capabilities{
		Name:           s.name,
		Templates:      []string{"invoice", "letter"},
		MaxConcurrency: 10,
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	db, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	gens := generator.NewRegistry()
	gens.Register(model.ServiceLocal, generator.NewTemplateGenerator())
	gens.Register(model.ServiceCloud, generator.NewCallbackGenerator("stub-cloud", logger))
	gens.Register(model.ServicePrivate, &stubGenerator{
		name:    "stub-private",
		delay:   500 * time.Millisecond,
		content: []byte("%PDF-1.7 stub document"),
	})

	waits := pending.NewRegistry()
	eng := engine.NewEngine(db, gens, waits, logger)
	coord := coordinator.New(db, waits, logger)

	srv := api.NewServer(cfg.ListenAddr, db, gens, eng, coord, logger)
	srv.SetSyncTimeout(cfg.SyncTimeout)
	srv.SetDefaultService(model.ServiceLocal)

	logger.Info("testserver: starting", "addr", cfg.ListenAddr)
	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
