// Command demo runs the full detection pipeline offline: it seeds an
// in-memory store, replays an attack against a demo user, and prints the
// evaluation. Useful as a smoke check without starting the API server.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/zerotrust/platform/internal/demo"
	"github.com/zerotrust/platform/internal/docstore"
	"github.com/zerotrust/platform/internal/domain"
	"github.com/zerotrust/platform/internal/risk"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	db := docstore.New()
	for _, name := range domain.AllCollections {
		db.CreateCollection(name)
	}

	if err := demo.NewSeeder(db, logger).Seed(); err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}

	evaluator := risk.NewEvaluator(db, nil, nil, nil, logger)

	target := ""
	if len(os.Args) > 1 {
		target = os.Args[1]
	}
	result, err := demo.SimulateAttack(context.Background(), db, evaluator, target)
	if err != nil {
		logger.Error("simulation failed", "error", err)
		os.Exit(1)
	}

	stats := risk.ComputeDashboard(db)

	out := map[string]any{
		"simulation": result,
		"dashboard":  stats,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("encode output", "error", err)
		os.Exit(1)
	}
}
