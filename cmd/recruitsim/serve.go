package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/patria-grande/internal/api"
	"github.com/talgya/patria-grande/internal/config"
	"github.com/talgya/patria-grande/internal/economy"
	"github.com/talgya/patria-grande/internal/engine"
	"github.com/talgya/patria-grande/internal/logging"
	"github.com/talgya/patria-grande/internal/persistence"
	"github.com/talgya/patria-grande/internal/recruitment"
	"github.com/talgya/patria-grande/internal/social"
	"github.com/talgya/patria-grande/internal/world"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the simulation and serve the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if _, err := logging.Setup(cfg.LogFormat, cfg.LogLevel); err != nil {
		return err
	}

	slog.Info("Patria Grande recruitment simulation", "seed", cfg.Seed, "tick_interval", cfg.TickInterval)

	// ── Rules ─────────────────────────────────────────────────────────
	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		return err
	}
	catalog, err := recruitment.NewCatalog(rules)
	if err != nil {
		return fmt.Errorf("recruitment rules: %w", err)
	}

	// ── Journal ───────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("journal opened", "path", cfg.DBPath)

	// ── Campaign ──────────────────────────────────────────────────────
	treasury := economy.NewTreasury(cfg.StartingFunds)
	for _, f := range social.Factions {
		treasury.SetIncome(f, cfg.HourlyIncome)
	}

	opts := []engine.Option{engine.WithListener(db)}
	if cfg.GridIndex {
		opts = append(opts, engine.WithGridIndex(2*recruitment.DefaultRadius))
	}
	sim := engine.NewSimulation(catalog, treasury, opts...)
	if err := sim.Seed(engine.SeedConfig{
		TestTowns:        true,
		TestDivisions:    true,
		ExtraSettlements: cfg.ExtraTowns,
		Placement:        world.DefaultPlacementConfig(cfg.Seed),
	}); err != nil {
		return err
	}
	if err := db.SaveMeta("seed", strconv.FormatInt(cfg.Seed, 10)); err != nil {
		return fmt.Errorf("save seed: %w", err)
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine(cfg.TickInterval)
	eng.OnTick = sim.TickMinute
	eng.OnHour = func(tick uint64) {
		sim.TickHour(tick)
		if err := db.Flush(tick); err != nil {
			slog.Error("journal flush failed", "tick", tick, "error", err)
		}
	}
	eng.OnDay = sim.TickDay

	// ── HTTP API ──────────────────────────────────────────────────────
	server := (&api.Server{
		Sim:         sim,
		Journal:     db,
		Port:        cfg.APIPort,
		AdminKey:    cfg.AdminKey,
		RecruitRate: cfg.RecruitLimit,
		TrustProxy:  cfg.TrustProxy,
		CORSOrigins: cfg.CORSOrigins,
	}).Start()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("Starting simulation... (Ctrl+C to stop)")
	eng.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}

	// Final flush on shutdown.
	if err := db.Flush(eng.Tick); err != nil {
		return fmt.Errorf("final journal flush: %w", err)
	}
	slog.Info("simulation stopped", "tick", eng.Tick, "sim_time", engine.SimTime(eng.Tick))
	return nil
}
