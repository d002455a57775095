// sentinelctl wires the governance pipeline, its collateral stores, and
// the three invocation surfaces: one root cobra command, flag-configured
// subcommands, graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sentinel-governance/sentinel/internal/audit"
	"github.com/sentinel-governance/sentinel/internal/config"
	"github.com/sentinel-governance/sentinel/internal/decision"
	"github.com/sentinel-governance/sentinel/internal/evaluator"
	"github.com/sentinel-governance/sentinel/internal/incident"
	"github.com/sentinel-governance/sentinel/internal/logging"
	"github.com/sentinel-governance/sentinel/internal/narrate"
	"github.com/sentinel-governance/sentinel/internal/pipeline"
	"github.com/sentinel-governance/sentinel/internal/policy"
	"github.com/sentinel-governance/sentinel/internal/registry"
	"github.com/sentinel-governance/sentinel/internal/surface"
	"github.com/sentinel-governance/sentinel/internal/topology"
)

func main() {
	args := logging.Init(os.Args[1:])

	var port int

	rootCmd := &cobra.Command{
		Use:   "sentinelctl",
		Short: "Sentinel governance engine: pipeline, audit log, and invocation surfaces",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start Surface A (streaming HTTP+SSE) and the dashboard REST surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}
	serveCmd.Flags().IntVarP(&port, "port", "p", 8585, "HTTP port for Surface A and the dashboard")

	stdioCmd := &cobra.Command{
		Use:   "stdio",
		Short: "Run Surface B: the newline-delimited JSON tool protocol over stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStdio()
		},
	}

	rootCmd.AddCommand(serveCmd, stdioCmd)
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// wired bundles the collateral objects every surface needs, built once
// from process configuration.
type wired struct {
	facade *surface.Facade
	cfg    *config.Config
}

func wire() (*wired, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	topo, polEval, incidents, err := buildStores(cfg)
	if err != nil {
		return nil, err
	}

	auditLog, agents, err := buildCollaterals(cfg)
	if err != nil {
		return nil, err
	}

	blastRadius := evaluator.NewBlastRadius(topo)
	financial := evaluator.NewFinancial(topo)
	historical := evaluator.NewHistorical(incidents)
	policyAdapter := evaluator.NewPolicy(polEval)

	engine := decision.New(cfg)

	var opts []pipeline.Option
	if cfg.AnthropicAPIKey != "" {
		opts = append(opts, pipeline.WithNarrator(narrate.New(cfg.AnthropicAPIKey, cfg.AnthropicModel)))
		slog.Info("LLM narration enabled", "model", cfg.AnthropicModel)
	}

	p := pipeline.New(blastRadius, policyAdapter, historical, financial, engine, auditLog, agents, cfg.EvaluatorTimeout, opts...)

	facade := surface.New(p, auditLog, topo, agents)
	return &wired{facade: facade, cfg: cfg}, nil
}

func buildStores(cfg *config.Config) (topology.Store, *policy.Evaluator, incident.Store, error) {
	if !cfg.UseLocalMocks {
		topo := topology.NewRemoteStore(cfg.TopologyURL)
		incidents := incident.NewRemoteStore(cfg.IncidentsURL)
		polStore, err := policy.LoadFile(cfg.PoliciesFile)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("loading policies: %w", err)
		}
		return topo, policy.NewEvaluator(polStore, topo), incidents, nil
	}

	topo, err := topology.NewFileStore(cfg.TopologyFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading topology: %w", err)
	}
	if err := topo.Watch(); err != nil {
		slog.Warn("topology hot-reload disabled", "error", err)
	}

	incidents, err := incident.NewFileStore(cfg.IncidentsFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading incidents: %w", err)
	}
	if err := incidents.Watch(); err != nil {
		slog.Warn("incidents hot-reload disabled", "error", err)
	}

	polStore, err := policy.LoadFile(cfg.PoliciesFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading policies: %w", err)
	}
	return topo, policy.NewEvaluator(polStore, topo), incidents, nil
}

func buildCollaterals(cfg *config.Config) (audit.Store, registry.Registry, error) {
	if !cfg.UseLocalMocks {
		auditLog, err := audit.NewSQLStore(cfg.AuditDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("opening audit log: %w", err)
		}
		// SQLRegistry is always SQLite-backed, independent of the audit
		// log's DSN scheme (which may be a postgres:// DSN in live mode).
		registryPath := filepath.Join(cfg.RegistryDir, "registry.db")
		agents, err := registry.NewSQLRegistry(registryPath, auditLog)
		if err != nil {
			return nil, nil, fmt.Errorf("opening agent registry: %w", err)
		}
		return auditLog, agents, nil
	}

	auditLog, err := audit.NewFileStore(cfg.AuditDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening audit log: %w", err)
	}
	agents, err := registry.NewFileRegistry(cfg.RegistryDir, auditLog)
	if err != nil {
		return nil, nil, fmt.Errorf("opening agent registry: %w", err)
	}
	return auditLog, agents, nil
}

func runServe(port int) error {
	w, err := wire()
	if err != nil {
		return err
	}

	httpSurface := surface.NewHTTPServer(w.facade, fmt.Sprintf("http://localhost:%d", port), w.cfg.MaxConcurrentEvaluations)
	dashboard := surface.NewDashboard(w.facade)

	mux := http.NewServeMux()
	mux.Handle("/.well-known/", httpSurface.Handler())
	mux.Handle("/api/", dashboard.Handler())
	mux.Handle("/", httpSurface.Handler())

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutCtx)
	}()

	slog.Info("sentinelctl serving", "port", port, "mode", modeLabel(w.cfg))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func runStdio() error {
	w, err := wire()
	if err != nil {
		return err
	}
	srv := surface.NewStdioServer(w.facade)
	return srv.Serve(context.Background(), os.Stdin, os.Stdout)
}

func modeLabel(cfg *config.Config) string {
	if cfg.UseLocalMocks {
		return "mock"
	}
	return "live"
}
