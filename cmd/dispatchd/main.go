// Command dispatchd runs the render-farm job dispatcher server: it loads
// configuration, restores (or initializes) the dispatch tree from its
// persistence backend, and serves the HTTP control API until signaled to
// stop. main() stays a thin, deterministic boundary around internal
// packages, with a signal-driven shutdown sequence (cklxx-elephant.ai's
// cmd/cobra_cli.go signal.Notify(os.Interrupt, syscall.SIGTERM) pattern).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"dispatchd/internal/assignment"
	"dispatchd/internal/config"
	"dispatchd/internal/dispatchloop"
	"dispatchd/internal/httpapi"
	"dispatchd/internal/logging"
	"dispatchd/internal/metrics"
	"dispatchd/internal/model"
	"dispatchd/internal/persistence"
	"dispatchd/internal/persistence/filebackend"
	"dispatchd/internal/persistence/postgres"
	"dispatchd/internal/persistence/ws"
	"dispatchd/internal/serverhome"
	"dispatchd/internal/workerclient"
)

func main() {
	configPath := flag.String("config", "", "path to a dispatchd config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("dispatchd: %w", err)
	}

	zapLog, log, err := logging.New()
	if err != nil {
		return fmt.Errorf("dispatchd: logging: %w", err)
	}
	defer zapLog.Sync()

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("dispatchd: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := store.Restore(ctx)
	if err != nil {
		return fmt.Errorf("dispatchd: restore: %w", err)
	}
	log.Printf("restored tree: %d folders, %d tasks, %d commands", len(tree.Folders), len(tree.Tasks), len(tree.Commands))

	if cfg.PoolsBackend == config.BackendFile {
		if err := loadFileTopology(cfg, tree); err != nil {
			return fmt.Errorf("dispatchd: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	metricsReg := metrics.New(reg)

	licences := assignment.NewLicenceTracker(cfg.LicenceCapacity)
	dispatcher := workerclient.NewHTTPDispatcher()
	assignLoop := assignment.NewLoop(assignment.Config{
		HeartbeatTimeout: cfg.HeartbeatTimeout,
		KillGrace:        cfg.CancelGrace,
		CommandTimeout:   cfg.CommandTimeout,
	}, dispatcher, nil, licences)

	loop := dispatchloop.New(tree, assignLoop, store, metricsReg, log, dispatchloop.Config{
		AssignTickInterval:  cfg.AssignTickInterval,
		PersistTickInterval: cfg.PersistTickInterval,
		SweepInterval:       cfg.SweepInterval,
		CommandTimeout:      cfg.CommandTimeout,
	})

	server := &httpapi.Server{Loop: loop, Log: log, Registry: reg}
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: httpapi.NewRouter(server),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Printf("shutdown signal received")
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(ctx) }()
	go func() {
		log.Printf("listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		cancel()
		if err != nil {
			log.Printf("fatal: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := store.Flush(shutdownCtx, tree); err != nil {
		log.Printf("final flush: %v", err)
	}
	return nil
}

// openStore opens the dispatch tree's store. The flat-file backend only
// covers worker topology (loaded separately by loadFileTopology), so the
// db and file backends both open postgres for the tree. ws returns the
// stub store, whose every operation fails; config.Validate already
// rejects ws, so a loaded config never reaches that case.
func openStore(cfg *config.Config) (persistence.Store, error) {
	switch cfg.PoolsBackend {
	case config.BackendPostgres, config.BackendFile:
		return postgres.Connect(context.Background(), cfg.DatabaseURL)
	case config.BackendWS:
		return ws.New(), nil
	default:
		return nil, fmt.Errorf("unknown pools_backend_type %q", cfg.PoolsBackend)
	}
}

func loadFileTopology(cfg *config.Config, tree *model.Tree) error {
	home, err := serverhome.Ensure(cfg.ServerHome)
	if err != nil {
		return err
	}
	nodes, err := filebackend.LoadRenderNodes(home.PoolsDir + "/rendernodes.json")
	if err != nil {
		return err
	}
	for name, rn := range nodes {
		tree.RenderNodes[name] = rn
	}
	pools, err := filebackend.LoadPools(home.PoolsDir + "/pools.json")
	if err != nil {
		return err
	}
	for name, p := range pools {
		tree.Pools[name] = p
	}
	return nil
}
