// Command raftnode runs a single participant of a raft cluster,
// exposing its RPC endpoint over HTTP and its metrics for prometheus
// scraping.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	raft "github.com/gitter-badger/raft"
	raftbolt "github.com/gitter-badger/raft/persistence/bolt"
	rafthttp "github.com/gitter-badger/raft/transport/http"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "raftnode",
		Short: "Run one node of a raft cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (env vars used if omitted)")
	return cmd
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("raftnode: load config: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("raftnode: build logger: %w", err)
	}
	defer logger.Sync()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("raftnode: create data dir: %w", err)
	}
	applyFunc := raftbolt.WithApplyFunc(func(index uint64, command []byte) error {
		logger.Sugar().Infow("applying command", "index", index, "command", string(command))
		return nil
	})
	backend, err := raftbolt.Open(filepath.Join(cfg.DataDir, "raft.db"), applyFunc)
	if err != nil {
		return fmt.Errorf("raftnode: open backend: %w", err)
	}
	defer backend.Close()

	registry := prometheus.NewRegistry()

	peers := make(map[string]raft.PeerTransport, len(cfg.Peers))
	for _, p := range cfg.Peers {
		peers[p.ID] = rafthttp.New(p.Addr, nil)
	}

	node, err := raft.NewNode(peers, raft.Options{
		ID:                 cfg.ID,
		MinElectionTimeout: cfg.MinElectionTimeout,
		MaxElectionTimeout: cfg.MaxElectionTimeout,
		HeartbeatInterval:  cfg.HeartbeatInterval,
		Persistence:        backend,
		Logger:             logger,
		Registerer:         registry,
	})
	if err != nil {
		return fmt.Errorf("raftnode: construct node: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	node.Start(ctx)
	defer node.Stop()

	mux := http.NewServeMux()
	mux.Handle("/raft/rpc", rafthttp.NewServer(node.HandleRPC))
	rpcServer := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}

	errCh := make(chan error, 2)
	go func() { errCh <- rpcServer.ListenAndServe() }()
	go func() { errCh <- metricsServer.ListenAndServe() }()

	logger.Sugar().Infow("raftnode started", "id", node.ID(), "listen", cfg.ListenAddr, "metrics", cfg.MetricsAddr)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Sugar().Errorw("server error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HeartbeatInterval*20)
	defer cancel()
	rpcServer.Shutdown(shutdownCtx)
	metricsServer.Shutdown(shutdownCtx)
	return nil
}
