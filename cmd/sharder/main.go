// Package main implements the container-sharder daemon: a per-node
// control loop that audits every local container database, splits
// overgrown ones into shard containers along a distributed prefix
// trie, relocates misplaced objects to their authoritative shard, and
// replicates the resulting databases.
//
// Architecture:
//
//	┌───────────────────────────────────────────────┐
//	│                  sharder                        │
//	├───────────────────────────────────────────────┤
//	│  sharder.Daemon  - jitter + periodic Pass loop  │
//	│  sharder.Pass     - per-container audit/split   │
//	│  sharder.DeviceSource - walks devices for DBs   │
//	├───────────────────────────────────────────────┤
//	│  Components:                                    │
//	│    trie.ShardTrie / CountingTrie - C1/C2        │
//	│    resolver.Resolve             - C3            │
//	│    broker.Factory                - C4           │
//	│    ring.StaticRing               - placement    │
//	│    replication.LocalCopyPusher   - C4 transport │
//	│    internalclient.Client         - outbound HTTP│
//	│    telemetry.Metrics/NewLogger   - /metrics, log│
//	└───────────────────────────────────────────────┘
//
// Example usage:
//
//	# Run continuously, one pass every interval
//	sharder --devices /srv/node --shard-group-count 500000
//
//	# Run exactly one pass and exit
//	sharder once --devices /srv/node
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/dreamware/shardctl/internal/broker"
	"github.com/dreamware/shardctl/internal/config"
	"github.com/dreamware/shardctl/internal/internalclient"
	"github.com/dreamware/shardctl/internal/replication"
	"github.com/dreamware/shardctl/internal/ring"
	"github.com/dreamware/shardctl/internal/sharder"
	"github.com/dreamware/shardctl/internal/telemetry"
)

// partitionPower and maxReplicas are fixed for the reference
// single-node StaticRing: StaticRing's doc notes a production deployment
// would instead load a ring file built by an external builder tool,
// which this daemon treats as a narrow external collaborator rather
// than something it builds itself.
const (
	partitionPower = 10
	maxReplicas    = 3
)

func main() {
	app := &cli.App{
		Name:  "sharder",
		Usage: "container sharding daemon",
		Flags: config.Flags(),
		Action: func(c *cli.Context) error {
			return run(c, false)
		},
		Commands: []*cli.Command{
			{
				Name:  "once",
				Usage: "run exactly one pass and exit",
				Flags: config.Flags(),
				Action: func(c *cli.Context) error {
					return run(c, true)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "sharder:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context, once bool) error {
	cfg := config.FromContext(c)

	logger, err := telemetry.NewLogger(os.Getenv("SHARDER_LOG_LEVEL"))
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if _, err := config.LoadClientConfig(cfg.InternalClientConf); err != nil {
		return fmt.Errorf("load internal client conf: %w", err)
	}

	nodeID, err := os.Hostname()
	if err != nil {
		return fmt.Errorf("resolve local node id: %w", err)
	}

	devices, err := discoverDevices(cfg.Devices, nodeID)
	if err != nil {
		return fmt.Errorf("discover devices under %s: %w", cfg.Devices, err)
	}

	replicas := maxReplicas
	if len(devices) < replicas {
		replicas = len(devices)
	}
	r := ring.NewStaticRing(partitionPower, replicas, devices)

	factory := broker.NewFactory(nodeID, r)
	pusher := replication.LocalCopyPusher{}
	client := internalclient.New(
		fmt.Sprintf("http://127.0.0.1:%d", cfg.BindPort),
		cfg.ConnTimeout, cfg.NodeTimeout, cfg.RequestTries,
	)
	metrics := telemetry.NewMetrics()

	pass := &sharder.Pass{
		LocalNodeID: nodeID,
		Ring:        r,
		Factory:     factory,
		Pusher:      pusher,
		Client:      client,
		GroupCount:  cfg.ShardGroupCount,
		Concurrency: cfg.Concurrency,
		Logger:      logger,
		Metrics:     metrics,
	}

	source := &sharder.DeviceSource{
		Root:       cfg.Devices,
		MountCheck: cfg.MountCheck,
		Logger:     logger,
	}

	daemon := &sharder.Daemon{
		Pass:           pass,
		Source:         source,
		Interval:       cfg.Interval,
		ReconCachePath: cfg.ReconCachePath,
		Logger:         logger,
		Metrics:        metrics,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if once {
		return daemon.RunOnce(ctx)
	}

	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.BindPort+1),
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("sharder metrics listening", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("sharder metrics server failed", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("sharder metrics server shutdown error", zap.Error(err))
		}
	}()

	err = daemon.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("sharder stopped")
	return nil
}

// discoverDevices lists the top-level directories under root as this
// node's ring devices, mirroring the layout sharder.DeviceSource walks
// for container databases (<device>/containers/**/*.db).
func discoverDevices(root, nodeID string) ([]ring.Device, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var devices []ring.Device
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		devices = append(devices, ring.Device{
			ID:     e.Name(),
			NodeID: nodeID,
			Path:   filepath.Join(root, e.Name()),
		})
	}
	return devices, nil
}
