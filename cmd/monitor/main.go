// monitor is the monitor-forever entry point: it loads
// the current DesiredState from the datastore, optionally spawns
// aggregator daemons, and drives the Reconciler until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ovis-hpc/maestro/internal/comm"
	"github.com/ovis-hpc/maestro/internal/control"
	"github.com/ovis-hpc/maestro/internal/descriptor"
	"github.com/ovis-hpc/maestro/internal/kv"
	"github.com/ovis-hpc/maestro/internal/logging"
	"github.com/ovis-hpc/maestro/internal/topology"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "monitor: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var clusterFile, prefix string
	var startAggregators, dump bool
	var version int

	flags := pflag.NewFlagSet("monitor", pflag.ContinueOnError)
	flags.StringVar(&clusterFile, "cluster", "", "datastore members file (required)")
	flags.StringVar(&prefix, "prefix", "", "datastore key prefix / cluster name (required)")
	flags.BoolVar(&startAggregators, "start-aggregators", false, "spawn aggregator daemons")
	flags.BoolVar(&dump, "dump", false, "reserved")
	flags.IntVar(&version, "version", 4, "output dialect: 4 or 5")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	if clusterFile == "" || prefix == "" {
		return fmt.Errorf("--cluster and --prefix are required")
	}
	if version != 4 {
		return fmt.Errorf("output dialect %d is not implemented; only 4 is supported", version)
	}

	log := logging.Log()
	defer log.Sync() //nolint:errcheck

	clusterCfg, err := descriptor.LoadClusterConfig(clusterFile)
	if err != nil {
		return err
	}

	store, err := kv.Dial([]string{clusterCfg.PrimaryAddr()})
	if err != nil {
		return fmt.Errorf("connecting to datastore: %w", err)
	}
	defer store.Close()

	dialer := func(host *topology.Host) comm.Communicator {
		return comm.NewGrpcCommunicator(fmt.Sprintf("%s:%d", host.Addr, host.Port))
	}
	sup := control.NewSupervisor(store, prefix, startAggregators, dialer)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down monitor", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("monitor starting", zap.String("prefix", prefix), zap.Bool("start_aggregators", startAggregators))
	return sup.Run(ctx)
}
