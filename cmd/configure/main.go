// configure is the configure-once entry point: it
// loads a declarative cluster description, validates it, and pushes it
// into the datastore as a single atomic commit, then exits.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/ovis-hpc/maestro/internal/control"
	"github.com/ovis-hpc/maestro/internal/descriptor"
	"github.com/ovis-hpc/maestro/internal/kv"
	"github.com/ovis-hpc/maestro/internal/logging"
)

func wallClockSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "configure: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var clusterFile, descriptionFile, prefix string
	var version int

	flags := pflag.NewFlagSet("configure", pflag.ContinueOnError)
	flags.StringVar(&clusterFile, "cluster", "", "datastore members file (required)")
	flags.StringVar(&descriptionFile, "ldms_config", "", "declarative cluster description (required)")
	flags.StringVar(&prefix, "prefix", "", "datastore key prefix / cluster name (required)")
	flags.IntVar(&version, "version", 4, "output dialect: 4 or 5")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	if clusterFile == "" || descriptionFile == "" || prefix == "" {
		return fmt.Errorf("--cluster, --ldms_config and --prefix are required")
	}
	if version != 4 {
		return fmt.Errorf("output dialect %d is not implemented; only 4 is supported", version)
	}

	defer logging.Log().Sync() //nolint:errcheck

	clusterCfg, err := descriptor.LoadClusterConfig(clusterFile)
	if err != nil {
		return err
	}

	store, err := kv.Dial([]string{clusterCfg.PrimaryAddr()})
	if err != nil {
		return fmt.Errorf("connecting to datastore: %w", err)
	}
	defer store.Close()

	if err := control.Configure(context.Background(), store, descriptionFile, prefix, wallClockSeconds()); err != nil {
		return err
	}

	logging.Sugar().Infow("configuration saved", "prefix", prefix)
	return nil
}
