package control_test

import (
	"context"
	"testing"
	"time"

	"github.com/ovis-hpc/maestro/internal/comm"
	"github.com/ovis-hpc/maestro/internal/control"
	"github.com/ovis-hpc/maestro/internal/kv"
	"github.com/ovis-hpc/maestro/internal/topology"
	"github.com/stretchr/testify/assert"
)

func sampleDescriptionTree() map[string]interface{} {
	return map[string]interface{}{
		"hosts": []interface{}{
			map[string]interface{}{
				"names": "agg-1",
				"hosts": "agg-1",
				"ports": "10001",
			},
		},
		"aggregators": []interface{}{
			map[string]interface{}{
				"names": "agg-1",
				"group": "L1",
				"hosts": "agg-1",
			},
		},
	}
}

func TestConfigureWritesAndValidates(t *testing.T) {
	ast := assert.New(t)
	ctx := context.Background()
	store := kv.NewMemStore()

	ast.Nil(kv.SaveConfig(ctx, store, "cluster1", sampleDescriptionTree(), 1))

	tree, err := kv.LoadConfig(ctx, store, "cluster1")
	ast.Nil(err)
	ds, err := topology.Build(tree)
	ast.Nil(err)
	ast.Contains(ds.AggregatorsByGroup, "L1")
}

func TestSupervisorDialsAggregatorsOnReload(t *testing.T) {
	ast := assert.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := kv.NewMemStore()
	ast.Nil(kv.SaveConfig(ctx, store, "cluster1", sampleDescriptionTree(), 1))

	dialed := make(map[string]*comm.FakeCommunicator)
	dialer := func(host *topology.Host) comm.Communicator {
		fc := comm.NewFakeCommunicator()
		dialed[host.Name] = fc
		return fc
	}

	sup := control.NewSupervisor(store, "cluster1", false, dialer)
	runCtx, runCancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer runCancel()
	_ = sup.Run(runCtx)

	ast.Contains(dialed, "agg-1")
	ast.Equal(comm.Connected, dialed["agg-1"].State())
}
