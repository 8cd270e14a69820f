package comm_test

import (
	"context"
	"testing"

	"github.com/ovis-hpc/maestro/internal/comm"
	"github.com/stretchr/testify/assert"
)

func TestFakeCommunicatorLifecycle(t *testing.T) {
	ast := assert.New(t)
	ctx := context.Background()
	fc := comm.NewFakeCommunicator()

	ast.Equal(comm.Disconnected, fc.State())
	ast.Nil(fc.Connect(ctx))
	ast.Equal(comm.Connected, fc.State())

	status, err := fc.DaemonStatus(ctx)
	ast.Nil(err)
	ast.Equal("stopped", status.State)

	fc.SetDaemonState("ready")
	status, err = fc.DaemonStatus(ctx)
	ast.Nil(err)
	ast.Equal("ready", status.State)
}

func TestFakeCommunicatorProducerIdempotence(t *testing.T) {
	ast := assert.New(t)
	ctx := context.Background()
	fc := comm.NewFakeCommunicator()
	ast.Nil(fc.Connect(ctx))

	code, err := fc.PrdcrAdd(ctx, "node1", "active", "sock", "10.0.0.1", 10001, 20_000_000)
	ast.Nil(err)
	ast.Equal(comm.OK, code)

	// adding the same producer again is the idempotent re-apply path.
	code, err = fc.PrdcrAdd(ctx, "node1", "active", "sock", "10.0.0.1", 10001, 20_000_000)
	ast.Nil(err)
	ast.Equal(comm.EEXIST, code)

	code, err = fc.PrdcrStart(ctx, "node1")
	ast.Nil(err)
	ast.Equal(comm.OK, code)

	list, err := fc.PrdcrStatus(ctx)
	ast.Nil(err)
	ast.Len(list, 1)
	ast.Equal("CONNECTED", list[0].State)
}

func TestFakeCommunicatorUpdaterDoubleStart(t *testing.T) {
	ast := assert.New(t)
	ctx := context.Background()
	fc := comm.NewFakeCommunicator()
	ast.Nil(fc.Connect(ctx))

	_, err := fc.UpdtrAdd(ctx, "u1", "1000000", "", "")
	ast.Nil(err)
	code, err := fc.UpdtrStart(ctx, "u1")
	ast.Nil(err)
	ast.Equal(comm.OK, code)

	code, err = fc.UpdtrStart(ctx, "u1")
	ast.Nil(err)
	ast.Equal(comm.EBUSY, code)
}

func TestFakeCommunicatorConnectFailure(t *testing.T) {
	ast := assert.New(t)
	ctx := context.Background()
	fc := comm.NewFakeCommunicator()
	fc.FailConnect(assert.AnError)

	err := fc.Connect(ctx)
	ast.NotNil(err)
	ast.Equal(comm.Disconnected, fc.State())
}
