package spawn_test

import (
	"testing"

	"github.com/ovis-hpc/maestro/internal/spawn"
	"github.com/ovis-hpc/maestro/internal/topology"
	"github.com/stretchr/testify/assert"
)

func TestCommandLine(t *testing.T) {
	ast := assert.New(t)
	host := &topology.Host{
		Name: "agg-1",
		Addr: "10.0.0.1",
		Port: 10001,
		Xprt: "sock",
		Auth: topology.Auth{Name: "munge"},
	}
	argv := spawn.CommandLine(host, spawn.Options{LogDir: "log", Memory: "2g"})
	ast.Equal([]string{
		"ldmsd",
		"-x", "sock:10001",
		"-a", "munge",
		"-l", "log/agg-1.log",
		"-m", "2g",
		"-r", "log/agg-1.pid",
	}, argv)
}

func TestCommandLineDefaultAuth(t *testing.T) {
	ast := assert.New(t)
	host := &topology.Host{Name: "agg-2", Xprt: "sock", Port: 10002}
	argv := spawn.CommandLine(host, spawn.DefaultOptions())
	ast.Contains(argv, "none")
}
