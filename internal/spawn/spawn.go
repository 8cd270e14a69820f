// Package spawn launches the external aggregator daemon subprocess
// when the monitor is run with --start-aggregators. Daemon
// spawning is an external collaborator's concern; this package's only
// job is building the correct command line and starting the process
// detached from the monitor's own lifecycle.
package spawn

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/ovis-hpc/maestro/internal/topology"
)

// Options carries the per-aggregator values the spawned daemon's
// command line needs, beyond what topology.Host/Aggregator already
// provide.
type Options struct {
	LogDir string // directory holding "<name>.log" and "<name>.pid"
	Memory string // ldmsd -m argument, e.g. "2g"
}

// DefaultOptions returns the standard defaults: log/ as the log directory,
// 2g as the daemon's memory region size.
func DefaultOptions() Options {
	return Options{LogDir: "log", Memory: "2g"}
}

// CommandLine builds the `ldmsd` argument list for one aggregator, per
// `ldmsd -x <xprt>:<port> -a <auth> -l log/<name>.log -m 2g -r
// log/<name>.pid`.
func CommandLine(host *topology.Host, opts Options) []string {
	auth := host.Auth.Name
	if auth == "" {
		auth = "none"
	}
	return []string{
		"ldmsd",
		"-x", fmt.Sprintf("%s:%d", host.Xprt, host.Port),
		"-a", auth,
		"-l", fmt.Sprintf("%s/%s.log", opts.LogDir, host.Name),
		"-m", opts.Memory,
		"-r", fmt.Sprintf("%s/%s.pid", opts.LogDir, host.Name),
	}
}

// Start launches the aggregator daemon for host as a detached
// subprocess, inheriting the monitor's environment but not its
// standard streams, and returns immediately without waiting for it to
// exit.
func Start(host *topology.Host, opts Options) (*os.Process, error) {
	if err := os.MkdirAll(opts.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("spawn: creating log dir %s: %w", opts.LogDir, err)
	}

	argv := CommandLine(host, opts)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn: starting %s for host %s: %w", argv[0], host.Name, err)
	}
	return cmd.Process, nil
}
