//go:build !windows

package cmd

import (
	"os"
	"os/exec"
	"syscall"
)

// setDaemonAttrs starts the background API server in a new session so it
// survives the shell that ran `serve start`.
func setDaemonAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// shutdownSignals stop a foreground `serve` or `mcp` run.
func shutdownSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}

// sigTERM asks a background server to drain and exit.
func sigTERM() syscall.Signal { return syscall.SIGTERM }

// sigKILL ends a background server that missed the shutdown window.
func sigKILL() syscall.Signal { return syscall.SIGKILL }
