//go:build windows

package cmd

import (
	"os"
	"os/exec"
	"syscall"
)

// setDaemonAttrs leaves the background API server attached; Windows has no
// session detach for `serve start`.
func setDaemonAttrs(_ *exec.Cmd) {}

// shutdownSignals stop a foreground `serve` or `mcp` run. Only Ctrl-C is
// delivered on Windows.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// sigTERM is what `serve stop` sends first; Windows treats it as a kill.
func sigTERM() syscall.Signal { return syscall.SIGTERM }

// sigKILL ends a background server that missed the shutdown window.
func sigKILL() syscall.Signal { return syscall.SIGKILL }
