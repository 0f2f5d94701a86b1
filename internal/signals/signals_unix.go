//go:build unix

package signals

import (
	"os"
	"syscall"
)

// ShutdownSignals lists the signals the daemon treats as a request to stop:
// Ctrl-C and the SIGTERM that process managers send.
func ShutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}
