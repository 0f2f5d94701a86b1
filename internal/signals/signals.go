//go:build !unix

package signals

import "os"

// ShutdownSignals lists the signals the daemon treats as a request to stop.
// Outside Unix, os.Interrupt is the only portable choice.
func ShutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
