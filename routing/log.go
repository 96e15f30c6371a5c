package routing

import "github.com/btcsuite/btclog"

// log is the package-scoped logger used by the DHC, its refresher, the
// pathfinder, and the diversity engine. It's set to a no-op backend until
// UseLogger is called, following the convention every lnd subsystem uses.
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by this package. This
// mirrors the pattern in the teacher's subsystems, where the top-level
// daemon wires a shared backend into every package at startup.
func UseLogger(logger btclog.Logger) {
	log = logger
}
