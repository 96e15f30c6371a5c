package fund

import "github.com/btcsuite/btclog"

var log = btclog.Disabled

// UseLogger sets the package-wide logger, following the same convention
// as routing.UseLogger.
func UseLogger(logger btclog.Logger) {
	log = logger
}
