// Command lnrouted is the daemon entry point of the payment-routing core,
// mirroring lnd.go's top-level wiring of its subsystems: it loads the
// RouterConfig, installs loggers for the routing, fund, and accelerator
// packages, and builds the shared Coster from the config. It starts no
// refresher, diversity engine, or funding orchestrator.
package main

import (
	"fmt"
	"os"

	"github.com/lightningnetwork/lnroute/accelerator"
	"github.com/lightningnetwork/lnroute/fund"
	"github.com/lightningnetwork/lnroute/routing"
)

// lnroutedMain is the true entry point. A defer created here runs even
// if a later os.Exit short-circuits main, which is why lndMain exists as
// a separate function in the teacher as well.
func lnroutedMain() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("unable to load config: %w", err)
	}

	backend := newNullLogBackend()
	routing.UseLogger(backend.Logger("RTNG"))
	fund.UseLogger(backend.Logger("FUND"))
	accelerator.UseLogger(backend.Logger("ACCL"))

	// cfg is established once here. Of its startup-scoped parameters,
	// only the Coster the refresher and every pathfinder share is built
	// in this process; the large-channel ceiling the funding
	// orchestrator validates destinations against is only printed, as
	// no Orchestrator is constructed here. A real
	// deployment also injects a live Graph, PeerClient, Wallet, and
	// ChainBackend here (each an out-of-scope collaborator per section
	// 6) and starts serving the CLI surface of cmd/lnroutectl over
	// whatever transport the embedding daemon provides. Transport is
	// explicitly out of scope for this module, so lnrouted's job ends
	// at wiring.
	coster := routing.NewCosterFromConfig(cfg)

	fmt.Printf("lnrouted: routing core initialized (sample_amount=%d risk_factor=%.2f large_channel_limit=%d defer_time=%s)\n",
		coster.SampleAmount, coster.RiskFactor, cfg.LargeChannelLimit, cfg.DeferTime)

	return nil
}

func main() {
	if err := lnroutedMain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
