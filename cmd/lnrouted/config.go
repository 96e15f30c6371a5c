package main

import (
	"github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/lnroute/config"
)

// cliOptions are the process-level flags lnrouted accepts, parsed with
// the same go-flags library the teacher's lnd.go config loading uses.
type cliOptions struct {
	SampleAmountMsat uint64  `long:"sampleamount" description:"probe amount, in msat, used to cost channels for the DHC and pathfinding"`
	RiskFactor       float64 `long:"riskfactor" description:"annualized risk factor, as a percentage, trading fees against CLTV delay"`
}

// loadConfig parses process flags into a config.RouterConfig, falling
// back to config.Default() for anything left unset.
func loadConfig() (*config.RouterConfig, error) {
	var opts cliOptions
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return nil, err
		}
		return nil, err
	}

	cfg := config.Default()
	if opts.SampleAmountMsat != 0 {
		cfg.SampleAmount = opts.SampleAmountMsat
	}
	if opts.RiskFactor != 0 {
		cfg.RiskFactor = opts.RiskFactor
	}

	return cfg, nil
}
