// Command lnroutectl is the CLI surface of section 6: multifundchannel,
// multiwithdraw, multiconnect, permuteroute, and txaccelerate, mirroring
// the teacher's cmd/lncli in structure even though this reduced module
// has no gRPC transport of its own to dial (transport is an out-of-scope
// collaborator) -- each command prints the JSON request it would send and
// contacts no daemon.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[lnroutectl] %v\n", err)
	os.Exit(1)
}

func main() {
	app := cli.NewApp()
	app.Name = "lnroutectl"
	app.Version = "0.1"
	app.Usage = "control plane for the lnroute payment routing core"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rpcserver",
			Value: "localhost:10090",
			Usage: "host:port of the routing core, once a transport is wired in",
		},
	}
	app.Commands = []cli.Command{
		multiFundChannelCommand,
		multiWithdrawCommand,
		multiConnectCommand,
		permuteRouteCommand,
		txAccelerateCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}
