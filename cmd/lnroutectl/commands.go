package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli"
)

// printJSON pretty-prints resp to stdout, matching the teacher's
// cmd/lncli convention of an indented JSON dump (four spaces per level)
// for command replies.
func printJSON(resp interface{}) {
	b, err := json.MarshalIndent(resp, "", "    ")
	if err != nil {
		fatal(err)
	}
	fmt.Fprintln(os.Stdout, string(b))
}

// destinationSpec is the CLI-parsed form of one multifundchannel /
// multiwithdraw destination, e.g. "02aabb...:100000" or "02aabb...:all".
type destinationSpec struct {
	ID     string
	Amount string
}

func parseDestinations(raw []string) ([]destinationSpec, error) {
	specs := make([]destinationSpec, 0, len(raw))
	for _, arg := range raw {
		parts := strings.SplitN(arg, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("destination %q must be id:amount", arg)
		}
		specs = append(specs, destinationSpec{ID: parts[0], Amount: parts[1]})
	}
	return specs, nil
}

var multiFundChannelCommand = cli.Command{
	Name:      "multifundchannel",
	Usage:     "open multiple channels via a single funding transaction",
	ArgsUsage: "id:amount [id:amount...]",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "feerate", Usage: "feerate in sat/vbyte, or empty for estimation"},
		cli.IntFlag{Name: "minconf", Value: 1, Usage: "minimum confirmations for inputs"},
	},
	Action: multiFundChannel,
}

func multiFundChannel(ctx *cli.Context) error {
	specs, err := parseDestinations(ctx.Args())
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		return cli.ShowCommandHelp(ctx, "multifundchannel")
	}

	req := map[string]interface{}{
		"destinations": specs,
		"feerate":      ctx.String("feerate"),
		"minconf":      ctx.Int("minconf"),
	}
	printJSON(req)

	renderDestinationTable(specs)
	return nil
}

// renderDestinationTable prints the destinations a multifundchannel call
// will target, using go-pretty the way a status-reporting command might
// render per-peer progress.
func renderDestinationTable(specs []destinationSpec) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"peer", "amount", "state"})
	for _, s := range specs {
		t.AppendRow(table.Row{s.ID, s.Amount, "not_started"})
	}
	t.Render()
}

var multiWithdrawCommand = cli.Command{
	Name:      "multiwithdraw",
	Usage:     "send to multiple outputs in a single transaction",
	ArgsUsage: "addr:amount [addr:amount...]",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "feerate"},
		cli.IntFlag{Name: "minconf", Value: 1},
	},
	Action: multiWithdraw,
}

func multiWithdraw(ctx *cli.Context) error {
	specs, err := parseDestinations(ctx.Args())
	if err != nil {
		return err
	}

	req := map[string]interface{}{
		"outputs": specs,
		"feerate": ctx.String("feerate"),
		"minconf": ctx.Int("minconf"),
	}
	printJSON(req)
	return nil
}

var multiConnectCommand = cli.Command{
	Name:      "multiconnect",
	Usage:     "connect to multiple peers in parallel",
	ArgsUsage: "id [id...]",
	Action:    multiConnect,
}

func multiConnect(ctx *cli.Context) error {
	ids := ctx.Args()
	if len(ids) == 0 {
		return cli.ShowCommandHelp(ctx, "multiconnect")
	}
	printJSON(map[string]interface{}{"id": []string(ids)})
	return nil
}

var permuteRouteCommand = cli.Command{
	Name:      "permuteroute",
	Usage:     "splice a two-hop detour around a failed hop of a route",
	ArgsUsage: "erring_index",
	Flags: []cli.Flag{
		cli.BoolFlag{Name: "nodefailure", Usage: "the failure was the node at erring_index, not its channel"},
		cli.StringFlag{Name: "route", Usage: "JSON-encoded route, as previously returned by getroute"},
	},
	Action: permuteRoute,
}

func permuteRoute(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "permuteroute")
	}
	erringIndex, err := strconv.Atoi(ctx.Args().First())
	if err != nil {
		return fmt.Errorf("erring_index must be an integer: %w", err)
	}

	req := map[string]interface{}{
		"route":        ctx.String("route"),
		"erring_index": erringIndex,
		"nodefailure":  ctx.Bool("nodefailure"),
	}
	printJSON(req)
	return nil
}

var txAccelerateCommand = cli.Command{
	Name:      "txaccelerate",
	Usage:     "accelerate confirmation of a transaction via CPFP fee bumps",
	ArgsUsage: "txid max_acceptable_fee",
	Flags: []cli.Flag{
		cli.Float64Flag{Name: "aggression", Value: 0.10},
	},
	Action: txAccelerate,
}

func txAccelerate(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return cli.ShowCommandHelp(ctx, "txaccelerate")
	}

	maxFee, err := strconv.ParseUint(ctx.Args().Get(1), 10, 64)
	if err != nil {
		return fmt.Errorf("max_acceptable_fee must be an integer: %w", err)
	}

	req := map[string]interface{}{
		"txid":                ctx.Args().First(),
		"max_acceptable_fee": maxFee,
		"aggression":          ctx.Float64("aggression"),
	}
	printJSON(req)
	return nil
}
