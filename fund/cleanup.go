package fund

import (
	"context"

	"github.com/lightningnetwork/lnroute/spark"
)

// cleanup runs on every exit path of Run -- success or failure -- before
// the caller sees a reply, per section 4.7's cleanup step and section
// 9's tal-destructor analogy: a scope guard bound to the command.
//
// It discards any still-reserved txid and cancels any destination left
// in Started (never one already Done, and never one that failed before
// ever starting). Cleanup operations are themselves sparked in parallel,
// and running cleanup twice is a no-op the second time (section 8's
// cleanup-idempotence property), since every guarded resource clears its
// own handle once released.
func (o *Orchestrator) cleanup(sc *spark.Command, cmd *Command) {
	cleanupCmd := spark.NewCommand(sc.Context())
	defer cleanupCmd.Finish()

	var sparks []*spark.Spark

	if cmd.CurrentTxid != nil {
		txid := *cmd.CurrentTxid
		cmd.CurrentTxid = nil

		sparks = append(sparks, spark.StartSpark(cleanupCmd, func(ctx context.Context) error {
			if err := o.wallet.TxDiscard(ctx, txid); err != nil {
				log.Errorf("cleanup: unable to discard txid %v: %v", txid, err)
			}
			return nil
		}))
	}

	for _, d := range cmd.Destinations {
		if d.State != Started {
			continue
		}
		d := d

		sparks = append(sparks, spark.StartSpark(cleanupCmd, func(ctx context.Context) error {
			if err := o.peers.FundChannelCancel(ctx, d.PeerID); err != nil {
				log.Errorf("cleanup: unable to cancel destination %v: %v", d.PeerID, err)
			}
			// Marking cancelled here (rather than leaving it
			// Started) is what makes a second cleanup() call a
			// no-op: the Started check above will no longer match.
			d.State = StartFailed
			return nil
		}))
	}

	spark.WaitAllSparks(cleanupCmd, sparks, nil)
}
