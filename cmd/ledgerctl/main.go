// Command ledgerctl is a small operator CLI exercising the ledger core's
// append, prove, and verify paths end to end. Grounded on the teacher's
// cmd/eth2030 entrypoint shape (flag parsing + subcommand dispatch +
// version flag) but rebuilt on github.com/urfave/cli/v2 instead of a
// hand-rolled flag.FlagSet wrapper, since the teacher already carries
// urfave/cli/v2 in its indirect dependency set.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/medledger/core/digest"
	"github.com/medledger/core/kv"
	"github.com/medledger/core/log"
	"github.com/medledger/core/merklelog"
	"github.com/medledger/core/metrics"
	"github.com/medledger/core/smt"
	"github.com/urfave/cli/v2"
)

var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ledgerctl:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "ledgerctl",
		Usage:   "operate a medledger core instance",
		Version: fmt.Sprintf("%s (commit %s)", version, commit),
		Commands: []*cli.Command{
			appendCommand(),
			verifyChainCommand(),
			smtSetCommand(),
			smtProveCommand(),
			metricsCommand(),
		},
	}
}

func appendCommand() *cli.Command {
	return &cli.Command{
		Name:      "append",
		Usage:     "append an entry to a log segment",
		ArgsUsage: "<segment-id> <actor> <action> <target> <result>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 5 {
				return fmt.Errorf("append requires 5 arguments, got %d", c.Args().Len())
			}
			seg := merklelog.NewSegment(c.Args().Get(0), kv.NewMemory(), merklelog.RetentionPolicy{}, log.Default())
			entry, err := seg.Append(context.Background(), c.Args().Get(1), c.Args().Get(2), c.Args().Get(3), c.Args().Get(4), 0)
			if err != nil {
				return err
			}
			fmt.Printf("appended sequence=%d entry_hash=%x\n", entry.Sequence, entry.EntryHash.Bytes())
			return nil
		},
	}
}

func verifyChainCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify-chain",
		Usage:     "append N synthetic entries to a fresh segment and verify its hash chain",
		ArgsUsage: "<segment-id> <n>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 2 {
				return fmt.Errorf("verify-chain requires a segment id and an entry count")
			}
			n, err := strconv.Atoi(c.Args().Get(1))
			if err != nil || n <= 0 {
				return fmt.Errorf("entry count must be a positive integer")
			}
			seg := merklelog.NewSegment(c.Args().Get(0), kv.NewMemory(), merklelog.RetentionPolicy{}, log.Default())
			for i := 0; i < n; i++ {
				if _, err := seg.Append(context.Background(), "ledgerctl", "demo-append", c.Args().Get(0), "ok", uint64(i)); err != nil {
					return err
				}
			}
			if err := seg.VerifyChain(1, seg.Size()); err != nil {
				return err
			}
			fmt.Printf("chain of %d entries verified\n", n)
			return nil
		},
	}
}

func smtSetCommand() *cli.Command {
	return &cli.Command{
		Name:      "smt-set",
		Usage:     "set a key/value pair in an in-memory sparse Merkle tree and print the new root",
		ArgsUsage: "<key> <value>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "depth", Value: 256, Usage: "tree depth"},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 2 {
				return fmt.Errorf("smt-set requires a key and a value")
			}
			tree, err := smt.New("cli", c.Int("depth"), kv.NewMemory())
			if err != nil {
				return err
			}
			key := digest.H([]byte(c.Args().Get(0)))
			root, err := tree.Update(context.Background(), key, []byte(c.Args().Get(1)))
			if err != nil {
				return err
			}
			fmt.Printf("root=%x\n", root.Bytes())
			return nil
		},
	}
}

func smtProveCommand() *cli.Command {
	return &cli.Command{
		Name:      "smt-prove",
		Usage:     "prove inclusion of a key after setting it, for a quick sanity check",
		ArgsUsage: "<key> <value>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "depth", Value: 256, Usage: "tree depth"},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 2 {
				return fmt.Errorf("smt-prove requires a key and a value")
			}
			tree, err := smt.New("cli", c.Int("depth"), kv.NewMemory())
			if err != nil {
				return err
			}
			key := digest.H([]byte(c.Args().Get(0)))
			if _, err := tree.Update(context.Background(), key, []byte(c.Args().Get(1))); err != nil {
				return err
			}
			proof, err := tree.Prove(context.Background(), key)
			if err != nil {
				return err
			}
			fmt.Printf("proof siblings=%d root=%x\n", len(proof.Siblings), tree.Root().Bytes())
			return nil
		},
	}
}

func metricsCommand() *cli.Command {
	return &cli.Command{
		Name:  "metrics",
		Usage: "serve the Prometheus /metrics endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":9090", Usage: "listen address"},
			&cli.StringFlag{Name: "namespace", Value: "medledger", Usage: "metric namespace prefix"},
		},
		Action: func(c *cli.Context) error {
			reg := metrics.NewRegistry(c.String("namespace"))
			fmt.Printf("serving metrics on %s/metrics\n", c.String("addr"))
			return http.ListenAndServe(c.String("addr"), reg.Handler())
		},
	}
}
