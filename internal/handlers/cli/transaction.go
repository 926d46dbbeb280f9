package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gabapcia/walletsync/internal/syncfleet"
	"github.com/gabapcia/walletsync/internal/txstore"
	"github.com/gabapcia/walletsync/internal/txsync"

	"github.com/urfave/cli/v3"
)

// transactionCommand returns the CLI command that looks up one stored
// transaction by chain and hash.
//
// Usage example:
//
//	walletsync tx --chain ethereum --hash 0xABC123...
func transactionCommand(store txstore.Service) *cli.Command {
	return &cli.Command{
		Name:        "tx",
		Description: "Looks up one stored transaction by chain and hash.",
		Usage:       "Prints the stored row as JSON. Must provide both chain and hash.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "chain",
				Usage:    "Chain the transaction belongs to (e.g. ethereum)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "hash",
				Usage:    "Transaction hash to look up",
				Required: true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			var (
				chainID = c.String("chain")
				hash    = c.String("hash")
			)

			tx, ok, err := store.Transaction(ctx, chainID, hash)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("transaction %s not found on chain %s", hash, chainID)
			}

			payload, err := json.MarshalIndent(tx, "", "  ")
			if err != nil {
				return err
			}

			fmt.Println(string(payload))
			return nil
		},
	}
}

// sendTransactionCommand returns the CLI command that records a locally
// sent transaction as pending, so it shows up in the store before any
// explorer reports it.
//
// Usage example:
//
//	walletsync send --chain ethereum --hash 0xABC123... --from 0xAAA... --to 0xBBB... --value 1000
func sendTransactionCommand(fleet syncfleet.Service) *cli.Command {
	return &cli.Command{
		Name:        "send",
		Description: "Records a locally sent transaction as pending until sync confirms it.",
		Usage:       "Optimistic insert. Must provide chain and hash.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "chain",
				Usage:    "Chain the transaction was sent on (e.g. ethereum)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "hash",
				Usage:    "Hash of the sent transaction",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "from",
				Usage: "Sender address",
			},
			&cli.StringFlag{
				Name:  "to",
				Usage: "Recipient address",
			},
			&cli.StringFlag{
				Name:  "value",
				Usage: "Native value in wei, decimal string",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return fleet.AddSentTransaction(ctx, txsync.Transaction{
				Hash:      c.String("hash"),
				ChainID:   c.String("chain"),
				Type:      txsync.TypeTransfer,
				Timestamp: time.Now().UTC(),
				From:      c.String("from"),
				To:        c.String("to"),
				Value:     c.String("value"),
				Status:    txsync.StatusPending,
			})
		},
	}
}

// gasPriceCommand returns the CLI command that prints the current fee
// estimate for a chain.
//
// Usage example:
//
//	walletsync gas --wallet 0xABC123... --chain ethereum
func gasPriceCommand(fleet syncfleet.Service) *cli.Command {
	return &cli.Command{
		Name:        "gas",
		Description: "Prints the chain's current gas-price estimate.",
		Usage:       "Queries the chain's explorer, falling back to the node RPC when needed.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "wallet",
				Usage:    "Wallet address the session is scoped to",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "chain",
				Usage:    "Chain to query (e.g. ethereum)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "rpc",
				Usage: "Node RPC endpoint used as gas-price fallback",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			chainID := c.String("chain")

			sessions, err := buildSessions([]string{chainID}, c.String("wallet"), c.String("rpc"))
			if err != nil {
				return err
			}

			if err := fleet.SetActiveChains(ctx, sessions); err != nil {
				return err
			}
			defer fleet.Close()

			price, err := fleet.GasPrice(ctx, chainID)
			if err != nil {
				return err
			}

			payload, err := json.MarshalIndent(price, "", "  ")
			if err != nil {
				return err
			}

			fmt.Println(string(payload))
			return nil
		},
	}
}
