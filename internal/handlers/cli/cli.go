// Package cli exposes the walletsync command-line interface. It wires
// user commands onto the fleet coordinator and the transaction store.
package cli

import (
	"context"
	"os"

	"github.com/gabapcia/walletsync/internal/syncfleet"
	"github.com/gabapcia/walletsync/internal/txstore"

	"github.com/urfave/cli/v3"
)

// Run initializes and executes the walletsync CLI application.
//
// It registers all available commands:
//
//   - `sync`: runs continuous synchronization for the given chains.
//   - `fetch`: runs one fetch cycle for a single chain and exits.
//   - `tx`: looks up one stored transaction by chain and hash.
//   - `send`: records a locally sent transaction as pending.
//   - `gas`: prints the current fee estimate for a chain.
//
// Parameters:
//   - ctx: context controlling the lifecycle of the CLI application.
//   - fleet: the fleet coordinator driving per-chain synchronization.
//   - store: the transaction store used by lookup commands.
func Run(ctx context.Context, fleet syncfleet.Service, store txstore.Service) error {
	app := &cli.Command{
		EnableShellCompletion: true,
		Name:                  "walletsync",
		Description:           "Command-line interface for multi-chain wallet transaction synchronization.",
		Usage:                 "walletsync [command] [flags]",
		Commands: []*cli.Command{
			syncCommand(fleet),
			fetchCommand(fleet),
			transactionCommand(store),
			sendTransactionCommand(fleet),
			gasPriceCommand(fleet),
		},
	}

	return app.Run(ctx, os.Args)
}
