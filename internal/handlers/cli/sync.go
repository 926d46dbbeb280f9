package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gabapcia/walletsync/internal/pkg/logger"
	"github.com/gabapcia/walletsync/internal/syncfleet"
	"github.com/gabapcia/walletsync/internal/txsync"

	"github.com/urfave/cli/v3"
)

// buildSessions constructs one validated session per requested chain.
func buildSessions(chains []string, wallet, rpcEndpoint string) ([]txsync.Session, error) {
	sessions := make([]txsync.Session, 0, len(chains))
	for _, chainID := range chains {
		session, err := txsync.NewSession(chainID, wallet, rpcEndpoint)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// syncCommand returns the CLI command that runs continuous wallet
// synchronization for one or more chains.
//
// Usage example:
//
//	walletsync sync --wallet 0xABC123... --chain ethereum --chain polygon
//
// The process runs until it receives an interrupt (SIGINT or SIGTERM).
// SIGUSR1 suspends all fetch timers (the backgrounding hook) and SIGUSR2
// resumes them.
func syncCommand(fleet syncfleet.Service) *cli.Command {
	return &cli.Command{
		Name:        "sync",
		Description: "Continuously synchronizes the wallet's transaction history on every given chain.",
		Usage:       "Runs until interrupted. SIGUSR1 pauses scheduled fetching, SIGUSR2 resumes it.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "wallet",
				Usage:    "Wallet address to synchronize",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:     "chain",
				Usage:    "Chain to synchronize (repeatable, e.g. ethereum, polygon)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "rpc",
				Usage: "Node RPC endpoint used as gas-price fallback",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			sessions, err := buildSessions(c.StringSlice("chain"), c.String("wallet"), c.String("rpc"))
			if err != nil {
				return err
			}

			if err := fleet.SetActiveChains(ctx, sessions); err != nil {
				return err
			}
			defer fleet.Close()

			quit := make(chan os.Signal, 1)
			defer close(quit)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			pause := make(chan os.Signal, 1)
			defer close(pause)
			signal.Notify(pause, syscall.SIGUSR1)

			resume := make(chan os.Signal, 1)
			defer close(resume)
			signal.Notify(resume, syscall.SIGUSR2)

			for {
				select {
				case <-quit:
					return nil
				case <-ctx.Done():
					return nil
				case <-pause:
					logger.Info(ctx, "suspending scheduled fetching")
					fleet.EnterBackground()
				case <-resume:
					logger.Info(ctx, "resuming scheduled fetching")
					fleet.EnterForeground()
				}
			}
		},
	}
}

// fetchCommand returns the CLI command that runs a single fetch cycle for
// one chain and exits.
//
// Usage example:
//
//	walletsync fetch --wallet 0xABC123... --chain ethereum
func fetchCommand(fleet syncfleet.Service) *cli.Command {
	return &cli.Command{
		Name:        "fetch",
		Description: "Runs one fetch cycle for a single chain and exits.",
		Usage:       "One-shot synchronization. Must provide both wallet and chain.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "wallet",
				Usage:    "Wallet address to synchronize",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "chain",
				Usage:    "Chain to fetch (e.g. ethereum)",
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

			return fleet.Fetch(ctx, chainID)
		},
	}
}
