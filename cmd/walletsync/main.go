package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gabapcia/walletsync/internal/config"
	"github.com/gabapcia/walletsync/internal/explorer"
	"github.com/gabapcia/walletsync/internal/handlers/cli"
	"github.com/gabapcia/walletsync/internal/infra/explorer/covalent"
	"github.com/gabapcia/walletsync/internal/infra/explorer/etherscan"
	"github.com/gabapcia/walletsync/internal/infra/explorer/oklink"
	"github.com/gabapcia/walletsync/internal/infra/node"
	"github.com/gabapcia/walletsync/internal/infra/storage/memory"
	"github.com/gabapcia/walletsync/internal/infra/storage/redis"
	"github.com/gabapcia/walletsync/internal/pkg/logger"
	"github.com/gabapcia/walletsync/internal/pkg/telemetry"
	transporthttp "github.com/gabapcia/walletsync/internal/pkg/transport/http"
	"github.com/gabapcia/walletsync/internal/pkg/transport/jsonrpc"
	"github.com/gabapcia/walletsync/internal/syncfleet"
	"github.com/gabapcia/walletsync/internal/tokenregistry"
	"github.com/gabapcia/walletsync/internal/txstore"
	"github.com/gabapcia/walletsync/internal/txsync"
)

// storageBackend is the union of every persistence port the application
// needs. Both the Redis and the in-memory adapter satisfy it.
type storageBackend interface {
	txstore.Storage
	txsync.CursorStorage
	tokenregistry.TokenStorage
}

// etherscanEndpoints maps chains onto their Etherscan-compatible API
// base URLs.
var etherscanEndpoints = map[string]string{
	"ethereum": "https://api.etherscan.io/api",
	"polygon":  "https://api.polygonscan.com/api",
	"bsc":      "https://api.bscscan.com/api",
}

// covalentChainNames maps chains onto Covalent's chain identifiers.
var covalentChainNames = map[string]string{
	"ethereum": "eth-mainnet",
	"polygon":  "matic-mainnet",
	"bsc":      "bsc-mainnet",
}

const covalentBaseURL = "https://api.covalenthq.com"

// oklinkChainShortNames maps chains onto Oklink's chainShortName values.
var oklinkChainShortNames = map[string]string{
	"ethereum": "ETH",
	"polygon":  "POLYGON",
	"bsc":      "BSC",
}

const oklinkBaseURL = "https://www.oklink.com"

// explorerClients builds the per-session explorer client factory. The
// provider family is chosen by which API key is configured, preferring
// Etherscan-compatible explorers for their wider endpoint coverage.
func explorerClients(cfg config.Config) syncfleet.ClientFactory {
	return func(session txsync.Session) (explorer.Client, error) {
		httpClient := transporthttp.NewClient()

		switch {
		case cfg.EtherscanAPIKey != "":
			baseURL, ok := etherscanEndpoints[session.ChainID]
			if !ok {
				return nil, fmt.Errorf("no etherscan endpoint known for chain %s", session.ChainID)
			}
			return etherscan.NewClient(httpClient, baseURL, cfg.EtherscanAPIKey), nil

		case cfg.CovalentAPIKey != "":
			chainName, ok := covalentChainNames[session.ChainID]
			if !ok {
				return nil, fmt.Errorf("no covalent chain name known for chain %s", session.ChainID)
			}
			return covalent.NewClient(httpClient, covalentBaseURL, chainName, cfg.CovalentAPIKey), nil

		case cfg.OklinkAPIKey != "":
			shortName, ok := oklinkChainShortNames[session.ChainID]
			if !ok {
				return nil, fmt.Errorf("no oklink chain short name known for chain %s", session.ChainID)
			}
			return oklink.NewClient(httpClient, oklinkBaseURL, shortName, cfg.OklinkAPIKey), nil
		}

		return nil, fmt.Errorf("no explorer api key configured")
	}
}

// feeSources builds the per-session node-RPC gas fallback, used for
// chains whose explorer has no gas endpoint.
func feeSources() syncfleet.FeeSourceFactory {
	return func(session txsync.Session) txsync.FeeSource {
		if session.RPCEndpoint == "" {
			return nil
		}

		conn := jsonrpc.NewClient(transporthttp.NewClient().StandardClient(), session.RPCEndpoint)
		return node.NewClient(conn)
	}
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	if cfg.TelemetryServiceName != "" {
		shutdown, err := telemetry.Init(ctx, cfg.TelemetryServiceName)
		if err != nil {
			fmt.Fprintln(os.Stderr, "telemetry initialization failed:", err)
			os.Exit(1)
		}
		defer shutdown(context.Background())
	}

	if err := logger.Init(logger.WithLevel(cfg.LogLevel)); err != nil {
		fmt.Fprintln(os.Stderr, "logger initialization failed:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var backend storageBackend = memory.New()
	if cfg.RedisAddr != "" {
		redisClient, err := redis.NewClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal(ctx, "redis connection failed", "error", err)
		}
		defer redisClient.Close()

		backend = redisClient
	}

	store := txstore.New(backend)
	defer store.Close()

	tokens := tokenregistry.New(backend)

	fleet := syncfleet.New(
		explorerClients(cfg),
		store,
		tokens,
		syncfleet.WithConcurrency(cfg.FetchConcurrency),
		syncfleet.WithAutoFetchDisabled(cfg.AutoFetchDisabled),
		syncfleet.WithFeeSourceFactory(feeSources()),
		syncfleet.WithProviderOptions(
			txsync.WithCursorStorage(backend),
			txsync.WithFetchInterval(cfg.FetchInterval),
		),
	)
	defer fleet.Close()

	if err := cli.Run(ctx, fleet, store); err != nil {
		logger.Fatal(ctx, "walletsync exited with error", "error", err)
	}
}
