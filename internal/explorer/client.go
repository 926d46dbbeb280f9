package explorer

import "context"

// Provider names an explorer protocol family.
type Provider string

const (
	ProviderEtherscan Provider = "etherscan"
	ProviderCovalent  Provider = "covalent"
	ProviderOklink    Provider = "oklink"
)

// Client is the contract every explorer adapter satisfies. All methods
// surface the typed errors declared in this package: DecodeError for
// malformed payloads, RequestError for non-success HTTP statuses,
// ErrNotFound for HTTP 404 ("no results"), and ErrUnsupported where the
// provider lacks the capability entirely.
type Client interface {
	// Provider identifies the protocol family this client speaks.
	Provider() Provider

	// NormalTransactions fetches full transactions for the wallet over
	// [startBlock, endBlock], ordered by block number according to sort.
	// An endBlock of zero means "up to the latest block".
	NormalTransactions(ctx context.Context, wallet string, startBlock, endBlock uint64, sort SortOrder) ([]RawTransaction, error)

	// TokenTransfers fetches transfer events of the given token kind for
	// the wallet starting at startBlock. Providers without an endpoint for
	// the requested kind return ErrUnsupported.
	TokenTransfers(ctx context.Context, wallet string, startBlock uint64, kind TokenKind) ([]RawTransaction, error)

	// Paged fetches one page of the wallet's transactions and returns the
	// cursor for the next page.
	Paged(ctx context.Context, wallet string, page Pagination) ([]RawTransaction, Pagination, error)

	// GasPrice fetches the provider's current fee estimate. Providers
	// without a gas endpoint return ErrUnsupported.
	GasPrice(ctx context.Context) (GasPrice, error)
}
