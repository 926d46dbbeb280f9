package explorer

// capabilityKey identifies one (provider, token kind) combination.
type capabilityKey struct {
	provider Provider
	kind     TokenKind
}

// transferCapabilities records which providers expose a token-transfer
// endpoint per token kind. Consulted once per fetch cycle instead of
// branching per provider at every call site; a missing entry means
// unsupported.
var transferCapabilities = map[capabilityKey]bool{
	{ProviderEtherscan, TokenKindERC20}:   true,
	{ProviderEtherscan, TokenKindERC721}:  true,
	{ProviderEtherscan, TokenKindERC1155}: true,

	{ProviderCovalent, TokenKindERC20}:  true,
	{ProviderCovalent, TokenKindERC721}: true,

	{ProviderOklink, TokenKindERC20}:  true,
	{ProviderOklink, TokenKindERC721}: true,
}

// gasPriceCapabilities records which providers expose a gas/fee endpoint.
var gasPriceCapabilities = map[Provider]bool{
	ProviderEtherscan: true,
}

// Supports reports whether the provider has a token-transfer endpoint for
// the given token kind.
func Supports(provider Provider, kind TokenKind) bool {
	return transferCapabilities[capabilityKey{provider, kind}]
}

// SupportsGasPrice reports whether the provider has a gas-price endpoint.
func SupportsGasPrice(provider Provider) bool {
	return gasPriceCapabilities[provider]
}
