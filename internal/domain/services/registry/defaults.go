package registry

import "github.com/ens-relayer/relayer_service/internal/domain/entities"

// defaultChain is a compile-time table row; RPC endpoints are the providers' public gateways
type defaultChain struct {
	name      string
	slug      string
	chainID   uint64
	rpcURL    string
	isTestnet bool
}

// Mainnets first, then their testnet counterparts, matching the order clients render them in
var defaultChains = []defaultChain{
	{name: "Base", slug: "base", chainID: 8453, rpcURL: "https://mainnet.base.org"},
	{name: "OP Mainnet", slug: "optimism", chainID: 10, rpcURL: "https://mainnet.optimism.io"},
	{name: "Arbitrum One", slug: "arbitrum", chainID: 42161, rpcURL: "https://arb1.arbitrum.io/rpc"},
	{name: "Scroll", slug: "scroll", chainID: 534352, rpcURL: "https://rpc.scroll.io"},
	{name: "Linea Mainnet", slug: "linea", chainID: 59144, rpcURL: "https://rpc.linea.build"},

	{name: "Base Sepolia", slug: "base_sepolia", chainID: 84532, rpcURL: "https://sepolia.base.org", isTestnet: true},
	{name: "OP Sepolia", slug: "optimism_sepolia", chainID: 11155420, rpcURL: "https://sepolia.optimism.io", isTestnet: true},
	{name: "Arbitrum Sepolia", slug: "arbitrum_sepolia", chainID: 421614, rpcURL: "https://sepolia-rollup.arbitrum.io/rpc", isTestnet: true},
	{name: "Scroll Sepolia", slug: "scroll_sepolia", chainID: 534351, rpcURL: "https://sepolia-rpc.scroll.io", isTestnet: true},
	{name: "Linea Sepolia", slug: "linea_sepolia", chainID: 59141, rpcURL: "https://rpc.sepolia.linea.build", isTestnet: true},
}

// DefaultChains returns the built-in chain table with derived coin types
func DefaultChains() []entities.ChainConfig {
	out := make([]entities.ChainConfig, 0, len(defaultChains))
	for _, c := range defaultChains {
		out = append(out, entities.ChainConfig{
			ChainID:   c.chainID,
			CoinType:  ChainIDToCoinType(c.chainID),
			Name:      c.name,
			Slug:      c.slug,
			IsTestnet: c.isTestnet,
			RPCURL:    c.rpcURL,
		})
	}
	return out
}
