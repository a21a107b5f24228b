package registry

// ENSIP-11 coin type derivation for EVM chains
const (
	// EVMCoinTypeFlag is set on every chain-derived coin type
	EVMCoinTypeFlag uint64 = 0x80000000
	// EthereumCoinType is the SLIP-44 coin type used for Ethereum mainnet
	EthereumCoinType uint64 = 60
	// EthereumChainID is the chain id of Ethereum mainnet
	EthereumChainID uint64 = 1

	maxEVMChainID uint64 = 0x7fffffff
)

// ChainIDToCoinType derives the coin type of an EVM chain
func ChainIDToCoinType(chainID uint64) uint64 {
	if chainID == EthereumChainID {
		return EthereumCoinType
	}
	return EVMCoinTypeFlag | chainID
}

// CoinTypeToChainID reverses ChainIDToCoinType. It returns false for
// coin types that do not denote an EVM chain.
func CoinTypeToChainID(coinType uint64) (uint64, bool) {
	if coinType == EthereumCoinType {
		return EthereumChainID, true
	}
	if coinType&EVMCoinTypeFlag == 0 || coinType > EVMCoinTypeFlag|maxEVMChainID {
		return 0, false
	}
	chainID := coinType &^ EVMCoinTypeFlag
	if chainID == 0 {
		return 0, false
	}
	return chainID, true
}
