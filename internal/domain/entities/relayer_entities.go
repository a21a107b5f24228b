package entities

// ChainBalance is the relayer's native balance on one chain
type ChainBalance struct {
	ChainID    uint64 `json:"chainId"`
	ChainName  string `json:"chainName"`
	CoinType   uint64 `json:"coinType"`
	BalanceWei string `json:"balanceWei,omitempty"`
	Balance    string `json:"balance,omitempty"`
	LowBalance bool   `json:"lowBalance"`
	Error      string `json:"error,omitempty"`
}

// RelayerStatus is served by GET /api/relayer/status
type RelayerStatus struct {
	Configured bool           `json:"configured"`
	Address    string         `json:"address,omitempty"`
	Chains     []ChainBalance `json:"chains"`
}

// ErrorResponse is the error envelope for every endpoint
type ErrorResponse struct {
	Success            bool                   `json:"success"`
	Error              string                 `json:"error"`
	Code               string                 `json:"code,omitempty"`
	Details            map[string]interface{} `json:"details,omitempty"`
	SupportedCoinTypes []SupportedCoinType    `json:"supportedCoinTypes,omitempty"`
}
