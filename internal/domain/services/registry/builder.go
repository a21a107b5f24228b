package registry

import (
	"time"

	"github.com/ens-relayer/relayer_service/internal/domain/entities"
	"github.com/ethereum/go-ethereum/common"
)

// Override adjusts a built-in chain for one deployment
type Override struct {
	RPCURL              string
	ConfirmationTimeout time.Duration
	RegistrarAddress    common.Address
	Disabled            bool
}

// Apply merges deployment overrides (keyed by slug) into base and appends extras.
// Disabled chains are dropped; extras keep their given order after the built-ins.
func Apply(base []entities.ChainConfig, overrides map[string]Override, extras []entities.ChainConfig) []entities.ChainConfig {
	out := make([]entities.ChainConfig, 0, len(base)+len(extras))
	for _, c := range base {
		o, ok := overrides[c.Slug]
		if ok {
			if o.Disabled {
				continue
			}
			if o.RPCURL != "" {
				c.RPCURL = o.RPCURL
			}
			if o.ConfirmationTimeout > 0 {
				c.ConfirmationTimeout = o.ConfirmationTimeout
			}
			if o.RegistrarAddress != (common.Address{}) {
				c.RegistrarAddress = o.RegistrarAddress
			}
		}
		out = append(out, c)
	}
	return append(out, extras...)
}
