package di

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ens-relayer/relayer_service/internal/domain/entities"
	"github.com/ens-relayer/relayer_service/internal/domain/services/registry"
	"github.com/ens-relayer/relayer_service/internal/domain/services/reverse"
	"github.com/ens-relayer/relayer_service/internal/infrastructure/adapters/evm"
	"github.com/ens-relayer/relayer_service/internal/infrastructure/config"
	"github.com/ens-relayer/relayer_service/pkg/registrar"
	"github.com/ens-relayer/relayer_service/pkg/secrets"
)

const secretCacheTTL = 5 * time.Minute

// BuildRegistry merges the built-in chain table with the configured overrides and extras
func BuildRegistry(cfg *config.Config) (*registry.Registry, error) {
	overrides := make(map[string]registry.Override, len(cfg.Chains))
	for slug, o := range cfg.Chains {
		override := registry.Override{
			RPCURL:              o.RPCURL,
			ConfirmationTimeout: o.ConfirmationTimeout,
			Disabled:            !o.ChainEnabled(),
		}
		if o.RegistrarAddress != "" {
			addr, err := registrar.ParseAddress(o.RegistrarAddress)
			if err != nil {
				return nil, fmt.Errorf("chain %s: %w", slug, err)
			}
			override.RegistrarAddress = addr
		}
		overrides[strings.ToLower(slug)] = override
	}

	extras := make([]entities.ChainConfig, 0, len(cfg.ExtraChains))
	for _, e := range cfg.ExtraChains {
		chain := entities.ChainConfig{
			ChainID:             e.ChainID,
			CoinType:            registry.ChainIDToCoinType(e.ChainID),
			Name:                e.Name,
			Slug:                e.Slug,
			IsTestnet:           e.Testnet,
			RPCURL:              e.RPCURL,
			ConfirmationTimeout: e.ConfirmationTimeout,
		}
		if e.RegistrarAddress != "" {
			addr, err := registrar.ParseAddress(e.RegistrarAddress)
			if err != nil {
				return nil, fmt.Errorf("extra chain %d: %w", e.ChainID, err)
			}
			chain.RegistrarAddress = addr
		}
		extras = append(extras, chain)
	}

	return registry.New(registry.Apply(registry.DefaultChains(), overrides, extras))
}

// BuildRegistrars resolves the mainnet and testnet registrar deployments.
// The testnet address falls back to the mainnet one.
func BuildRegistrars(cfg *config.Config) (reverse.RegistrarAddresses, error) {
	mainnet, err := registrar.ParseAddress(cfg.Relayer.RegistrarAddress)
	if err != nil {
		return reverse.RegistrarAddresses{}, err
	}
	testnet := mainnet
	if cfg.Relayer.TestnetRegistrarAddress != "" {
		if testnet, err = registrar.ParseAddress(cfg.Relayer.TestnetRegistrarAddress); err != nil {
			return reverse.RegistrarAddresses{}, err
		}
	}
	return reverse.RegistrarAddresses{Mainnet: mainnet, Testnet: testnet}, nil
}

// BuildSecretsProvider returns the provider the relayer key is looked up on
func BuildSecretsProvider(ctx context.Context, cfg *config.Config) (secrets.Provider, error) {
	switch cfg.Relayer.SecretsProvider {
	case "aws":
		p, err := secrets.NewAWSSecretsManagerProvider(ctx, cfg.Relayer.AWSSecretsRegion, cfg.Relayer.AWSSecretsPrefix)
		if err != nil {
			return nil, err
		}
		return secrets.NewCachedProvider(p, secretCacheTTL), nil
	default:
		return secrets.NewEnvProvider(), nil
	}
}

// LoadRelayerKey returns nil, nil when no key is configured
func LoadRelayerKey(ctx context.Context, cfg *config.Config, provider secrets.Provider) (*ecdsa.PrivateKey, error) {
	hexKey, err := secrets.LoadRelayerKey(ctx, secrets.KeySource{
		PrivateKey:          cfg.Relayer.PrivateKey,
		PrivateKeyEncrypted: cfg.Relayer.PrivateKeyEncrypted,
		EncryptionKey:       cfg.Relayer.EncryptionKey,
		SecretName:          cfg.Relayer.PrivateKeySecretName,
		Provider:            provider,
	})
	if errors.Is(err, secrets.ErrKeyNotConfigured) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return evm.ParsePrivateKey(hexKey)
}
