package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ens-relayer/relayer_service/pkg/crypto"
)

// ErrKeyNotConfigured means no key material was supplied. The service still
// starts and answers 500 on submissions.
var ErrKeyNotConfigured = errors.New("relayer key not configured")

// KeySource describes where the relayer signing key comes from
type KeySource struct {
	PrivateKey          string
	PrivateKeyEncrypted string
	EncryptionKey       string
	// SecretName is looked up on Provider when no inline key is set
	SecretName string
	Provider   Provider
}

// LoadRelayerKey resolves the hex private key. Inline plaintext wins, then the
// encrypted form, then the provider.
func LoadRelayerKey(ctx context.Context, src KeySource) (string, error) {
	if key := strings.TrimSpace(src.PrivateKey); key != "" {
		return key, nil
	}

	if src.PrivateKeyEncrypted != "" {
		if src.EncryptionKey == "" {
			return "", fmt.Errorf("encrypted relayer key requires an encryption key")
		}
		key, err := crypto.Decrypt(src.PrivateKeyEncrypted, src.EncryptionKey)
		if err != nil {
			return "", fmt.Errorf("failed to decrypt relayer key: %w", err)
		}
		return strings.TrimSpace(key), nil
	}

	if src.Provider == nil || src.SecretName == "" {
		return "", ErrKeyNotConfigured
	}

	key, err := src.Provider.GetSecret(ctx, src.SecretName)
	if err != nil {
		if errors.Is(err, ErrSecretNotFound) {
			return "", ErrKeyNotConfigured
		}
		return "", err
	}
	return strings.TrimSpace(key), nil
}
