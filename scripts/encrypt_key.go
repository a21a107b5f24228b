//go:build ignore

// Encrypts a relayer private key for RELAYER_PRIVATE_KEY_ENCRYPTED.
//
//	RELAYER_PRIVATE_KEY=0x... ENCRYPTION_KEY=... go run scripts/encrypt_key.go
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/ens-relayer/relayer_service/internal/infrastructure/adapters/evm"
	"github.com/ens-relayer/relayer_service/pkg/crypto"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func main() {
	privateKey := os.Getenv("RELAYER_PRIVATE_KEY")
	passphrase := os.Getenv("ENCRYPTION_KEY")
	if privateKey == "" || passphrase == "" {
		log.Fatal("RELAYER_PRIVATE_KEY and ENCRYPTION_KEY environment variables are required")
	}

	key, err := evm.ParsePrivateKey(privateKey)
	if err != nil {
		log.Fatalf("Invalid private key: %v", err)
	}

	encrypted, err := crypto.Encrypt(privateKey, passphrase)
	if err != nil {
		log.Fatalf("Failed to encrypt key: %v", err)
	}

	fmt.Fprintf(os.Stderr, "Relayer address: %s\n", ethcrypto.PubkeyToAddress(key.PublicKey).Hex())
	fmt.Printf("RELAYER_PRIVATE_KEY_ENCRYPTED=%s\n", encrypted)
}
