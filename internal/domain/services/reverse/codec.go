package reverse

import (
	"math/big"

	"github.com/ens-relayer/relayer_service/pkg/registrar"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MessageHash is the digest the registrar verifies for setNameForAddrWithSignature:
//
//	keccak256(registrar ++ selector ++ addr ++ uint256(expiry) ++ name ++ uint256(coinType)...)
//
// Every field is tightly packed; coin types are 32-byte big-endian words.
func MessageHash(registrarAddr, addr common.Address, name string, coinTypes []uint64, expiry uint64) common.Hash {
	selector := registrar.Selector()

	buf := make([]byte, 0, common.AddressLength*2+len(selector)+32+len(name)+32*len(coinTypes))
	buf = append(buf, registrarAddr.Bytes()...)
	buf = append(buf, selector...)
	buf = append(buf, addr.Bytes()...)
	buf = append(buf, word(expiry)...)
	buf = append(buf, name...)
	for _, ct := range coinTypes {
		buf = append(buf, word(ct)...)
	}

	return crypto.Keccak256Hash(buf)
}

// SignableHash wraps a message hash with the EIP-191 personal_sign prefix
func SignableHash(messageHash common.Hash) common.Hash {
	return common.BytesToHash(accounts.TextHash(messageHash.Bytes()))
}

func word(v uint64) []byte {
	return common.LeftPadBytes(new(big.Int).SetUint64(v).Bytes(), 32)
}
