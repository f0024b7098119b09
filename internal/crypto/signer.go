// Package crypto holds the secp256k1 identity helpers: key generation,
// personal-message signing and signer recovery.
package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/giovanna-britto/Snake-Battle/internal/domain"
)

const signatureLen = 65

// Signer signs messages with one secp256k1 key.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewSigner creates a Signer from a hex-encoded private key, with or without
// the 0x prefix.
func NewSigner(privateKeyHex string) (*Signer, error) {
	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return &Signer{privateKey: pk, address: ethcrypto.PubkeyToAddress(pk.PublicKey)}, nil
}

// GenerateSigner creates a Signer over a fresh random key.
func GenerateSigner() (*Signer, error) {
	pk, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: generate key: %w", err)
	}
	return &Signer{privateKey: pk, address: ethcrypto.PubkeyToAddress(pk.PublicKey)}, nil
}

// Address returns the identity derived from the signer's public key.
func (s *Signer) Address() common.Address {
	return s.address
}

// PrivateKeyHex returns the private key as 0x-prefixed hex.
func (s *Signer) PrivateKeyHex() string {
	return "0x" + hex.EncodeToString(ethcrypto.FromECDSA(s.privateKey))
}

// SignMessage personal-signs msg and returns the 65-byte signature
// (r || s || v, v in {27,28}) as 0x-prefixed hex.
func (s *Signer) SignMessage(msg []byte) (string, error) {
	sig, err := ethcrypto.Sign(MessageHash(msg), s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return "0x" + hex.EncodeToString(sig), nil
}

// MessageHash returns the personal-message digest of msg:
//
//	keccak256("\x19Ethereum Signed Message:\n" || len(msg) || msg)
func MessageHash(msg []byte) []byte {
	prefix := "\x19Ethereum Signed Message:\n" + strconv.Itoa(len(msg))
	return ethcrypto.Keccak256([]byte(prefix), msg)
}

// RecoverAddress returns the identity that produced sigHex over msg. Both
// {0,1} and {27,28} recovery ids are accepted.
func RecoverAddress(msg []byte, sigHex string) (common.Address, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil || len(sig) != signatureLen {
		return common.Address{}, domain.ErrInvalidSignature
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return common.Address{}, domain.ErrInvalidSignature
	}

	pub, err := ethcrypto.SigToPub(MessageHash(msg), sig)
	if err != nil {
		return common.Address{}, domain.ErrInvalidSignature
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// Verify reports whether sigHex is a valid signature of msg by want.
func Verify(msg []byte, sigHex string, want common.Address) error {
	got, err := RecoverAddress(msg, sigHex)
	if err != nil {
		return err
	}
	if got != want {
		return domain.ErrInvalidSignature
	}
	return nil
}
