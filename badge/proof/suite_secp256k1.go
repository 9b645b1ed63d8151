package proof

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/openbadgeworks/go-openbadge-sdk/badge/common/canonical"
	"github.com/openbadgeworks/go-openbadge-sdk/badge/common/engineerr"
	"github.com/openbadgeworks/go-openbadge-sdk/badge/common/multikey"
)

// Secp256k1Keys maps issuer IDs to hex-encoded secp256k1 private keys for
// issuers that sign with Ethereum-style keys instead of managed Ed25519 keys.
type Secp256k1Keys map[string]string

// WithSecp256k1Keys registers the secp256k1 suite for the given issuers. The
// suite exists only through this option: verification resolves an issuer's
// public key from this registration, never from the proof itself, so a proof
// naming an unregistered issuer or a key other than the issuer's registered
// one fails.
func WithSecp256k1Keys(keys Secp256k1Keys) Option {
	return WithSuite(newSecp256k1Suite(keys))
}

// secp256k1Suite carries secp256k1 proofs: JCS canonicalization, SHA-256
// digest, 65-byte [r,s,v] signature hex-encoded in proofValue. The
// verificationMethod fragment carries the compressed public key as a multikey,
// but it is a claim, not an authority: the fragment must match the key
// registered for the issuer or verification fails.
type secp256k1Suite struct {
	keys Secp256k1Keys
}

func newSecp256k1Suite(keys Secp256k1Keys) *secp256k1Suite {
	return &secp256k1Suite{keys: keys}
}

func (s *secp256k1Suite) Cryptosuite() string {
	return SuiteECDSASecp256k1JCS2019
}

func (s *secp256k1Suite) Canonicalize(doc map[string]interface{}) ([]byte, error) {
	return canonical.Canonicalize(doc)
}

func (s *secp256k1Suite) Sign(ctx context.Context, issuerID string, digest []byte) (string, string, error) {
	hexKey, ok := s.keys[issuerID]
	if !ok {
		return "", "", engineerr.NewKey("sign with secp256k1", fmt.Errorf("no secp256k1 key registered for issuer %q", issuerID))
	}

	priv, err := ethcrypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return "", "", engineerr.NewKey("sign with secp256k1", fmt.Errorf("invalid private key: %w", err))
	}

	signature, err := ethcrypto.Sign(digest, priv)
	if err != nil {
		return "", "", engineerr.NewSignature("sign with secp256k1", err)
	}

	encodedKey, err := multikey.EncodeSecp256k1PublicKey(ethcrypto.CompressPubkey(&priv.PublicKey))
	if err != nil {
		return "", "", engineerr.NewKey("sign with secp256k1", err)
	}

	return hex.EncodeToString(signature), issuerID + "#" + encodedKey, nil
}

func (s *secp256k1Suite) Verify(ctx context.Context, verificationMethod, proofValue string, digest []byte) error {
	issuerID, fragment, found := strings.Cut(verificationMethod, "#")
	if !found || issuerID == "" || fragment == "" {
		return fmt.Errorf("malformed verification method %q", verificationMethod)
	}

	hexKey, ok := s.keys[issuerID]
	if !ok {
		return fmt.Errorf("no secp256k1 key registered for issuer %q", issuerID)
	}

	priv, err := ethcrypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return fmt.Errorf("invalid registered key for issuer %q: %w", issuerID, err)
	}
	registered := ethcrypto.CompressPubkey(&priv.PublicKey)

	compressed, err := multikey.DecodeSecp256k1PublicKey(fragment)
	if err != nil {
		return err
	}
	if !bytes.Equal(compressed, registered) {
		return fmt.Errorf("key %q is not the issuer's registered key", fragment)
	}

	pubKeyParsed, err := btcec.ParsePubKey(registered)
	if err != nil {
		return fmt.Errorf("failed to parse compressed public key: %w", err)
	}

	pubKey, err := ethcrypto.UnmarshalPubkey(pubKeyParsed.SerializeUncompressed())
	if err != nil {
		return fmt.Errorf("failed to parse public key: %w", err)
	}

	sigBytes, err := hex.DecodeString(proofValue)
	if err != nil {
		return fmt.Errorf("failed to decode signature: %w", err)
	}

	// 65 bytes is [r, s, v]; the recovery byte is not part of verification.
	var rsBytes []byte
	switch len(sigBytes) {
	case 65:
		rsBytes = sigBytes[:64]
	case 64:
		rsBytes = sigBytes
	default:
		return fmt.Errorf("invalid signature length: got %d, want 64 or 65 bytes", len(sigBytes))
	}

	r := new(big.Int).SetBytes(rsBytes[:32])
	sv := new(big.Int).SetBytes(rsBytes[32:])
	if !ecdsa.Verify(pubKey, digest, r, sv) {
		return fmt.Errorf("signature does not match signed content")
	}

	return nil
}
