package proof

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/openbadgeworks/go-openbadge-sdk/badge/common/canonical"
	"github.com/openbadgeworks/go-openbadge-sdk/badge/common/multikey"
	"github.com/openbadgeworks/go-openbadge-sdk/badge/keys"
)

// edSigner holds the Ed25519 sign/verify half shared by both EdDSA suites;
// the suites differ only in canonicalization.
type edSigner struct {
	km *keys.Manager
}

func (s *edSigner) Sign(ctx context.Context, issuerID string, digest []byte) (string, string, error) {
	sig, err := s.km.Sign(ctx, issuerID, digest)
	if err != nil {
		return "", "", err
	}

	verificationMethod, err := s.km.VerificationMethod(ctx, issuerID)
	if err != nil {
		return "", "", err
	}

	proofValue, err := multikey.EncodeSignature(sig)
	if err != nil {
		return "", "", err
	}

	return proofValue, verificationMethod, nil
}

func (s *edSigner) Verify(ctx context.Context, verificationMethod, proofValue string, digest []byte) error {
	pub, err := s.km.Resolve(ctx, verificationMethod)
	if err != nil {
		return err
	}

	sig, err := multikey.DecodeSignature(proofValue)
	if err != nil {
		return err
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("invalid signature length: expected %d bytes, got %d", ed25519.SignatureSize, len(sig))
	}

	if !ed25519.Verify(pub, digest, sig) {
		return fmt.Errorf("signature does not match signed content")
	}

	return nil
}

type eddsaJCSSuite struct {
	edSigner
}

func newEdDSAJCSSuite(km *keys.Manager) *eddsaJCSSuite {
	return &eddsaJCSSuite{edSigner{km: km}}
}

func (s *eddsaJCSSuite) Cryptosuite() string {
	return SuiteEdDSAJCS2022
}

func (s *eddsaJCSSuite) Canonicalize(doc map[string]interface{}) ([]byte, error) {
	return canonical.Canonicalize(doc)
}

type eddsaRDFCSuite struct {
	edSigner
}

func newEdDSARDFCSuite(km *keys.Manager) *eddsaRDFCSuite {
	return &eddsaRDFCSuite{edSigner{km: km}}
}

func (s *eddsaRDFCSuite) Cryptosuite() string {
	return SuiteEdDSARDFC2022
}

func (s *eddsaRDFCSuite) Canonicalize(doc map[string]interface{}) ([]byte, error) {
	return canonicalizeRDF(doc)
}
