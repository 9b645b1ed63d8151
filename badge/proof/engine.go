// Package proof builds and validates Data Integrity proofs over canonicalized
// credential documents. Signing and verification route through the identical
// canonicalization path of the proof's cryptosuite; that shared path is what
// keeps independently produced signatures verifiable.
package proof

import (
	"context"
	"fmt"
	"time"

	"github.com/openbadgeworks/go-openbadge-sdk/badge/common/canonical"
	"github.com/openbadgeworks/go-openbadge-sdk/badge/common/dto"
	"github.com/openbadgeworks/go-openbadge-sdk/badge/common/engineerr"
	"github.com/openbadgeworks/go-openbadge-sdk/badge/keys"
)

const (
	// TypeDataIntegrityProof is the proof type tag for all supported suites.
	TypeDataIntegrityProof = "DataIntegrityProof"

	// PurposeAssertionMethod is the proof purpose for issued credentials.
	PurposeAssertionMethod = "assertionMethod"

	// SuiteEdDSAJCS2022 is the default cryptosuite: sorted-key JSON
	// canonicalization, SHA-256 digest, Ed25519 signature.
	SuiteEdDSAJCS2022 = "eddsa-jcs-2022"

	// SuiteEdDSARDFC2022 canonicalizes via RDF dataset normalization instead.
	SuiteEdDSARDFC2022 = "eddsa-rdfc-2022"

	// SuiteECDSASecp256k1JCS2019 carries secp256k1 proofs for issuers that
	// sign with Ethereum-style keys. Available only through WithSecp256k1Keys,
	// which is also the trusted key registration verification resolves against.
	SuiteECDSASecp256k1JCS2019 = "ecdsa-secp256k1-jcs-2019"
)

// Suite is one cryptosuite: a canonicalization path plus signature primitives.
type Suite interface {
	Cryptosuite() string
	// Canonicalize serializes a proof-less document to its signable bytes.
	Canonicalize(doc map[string]interface{}) ([]byte, error)
	// Sign signs a digest for the issuer and reports the proofValue encoding
	// and the verificationMethod reference recorded in the proof.
	Sign(ctx context.Context, issuerID string, digest []byte) (proofValue, verificationMethod string, err error)
	// Verify checks a proofValue against a digest, resolving the public key
	// from the verificationMethod reference.
	Verify(ctx context.Context, verificationMethod, proofValue string, digest []byte) error
}

// Engine signs documents and validates embedded proofs.
type Engine struct {
	suites       map[string]Suite
	defaultSuite string
	now          func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithSuite registers an additional or replacement cryptosuite.
func WithSuite(s Suite) Option {
	return func(e *Engine) {
		e.suites[s.Cryptosuite()] = s
	}
}

// WithDefaultCryptosuite selects the suite Sign uses when none is requested.
func WithDefaultCryptosuite(name string) Option {
	return func(e *Engine) {
		e.defaultSuite = name
	}
}

// WithClock overrides the proof timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a proof engine bound to the issuer key manager. The two
// EdDSA suites are registered by default; the secp256k1 suite requires an
// explicit key registration through WithSecp256k1Keys.
func NewEngine(km *keys.Manager, opts ...Option) *Engine {
	e := &Engine{
		suites:       make(map[string]Suite),
		defaultSuite: SuiteEdDSAJCS2022,
		now:          time.Now,
	}

	for _, s := range []Suite{
		newEdDSAJCSSuite(km),
		newEdDSARDFCSuite(km),
	} {
		e.suites[s.Cryptosuite()] = s
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// SignOption configures a single Sign call.
type SignOption func(*signOptions)

type signOptions struct {
	cryptosuite string
}

// WithCryptosuite selects the cryptosuite for this signature.
func WithCryptosuite(name string) SignOption {
	return func(o *signOptions) {
		o.cryptosuite = name
	}
}

// Sign canonicalizes the proof-less document, signs the digest with the
// issuer's key, and returns a new document carrying the proof block. The input
// document is never mutated, and no partial document is returned on error.
func (e *Engine) Sign(ctx context.Context, doc map[string]interface{}, issuerID string, opts ...SignOption) (map[string]interface{}, error) {
	if doc == nil {
		return nil, engineerr.NewValidation("sign document", fmt.Errorf("document is nil"))
	}

	options := &signOptions{cryptosuite: e.defaultSuite}
	for _, opt := range opts {
		opt(options)
	}

	suite, ok := e.suites[options.cryptosuite]
	if !ok {
		return nil, engineerr.NewSignature("sign document", fmt.Errorf("unsupported cryptosuite %q", options.cryptosuite))
	}

	docCopy := withoutProof(doc)

	canonicalBytes, err := suite.Canonicalize(docCopy)
	if err != nil {
		return nil, engineerr.NewSignature("canonicalize document", err)
	}

	proofValue, verificationMethod, err := suite.Sign(ctx, issuerID, canonical.Digest(canonicalBytes))
	if err != nil {
		return nil, err
	}

	pf := &dto.Proof{
		Type:               TypeDataIntegrityProof,
		Created:            e.now().UTC().Format(time.RFC3339),
		VerificationMethod: verificationMethod,
		ProofPurpose:       PurposeAssertionMethod,
		ProofValue:         proofValue,
		Cryptosuite:        suite.Cryptosuite(),
	}

	docCopy["proof"] = pf.ToMap()
	return docCopy, nil
}

// Verify reports whether the document's embedded proof validates. It never
// returns an error: any failure mode is false.
func (e *Engine) Verify(ctx context.Context, doc map[string]interface{}) bool {
	ok, _ := e.VerifyWithReason(ctx, doc)
	return ok
}

// VerifyWithReason verifies the embedded proof and, on failure, names the
// failing stage for callers that aggregate check results.
func (e *Engine) VerifyWithReason(ctx context.Context, doc map[string]interface{}) (bool, string) {
	if doc == nil {
		return false, "document is nil"
	}

	pf, err := dto.FirstProof(doc["proof"])
	if err != nil {
		return false, err.Error()
	}

	if pf.Type != TypeDataIntegrityProof {
		return false, fmt.Sprintf("unsupported proof type %q", pf.Type)
	}

	suite, ok := e.suites[pf.Cryptosuite]
	if !ok {
		return false, fmt.Sprintf("unsupported cryptosuite %q", pf.Cryptosuite)
	}

	canonicalBytes, err := suite.Canonicalize(withoutProof(doc))
	if err != nil {
		return false, fmt.Sprintf("canonicalize document: %v", err)
	}

	if err := suite.Verify(ctx, pf.VerificationMethod, pf.ProofValue, canonical.Digest(canonicalBytes)); err != nil {
		return false, err.Error()
	}

	return true, ""
}

func withoutProof(doc map[string]interface{}) map[string]interface{} {
	docCopy := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		if k != "proof" {
			docCopy[k] = v
		}
	}
	return docCopy
}
