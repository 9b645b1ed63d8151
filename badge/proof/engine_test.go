package proof

import (
	"bytes"
	"context"
	"encoding/hex"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbadgeworks/go-openbadge-sdk/badge/keys"
	"github.com/openbadgeworks/go-openbadge-sdk/badge/storage"
)

const testIssuer = "https://issuer.example"

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()

	store := storage.NewMemory()
	km, err := keys.NewManager(store, bytes.Repeat([]byte{0x42}, keys.MasterKeySize))
	require.NoError(t, err)

	return NewEngine(km, opts...)
}

func sampleCredential() map[string]interface{} {
	return map[string]interface{}{
		"@context": []interface{}{
			"https://www.w3.org/ns/credentials/v2",
			"https://purl.imsglobal.org/spec/ob/v3p0/context-3.0.3.json",
		},
		"id":        "urn:uuid:9d7e1e2a-1111-4444-8888-0c0ffee00001",
		"type":      []interface{}{"VerifiableCredential", "OpenBadgeCredential"},
		"issuer":    testIssuer,
		"validFrom": "2026-01-15T10:00:00Z",
		"credentialSubject": map[string]interface{}{
			"type": []interface{}{"AchievementSubject"},
			"achievement": map[string]interface{}{
				"id":   "https://issuer.example/achievements/gopher",
				"name": "Gopher",
			},
		},
	}
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	doc := sampleCredential()

	signed, err := e.Sign(ctx, doc, testIssuer)
	require.NoError(t, err)

	// The input document stays proof-less.
	assert.NotContains(t, doc, "proof")

	proofMap, ok := signed["proof"].(map[string]interface{})
	require.True(t, ok, "signed document must carry a proof object")
	assert.Equal(t, TypeDataIntegrityProof, proofMap["type"])
	assert.Equal(t, SuiteEdDSAJCS2022, proofMap["cryptosuite"])
	assert.Equal(t, PurposeAssertionMethod, proofMap["proofPurpose"])
	assert.NotEmpty(t, proofMap["proofValue"])
	assert.NotEmpty(t, proofMap["verificationMethod"])

	_, err = time.Parse(time.RFC3339, proofMap["created"].(string))
	assert.NoError(t, err)

	assert.True(t, e.Verify(ctx, signed))
}

func TestVerifyDetectsTampering(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	signed, err := e.Sign(ctx, sampleCredential(), testIssuer)
	require.NoError(t, err)

	signed["validFrom"] = "2027-01-15T10:00:00Z"

	ok, reason := e.VerifyWithReason(ctx, signed)
	assert.False(t, ok)
	assert.Contains(t, reason, "signature does not match")
}

func TestVerifyNeverPanicsOnMalformedDocuments(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	tests := []struct {
		name string
		doc  map[string]interface{}
	}{
		{name: "nil document", doc: nil},
		{name: "no proof", doc: map[string]interface{}{"id": "urn:uuid:1"}},
		{
			name: "proof is a string",
			doc:  map[string]interface{}{"proof": "not an object"},
		},
		{
			name: "empty proof array",
			doc:  map[string]interface{}{"proof": []interface{}{}},
		},
		{
			name: "proof missing verification method",
			doc: map[string]interface{}{
				"proof": map[string]interface{}{"type": TypeDataIntegrityProof},
			},
		},
		{
			name: "unsupported proof type",
			doc: map[string]interface{}{
				"proof": map[string]interface{}{
					"type":               "Ed25519Signature2020",
					"verificationMethod": testIssuer + "#z6MkKey",
				},
			},
		},
		{
			name: "unsupported cryptosuite",
			doc: map[string]interface{}{
				"proof": map[string]interface{}{
					"type":               TypeDataIntegrityProof,
					"cryptosuite":        "eddsa-2020",
					"verificationMethod": testIssuer + "#z6MkKey",
				},
			},
		},
		{
			name: "garbage proof value",
			doc: map[string]interface{}{
				"proof": map[string]interface{}{
					"type":               TypeDataIntegrityProof,
					"cryptosuite":        SuiteEdDSAJCS2022,
					"verificationMethod": testIssuer + "#z6MkKey",
					"proofValue":         "!!!not-multibase!!!",
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := e.VerifyWithReason(ctx, tt.doc)
			assert.False(t, ok)
			assert.NotEmpty(t, reason)
		})
	}
}

func TestSignRejectsUnknownCryptosuite(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	_, err := e.Sign(ctx, sampleCredential(), testIssuer, WithCryptosuite("eddsa-2020"))
	assert.Error(t, err)

	_, err = e.Sign(ctx, nil, testIssuer)
	assert.Error(t, err)
}

func TestSignVerifyRDFCSuite(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	// Inline context keeps JSON-LD expansion offline.
	doc := map[string]interface{}{
		"@context": map[string]interface{}{
			"name":  "https://schema.org/name",
			"email": "https://schema.org/email",
		},
		"name":  "Ada Lovelace",
		"email": "ada@example.org",
	}

	signed, err := e.Sign(ctx, doc, testIssuer, WithCryptosuite(SuiteEdDSARDFC2022))
	require.NoError(t, err)

	proofMap := signed["proof"].(map[string]interface{})
	assert.Equal(t, SuiteEdDSARDFC2022, proofMap["cryptosuite"])

	assert.True(t, e.Verify(ctx, signed))

	signed["name"] = "Grace Hopper"
	assert.False(t, e.Verify(ctx, signed))
}

func TestSignVerifySecp256k1Suite(t *testing.T) {
	ctx := context.Background()

	priv, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	hexKey := hex.EncodeToString(ethcrypto.FromECDSA(priv))

	e := newTestEngine(t, WithSecp256k1Keys(Secp256k1Keys{testIssuer: hexKey}))

	signed, err := e.Sign(ctx, sampleCredential(), testIssuer, WithCryptosuite(SuiteECDSASecp256k1JCS2019))
	require.NoError(t, err)

	proofMap := signed["proof"].(map[string]interface{})
	assert.Equal(t, SuiteECDSASecp256k1JCS2019, proofMap["cryptosuite"])

	assert.True(t, e.Verify(ctx, signed))

	signed["issuer"] = "https://impostor.example"
	assert.False(t, e.Verify(ctx, signed))
}

func TestSecp256k1SuiteUnavailableByDefault(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	_, err := e.Sign(ctx, sampleCredential(), testIssuer, WithCryptosuite(SuiteECDSASecp256k1JCS2019))
	assert.Error(t, err)

	// A document claiming the suite fails verification outright when no key
	// registration exists.
	priv, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	hexKey := hex.EncodeToString(ethcrypto.FromECDSA(priv))

	signer := newTestEngine(t, WithSecp256k1Keys(Secp256k1Keys{testIssuer: hexKey}))
	signed, err := signer.Sign(ctx, sampleCredential(), testIssuer, WithCryptosuite(SuiteECDSASecp256k1JCS2019))
	require.NoError(t, err)

	ok, reason := e.VerifyWithReason(ctx, signed)
	assert.False(t, ok)
	assert.Contains(t, reason, "unsupported cryptosuite")
}

func TestSecp256k1VerifyRejectsKeyNotRegisteredForIssuer(t *testing.T) {
	ctx := context.Background()

	attackerPriv, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	attackerHex := hex.EncodeToString(ethcrypto.FromECDSA(attackerPriv))

	issuerPriv, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	issuerHex := hex.EncodeToString(ethcrypto.FromECDSA(issuerPriv))

	// The attacker signs a document naming the victim issuer with their own
	// key; the verificationMethod fragment carries the attacker's public key.
	attacker := newTestEngine(t, WithSecp256k1Keys(Secp256k1Keys{testIssuer: attackerHex}))
	forged, err := attacker.Sign(ctx, sampleCredential(), testIssuer, WithCryptosuite(SuiteECDSASecp256k1JCS2019))
	require.NoError(t, err)

	// The verifier resolves keys from its own registration, not the proof.
	verifier := newTestEngine(t, WithSecp256k1Keys(Secp256k1Keys{testIssuer: issuerHex}))

	ok, reason := verifier.VerifyWithReason(ctx, forged)
	assert.False(t, ok)
	assert.Contains(t, reason, "not the issuer's registered key")
}

func TestSecp256k1VerifyRejectsUnknownIssuer(t *testing.T) {
	ctx := context.Background()

	priv, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	hexKey := hex.EncodeToString(ethcrypto.FromECDSA(priv))

	signer := newTestEngine(t, WithSecp256k1Keys(Secp256k1Keys{testIssuer: hexKey}))
	signed, err := signer.Sign(ctx, sampleCredential(), testIssuer, WithCryptosuite(SuiteECDSASecp256k1JCS2019))
	require.NoError(t, err)

	verifier := newTestEngine(t, WithSecp256k1Keys(Secp256k1Keys{"https://other.example": hexKey}))

	ok, reason := verifier.VerifyWithReason(ctx, signed)
	assert.False(t, ok)
	assert.Contains(t, reason, "no secp256k1 key registered")
}

func TestWithClockControlsProofTimestamp(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	e := newTestEngine(t, WithClock(func() time.Time { return fixed }))

	signed, err := e.Sign(ctx, sampleCredential(), testIssuer)
	require.NoError(t, err)

	proofMap := signed["proof"].(map[string]interface{})
	assert.Equal(t, "2026-01-15T10:00:00Z", proofMap["created"])
}
