// Package keys provisions and uses issuer signing keypairs. Private keys are
// stored only AES-GCM-sealed under a process-wide master key and are decrypted
// transiently inside a signing call, never handed to callers.
package keys

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/openbadgeworks/go-openbadge-sdk/badge/common/engineerr"
	"github.com/openbadgeworks/go-openbadge-sdk/badge/common/multikey"
	"github.com/openbadgeworks/go-openbadge-sdk/badge/storage"
)

// MasterKeySize is the required AES-256 master key length in bytes.
const MasterKeySize = 32

// Manager provisions and retrieves issuer Ed25519 keypairs.
type Manager struct {
	store     storage.IssuerStore
	masterKey []byte
	group     singleflight.Group
}

// NewManager creates a key manager over the given store. The master key must
// be MasterKeySize bytes.
func NewManager(store storage.IssuerStore, masterKey []byte) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("failed to create key manager: store is nil")
	}
	if len(masterKey) != MasterKeySize {
		return nil, fmt.Errorf("failed to create key manager: master key must be %d bytes, got %d", MasterKeySize, len(masterKey))
	}

	return &Manager{
		store:     store,
		masterKey: append([]byte{}, masterKey...),
	}, nil
}

// EnsureKey returns the issuer's active key record, generating and persisting
// a new Ed25519 keypair when none exists. First-time creation is serialized:
// in-process through singleflight, cross-process through the store's
// conditional create.
func (m *Manager) EnsureKey(ctx context.Context, issuerID string) (*storage.IssuerKey, error) {
	key, err := m.store.IssuerKey(ctx, issuerID)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, engineerr.NewKey("load issuer key", err)
	}

	result, err, _ := m.group.Do(issuerID, func() (interface{}, error) {
		return m.provision(ctx, issuerID)
	})
	if err != nil {
		return nil, err
	}

	return result.(*storage.IssuerKey), nil
}

// Sign signs data with the issuer's private key. The sealed key is opened,
// used, and discarded within this call.
func (m *Manager) Sign(ctx context.Context, issuerID string, data []byte) ([]byte, error) {
	key, err := m.EnsureKey(ctx, issuerID)
	if err != nil {
		return nil, err
	}

	priv, err := m.open(key)
	if err != nil {
		return nil, engineerr.NewKey("decrypt issuer key", err)
	}
	defer zero(priv)

	return ed25519.Sign(ed25519.PrivateKey(priv), data), nil
}

// PublicKey returns the issuer's active Ed25519 public key.
func (m *Manager) PublicKey(ctx context.Context, issuerID string) (ed25519.PublicKey, error) {
	key, err := m.EnsureKey(ctx, issuerID)
	if err != nil {
		return nil, err
	}

	pub, err := multikey.DecodeEd25519PublicKey(key.PublicKeyMultibase)
	if err != nil {
		return nil, engineerr.NewKey("decode issuer public key", err)
	}

	return pub, nil
}

// VerificationMethod returns the stable proof reference for the issuer's
// active key: the issuer ID with the multikey as fragment.
func (m *Manager) VerificationMethod(ctx context.Context, issuerID string) (string, error) {
	key, err := m.EnsureKey(ctx, issuerID)
	if err != nil {
		return "", err
	}

	return key.IssuerID + "#" + key.PublicKeyMultibase, nil
}

// Resolve maps a proof's verificationMethod reference back to the issuer's
// stored public key. The reference must name an issuer this store knows, and
// its fragment must match the issuer's active key.
func (m *Manager) Resolve(ctx context.Context, verificationMethod string) (ed25519.PublicKey, error) {
	issuerID, fragment, found := strings.Cut(verificationMethod, "#")
	if !found || issuerID == "" {
		return nil, engineerr.NewKey("resolve verification method", fmt.Errorf("malformed reference %q", verificationMethod))
	}

	key, err := m.store.IssuerKey(ctx, issuerID)
	if err != nil {
		return nil, engineerr.NewKey("resolve verification method", err)
	}

	if fragment != key.PublicKeyMultibase {
		return nil, engineerr.NewKey("resolve verification method", fmt.Errorf("key %q is not the issuer's active key", fragment))
	}

	pub, err := multikey.DecodeEd25519PublicKey(key.PublicKeyMultibase)
	if err != nil {
		return nil, engineerr.NewKey("resolve verification method", err)
	}

	return pub, nil
}

func (m *Manager) provision(ctx context.Context, issuerID string) (*storage.IssuerKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, engineerr.NewKey("generate issuer keypair", err)
	}
	defer zero(priv)

	encoded, err := multikey.EncodeEd25519PublicKey(pub)
	if err != nil {
		return nil, engineerr.NewKey("encode issuer public key", err)
	}

	nonce, ciphertext, err := m.seal(priv)
	if err != nil {
		return nil, engineerr.NewKey("encrypt issuer key", err)
	}

	key := &storage.IssuerKey{
		IssuerID:            issuerID,
		PublicKeyMultibase:  encoded,
		EncryptedPrivateKey: ciphertext,
		Nonce:               nonce,
		CreatedAt:           time.Now().UTC(),
	}

	err = m.store.CreateIssuerKey(ctx, key)
	if errors.Is(err, storage.ErrExists) {
		// Another process provisioned first; its key wins.
		existing, readErr := m.store.IssuerKey(ctx, issuerID)
		if readErr != nil {
			return nil, engineerr.NewKey("load issuer key", readErr)
		}
		return existing, nil
	}
	if err != nil {
		return nil, engineerr.NewKey("persist issuer key", err)
	}

	return key, nil
}

func (m *Manager) seal(plaintext []byte) (nonce, ciphertext []byte, err error) {
	block, err := aes.NewCipher(m.masterKey)
	if err != nil {
		return nil, nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, err
	}

	return nonce, gcm.Seal(nil, nonce, plaintext, nil), nil
}

func (m *Manager) open(key *storage.IssuerKey) ([]byte, error) {
	block, err := aes.NewCipher(m.masterKey)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, key.Nonce, key.EncryptedPrivateKey, nil)
	if err != nil {
		return nil, fmt.Errorf("key material for issuer %q is undecryptable: %w", key.IssuerID, err)
	}
	if len(plaintext) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("key material for issuer %q has invalid length %d", key.IssuerID, len(plaintext))
	}

	return plaintext, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
