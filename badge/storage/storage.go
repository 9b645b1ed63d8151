// Package storage defines the durable-storage collaborator the badge engine is
// built against. The engine never constructs a store; callers inject one. The
// per-issuer serialization primitive is UpdateStatusList, which implementations
// back with a transaction or row lock so concurrent writers for the same issuer
// never clobber each other's bitstring update.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrExists is returned by conditional creates when the record already exists.
var ErrExists = errors.New("record already exists")

// Issuer is an issuing organization's profile. Created administratively; the
// engine treats it as a read-only input.
type Issuer struct {
	ID    string
	Name  string
	URL   string
	Email string
}

// IssuerKey holds an issuer's active signing keypair. The private key is
// stored only in encrypted form, sealed under the process master key.
type IssuerKey struct {
	IssuerID            string
	PublicKeyMultibase  string
	EncryptedPrivateKey []byte
	Nonce               []byte
	CreatedAt           time.Time
}

// Achievement is a badge template. Immutable once referenced by an assertion.
type Achievement struct {
	ID          string
	Name        string
	Description string
	Criteria    string
	Image       string
	IssuerID    string
}

// Assertion is an issued credential instance. Once issued, the (issuer, index)
// pair is permanent and never reused, even after revocation.
type Assertion struct {
	ID                string
	IssuerID          string
	AchievementID     string
	RecipientIdentity string
	RecipientType     string
	Hashed            bool
	Salt              string
	IssuedOn          time.Time
	Revoked           bool
	RevocationReason  string
	// StatusListIndex is -1 until an index is allocated.
	StatusListIndex int
}

// StatusListRecord is the one revocation list record per issuer: the encoded
// bitstring, its allocation counter, and the signed wrapping credential. The
// bitstring and counter are one atomically-updated unit.
type StatusListRecord struct {
	IssuerID    string
	ListID      string
	EncodedList string
	NextIndex   int
	Credential  map[string]interface{}
}

// IssuerStore reads issuer profiles and manages key records.
type IssuerStore interface {
	Issuer(ctx context.Context, id string) (*Issuer, error)
	IssuerKey(ctx context.Context, issuerID string) (*IssuerKey, error)
	// CreateIssuerKey is a conditional put: it returns ErrExists when the
	// issuer already has a key, which resolves cross-process provisioning races.
	CreateIssuerKey(ctx context.Context, key *IssuerKey) error
}

// CredentialStore reads achievement templates and reads/writes assertions.
type CredentialStore interface {
	Achievement(ctx context.Context, id string) (*Achievement, error)
	Assertion(ctx context.Context, id string) (*Assertion, error)
	PutAssertion(ctx context.Context, a *Assertion) error
}

// StatusListStore reads and atomically updates the per-issuer status list.
type StatusListStore interface {
	StatusList(ctx context.Context, issuerID string) (*StatusListRecord, error)
	// UpdateStatusList runs mutate inside the per-issuer critical section.
	// A missing record is materialized empty before mutate runs. The updated
	// record is persisted and returned only when mutate returns nil.
	UpdateStatusList(ctx context.Context, issuerID string, mutate func(*StatusListRecord) error) (*StatusListRecord, error)
}

// Store aggregates the collaborator interfaces the engine consumes.
type Store interface {
	IssuerStore
	CredentialStore
	StatusListStore
}
