package statuslist

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/openbadgeworks/go-openbadge-sdk/badge/common/engineerr"
	"github.com/openbadgeworks/go-openbadge-sdk/badge/proof"
	"github.com/openbadgeworks/go-openbadge-sdk/badge/storage"
)

const (
	// StatusListCredentialType is the wrapping credential's type tag.
	StatusListCredentialType = "BitstringStatusListCredential"

	// StatusListSubjectType is the wrapping credential's subject type.
	StatusListSubjectType = "BitstringStatusList"

	// StatusListEntryType is the credentialStatus entry type on issued
	// credentials.
	StatusListEntryType = "BitstringStatusListEntry"

	// StatusPurposeRevocation is the only status purpose this engine maintains.
	StatusPurposeRevocation = "revocation"

	contextCredentialsV2 = "https://www.w3.org/ns/credentials/v2"
)

// Signer re-signs the wrapping credential whenever the bitstring changes.
// *proof.Engine satisfies it.
type Signer interface {
	Sign(ctx context.Context, doc map[string]interface{}, issuerID string, opts ...proof.SignOption) (map[string]interface{}, error)
}

// Manager owns the per-issuer revocation bitstring: index allocation, bit
// flips, reads, and the signed wrapping credential. Writes run inside the
// store's per-issuer critical section; reads go against the latest committed
// state.
type Manager struct {
	store   storage.StatusListStore
	signer  Signer
	baseURL string
	now     func() time.Time
}

// NewManager creates a status list manager. baseURL is where the wrapping
// credentials are published; the issuer ID is appended as a path element.
func NewManager(store storage.StatusListStore, signer Signer, baseURL string) *Manager {
	return &Manager{
		store:   store,
		signer:  signer,
		baseURL: baseURL,
		now:     time.Now,
	}
}

// ListURL returns the publication URL of an issuer's status list credential.
func (m *Manager) ListURL(issuerID string) string {
	return m.baseURL + "/" + url.PathEscape(issuerID)
}

// Entry builds the credentialStatus block pointing an issued credential at its
// bit in the issuer's list.
func (m *Manager) Entry(issuerID string, index int) map[string]interface{} {
	return map[string]interface{}{
		"id":                   uuid.New().URN(),
		"type":                 StatusListEntryType,
		"statusPurpose":        StatusPurposeRevocation,
		"statusListIndex":      strconv.Itoa(index),
		"statusListCredential": m.ListURL(issuerID),
	}
}

// AllocateIndex returns the next unused index for the issuer. The counter and
// the bitstring live in one record, updated in one critical section, so
// concurrent allocations never hand out the same index.
func (m *Manager) AllocateIndex(ctx context.Context, issuerID string) (int, error) {
	var index int

	_, err := m.store.UpdateStatusList(ctx, issuerID, func(rec *storage.StatusListRecord) error {
		index = rec.NextIndex
		rec.NextIndex++
		return nil
	})
	if err != nil {
		return 0, engineerr.NewStorage("allocate status list index", err)
	}

	return index, nil
}

// SetRevoked flips the bit at index and re-signs the wrapping credential in
// the same critical section. A stale signature over a changed bitstring never
// becomes visible. The reason travels with the credential record, not the
// list; callers persist it there.
func (m *Manager) SetRevoked(ctx context.Context, issuerID string, index int, revoked bool, reason string) error {
	if index < 0 {
		return engineerr.NewRevocation("set revocation bit", fmt.Errorf("index %d is invalid", index))
	}

	_, err := m.store.UpdateStatusList(ctx, issuerID, func(rec *storage.StatusListRecord) error {
		bits, err := m.decodeOrNew(rec)
		if err != nil {
			return err
		}

		if err := bits.Set(index, revoked); err != nil {
			return engineerr.NewRevocation("set revocation bit", err)
		}

		return m.commit(ctx, rec, bits)
	})
	if err != nil {
		var re *engineerr.RevocationError
		if errors.As(err, &re) {
			return err
		}
		return engineerr.NewStorage("update status list", err)
	}

	return nil
}

// IsRevoked reads the bit at index from the latest committed list. Indices
// past the end of the list, and issuers with no list yet, read as unrevoked.
func (m *Manager) IsRevoked(ctx context.Context, issuerID string, index int) (bool, error) {
	rec, err := m.store.StatusList(ctx, issuerID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, engineerr.NewStorage("load status list", err)
	}

	if rec.EncodedList == "" {
		return false, nil
	}

	bits, err := DecodeBits(rec.EncodedList)
	if err != nil {
		return false, engineerr.NewRevocation("decode status list", err)
	}

	revoked, err := bits.Get(index)
	if err != nil {
		return false, engineerr.NewRevocation("read status list bit", err)
	}

	return revoked, nil
}

// StatusListCredential returns the signed wrapping credential for publication,
// materializing and signing an all-unrevoked list on first call.
func (m *Manager) StatusListCredential(ctx context.Context, issuerID string) (map[string]interface{}, error) {
	rec, err := m.store.StatusList(ctx, issuerID)
	if err == nil && rec.Credential != nil {
		return rec.Credential, nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, engineerr.NewStorage("load status list", err)
	}

	updated, err := m.store.UpdateStatusList(ctx, issuerID, func(rec *storage.StatusListRecord) error {
		if rec.Credential != nil {
			return nil
		}

		bits, err := m.decodeOrNew(rec)
		if err != nil {
			return err
		}

		return m.commit(ctx, rec, bits)
	})
	if err != nil {
		return nil, engineerr.NewStorage("materialize status list credential", err)
	}

	return updated.Credential, nil
}

func (m *Manager) decodeOrNew(rec *storage.StatusListRecord) (*BitString, error) {
	if rec.EncodedList == "" {
		return NewBitString(minBitStringSize), nil
	}

	bits, err := DecodeBits(rec.EncodedList)
	if err != nil {
		return nil, engineerr.NewRevocation("decode status list", err)
	}
	return bits, nil
}

// commit re-encodes the bitstring and regenerates the wrapping credential's
// proof; rec leaves this function with list and signature in agreement.
func (m *Manager) commit(ctx context.Context, rec *storage.StatusListRecord, bits *BitString) error {
	encoded, err := bits.EncodeBits()
	if err != nil {
		return engineerr.NewRevocation("encode status list", err)
	}

	if rec.ListID == "" {
		rec.ListID = m.ListURL(rec.IssuerID)
	}

	doc := map[string]interface{}{
		"@context":  []interface{}{contextCredentialsV2},
		"id":        rec.ListID,
		"type":      []interface{}{"VerifiableCredential", StatusListCredentialType},
		"issuer":    rec.IssuerID,
		"validFrom": m.now().UTC().Format(time.RFC3339),
		"credentialSubject": map[string]interface{}{
			"id":            rec.ListID + "#list",
			"type":          StatusListSubjectType,
			"statusPurpose": StatusPurposeRevocation,
			"encodedList":   encoded,
		},
	}

	signed, err := m.signer.Sign(ctx, doc, rec.IssuerID)
	if err != nil {
		return err
	}

	rec.EncodedList = encoded
	rec.Credential = signed
	return nil
}
