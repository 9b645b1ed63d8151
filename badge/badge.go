// Package badge is the credential engine facade: it wires the key manager,
// proof engine, credential builder, and status list manager over one storage
// collaborator, and exposes issuance, revocation, and verification.
package badge

import (
	"context"
	"fmt"

	"github.com/openbadgeworks/go-openbadge-sdk/badge/builder"
	"github.com/openbadgeworks/go-openbadge-sdk/badge/common/engineerr"
	"github.com/openbadgeworks/go-openbadge-sdk/badge/keys"
	"github.com/openbadgeworks/go-openbadge-sdk/badge/proof"
	"github.com/openbadgeworks/go-openbadge-sdk/badge/statuslist"
	"github.com/openbadgeworks/go-openbadge-sdk/badge/storage"
	"github.com/openbadgeworks/go-openbadge-sdk/badge/verify"
)

// Config wires an Engine.
type Config struct {
	// Store is the durable storage collaborator.
	Store storage.Store

	// MasterKey is the process-wide key sealing private key material at rest.
	// Must be keys.MasterKeySize bytes.
	MasterKey []byte

	// StatusBaseURL is where status list credentials are published; the
	// issuer ID is appended as a path element.
	StatusBaseURL string

	// ProofOptions are passed through to the proof engine.
	ProofOptions []proof.Option
}

// Engine issues, signs, revokes, and verifies badge credentials.
type Engine struct {
	store    storage.Store
	keys     *keys.Manager
	proofs   *proof.Engine
	status   *statuslist.Manager
	builder  *builder.Builder
	verifier *verify.Orchestrator
}

// New creates an engine from the config.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("failed to create engine: store is required")
	}
	if cfg.StatusBaseURL == "" {
		return nil, fmt.Errorf("failed to create engine: status base URL is required")
	}

	km, err := keys.NewManager(cfg.Store, cfg.MasterKey)
	if err != nil {
		return nil, err
	}

	proofs := proof.NewEngine(km, cfg.ProofOptions...)
	status := statuslist.NewManager(cfg.Store, proofs, cfg.StatusBaseURL)

	return &Engine{
		store:    cfg.Store,
		keys:     km,
		proofs:   proofs,
		status:   status,
		builder:  builder.NewBuilder(status),
		verifier: verify.NewOrchestrator(proofs, status),
	}, nil
}

// Issue builds the credential document for a stored assertion in the requested
// format. The verifiable-credential form gets a status list index allocated on
// first issuance and an embedded proof; the hosted form gets neither. Any
// failure is a hard failure: no partial document is ever returned.
func (e *Engine) Issue(ctx context.Context, assertionID string, format builder.Format) (*builder.Document, error) {
	assertion, achievement, issuer, err := e.load(ctx, assertionID)
	if err != nil {
		return nil, err
	}

	if format == builder.FormatOB3 && assertion.StatusListIndex < 0 {
		index, err := e.status.AllocateIndex(ctx, issuer.ID)
		if err != nil {
			return nil, err
		}

		assertion.StatusListIndex = index
		if err := e.store.PutAssertion(ctx, assertion); err != nil {
			return nil, engineerr.NewStorage("persist status list index", err)
		}
	}

	doc, err := e.builder.Build(assertion, achievement, issuer, format)
	if err != nil {
		return nil, err
	}

	if format == builder.FormatOB3 {
		signed, err := e.proofs.Sign(ctx, doc.Data, issuer.ID)
		if err != nil {
			return nil, err
		}
		doc.Data = signed
	}

	return doc, nil
}

// Revoke flags the assertion and sets its status list bit. The wrapping status
// list credential is re-signed in the same update.
func (e *Engine) Revoke(ctx context.Context, assertionID, reason string) error {
	return e.setRevoked(ctx, assertionID, true, reason)
}

// Reinstate clears a revocation.
func (e *Engine) Reinstate(ctx context.Context, assertionID string) error {
	return e.setRevoked(ctx, assertionID, false, "")
}

func (e *Engine) setRevoked(ctx context.Context, assertionID string, revoked bool, reason string) error {
	assertion, err := e.store.Assertion(ctx, assertionID)
	if err != nil {
		return engineerr.NewStorage("load assertion", err)
	}

	if assertion.StatusListIndex >= 0 {
		if err := e.status.SetRevoked(ctx, assertion.IssuerID, assertion.StatusListIndex, revoked, reason); err != nil {
			return err
		}
	}

	assertion.Revoked = revoked
	assertion.RevocationReason = reason
	if err := e.store.PutAssertion(ctx, assertion); err != nil {
		return engineerr.NewStorage("persist revocation", err)
	}

	return nil
}

// StatusListCredential returns the issuer's signed status list credential for
// publication.
func (e *Engine) StatusListCredential(ctx context.Context, issuerID string) (map[string]interface{}, error) {
	return e.status.StatusListCredential(ctx, issuerID)
}

// Verifier returns the verification orchestrator bound to this engine's
// collaborators.
func (e *Engine) Verifier() *verify.Orchestrator {
	return e.verifier
}

// Keys returns the issuer key manager.
func (e *Engine) Keys() *keys.Manager {
	return e.keys
}

// Proofs returns the proof engine.
func (e *Engine) Proofs() *proof.Engine {
	return e.proofs
}

// StatusLists returns the status list manager.
func (e *Engine) StatusLists() *statuslist.Manager {
	return e.status
}

func (e *Engine) load(ctx context.Context, assertionID string) (*storage.Assertion, *storage.Achievement, *storage.Issuer, error) {
	assertion, err := e.store.Assertion(ctx, assertionID)
	if err != nil {
		return nil, nil, nil, engineerr.NewStorage("load assertion", err)
	}

	achievement, err := e.store.Achievement(ctx, assertion.AchievementID)
	if err != nil {
		return nil, nil, nil, engineerr.NewStorage("load achievement", err)
	}

	issuer, err := e.store.Issuer(ctx, assertion.IssuerID)
	if err != nil {
		return nil, nil, nil, engineerr.NewStorage("load issuer", err)
	}

	return assertion, achievement, issuer, nil
}
