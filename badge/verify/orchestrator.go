// Package verify runs the structural, signature, and revocation checks over a
// presented credential document and aggregates them into one result. All three
// checks always run; a verifier gets every failure named, not just the first.
package verify

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openbadgeworks/go-openbadge-sdk/badge/builder"
	"github.com/openbadgeworks/go-openbadge-sdk/badge/proof"
)

// Checks holds the outcome of each independent verification check.
type Checks struct {
	Structure  bool `json:"structure"`
	Signature  bool `json:"signature"`
	Revocation bool `json:"revocation"`
}

// Result is the aggregated verification outcome. Valid is the conjunction of
// the three checks; Errors carries one entry per failing check.
type Result struct {
	Valid  bool     `json:"valid"`
	Checks Checks   `json:"checks"`
	Errors []string `json:"errors"`
}

// RevocationSource answers revocation for an issuer's status list index.
// *statuslist.Manager satisfies it.
type RevocationSource interface {
	IsRevoked(ctx context.Context, issuerID string, index int) (bool, error)
}

// RemoteStatus answers revocation from a published status list credential, for
// verifiers without the issuer's store. *statuslist.Client satisfies it.
type RemoteStatus interface {
	IsRevoked(ctx context.Context, statusEntry map[string]interface{}) (bool, error)
}

// Orchestrator aggregates the three verification checks.
type Orchestrator struct {
	proofs *proof.Engine
	status RevocationSource
	remote RemoteStatus
	tracer trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRemoteStatus makes revocation checks resolve against published status
// list credentials instead of the local status source.
func WithRemoteStatus(remote RemoteStatus) Option {
	return func(o *Orchestrator) {
		o.remote = remote
	}
}

// NewOrchestrator creates a verification orchestrator. status may be nil when
// a remote source is configured.
func NewOrchestrator(proofs *proof.Engine, status RevocationSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		proofs: proofs,
		status: status,
		tracer: otel.Tracer("openbadge-sdk/verify"),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Verify runs all three checks over the document in a single pass, without
// short-circuiting, and returns the aggregated result. It never returns an
// error: a verifier always receives a definitive answer.
func (o *Orchestrator) Verify(ctx context.Context, doc map[string]interface{}) Result {
	ctx, span := o.tracer.Start(ctx, "credential.verify")
	defer span.End()

	var result Result

	if doc == nil {
		result.Errors = []string{
			"structure: document is empty",
			"signature: document is empty",
		}
		result.Checks.Revocation = true
		span.SetAttributes(attribute.Bool("verify.valid", false))
		return result
	}

	format, known := DetectFormat(doc)

	result.Checks.Structure = o.structuralCheck(doc, format, known, &result)
	result.Checks.Signature = o.signatureCheck(ctx, doc, format, known, result.Checks.Structure, &result)
	result.Checks.Revocation = o.revocationCheck(ctx, doc, format, known, &result)

	result.Valid = result.Checks.Structure && result.Checks.Signature && result.Checks.Revocation

	span.SetAttributes(
		attribute.Bool("verify.valid", result.Valid),
		attribute.Bool("verify.structure", result.Checks.Structure),
		attribute.Bool("verify.signature", result.Checks.Signature),
		attribute.Bool("verify.revocation", result.Checks.Revocation),
		attribute.String("verify.format", string(format)),
	)

	return result
}

func (o *Orchestrator) structuralCheck(doc map[string]interface{}, format builder.Format, known bool, result *Result) bool {
	if !known {
		result.Errors = append(result.Errors, "structure: document declares neither a recognized assertion context nor a credentials context")
		return false
	}

	if err := validateSchema(doc, format); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("structure: %v", err))
		return false
	}

	return true
}

func (o *Orchestrator) signatureCheck(ctx context.Context, doc map[string]interface{}, format builder.Format, known, structureOK bool, result *Result) bool {
	if !known {
		result.Errors = append(result.Errors, "signature: cannot check an unrecognized document format")
		return false
	}

	if format == builder.FormatOB2 {
		// Hosted verification carries no proof; trust is delegated to the
		// issuer's hosting endpoint once the document itself holds together.
		if !structureOK {
			result.Errors = append(result.Errors, "signature: hosted verification requires a structurally valid assertion")
			return false
		}
		return true
	}

	ok, reason := o.proofs.VerifyWithReason(ctx, doc)
	if !ok {
		result.Errors = append(result.Errors, fmt.Sprintf("signature: %s", reason))
	}
	return ok
}

func (o *Orchestrator) revocationCheck(ctx context.Context, doc map[string]interface{}, format builder.Format, known bool, result *Result) bool {
	// Unrecognized documents and legacy assertions without a revoked flag have
	// nothing to consult; absence of a status entry means not revoked there.
	if !known {
		return true
	}

	if format == builder.FormatOB2 {
		if revoked, _ := doc["revoked"].(bool); revoked {
			msg := "revocation: assertion is revoked"
			if reason, _ := doc["revocationReason"].(string); reason != "" {
				msg += ": " + reason
			}
			result.Errors = append(result.Errors, msg)
			return false
		}
		return true
	}

	entry, ok := doc["credentialStatus"].(map[string]interface{})
	if !ok {
		// Missing status on a verifiable credential is a structural defect,
		// reported by the structural check; there is no bit to consult.
		return true
	}

	revoked, err := o.resolveRevocation(ctx, doc, entry)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("revocation: %v", err))
		return false
	}
	if revoked {
		result.Errors = append(result.Errors, "revocation: credential is revoked")
		return false
	}

	return true
}

func (o *Orchestrator) resolveRevocation(ctx context.Context, doc, entry map[string]interface{}) (bool, error) {
	if o.remote != nil {
		return o.remote.IsRevoked(ctx, entry)
	}
	if o.status == nil {
		return false, fmt.Errorf("no revocation source configured")
	}

	indexStr, _ := entry["statusListIndex"].(string)
	index, err := strconv.Atoi(indexStr)
	if err != nil {
		return false, fmt.Errorf("statusListIndex %q is not a number", indexStr)
	}

	issuerID := issuerOf(doc)
	if issuerID == "" {
		return false, fmt.Errorf("credential names no issuer to resolve the status list against")
	}

	return o.status.IsRevoked(ctx, issuerID, index)
}

func issuerOf(doc map[string]interface{}) string {
	switch issuer := doc["issuer"].(type) {
	case string:
		return issuer
	case map[string]interface{}:
		id, _ := issuer["id"].(string)
		return id
	default:
		return ""
	}
}
