// Package builder maps stored assertion, achievement, and issuer records into
// credential documents: the legacy hosted-verification assertion or the
// verifiable-credential form. Both outputs are projections of the same records
// and differ only in envelope, context, type, and status/proof linkage.
package builder

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/openbadgeworks/go-openbadge-sdk/badge/common/engineerr"
	"github.com/openbadgeworks/go-openbadge-sdk/badge/storage"
)

// Format tags the two credential document shapes.
type Format string

const (
	// FormatOB2 is the legacy hosted-verification assertion.
	FormatOB2 Format = "ob2"

	// FormatOB3 is the verifiable-credential form with embedded proof and
	// status list linkage.
	FormatOB3 Format = "ob3"
)

const (
	// ContextOB2 is the JSON-LD context of hosted assertions.
	ContextOB2 = "https://w3id.org/openbadges/v2"

	// ContextCredentialsV2 is the W3C credentials context.
	ContextCredentialsV2 = "https://www.w3.org/ns/credentials/v2"

	// ContextOB3 is the Open Badges 3.0 extension context.
	ContextOB3 = "https://purl.imsglobal.org/spec/ob/v3p0/context-3.0.3.json"
)

// Document is a built credential: the format tag plus the JSON-LD body.
// Consumers branch on Format explicitly instead of probing field presence.
type Document struct {
	Format Format
	Data   map[string]interface{}
}

// StatusEntrySource builds the credentialStatus block for an issued
// credential's assigned index. *statuslist.Manager satisfies it.
type StatusEntrySource interface {
	Entry(issuerID string, index int) map[string]interface{}
}

// Builder assembles credential documents from stored records.
type Builder struct {
	status StatusEntrySource
}

// NewBuilder creates a builder. status supplies credentialStatus blocks for
// the verifiable-credential format.
func NewBuilder(status StatusEntrySource) *Builder {
	return &Builder{status: status}
}

// Build produces the document for the assertion in the requested format. The
// records must belong together; a verifiable credential additionally needs a
// status list index already assigned.
func (b *Builder) Build(a *storage.Assertion, achievement *storage.Achievement, issuer *storage.Issuer, format Format) (*Document, error) {
	if a == nil || achievement == nil || issuer == nil {
		return nil, engineerr.NewValidation("build credential", fmt.Errorf("assertion, achievement, and issuer are required"))
	}
	if a.AchievementID != achievement.ID {
		return nil, engineerr.NewValidation("build credential", fmt.Errorf("assertion references achievement %q, got %q", a.AchievementID, achievement.ID))
	}
	if achievement.IssuerID != issuer.ID || a.IssuerID != issuer.ID {
		return nil, engineerr.NewValidation("build credential", fmt.Errorf("records do not belong to issuer %q", issuer.ID))
	}

	switch format {
	case FormatOB2:
		return &Document{Format: FormatOB2, Data: b.buildOB2(a, achievement, issuer)}, nil
	case FormatOB3:
		if a.StatusListIndex < 0 {
			return nil, engineerr.NewValidation("build credential", fmt.Errorf("assertion %q has no status list index assigned", a.ID))
		}
		return &Document{Format: FormatOB3, Data: b.buildOB3(a, achievement, issuer)}, nil
	default:
		return nil, engineerr.NewValidation("build credential", fmt.Errorf("unknown format %q", format))
	}
}

// buildOB2 assembles the hosted assertion: no embedded proof, verification
// delegated to the issuer's hosting endpoint.
func (b *Builder) buildOB2(a *storage.Assertion, achievement *storage.Achievement, issuer *storage.Issuer) map[string]interface{} {
	recipient := map[string]interface{}{
		"type":     recipientType(a),
		"identity": recipientIdentity(a),
		"hashed":   a.Hashed,
	}
	if a.Hashed && a.Salt != "" {
		recipient["salt"] = a.Salt
	}

	doc := map[string]interface{}{
		"@context":  ContextOB2,
		"type":      "Assertion",
		"id":        a.ID,
		"recipient": recipient,
		"badge": map[string]interface{}{
			"type":        "BadgeClass",
			"id":          achievement.ID,
			"name":        achievement.Name,
			"description": achievement.Description,
			"criteria":    map[string]interface{}{"narrative": achievement.Criteria},
			"image":       achievement.Image,
			"issuer": map[string]interface{}{
				"type":  "Profile",
				"id":    issuer.ID,
				"name":  issuer.Name,
				"url":   issuer.URL,
				"email": issuer.Email,
			},
		},
		"verification": map[string]interface{}{"type": "hosted"},
		"issuedOn":     a.IssuedOn.UTC().Format(time.RFC3339),
	}

	if a.Revoked {
		doc["revoked"] = true
		if a.RevocationReason != "" {
			doc["revocationReason"] = a.RevocationReason
		}
	}

	return doc
}

// buildOB3 assembles the verifiable credential wrapping the achievement
// subject; the proof is attached by the proof engine afterwards.
func (b *Builder) buildOB3(a *storage.Assertion, achievement *storage.Achievement, issuer *storage.Issuer) map[string]interface{} {
	return map[string]interface{}{
		"@context": []interface{}{ContextCredentialsV2, ContextOB3},
		"type":     []interface{}{"VerifiableCredential", "OpenBadgeCredential"},
		"id":       a.ID,
		"issuer": map[string]interface{}{
			"type": "Profile",
			"id":   issuer.ID,
			"name": issuer.Name,
			"url":  issuer.URL,
		},
		"validFrom": a.IssuedOn.UTC().Format(time.RFC3339),
		"credentialSubject": map[string]interface{}{
			"type":     "AchievementSubject",
			"identity": recipientIdentity(a),
			"achievement": map[string]interface{}{
				"type":        "Achievement",
				"id":          achievement.ID,
				"name":        achievement.Name,
				"description": achievement.Description,
				"criteria":    map[string]interface{}{"narrative": achievement.Criteria},
				"image":       achievement.Image,
			},
		},
		"credentialStatus": b.status.Entry(issuer.ID, a.StatusListIndex),
	}
}

func recipientType(a *storage.Assertion) string {
	if a.RecipientType == "" {
		return "email"
	}
	return a.RecipientType
}

// recipientIdentity renders the subject identity, salted-hashed when the
// assertion asks for privacy-preserving form.
func recipientIdentity(a *storage.Assertion) string {
	if !a.Hashed {
		return a.RecipientIdentity
	}

	sum := sha256.Sum256([]byte(a.RecipientIdentity + a.Salt))
	return "sha256$" + hex.EncodeToString(sum[:])
}
