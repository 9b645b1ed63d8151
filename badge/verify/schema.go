package verify

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/openbadgeworks/go-openbadge-sdk/badge/builder"
)

// Embedded schemas keep the structural check offline: verifiers may have no
// network access at all.
const ob2AssertionSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"title": "Open Badges v2 Assertion",
	"type": "object",
	"required": ["@context", "type", "id", "recipient", "badge", "verification", "issuedOn"],
	"properties": {
		"@context": {
			"oneOf": [
				{"type": "string"},
				{"type": "array", "minItems": 1, "items": {"type": "string"}}
			]
		},
		"type": {"type": "string", "enum": ["Assertion"]},
		"id": {"type": "string", "minLength": 1},
		"recipient": {
			"type": "object",
			"required": ["identity", "type", "hashed"],
			"properties": {
				"identity": {"type": "string", "minLength": 1},
				"type": {"type": "string", "minLength": 1},
				"hashed": {"type": "boolean"},
				"salt": {"type": "string"}
			}
		},
		"badge": {
			"oneOf": [
				{"type": "string", "minLength": 1},
				{
					"type": "object",
					"required": ["id", "type", "name", "issuer"],
					"properties": {
						"id": {"type": "string", "minLength": 1},
						"type": {"type": "string", "enum": ["BadgeClass"]},
						"name": {"type": "string", "minLength": 1}
					}
				}
			]
		},
		"verification": {
			"type": "object",
			"required": ["type"],
			"properties": {"type": {"type": "string", "minLength": 1}}
		},
		"issuedOn": {"type": "string", "minLength": 1},
		"revoked": {"type": "boolean"},
		"revocationReason": {"type": "string"}
	}
}`

const ob3CredentialSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"title": "Open Badges v3 Credential",
	"type": "object",
	"required": ["@context", "type", "id", "issuer", "validFrom", "credentialSubject", "credentialStatus"],
	"properties": {
		"@context": {
			"type": "array",
			"minItems": 1,
			"items": {"type": "string"}
		},
		"type": {
			"type": "array",
			"contains": {"const": "VerifiableCredential"}
		},
		"id": {"type": "string", "minLength": 1},
		"issuer": {
			"oneOf": [
				{"type": "string", "minLength": 1},
				{
					"type": "object",
					"required": ["id"],
					"properties": {"id": {"type": "string", "minLength": 1}}
				}
			]
		},
		"validFrom": {"type": "string", "minLength": 1},
		"credentialSubject": {
			"type": "object",
			"required": ["achievement"],
			"properties": {
				"achievement": {
					"type": "object",
					"required": ["id", "name"],
					"properties": {
						"id": {"type": "string", "minLength": 1},
						"name": {"type": "string", "minLength": 1}
					}
				}
			}
		},
		"credentialStatus": {
			"type": "object",
			"required": ["type", "statusListIndex", "statusListCredential"],
			"properties": {
				"type": {"type": "string", "minLength": 1},
				"statusPurpose": {"type": "string"},
				"statusListIndex": {"type": "string", "minLength": 1},
				"statusListCredential": {"type": "string", "minLength": 1}
			}
		},
		"proof": {}
	}
}`

var (
	ob2SchemaLoader = gojsonschema.NewStringLoader(ob2AssertionSchema)
	ob3SchemaLoader = gojsonschema.NewStringLoader(ob3CredentialSchema)
)

// DetectFormat identifies which document shape a raw document declares, from
// its context and type tags.
func DetectFormat(doc map[string]interface{}) (builder.Format, bool) {
	switch ctx := doc["@context"].(type) {
	case string:
		if ctx == builder.ContextOB2 {
			return builder.FormatOB2, true
		}
	case []interface{}:
		sawOB2 := false
		for _, entry := range ctx {
			switch entry {
			case builder.ContextCredentialsV2:
				return builder.FormatOB3, true
			case builder.ContextOB2:
				sawOB2 = true
			}
		}
		if sawOB2 {
			return builder.FormatOB2, true
		}
	}

	if t, ok := doc["type"].(string); ok && t == "Assertion" {
		return builder.FormatOB2, true
	}

	return "", false
}

// validateSchema runs the format's embedded JSON Schema over the document and
// reports the failing fields.
func validateSchema(doc map[string]interface{}, format builder.Format) error {
	var loader gojsonschema.JSONLoader
	switch format {
	case builder.FormatOB2:
		loader = ob2SchemaLoader
	case builder.FormatOB3:
		loader = ob3SchemaLoader
	default:
		return fmt.Errorf("no schema for format %q", format)
	}

	result, err := gojsonschema.Validate(loader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return fmt.Errorf("%s", strings.Join(details, "; "))
	}

	return nil
}
