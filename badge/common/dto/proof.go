package dto

import "fmt"

// Proof represents a Data Integrity proof embedded in a credential document.
type Proof struct {
	Type               string `json:"type"`
	Created            string `json:"created"`
	VerificationMethod string `json:"verificationMethod"`
	ProofPurpose       string `json:"proofPurpose"`
	ProofValue         string `json:"proofValue,omitempty"`
	Cryptosuite        string `json:"cryptosuite,omitempty"`
}

// ToMap converts the Proof to a JSON-LD compatible map, omitting empty fields.
func (p *Proof) ToMap() map[string]interface{} {
	proofMap := make(map[string]interface{})
	if p.Type != "" {
		proofMap["type"] = p.Type
	}
	if p.Created != "" {
		proofMap["created"] = p.Created
	}
	if p.VerificationMethod != "" {
		proofMap["verificationMethod"] = p.VerificationMethod
	}
	if p.ProofPurpose != "" {
		proofMap["proofPurpose"] = p.ProofPurpose
	}
	if p.ProofValue != "" {
		proofMap["proofValue"] = p.ProofValue
	}
	if p.Cryptosuite != "" {
		proofMap["cryptosuite"] = p.Cryptosuite
	}

	return proofMap
}

// ParseProof converts a raw proof value from a parsed document into a Proof.
// Documents may carry a single proof object or an array; callers pass one entry.
func ParseProof(raw interface{}) (Proof, error) {
	var result Proof

	proofMap, ok := raw.(map[string]interface{})
	if !ok {
		return result, fmt.Errorf("invalid proof format: expected object, got %T", raw)
	}

	if t, ok := proofMap["type"].(string); ok && t != "" {
		result.Type = t
	} else {
		return result, fmt.Errorf("failed to parse proof: invalid or missing type field")
	}
	if created, ok := proofMap["created"].(string); ok {
		result.Created = created
	}
	if vm, ok := proofMap["verificationMethod"].(string); ok && vm != "" {
		result.VerificationMethod = vm
	} else {
		return result, fmt.Errorf("failed to parse proof: invalid or missing verificationMethod field")
	}
	if pp, ok := proofMap["proofPurpose"].(string); ok {
		result.ProofPurpose = pp
	}
	if pv, ok := proofMap["proofValue"].(string); ok {
		result.ProofValue = pv
	}
	if cs, ok := proofMap["cryptosuite"].(string); ok {
		result.Cryptosuite = cs
	}

	return result, nil
}

// FirstProof extracts the first proof entry from a document's proof property,
// which may be a single object or an array of objects.
func FirstProof(raw interface{}) (Proof, error) {
	switch v := raw.(type) {
	case nil:
		return Proof{}, fmt.Errorf("document has no proof")
	case []interface{}:
		if len(v) == 0 {
			return Proof{}, fmt.Errorf("document has an empty proof array")
		}
		return ParseProof(v[0])
	default:
		return ParseProof(raw)
	}
}
