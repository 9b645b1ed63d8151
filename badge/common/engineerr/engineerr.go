// Package engineerr defines the typed error taxonomy shared by the badge engine.
// Issuing and provisioning paths surface these to callers; verification paths
// never do and collapse failures into the verification result instead.
package engineerr

import "fmt"

type base struct {
	op  string
	err error
}

func (b *base) Error() string {
	if b.err == nil {
		return fmt.Sprintf("failed to %s", b.op)
	}
	return fmt.Sprintf("failed to %s: %v", b.op, b.err)
}

func (b *base) Unwrap() error {
	return b.err
}

// ValidationError reports a document missing or malforming required fields.
type ValidationError struct{ base }

// NewValidation wraps err as a ValidationError for the given operation.
func NewValidation(op string, err error) *ValidationError {
	return &ValidationError{base{op: op, err: err}}
}

// KeyError reports missing, unprovisionable, or undecryptable issuer key material.
type KeyError struct{ base }

// NewKey wraps err as a KeyError for the given operation.
func NewKey(op string, err error) *KeyError {
	return &KeyError{base{op: op, err: err}}
}

// SignatureError reports an unresolvable verification method or a failed
// signing operation.
type SignatureError struct{ base }

// NewSignature wraps err as a SignatureError for the given operation.
func NewSignature(op string, err error) *SignatureError {
	return &SignatureError{base{op: op, err: err}}
}

// RevocationError reports an unreadable or corrupt status list.
type RevocationError struct{ base }

// NewRevocation wraps err as a RevocationError for the given operation.
func NewRevocation(op string, err error) *RevocationError {
	return &RevocationError{base{op: op, err: err}}
}

// StorageError reports an unavailable or failing storage collaborator.
type StorageError struct{ base }

// NewStorage wraps err as a StorageError for the given operation.
func NewStorage(op string, err error) *StorageError {
	return &StorageError{base{op: op, err: err}}
}
