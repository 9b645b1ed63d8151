package storage

import (
	"context"
	"sync"
)

// Memory is an in-memory Store for tests and embedded use. The per-issuer
// critical section is a per-issuer mutex; records are copied on the way in and
// out so callers never alias stored state.
type Memory struct {
	mu           sync.RWMutex
	issuers      map[string]Issuer
	issuerKeys   map[string]IssuerKey
	achievements map[string]Achievement
	assertions   map[string]Assertion
	statusLists  map[string]StatusListRecord

	listMu map[string]*sync.Mutex
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		issuers:      make(map[string]Issuer),
		issuerKeys:   make(map[string]IssuerKey),
		achievements: make(map[string]Achievement),
		assertions:   make(map[string]Assertion),
		statusLists:  make(map[string]StatusListRecord),
		listMu:       make(map[string]*sync.Mutex),
	}
}

// PutIssuer stores an issuer profile. Issuers are created administratively,
// outside the engine; this is the seeding hook.
func (m *Memory) PutIssuer(ctx context.Context, issuer *Issuer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.issuers[issuer.ID] = *issuer
	return nil
}

// PutAchievement stores an achievement template.
func (m *Memory) PutAchievement(ctx context.Context, a *Achievement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.achievements[a.ID] = *a
	return nil
}

// Issuer returns the issuer profile for id.
func (m *Memory) Issuer(ctx context.Context, id string) (*Issuer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	issuer, ok := m.issuers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &issuer, nil
}

// IssuerKey returns the key record for issuerID.
func (m *Memory) IssuerKey(ctx context.Context, issuerID string) (*IssuerKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key, ok := m.issuerKeys[issuerID]
	if !ok {
		return nil, ErrNotFound
	}

	keyCopy := key
	keyCopy.EncryptedPrivateKey = append([]byte{}, key.EncryptedPrivateKey...)
	keyCopy.Nonce = append([]byte{}, key.Nonce...)
	return &keyCopy, nil
}

// CreateIssuerKey stores a key record unless one already exists.
func (m *Memory) CreateIssuerKey(ctx context.Context, key *IssuerKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.issuerKeys[key.IssuerID]; ok {
		return ErrExists
	}

	keyCopy := *key
	keyCopy.EncryptedPrivateKey = append([]byte{}, key.EncryptedPrivateKey...)
	keyCopy.Nonce = append([]byte{}, key.Nonce...)
	m.issuerKeys[key.IssuerID] = keyCopy
	return nil
}

// Achievement returns the achievement template for id.
func (m *Memory) Achievement(ctx context.Context, id string) (*Achievement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.achievements[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

// Assertion returns the assertion record for id.
func (m *Memory) Assertion(ctx context.Context, id string) (*Assertion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.assertions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

// PutAssertion stores an assertion record.
func (m *Memory) PutAssertion(ctx context.Context, a *Assertion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.assertions[a.ID] = *a
	return nil
}

// StatusList returns the latest committed status list record for issuerID.
func (m *Memory) StatusList(ctx context.Context, issuerID string) (*StatusListRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.statusLists[issuerID]
	if !ok {
		return nil, ErrNotFound
	}

	return copyStatusList(&rec), nil
}

// UpdateStatusList runs mutate under the issuer's list mutex and commits the
// mutated record. Writers for different issuers do not contend.
func (m *Memory) UpdateStatusList(ctx context.Context, issuerID string, mutate func(*StatusListRecord) error) (*StatusListRecord, error) {
	lock := m.issuerLock(issuerID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.RLock()
	rec, ok := m.statusLists[issuerID]
	m.mu.RUnlock()

	if !ok {
		rec = StatusListRecord{IssuerID: issuerID}
	}

	working := copyStatusList(&rec)
	if err := mutate(working); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.statusLists[issuerID] = *copyStatusList(working)
	m.mu.Unlock()

	return working, nil
}

func (m *Memory) issuerLock(issuerID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.listMu[issuerID]
	if !ok {
		lock = &sync.Mutex{}
		m.listMu[issuerID] = lock
	}
	return lock
}

func copyStatusList(rec *StatusListRecord) *StatusListRecord {
	recCopy := *rec
	if rec.Credential != nil {
		recCopy.Credential = copyDocument(rec.Credential)
	}
	return &recCopy
}

func copyDocument(doc map[string]interface{}) map[string]interface{} {
	docCopy := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		switch value := v.(type) {
		case map[string]interface{}:
			docCopy[k] = copyDocument(value)
		case []interface{}:
			arr := make([]interface{}, len(value))
			for i, item := range value {
				if m, ok := item.(map[string]interface{}); ok {
					arr[i] = copyDocument(m)
				} else {
					arr[i] = item
				}
			}
			docCopy[k] = arr
		default:
			docCopy[k] = v
		}
	}
	return docCopy
}
