package statuslist

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbadgeworks/go-openbadge-sdk/badge/common/engineerr"
	"github.com/openbadgeworks/go-openbadge-sdk/badge/keys"
	"github.com/openbadgeworks/go-openbadge-sdk/badge/proof"
	"github.com/openbadgeworks/go-openbadge-sdk/badge/storage"
)

const (
	testIssuer  = "https://issuer.example"
	testBaseURL = "https://status.example/lists"
)

func newTestManager(t *testing.T) (*Manager, *proof.Engine, *storage.Memory) {
	t.Helper()

	store := storage.NewMemory()
	km, err := keys.NewManager(store, bytes.Repeat([]byte{0x42}, keys.MasterKeySize))
	require.NoError(t, err)

	proofs := proof.NewEngine(km)
	return NewManager(store, proofs, testBaseURL), proofs, store
}

func TestListURL(t *testing.T) {
	m, _, _ := newTestManager(t)

	assert.Equal(t, testBaseURL+"/"+"https:%2F%2Fissuer.example", m.ListURL(testIssuer))
}

func TestEntryShape(t *testing.T) {
	m, _, _ := newTestManager(t)

	entry := m.Entry(testIssuer, 42)

	assert.Equal(t, StatusListEntryType, entry["type"])
	assert.Equal(t, StatusPurposeRevocation, entry["statusPurpose"])
	assert.Equal(t, "42", entry["statusListIndex"])
	assert.Equal(t, m.ListURL(testIssuer), entry["statusListCredential"])
	assert.True(t, strings.HasPrefix(entry["id"].(string), "urn:uuid:"))
}

func TestAllocateIndexMonotonic(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	for want := 0; want < 5; want++ {
		index, err := m.AllocateIndex(ctx, testIssuer)
		require.NoError(t, err)
		assert.Equal(t, want, index)
	}

	// A second issuer's counter is independent.
	index, err := m.AllocateIndex(ctx, "https://other.example")
	require.NoError(t, err)
	assert.Equal(t, 0, index)
}

func TestAllocateIndexConcurrentCallersGetDistinctIndices(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	const callers = 50

	indices := make([]int, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			index, err := m.AllocateIndex(ctx, testIssuer)
			if err != nil {
				t.Error(err)
				return
			}
			indices[i] = index
		}(i)
	}
	wg.Wait()

	sort.Ints(indices)
	for i, index := range indices {
		assert.Equal(t, i, index, "indices must be dense and unique")
	}
}

func TestSetRevokedFlipsExactlyOneBit(t *testing.T) {
	ctx := context.Background()
	m, proofs, _ := newTestManager(t)

	require.NoError(t, m.SetRevoked(ctx, testIssuer, 7, true, "issued in error"))

	for index := 0; index < 20; index++ {
		revoked, err := m.IsRevoked(ctx, testIssuer, index)
		require.NoError(t, err)
		assert.Equal(t, index == 7, revoked, "index %d", index)
	}

	// The wrapping credential was re-signed over the changed list.
	cred, err := m.StatusListCredential(ctx, testIssuer)
	require.NoError(t, err)
	assert.True(t, proofs.Verify(ctx, cred))

	subject := cred["credentialSubject"].(map[string]interface{})
	assert.Equal(t, StatusPurposeRevocation, subject["statusPurpose"])
	assert.Equal(t, StatusListSubjectType, subject["type"])

	bits, err := DecodeBits(subject["encodedList"].(string))
	require.NoError(t, err)
	revoked, err := bits.Get(7)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestSetRevokedRegeneratesProof(t *testing.T) {
	ctx := context.Background()
	m, proofs, _ := newTestManager(t)

	before, err := m.StatusListCredential(ctx, testIssuer)
	require.NoError(t, err)
	beforeProof := before["proof"].(map[string]interface{})
	beforeSubject := before["credentialSubject"].(map[string]interface{})

	require.NoError(t, m.SetRevoked(ctx, testIssuer, 7, true, ""))

	after, err := m.StatusListCredential(ctx, testIssuer)
	require.NoError(t, err)
	afterProof := after["proof"].(map[string]interface{})
	afterSubject := after["credentialSubject"].(map[string]interface{})

	assert.NotEqual(t, beforeSubject["encodedList"], afterSubject["encodedList"])
	assert.NotEqual(t, beforeProof["proofValue"], afterProof["proofValue"],
		"a changed list must carry a fresh signature")
	assert.True(t, proofs.Verify(ctx, after))
}

func TestSetRevokedReinstates(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	require.NoError(t, m.SetRevoked(ctx, testIssuer, 3, true, "fraud"))
	require.NoError(t, m.SetRevoked(ctx, testIssuer, 3, false, ""))

	revoked, err := m.IsRevoked(ctx, testIssuer, 3)
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestSetRevokedRejectsNegativeIndex(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	err := m.SetRevoked(ctx, testIssuer, -1, true, "")
	require.Error(t, err)

	var re *engineerr.RevocationError
	assert.ErrorAs(t, err, &re)
}

func TestIsRevokedUnknownIssuerReadsUnrevoked(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	revoked, err := m.IsRevoked(ctx, "https://never-issued.example", 0)
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestStatusListCredentialMaterializesEmptyList(t *testing.T) {
	ctx := context.Background()
	m, proofs, store := newTestManager(t)

	cred, err := m.StatusListCredential(ctx, testIssuer)
	require.NoError(t, err)

	assert.Equal(t, m.ListURL(testIssuer), cred["id"])
	assert.Equal(t, []interface{}{"VerifiableCredential", StatusListCredentialType}, cred["type"])
	assert.Equal(t, testIssuer, cred["issuer"])
	assert.True(t, proofs.Verify(ctx, cred))

	subject := cred["credentialSubject"].(map[string]interface{})
	bits, err := DecodeBits(subject["encodedList"].(string))
	require.NoError(t, err)
	for _, index := range []int{0, 1, minBitStringSize - 1} {
		revoked, err := bits.Get(index)
		require.NoError(t, err)
		assert.False(t, revoked)
	}

	// Repeated reads return the committed credential without re-signing.
	rec, err := store.StatusList(ctx, testIssuer)
	require.NoError(t, err)
	again, err := m.StatusListCredential(ctx, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, rec.Credential["proof"], again["proof"])
}

func TestRevocationSurvivesIndexAllocationInterleaving(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	index, err := m.AllocateIndex(ctx, testIssuer)
	require.NoError(t, err)
	require.NoError(t, m.SetRevoked(ctx, testIssuer, index, true, ""))

	// Later allocations leave the earlier bit intact.
	for i := 0; i < 10; i++ {
		_, err := m.AllocateIndex(ctx, testIssuer)
		require.NoError(t, err)
	}

	revoked, err := m.IsRevoked(ctx, testIssuer, index)
	require.NoError(t, err)
	assert.True(t, revoked)
}
