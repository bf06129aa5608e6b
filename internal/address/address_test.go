package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"))
	assert.True(t, IsValid("0x0000000000000000000000000000000000000000"))
	assert.False(t, IsValid("5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"))
	assert.False(t, IsValid("0x5aAeb6"))
	assert.False(t, IsValid("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeZ"))
}

func TestNormalizeAndEqual(t *testing.T) {
	assert.Equal(t, "0xabcdef", Normalize("  0xABCdef "))
	assert.True(t, Equal("0xABC", "0xabc"))
	assert.False(t, Equal("0xABC", "0xabd"))
}

// Known EIP-55 vector from the checksum specification.
func TestChecksum(t *testing.T) {
	got := Checksum("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", got)

	// Input casing must not matter.
	assert.Equal(t, got, Checksum("0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED"))
}

func TestDerivePseudo(t *testing.T) {
	key := []byte("test-key")

	a := DerivePseudo(key, "anon_session_1")
	b := DerivePseudo(key, "anon_session_1")
	c := DerivePseudo(key, "anon_session_2")

	require.True(t, IsValid(a), "pseudo-address must be address-shaped: %s", a)
	assert.Equal(t, a, b, "same session id must derive the same address")
	assert.NotEqual(t, a, c, "different session ids must derive different addresses")

	// A different key must produce an unrelated address.
	assert.NotEqual(t, a, DerivePseudo([]byte("other-key"), "anon_session_1"))
}

func TestDeriveCustodial(t *testing.T) {
	seed := []byte("custodial-seed")

	a := DeriveCustodial(seed, "user-1", 0)
	require.True(t, IsValid(a))
	assert.Equal(t, a, DeriveCustodial(seed, "user-1", 0))
	assert.NotEqual(t, a, DeriveCustodial(seed, "user-1", 1))
	assert.NotEqual(t, a, DeriveCustodial(seed, "user-2", 0))
}
