// Package address normalizes and derives EVM-style addresses. The registry
// and link manager key every row by the normalized (lowercase) form;
// checksummed forms are presentation only.
package address

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

var hexAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// IsValid reports whether s is a 0x-prefixed 20-byte hex address.
func IsValid(s string) bool {
	return hexAddressPattern.MatchString(s)
}

// Normalize lowercases an address so it can serve as a case-insensitive key.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Equal compares two addresses case-insensitively.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Checksum renders an address in EIP-55 mixed-case form. Input may be any
// casing; output is suitable for display next to wallet-provided addresses.
func Checksum(addr string) string {
	low := strings.TrimPrefix(Normalize(addr), "0x")
	hash := keccak256([]byte(low))
	hexHash := hex.EncodeToString(hash)

	var b strings.Builder
	b.WriteString("0x")
	for i, c := range low {
		if c >= 'a' && c <= 'f' && hexHash[i] >= '8' {
			b.WriteByte(byte(c) - ('a' - 'A'))
		} else {
			b.WriteByte(byte(c))
		}
	}
	return b.String()
}

// DerivePseudo maps an anonymous session id onto a deterministic
// address-shaped string via a keyed hash. The same session id always yields
// the same address; without the key the mapping is not guessable.
func DerivePseudo(key []byte, sessionID string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(sessionID))
	sum := mac.Sum(nil)
	return Checksum("0x" + hex.EncodeToString(sum[:20]))
}

// DeriveCustodial derives the platform-managed address for a user's custodial
// index. Deterministic so repeated authentications resolve to the same
// address without storing it.
func DeriveCustodial(seed []byte, userID string, index uint32) string {
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], index)

	h := sha3.NewLegacyKeccak256()
	h.Write(seed)
	h.Write([]byte(userID))
	h.Write(idx[:])
	sum := h.Sum(nil)
	return Checksum("0x" + hex.EncodeToString(sum[12:]))
}

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}
