package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

const (
	passwordScheme = "pbkdf2-sha256"
	saltBytes      = 16
	keyBytes       = 32
	// DefaultIterations is used when the hasher is configured with zero.
	DefaultIterations = 210000
)

// PasswordHasher derives project password digests.  Digests carry their own
// salt and iteration count, so the format is
// pbkdf2-sha256$<iterations>$<salt hex>$<key hex>.  Pepper is a server-wide
// secret mixed into every derivation.
type PasswordHasher struct {
	Pepper     string
	Iterations int
}

func (h PasswordHasher) iterations() int {
	if h.Iterations <= 0 {
		return DefaultIterations
	}
	return h.Iterations
}

// Hash returns a new digest for plain with a fresh random salt.
func (h PasswordHasher) Hash(plain string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	return h.derive(plain, salt, h.iterations()), nil
}

func (h PasswordHasher) derive(plain string, salt []byte, iter int) string {
	key := pbkdf2.Key([]byte(plain), append(append([]byte{}, salt...), h.Pepper...), iter, keyBytes, sha256.New)
	return fmt.Sprintf("%s$%d$%s$%s", passwordScheme, iter, hex.EncodeToString(salt), hex.EncodeToString(key))
}

// Verify re-derives plain with the parameters stored in digest and compares
// in constant time.  Digests produced by the earlier unsalted scheme, a hex
// SHA-256 of pepper+password, still verify and report needsRehash.
func (h PasswordHasher) Verify(digest, plain string) (ok, needsRehash bool) {
	parts := strings.Split(digest, "$")
	if len(parts) == 4 && parts[0] == passwordScheme {
		iter, err := strconv.Atoi(parts[1])
		if err != nil || iter <= 0 {
			return false, false
		}
		salt, err := hex.DecodeString(parts[2])
		if err != nil {
			return false, false
		}
		ok = ConstantTimeEqual(h.derive(plain, salt, iter), digest)
		return ok, ok && iter < h.iterations()
	}
	if len(digest) == sha256.Size*2 {
		ok = ConstantTimeEqual(h.LegacyDigest(plain), strings.ToLower(digest))
		return ok, ok
	}
	return false, false
}

// LegacyDigest computes the unsalted digest older records were stored with.
func (h PasswordHasher) LegacyDigest(plain string) string {
	sum := sha256.Sum256([]byte(h.Pepper + plain))
	return hex.EncodeToString(sum[:])
}

// ConstantTimeEqual compares two strings without leaking the position of
// the first difference.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// HashPassword returns bcrypt hash using the given cost.  It is used for the
// developer account, whose hash is provisioned through configuration.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
