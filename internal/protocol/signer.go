package protocol

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Blackstocks/Inlane/internal/domain"
)

// concatInOrder joins field values (never names) in signing order.
// Empty and absent values are skipped entirely, not represented as
// placeholders; the gateway does the same, and any divergence here
// produces signatures that never match.
func concatInOrder(v Variant, fields map[string]string) (string, error) {
	order, err := SigningOrder(v, fields)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, name := range order {
		if val := fields[name]; val != "" {
			b.WriteString(val)
		}
	}

	return b.String(), nil
}

// Sign computes the keyed digest over the canonicalized field set.
// Redirect-hash: HMAC-SHA256(secret, concat), lower hex.
// Encrypted-payload: SHA-256(secret + concat), upper hex — the secret is a
// prefix salt, not an HMAC key.
func Sign(v Variant, fields map[string]string, secret string) (string, error) {
	data, err := concatInOrder(v, fields)
	if err != nil {
		return "", err
	}

	switch v {
	case VariantRedirectHash:
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(data))
		return hex.EncodeToString(mac.Sum(nil)), nil

	case VariantEncryptedPayload:
		sum := sha256.Sum256([]byte(secret + data))
		return strings.ToUpper(hex.EncodeToString(sum[:])), nil
	}

	// unreachable: SigningOrder already rejects unknown variants
	return "", fmt.Errorf("%w: unknown gateway variant %q", domain.ErrConfiguration, string(v))
}

// Verify recomputes the digest and compares case-insensitively. It never
// returns an error: any internal failure means "not authentic", because a
// crash on the callback path is worse than a rejection.
func Verify(v Variant, fields map[string]string, claimed, secret string) bool {
	if claimed == "" {
		return false
	}

	expected, err := Sign(v, fields, secret)
	if err != nil {
		return false
	}

	return hmac.Equal([]byte(strings.ToLower(expected)), []byte(strings.ToLower(claimed)))
}
