package protocol

import (
	"fmt"
	"sort"

	"github.com/Blackstocks/Inlane/internal/domain"
)

// Variant selects one of the two gateway protocol dialects. Both are
// first-class: which one is live is decided by configuration, never by
// sniffing the payload.
type Variant string

const (
	// VariantRedirectHash signs a fixed-sequence concatenation with
	// HMAC-SHA256 and sends the payer through a redirect URL.
	VariantRedirectHash Variant = "redirect_hash"

	// VariantEncryptedPayload carries the whole field set as an
	// AES-encrypted blob and salts a plain SHA-256 digest with a shared
	// secret prefix.
	VariantEncryptedPayload Variant = "encrypted_payload"
)

func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case VariantRedirectHash, VariantEncryptedPayload:
		return Variant(s), nil
	}
	return "", fmt.Errorf("%w: unknown gateway variant %q", domain.ErrConfiguration, s)
}

// redirectHashSequence is the bank-defined signing order for the
// redirect-hash dialect. It is a protocol constant, not alphabetical;
// do not "fix" the order. Routing metadata (aggregatorID) is deliberately
// absent: it travels with requests but never participates in the hash.
var redirectHashSequence = []string{
	"addlParam1",
	"addlParam2",
	"amount",
	"currencyCode",
	"customerEmailID",
	"customerMobileNo",
	"merchantId",
	"merchantTxnNo",
	"originalTxnNo",
	"payType",
	"paymentDateTime",
	"paymentID",
	"responseCode",
	"responseDescription",
	"returnURL",
	"transactionType",
	"txnDate",
	"txnID",
}

// DigestField names the field carrying the keyed digest for a variant.
// It never participates in its own signing input.
func DigestField(v Variant) string {
	switch v {
	case VariantEncryptedPayload:
		return "checkSum"
	default:
		return "secureHash"
	}
}

// SigningOrder returns the ordered field names of fields that participate
// in signing for the given variant, excluding the digest field itself.
func SigningOrder(v Variant, fields map[string]string) ([]string, error) {
	switch v {
	case VariantRedirectHash:
		var names []string
		for _, name := range redirectHashSequence {
			if _, ok := fields[name]; ok {
				names = append(names, name)
			}
		}
		return names, nil

	case VariantEncryptedPayload:
		digest := DigestField(v)
		names := make([]string, 0, len(fields))
		for name := range fields {
			if name == digest {
				continue
			}
			names = append(names, name)
		}
		sort.Strings(names)
		return names, nil
	}

	return nil, fmt.Errorf("%w: unknown gateway variant %q", domain.ErrConfiguration, string(v))
}
