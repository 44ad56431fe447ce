package usecase

import (
	"context"
	"errors"
	"log"
	"net/url"

	"github.com/Blackstocks/Inlane/internal/domain"
	"github.com/Blackstocks/Inlane/internal/protocol"
)

// CallbackEnvelope is the inbound callback in raw form: flat fields for
// the redirect-hash dialect, an opaque blob plus routing identifiers for
// the encrypted-payload dialect. It lives for one request only.
type CallbackEnvelope struct {
	Fields        map[string]string
	EncryptedData string
	MerchantID    string
	TerminalID    string
	BankID        string
}

// CallbackResult always carries a browser redirect; a processing failure
// means a failure-page redirect with a reason, never a hanging caller.
type CallbackResult struct {
	MerchantTxnRef string
	Settled        bool
	State          domain.TxState
	Reason         string
	RedirectURL    string
}

// HandleCallback runs the per-callback state machine: Received -> Decoded
// -> Verified -> Settled, linear, failing closed at every step. An
// unverified callback never touches transaction state; it is
// indistinguishable from a forged one.
func (s *PaymentService) HandleCallback(ctx context.Context, env CallbackEnvelope) CallbackResult {
	// Decoded
	fields := env.Fields
	if s.settings.Variant == protocol.VariantEncryptedPayload {
		if env.MerchantID != "" && env.MerchantID != s.settings.MerchantID {
			log.Printf("callback rejected: routed for merchant %q", env.MerchantID)
			return s.reject("", "merchant mismatch")
		}

		decoded, err := s.codec.Decode(env.EncryptedData)
		if err != nil {
			log.Printf("callback rejected: %v", err)
			return s.reject("", "invalid payload")
		}
		fields = decoded
	}
	if len(fields) == 0 {
		return s.reject("", "empty callback")
	}

	ref := fields["merchantTxnNo"]

	// Verified
	claimed := fields[protocol.DigestField(s.settings.Variant)]
	if !protocol.Verify(s.settings.Variant, fields, claimed, s.settings.SignSecret) {
		log.Printf("callback rejected for %q: signature mismatch", ref)
		return s.reject(ref, "signature mismatch")
	}

	// Settled
	if ref == "" {
		return s.reject(ref, "missing transaction reference")
	}

	if _, err := s.repo.GetByRef(ctx, ref); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Printf("callback for unknown transaction %q", ref)
			return s.reject(ref, "unknown transaction")
		}
		log.Printf("callback lookup failed for %q: %v", ref, err)
		return s.reject(ref, "processing failed")
	}

	return s.settleFromFields(ctx, ref, fields)
}

// settleFromFields maps the gateway outcome and performs the one-time
// state transition. Shared with reconciliation, which feeds gateway
// status-query responses through the same path.
func (s *PaymentService) settleFromFields(ctx context.Context, ref string, fields map[string]string) CallbackResult {
	code := fields["responseCode"]
	if code == "" {
		code = fields["status"]
	}

	outcome := domain.StateFailed
	if s.isSuccessCode(code) {
		outcome = domain.StateSucceeded
	}

	gw := domain.GatewayResult{
		GatewayReference: firstNonEmpty(fields["txnID"], fields["paymentID"]),
		ResponseCode:     code,
		ResponseMessage:  fields["responseDescription"],
	}

	txn, err := s.repo.Settle(ctx, ref, outcome, gw)
	switch {
	case errors.Is(err, domain.ErrAlreadySettled):
		// replayed delivery; report the stored outcome unchanged
		log.Printf("duplicate settlement attempt for %q ignored", ref)
	case errors.Is(err, domain.ErrNotFound):
		return s.reject(ref, "unknown transaction")
	case err != nil:
		log.Printf("settle failed for %q: %v", ref, err)
		return s.reject(ref, "processing failed")
	}

	if txn.State == domain.StateSucceeded {
		return CallbackResult{
			MerchantTxnRef: ref,
			Settled:        true,
			State:          txn.State,
			RedirectURL:    s.successRedirect(txn),
		}
	}

	reason := txn.ResponseCode
	if reason == "" {
		reason = "payment failed"
	}
	return CallbackResult{
		MerchantTxnRef: ref,
		Settled:        true,
		State:          txn.State,
		Reason:         reason,
		RedirectURL:    s.failureRedirect(ref, reason),
	}
}

func (s *PaymentService) reject(ref, reason string) CallbackResult {
	return CallbackResult{
		MerchantTxnRef: ref,
		Reason:         reason,
		RedirectURL:    s.failureRedirect(ref, reason),
	}
}

func (s *PaymentService) successRedirect(txn *domain.Transaction) string {
	q := url.Values{}
	q.Set("transactionId", txn.MerchantTxnRef)
	q.Set("amount", domain.FormatAmountMinor(txn.AmountMinor))
	return s.settings.SuccessURL + "?" + q.Encode()
}

func (s *PaymentService) failureRedirect(ref, reason string) string {
	q := url.Values{}
	if ref != "" {
		q.Set("transactionId", ref)
	}
	q.Set("error", reason)
	return s.settings.FailureURL + "?" + q.Encode()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
