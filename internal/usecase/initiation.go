package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/Blackstocks/Inlane/internal/domain"
	"github.com/Blackstocks/Inlane/internal/protocol"
)

type InitiateRequest struct {
	AmountMinor int64
	Customer    domain.Customer
}

// InitiateResult is what the payer-facing client needs to continue:
// either a gateway redirect URL (redirect-hash) or an opaque form payload
// plus the URL to post it to (encrypted-payload).
type InitiateResult struct {
	MerchantTxnRef string
	RedirectURL    string
	FormTarget     string
	FormFields     map[string]string
}

const fallbackMobile = "9999999999"

// Initiate validates the request, persists a PENDING transaction, and
// prepares the gateway hand-off. The record is written before any
// redirect target is exposed, so a callback racing the caller's client
// code always finds its transaction.
func (s *PaymentService) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	if req.AmountMinor <= 0 {
		return nil, fmt.Errorf("%w: amount must be > 0", domain.ErrValidation)
	}
	if req.Customer.Name == "" || req.Customer.Email == "" {
		return nil, fmt.Errorf("%w: customer name and email are required", domain.ErrValidation)
	}

	txn, err := s.createPending(ctx, req)
	if err != nil {
		return nil, err
	}

	switch s.settings.Variant {
	case protocol.VariantRedirectHash:
		return s.initiateRedirect(ctx, txn)
	default:
		return s.initiateEncrypted(txn)
	}
}

// createPending persists the new transaction, regenerating the reference
// on the (extremely rare) collision.
func (s *PaymentService) createPending(ctx context.Context, req InitiateRequest) (*domain.Transaction, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		txn := &domain.Transaction{
			MerchantTxnRef: s.newTxnRef(),
			AmountMinor:    req.AmountMinor,
			Currency:       s.settings.CurrencyCode,
			Customer:       req.Customer,
			State:          domain.StatePending,
			CreatedAt:      s.now(),
		}

		err := s.repo.Create(ctx, txn)
		if err == nil {
			return txn, nil
		}
		if !errors.Is(err, domain.ErrDuplicateReference) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

func (s *PaymentService) saleFields(txn *domain.Transaction) map[string]string {
	phone := txn.Customer.Phone
	if phone == "" {
		phone = fallbackMobile
	}

	return map[string]string{
		"merchantId":       s.settings.MerchantID,
		"merchantTxnNo":    txn.MerchantTxnRef,
		"amount":           domain.FormatAmountMinor(txn.AmountMinor),
		"currencyCode":     s.settings.CurrencyCode,
		"payType":          "0",
		"customerEmailID":  txn.Customer.Email,
		"customerMobileNo": phone,
		"transactionType":  "SALE",
		"txnDate":          s.txnDate(),
		"returnURL":        s.settings.CallbackURL,
		"addlParam1":       txn.Customer.Name,
		"addlParam2":       "Inlane Lead Form",
	}
}

func (s *PaymentService) initiateRedirect(ctx context.Context, txn *domain.Transaction) (*InitiateResult, error) {
	fields := s.saleFields(txn)

	digest, err := protocol.Sign(s.settings.Variant, fields, s.settings.SignSecret)
	if err != nil {
		return nil, err
	}
	fields[protocol.DigestField(s.settings.Variant)] = digest

	resp, err := s.gw.InitiateSale(ctx, fields)
	if err != nil {
		// stays PENDING; reconciliation is the recovery path
		return nil, err
	}

	if !s.isSuccessCode(resp.ResponseCode) || resp.RedirectURI == "" || resp.TranCtx == "" {
		return nil, fmt.Errorf("%w: initiation declined (%s)", domain.ErrGatewayUnavailable, resp.ResponseCode)
	}

	return &InitiateResult{
		MerchantTxnRef: txn.MerchantTxnRef,
		RedirectURL:    resp.RedirectURI + "?tranCtx=" + url.QueryEscape(resp.TranCtx),
	}, nil
}

func (s *PaymentService) initiateEncrypted(txn *domain.Transaction) (*InitiateResult, error) {
	fields := s.saleFields(txn)

	digest, err := protocol.Sign(s.settings.Variant, fields, s.settings.SignSecret)
	if err != nil {
		return nil, err
	}
	fields[protocol.DigestField(s.settings.Variant)] = digest

	payload, err := s.codec.Encode(fields)
	if err != nil {
		return nil, err
	}

	return &InitiateResult{
		MerchantTxnRef: txn.MerchantTxnRef,
		FormTarget:     s.settings.PostURL,
		FormFields: map[string]string{
			"encData":    payload,
			"merchantId": s.settings.MerchantID,
			"terminalId": s.settings.TerminalID,
			"bankId":     s.settings.BankID,
		},
	}, nil
}
