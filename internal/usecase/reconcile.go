package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Blackstocks/Inlane/internal/domain"
	"github.com/Blackstocks/Inlane/internal/protocol"
)

// Codes the gateway uses for an inquiry on a payment it has not finished
// processing. These leave the transaction PENDING.
var inquiryPendingCodes = map[string]bool{
	"PENDING": true,
	"P1000":   true,
}

const (
	defaultRetryMax       = 3
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 5 * time.Second
)

// Reconcile actively asks the gateway for a transaction's status and, if
// the gateway reports a terminal outcome, drives the same one-time
// settlement as a verified callback. Transient gateway failures are
// retried with bounded exponential backoff; a persistent failure leaves
// the transaction PENDING for operator follow-up instead of guessing.
func (s *PaymentService) Reconcile(ctx context.Context, ref string) (*domain.Transaction, error) {
	txn, err := s.repo.GetByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if txn.State.Terminal() {
		return txn, nil
	}

	fields, err := s.statusInquiryFields(txn)
	if err != nil {
		return nil, err
	}

	resp, err := s.queryWithBackoff(ctx, fields)
	if err != nil {
		return txn, err
	}

	code := resp["responseCode"]
	if code == "" {
		code = resp["status"]
	}
	if code == "" {
		return txn, fmt.Errorf("%w: status response carries no result code", domain.ErrGatewayUnavailable)
	}
	if inquiryPendingCodes[code] {
		return txn, nil
	}

	res := s.settleFromFields(ctx, ref, resp)
	if !res.Settled {
		return txn, fmt.Errorf("reconcile %s: %s", ref, res.Reason)
	}

	return s.repo.GetByRef(ctx, ref)
}

func (s *PaymentService) statusInquiryFields(txn *domain.Transaction) (map[string]string, error) {
	fields := map[string]string{
		"merchantId":      s.settings.MerchantID,
		"merchantTxnNo":   txn.MerchantTxnRef,
		"originalTxnNo":   txn.MerchantTxnRef,
		"amount":          domain.FormatAmountMinor(txn.AmountMinor),
		"transactionType": "STATUS",
	}

	digest, err := protocol.Sign(s.settings.Variant, fields, s.settings.SignSecret)
	if err != nil {
		return nil, err
	}
	fields[protocol.DigestField(s.settings.Variant)] = digest

	// routing metadata, never part of the hash
	if s.settings.AggregatorID != "" {
		fields["aggregatorID"] = s.settings.AggregatorID
	}

	return fields, nil
}

func (s *PaymentService) queryWithBackoff(ctx context.Context, fields map[string]string) (map[string]string, error) {
	maxRetry := s.settings.RetryMax
	if maxRetry <= 0 {
		maxRetry = defaultRetryMax
	}
	baseDelay := s.settings.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultRetryBaseDelay
	}
	maxDelay := s.settings.RetryMaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetry; attempt++ {
		if attempt > 0 {
			delay := min(baseDelay<<(attempt-1), maxDelay)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, ctx.Err())
			case <-time.After(delay):
			}
		}

		resp, err := s.gw.QueryStatus(ctx, fields)
		if err == nil {
			return resp, nil
		}
		if !errors.Is(err, domain.ErrGatewayUnavailable) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

// Reconciler periodically sweeps transactions stuck PENDING past the
// configured age and reconciles each one.
type Reconciler struct {
	Service    *PaymentService
	Interval   time.Duration
	PendingAge time.Duration
	BatchSize  int
}

func (r *Reconciler) Run(ctx context.Context) {
	batch := r.BatchSize
	if batch <= 0 {
		batch = 50
	}

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx, batch)
		}
	}
}

func (r *Reconciler) sweep(ctx context.Context, batch int) {
	cutoff := r.Service.now().Add(-r.PendingAge)

	stale, err := r.Service.repo.ListPendingOlderThan(ctx, cutoff, batch)
	if err != nil {
		log.Printf("reconciler: list pending: %v", err)
		return
	}

	for _, txn := range stale {
		got, err := r.Service.Reconcile(ctx, txn.MerchantTxnRef)
		if err != nil {
			log.Printf("reconciler: %s still pending: %v", txn.MerchantTxnRef, err)
			continue
		}
		if got.State.Terminal() {
			log.Printf("reconciler: %s settled as %s", got.MerchantTxnRef, got.State)
		}
	}
}
