package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Blackstocks/Inlane/internal/domain"
	"github.com/Blackstocks/Inlane/internal/repository"
)

func newTestRepo(t *testing.T) *repository.SQLiteRepo {
	t.Helper()

	repo, err := repository.NewSQLiteRepo(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	return repo
}

func pendingTx(ref string) *domain.Transaction {
	return &domain.Transaction{
		MerchantTxnRef: ref,
		AmountMinor:    49900,
		Currency:       "356",
		Customer: domain.Customer{
			Name:  "Jane Doe",
			Email: "jane@example.com",
			Phone: "9876543210",
		},
		State:     domain.StatePending,
		CreatedAt: time.Now(),
	}
}

func TestCreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, pendingTx("TXN1")))

	got, err := repo.GetByRef(ctx, "TXN1")
	require.NoError(t, err)
	require.Equal(t, domain.StatePending, got.State)
	require.Equal(t, int64(49900), got.AmountMinor)
	require.Equal(t, "jane@example.com", got.Customer.Email)
	require.Nil(t, got.SettledAt)
}

func TestCreateDuplicateRef(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, pendingTx("TXN1")))
	require.ErrorIs(t, repo.Create(ctx, pendingTx("TXN1")), domain.ErrDuplicateReference)
}

func TestGetMissingRef(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetByRef(context.Background(), "TXN404")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSettleOnce(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, pendingTx("TXN1")))

	gw := domain.GatewayResult{
		GatewayReference: "UTR0001",
		ResponseCode:     "00",
		ResponseMessage:  "approved",
	}

	got, err := repo.Settle(ctx, "TXN1", domain.StateSucceeded, gw)
	require.NoError(t, err)
	require.Equal(t, domain.StateSucceeded, got.State)
	require.Equal(t, "UTR0001", got.GatewayReference)
	require.Equal(t, "00", got.ResponseCode)
	require.NotNil(t, got.SettledAt)
}

func TestSettleIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, pendingTx("TXN1")))

	first, err := repo.Settle(ctx, "TXN1", domain.StateSucceeded, domain.GatewayResult{ResponseCode: "00"})
	require.NoError(t, err)

	// a replay must not flip the outcome nor touch settled_at
	second, err := repo.Settle(ctx, "TXN1", domain.StateFailed, domain.GatewayResult{ResponseCode: "99"})
	require.ErrorIs(t, err, domain.ErrAlreadySettled)
	require.Equal(t, domain.StateSucceeded, second.State)
	require.Equal(t, "00", second.ResponseCode)
	require.Equal(t, first.SettledAt.UTC(), second.SettledAt.UTC())
}

func TestSettleConcurrentSingleWinner(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, pendingTx("TXN1")))

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Settle(ctx, "TXN1", domain.StateSucceeded, domain.GatewayResult{ResponseCode: "00"})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		default:
			require.ErrorIs(t, err, domain.ErrAlreadySettled)
		}
	}
	require.Equal(t, 1, winners)

	got, err := repo.GetByRef(ctx, "TXN1")
	require.NoError(t, err)
	require.Equal(t, domain.StateSucceeded, got.State)
	require.NotNil(t, got.SettledAt)
}

func TestSettleMissingRef(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Settle(context.Background(), "TXN404", domain.StateFailed, domain.GatewayResult{})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSettleRejectsNonTerminalState(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, pendingTx("TXN1")))

	_, err := repo.Settle(ctx, "TXN1", domain.StatePending, domain.GatewayResult{})
	require.Error(t, err)
}

func TestListPendingOlderThan(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	old := pendingTx("TXN_OLD")
	old.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, old))

	fresh := pendingTx("TXN_FRESH")
	require.NoError(t, repo.Create(ctx, fresh))

	settled := pendingTx("TXN_DONE")
	settled.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, settled))
	_, err := repo.Settle(ctx, "TXN_DONE", domain.StateSucceeded, domain.GatewayResult{})
	require.NoError(t, err)

	stale, err := repo.ListPendingOlderThan(ctx, time.Now().Add(-10*time.Minute), 50)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	require.Equal(t, "TXN_OLD", stale[0].MerchantTxnRef)
}

func TestListFiltered(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, pendingTx("TXN1")))
	require.NoError(t, repo.Create(ctx, pendingTx("TXN2")))
	_, err := repo.Settle(ctx, "TXN2", domain.StateFailed, domain.GatewayResult{ResponseCode: "R1031"})
	require.NoError(t, err)

	all, err := repo.List(ctx, repository.TxFilter{}, 50, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)

	failed, err := repo.List(ctx, repository.TxFilter{State: domain.StateFailed}, 50, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.Equal(t, "TXN2", failed[0].MerchantTxnRef)

	byRef, err := repo.List(ctx, repository.TxFilter{MerchantTxnRef: "TXN1"}, 50, 0)
	require.NoError(t, err)
	require.Len(t, byRef, 1)
}
