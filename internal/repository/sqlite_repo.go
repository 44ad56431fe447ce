package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Blackstocks/Inlane/internal/domain"
)

type SQLiteRepo struct {
	db *sql.DB
}

func NewSQLiteRepo(dsn string) (*SQLiteRepo, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// single writer; also keeps :memory: databases on one connection
	db.SetMaxOpenConns(1)

	db.Exec("PRAGMA foreign_keys = ON;")
	db.Exec("PRAGMA journal_mode = WAL;")
	db.Exec("PRAGMA busy_timeout = 5000;")

	r := &SQLiteRepo{db: db}
	if err := r.migrate(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepo) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS transactions(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			merchant_txn_ref TEXT NOT NULL UNIQUE,
			amount_minor INTEGER NOT NULL,
			currency TEXT NOT NULL,
			customer_name TEXT NOT NULL,
			customer_email TEXT NOT NULL,
			customer_phone TEXT NOT NULL,
			state TEXT NOT NULL,
			gateway_reference TEXT NOT NULL DEFAULT '',
			response_code TEXT NOT NULL DEFAULT '',
			response_message TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			settled_at TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_tx_merchant_txn_ref ON transactions(merchant_txn_ref);
		CREATE INDEX IF NOT EXISTS idx_tx_state ON transactions(state);
	`
	_, err := r.db.Exec(schema)
	return err
}

// Create persists a fresh PENDING transaction. A reference collision maps
// to ErrDuplicateReference so the caller can regenerate and retry.
func (r *SQLiteRepo) Create(ctx context.Context, t *domain.Transaction) error {
	q := `
		INSERT INTO transactions(
			merchant_txn_ref,
			amount_minor,
			currency,
			customer_name,
			customer_email,
			customer_phone,
			state,
			created_at,
			settled_at
		)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);
	`

	_, err := r.db.ExecContext(
		ctx, q,
		t.MerchantTxnRef,
		t.AmountMinor,
		t.Currency,
		t.Customer.Name,
		t.Customer.Email,
		t.Customer.Phone,
		string(t.State),
		t.CreatedAt.UTC().Format(time.RFC3339Nano),
		nil,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateReference, t.MerchantTxnRef)
		}
		return err
	}

	return nil
}

func (r *SQLiteRepo) GetByRef(ctx context.Context, ref string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` FROM transactions WHERE merchant_txn_ref = ?`, ref)

	t, err := scanTx(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return t, err
}

// Settle transitions a PENDING transaction to a terminal state with a
// single conditional UPDATE, so concurrent callers racing on the same
// reference get exactly one winner. Losers get the stored record back
// unchanged together with ErrAlreadySettled; replayed callbacks can never
// settle twice.
func (r *SQLiteRepo) Settle(ctx context.Context, ref string, outcome domain.TxState, gw domain.GatewayResult) (*domain.Transaction, error) {
	if !outcome.Terminal() {
		return nil, fmt.Errorf("settle to non-terminal state %q", outcome)
	}

	q := `
		UPDATE transactions
		SET state = ?, gateway_reference = ?, response_code = ?, response_message = ?, settled_at = ?
		WHERE merchant_txn_ref = ? AND state = ?
	`

	settledAt := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := r.db.ExecContext(ctx, q,
		string(outcome),
		gw.GatewayReference,
		gw.ResponseCode,
		gw.ResponseMessage,
		settledAt,
		ref,
		string(domain.StatePending),
	)
	if err != nil {
		return nil, err
	}

	t, getErr := r.GetByRef(ctx, ref)
	if getErr != nil {
		return nil, getErr
	}

	if aff, _ := res.RowsAffected(); aff == 0 {
		return t, domain.ErrAlreadySettled
	}

	return t, nil
}

// ListPendingOlderThan returns PENDING transactions created before the
// cutoff, oldest first, for the reconciliation pass.
func (r *SQLiteRepo) ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]domain.Transaction, error) {
	q := selectColumns + `
		FROM transactions
		WHERE state = ? AND created_at < ?
		ORDER BY id ASC LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, q,
		string(domain.StatePending),
		cutoff.UTC().Format(time.RFC3339Nano),
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTx(rows)
}

type TxFilter struct {
	MerchantTxnRef string
	State          domain.TxState
}

func (r *SQLiteRepo) List(ctx context.Context, f TxFilter, limit, offset int) ([]domain.Transaction, error) {
	q := selectColumns + ` FROM transactions WHERE 1 = 1`
	args := []any{}

	if f.MerchantTxnRef != "" {
		q += " AND merchant_txn_ref = ?"
		args = append(args, f.MerchantTxnRef)
	}

	if f.State != "" {
		q += " AND state = ?"
		args = append(args, string(f.State))
	}

	q += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTx(rows)
}

const selectColumns = `
	SELECT
		id,
		merchant_txn_ref,
		amount_minor,
		currency,
		customer_name,
		customer_email,
		customer_phone,
		state,
		gateway_reference,
		response_code,
		response_message,
		created_at,
		settled_at
`

func collectTx(rows *sql.Rows) ([]domain.Transaction, error) {
	var res []domain.Transaction
	for rows.Next() {
		t, err := scanTx(rows)
		if err != nil {
			return nil, err
		}

		res = append(res, *t)
	}

	return res, rows.Err()
}

func scanTx(scanner interface {
	Scan(dest ...any) error
}) (*domain.Transaction, error) {
	var t domain.Transaction
	var state string
	var createdStr string
	var settledStr *string

	if err := scanner.Scan(
		&t.ID,
		&t.MerchantTxnRef,
		&t.AmountMinor,
		&t.Currency,
		&t.Customer.Name,
		&t.Customer.Email,
		&t.Customer.Phone,
		&state,
		&t.GatewayReference,
		&t.ResponseCode,
		&t.ResponseMessage,
		&createdStr,
		&settledStr,
	); err != nil {
		return nil, err
	}

	t.State = domain.TxState(state)

	created, err := time.Parse(time.RFC3339Nano, createdStr)
	if err != nil {
		return nil, fmt.Errorf("parse created time: %w", err)
	}

	t.CreatedAt = created
	if settledStr != nil {
		st, err := time.Parse(time.RFC3339Nano, *settledStr)
		if err != nil {
			return nil, fmt.Errorf("parse settled time: %w", err)
		}

		t.SettledAt = &st
	}

	return &t, nil
}
