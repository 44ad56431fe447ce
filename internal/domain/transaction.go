package domain

import "time"

type TxState string

const (
	StatePending   TxState = "PENDING"
	StateSucceeded TxState = "SUCCEEDED"
	StateFailed    TxState = "FAILED"
)

// Terminal reports whether the state permits no further transition.
func (s TxState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

type Customer struct {
	Name  string
	Email string
	Phone string
}

type Transaction struct {
	ID               int64
	MerchantTxnRef   string
	AmountMinor      int64
	Currency         string
	Customer         Customer
	State            TxState
	GatewayReference string
	ResponseCode     string
	ResponseMessage  string
	CreatedAt        time.Time
	SettledAt        *time.Time
}

// GatewayResult carries the raw gateway values recorded on settlement,
// kept verbatim for audit.
type GatewayResult struct {
	GatewayReference string
	ResponseCode     string
	ResponseMessage  string
}
