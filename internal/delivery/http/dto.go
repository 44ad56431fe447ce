package httpd

import "time"

type InitiatePaymentReq struct {
	Amount        string `json:"amount" validate:"required"`
	CustomerName  string `json:"customerName" validate:"required"`
	CustomerEmail string `json:"customerEmail" validate:"required,email"`
	CustomerPhone string `json:"customerPhone"`
}

type InitiatePaymentResp struct {
	Success       bool              `json:"success"`
	TransactionID string            `json:"transactionId"`
	RedirectURL   string            `json:"redirectUrl,omitempty"`
	FormTarget    string            `json:"formTarget,omitempty"`
	FormFields    map[string]string `json:"formFields,omitempty"`
}

type StatusReq struct {
	TransactionID string `json:"transactionId" validate:"required"`
}

type StatusResp struct {
	TransactionID    string `json:"transactionId"`
	State            string `json:"state"`
	ResponseCode     string `json:"responseCode,omitempty"`
	ResponseMessage  string `json:"responseMessage,omitempty"`
	GatewayReference string `json:"gatewayReference,omitempty"`
}

type TxItem struct {
	MerchantTxnRef   string     `json:"merchantTxnRef"`
	AmountString     string     `json:"amount"`
	Currency         string     `json:"currency"`
	CustomerName     string     `json:"customerName"`
	CustomerEmail    string     `json:"customerEmail"`
	State            string     `json:"state"`
	GatewayReference string     `json:"gatewayReference,omitempty"`
	ResponseCode     string     `json:"responseCode,omitempty"`
	ResponseMessage  string     `json:"responseMessage,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	SettledAt        *time.Time `json:"settledAt,omitempty"`
}
