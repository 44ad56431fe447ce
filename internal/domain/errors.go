package domain

import "errors"

var (
	// ErrValidation covers bad caller input on the first-party API.
	ErrValidation = errors.New("validation error")

	// ErrConfiguration covers a missing secret or an unknown protocol
	// variant. Checked at startup; a request hitting it anyway fails alone.
	ErrConfiguration = errors.New("configuration error")

	// ErrEncoding means a field value contained a reserved delimiter.
	ErrEncoding = errors.New("encoding error")

	// ErrDecoding means the callback blob could not be decrypted or parsed.
	// Maps to a callback rejection, never a crash.
	ErrDecoding = errors.New("decoding error")

	ErrDuplicateReference = errors.New("duplicate merchant transaction reference")

	ErrNotFound = errors.New("transaction not found")

	// ErrGatewayUnavailable covers network errors and timeouts talking to
	// the gateway. The transaction stays PENDING and is picked up by
	// reconciliation.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrAlreadySettled signals that settle hit an already-terminal
	// transaction. Informational: callers get the stored record unchanged.
	ErrAlreadySettled = errors.New("transaction already settled")
)
