package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Blackstocks/Inlane/internal/domain"
	"github.com/Blackstocks/Inlane/internal/gateway"
	"github.com/Blackstocks/Inlane/internal/protocol"
	"github.com/Blackstocks/Inlane/internal/repository"
)

// Settings is the protocol-facing configuration handed to the service at
// construction time. No globals: everything a request needs is in here or
// in the request itself.
type Settings struct {
	Variant      protocol.Variant
	MerchantID   string
	TerminalID   string
	BankID       string
	AggregatorID string

	// SignSecret keys the digest; EncSecret derives the payload cipher
	// key. Some deployments share one value, the gateway issues them
	// separately.
	SignSecret string
	EncSecret  string

	CurrencyCode string

	// CallbackURL is this service's public callback endpoint, sent to the
	// gateway as the returnURL.
	CallbackURL string
	SuccessURL  string
	FailureURL  string

	// PostURL is the gateway form target for the encrypted-payload
	// variant's same-origin form post.
	PostURL string

	SuccessCodes []string

	// Status-query retry budget; zero values fall back to the defaults
	// in reconcile.go.
	RetryMax       int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

type PaymentService struct {
	settings     Settings
	codec        *protocol.Codec
	repo         *repository.SQLiteRepo
	gw           *gateway.Client
	successCodes map[string]bool
	now          func() time.Time
}

func NewPaymentService(s Settings, repo *repository.SQLiteRepo, gw *gateway.Client) (*PaymentService, error) {
	if _, err := protocol.ParseVariant(string(s.Variant)); err != nil {
		return nil, err
	}
	if s.SignSecret == "" {
		return nil, fmt.Errorf("%w: empty signing secret", domain.ErrConfiguration)
	}

	codec, err := protocol.NewCodec(s.EncSecret)
	if err != nil {
		return nil, err
	}

	codes := make(map[string]bool, len(s.SuccessCodes))
	for _, c := range s.SuccessCodes {
		codes[strings.ToUpper(strings.TrimSpace(c))] = true
	}

	return &PaymentService{
		settings:     s,
		codec:        codec,
		repo:         repo,
		gw:           gw,
		successCodes: codes,
		now:          time.Now,
	}, nil
}

func (s *PaymentService) isSuccessCode(code string) bool {
	return s.successCodes[strings.ToUpper(strings.TrimSpace(code))]
}

// newTxnRef builds a globally unique merchant reference: timestamp plus a
// random suffix, e.g. TXN1700000000000a3f1c2.
func (s *PaymentService) newTxnRef() string {
	millis := s.now().UnixMilli()
	return fmt.Sprintf("TXN%d%s", millis, uuid.NewString()[:6])
}

// txnDate renders the gateway's yyyyMMddHHmmssSSS timestamp format.
func (s *PaymentService) txnDate() string {
	t := s.now()
	return t.Format("20060102150405") + fmt.Sprintf("%03d", t.Nanosecond()/1e6)
}
