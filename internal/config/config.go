package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Blackstocks/Inlane/internal/domain"
	"github.com/Blackstocks/Inlane/internal/protocol"
)

type Config struct {
	AppPort        string
	AllowedOrigins []string
	SQLiteDSN      string

	// first-party API signature (X-Signature / X-Timestamp headers);
	// empty secret disables the check for local development
	APIHMACSecret    string
	SigMaxAgeSeconds int64

	GatewayVariant string
	MerchantID     string
	TerminalID     string
	BankID         string
	AggregatorID   string
	SignSecret     string
	EncSecret      string
	CurrencyCode   string
	SuccessCodes   []string

	GatewayBaseURL string
	GatewayPostURL string
	CallbackURL    string
	SuccessURL     string
	FailureURL     string
	GatewayTimeout time.Duration

	ReconcileAfter    time.Duration
	ReconcileInterval time.Duration
	ReconcileBatch    int
	RetryMax          int
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getInt(key string, def int) int {
	return int(getInt64(key, int64(def)))
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getList(key, def string) []string {
	raw := getenv(key, def)

	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() Config {
	godotenv.Load()

	return Config{
		AppPort:        getenv("APP_PORT", "8080"),
		AllowedOrigins: getList("ALLOWED_ORIGINS", "http://localhost:3000"),
		SQLiteDSN:      getenv("SQLITE_DSN", "./app.db"),

		APIHMACSecret:    getenv("API_HMAC_SECRET", ""),
		SigMaxAgeSeconds: getInt64("SIG_MAX_AGE_SECONDS", 300),

		GatewayVariant: getenv("GATEWAY_VARIANT", "redirect_hash"),
		MerchantID:     getenv("GATEWAY_MERCHANT_ID", ""),
		TerminalID:     getenv("GATEWAY_TERMINAL_ID", ""),
		BankID:         getenv("GATEWAY_BANK_ID", ""),
		AggregatorID:   getenv("GATEWAY_AGGREGATOR_ID", ""),
		SignSecret:     getenv("GATEWAY_SIGN_SECRET", ""),
		EncSecret:      getenv("GATEWAY_ENC_SECRET", ""),
		CurrencyCode:   getenv("GATEWAY_CURRENCY_CODE", "356"),
		SuccessCodes:   getList("GATEWAY_SUCCESS_CODES", "0,00,R1000,SUCCESS"),

		GatewayBaseURL: getenv("GATEWAY_BASE_URL", ""),
		GatewayPostURL: getenv("GATEWAY_POST_URL", ""),
		CallbackURL:    getenv("CALLBACK_URL", ""),
		SuccessURL:     getenv("SUCCESS_URL", ""),
		FailureURL:     getenv("FAILURE_URL", ""),
		GatewayTimeout: getDuration("GATEWAY_TIMEOUT", 15*time.Second),

		ReconcileAfter:    getDuration("RECONCILE_AFTER", 10*time.Minute),
		ReconcileInterval: getDuration("RECONCILE_INTERVAL", time.Minute),
		ReconcileBatch:    getInt("RECONCILE_BATCH", 50),
		RetryMax:          getInt("RECONCILE_RETRY_MAX", 3),
		RetryBaseDelay:    getDuration("RECONCILE_RETRY_BASE_DELAY", 500*time.Millisecond),
		RetryMaxDelay:     getDuration("RECONCILE_RETRY_MAX_DELAY", 5*time.Second),
	}
}

// Validate fails fast at startup on anything the gateway integration
// cannot run without.
func (c Config) Validate() error {
	if _, err := protocol.ParseVariant(c.GatewayVariant); err != nil {
		return err
	}

	required := map[string]string{
		"GATEWAY_MERCHANT_ID": c.MerchantID,
		"GATEWAY_SIGN_SECRET": c.SignSecret,
		"GATEWAY_ENC_SECRET":  c.EncSecret,
		"GATEWAY_BASE_URL":    c.GatewayBaseURL,
		"CALLBACK_URL":        c.CallbackURL,
		"SUCCESS_URL":         c.SuccessURL,
		"FAILURE_URL":         c.FailureURL,
	}
	for key, val := range required {
		if val == "" {
			return fmt.Errorf("%w: %s is not set", domain.ErrConfiguration, key)
		}
	}

	if len(c.SuccessCodes) == 0 {
		return fmt.Errorf("%w: GATEWAY_SUCCESS_CODES is empty", domain.ErrConfiguration)
	}

	return nil
}
