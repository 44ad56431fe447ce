package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Blackstocks/Inlane/internal/domain"
)

const (
	initiateSalePath = "/pg/api/v2/initiateSale"
	commandPath      = "/pg/api/command"
)

// Client talks to the gateway's HTTP endpoints. Every call carries the
// configured timeout; an exceeded deadline is ErrGatewayUnavailable, never
// a hang.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type InitiateSaleResponse struct {
	ResponseCode  string `json:"responseCode"`
	MerchantTxnNo string `json:"merchantTxnNo"`
	RedirectURI   string `json:"redirectURI"`
	TranCtx       string `json:"tranCtx"`
	SecureHash    string `json:"secureHash"`
}

// InitiateSale posts the signed field set as JSON and returns the parsed
// gateway response. Network failures and unparseable bodies both map to
// ErrGatewayUnavailable; the caller's transaction stays PENDING either way.
func (c *Client) InitiateSale(ctx context.Context, fields map[string]string) (*InitiateSaleResponse, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal initiate request: %v", domain.ErrGatewayUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+initiateSalePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrGatewayUnavailable, err)
	}

	var out InitiateSaleResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: malformed gateway response", domain.ErrGatewayUnavailable)
	}

	return &out, nil
}

// QueryStatus posts the signed inquiry as a form and returns the gateway's
// fields. The gateway answers this endpoint with either JSON or a form
// body depending on deployment vintage; both are accepted.
func (c *Client) QueryStatus(ctx context.Context, fields map[string]string) (map[string]string, error) {
	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+commandPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrGatewayUnavailable, err)
	}

	return parseStatusBody(raw)
}

func parseStatusBody(raw []byte) (map[string]string, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		fields := make(map[string]string, len(obj))
		for k, v := range obj {
			switch val := v.(type) {
			case string:
				fields[k] = val
			case nil:
				// skip
			default:
				fields[k] = fmt.Sprint(val)
			}
		}
		return fields, nil
	}

	vals, err := url.ParseQuery(strings.TrimSpace(string(raw)))
	if err != nil || len(vals) == 0 {
		return nil, fmt.Errorf("%w: malformed status response", domain.ErrGatewayUnavailable)
	}

	fields := make(map[string]string, len(vals))
	for k := range vals {
		fields[k] = vals.Get(k)
	}
	return fields, nil
}
