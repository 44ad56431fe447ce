package httpd_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	httpd "github.com/Blackstocks/Inlane/internal/delivery/http"
	"github.com/Blackstocks/Inlane/internal/domain"
	"github.com/Blackstocks/Inlane/internal/gateway"
	"github.com/Blackstocks/Inlane/internal/protocol"
	"github.com/Blackstocks/Inlane/internal/repository"
	"github.com/Blackstocks/Inlane/internal/usecase"
)

const testSignSecret = "36e14e446bd44891b29379d27dad93c1"

func newTestRouter(t *testing.T, gw http.HandlerFunc, sig httpd.SigConfig) (http.Handler, *repository.SQLiteRepo) {
	t.Helper()

	gwSrv := httptest.NewServer(gw)
	t.Cleanup(gwSrv.Close)

	repo, err := repository.NewSQLiteRepo(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	svc, err := usecase.NewPaymentService(usecase.Settings{
		Variant:        protocol.VariantRedirectHash,
		MerchantID:     "T_03345",
		AggregatorID:   "J_03345",
		SignSecret:     testSignSecret,
		EncSecret:      "11112222333344445555666677778888",
		CurrencyCode:   "356",
		CallbackURL:    "https://shop.example.com/api/v1/payment/callback",
		SuccessURL:     "https://shop.example.com/payment/success",
		FailureURL:     "https://shop.example.com/payment/failure",
		SuccessCodes:   []string{"0", "00", "R1000", "SUCCESS"},
		RetryMax:       1,
		RetryBaseDelay: time.Millisecond,
	}, repo, gateway.NewClient(gwSrv.URL, 2*time.Second))
	require.NoError(t, err)

	h := httpd.NewHandler(svc, repo)
	return h.Routes(sig, []string{"http://localhost:3000"}), repo
}

func approvingGateway(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{
		"responseCode": "R1000",
		"redirectURI":  "https://pay.gateway.example/redirect",
		"tranCtx":      "ctx-1",
	})
}

func TestInitiateEndpoint(t *testing.T) {
	router, repo := newTestRouter(t, approvingGateway, httpd.SigConfig{})

	body := `{"amount":"499.00","customerName":"Jane Doe","customerEmail":"jane@example.com","customerPhone":"9876543210"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/initiate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp httpd.InitiatePaymentResp
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.True(t, resp.Success)
	require.Equal(t, "https://pay.gateway.example/redirect?tranCtx=ctx-1", resp.RedirectURL)

	txn, err := repo.GetByRef(req.Context(), resp.TransactionID)
	require.NoError(t, err)
	require.Equal(t, domain.StatePending, txn.State)
}

func TestInitiateEndpointRejectsBadInput(t *testing.T) {
	router, _ := newTestRouter(t, approvingGateway, httpd.SigConfig{})

	for _, body := range []string{
		`not json`,
		`{"amount":"499.00"}`,
		`{"amount":"0","customerName":"Jane Doe","customerEmail":"jane@example.com"}`,
		`{"amount":"banana","customerName":"Jane Doe","customerEmail":"jane@example.com"}`,
		`{"amount":"499.00","customerName":"Jane Doe","customerEmail":"not-an-email"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/initiate", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, "body: %s", body)
	}
}

func TestCallbackEndpointSuccessRedirect(t *testing.T) {
	router, repo := newTestRouter(t, approvingGateway, httpd.SigConfig{})
	seedPending(t, repo, "TXN_CB", 49900)

	fields := map[string]string{
		"merchantTxnNo": "TXN_CB",
		"amount":        "499.00",
		"responseCode":  "00",
		"txnID":         "UTR0007",
		"txnDate":       "20250101120000000",
	}
	digest, err := protocol.Sign(protocol.VariantRedirectHash, fields, testSignSecret)
	require.NoError(t, err)
	fields["secureHash"] = digest

	q := url.Values{}
	for k, v := range fields {
		q.Set(k, v)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payment/callback?"+q.Encode(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/payment/success", loc.Path)
	require.Equal(t, "TXN_CB", loc.Query().Get("transactionId"))
	require.Equal(t, "499.00", loc.Query().Get("amount"))

	txn, err := repo.GetByRef(req.Context(), "TXN_CB")
	require.NoError(t, err)
	require.Equal(t, domain.StateSucceeded, txn.State)
	require.Equal(t, "UTR0007", txn.GatewayReference)
}

func TestCallbackEndpointAcceptsForm(t *testing.T) {
	router, repo := newTestRouter(t, approvingGateway, httpd.SigConfig{})
	seedPending(t, repo, "TXN_FORM", 49900)

	fields := map[string]string{
		"merchantTxnNo": "TXN_FORM",
		"amount":        "499.00",
		"responseCode":  "R1031",
	}
	digest, err := protocol.Sign(protocol.VariantRedirectHash, fields, testSignSecret)
	require.NoError(t, err)
	fields["secureHash"] = digest

	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/payment/failure", loc.Path)
	require.Equal(t, "R1031", loc.Query().Get("error"))
}

func TestCallbackEndpointUnknownTxn(t *testing.T) {
	router, _ := newTestRouter(t, approvingGateway, httpd.SigConfig{})

	fields := map[string]string{
		"merchantTxnNo": "TXN_GHOST",
		"responseCode":  "00",
	}
	digest, err := protocol.Sign(protocol.VariantRedirectHash, fields, testSignSecret)
	require.NoError(t, err)

	q := url.Values{}
	for k, v := range fields {
		q.Set(k, v)
	}
	q.Set("secureHash", digest)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payment/callback?"+q.Encode(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/payment/failure", loc.Path)
	require.Equal(t, "unknown transaction", loc.Query().Get("error"))
}

func TestStatusEndpoint(t *testing.T) {
	router, repo := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"responseCode": "00", "txnID": "UTR0031"})
	}, httpd.SigConfig{})
	seedPending(t, repo, "TXN_ST", 49900)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/status", strings.NewReader(`{"transactionId":"TXN_ST"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp httpd.StatusResp
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, string(domain.StateSucceeded), resp.State)
	require.Equal(t, "UTR0031", resp.GatewayReference)
}

func TestStatusEndpointUnknownTxn(t *testing.T) {
	router, _ := newTestRouter(t, approvingGateway, httpd.SigConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/status", strings.NewReader(`{"transactionId":"TXN_GHOST"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransactionsEndpoints(t *testing.T) {
	router, repo := newTestRouter(t, approvingGateway, httpd.SigConfig{})
	seedPending(t, repo, "TXN_A", 1000)
	seedPending(t, repo, "TXN_B", 2000)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var items []httpd.TxItem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&items))
	require.Len(t, items, 2)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/transactions/TXN_A", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var item httpd.TxItem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&item))
	require.Equal(t, "10.00", item.AmountString)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/transactions/TXN_MISSING", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSignatureMiddleware(t *testing.T) {
	sig := httpd.SigConfig{Secret: "api-secret", MaxAgeSeconds: 300}
	router, _ := newTestRouter(t, approvingGateway, sig)

	body := `{"amount":"499.00","customerName":"Jane Doe","customerEmail":"jane@example.com"}`

	// no headers
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/initiate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// properly signed
	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte("api-secret"))
	mac.Write([]byte(body))
	mac.Write([]byte("." + ts))

	req = httptest.NewRequest(http.MethodPost, "/api/v1/payment/initiate", strings.NewReader(body))
	req.Header.Set("X-Timestamp", ts)
	req.Header.Set("X-Signature", hex.EncodeToString(mac.Sum(nil)))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// gateway callbacks bypass the API signature scheme
	req = httptest.NewRequest(http.MethodPost, "/api/v1/payment/callback", bytes.NewReader(nil))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusFound, rec.Code)
}

func seedPending(t *testing.T, repo *repository.SQLiteRepo, ref string, amountMinor int64) {
	t.Helper()

	require.NoError(t, repo.Create(context.Background(), &domain.Transaction{
		MerchantTxnRef: ref,
		AmountMinor:    amountMinor,
		Currency:       "356",
		Customer: domain.Customer{
			Name:  "Jane Doe",
			Email: "jane@example.com",
			Phone: "9876543210",
		},
		State:     domain.StatePending,
		CreatedAt: time.Now(),
	}))
}
