package httpd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/Blackstocks/Inlane/internal/domain"
	"github.com/Blackstocks/Inlane/internal/repository"
	"github.com/Blackstocks/Inlane/internal/usecase"
)

type Handler struct {
	svc      *usecase.PaymentService
	repo     *repository.SQLiteRepo
	validate *validator.Validate
}

func NewHandler(svc *usecase.PaymentService, repo *repository.SQLiteRepo) *Handler {
	return &Handler{
		svc:      svc,
		repo:     repo,
		validate: validator.New(),
	}
}

func (h *Handler) Routes(sig SigConfig, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Signature", "X-Timestamp"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// the gateway posts here with its own digest; our API signature
	// scheme must not apply
	r.Get("/api/v1/payment/callback", h.PaymentCallback)
	r.Post("/api/v1/payment/callback", h.PaymentCallback)

	r.Group(func(r chi.Router) {
		r.Use(SignatureMiddleware(sig))

		r.Post("/api/v1/payment/initiate", h.InitiatePayment)
		r.Post("/api/v1/payment/status", h.PaymentStatus)
		r.Get("/api/v1/transactions", h.ListTransactions)
		r.Get("/api/v1/transactions/{merchantTxnRef}", h.GetTransaction)
		r.Get("/api/v1/healthz", h.Healthz)
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "transaction not found"})
	case errors.Is(err, domain.ErrGatewayUnavailable):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

// POST /api/v1/payment/initiate
func (h *Handler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	var req InitiatePaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	amountMinor, err := domain.ParseAmountToMinor(req.Amount)
	if err != nil {
		writeErr(w, err)
		return
	}

	res, err := h.svc.Initiate(r.Context(), usecase.InitiateRequest{
		AmountMinor: amountMinor,
		Customer: domain.Customer{
			Name:  req.CustomerName,
			Email: req.CustomerEmail,
			Phone: req.CustomerPhone,
		},
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, InitiatePaymentResp{
		Success:       true,
		TransactionID: res.MerchantTxnRef,
		RedirectURL:   res.RedirectURL,
		FormTarget:    res.FormTarget,
		FormFields:    res.FormFields,
	})
}

// GET|POST /api/v1/payment/callback
//
// Accepts flat query/form fields (redirect-hash) or an encData blob plus
// routing identifiers (encrypted-payload). Always answers with a redirect
// so the payer's browser is never left hanging.
func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed callback", http.StatusBadRequest)
		return
	}

	env := usecase.CallbackEnvelope{Fields: map[string]string{}}
	for key := range r.Form {
		env.Fields[key] = r.Form.Get(key)
	}

	if enc := env.Fields["encData"]; enc != "" {
		env = usecase.CallbackEnvelope{
			EncryptedData: enc,
			MerchantID:    r.Form.Get("merchantId"),
			TerminalID:    r.Form.Get("terminalId"),
			BankID:        r.Form.Get("bankId"),
		}
	}

	res := h.svc.HandleCallback(r.Context(), env)
	http.Redirect(w, r, res.RedirectURL, http.StatusFound)
}

// POST /api/v1/payment/status
func (h *Handler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	txn, err := h.svc.Reconcile(r.Context(), req.TransactionID)
	if err != nil && txn == nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, StatusResp{
		TransactionID:    txn.MerchantTxnRef,
		State:            string(txn.State),
		ResponseCode:     txn.ResponseCode,
		ResponseMessage:  txn.ResponseMessage,
		GatewayReference: txn.GatewayReference,
	})
}

// GET /api/v1/transactions?merchantTxnRef=&state=&limit=&offset=
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.TxFilter{
		MerchantTxnRef: q.Get("merchantTxnRef"),
	}
	if st := q.Get("state"); st != "" {
		filter.State = domain.TxState(st)
	}

	limit := 50
	offset := 0
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	items, err := h.repo.List(r.Context(), filter, limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	out := make([]TxItem, 0, len(items))
	for _, t := range items {
		out = append(out, toTxItem(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /api/v1/transactions/{merchantTxnRef}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "merchantTxnRef")
	t, err := h.repo.GetByRef(r.Context(), ref)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTxItem(*t))
}

func toTxItem(t domain.Transaction) TxItem {
	return TxItem{
		MerchantTxnRef:   t.MerchantTxnRef,
		AmountString:     domain.FormatAmountMinor(t.AmountMinor),
		Currency:         t.Currency,
		CustomerName:     t.Customer.Name,
		CustomerEmail:    t.Customer.Email,
		State:            string(t.State),
		GatewayReference: t.GatewayReference,
		ResponseCode:     t.ResponseCode,
		ResponseMessage:  t.ResponseMessage,
		CreatedAt:        t.CreatedAt,
		SettledAt:        t.SettledAt,
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
