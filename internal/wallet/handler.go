// AngelaMos | 2026
// handler.go

package wallet

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/angelamos/musicdesk/internal/core"
	"github.com/angelamos/musicdesk/internal/middleware"
	"github.com/angelamos/musicdesk/internal/storage"
)

type Handler struct {
	service    *Service
	validator  *validator.Validate
	idempotent func(http.Handler) http.Handler
}

// NewHandler wires the wallet endpoints. idempotent guards money
// commands against client retries and may be nil.
func NewHandler(service *Service, idempotent func(http.Handler) http.Handler) *Handler {
	if idempotent == nil {
		idempotent = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{
		service:    service,
		validator:  validator.New(validator.WithRequiredStructEnabled()),
		idempotent: idempotent,
	}
}

type AddBalanceRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"max=255"`
}

type BalanceResponse struct {
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

type ReceiptURLResponse struct {
	URL string `json:"url"`
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, approved func(http.Handler) http.Handler,
) {
	r.Route("/wallet", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(approved)

		r.Get("/balance", h.GetBalance)
		r.Get("/transactions", h.ListTransactions)
		r.With(h.idempotent).Post("/deposits", h.SubmitDeposit)
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/wallet", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/deposits", h.ListPendingDeposits)
		r.Get("/deposits/{transactionID}/receipt", h.GetReceiptURL)
		r.With(h.idempotent).Post("/deposits/{transactionID}/approve", h.ApproveDeposit)
		r.With(h.idempotent).Post("/deposits/{transactionID}/reject", h.RejectDeposit)
		r.Get("/users/{userID}/transactions", h.ListUserTransactions)
		r.With(h.idempotent).Post("/users/{userID}/credit", h.AddBalance)
	})
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.service.GetBalance(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, BalanceResponse{Balance: balance, Currency: core.Currency})
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	h.listTransactions(w, r, middleware.GetUserID(r.Context()))
}

func (h *Handler) ListUserTransactions(w http.ResponseWriter, r *http.Request) {
	h.listTransactions(w, r, chi.URLParam(r, "userID"))
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request, userID string) {
	params := pageParams(r)

	txs, total, err := h.service.ListTransactions(r.Context(), userID, params)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Paginated(w, txs, params.Page, params.PageSize, total)
}

func (h *Handler) SubmitDeposit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, storage.ReceiptPolicy.MaxSize+(1<<20))

	receipt, err := storage.ReadFormFile(r, "receipt", storage.ReceiptPolicy)
	if err != nil {
		writeError(w, err)
		return
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(r.FormValue("amount")))
	if err != nil {
		core.BadRequest(w, "amount must be a number")
		return
	}

	t, err := h.service.SubmitDeposit(r.Context(), middleware.GetUserID(r.Context()), DepositInput{
		Amount:        amount,
		PaymentMethod: r.FormValue("payment_method"),
		Receipt:       receipt,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, t)
}

func (h *Handler) ListPendingDeposits(w http.ResponseWriter, r *http.Request) {
	params := pageParams(r)

	deposits, total, err := h.service.ListPendingDeposits(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Paginated(w, deposits, params.Page, params.PageSize, total)
}

func (h *Handler) GetReceiptURL(w http.ResponseWriter, r *http.Request) {
	url, err := h.service.ReceiptURL(r.Context(), chi.URLParam(r, "transactionID"))
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ReceiptURLResponse{URL: url})
}

func (h *Handler) ApproveDeposit(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.ApproveDeposit(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "transactionID"),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, t)
}

func (h *Handler) RejectDeposit(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.RejectDeposit(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "transactionID"),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, t)
}

func (h *Handler) AddBalance(w http.ResponseWriter, r *http.Request) {
	var req AddBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	result, err := h.service.AddBalance(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "userID"),
		req.Amount,
		req.Description,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, result)
}

func writeError(w http.ResponseWriter, err error) {
	if appErr := storage.UploadAppError(err); appErr != nil {
		core.JSONError(w, appErr)
		return
	}

	var insufficient *InsufficientBalanceError
	switch {
	case errors.As(err, &insufficient):
		core.JSONError(w, core.UnprocessableError(err, insufficient.Error(), "INSUFFICIENT_BALANCE"))
	case errors.Is(err, ErrAlreadyVerified):
		core.JSONError(w, core.NewAppError(err, "deposit has already been verified",
			http.StatusConflict, "ALREADY_VERIFIED"))
	case errors.Is(err, ErrNotDeposit):
		core.BadRequest(w, "transaction is not a deposit")
	case errors.Is(err, ErrInvalidMethod):
		core.BadRequest(w, "payment_method must be one of [multicaixa bank_transfer p2p]")
	case errors.Is(err, ErrMissingReceipt):
		core.BadRequest(w, "receipt is required")
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, err.Error())
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "transaction")
	default:
		core.InternalServerError(w, err)
	}
}

func pageParams(r *http.Request) ListParams {
	p := ListParams{
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", 20),
	}
	p.Normalize()
	return p
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}
