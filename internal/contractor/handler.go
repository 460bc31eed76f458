// AngelaMos | 2026
// handler.go

package contractor

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/angelamos/musicdesk/internal/core"
	"github.com/angelamos/musicdesk/internal/middleware"
	"github.com/angelamos/musicdesk/internal/storage"
)

type Handler struct {
	service    *Service
	validator  *validator.Validate
	idempotent func(http.Handler) http.Handler
}

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

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, approved func(http.Handler) http.Handler,
) {
	r.Route("/contractors", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(approved)

		r.Get("/", h.List)
		r.Get("/{contractorID}", h.Get)
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/contractors", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Post("/", h.Create)
		r.Get("/transactions", h.ListTransactions)
		r.Put("/{contractorID}", h.Update)
		r.Delete("/{contractorID}", h.Delete)
		r.Post("/{contractorID}/avatar", h.UploadAvatar)
		r.With(h.idempotent).Post("/{contractorID}/balance", h.AdjustBalance)
		r.Get("/{contractorID}/transactions", h.ListTransactions)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.List(r.Context(), ListParams{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("search"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, out)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Get(r.Context(), chi.URLParam(r, "contractorID"))
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, c)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateContractorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	c, err := h.service.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, c)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateContractorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	c, err := h.service.Update(r.Context(), chi.URLParam(r, "contractorID"), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, c)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.service.Delete(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "contractorID"),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, storage.AvatarPolicy.MaxSize+(1<<20))

	file, err := storage.ReadFormFile(r, "avatar", storage.AvatarPolicy)
	if err != nil {
		writeError(w, err)
		return
	}

	c, err := h.service.UploadAvatar(r.Context(), chi.URLParam(r, "contractorID"), file)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, c)
}

func (h *Handler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	var req AdjustBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	result, err := h.service.AdjustBalance(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "contractorID"),
		req,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, result)
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	contractorID := chi.URLParam(r, "contractorID")
	if contractorID == "" {
		contractorID = r.URL.Query().Get("contractor_id")
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit")) //nolint:errcheck // zero falls back to default

	out, err := h.service.ListTransactions(r.Context(), contractorID, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, out)
}

func writeError(w http.ResponseWriter, err error) {
	if appErr := storage.UploadAppError(err); appErr != nil {
		core.JSONError(w, appErr)
		return
	}

	switch {
	case errors.Is(err, ErrInvalidAction):
		core.BadRequest(w, "action must be one of [add remove]")
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, err.Error())
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "contractor")
	default:
		core.InternalServerError(w, err)
	}
}
