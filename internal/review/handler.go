// AngelaMos | 2026
// handler.go

package review

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/angelamos/musicdesk/internal/core"
	"github.com/angelamos/musicdesk/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, approved func(http.Handler) http.Handler,
) {
	r.Route("/reviews", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(approved)

		r.Get("/", h.List)
		r.Post("/", h.Create)
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	rv, err := h.service.Create(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrRequestNotCompleted):
			core.JSONError(w, core.UnprocessableError(err, ErrRequestNotCompleted.Error(), "NOT_COMPLETED"))
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "request")
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.Created(w, rv)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit")) //nolint:errcheck // zero falls back to default

	out, err := h.service.List(r.Context(), ListParams{
		RequestID:    r.URL.Query().Get("request_id"),
		ContractorID: r.URL.Query().Get("contractor_id"),
		Limit:        limit,
	})
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, out)
}
