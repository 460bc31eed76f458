// AngelaMos | 2026
// handler.go

package task

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/angelamos/musicdesk/internal/contractor"
	"github.com/angelamos/musicdesk/internal/core"
	"github.com/angelamos/musicdesk/internal/middleware"
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

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/tasks", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Post("/{taskID}/start", h.Start)
		r.With(h.idempotent).Post("/{taskID}/complete", h.Complete)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.List(r.Context(), ListParams{
		ContractorID: r.URL.Query().Get("contractor_id"),
		Status:       r.URL.Query().Get("status"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, out)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	t, err := h.service.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, t)
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.Start(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, t)
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Complete(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "taskID"),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, out)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAlreadyCompleted):
		core.JSONError(w, core.NewAppError(err, ErrAlreadyCompleted.Error(),
			http.StatusConflict, "ALREADY_COMPLETED"))
	case errors.Is(err, ErrInvalidTransition):
		core.JSONError(w, core.NewAppError(err, ErrInvalidTransition.Error(),
			http.StatusConflict, "INVALID_TRANSITION"))
	case errors.Is(err, contractor.ErrInactive):
		core.JSONError(w, core.UnprocessableError(err, contractor.ErrInactive.Error(), "CONTRACTOR_INACTIVE"))
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, err.Error())
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "task")
	default:
		core.InternalServerError(w, err)
	}
}
