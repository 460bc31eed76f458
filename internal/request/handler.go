// AngelaMos | 2026
// handler.go

package request

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/angelamos/musicdesk/internal/analysis"
	"github.com/angelamos/musicdesk/internal/core"
	"github.com/angelamos/musicdesk/internal/middleware"
	"github.com/angelamos/musicdesk/internal/storage"
	"github.com/angelamos/musicdesk/internal/wallet"
)

const maxAttachmentsPerUpload = 10

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
	r.Route("/requests", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(approved)

		r.Get("/", h.List)
		r.With(h.idempotent).Post("/", h.Create)
		r.Get("/prices", h.Prices)
		r.Get("/{requestID}", h.Get)
		r.Post("/{requestID}/attachments", h.UploadAttachments)
		r.Post("/{requestID}/analyze", h.Analyze)
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/requests", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/", h.List)
		r.With(h.idempotent).Put("/{requestID}/status", h.UpdateStatus)
		r.With(h.idempotent).Delete("/{requestID}", h.Delete)
	})
}

func viewerFrom(r *http.Request) Viewer {
	return Viewer{
		UserID:  middleware.GetUserID(r.Context()),
		IsAdmin: middleware.IsAdmin(r.Context()),
	}
}

func (h *Handler) Prices(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, PriceList())
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	result, err := h.service.Create(r.Context(), middleware.GetUserID(r.Context()), CreateInput{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		ServiceType: ServiceType(req.ServiceType),
		Description: req.Description,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, result)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	params := ListParams{
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", 20),
		Status:   r.URL.Query().Get("status"),
	}
	params.Normalize()

	if params.Status != "" {
		if _, ok := statusLabels[params.Status]; !ok {
			core.BadRequest(w, "status must be one of [pending in_progress completed cancelled]")
			return
		}
	}

	reqs, total, err := h.service.List(r.Context(), viewerFrom(r), params)
	if err != nil {
		writeError(w, err)
		return
	}

	if reqs == nil {
		reqs = []ServiceRequest{}
	}

	core.Paginated(w, reqs, params.Page, params.PageSize, total)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.Get(r.Context(), viewerFrom(r), chi.URLParam(r, "requestID"))
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, detail)
}

func (h *Handler) UploadAttachments(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body,
		maxAttachmentsPerUpload*storage.AttachmentPolicy.MaxSize+(1<<20))

	files, err := storage.ReadFormFiles(r, "files", storage.AttachmentPolicy)
	if err != nil {
		writeError(w, err)
		return
	}

	if len(files) > maxAttachmentsPerUpload {
		core.BadRequest(w, "at most 10 files per upload")
		return
	}

	attachments, err := h.service.AddAttachments(
		r.Context(),
		viewerFrom(r),
		chi.URLParam(r, "requestID"),
		files,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, attachments)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	updated, err := h.service.UpdateStatus(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "requestID"),
		req.Status,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, updated)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.service.Delete(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "requestID"),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Analyze(r.Context(), viewerFrom(r), chi.URLParam(r, "requestID"))
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, result)
}

func writeError(w http.ResponseWriter, err error) {
	if appErr := storage.UploadAppError(err); appErr != nil {
		core.JSONError(w, appErr)
		return
	}

	var insufficient *wallet.InsufficientBalanceError
	switch {
	case errors.As(err, &insufficient):
		core.JSONError(w, core.UnprocessableError(err, insufficient.Error(), "INSUFFICIENT_BALANCE"))
	case errors.Is(err, ErrInvalidServiceType):
		core.BadRequest(w, "service_type must be one of [accompaniment arrangement_no_mod arrangement_with_mod review]")
	case errors.Is(err, ErrInvalidTransition):
		core.JSONError(w, core.NewAppError(err, err.Error(), http.StatusConflict, "INVALID_TRANSITION"))
	case errors.Is(err, ErrNotDeletable):
		core.JSONError(w, core.NewAppError(err, ErrNotDeletable.Error(), http.StatusConflict, "NOT_DELETABLE"))
	case errors.Is(err, ErrNotCompleted):
		core.JSONError(w, core.UnprocessableError(err, "request must be completed before analysis", "NOT_COMPLETED"))
	case errors.Is(err, ErrNoAudio):
		core.JSONError(w, core.UnprocessableError(err, "request has no audio file to analyze", "NO_AUDIO"))
	case errors.Is(err, analysis.ErrRateLimited):
		core.JSONError(w, core.NewAppError(err,
			"Limite de taxa excedido. Tente novamente mais tarde.",
			http.StatusTooManyRequests, "RATE_LIMITED"))
	case errors.Is(err, analysis.ErrPaymentRequired):
		core.JSONError(w, core.NewAppError(err,
			"Pagamento necessário. Adicione créditos ao workspace.",
			http.StatusPaymentRequired, "PAYMENT_REQUIRED"))
	case errors.Is(err, analysis.ErrDisabled):
		core.JSONError(w, core.NewAppError(err, "audio analysis is not available",
			http.StatusServiceUnavailable, "ANALYSIS_UNAVAILABLE"))
	case errors.Is(err, core.ErrUpstream):
		core.JSONError(w, core.UpstreamError("Erro na análise"))
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, err.Error())
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "request")
	default:
		core.InternalServerError(w, err)
	}
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
