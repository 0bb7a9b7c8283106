package jobcard

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/phoenix-garage/garage/internal/platform/httpx"
)

// Handler exposes job card endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers job routes. Routes stay flat so the invoice handler can mount
// beneath /{id}/invoice on the same router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/pay", h.markPaid)
	r.Post("/{id}/images", h.appendImages)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Status:        Status(q.Get("status")),
		PaymentStatus: PaymentStatus(q.Get("paymentStatus")),
		Search:        q.Get("search"),
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	jobs, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list jobs", err)
		return
	}
	httpx.Success(w, http.StatusOK, jobs)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input NewJob
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	job, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.fail(w, "create job", err)
		return
	}
	httpx.Success(w, http.StatusCreated, job)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get job", err)
		return
	}
	httpx.Success(w, http.StatusOK, job)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	patch, err := DecodePatch(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	job, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.fail(w, "update job", err)
		return
	}
	httpx.Success(w, http.StatusOK, job)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete job", err)
		return
	}
	httpx.Success(w, http.StatusOK, map[string]string{"id": id})
}

func (h *Handler) markPaid(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.MarkPaid(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "mark paid", err)
		return
	}
	httpx.Success(w, http.StatusOK, job)
}

func (h *Handler) appendImages(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URLs []string `json:"urls"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, err)
		return
	}
	job, err := h.service.AppendImages(r.Context(), chi.URLParam(r, "id"), body.URLs)
	if err != nil {
		h.fail(w, "append images", err)
		return
	}
	httpx.Success(w, http.StatusOK, job)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
