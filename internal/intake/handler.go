package intake

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/phoenix-garage/garage/internal/platform/httpx"
)

// defaultUploadBytes caps one multipart upload request.
const defaultUploadBytes = 32 << 20

// Handler exposes the wizard over HTTP.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	uploadBytes int64
}

// NewHandler constructs Handler. uploadBytes caps a multipart image request; zero uses
// 32 MiB.
func NewHandler(logger *slog.Logger, service *Service, uploadBytes int64) *Handler {
	if uploadBytes <= 0 {
		uploadBytes = defaultUploadBytes
	}
	return &Handler{logger: logger, service: service, uploadBytes: uploadBytes}
}

// MountRoutes registers intake routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/options", h.options)
	r.Post("/", h.start)
	r.Route("/{draftID}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Patch("/", h.update)
		r.Delete("/", h.discard)
		r.Post("/next", h.next)
		r.Post("/back", h.back)
		r.Post("/complaints", h.toggleComplaint)
		r.Post("/images", h.attachImages)
		r.Delete("/images/{index}", h.removeImage)
		r.Post("/create", h.create)
	})
}

func (h *Handler) options(w http.ResponseWriter, _ *http.Request) {
	httpx.Success(w, http.StatusOK, map[string]any{
		"complaints": CommonComplaints,
		"fuelTypes":  FuelTypes,
		"steps":      []string{StepCustomer.Name(), StepVehicle.Name(), StepComplaints.Name(), StepReview.Name()},
	})
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Start(r.Context())
	if err != nil {
		h.fail(w, "start intake", err)
		return
	}
	httpx.Success(w, http.StatusCreated, d)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Get(r.Context(), chi.URLParam(r, "draftID"))
	h.respond(w, "get draft", d, err)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var patch FormPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.Update(r.Context(), chi.URLParam(r, "draftID"), patch)
	h.respond(w, "update draft", d, err)
}

func (h *Handler) discard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "draftID")
	if err := h.service.Discard(r.Context(), id); err != nil {
		h.fail(w, "discard draft", err)
		return
	}
	httpx.Success(w, http.StatusOK, map[string]string{"id": id})
}

func (h *Handler) next(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Next(r.Context(), chi.URLParam(r, "draftID"))
	h.respond(w, "next step", d, err)
}

func (h *Handler) back(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Back(r.Context(), chi.URLParam(r, "draftID"))
	h.respond(w, "previous step", d, err)
}

func (h *Handler) toggleComplaint(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Label string `json:"label"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.ToggleComplaint(r.Context(), chi.URLParam(r, "draftID"), body.Label)
	h.respond(w, "toggle complaint", d, err)
}

func (h *Handler) removeImage(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: image index must be a number", httpx.ErrBadRequest))
		return
	}
	d, err := h.service.RemoveImage(r.Context(), chi.URLParam(r, "draftID"), index)
	h.respond(w, "remove image", d, err)
}

func (h *Handler) attachImages(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploadBytes)
	if err := r.ParseMultipartForm(h.uploadBytes); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrBadRequest, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		httpx.RespondError(w, fmt.Errorf("%w: no files in field \"files\"", httpx.ErrBadRequest))
		return
	}
	files := make([]File, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: read %s: %v", httpx.ErrBadRequest, fh.Filename, err))
			return
		}
		files = append(files, File{Name: fh.Filename, MimeType: fh.Header.Get("Content-Type"), Data: data})
	}

	res, err := h.service.AttachImages(r.Context(), chi.URLParam(r, "draftID"), files)
	if err != nil {
		h.fail(w, "attach images", err)
		return
	}
	httpx.Success(w, http.StatusOK, res)
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	autoprint, _ := strconv.ParseBool(r.URL.Query().Get("print"))
	res, err := h.service.Create(r.Context(), chi.URLParam(r, "draftID"), autoprint)
	if err != nil {
		h.fail(w, "create job from intake", err)
		return
	}
	httpx.Success(w, http.StatusCreated, res)
}

func (h *Handler) respond(w http.ResponseWriter, op string, d Draft, err error) {
	if err != nil {
		h.fail(w, op, err)
		return
	}
	httpx.Success(w, http.StatusOK, d)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
