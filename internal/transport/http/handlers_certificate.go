package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"gascert/internal/certificate"
	"gascert/internal/export"
	"gascert/internal/platform/middleware"
	dErrors "gascert/pkg/domain-errors"
	"gascert/pkg/platform/httputil"
)

// CertificateService is the lifecycle surface the handlers depend on.
type CertificateService interface {
	Create(ctx context.Context, actor certificate.Actor, in certificate.CreateInput) (*certificate.Certificate, error)
	Get(ctx context.Context, actor certificate.Actor, id uuid.UUID) (*certificate.Certificate, error)
	List(ctx context.Context, actor certificate.Actor) ([]*certificate.Certificate, error)
	Update(ctx context.Context, actor certificate.Actor, id uuid.UUID, in certificate.UpdateInput) (*certificate.Certificate, error)
	Delete(ctx context.Context, actor certificate.Actor, id uuid.UUID) error
	Approve(ctx context.Context, actor certificate.Actor, id uuid.UUID) (*certificate.Certificate, error)
	SetPending(ctx context.Context, actor certificate.Actor, id uuid.UUID) (*certificate.Certificate, error)
	BulkApprove(ctx context.Context, actor certificate.Actor, ids []uuid.UUID) (*certificate.BulkApproveResult, error)
}

// Exporter is the document surface the handlers depend on.
type Exporter interface {
	ToMarkup(ctx context.Context, id uuid.UUID) (string, error)
	ToPrintableMarkup(ctx context.Context, id uuid.UUID) (string, error)
	ToDocument(ctx context.Context, id uuid.UUID, opts export.Options) ([]byte, string, error)
}

// TemplateCacheClearer is the administrative cache surface.
type TemplateCacheClearer interface {
	ClearCache()
}

// Handler wires certificate endpoints to the lifecycle service and exporter.
type Handler struct {
	service  CertificateService
	exporter Exporter
	renderer TemplateCacheClearer
	logger   *slog.Logger
}

func NewHandler(service CertificateService, exporter Exporter, renderer TemplateCacheClearer, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		exporter: exporter,
		renderer: renderer,
		logger:   logger,
	}
}

func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	in, ok := httputil.Decode[certificate.CreateInput](w, r)
	if !ok {
		return
	}
	cert, err := h.service.Create(r.Context(), middleware.ActorFrom(r.Context()), in)
	if err != nil {
		h.writeError(w, r, "create certificate", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, cert)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	cert, err := h.service.Get(r.Context(), middleware.ActorFrom(r.Context()), id)
	if err != nil {
		h.writeError(w, r, "get certificate", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cert)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	certs, err := h.service.List(r.Context(), middleware.ActorFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, "list certificates", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, certs)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	in, ok := httputil.Decode[certificate.UpdateInput](w, r)
	if !ok {
		return
	}
	cert, err := h.service.Update(r.Context(), middleware.ActorFrom(r.Context()), id, in)
	if err != nil {
		h.writeError(w, r, "update certificate", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cert)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), middleware.ActorFrom(r.Context()), id); err != nil {
		h.writeError(w, r, "delete certificate", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	cert, err := h.service.Approve(r.Context(), middleware.ActorFrom(r.Context()), id)
	if err != nil {
		h.writeError(w, r, "approve certificate", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cert)
}

func (h *Handler) HandleSetPending(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	cert, err := h.service.SetPending(r.Context(), middleware.ActorFrom(r.Context()), id)
	if err != nil {
		h.writeError(w, r, "set certificate pending", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cert)
}

type bulkApproveRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

func (h *Handler) HandleBulkApprove(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[bulkApproveRequest](w, r)
	if !ok {
		return
	}
	result, err := h.service.BulkApprove(r.Context(), middleware.ActorFrom(r.Context()), req.IDs)
	if err != nil {
		h.writeError(w, r, "bulk approve", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleMarkup(w http.ResponseWriter, r *http.Request) {
	h.serveMarkup(w, r, h.exporter.ToMarkup)
}

func (h *Handler) HandlePrintableMarkup(w http.ResponseWriter, r *http.Request) {
	h.serveMarkup(w, r, h.exporter.ToPrintableMarkup)
}

func (h *Handler) serveMarkup(w http.ResponseWriter, r *http.Request,
	produce func(context.Context, uuid.UUID) (string, error)) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if _, err := h.service.Get(r.Context(), middleware.ActorFrom(r.Context()), id); err != nil {
		h.writeError(w, r, "render markup", err)
		return
	}
	markup, err := produce(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "render markup", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(markup))
}

func (h *Handler) HandleDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if _, err := h.service.Get(r.Context(), middleware.ActorFrom(r.Context()), id); err != nil {
		h.writeError(w, r, "export document", err)
		return
	}
	opts, err := documentOptions(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	pdf, filename, err := h.exporter.ToDocument(r.Context(), id, opts)
	if err != nil {
		h.writeError(w, r, "export document", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	_, _ = w.Write(pdf)
}

func (h *Handler) HandleClearTemplateCache(w http.ResponseWriter, _ *http.Request) {
	h.renderer.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

// documentOptions builds export options from query parameters, starting from
// the defaults. Malformed values are validation errors rather than silently
// falling back, so a typo never yields a misformatted document.
func documentOptions(q url.Values) (export.Options, error) {
	opts := export.DefaultOptions()
	if v := q.Get("page_size"); v != "" {
		size := export.PageSize(v)
		if size != export.PageA4 && size != export.PageLetter {
			return export.Options{}, dErrors.Newf(dErrors.CodeValidation, "unsupported page size %q", v)
		}
		opts.PageSize = size
	}
	margins := map[string]*float64{
		"margin_top":    &opts.Margins.Top,
		"margin_bottom": &opts.Margins.Bottom,
		"margin_left":   &opts.Margins.Left,
		"margin_right":  &opts.Margins.Right,
	}
	for param, dst := range margins {
		v := q.Get(param)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return export.Options{}, dErrors.Newf(dErrors.CodeValidation, "invalid %s", param)
		}
		*dst = f
	}
	if v := q.Get("print_background"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return export.Options{}, dErrors.New(dErrors.CodeValidation, "invalid print_background")
		}
		opts.PrintBackground = b
	}
	opts.HeaderTemplate = q.Get("header_template")
	opts.FooterTemplate = q.Get("footer_template")
	return opts, nil
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid certificate id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal || dErrors.CodeOf(err) == dErrors.CodeStorage {
		h.logger.ErrorContext(r.Context(), op+" failed", "error", err)
	}
	httputil.WriteError(w, err)
}
