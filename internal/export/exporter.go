package export

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"gascert/internal/certificate"
	"gascert/internal/platform/metrics"
	"gascert/internal/render"
	dErrors "gascert/pkg/domain-errors"
)

// printTrigger is the self-contained affordance injected before the closing
// body tag by ToPrintableMarkup: opening the page in a browser immediately
// brings up the print dialog.
const printTrigger = `<script>window.addEventListener("load",function(){window.print();});</script>`

// Assembler produces the rendering model for one certificate.
type Assembler interface {
	Assemble(ctx context.Context, id uuid.UUID) (*render.Model, error)
}

// Renderer binds a model to the named document template.
type Renderer interface {
	Render(name string, model any) (string, error)
}

// Exporter turns certificates into markup and fixed-layout PDF documents.
type Exporter struct {
	assembler Assembler
	renderer  Renderer
	engine    Engine
	cache     *DocumentCache
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Exporter)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Exporter) { e.metrics = m }
}

// WithDocumentCache enables the rendered-document cache. Nil is a valid
// cache and disables caching.
func WithDocumentCache(cache *DocumentCache) Option {
	return func(e *Exporter) { e.cache = cache }
}

func NewExporter(assembler Assembler, renderer Renderer, engine Engine, opts ...Option) *Exporter {
	e := &Exporter{
		assembler: assembler,
		renderer:  renderer,
		engine:    engine,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ToMarkup assembles and renders the certificate document body.
func (e *Exporter) ToMarkup(ctx context.Context, id uuid.UUID) (string, error) {
	model, err := e.assembler.Assemble(ctx, id)
	if err != nil {
		return "", err
	}
	return e.renderer.Render(render.CertificateTemplate, model)
}

// ToPrintableMarkup renders the document with a print trigger injected
// before the closing body tag.
func (e *Exporter) ToPrintableMarkup(ctx context.Context, id uuid.UUID) (string, error) {
	markup, err := e.ToMarkup(ctx, id)
	if err != nil {
		return "", err
	}
	if idx := strings.LastIndex(markup, "</body>"); idx >= 0 {
		return markup[:idx] + printTrigger + markup[idx:], nil
	}
	return markup + printTrigger, nil
}

// ToDocument renders the certificate and drives the headless engine to
// produce a fixed-layout PDF. Assembly or rendering failures short-circuit
// before the engine starts; either a complete document or an error is
// returned, never partial output.
func (e *Exporter) ToDocument(ctx context.Context, id uuid.UUID, opts Options) ([]byte, string, error) {
	start := time.Now()

	model, err := e.assembler.Assemble(ctx, id)
	if err != nil {
		return nil, "", err
	}
	filename := Filename(model.Certificate)

	if cached, ok := e.cache.Get(ctx, model.Certificate, opts); ok {
		if e.metrics != nil {
			e.metrics.DocumentCacheHits.Inc()
		}
		return cached, filename, nil
	}
	if e.metrics != nil && e.cache != nil {
		e.metrics.DocumentCacheMisses.Inc()
	}

	markup, err := e.renderer.Render(render.CertificateTemplate, model)
	if err != nil {
		return nil, "", err
	}

	pdf, err := e.engine.PDF(ctx, markup, opts)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeRendering, "document export failed")
	}

	e.cache.Put(ctx, model.Certificate, opts, pdf)
	if e.metrics != nil {
		e.metrics.RenderDuration.Observe(time.Since(start).Seconds())
	}
	e.logger.InfoContext(ctx, "certificate exported",
		"certificate_id", id,
		"filename", filename,
		"bytes", len(pdf),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return pdf, filename, nil
}

// Filename builds the download name: "[Draft ]<certificateNo> <customerName>
// <gasName>.pdf". The Draft prefix follows formatType (not the watermark
// flag), empty components are dropped, and parts are joined by single spaces.
func Filename(cert *certificate.Certificate) string {
	var parts []string
	if cert.FormatType == certificate.FormatDraft {
		parts = append(parts, "Draft")
	}
	parts = appendNonEmpty(parts, cert.CertificateNo)
	if cert.Customer != nil {
		parts = appendNonEmpty(parts, cert.Customer.Name)
	}
	if len(cert.CalibrationRows) > 0 {
		parts = appendNonEmpty(parts, cert.CalibrationRows[0].GasName)
	}
	return strings.Join(parts, " ") + ".pdf"
}

func appendNonEmpty(parts []string, s string) []string {
	if trimmed := strings.TrimSpace(s); trimmed != "" {
		parts = append(parts, trimmed)
	}
	return parts
}
