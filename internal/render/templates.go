package render

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"gascert/internal/metrology"
	"gascert/internal/platform/metrics"
	dErrors "gascert/pkg/domain-errors"
)

//go:embed templates
var templateFS embed.FS

// CertificateTemplate is the default document template name.
const CertificateTemplate = "certificate.html.tmpl"

// Source reads template sources by name. It is an interface so tests can
// count reads and deployments can point at an on-disk template directory
// that is editable without a rebuild.
type Source interface {
	Read(name string) ([]byte, error)
}

// FSSource reads templates from any fs.FS.
type FSSource struct {
	FS fs.FS
}

func (s FSSource) Read(name string) ([]byte, error) {
	return fs.ReadFile(s.FS, name)
}

// EmbeddedSource serves the templates compiled into the binary.
func EmbeddedSource() Source {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		// embed guarantees the directory exists
		panic(err)
	}
	return FSSource{FS: sub}
}

// Renderer compiles named templates on first use, caches the compiled form,
// and binds rendering models to produce markup.
type Renderer struct {
	source  Source
	cache   *Cache
	metrics *metrics.Metrics
}

func NewRenderer(source Source, cache *Cache, m *metrics.Metrics) *Renderer {
	return &Renderer{source: source, cache: cache, metrics: m}
}

// Render produces markup for the model. The compiled template is reused
// until ClearCache is called; the source is re-read only on a cache miss.
func (r *Renderer) Render(name string, model any) (string, error) {
	tmpl, ok := r.cache.Get(name)
	if !ok {
		var err error
		tmpl, err = r.compile(name)
		if err != nil {
			return "", err
		}
		r.cache.Put(name, tmpl)
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, model); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeRendering, "template execution failed")
	}
	return out.String(), nil
}

// ClearCache drops all compiled templates.
func (r *Renderer) ClearCache() {
	r.cache.Clear()
}

func (r *Renderer) compile(name string) (*template.Template, error) {
	src, err := r.source.Read(name)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeRendering, "template source unreadable: "+name)
	}
	tmpl, err := template.New(name).Funcs(Helpers()).Parse(string(src))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeRendering, "template compilation failed: "+name)
	}
	if r.metrics != nil {
		r.metrics.TemplateCompilations.Inc()
	}
	return tmpl, nil
}

// dateLayouts are the literal output formats the document uses.
var dateLayouts = map[string]string{
	"DD-MMM-YY":    "02-Jan-06",
	"DD/MM/YYYY":   "02/01/2006",
	"DD MMMM YYYY": "02 January 2006",
}

// Helpers is the fixed set of presentation functions available to document
// templates.
func Helpers() template.FuncMap {
	return template.FuncMap{
		"formatDate": func(layout string, t time.Time) string {
			if t.IsZero() {
				return ""
			}
			goLayout, ok := dateLayouts[layout]
			if !ok {
				goLayout = dateLayouts["DD-MMM-YY"]
			}
			return t.Format(goLayout)
		},
		"fixed": func(decimals int, v float64) string {
			return strconv.FormatFloat(v, 'f', decimals, 64)
		},
		// field renders a derived value at display precision (one decimal),
		// or a dash when the value was never derived.
		"field": func(f metrology.Field) string {
			if !f.Valid {
				return "-"
			}
			return strconv.FormatFloat(metrology.Round1(f.Value), 'f', 1, 64)
		},
		"add": func(a, b float64) float64 { return a + b },
		"mul": func(a, b float64) float64 { return a * b },
		"gt":  func(a, b float64) bool { return a > b },
		"lt":  func(a, b float64) bool { return a < b },
		"gasParam": func(gas string, value float64, unit string) string {
			return fmt.Sprintf("%s %s %s", CleanGasName(gas),
				strconv.FormatFloat(value, 'f', -1, 64), unit)
		},
	}
}
