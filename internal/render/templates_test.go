package render

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"gascert/internal/certificate"
	"gascert/internal/metrology"
	dErrors "gascert/pkg/domain-errors"
)

// countingSource counts how many times each template is read from source.
type countingSource struct {
	templates map[string]string
	reads     atomic.Int64
}

func (s *countingSource) Read(name string) ([]byte, error) {
	src, ok := s.templates[name]
	if !ok {
		return nil, fmt.Errorf("no such template %s", name)
	}
	s.reads.Add(1)
	return []byte(src), nil
}

type RendererSuite struct {
	suite.Suite
	source   *countingSource
	renderer *Renderer
}

func TestRendererSuite(t *testing.T) {
	suite.Run(t, new(RendererSuite))
}

func (s *RendererSuite) SetupTest() {
	s.source = &countingSource{templates: map[string]string{
		"doc.html.tmpl": `<h1>{{.Title}}</h1>`,
	}}
	s.renderer = NewRenderer(s.source, NewCache(), nil)
}

func (s *RendererSuite) TestCompileOnce() {
	for i := 0; i < 5; i++ {
		out, err := s.renderer.Render("doc.html.tmpl", map[string]string{"Title": "Report"})
		s.Require().NoError(err)
		s.Equal("<h1>Report</h1>", out)
	}
	s.Equal(int64(1), s.source.reads.Load())
}

func (s *RendererSuite) TestClearCacheForcesRecompile() {
	_, err := s.renderer.Render("doc.html.tmpl", map[string]string{"Title": "a"})
	s.Require().NoError(err)

	// edits to the source take effect only after an explicit clear
	s.source.templates["doc.html.tmpl"] = `<h2>{{.Title}}</h2>`
	out, err := s.renderer.Render("doc.html.tmpl", map[string]string{"Title": "b"})
	s.Require().NoError(err)
	s.Equal("<h1>b</h1>", out)

	s.renderer.ClearCache()
	out, err = s.renderer.Render("doc.html.tmpl", map[string]string{"Title": "c"})
	s.Require().NoError(err)
	s.Equal("<h2>c</h2>", out)
	s.Equal(int64(2), s.source.reads.Load())
}

func (s *RendererSuite) TestUnknownTemplate() {
	_, err := s.renderer.Render("missing.html.tmpl", nil)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeRendering))
}

func (s *RendererSuite) TestInvalidTemplateSource() {
	s.source.templates["broken.html.tmpl"] = `{{.Unclosed`
	_, err := s.renderer.Render("broken.html.tmpl", nil)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeRendering))
}

func (s *RendererSuite) TestConcurrentRender() {
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := s.renderer.Render("doc.html.tmpl", map[string]string{"Title": "x"})
			s.NoError(err)
			s.Equal("<h1>x</h1>", out)
		}()
	}
	wg.Wait()
}

func TestEmbeddedCertificateTemplateCompiles(t *testing.T) {
	renderer := NewRenderer(EmbeddedSource(), NewCache(), nil)
	model := &Model{
		Company: CompanyInfo{Name: "Gas Calibration Laboratory"},
		Summary: Summary{PageCount: 1},
	}
	model.Certificate = &certificate.Certificate{
		CertificateNo:   "GC-2508406",
		CalibrationDate: time.Date(2025, 8, 18, 0, 0, 0, 0, time.UTC),
		IssueDate:       time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC),
		Customer:        &certificate.Customer{Name: "Acme Corp"},
		CalibrationRows: []certificate.CalibrationRow{
			{GasName: "Hydrogen", Unit: "ppm", StandardValue: 50, M1: 49.8, M2: 50.0, M3: 50.2},
		},
	}
	model.Ambient = []AmbientDisplay{{Label: "Temperature", Value: 25, Unit: "°C"}}
	model.IsDraft = true

	out, err := renderer.Render(CertificateTemplate, model)
	require.NoError(t, err)
	assert.Contains(t, out, "Gas Calibration Laboratory")
	assert.Contains(t, out, "GC-2508406")
	assert.Contains(t, out, "Acme Corp")
	assert.Contains(t, out, `<div class="watermark">DRAFT</div>`)
	// never-derived values print as a dash
	assert.Contains(t, out, "<td>-</td>")
}

func TestHelpers(t *testing.T) {
	helpers := Helpers()

	t.Run("formatDate", func(t *testing.T) {
		format := helpers["formatDate"].(func(string, time.Time) string)
		date := time.Date(2025, 8, 18, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, "18-Aug-25", format("DD-MMM-YY", date))
		assert.Equal(t, "18/08/2025", format("DD/MM/YYYY", date))
		assert.Equal(t, "18 August 2025", format("DD MMMM YYYY", date))
		assert.Equal(t, "18-Aug-25", format("unknown", date))
		assert.Equal(t, "", format("DD-MMM-YY", time.Time{}))
	})

	t.Run("field", func(t *testing.T) {
		field := helpers["field"].(func(metrology.Field) string)
		assert.Equal(t, "-", field(metrology.Field{}))
		assert.Equal(t, "0.3", field(metrology.Provided(0.34)))
		assert.Equal(t, "0.4", field(metrology.Provided(0.35)))
	})

	t.Run("fixed", func(t *testing.T) {
		fixed := helpers["fixed"].(func(int, float64) string)
		assert.Equal(t, "50.00", fixed(2, 50))
	})

	t.Run("gasParam", func(t *testing.T) {
		gasParam := helpers["gasParam"].(func(string, float64, string) string)
		assert.Equal(t, "Hydrogen 50 ppm", gasParam("Hydrogen 100 ppm", 50, "ppm"))
	})
}
