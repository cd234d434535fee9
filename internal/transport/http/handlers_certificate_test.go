package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"gascert/internal/certificate"
	"gascert/internal/export"
	"gascert/internal/platform/middleware"
)

const testSigningKey = "handler-test-signing-key"

type fakeExporter struct {
	markup   string
	pdf      []byte
	lastOpts export.Options
}

func (f *fakeExporter) ToMarkup(_ context.Context, _ uuid.UUID) (string, error) {
	return f.markup, nil
}

func (f *fakeExporter) ToPrintableMarkup(_ context.Context, _ uuid.UUID) (string, error) {
	return f.markup + `<script>window.print();</script>`, nil
}

func (f *fakeExporter) ToDocument(_ context.Context, _ uuid.UUID, opts export.Options) ([]byte, string, error) {
	f.lastOpts = opts
	return f.pdf, "GC-2508406 Acme Corp Hydrogen.pdf", nil
}

type fakeCacheClearer struct{ cleared int }

func (f *fakeCacheClearer) ClearCache() { f.cleared++ }

type HandlerSuite struct {
	suite.Suite
	router   http.Handler
	service  *certificate.Service
	users    *certificate.MemoryUserDirectory
	clearer  *fakeCacheClearer
	exporter *fakeExporter

	technician certificate.Actor
	admin      certificate.Actor
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	store := certificate.NewMemoryStore()
	s.users = certificate.NewMemoryUserDirectory()
	s.service = certificate.NewService(store, s.users)
	s.exporter = &fakeExporter{markup: "<html><body>doc</body></html>", pdf: []byte("%PDF-1.7")}
	s.clearer = &fakeCacheClearer{}

	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	handler := NewHandler(s.service, s.exporter, s.clearer, logger)
	s.router = NewRouter(handler, middleware.NewHMACValidator(testSigningKey), logger)

	s.technician = certificate.Actor{ID: uuid.New(), Role: certificate.RoleTechnician}
	s.admin = certificate.Actor{ID: uuid.New(), Role: certificate.RoleAdmin}
	s.users.Put(certificate.User{ID: s.technician.ID, FullName: "Taylor Nakamura", SignatureFile: "taylor.png", Role: certificate.RoleTechnician})
	s.users.Put(certificate.User{ID: s.admin.ID, FullName: "Morgan Reyes", SignatureFile: "morgan.png", Role: certificate.RoleAdmin})
}

func (s *HandlerSuite) token(actor certificate.Actor) string {
	claims := middleware.Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSigningKey))
	s.Require().NoError(err)
	return signed
}

func (s *HandlerSuite) do(actor *certificate.Actor, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != nil {
		req.Header.Set("Authorization", "Bearer "+s.token(*actor))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) createBody() map[string]any {
	return map[string]any{
		"equipment_id": uuid.New().String(),
		"probe_id":     uuid.New().String(),
		"customer_id":  uuid.New().String(),
		"calibration_rows": []map[string]any{
			{"gas_name": "Hydrogen", "unit": "ppm", "standard_value": 50.0, "m1": 49.8, "m2": 50.0, "m3": 50.2},
		},
	}
}

func (s *HandlerSuite) createCertificate() uuid.UUID {
	rec := s.do(&s.technician, http.MethodPost, "/certificates", s.createBody())
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID uuid.UUID `json:"id"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &created))
	return created.ID
}

func (s *HandlerSuite) TestAuthRequired() {
	s.Run("missing token", func() {
		rec := s.do(nil, http.MethodGet, "/certificates", nil)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("garbage token", func() {
		req := httptest.NewRequest(http.MethodGet, "/certificates", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("health is open", func() {
		rec := s.do(nil, http.MethodGet, "/healthz", nil)
		s.Equal(http.StatusOK, rec.Code)
	})
}

func (s *HandlerSuite) TestCreateAndGet() {
	id := s.createCertificate()

	rec := s.do(&s.technician, http.MethodGet, "/certificates/"+id.String(), nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "GC-")

	rec = s.do(&s.admin, http.MethodGet, "/certificates/"+uuid.New().String(), nil)
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.do(&s.admin, http.MethodGet, "/certificates/not-a-uuid", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestApproveFlow() {
	id := s.createCertificate()

	s.Run("technician forbidden", func() {
		rec := s.do(&s.technician, http.MethodPost, "/certificates/"+id.String()+"/approve", nil)
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("admin approves", func() {
		rec := s.do(&s.admin, http.MethodPost, "/certificates/"+id.String()+"/approve", nil)
		s.Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), `"approved"`)
	})

	s.Run("second approval conflicts with state", func() {
		rec := s.do(&s.admin, http.MethodPost, "/certificates/"+id.String()+"/approve", nil)
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("reset to pending", func() {
		rec := s.do(&s.admin, http.MethodPost, "/certificates/"+id.String()+"/pending", nil)
		s.Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), `"pending"`)
	})
}

func (s *HandlerSuite) TestBulkApprove() {
	pending := s.createCertificate()
	missing := uuid.New()

	rec := s.do(&s.admin, http.MethodPost, "/certificates/bulk-approve", map[string]any{
		"ids": []string{pending.String(), missing.String()},
	})
	s.Require().Equal(http.StatusOK, rec.Code)

	var result certificate.BulkApproveResult
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &result))
	s.Equal(1, result.ApprovedCount)
	s.Equal(1, result.SkippedCount)
}

func (s *HandlerSuite) TestMarkupAndDocument() {
	id := s.createCertificate()

	s.Run("markup", func() {
		rec := s.do(&s.technician, http.MethodGet, "/certificates/"+id.String()+"/markup", nil)
		s.Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Header().Get("Content-Type"), "text/html")
	})

	s.Run("printable markup carries trigger", func() {
		rec := s.do(&s.technician, http.MethodGet, "/certificates/"+id.String()+"/markup/printable", nil)
		s.Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), "window.print()")
	})

	s.Run("document sets disposition", func() {
		rec := s.do(&s.technician, http.MethodGet, "/certificates/"+id.String()+"/document", nil)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("application/pdf", rec.Header().Get("Content-Type"))
		s.Contains(rec.Header().Get("Content-Disposition"), "GC-2508406 Acme Corp Hydrogen.pdf")
	})

	s.Run("document honors layout query parameters", func() {
		rec := s.do(&s.technician, http.MethodGet, "/certificates/"+id.String()+
			"/document?page_size=Letter&margin_top=0.75&margin_left=0.5&print_background=false&footer_template=%3Cspan%3E%3C%2Fspan%3E", nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Equal(export.PageLetter, s.exporter.lastOpts.PageSize)
		s.InDelta(0.75, s.exporter.lastOpts.Margins.Top, 1e-9)
		s.InDelta(0.5, s.exporter.lastOpts.Margins.Left, 1e-9)
		s.InDelta(0.4, s.exporter.lastOpts.Margins.Bottom, 1e-9)
		s.False(s.exporter.lastOpts.PrintBackground)
		s.Equal("<span></span>", s.exporter.lastOpts.FooterTemplate)
	})

	s.Run("unsupported page size rejected", func() {
		rec := s.do(&s.technician, http.MethodGet, "/certificates/"+id.String()+"/document?page_size=A5", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("malformed margin rejected", func() {
		rec := s.do(&s.technician, http.MethodGet, "/certificates/"+id.String()+"/document?margin_top=wide", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("foreign technician cannot fetch document", func() {
		other := certificate.Actor{ID: uuid.New(), Role: certificate.RoleTechnician}
		rec := s.do(&other, http.MethodGet, "/certificates/"+id.String()+"/document", nil)
		s.Equal(http.StatusForbidden, rec.Code)
	})
}

func (s *HandlerSuite) TestDeleteAndUpdate() {
	id := s.createCertificate()

	rec := s.do(&s.technician, http.MethodPut, "/certificates/"+id.String(), map[string]any{
		"place": "Customer site",
	})
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "Customer site")

	rec = s.do(&s.technician, http.MethodDelete, "/certificates/"+id.String(), nil)
	s.Equal(http.StatusNoContent, rec.Code)
}

func (s *HandlerSuite) TestTemplateCacheClear() {
	s.Run("admin clears", func() {
		rec := s.do(&s.admin, http.MethodPost, "/admin/template-cache/clear", nil)
		s.Equal(http.StatusNoContent, rec.Code)
		s.Equal(1, s.clearer.cleared)
	})

	s.Run("technician forbidden", func() {
		rec := s.do(&s.technician, http.MethodPost, "/admin/template-cache/clear", nil)
		s.Equal(http.StatusForbidden, rec.Code)
	})
}
