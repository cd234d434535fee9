package render

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"gascert/internal/certificate"
	"gascert/internal/metrology"
	dErrors "gascert/pkg/domain-errors"
	"gascert/pkg/platform/sentinel"
)

type fakeSource struct {
	certs map[uuid.UUID]*certificate.Certificate
}

func (f *fakeSource) FindByID(_ context.Context, id uuid.UUID) (*certificate.Certificate, error) {
	if cert, ok := f.certs[id]; ok {
		return cert.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

type fakeAssets struct {
	logo       string
	signatures map[uuid.UUID]string
}

func (f *fakeAssets) SignatureDataURI(ownerID uuid.UUID, filename string) string {
	if filename == "" {
		return ""
	}
	return f.signatures[ownerID]
}

func (f *fakeAssets) Logo() string { return f.logo }

type AssemblerSuite struct {
	suite.Suite
	source    *fakeSource
	assets    *fakeAssets
	assembler *Assembler
}

func TestAssemblerSuite(t *testing.T) {
	suite.Run(t, new(AssemblerSuite))
}

func (s *AssemblerSuite) SetupTest() {
	s.source = &fakeSource{certs: map[uuid.UUID]*certificate.Certificate{}}
	s.assets = &fakeAssets{signatures: map[uuid.UUID]string{}}
	s.assembler = NewAssembler(s.source, s.assets, CompanyInfo{Name: "Gas Calibration Laboratory"})
}

func (s *AssemblerSuite) add(cert *certificate.Certificate) *certificate.Certificate {
	if cert.ID == uuid.Nil {
		cert.ID = uuid.New()
	}
	s.source.certs[cert.ID] = cert
	return cert
}

func (s *AssemblerSuite) baseCert() *certificate.Certificate {
	return &certificate.Certificate{
		ID:            uuid.New(),
		CertificateNo: "GC-2508406",
		Status:        certificate.StatusPending,
		FormatType:    certificate.FormatDraft,
		CreatedBy:     uuid.New(),
		Ambient:       certificate.DefaultAmbient(),
		CalibrationRows: []certificate.CalibrationRow{
			{GasName: "Hydrogen 100 ppm", Unit: "ppm", StandardValue: 50, M1: 49.8, M2: 50.0, M3: 50.2, Resolution: 0.1, UncertaintyStandard: 0.3},
		},
		CalibrationDate: time.Date(2025, 8, 18, 0, 0, 0, 0, time.UTC),
	}
}

func (s *AssemblerSuite) TestMissingCertificate() {
	_, err := s.assembler.Assemble(context.Background(), uuid.New())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *AssemblerSuite) TestDerivesAbsentValues() {
	cert := s.add(s.baseCert())

	model, err := s.assembler.Assemble(context.Background(), cert.ID)
	s.Require().NoError(err)

	row := model.Certificate.CalibrationRows[0]
	s.Require().True(row.Derived.Mean.Valid)
	s.InDelta(50.0, row.Derived.Mean.Value, 1e-9)
	s.True(row.Derived.ExpandedUncertainty.Valid)
}

func (s *AssemblerSuite) TestProvidedValuesSurvive() {
	cert := s.baseCert()
	cert.CalibrationRows[0].Derived.Mean = metrology.Provided(42.0)
	s.add(cert)

	model, err := s.assembler.Assemble(context.Background(), cert.ID)
	s.Require().NoError(err)
	s.InDelta(42.0, model.Certificate.CalibrationRows[0].Derived.Mean.Value, 1e-9)
}

func (s *AssemblerSuite) TestUnitFallback() {
	s.Run("row keeps its own unit", func() {
		cert := s.add(s.baseCert())
		model, err := s.assembler.Assemble(context.Background(), cert.ID)
		s.Require().NoError(err)
		s.Equal("ppm", model.Certificate.CalibrationRows[0].Unit)
	})

	s.Run("blank unit takes tool gas unit", func() {
		cert := s.baseCert()
		cert.CalibrationRows[0].Unit = ""
		cert.Tool = &certificate.Tool{GasUnit: "%vol"}
		s.add(cert)

		model, err := s.assembler.Assemble(context.Background(), cert.ID)
		s.Require().NoError(err)
		s.Equal("%vol", model.Certificate.CalibrationRows[0].Unit)
	})

	s.Run("blank unit without tool defaults to ppm", func() {
		cert := s.baseCert()
		cert.CalibrationRows[0].Unit = ""
		s.add(cert)

		model, err := s.assembler.Assemble(context.Background(), cert.ID)
		s.Require().NoError(err)
		s.Equal("ppm", model.Certificate.CalibrationRows[0].Unit)
	})
}

func (s *AssemblerSuite) TestAdjustedRowsOnlyWithAdjustmentFlag() {
	cert := s.baseCert()
	cert.AdjustedRows = []certificate.CalibrationRow{
		{GasName: "Hydrogen", Unit: "ppm", StandardValue: 50, M1: 50, M2: 50, M3: 50},
	}
	s.add(cert)

	model, err := s.assembler.Assemble(context.Background(), cert.ID)
	s.Require().NoError(err)
	s.False(model.Certificate.AdjustedRows[0].Derived.Mean.Valid)

	cert.Adjustment = true
	model, err = s.assembler.Assemble(context.Background(), cert.ID)
	s.Require().NoError(err)
	s.True(model.Certificate.AdjustedRows[0].Derived.Mean.Valid)
}

func (s *AssemblerSuite) TestDraftFollowsWatermarkOnly() {
	s.Run("official format with watermark is draft", func() {
		cert := s.baseCert()
		cert.FormatType = certificate.FormatOfficial
		cert.Watermark = true
		s.add(cert)

		model, err := s.assembler.Assemble(context.Background(), cert.ID)
		s.Require().NoError(err)
		s.True(model.IsDraft)
	})

	s.Run("draft format without watermark is not draft", func() {
		cert := s.baseCert()
		cert.FormatType = certificate.FormatDraft
		cert.Watermark = false
		s.add(cert)

		model, err := s.assembler.Assemble(context.Background(), cert.ID)
		s.Require().NoError(err)
		s.False(model.IsDraft)
	})
}

func (s *AssemblerSuite) TestSignatures() {
	cert := s.baseCert()
	cert.CreatorName = "Taylor Nakamura"
	cert.CreatorSignature = "taylor.png"
	approver := uuid.New()
	cert.ApprovedBy = &approver
	cert.ApproverName = "Morgan Reyes"
	cert.ApproverSignature = "morgan.png"
	s.add(cert)
	s.assets.signatures[cert.CreatedBy] = "data:image/png;base64,creator"
	s.assets.signatures[approver] = "data:image/png;base64,approver"

	model, err := s.assembler.Assemble(context.Background(), cert.ID)
	s.Require().NoError(err)
	s.Equal("Taylor Nakamura", model.Signatures.CreatorName)
	s.Contains(string(model.Signatures.CreatorImage), "creator")
	s.Contains(string(model.Signatures.ApproverImage), "approver")
}

func (s *AssemblerSuite) TestMissingLogoRendersWithout() {
	cert := s.add(s.baseCert())
	model, err := s.assembler.Assemble(context.Background(), cert.ID)
	s.Require().NoError(err)
	s.Empty(string(model.Logo))
}

func (s *AssemblerSuite) TestParameterSummary() {
	rows := []certificate.CalibrationRow{
		{GasName: "Hydrogen 100 ppm", StandardValue: 50, Unit: "ppm"},
		{GasName: "CH4 2.5%vol", StandardValue: 2.5, Unit: "%vol"},
	}
	s.Equal("Hydrogen 50 ppm, CH4 2.5 %vol", ParameterSummary(rows))
}

func TestCleanGasName(t *testing.T) {
	cases := map[string]string{
		"Hydrogen 100 ppm":       "Hydrogen",
		"CH4 2.5%vol":            "CH4",
		"Oxygen":                 "Oxygen",
		"Carbon Monoxide 50 ppm": "Carbon Monoxide",
	}
	for in, want := range cases {
		if got := CleanGasName(in); got != want {
			t.Errorf("CleanGasName(%q) = %q, want %q", in, got, want)
		}
	}
}
