package render

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"gascert/internal/certificate"
	"gascert/internal/metrology"
	dErrors "gascert/pkg/domain-errors"
	"gascert/pkg/platform/sentinel"
)

// CertificateSource loads a certificate with its related records in one
// consistent read.
type CertificateSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*certificate.Certificate, error)
}

// AssetResolver locates signature images and the company letterhead.
type AssetResolver interface {
	SignatureDataURI(ownerID uuid.UUID, filename string) string
	Logo() string
}

// gasNameSuffix matches an embedded concentration suffix in a gas label,
// e.g. "CO 50 ppm" or "CH4 2.5%vol", which is stripped for the calculation
// summary.
var gasNameSuffix = regexp.MustCompile(`\s+\d+(?:\.\d+)?\s*\S*\s*$`)

// Assembler merges a certificate's relational data with calculator outputs
// into one rendering model.
type Assembler struct {
	source  CertificateSource
	assets  AssetResolver
	company CompanyInfo
}

func NewAssembler(source CertificateSource, assets AssetResolver, company CompanyInfo) *Assembler {
	return &Assembler{source: source, assets: assets, company: company}
}

// Assemble builds the rendering model for one certificate. It fills absent
// derived values on raw rows (and adjusted rows when the adjustment flag is
// set), resolves signatures and the letterhead, and computes the calculation
// summary. The model is rebuilt from scratch on every call.
func (a *Assembler) Assemble(ctx context.Context, id uuid.UUID) (*Model, error) {
	cert, err := a.source.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to load certificate")
	}

	unit := a.workingUnit(cert)
	deriveRows(cert.CalibrationRows, unit)
	if cert.Adjustment {
		deriveRows(cert.AdjustedRows, unit)
	}

	model := &Model{
		Certificate: cert,
		Company:     a.company,
		Ambient:     ambientDisplay(cert.Ambient),
		Signatures: SignatureBlock{
			CreatorName:   cert.CreatorName,
			CreatorImage:  template.URL(a.assets.SignatureDataURI(cert.CreatedBy, cert.CreatorSignature)),
			ApproverName:  cert.ApproverName,
			ApproverImage: template.URL(approverImage(a.assets, cert)),
		},
		Summary: Summary{
			PageCount: 1,
			Parameter: ParameterSummary(cert.CalibrationRows),
		},
		// Strictly the explicit watermark flag; status and formatType
		// correlate but do not drive the draft overlay.
		IsDraft:     cert.Watermark,
		Logo:        template.URL(a.assets.Logo()),
		GeneratedAt: time.Now(),
	}
	return model, nil
}

// workingUnit is the fallback gas unit for rows created without one: the
// reference standard's unit when a tool is attached, else ppm. Rows carrying
// their own unit keep it.
func (a *Assembler) workingUnit(cert *certificate.Certificate) string {
	if cert.Tool != nil && cert.Tool.GasUnit != "" {
		return cert.Tool.GasUnit
	}
	return DefaultUnit
}

func deriveRows(rows []certificate.CalibrationRow, unit string) {
	for i := range rows {
		if rows[i].Unit == "" {
			rows[i].Unit = unit
		}
		rows[i].Derived = metrology.Derive(rows[i].Measurement(), rows[i].Derived)
	}
}

func approverImage(assets AssetResolver, cert *certificate.Certificate) string {
	if cert.ApprovedBy == nil {
		return ""
	}
	return assets.SignatureDataURI(*cert.ApprovedBy, cert.ApproverSignature)
}

// ParameterSummary joins, per row, the cleaned gas name, standard value, and
// unit into the human-readable "parameter of calibration" string.
func ParameterSummary(rows []certificate.CalibrationRow) string {
	parts := make([]string, 0, len(rows))
	for _, row := range rows {
		parts = append(parts, fmt.Sprintf("%s %s %s",
			CleanGasName(row.GasName),
			strconv.FormatFloat(row.StandardValue, 'f', -1, 64),
			row.Unit,
		))
	}
	return strings.Join(parts, ", ")
}

// CleanGasName strips an embedded numeric/unit suffix from a gas label.
func CleanGasName(name string) string {
	return strings.TrimSpace(gasNameSuffix.ReplaceAllString(name, ""))
}

func ambientDisplay(a certificate.AmbientConditions) []AmbientDisplay {
	return []AmbientDisplay{
		{Label: "Temperature", Value: a.Temperature, Unit: "°C"},
		{Label: "Humidity", Value: a.Humidity, Unit: "%RH"},
		{Label: "Pressure", Value: a.Pressure, Unit: "hPa"},
		{Label: "Gas Temperature", Value: a.GasTemperature, Unit: "°C"},
		{Label: "Flow Rate", Value: a.FlowRate, Unit: "L/min"},
		{Label: "Gas Pressure", Value: a.GasPressure, Unit: "kPa"},
	}
}
