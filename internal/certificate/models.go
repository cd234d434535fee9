// Package certificate owns the calibration-certificate entity, its approval
// lifecycle, and the stores that persist it.
package certificate

import (
	"time"

	"github.com/google/uuid"

	"gascert/internal/metrology"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
)

type FormatType string

const (
	FormatDraft    FormatType = "draft"
	FormatOfficial FormatType = "official"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleTechnician Role = "technician"
	RoleUser       Role = "user"
)

// Actor is the already-authenticated caller identity supplied by transport.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// AmbientConditions records the environment during calibration. Values are
// concrete; partial input is merged over defaults before construction.
type AmbientConditions struct {
	Temperature    float64 `json:"temperature"`     // °C
	Humidity       float64 `json:"humidity"`        // %RH
	Pressure       float64 `json:"pressure"`        // hPa
	GasTemperature float64 `json:"gas_temperature"` // °C
	FlowRate       float64 `json:"flow_rate"`       // L/min
	GasPressure    float64 `json:"gas_pressure"`    // kPa
}

// DefaultAmbient are the house conditions assumed when the technician leaves
// a field blank.
func DefaultAmbient() AmbientConditions {
	return AmbientConditions{
		Temperature:    25.0,
		Humidity:       50.0,
		Pressure:       1013.25,
		GasTemperature: 25.0,
		FlowRate:       0.5,
		GasPressure:    101.325,
	}
}

// AmbientInput carries partially supplied ambient conditions; nil fields fall
// back to defaults field by field.
type AmbientInput struct {
	Temperature    *float64 `json:"temperature"`
	Humidity       *float64 `json:"humidity"`
	Pressure       *float64 `json:"pressure"`
	GasTemperature *float64 `json:"gas_temperature"`
	FlowRate       *float64 `json:"flow_rate"`
	GasPressure    *float64 `json:"gas_pressure"`
}

// Merge overlays the supplied values onto defaults; supplied values win.
func (in AmbientInput) Merge(defaults AmbientConditions) AmbientConditions {
	out := defaults
	if in.Temperature != nil {
		out.Temperature = *in.Temperature
	}
	if in.Humidity != nil {
		out.Humidity = *in.Humidity
	}
	if in.Pressure != nil {
		out.Pressure = *in.Pressure
	}
	if in.GasTemperature != nil {
		out.GasTemperature = *in.GasTemperature
	}
	if in.FlowRate != nil {
		out.FlowRate = *in.FlowRate
	}
	if in.GasPressure != nil {
		out.GasPressure = *in.GasPressure
	}
	return out
}

// CalibrationRow is one gas/parameter measurement set. Rows belong to exactly
// one certificate and are replaced wholesale on update, never patched.
type CalibrationRow struct {
	GasName             string  `json:"gas_name"`
	Unit                string  `json:"unit"`
	StandardValue       float64 `json:"standard_value"`
	M1                  float64 `json:"m1"`
	M2                  float64 `json:"m2"`
	M3                  float64 `json:"m3"`
	Resolution          float64 `json:"resolution"`
	UncertaintyStandard float64 `json:"uncertainty_standard"`

	// Derived values arrive pre-computed or are filled by the assembler;
	// never both (recompute only when absent).
	Derived metrology.Derived `json:"derived"`
}

// Measurement adapts the row's raw readings for the metrology package.
func (r CalibrationRow) Measurement() metrology.Measurement {
	return metrology.Measurement{
		Standard:            r.StandardValue,
		M1:                  r.M1,
		M2:                  r.M2,
		M3:                  r.M3,
		Resolution:          r.Resolution,
		UncertaintyStandard: r.UncertaintyStandard,
	}
}

// Related records are loaded by the entity loader and carried as read-only
// snapshots; their CRUD lives outside this service.

type Equipment struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Model    string    `json:"model"`
	SerialNo string    `json:"serial_no"`
}

type Probe struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	SerialNo string    `json:"serial_no"`
}

type Customer struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Address string    `json:"address"`
}

// Tool is the reference standard; its GasUnit is the fallback unit for rows
// created without an explicit one.
type Tool struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	SerialNo string    `json:"serial_no"`
	GasUnit  string    `json:"gas_unit"`
}

// User is a directory snapshot used to stamp names and signature references
// onto certificates at lifecycle events.
type User struct {
	ID            uuid.UUID
	FullName      string
	SignatureFile string
	Role          Role
}

// Certificate is the central entity. ApprovedBy and ApproverSignature are set
// if and only if Status is approved.
type Certificate struct {
	ID              uuid.UUID  `json:"id"`
	CertificateNo   string     `json:"certificate_no"`
	FormatType      FormatType `json:"format_type"`
	Status          Status     `json:"status"`
	Watermark       bool       `json:"watermark"`
	IssueDate       time.Time  `json:"issue_date"`
	CalibrationDate time.Time  `json:"calibration_date"`
	Place           string     `json:"place"`
	Procedure       string     `json:"procedure"`
	Remarks         string     `json:"remarks"`
	Adjustment      bool       `json:"adjustment"`

	EquipmentID uuid.UUID  `json:"equipment_id"`
	ProbeID     uuid.UUID  `json:"probe_id"`
	CustomerID  uuid.UUID  `json:"customer_id"`
	ToolID      *uuid.UUID `json:"tool_id,omitempty"`

	CreatedBy         uuid.UUID  `json:"created_by"`
	CreatorName       string     `json:"creator_name"`
	CreatorSignature  string     `json:"creator_signature"`
	ApprovedBy        *uuid.UUID `json:"approved_by,omitempty"`
	ApproverName      string     `json:"approver_name,omitempty"`
	ApproverSignature string     `json:"approver_signature,omitempty"`

	Ambient AmbientConditions `json:"ambient"`

	CalibrationRows []CalibrationRow `json:"calibration_rows"`
	AdjustedRows    []CalibrationRow `json:"adjusted_rows,omitempty"`

	// Snapshots resolved by the entity loader for rendering.
	Equipment *Equipment `json:"equipment,omitempty"`
	Probe     *Probe     `json:"probe,omitempty"`
	Customer  *Customer  `json:"customer,omitempty"`
	Tool      *Tool      `json:"tool,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Owner reports whether the certificate was created by the given actor.
func (c *Certificate) Owner(actorID uuid.UUID) bool {
	return c.CreatedBy == actorID
}

// Clone returns a deep copy so callers can hand out certificates without
// sharing row slices with the store.
func (c *Certificate) Clone() *Certificate {
	out := *c
	out.CalibrationRows = append([]CalibrationRow(nil), c.CalibrationRows...)
	out.AdjustedRows = append([]CalibrationRow(nil), c.AdjustedRows...)
	if c.ToolID != nil {
		id := *c.ToolID
		out.ToolID = &id
	}
	if c.ApprovedBy != nil {
		id := *c.ApprovedBy
		out.ApprovedBy = &id
	}
	return &out
}
