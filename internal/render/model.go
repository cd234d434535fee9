// Package render assembles the denormalized rendering model for a
// certificate and binds it to compiled document templates.
package render

import (
	"html/template"
	"time"

	"gascert/internal/certificate"
)

// DefaultUnit is the last-resort gas unit when neither the row nor the
// reference standard supplies one.
const DefaultUnit = "ppm"

// CompanyInfo is the issuing laboratory's letterhead data.
type CompanyInfo struct {
	Name    string
	Address string
	Phone   string
	Email   string
}

// AmbientDisplay pairs one ambient value with its display unit.
type AmbientDisplay struct {
	Label string
	Value float64
	Unit  string
}

// SignatureBlock carries the names and inlined signature images for the
// creator and (when approved) the approver.
// Inlined images are template.URL so the data URIs survive html/template's
// URL sanitizer.
type SignatureBlock struct {
	CreatorName   string
	CreatorImage  template.URL
	ApproverName  string
	ApproverImage template.URL
}

// Summary is the calculation summary printed in the certificate footer.
type Summary struct {
	PageCount int
	Parameter string
}

// Model is the transient, read-only structure built per render request. It is
// never persisted; reassembling on every render guarantees the document
// reflects the latest entity state.
type Model struct {
	Certificate *certificate.Certificate
	Company     CompanyInfo
	Ambient     []AmbientDisplay
	Signatures  SignatureBlock
	Summary     Summary
	IsDraft     bool
	Logo        template.URL
	GeneratedAt time.Time
}
