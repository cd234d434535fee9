// Package assets resolves signature and letterhead files from the asset
// directory shared with the upload pipeline.
package assets

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// logoCandidates is the ordered list of letterhead locations tried at render
// time; the first readable file wins.
var logoCandidates = []string{
	"logo.png",
	"logo.jpg",
	"images/logo.png",
	"images/logo.jpg",
}

// Resolver locates assets under a base directory.
type Resolver struct {
	dir string
}

func NewResolver(dir string) *Resolver {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	return &Resolver{dir: abs}
}

// SignaturePath returns the stable absolute path for a signature file owned
// by the given user. It does not check existence; the document renders an
// empty signature box for a missing file.
func (r *Resolver) SignaturePath(ownerID uuid.UUID, filename string) string {
	if filename == "" {
		return ""
	}
	return filepath.Join(r.dir, "signatures", ownerID.String(), filename)
}

// SignatureDataURI inlines a signature image for embedding in markup, so the
// exported document does not depend on file URLs surviving into the headless
// renderer. Empty string when the file is absent.
func (r *Resolver) SignatureDataURI(ownerID uuid.UUID, filename string) string {
	if filename == "" {
		return ""
	}
	return dataURI(r.SignaturePath(ownerID, filename))
}

// Logo tries each candidate location in order and returns the first match
// inlined as a data URI. A missing logo is an empty string, never an error.
func (r *Resolver) Logo() string {
	for _, candidate := range logoCandidates {
		if uri := dataURI(filepath.Join(r.dir, candidate)); uri != "" {
			return uri
		}
	}
	return ""
}

func dataURI(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	mime := "image/png"
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".jpg" || ext == ".jpeg" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
