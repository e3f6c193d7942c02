package deploy

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"SatVault/internal/pkginfo"
	"SatVault/internal/resolve"
	"SatVault/internal/template"
)

// ErrInvalidRequest is returned for requests rejected before any work.
var ErrInvalidRequest = errors.New("invalid deployment request")

// Request describes one coin to instantiate from the template.
type Request struct {
	Module      string `yaml:"module"`      // Module is the new module name, e.g. "satxbtc"
	Name        string `yaml:"name"`        // Name is the display name
	Symbol      string `yaml:"symbol"`      // Symbol is the ticker symbol
	Description string `yaml:"description"` // Description is the coin description
	IconURL     string `yaml:"icon_url"`    // IconURL is the icon reference
	Decimals    uint8  `yaml:"decimals"`    // Decimals is the decimal precision
}

// Validate checks the request before decoding anything.
func (r Request) Validate() error {
	if !template.ValidIdentifier(r.Module) {
		return fmt.Errorf("%w: module %q is not an identifier", ErrInvalidRequest, r.Module)
	}

	// The one-time witness is the upper-cased module name and must differ from it.
	if r.TypeName() == r.Module {
		return fmt.Errorf("%w: module %q must contain a lower-case letter", ErrInvalidRequest, r.Module)
	}

	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidRequest)
	}

	if strings.TrimSpace(r.Symbol) == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidRequest)
	}

	for field, v := range map[string]string{
		"name":        r.Name,
		"symbol":      r.Symbol,
		"description": r.Description,
		"icon_url":    r.IconURL,
	} {
		if !utf8.ValidString(v) {
			return fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidRequest, field)
		}
	}

	return nil
}

// TypeName returns the coin type name within its module.
func (r Request) TypeName() string {
	return template.TypeName(r.Module)
}

// Fields converts the request to template parameters.
func (r Request) Fields() template.Fields {
	return template.Fields{
		Module:      r.Module,
		Name:        r.Name,
		Symbol:      r.Symbol,
		Description: r.Description,
		IconURL:     r.IconURL,
		Decimals:    r.Decimals,
	}
}

// Result is what a deployment produced. Fields that could not be resolved
// are empty.
type Result struct {
	Digest        string             // Digest is the publish transaction
	PackageID     string             // PackageID is the published package
	MetadataID    string             // MetadataID is the coin metadata object
	TreasuryCapID string             // TreasuryCapID is the treasury capability
	UpgradeCapID  string             // UpgradeCapID is the upgrade capability
	TypeName      string             // TypeName is package::module::TYPE
	Objects       resolve.Objects    // Objects holds every resolved expectation
	Missing       []string           // Missing lists expectations that were not found
	Warnings      []template.Warning // Warnings are the advisory patch warnings
}

// Record returns the definitions to persist for r.
func (r *Result) Record() pkginfo.Record {
	return pkginfo.Record{
		PackageID:     r.PackageID,
		MetadataID:    r.MetadataID,
		UpgradeCapID:  r.UpgradeCapID,
		TreasuryCapID: r.TreasuryCapID,
		TypeName:      r.TypeName,
	}
}

// Complete reports whether every identifier was resolved.
func (r *Result) Complete() bool {
	return r.PackageID != "" && len(r.Missing) == 0
}

// Stage names a pipeline step.
type Stage string

// Pipeline stages in execution order.
const (
	StagePrepare Stage = "prepare"
	StageSubmit  Stage = "submit"
	StageResolve Stage = "resolve"
	StagePersist Stage = "persist"
	StageArchive Stage = "archive"
)

// StageError is a failure after the transaction may have reached the ledger.
// Digest is empty when the ledger never assigned one.
type StageError struct {
	Stage  Stage  // Stage is where the failure happened
	Digest string // Digest is the transaction to recover from
	Err    error  // Err is the cause
}

// Error implements error.
func (e *StageError) Error() string {
	if e.Digest == "" {
		return fmt.Sprintf("%s:\n%v", e.Stage, e.Err)
	}

	return fmt.Sprintf("%s (digest %s):\n%v", e.Stage, e.Digest, e.Err)
}

// Unwrap returns the cause.
func (e *StageError) Unwrap() error {
	return e.Err
}
