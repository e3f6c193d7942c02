package pkginfo

import (
	"errors"
	"fmt"

	"SatVault/internal/logger"
)

// Definition names written for a coin deployment.
const (
	NamePackageID   = "packageId"
	NameMetadata    = "CoinMetadata"
	NameUpgradeCap  = "UpgradeCap"
	NameTreasuryCap = "TreasuryCap"
	NameTypeName    = "typename"
)

// Record holds the identifiers of one deployed coin.
type Record struct {
	PackageID     string // PackageID is the published package
	MetadataID    string // MetadataID is the coin metadata object
	UpgradeCapID  string // UpgradeCapID is the upgrade capability
	TreasuryCapID string // TreasuryCapID is the treasury capability
	TypeName      string // TypeName is package::module::TYPE
}

// Definitions lists the non-empty fields as definitions, in file order.
func (r Record) Definitions() []Definition {
	all := []Definition{
		{Name: NamePackageID, Value: r.PackageID},
		{Name: NameMetadata, Value: r.MetadataID},
		{Name: NameUpgradeCap, Value: r.UpgradeCapID},
		{Name: NameTreasuryCap, Value: r.TreasuryCapID},
		{Name: NameTypeName, Value: r.TypeName},
	}

	var defs []Definition
	for _, d := range all {
		if d.Value != "" {
			defs = append(defs, d)
		}
	}

	return defs
}

// Persister writes definitions to every configured store.
type Persister struct {
	stores []Store // stores receive every write
}

// NewPersister creates a persister over the given stores.
func NewPersister(stores ...Store) *Persister {
	return &Persister{stores: stores}
}

// Persist writes the known fields of r. Empty fields are skipped so a
// partial record never clobbers values from an earlier run.
func (p *Persister) Persist(r Record) error {
	return p.Write(r.Definitions())
}

// Set upserts a single definition.
func (p *Persister) Set(name, value string) error {
	return p.Write([]Definition{{Name: name, Value: value}})
}

// Write upserts defs into every store and reports all failures.
func (p *Persister) Write(defs []Definition) error {
	if len(defs) == 0 {
		return nil
	}

	var errs []error
	for i, s := range p.stores {
		if err := s.Upsert(defs); err != nil {
			errs = append(errs, fmt.Errorf("store %d:\n%w", i, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("persist definitions:\n%w", err)
	}

	logger.Info("definitions persisted", "count", len(defs), "stores", len(p.stores))

	return nil
}

// Lookup returns the value held by the first store that has name.
func (p *Persister) Lookup(name string) (string, bool, error) {
	for _, s := range p.stores {
		v, ok, err := s.Lookup(name)
		if err != nil {
			return "", false, err
		}

		if ok {
			return v, true, nil
		}
	}

	return "", false, nil
}
