// Package resolve recovers package and object identifiers from the object
// changes of a finalized publish transaction.
package resolve

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"SatVault/internal/ledger"
)

var (
	// ErrNoPackage is returned when an outcome carries no published record.
	ErrNoPackage = errors.New("no published package in transaction")

	// ErrMultiplePackages is returned when more than one package was published.
	ErrMultiplePackages = errors.New("multiple published packages in transaction")

	// ErrObjectNotFound reports expected objects absent from an outcome.
	ErrObjectNotFound = errors.New("expected object not found")
)

// Logical names of the default coin expectations.
const (
	Metadata    = "Metadata"
	TreasuryCap = "TreasuryCap"
	UpgradeCap  = "UpgradeCap"
)

// addressPattern matches 0x-prefixed hex addresses inside type signatures.
var addressPattern = regexp.MustCompile(`\b0x[0-9a-fA-F]+\b`)

// Subject is what a type template is resolved against.
type Subject struct {
	Package string // Package is the published package id
	Module  string // Module is the asset module name
	Type    string // Type is the asset type name
}

// TypeName returns the fully qualified asset type, package::module::type.
func (s Subject) TypeName() string {
	return s.Package + "::" + s.Module + "::" + s.Type
}

// expand substitutes {package}, {module} and {type} in a template.
func (s Subject) expand(template string) string {
	return strings.NewReplacer("{package}", s.Package, "{module}", s.Module, "{type}", s.Type).Replace(template)
}

// Expectation names one object and the type template it must match.
type Expectation struct {
	Name string `yaml:"name"` // Name is the logical name, e.g. TreasuryCap
	Type string `yaml:"type"` // Type is the type template
}

// Expectations is an ordered set of expected objects.
type Expectations []Expectation

// CoinExpectations are the objects created by publishing a coin module.
func CoinExpectations() Expectations {
	return Expectations{
		{Name: Metadata, Type: "0x2::coin::CoinMetadata<{package}::{module}::{type}>"},
		{Name: TreasuryCap, Type: "0x2::coin::TreasuryCap<{package}::{module}::{type}>"},
		{Name: UpgradeCap, Type: "0x2::package::UpgradeCap"},
	}
}

// Names lists the logical names in order.
func (e Expectations) Names() []string {
	names := make([]string, len(e))
	for i, x := range e {
		names[i] = x.Name
	}

	return names
}

// Ready returns a predicate reporting whether an outcome already holds
// every expected object. The package id is read from the outcome itself.
func (e Expectations) Ready(module, typ string) func(*ledger.Outcome) bool {
	return func(o *ledger.Outcome) bool {
		pkg, err := PackageID(o)
		if err != nil {
			return false
		}

		objs := FindObjects(o, Subject{Package: pkg, Module: module, Type: typ}, e)

		return len(objs.Missing(e.Names()...)) == 0
	}
}

// Objects maps logical names to object ids. Absent names are not stored.
type Objects map[string]string

// Get returns the id of a logical name and whether it was found.
func (o Objects) Get(name string) (string, bool) {
	id, ok := o[name]
	return id, ok
}

// Missing lists the names without a resolved id, in the given order.
func (o Objects) Missing(names ...string) []string {
	var missing []string
	for _, n := range names {
		if _, ok := o[n]; !ok {
			missing = append(missing, n)
		}
	}

	return missing
}

// Err returns ErrObjectNotFound naming the missing objects, or nil.
func (o Objects) Err(names ...string) error {
	missing := o.Missing(names...)
	if len(missing) == 0 {
		return nil
	}

	return fmt.Errorf("%w: %s", ErrObjectNotFound, strings.Join(missing, ", "))
}

// PackageID returns the id of the single published package, leading zeros
// after 0x trimmed.
func PackageID(o *ledger.Outcome) (string, error) {
	var ids []string
	for _, ch := range o.ObjectChanges {
		if ch.Kind == ledger.ChangePublished {
			ids = append(ids, ch.PackageID)
		}
	}

	switch len(ids) {
	case 0:
		return "", ErrNoPackage
	case 1:
		return ledger.ShortID(ids[0]), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrMultiplePackages, strings.Join(ids, ", "))
	}
}

// FindObjects matches created records against the expectations. Each
// template is expanded for s and compared by exact string equality after
// address shortening on both sides; the first matching record wins.
func FindObjects(o *ledger.Outcome, s Subject, exps Expectations) Objects {
	found := make(Objects, len(exps))

	for _, exp := range exps {
		if _, done := found[exp.Name]; done {
			continue
		}

		want := canonicalType(s.expand(exp.Type))

		for _, ch := range o.ObjectChanges {
			if ch.Kind != ledger.ChangeCreated {
				continue
			}

			if canonicalType(ch.ObjectType) == want {
				found[exp.Name] = ch.ObjectID
				break
			}
		}
	}

	return found
}

// Resolution is the full result of resolving a publish outcome.
type Resolution struct {
	PackageID string  // PackageID is the published package id
	TypeName  string  // TypeName is package::module::type
	Objects   Objects // Objects maps logical names to ids
}

// Resolve reads the package id then matches the expectations for module::typ.
// Missing objects are not an error here; see Objects.Err.
func Resolve(o *ledger.Outcome, module, typ string, exps Expectations) (*Resolution, error) {
	pkg, err := PackageID(o)
	if err != nil {
		return nil, err
	}

	s := Subject{Package: pkg, Module: module, Type: typ}

	return &Resolution{
		PackageID: pkg,
		TypeName:  s.TypeName(),
		Objects:   FindObjects(o, s, exps),
	}, nil
}

// canonicalType shortens every address inside a type signature.
func canonicalType(t string) string {
	return addressPattern.ReplaceAllStringFunc(t, ledger.ShortID)
}
