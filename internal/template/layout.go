package template

import (
	"fmt"
	"strconv"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"SatVault/internal/movebin"
)

// DefaultPlaceholder is the module name compiled into the coin template.
const DefaultPlaceholder = "template"

// Slot locates one editable constant of the template.
type Slot struct {
	Index int          // Index is the constant-pool position
	Name  string       // Name is the advisory value the template holds
	Type  movebin.Kind // Type is the declared constant type
}

// Layout describes where a coin template keeps its parameters.
type Layout struct {
	Symbol      Slot   // Symbol is the ticker symbol slot
	Name        Slot   // Name is the display name slot
	Description Slot   // Description is the description slot
	IconURL     Slot   // IconURL is the icon reference slot
	Decimals    Slot   // Decimals is the decimal precision slot
	Placeholder string // Placeholder is the template's module name
}

// DefaultLayout matches the precompiled coin template shipped with the vault.
func DefaultLayout() Layout {
	return Layout{
		Symbol:      Slot{Index: 0, Name: "Symbol", Type: movebin.KindString},
		Name:        Slot{Index: 1, Name: "Name", Type: movebin.KindString},
		Description: Slot{Index: 2, Name: "Description", Type: movebin.KindString},
		IconURL:     Slot{Index: 3, Name: "Icon_url", Type: movebin.KindString},
		Decimals:    Slot{Index: 4, Name: "9", Type: movebin.KindU8},
		Placeholder: DefaultPlaceholder,
	}
}

// Fields are the parameters of one coin instance.
type Fields struct {
	Module      string // Module is the new module name, e.g. "satxbtc"
	Name        string // Name is the display name
	Symbol      string // Symbol is the ticker symbol
	Description string // Description is the coin description
	IconURL     string // IconURL is the icon reference, possibly a data URL
	Decimals    uint8  // Decimals is the decimal precision
}

// TypeName returns the one-time-witness type name for a module: the module
// name upper-cased.
func TypeName(module string) string {
	return cases.Upper(language.Und).String(module)
}

// Edits builds the constant and identifier edits for f.
func (l Layout) Edits(f Fields) ([]ConstantEdit, []IdentifierEdit, error) {
	decimals, err := movebin.ParseValue(l.Decimals.Type, strconv.Itoa(int(f.Decimals)))
	if err != nil {
		return nil, nil, fmt.Errorf("decimals as %s:\n%w", l.Decimals.Type, err)
	}

	constants := []ConstantEdit{
		l.Symbol.edit(movebin.String(f.Symbol)),
		l.Name.edit(movebin.String(f.Name)),
		l.Description.edit(movebin.String(f.Description)),
		l.IconURL.edit(movebin.String(f.IconURL)),
		l.Decimals.edit(decimals),
	}

	placeholder := l.Placeholder
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}

	identifiers := []IdentifierEdit{
		{Old: placeholder, New: f.Module},
		{Old: TypeName(placeholder), New: TypeName(f.Module)},
	}

	return constants, identifiers, nil
}

// Instantiate patches the template m with f using layout l.
func Instantiate(m *movebin.Module, l Layout, f Fields) (*Result, error) {
	constants, identifiers, err := l.Edits(f)
	if err != nil {
		return nil, err
	}

	return Patch(m, constants, identifiers)
}

// edit builds the constant edit for this slot.
func (s Slot) edit(v movebin.Value) ConstantEdit {
	return ConstantEdit{Index: s.Index, Name: s.Name, Type: s.Type, Value: v}
}
