package template

import (
	"errors"
	"fmt"

	"SatVault/internal/logger"
	"SatVault/internal/movebin"
)

var (
	// ErrConstantIndexOutOfRange is returned when an edit targets a missing slot.
	ErrConstantIndexOutOfRange = errors.New("constant index out of range")

	// ErrConstantTypeMismatch is returned when an edit's type differs from
	// the slot's declared type or from the type of the new value.
	ErrConstantTypeMismatch = errors.New("constant type mismatch")

	// ErrInvalidIdentifier is returned when a rename produces an identifier
	// the ledger would reject.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrDuplicateIdentifier is returned when a rename collides with an
	// existing identifier.
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
)

// ConstantEdit replaces the value of one constant-pool slot.
type ConstantEdit struct {
	Index int           // Index is the constant-pool position
	Name  string        // Name is the advisory text the slot is expected to hold
	Type  movebin.Kind  // Type is the declared type the slot must have
	Value movebin.Value // Value is the replacement
}

// IdentifierEdit renames every exact occurrence of Old to New.
type IdentifierEdit struct {
	Old string // Old is the identifier to replace
	New string // New is its replacement
}

// Warning reports an advisory check that did not hold.
type Warning struct {
	Index   int    // Index is the constant-pool position concerned
	Message string // Message describes the mismatch
}

// String renders the warning for logs.
func (w Warning) String() string {
	return fmt.Sprintf("const[%d]: %s", w.Index, w.Message)
}

// Result is the outcome of a patch.
type Result struct {
	Module   *movebin.Module // Module is the patched copy
	Warnings []Warning       // Warnings lists advisory mismatches
	Renamed  int             // Renamed counts replaced identifier entries
}

// Patch applies edits, in order, to a copy of m. The input is never modified.
// Advisory names that do not match the current slot value are reported as
// warnings rather than failures.
func Patch(m *movebin.Module, constants []ConstantEdit, identifiers []IdentifierEdit) (*Result, error) {
	out := m.Clone()
	res := &Result{Module: out}

	for _, e := range constants {
		w, err := applyConstant(out, e)
		if err != nil {
			return nil, err
		}

		if w != nil {
			logger.Warn("template constant mismatch", "index", w.Index, "detail", w.Message)
			res.Warnings = append(res.Warnings, *w)
		}
	}

	for _, e := range identifiers {
		n, err := applyIdentifier(out, e)
		if err != nil {
			return nil, err
		}

		res.Renamed += n
	}

	return res, nil
}

// applyConstant performs one constant edit.
func applyConstant(m *movebin.Module, e ConstantEdit) (*Warning, error) {
	if e.Index < 0 || e.Index >= len(m.Constants) {
		return nil, fmt.Errorf("%w: index %d, pool has %d entries", ErrConstantIndexOutOfRange, e.Index, len(m.Constants))
	}

	slot := m.Constants[e.Index]
	if slot.Kind() != e.Type {
		return nil, fmt.Errorf("%w: const[%d] declared %s, edit expects %s", ErrConstantTypeMismatch, e.Index, slot.Kind(), e.Type)
	}

	if e.Value == nil || e.Value.Kind() != e.Type {
		return nil, fmt.Errorf("%w: const[%d] is %s, new value is %s", ErrConstantTypeMismatch, e.Index, e.Type, kindName(e.Value))
	}

	w := checkAdvisory(slot, e)
	m.Constants[e.Index] = movebin.NewConstant(e.Value)

	return w, nil
}

// checkAdvisory compares the advisory name with the slot's current value.
func checkAdvisory(slot movebin.Constant, e ConstantEdit) *Warning {
	if e.Name == "" {
		return nil
	}

	current, err := slot.Value()
	if err != nil {
		return &Warning{Index: e.Index, Message: fmt.Sprintf("cannot read current value: %v", err)}
	}

	if current.String() != e.Name {
		return &Warning{
			Index:   e.Index,
			Message: fmt.Sprintf("expected %q, template holds %q", e.Name, current.String()),
		}
	}

	return nil
}

// applyIdentifier performs one rename and returns the number of entries changed.
func applyIdentifier(m *movebin.Module, e IdentifierEdit) (int, error) {
	if e.Old == e.New {
		return 0, nil
	}

	if _, exists := m.IdentifierIndex(e.Old); !exists {
		return 0, nil
	}

	if !ValidIdentifier(e.New) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIdentifier, e.New)
	}

	if _, exists := m.IdentifierIndex(e.New); exists {
		return 0, fmt.Errorf("%w: %q already present", ErrDuplicateIdentifier, e.New)
	}

	n := 0
	for i, id := range m.Identifiers {
		if id == e.Old {
			m.Identifiers[i] = e.New
			n++
		}
	}

	return n, nil
}

// ValidIdentifier reports whether s is a legal module, type or function name:
// an ASCII letter followed by letters, digits or underscores, or an
// underscore followed by at least one such character.
func ValidIdentifier(s string) bool {
	if s == "" {
		return false
	}

	first := s[0]
	if !isLetter(first) && !(first == '_' && len(s) > 1) {
		return false
	}

	for i := 1; i < len(s); i++ {
		c := s[i]
		if !isLetter(c) && !isDigit(c) && c != '_' {
			return false
		}
	}

	return true
}

// isLetter reports whether c is an ASCII letter.
func isLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// isDigit reports whether c is an ASCII digit.
func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

// kindName names the kind of v, tolerating nil.
func kindName(v movebin.Value) string {
	if v == nil {
		return "missing"
	}

	return v.Kind().String()
}
