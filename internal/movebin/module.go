package movebin

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"slices"
)

// Constant is one constant-pool slot: a declared type and its BCS bytes.
type Constant struct {
	Token []byte // Token is the raw signature token declaring the type
	Data  []byte // Data is the BCS-encoded value
}

// NewConstant builds the constant slot holding v.
func NewConstant(v Value) Constant {
	return Constant{Token: v.Kind().token(), Data: v.encode()}
}

// Kind returns the declared primitive type of the slot.
func (c Constant) Kind() Kind {
	return kindOf(c.Token)
}

// Value decodes the slot into a typed value.
func (c Constant) Value() (Value, error) {
	return decodeValue(c.Kind(), c.Data)
}

// Equal reports whether two slots hold identical bytes.
func (c Constant) Equal(o Constant) bool {
	return bytes.Equal(c.Token, o.Token) && bytes.Equal(c.Data, o.Data)
}

// clone returns a deep copy of the slot.
func (c Constant) clone() Constant {
	return Constant{Token: slices.Clone(c.Token), Data: slices.Clone(c.Data)}
}

// ModuleHandle references a module by address and name.
type ModuleHandle struct {
	Address uint64 // Address indexes the address identifiers table
	Name    uint64 // Name indexes the identifier table
}

// ModuleID is the identity of a module: its address and name.
type ModuleID struct {
	Address Address // Address is the account or package address
	Name    string  // Name is the module name
}

// String renders the id as address::name.
func (id ModuleID) String() string {
	return id.Address.String() + "::" + id.Name
}

// table is one header entry. Contents of the constant pool and identifier
// table live in Module and are re-serialized; every other table keeps its
// raw bytes untouched.
type table struct {
	kind TableKind // kind identifies the table
	raw  []byte    // raw holds the contents of opaque tables
}

// Module is a decoded compiled module. Only the constant pool and the
// identifier table are editable; all other sections round-trip verbatim.
type Module struct {
	Constants   []Constant // Constants is the ordered constant pool
	Identifiers []string   // Identifiers is the ordered identifier table

	version   uint32         // version is the raw version field, flavor included
	tables    []table        // tables is in header order
	physical  []int          // physical lists indices of tables in content order
	addresses []Address      // addresses is the parsed address identifier table
	handles   []ModuleHandle // handles is the parsed module handle table
	self      uint64         // self is the index of this module's handle
}

// Version returns the binary format version without the flavor byte.
func (m *Module) Version() uint32 {
	return m.version & versionMask
}

// Tables lists the table kinds in header order.
func (m *Module) Tables() []TableKind {
	kinds := make([]TableKind, len(m.tables))
	for i, t := range m.tables {
		kinds[i] = t.kind
	}

	return kinds
}

// Opaque returns the raw bytes of a table the patcher never edits.
func (m *Module) Opaque(kind TableKind) ([]byte, bool) {
	for _, t := range m.tables {
		if t.kind == kind && !t.kind.editable() {
			return t.raw, true
		}
	}

	return nil, false
}

// Addresses returns the address identifier table.
func (m *Module) Addresses() []Address {
	return slices.Clone(m.addresses)
}

// Handles returns the module handle table.
func (m *Module) Handles() []ModuleHandle {
	return slices.Clone(m.handles)
}

// Self returns the identity of the module, read through its own handle.
// The name reflects any identifier renames applied to the module.
func (m *Module) Self() (ModuleID, error) {
	if m.self >= uint64(len(m.handles)) {
		return ModuleID{}, fmt.Errorf("self handle %d out of range", m.self)
	}

	h := m.handles[m.self]
	if h.Address >= uint64(len(m.addresses)) || h.Name >= uint64(len(m.Identifiers)) {
		return ModuleID{}, fmt.Errorf("self handle %d references missing entries", m.self)
	}

	return ModuleID{Address: m.addresses[h.Address], Name: m.Identifiers[h.Name]}, nil
}

// IdentifierIndex returns the position of name in the identifier table.
func (m *Module) IdentifierIndex(name string) (int, bool) {
	i := slices.Index(m.Identifiers, name)
	return i, i >= 0
}

// Clone returns a deep copy sharing no memory with m.
func (m *Module) Clone() *Module {
	c := &Module{
		Identifiers: slices.Clone(m.Identifiers),
		version:     m.version,
		physical:    slices.Clone(m.physical),
		addresses:   slices.Clone(m.addresses),
		handles:     slices.Clone(m.handles),
		self:        m.self,
	}

	c.Constants = make([]Constant, len(m.Constants))
	for i, k := range m.Constants {
		c.Constants[i] = k.clone()
	}

	c.tables = make([]table, len(m.tables))
	for i, t := range m.tables {
		c.tables[i] = table{kind: t.kind, raw: slices.Clone(t.raw)}
	}

	return c
}

// Describe returns a short human-readable summary used by the CLI.
func (m *Module) Describe() string {
	var b bytes.Buffer

	if id, err := m.Self(); err == nil {
		fmt.Fprintf(&b, "module %s (version %d)\n", id, m.Version())
	}

	for i, c := range m.Constants {
		v, err := c.Value()
		if err != nil {
			fmt.Fprintf(&b, "  const[%d] %s 0x%s\n", i, c.Kind(), hex.EncodeToString(c.Data))
			continue
		}

		fmt.Fprintf(&b, "  const[%d] %s %q\n", i, c.Kind(), v.String())
	}

	for i, id := range m.Identifiers {
		fmt.Fprintf(&b, "  ident[%d] %s\n", i, id)
	}

	return b.String()
}
