package movebin

import (
	"errors"
	"fmt"
	"slices"
	"unicode/utf8"
)

// ErrMalformedModule is returned when bytes do not parse as a module.
var ErrMalformedModule = errors.New("malformed module")

// header is a table header as read from the binary.
type header struct {
	kind   TableKind // kind identifies the table
	offset uint64    // offset is relative to the end of the headers
	length uint64    // length is the table size in bytes
}

// editable reports whether the table contents are re-serialized from Module.
func (k TableKind) editable() bool {
	return k == TableConstantPool || k == TableIdentifiers
}

// Decode parses a compiled module.
// Every structural failure wraps ErrMalformedModule.
func Decode(data []byte) (*Module, error) {
	m, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w:\n%w", ErrMalformedModule, err)
	}

	return m, nil
}

// decode does the work of Decode without the sentinel wrapping.
func decode(data []byte) (*Module, error) {
	r := newReader(data)

	version, err := readPreamble(r)
	if err != nil {
		return nil, err
	}

	headers, err := readHeaders(r)
	if err != nil {
		return nil, err
	}

	physical, end, err := checkLayout(headers, r.remaining())
	if err != nil {
		return nil, err
	}

	base := r.pos
	m := &Module{version: version, physical: physical}

	for _, h := range headers {
		contents := data[base+int(h.offset) : base+int(h.offset+h.length)]

		if err := m.loadTable(h.kind, contents); err != nil {
			return nil, fmt.Errorf("%s table:\n%w", h.kind, err)
		}
	}

	r.pos = base + int(end)

	if err := m.readTrailer(r); err != nil {
		return nil, err
	}

	if err := m.checkIndices(); err != nil {
		return nil, err
	}

	return m, nil
}

// readPreamble checks the magic and returns the raw version field.
func readPreamble(r *reader) (uint32, error) {
	head, err := r.take(len(magic))
	if err != nil {
		return 0, fmt.Errorf("read magic:\n%w", err)
	}

	if [4]byte(head) != magic {
		return 0, fmt.Errorf("bad magic %x", head)
	}

	version, err := r.u32()
	if err != nil {
		return 0, fmt.Errorf("read version:\n%w", err)
	}

	flavor := version >> 24
	v := version & versionMask

	if flavor != 0 && flavor != suiFlavor {
		return 0, fmt.Errorf("unknown binary flavor 0x%02x", flavor)
	}

	if v < minVersion || v > maxVersion {
		return 0, fmt.Errorf("unsupported version %d", v)
	}

	return version, nil
}

// readHeaders reads the table count and every table header.
func readHeaders(r *reader) ([]header, error) {
	count, err := r.uleb(255)
	if err != nil {
		return nil, fmt.Errorf("read table count:\n%w", err)
	}

	headers := make([]header, 0, count)
	seen := make(map[TableKind]bool, count)

	for i := uint64(0); i < count; i++ {
		b, err := r.next()
		if err != nil {
			return nil, fmt.Errorf("read table %d kind:\n%w", i, err)
		}

		kind := TableKind(b)
		if !kind.known() {
			return nil, fmt.Errorf("unknown table kind 0x%02x", b)
		}

		if seen[kind] {
			return nil, fmt.Errorf("duplicate %s table", kind)
		}
		seen[kind] = true

		offset, err := r.uleb(maxTableSize)
		if err != nil {
			return nil, fmt.Errorf("read %s offset:\n%w", kind, err)
		}

		length, err := r.uleb(maxTableSize)
		if err != nil {
			return nil, fmt.Errorf("read %s length:\n%w", kind, err)
		}

		headers = append(headers, header{kind: kind, offset: offset, length: length})
	}

	return headers, nil
}

// checkLayout verifies the tables tile the content region without gaps or
// overlaps. It returns header indices in content order and the total size.
func checkLayout(headers []header, available int) ([]int, uint64, error) {
	order := make([]int, len(headers))
	for i := range order {
		order[i] = i
	}

	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case headers[a].offset < headers[b].offset:
			return -1
		case headers[a].offset > headers[b].offset:
			return 1
		default:
			return 0
		}
	})

	var next uint64
	for _, i := range order {
		h := headers[i]
		if h.offset != next {
			return nil, 0, fmt.Errorf("%s table at offset %d, expected %d", h.kind, h.offset, next)
		}

		next += h.length
	}

	if next > uint64(available) {
		return nil, 0, fmt.Errorf("tables need %d bytes, have %d", next, available)
	}

	return order, next, nil
}

// loadTable parses or stores one table's contents.
func (m *Module) loadTable(kind TableKind, contents []byte) error {
	m.tables = append(m.tables, table{kind: kind})
	t := &m.tables[len(m.tables)-1]

	switch kind {
	case TableConstantPool:
		return m.loadConstants(contents)
	case TableIdentifiers:
		return m.loadIdentifiers(contents)
	case TableAddressIdentifiers:
		t.raw = slices.Clone(contents)
		return m.loadAddresses(contents)
	case TableModuleHandles:
		t.raw = slices.Clone(contents)
		return m.loadHandles(contents)
	default:
		t.raw = slices.Clone(contents)
		return nil
	}
}

// loadConstants parses the constant pool.
func (m *Module) loadConstants(contents []byte) error {
	r := newReader(contents)

	for !r.done() {
		start := r.pos
		if err := skipToken(r, 0); err != nil {
			return fmt.Errorf("constant %d type:\n%w", len(m.Constants), err)
		}
		token := slices.Clone(contents[start:r.pos])

		n, err := r.uleb(maxTableSize)
		if err != nil {
			return fmt.Errorf("constant %d length:\n%w", len(m.Constants), err)
		}

		data, err := r.take(int(n))
		if err != nil {
			return fmt.Errorf("constant %d data:\n%w", len(m.Constants), err)
		}

		c := Constant{Token: token, Data: slices.Clone(data)}
		if c.Kind() != KindOther {
			if _, err := c.Value(); err != nil {
				return fmt.Errorf("constant %d:\n%w", len(m.Constants), err)
			}
		}

		m.Constants = append(m.Constants, c)
	}

	return nil
}

// loadIdentifiers parses the identifier table.
func (m *Module) loadIdentifiers(contents []byte) error {
	r := newReader(contents)

	for !r.done() {
		n, err := r.uleb(maxTableSize)
		if err != nil {
			return fmt.Errorf("identifier %d length:\n%w", len(m.Identifiers), err)
		}

		b, err := r.take(int(n))
		if err != nil {
			return fmt.Errorf("identifier %d:\n%w", len(m.Identifiers), err)
		}

		if !utf8.Valid(b) {
			return fmt.Errorf("identifier %d is not valid utf-8", len(m.Identifiers))
		}

		m.Identifiers = append(m.Identifiers, string(b))
	}

	return nil
}

// loadAddresses parses the fixed-width address identifiers.
func (m *Module) loadAddresses(contents []byte) error {
	if len(contents)%AddressLength != 0 {
		return fmt.Errorf("size %d is not a multiple of %d", len(contents), AddressLength)
	}

	for i := 0; i < len(contents); i += AddressLength {
		m.addresses = append(m.addresses, Address(contents[i:i+AddressLength]))
	}

	return nil
}

// loadHandles parses module handles.
func (m *Module) loadHandles(contents []byte) error {
	r := newReader(contents)

	for !r.done() {
		addr, err := r.uleb(maxTableSize)
		if err != nil {
			return fmt.Errorf("handle %d address:\n%w", len(m.handles), err)
		}

		name, err := r.uleb(maxTableSize)
		if err != nil {
			return fmt.Errorf("handle %d name:\n%w", len(m.handles), err)
		}

		m.handles = append(m.handles, ModuleHandle{Address: addr, Name: name})
	}

	return nil
}

// readTrailer reads the self module handle index stored after the tables.
func (m *Module) readTrailer(r *reader) error {
	if m.Version() >= selfIndexVersion {
		self, err := r.uleb(maxTableSize)
		if err != nil {
			return fmt.Errorf("read self module index:\n%w", err)
		}
		m.self = self
	}

	if !r.done() {
		return fmt.Errorf("%d trailing bytes", r.remaining())
	}

	return nil
}

// checkIndices verifies module handles point at existing entries.
func (m *Module) checkIndices() error {
	if len(m.handles) == 0 {
		return fmt.Errorf("missing module handles")
	}

	if m.self >= uint64(len(m.handles)) {
		return fmt.Errorf("self module index %d out of range (%d handles)", m.self, len(m.handles))
	}

	for i, h := range m.handles {
		if h.Address >= uint64(len(m.addresses)) {
			return fmt.Errorf("handle %d address index %d out of range", i, h.Address)
		}

		if h.Name >= uint64(len(m.Identifiers)) {
			return fmt.Errorf("handle %d name index %d out of range", i, h.Name)
		}
	}

	return nil
}

// skipToken advances past one signature token.
func skipToken(r *reader, depth int) error {
	if depth > maxTokenDepth {
		return fmt.Errorf("signature token nested deeper than %d", maxTokenDepth)
	}

	tag, err := r.next()
	if err != nil {
		return err
	}

	switch tag {
	case tokenBool, tokenU8, tokenU16, tokenU32, tokenU64, tokenU128, tokenU256,
		tokenAddress, tokenSigner:
		return nil
	case tokenVector, tokenReference, tokenMutableRef:
		return skipToken(r, depth+1)
	case tokenDatatype, tokenTypeParameter:
		_, err := r.uleb(maxTableSize)
		return err
	case tokenDatatypeInst:
		if _, err := r.uleb(maxTableSize); err != nil {
			return err
		}

		arity, err := r.uleb(maxTableSize)
		if err != nil {
			return err
		}

		if arity == 0 {
			return fmt.Errorf("instantiated datatype with no type arguments")
		}

		for i := uint64(0); i < arity; i++ {
			if err := skipToken(r, depth+1); err != nil {
				return err
			}
		}

		return nil
	default:
		return fmt.Errorf("unknown signature token 0x%02x", tag)
	}
}
