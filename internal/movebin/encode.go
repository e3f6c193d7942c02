package movebin

import (
	"encoding/binary"
	"fmt"
)

// Encode serializes a module. For a module returned by Decode and left
// unedited, the output equals the decoded bytes.
func Encode(m *Module) ([]byte, error) {
	contents := make([][]byte, len(m.tables))
	for i, t := range m.tables {
		contents[i] = m.tableContents(t)

		if uint64(len(contents[i])) > maxTableSize {
			return nil, fmt.Errorf("%s table too large: %d bytes", t.kind, len(contents[i]))
		}
	}

	offsets := make([]uint64, len(m.tables))
	var next uint64
	for _, i := range m.physical {
		offsets[i] = next
		next += uint64(len(contents[i]))
	}

	if next > maxTableSize {
		return nil, fmt.Errorf("module too large: %d bytes of tables", next)
	}

	buf := make([]byte, 0, 16+len(m.tables)*12+int(next))
	buf = append(buf, magic[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, m.version)
	buf = appendUleb(buf, uint64(len(m.tables)))

	for i, t := range m.tables {
		buf = append(buf, byte(t.kind))
		buf = appendUleb(buf, offsets[i])
		buf = appendUleb(buf, uint64(len(contents[i])))
	}

	for _, i := range m.physical {
		buf = append(buf, contents[i]...)
	}

	if m.Version() >= selfIndexVersion {
		buf = appendUleb(buf, m.self)
	}

	return buf, nil
}

// tableContents returns the serialized contents of one table.
func (m *Module) tableContents(t table) []byte {
	switch t.kind {
	case TableConstantPool:
		return encodeConstants(m.Constants)
	case TableIdentifiers:
		return encodeIdentifiers(m.Identifiers)
	default:
		return t.raw
	}
}

// encodeConstants serializes the constant pool.
func encodeConstants(constants []Constant) []byte {
	var buf []byte
	for _, c := range constants {
		buf = append(buf, c.Token...)
		buf = appendUleb(buf, uint64(len(c.Data)))
		buf = append(buf, c.Data...)
	}

	return buf
}

// encodeIdentifiers serializes the identifier table.
func encodeIdentifiers(identifiers []string) []byte {
	var buf []byte
	for _, id := range identifiers {
		buf = appendUleb(buf, uint64(len(id)))
		buf = append(buf, id...)
	}

	return buf
}
