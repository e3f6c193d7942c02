// Package movebintest assembles compiled-module fixtures byte by byte,
// independently of the movebin encoder.
package movebintest

import "encoding/binary"

// Table kinds used by the fixtures.
const (
	ModuleHandles      = 0x01
	DatatypeHandles    = 0x02
	FunctionHandles    = 0x03
	Signatures         = 0x05
	ConstantPool       = 0x06
	Identifiers        = 0x07
	AddressIdentifiers = 0x08
	StructDefs         = 0x0A
	FunctionDefs       = 0x0C
)

// Identifier indices of the template fixture.
const (
	IdentTEMPLATE = iota
	IdentTreasuryCap
	IdentCoin
	IdentDummyField
	IdentInit
	IdentTemplate
	IdentTransfer
	IdentTxContext
)

// TemplateIdentifiers is the identifier table of the template fixture.
var TemplateIdentifiers = []string{
	"TEMPLATE",
	"TreasuryCap",
	"coin",
	"dummy_field",
	"init",
	"template",
	"transfer",
	"tx_context",
}

// TemplateStrings are the string constants at indices 0 to 3.
var TemplateStrings = []string{"Symbol", "Name", "Description", "Icon_url"}

// TemplateDecimals is the u8 constant at index 4.
const TemplateDecimals = 9

// Table is one table of a fixture, laid out in slice order.
type Table struct {
	Kind byte   // Kind is the table kind
	Data []byte // Data is the table contents
}

// Uleb returns the ULEB128 encoding of v.
func Uleb(v uint64) []byte {
	var out []byte
	for v >= 0x80 {
		out = append(out, byte(v)|0x80)
		v >>= 7
	}

	return append(out, byte(v))
}

// StringConst encodes a vector<u8> constant entry.
func StringConst(s string) []byte {
	value := append(Uleb(uint64(len(s))), s...)

	out := []byte{0x0A, 0x02}
	out = append(out, Uleb(uint64(len(value)))...)

	return append(out, value...)
}

// U8Const encodes a u8 constant entry.
func U8Const(v byte) []byte {
	return []byte{0x02, 0x01, v}
}

// U64Const encodes a u64 constant entry.
func U64Const(v uint64) []byte {
	out := []byte{0x03, 0x08}
	return binary.LittleEndian.AppendUint64(out, v)
}

// IdentifierTable encodes identifiers as length-prefixed strings.
func IdentifierTable(ids []string) []byte {
	var out []byte
	for _, id := range ids {
		out = append(out, Uleb(uint64(len(id)))...)
		out = append(out, id...)
	}

	return out
}

// Assemble lays tables out contiguously, writing headers in the same order.
func Assemble(version uint32, tables []Table, trailer []byte) []byte {
	out := []byte{0xA1, 0x1C, 0xEB, 0x0B}
	out = binary.LittleEndian.AppendUint32(out, version)
	out = append(out, Uleb(uint64(len(tables)))...)

	var offset uint64
	for _, t := range tables {
		out = append(out, t.Kind)
		out = append(out, Uleb(offset)...)
		out = append(out, Uleb(uint64(len(t.Data)))...)
		offset += uint64(len(t.Data))
	}

	for _, t := range tables {
		out = append(out, t.Data...)
	}

	return append(out, trailer...)
}

// TemplateTables returns the tables of the coin template fixture.
// The constant pool holds Symbol, Name, Description, Icon_url and a u8 9.
func TemplateTables() []Table {
	var consts []byte
	for _, s := range TemplateStrings {
		consts = append(consts, StringConst(s)...)
	}
	consts = append(consts, U8Const(TemplateDecimals)...)

	addresses := make([]byte, 64)
	addresses[63] = 0x02

	return []Table{
		{Kind: ModuleHandles, Data: []byte{0x00, IdentTemplate, 0x01, IdentCoin}},
		{Kind: DatatypeHandles, Data: []byte{0x00, IdentTEMPLATE, 0x04, 0x00, 0x01, IdentTreasuryCap, 0x05, 0x01, 0x01}},
		{Kind: FunctionHandles, Data: []byte{0x00, IdentInit, 0x01, 0x00, 0x00}},
		{Kind: Signatures, Data: []byte{0x00, 0x02, 0x08, 0x00, 0x07, 0x08, 0x01}},
		{Kind: ConstantPool, Data: consts},
		{Kind: Identifiers, Data: IdentifierTable(TemplateIdentifiers)},
		{Kind: AddressIdentifiers, Data: addresses},
		{Kind: StructDefs, Data: []byte{0x00, 0x02, 0x01, IdentDummyField, 0x01}},
		{Kind: FunctionDefs, Data: []byte{0x00, 0x00, 0x00, 0x01, 0x02, 0x07, 0x00, 0x02}},
	}
}

// Template returns a version-6 coin template module whose own handle
// names it "template" at address 0x0.
func Template() []byte {
	return Assemble(6, TemplateTables(), Uleb(0))
}
