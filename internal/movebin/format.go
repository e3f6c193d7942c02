package movebin

import "fmt"

const (
	// AddressLength is the size of an on-chain account or package address.
	AddressLength = 32

	// minVersion and maxVersion bound the supported binary format versions.
	minVersion = 1
	maxVersion = 7

	// versionMask strips the flavor byte the Sui toolchain stores in the
	// high byte of the version field.
	versionMask = 0x00FF_FFFF

	// suiFlavor is the only non-zero flavor byte accepted.
	suiFlavor = 0x05

	// selfIndexVersion is the first version that stores the self module
	// handle index after the tables.
	selfIndexVersion = 5

	// maxTokenDepth bounds nesting while parsing signature tokens.
	maxTokenDepth = 256

	// maxTableSize bounds offsets and lengths, which the format stores as u32.
	maxTableSize = 1<<32 - 1
)

// magic is the four-byte prefix of every compiled module.
var magic = [4]byte{0xA1, 0x1C, 0xEB, 0x0B}

// TableKind identifies a table in the module header.
type TableKind uint8

// Table kinds of the binary format.
const (
	TableModuleHandles      TableKind = 0x01
	TableDatatypeHandles    TableKind = 0x02
	TableFunctionHandles    TableKind = 0x03
	TableFunctionInst       TableKind = 0x04
	TableSignatures         TableKind = 0x05
	TableConstantPool       TableKind = 0x06
	TableIdentifiers        TableKind = 0x07
	TableAddressIdentifiers TableKind = 0x08
	TableStructDefs         TableKind = 0x0A
	TableStructDefInst      TableKind = 0x0B
	TableFunctionDefs       TableKind = 0x0C
	TableFieldHandles       TableKind = 0x0D
	TableFieldInst          TableKind = 0x0E
	TableFriendDecls        TableKind = 0x0F
	TableMetadata           TableKind = 0x10
	TableEnumDefs           TableKind = 0x11
	TableEnumDefInst        TableKind = 0x12
	TableVariantHandles     TableKind = 0x13
	TableVariantInstHandles TableKind = 0x14
)

// tableNames maps known table kinds to display names.
var tableNames = map[TableKind]string{
	TableModuleHandles:      "module_handles",
	TableDatatypeHandles:    "datatype_handles",
	TableFunctionHandles:    "function_handles",
	TableFunctionInst:       "function_instantiations",
	TableSignatures:         "signatures",
	TableConstantPool:       "constant_pool",
	TableIdentifiers:        "identifiers",
	TableAddressIdentifiers: "address_identifiers",
	TableStructDefs:         "struct_defs",
	TableStructDefInst:      "struct_def_instantiations",
	TableFunctionDefs:       "function_defs",
	TableFieldHandles:       "field_handles",
	TableFieldInst:          "field_instantiations",
	TableFriendDecls:        "friend_decls",
	TableMetadata:           "metadata",
	TableEnumDefs:           "enum_defs",
	TableEnumDefInst:        "enum_def_instantiations",
	TableVariantHandles:     "variant_handles",
	TableVariantInstHandles: "variant_instantiation_handles",
}

// String returns the table name, or its hex code when unknown.
func (k TableKind) String() string {
	if name, ok := tableNames[k]; ok {
		return name
	}

	return fmt.Sprintf("table(0x%02x)", uint8(k))
}

// known reports whether k is part of the format.
func (k TableKind) known() bool {
	_, ok := tableNames[k]
	return ok
}

// Signature token tags.
const (
	tokenBool          = 0x01
	tokenU8            = 0x02
	tokenU64           = 0x03
	tokenU128          = 0x04
	tokenAddress       = 0x05
	tokenReference     = 0x06
	tokenMutableRef    = 0x07
	tokenDatatype      = 0x08
	tokenTypeParameter = 0x09
	tokenVector        = 0x0A
	tokenDatatypeInst  = 0x0B
	tokenSigner        = 0x0C
	tokenU16           = 0x0D
	tokenU32           = 0x0E
	tokenU256          = 0x0F
)
