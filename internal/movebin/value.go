package movebin

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Kind is the declared primitive type of a constant.
type Kind uint8

const (
	// KindOther covers every type the patcher cannot rewrite
	// (vectors of non-u8 elements, datatypes).
	KindOther Kind = iota
	KindBool
	KindU8
	KindU16
	KindU32
	KindU64
	KindU128
	KindU256
	KindAddress
	// KindString is vector<u8>, the representation of UTF-8 and ASCII
	// string constants.
	KindString
)

// kindNames maps kinds to the names used in configuration.
var kindNames = [...]string{
	KindOther:   "other",
	KindBool:    "bool",
	KindU8:      "u8",
	KindU16:     "u16",
	KindU32:     "u32",
	KindU64:     "u64",
	KindU128:    "u128",
	KindU256:    "u256",
	KindAddress: "address",
	KindString:  "string",
}

// String returns the configuration name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind parses a kind name such as "u8" or "string".
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "vector<u8>" {
		return KindString, nil
	}

	for k, n := range kindNames {
		if n == name && Kind(k) != KindOther {
			return Kind(k), nil
		}
	}

	return KindOther, fmt.Errorf("unknown constant type %q", s)
}

// token returns the signature token that declares a constant of this kind.
func (k Kind) token() []byte {
	switch k {
	case KindBool:
		return []byte{tokenBool}
	case KindU8:
		return []byte{tokenU8}
	case KindU16:
		return []byte{tokenU16}
	case KindU32:
		return []byte{tokenU32}
	case KindU64:
		return []byte{tokenU64}
	case KindU128:
		return []byte{tokenU128}
	case KindU256:
		return []byte{tokenU256}
	case KindAddress:
		return []byte{tokenAddress}
	case KindString:
		return []byte{tokenVector, tokenU8}
	default:
		return nil
	}
}

// kindOf derives the kind declared by a signature token.
func kindOf(token []byte) Kind {
	if len(token) == 2 && token[0] == tokenVector && token[1] == tokenU8 {
		return KindString
	}

	if len(token) != 1 {
		return KindOther
	}

	switch token[0] {
	case tokenBool:
		return KindBool
	case tokenU8:
		return KindU8
	case tokenU16:
		return KindU16
	case tokenU32:
		return KindU32
	case tokenU64:
		return KindU64
	case tokenU128:
		return KindU128
	case tokenU256:
		return KindU256
	case tokenAddress:
		return KindAddress
	default:
		return KindOther
	}
}

// fixedSize returns the encoded size of fixed-width kinds, or 0.
func (k Kind) fixedSize() int {
	switch k {
	case KindBool, KindU8:
		return 1
	case KindU16:
		return 2
	case KindU32:
		return 4
	case KindU64:
		return 8
	case KindU128:
		return 16
	case KindU256, KindAddress:
		return 32
	default:
		return 0
	}
}

// Value is a typed constant value. The concrete type fixes the encoding,
// so a value can only be written into a slot of the same kind.
type Value interface {
	// Kind returns the primitive type of the value.
	Kind() Kind

	// String returns the textual form used in logs and advisory checks.
	String() string

	// encode returns the BCS bytes stored in the constant pool.
	encode() []byte
}

type (
	// Bool is a bool constant.
	Bool bool
	// U8 is a u8 constant.
	U8 uint8
	// U16 is a u16 constant.
	U16 uint16
	// U32 is a u32 constant.
	U32 uint32
	// U64 is a u64 constant.
	U64 uint64
	// U128 is a u128 constant split in two little-endian words.
	U128 struct{ Lo, Hi uint64 }
	// U256 is a u256 constant as four little-endian words.
	U256 [4]uint64
	// Address is an address constant.
	Address [AddressLength]byte
	// String is a vector<u8> constant holding string bytes.
	String string
)

func (Bool) Kind() Kind    { return KindBool }
func (U8) Kind() Kind      { return KindU8 }
func (U16) Kind() Kind     { return KindU16 }
func (U32) Kind() Kind     { return KindU32 }
func (U64) Kind() Kind     { return KindU64 }
func (U128) Kind() Kind    { return KindU128 }
func (U256) Kind() Kind    { return KindU256 }
func (Address) Kind() Kind { return KindAddress }
func (String) Kind() Kind  { return KindString }

func (v Bool) String() string { return strconv.FormatBool(bool(v)) }
func (v U8) String() string   { return strconv.FormatUint(uint64(v), 10) }
func (v U16) String() string  { return strconv.FormatUint(uint64(v), 10) }
func (v U32) String() string  { return strconv.FormatUint(uint64(v), 10) }
func (v U64) String() string  { return strconv.FormatUint(uint64(v), 10) }
func (v U128) String() string { return new(big.Int).SetBytes(reverse(v.encode())).String() }
func (v U256) String() string { return new(big.Int).SetBytes(reverse(v.encode())).String() }
func (v Address) String() string {
	return "0x" + hex.EncodeToString(v[:])
}
func (v String) String() string { return string(v) }

func (v Bool) encode() []byte {
	if v {
		return []byte{1}
	}

	return []byte{0}
}

func (v U8) encode() []byte { return []byte{byte(v)} }

func (v U16) encode() []byte {
	return binary.LittleEndian.AppendUint16(nil, uint16(v))
}

func (v U32) encode() []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(v))
}

func (v U64) encode() []byte {
	return binary.LittleEndian.AppendUint64(nil, uint64(v))
}

func (v U128) encode() []byte {
	buf := binary.LittleEndian.AppendUint64(nil, v.Lo)
	return binary.LittleEndian.AppendUint64(buf, v.Hi)
}

func (v U256) encode() []byte {
	buf := make([]byte, 0, 32)
	for _, w := range v {
		buf = binary.LittleEndian.AppendUint64(buf, w)
	}

	return buf
}

func (v Address) encode() []byte {
	buf := make([]byte, AddressLength)
	copy(buf, v[:])

	return buf
}

// encode writes the string as a length-prefixed byte vector.
func (v String) encode() []byte {
	buf := appendUleb(make([]byte, 0, len(v)+5), uint64(len(v)))
	return append(buf, v...)
}

// decodeValue parses BCS bytes of the given kind.
func decodeValue(kind Kind, data []byte) (Value, error) {
	if size := kind.fixedSize(); size != 0 && len(data) != size {
		return nil, fmt.Errorf("%s constant has %d bytes, want %d", kind, len(data), size)
	}

	switch kind {
	case KindBool:
		if data[0] > 1 {
			return nil, fmt.Errorf("invalid bool byte 0x%02x", data[0])
		}
		return Bool(data[0] == 1), nil
	case KindU8:
		return U8(data[0]), nil
	case KindU16:
		return U16(binary.LittleEndian.Uint16(data)), nil
	case KindU32:
		return U32(binary.LittleEndian.Uint32(data)), nil
	case KindU64:
		return U64(binary.LittleEndian.Uint64(data)), nil
	case KindU128:
		return U128{Lo: binary.LittleEndian.Uint64(data[:8]), Hi: binary.LittleEndian.Uint64(data[8:])}, nil
	case KindU256:
		var v U256
		for i := range v {
			v[i] = binary.LittleEndian.Uint64(data[i*8:])
		}
		return v, nil
	case KindAddress:
		var v Address
		copy(v[:], data)
		return v, nil
	case KindString:
		r := newReader(data)
		n, err := r.uleb(maxTableSize)
		if err != nil {
			return nil, fmt.Errorf("string length:\n%w", err)
		}

		if uint64(r.remaining()) != n {
			return nil, fmt.Errorf("string declares %d bytes, has %d", n, r.remaining())
		}
		return String(data[r.pos:]), nil
	default:
		return nil, fmt.Errorf("constant of kind %s has no typed value", kind)
	}
}

// ParseValue parses the textual form of a value of the given kind.
// Integers accept decimal or 0x-prefixed hex; addresses accept short hex.
func ParseValue(kind Kind, text string) (Value, error) {
	switch kind {
	case KindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return nil, err
		}
		return Bool(b), nil
	case KindU8, KindU16, KindU32, KindU64:
		n, err := strconv.ParseUint(text, 0, kind.fixedSize()*8)
		if err != nil {
			return nil, err
		}
		return uintValue(kind, n), nil
	case KindU128, KindU256:
		return parseBig(kind, text)
	case KindAddress:
		return ParseAddress(text)
	case KindString:
		return String(text), nil
	default:
		return nil, fmt.Errorf("cannot parse a value of kind %s", kind)
	}
}

// uintValue wraps n in the value type of kind; n must already fit.
func uintValue(kind Kind, n uint64) Value {
	switch kind {
	case KindU8:
		return U8(n)
	case KindU16:
		return U16(n)
	case KindU32:
		return U32(n)
	default:
		return U64(n)
	}
}

// parseBig parses a u128 or u256 from decimal or hex text.
func parseBig(kind Kind, text string) (Value, error) {
	n, ok := new(big.Int).SetString(text, 0)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("invalid %s %q", kind, text)
	}

	size := kind.fixedSize()
	if n.BitLen() > size*8 {
		return nil, fmt.Errorf("%s overflows %s", text, kind)
	}

	le := reverse(n.FillBytes(make([]byte, size)))

	v, err := decodeValue(kind, le)
	if err != nil {
		return nil, err
	}

	return v, nil
}

// ParseAddress parses a 0x-prefixed hex address, left-padding short forms.
func ParseAddress(text string) (Address, error) {
	var addr Address

	h := strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X")
	if h == "" || len(h) > AddressLength*2 {
		return addr, fmt.Errorf("invalid address %q", text)
	}

	if len(h)%2 == 1 {
		h = "0" + h
	}

	b, err := hex.DecodeString(h)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q:\n%w", text, err)
	}

	copy(addr[AddressLength-len(b):], b)

	return addr, nil
}

// reverse returns a reversed copy of b.
func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}

	return out
}
