// Package infofile parses CarMaker .erg.info companion files.
//
// An info file is a line-oriented text document that describes the record
// layout of an ERG result file: which quantities each record contains, in
// which order, with which binary type, plus per-quantity metadata such as
// the unit string and an optional affine scaling (factor/offset). This
// package only models and parses the document; decoding the binary records
// it describes is the job of package erg.
package infofile

import (
	"encoding/binary"
	"time"
)

// ByteOrder is the byte order declared by File.ByteOrder.
type ByteOrder int

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

// Encoding returns the matching encoding/binary order.
func (b ByteOrder) Encoding() binary.ByteOrder {
	if b == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (b ByteOrder) String() string {
	if b == BigEndian {
		return "BigEndian"
	}
	return "LittleEndian"
}

// TypeCode identifies the storage type of a quantity. The constants map
// one-to-one onto the type keywords CarMaker writes into info files.
type TypeCode int

const (
	Float64 TypeCode = iota // "Double"
	Float32                 // "Float"
	Int64                   // "LongLong"
	UInt64                  // "ULongLong"
	Int32                   // "Long" or "Int"
	UInt32                  // "ULong" or "UInt"
	Int16                   // "Short"
	UInt16                  // "UShort"
	Int8                    // "Char"
	UInt8                   // "UChar"
	Bool                    // "Bool"
	Padding                 // "1 Bytes" .. "7 Bytes"
)

// Size returns the record width of the type in bytes. Padding has no fixed
// width; its per-quantity size is carried by Quantity.Size and Size returns 0.
func (t TypeCode) Size() int {
	switch t {
	case Float64, Int64, UInt64:
		return 8
	case Float32, Int32, UInt32:
		return 4
	case Int16, UInt16:
		return 2
	case Int8, UInt8, Bool:
		return 1
	default:
		return 0
	}
}

// String returns the canonical info-file keyword for the type.
func (t TypeCode) String() string {
	switch t {
	case Float64:
		return "Double"
	case Float32:
		return "Float"
	case Int64:
		return "LongLong"
	case UInt64:
		return "ULongLong"
	case Int32:
		return "Long"
	case UInt32:
		return "ULong"
	case Int16:
		return "Short"
	case UInt16:
		return "UShort"
	case Int8:
		return "Char"
	case UInt8:
		return "UChar"
	case Bool:
		return "Bool"
	case Padding:
		return "Bytes"
	default:
		return "Unknown"
	}
}

// typeForKeyword resolves an info-file type keyword. Padding keywords of the
// form "N Bytes" (N in 1..7) report their width through the second result;
// fixed-width types report it through TypeCode.Size.
func typeForKeyword(keyword string) (TypeCode, int, bool) {
	switch keyword {
	case "Double":
		return Float64, 8, true
	case "Float":
		return Float32, 4, true
	case "LongLong":
		return Int64, 8, true
	case "ULongLong":
		return UInt64, 8, true
	case "Long", "Int":
		return Int32, 4, true
	case "ULong", "UInt":
		return UInt32, 4, true
	case "Short":
		return Int16, 2, true
	case "UShort":
		return UInt16, 2, true
	case "Char":
		return Int8, 1, true
	case "UChar":
		return UInt8, 1, true
	case "Bool":
		return Bool, 1, true
	}
	if n, ok := paddingWidth(keyword); ok {
		return Padding, n, true
	}
	return 0, 0, false
}

// paddingWidth matches the "N Bytes" padding keywords.
func paddingWidth(keyword string) (int, bool) {
	const suffix = " Bytes"
	if len(keyword) != 1+len(suffix) || keyword[1:] != suffix {
		return 0, false
	}
	n := int(keyword[0] - '0')
	if n < 1 || n > 7 {
		return 0, false
	}
	return n, true
}

// Quantity is one record-layout declaration from an info file.
type Quantity struct {
	Name   string
	Type   TypeCode
	Size   int // bytes occupied in each record
	Unit   string
	Factor float64 // affine scale, 1 when the file declares none
	Offset float64 // affine shift, 0 when the file declares none
}

// IsPadding reports whether the quantity is reserved space rather than data.
func (q Quantity) IsPadding() bool { return q.Type == Padding }

// Scaled reports whether decoding must apply the affine transform.
func (q Quantity) Scaled() bool { return q.Factor != 1 || q.Offset != 0 }

// Document is a fully parsed info file.
type Document struct {
	Path       string
	Format     string // File.Format, normally "erg"
	Version    string // File.Version, kept verbatim
	ByteOrder  ByteOrder
	StartTime  time.Time  // File.DateInSeconds; zero when absent
	Quantities []Quantity // declaration order, padding included

	index map[string]int
}

// Quantity looks up a declaration by exact name.
func (d *Document) Quantity(name string) (Quantity, bool) {
	i, ok := d.index[name]
	if !ok {
		return Quantity{}, false
	}
	return d.Quantities[i], true
}

// Index returns the declaration position of name, or -1.
func (d *Document) Index(name string) int {
	i, ok := d.index[name]
	if !ok {
		return -1
	}
	return i
}

// Signals returns the data-bearing quantities in declaration order,
// skipping padding entries.
func (d *Document) Signals() []Quantity {
	out := make([]Quantity, 0, len(d.Quantities))
	for _, q := range d.Quantities {
		if !q.IsPadding() {
			out = append(out, q)
		}
	}
	return out
}
