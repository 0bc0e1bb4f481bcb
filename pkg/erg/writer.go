package erg

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"

	"github.com/twinfer/erg-plugin/pkg/infofile"
)

// WriteSpec describes the recording Write emits.
type WriteSpec struct {
	Quantities []infofile.Quantity // declaration order; zero Size is filled from Type
	ByteOrder  infofile.ByteOrder
	StartTime  time.Time // becomes File.DateInSeconds when set
	Header     bool      // emit the 16-byte CM-ERG file header
}

// Write emits an ERG pair: the binary at path and its schema at
// "<path>.info". Each row supplies one value per data-bearing quantity in
// declaration order; padding slots are zero-filled. Values are taken in
// engineering units: quantities with an affine scaling get the inverse
// transform applied before narrowing, so decoding the pair returns the
// values given here.
func Write(path string, spec WriteSpec, rows [][]float64) error {
	qs, err := normalizeQuantities(spec.Quantities)
	if err != nil {
		return err
	}
	dataCount := 0
	for _, q := range qs {
		if !q.IsPadding() {
			dataCount++
		}
	}
	for i, row := range rows {
		if len(row) != dataCount {
			return validationErrf("write", "row %d has %d values, schema declares %d data quantities",
				i, len(row), dataCount)
		}
	}

	buf := bytes.NewBuffer(nil)
	w := kaitai.NewWriter(buf)
	le := spec.ByteOrder == infofile.LittleEndian
	if spec.Header {
		if err := writeHeader(w, qs, spec.ByteOrder); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for i, row := range rows {
		v := 0
		for _, q := range qs {
			if q.IsPadding() {
				if err := w.WriteBytes(make([]byte, q.Size)); err != nil {
					return fmt.Errorf("write padding at row %d: %w", i, err)
				}
				continue
			}
			if err := writeValue(w, q, le, row[v]); err != nil {
				return fmt.Errorf("write %s at row %d: %w", q.Name, i, err)
			}
			v++
		}
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write erg file: %w", err)
	}
	if err := os.WriteFile(path+".info", []byte(infoText(spec, qs)), 0o644); err != nil {
		return fmt.Errorf("write info file: %w", err)
	}
	return nil
}

// normalizeQuantities fills derived sizes and validates the declaration
// list the same way the parser would on the way back in.
func normalizeQuantities(quantities []infofile.Quantity) ([]infofile.Quantity, error) {
	if len(quantities) == 0 {
		return nil, validationErrf("write", "no quantities declared")
	}
	qs := make([]infofile.Quantity, len(quantities))
	copy(qs, quantities)
	seen := make(map[string]bool, len(qs))
	hasTime := false
	for i := range qs {
		q := &qs[i]
		if q.IsPadding() {
			if q.Size < 1 || q.Size > 7 {
				return nil, validationErrf("write", "padding slot %d needs a size of 1..7 bytes, got %d", i, q.Size)
			}
		} else {
			if q.Name == "" {
				return nil, validationErrf("write", "quantity %d has no name", i)
			}
			q.Size = q.Type.Size()
			if q.Size == 0 {
				return nil, validationErrf("write", "quantity %q has unsupported type", q.Name)
			}
		}
		if q.Factor == 0 {
			q.Factor = 1 // zero value means "no factor", same default as the parser
		}
		if q.Name != "" {
			if seen[q.Name] {
				return nil, validationErrf("write", "duplicate quantity %q", q.Name)
			}
			seen[q.Name] = true
		}
		if q.Name == "Time" && !q.IsPadding() {
			hasTime = true
		}
	}
	if !hasTime {
		return nil, validationErrf("write", `no "Time" quantity declared`)
	}
	return qs, nil
}

// writeHeader emits the 16-byte CM-ERG header: magic, format version,
// byte-order flag, record size, reserved bytes.
func writeHeader(w *kaitai.Writer, qs []infofile.Quantity, order infofile.ByteOrder) error {
	if err := w.WriteBytes(ergMagic); err != nil {
		return err
	}
	if err := w.WriteU1(1); err != nil {
		return err
	}
	flag := uint8(0)
	if order == infofile.BigEndian {
		flag = 1
	}
	if err := w.WriteU1(flag); err != nil {
		return err
	}
	rowSize := 0
	for _, q := range qs {
		rowSize += q.Size
	}
	var size [2]byte
	order.Encoding().PutUint16(size[:], uint16(rowSize))
	if err := w.WriteBytes(size[:]); err != nil {
		return err
	}
	return w.WriteBytes([]byte{0, 0, 0, 0})
}

func writeValue(w *kaitai.Writer, q infofile.Quantity, le bool, v float64) error {
	if q.Scaled() {
		v = (v - q.Offset) / q.Factor
	}
	switch q.Type {
	case infofile.Float64:
		if le {
			return w.WriteF8le(v)
		}
		return w.WriteF8be(v)
	case infofile.Float32:
		if le {
			return w.WriteF4le(float32(v))
		}
		return w.WriteF4be(float32(v))
	case infofile.Int64:
		n := int64(math.Round(v))
		if le {
			return w.WriteS8le(n)
		}
		return w.WriteS8be(n)
	case infofile.UInt64:
		n := uint64(math.Round(v))
		if le {
			return w.WriteU8le(n)
		}
		return w.WriteU8be(n)
	case infofile.Int32:
		n := int32(math.Round(v))
		if le {
			return w.WriteS4le(n)
		}
		return w.WriteS4be(n)
	case infofile.UInt32:
		n := uint32(math.Round(v))
		if le {
			return w.WriteU4le(n)
		}
		return w.WriteU4be(n)
	case infofile.Int16:
		n := int16(math.Round(v))
		if le {
			return w.WriteS2le(n)
		}
		return w.WriteS2be(n)
	case infofile.UInt16:
		n := uint16(math.Round(v))
		if le {
			return w.WriteU2le(n)
		}
		return w.WriteU2be(n)
	case infofile.Int8:
		return w.WriteS1(int8(math.Round(v)))
	case infofile.UInt8:
		return w.WriteU1(uint8(math.Round(v)))
	case infofile.Bool:
		b := uint8(0)
		if v != 0 {
			b = 1
		}
		return w.WriteU1(b)
	default:
		return fmt.Errorf("no writer for type %s", q.Type)
	}
}

// infoText renders the companion schema document.
func infoText(spec WriteSpec, qs []infofile.Quantity) string {
	var b strings.Builder
	b.WriteString("#INFOFILE1.1 - Do not remove this line!\n")
	b.WriteString("File.Format = erg\n")
	b.WriteString("File.Version = 1\n")
	fmt.Fprintf(&b, "File.ByteOrder = %s\n", spec.ByteOrder)
	if !spec.StartTime.IsZero() {
		fmt.Fprintf(&b, "File.DateInSeconds = %d\n", spec.StartTime.Unix())
	}
	for i, q := range qs {
		name := q.Name
		if q.IsPadding() && strings.HasPrefix(name, "_pad") {
			name = "" // synthesized on read, not part of the format
		}
		fmt.Fprintf(&b, "File.At.%d.Name = %s\n", i+1, name)
		if q.IsPadding() {
			fmt.Fprintf(&b, "File.At.%d.Type = %d Bytes\n", i+1, q.Size)
		} else {
			fmt.Fprintf(&b, "File.At.%d.Type = %s\n", i+1, q.Type)
		}
	}
	for _, q := range qs {
		if q.IsPadding() {
			continue
		}
		if q.Unit != "" {
			fmt.Fprintf(&b, "Quantity.%s.Unit = %s\n", q.Name, q.Unit)
		}
		if q.Scaled() {
			fmt.Fprintf(&b, "Quantity.%s.Factor = %s\n", q.Name, formatFloat(q.Factor))
			fmt.Fprintf(&b, "Quantity.%s.Offset = %s\n", q.Name, formatFloat(q.Offset))
		}
	}
	return b.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
