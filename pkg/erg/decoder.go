package erg

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"

	"github.com/twinfer/erg-plugin/pkg/infofile"
)

// ERG files written by CarMaker start with a 16-byte header carrying this
// magic. Files without the magic (exports from other tools, fixtures) are
// plain record arrays from byte zero.
const ergHeaderSize = 16

var ergMagic = []byte("CM-ERG\x00\x00")

// decoder holds a fully loaded binary file and decodes records on demand.
// Every sample is widened to float64 and the declared affine scaling is
// applied on the way out.
type decoder struct {
	path      string
	layout    *Layout
	payload   []byte // record section, header stripped
	rows      int
	hasHeader bool
}

func newDecoder(path string, layout *Layout) (*decoder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read erg file: %w", err)
	}
	d := &decoder{path: path, layout: layout, payload: data}
	if bytes.HasPrefix(data, ergMagic) {
		if len(data) < ergHeaderSize {
			return nil, &CorruptDataError{Path: path, DataSize: len(data), RowSize: layout.RowSize,
				Msg: fmt.Sprintf("truncated CM-ERG header (%d bytes)", len(data))}
		}
		d.payload = data[ergHeaderSize:]
		d.hasHeader = true
	}
	if rem := len(d.payload) % layout.RowSize; rem != 0 {
		return nil, &CorruptDataError{Path: path, DataSize: len(d.payload), RowSize: layout.RowSize, Remainder: rem}
	}
	d.rows = len(d.payload) / layout.RowSize
	return d, nil
}

// readFunc decodes the next sample from the stream as float64.
type readFunc func(*kaitai.Stream) (float64, error)

// readerFor builds the typed read for one quantity. Integers and bools are
// widened to float64; values beyond 2^53 lose precision, which the 64-bit
// integer quantities of real recordings never reach.
func readerFor(t infofile.TypeCode, order infofile.ByteOrder) (readFunc, error) {
	le := order == infofile.LittleEndian
	switch t {
	case infofile.Float64:
		if le {
			return func(s *kaitai.Stream) (float64, error) { return s.ReadF8le() }, nil
		}
		return func(s *kaitai.Stream) (float64, error) { return s.ReadF8be() }, nil
	case infofile.Float32:
		if le {
			return func(s *kaitai.Stream) (float64, error) { v, err := s.ReadF4le(); return float64(v), err }, nil
		}
		return func(s *kaitai.Stream) (float64, error) { v, err := s.ReadF4be(); return float64(v), err }, nil
	case infofile.Int64:
		if le {
			return func(s *kaitai.Stream) (float64, error) { v, err := s.ReadS8le(); return float64(v), err }, nil
		}
		return func(s *kaitai.Stream) (float64, error) { v, err := s.ReadS8be(); return float64(v), err }, nil
	case infofile.UInt64:
		if le {
			return func(s *kaitai.Stream) (float64, error) { v, err := s.ReadU8le(); return float64(v), err }, nil
		}
		return func(s *kaitai.Stream) (float64, error) { v, err := s.ReadU8be(); return float64(v), err }, nil
	case infofile.Int32:
		if le {
			return func(s *kaitai.Stream) (float64, error) { v, err := s.ReadS4le(); return float64(v), err }, nil
		}
		return func(s *kaitai.Stream) (float64, error) { v, err := s.ReadS4be(); return float64(v), err }, nil
	case infofile.UInt32:
		if le {
			return func(s *kaitai.Stream) (float64, error) { v, err := s.ReadU4le(); return float64(v), err }, nil
		}
		return func(s *kaitai.Stream) (float64, error) { v, err := s.ReadU4be(); return float64(v), err }, nil
	case infofile.Int16:
		if le {
			return func(s *kaitai.Stream) (float64, error) { v, err := s.ReadS2le(); return float64(v), err }, nil
		}
		return func(s *kaitai.Stream) (float64, error) { v, err := s.ReadS2be(); return float64(v), err }, nil
	case infofile.UInt16:
		if le {
			return func(s *kaitai.Stream) (float64, error) { v, err := s.ReadU2le(); return float64(v), err }, nil
		}
		return func(s *kaitai.Stream) (float64, error) { v, err := s.ReadU2be(); return float64(v), err }, nil
	case infofile.Int8:
		return func(s *kaitai.Stream) (float64, error) { v, err := s.ReadS1(); return float64(v), err }, nil
	case infofile.UInt8:
		return func(s *kaitai.Stream) (float64, error) { v, err := s.ReadU1(); return float64(v), err }, nil
	case infofile.Bool:
		return func(s *kaitai.Stream) (float64, error) {
			v, err := s.ReadU1()
			if err != nil || v == 0 {
				return 0, err
			}
			return 1, nil
		}, nil
	default:
		return nil, fmt.Errorf("no reader for type %s", t)
	}
}

func applyScale(samples []float64, q infofile.Quantity) {
	if !q.Scaled() {
		return
	}
	for i, v := range samples {
		samples[i] = v*q.Factor + q.Offset
	}
}

// decodeColumn decodes one quantity across all records.
func (d *decoder) decodeColumn(name string) ([]float64, error) {
	col, ok := d.layout.Column(name)
	if !ok || col.Quantity.IsPadding() {
		return nil, &UnknownSignalError{Name: name, Path: d.path}
	}
	out := make([]float64, d.rows)
	err := d.eachRow([]Column{col}, func(i int, vals []float64) error {
		out[i] = vals[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// decodeAll decodes every data-bearing quantity in one sequential pass.
func (d *decoder) decodeAll() (map[string][]float64, error) {
	readers := make([]readFunc, len(d.layout.Columns))
	for i, c := range d.layout.Columns {
		if c.Quantity.IsPadding() {
			continue
		}
		r, err := readerFor(c.Quantity.Type, d.layout.ByteOrder)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.Quantity.Name, err)
		}
		readers[i] = r
	}

	buffers := make([][]float64, len(d.layout.Columns))
	for i, c := range d.layout.Columns {
		if !c.Quantity.IsPadding() {
			buffers[i] = make([]float64, d.rows)
		}
	}

	stream := kaitai.NewStream(bytes.NewReader(d.payload))
	for row := 0; row < d.rows; row++ {
		for i, c := range d.layout.Columns {
			if readers[i] == nil {
				if _, err := stream.ReadBytes(c.Quantity.Size); err != nil {
					return nil, fmt.Errorf("skip padding at row %d: %w", row, err)
				}
				continue
			}
			v, err := readers[i](stream)
			if err != nil {
				return nil, fmt.Errorf("decode %s at row %d: %w", c.Quantity.Name, row, err)
			}
			buffers[i][row] = v
		}
	}

	columns := make(map[string][]float64, len(d.layout.Columns))
	for i, c := range d.layout.Columns {
		if buffers[i] == nil {
			continue
		}
		applyScale(buffers[i], c.Quantity)
		columns[c.Quantity.Name] = buffers[i]
	}
	return columns, nil
}

// eachRow decodes the given columns record by record and hands each decoded
// row to fn. The vals slice is reused between calls; fn must copy what it
// keeps. Scaling is applied before fn sees the values.
func (d *decoder) eachRow(cols []Column, fn func(i int, vals []float64) error) error {
	readers := make([]readFunc, len(cols))
	for i, c := range cols {
		r, err := readerFor(c.Quantity.Type, d.layout.ByteOrder)
		if err != nil {
			return fmt.Errorf("column %s: %w", c.Quantity.Name, err)
		}
		readers[i] = r
	}

	stream := kaitai.NewStream(bytes.NewReader(d.payload))
	vals := make([]float64, len(cols))
	for row := 0; row < d.rows; row++ {
		base := int64(row * d.layout.RowSize)
		for i, c := range cols {
			if _, err := stream.Seek(base+int64(c.Offset), io.SeekStart); err != nil {
				return fmt.Errorf("seek %s at row %d: %w", c.Quantity.Name, row, err)
			}
			v, err := readers[i](stream)
			if err != nil {
				return fmt.Errorf("decode %s at row %d: %w", c.Quantity.Name, row, err)
			}
			if c.Quantity.Scaled() {
				v = v*c.Quantity.Factor + c.Quantity.Offset
			}
			vals[i] = v
		}
		if err := fn(row, vals); err != nil {
			return err
		}
	}
	return nil
}
