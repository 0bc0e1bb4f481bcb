package erg

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// CSV dialect accepted by CarMaker's import dialog: semicolon-separated
// cells, '.' as decimal separator, CRLF record terminator, one header row
// of quantity names.
const csvSeparator = ';'

type exportOptions struct {
	prefixes  []string
	digits    int
	hasDigits bool
}

// ExportOption is a functional option for ExportCSV
type ExportOption func(*exportOptions)

// WithColumns restricts the export to quantities whose name starts with at
// least one of the given prefixes. Time is always exported regardless of
// the filter; a filter that selects no quantity besides Time fails the
// export with a ValidationError.
func WithColumns(prefixes ...string) ExportOption {
	return func(o *exportOptions) {
		o.prefixes = prefixes
	}
}

// WithDigits rounds every non-Time cell to n decimal digits. Time keeps
// full precision so re-imports align on the exact axis.
func WithDigits(n int) ExportOption {
	return func(o *exportOptions) {
		o.digits = n
		o.hasDigits = true
	}
}

// ExportCSV streams the recording into a CSV file at path. Columns appear
// in schema declaration order, restricted by WithColumns when given; only
// schema-declared quantities are exported, not appended signals. Cells are
// full-precision by default ('g' formatting) and rounded half-to-even when
// WithDigits is set.
func (f *File) ExportCSV(path string, opts ...ExportOption) error {
	o := &exportOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.hasDigits && o.digits < 0 {
		return validationErrf("export", "digits must not be negative, got %d", o.digits)
	}
	digits := -1
	if o.hasDigits {
		digits = o.digits
	}
	cols, err := f.selectColumns(o.prefixes)
	if err != nil {
		return err
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	w := csv.NewWriter(out)
	w.Comma = csvSeparator
	w.UseCRLF = true

	timeIdx := -1
	record := make([]string, len(cols))
	for i, c := range cols {
		record[i] = c.Quantity.Name
		if c.Quantity.Name == "Time" {
			timeIdx = i
		}
	}

	writeErr := w.Write(record)
	if writeErr == nil {
		writeErr = f.dec.eachRow(cols, func(row int, vals []float64) error {
			for i, v := range vals {
				if digits >= 0 && i != timeIdx {
					record[i] = strconv.FormatFloat(v, 'f', digits, 64)
				} else {
					record[i] = strconv.FormatFloat(v, 'g', -1, 64)
				}
			}
			return w.Write(record)
		})
	}
	if writeErr == nil {
		w.Flush()
		writeErr = w.Error()
	}
	if cerr := out.Close(); writeErr == nil && cerr != nil {
		writeErr = fmt.Errorf("close csv file: %w", cerr)
	}
	if writeErr != nil {
		return writeErr
	}

	f.logger.Debug("exported csv",
		"path", path,
		"columns", len(cols),
		"rows", f.dec.rows,
		"digits", digits)
	return nil
}

// selectColumns resolves the prefix filter against the layout. A filter
// matching nothing beyond the always-included Time axis is an error rather
// than a Time-only file.
func (f *File) selectColumns(prefixes []string) ([]Column, error) {
	signals := f.layout.Signals()
	if len(prefixes) == 0 {
		return signals, nil
	}
	matched := 0
	out := make([]Column, 0, len(signals))
	for _, c := range signals {
		m := hasAnyPrefix(c.Quantity.Name, prefixes)
		if m && c.Quantity.Name != "Time" {
			matched++
		}
		if m || c.Quantity.Name == "Time" {
			out = append(out, c)
		}
	}
	if matched == 0 {
		return nil, validationErrf("export", "no quantity matches column prefixes %v", prefixes)
	}
	return out, nil
}

func hasAnyPrefix(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
