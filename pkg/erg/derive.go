package erg

import (
	"fmt"
	"strings"

	"github.com/twinfer/erg-plugin/internal/exprpool"
)

// Append adds a computed signal to the recording. The sample count must
// equal RowCount and the name must be new; the signal then shows up in
// Signals, Get and Table like a decoded one. The binary file and the CSV
// export are unaffected.
func (f *File) Append(name, unit string, samples []float64) error {
	if err := f.checkNewName("append", name); err != nil {
		return err
	}
	if len(samples) != f.dec.rows {
		return validationErrf("append", "signal %q has %d samples, recording has %d rows",
			name, len(samples), f.dec.rows)
	}
	ts, err := f.timestamps()
	if err != nil {
		return err
	}
	f.signals[name] = &Signal{Name: name, Unit: unit, Timestamps: ts, Samples: samples}
	f.appended = append(f.appended, appendedSignal{name: name, unit: unit})
	f.invalidateTable()
	f.logger.Debug("appended signal", "name", name, "rows", len(samples))
	return nil
}

// Derive computes a new signal by evaluating an expr expression once per
// record and appends it under the given name. Every signal is visible to
// the expression as an identifier with dots replaced by underscores
// ("Car.v" becomes Car_v); when two names collide after that mapping the
// later declaration wins. Appended signals are visible too.
func (f *File) Derive(name, unit, expression string) (*Signal, error) {
	if err := f.checkNewName("derive", name); err != nil {
		return nil, err
	}
	if f.programs == nil {
		f.programs = exprpool.New()
	}
	prog, err := f.programs.Get(expression)
	if err != nil {
		return nil, err
	}
	cols, err := f.allColumns()
	if err != nil {
		return nil, err
	}

	sources := make(map[string][]float64, len(cols)+len(f.appended))
	for _, q := range f.doc.Signals() {
		sources[identifier(q.Name)] = cols[q.Name]
	}
	for _, a := range f.appended {
		sources[identifier(a.name)] = f.signals[a.name].Samples
	}

	vars := make(map[string]any, len(sources))
	samples := make([]float64, f.dec.rows)
	for row := 0; row < f.dec.rows; row++ {
		for id, col := range sources {
			vars[id] = col[row]
		}
		v, err := f.programs.Eval(prog, vars)
		if err != nil {
			return nil, fmt.Errorf("derive %q at row %d: %w", name, row, err)
		}
		samples[row] = v
	}

	if err := f.Append(name, unit, samples); err != nil {
		return nil, err
	}
	return f.signals[name], nil
}

func (f *File) checkNewName(op, name string) error {
	if name == "" {
		return validationErrf(op, "empty signal name")
	}
	if _, exists := f.layout.Column(name); exists {
		return validationErrf(op, "signal %q already declared by the schema", name)
	}
	if _, exists := f.signals[name]; exists {
		return validationErrf(op, "signal %q already appended", name)
	}
	return nil
}

// identifier maps a quantity name onto an expression identifier.
func identifier(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}
