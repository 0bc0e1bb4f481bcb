package erg

import (
	"log/slog"
	"time"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/twinfer/erg-plugin/internal/exprpool"
	"github.com/twinfer/erg-plugin/pkg/infofile"
)

// options holds configuration for Open
type options struct {
	infoPath string
	logger   *slog.Logger
}

// Option is a functional option for Open
type Option func(*options)

// WithInfoPath overrides the schema location. By default the schema is
// expected next to the binary at "<path>.info".
func WithInfoPath(path string) Option {
	return func(o *options) {
		o.infoPath = path
	}
}

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func defaultOptions() *options {
	return &options{
		logger: slog.Default(),
	}
}

// appendedSignal records the identity of a signal added after decode,
// either via Append or Derive.
type appendedSignal struct {
	name string
	unit string
}

// File is an opened ERG recording: the parsed schema plus the loaded binary.
// Decoding is lazy and memoized. A File must be confined to one goroutine;
// it performs no internal locking.
type File struct {
	path   string
	doc    *infofile.Document
	layout *Layout
	dec    *decoder
	logger *slog.Logger

	time     []float64            // decoded Time axis, shared across signals
	columns  map[string][]float64 // full decode memo (Table, Derive)
	signals  map[string]*Signal   // Get memo plus appended signals
	appended []appendedSignal
	table    arrow.Record
	programs *exprpool.Pool
}

// Open loads the ERG file at path together with its info schema. The whole
// binary is read into memory and validated against the schema-derived record
// layout; decoding individual quantities happens on first access.
func Open(path string, opts ...Option) (*File, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	infoPath := o.infoPath
	if infoPath == "" {
		infoPath = path + ".info"
	}

	doc, err := infofile.ParseFile(infoPath)
	if err != nil {
		return nil, err
	}
	layout := buildLayout(doc)
	dec, err := newDecoder(path, layout)
	if err != nil {
		return nil, err
	}

	f := &File{
		path:    path,
		doc:     doc,
		layout:  layout,
		dec:     dec,
		logger:  o.logger,
		signals: make(map[string]*Signal),
	}
	f.logger.Debug("opened erg file",
		"path", path,
		"quantities", len(doc.Quantities),
		"rows", dec.rows,
		"row_size", layout.RowSize,
		"header", dec.hasHeader)
	return f, nil
}

// Close drops the decoded caches and releases the materialized table.
// The File must not be used afterwards.
func (f *File) Close() error {
	if f.table != nil {
		f.table.Release()
		f.table = nil
	}
	f.time = nil
	f.columns = nil
	f.signals = nil
	f.appended = nil
	f.dec = nil
	return nil
}

// Path returns the binary file path.
func (f *File) Path() string { return f.path }

// Info returns the parsed schema document.
func (f *File) Info() *infofile.Document { return f.doc }

// Layout returns the record layout derived from the schema.
func (f *File) Layout() *Layout { return f.layout }

// RowCount returns the number of records in the binary.
func (f *File) RowCount() int { return f.dec.rows }

// StartTime returns the recording start declared by File.DateInSeconds,
// or the zero time when the schema carries none.
func (f *File) StartTime() time.Time { return f.doc.StartTime }

// Signals lists every addressable signal with its metadata. No decoding
// happens; the map is rebuilt on each call and safe to modify.
func (f *File) Signals() map[string]SignalInfo {
	out := make(map[string]SignalInfo, len(f.doc.Quantities)+len(f.appended))
	for _, q := range f.doc.Signals() {
		out[q.Name] = SignalInfo{Unit: q.Unit, Type: q.Type}
	}
	for _, a := range f.appended {
		out[a.name] = SignalInfo{Unit: a.unit, Type: infofile.Float64}
	}
	return out
}

// Get returns the named signal, decoding it on first access. The returned
// signal is cached; repeated calls hand back the same value. Signals share
// the decoded Time axis as their timestamp array.
func (f *File) Get(name string) (*Signal, error) {
	if s, ok := f.signals[name]; ok {
		return s, nil
	}
	col, ok := f.layout.Column(name)
	if !ok || col.Quantity.IsPadding() {
		return nil, &UnknownSignalError{Name: name, Path: f.path}
	}

	ts, err := f.timestamps()
	if err != nil {
		return nil, err
	}
	var samples []float64
	if name == "Time" {
		samples = ts
	} else {
		samples, err = f.column(name)
		if err != nil {
			return nil, err
		}
	}

	s := &Signal{Name: name, Unit: col.Quantity.Unit, Timestamps: ts, Samples: samples}
	f.signals[name] = s
	f.logger.Debug("decoded signal", "name", name, "rows", len(samples))
	return s, nil
}

// column fetches one decoded column, served from the full-decode memo when
// a Table or Derive call has already paid for it.
func (f *File) column(name string) ([]float64, error) {
	if f.columns != nil {
		if c, ok := f.columns[name]; ok {
			return c, nil
		}
	}
	return f.dec.decodeColumn(name)
}

// timestamps returns the decoded Time axis, decoding it once.
func (f *File) timestamps() ([]float64, error) {
	if f.time != nil {
		return f.time, nil
	}
	ts, err := f.column("Time")
	if err != nil {
		return nil, err
	}
	f.time = ts
	return ts, nil
}

// allColumns decodes every schema-declared signal in one pass and memoizes
// the result.
func (f *File) allColumns() (map[string][]float64, error) {
	if f.columns == nil {
		cols, err := f.dec.decodeAll()
		if err != nil {
			return nil, err
		}
		// Keep the already-decoded axis canonical so every signal shares
		// one timestamp array.
		if f.time != nil {
			cols["Time"] = f.time
		} else if t, ok := cols["Time"]; ok {
			f.time = t
		}
		f.columns = cols
		f.logger.Debug("decoded all columns", "columns", len(cols), "rows", f.dec.rows)
	}
	return f.columns, nil
}
