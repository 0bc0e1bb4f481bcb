package erg

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Table materializes the whole recording as an Arrow record batch: one
// float64 column per signal in declaration order (Time first when declared
// first, padding excluded), appended and derived signals after the declared
// ones. Each field carries the signal's unit as "unit" metadata.
//
// The record is built once and owned by the File; Close releases it. Callers
// that need it to outlive the File must Retain it.
func (f *File) Table() (arrow.Record, error) {
	if f.table != nil {
		return f.table, nil
	}
	cols, err := f.allColumns()
	if err != nil {
		return nil, fmt.Errorf("materialize table: %w", err)
	}

	quantities := f.doc.Signals()
	n := len(quantities) + len(f.appended)
	fields := make([]arrow.Field, 0, n)
	data := make([][]float64, 0, n)
	for _, q := range quantities {
		fields = append(fields, arrow.Field{
			Name:     q.Name,
			Type:     arrow.PrimitiveTypes.Float64,
			Metadata: arrow.NewMetadata([]string{"unit"}, []string{q.Unit}),
		})
		data = append(data, cols[q.Name])
	}
	for _, a := range f.appended {
		fields = append(fields, arrow.Field{
			Name:     a.name,
			Type:     arrow.PrimitiveTypes.Float64,
			Metadata: arrow.NewMetadata([]string{"unit"}, []string{a.unit}),
		})
		data = append(data, f.signals[a.name].Samples)
	}

	schema := arrow.NewSchema(fields, nil)
	builder := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer builder.Release()
	for i, samples := range data {
		builder.Field(i).(*array.Float64Builder).AppendValues(samples, nil)
	}

	f.table = builder.NewRecord()
	f.logger.Debug("materialized table", "columns", len(fields), "rows", f.dec.rows)
	return f.table, nil
}

// invalidateTable drops the cached record after the signal set changed.
func (f *File) invalidateTable() {
	if f.table != nil {
		f.table.Release()
		f.table = nil
	}
}
