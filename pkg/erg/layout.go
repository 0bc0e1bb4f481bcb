package erg

import "github.com/twinfer/erg-plugin/pkg/infofile"

// Column is one quantity placed at its byte offset within a record.
type Column struct {
	Quantity infofile.Quantity
	Offset   int
}

// Layout is the fixed record geometry derived from an info document:
// every declared quantity at its cumulative offset, in declaration order,
// padding included.
type Layout struct {
	Columns   []Column
	RowSize   int
	ByteOrder infofile.ByteOrder

	byName map[string]int
}

func buildLayout(doc *infofile.Document) *Layout {
	l := &Layout{
		Columns:   make([]Column, 0, len(doc.Quantities)),
		ByteOrder: doc.ByteOrder,
		byName:    make(map[string]int, len(doc.Quantities)),
	}
	offset := 0
	for _, q := range doc.Quantities {
		l.byName[q.Name] = len(l.Columns)
		l.Columns = append(l.Columns, Column{Quantity: q, Offset: offset})
		offset += q.Size
	}
	l.RowSize = offset
	return l
}

// Column looks up a placed quantity by name.
func (l *Layout) Column(name string) (Column, bool) {
	i, ok := l.byName[name]
	if !ok {
		return Column{}, false
	}
	return l.Columns[i], true
}

// Signals returns the data-bearing columns in declaration order, skipping
// padding slots.
func (l *Layout) Signals() []Column {
	out := make([]Column, 0, len(l.Columns))
	for _, c := range l.Columns {
		if !c.Quantity.IsPadding() {
			out = append(out, c)
		}
	}
	return out
}
