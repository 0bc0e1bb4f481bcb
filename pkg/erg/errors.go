package erg

import "fmt"

// CorruptDataError reports a binary file whose record section does not hold
// a whole number of records, or one too short for its declared file header.
// Remainder carries the trailing byte count so callers can distinguish
// truncation from a wrong schema.
type CorruptDataError struct {
	Path      string
	DataSize  int // record-section size, file header excluded; full file size for a truncated header
	RowSize   int
	Remainder int
	Msg       string // set for corruption other than a size mismatch
}

func (e *CorruptDataError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Msg)
	}
	return fmt.Sprintf("%s: %d bytes of record data do not divide into %d-byte records (%d trailing bytes)",
		e.Path, e.DataSize, e.RowSize, e.Remainder)
}

// UnknownSignalError reports a request for a quantity the schema does not
// declare (or declares as padding).
type UnknownSignalError struct {
	Name string
	Path string
}

func (e *UnknownSignalError) Error() string {
	return fmt.Sprintf("%s: unknown quantity %q", e.Path, e.Name)
}

// ValidationError reports caller-supplied arguments that cannot be honored.
type ValidationError struct {
	Op  string
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Op + ": " + e.Msg
}

func validationErrf(op, format string, args ...any) *ValidationError {
	return &ValidationError{Op: op, Msg: fmt.Sprintf(format, args...)}
}
