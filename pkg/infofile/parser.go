package infofile

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// FormatError reports a malformed info file. Line is 1-based and 0 when the
// problem is not tied to a single line.
type FormatError struct {
	Path string
	Line int
	Msg  string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

func formatErrf(path string, line int, format string, args ...any) *FormatError {
	return &FormatError{Path: path, Line: line, Msg: fmt.Sprintf(format, args...)}
}

// ParseFile reads and parses an info file from disk.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read info file: %w", err)
	}
	return Parse(path, data)
}

// atEntry collects the Name/Type halves of one File.At.<i> declaration while
// scanning; declarations are ordered by first appearance of their index.
type atEntry struct {
	idx      int
	order    int
	name     string
	typ      string
	hasName  bool
	hasType  bool
	nameLine int
	typeLine int
}

// quantMeta collects Quantity.<name>.* attributes while scanning.
type quantMeta struct {
	unit      string
	factor    float64
	offset    float64
	hasFactor bool
	hasOffset bool
}

// Parse parses info-file text. path is used for error messages only.
//
// The parser is deliberately tolerant of everything it does not understand:
// comment lines, blank lines, lines without "=", and keys outside the
// File.*/Quantity.* families are skipped, matching how CarMaker's own tools
// scan these files. Structural problems in the parts it does understand are
// FormatErrors.
func Parse(path string, data []byte) (*Document, error) {
	// CarMaker installs on Windows write Latin-1; unit strings carry degree
	// signs and the like. Valid UTF-8 passes through untouched.
	if !utf8.Valid(data) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, formatErrf(path, 0, "decode text: %v", err)
		}
		data = decoded
	}

	doc := &Document{Path: path}
	ats := make(map[int]*atEntry)
	meta := make(map[string]*quantMeta)
	metaFor := func(name string) *quantMeta {
		m, ok := meta[name]
		if !ok {
			m = &quantMeta{}
			meta[name] = m
		}
		return m
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	order := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			continue
		}
		key := unquote(strings.TrimSpace(line[:eq]))
		val := unquote(strings.TrimSpace(line[eq+1:]))

		switch {
		case key == "File.Format":
			if val != "erg" {
				return nil, formatErrf(path, lineNo, "unsupported File.Format %q", val)
			}
			doc.Format = val

		case key == "File.Version":
			doc.Version = val

		case key == "File.ByteOrder":
			switch val {
			case "LittleEndian":
				doc.ByteOrder = LittleEndian
			case "BigEndian":
				doc.ByteOrder = BigEndian
			default:
				return nil, formatErrf(path, lineNo, "unknown File.ByteOrder %q", val)
			}

		case key == "File.DateInSeconds":
			sec, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, formatErrf(path, lineNo, "invalid File.DateInSeconds %q", val)
			}
			doc.StartTime = time.Unix(sec, 0).UTC()

		default:
			if rest, ok := strings.CutPrefix(key, "File.At."); ok {
				idxStr, field, ok := strings.Cut(rest, ".")
				if !ok {
					continue
				}
				idx, err := strconv.Atoi(idxStr)
				if err != nil {
					return nil, formatErrf(path, lineNo, "invalid declaration index in %q", key)
				}
				e := ats[idx]
				if e == nil {
					e = &atEntry{idx: idx, order: order}
					order++
					ats[idx] = e
				}
				switch field {
				case "Name":
					e.name, e.hasName, e.nameLine = val, true, lineNo
				case "Type":
					e.typ, e.hasType, e.typeLine = val, true, lineNo
				}
				continue
			}
			if rest, ok := strings.CutPrefix(key, "Quantity."); ok {
				switch {
				case strings.HasSuffix(rest, ".Unit"):
					metaFor(strings.TrimSuffix(rest, ".Unit")).unit = val
				case strings.HasSuffix(rest, ".Factor"):
					f, err := strconv.ParseFloat(val, 64)
					if err != nil {
						return nil, formatErrf(path, lineNo, "invalid Factor %q", val)
					}
					m := metaFor(strings.TrimSuffix(rest, ".Factor"))
					m.factor, m.hasFactor = f, true
				case strings.HasSuffix(rest, ".Offset"):
					f, err := strconv.ParseFloat(val, 64)
					if err != nil {
						return nil, formatErrf(path, lineNo, "invalid Offset %q", val)
					}
					m := metaFor(strings.TrimSuffix(rest, ".Offset"))
					m.offset, m.hasOffset = f, true
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan info file: %w", err)
	}

	if len(ats) == 0 {
		return nil, formatErrf(path, 0, "no quantity declarations (File.At.*)")
	}

	entries := make([]*atEntry, 0, len(ats))
	for _, e := range ats {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].order < entries[j].order })

	doc.Quantities = make([]Quantity, 0, len(entries))
	doc.index = make(map[string]int, len(entries))
	for _, e := range entries {
		if !e.hasName {
			return nil, formatErrf(path, e.typeLine, "File.At.%d.Name missing", e.idx)
		}
		if !e.hasType {
			return nil, formatErrf(path, e.nameLine, "File.At.%d.Type missing", e.idx)
		}
		tc, size, ok := typeForKeyword(e.typ)
		if !ok {
			return nil, formatErrf(path, e.typeLine, "unknown type keyword %q for %q", e.typ, e.name)
		}
		name := e.name
		if name == "" {
			if tc != Padding {
				return nil, formatErrf(path, e.nameLine, "File.At.%d.Name is empty", e.idx)
			}
			// Padding slots are never surfaced; give nameless ones a
			// placeholder so the layout stays addressable.
			name = fmt.Sprintf("_pad%d", e.idx)
		}
		if _, dup := doc.index[name]; dup {
			return nil, formatErrf(path, e.nameLine, "duplicate quantity %q", name)
		}

		q := Quantity{Name: name, Type: tc, Size: size, Factor: 1}
		if m := meta[name]; m != nil {
			q.Unit = m.unit
			if m.hasFactor {
				q.Factor = m.factor
			}
			if m.hasOffset {
				q.Offset = m.offset
			}
		}
		doc.index[name] = len(doc.Quantities)
		doc.Quantities = append(doc.Quantities, q)
	}

	// Every usable ERG recording carries its time axis as an explicit
	// quantity. Refusing schemas without one beats inventing timestamps.
	if t, ok := doc.Quantity("Time"); !ok || t.IsPadding() {
		return nil, formatErrf(path, 0, `no "Time" quantity declared`)
	}

	return doc, nil
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
