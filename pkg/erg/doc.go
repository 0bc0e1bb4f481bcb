// Package erg reads and writes IPG CarMaker ERG result files: a binary array
// of fixed-size records described by a companion ".info" text schema.
//
// # Overview
//
// An ERG recording is a pair of files. The info file declares the record
// layout (quantity names, binary types, optional padding) together with
// units and an optional affine scaling per quantity; the binary file holds
// the records back to back, optionally behind a 16-byte "CM-ERG" header.
// This package decodes that pair into named time-series signals. It
// supports:
//
//   - Lazy per-signal decoding with memoization
//   - Both byte orders and all CarMaker quantity types, widened to float64
//   - Affine unit scaling (Factor/Offset) applied transparently
//   - Tabular materialization as an Arrow record
//   - CSV export compatible with CarMaker's own text exports
//   - Derived signals computed from expr expressions
//   - Writing new recordings for tests and tooling
//
// # Quick Start
//
// Open a recording and read a signal:
//
//	f, err := erg.Open("MyRun.erg")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer f.Close()
//
//	speed, err := f.Get("Car.v")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for i, ts := range speed.Timestamps {
//	    fmt.Printf("%.3f s: %.2f %s\n", ts, speed.Samples[i], speed.Unit)
//	}
//
// The schema is expected next to the binary at "<path>.info"; use
// WithInfoPath to point somewhere else.
//
// # Signals
//
// Signals returns the metadata of every addressable quantity without
// decoding anything. Get decodes one signal on first access and caches it;
// all signals of one File share the decoded "Time" axis as their timestamp
// array. Padding slots declared in the schema are skipped: they are not
// addressable and never surface as signals.
//
// # Derived Signals
//
// Append attaches a precomputed series; Derive evaluates an expression once
// per record:
//
//	kmh, err := f.Derive("Car.v_kmh", "km/h", "Car_v * 3.6")
//
// Inside expressions, dots in signal names become underscores. Derived
// signals show up in Signals, Get and Table like decoded ones, but are not
// written back to disk and are excluded from ExportCSV.
//
// # Tables and Export
//
// Table materializes the whole recording as an Arrow record with one
// float64 column per signal, units attached as field metadata. ExportCSV
// streams the decoded records to a semicolon-separated file the way
// CarMaker's own export does, with optional column prefix filtering and
// fixed-digit formatting:
//
//	err = f.ExportCSV("run.csv",
//	    erg.WithColumns("Car.", "Brake."),
//	    erg.WithDigits(4))
//
// # Data Type Conversion
//
// Every sample is widened to float64:
//
//   - Double, Float → float64
//   - LongLong, Long, Short, Char (and unsigned forms) → float64
//   - Bool → 0 or 1
//   - "N Bytes" padding → skipped
//
// 64-bit integer values beyond 2^53 lose precision in the widening;
// recorded simulation quantities do not reach that range.
//
// # Error Handling
//
// Structural problems in the info file are *infofile.FormatError. A binary
// whose size does not divide into whole records is *CorruptDataError.
// Requests for unknown or padding quantities are *UnknownSignalError, and
// invalid arguments to Append, Derive, ExportCSV or Write are
// *ValidationError. All are returned wrapped and match with errors.As.
//
// # Concurrency
//
// A File is confined to a single goroutine; it memoizes decoded columns
// without locking. Separate File instances are independent and may be used
// concurrently.
package erg
