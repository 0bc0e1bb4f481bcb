package erg

import "github.com/twinfer/erg-plugin/pkg/infofile"

// SignalInfo is the decode-free metadata of one signal.
type SignalInfo struct {
	Unit string
	Type infofile.TypeCode
}

// Signal is one named time series from a recording. Samples are the decoded
// values with the schema's affine scaling applied; Timestamps is the decoded
// Time quantity. Both arrays always have equal length.
//
// Signals from the same File share the Timestamps array; treat both slices
// as read-only.
type Signal struct {
	Name       string
	Unit       string
	Timestamps []float64
	Samples    []float64
}

// Len returns the number of samples.
func (s *Signal) Len() int { return len(s.Samples) }

// Plotter renders a signal. Implementations live outside this package so
// that decoding stays free of chart dependencies; pkg/ergplot provides one.
type Plotter interface {
	Plot(name, unit string, timestamps, samples []float64) error
}

// Plot hands the signal to a renderer.
func (s *Signal) Plot(p Plotter) error {
	return p.Plot(s.Name, s.Unit, s.Timestamps, s.Samples)
}
