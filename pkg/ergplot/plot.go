// Package ergplot renders decoded ERG signals as line charts. A Renderer
// satisfies the erg.Plotter interface, so signals plot themselves:
//
//	r := ergplot.New("charts", ergplot.WithFormat("svg"))
//	speed, _ := f.Get("Car.v")
//	err := speed.Plot(r)
package ergplot

import (
	"fmt"
	"image/color"
	"log/slog"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// options holds configuration for New
type options struct {
	width  vg.Length
	height vg.Length
	format string
	logger *slog.Logger
}

// Option is a functional option for New
type Option func(*options)

// WithSize sets the chart size in inches. The default is 8x4.
func WithSize(width, height float64) Option {
	return func(o *options) {
		o.width = vg.Length(width) * vg.Inch
		o.height = vg.Length(height) * vg.Inch
	}
}

// WithFormat sets the output format: "png" (default), "svg" or "pdf".
func WithFormat(format string) Option {
	return func(o *options) {
		o.format = format
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
		width:  8 * vg.Inch,
		height: 4 * vg.Inch,
		format: "png",
		logger: slog.Default(),
	}
}

// Renderer writes one chart file per plotted signal into a directory.
type Renderer struct {
	dir  string
	opts *options
}

// New creates a renderer targeting dir. The directory must exist.
func New(dir string, opts ...Option) *Renderer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Renderer{dir: dir, opts: o}
}

// Plot renders one signal as a line chart named after the signal. The
// timestamp and sample slices must have equal length.
func (r *Renderer) Plot(name, unit string, timestamps, samples []float64) error {
	if len(timestamps) != len(samples) {
		return fmt.Errorf("plot %s: %d timestamps for %d samples", name, len(timestamps), len(samples))
	}

	xys := make(plotter.XYs, len(samples))
	for i := range samples {
		xys[i].X = timestamps[i]
		xys[i].Y = samples[i]
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return fmt.Errorf("plot %s: %w", name, err)
	}
	line.Color = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}

	p := plot.New()
	p.Title.Text = name
	p.X.Label.Text = "Time [s]"
	p.Y.Label.Text = name
	if unit != "" {
		p.Y.Label.Text = fmt.Sprintf("%s [%s]", name, unit)
	}
	p.Add(plotter.NewGrid(), line)

	out := filepath.Join(r.dir, fileName(name)+"."+r.opts.format)
	if err := p.Save(r.opts.width, r.opts.height, out); err != nil {
		return fmt.Errorf("plot %s: %w", name, err)
	}
	r.opts.logger.Debug("rendered chart", "signal", name, "file", out, "points", len(samples))
	return nil
}

// fileName maps a signal name onto a safe file name. Dots stay; anything
// outside letters, digits, '.', '-' and '_' becomes '_'.
func fileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
