// Command erg2csv converts IPG CarMaker ERG recordings to CSV, either one
// file from flags or a batch described by a YAML manifest:
//
//	erg2csv -in MyRun.erg -columns "Car.,Brake." -digits 4
//	erg2csv -jobs convert.yaml
//
// Manifest layout:
//
//	jobs:
//	  - in: results/run_0001.erg
//	    out: exports/run_0001.csv
//	    columns: ["Car."]
//	    digits: 4
//	  - in: results/run_0002.erg
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/twinfer/erg-plugin/pkg/erg"
)

type job struct {
	In      string   `yaml:"in"`
	Info    string   `yaml:"info"`
	Out     string   `yaml:"out"`
	Columns []string `yaml:"columns"`
	Digits  *int     `yaml:"digits"`
}

type manifest struct {
	Jobs []job `yaml:"jobs"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("erg2csv", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		in       = fs.String("in", "", "ERG file to convert")
		infoPath = fs.String("info", "", "schema path (default: <in>.info)")
		out      = fs.String("out", "", "CSV output path (default: <in> with .csv)")
		columns  = fs.String("columns", "", "comma-separated signal name prefixes to export")
		digits   = fs.Int("digits", -1, "decimal digits for non-time columns, -1 for full precision")
		jobsPath = fs.String("jobs", "", "YAML manifest with a list of conversion jobs")
		verbose  = fs.Bool("v", false, "enable debug logging")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	var list []job
	switch {
	case *jobsPath != "":
		m, err := loadManifest(*jobsPath)
		if err != nil {
			logger.Error("load manifest", "path", *jobsPath, "error", err)
			return 1
		}
		list = m.Jobs
	case *in != "":
		j := job{In: *in, Info: *infoPath, Out: *out, Columns: splitColumns(*columns)}
		if *digits >= 0 {
			j.Digits = digits
		}
		list = []job{j}
	default:
		fmt.Fprintln(stderr, "erg2csv: either -in or -jobs is required")
		fs.Usage()
		return 2
	}

	failed := 0
	for _, j := range list {
		if err := runJob(logger, j); err != nil {
			logger.Error("conversion failed", "in", j.In, "error", err)
			failed++
		}
	}
	if failed > 0 {
		logger.Error("finished with failures", "failed", failed, "total", len(list))
		return 1
	}
	return 0
}

func loadManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Jobs) == 0 {
		return nil, fmt.Errorf("manifest declares no jobs")
	}
	for i, j := range m.Jobs {
		if j.In == "" {
			return nil, fmt.Errorf("job %d has no input path", i)
		}
	}
	return &m, nil
}

func runJob(logger *slog.Logger, j job) error {
	out := j.Out
	if out == "" {
		out = strings.TrimSuffix(j.In, ".erg") + ".csv"
	}

	opts := []erg.Option{erg.WithLogger(logger)}
	if j.Info != "" {
		opts = append(opts, erg.WithInfoPath(j.Info))
	}
	f, err := erg.Open(j.In, opts...)
	if err != nil {
		return err
	}
	defer f.Close()

	var eopts []erg.ExportOption
	if len(j.Columns) > 0 {
		eopts = append(eopts, erg.WithColumns(j.Columns...))
	}
	if j.Digits != nil {
		eopts = append(eopts, erg.WithDigits(*j.Digits))
	}
	if err := f.ExportCSV(out, eopts...); err != nil {
		return err
	}
	logger.Info("converted", "in", j.In, "out", out, "rows", f.RowCount())
	return nil
}

func splitColumns(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
