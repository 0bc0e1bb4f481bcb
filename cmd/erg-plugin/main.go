package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/redpanda-data/benthos/v4/public/service"

	"github.com/twinfer/erg-plugin/pkg/erg"
)

// ErgInput is a Benthos input that reads an IPG CarMaker ERG recording and
// emits one structured message per record, signals keyed by name.
type ErgInput struct {
	config  ErgConfig
	logger  *service.Logger
	mFiles  *service.MetricCounter
	mRows   *service.MetricCounter
	mErrors *service.MetricCounter

	file    *erg.File
	signals []*erg.Signal // selection in declaration order, Time first
	row     int
}

// ErgConfig contains configuration parameters for the ERG input.
type ErgConfig struct {
	Path        string   `json:"path" yaml:"path"`
	InfoPath    string   `json:"info_path" yaml:"info_path"`
	Quantities  []string `json:"quantities" yaml:"quantities"`
	IncludeMeta bool     `json:"include_meta" yaml:"include_meta"`
}

func init() {
	// Register the input with Benthos
	err := service.RegisterInput(
		"carmaker_erg",
		ergInputConfig(),
		func(conf *service.ParsedConfig, mgr *service.Resources) (service.Input, error) {
			in, err := newErgInputFromConfig(conf, mgr)
			if err != nil {
				return nil, err
			}
			return service.AutoRetryNacks(in), nil
		},
	)
	if err != nil {
		panic(err)
	}
}

// ergInputConfig returns a config spec for a carmaker_erg input.
func ergInputConfig() *service.ConfigSpec {
	return service.NewConfigSpec().
		Summary("Reads an IPG CarMaker ERG result file and emits one message per record.").
		Description("Each message is a structured object mapping signal names to float64 samples. The companion .info schema describes the record layout; affine unit scaling is applied. The input finishes once every record has been emitted.").
		Field(service.NewStringField("path").
			Description("Path to the ERG binary file.").
			Example("./results/MyRun.erg")).
		Field(service.NewStringField("info_path").
			Description("Path to the .info schema. Defaults to the binary path with \".info\" appended.").
			Default("")).
		Field(service.NewStringListField("quantities").
			Description("Optional signal name prefixes to select, e.g. [\"Car.\", \"Brake.\"]. Time is always included. Empty selects every signal.").
			Default([]string{})).
		Field(service.NewBoolField("include_meta").
			Description("Attach erg_path, erg_row and erg_time metadata to each message.").
			Default(true)).
		Version("0.1.0")
}

// newErgInputFromConfig creates a new ErgInput from a parsed config.
func newErgInputFromConfig(conf *service.ParsedConfig, mgr *service.Resources) (*ErgInput, error) {
	path, err := conf.FieldString("path")
	if err != nil {
		return nil, err
	}
	infoPath, err := conf.FieldString("info_path")
	if err != nil {
		return nil, err
	}
	quantities, err := conf.FieldStringList("quantities")
	if err != nil {
		return nil, err
	}
	includeMeta, err := conf.FieldBool("include_meta")
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("erg file not found at path: %s", path)
	}

	metrics := mgr.Metrics()
	return &ErgInput{
		config: ErgConfig{
			Path:        path,
			InfoPath:    infoPath,
			Quantities:  quantities,
			IncludeMeta: includeMeta,
		},
		logger:  mgr.Logger(),
		mFiles:  metrics.NewCounter("erg_files_opened"),
		mRows:   metrics.NewCounter("erg_rows_emitted"),
		mErrors: metrics.NewCounter("erg_read_errors"),
	}, nil
}

// Connect opens the recording and decodes the selected signals.
func (e *ErgInput) Connect(ctx context.Context) error {
	var opts []erg.Option
	if e.config.InfoPath != "" {
		opts = append(opts, erg.WithInfoPath(e.config.InfoPath))
	}
	f, err := erg.Open(e.config.Path, opts...)
	if err != nil {
		e.mErrors.Incr(1)
		return fmt.Errorf("open erg file: %w", err)
	}

	names, err := selectNames(f, e.config.Quantities)
	if err != nil {
		f.Close()
		return err
	}
	signals := make([]*erg.Signal, 0, len(names))
	for _, name := range names {
		sig, err := f.Get(name)
		if err != nil {
			f.Close()
			e.mErrors.Incr(1)
			return fmt.Errorf("decode %s: %w", name, err)
		}
		signals = append(signals, sig)
	}

	e.file = f
	e.signals = signals
	e.row = 0
	e.mFiles.Incr(1)
	e.logger.Debugf("Opened ERG file %s: %d rows, %d selected signals",
		e.config.Path, f.RowCount(), len(signals))
	return nil
}

// selectNames resolves the configured prefixes against the schema, keeping
// declaration order with Time first. An empty selection is an error.
func selectNames(f *erg.File, prefixes []string) ([]string, error) {
	names := []string{"Time"}
	matched := 0
	for _, q := range f.Info().Signals() {
		if q.Name == "Time" {
			continue
		}
		if len(prefixes) > 0 && !hasAnyPrefix(q.Name, prefixes) {
			continue
		}
		names = append(names, q.Name)
		matched++
	}
	if len(prefixes) > 0 && matched == 0 {
		return nil, fmt.Errorf("no signal matches quantities prefixes %v", prefixes)
	}
	return names, nil
}

func hasAnyPrefix(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Read emits the next record, or ErrEndOfInput once the recording is done.
func (e *ErgInput) Read(ctx context.Context) (*service.Message, service.AckFunc, error) {
	if e.file == nil {
		return nil, nil, service.ErrNotConnected
	}
	if e.row >= e.file.RowCount() {
		return nil, nil, service.ErrEndOfInput
	}

	row := e.row
	e.row++

	record := make(map[string]any, len(e.signals))
	for _, sig := range e.signals {
		record[sig.Name] = sig.Samples[row]
	}

	msg := service.NewMessage(nil)
	msg.SetStructured(record)
	if e.config.IncludeMeta {
		msg.MetaSet("erg_path", e.config.Path)
		msg.MetaSet("erg_row", strconv.Itoa(row))
		msg.MetaSet("erg_time", strconv.FormatFloat(e.signals[0].Samples[row], 'g', -1, 64))
	}
	e.mRows.Incr(1)

	return msg, func(ctx context.Context, err error) error {
		return nil
	}, nil
}

// Close releases the opened recording.
func (e *ErgInput) Close(ctx context.Context) error {
	if e.file == nil {
		return nil
	}
	err := e.file.Close()
	e.file = nil
	e.signals = nil
	return err
}

func main() {
	service.RunCLI(context.Background())
}
