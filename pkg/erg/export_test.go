package erg

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twinfer/erg-plugin/testutil"
)

func readCSV(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasSuffix(text, "\r\n"), "rows end in CRLF")
	return strings.Split(strings.TrimRight(text, "\r\n"), "\r\n")
}

func TestExportCSVFullPrecision(t *testing.T) {
	f := openBasic(t)
	out := filepath.Join(t.TempDir(), "run.csv")
	require.NoError(t, f.ExportCSV(out))

	lines := readCSV(t, out)
	require.Len(t, lines, 4)
	assert.Equal(t, "Time;Vhcl.v", lines[0])
	assert.Equal(t, "0;1.5", lines[1])
	assert.Equal(t, "0.01;2.5", lines[2])
	assert.Equal(t, "0.02;3.5", lines[3])
}

func TestExportCSVDigits(t *testing.T) {
	info := `File.At.1.Name = Time
File.At.1.Type = Double
File.At.2.Name = Meas
File.At.2.Type = Double
`
	times := []float64{0.123456789, 1, 2}
	meas := []float64{12.345, 0.125, 0.375}
	buf := new(bytes.Buffer)
	for i := range times {
		require.NoError(t, binary.Write(buf, binary.LittleEndian, times[i]))
		require.NoError(t, binary.Write(buf, binary.LittleEndian, meas[i]))
	}
	path := testutil.WritePair(t, t.TempDir(), "run.erg", info, buf.Bytes())
	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	out := filepath.Join(t.TempDir(), "run.csv")
	require.NoError(t, f.ExportCSV(out, WithDigits(2)))

	lines := readCSV(t, out)
	require.Len(t, lines, 4)
	// Time keeps full precision; other cells are correctly rounded with
	// ties going to the even digit.
	assert.Equal(t, "0.123456789;12.34", lines[1])
	assert.Equal(t, "1;0.12", lines[2])
	assert.Equal(t, "2;0.38", lines[3])

	require.NoError(t, f.ExportCSV(out, WithDigits(0)))
	lines = readCSV(t, out)
	assert.Equal(t, "0.123456789;12", lines[1])
}

func TestExportCSVColumnFilter(t *testing.T) {
	info := `File.At.1.Name = Time
File.At.1.Type = Double
File.At.2.Name = Car.v
File.At.2.Type = Float
File.At.3.Name = Car.ax
File.At.3.Type = Float
File.At.4.Name = Brake.p
File.At.4.Type = Float
`
	buf := new(bytes.Buffer)
	require.NoError(t, binary.Write(buf, binary.LittleEndian, 0.5))
	require.NoError(t, binary.Write(buf, binary.LittleEndian, []float32{10, 20, 30}))
	path := testutil.WritePair(t, t.TempDir(), "run.erg", info, buf.Bytes())
	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()
	outDir := t.TempDir()

	t.Run("prefix selects matching columns, Time always included", func(t *testing.T) {
		out := filepath.Join(outDir, "car.csv")
		require.NoError(t, f.ExportCSV(out, WithColumns("Car.")))
		lines := readCSV(t, out)
		assert.Equal(t, "Time;Car.v;Car.ax", lines[0])
		assert.Equal(t, "0.5;10;20", lines[1])
	})

	t.Run("multiple prefixes OR together", func(t *testing.T) {
		out := filepath.Join(outDir, "both.csv")
		require.NoError(t, f.ExportCSV(out, WithColumns("Brake.", "Car.ax")))
		lines := readCSV(t, out)
		assert.Equal(t, "Time;Car.ax;Brake.p", lines[0])
		assert.Equal(t, "0.5;20;30", lines[1])
	})

	t.Run("filter matching only Time fails without writing", func(t *testing.T) {
		out := filepath.Join(outDir, "time.csv")
		err := f.ExportCSV(out, WithColumns("Time"))
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, err.Error(), "no quantity matches")
		_, statErr := os.Stat(out)
		assert.True(t, os.IsNotExist(statErr), "no file on validation failure")
	})

	t.Run("filter matching nothing fails without writing", func(t *testing.T) {
		out := filepath.Join(outDir, "none.csv")
		err := f.ExportCSV(out, WithColumns("Nonexistent_"))
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		_, statErr := os.Stat(out)
		assert.True(t, os.IsNotExist(statErr), "no file on validation failure")
	})
}

func TestExportCSVNegativeDigits(t *testing.T) {
	f := openBasic(t)
	out := filepath.Join(t.TempDir(), "run.csv")

	err := f.ExportCSV(out, WithDigits(-2))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), "digits")
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExportCSVEmptyRecording(t *testing.T) {
	path := testutil.WritePair(t, t.TempDir(), "empty.erg", basicInfo, nil)
	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	out := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, f.ExportCSV(out))
	lines := readCSV(t, out)
	require.Len(t, lines, 1)
	assert.Equal(t, "Time;Vhcl.v", lines[0])
}
