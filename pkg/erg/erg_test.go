package erg

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twinfer/erg-plugin/testutil"
)

// Canonical two-quantity recording used across the tests:
// 12-byte rows of Time (Double) followed by Vhcl.v (Float).
const basicInfo = `#INFOFILE1.1 - Do not remove this line!
File.Format = erg
File.Version = 1
File.ByteOrder = LittleEndian
File.DateInSeconds = 1581493414
File.At.1.Name = Time
File.At.1.Type = Double
File.At.2.Name = Vhcl.v
File.At.2.Type = Float
Quantity.Time.Unit = s
Quantity.Vhcl.v.Unit = m/s
`

var (
	basicTimes  = []float64{0, 0.01, 0.02}
	basicSpeeds = []float64{1.5, 2.5, 3.5}
)

// basicBinary encodes three 12-byte records, 36 bytes total, no file header.
func basicBinary(t *testing.T) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	for i := range basicTimes {
		require.NoError(t, binary.Write(buf, binary.LittleEndian, basicTimes[i]))
		require.NoError(t, binary.Write(buf, binary.LittleEndian, float32(basicSpeeds[i])))
	}
	return buf.Bytes()
}

func openBasic(t *testing.T) *File {
	t.Helper()
	path := testutil.WritePair(t, t.TempDir(), "run.erg", basicInfo, basicBinary(t))
	f, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestOpenBasicFile(t *testing.T) {
	f := openBasic(t)

	assert.Equal(t, 3, f.RowCount())
	assert.Equal(t, 12, f.Layout().RowSize)
	assert.Equal(t, time.Unix(1581493414, 0).UTC(), f.StartTime())

	timeCol, ok := f.Layout().Column("Time")
	require.True(t, ok)
	assert.Equal(t, 0, timeCol.Offset)
	speedCol, ok := f.Layout().Column("Vhcl.v")
	require.True(t, ok)
	assert.Equal(t, 8, speedCol.Offset)
}

func TestGetSignal(t *testing.T) {
	f := openBasic(t)

	sig, err := f.Get("Vhcl.v")
	require.NoError(t, err)
	assert.Equal(t, "Vhcl.v", sig.Name)
	assert.Equal(t, "m/s", sig.Unit)
	assert.Equal(t, 3, sig.Len())
	testutil.RequireSamplesEqual(t, basicSpeeds, sig.Samples)
	testutil.RequireSamplesEqual(t, basicTimes, sig.Timestamps)

	// Second access returns the memoized signal.
	again, err := f.Get("Vhcl.v")
	require.NoError(t, err)
	assert.Same(t, sig, again)

	// The Time signal is its own timestamp axis.
	ts, err := f.Get("Time")
	require.NoError(t, err)
	testutil.RequireSamplesEqual(t, ts.Samples, ts.Timestamps)
	assert.Equal(t, "s", ts.Unit)
}

func TestGetUnknownSignal(t *testing.T) {
	f := openBasic(t)

	_, err := f.Get("Vhcl.Missing")
	var uerr *UnknownSignalError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "Vhcl.Missing", uerr.Name)
	assert.Contains(t, err.Error(), `unknown quantity "Vhcl.Missing"`)
}

func TestSignalsMetadataOnly(t *testing.T) {
	f := openBasic(t)

	infos := f.Signals()
	require.Len(t, infos, 2)
	assert.Equal(t, "m/s", infos["Vhcl.v"].Unit)
	assert.Equal(t, "s", infos["Time"].Unit)
}

func TestOpenRejectsTrailingBytes(t *testing.T) {
	// 37 bytes cannot hold a whole number of 12-byte records.
	payload := bytes.Repeat([]byte{0x5a}, 37)
	path := testutil.WritePair(t, t.TempDir(), "bad.erg", basicInfo, payload)

	_, err := Open(path)
	var cerr *CorruptDataError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 37, cerr.DataSize)
	assert.Equal(t, 12, cerr.RowSize)
	assert.Equal(t, 1, cerr.Remainder)
	assert.Contains(t, err.Error(), "1 trailing bytes")
}

func TestOpenSkipsFileHeader(t *testing.T) {
	// CarMaker prefixes recordings with a 16-byte header starting in the
	// CM-ERG magic; record counting starts after it.
	buf := new(bytes.Buffer)
	buf.WriteString("CM-ERG\x00\x00")                              // magic
	buf.Write([]byte{0x01, 0x00})                                  // version, byte order
	require.NoError(t, binary.Write(buf, binary.LittleEndian, uint16(12))) // record size
	buf.Write([]byte{0, 0, 0, 0})                                  // reserved
	buf.Write(basicBinary(t))
	path := testutil.WritePair(t, t.TempDir(), "run.erg", basicInfo, buf.Bytes())

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, 3, f.RowCount())

	sig, err := f.Get("Vhcl.v")
	require.NoError(t, err)
	testutil.RequireSamplesEqual(t, basicSpeeds, sig.Samples)
}

func TestOpenBigEndian(t *testing.T) {
	info := `File.ByteOrder = BigEndian
File.At.1.Name = Time
File.At.1.Type = Double
File.At.2.Name = Vhcl.v
File.At.2.Type = Float
`
	buf := new(bytes.Buffer)
	for i := range basicTimes {
		require.NoError(t, binary.Write(buf, binary.BigEndian, basicTimes[i]))
		require.NoError(t, binary.Write(buf, binary.BigEndian, float32(basicSpeeds[i])))
	}
	path := testutil.WritePair(t, t.TempDir(), "run.erg", info, buf.Bytes())

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	sig, err := f.Get("Vhcl.v")
	require.NoError(t, err)
	testutil.RequireSamplesEqual(t, basicSpeeds, sig.Samples)
	ts, err := f.Get("Time")
	require.NoError(t, err)
	testutil.RequireSamplesEqual(t, basicTimes, ts.Samples)
}

func TestDecodeIntegerAndBoolTypes(t *testing.T) {
	info := `File.At.1.Name = Time
File.At.1.Type = Double
File.At.2.Name = Big
File.At.2.Type = LongLong
File.At.3.Name = UBig
File.At.3.Type = ULongLong
File.At.4.Name = Counter
File.At.4.Type = ULong
File.At.5.Name = Delta
File.At.5.Type = Short
File.At.6.Name = Raw
File.At.6.Type = UChar
File.At.7.Name = Active
File.At.7.Type = Bool
`
	bools := []byte{0, 1, 255}
	buf := new(bytes.Buffer)
	for i := 0; i < 3; i++ {
		require.NoError(t, binary.Write(buf, binary.LittleEndian, float64(i)))
		require.NoError(t, binary.Write(buf, binary.LittleEndian, int64(-5000000000-i)))
		require.NoError(t, binary.Write(buf, binary.LittleEndian, uint64(1)<<40+uint64(i)))
		require.NoError(t, binary.Write(buf, binary.LittleEndian, uint32(4000000000+i)))
		require.NoError(t, binary.Write(buf, binary.LittleEndian, int16(-32000+i)))
		require.NoError(t, binary.Write(buf, binary.LittleEndian, uint8(200+i)))
		buf.WriteByte(bools[i])
	}
	path := testutil.WritePair(t, t.TempDir(), "types.erg", info, buf.Bytes())

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, 32, f.Layout().RowSize)

	expect := map[string][]float64{
		"Big":     {-5000000000, -5000000001, -5000000002},
		"UBig":    {1099511627776, 1099511627777, 1099511627778},
		"Counter": {4000000000, 4000000001, 4000000002},
		"Delta":   {-32000, -31999, -31998},
		"Raw":     {200, 201, 202},
		"Active":  {0, 1, 1}, // any non-zero byte decodes to 1
	}
	for name, want := range expect {
		sig, err := f.Get(name)
		require.NoError(t, err, name)
		testutil.RequireSamplesEqual(t, want, sig.Samples)
	}
}

func TestAffineScaling(t *testing.T) {
	info := `File.At.1.Name = Time
File.At.1.Type = Double
File.At.2.Name = Car.v
File.At.2.Type = Float
Quantity.Car.v.Unit = km/h
Quantity.Car.v.Factor = 3.6
Quantity.Car.v.Offset = 10
`
	buf := new(bytes.Buffer)
	for i, raw := range []float32{10, 20} {
		require.NoError(t, binary.Write(buf, binary.LittleEndian, float64(i)))
		require.NoError(t, binary.Write(buf, binary.LittleEndian, raw))
	}
	path := testutil.WritePair(t, t.TempDir(), "scaled.erg", info, buf.Bytes())

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	sig, err := f.Get("Car.v")
	require.NoError(t, err)
	testutil.RequireSamplesEqual(t, []float64{46, 82}, sig.Samples)
}

func TestPaddingIsNotAddressable(t *testing.T) {
	info := `File.At.1.Name = Time
File.At.1.Type = Double
File.At.2.Name =
File.At.2.Type = 4 Bytes
File.At.3.Name = Gear
File.At.3.Type = UShort
`
	buf := new(bytes.Buffer)
	for i := 0; i < 2; i++ {
		require.NoError(t, binary.Write(buf, binary.LittleEndian, float64(i)))
		buf.Write([]byte{0xde, 0xad, 0xbe, 0xef}) // padding content is ignored
		require.NoError(t, binary.Write(buf, binary.LittleEndian, uint16(3+uint16(i))))
	}
	path := testutil.WritePair(t, t.TempDir(), "pad.erg", info, buf.Bytes())

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, 14, f.Layout().RowSize)

	sig, err := f.Get("Gear")
	require.NoError(t, err)
	testutil.RequireSamplesEqual(t, []float64{3, 4}, sig.Samples)

	_, err = f.Get("_pad2")
	var uerr *UnknownSignalError
	require.ErrorAs(t, err, &uerr)

	_, listed := f.Signals()["_pad2"]
	assert.False(t, listed)
}

func TestOpenEmptyRecording(t *testing.T) {
	path := testutil.WritePair(t, t.TempDir(), "empty.erg", basicInfo, nil)

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, 0, f.RowCount())

	sig, err := f.Get("Vhcl.v")
	require.NoError(t, err)
	assert.Empty(t, sig.Samples)
	assert.Empty(t, sig.Timestamps)
}

func TestOpenWithInfoPathOption(t *testing.T) {
	dir := t.TempDir()
	infoPath := filepath.Join(dir, "layout.info")
	require.NoError(t, os.WriteFile(infoPath, []byte(basicInfo), 0o644))
	binPath := filepath.Join(dir, "capture.dat")
	require.NoError(t, os.WriteFile(binPath, basicBinary(t), 0o644))

	f, err := Open(binPath, WithInfoPath(infoPath))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, 3, f.RowCount())
	assert.Equal(t, infoPath, f.Info().Path)
}

func TestOpenMissingFiles(t *testing.T) {
	dir := t.TempDir()

	// No info file next to the binary.
	_, err := Open(filepath.Join(dir, "absent.erg"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	// Info present, binary missing.
	path := filepath.Join(dir, "orphan.erg")
	require.NoError(t, os.WriteFile(path+".info", []byte(basicInfo), 0o644))
	_, err = Open(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
