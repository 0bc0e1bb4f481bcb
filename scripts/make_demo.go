// Command make_demo generates a demo ERG pair for manual testing of the
// CLI tools and the Benthos input:
//
//	go run scripts/make_demo.go -out testdata/demo.erg -rows 500
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/twinfer/erg-plugin/pkg/erg"
	"github.com/twinfer/erg-plugin/pkg/infofile"
)

func main() {
	var (
		out    = flag.String("out", "demo.erg", "output path for the binary; schema goes to <out>.info")
		rows   = flag.Int("rows", 1000, "number of records")
		step   = flag.Float64("step", 0.01, "time step in seconds")
		header = flag.Bool("header", true, "emit the CM-ERG file header")
	)
	flag.Parse()

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		log.Fatal(err)
	}

	spec := erg.WriteSpec{
		Quantities: []infofile.Quantity{
			{Name: "Time", Type: infofile.Float64, Unit: "s"},
			{Name: "Car.v", Type: infofile.Float32, Unit: "m/s"},
			{Name: "Car.ax", Type: infofile.Float32, Unit: "m/s^2"},
			{Name: "Car.Yaw", Type: infofile.Float32, Unit: "rad", Factor: 0.001},
			{Name: "Brake.Pedal", Type: infofile.Float32},
			{Name: "PT.Engine.rotv", Type: infofile.Float32, Unit: "1/s"},
			{Name: "Gear", Type: infofile.Int8},
			{Name: "ABS.Active", Type: infofile.Bool},
		},
		ByteOrder: infofile.LittleEndian,
		StartTime: time.Now(),
		Header:    *header,
	}

	data := make([][]float64, *rows)
	for i := range data {
		t := float64(i) * *step
		accel := 2.5 * math.Exp(-t/8)
		speed := 2.5 * 8 * (1 - math.Exp(-t/8))
		braking := 0.0
		if int(t)%10 >= 8 {
			braking = 0.6
		}
		data[i] = []float64{
			t,
			speed,
			accel,
			0.05 * math.Sin(t/3),
			braking,
			30 + speed*3.2,
			math.Min(6, 1+math.Floor(speed/7)),
			boolSample(braking > 0.5 && speed > 15),
		}
	}

	if err := erg.Write(*out, spec, data); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("wrote %s and %s.info (%d rows)\n", *out, *out, *rows)
}

func boolSample(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
