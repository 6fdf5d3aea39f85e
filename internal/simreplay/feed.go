package simreplay

import (
	"io"
	"math"
	"sync"

	"seoshub/internal/sensors/icm20948"
)

const (
	radToDeg = 180 / math.Pi
	gPerMS2  = 1 / 9.80665
)

// Feed turns a played-back Sample timeline into the two narrow reader
// interfaces internal/apps/imusource depends on, so a recorded or
// generated scenario can drive the full calibration pipeline the same way
// real hardware does — Init a Feed, hand its GyroReader/BaroReader out to
// imusource.Config, then run Play against the Feed's Push method.
type Feed struct {
	ch chan Sample

	mu   sync.Mutex
	last Sample
	have bool
}

// NewFeed creates a Feed with the given channel buffer depth.
func NewFeed(buffer int) *Feed {
	if buffer <= 0 {
		buffer = 1
	}
	return &Feed{ch: make(chan Sample, buffer)}
}

// Push enqueues s for delivery to the GyroReader side. It is meant to be
// used as Play's callback.
func (f *Feed) Push(s Sample) error {
	f.ch <- s
	return nil
}

// Close signals no further samples are coming; a pending or future
// GyroReader.Read returns io.EOF once the buffered samples are drained.
func (f *Feed) Close() { close(f.ch) }

func (f *Feed) next() (Sample, bool) {
	s, ok := <-f.ch
	if ok {
		f.mu.Lock()
		f.last, f.have = s, true
		f.mu.Unlock()
	}
	return s, ok
}

// GyroReader returns the imusource.GyroReader view of f.
func (f *Feed) GyroReader() *gyroFeed { return &gyroFeed{f} }

// BaroReader returns the imusource.BaroReader view of f.
func (f *Feed) BaroReader() *baroFeed { return &baroFeed{f} }

type gyroFeed struct{ f *Feed }

// Read blocks for the next pushed sample and converts it into the units
// icm20948.Sample reports natively (deg/s, G), mirroring how imusource
// converts real hardware readings back the other way.
func (g *gyroFeed) Read() (icm20948.Sample, error) {
	s, ok := g.f.next()
	if !ok {
		return icm20948.Sample{}, io.EOF
	}
	return icm20948.Sample{
		Ax: s.Accel[0] * gPerMS2,
		Ay: s.Accel[1] * gPerMS2,
		Az: s.Accel[2] * gPerMS2,
		Gx: s.Gyro[0] * radToDeg,
		Gy: s.Gyro[1] * radToDeg,
		Gz: s.Gyro[2] * radToDeg,
	}, nil
}

type baroFeed struct{ f *Feed }

// Read returns the temperature of the most recently delivered gyro sample;
// scenario segments carry a single temperature field rather than a
// separate pressure reading.
func (b *baroFeed) Read() (tempC, pressPa float64, err error) {
	b.f.mu.Lock()
	defer b.f.mu.Unlock()
	if !b.f.have {
		return 0, 0, io.EOF
	}
	return b.f.last.TemperatureCelsius, 0, nil
}
