package simreplay

import (
	"math/rand"
	"time"
)

// Sample is one deterministic IMU reading in a generated timeline, shaped
// to feed gyrocal.State.UpdateGyro/UpdateAccel directly.
type Sample struct {
	TimeNanos          int64      `json:"time_nanos"`
	Gyro               [3]float64 `json:"gyro"`
	Accel              [3]float64 `json:"accel"`
	TemperatureCelsius float64    `json:"temperature_celsius"`
}

// Generate produces a deterministic sample timeline for the scenario,
// seeded from script.Seed so the same script always reproduces the same
// samples, with no live sensor involved.
func (s *Scenario) Generate() []Sample {
	if s == nil {
		return nil
	}
	rng := rand.New(rand.NewSource(s.script.Seed))
	period := time.Duration(float64(time.Second) / s.script.SampleRateHz)

	samples := make([]Sample, 0, int(s.duration/period)+1)
	var t time.Duration
	for _, seg := range s.script.Segments {
		segEnd := t + seg.Duration.Duration()
		for t < segEnd {
			if seg.Kind != Gap {
				samples = append(samples, Sample{
					TimeNanos:          t.Nanoseconds(),
					Gyro:               noisyVector(rng, seg.GyroMean, seg.GyroNoise),
					Accel:              noisyVector(rng, seg.AccelMean, seg.AccelNoise),
					TemperatureCelsius: seg.TemperatureCelsius,
				})
			}
			t += period
		}
	}
	return samples
}

func noisyVector(rng *rand.Rand, mean, noise [3]float64) [3]float64 {
	var v [3]float64
	for i := range v {
		v[i] = mean[i] + noise[i]*(2*rng.Float64()-1)
	}
	return v
}
