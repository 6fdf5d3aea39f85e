package gyrocal

import "math"

// TemperatureTracker accumulates a running mean and min/max of the
// temperature samples seen during a stillness period, gating stability on
// their spread. Update ignores repeated identical readings so a sensor
// that only refreshes temperature occasionally doesn't skew the mean.
type TemperatureTracker struct {
	sum      float64
	count    int
	min, max float64
	last     float64
	haveLast bool
}

func (t *TemperatureTracker) Reset() {
	t.sum = 0
	t.count = 0
	t.min = math.MaxFloat64
	t.max = -math.MaxFloat64
	// A cleared haveLast makes the next Update the unconditional first
	// sample of the new period, regardless of what was last observed
	// before this reset.
	t.haveLast = false
}

func (t *TemperatureTracker) Update(celsius float64) {
	if t.haveLast && math.Abs(celsius-t.last) <= math.SmallestNonzeroFloat64 {
		return
	}
	t.last = celsius
	t.haveLast = true

	t.sum += celsius
	t.count++
	if celsius < t.min {
		t.min = celsius
	}
	if celsius > t.max {
		t.max = celsius
	}
}

// Store snapshots the running mean/min/max into the given State fields,
// leaving them untouched if no samples were accumulated.
func (t *TemperatureTracker) Store(meanOut *float64, minMaxOut *[2]float64) {
	if t.count == 0 {
		return
	}
	*meanOut = t.sum / float64(t.count)
	minMaxOut[0], minMaxOut[1] = t.min, t.max
}

// Evaluate reports whether the min/max spread exceeds limit.
func (t *TemperatureTracker) Evaluate(limitCelsius float64) bool {
	if t.count == 0 {
		return false
	}
	return (t.max - t.min) > limitCelsius
}

// GyroMeanTracker tracks the min/max of successive gyro stillness-window
// means, per axis, to gate on a stillness period whose mean has drifted.
type GyroMeanTracker struct {
	min, max [3]float64
}

func (g *GyroMeanTracker) Reset() {
	for i := range g.min {
		g.min[i] = math.MaxFloat64
		g.max[i] = -math.MaxFloat64
	}
}

func (g *GyroMeanTracker) Update(x, y, z float64) {
	v := [3]float64{x, y, z}
	for i, val := range v {
		if val < g.min[i] {
			g.min[i] = val
		}
		if val > g.max[i] {
			g.max[i] = val
		}
	}
}

// Store snapshots the current min/max window means into the given arrays.
func (g *GyroMeanTracker) Store(minOut, maxOut *[3]float64) {
	*minOut = g.min
	*maxOut = g.max
}

// Evaluate reports whether any axis's min/max spread exceeds limit.
func (g *GyroMeanTracker) Evaluate(limit float64) bool {
	for i := range g.min {
		if (g.max[i] - g.min[i]) > limit {
			return true
		}
	}
	return false
}
