package gyrocal

import "math"

// StillnessDetector tracks per-axis windowed mean and variance for one
// sensor (gyro, accel, or mag) and reports a stillness confidence for the
// window once it closes. The windowed mean/variance math itself is an
// implementation detail behind this interface; gyrocal.State only depends
// on the behavior described by the method set below.
type StillnessDetector interface {
	// Update folds one sample into the current window's running statistics.
	// windowEnd is the currently armed window end-time; once sampleTime
	// reaches it, the window becomes ready for Compute.
	Update(windowEnd, sampleTime int64, x, y, z float64)

	// Compute finalizes the window's mean/variance and confidence, and
	// latches them into PrevMean/PrevConfidence for later reference.
	Compute()

	// Reset clears the window accumulator and rearms for a new window. When
	// resetStats is true it also clears the latched Prev* values and the
	// current confidence, discarding this sensor's stillness history.
	Reset(resetStats bool)

	WindowReady() bool
	WindowMean() (x, y, z float64)
	WindowVariance() (x, y, z float64)
	PrevMean() (x, y, z float64)
	PrevConfidence() float64
	Confidence() float64
	WindowStartTime() int64
	LastSampleTime() int64
}

// varianceDetector is the sole StillnessDetector implementation: a
// per-axis running mean/variance accumulator gated into a [0,1] confidence
// score by a logistic function of the worst-case axis variance.
type varianceDetector struct {
	varThreshold    float64
	confidenceDelta float64

	sumX, sumY, sumZ    float64
	sumX2, sumY2, sumZ2 float64
	count               int

	windowStartTime int64
	lastSampleTime  int64
	ready           bool

	winMeanX, winMeanY, winMeanZ float64
	winVarX, winVarY, winVarZ    float64
	confidence                   float64

	prevMeanX, prevMeanY, prevMeanZ float64
	prevConfidence                  float64
}

func newVarianceDetector(varThreshold, confidenceDelta float64) *varianceDetector {
	return &varianceDetector{varThreshold: varThreshold, confidenceDelta: confidenceDelta}
}

func (d *varianceDetector) Update(windowEnd, sampleTime int64, x, y, z float64) {
	if d.count == 0 {
		d.windowStartTime = sampleTime
	}
	d.sumX += x
	d.sumY += y
	d.sumZ += z
	d.sumX2 += x * x
	d.sumY2 += y * y
	d.sumZ2 += z * z
	d.count++
	d.lastSampleTime = sampleTime

	if sampleTime >= windowEnd {
		d.ready = true
	}
}

func (d *varianceDetector) Compute() {
	if d.count == 0 {
		return
	}
	n := float64(d.count)
	d.winMeanX, d.winMeanY, d.winMeanZ = d.sumX/n, d.sumY/n, d.sumZ/n
	d.winVarX = d.sumX2/n - d.winMeanX*d.winMeanX
	d.winVarY = d.sumY2/n - d.winMeanY*d.winMeanY
	d.winVarZ = d.sumZ2/n - d.winMeanZ*d.winMeanZ

	maxVar := math.Max(d.winVarX, math.Max(d.winVarY, d.winVarZ))
	d.confidence = stillnessConfidence(maxVar, d.varThreshold, d.confidenceDelta)

	d.prevMeanX, d.prevMeanY, d.prevMeanZ = d.winMeanX, d.winMeanY, d.winMeanZ
	d.prevConfidence = d.confidence
}

// stillnessConfidence gates a variance into [0,1] via a logistic function
// centered on threshold: confidence is 0.5 at variance==threshold, rises
// toward 1 as variance falls below it, and falls toward 0 above it. delta
// sets the width of the transition.
func stillnessConfidence(variance, threshold, delta float64) float64 {
	if delta <= 0 {
		if variance <= threshold {
			return 1
		}
		return 0
	}
	return 1 / (1 + math.Exp((variance-threshold)/delta))
}

func (d *varianceDetector) Reset(resetStats bool) {
	d.sumX, d.sumY, d.sumZ = 0, 0, 0
	d.sumX2, d.sumY2, d.sumZ2 = 0, 0, 0
	d.count = 0
	d.ready = false
	if resetStats {
		d.prevMeanX, d.prevMeanY, d.prevMeanZ = 0, 0, 0
		d.prevConfidence = 0
		d.confidence = 0
	}
}

func (d *varianceDetector) WindowReady() bool { return d.ready }

func (d *varianceDetector) WindowMean() (x, y, z float64) {
	return d.winMeanX, d.winMeanY, d.winMeanZ
}

func (d *varianceDetector) WindowVariance() (x, y, z float64) {
	return d.winVarX, d.winVarY, d.winVarZ
}

func (d *varianceDetector) PrevMean() (x, y, z float64) {
	return d.prevMeanX, d.prevMeanY, d.prevMeanZ
}

func (d *varianceDetector) PrevConfidence() float64 { return d.prevConfidence }
func (d *varianceDetector) Confidence() float64     { return d.confidence }
func (d *varianceDetector) WindowStartTime() int64  { return d.windowStartTime }
func (d *varianceDetector) LastSampleTime() int64   { return d.lastSampleTime }

var _ StillnessDetector = (*varianceDetector)(nil)
