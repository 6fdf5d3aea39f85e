// Package debugfsm implements the throttled debug reporting sequence for a
// gyrocal.State: a small state machine that walks through a fixed set of
// report sections, one per tick, gated so consecutive sections never print
// closer together than the wait interval.
package debugfsm

import "log"

// WaitInterval throttles consecutive report sections.
const WaitInterval = 300_000_000 // nanoseconds

// State names one step of the report sequence.
type State int

const (
	Idle State = iota
	Wait
	PrintOffset
	PrintStillness
	PrintSampleRateAndTemperature
	PrintGyroMinMaxStillnessMean
	PrintAccelStats
	PrintGyroStats
	PrintMagStats
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Wait:
		return "wait"
	case PrintOffset:
		return "print_offset"
	case PrintStillness:
		return "print_stillness"
	case PrintSampleRateAndTemperature:
		return "print_sample_rate_and_temperature"
	case PrintGyroMinMaxStillnessMean:
		return "print_gyro_minmax_stillness_mean"
	case PrintAccelStats:
		return "print_accel_stats"
	case PrintGyroStats:
		return "print_gyro_stats"
	case PrintMagStats:
		return "print_mag_stats"
	default:
		return "unknown"
	}
}

// DataSource supplies the values a report section prints. Implemented by
// gyrocal.State (or a snapshot of it); kept as an interface so the FSM can
// be driven and tested without a live State.
type DataSource interface {
	ReportOffset() (x, y, z, temperatureCelsius float64)
	ReportStillness() (confidence float64)
	ReportSampleRateAndTemperature() (meanCelsius float64, minMax [2]float64)
	ReportGyroMinMaxStillnessMean() (min, max [3]float64)
	ReportAccelStats() (varX, varY, varZ float64)
	ReportGyroStats() (varX, varY, varZ float64)
	ReportMagStats() (varX, varY, varZ float64, using bool)
}

// Config gates whether a Reporter ever leaves Idle, the same role
// gyrocal.Config.GyroCalibrationEnable plays for calibration itself and
// ahrs.Config.Enable plays for ahrs.Service.Start.
type Config struct {
	DebugEnabled bool
}

// Reporter drives the report sequence. Not safe for concurrent use; it is
// meant to be ticked from the same single-threaded caller that owns the
// gyrocal.State it reports on.
type Reporter struct {
	Enabled bool

	logger *log.Logger
	src    DataSource

	state         State
	next          State
	waitStartTime int64
	trigger       bool
}

// New builds a Reporter per cfg. logger defaults to log.Default() when nil.
func New(cfg Config, src DataSource, logger *log.Logger) *Reporter {
	if logger == nil {
		logger = log.Default()
	}
	return &Reporter{Enabled: cfg.DebugEnabled, src: src, logger: logger, state: Idle}
}

// Trigger arms the reporter to walk the full sequence once, starting on the
// next Tick call. A trigger received mid-sequence does not interrupt the
// running sequence: it stays armed and starts a new sequence once the
// reporter is back at Idle.
func (r *Reporter) Trigger() {
	r.trigger = true
}

// State reports the reporter's current step, mainly for tests.
func (r *Reporter) State() State { return r.state }

// Tick advances the state machine by one step, if not gated by Wait or
// Idle-without-trigger. Call it once per gyrocal.State update.
func (r *Reporter) Tick(timestampNanos int64) {
	if !r.Enabled {
		return
	}

	switch r.state {
	case Idle:
		if r.trigger {
			r.logger.Printf("gyrocal: debug report starting")
			r.trigger = false
			r.state = PrintOffset
		}

	case Wait:
		if timestampNanos >= WaitInterval+r.waitStartTime {
			r.state = r.next
		}

	case PrintOffset:
		x, y, z, t := r.src.ReportOffset()
		r.logger.Printf("gyrocal: offset x=%v y=%v z=%v temp=%vC", x, y, z, t)
		r.advance(timestampNanos, PrintStillness)

	case PrintStillness:
		conf := r.src.ReportStillness()
		r.logger.Printf("gyrocal: stillness confidence=%v", conf)
		r.advance(timestampNanos, PrintSampleRateAndTemperature)

	case PrintSampleRateAndTemperature:
		mean, minMax := r.src.ReportSampleRateAndTemperature()
		r.logger.Printf("gyrocal: temperature mean=%vC min=%vC max=%vC", mean, minMax[0], minMax[1])
		r.advance(timestampNanos, PrintGyroMinMaxStillnessMean)

	case PrintGyroMinMaxStillnessMean:
		min, max := r.src.ReportGyroMinMaxStillnessMean()
		r.logger.Printf("gyrocal: gyro stillness mean min=%v max=%v", min, max)
		r.advance(timestampNanos, PrintAccelStats)

	case PrintAccelStats:
		vx, vy, vz := r.src.ReportAccelStats()
		r.logger.Printf("gyrocal: accel variance x=%v y=%v z=%v", vx, vy, vz)
		r.advance(timestampNanos, PrintGyroStats)

	case PrintGyroStats:
		vx, vy, vz := r.src.ReportGyroStats()
		r.logger.Printf("gyrocal: gyro variance x=%v y=%v z=%v", vx, vy, vz)
		r.advance(timestampNanos, PrintMagStats)

	case PrintMagStats:
		vx, vy, vz, using := r.src.ReportMagStats()
		if using {
			r.logger.Printf("gyrocal: mag variance x=%v y=%v z=%v", vx, vy, vz)
		} else {
			r.logger.Printf("gyrocal: mag not in use")
		}
		r.advance(timestampNanos, Idle)

	default:
		r.state = Idle
	}
}

// advance starts the wait timer and records which state follows it.
func (r *Reporter) advance(timestampNanos int64, after State) {
	r.waitStartTime = timestampNanos
	r.next = after
	r.state = Wait
}
