// Package gyrocal implements an online gyroscope bias calibration engine:
// a stillness-gated estimator that watches accelerometer, gyroscope, and
// optionally magnetometer samples, detects sustained device stillness, and
// emits an updated gyroscope bias vector when a qualifying stillness
// period ends.
package gyrocal

// Config configures a State. Units follow the sensors that feed it: gyro
// in rad/sec, accel in m/sec^2, mag in micro-Tesla, durations in
// nanoseconds.
type Config struct {
	MinStillDurationNanos   int64
	MaxStillDurationNanos   int64
	WindowTimeDurationNanos int64

	InitialBiasX, InitialBiasY, InitialBiasZ float64
	InitialCalibrationTimeNanos              int64

	GyroVarThreshold, GyroConfidenceDelta   float64
	AccelVarThreshold, AccelConfidenceDelta float64
	MagVarThreshold, MagConfidenceDelta     float64

	StillnessThreshold           float64
	StillnessMeanDeltaLimit      float64
	TemperatureDeltaLimitCelsius float64

	GyroCalibrationEnable bool
}

// State is the gyro calibration state machine described in gyroCalInit and
// its update/compute/reset family. All mutation happens synchronously
// inside UpdateGyro/UpdateAccel/UpdateMag; State is not safe for
// concurrent use and is meant to be owned by a single caller (typically an
// apphost.App that feeds it from one sampling goroutine).
type State struct {
	GyroDet  StillnessDetector
	AccelDet StillnessDetector
	MagDet   StillnessDetector

	UsingMagSensor bool
	PrevStill      bool

	StartStillTimeNanos          int64
	MinStillDurationNanos        int64
	MaxStillDurationNanos        int64
	WindowTimeDurationNanos      int64
	WatchdogTimeoutDurationNanos int64
	StillnessWinEndtimeNanos     int64

	GyroWatchdogStartNanos int64
	GyroWatchdogTimeout    bool

	StillnessThreshold           float64
	StillnessMeanDeltaLimit      float64
	TemperatureDeltaLimitCelsius float64

	TempTracker TemperatureTracker
	MeanTracker GyroMeanTracker

	TemperatureMeanCelsius         float64
	TemperatureMinMaxCelsius       [2]float64
	GyroWinMeanMin, GyroWinMeanMax [3]float64

	BiasX, BiasY, BiasZ    float64
	BiasTemperatureCelsius float64
	CalibrationTimeNanos   int64
	StillnessConfidence    float64
	NewGyroCalAvailable    bool
	GyroCalibrationEnable  bool
}

// New builds a State per cfg, mirroring gyroCalInit: sub-detectors armed
// with their variance thresholds, watchdog timeout set to 2x the window
// duration, trackers reset, and the initial bias loaded from cfg as if
// recalled from persisted storage.
func New(cfg Config) *State {
	s := &State{
		GyroDet:  newVarianceDetector(cfg.GyroVarThreshold, cfg.GyroConfidenceDelta),
		AccelDet: newVarianceDetector(cfg.AccelVarThreshold, cfg.AccelConfidenceDelta),
		MagDet:   newVarianceDetector(cfg.MagVarThreshold, cfg.MagConfidenceDelta),

		MinStillDurationNanos:        cfg.MinStillDurationNanos,
		MaxStillDurationNanos:        cfg.MaxStillDurationNanos,
		WindowTimeDurationNanos:      cfg.WindowTimeDurationNanos,
		WatchdogTimeoutDurationNanos: 2 * cfg.WindowTimeDurationNanos,

		StillnessThreshold:           cfg.StillnessThreshold,
		StillnessMeanDeltaLimit:      cfg.StillnessMeanDeltaLimit,
		TemperatureDeltaLimitCelsius: cfg.TemperatureDeltaLimitCelsius,

		BiasX: cfg.InitialBiasX, BiasY: cfg.InitialBiasY, BiasZ: cfg.InitialBiasZ,
		CalibrationTimeNanos:  cfg.InitialCalibrationTimeNanos,
		GyroCalibrationEnable: cfg.GyroCalibrationEnable,
	}
	s.MeanTracker.Reset()
	s.TempTracker.Reset()
	return s
}

// UpdateGyro feeds one gyroscope sample (rad/sec) at temperatureCelsius.
func (s *State) UpdateGyro(sampleTimeNanos int64, x, y, z, temperatureCelsius float64) {
	if s.StillnessWinEndtimeNanos <= 0 {
		s.StillnessWinEndtimeNanos = sampleTimeNanos + s.WindowTimeDurationNanos
		s.GyroWatchdogStartNanos = sampleTimeNanos
	}

	s.TempTracker.Update(temperatureCelsius)
	s.GyroDet.Update(s.StillnessWinEndtimeNanos, sampleTimeNanos, x, y, z)
	s.deviceStillnessCheck(sampleTimeNanos)
}

// UpdateAccel feeds one accelerometer sample (m/sec^2).
func (s *State) UpdateAccel(sampleTimeNanos int64, x, y, z float64) {
	s.AccelDet.Update(s.StillnessWinEndtimeNanos, sampleTimeNanos, x, y, z)
	s.deviceStillnessCheck(sampleTimeNanos)
}

// UpdateMag feeds one magnetometer sample (micro-Tesla). Receiving any mag
// sample enables mag participation in the stillness gate.
func (s *State) UpdateMag(sampleTimeNanos int64, x, y, z float64) {
	s.MagDet.Update(s.StillnessWinEndtimeNanos, sampleTimeNanos, x, y, z)
	s.UsingMagSensor = true
	s.deviceStillnessCheck(sampleTimeNanos)
}
