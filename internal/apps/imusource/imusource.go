// Package imusource is the internal app that bridges the icm20948/bmp280
// drivers into the kernel: it owns a gyrocal.State, samples both sensors on
// a fixed period, drives the calibration state machine, and broadcasts
// each bias-corrected sample as a kernel event for any subscribed app to
// consume.
package imusource

import (
	"log"
	"math"
	"sync"
	"time"

	"seoshub/internal/apphost"
	"seoshub/internal/gyrocal"
	"seoshub/internal/gyrocal/debugfsm"
	"seoshub/internal/kernel"
	"seoshub/internal/sensors/icm20948"
)

// EvtSample is broadcast once per sampling period with a Sample payload.
const EvtSample = kernel.FirstUserEvent + 1

const (
	degToRad          = math.Pi / 180
	standardGravityMS = 9.80665
)

// GyroReader is satisfied by *icm20948.Device; narrowed to an interface so
// tests can drive App without real hardware.
type GyroReader interface {
	Read() (icm20948.Sample, error)
}

// BaroReader is satisfied by *bmp280.Device.
type BaroReader interface {
	Read() (tempC, pressPa float64, err error)
}

// Config configures an App.
type Config struct {
	Kernel *kernel.Kernel
	Gyro   GyroReader
	Baro   BaroReader

	SampleInterval time.Duration
	GyroCal        gyrocal.Config
	Debug          debugfsm.Config

	// OnNewBias, if set, is called synchronously from the sampling
	// goroutine each time gyrocal produces a fresh calibration (used by
	// internal/hubweb's SSE broadcaster).
	OnNewBias func(Snapshot)

	Logger *log.Logger
}

// Sample is one bias-corrected IMU reading, broadcast to subscribers.
type Sample struct {
	TimestampNanos         int64
	GyroX, GyroY, GyroZ    float64 // rad/sec, bias removed
	AccelX, AccelY, AccelZ float64 // m/sec^2
	TemperatureCelsius     float64
}

// Snapshot is a point-in-time read of the calibration state, safe to poll
// from another goroutine (internal/hubweb's status endpoint).
type Snapshot struct {
	BiasX, BiasY, BiasZ    float64
	BiasTemperatureCelsius float64
	CalibrationTimeNanos   int64
	StillnessConfidence    float64
	WatchdogFaults         uint64
	LastSampleTimeNanos    int64
}

// App is the apphost.App implementation registered as an internal app.
// Everything but Snapshot must only be touched from the run goroutine.
type App struct {
	cfg    Config
	cal    *gyrocal.State
	report *debugfsm.Reporter
	logger *log.Logger

	tid      uint32
	start    time.Time
	lastTemp float64

	mu   sync.RWMutex
	snap Snapshot

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var _ apphost.App = (*App)(nil)

// New builds an App from cfg. The gyrocal.State and debug reporter are
// constructed here so Snapshot is valid even before Init runs.
func New(cfg Config) *App {
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 20 * time.Millisecond // 50Hz, matching icm20948's configured ODR
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	a := &App{
		cfg:    cfg,
		cal:    gyrocal.New(cfg.GyroCal),
		logger: cfg.Logger,
	}
	a.report = debugfsm.New(cfg.Debug, a.cal, cfg.Logger)
	return a
}

// Init starts the sampling goroutine. tid is used to attribute broadcast
// events to this app for the free-event callback path.
func (a *App) Init(tid uint32) error {
	a.tid = tid
	a.start = time.Now()
	a.stopCh = make(chan struct{})
	a.wg.Add(1)
	go a.run()
	return nil
}

// Handle is a no-op: imusource produces events, it does not subscribe to
// any.
func (a *App) Handle(evtType uint32, data any) {}

// End stops the sampling goroutine and waits for it to exit.
func (a *App) End() {
	a.stopOnce.Do(func() { close(a.stopCh) })
	a.wg.Wait()
}

// Snapshot returns the most recently observed calibration state.
func (a *App) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snap
}

func (a *App) run() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case tick := <-ticker.C:
			a.sampleOnce(tick.Sub(a.start).Nanoseconds())
		}
	}
}

func (a *App) sampleOnce(sampleTimeNanos int64) {
	imu, err := a.cfg.Gyro.Read()
	if err != nil {
		a.logger.Printf("imusource: gyro read failed: %v", err)
		return
	}

	tempC, _, err := a.cfg.Baro.Read()
	if err != nil {
		tempC = a.lastTemp
	} else {
		a.lastTemp = tempC
	}

	gx, gy, gz := imu.Gx*degToRad, imu.Gy*degToRad, imu.Gz*degToRad
	ax, ay, az := imu.Ax*standardGravityMS, imu.Ay*standardGravityMS, imu.Az*standardGravityMS

	a.cal.UpdateGyro(sampleTimeNanos, gx, gy, gz, tempC)
	a.cal.UpdateAccel(sampleTimeNanos, ax, ay, az)
	a.report.Tick(sampleTimeNanos)

	bgx, bgy, bgz := a.cal.RemoveBias(gx, gy, gz)
	a.cfg.Kernel.EnqueueAsApp(EvtSample, Sample{
		TimestampNanos:     sampleTimeNanos,
		GyroX:              bgx,
		GyroY:              bgy,
		GyroZ:              bgz,
		AccelX:             ax,
		AccelY:             ay,
		AccelZ:             az,
		TemperatureCelsius: tempC,
	}, a.tid)

	a.updateSnapshot(sampleTimeNanos)
}

func (a *App) updateSnapshot(sampleTimeNanos int64) {
	a.mu.Lock()
	a.snap.LastSampleTimeNanos = sampleTimeNanos
	if a.cal.GyroWatchdogTimeout {
		a.snap.WatchdogFaults++
		a.cal.GyroWatchdogTimeout = false
	}
	freshBias := a.cal.NewBiasAvailable()
	if freshBias {
		bx, by, bz, bt := a.cal.GetBias()
		a.snap.BiasX, a.snap.BiasY, a.snap.BiasZ = bx, by, bz
		a.snap.BiasTemperatureCelsius = bt
		a.snap.CalibrationTimeNanos = a.cal.CalibrationTimeNanos
		a.snap.StillnessConfidence = a.cal.StillnessConfidence
	}
	snap := a.snap
	a.mu.Unlock()

	if freshBias {
		a.report.Trigger()
		if a.cfg.OnNewBias != nil {
			a.cfg.OnNewBias(snap)
		}
	}
}
