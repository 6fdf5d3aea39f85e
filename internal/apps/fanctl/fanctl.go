// Package fanctl is the internal app that keeps the hub's CPU cool: it
// subscribes to a periodic EvtThermalTick user event, reads the CPU
// temperature, and drives a GPIO fan line through a PID loop, with a fixed
// full-duty/min-duty startup sequence before the loop takes over.
package fanctl

import (
	"fmt"
	"math"
	"sync"
	"time"

	"seoshub/internal/apphost"
	"seoshub/internal/kernel"
)

// EvtThermalTick is broadcast on Config.TickInterval; fanctl is its only
// subscriber today but any app could react to it.
const EvtThermalTick = kernel.FirstUserEvent + 2

// fanDriver is the minimal interface fanctl needs from a fan backend.
// Declared exactly once, unconditionally; only the factory that builds one
// is build-tag gated.
type fanDriver interface {
	SetDutyPercent(p float64) error
	Close() error
}

var openFanFn = openFan

// Config configures an App.
type Config struct {
	Kernel *kernel.Kernel
	Enable bool

	// PWMPin is BCM GPIO numbering.
	PWMPin int
	// TempTargetC is the CPU temperature target in degrees C.
	TempTargetC float64
	// DutyMin is the minimum duty (0-100) to keep the fan spinning once the
	// loop decides it should run at all.
	DutyMin int
	// TickInterval controls how often EvtThermalTick fires and duty is
	// recomputed.
	TickInterval time.Duration

	StartupFullDutyDuration time.Duration
	StartupMinDutyDuration  time.Duration

	// ReadTemp defaults to ReadCPUTempC; overridable for tests.
	ReadTemp func() (float64, error)
}

// Snapshot is a point-in-time read of the controller state.
type Snapshot struct {
	Enabled      bool
	CPUValid     bool
	CPUTempC     float64
	Duty         int
	LastUpdateAt time.Time
	LastError    string
}

// App is the apphost.App implementation registered as an internal app.
type App struct {
	cfg Config
	pid *pidController

	tid       uint32
	startedAt time.Time
	lastPWM   float64

	drv fanDriver

	mu   sync.RWMutex
	snap Snapshot

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var _ apphost.App = (*App)(nil)

// New builds an App from cfg, applying the same defaults the teacher's
// fancontrol.New used.
func New(cfg Config) *App {
	if cfg.PWMPin == 0 {
		cfg.PWMPin = 18
	}
	if cfg.TempTargetC == 0 {
		cfg.TempTargetC = 50.0
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 5 * time.Second
	}
	if cfg.StartupFullDutyDuration <= 0 {
		cfg.StartupFullDutyDuration = 5 * time.Second
	}
	if cfg.StartupMinDutyDuration <= 0 {
		cfg.StartupMinDutyDuration = 10 * time.Second
	}
	if cfg.ReadTemp == nil {
		cfg.ReadTemp = ReadCPUTempC
	}

	pid := newPID(0.2, 0.2, 0.1)
	pid.SetOutputLimits(-100, 0)
	pid.Set(cfg.TempTargetC)

	return &App{cfg: cfg, pid: pid}
}

// Init opens the fan driver, subscribes to EvtThermalTick, and starts the
// goroutine that broadcasts the tick. Returning an error here rolls the
// task slot back, per apphost.App's contract, so an unsupported platform
// simply never gets a running fanctl task.
func (a *App) Init(tid uint32) error {
	a.tid = tid
	if !a.cfg.Enable {
		return nil
	}

	drv, err := openFanFn(a.cfg.PWMPin)
	if err != nil {
		a.setErr(err.Error())
		return fmt.Errorf("fanctl: %w", err)
	}
	a.drv = drv
	a.startedAt = time.Now()
	a.setState(func(sn *Snapshot) { sn.Enabled = true })

	a.cfg.Kernel.Subscribe(tid, EvtThermalTick)

	a.stopCh = make(chan struct{})
	a.wg.Add(1)
	go a.tickerLoop()
	return nil
}

// Handle runs the startup sequence and then the PID loop, both driven
// purely off EvtThermalTick deliveries; there is no separate control
// goroutine.
func (a *App) Handle(evtType uint32, data any) {
	if evtType != EvtThermalTick || a.drv == nil {
		return
	}

	elapsed := time.Since(a.startedAt)
	switch {
	case elapsed < a.cfg.StartupFullDutyDuration:
		a.applyDuty(100)
	case elapsed < a.cfg.StartupFullDutyDuration+a.cfg.StartupMinDutyDuration:
		a.applyDuty(clamp(float64(a.cfg.DutyMin), 0, 100))
	default:
		a.runPID()
	}
}

// End stops the ticker goroutine and fails the fan safe to full duty before
// releasing the driver, mirroring the teacher's safe-failover defer.
func (a *App) End() {
	if a.stopCh != nil {
		a.stopOnce.Do(func() { close(a.stopCh) })
	}
	a.wg.Wait()
	if a.drv != nil {
		_ = a.drv.SetDutyPercent(100)
		_ = a.drv.Close()
	}
}

// Snapshot returns the most recently observed controller state.
func (a *App) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snap
}

func (a *App) tickerLoop() {
	defer a.wg.Done()
	t := time.NewTicker(a.cfg.TickInterval)
	defer t.Stop()
	for {
		select {
		case <-a.stopCh:
			return
		case <-t.C:
			a.cfg.Kernel.Enqueue(EvtThermalTick, nil, nil)
		}
	}
}

func (a *App) runPID() {
	cpuC, err := a.cfg.ReadTemp()
	if err != nil {
		a.setState(func(sn *Snapshot) {
			sn.CPUValid = false
			sn.LastError = err.Error()
		})
		a.applyDuty(100)
		return
	}

	pidOut := -a.pid.UpdateDuration(cpuC, a.cfg.TickInterval)
	var duty float64
	if pidOut > 5.0 || a.lastPWM != 0.0 {
		a.lastPWM = pidOut
		duty = pidOut
	} else {
		a.lastPWM = 0
		duty = 1
	}

	mappedMin := clamp(float64(a.cfg.DutyMin), 0, 100)
	duty = clamp(duty, 0, 100)
	if duty > 0 {
		duty = mappedMin + duty*(100-mappedMin)/100
	}
	duty = clamp(duty, 0, 100)

	if err := a.drv.SetDutyPercent(duty); err != nil {
		a.setState(func(sn *Snapshot) { sn.LastError = fmt.Sprintf("fanctl: set duty failed: %v", err) })
		return
	}
	a.setState(func(sn *Snapshot) {
		sn.CPUValid = true
		sn.CPUTempC = cpuC
		sn.Duty = int(math.Round(duty))
		sn.LastError = ""
	})
}

func (a *App) applyDuty(v float64) {
	if err := a.drv.SetDutyPercent(v); err != nil {
		a.setState(func(sn *Snapshot) { sn.LastError = fmt.Sprintf("fanctl: set duty failed: %v", err) })
		return
	}
	a.setState(func(sn *Snapshot) { sn.Duty = int(math.Round(v)) })
}

func (a *App) setErr(msg string) {
	a.setState(func(sn *Snapshot) { sn.LastError = msg })
}

func (a *App) setState(update func(*Snapshot)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	update(&a.snap)
	a.snap.LastUpdateAt = time.Now().UTC()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
