package fanctl

import (
	"fmt"
	"testing"
	"time"

	"seoshub/internal/apphost"
	"seoshub/internal/kernel"
)

type fakeFan struct {
	duty   float64
	setErr error
	closed bool
}

func (f *fakeFan) SetDutyPercent(p float64) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.duty = p
	return nil
}

func (f *fakeFan) Close() error {
	f.closed = true
	return nil
}

func newTestKernel() *kernel.Kernel {
	return kernel.New(kernel.Config{Host: apphost.NewSoftHost()})
}

func withFakeFan(t *testing.T, drv *fakeFan) {
	t.Helper()
	prev := openFanFn
	openFanFn = func(pin int) (fanDriver, error) { return drv, nil }
	t.Cleanup(func() { openFanFn = prev })
}

func TestInitDisabledSkipsDriverEntirely(t *testing.T) {
	a := New(Config{Kernel: newTestKernel(), Enable: false})
	if err := a.Init(1); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if a.drv != nil {
		t.Fatal("expected no driver opened when disabled")
	}
	a.End()
}

func TestInitFailsWhenDriverUnavailable(t *testing.T) {
	prev := openFanFn
	openFanFn = func(pin int) (fanDriver, error) { return nil, fmt.Errorf("no gpio") }
	t.Cleanup(func() { openFanFn = prev })

	a := New(Config{Kernel: newTestKernel(), Enable: true})
	if err := a.Init(1); err == nil {
		t.Fatal("expected Init to fail when the driver cannot be opened")
	}
	if snap := a.Snapshot(); snap.LastError == "" {
		t.Fatal("expected LastError to be recorded")
	}
}

func TestHandleStartupSequenceRunsFullThenMinDuty(t *testing.T) {
	drv := &fakeFan{}
	withFakeFan(t, drv)

	a := New(Config{
		Kernel:                  newTestKernel(),
		Enable:                  true,
		DutyMin:                 20,
		StartupFullDutyDuration: 10 * time.Millisecond,
		StartupMinDutyDuration:  10 * time.Millisecond,
	})
	if err := a.Init(1); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer a.End()

	a.Handle(EvtThermalTick, nil)
	if drv.duty != 100 {
		t.Fatalf("duty = %v, want 100 during startup full-duty phase", drv.duty)
	}

	a.startedAt = time.Now().Add(-15 * time.Millisecond)
	a.Handle(EvtThermalTick, nil)
	if drv.duty != 20 {
		t.Fatalf("duty = %v, want DutyMin=20 during startup min-duty phase", drv.duty)
	}
}

func TestHandleRunsPIDAfterStartupCompletes(t *testing.T) {
	drv := &fakeFan{}
	withFakeFan(t, drv)

	a := New(Config{
		Kernel:                  newTestKernel(),
		Enable:                  true,
		TempTargetC:             50,
		DutyMin:                 10,
		TickInterval:            time.Second,
		StartupFullDutyDuration: time.Millisecond,
		StartupMinDutyDuration:  time.Millisecond,
		ReadTemp:                func() (float64, error) { return 80, nil },
	})
	if err := a.Init(1); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer a.End()

	a.startedAt = time.Now().Add(-time.Hour)
	a.Handle(EvtThermalTick, nil)

	snap := a.Snapshot()
	if !snap.CPUValid {
		t.Fatal("expected CPUValid after a successful PID tick")
	}
	if snap.CPUTempC != 80 {
		t.Fatalf("CPUTempC = %v, want 80", snap.CPUTempC)
	}
	if snap.Duty <= 0 {
		t.Fatalf("duty = %v, want > 0 for a CPU well above target", snap.Duty)
	}
}

func TestHandleFailsSafeToFullDutyOnTempReadError(t *testing.T) {
	drv := &fakeFan{}
	withFakeFan(t, drv)

	a := New(Config{
		Kernel:                  newTestKernel(),
		Enable:                  true,
		StartupFullDutyDuration: time.Millisecond,
		StartupMinDutyDuration:  time.Millisecond,
		ReadTemp:                func() (float64, error) { return 0, fmt.Errorf("thermal zone unavailable") },
	})
	if err := a.Init(1); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer a.End()

	a.startedAt = time.Now().Add(-time.Hour)
	a.Handle(EvtThermalTick, nil)

	if drv.duty != 100 {
		t.Fatalf("duty = %v, want fail-safe 100 on temperature read error", drv.duty)
	}
	if snap := a.Snapshot(); snap.CPUValid {
		t.Fatal("expected CPUValid=false after a temperature read error")
	}
}

func TestEndSetsFullDutyAndClosesDriver(t *testing.T) {
	drv := &fakeFan{}
	withFakeFan(t, drv)

	a := New(Config{Kernel: newTestKernel(), Enable: true})
	if err := a.Init(1); err != nil {
		t.Fatalf("Init: %v", err)
	}

	a.End()

	if drv.duty != 100 {
		t.Fatalf("duty on End = %v, want fail-safe 100", drv.duty)
	}
	if !drv.closed {
		t.Fatal("expected driver to be closed on End")
	}
}
