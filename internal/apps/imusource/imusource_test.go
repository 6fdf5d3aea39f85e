package imusource

import (
	"testing"
	"time"

	"seoshub/internal/apphost"
	"seoshub/internal/gyrocal"
	"seoshub/internal/kernel"
	"seoshub/internal/sensors/icm20948"
)

type fakeGyro struct {
	sample icm20948.Sample
	err    error
}

func (f *fakeGyro) Read() (icm20948.Sample, error) { return f.sample, f.err }

type fakeBaro struct {
	tempC float64
	err   error
}

func (f *fakeBaro) Read() (float64, float64, error) { return f.tempC, 0, f.err }

func testGyroCalConfig() gyrocal.Config {
	return gyrocal.Config{
		MinStillDurationNanos:   2 * int64(time.Second),
		MaxStillDurationNanos:   10 * int64(time.Second),
		WindowTimeDurationNanos: int64(500 * time.Millisecond),
		GyroVarThreshold:        1e-6, GyroConfidenceDelta: 1e-7,
		AccelVarThreshold: 1e-4, AccelConfidenceDelta: 1e-5,
		MagVarThreshold: 1e-4, MagConfidenceDelta: 1e-5,
		StillnessThreshold:           0.5,
		StillnessMeanDeltaLimit:      1e-3,
		TemperatureDeltaLimitCelsius: 0.5,
		GyroCalibrationEnable:        true,
	}
}

func newTestKernel() *kernel.Kernel {
	return kernel.New(kernel.Config{Host: apphost.NewSoftHost()})
}

func TestSampleOnceRecordsSampleTimeInSnapshot(t *testing.T) {
	k := newTestKernel()
	a := New(Config{
		Kernel:  k,
		Gyro:    &fakeGyro{sample: icm20948.Sample{Gx: 1, Gy: 0, Gz: 0, Ax: 0, Ay: 0, Az: 1}},
		Baro:    &fakeBaro{tempC: 25},
		GyroCal: testGyroCalConfig(),
	})
	a.tid = 7

	a.sampleOnce(int64(time.Second))

	snap := a.Snapshot()
	if snap.LastSampleTimeNanos != int64(time.Second) {
		t.Fatalf("LastSampleTimeNanos = %d, want %d", snap.LastSampleTimeNanos, int64(time.Second))
	}
}

func TestSampleOnceSkipsOnGyroReadError(t *testing.T) {
	k := newTestKernel()
	a := New(Config{
		Kernel:  k,
		Gyro:    &fakeGyro{err: errTest("i2c bus fault")},
		Baro:    &fakeBaro{tempC: 25},
		GyroCal: testGyroCalConfig(),
	})

	a.sampleOnce(int64(time.Second))

	if snap := a.Snapshot(); snap.LastSampleTimeNanos != 0 {
		t.Fatalf("expected no snapshot update on gyro read failure, got %+v", snap)
	}
}

func TestSampleOnceFallsBackToLastTemperatureOnBaroError(t *testing.T) {
	k := newTestKernel()
	a := New(Config{
		Kernel:  k,
		Gyro:    &fakeGyro{},
		Baro:    &fakeBaro{tempC: 22},
		GyroCal: testGyroCalConfig(),
	})

	a.sampleOnce(int64(time.Second)) // primes lastTemp = 22
	a.cfg.Baro = &fakeBaro{err: errTest("baro read timeout")}
	a.sampleOnce(2 * int64(time.Second))

	if a.lastTemp != 22 {
		t.Fatalf("lastTemp = %v, want 22 to survive a failed read", a.lastTemp)
	}
}

func TestInitAndEndStopCleanly(t *testing.T) {
	k := newTestKernel()
	a := New(Config{
		Kernel:         k,
		Gyro:           &fakeGyro{},
		Baro:           &fakeBaro{tempC: 25},
		GyroCal:        testGyroCalConfig(),
		SampleInterval: time.Millisecond,
	})

	if err := a.Init(1); err != nil {
		t.Fatalf("Init: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	a.End()

	if snap := a.Snapshot(); snap.LastSampleTimeNanos <= 0 {
		t.Fatalf("expected at least one sample to have run before End, got %+v", snap)
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
