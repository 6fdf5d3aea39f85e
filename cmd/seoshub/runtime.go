package main

import (
	"context"
	"fmt"
	"log"

	"seoshub/internal/apphost"
	"seoshub/internal/apps/fanctl"
	"seoshub/internal/apps/imusource"
	"seoshub/internal/config"
	"seoshub/internal/flashimage"
	"seoshub/internal/gyrocal/debugfsm"
	"seoshub/internal/hubweb"
	"seoshub/internal/i2c"
	"seoshub/internal/kernel"
	"seoshub/internal/sensors/bmp280"
	"seoshub/internal/sensors/icm20948"
	"seoshub/internal/simreplay"
)

const vendorSeoshub = 1

var (
	appIDIMUSource = flashimage.MakeAppID(vendorSeoshub, 1)
	appIDFanctl    = flashimage.MakeAppID(vendorSeoshub, 2)
)

// runtime holds the booted kernel and every long-lived resource main needs
// to close on shutdown; the teacher's liveRuntime plays the same role for
// its ADS-B/AHRS/GPS stack.
type runtime struct {
	cfg config.Config

	kernel  *kernel.Kernel
	imu     *imusource.App
	fan     *fanctl.App
	web     *hubweb.Server
	closers []func()
}

func newRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg}

	host := apphost.NewSoftHost()
	rt.kernel = kernel.New(kernel.Config{
		TaskTableCapacity: cfg.Kernel.TaskTableCapacity,
		Host:              host,
	})

	gyroReader, baroReader, err := rt.buildSensors(cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.imu = imusource.New(imusource.Config{
		Kernel:         rt.kernel,
		Gyro:           gyroReader,
		Baro:           baroReader,
		SampleInterval: cfg.Sensors.SampleInterval.Duration(),
		GyroCal:        cfg.GyroCal.ToGyrocal(),
		Debug:          debugfsm.Config{DebugEnabled: cfg.Debug},
		// rt.web is assigned below, before Boot starts the sampling
		// goroutine that would ever call this back.
		OnNewBias: func(s imusource.Snapshot) { rt.web.Broadcaster().Publish(s) },
	})
	host.RegisterInternal(appIDIMUSource, func() apphost.App { return rt.imu })

	if cfg.Fan.Enable {
		rt.fan = fanctl.New(fanctl.Config{
			Kernel:                  rt.kernel,
			Enable:                  cfg.Fan.Enable,
			PWMPin:                  cfg.Fan.PWMPin,
			TempTargetC:             cfg.Fan.TempTargetC,
			DutyMin:                 cfg.Fan.DutyMin,
			TickInterval:            cfg.Fan.TickInterval.Duration(),
			StartupFullDutyDuration: cfg.Fan.StartupFullDutyDuration.Duration(),
			StartupMinDutyDuration:  cfg.Fan.StartupMinDutyDuration.Duration(),
		})
		host.RegisterInternal(appIDFanctl, func() apphost.App { return rt.fan })
	}

	rt.web = hubweb.New(rt.kernel, rt.imu, rt.fanSource())

	rt.kernel.Boot(rt.internalAppHeaders())
	return rt, nil
}

func (rt *runtime) fanSource() hubweb.FanSource {
	if rt.fan == nil {
		return nil
	}
	return rt.fan
}

func (rt *runtime) internalAppHeaders() []flashimage.Header {
	hdrs := []flashimage.Header{
		{Magic: flashimage.Magic, FormatVersion: flashimage.FormatVersion, Marker: flashimage.MarkerInternal, AppID: appIDIMUSource, AppVersion: 1},
	}
	if rt.fan != nil {
		hdrs = append(hdrs, flashimage.Header{Magic: flashimage.Magic, FormatVersion: flashimage.FormatVersion, Marker: flashimage.MarkerInternal, AppID: appIDFanctl, AppVersion: 1})
	}
	return hdrs
}

// buildSensors resolves the gyro/baro readers imusource needs, either from
// real I2C hardware or from a simulated scenario/recording, mirroring the
// teacher's pattern of picking a live or replayed GDL90 source at startup.
func (rt *runtime) buildSensors(cfg config.Config) (imusource.GyroReader, imusource.BaroReader, error) {
	if cfg.Sim.Enable {
		return rt.buildSimSensors(cfg)
	}

	bus, err := i2c.Open(cfg.Sensors.I2CBus)
	if err != nil {
		return nil, nil, fmt.Errorf("i2c open: %w", err)
	}
	rt.closers = append(rt.closers, func() { _ = bus.Close() })

	gyroAddr := cfg.Sensors.GyroAddr
	if gyroAddr == 0 {
		gyroAddr = icm20948.DefaultAddress()
	}
	baroAddr := cfg.Sensors.BaroAddr
	if baroAddr == 0 {
		baroAddr = bmp280.DefaultAddress()
	}

	gyro, err := icm20948.New(bus.Dev(gyroAddr))
	if err != nil {
		return nil, nil, fmt.Errorf("icm20948 init: %w", err)
	}
	baro, err := bmp280.New(bus.Dev(baroAddr))
	if err != nil {
		return nil, nil, fmt.Errorf("bmp280 init: %w", err)
	}
	return gyro, baro, nil
}

func (rt *runtime) buildSimSensors(cfg config.Config) (imusource.GyroReader, imusource.BaroReader, error) {
	samples, err := loadSimSamples(cfg.Sim)
	if err != nil {
		return nil, nil, err
	}

	feed := simreplay.NewFeed(64)
	speed := cfg.Sim.Replay.Speed
	if speed <= 0 {
		speed = 1
	}
	go func() {
		defer feed.Close()
		if err := simreplay.Play(samples, speed, cfg.Sim.Replay.Loop, nil, feed.Push); err != nil {
			log.Printf("simreplay: playback stopped: %v", err)
		}
	}()

	return feed.GyroReader(), feed.BaroReader(), nil
}

// loadSimSamples resolves a sample timeline either from a prerecorded
// NDJSON file (sim.replay) or by generating one from a scenario script,
// recording it first if sim.record is also enabled.
func loadSimSamples(sim config.SimConfig) ([]simreplay.Sample, error) {
	if sim.Replay.Enable {
		return simreplay.LoadRecording(sim.Replay.Path)
	}
	if sim.ScenarioPath == "" {
		return nil, fmt.Errorf("sim.enable requires sim.scenario_path or sim.replay.path")
	}

	script, err := simreplay.LoadScenarioScript(sim.ScenarioPath)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}
	scenario, err := simreplay.NewScenario(script)
	if err != nil {
		return nil, fmt.Errorf("build scenario: %w", err)
	}
	samples := scenario.Generate()

	if sim.Record.Enable {
		rec, err := simreplay.CreateRecorder(sim.Record.Path)
		if err != nil {
			return nil, fmt.Errorf("create recording: %w", err)
		}
		for _, s := range samples {
			if err := rec.WriteSample(s); err != nil {
				_ = rec.Close()
				return nil, fmt.Errorf("write recording: %w", err)
			}
		}
		if err := rec.Close(); err != nil {
			return nil, fmt.Errorf("close recording: %w", err)
		}
	}
	return samples, nil
}

func (rt *runtime) serveWeb(ctx context.Context) error {
	return hubweb.Serve(ctx, rt.cfg.Web.ListenAddr, rt.web.Handler())
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
