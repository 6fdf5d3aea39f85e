package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"seoshub/internal/gyrocal"
	"seoshub/internal/yamlutil"
)

// Config is the hub's on-disk configuration: task table sizing, sensor bus
// wiring, calibration thresholds, the fan controller, the status/debug web
// surface, and simulation/replay.
type Config struct {
	Kernel  KernelConfig  `yaml:"kernel"`
	Sensors SensorsConfig `yaml:"sensors"`
	GyroCal GyroCalConfig `yaml:"gyrocal"`
	Fan     FanConfig     `yaml:"fan"`
	Web     WebConfig     `yaml:"web"`
	Sim     SimConfig     `yaml:"sim"`
	Debug   bool          `yaml:"debug"`
}

type KernelConfig struct {
	TaskTableCapacity int `yaml:"task_table_capacity"`
}

type SensorsConfig struct {
	I2CBus         string           `yaml:"i2c_bus"`
	GyroAddr       uint16           `yaml:"gyro_addr"`
	BaroAddr       uint16           `yaml:"baro_addr"`
	SampleInterval yamlutil.Duration `yaml:"sample_interval"`
}

// GyroCalConfig mirrors gyrocal.Config's tunables with yaml tags; ToGyrocal
// converts it once at startup instead of tagging gyrocal.Config directly,
// keeping the calibration package free of a config-package import.
type GyroCalConfig struct {
	MinStillDuration   yamlutil.Duration `yaml:"min_still_duration"`
	MaxStillDuration   yamlutil.Duration `yaml:"max_still_duration"`
	WindowTimeDuration yamlutil.Duration `yaml:"window_time_duration"`

	GyroVarThreshold     float64 `yaml:"gyro_var_threshold"`
	GyroConfidenceDelta  float64 `yaml:"gyro_confidence_delta"`
	AccelVarThreshold    float64 `yaml:"accel_var_threshold"`
	AccelConfidenceDelta float64 `yaml:"accel_confidence_delta"`
	MagVarThreshold      float64 `yaml:"mag_var_threshold"`
	MagConfidenceDelta   float64 `yaml:"mag_confidence_delta"`

	StillnessThreshold           float64 `yaml:"stillness_threshold"`
	StillnessMeanDeltaLimit      float64 `yaml:"stillness_mean_delta_limit"`
	TemperatureDeltaLimitCelsius float64 `yaml:"temperature_delta_limit_celsius"`

	Enable bool `yaml:"enable"`
}

// ToGyrocal builds the gyrocal.Config this hub config describes.
func (c GyroCalConfig) ToGyrocal() gyrocal.Config {
	return gyrocal.Config{
		MinStillDurationNanos:        c.MinStillDuration.Duration().Nanoseconds(),
		MaxStillDurationNanos:        c.MaxStillDuration.Duration().Nanoseconds(),
		WindowTimeDurationNanos:      c.WindowTimeDuration.Duration().Nanoseconds(),
		GyroVarThreshold:             c.GyroVarThreshold,
		GyroConfidenceDelta:          c.GyroConfidenceDelta,
		AccelVarThreshold:            c.AccelVarThreshold,
		AccelConfidenceDelta:         c.AccelConfidenceDelta,
		MagVarThreshold:              c.MagVarThreshold,
		MagConfidenceDelta:           c.MagConfidenceDelta,
		StillnessThreshold:           c.StillnessThreshold,
		StillnessMeanDeltaLimit:      c.StillnessMeanDeltaLimit,
		TemperatureDeltaLimitCelsius: c.TemperatureDeltaLimitCelsius,
		GyroCalibrationEnable:        c.Enable,
	}
}

type FanConfig struct {
	Enable                  bool              `yaml:"enable"`
	PWMPin                  int               `yaml:"pwm_pin"`
	TempTargetC             float64           `yaml:"temp_target_c"`
	DutyMin                 int               `yaml:"duty_min"`
	TickInterval            yamlutil.Duration `yaml:"tick_interval"`
	StartupFullDutyDuration yamlutil.Duration `yaml:"startup_full_duty_duration"`
	StartupMinDutyDuration  yamlutil.Duration `yaml:"startup_min_duty_duration"`
}

type WebConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

type SimConfig struct {
	Enable       bool         `yaml:"enable"`
	ScenarioPath string       `yaml:"scenario_path"`
	Record       RecordConfig `yaml:"record"`
	Replay       ReplayConfig `yaml:"replay"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

type ReplayConfig struct {
	Enable bool    `yaml:"enable"`
	Path   string  `yaml:"path"`
	Speed  float64 `yaml:"speed"`
	Loop   bool    `yaml:"loop"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if cfg.Kernel.TaskTableCapacity <= 0 {
		cfg.Kernel.TaskTableCapacity = 32
	}

	if cfg.Sensors.I2CBus == "" {
		cfg.Sensors.I2CBus = "/dev/i2c-1"
	}
	if cfg.Sensors.SampleInterval <= 0 {
		cfg.Sensors.SampleInterval = yamlutil.Duration(20 * time.Millisecond)
	}

	if cfg.GyroCal.MinStillDuration <= 0 {
		cfg.GyroCal.MinStillDuration = yamlutil.Duration(5 * time.Second)
	}
	if cfg.GyroCal.MaxStillDuration <= 0 {
		cfg.GyroCal.MaxStillDuration = yamlutil.Duration(30 * time.Second)
	}
	if cfg.GyroCal.WindowTimeDuration <= 0 {
		cfg.GyroCal.WindowTimeDuration = yamlutil.Duration(1500 * time.Millisecond)
	}
	if cfg.GyroCal.GyroVarThreshold <= 0 {
		cfg.GyroCal.GyroVarThreshold = 1.1655e-7
	}
	if cfg.GyroCal.GyroConfidenceDelta <= 0 {
		cfg.GyroCal.GyroConfidenceDelta = 1e-9
	}
	if cfg.GyroCal.AccelVarThreshold <= 0 {
		cfg.GyroCal.AccelVarThreshold = 3.0625e-3
	}
	if cfg.GyroCal.AccelConfidenceDelta <= 0 {
		cfg.GyroCal.AccelConfidenceDelta = 1e-4
	}
	if cfg.GyroCal.MagVarThreshold <= 0 {
		cfg.GyroCal.MagVarThreshold = 1.4e-4
	}
	if cfg.GyroCal.MagConfidenceDelta <= 0 {
		cfg.GyroCal.MagConfidenceDelta = 1e-5
	}
	if cfg.GyroCal.StillnessThreshold <= 0 {
		cfg.GyroCal.StillnessThreshold = 0.5
	}
	if cfg.GyroCal.StillnessMeanDeltaLimit <= 0 {
		cfg.GyroCal.StillnessMeanDeltaLimit = 1e-3
	}
	if cfg.GyroCal.TemperatureDeltaLimitCelsius <= 0 {
		cfg.GyroCal.TemperatureDeltaLimitCelsius = 0.5
	}

	if cfg.Fan.PWMPin == 0 {
		cfg.Fan.PWMPin = 18
	}
	if cfg.Fan.TempTargetC == 0 {
		cfg.Fan.TempTargetC = 50.0
	}
	if cfg.Fan.TickInterval <= 0 {
		cfg.Fan.TickInterval = yamlutil.Duration(5 * time.Second)
	}
	if cfg.Fan.StartupFullDutyDuration <= 0 {
		cfg.Fan.StartupFullDutyDuration = yamlutil.Duration(5 * time.Second)
	}
	if cfg.Fan.StartupMinDutyDuration <= 0 {
		cfg.Fan.StartupMinDutyDuration = yamlutil.Duration(10 * time.Second)
	}

	if cfg.Web.ListenAddr == "" {
		cfg.Web.ListenAddr = ":8080"
	}

	if cfg.Sim.Replay.Enable {
		if cfg.Sim.Replay.Path == "" {
			return Config{}, fmt.Errorf("sim.replay.path is required when sim.replay.enable is true")
		}
		if cfg.Sim.Replay.Speed == 0 {
			cfg.Sim.Replay.Speed = 1
		}
		if cfg.Sim.Replay.Speed < 0 {
			return Config{}, fmt.Errorf("sim.replay.speed must be > 0")
		}
	}
	if cfg.Sim.Record.Enable && cfg.Sim.Record.Path == "" {
		return Config{}, fmt.Errorf("sim.record.path is required when sim.record.enable is true")
	}
	if cfg.Sim.Record.Enable && cfg.Sim.Replay.Enable {
		return Config{}, fmt.Errorf("sim.record and sim.replay cannot both be enabled")
	}

	return cfg, nil
}
