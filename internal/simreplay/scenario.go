// Package simreplay generates deterministic IMU sample timelines from a
// still/motion scenario script, and can record/replay a captured timeline
// to/from a newline-delimited JSON file. It is the sensor-domain analog of
// the teacher's scenario simulator and GDL90 log recorder: same shape
// (yaml script in, deterministic timeline out; NDJSON record/replay), new
// domain.
package simreplay

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"seoshub/internal/yamlutil"
)

// SegmentKind names a scenario segment's motion character.
type SegmentKind string

const (
	// Still segments hold the device motionless: constant gyro/accel means
	// with small noise, exactly the stillness scenarios spec.md describes.
	Still SegmentKind = "still"
	// Motion segments carry a nonzero gyro/accel mean, exercising the
	// stillness gate's rejection path.
	Motion SegmentKind = "motion"
	// Gap segments emit no samples at all, for reproducing watchdog-timeout
	// scenarios.
	Gap SegmentKind = "gap"
)

// Segment describes one leg of a scenario timeline.
type Segment struct {
	Kind     SegmentKind       `yaml:"kind"`
	Duration yamlutil.Duration `yaml:"duration"`

	GyroMean  [3]float64 `yaml:"gyro_mean"`
	GyroNoise [3]float64 `yaml:"gyro_noise"`

	AccelMean  [3]float64 `yaml:"accel_mean"`
	AccelNoise [3]float64 `yaml:"accel_noise"`

	TemperatureCelsius float64 `yaml:"temperature_celsius"`
}

// ScenarioScript is the YAML-unmarshaled scenario description, following
// config.SimConfig's plain-nested-struct shape.
type ScenarioScript struct {
	Version      int       `yaml:"version"`
	SampleRateHz float64   `yaml:"sample_rate_hz"`
	Seed         int64     `yaml:"seed"`
	Segments     []Segment `yaml:"segments"`
}

// Scenario is the validated, runtime representation of a ScenarioScript.
type Scenario struct {
	script   ScenarioScript
	duration time.Duration
}

// LoadScenarioScript reads and unmarshals a YAML scenario script from path.
func LoadScenarioScript(path string) (ScenarioScript, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ScenarioScript{}, err
	}
	return ParseScenarioScriptYAML(b)
}

// ParseScenarioScriptYAML parses a YAML scenario script.
func ParseScenarioScriptYAML(b []byte) (ScenarioScript, error) {
	var s ScenarioScript
	if err := yaml.Unmarshal(b, &s); err != nil {
		return ScenarioScript{}, err
	}
	return s, nil
}

// NewScenario validates script and returns a runtime Scenario.
func NewScenario(script ScenarioScript) (*Scenario, error) {
	if script.Version == 0 {
		script.Version = 1
	}
	if script.Version != 1 {
		return nil, fmt.Errorf("unsupported scenario version %d", script.Version)
	}
	if script.SampleRateHz <= 0 {
		script.SampleRateHz = 100
	}
	if len(script.Segments) == 0 {
		return nil, fmt.Errorf("segments is required")
	}

	var dur time.Duration
	for i, seg := range script.Segments {
		if seg.Duration <= 0 {
			return nil, fmt.Errorf("segments[%d].duration must be > 0", i)
		}
		switch seg.Kind {
		case Still, Motion, Gap:
		default:
			return nil, fmt.Errorf("segments[%d].kind %q is not still, motion, or gap", i, seg.Kind)
		}
		dur += seg.Duration.Duration()
	}

	return &Scenario{script: script, duration: dur}, nil
}

// Duration returns the total scenario length across all segments.
func (s *Scenario) Duration() time.Duration {
	if s == nil {
		return 0
	}
	return s.duration
}
