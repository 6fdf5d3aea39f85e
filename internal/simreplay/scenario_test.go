package simreplay

import (
	"testing"
	"time"

	"seoshub/internal/yamlutil"
)

func dur(d time.Duration) yamlutil.Duration { return yamlutil.Duration(d) }

func stillnessScenario() ScenarioScript {
	return ScenarioScript{
		Version:      1,
		SampleRateHz: 100,
		Seed:         1,
		Segments: []Segment{
			{
				Kind:               Still,
				Duration:           dur(10 * time.Second),
				GyroMean:           [3]float64{0.001, 0.001, 0.001},
				GyroNoise:          [3]float64{1e-5, 1e-5, 1e-5},
				AccelMean:          [3]float64{0, 0, 9.81},
				AccelNoise:         [3]float64{1e-3, 1e-3, 1e-3},
				TemperatureCelsius: 25,
			},
		},
	}
}

func TestNewScenarioRejectsEmptySegments(t *testing.T) {
	if _, err := NewScenario(ScenarioScript{Version: 1}); err == nil {
		t.Fatal("expected an error for a scenario with no segments")
	}
}

func TestNewScenarioRejectsUnknownKind(t *testing.T) {
	script := ScenarioScript{Version: 1, Segments: []Segment{{Kind: "spin", Duration: dur(time.Second)}}}
	if _, err := NewScenario(script); err == nil {
		t.Fatal("expected an error for an unrecognized segment kind")
	}
}

func TestScenarioDurationSumsSegments(t *testing.T) {
	script := ScenarioScript{Version: 1, Segments: []Segment{
		{Kind: Still, Duration: dur(2 * time.Second)},
		{Kind: Gap, Duration: dur(3 * time.Second)},
	}}
	sc, err := NewScenario(script)
	if err != nil {
		t.Fatalf("NewScenario: %v", err)
	}
	if sc.Duration() != 5*time.Second {
		t.Fatalf("Duration = %s, want 5s", sc.Duration())
	}
}

func TestGenerateProducesExpectedSampleCountAndSkipsGaps(t *testing.T) {
	script := ScenarioScript{Version: 1, SampleRateHz: 100, Segments: []Segment{
		{Kind: Still, Duration: dur(time.Second), AccelMean: [3]float64{0, 0, 9.81}},
		{Kind: Gap, Duration: dur(250 * time.Millisecond)},
	}}
	sc, err := NewScenario(script)
	if err != nil {
		t.Fatalf("NewScenario: %v", err)
	}
	samples := sc.Generate()
	if len(samples) != 100 {
		t.Fatalf("len(samples) = %d, want 100 (gap segment contributes none)", len(samples))
	}
	if samples[0].TimeNanos != 0 {
		t.Fatalf("samples[0].TimeNanos = %d, want 0", samples[0].TimeNanos)
	}
}

func TestGenerateIsDeterministicForAFixedSeed(t *testing.T) {
	sc1, err := NewScenario(stillnessScenario())
	if err != nil {
		t.Fatalf("NewScenario: %v", err)
	}
	sc2, err := NewScenario(stillnessScenario())
	if err != nil {
		t.Fatalf("NewScenario: %v", err)
	}
	s1 := sc1.Generate()
	s2 := sc2.Generate()
	if len(s1) != len(s2) {
		t.Fatalf("sample counts differ: %d vs %d", len(s1), len(s2))
	}
	for i := range s1 {
		if s1[i] != s2[i] {
			t.Fatalf("sample %d differs between identically-seeded runs: %+v vs %+v", i, s1[i], s2[i])
		}
	}
}

func TestGenerateStaysWithinNoiseEnvelope(t *testing.T) {
	sc, err := NewScenario(stillnessScenario())
	if err != nil {
		t.Fatalf("NewScenario: %v", err)
	}
	for _, s := range sc.Generate() {
		for axis := 0; axis < 3; axis++ {
			if delta := s.Gyro[axis] - 0.001; delta < -1e-5 || delta > 1e-5 {
				t.Fatalf("gyro axis %d = %v, out of noise envelope around 0.001", axis, s.Gyro[axis])
			}
		}
	}
}
