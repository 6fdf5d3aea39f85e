package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"seoshub/internal/config"
	"seoshub/internal/yamlutil"
)

func writeScenario(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "scenario.yaml")
	body := `
version: 1
sample_rate_hz: 100
seed: 7
segments:
  - kind: still
    duration: 200ms
    gyro_mean: [0.001, 0.001, 0.001]
    gyro_noise: [0.00001, 0.00001, 0.00001]
    accel_mean: [0, 0, 9.81]
    accel_noise: [0.001, 0.001, 0.001]
    temperature_celsius: 25
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestNewRuntimeBootsIMUSourceUnderSimulation(t *testing.T) {
	dir := t.TempDir()
	scenarioPath := writeScenario(t, dir)

	cfg := config.Config{}
	cfg.Kernel.TaskTableCapacity = 8
	cfg.Sensors.SampleInterval = yamlutil.Duration(time.Millisecond)
	cfg.Sim.Enable = true
	cfg.Sim.ScenarioPath = scenarioPath
	cfg.Web.ListenAddr = "127.0.0.1:0"

	rt, err := newRuntime(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newRuntime: %v", err)
	}
	defer rt.Close()

	if rt.kernel.TaskCount() != 1 {
		t.Fatalf("TaskCount = %d, want 1 (imusource only, fan disabled)", rt.kernel.TaskCount())
	}

	srv := httptest.NewServer(rt.web.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var payload struct {
		Service string `json:"service"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Service != "seoshub" {
		t.Fatalf("service = %q, want seoshub", payload.Service)
	}
}

func TestNewRuntimeRejectsSimWithoutScenarioOrReplay(t *testing.T) {
	cfg := config.Config{}
	cfg.Kernel.TaskTableCapacity = 8
	cfg.Sensors.SampleInterval = yamlutil.Duration(time.Millisecond)
	cfg.Sim.Enable = true

	if _, err := newRuntime(context.Background(), cfg); err == nil {
		t.Fatal("expected an error when sim is enabled with no scenario_path or replay.path")
	}
}
