package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-scheduler/internal/command"
)

// writeTestConfig writes a config pointing at a temp database with MQTT
// and InfluxDB disabled.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	content := `
site:
  id: test-site

database:
  path: "` + filepath.Join(dir, "test.db") + `"
  wal_mode: true
  busy_timeout: 5

scheduler:
  poll_interval: 50ms
  timezone: UTC

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stderr

api:
  host: "127.0.0.1"
  port: 0
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, "/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_InvalidPolicy verifies config validation errors stop startup.
func TestRun_InvalidPolicy(t *testing.T) {
	configPath := writeTestConfig(t)
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatal(err)
	}
	data = bytes.Replace(data, []byte("timezone: UTC"), []byte("timezone: UTC\n  invalid_due_policy: explode"), 1)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		t.Fatal(err)
	}

	err = run(context.Background(), configPath)
	if err == nil || !strings.Contains(err.Error(), "invalid_due_policy") {
		t.Fatalf("run() error = %v, want invalid_due_policy validation error", err)
	}
}

// TestRun_StartsAndStops verifies a clean shutdown on context cancellation.
func TestRun_StartsAndStops(t *testing.T) {
	configPath := writeTestConfig(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, configPath) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancellation")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out, "graylogic-scheduler dev") {
		t.Errorf("output = %q", out)
	}
}

func TestDevicesCommand(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := execute(t, "devices", "--config", configPath)
	if err != nil {
		t.Fatalf("devices error = %v", err)
	}
	for _, want := range []string{"light_1", "Front Door Lock", "locked", "22°C"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSchedulesCommands(t *testing.T) {
	configPath := writeTestConfig(t)
	ctx := context.Background()

	err := withCore(ctx, configPath, func(c *core) error {
		_, err := c.engine.SubmitLaterString(ctx, command.New("fan_1", "on", ""), "2099-03-01T08:00")
		return err
	})
	if err != nil {
		t.Fatalf("seeding schedule: %v", err)
	}

	out, err := execute(t, "schedules", "list", "--config", configPath)
	if err != nil {
		t.Fatalf("schedules list error = %v", err)
	}
	if !strings.Contains(out, "2099-03-01T08:00:00") || !strings.Contains(out, "Bedroom Fan (fan_1)") {
		t.Errorf("list output = %q", out)
	}

	out, err = execute(t, "schedules", "cancel", "1", "--config", configPath)
	if err != nil {
		t.Fatalf("schedules cancel error = %v", err)
	}
	if strings.TrimSpace(out) != "Task 1 deleted." {
		t.Errorf("cancel output = %q", out)
	}

	out, err = execute(t, "schedules", "list", "--config", configPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "fan_1") {
		t.Errorf("entry still listed after cancel:\n%s", out)
	}

	if _, err := execute(t, "schedules", "cancel", "abc", "--config", configPath); err == nil {
		t.Error("cancel with non-numeric id should fail")
	}
}
