package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-onewire/internal/api"
	"github.com/nerrad567/gray-logic-onewire/internal/auth"
	"github.com/nerrad567/gray-logic-onewire/internal/ds18x"
	"github.com/nerrad567/gray-logic-onewire/internal/homeassistant"
	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-onewire/internal/onewire"
	"github.com/nerrad567/gray-logic-onewire/internal/timer"
)

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

// writeConfig writes a config file and points GRAYLOGIC_CONFIG at it.
func writeConfig(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("GRAYLOGIC_CONFIG", path)
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("GRAYLOGIC_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_ValidationFailure verifies configuration errors stop startup.
func TestRun_ValidationFailure(t *testing.T) {
	writeConfig(t, `
site:
  id: test-site
onewire:
  driver: parallel-port
homeassistant:
  node_id: "bad/node"
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid driver and node id")
	}
}

// TestRun_MQTTUnavailable verifies startup fails without a broker.
// The connect attempt is bounded by the client's own timeout.
func TestRun_MQTTUnavailable(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the MQTT connect timeout")
	}

	dbPath := filepath.Join(t.TempDir(), "test.db")
	writeConfig(t, `
site:
  id: test-site
database:
  enabled: true
  path: "`+dbPath+`"
mqtt:
  broker:
    host: "127.0.0.1"
    port: 19999
    client_id: "test-client"
  reconnect:
    initial_delay: 1
    max_delay: 5
onewire:
  driver: simulated
api:
  enabled: false
logging:
  level: error
  format: text
`)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail when the broker is unreachable")
	}
}

// TestRun_SuccessfulStartupAndShutdown tests full startup against a broker.
// Requires MQTT broker at 127.0.0.1:1883.
func TestRun_SuccessfulStartupAndShutdown(t *testing.T) {
	if testing.Short() {
		t.Skip("requires an MQTT broker")
	}

	dbPath := filepath.Join(t.TempDir(), "test.db")
	writeConfig(t, `
site:
  id: test-site
database:
  enabled: true
  path: "`+dbPath+`"
mqtt:
  broker:
    host: "127.0.0.1"
    port: 1883
    client_id: "test-onewire-startup"
onewire:
  driver: simulated
  simulated:
    devices: 2
ds18x_ha:
  enable: true
  period: 5
api:
  enabled: false
logging:
  level: error
  format: text
`)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Logf("run() returned error: %v (may be due to missing MQTT broker)", err)
	}
}

// TestRunToken verifies the token subcommand mints a token the API accepts.
func TestRunToken(t *testing.T) {
	const secret = "token-command-secret-at-least-32-chars"
	writeConfig(t, `
site:
  id: test-site
api:
  auth:
    jwt_secret: "`+secret+`"
    token_ttl: 2
`)

	var out bytes.Buffer
	if err := runToken([]string{"dashboard"}, &out); err != nil {
		t.Fatalf("runToken() error = %v", err)
	}

	claims, err := auth.ParseToken(strings.TrimSpace(out.String()), secret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "dashboard" {
		t.Errorf("Subject = %q, want dashboard", claims.Subject)
	}
	if ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time); ttl != 2*time.Hour {
		t.Errorf("token lifetime = %v, want 2h", ttl)
	}
}

func TestRunToken_Errors(t *testing.T) {
	tests := []struct {
		name   string
		config string
		args   []string
	}{
		{name: "no subject", config: "site:\n  id: test-site\n", args: nil},
		{name: "extra args", config: "site:\n  id: test-site\n", args: []string{"a", "b"}},
		{name: "no secret", config: "site:\n  id: test-site\n", args: []string{"dashboard"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeConfig(t, tt.config)
			var out bytes.Buffer
			if err := runToken(tt.args, &out); err == nil {
				t.Errorf("runToken(%v) should fail", tt.args)
			}
			if out.Len() != 0 {
				t.Errorf("unexpected output %q", out.String())
			}
		})
	}
}

// TestAdvertiseAPI_NonFatal verifies mDNS problems never stop the bridge.
func TestAdvertiseAPI_NonFatal(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		addr    string
	}{
		{name: "disabled", enabled: false, addr: "127.0.0.1:8090"},
		{name: "unparseable address", enabled: true, addr: "not-an-address"},
		{name: "non-numeric port", enabled: true, addr: "127.0.0.1:http"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.API.MDNS.Enabled = tt.enabled
			cfg.HomeAssistant.NodeID = "graylogic_onewire"
			if adv := advertiseAPI(cfg, tt.addr, testLogger()); adv != nil {
				adv.Shutdown()
				t.Error("advertiseAPI() should return nil")
			}
		})
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("GRAYLOGIC_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("GRAYLOGIC_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

func TestOpenBus(t *testing.T) {
	log := testLogger()

	sim := openBus(config.OneWireConfig{
		Driver:    config.DriverSimulated,
		Simulated: config.SimulatedBusConfig{Devices: 3, Seed: 7},
	}, log)
	if sim == nil {
		t.Fatal("openBus(simulated) = nil")
	}
	sim.Lock()
	count := sim.DeviceCount()
	sim.Unlock()
	if count != 3 {
		t.Errorf("simulated DeviceCount() = %d, want 3", count)
	}

	missing := openBus(config.OneWireConfig{
		Driver:    config.DriverSysfs,
		SysfsPath: filepath.Join(t.TempDir(), "no-such-w1"),
	}, log)
	if missing != nil {
		t.Error("openBus(sysfs) with missing directory should return nil")
	}
}

func TestSensorReading(t *testing.T) {
	at := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	addr, err := onewire.ParseAddress("28FF4A1B02160348")
	if err != nil {
		t.Fatal(err)
	}

	got := sensorReading(ds18x.Record{
		Address:     addr,
		Name:        "kitchen",
		Temperature: 21.5,
		Source:      ds18x.SourceConfig,
		UpdatedAt:   at,
	})

	if got.Address != "28FF4A1B02160348" || got.Name != "kitchen" || got.Source != "config" {
		t.Errorf("sensorReading() = %+v", got)
	}
	if got.Celsius != 21.5 || !got.At.Equal(at) {
		t.Errorf("sensorReading() value = %v at %v", got.Celsius, got.At)
	}
}

// TestWireObservers runs one sampling pass over a simulated bus with the
// hub wired in and checks the reading creates and reaches its sensor.
func TestWireObservers(t *testing.T) {
	ha := homeassistant.NewRegistry(homeassistant.RegistryConfig{
		Topics: mqtt.Topics{DiscoveryPrefix: "homeassistant", NodeID: "onewire"},
	})
	bus := onewire.NewSimulatedBus(1, 1)
	timers := timer.New()

	feature, err := ds18x.Init(config.DS18xHAConfig{Enable: true, Period: 60}, ds18x.Deps{
		Bus:        bus,
		Timers:     timers,
		Automation: ha,
	})
	if err != nil || feature == nil {
		t.Fatalf("Init() = %v, %v", feature, err)
	}

	hub := api.NewHub(config.WebSocketConfig{}, testLogger())
	wireObservers(feature, nil, nil, hub)

	readings := make(chan ds18x.Record, 1)
	feature.Scheduler.AddObserver(func(rec ds18x.Record) {
		select {
		case readings <- rec:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = timers.Run(ctx) }()

	select {
	case rec := <-readings:
		if rec.Temperature == onewire.DisconnectedC {
			t.Error("observer received the disconnected sentinel")
		}
		if _, ok := ha.GetObject(rec.Name); !ok {
			t.Errorf("no automation object for %q", rec.Name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reading within 2s")
	}
}
