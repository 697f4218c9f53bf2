package config

import (
	"os"
	"path/filepath"
	"testing"

	"fixengine/session"
)

const sampleYAML = `
sessions:
  - begin_string: FIX.4.2
    sender_comp_id: ASIDE
    target_comp_id: BSIDE
    role: initiator
    address: "//127.0.0.1:9000"
    heartbeat_interval: 30
    resend_mode: GAPFILL
    message_store: "file:./data/asidebside.store"
    state_path: "./data/asidebside.state"
admin:
  listen: ":9090"
logs:
  path: "./data/logs"
  level: debug
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(cfg.Sessions))
	}
	s := cfg.Sessions[0]
	if s.LoginWaitTime != 30 {
		t.Errorf("expected default login_wait_time 30, got %d", s.LoginWaitTime)
	}
	if s.ConnectTimeout != 30 {
		t.Errorf("expected default connect_timeout 30, got %d", s.ConnectTimeout)
	}
	if s.ReconnectInterval != 5 {
		t.Errorf("expected default reconnect_interval 5, got %d", s.ReconnectInterval)
	}
	if s.WatchdogInterval != 15 {
		t.Errorf("expected watchdog_interval 15 (heartbeat/2), got %d", s.WatchdogInterval)
	}
	if cfg.Admin.Listen != ":9090" {
		t.Errorf("expected admin.listen from file, got %s", cfg.Admin.Listen)
	}
}

func TestLoadAdminDefaultsWhenAbsent(t *testing.T) {
	path := writeTempConfig(t, "sessions: []\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Admin.Listen != ":8090" {
		t.Errorf("expected default admin.listen :8090, got %s", cfg.Admin.Listen)
	}
	if cfg.Logs.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Logs.Level)
	}
}

func TestToSessionConfig(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	sc, err := cfg.Sessions[0].ToSessionConfig()
	if err != nil {
		t.Fatalf("ToSessionConfig: %v", err)
	}
	if sc.Role != session.RoleInitiator {
		t.Errorf("expected initiator role")
	}
	if sc.MessageStorePath != "./data/asidebside.store" {
		t.Errorf("expected file: scheme stripped, got %s", sc.MessageStorePath)
	}
	if sc.Identity.SenderCompID != "ASIDE" || sc.Identity.TargetCompID != "BSIDE" {
		t.Errorf("unexpected identity: %+v", sc.Identity)
	}
}

func TestToSessionConfigRequiresCompIDs(t *testing.T) {
	e := SessionEntry{Address: "//127.0.0.1:9000"}
	if _, err := e.ToSessionConfig(); err == nil {
		t.Fatal("expected error for missing comp ids")
	}
}
