// Package config loads the engine's YAML configuration file, in the
// teacher's style (config/config.go in glennswest-ipmiserial): a struct
// of nested structs with yaml tags, defaults filled in before
// yaml.Unmarshal so an absent section still gets sane values.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"fixengine/fix"
	"fixengine/session"
)

// Config is the root of the YAML document, per SPEC_FULL.md §7.
type Config struct {
	Sessions []SessionEntry `yaml:"sessions"`
	Admin    AdminConfig    `yaml:"admin"`
	Logs     LogsConfig     `yaml:"logs"`
}

// SessionEntry configures one FIX session, matching SPEC_FULL.md §7's
// yaml shape. Every interval is in whole seconds on the wire, per
// spec.md §6's "Configuration keys consumed by the session"
// (heartbeat_interval etc. are documented as "seconds, integer").
type SessionEntry struct {
	BeginString       string    `yaml:"begin_string"`
	SenderCompID      string    `yaml:"sender_comp_id"`
	TargetCompID      string    `yaml:"target_comp_id"`
	Role              string    `yaml:"role"` // "initiator" or "acceptor"
	Address           string    `yaml:"address"`
	HeartbeatInterval int       `yaml:"heartbeat_interval"`
	LoginWaitTime     int       `yaml:"login_wait_time"`
	ConnectTimeout    int       `yaml:"connect_timeout"`
	ReconnectInterval int       `yaml:"reconnect_interval"`
	ResendMode        string    `yaml:"resend_mode"` // "FULL" or "GAPFILL"
	ResetSeqNo        bool      `yaml:"reset_seqno"`
	MessageStore      string    `yaml:"message_store"` // "file:<path>"
	StatePath         string    `yaml:"state_path"`
	WatchdogInterval  int       `yaml:"watchdog_interval"`
	TLS               TLSConfig `yaml:"tls"`
}

// TLSConfig controls whether a session wraps its transport in TLS, per
// spec.md §4.3.
type TLSConfig struct {
	Enabled bool `yaml:"enabled"`
}

// AdminConfig configures the adminapi HTTP control surface (SPEC_FULL.md
// §5.1).
type AdminConfig struct {
	Listen string `yaml:"listen"`
}

// LogsConfig configures the engine's structured-log output, in the
// teacher's style (config/config.go's LogsConfig).
type LogsConfig struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// Load reads and parses the YAML file at path, filling in defaults for
// any absent admin/logs section before unmarshalling so those sections
// are always usable even when omitted from the file, then fills each
// session entry's own defaults (login_wait_time, connect_timeout,
// reconnect_interval, watchdog_interval, resend_mode) per spec.md §6.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Admin: AdminConfig{Listen: ":8090"},
		Logs: LogsConfig{
			Path:  "./data/logs",
			Level: "info",
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	for i := range cfg.Sessions {
		cfg.Sessions[i].applyDefaults()
	}

	return cfg, nil
}

func (e *SessionEntry) applyDefaults() {
	if e.LoginWaitTime == 0 {
		e.LoginWaitTime = 30
	}
	if e.ConnectTimeout == 0 {
		e.ConnectTimeout = 30
	}
	if e.ReconnectInterval == 0 {
		e.ReconnectInterval = 5
	}
	if e.WatchdogInterval == 0 && e.HeartbeatInterval > 0 {
		e.WatchdogInterval = e.HeartbeatInterval / 2
	}
	if e.ResendMode == "" {
		e.ResendMode = "GAPFILL"
	}
}

// messageStorePath strips the "file:" scheme spec.md §6 documents for
// the message_store URL.
func (e SessionEntry) messageStorePath() string {
	const scheme = "file:"
	if len(e.MessageStore) >= len(scheme) && e.MessageStore[:len(scheme)] == scheme {
		return e.MessageStore[len(scheme):]
	}
	return e.MessageStore
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// ToSessionConfig converts a parsed SessionEntry into the
// session.Config the engine actually runs on. The address's "//" or
// "tls://" prefix is stripped to the host:port the transports dial or
// listen on; a "tls://" address also enables TLS.
func (e SessionEntry) ToSessionConfig() (session.Config, error) {
	if e.SenderCompID == "" || e.TargetCompID == "" {
		return session.Config{}, fix.NewConfigError(fmt.Sprintf("%s->%s", e.SenderCompID, e.TargetCompID), fix.ErrInvalid)
	}
	if e.Address == "" {
		return session.Config{}, fix.NewConfigError(fmt.Sprintf("%s->%s", e.SenderCompID, e.TargetCompID), fix.ErrInvalid)
	}

	role := session.RoleInitiator
	if e.Role == "acceptor" {
		role = session.RoleAcceptor
	}

	addr, useTLS := e.Address, e.TLS.Enabled
	switch {
	case strings.HasPrefix(addr, "tls://"):
		addr, useTLS = strings.TrimPrefix(addr, "tls://"), true
	case strings.HasPrefix(addr, "//"):
		addr = strings.TrimPrefix(addr, "//")
	}

	return session.Config{
		Identity: session.Identity{
			BeginString:  e.BeginString,
			SenderCompID: e.SenderCompID,
			TargetCompID: e.TargetCompID,
		},
		Role:              role,
		Address:           addr,
		HeartBtInt:        seconds(e.HeartbeatInterval),
		LoginWaitTime:     seconds(e.LoginWaitTime),
		ConnectTimeout:    seconds(e.ConnectTimeout),
		ReconnectInterval: seconds(e.ReconnectInterval),
		WatchdogInterval:  seconds(e.WatchdogInterval),
		ResendMode:        session.ParseResendMode(e.ResendMode),
		ResetSeqNo:        e.ResetSeqNo,
		MessageStorePath:  e.messageStorePath(),
		StatePath:         e.StatePath,
		TLSEnabled:        useTLS,
	}, nil
}

// ID returns the identifier this session is addressed by in the
// adminapi (/api/sessions/{id}) — its SenderCompID/TargetCompID pair.
func (e SessionEntry) ID() string {
	return e.SenderCompID + "-" + e.TargetCompID
}
