// Package config holds the on-disk configuration for the netplay core:
// transport ICE settings, signaling timeouts, rendezvous service options,
// and session defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/junowen-net/core/internal/util"
)

type Config struct {
	Transport  Transport  `json:"transport"`
	Signaling  Signaling  `json:"signaling"`
	Rendezvous Rendezvous `json:"rendezvous"`
	Session    Session    `json:"session"`
}

// Transport configures the WebRTC peer connection.
type Transport struct {
	STUNServer        string `json:"stun_server"`
	Protocol          string `json:"protocol"`
	DisconnectedIdle  int    `json:"disconnected_idle_seconds"`
}

// Signaling configures socket timeouts.
type Signaling struct {
	ClipboardTimeoutSec int `json:"clipboard_timeout_seconds"`
	RendezvousTimeoutSec int `json:"rendezvous_timeout_seconds"`
}

// Rendezvous configures the HTTP room service, both for a client
// talking to one and for a process hosting one.
type Rendezvous struct {
	BaseURL        string `json:"base_url"`
	ListenAddr     string `json:"listen_addr"`
	TTLSec         int    `json:"ttl_seconds"`
	KeepIntervalSec int   `json:"keep_interval_seconds"`
	StoreDriver    string `json:"store_driver"` // "json" or "sqlite"
	StorePath      string `json:"store_path"`
}

// Session configures the delayed-input queue and session defaults (C5/C6).
type Session struct {
	DefaultDelay int `json:"default_delay"`
	MaxSlack     int `json:"max_slack"`
}

func Default() Config {
	return Config{
		Transport: Transport{
			STUNServer:       "stun:stun.l.google.com:19302",
			Protocol:         "JUNOWEN/0.5",
			DisconnectedIdle: 20 * 60,
		},
		Signaling: Signaling{
			ClipboardTimeoutSec:  20 * 60,
			RendezvousTimeoutSec: 10,
		},
		Rendezvous: Rendezvous{
			BaseURL:         "",
			ListenAddr:      "127.0.0.1:8787",
			TTLSec:          10,
			KeepIntervalSec: 3,
			StoreDriver:     "json",
			StorePath:       "data/rooms.json",
		},
		Session: Session{
			DefaultDelay: 2,
			MaxSlack:     60,
		},
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Transport.STUNServer) == "" {
		return errors.New("transport.stun_server is required")
	}
	if strings.TrimSpace(c.Transport.Protocol) == "" {
		return errors.New("transport.protocol is required")
	}
	if c.Transport.DisconnectedIdle <= 0 {
		return errors.New("transport.disconnected_idle_seconds must be > 0")
	}
	if c.Signaling.ClipboardTimeoutSec <= 0 {
		return errors.New("signaling.clipboard_timeout_seconds must be > 0")
	}
	if c.Signaling.RendezvousTimeoutSec <= 0 {
		return errors.New("signaling.rendezvous_timeout_seconds must be > 0")
	}
	if c.Rendezvous.TTLSec <= 0 {
		return errors.New("rendezvous.ttl_seconds must be > 0")
	}
	if c.Rendezvous.KeepIntervalSec <= 0 || c.Rendezvous.KeepIntervalSec >= c.Rendezvous.TTLSec {
		return errors.New("rendezvous.keep_interval_seconds must be > 0 and < ttl_seconds")
	}
	switch c.Rendezvous.StoreDriver {
	case "json", "sqlite":
	default:
		return fmt.Errorf("rendezvous.store_driver must be \"json\" or \"sqlite\", got %q", c.Rendezvous.StoreDriver)
	}
	if c.Session.DefaultDelay < 0 {
		return errors.New("session.default_delay must be >= 0")
	}
	if c.Session.MaxSlack <= 0 {
		return errors.New("session.max_slack must be > 0")
	}
	return nil
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	// Start from defaults so missing JSON fields remain initialized.
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return util.WriteJSONFile(path, cfg)
}

// Ensure loads config if it exists; otherwise creates a default config file.
// Returns (cfg, createdNew, err).
func Ensure(path string) (Config, bool, error) {
	if _, err := os.Stat(path); err == nil {
		cfg, err := Load(path)
		return cfg, false, err
	} else if !os.IsNotExist(err) {
		return Config{}, false, err
	}

	cfg := Default()
	if err := Save(path, cfg); err != nil {
		return Config{}, false, fmt.Errorf("create default config: %w", err)
	}
	return cfg, true, nil
}
