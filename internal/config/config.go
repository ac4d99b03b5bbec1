package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/systolink/internal/protocol/session"
)

var ErrUnknownKey = errors.New("config: unknown key")

// SessionFile is the on-disk TOML schema. Durations are Go duration strings.
type SessionFile struct {
	Port               string   `toml:"port"`
	Baud               int      `toml:"baud"`
	ReadTimeout        string   `toml:"read_timeout"`
	Stabilize          string   `toml:"stabilize"`
	Dimension          int      `toml:"dimension"`
	Mode               string   `toml:"mode"`
	SyncPolicy         string   `toml:"sync_policy"`
	ResendTimeout      string   `toml:"resend_timeout"`
	MaxResends         int      `toml:"max_resends"`
	HandshakeTimeout   string   `toml:"handshake_timeout"`
	ReceiveIdleTimeout string   `toml:"receive_idle_timeout"`
	PollInterval       string   `toml:"poll_interval"`
	ReadyAckRepeats    int      `toml:"ready_ack_repeats"`
	ResetRepeats       int      `toml:"reset_repeats"`
	SelfTestMax        int      `toml:"self_test_max"`
	MetricsAddr        string   `toml:"metrics_addr"`
	CorsOrigins        []string `toml:"cors_origins"`
}

// Settings is a loaded file: the session config plus driver-only options.
type Settings struct {
	Session     session.Config
	MetricsAddr string
	CorsOrigins []string
}

func DefaultSettings() Settings {
	return Settings{Session: session.DefaultConfig()}
}

// LoadSessionFile applies the keys present in path on top of
// session.DefaultConfig and validates the result.
func LoadSessionFile(path string) (Settings, error) {
	var raw SessionFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Settings{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Settings{}, fmt.Errorf("%w (%s): %s", ErrUnknownKey, path, undecoded[0])
	}
	settings, err := apply(DefaultSettings(), raw, meta.IsDefined)
	if err != nil {
		return Settings{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return settings, nil
}

func apply(s Settings, raw SessionFile, defined func(...string) bool) (Settings, error) {
	cfg := &s.Session

	if defined("port") {
		cfg.Transport.Name = strings.TrimSpace(raw.Port)
	}
	if defined("baud") {
		cfg.Transport.BaudRate = raw.Baud
	}
	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"read_timeout", raw.ReadTimeout, &cfg.Transport.ReadTimeout},
		{"stabilize", raw.Stabilize, &cfg.Transport.Stabilize},
		{"resend_timeout", raw.ResendTimeout, &cfg.ResendTimeout},
		{"handshake_timeout", raw.HandshakeTimeout, &cfg.HandshakeTimeout},
		{"receive_idle_timeout", raw.ReceiveIdleTimeout, &cfg.ReceiveIdleTimeout},
		{"poll_interval", raw.PollInterval, &cfg.PollInterval},
	}
	for _, d := range durations {
		if !defined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Settings{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}
	cfg.Transport.PollInterval = cfg.PollInterval

	if defined("dimension") {
		cfg.Dimension = raw.Dimension
	}
	if defined("mode") {
		m, err := session.ParseMode(raw.Mode)
		if err != nil {
			return Settings{}, err
		}
		cfg.Mode = m
	}
	if defined("sync_policy") {
		p, err := session.ParseSyncPolicy(raw.SyncPolicy)
		if err != nil {
			return Settings{}, err
		}
		cfg.Sync = p
	}
	if defined("max_resends") {
		cfg.MaxResends = raw.MaxResends
	}
	if defined("ready_ack_repeats") {
		cfg.ReadyAckRepeats = raw.ReadyAckRepeats
	}
	if defined("reset_repeats") {
		cfg.ResetRepeats = raw.ResetRepeats
	}
	if defined("self_test_max") {
		cfg.SelfTestMax = raw.SelfTestMax
	}
	if defined("metrics_addr") {
		s.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if defined("cors_origins") {
		s.CorsOrigins = normalizeOrigins(raw.CorsOrigins)
	}

	if err := Validate(s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks the session config and, when a port is named, the
// transport config.
func Validate(s Settings) error {
	if err := s.Session.Validate(); err != nil {
		return err
	}
	if s.Session.Transport.Name == "" {
		return nil
	}
	return s.Session.Transport.Validate()
}

// FileFromSettings renders s back into the on-disk schema.
func FileFromSettings(s Settings) SessionFile {
	cfg := s.Session
	return SessionFile{
		Port:               cfg.Transport.Name,
		Baud:               cfg.Transport.BaudRate,
		ReadTimeout:        cfg.Transport.ReadTimeout.String(),
		Stabilize:          cfg.Transport.Stabilize.String(),
		Dimension:          cfg.Dimension,
		Mode:               cfg.Mode.String(),
		SyncPolicy:         cfg.Sync.String(),
		ResendTimeout:      cfg.ResendTimeout.String(),
		MaxResends:         cfg.MaxResends,
		HandshakeTimeout:   cfg.HandshakeTimeout.String(),
		ReceiveIdleTimeout: cfg.ReceiveIdleTimeout.String(),
		PollInterval:       cfg.PollInterval.String(),
		ReadyAckRepeats:    cfg.ReadyAckRepeats,
		ResetRepeats:       cfg.ResetRepeats,
		SelfTestMax:        cfg.SelfTestMax,
		MetricsAddr:        s.MetricsAddr,
		CorsOrigins:        s.CorsOrigins,
	}
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
