package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/systolink/internal/protocol/session"
	"github.com/danmuck/systolink/internal/testutil/testlog"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadSessionFileOverridesDefaults(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, `
port = "/dev/ttyUSB0"
baud = 115200
dimension = 8
mode = "matrix"
sync_policy = "strict:4"
resend_timeout = "250ms"
max_resends = 3
poll_interval = "500us"
metrics_addr = ":9464"
cors_origins = ["http://localhost:3000", " "]
`)
	s, err := LoadSessionFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := s.Session
	if cfg.Transport.Name != "/dev/ttyUSB0" || cfg.Transport.BaudRate != 115200 {
		t.Fatalf("unexpected transport %+v", cfg.Transport)
	}
	if cfg.Dimension != 8 || cfg.Mode != session.ModeMatrix || cfg.Sync.Threshold != 4 {
		t.Fatalf("unexpected session %+v", cfg)
	}
	if cfg.ResendTimeout != 250*time.Millisecond || cfg.MaxResends != 3 {
		t.Fatalf("unexpected resend settings %v/%d", cfg.ResendTimeout, cfg.MaxResends)
	}
	if cfg.PollInterval != 500*time.Microsecond || cfg.Transport.PollInterval != 500*time.Microsecond {
		t.Fatalf("poll interval not propagated")
	}
	if s.MetricsAddr != ":9464" {
		t.Fatalf("metrics addr=%q", s.MetricsAddr)
	}
	if len(s.CorsOrigins) != 1 || s.CorsOrigins[0] != "http://localhost:3000" {
		t.Fatalf("cors origins=%v", s.CorsOrigins)
	}
	// Keys left out keep their defaults.
	def := session.DefaultConfig()
	if cfg.ReadyAckRepeats != def.ReadyAckRepeats || cfg.HandshakeTimeout != def.HandshakeTimeout {
		t.Fatalf("defaults not preserved")
	}
}

func TestLoadSessionFileRejectsBadInput(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"unknown key":   `port = "/dev/ttyUSB0"` + "\nbogus = 1\n",
		"bad duration":  `resend_timeout = "soon"`,
		"bad mode":      `mode = "tensor"`,
		"bad dimension": `dimension = 0`,
		"bad baud":      `port = "/dev/ttyUSB0"` + "\nbaud = 0\n",
		"syntax":        `dimension = `,
	}
	for name, body := range cases {
		if _, err := LoadSessionFile(writeFile(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	_, err := LoadSessionFile(writeFile(t, "bogus = 1\n"))
	if !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
	_, err = LoadSessionFile(writeFile(t, `sync_policy = "lenient"`))
	if !errors.Is(err, session.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if _, err := LoadSessionFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestTemplateRoundTrip(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "systolink.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Fatalf("forced overwrite: %v", err)
	}
	s, err := LoadSessionFile(path)
	if err != nil {
		t.Fatalf("template does not load: %v", err)
	}
	want := session.DefaultConfig()
	got := s.Session
	if got.Transport.Name != DefaultPort {
		t.Fatalf("template port=%q", got.Transport.Name)
	}
	if got.Dimension != want.Dimension || got.Sync != want.Sync || got.ResendTimeout != want.ResendTimeout ||
		got.MaxResends != want.MaxResends || got.SelfTestMax != want.SelfTestMax {
		t.Fatalf("template drifted from defaults: %+v", got)
	}
}
