package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPort is written into templates so the file is usable once edited.
const DefaultPort = "/dev/ttyUSB1"

// Template renders the default settings as TOML.
func Template() (string, error) {
	s := DefaultSettings()
	s.Session.Transport.Name = DefaultPort
	data, err := toml.Marshal(FileFromSettings(s))
	if err != nil {
		return "", fmt.Errorf("config template marshal failed: %w", err)
	}
	return "# systolink session config\n" + string(data), nil
}

func WriteTemplate(path string, overwrite bool) error {
	template, err := Template()
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}
