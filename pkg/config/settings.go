package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"spark-terminal/pkg/serial"
	"spark-terminal/pkg/session"
)

// DisplaySettings are the toggles a session starts with
type DisplaySettings struct {
	HexView    bool               `yaml:"hex_view"`
	Timestamps bool               `yaml:"timestamps"`
	SendAsHex  bool               `yaml:"send_as_hex"`
	LogSent    bool               `yaml:"log_sent"`
	LineEnding session.LineEnding `yaml:"line_ending"`
}

// Settings is the content of settings.yaml
type Settings struct {
	Connection serial.ConnectionSettings `yaml:"connection"`
	Display    DisplaySettings           `yaml:"display"`
	// LogDir overrides the directory session logs are written to
	LogDir   string `yaml:"log_dir,omitempty"`
	LogLevel string `yaml:"log_level,omitempty"`
}

// DefaultSettings returns the settings used when no file exists
func DefaultSettings() Settings {
	return Settings{
		Connection: serial.DefaultSettings(),
		Display: DisplaySettings{
			LogSent:    true,
			LineEnding: session.LineEndingCRLF,
		},
	}
}

// SessionOptions converts the display settings to session options, placing
// logs in LogDir or else in fallbackLogDir
func (s Settings) SessionOptions(fallbackLogDir string) session.Options {
	logDir := s.LogDir
	if logDir == "" {
		logDir = fallbackLogDir
	}
	return session.Options{
		HexView:    s.Display.HexView,
		Timestamps: s.Display.Timestamps,
		LogSent:    s.Display.LogSent,
		LogDir:     logDir,
	}
}

// LoadSettings reads path. A missing file yields the defaults; a malformed
// one yields the defaults and an error describing the problem.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return settings, fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, &settings); err != nil {
		return DefaultSettings(), fmt.Errorf("failed to parse settings file: %w", err)
	}
	return settings, nil
}

// SaveSettings writes settings to path atomically
func SaveSettings(path string, settings Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	return writeFileAtomic(path, data)
}

// writeFileAtomic writes to a temporary file first, then renames it
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temporary config file: %w", err)
	}
	return nil
}
