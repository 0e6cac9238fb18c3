package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultFileName is the command file inside the application directory
	DefaultFileName = "saved_commands.json"
	// ConfigFileName is the record holding a custom command file location
	ConfigFileName = "config.json"
)

// configRecord is the on-disk form of the config file
type configRecord struct {
	CommandsFile string `json:"commands_file"`
}

// Locations describes where the command file may live
type Locations struct {
	// AppDir is the per-user application directory
	AppDir string
	// ConfigFile holds {"commands_file": "..."}; defaults to AppDir/config.json
	ConfigFile string
	// LegacyFile is copied into AppDir once if AppDir has no command file yet
	LegacyFile string
}

// DefaultLocations returns the locations rooted at appDir
func DefaultLocations(appDir string) Locations {
	return Locations{
		AppDir:     appDir,
		ConfigFile: filepath.Join(appDir, ConfigFileName),
	}
}

func (l Locations) configFile() string {
	if l.ConfigFile != "" {
		return l.ConfigFile
	}
	return filepath.Join(l.AppDir, ConfigFileName)
}

// DefaultPath returns the command file inside the application directory
func (l Locations) DefaultPath() string {
	return filepath.Join(l.AppDir, DefaultFileName)
}

// CustomPath returns the recorded custom path, or "" when none is recorded
// or the config file cannot be read
func (l Locations) CustomPath() string {
	data, err := os.ReadFile(l.configFile())
	if err != nil {
		return ""
	}
	var rec configRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return ""
	}
	return rec.CommandsFile
}

// Resolve picks the command file: the custom path if that file exists,
// otherwise the default path, migrating the legacy file there first when the
// default file does not exist yet. Migration never overwrites.
func (l Locations) Resolve(log *logrus.Entry) (string, error) {
	if custom := l.CustomPath(); custom != "" {
		if _, err := os.Stat(custom); err == nil {
			return custom, nil
		}
		log.Warnf("custom commands file %s not found, using default location", custom)
	}

	if err := os.MkdirAll(l.AppDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create app directory: %w", err)
	}

	path := l.DefaultPath()
	if l.LegacyFile == "" || l.LegacyFile == path {
		return path, nil
	}

	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if _, err := os.Stat(l.LegacyFile); err != nil {
		return path, nil
	}

	if err := copyFile(l.LegacyFile, path); err != nil {
		// the legacy data stays where it was; the store starts from defaults
		log.WithError(err).Warn("failed to migrate legacy commands file")
		return path, nil
	}
	log.Infof("migrated commands from %s to %s", l.LegacyFile, path)

	return path, nil
}

// WriteCustomPath records path as the command file for later sessions
func (l Locations) WriteCustomPath(path string) error {
	data, err := json.MarshalIndent(configRecord{CommandsFile: path}, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	file := l.configFile()
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tempFile := file + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, file); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// copyFile copies src to a new file dst; it fails if dst already exists
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
