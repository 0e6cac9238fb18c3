// Package config provides the application directories, the settings file and
// named connection profiles
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"spark-terminal/pkg/commands"
)

// AppName names the per-user application directory
const AppName = "spark-terminal"

// DebugLogFileName is where the full screen UI sends its diagnostics
const DebugLogFileName = "spark-terminal-debug.log"

// Paths locates the files of the application
type Paths struct {
	AppDir string
}

// DefaultPaths returns the paths rooted at override, or at the per-user
// configuration directory when override is empty
func DefaultPaths(override string) (Paths, error) {
	if override != "" {
		return Paths{AppDir: override}, nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return Paths{}, fmt.Errorf("failed to determine config directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return Paths{AppDir: filepath.Join(base, AppName)}, nil
}

// Ensure creates the application directory
func (p Paths) Ensure() error {
	if err := os.MkdirAll(p.AppDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}

// SettingsFile returns the YAML settings file
func (p Paths) SettingsFile() string {
	return filepath.Join(p.AppDir, "settings.yaml")
}

// ProfilesFile returns the JSON file of named connection profiles
func (p Paths) ProfilesFile() string {
	return filepath.Join(p.AppDir, ProfilesFileName)
}

// LogDir returns the default directory for session logs
func (p Paths) LogDir() string {
	return filepath.Join(p.AppDir, "logs")
}

// DebugLogFile returns the diagnostics log of the full screen UI
func (p Paths) DebugLogFile() string {
	return filepath.Join(p.AppDir, DebugLogFileName)
}

// CommandLocations returns where the shortcut store looks for its file. The
// legacy location is the command file next to the executable.
func (p Paths) CommandLocations() commands.Locations {
	locs := commands.DefaultLocations(p.AppDir)
	if exe, err := os.Executable(); err == nil {
		locs.LegacyFile = filepath.Join(filepath.Dir(exe), commands.DefaultFileName)
	}
	return locs
}
