package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"spark-terminal/pkg/serial"
	"spark-terminal/pkg/session"
)

func testSettings(port string) serial.ConnectionSettings {
	s := serial.DefaultSettings()
	s.Port = port
	return s
}

func newTestManager(t *testing.T) *ProfileManager {
	t.Helper()
	pm := NewProfileManager(filepath.Join(t.TempDir(), ProfilesFileName))
	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	pm.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return pm
}

func TestProfile_Validate(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		wantErr bool
	}{
		{
			name:    "valid profile",
			profile: Profile{Name: "bench", Settings: testSettings("/dev/ttyUSB0"), CreatedAt: time.Now()},
		},
		{
			name:    "empty name",
			profile: Profile{Settings: testSettings("/dev/ttyUSB0"), CreatedAt: time.Now()},
			wantErr: true,
		},
		{
			name:    "invalid settings",
			profile: Profile{Name: "bench", Settings: testSettings(""), CreatedAt: time.Now()},
			wantErr: true,
		},
		{
			name:    "zero created time",
			profile: Profile{Name: "bench", Settings: testSettings("/dev/ttyUSB0")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProfileManager_SaveAndLoad(t *testing.T) {
	pm := newTestManager(t)

	want := testSettings("COM3")
	want.BaudRate = 9600
	want.Parity = serial.ParityEven

	if err := pm.Save("modem", want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := pm.Load("modem")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}

	if _, err := pm.Load("missing"); err == nil {
		t.Error("Load() of a missing profile should fail")
	}
	if _, err := pm.Load(""); err == nil {
		t.Error("Load() with an empty name should fail")
	}
}

func TestProfileManager_SaveRejectsInvalid(t *testing.T) {
	pm := newTestManager(t)

	if err := pm.Save("", testSettings("COM1")); err == nil {
		t.Error("Save() with an empty name should fail")
	}

	bad := testSettings("COM1")
	bad.BaudRate = 0
	if err := pm.Save("bad", bad); err == nil {
		t.Error("Save() with invalid settings should fail")
	}

	if pm.Exists("bad") {
		t.Error("invalid profile was stored")
	}
}

func TestProfileManager_OverwriteKeepsMetadata(t *testing.T) {
	pm := newTestManager(t)

	if err := pm.Save("dev", testSettings("COM1")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := pm.SetDescription("dev", "bench board"); err != nil {
		t.Fatalf("SetDescription() error = %v", err)
	}
	first, err := pm.Get("dev")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if err := pm.Save("dev", testSettings("COM2")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	second, err := pm.Get("dev")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", second.CreatedAt, first.CreatedAt)
	}
	if second.Description != "bench board" {
		t.Errorf("Description = %q, want %q", second.Description, "bench board")
	}
	if second.Settings.Port != "COM2" {
		t.Errorf("Port = %q, want COM2", second.Settings.Port)
	}
}

func TestProfileManager_LoadUpdatesLastUsed(t *testing.T) {
	pm := newTestManager(t)

	if err := pm.Save("dev", testSettings("COM1")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	before, _ := pm.Get("dev")

	if _, err := pm.Load("dev"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	after, _ := pm.Get("dev")

	if !after.LastUsedAt.After(before.LastUsedAt) {
		t.Errorf("LastUsedAt = %v, want after %v", after.LastUsedAt, before.LastUsedAt)
	}
}

func TestProfileManager_ListAndDelete(t *testing.T) {
	pm := newTestManager(t)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := pm.Save(name, testSettings("COM1")); err != nil {
			t.Fatalf("Save(%s) error = %v", name, err)
		}
	}

	profiles, err := pm.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var names []string
	for _, p := range profiles {
		names = append(names, p.Name)
	}
	if got := strings.Join(names, ","); got != "alpha,mid,zeta" {
		t.Errorf("List() names = %s, want alpha,mid,zeta", got)
	}

	if err := pm.Delete("mid"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if pm.Exists("mid") {
		t.Error("deleted profile still exists")
	}
	if err := pm.Delete("mid"); err == nil {
		t.Error("Delete() of a missing profile should fail")
	}
}

func TestProfileManager_Search(t *testing.T) {
	pm := newTestManager(t)

	pm.Save("gps", testSettings("COM1"))
	pm.Save("modem", testSettings("COM2"))
	pm.SetDescription("modem", "LTE module on the GPS board")

	tests := []struct {
		query string
		want  int
	}{
		{"", 2},
		{"GPS", 2},
		{"modem", 1},
		{"lte", 1},
		{"nothing", 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := pm.Search(tt.query)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("Search(%q) returned %d profiles, want %d", tt.query, len(got), tt.want)
			}
		})
	}
}

func TestProfileManager_CorruptFile(t *testing.T) {
	pm := newTestManager(t)

	if err := os.WriteFile(pm.Path(), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := pm.List(); err == nil {
		t.Error("List() should fail on a corrupt file")
	}
	if err := pm.Save("dev", testSettings("COM1")); err == nil {
		t.Error("Save() should not overwrite a corrupt file")
	}
}

func TestSettings_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")

	want := DefaultSettings()
	want.Connection = testSettings("/dev/ttyACM0")
	want.Connection.StopBits = serial.StopBitsTwo
	want.Connection.ReadTimeout = 250 * time.Millisecond
	want.Display.HexView = true
	want.Display.LineEnding = session.LineEndingLF
	want.LogDir = "/tmp/serial-logs"
	want.LogLevel = "debug"

	if err := SaveSettings(path, want); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}

	got, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if got != want {
		t.Errorf("LoadSettings() = %+v, want %+v", got, want)
	}
}

func TestLoadSettings(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		got, err := LoadSettings(filepath.Join(dir, "none.yaml"))
		if err != nil {
			t.Fatalf("LoadSettings() error = %v", err)
		}
		if got != DefaultSettings() {
			t.Errorf("LoadSettings() = %+v, want defaults", got)
		}
	})

	t.Run("partial file", func(t *testing.T) {
		path := filepath.Join(dir, "partial.yaml")
		content := "connection:\n  port: COM7\n  parity: odd\ndisplay:\n  line_ending: CR\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		got, err := LoadSettings(path)
		if err != nil {
			t.Fatalf("LoadSettings() error = %v", err)
		}
		if got.Connection.Port != "COM7" || got.Connection.Parity != serial.ParityOdd {
			t.Errorf("Connection = %+v", got.Connection)
		}
		if got.Connection.BaudRate != 115200 {
			t.Errorf("BaudRate = %d, want default 115200", got.Connection.BaudRate)
		}
		if got.Display.LineEnding != session.LineEndingCR {
			t.Errorf("LineEnding = %v, want CR", got.Display.LineEnding)
		}
		if !got.Display.LogSent {
			t.Error("LogSent default was lost")
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		if err := os.WriteFile(path, []byte("connection: [unclosed"), 0644); err != nil {
			t.Fatal(err)
		}

		got, err := LoadSettings(path)
		if err == nil {
			t.Error("LoadSettings() should report a malformed file")
		}
		if got != DefaultSettings() {
			t.Errorf("LoadSettings() = %+v, want defaults", got)
		}
	})
}

func TestSettings_SessionOptions(t *testing.T) {
	s := DefaultSettings()
	s.Display.Timestamps = true

	opts := s.SessionOptions("/fallback")
	if opts.LogDir != "/fallback" || !opts.Timestamps || !opts.LogSent {
		t.Errorf("SessionOptions() = %+v", opts)
	}

	s.LogDir = "/custom"
	if got := s.SessionOptions("/fallback").LogDir; got != "/custom" {
		t.Errorf("LogDir = %q, want /custom", got)
	}
}

func TestPaths(t *testing.T) {
	dir := t.TempDir()

	p, err := DefaultPaths(dir)
	if err != nil {
		t.Fatalf("DefaultPaths() error = %v", err)
	}
	if p.AppDir != dir {
		t.Errorf("AppDir = %q, want %q", p.AppDir, dir)
	}
	if p.SettingsFile() != filepath.Join(dir, "settings.yaml") {
		t.Errorf("SettingsFile() = %q", p.SettingsFile())
	}
	if p.ProfilesFile() != filepath.Join(dir, ProfilesFileName) {
		t.Errorf("ProfilesFile() = %q", p.ProfilesFile())
	}
	if p.DebugLogFile() != filepath.Join(dir, DebugLogFileName) {
		t.Errorf("DebugLogFile() = %q", p.DebugLogFile())
	}

	locs := p.CommandLocations()
	if locs.AppDir != dir {
		t.Errorf("CommandLocations().AppDir = %q, want %q", locs.AppDir, dir)
	}

	def, err := DefaultPaths("")
	if err != nil {
		t.Fatalf("DefaultPaths(\"\") error = %v", err)
	}
	if filepath.Base(def.AppDir) != AppName {
		t.Errorf("default AppDir = %q, want it to end in %s", def.AppDir, AppName)
	}
}
