package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"spark-terminal/pkg/config"
	"spark-terminal/pkg/logging"
	"spark-terminal/pkg/serial"
	"spark-terminal/pkg/session"
)

// execute runs a fresh command tree and returns what it printed
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func withFakePorts(t *testing.T, ports ...serial.PortInfo) {
	t.Helper()
	origList, origDetailed := listPorts, listDetailedPorts
	t.Cleanup(func() {
		listPorts, listDetailedPorts = origList, origDetailed
	})

	listPorts = func(*logrus.Entry) []string {
		names := []string{}
		for _, p := range ports {
			names = append(names, p.Name)
		}
		return names
	}
	listDetailedPorts = func(*logrus.Entry) []serial.PortInfo {
		return ports
	}
}

func testEnv(t *testing.T) *environment {
	t.Helper()
	paths, err := config.DefaultPaths(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return &environment{
		paths:    paths,
		settings: config.DefaultSettings(),
		level:    "info",
		log:      logging.Discard(),
	}
}

func TestRootCommand(t *testing.T) {
	root := NewRootCmd()

	if root.Use != "spark-terminal" {
		t.Errorf("rootCmd.Use = %s, want spark-terminal", root.Use)
	}
	if root.Short == "" {
		t.Error("rootCmd.Short should not be empty")
	}

	for _, expected := range []string{"list", "connect", "send", "commands", "config"} {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == expected {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected subcommand '%s' not found", expected)
		}
	}

	for _, flag := range []string{"verbose", "log-level", "config-dir"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag --%s missing", flag)
		}
	}
}

func TestPrintPorts(t *testing.T) {
	ports := []serial.PortInfo{
		{Name: "COM1"},
		{Name: "COM5", IsUSB: true, VID: "0403", PID: "6001", Product: "FT232R", SerialNumber: "A1"},
	}

	tests := []struct {
		name    string
		format  string
		details bool
		want    []string
		wantErr bool
	}{
		{"table", "table", false, []string{"Found 2 serial port(s):", "  COM1\n", "  COM5\n"}, false},
		{"table details", "table", true, []string{"COM5 [USB] VID:0403 PID:6001 - FT232R (SN: A1)"}, false},
		{"csv", "csv", false, []string{"port\nCOM1\nCOM5\n"}, false},
		{"csv details", "csv", true, []string{"port,is_usb,vid,pid,product,serial_number", "COM5,true,0403,6001,FT232R,A1"}, false},
		{"json", "json", false, []string{"[\n  \"COM1\",\n  \"COM5\"\n]"}, false},
		{"json details", "json", true, []string{"\"product\": \"FT232R\"", "\"is_usb\": false"}, false},
		{"unknown", "xml", false, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := printPorts(&out, ports, tt.format, tt.details)
			if (err != nil) != tt.wantErr {
				t.Fatalf("printPorts() error = %v, wantErr %v", err, tt.wantErr)
			}
			for _, want := range tt.want {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output missing %q:\n%s", want, out.String())
				}
			}
		})
	}
}

func TestListCommand(t *testing.T) {
	withFakePorts(t, serial.PortInfo{Name: "/dev/ttyUSB0"})

	out, err := execute(t, "list", "--format", "json", "--config-dir", t.TempDir())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if strings.TrimSpace(out) != "[\n  \"/dev/ttyUSB0\"\n]" {
		t.Errorf("list output = %q", out)
	}

	withFakePorts(t)
	out, err = execute(t, "list", "--config-dir", t.TempDir())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "No serial ports found.") {
		t.Errorf("list output = %q", out)
	}
}

func TestFramingFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		check   func(serial.ConnectionSettings) bool
		wantErr bool
	}{
		{
			name:  "defaults untouched",
			args:  nil,
			check: func(s serial.ConnectionSettings) bool { return s == testPortSettings() },
		},
		{
			name: "framing",
			args: []string{"-b", "9600", "-d", "7", "--parity", "even", "-s", "2", "--flow", "rtscts"},
			check: func(s serial.ConnectionSettings) bool {
				return s.BaudRate == 9600 && s.DataBits == 7 && s.Parity == serial.ParityEven &&
					s.StopBits == serial.StopBitsTwo && s.FlowControl == serial.FlowHardwareRtsCts
			},
		},
		{
			name:  "read timeout",
			args:  []string{"--read-timeout", "250ms"},
			check: func(s serial.ConnectionSettings) bool { return s.ReadTimeout == 250*time.Millisecond },
		},
		{name: "invalid baud rate", args: []string{"--baud", "0"}, wantErr: true},
		{name: "invalid data bits", args: []string{"--data", "10"}, wantErr: true},
		{name: "invalid stop bits", args: []string{"--stop", "3"}, wantErr: true},
		{name: "invalid parity", args: []string{"--parity", "invalid"}, wantErr: true},
		{name: "invalid flow control", args: []string{"--flow", "dtr"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f framingFlags
			cmd := &cobra.Command{Use: "test"}
			f.register(cmd)
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatalf("ParseFlags() error = %v", err)
			}

			settings := testPortSettings()
			err := f.apply(cmd, &settings)
			if (err != nil) != tt.wantErr {
				t.Fatalf("apply() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(settings) {
				t.Errorf("apply() settings = %+v", settings)
			}
		})
	}
}

func testPortSettings() serial.ConnectionSettings {
	s := serial.DefaultSettings()
	s.Port = "COM1"
	return s
}

func TestSessionFlags_Build(t *testing.T) {
	env := testEnv(t)

	tests := []struct {
		name    string
		args    []string
		check   func(session.Options, bool, session.LineEnding, string, bool) bool
		wantErr bool
	}{
		{
			name: "configured defaults",
			check: func(o session.Options, sendHex bool, ending session.LineEnding, logFile string, auto bool) bool {
				return !o.HexView && o.LogSent && !sendHex && ending == session.LineEndingCRLF &&
					logFile == "" && !auto && o.LogDir == env.paths.LogDir()
			},
		},
		{
			name: "toggles",
			args: []string{"--hex", "--timestamps", "--send-hex", "--no-log-sent", "--line-ending", "lf"},
			check: func(o session.Options, sendHex bool, ending session.LineEnding, _ string, _ bool) bool {
				return o.HexView && o.Timestamps && !o.LogSent && sendHex && ending == session.LineEndingLF
			},
		},
		{
			name: "automatic log file",
			args: []string{"--log"},
			check: func(_ session.Options, _ bool, _ session.LineEnding, logFile string, auto bool) bool {
				return auto && logFile == ""
			},
		},
		{
			name: "named log file",
			args: []string{"--log=/tmp/session.log"},
			check: func(_ session.Options, _ bool, _ session.LineEnding, logFile string, auto bool) bool {
				return !auto && logFile == "/tmp/session.log"
			},
		},
		{name: "bad line ending", args: []string{"--line-ending", "semicolon"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s sessionFlags
			cmd := &cobra.Command{Use: "test"}
			s.register(cmd)
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatalf("ParseFlags() error = %v", err)
			}

			opts, appOpts, err := s.build(cmd, env)
			if (err != nil) != tt.wantErr {
				t.Fatalf("build() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(opts, appOpts.SendAsHex, appOpts.LineEnding, appOpts.LogFile, appOpts.AutoLog) {
				t.Errorf("build() = %+v, %+v", opts, appOpts)
			}
		})
	}
}

func TestIsSerialPort(t *testing.T) {
	withFakePorts(t, serial.PortInfo{Name: "ttyS9"})

	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"Windows COM port", "COM1", true},
		{"Windows COM port lowercase", "com3", true},
		{"Linux serial device", "/dev/ttyUSB0", true},
		{"macOS serial device", "/dev/cu.usbserial", true},
		{"Enumerated port", "TTYS9", true},
		{"Not a serial port", "myconfig", false},
		{"Random text", "hello", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isSerialPort(tt.input, logging.Discard())
			if result != tt.expected {
				t.Errorf("isSerialPort(%s) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestResolveSettings(t *testing.T) {
	withFakePorts(t, serial.PortInfo{Name: "COM4"})
	env := testEnv(t)

	saved := testPortSettings()
	saved.Port = "/dev/ttyACM0"
	saved.Parity = serial.ParityOdd
	if err := config.NewProfileManager(env.paths.ProfilesFile()).Save("bench", saved); err != nil {
		t.Fatal(err)
	}

	resolve := func(target string, args ...string) (serial.ConnectionSettings, string, error) {
		var f framingFlags
		cmd := &cobra.Command{Use: "test"}
		f.register(cmd)
		if err := cmd.ParseFlags(args); err != nil {
			t.Fatal(err)
		}
		return resolveSettings(cmd, env, target, &f)
	}

	got, source, err := resolve("bench", "-b", "57600")
	if err != nil {
		t.Fatalf("resolveSettings(bench) error = %v", err)
	}
	if got.Port != "/dev/ttyACM0" || got.Parity != serial.ParityOdd || got.BaudRate != 57600 {
		t.Errorf("resolveSettings(bench) = %+v", got)
	}
	if source != "profile bench" {
		t.Errorf("source = %q, want profile bench", source)
	}

	got, _, err = resolve("COM4")
	if err != nil {
		t.Fatalf("resolveSettings(COM4) error = %v", err)
	}
	if got.Port != "COM4" || got.BaudRate != 115200 {
		t.Errorf("resolveSettings(COM4) = %+v", got)
	}

	_, _, err = resolve("nowhere")
	if err == nil {
		t.Fatal("resolveSettings(nowhere) should fail")
	}
	for _, want := range []string{"neither", "COM4", "bench (port: /dev/ttyACM0)"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}

	if _, _, err := resolve("COM4", "--parity", "bogus"); err == nil {
		t.Error("invalid flags should fail")
	}
}

func TestCommandsCommand(t *testing.T) {
	dir := t.TempDir()
	run := func(args ...string) string {
		t.Helper()
		out, err := execute(t, append(args, "--config-dir", dir)...)
		if err != nil {
			t.Fatalf("%v failed: %v", args, err)
		}
		return out
	}

	out := run("commands", "list")
	if !strings.Contains(out, "Check Connection") || !strings.Contains(out, "ATZ") {
		t.Errorf("default commands not listed:\n%s", out)
	}

	run("commands", "add", "Ping", "AA 55", "--hex")
	out = run("commands", "list")
	if !strings.Contains(out, "Ping") || !strings.Contains(out, "hex") {
		t.Errorf("added command not listed:\n%s", out)
	}

	run("commands", "update", "4", "Pong", "BB")
	run("commands", "delete", "1")
	out = run("commands", "replace", "AT", "at")
	if !strings.Contains(out, "Updated 2 command(s)") {
		t.Errorf("replace output = %q", out)
	}

	out = run("commands", "list")
	for _, want := range []string{"ati", "atz", "Pong"} {
		if !strings.Contains(out, want) {
			t.Errorf("list missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Check Connection") {
		t.Errorf("deleted command still listed:\n%s", out)
	}

	exported := filepath.Join(dir, "export.json")
	run("commands", "export", exported)
	if _, err := os.Stat(exported); err != nil {
		t.Fatalf("export file missing: %v", err)
	}

	out = run("commands", "import", exported, "--mode", "merge")
	if !strings.Contains(out, "Imported 0 command(s)") {
		t.Errorf("merge import output = %q", out)
	}

	out = run("commands", "path")
	if strings.TrimSpace(out) != filepath.Join(dir, "saved_commands.json") {
		t.Errorf("path output = %q", out)
	}

	if _, err := execute(t, "commands", "delete", "99", "--config-dir", dir); err == nil {
		t.Error("deleting a missing command should fail")
	}
	if _, err := execute(t, "commands", "import", exported, "--mode", "append", "--config-dir", dir); err == nil {
		t.Error("unknown import mode should fail")
	}
}

func TestConfigCommand(t *testing.T) {
	dir := t.TempDir()
	run := func(args ...string) (string, error) {
		return execute(t, append(args, "--config-dir", dir)...)
	}

	if _, err := run("config", "save", "dev"); err == nil {
		t.Error("save without --port should fail")
	}

	out, err := run("config", "save", "dev", "-p", "COM7", "-b", "9600", "--description", "bench board")
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !strings.Contains(out, "9600 8-N-1") {
		t.Errorf("save output = %q", out)
	}

	out, err = run("config", "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, want := range []string{"dev", "COM7", "9600 8-N-1", "bench board"} {
		if !strings.Contains(out, want) {
			t.Errorf("list missing %q:\n%s", want, out)
		}
	}

	out, err = run("config", "list", "--search", "nothing")
	if err != nil || !strings.Contains(out, "No saved profiles found.") {
		t.Errorf("filtered list = %q, %v", out, err)
	}

	out, err = run("config", "show", "dev")
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	if !strings.Contains(out, "Baud Rate:    9600") || !strings.Contains(out, "Description:  bench board") {
		t.Errorf("show output = %q", out)
	}

	if _, err := run("config", "delete", "dev"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := run("config", "show", "dev"); err == nil {
		t.Error("show after delete should fail")
	}
}

func TestConfigSettings(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "config", "settings", "--init", "--config-dir", dir)
	if err != nil {
		t.Fatalf("settings failed: %v", err)
	}
	if !strings.Contains(out, "baud_rate: 115200") || !strings.Contains(out, "line_ending: CR+LF") {
		t.Errorf("settings output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "settings.yaml")); err != nil {
		t.Errorf("settings.yaml not written: %v", err)
	}
}

func TestConnectRejectsBadInput(t *testing.T) {
	withFakePorts(t)
	dir := t.TempDir()

	if _, err := execute(t, "connect", "COM1", "--parity", "bogus", "--config-dir", dir); err == nil {
		t.Error("invalid parity should fail before opening the port")
	}
	if _, err := execute(t, "connect", "nowhere", "--config-dir", dir); err == nil {
		t.Error("unknown target should fail")
	}
	if _, err := execute(t, "send", "nowhere", "AT", "--config-dir", dir); err == nil {
		t.Error("send to an unknown target should fail")
	}
}

func TestHelpTexts(t *testing.T) {
	tests := []struct {
		args []string
		want []string
	}{
		{[]string{"config", "--help"}, []string{"save", "load", "list", "delete", "show", "settings"}},
		{[]string{"commands", "--help"}, []string{"list", "add", "update", "delete", "replace", "import", "export", "path"}},
		{[]string{"connect", "--help"}, []string{"Connect to a serial port", "--baud", "--line-ending", "--headless"}},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out, err := execute(t, tt.args...)
			if err != nil {
				t.Fatalf("help failed: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("help missing %q", want)
				}
			}
		})
	}
}

func TestSessionConfig_KeepsUnsavedStore(t *testing.T) {
	env := testEnv(t)

	// a directory where the command file belongs makes every save fail
	blocked := filepath.Join(env.paths.AppDir, "saved_commands.json")
	if err := os.MkdirAll(filepath.Join(blocked, "keep"), 0755); err != nil {
		t.Fatal(err)
	}

	cfg := sessionConfig(env, session.DefaultOptions())
	if cfg.Store == nil {
		t.Fatal("sessionConfig() dropped a store that loaded but could not be saved")
	}
	if got := cfg.Store.Len(); got != 3 {
		t.Errorf("Store.Len() = %d, want the 3 default commands", got)
	}
}
