package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"spark-terminal/pkg/app"
	"spark-terminal/pkg/config"
	"spark-terminal/pkg/serial"
	"spark-terminal/pkg/session"
)

// allow tests to replace the host's port enumeration
var (
	listPorts = func(log *logrus.Entry) []string {
		return serial.NewCatalog(log).ListPorts()
	}
	listDetailedPorts = func(log *logrus.Entry) []serial.PortInfo {
		return serial.NewCatalog(log).ListDetailedPorts()
	}
)

// framingFlags are the connection parameters accepted on the command line.
// Only flags the user gave override the configured settings.
type framingFlags struct {
	baud        int
	dataBits    string
	stopBits    string
	parity      string
	flow        string
	readTimeout time.Duration
}

func (f *framingFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.baud, "baud", "b", 115200, "baud rate")
	cmd.Flags().StringVarP(&f.dataBits, "data", "d", "8", "data bits (5, 6, 7 or 8)")
	cmd.Flags().StringVarP(&f.stopBits, "stop", "s", "1", "stop bits (1, 1.5 or 2)")
	cmd.Flags().StringVar(&f.parity, "parity", "none", "parity (none, even, odd, mark, space)")
	cmd.Flags().StringVar(&f.flow, "flow", "none", "flow control (none, rtscts, xonxoff)")
	cmd.Flags().DurationVar(&f.readTimeout, "read-timeout", serial.DefaultReadTimeout, "read poll timeout")
}

// apply copies the given flags into settings and validates the result
func (f *framingFlags) apply(cmd *cobra.Command, settings *serial.ConnectionSettings) error {
	flags := cmd.Flags()

	if flags.Changed("baud") {
		settings.BaudRate = f.baud
	}
	if flags.Changed("data") {
		v, err := serial.ParseDataBits(f.dataBits)
		if err != nil {
			return err
		}
		settings.DataBits = v
	}
	if flags.Changed("stop") {
		v, err := serial.ParseStopBits(f.stopBits)
		if err != nil {
			return err
		}
		settings.StopBits = v
	}
	if flags.Changed("parity") {
		v, err := serial.ParseParity(f.parity)
		if err != nil {
			return err
		}
		settings.Parity = v
	}
	if flags.Changed("flow") {
		v, err := serial.ParseFlowControl(f.flow)
		if err != nil {
			return err
		}
		settings.FlowControl = v
	}
	if flags.Changed("read-timeout") {
		settings.ReadTimeout = f.readTimeout
	}

	return settings.Validate()
}

// sessionFlags are the display, send and logging toggles of a session
type sessionFlags struct {
	hexView    bool
	timestamps bool
	sendHex    bool
	noLogSent  bool
	lineEnding string
	logFile    string
}

const autoLog = "auto"

func (s *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&s.hexView, "hex", false, "show received data as hex")
	cmd.Flags().BoolVar(&s.timestamps, "timestamps", false, "prefix received lines with a timestamp")
	cmd.Flags().BoolVar(&s.sendHex, "send-hex", false, "treat typed input as hex bytes")
	cmd.Flags().BoolVar(&s.noLogSent, "no-log-sent", false, "do not write sent commands to the log")
	cmd.Flags().StringVar(&s.lineEnding, "line-ending", "CR+LF", "appended to every send (none, cr, lf, crlf)")
	cmd.Flags().StringVar(&s.logFile, "log", "", "log traffic to a file; without a value a timestamped file in the log directory is used")
	cmd.Flags().Lookup("log").NoOptDefVal = autoLog
}

// build merges the flags over the configured display settings
func (s *sessionFlags) build(cmd *cobra.Command, env *environment) (session.Options, app.Options, error) {
	flags := cmd.Flags()
	opts := env.settings.SessionOptions(env.paths.LogDir())
	display := env.settings.Display

	if flags.Changed("hex") {
		opts.HexView = s.hexView
	}
	if flags.Changed("timestamps") {
		opts.Timestamps = s.timestamps
	}
	if flags.Changed("no-log-sent") {
		opts.LogSent = !s.noLogSent
	}

	appOpts := app.Options{
		SendAsHex:     display.SendAsHex,
		LineEnding:    display.LineEnding,
		TranscriptDir: opts.LogDir,
	}
	if flags.Changed("send-hex") {
		appOpts.SendAsHex = s.sendHex
	}
	if flags.Changed("line-ending") {
		ending, err := session.ParseLineEnding(s.lineEnding)
		if err != nil {
			return opts, appOpts, err
		}
		appOpts.LineEnding = ending
	}
	if s.logFile == autoLog {
		appOpts.AutoLog = true
	} else {
		appOpts.LogFile = s.logFile
	}

	return opts, appOpts, nil
}

// isSerialPort reports whether name looks like a device rather than a
// profile name
func isSerialPort(name string, log *logrus.Entry) bool {
	lower := strings.ToLower(name)

	if strings.HasPrefix(lower, "com") {
		return true
	}
	if strings.HasPrefix(name, "/dev/") {
		return true
	}

	for _, port := range listPorts(log) {
		if strings.EqualFold(port, name) {
			return true
		}
	}
	return false
}

// resolveSettings turns a port or profile name into connection settings,
// applying the framing flags on top. It returns where the settings came from.
func resolveSettings(cmd *cobra.Command, env *environment, target string, framing *framingFlags) (serial.ConnectionSettings, string, error) {
	profiles := config.NewProfileManager(env.paths.ProfilesFile())
	settings := env.settings.Connection
	source := "port " + target

	switch {
	case isSerialPort(target, env.log):
		settings.Port = target
	case profiles.Exists(target):
		loaded, err := profiles.Load(target)
		if err != nil {
			return settings, "", err
		}
		settings = loaded
		source = "profile " + target
	default:
		return settings, "", unknownTargetError(env, target, profiles)
	}

	if err := framing.apply(cmd, &settings); err != nil {
		return settings, "", fmt.Errorf("invalid configuration: %w", err)
	}
	return settings, source, nil
}

func unknownTargetError(env *environment, target string, profiles *config.ProfileManager) error {
	var b strings.Builder
	fmt.Fprintf(&b, "'%s' is neither a serial port nor a saved profile", target)

	ports := listPorts(env.log)
	if len(ports) == 0 {
		b.WriteString("\nno serial ports found")
	} else {
		b.WriteString("\navailable ports:")
		for _, p := range ports {
			fmt.Fprintf(&b, "\n  - %s", p)
		}
	}

	if list, err := profiles.List(); err == nil && len(list) > 0 {
		b.WriteString("\navailable profiles:")
		for _, p := range list {
			fmt.Fprintf(&b, "\n  - %s (port: %s)", p.Name, p.Settings.Port)
		}
	}
	return errors.New(b.String())
}
