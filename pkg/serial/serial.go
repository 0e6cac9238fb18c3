// Package serial provides serial port enumeration and the background channel
// that owns an open port
package serial

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"spark-terminal/pkg/apperror"
)

const (
	// DefaultReadTimeout bounds a single read of the background loop
	DefaultReadTimeout = 100 * time.Millisecond
	// DefaultIdleSleep is slept when a read returned nothing
	DefaultIdleSleep = 10 * time.Millisecond
)

// CommonBaudRates lists the rates offered by the user interfaces. Any
// positive rate is accepted by Validate.
var CommonBaudRates = []int{300, 1200, 2400, 4800, 9600, 14400, 19200, 38400, 57600, 115200, 230400, 460800, 921600}

// Parity is the parity mode of a UART frame
type Parity int

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
	ParityMark
	ParitySpace
)

var parityNames = map[Parity]string{
	ParityNone:  "None",
	ParityEven:  "Even",
	ParityOdd:   "Odd",
	ParityMark:  "Mark",
	ParitySpace: "Space",
}

// String returns the string representation of Parity
func (p Parity) String() string {
	if name, ok := parityNames[p]; ok {
		return name
	}
	return "unknown"
}

// ParseParity converts a user supplied name to a Parity
func ParseParity(s string) (Parity, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	switch key {
	case "none", "n":
		return ParityNone, nil
	case "even", "e":
		return ParityEven, nil
	case "odd", "o":
		return ParityOdd, nil
	case "mark", "m":
		return ParityMark, nil
	case "space", "s":
		return ParitySpace, nil
	}
	return ParityNone, apperror.Newf(apperror.KindValidation, "parse parity", "invalid parity: %q", s)
}

// StopBits is the number of stop bits of a UART frame
type StopBits int

const (
	StopBitsOne StopBits = iota
	StopBitsOnePointFive
	StopBitsTwo
)

// String returns the string representation of StopBits
func (s StopBits) String() string {
	switch s {
	case StopBitsOne:
		return "1"
	case StopBitsOnePointFive:
		return "1.5"
	case StopBitsTwo:
		return "2"
	default:
		return "unknown"
	}
}

// ParseStopBits converts "1", "1.5" or "2" to StopBits
func ParseStopBits(s string) (StopBits, error) {
	switch strings.TrimSpace(s) {
	case "1":
		return StopBitsOne, nil
	case "1.5":
		return StopBitsOnePointFive, nil
	case "2":
		return StopBitsTwo, nil
	}
	return StopBitsOne, apperror.Newf(apperror.KindValidation, "parse stop bits", "invalid stop bits: %q", s)
}

// FlowControl is the static flow control policy handed to the driver
type FlowControl int

const (
	FlowNone FlowControl = iota
	FlowHardwareRtsCts
	FlowSoftwareXonXoff
)

// String returns the string representation of FlowControl
func (f FlowControl) String() string {
	switch f {
	case FlowNone:
		return "None"
	case FlowHardwareRtsCts:
		return "Hardware (RTS/CTS)"
	case FlowSoftwareXonXoff:
		return "Software (XON/XOFF)"
	default:
		return "unknown"
	}
}

// ParseFlowControl converts a user supplied name to a FlowControl
func ParseFlowControl(s string) (FlowControl, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return FlowNone, nil
	case "hardware", "hardware (rts/cts)", "rtscts", "rts/cts":
		return FlowHardwareRtsCts, nil
	case "software", "software (xon/xoff)", "xonxoff", "xon/xoff":
		return FlowSoftwareXonXoff, nil
	}
	return FlowNone, apperror.Newf(apperror.KindValidation, "parse flow control", "invalid flow control: %q", s)
}

// ParseDataBits converts "5".."8" to a data bit count
func ParseDataBits(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 5 || n > 8 {
		return 0, apperror.Newf(apperror.KindValidation, "parse data bits", "invalid data bits: %q", s)
	}
	return n, nil
}

// ConnectionSettings describes how to open a port. A channel keeps its own
// copy, so changing a value after Open has no effect on the running channel.
type ConnectionSettings struct {
	Port        string        `json:"port" yaml:"port"`
	BaudRate    int           `json:"baud_rate" yaml:"baud_rate"`
	DataBits    int           `json:"data_bits" yaml:"data_bits"`
	Parity      Parity        `json:"parity" yaml:"parity"`
	StopBits    StopBits      `json:"stop_bits" yaml:"stop_bits"`
	FlowControl FlowControl   `json:"flow_control" yaml:"flow_control"`
	ReadTimeout time.Duration `json:"read_timeout,omitempty" yaml:"read_timeout,omitempty"`
	IdleSleep   time.Duration `json:"idle_sleep,omitempty" yaml:"idle_sleep,omitempty"`
}

// Validate checks if the connection settings are valid
func (c ConnectionSettings) Validate() error {
	if c.Port == "" {
		return apperror.New(apperror.KindValidation, "validate settings", "port cannot be empty")
	}

	if c.BaudRate <= 0 {
		return apperror.Newf(apperror.KindValidation, "validate settings", "baud rate must be positive, got: %d", c.BaudRate)
	}

	if c.DataBits < 5 || c.DataBits > 8 {
		return apperror.Newf(apperror.KindValidation, "validate settings", "data bits must be between 5 and 8, got: %d", c.DataBits)
	}

	if _, ok := parityNames[c.Parity]; !ok {
		return apperror.Newf(apperror.KindValidation, "validate settings", "invalid parity: %d", c.Parity)
	}

	if c.StopBits < StopBitsOne || c.StopBits > StopBitsTwo {
		return apperror.Newf(apperror.KindValidation, "validate settings", "invalid stop bits: %d", c.StopBits)
	}

	if c.FlowControl < FlowNone || c.FlowControl > FlowSoftwareXonXoff {
		return apperror.Newf(apperror.KindValidation, "validate settings", "invalid flow control: %d", c.FlowControl)
	}

	if c.ReadTimeout < 0 || c.IdleSleep < 0 {
		return apperror.New(apperror.KindValidation, "validate settings", "timeouts cannot be negative")
	}

	return nil
}

// Summary returns the familiar "9600 8-N-1" notation
func (c ConnectionSettings) Summary() string {
	return fmt.Sprintf("%d %d-%s-%s", c.BaudRate, c.DataBits, c.Parity.String()[:1], c.StopBits)
}

func (c ConnectionSettings) readTimeout() time.Duration {
	if c.ReadTimeout > 0 {
		return c.ReadTimeout
	}
	return DefaultReadTimeout
}

func (c ConnectionSettings) idleSleep() time.Duration {
	if c.IdleSleep > 0 {
		return c.IdleSleep
	}
	return DefaultIdleSleep
}

// DefaultSettings returns the settings used when nothing else is configured
func DefaultSettings() ConnectionSettings {
	return ConnectionSettings{
		BaudRate:    115200,
		DataBits:    8,
		Parity:      ParityNone,
		StopBits:    StopBitsOne,
		FlowControl: FlowNone,
	}
}

// MarshalText implements encoding.TextMarshaler
func (p Parity) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler
func (p *Parity) UnmarshalText(text []byte) error {
	v, err := ParseParity(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (s StopBits) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler
func (s *StopBits) UnmarshalText(text []byte) error {
	v, err := ParseStopBits(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (f FlowControl) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler
func (f *FlowControl) UnmarshalText(text []byte) error {
	v, err := ParseFlowControl(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}
