package serial

import (
	"fmt"

	gobug "go.bug.st/serial"
)

// allow tests to override the platform open
var openPort = gobug.Open

// openDevice is the Opener backed by go.bug.st/serial
func openDevice(settings ConnectionSettings) (Port, error) {
	mode, err := settings.mode()
	if err != nil {
		return nil, err
	}

	port, err := openPort(settings.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", settings.Port, err)
	}
	return port, nil
}

// mode converts the settings to the driver representation
func (c ConnectionSettings) mode() (*gobug.Mode, error) {
	mode := &gobug.Mode{
		BaudRate: c.BaudRate,
		DataBits: c.DataBits,
	}

	switch c.Parity {
	case ParityNone:
		mode.Parity = gobug.NoParity
	case ParityEven:
		mode.Parity = gobug.EvenParity
	case ParityOdd:
		mode.Parity = gobug.OddParity
	case ParityMark:
		mode.Parity = gobug.MarkParity
	case ParitySpace:
		mode.Parity = gobug.SpaceParity
	default:
		return nil, fmt.Errorf("unsupported parity: %v", c.Parity)
	}

	switch c.StopBits {
	case StopBitsOne:
		mode.StopBits = gobug.OneStopBit
	case StopBitsOnePointFive:
		mode.StopBits = gobug.OnePointFiveStopBits
	case StopBitsTwo:
		mode.StopBits = gobug.TwoStopBits
	default:
		return nil, fmt.Errorf("unsupported stop bits: %v", c.StopBits)
	}

	// the driver has no RTS/CTS handshake switch; assert both lines on open
	// so a peer waiting for them starts transmitting
	if c.FlowControl == FlowHardwareRtsCts {
		mode.InitialStatusBits = &gobug.ModemOutputBits{RTS: true, DTR: true}
	}

	return mode, nil
}
