package session

import (
	"encoding/hex"
	"strings"

	"spark-terminal/pkg/apperror"
)

// LineEnding is the suffix appended to every sent command
type LineEnding int

const (
	LineEndingNone LineEnding = iota
	LineEndingCR
	LineEndingLF
	LineEndingCRLF
)

// LineEndings lists the endings in the order the UI cycles through them
var LineEndings = []LineEnding{LineEndingNone, LineEndingCR, LineEndingLF, LineEndingCRLF}

// String returns the string representation of LineEnding
func (l LineEnding) String() string {
	switch l {
	case LineEndingNone:
		return "None"
	case LineEndingCR:
		return "CR"
	case LineEndingLF:
		return "LF"
	case LineEndingCRLF:
		return "CR+LF"
	default:
		return "unknown"
	}
}

// Suffix returns the bytes appended for this ending
func (l LineEnding) Suffix() string {
	switch l {
	case LineEndingCR:
		return "\r"
	case LineEndingLF:
		return "\n"
	case LineEndingCRLF:
		return "\r\n"
	default:
		return ""
	}
}

// Next returns the ending that follows l when cycling
func (l LineEnding) Next() LineEnding {
	return LineEndings[(int(l)+1)%len(LineEndings)]
}

// ParseLineEnding converts a user supplied name to a LineEnding
func ParseLineEnding(s string) (LineEnding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return LineEndingNone, nil
	case "cr":
		return LineEndingCR, nil
	case "lf", "nl":
		return LineEndingLF, nil
	case "cr+lf", "crlf", "cr/lf":
		return LineEndingCRLF, nil
	}
	return LineEndingNone, apperror.Newf(apperror.KindValidation, "parse line ending", "invalid line ending: %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (l LineEnding) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler
func (l *LineEnding) UnmarshalText(text []byte) error {
	v, err := ParseLineEnding(string(text))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// EncodePayload converts user input to the bytes put on the wire. In hex
// mode whitespace is ignored and the remaining digits must form whole bytes.
func EncodePayload(text string, asHex bool, ending LineEnding) ([]byte, error) {
	if text == "" {
		return nil, apperror.New(apperror.KindValidation, "encode", "nothing to send")
	}

	var payload []byte
	if asHex {
		digits := strings.Join(strings.Fields(text), "")
		if digits == "" {
			return nil, apperror.New(apperror.KindValidation, "encode", "nothing to send")
		}
		decoded, err := hex.DecodeString(digits)
		if err != nil {
			return nil, apperror.Newf(apperror.KindValidation, "encode", "invalid hex string %q: %v", text, err)
		}
		payload = decoded
	} else {
		payload = []byte(text)
	}

	return append(payload, ending.Suffix()...), nil
}
