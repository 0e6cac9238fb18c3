package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindOpenFailed, "open failed"},
		{KindWriteFailed, "write failed"},
		{KindReadFault, "read fault"},
		{KindValidation, "validation"},
		{KindPersistence, "persistence"},
		{KindNotOpen, "not open"},
		{Kind(999), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.expected {
				t.Errorf("Kind.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"kind only", New(KindNotOpen, "", ""), "not open"},
		{"op and message", New(KindValidation, "send", "odd length"), "send: odd length"},
		{"wrapped", Wrap(KindOpenFailed, "open COM1", errors.New("busy")), "open COM1: open failed: busy"},
		{"formatted", Newf(KindValidation, "parse", "bad value %q", "x"), `parse: bad value "x"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKindOf_WrappedChain(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("saving commands: %w", Wrap(KindPersistence, "save", cause))

	if KindOf(err) != KindPersistence {
		t.Errorf("KindOf() = %v, want persistence", KindOf(err))
	}
	if !Is(err, KindPersistence) {
		t.Error("Is(err, KindPersistence) should be true")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the original cause")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("plain errors should have unknown kind")
	}
	if Is(nil, KindUnknown) {
		t.Error("nil error should not match any kind")
	}
}

func TestWrap_Nil(t *testing.T) {
	if Wrap(KindReadFault, "read", nil) != nil {
		t.Error("Wrap(nil) should return nil")
	}
}
