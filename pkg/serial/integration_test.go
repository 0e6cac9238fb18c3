//go:build integration
// +build integration

package serial

import (
	"testing"
	"time"

	"spark-terminal/pkg/apperror"
	"spark-terminal/pkg/logging"
)

// TestListPorts tests the actual port enumeration
func TestListPorts(t *testing.T) {
	ports := NewCatalog(logging.Discard()).ListPorts()

	// no specific port can be expected, only that enumeration works
	t.Logf("Available ports: %v", ports)
}

// TestListDetailedPorts tests the detailed port information
func TestListDetailedPorts(t *testing.T) {
	for _, info := range NewCatalog(logging.Discard()).ListDetailedPorts() {
		t.Logf("Port: %s, USB: %v, VID: %s, PID: %s, Serial: %s, Product: %s",
			info.Name, info.IsUSB, info.VID, info.PID, info.SerialNumber, info.Product)
	}
}

// TestOpenNonExistentPort tests that a missing device is reported as an event
func TestOpenNonExistentPort(t *testing.T) {
	settings := DefaultSettings()
	settings.Port = "/dev/does-not-exist-999"

	ch, err := NewManager(logging.Discard()).Open(settings)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch.Events():
			if !ok {
				t.Fatal("stream closed without an open failure")
			}
			if ev.Kind == EventError {
				if !apperror.Is(ev.Err, apperror.KindOpenFailed) {
					t.Errorf("error kind = %v, want open failed", apperror.KindOf(ev.Err))
				}
				for range ch.Events() {
				}
				return
			}
		case <-timeout:
			t.Fatal("timed out waiting for open failure")
		}
	}
}
