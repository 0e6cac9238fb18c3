package serial

import (
	"sort"

	"github.com/sirupsen/logrus"
	gobug "go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"spark-terminal/pkg/logging"
)

// allow tests to override the platform enumeration
var (
	getPortsList         = gobug.GetPortsList
	getDetailedPortsList = enumerator.GetDetailedPortsList
)

// PortInfo contains information about a serial port
type PortInfo struct {
	Name         string `json:"name"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
}

// Catalog enumerates the serial ports present on the host. It keeps no state
// between calls.
type Catalog struct {
	log *logrus.Entry
}

// NewCatalog creates a port catalog logging through log
func NewCatalog(log *logrus.Entry) *Catalog {
	return &Catalog{log: logging.For(log, "catalog")}
}

// ListPorts returns the names of the available ports. Enumeration failures
// are logged and reported as no ports, since an empty host is a normal state.
func (c *Catalog) ListPorts() []string {
	ports, err := getPortsList()
	if err != nil {
		c.log.WithError(err).Debug("port enumeration failed")
		return []string{}
	}
	if ports == nil {
		return []string{}
	}
	sort.Strings(ports)
	return ports
}

// ListDetailedPorts returns USB details where the platform provides them,
// falling back to bare names
func (c *Catalog) ListDetailedPorts() []PortInfo {
	details, err := getDetailedPortsList()
	if err != nil {
		c.log.WithError(err).Debug("detailed enumeration failed, falling back to names")
		names := c.ListPorts()
		infos := make([]PortInfo, 0, len(names))
		for _, name := range names {
			infos = append(infos, PortInfo{Name: name})
		}
		return infos
	}

	infos := make([]PortInfo, 0, len(details))
	for _, d := range details {
		if d == nil {
			continue
		}
		infos = append(infos, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// IsPortAvailable checks if a specific port is currently present
func (c *Catalog) IsPortAvailable(name string) bool {
	for _, port := range c.ListPorts() {
		if port == name {
			return true
		}
	}
	return false
}
