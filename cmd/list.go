package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"spark-terminal/pkg/serial"
)

func newListCmd(root *rootOptions) *cobra.Command {
	var (
		details bool
		format  string
	)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available serial ports",
		Long: `List all available serial ports on the system.

On Windows these are COM ports, on Linux /dev/tty* devices and on macOS
/dev/cu.* and /dev/tty.* devices. USB details are shown with --details
where the platform reports them.`,
		Aliases: []string{"ls", "ports"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := root.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return printPorts(cmd.OutOrStdout(), listDetailedPorts(env.log), format, details)
		},
	}

	listCmd.Flags().BoolVar(&details, "details", false, "show detailed port information")
	listCmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table, csv, json)")
	return listCmd
}

func printPorts(w io.Writer, ports []serial.PortInfo, format string, details bool) error {
	switch format {
	case "csv":
		return printPortsCSV(w, ports, details)
	case "json":
		return printPortsJSON(w, ports, details)
	case "table", "":
		printPortsTable(w, ports, details)
		return nil
	}
	return fmt.Errorf("unsupported format: %s", format)
}

func printPortsTable(w io.Writer, ports []serial.PortInfo, details bool) {
	if len(ports) == 0 {
		fmt.Fprintln(w, "No serial ports found.")
		return
	}

	fmt.Fprintf(w, "Found %d serial port(s):\n", len(ports))
	for _, port := range ports {
		fmt.Fprintf(w, "  %s", port.Name)
		if details && port.IsUSB {
			fmt.Fprint(w, " [USB]")
			if port.VID != "" || port.PID != "" {
				fmt.Fprintf(w, " VID:%s PID:%s", port.VID, port.PID)
			}
			if port.Product != "" {
				fmt.Fprintf(w, " - %s", port.Product)
			}
			if port.SerialNumber != "" {
				fmt.Fprintf(w, " (SN: %s)", port.SerialNumber)
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "\nUse 'spark-terminal connect <port>' to connect.")
}

func printPortsCSV(w io.Writer, ports []serial.PortInfo, details bool) error {
	out := csv.NewWriter(w)
	if details {
		out.Write([]string{"port", "is_usb", "vid", "pid", "product", "serial_number"})
		for _, port := range ports {
			out.Write([]string{port.Name, strconv.FormatBool(port.IsUSB), port.VID, port.PID, port.Product, port.SerialNumber})
		}
	} else {
		out.Write([]string{"port"})
		for _, port := range ports {
			out.Write([]string{port.Name})
		}
	}
	out.Flush()
	return out.Error()
}

func printPortsJSON(w io.Writer, ports []serial.PortInfo, details bool) error {
	var v any = ports
	if !details {
		names := make([]string, 0, len(ports))
		for _, port := range ports {
			names = append(names, port.Name)
		}
		v = names
	} else if ports == nil {
		v = []serial.PortInfo{}
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ports: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
