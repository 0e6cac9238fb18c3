package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"spark-terminal/pkg/config"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage connection profiles and settings",
		Long: `Manage saved connection profiles and the settings file.

A profile stores a port with its framing parameters under a name that can
be used wherever a port is expected.`,
	}

	var (
		saveFraming framingFlags
		savePort    string
		description string
	)
	saveCmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Save a connection profile",
		Long: `Save connection settings under a name.

Example:
  spark-terminal config save mydevice -p COM3 -b 115200`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := root.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			settings := env.settings.Connection
			settings.Port = savePort
			if err := saveFraming.apply(cmd, &settings); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			profiles := config.NewProfileManager(env.paths.ProfilesFile())
			if err := profiles.Save(args[0], settings); err != nil {
				return err
			}
			if cmd.Flags().Changed("description") {
				if err := profiles.SetDescription(args[0], description); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Profile '%s' saved.\n", args[0])
			fmt.Fprintf(out, "  Port:     %s\n", settings.Port)
			fmt.Fprintf(out, "  Settings: %s\n", settings.Summary())
			return nil
		},
	}
	saveFraming.register(saveCmd)
	saveCmd.Flags().StringVarP(&savePort, "port", "p", "", "serial port")
	saveCmd.Flags().StringVar(&description, "description", "", "free text shown by list and show")
	saveCmd.MarkFlagRequired("port")

	var (
		loadSession  sessionFlags
		loadHeadless bool
	)
	loadCmd := &cobra.Command{
		Use:   "load <name>",
		Short: "Connect using a saved profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := root.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			profiles := config.NewProfileManager(env.paths.ProfilesFile())
			settings, err := profiles.Load(args[0])
			if err != nil {
				return err
			}
			return runSession(cmd, env, settings, &loadSession, loadHeadless)
		},
	}
	loadSession.register(loadCmd)
	loadCmd.Flags().BoolVar(&loadHeadless, "headless", false, "line mode: send stdin lines, print received data to stdout")

	var search string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := root.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			profiles, err := config.NewProfileManager(env.paths.ProfilesFile()).Search(search)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(profiles) == 0 {
				fmt.Fprintln(out, "No saved profiles found.")
				fmt.Fprintln(out, "\nUse 'spark-terminal config save <name>' to save one.")
				return nil
			}

			fmt.Fprintf(out, "Found %d saved profile(s):\n\n", len(profiles))
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPORT\tSETTINGS\tLAST USED\tDESCRIPTION")
			for _, p := range profiles {
				lastUsed := "Never"
				if !p.LastUsedAt.IsZero() {
					lastUsed = p.LastUsedAt.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.Name, p.Settings.Port, p.Settings.Summary(), lastUsed, p.Description)
			}
			return w.Flush()
		},
	}
	listCmd.Flags().StringVar(&search, "search", "", "only show profiles whose name or description contains this")

	deleteCmd := &cobra.Command{
		Use:     "delete <name>",
		Short:   "Delete a saved profile",
		Aliases: []string{"rm", "remove"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := root.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := config.NewProfileManager(env.paths.ProfilesFile()).Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Profile '%s' deleted.\n", args[0])
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show a saved profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := root.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			p, err := config.NewProfileManager(env.paths.ProfilesFile()).Get(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			s := p.Settings
			fmt.Fprintf(out, "Profile: %s\n", p.Name)
			fmt.Fprintln(out, strings.Repeat("=", len(p.Name)+9))
			fmt.Fprintf(out, "Port:         %s\n", s.Port)
			fmt.Fprintf(out, "Baud Rate:    %d\n", s.BaudRate)
			fmt.Fprintf(out, "Data Bits:    %d\n", s.DataBits)
			fmt.Fprintf(out, "Parity:       %s\n", s.Parity)
			fmt.Fprintf(out, "Stop Bits:    %s\n", s.StopBits)
			fmt.Fprintf(out, "Flow Control: %s\n", s.FlowControl)
			if p.Description != "" {
				fmt.Fprintf(out, "Description:  %s\n", p.Description)
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Created:      %s\n", p.CreatedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "Last Used:    %s\n", p.LastUsedAt.Format(time.RFC3339))
			return nil
		},
	}

	var writeDefaults bool
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Print the effective settings",
		Long: `Print the settings read from settings.yaml, with defaults filled in.
With --init, write them to the file when it does not exist yet.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := root.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			path := env.paths.SettingsFile()
			if writeDefaults {
				if _, err := os.Stat(path); os.IsNotExist(err) {
					if err := config.SaveSettings(path, env.settings); err != nil {
						return err
					}
					env.log.Infof("wrote %s", path)
				}
			}

			data, err := yaml.Marshal(env.settings)
			if err != nil {
				return fmt.Errorf("failed to marshal settings: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s\n", path)
			_, err = out.Write(data)
			return err
		},
	}
	settingsCmd.Flags().BoolVar(&writeDefaults, "init", false, "create settings.yaml if it is missing")

	configCmd.AddCommand(saveCmd, loadCmd, listCmd, deleteCmd, showCmd, settingsCmd)
	return configCmd
}
