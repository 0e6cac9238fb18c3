package cmd

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"spark-terminal/pkg/commands"
)

func newCommandsCmd(root *rootOptions) *cobra.Command {
	commandsCmd := &cobra.Command{
		Use:     "commands",
		Short:   "Manage saved command shortcuts",
		Aliases: []string{"cmds"},
		Long: `Manage the library of saved commands offered by the F2 picker.

Commands are numbered from 1 in the order they are stored.`,
	}

	// withStore opens the store and hands it to fn
	withStore := func(fn func(cmd *cobra.Command, args []string, store *commands.Store) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			env, err := root.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			store, err := commands.Open(env.paths.CommandLocations(), env.log)
			if err != nil {
				return err
			}
			return fn(cmd, args, store)
		}
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved commands",
		Args:  cobra.NoArgs,
		RunE: withStore(func(cmd *cobra.Command, args []string, store *commands.Store) error {
			entries := store.Commands()
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No saved commands.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tNAME\tTYPE\tCOMMAND")
			for i, e := range entries {
				kind := "text"
				if e.IsHex {
					kind = "hex"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, e.Name, kind, e.Command)
			}
			return w.Flush()
		}),
	}

	var addHex bool
	addCmd := &cobra.Command{
		Use:   "add <name> <command>",
		Short: "Add a saved command",
		Args:  cobra.ExactArgs(2),
		RunE: withStore(func(cmd *cobra.Command, args []string, store *commands.Store) error {
			if err := store.Add(args[0], args[1], addHex); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added '%s' as #%d.\n", args[0], store.Len())
			return nil
		}),
	}
	addCmd.Flags().BoolVar(&addHex, "hex", false, "the command is hex encoded")

	var updateHex bool
	updateCmd := &cobra.Command{
		Use:   "update <number> <name> <command>",
		Short: "Replace a saved command",
		Args:  cobra.ExactArgs(3),
		RunE: withStore(func(cmd *cobra.Command, args []string, store *commands.Store) error {
			index, err := parseIndex(args[0], store)
			if err != nil {
				return err
			}
			if err := store.Update(index, args[1], args[2], updateHex); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated #%d.\n", index+1)
			return nil
		}),
	}
	updateCmd.Flags().BoolVar(&updateHex, "hex", false, "the command is hex encoded")

	deleteCmd := &cobra.Command{
		Use:     "delete <number>",
		Short:   "Delete a saved command",
		Aliases: []string{"rm", "remove"},
		Args:    cobra.ExactArgs(1),
		RunE: withStore(func(cmd *cobra.Command, args []string, store *commands.Store) error {
			index, err := parseIndex(args[0], store)
			if err != nil {
				return err
			}
			entry, _ := store.Get(index)
			if err := store.Delete(index); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted '%s'.\n", entry.Name)
			return nil
		}),
	}

	replaceCmd := &cobra.Command{
		Use:   "replace <find> <replace>",
		Short: "Replace text in every saved command",
		Args:  cobra.ExactArgs(2),
		RunE: withStore(func(cmd *cobra.Command, args []string, store *commands.Store) error {
			n, err := store.BulkReplace(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %d command(s).\n", n)
			return nil
		}),
	}

	var importMode string
	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import commands from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(cmd *cobra.Command, args []string, store *commands.Store) error {
			mode, err := commands.ParseImportMode(importMode)
			if err != nil {
				return err
			}
			n, err := store.ImportFile(args[0], mode)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d command(s) (%s).\n", n, mode)
			return nil
		}),
	}
	importCmd.Flags().StringVarP(&importMode, "mode", "m", "merge", "merge (skip existing names) or replace")

	exportCmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Export commands to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(cmd *cobra.Command, args []string, store *commands.Store) error {
			if err := store.Export(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d command(s) to %s.\n", store.Len(), args[0])
			return nil
		}),
	}

	pathCmd := &cobra.Command{
		Use:   "path [new-file]",
		Short: "Show or change the command file",
		Long: `Without an argument, print the command file in use. With one, save the
commands to the new file and use it from now on.`,
		Args: cobra.MaximumNArgs(1),
		RunE: withStore(func(cmd *cobra.Command, args []string, store *commands.Store) error {
			if len(args) == 1 {
				if err := store.SetCustomPath(args[0]); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), store.Path())
			return nil
		}),
	}

	commandsCmd.AddCommand(listCmd, addCmd, updateCmd, deleteCmd, replaceCmd, importCmd, exportCmd, pathCmd)
	return commandsCmd
}

// parseIndex converts a 1-based command number to an index into store
func parseIndex(arg string, store *commands.Store) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > store.Len() {
		return 0, fmt.Errorf("no saved command #%s (have %d)", arg, store.Len())
	}
	return n - 1, nil
}
