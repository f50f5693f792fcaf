package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantum-chronometer/qchrono/sim/slots"
)

var slotsDBPath string // Save slot database for the slots subcommands

// slotsCmd groups save slot maintenance
var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "Manage saved boards in the slot database",
}

var slotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List save slots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSlots(func(store *slots.Store) error {
			list, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tENTITIES\tBYTES\tSAVED")
			for _, sl := range list {
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", sl.Name, sl.Entities, sl.Size, sl.SavedAt.Format(time.RFC3339))
			}
			return w.Flush()
		})
	},
}

var slotsExportCmd = &cobra.Command{
	Use:   "export NAME FILE",
	Short: "Write a save slot to a board document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSlots(func(store *slots.Store) error {
			data, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], data, 0o644); err != nil {
				return fmt.Errorf("writing board %s: %w", args[1], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %q to %s\n", args[0], args[1])
			return nil
		})
	},
}

var slotsImportCmd = &cobra.Command{
	Use:   "import FILE NAME",
	Short: "Validate a board document and store it in a save slot",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading board %s: %w", args[0], err)
		}
		return withSlots(func(store *slots.Store) error {
			if err := store.Import(cmd.Context(), args[1], data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s as %q\n", args[0], args[1])
			return nil
		})
	},
}

var slotsDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Remove a save slot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSlots(func(store *slots.Store) error {
			return store.Delete(cmd.Context(), args[0])
		})
	},
}

func withSlots(fn func(*slots.Store) error) error {
	store, err := slots.Open(slotsDBPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return fn(store)
}

func init() {
	slotsCmd.PersistentFlags().StringVar(&slotsDBPath, "db", slots.DefaultPath, "Save slot database path")
	slotsCmd.AddCommand(slotsListCmd, slotsExportCmd, slotsImportCmd, slotsDeleteCmd)
	rootCmd.AddCommand(slotsCmd)
}
