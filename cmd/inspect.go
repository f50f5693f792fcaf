package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quantum-chronometer/qchrono/sim"
)

// inspectCmd validates a board document and summarizes it.
var inspectCmd = &cobra.Command{
	Use:   "inspect FILE",
	Short: "Validate a saved board document and print its contents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading board %s: %w", args[0], err)
		}
		d, err := sim.Decode(data)
		if err != nil {
			return err
		}
		return printBoard(cmd.OutOrStdout(), d)
	},
}

func printBoard(out io.Writer, d *sim.Decoded) error {
	fmt.Fprintf(out, "entities:          %d\n", len(d.Entities))
	fmt.Fprintf(out, "entangled pairs:   %d\n", len(d.Pairs()))
	fmt.Fprintf(out, "accumulated time:  %s\n", sim.FormatClock(d.AccumulatedTime))
	fmt.Fprintf(out, "time distortion:   %.4f\n", d.TimeDistortion)
	if len(d.Entities) == 0 {
		return nil
	}
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTEXT\tX\tY\tSYMBOL\tGLYPHS\tWIDTH")
	for _, e := range d.Entities {
		text := e.Text
		if e.IsSingularity() {
			text += " (singularity)"
		}
		fmt.Fprintf(w, "%s\t%s\t%.1f\t%.1f\t%s\t%d\t%d\n",
			e.ID, text, e.Position.X, e.Position.Y, e.Variant, e.GlyphCount(), e.DisplayWidth())
	}
	for _, p := range d.Pairs() {
		fmt.Fprintf(w, "pair\t%s\t%s\t\t\t\t\n", p[0], p[1])
	}
	return w.Flush()
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
