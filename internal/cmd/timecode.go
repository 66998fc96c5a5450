package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/strrl/meetscope/internal/timecode"
)

var timecodeCmd = &cobra.Command{
	Use:   "timecode <timestamp>...",
	Short: "Convert HH:MM:SS or MM:SS timestamps to seconds",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printTimecodes(cmd.OutOrStdout(), args)
	},
}

func init() {
	rootCmd.AddCommand(timecodeCmd)
}

// printTimecodes converts every argument and reports the first invalid one
// after printing the rest.
func printTimecodes(w io.Writer, values []string) error {
	var firstErr error
	for _, v := range values {
		seconds, err := timecode.ParseSeconds(v)
		if err != nil {
			fmt.Fprintf(w, "%s\tinvalid\n", v)
			if firstErr == nil {
				firstErr = fmt.Errorf("%q: %w", v, err)
			}
			continue
		}
		fmt.Fprintf(w, "%s\t%g\t%s\n", v, seconds, timecode.Format(seconds))
	}
	return firstErr
}
