package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/strrl/meetscope/internal/db"
	"github.com/strrl/meetscope/internal/output"
)

var (
	historyLimit  int
	historyFormat string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect past analyses",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent analyses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(func(store *db.Store) error {
			runs, err := store.ListRuns(cmd.Context(), historyLimit)
			if err != nil {
				return err
			}
			printRuns(cmd.OutOrStdout(), runs)
			return nil
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print the report of a past analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(historyFormat)
		if err != nil {
			return err
		}
		return withHistory(func(store *db.Store) error {
			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return output.Render(cmd.OutOrStdout(), run, nil, format, output.RenderOptions{
				AudioURL: output.FileURL(run.AudioPath),
			})
		})
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how often each indicator was detected across all analyses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(func(store *db.Store) error {
			stats, err := store.IndicatorStats(cmd.Context())
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), stats)
			return nil
		})
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Remove an analysis from history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(func(store *db.Store) error {
			if err := store.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyStatsCmd, historyDeleteCmd)

	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list")
	historyShowCmd.Flags().StringVarP(&historyFormat, "format", "f", "markdown", "Report format: markdown, json, yaml, html")
}

func withHistory(fn func(store *db.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func printRuns(w io.Writer, runs []db.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No analyses recorded yet")
		return
	}

	fmt.Fprintf(w, "%-36s  %-16s  %-18s  %8s  %s\n", "ID", "CREATED", "MODEL", "EXAMPLES", "PARTICIPANTS")
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s  %-16s  %-18s  %8d  %s\n",
			r.ID,
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Model,
			r.Examples,
			strings.Join(r.Participants, ", "),
		)
	}
}

func printStats(w io.Writer, stats []db.IndicatorStat) {
	if len(stats) == 0 {
		fmt.Fprintln(w, "No indicators recorded yet")
		return
	}

	fmt.Fprintf(w, "%-28s  %8s  %5s  %12s\n", "INDICATOR", "EXAMPLES", "RUNS", "PARTICIPANTS")
	for _, s := range stats {
		fmt.Fprintf(w, "%-28s  %8d  %5d  %12d\n", s.Kind.Label(), s.Examples, s.Runs, s.Participants)
	}
}
