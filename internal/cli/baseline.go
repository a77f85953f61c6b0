// internal/cli/baseline.go
package microbench

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwiater/microbench/internal/baseline"
)

var openBaseline = baseline.Open

// baselineCmd groups the commands that inspect the stored baselines.
var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Inspect or remove stored baselines",
}

var baselineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored baselines",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if cfg == nil {
			return errors.New("configuration is not initialized")
		}
		store, err := openBaseline(cfg.BaselineDir())
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, "No baselines stored.")
			return nil
		}
		for _, e := range entries {
			fmt.Fprintf(out, "%s  %s %s ms  %s %s\n",
				titleStyle.Render(e.Result.Workload),
				labelStyle.Render("median"), formatMillis(e.Result.Summary.Median),
				labelStyle.Render("saved"), e.SavedAt.Format(time.RFC3339))
		}
		return nil
	},
}

var baselineDeleteCmd = &cobra.Command{
	Use:   "delete <workload>",
	Short: "Remove the stored baseline for a workload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if cfg == nil {
			return errors.New("configuration is not initialized")
		}
		store, err := openBaseline(cfg.BaselineDir())
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted baseline for %s\n", args[0])
		return nil
	},
}

func init() {
	baselineCmd.AddCommand(baselineListCmd)
	baselineCmd.AddCommand(baselineDeleteCmd)
	rootCmd.AddCommand(baselineCmd)
}
