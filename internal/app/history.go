package app

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/botwatch/internal/output"
	"github.com/blackwell-systems/botwatch/internal/store"
)

var (
	historyRun      string
	historyKind     string
	historyLimit    int
	historyCoverage bool

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs and events",
		Long: `Show the runs and events recorded by "watch", "run" and "scan --record".

Without --run, the most recent runs are listed. With --run, the events of that
run are listed; --run accepts a full ID, an ID prefix, or "latest".`,
		Example: `  # List recent runs
  botwatch history

  # Exceptions of the last run
  botwatch history --run latest --kind exception

  # Coverage over time for a run
  botwatch history --run 3f2a --coverage`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}
)

func init() {
	historyCmd.Flags().StringVar(&historyRun, "run", "", "run ID, ID prefix, or 'latest'")
	historyCmd.Flags().StringVar(&historyKind, "kind", "", "only events of this kind: exception, statistics, coverage")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum rows to show (0 for all)")
	historyCmd.Flags().BoolVar(&historyCoverage, "coverage", false, "show the coverage series of --run")
}

func runHistory(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	path, err := getDBPath()
	if err != nil {
		return fmt.Errorf("failed to get database path: %w", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return store.ErrNotInitialized
	}

	st, err := store.New(path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	if historyCoverage && historyRun == "" {
		historyRun = "latest"
	}

	if historyRun == "" {
		if historyKind != "" {
			events, err := st.ListEvents("", historyKind, historyLimit)
			if err != nil {
				return err
			}
			fmt.Fprint(out, output.RenderEventTable(events))
			return nil
		}

		runs, err := st.ListRuns(historyLimit)
		if err != nil {
			return err
		}
		fmt.Fprint(out, output.RenderRunTable(runs))
		return nil
	}

	run, err := resolveRun(st, historyRun)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Run %s  %s\n", run.ID, run.LogPath)
	if run.Command != "" {
		fmt.Fprintf(out, "Command: %s\n", run.Command)
	}
	fmt.Fprintln(out)

	if historyCoverage {
		points, err := st.CoverageSeries(run.ID)
		if err != nil {
			return err
		}
		fmt.Fprint(out, output.RenderCoverageSeries(points))
		return nil
	}

	events, err := st.ListEvents(run.ID, historyKind, historyLimit)
	if err != nil {
		return err
	}
	fmt.Fprint(out, output.RenderEventTable(events))
	return nil
}

var errAmbiguousRun = errors.New("ambiguous run ID prefix")

// resolveRun finds a run by "latest", full ID, or unique ID prefix.
func resolveRun(st *store.Store, ref string) (*store.Run, error) {
	runs, err := st.ListRuns(0)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("no runs recorded")
	}
	if ref == "latest" {
		return runs[0], nil
	}

	var match *store.Run
	for _, run := range runs {
		if run.ID == ref {
			return run, nil
		}
		if strings.HasPrefix(run.ID, ref) {
			if match != nil {
				return nil, fmt.Errorf("%w: %s", errAmbiguousRun, ref)
			}
			match = run
		}
	}
	if match == nil {
		return nil, fmt.Errorf("run %s not found", ref)
	}
	return match, nil
}
