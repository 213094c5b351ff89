package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/botwatch/internal/output"
	"github.com/blackwell-systems/botwatch/internal/store"
	"github.com/blackwell-systems/botwatch/internal/watcher"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check daemon status and the last recorded run",
	Long: `Display whether the watch daemon is running, where the history database
lives, and a summary of the most recent run.`,
	Example: `  # Check status
  botwatch status`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	pidFile, err := getDefaultPIDFile()
	if err != nil {
		return fmt.Errorf("failed to get PID file path: %w", err)
	}

	running, err := watcher.IsDaemonRunning(pidFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	if running {
		pid := "?"
		if data, err := os.ReadFile(pidFile); err == nil {
			pid = strings.TrimSpace(string(data))
		}
		fmt.Fprintf(out, "Daemon:   running (PID %s)\n", pid)
	} else {
		fmt.Fprintln(out, "Daemon:   not running")
	}
	fmt.Fprintf(out, "Log:      %s\n", cfg.LogPath)

	path, err := getDBPath()
	if err != nil {
		return fmt.Errorf("failed to get database path: %w", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintf(out, "History:  %s (not created yet)\n", path)
		return nil
	}
	fmt.Fprintf(out, "History:  %s\n", path)

	st, err := store.New(path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	runs, err := st.ListRuns(1)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "Last run: none")
		return nil
	}

	fmt.Fprintln(out)
	fmt.Fprint(out, output.RenderRunTable(runs))
	return nil
}
