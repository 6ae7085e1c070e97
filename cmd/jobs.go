package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"smbsyncd/internal/model"

	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and control transfer jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all known jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(daemonURL("/jobs/"))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var jobs []model.JobSummary
		if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
			return fmt.Errorf("unexpected daemon response: %w", err)
		}

		if len(jobs) == 0 {
			fmt.Println("no jobs")
			return nil
		}

		fmt.Printf("%-36s %-12s %-12s %-10s %s\n", "ID", "SERVER", "SCHEDULE", "STATUS", "BYTES")
		for _, j := range jobs {
			var bytes int64
			if j.LastStats != nil {
				bytes = j.LastStats.Bytes
			}
			fmt.Printf("%-36s %-12s %-12s %-10s %d\n", j.JobID, j.Server, j.Schedule, j.Status, bytes)
		}

		return nil
	},
}

var jobsGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show one job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(daemonURL("/jobs/" + args[0]))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("daemon error: %s", string(body))
		}

		fmt.Println(string(body))
		return nil
	},
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a running job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, _ := http.NewRequest(http.MethodDelete, daemonURL("/jobs/"+args[0]), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		if resp.StatusCode != http.StatusNoContent {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("cancel failed: %s", string(body))
		}

		fmt.Printf("job %s cancelled\n", args[0])
		return nil
	},
}

var jobsStartCmd = &cobra.Command{
	Use:   "start [server] [schedule]",
	Short: "Start a schedule on the next scheduler tick",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := fmt.Sprintf(`{"server":%q,"schedule":%q}`, args[0], args[1])
		resp, err := http.Post(
			daemonURL("/jobs/start"),
			"application/json",
			strings.NewReader(body))

		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		if resp.StatusCode != http.StatusNoContent {
			respBody, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("start failed: %s", string(respBody))
		}

		fmt.Printf("start requested: server=%s schedule=%s\n", args[0], args[1])
		return nil
	},
}

func init() {
	jobsCmd.AddCommand(jobsListCmd, jobsGetCmd, jobsCancelCmd, jobsStartCmd)
	rootCmd.AddCommand(jobsCmd)
}
