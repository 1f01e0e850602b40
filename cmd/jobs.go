package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect the scrape job queue",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known jobs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		jobs, err := env.Broker.ListJobs(ctx)
		if err != nil {
			return err
		}

		for _, job := range jobs {
			fmt.Printf("%s  %-9s  attempts=%d/%d  %s\n",
				job.ID, job.State, job.Attempts, job.MaxAttempts, job.Payload.URL)
		}
		return nil
	},
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show one job's status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		job, err := env.Broker.GetJob(ctx, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

func init() {
	jobsCmd.AddCommand(jobsListCmd, jobsStatusCmd)
	rootCmd.AddCommand(jobsCmd)
}
