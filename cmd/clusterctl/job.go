package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cuemby/clustercore/pkg/client"
	"github.com/cuemby/clustercore/pkg/types"
)

var (
	jobManagerURL string
	jobSchemaName string
	jobPayload    string
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Submit jobs to a running cluster and query their status",
}

var jobSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a job",
	RunE: func(cmd *cobra.Command, args []string) error {
		payload := map[string]interface{}{}
		if jobPayload != "" {
			if err := json.Unmarshal([]byte(jobPayload), &payload); err != nil {
				return fmt.Errorf("invalid --payload JSON: %w", err)
			}
		}

		c := client.NewManagerClient(jobManagerURL)
		status, err := c.SubmitJob(cmd.Context(), &types.Job{
			ID:         uuid.NewString(),
			SchemaName: jobSchemaName,
			Payload:    payload,
		})
		if err != nil {
			return fmt.Errorf("submit job: %w", err)
		}
		return printJSON(status)
	},
}

var jobStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Get a job's status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.NewManagerClient(jobManagerURL)
		status, err := c.GetJobStatus(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("get job status: %w", err)
		}
		return printJSON(status)
	},
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func init() {
	jobCmd.PersistentFlags().StringVar(&jobManagerURL, "manager", "http://localhost:7700", "cluster manager base URL")
	jobSubmitCmd.Flags().StringVar(&jobSchemaName, "schema", "", "job schema name to route by")
	jobSubmitCmd.Flags().StringVar(&jobPayload, "payload", "", "job payload as a JSON object")
	jobCmd.AddCommand(jobSubmitCmd)
	jobCmd.AddCommand(jobStatusCmd)
}
