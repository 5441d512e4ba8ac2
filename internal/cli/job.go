package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewJobCmd создаёт группу команд для ad-hoc задач.
func NewJobCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Enqueue and inspect fleet jobs",
	}

	cmd.AddCommand(
		newJobShowCmd(clientFn, outputFn),
		newJobWakeCmd(clientFn, outputFn),
		newJobRebootCmd(clientFn, outputFn),
	)

	return cmd
}

var jobHeaders = []string{"ID", "QUEUE", "WORKSPACE", "STATUS", "ATTEMPTS", "ERROR"}

func jobRow(j *JobResponse) []string {
	return []string{j.ID, j.Queue, j.WorkspaceID, j.Status, fmt.Sprint(j.Attempts), orDash(j.LastError)}
}

func newJobShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show job status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.GetJob(args[0])
			if err != nil {
				return err
			}

			out.Print(jobHeaders, [][]string{jobRow(job)}, job)
			return nil
		},
	}
}

func newJobWakeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var workspaceID, dropletID, reason string

	cmd := &cobra.Command{
		Use:   "wake",
		Short: "Wake a hibernated droplet",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.EnqueueJob("wake-droplet", map[string]string{
				"workspace_id": workspaceID,
				"droplet_id":   dropletID,
				"reason":       reason,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Wake job enqueued: %s", job.ID))
			out.Print(jobHeaders, [][]string{jobRow(job)}, job)
			return nil
		},
	}

	cmd.Flags().StringVar(&workspaceID, "workspace", "", "Workspace ID")
	cmd.Flags().StringVar(&dropletID, "droplet", "", "Droplet ID")
	cmd.Flags().StringVar(&reason, "reason", "admin_request", "Wake reason")
	cmd.MarkFlagRequired("workspace")
	cmd.MarkFlagRequired("droplet")

	return cmd
}

func newJobRebootCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var workspaceID, dropletID string

	cmd := &cobra.Command{
		Use:   "reboot",
		Short: "Force power-cycle a droplet",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.EnqueueJob("hard-reboot", map[string]string{
				"workspace_id": workspaceID,
				"droplet_id":   dropletID,
				"reason":       "admin_request",
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Reboot job enqueued: %s", job.ID))
			out.Print(jobHeaders, [][]string{jobRow(job)}, job)
			return nil
		},
	}

	cmd.Flags().StringVar(&workspaceID, "workspace", "", "Workspace ID")
	cmd.Flags().StringVar(&dropletID, "droplet", "", "Droplet ID")
	cmd.MarkFlagRequired("workspace")
	cmd.MarkFlagRequired("droplet")

	return cmd
}
