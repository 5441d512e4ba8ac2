package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewRollbackCmd создаёт команду emergency rollback.
func NewRollbackCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req RollbackRequest
	var workspace string

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Emergency rollback to a known-good sidecar version",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if workspace != "" {
				req.WorkspaceID = workspace
			}

			result, err := client.EmergencyRollback(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Emergency rollback initiated: %d tenants, ~%ds",
				result.TenantCount, result.EstimateSeconds))
			out.Print(
				[]string{"TENANTS", "ESTIMATE_SECONDS", "JOBS"},
				[][]string{{
					strconv.Itoa(result.TenantCount),
					strconv.Itoa(result.EstimateSeconds),
					strconv.Itoa(len(result.JobIDs)),
				}},
				result,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.ToVersion, "to", "", "Known-good version (required)")
	cmd.Flags().StringVar(&workspace, "workspace", "", "Roll back a single tenant")
	cmd.Flags().StringSliceVar(&req.WorkspaceIDs, "workspaces", nil, "Roll back an explicit tenant list")
	cmd.Flags().BoolVar(&req.EntireFleet, "fleet", false, "Roll back the entire fleet")
	cmd.Flags().StringVar(&req.Reason, "reason", "", "Incident reason")
	cmd.MarkFlagRequired("to")

	return cmd
}
