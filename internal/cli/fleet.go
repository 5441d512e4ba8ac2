package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewFleetCmd создаёт группу команд состояния флота.
func NewFleetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fleet",
		Short: "Inspect fleet health and versions",
	}

	cmd.AddCommand(
		newFleetListCmd(clientFn, outputFn),
		newFleetShowCmd(clientFn, outputFn),
		newFleetCompatCmd(clientFn, outputFn),
	)

	return cmd
}

func newFleetListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List non-hibernated droplets",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			fleet, err := client.ListFleet()
			if err != nil {
				return err
			}

			headers := []string{"WORKSPACE", "DROPLET", "STATE", "CPU", "MEM", "DISK", "SIDECAR", "LAST_HEARTBEAT"}
			rows := make([][]string, len(fleet))
			for i, d := range fleet {
				rows[i] = []string{
					d.WorkspaceID,
					d.DropletID,
					d.State,
					formatPercent(d.CPUPercent),
					formatPercent(d.MemoryPercent),
					formatPercent(d.DiskPercent),
					formatHealthy(d.SidecarHealthy),
					orDash(d.LastHeartbeatAt),
				}
			}

			out.Print(headers, rows, fleet)
			return nil
		},
	}
}

func newFleetShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show <workspace-id>",
		Short: "Show one tenant: droplet health and component versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tenant, err := client.GetTenant(args[0])
			if err != nil {
				return err
			}

			headers := []string{"WORKSPACE", "DROPLET", "STATE", "SIDECAR_VERSION", "UPDATE_STATUS"}
			sidecarVersion, updateStatus := "-", "-"
			if tenant.Versions != nil {
				sidecarVersion = tenant.Versions.SidecarVersion
				updateStatus = tenant.Versions.UpdateStatus
			}
			rows := [][]string{{
				tenant.Health.WorkspaceID,
				tenant.Health.DropletID,
				tenant.Health.State,
				sidecarVersion,
				updateStatus,
			}}

			out.Print(headers, rows, tenant)
			return nil
		},
	}
}

func newFleetCompatCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req CompatCheckRequest

	cmd := &cobra.Command{
		Use:   "compat",
		Short: "Check a version triple against the compatibility registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			result, err := client.CheckCompat(req)
			if err != nil {
				return err
			}

			out.Print(
				[]string{"COMPATIBLE", "STATUS", "RULE"},
				[][]string{{strconv.FormatBool(result.Compatible), result.Status, result.MatchingRule}},
				result,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Dashboard, "dashboard", "", "Dashboard version")
	cmd.Flags().StringVar(&req.Sidecar, "sidecar", "", "Sidecar version")
	cmd.Flags().StringVar(&req.Workflow, "workflow", "", "Workflow version")
	cmd.MarkFlagRequired("dashboard")
	cmd.MarkFlagRequired("sidecar")
	cmd.MarkFlagRequired("workflow")

	return cmd
}
