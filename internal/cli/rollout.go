package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewRolloutCmd создаёт группу команд для управления раскатками.
func NewRolloutCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollout",
		Short: "Manage fleet rollouts",
	}

	cmd.AddCommand(
		newRolloutListCmd(clientFn, outputFn),
		newRolloutShowCmd(clientFn, outputFn),
		newRolloutStartCmd(clientFn, outputFn),
		newRolloutPauseCmd(clientFn, outputFn),
		newRolloutResumeCmd(clientFn, outputFn),
		newRolloutAbortCmd(clientFn, outputFn),
	)

	return cmd
}

func rolloutRow(r *RolloutResponse) []string {
	return []string{
		r.ID,
		r.Component,
		r.ToVersion,
		r.Strategy,
		r.Status,
		strconv.Itoa(r.WaveOrdinal),
		formatProgress(r.UpdatedTenants, r.TotalTenants, r.FailedTenants),
	}
}

var rolloutHeaders = []string{"ID", "COMPONENT", "TO", "STRATEGY", "STATUS", "WAVE", "PROGRESS"}

func newRolloutListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recent rollouts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			rollouts, err := client.ListRollouts()
			if err != nil {
				return err
			}

			rows := make([][]string, len(rollouts))
			for i := range rollouts {
				rows[i] = rolloutRow(&rollouts[i])
			}

			out.Print(rolloutHeaders, rows, rollouts)
			return nil
		},
	}
}

func newRolloutShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show <rollout-id>",
		Short: "Show rollout details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			rollout, err := client.GetRollout(args[0])
			if err != nil {
				return err
			}

			out.Print(rolloutHeaders, [][]string{rolloutRow(rollout)}, rollout)
			return nil
		},
	}
}

func newRolloutStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req InitiateRolloutRequest

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Initiate a phased rollout",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			rollout, err := client.InitiateRollout(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Rollout started: %s", rollout.ID))
			out.Print(rolloutHeaders, [][]string{rolloutRow(rollout)}, rollout)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Component, "component", "", "Component to roll out (sidecar|workflow)")
	cmd.Flags().StringVar(&req.FromVersion, "from", "", "Source version (empty = entire fleet)")
	cmd.Flags().StringVar(&req.ToVersion, "to", "", "Target version")
	cmd.Flags().StringVar(&req.Strategy, "strategy", "canary", "Rollout strategy (canary|staged|immediate)")
	cmd.MarkFlagRequired("component")
	cmd.MarkFlagRequired("to")

	return cmd
}

func newRolloutPauseCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "pause <rollout-id>",
		Short: "Pause a running rollout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			rollout, err := client.PauseRollout(args[0], reason)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Rollout paused: %s", rollout.ID))
			out.Print(rolloutHeaders, [][]string{rolloutRow(rollout)}, rollout)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "operator pause", "Pause reason")
	return cmd
}

func newRolloutResumeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <rollout-id>",
		Short: "Resume a paused rollout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			rollout, err := client.ResumeRollout(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Rollout resumed: %s", rollout.ID))
			out.Print(rolloutHeaders, [][]string{rolloutRow(rollout)}, rollout)
			return nil
		},
	}
}

func newRolloutAbortCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "abort <rollout-id>",
		Short: "Abort a rollout and roll back updated tenants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			rollout, err := client.AbortRollout(args[0], reason)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Rollout aborted: %s", rollout.ID))
			out.Print(rolloutHeaders, [][]string{rolloutRow(rollout)}, rollout)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Abort reason (required)")
	cmd.MarkFlagRequired("reason")
	return cmd
}
