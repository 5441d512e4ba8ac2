// Fleet CLI — инструмент командной строки для управления флотом
// через HTTP API control plane.
//
// Использование:
//
//	fleetctl [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	rollout   Управление раскатками версий
//	rollback  Экстренный откат
//	fleet     Состояние флота и совместимость версий
//	job       Просмотр задач и ручные операции над droplet
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nishchith-m10/fleet-control-plane/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "fleetctl",
		Short:         "Fleet CLI — control plane management tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewRolloutCmd(clientFn, outputFn),
		cli.NewRollbackCmd(clientFn, outputFn),
		cli.NewFleetCmd(clientFn, outputFn),
		cli.NewJobCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
