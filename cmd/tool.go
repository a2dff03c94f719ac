package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	toolCmd.AddCommand(toolDescribeCmd, toolCallCmd)
	rootCmd.AddCommand(toolCmd)
}

var toolCmd = &cobra.Command{
	Use:   "tool",
	Short: "Inspect or invoke the run_command tool",
}

var toolDescribeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Print the tool description as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(newExecutor().Tool())
	},
}

var toolCallCmd = &cobra.Command{
	Use:   "call '<json params>'",
	Short: `Invoke the tool handler, e.g. workbox tool call '{"command":"ls"}'`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !json.Valid([]byte(args[0])) {
			return fmt.Errorf("params are not valid JSON: %s", args[0])
		}
		res, err := newExecutor().Tool().Handler(cmd.Context(), json.RawMessage(args[0]))
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}
