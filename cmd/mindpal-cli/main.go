// Command mindpal-cli runs pipeline stages and maintenance tasks from the shell.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mindpal/internal/config"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mindpal-cli",
		Short:         "Operator tools for the MindPal chat backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv()
		},
	}
	root.AddCommand(
		newNormalizeCmd(),
		newSlangCmd(),
		newClassifyCmd(),
		newChatCmd(),
		newSeedCmd(),
		newWatchCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
