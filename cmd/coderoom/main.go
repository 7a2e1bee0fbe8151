package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "coderoom",
	Short: "coderoom - interactive multi-language code runner with exam rooms",
	Long: `coderoom runs submitted source code in ephemeral interactive sessions,
streaming output over WebSocket, and coordinates classroom exam rooms
(task distribution, submission collection, screen-share signaling).`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
