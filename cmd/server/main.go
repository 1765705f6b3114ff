package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mindful-chat",
	Short: "Mental health companion chat service",
}

func main() {
	rootCmd.AddCommand(serveCmd(), workerCmd(), createSuperuserCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
