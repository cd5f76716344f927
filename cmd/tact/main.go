package main

import (
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use: "tact",
	Short: "tact drives a fixed set of pollable hardware components from " +
		"a single cooperative control loop.",
	Long: `tact drives a fixed set of pollable hardware components from a ` +
		`single cooperative control loop. Components are initialized once ` +
		`and then polled at independent periods; asynchronous notifications ` +
		`reach the system through a thread-safe event bus.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
