// main package for speech-publisher
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "speech-publisher",
		Short: "Turns text into narrated podcast episodes",
		Long: `speech-publisher chunks text, renders it with a speech model, stores the
audio and publishes it as a draft episode.

Commands:
  serve   - run the HTTP API, the queue poller and the optional NATS worker
  chunk   - print how a text file would be split for synthesis
  health  - query a running server's health route`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCmd(), newChunkCmd(), newHealthCmd())

	return rootCmd
}

func main() {
	err := newRootCmd().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "speech-publisher exited with error: %v\n", err)
		os.Exit(1)
	}
}
