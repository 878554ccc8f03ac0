package main

import (
	"fmt"
	"os"

	"github.com/book-expert/speech-publisher/internal/chunker"
	"github.com/spf13/cobra"
)

const defaultMaxChunkSize = 300

func newChunkCmd() *cobra.Command {
	var maxChunkSize int

	chunkCmd := &cobra.Command{
		Use:   "chunk <file>",
		Short: "Print the synthesis chunks of a text file, one per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			textChunker, err := chunker.New(maxChunkSize)
			if err != nil {
				return err
			}

			text, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			for _, chunk := range textChunker.Split(string(text)) {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), chunk)
				if err != nil {
					return fmt.Errorf("failed to write chunk: %w", err)
				}
			}

			return nil
		},
	}

	chunkCmd.Flags().IntVar(&maxChunkSize, "max-chunk-size", defaultMaxChunkSize, "maximum characters per chunk")

	return chunkCmd
}
