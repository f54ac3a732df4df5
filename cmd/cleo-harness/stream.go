package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStreamCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stream [image-path]",
		Short: "Open an image, parse its directory, and report the global buffer size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, _, err := buildEngine()
			if err != nil {
				return err
			}
			if err := engine.Streaming.InitStreams(32); err != nil {
				return err
			}

			source, err := engine.Streaming.OpenImage(args[0])
			if err != nil {
				return err
			}
			if err := engine.Streaming.LoadCDDirectory(source.SlotIndex(), engine.Info.ForImage(uint16(source.SlotIndex()))); err != nil {
				return err
			}

			fmt.Printf("opened %s in slot %d\n", args[0], source.SlotIndex())
			fmt.Printf("global streaming buffer size: %d sectors\n", engine.Streaming.BufferSizeSectors())
			return nil
		},
	}
}
