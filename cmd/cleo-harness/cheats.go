package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleoruntime/cleo/internal/cheat"
)

// memoryBackingStore stands in for the host's real boolean cheat array,
// which CLEO would otherwise read and write directly inside the host
// process (spec.md §4.3 "BackingStore").
type memoryBackingStore struct {
	values map[int]bool
}

func newMemoryBackingStore() *memoryBackingStore {
	return &memoryBackingStore{values: make(map[int]bool)}
}

func (s *memoryBackingStore) Get(index int) bool  { return s.values[index] }
func (s *memoryBackingStore) Set(index int, v bool) { s.values[index] = v }

// sampleCheats stands in for the host's real 111-entry cheat table: a
// handful of representative entries so the harness has something to list
// and toggle without a real host binary behind it.
func sampleCheats() []cheat.Cheat {
	return []cheat.Cheat{
		{Index: 0, Code: "THUGSARMOURY", Description: "Weapon set 1", Stability: cheat.Stable},
		{Index: 1, Code: "PROFESSIONALSKIT", Description: "Weapon set 2", Stability: cheat.Stable},
		{Index: 2, Code: "NUTTERTOOLS", Description: "Weapon set 3", Stability: cheat.Stable},
		{Index: 3, Code: "", Description: "Full health and armour", Stability: cheat.Stable},
		{Index: 4, Code: "TURTOISE", Description: "Never wanted", Stability: cheat.Crashes},
	}
}

func newCheatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cheats",
		Short: "List and toggle the harness's sample cheat table",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List every sample cheat and its current state",
			RunE: func(cmd *cobra.Command, args []string) error {
				engine, _, _, err := buildEngine()
				if err != nil {
					return err
				}
				for _, c := range engine.Cheats.Snapshot() {
					fmt.Printf("%3d  %-24s  %-30s  queued=%v value=%v\n", c.Index, c.Code, c.Description, c.State.Queued, c.State.Value)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "toggle [index]",
			Short: "Toggle a cheat by index",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				engine, _, _, err := buildEngine()
				if err != nil {
					return err
				}
				var index int
				if _, err := fmt.Sscanf(args[0], "%d", &index); err != nil {
					return fmt.Errorf("invalid index %q: %w", args[0], err)
				}
				state, err := engine.Cheats.Toggle(index)
				if err != nil {
					return err
				}
				engine.Cheats.Tick()
				state = engine.Cheats.Snapshot()[index].State
				fmt.Printf("cheat %d now queued=%v value=%v\n", index, state.Queued, state.Value)
				return nil
			},
		},
	)
	return cmd
}
