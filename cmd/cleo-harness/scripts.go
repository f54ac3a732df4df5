package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleoruntime/cleo/internal/catalogue"
	"github.com/cleoruntime/cleo/internal/script"
	"github.com/cleoruntime/cleo/internal/script/scan"
)

func newScriptsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scripts",
		Short: "Scan the catalogue's startup and invoked scripts and list them",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, _, err := buildEngine()
			if err != nil {
				return err
			}
			if err := engine.Catalogue.EnsureLayout(engine.Catalogue.Root()); err != nil {
				return err
			}
			if err := engine.Catalogue.Scan(); err != nil {
				return err
			}

			for _, r := range engine.Catalogue.ByKind(catalogue.KindStartupScript) {
				loadAndRegister(engine.Scripts, r.Path, script.Startup)
			}
			for _, r := range engine.Catalogue.ByKind(catalogue.KindInvokedScript) {
				loadAndRegister(engine.Scripts, r.Path, script.Invoked)
			}

			// MarkDuplicates must run before the safety scan: a script
			// already flagged Duplicate skips its other-issue check
			// (spec.md §4.2.1).
			loaded := engine.Scripts.Snapshot()
			script.MarkDuplicates(loaded, scan.Hash)
			params := scan.DefaultParamTable()
			for _, s := range loaded {
				s.RunSafetyScan(params, nil)
			}

			for _, s := range engine.Scripts.Snapshot() {
				fmt.Printf("%-20s  kind=%-8s  issue=%-14s  size=%d\n", s.Name, s.Kind, s.Issue, len(s.Code))
			}
			return nil
		},
	}
}

func loadAndRegister(registry *script.Registry, path string, kind script.Kind) {
	s, err := script.Load(path, kind)
	if err != nil {
		fmt.Printf("skipping %s: %v\n", path, err)
		return
	}
	registry.Register(s)
}
