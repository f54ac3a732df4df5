package menu

import (
	"fmt"
	"strings"

	"github.com/cleoruntime/cleo/internal/cheat"
	"github.com/cleoruntime/cleo/internal/script"
	"github.com/cleoruntime/cleo/internal/settings"
)

// tintForCheat implements the surface mapping spec.md §7 defines: green =
// Concrete(true) and stable; blue = Queued(true); orange = stable-off for
// a cheat flagged Crashes; white = stable-off for a safe cheat. The
// off-queued state displays as plain "Off" (handled by valueForCheat), not
// a distinct tint.
func tintForCheat(c cheat.Cheat) Tint {
	switch {
	case !c.State.Queued && c.State.Value:
		return Green
	case c.State.Queued && c.State.Value:
		return Blue
	case c.Stability == cheat.Crashes:
		return Orange
	default:
		return White
	}
}

func valueForCheat(c cheat.Cheat) string {
	if c.State.DisplayOff() {
		return "Off"
	}
	return "On"
}

// CheatsTab builds the cheats tab: one row per cheat, tapping a row toggles
// it through the manager (spec.md §4.5, §4.3).
func CheatsTab(mgr *cheat.Manager) Builder {
	return func() TabData {
		tab := NewTabData("Cheats", "")
		for _, c := range mgr.Snapshot() {
			c := c
			detail := []string{c.Description}
			if c.Code != "" {
				detail = append(detail, "Code: "+c.Code)
			}
			tab.Rows = append(tab.Rows, Row{
				Title:  c.Description,
				Detail: detail,
				Value:  valueForCheat(c),
				Tint:   tintForCheat(c),
				OnInteract: func() bool {
					if _, err := mgr.Toggle(c.Index); err != nil {
						return false
					}
					return true
				},
			})
		}
		return tab
	}
}

// tintForScript maps a script's safety-scan issue to a row tint, extending
// the cheat surface mapping convention to scripts (orange for NotImpl and
// ArchSpecific, red for Duplicate, white otherwise, spec.md §7 "Bytecode safety... Surfaced to the
// user via the menu (row tint and detail line)").
func tintForScript(s *script.Script) Tint {
	switch s.Issue {
	case script.IssueNotImpl, script.IssueArchSpecific:
		return Orange
	case script.IssueDuplicate:
		return Red
	default:
		return White
	}
}

func detailForScript(s *script.Script) []string {
	switch s.Issue {
	case script.IssueNotImpl:
		return []string{"Uses an opcode not supported on this architecture"}
	case script.IssueArchSpecific:
		return []string{"Uses an architecture-specific opcode"}
	case script.IssueDuplicate:
		return []string{fmt.Sprintf("Duplicate of %s", s.DuplicateOf)}
	default:
		return nil
	}
}

// scriptsTab builds a tab listing every registered script of the given
// kind. Invoked scripts' rows activate the script on interaction; startup
// scripts' rows are informational (spec.md §4.5).
func scriptsTab(title string, registry *script.Registry, kind script.Kind) Builder {
	return func() TabData {
		tab := NewTabData(title, "")
		for _, s := range registry.Snapshot() {
			if s.Kind != kind {
				continue
			}
			s := s
			row := Row{
				Title:  s.Name,
				Detail: detailForScript(s),
				Value:  capitalize(s.Kind.String()),
				Tint:   tintForScript(s),
			}
			if kind == script.Invoked {
				row.OnInteract = func() bool {
					s.Rec.SetActive(true)
					return true
				}
			}
			tab.Rows = append(tab.Rows, row)
		}
		return tab
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// InvokedScriptsTab builds the invoked-scripts tab.
func InvokedScriptsTab(registry *script.Registry) Builder {
	return scriptsTab("Scripts", registry, script.Invoked)
}

// StartupScriptsTab builds the startup-scripts tab.
func StartupScriptsTab(registry *script.Registry) Builder {
	return scriptsTab("Startup Scripts", registry, script.Startup)
}

// SettingsTab builds the settings tab: one row per option, tapping a row
// cycles its value (spec.md §3 "cycle-through semantics", §4.5).
func SettingsTab(store *settings.Store) Builder {
	return func() TabData {
		tab := NewTabData("Settings", "")
		opts := store.Get()

		tab.Rows = append(tab.Rows,
			Row{
				Title: "FPS Lock",
				Value: fmt.Sprintf("%d", opts.FPSLock),
				Tint:  White,
				OnInteract: func() bool {
					opts := store.Get()
					opts.FPSLock = settings.CycleFPSLock(opts.FPSLock)
					store.Update(opts)
					return true
				},
			},
			Row{
				Title: "FPS Display",
				Value: string(opts.FPSVisibility),
				Tint:  White,
				OnInteract: func() bool {
					opts := store.Get()
					opts.FPSVisibility = settings.CycleFPSVisibility(opts.FPSVisibility)
					store.Update(opts)
					return true
				},
			},
			Row{
				Title: "Cheat Persistence",
				Value: string(opts.CheatTransience),
				Tint:  White,
				OnInteract: func() bool {
					opts := store.Get()
					opts.CheatTransience = settings.CycleCheatTransience(opts.CheatTransience)
					store.Update(opts)
					return true
				},
			},
			Row{
				Title: "Loop Break",
				Value: string(opts.LoopBreak),
				Tint:  White,
				OnInteract: func() bool {
					opts := store.Get()
					opts.LoopBreak = settings.CycleLoopBreak(opts.LoopBreak)
					store.Update(opts)
					return true
				},
			},
			Row{
				Title: "Update Channel",
				Value: string(opts.ReleaseChannel),
				Tint:  White,
				OnInteract: func() bool {
					opts := store.Get()
					opts.ReleaseChannel = settings.CycleReleaseChannel(opts.ReleaseChannel)
					store.Update(opts)
					return true
				},
			},
		)
		return tab
	}
}
