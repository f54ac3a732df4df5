// Package menu is the contract between CLEO's core and its menu UI: tab
// and row data models fed by the script, cheat, and settings subsystems.
// Rendering itself is external (spec.md §4.5); this package only defines
// the shapes and the interaction channel.
package menu

// Tint is a row's semantic color, mapped per spec.md §7 "Surface mapping
// for cheats" and reused for script rows' issue display.
type Tint int

const (
	White Tint = iota
	Green
	Blue
	Orange
	Red
)

// Row is one line of a tab: a cheat, a script, or a settings option.
type Row struct {
	Title   string
	Detail  []string
	Value   string
	Tint    Tint
	// OnInteract is invoked when the user activates this row. It reports
	// whether the tab's rows should be reloaded (spec.md §4.5: "returns a
	// 'reload rows' request").
	OnInteract func() (reload bool)
}

// TabData is what a tab builder returns: spec.md §4.5 "a title, an
// optional banner message, a list of rows, and a sender for
// row-interaction events".
type TabData struct {
	Title   string
	Banner  string
	Rows    []Row
	// Events receives a row index whenever the UI wants the core to
	// re-run that row's OnInteract, decoupling the UI thread from the
	// subsystem locks the interaction touches (spec.md §9 "Channels, not
	// callbacks").
	Events chan int
}

// NewTabData returns an empty TabData with a ready event channel.
func NewTabData(title, banner string) TabData {
	return TabData{Title: title, Banner: banner, Events: make(chan int, 16)}
}

// Builder produces one tab's data on demand; the core calls it fresh
// whenever the UI asks to (re)display a tab (spec.md §4.5).
type Builder func() TabData

// Sink is what a host UI implements to actually render tabs; CLEO's core
// never renders, it only produces TabData (spec.md §4.5 "Rendering is
// external").
type Sink interface {
	Show(tab TabData)
}
