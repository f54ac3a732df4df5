package menu

import "github.com/fatih/color"

// colorFor maps a Tint to the terminal color the CLI harness renders rows
// with. This is the one render-aware corner of the package (spec.md §4.5
// "Rendering is external"); TabData and Row stay plain data so a real
// UIKit menu could consume them just as well.
func colorFor(t Tint) *color.Color {
	switch t {
	case Green:
		return color.New(color.FgGreen)
	case Blue:
		return color.New(color.FgBlue)
	case Orange:
		return color.New(color.FgYellow)
	case Red:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgWhite)
	}
}

// RenderRow returns row's title and value pre-formatted with its tint's
// terminal color, for the CLI harness's plain-text menu surface.
func RenderRow(r Row) string {
	c := colorFor(r.Tint)
	return c.Sprintf("%s: %s", r.Title, r.Value)
}

// RenderTab renders every row of a tab, one per line, with an optional
// banner line first.
func RenderTab(tab TabData) string {
	out := ""
	if tab.Banner != "" {
		out += tab.Banner + "\n"
	}
	for _, r := range tab.Rows {
		out += RenderRow(r) + "\n"
	}
	return out
}
