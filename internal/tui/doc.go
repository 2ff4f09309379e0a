// Package tui provides the interactive workspace picker.
//
// The picker lists workspaces grouped by the spec document they were
// created from and returns the chosen action:
//
//	result, err := tui.RunPicker(summaries)
//	switch result.Action {
//	case tui.ActionEnter:
//	    // attach to result.Workspace
//	case tui.ActionStop, tui.ActionRemove:
//	    // lifecycle operation on result.Workspace
//	}
//
// Group headers are skipped during keyboard navigation. SimplePicker
// renders the same list as plain text for non-interactive terminals.
package tui
