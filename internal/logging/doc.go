// Package logging carries the two kinds of output hutch produces.
//
// Diagnostics go through log/slog. They are quiet by default, at info level
// once the root command has run Setup, and at debug level with --verbose or
// HUTCH_DEBUG:
//
//	logging.Debug("volume ready", "volume", name, "created", created)
//	logging.ForWorkspace(ws.Name).Info("sidecar started", "sidecar", s.Name)
//
// Status lines are for the person at the terminal and always print:
//
//	logging.UserInfo("Creating workspace %s...", name)   // ℹ on stdout
//	logging.UserSuccess("Created workspace %s", name)    // ✓ on stdout
//	logging.UserWarning("Not attached to a terminal")    // ⚠ on stderr
package logging
