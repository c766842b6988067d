// Package logging provides opt-in file-based logging with rotation for the
// agent memory core. Setup builds a JSON slog logger that writes to a
// size-rotated file (by default ~/.agentmem/logs/core.log), mirrored to
// stderr when Config.WriteToStderr is set (the default).
//
// Nothing in cmd/agentmem calls Setup; logging is enabled only by code that
// calls it.
package logging
